package engine

import (
	"testing"

	"github.com/forgo/surreal/pkg/values"
)

func TestAuth_SignUpSignIn(t *testing.T) {
	e := newEngine(t)

	token, err := e.SignUp("testns", "testdb", "tobie", "secret")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if token == "" {
		t.Fatal("SignUp returned an empty token")
	}
	if err := e.Authenticate(token); err != nil {
		t.Errorf("Authenticate fresh token: %v", err)
	}

	again, err := e.SignIn("testns", "testdb", "tobie", "secret")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if again == token {
		t.Error("SignIn reissued the same token")
	}
}

func TestAuth_SignUpDuplicateUser(t *testing.T) {
	e := newEngine(t)

	if _, err := e.SignUp("ns", "db", "tobie", "secret"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if _, err := e.SignUp("ns", "db", "tobie", "other"); err == nil {
		t.Error("duplicate SignUp succeeded")
	}
	// Same user name in a different scope is a different user.
	if _, err := e.SignUp("ns2", "db", "tobie", "secret"); err != nil {
		t.Errorf("SignUp in another scope: %v", err)
	}
}

func TestAuth_SignInWrongPassword(t *testing.T) {
	e := newEngine(t)
	e.SignUp("ns", "db", "tobie", "secret")

	if _, err := e.SignIn("ns", "db", "tobie", "wrong"); err == nil {
		t.Error("SignIn with a wrong password succeeded")
	}
	if _, err := e.SignIn("ns", "db", "nobody", "secret"); err == nil {
		t.Error("SignIn as an unknown user succeeded")
	}
}

func TestAuth_EmptyCredentialsRejected(t *testing.T) {
	e := newEngine(t)

	if _, err := e.SignUp("ns", "db", "", "secret"); err == nil {
		t.Error("SignUp without a user succeeded")
	}
	if _, err := e.SignUp("ns", "db", "tobie", ""); err == nil {
		t.Error("SignUp without a password succeeded")
	}
}

func TestAuth_InvalidateRevokesToken(t *testing.T) {
	e := newEngine(t)

	token, err := e.SignUp("ns", "db", "tobie", "secret")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if err := e.Invalidate(token); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if err := e.Authenticate(token); err == nil {
		t.Error("revoked token still authenticates")
	}
	// Revoking again is a no-op.
	if err := e.Invalidate(token); err != nil {
		t.Errorf("second Invalidate: %v", err)
	}
}

func TestAuth_AuthenticateUnknownToken(t *testing.T) {
	e := newEngine(t)
	if err := e.Authenticate("not-a-token"); err == nil {
		t.Error("unknown token authenticated")
	}
}

func TestAuthParams(t *testing.T) {
	obj := values.NewObject()
	obj.InsertString("ns", "testns")
	obj.InsertString("db", "testdb")
	obj.InsertString("user", "tobie")
	obj.InsertString("pass", "secret")

	ns, db, user, pass, err := AuthParams(obj)
	if err != nil {
		t.Fatalf("AuthParams: %v", err)
	}
	if ns != "testns" || db != "testdb" || user != "tobie" || pass != "secret" {
		t.Errorf("AuthParams = (%q, %q, %q, %q)", ns, db, user, pass)
	}

	// ns and db are optional; user and pass are not.
	root := values.NewObject()
	root.InsertString("user", "root")
	root.InsertString("pass", "root")
	if _, _, _, _, err := AuthParams(root); err != nil {
		t.Errorf("AuthParams without scope: %v", err)
	}

	if _, _, _, _, err := AuthParams(nil); err == nil {
		t.Error("AuthParams(nil) succeeded")
	}
	bad := values.NewObject()
	bad.InsertString("user", "tobie")
	if _, _, _, _, err := AuthParams(bad); err == nil {
		t.Error("AuthParams without pass succeeded")
	}
}
