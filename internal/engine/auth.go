package engine

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/surreal/internal/wire"
	"github.com/forgo/surreal/pkg/values"
)

// scopeKey addresses a user record within a namespace/database scope.
// Empty namespace and database mean a root-level user.
func scopeKey(ns, db, user string) string {
	return ns + "\x00" + db + "\x00" + user
}

// SignUp registers a user with a bcrypt-hashed password and returns a
// session token. Credentials are engine-local session state; they are not
// persisted to the record store.
func (e *Engine) SignUp(ns, db, user, pass string) (string, error) {
	if user == "" || pass == "" {
		return "", failed("signup requires user and pass")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return "", failed("hash password: %v", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", wire.ErrClosed
	}
	key := scopeKey(ns, db, user)
	if _, ok := e.users[key]; ok {
		return "", failed("user %q already exists", user)
	}
	e.users[key] = hash
	return e.issueToken(key), nil
}

// SignIn verifies credentials against a registered user and returns a
// session token.
func (e *Engine) SignIn(ns, db, user, pass string) (string, error) {
	e.mu.Lock()
	hash, ok := e.users[scopeKey(ns, db, user)]
	e.mu.Unlock()
	if !ok {
		return "", failed("no such user %q", user)
	}
	// Compare outside the lock; bcrypt takes tens of milliseconds.
	if err := bcrypt.CompareHashAndPassword(hash, []byte(pass)); err != nil {
		return "", failed("invalid credentials for %q", user)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", wire.ErrClosed
	}
	return e.issueToken(scopeKey(ns, db, user)), nil
}

// Authenticate validates a previously issued token.
func (e *Engine) Authenticate(token string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return wire.ErrClosed
	}
	if _, ok := e.tokens[token]; !ok {
		return failed("invalid token")
	}
	return nil
}

// Invalidate revokes a token. Revoking an unknown token is a no-op.
func (e *Engine) Invalidate(token string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return wire.ErrClosed
	}
	delete(e.tokens, token)
	return nil
}

// issueToken mints a bearer token for a scope key. Callers hold e.mu.
func (e *Engine) issueToken(key string) string {
	token := uuid.NewString()
	e.tokens[token] = key
	return token
}

// AuthParams unpacks the credential object used by the signin/signup RPC
// methods: {ns?, db?, user, pass}.
func AuthParams(obj *values.Object) (ns, db, user, pass string, err error) {
	if obj == nil {
		return "", "", "", "", failed("credentials must be an object")
	}
	get := func(key string) string {
		v, ok := obj.Get(key)
		if !ok {
			return ""
		}
		s, _ := v.Strand()
		return s
	}
	ns, db = get("ns"), get("db")
	user, pass = get("user"), get("pass")
	if user == "" || pass == "" {
		return "", "", "", "", failed("credentials require user and pass")
	}
	return ns, db, user, pass, nil
}
