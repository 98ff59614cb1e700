package surreal

import (
	"context"
	"errors"
	"testing"

	"github.com/forgo/surreal/internal/wire"
	"github.com/forgo/surreal/pkg/values"
)

// stubTransport lets tests inject transport-level failures.
type stubTransport struct {
	sendErr error
}

func (s *stubTransport) Send(ctx context.Context, method string, params ...values.Value) (values.Value, error) {
	return values.NewNone(), s.sendErr
}

func (s *stubTransport) Execute(ctx context.Context, req []byte) ([]byte, error) {
	return nil, s.sendErr
}

func (s *stubTransport) Live(ctx context.Context, table string) (values.UUID, <-chan values.Notification, error) {
	return values.UUID{}, nil, s.sendErr
}

func (s *stubTransport) Kill(ctx context.Context, id values.UUID) error { return s.sendErr }

func (s *stubTransport) PushMessages() (<-chan []byte, error) { return nil, s.sendErr }

func (s *stubTransport) Close(ctx context.Context) error { return s.sendErr }

func mustPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Error("expected a panic")
		}
	}()
	fn()
}

func TestDB_FatalPoisonsHandle(t *testing.T) {
	cause := errors.New("storage corrupted")
	db := &DB{tr: &stubTransport{sendErr: &wire.Fatal{Err: cause}}}

	_, err := db.Version(context.Background())
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("got %v, want *FatalError", err)
	}
	if !errors.Is(err, cause) {
		t.Error("FatalError does not carry its cause")
	}
	if StatusOf(err) != StatusFatal {
		t.Errorf("StatusOf = %s, want fatal", StatusOf(err))
	}

	// Every further use of the poisoned handle panics.
	mustPanic(t, func() { db.Version(context.Background()) })
	mustPanic(t, func() { db.Select(context.Background(), "person") })
	mustPanic(t, func() { db.Close(context.Background()) })
}

func TestDB_TransportClosedMapsToErrClosed(t *testing.T) {
	db := &DB{tr: &stubTransport{sendErr: wire.ErrClosed}}

	_, err := db.Version(context.Background())
	if !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
	if StatusOf(err) != StatusClosed {
		t.Errorf("StatusOf = %s, want closed", StatusOf(err))
	}
}

func TestDB_WireErrorMapsToQueryError(t *testing.T) {
	db := &DB{tr: &stubTransport{sendErr: &wire.Error{Code: -32000, Message: "boom"}}}

	_, err := db.Version(context.Background())
	var qerr *QueryError
	if !errors.As(err, &qerr) {
		t.Fatalf("got %v, want *QueryError", err)
	}
	if qerr.Code != -32000 || qerr.Message != "boom" {
		t.Errorf("QueryError = %+v", qerr)
	}

	// Recoverable: the handle did not poison itself.
	if _, err := db.Version(context.Background()); err == nil {
		t.Error("stub stopped failing")
	}
}

func TestRPC_FatalPoisonsHandle(t *testing.T) {
	r := &RPC{tr: &stubTransport{sendErr: &wire.Fatal{Err: errors.New("broken")}}}

	_, err := r.Execute(context.Background(), []byte{0xa0})
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("got %v, want *FatalError", err)
	}
	mustPanic(t, func() { r.Execute(context.Background(), []byte{0xa0}) })
	mustPanic(t, func() { r.Close(context.Background()) })
}
