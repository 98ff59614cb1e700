package surreal

import (
	"errors"
	"fmt"
)

// Status places an operation outcome on the client's status lattice.
// Every error returned by this package maps onto it via StatusOf.
type Status int

const (
	// StatusNone means no data and no error: a nil error, or the normal end
	// of a stream.
	StatusNone Status = 0

	// StatusClosed means the operand is no longer usable but nothing went
	// wrong: the handle was closed, or the peer ended the connection.
	StatusClosed Status = -1

	// StatusError is a recoverable failure of one call. The handle remains
	// usable.
	StatusError Status = -2

	// StatusFatal is an unrecoverable internal failure. The handle that
	// produced it is poisoned: any further use panics.
	StatusFatal Status = -3
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusClosed:
		return "closed"
	case StatusError:
		return "error"
	case StatusFatal:
		return "fatal"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Standard errors. Check with errors.Is.
var (
	// ErrClosed indicates the handle (or its connection) has been closed.
	ErrClosed = errors.New("surreal: handle closed")

	// ErrNamespaceNotSelected indicates UseDB was called before UseNS on a
	// fresh handle. A namespace must be selected before a database.
	ErrNamespaceNotSelected = errors.New("surreal: namespace must be selected before database")
)

// QueryError is a recoverable failure reported by the backend for one call
// or one statement. The connection remains usable.
type QueryError struct {
	Code    int
	Message string
}

func (e *QueryError) Error() string {
	if e.Code == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// FatalError reports an internal invariant failure. Observing one means the
// handle that produced it has been poisoned; the only valid next step is to
// discard the handle.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("surreal: fatal: %v", e.Err) }

func (e *FatalError) Unwrap() error { return e.Err }

// StatusOf maps an operation error onto the status lattice.
func StatusOf(err error) Status {
	if err == nil {
		return StatusNone
	}
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return StatusFatal
	}
	if errors.Is(err, ErrClosed) {
		return StatusClosed
	}
	return StatusError
}
