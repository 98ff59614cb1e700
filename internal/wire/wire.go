// Package wire defines the CBOR RPC envelopes exchanged with a SurrealDB
// backend, and the error kinds transports report upward. Both the embedded
// engine and the WebSocket transport speak this protocol, which is what lets
// the raw RPC channel work identically against either.
package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// RPC method names understood by every backend.
const (
	MethodUse          = "use"
	MethodInfo         = "info"
	MethodVersion      = "version"
	MethodSignUp       = "signup"
	MethodSignIn       = "signin"
	MethodAuthenticate = "authenticate"
	MethodInvalidate   = "invalidate"
	MethodLet          = "let"
	MethodUnset        = "unset"
	MethodLive         = "live"
	MethodKill         = "kill"
	MethodQuery        = "query"
	MethodSelect       = "select"
	MethodCreate       = "create"
	MethodUpdate       = "update"
	MethodDelete       = "delete"
)

// Request is one RPC call. Params are pre-encoded so the envelope can be
// assembled without knowledge of the value model.
type Request struct {
	ID     string            `cbor:"id"`
	Method string            `cbor:"method"`
	Params []cbor.RawMessage `cbor:"params,omitempty"`
}

// Response is the reply to a Request (when ID is set) or a push message
// (when ID is empty).
type Response struct {
	ID     string          `cbor:"id,omitempty"`
	Error  *Error          `cbor:"error,omitempty"`
	Result cbor.RawMessage `cbor:"result,omitempty"`
}

// Error is a server- or engine-reported failure of one call. It is
// recoverable: the connection that returned it remains usable.
type Error struct {
	Code    int    `cbor:"code"`
	Message string `cbor:"message,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Fatal wraps an internal invariant failure. A transport returning Fatal is
// no longer in a defined state; the owning handle must poison itself.
type Fatal struct {
	Err error
}

func (f *Fatal) Error() string { return fmt.Sprintf("fatal: %v", f.Err) }

func (f *Fatal) Unwrap() error { return f.Err }

// ErrClosed is returned by transports after they have been closed, or when
// the peer ended the connection. It is terminal but not an error condition
// in the status-lattice sense.
var ErrClosed = errors.New("connection closed")

// NewRequestID returns a correlation ID for one Request.
func NewRequestID() string { return uuid.NewString() }

// Marshal encodes any wire envelope.
func Marshal(v any) ([]byte, error) { return cbor.Marshal(v) }

// Unmarshal decodes a wire envelope.
func Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }
