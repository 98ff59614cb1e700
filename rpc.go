package surreal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/forgo/surreal/internal/wire"
)

// Options configures a raw RPC handle.
type Options struct {
	// Strict rejects requests and responses that do not decode as
	// well-formed RPC envelopes, instead of passing ambiguous bytes
	// through.
	Strict bool

	// QueryTimeout bounds each query-method Execute, in seconds. Zero
	// disables the bound.
	QueryTimeout uint8

	// TransactionTimeout bounds each non-query Execute (every such call is
	// one implicit transaction), in seconds. Zero disables the bound.
	TransactionTimeout uint8
}

// RPC is the raw byte-oriented peer of DB: it exchanges wire-level CBOR
// request/response envelopes directly, bypassing the typed value model. It
// works against every endpoint scheme, embedded ones included.
//
// RPC follows the same state rules as DB: safe for concurrent use, poisoned
// permanently by a fatal error (after which any use panics), closed exactly
// once by Close.
type RPC struct {
	tr   transport
	opts Options

	poisoned atomic.Bool

	mu     sync.Mutex
	closed bool
}

// OpenRPC opens a raw RPC handle on endpoint.
func OpenRPC(ctx context.Context, endpoint string, opts Options, o ...Option) (*RPC, error) {
	cfg := newConfig(o)
	tr, err := dial(ctx, endpoint, cfg)
	if err != nil {
		return nil, err
	}
	return &RPC{tr: tr, opts: opts}, nil
}

// Execute performs one synchronous RPC round trip. req must be a CBOR
// request envelope ({id, method, params}); the raw CBOR response envelope
// is returned. The caller owns both buffers.
func (r *RPC) Execute(ctx context.Context, req []byte) ([]byte, error) {
	r.checkPoison()
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	var env wire.Request
	envErr := wire.Unmarshal(req, &env)
	if envErr != nil && r.opts.Strict {
		return nil, &QueryError{Message: "strict: malformed request envelope: " + envErr.Error()}
	}

	if envErr == nil {
		if timeout := r.timeoutFor(env.Method); timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
	}

	res, err := r.tr.Execute(ctx, req)
	if err != nil {
		return nil, r.fault(err)
	}
	if r.opts.Strict {
		var check wire.Response
		if err := wire.Unmarshal(res, &check); err != nil {
			return nil, &QueryError{Message: "strict: ambiguous response envelope: " + err.Error()}
		}
	}
	return res, nil
}

// Notifications returns the byte-oriented push stream: every raw push
// envelope the backend emits, in emission order. The stream is an exclusive
// handle with the same contract as Stream.
func (r *RPC) Notifications(ctx context.Context) (*RPCStream, error) {
	r.checkPoison()
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	ch, err := r.tr.PushMessages()
	if err != nil {
		return nil, r.fault(err)
	}
	return &RPCStream{ch: ch}, nil
}

// Close releases the handle. Closing twice returns ErrClosed.
func (r *RPC) Close(ctx context.Context) error {
	r.checkPoison()
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closed = true
	r.mu.Unlock()
	return r.fault(r.tr.Close(ctx))
}

func (r *RPC) timeoutFor(method string) time.Duration {
	if method == wire.MethodQuery {
		return time.Duration(r.opts.QueryTimeout) * time.Second
	}
	return time.Duration(r.opts.TransactionTimeout) * time.Second
}

func (r *RPC) checkOpen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	return nil
}

func (r *RPC) checkPoison() {
	if r.poisoned.Load() {
		panic("surreal: use of poisoned rpc handle")
	}
}

func (r *RPC) fault(err error) error {
	if err == nil {
		return nil
	}
	var fatal *wire.Fatal
	if errors.As(err, &fatal) {
		r.poisoned.Store(true)
		return &FatalError{Err: fatal.Err}
	}
	if errors.Is(err, wire.ErrClosed) {
		return ErrClosed
	}
	var rpcErr *wire.Error
	if errors.As(err, &rpcErr) {
		return &QueryError{Code: rpcErr.Code, Message: rpcErr.Message}
	}
	return err
}

// RPCStream is the byte-oriented analog of Stream: raw push envelopes
// pulled one at a time. Exclusive handle, movable between goroutines,
// never to be used from two at once.
type RPCStream struct {
	ch     <-chan []byte
	killed bool
}

// Next blocks until a push message arrives, the stream ends, or ctx is
// done. ok == false means no further messages will arrive or the context
// was canceled.
func (s *RPCStream) Next(ctx context.Context) ([]byte, bool) {
	if s.killed {
		return nil, false
	}
	select {
	case msg, ok := <-s.ch:
		if !ok {
			return nil, false
		}
		return msg, true
	case <-ctx.Done():
		return nil, false
	}
}

// Kill stops the stream locally: subsequent Next calls return false
// without blocking. Idempotent.
func (s *RPCStream) Kill(ctx context.Context) error {
	s.killed = true
	return nil
}
