// Package embed adapts the embedded engine to the transport contract shared
// with the WebSocket connection, so the client layer and the raw RPC channel
// treat mem:// and surrealkv:// endpoints exactly like remote ones.
package embed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/forgo/surreal/internal/engine"
	"github.com/forgo/surreal/internal/storage"
	"github.com/forgo/surreal/internal/wire"
	"github.com/forgo/surreal/pkg/values"
)

const errInternal = -32603

// Conn drives an engine through RPC-shaped calls.
type Conn struct {
	eng *engine.Engine

	mu     sync.Mutex
	closed bool

	pushOnce sync.Once
	push     chan []byte
}

// New wraps a store in an engine-backed connection.
func New(store storage.Store, log *slog.Logger) *Conn {
	return &Conn{eng: engine.New(store, log)}
}

// Send dispatches one typed RPC call to the engine.
func (c *Conn) Send(ctx context.Context, method string, params ...values.Value) (values.Value, error) {
	if err := ctx.Err(); err != nil {
		return values.Value{}, err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return values.Value{}, wire.ErrClosed
	}
	c.mu.Unlock()

	switch method {
	case wire.MethodUse:
		return values.NewNone(), c.eng.Use(paramStr(params, 0), paramStr(params, 1))

	case wire.MethodVersion:
		return values.NewStrand(c.eng.VersionString()), nil

	case wire.MethodLet:
		if len(params) < 2 {
			return values.Value{}, &wire.Error{Code: -32602, Message: "let requires name and value"}
		}
		return values.NewNone(), c.eng.Let(paramStr(params, 0), params[1])

	case wire.MethodUnset:
		return values.NewNone(), c.eng.Unset(paramStr(params, 0))

	case wire.MethodSignUp, wire.MethodSignIn:
		ns, db, user, pass, err := engine.AuthParams(paramObj(params, 0))
		if err != nil {
			return values.Value{}, err
		}
		var token string
		if method == wire.MethodSignUp {
			token, err = c.eng.SignUp(ns, db, user, pass)
		} else {
			token, err = c.eng.SignIn(ns, db, user, pass)
		}
		if err != nil {
			return values.Value{}, err
		}
		return values.NewStrand(token), nil

	case wire.MethodAuthenticate:
		return values.NewNone(), c.eng.Authenticate(paramStr(params, 0))

	case wire.MethodInvalidate:
		return values.NewNone(), c.eng.Invalidate(paramStr(params, 0))

	case wire.MethodLive:
		id, err := c.eng.Live(paramStr(params, 0))
		if err != nil {
			return values.Value{}, err
		}
		return values.NewUUID(id), nil

	case wire.MethodKill:
		id, err := paramUUID(params, 0)
		if err != nil {
			return values.Value{}, err
		}
		return values.NewNone(), c.eng.Kill(id)

	case wire.MethodQuery:
		stmts := c.eng.Query(paramStr(params, 0), paramObj(params, 1))
		return engine.StatementsValue(stmts), nil

	case wire.MethodSelect:
		return c.eng.Select(paramResource(params, 0))

	case wire.MethodCreate:
		return c.eng.Create(paramResource(params, 0), paramObj(params, 1))

	case wire.MethodUpdate:
		return c.eng.Update(paramResource(params, 0), paramObj(params, 1))

	case wire.MethodDelete:
		return c.eng.Delete(paramResource(params, 0))

	default:
		return values.Value{}, &wire.Error{Code: -32601, Message: "unknown method " + method}
	}
}

// Execute runs one raw CBOR request envelope and returns the raw response
// envelope, exactly as a remote server would.
func (c *Conn) Execute(ctx context.Context, req []byte) ([]byte, error) {
	var env wire.Request
	if err := wire.Unmarshal(req, &env); err != nil {
		return nil, &wire.Error{Code: -32700, Message: "malformed request: " + err.Error()}
	}
	params := make([]values.Value, len(env.Params))
	for i, raw := range env.Params {
		v, err := values.Unmarshal(raw)
		if err != nil {
			return nil, &wire.Error{Code: -32602, Message: "malformed parameter: " + err.Error()}
		}
		params[i] = v
	}

	resp := wire.Response{ID: env.ID}
	result, err := c.Send(ctx, env.Method, params...)
	switch e := err.(type) {
	case nil:
		raw, err := values.Marshal(result)
		if err != nil {
			return nil, &wire.Fatal{Err: err}
		}
		resp.Result = raw
	case *wire.Error:
		resp.Error = e
	default:
		// Fatal and closed states are transport-level, not envelope-level.
		return nil, err
	}
	return wire.Marshal(resp)
}

// Notifications returns the feed of one live subscription.
func (c *Conn) Notifications(id values.UUID) (<-chan values.Notification, bool) {
	return c.eng.Notifications(id)
}

// Live registers a live query and returns its id and feed.
func (c *Conn) Live(ctx context.Context, table string) (values.UUID, <-chan values.Notification, error) {
	v, err := c.Send(ctx, wire.MethodLive, values.NewStrand(table))
	if err != nil {
		return values.UUID{}, nil, err
	}
	id, ok := v.UUID()
	if !ok {
		return values.UUID{}, nil, &wire.Error{Code: errInternal, Message: "live did not return an id"}
	}
	ch, ok := c.eng.Notifications(id)
	if !ok {
		return values.UUID{}, nil, &wire.Error{Code: errInternal, Message: "live subscription vanished"}
	}
	return id, ch, nil
}

// Kill terminates a live query; its feed is closed.
func (c *Conn) Kill(ctx context.Context, id values.UUID) error {
	_, err := c.Send(ctx, wire.MethodKill, values.NewUUID(id))
	return err
}

// PushMessages returns raw push envelopes for every notification the engine
// emits, lazily starting the encoder on first use.
func (c *Conn) PushMessages() (<-chan []byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, wire.ErrClosed
	}
	c.mu.Unlock()

	c.pushOnce.Do(func() {
		c.push = make(chan []byte, 64)
		src := c.eng.EnablePush()
		go func() {
			defer close(c.push)
			for n := range src {
				raw, err := values.Marshal(values.NotificationValue(n))
				if err != nil {
					continue
				}
				msg, err := wire.Marshal(wire.Response{Result: raw})
				if err != nil {
					continue
				}
				select {
				case c.push <- msg:
				default:
				}
			}
		}()
	})
	return c.push, nil
}

// Close shuts the engine down. Live subscribers observe end of stream.
func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return wire.ErrClosed
	}
	c.closed = true
	c.mu.Unlock()
	return c.eng.Close()
}

func paramStr(params []values.Value, i int) string {
	if i >= len(params) {
		return ""
	}
	s, _ := params[i].Strand()
	return s
}

func paramObj(params []values.Value, i int) *values.Object {
	if i >= len(params) {
		return nil
	}
	obj, _ := params[i].Object()
	return obj
}

func paramResource(params []values.Value, i int) string {
	if i >= len(params) {
		return ""
	}
	if t, ok := params[i].Thing(); ok {
		return t.String()
	}
	s, _ := params[i].Strand()
	return s
}

func paramUUID(params []values.Value, i int) (values.UUID, error) {
	if i < len(params) {
		if u, ok := params[i].UUID(); ok {
			return u, nil
		}
		if s, ok := params[i].Strand(); ok {
			u, err := values.ParseUUID(s)
			if err == nil {
				return u, nil
			}
		}
	}
	return values.UUID{}, &wire.Error{Code: -32602, Message: "expected a live query id"}
}
