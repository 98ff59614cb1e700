// Package wsconn is the ws:// and wss:// transport: a CBOR RPC client over
// a WebSocket, with request/response correlation and live-notification
// routing.
//
// One background read loop owns the socket's read side. Writes are
// serialized by a mutex. When the read loop dies (server close, network
// failure) every pending call fails with wire.ErrClosed and every
// notification channel is closed, so live streams observe end of stream
// rather than an error.
package wsconn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/forgo/surreal/internal/wire"
	"github.com/forgo/surreal/pkg/values"
)

// DefaultDialer mirrors gorilla's default dialer with the CBOR subprotocol
// selected and compression enabled.
var DefaultDialer = &gorilla.Dialer{
	Proxy:             gorilla.DefaultDialer.Proxy,
	HandshakeTimeout:  gorilla.DefaultDialer.HandshakeTimeout,
	EnableCompression: true,
	Subprotocols:      []string{"cbor"},
}

const closeGrace = 2 * time.Second

type response struct {
	env wire.Response
	raw []byte
}

// Conn is a live WebSocket RPC connection. Safe for concurrent use.
type Conn struct {
	conn *gorilla.Conn
	log  *slog.Logger

	writeMu sync.Mutex

	mu     sync.Mutex
	resp   map[string]chan response
	notif  map[values.UUID]chan values.Notification
	push   chan []byte
	closed bool

	done     chan struct{}
	doneOnce sync.Once
}

// Dial connects to baseURL (ws://host:port or wss://host:port); the RPC
// path is appended.
func Dial(ctx context.Context, baseURL string, log *slog.Logger) (*Conn, error) {
	if log == nil {
		log = slog.Default()
	}
	sock, resp, err := DefaultDialer.DialContext(ctx, baseURL+"/rpc", nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	c := &Conn{
		conn:  sock,
		log:   log,
		resp:  make(map[string]chan response),
		notif: make(map[values.UUID]chan values.Notification),
		done:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Send performs one RPC call and decodes the result.
func (c *Conn) Send(ctx context.Context, method string, params ...values.Value) (values.Value, error) {
	encoded := make([][]byte, len(params))
	for i, p := range params {
		raw, err := values.Marshal(p)
		if err != nil {
			return values.Value{}, fmt.Errorf("encode parameter %d: %w", i, err)
		}
		encoded[i] = raw
	}
	req := wire.Request{ID: wire.NewRequestID(), Method: method}
	for _, raw := range encoded {
		req.Params = append(req.Params, raw)
	}
	msg, err := wire.Marshal(req)
	if err != nil {
		return values.Value{}, err
	}

	res, err := c.roundTrip(ctx, req.ID, msg)
	if err != nil {
		return values.Value{}, err
	}
	if res.env.Error != nil {
		return values.Value{}, res.env.Error
	}
	if res.env.Result == nil {
		return values.NewNone(), nil
	}
	v, err := values.Unmarshal(res.env.Result)
	if err != nil {
		return values.Value{}, fmt.Errorf("decode %s result: %w", method, err)
	}
	return v, nil
}

// Execute writes a caller-built request envelope verbatim and returns the
// raw response envelope. The envelope must carry an id for correlation.
func (c *Conn) Execute(ctx context.Context, reqBytes []byte) ([]byte, error) {
	var env wire.Request
	if err := wire.Unmarshal(reqBytes, &env); err != nil {
		return nil, &wire.Error{Code: -32700, Message: "malformed request: " + err.Error()}
	}
	if env.ID == "" {
		return nil, &wire.Error{Code: -32600, Message: "request has no id"}
	}
	res, err := c.roundTrip(ctx, env.ID, reqBytes)
	if err != nil {
		return nil, err
	}
	return res.raw, nil
}

func (c *Conn) roundTrip(ctx context.Context, id string, msg []byte) (response, error) {
	ch, err := c.addPending(id)
	if err != nil {
		return response{}, err
	}
	defer c.removePending(id)

	if err := c.write(msg); err != nil {
		return response{}, err
	}

	select {
	case res, ok := <-ch:
		if !ok {
			return response{}, wire.ErrClosed
		}
		return res, nil
	case <-c.done:
		return response{}, wire.ErrClosed
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

func (c *Conn) addPending(id string) (chan response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, wire.ErrClosed
	}
	if _, ok := c.resp[id]; ok {
		return nil, fmt.Errorf("request id %q already in flight", id)
	}
	ch := make(chan response, 1)
	c.resp[id] = ch
	return ch, nil
}

func (c *Conn) removePending(id string) {
	c.mu.Lock()
	delete(c.resp, id)
	c.mu.Unlock()
}

func (c *Conn) write(msg []byte) error {
	select {
	case <-c.done:
		return wire.ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(gorilla.BinaryMessage, msg)
}

// RegisterLive creates the notification channel for a live query id. Must
// be called promptly after the live call returns; push messages for
// unregistered ids are dropped.
func (c *Conn) RegisterLive(id values.UUID) <-chan values.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.notif[id]; ok {
		return ch
	}
	ch := make(chan values.Notification, 64)
	if c.closed {
		close(ch)
		return ch
	}
	c.notif[id] = ch
	return ch
}

// UnregisterLive drops a live query's channel, waking a blocked receiver
// with end of stream.
func (c *Conn) UnregisterLive(id values.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.notif[id]; ok {
		close(ch)
		delete(c.notif, id)
	}
}

// Notifications returns the channel for a registered live query.
func (c *Conn) Notifications(id values.UUID) (<-chan values.Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.notif[id]
	return ch, ok
}

// Live starts a live query and registers its notification feed. There is a
// small window between the server registering the subscription and the feed
// existing here; notifications arriving inside it are dropped, matching
// server behavior for unconsumed pushes.
func (c *Conn) Live(ctx context.Context, table string) (values.UUID, <-chan values.Notification, error) {
	v, err := c.Send(ctx, wire.MethodLive, values.NewStrand(table))
	if err != nil {
		return values.UUID{}, nil, err
	}
	id, ok := v.UUID()
	if !ok {
		if s, sok := v.Strand(); sok {
			parsed, perr := values.ParseUUID(s)
			if perr != nil {
				return values.UUID{}, nil, fmt.Errorf("live returned %q: %w", s, perr)
			}
			id = parsed
		} else {
			return values.UUID{}, nil, fmt.Errorf("live returned %s, want uuid", v.Kind())
		}
	}
	return id, c.RegisterLive(id), nil
}

// Kill terminates a live query on the server and closes its local feed.
func (c *Conn) Kill(ctx context.Context, id values.UUID) error {
	_, err := c.Send(ctx, wire.MethodKill, values.NewUUID(id))
	c.UnregisterLive(id)
	return err
}

// PushMessages returns every push envelope (message without a request id)
// in raw form.
func (c *Conn) PushMessages() (<-chan []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, wire.ErrClosed
	}
	if c.push == nil {
		c.push = make(chan []byte, 64)
	}
	return c.push, nil
}

// Close sends a best-effort close frame and tears the connection down.
func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return wire.ErrClosed
	}
	c.closed = true
	c.mu.Unlock()

	c.doneOnce.Do(func() { close(c.done) })

	deadline := time.Now().Add(closeGrace)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(deadline)
	_ = c.conn.WriteMessage(gorilla.CloseMessage,
		gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := c.conn.Close()
	c.teardown()
	return err
}

// readLoop owns the socket's read side until the connection dies.
func (c *Conn) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.log.Debug("websocket read loop ended", "error", err)
			}
			c.mu.Lock()
			c.closed = true
			c.mu.Unlock()
			c.doneOnce.Do(func() { close(c.done) })
			c.teardown()
			return
		}
		c.dispatch(data)
	}
}

func (c *Conn) dispatch(data []byte) {
	var env wire.Response
	if err := wire.Unmarshal(data, &env); err != nil {
		c.log.Warn("dropping undecodable message", "error", err)
		return
	}

	if env.ID != "" {
		c.mu.Lock()
		ch, ok := c.resp[env.ID]
		c.mu.Unlock()
		if !ok {
			c.log.Warn("response for unknown request", "id", env.ID)
			return
		}
		ch <- response{env: env, raw: data}
		return
	}

	// No id: a push message.
	c.mu.Lock()
	push := c.push
	c.mu.Unlock()
	if push != nil {
		buf := make([]byte, len(data))
		copy(buf, data)
		select {
		case push <- buf:
		default:
			c.log.Warn("push feed overflow, dropping message")
		}
	}

	if env.Result == nil {
		return
	}
	v, err := values.Unmarshal(env.Result)
	if err != nil {
		c.log.Warn("undecodable push payload", "error", err)
		return
	}
	n, err := values.NotificationFromValue(v)
	if err != nil {
		c.log.Warn("push payload is not a notification", "error", err)
		return
	}

	c.mu.Lock()
	ch, ok := c.notif[n.QueryID]
	c.mu.Unlock()
	if !ok {
		c.log.Warn("notification for unknown live query", "query_id", n.QueryID.String())
		return
	}
	select {
	case ch <- n:
	default:
		c.log.Warn("live subscription overflow, dropping notification",
			"query_id", n.QueryID.String())
	}
}

// teardown closes notification and push channels exactly once, after the
// connection is marked closed.
func (c *Conn) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.notif {
		close(ch)
		delete(c.notif, id)
	}
	if c.push != nil {
		close(c.push)
		c.push = nil
	}
}
