package wsconn

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/forgo/surreal/internal/wire"
	"github.com/forgo/surreal/pkg/values"
)

// fakeServer speaks just enough of the CBOR RPC protocol to drive the
// transport: version, use, live, kill and create, where create also emits a
// push notification for every live subscription.
type fakeServer struct {
	upgrader gorilla.Upgrader

	mu    sync.Mutex
	lives []values.UUID
}

func newFakeServer(t *testing.T) string {
	t.Helper()
	fs := &fakeServer{
		upgrader: gorilla.Upgrader{Subprotocols: []string{"cbor"}},
	}
	srv := httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (fs *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/rpc" {
		http.NotFound(w, r)
		return
	}
	sock, err := fs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer sock.Close()

	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			return
		}
		var req wire.Request
		if err := wire.Unmarshal(data, &req); err != nil {
			continue
		}
		fs.serve(sock, req)
	}
}

func (fs *fakeServer) serve(sock *gorilla.Conn, req wire.Request) {
	switch req.Method {
	case wire.MethodVersion:
		fs.reply(sock, req.ID, values.NewStrand("surrealdb-fake-1.0"))

	case wire.MethodUse, wire.MethodKill:
		fs.reply(sock, req.ID, values.NewNone())

	case wire.MethodLive:
		id := values.NewRandomUUID()
		fs.mu.Lock()
		fs.lives = append(fs.lives, id)
		fs.mu.Unlock()
		fs.reply(sock, req.ID, values.NewUUID(id))

	case wire.MethodCreate:
		record := values.NewObject()
		record.InsertString("name", "tobie")
		fs.reply(sock, req.ID, values.NewObjectValue(record))

		fs.mu.Lock()
		lives := append([]values.UUID(nil), fs.lives...)
		fs.mu.Unlock()
		for _, id := range lives {
			n := values.Notification{
				QueryID: id,
				Action:  values.ActionCreate,
				Data:    values.NewObjectValue(record),
			}
			raw, err := values.Marshal(values.NotificationValue(n))
			if err != nil {
				continue
			}
			msg, err := wire.Marshal(wire.Response{Result: raw})
			if err != nil {
				continue
			}
			sock.WriteMessage(gorilla.BinaryMessage, msg)
		}

	default:
		msg, err := wire.Marshal(wire.Response{
			ID:    req.ID,
			Error: &wire.Error{Code: -32601, Message: "unknown method " + req.Method},
		})
		if err != nil {
			return
		}
		sock.WriteMessage(gorilla.BinaryMessage, msg)
	}
}

func (fs *fakeServer) reply(sock *gorilla.Conn, id string, v values.Value) {
	raw, err := values.Marshal(v)
	if err != nil {
		return
	}
	msg, err := wire.Marshal(wire.Response{ID: id, Result: raw})
	if err != nil {
		return
	}
	sock.WriteMessage(gorilla.BinaryMessage, msg)
}

func dialFake(t *testing.T) *Conn {
	t.Helper()
	c, err := Dial(context.Background(), newFakeServer(t), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close(context.Background()) })
	return c
}

func TestConn_SendVersion(t *testing.T) {
	c := dialFake(t)

	v, err := c.Send(context.Background(), wire.MethodVersion)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if s, ok := v.Strand(); !ok || s != "surrealdb-fake-1.0" {
		t.Errorf("version = (%q, %v)", s, ok)
	}
}

func TestConn_ServerErrorSurfacesAsWireError(t *testing.T) {
	c := dialFake(t)

	_, err := c.Send(context.Background(), "bogus")
	var rpcErr *wire.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32601 {
		t.Errorf("got %v, want *wire.Error code -32601", err)
	}
}

func TestConn_ExecuteRawEnvelope(t *testing.T) {
	c := dialFake(t)

	req, err := wire.Marshal(wire.Request{ID: "raw-1", Method: wire.MethodVersion})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := c.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var resp wire.Response
	if err := wire.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "raw-1" {
		t.Errorf("response id = %q, want raw-1", resp.ID)
	}
}

func TestConn_ExecuteRequiresID(t *testing.T) {
	c := dialFake(t)

	req, _ := wire.Marshal(wire.Request{Method: wire.MethodVersion})
	_, err := c.Execute(context.Background(), req)
	var rpcErr *wire.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32600 {
		t.Errorf("got %v, want *wire.Error code -32600", err)
	}
}

func TestConn_ConcurrentSendsCorrelate(t *testing.T) {
	c := dialFake(t)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Send(context.Background(), wire.MethodVersion)
			if err != nil {
				errs <- err
				return
			}
			if s, _ := v.Strand(); s != "surrealdb-fake-1.0" {
				errs <- errors.New("mismatched response: " + s)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestConn_LiveNotifications(t *testing.T) {
	ctx := context.Background()
	c := dialFake(t)

	id, ch, err := c.Live(ctx, "person")
	if err != nil {
		t.Fatalf("Live: %v", err)
	}

	if _, err := c.Send(ctx, wire.MethodCreate, values.NewStrand("person")); err != nil {
		t.Fatalf("create: %v", err)
	}

	select {
	case n, ok := <-ch:
		if !ok {
			t.Fatal("notification channel closed")
		}
		if n.QueryID != id {
			t.Errorf("QueryID = %s, want %s", n.QueryID, id)
		}
		if n.Action != values.ActionCreate {
			t.Errorf("Action = %s, want CREATE", n.Action)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}

	if err := c.Kill(ctx, id); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("notification after Kill")
		}
	case <-time.After(time.Second):
		t.Error("channel not closed after Kill")
	}
}

func TestConn_PushMessages(t *testing.T) {
	ctx := context.Background()
	c := dialFake(t)

	push, err := c.PushMessages()
	if err != nil {
		t.Fatalf("PushMessages: %v", err)
	}
	if _, _, err := c.Live(ctx, "person"); err != nil {
		t.Fatalf("Live: %v", err)
	}
	if _, err := c.Send(ctx, wire.MethodCreate, values.NewStrand("person")); err != nil {
		t.Fatalf("create: %v", err)
	}

	select {
	case raw := <-push:
		var resp wire.Response
		if err := wire.Unmarshal(raw, &resp); err != nil {
			t.Fatalf("decode push: %v", err)
		}
		if resp.ID != "" {
			t.Errorf("push has id %q, want none", resp.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("no push message")
	}
}

func TestConn_CloseSemantics(t *testing.T) {
	ctx := context.Background()
	c, err := Dial(ctx, newFakeServer(t), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(ctx); !errors.Is(err, wire.ErrClosed) {
		t.Errorf("second Close = %v, want ErrClosed", err)
	}
	if _, err := c.Send(ctx, wire.MethodVersion); !errors.Is(err, wire.ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestConn_ServerCloseEndsStreams(t *testing.T) {
	ctx := context.Background()
	fs := &fakeServer{upgrader: gorilla.Upgrader{Subprotocols: []string{"cbor"}}}
	srv := httptest.NewServer(http.HandlerFunc(fs.handle))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	c, err := Dial(ctx, url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close(context.Background())

	_, ch, err := c.Live(ctx, "person")
	if err != nil {
		srv.Close()
		t.Fatalf("Live: %v", err)
	}

	srv.CloseClientConnections()
	srv.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("notification after the server went away")
		}
	case <-time.After(time.Second):
		t.Error("live channel not closed after connection loss")
	}

	if _, err := c.Send(ctx, wire.MethodVersion); !errors.Is(err, wire.ErrClosed) {
		t.Errorf("Send after connection loss = %v, want ErrClosed", err)
	}
}
