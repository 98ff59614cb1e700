package embed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/forgo/surreal/internal/engine"
	"github.com/forgo/surreal/internal/storage/memstore"
	"github.com/forgo/surreal/internal/wire"
	"github.com/forgo/surreal/pkg/values"
)

func newConn(t *testing.T) *Conn {
	t.Helper()
	c := New(memstore.New(), nil)
	t.Cleanup(func() { c.Close(context.Background()) })
	return c
}

func sessionConn(t *testing.T) *Conn {
	t.Helper()
	c := newConn(t)
	ctx := context.Background()
	if _, err := c.Send(ctx, wire.MethodUse, values.NewStrand("testns"), values.NewStrand("testdb")); err != nil {
		t.Fatalf("use: %v", err)
	}
	return c
}

func TestConn_Version(t *testing.T) {
	c := newConn(t)

	v, err := c.Send(context.Background(), wire.MethodVersion)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if s, ok := v.Strand(); !ok || s != engine.Version {
		t.Errorf("version = (%q, %v), want %q", s, ok, engine.Version)
	}
}

func TestConn_CreateSelectRoundTrip(t *testing.T) {
	c := sessionConn(t)
	ctx := context.Background()

	content := values.NewObject()
	content.InsertString("name", "tobie")
	created, err := c.Send(ctx, wire.MethodCreate,
		values.NewThing(values.Thing{Table: "person", ID: values.StringID("tobie")}),
		values.NewObjectValue(content))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	selected, err := c.Send(ctx, wire.MethodSelect,
		values.NewThing(values.Thing{Table: "person", ID: values.StringID("tobie")}))
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !values.Equal(created, selected) {
		t.Errorf("select = %s, want the created record %s", selected, created)
	}
}

func TestConn_UnknownMethod(t *testing.T) {
	c := newConn(t)

	_, err := c.Send(context.Background(), "bogus")
	var rpcErr *wire.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32601 {
		t.Errorf("unknown method = %v, want *wire.Error with code -32601", err)
	}
}

func TestConn_CanceledContext(t *testing.T) {
	c := newConn(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Send(ctx, wire.MethodVersion); !errors.Is(err, context.Canceled) {
		t.Errorf("Send on canceled context = %v", err)
	}
}

func TestConn_ExecuteRawEnvelope(t *testing.T) {
	c := newConn(t)

	req, err := wire.Marshal(wire.Request{ID: "req-1", Method: wire.MethodVersion})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := c.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var resp wire.Response
	if err := wire.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "req-1" {
		t.Errorf("response id = %q, want req-1", resp.ID)
	}
	if resp.Error != nil {
		t.Fatalf("response error: %v", resp.Error)
	}
	result, err := values.Unmarshal(resp.Result)
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if s, _ := result.Strand(); s != engine.Version {
		t.Errorf("result = %q, want %q", s, engine.Version)
	}
}

func TestConn_ExecuteReportsMethodErrorInEnvelope(t *testing.T) {
	c := newConn(t)

	req, _ := wire.Marshal(wire.Request{ID: "req-2", Method: "bogus"})
	raw, err := c.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var resp wire.Response
	if err := wire.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Errorf("response error = %v, want code -32601", resp.Error)
	}
}

func TestConn_ExecuteMalformedRequest(t *testing.T) {
	c := newConn(t)

	if _, err := c.Execute(context.Background(), []byte{0xff, 0x00}); err == nil {
		t.Error("malformed request executed")
	}
}

func TestConn_ExecuteWithParams(t *testing.T) {
	c := sessionConn(t)

	resource, err := cbor.Marshal("person")
	if err != nil {
		t.Fatal(err)
	}
	req, err := wire.Marshal(wire.Request{
		ID:     "req-3",
		Method: wire.MethodSelect,
		Params: []cbor.RawMessage{resource},
	})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := c.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var resp wire.Response
	if err := wire.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	result, err := values.Unmarshal(resp.Result)
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if arr, ok := result.Array(); !ok || len(arr) != 0 {
		t.Errorf("select on an empty table = %s, want empty array", result)
	}
}

func TestConn_LiveAndKill(t *testing.T) {
	c := sessionConn(t)
	ctx := context.Background()

	id, ch, err := c.Live(ctx, "person")
	if err != nil {
		t.Fatalf("Live: %v", err)
	}

	if _, err := c.Send(ctx, wire.MethodCreate, values.NewStrand("person")); err != nil {
		t.Fatalf("create: %v", err)
	}
	select {
	case n := <-ch:
		if n.QueryID != id || n.Action != values.ActionCreate {
			t.Errorf("notification = (%s, %s)", n.QueryID, n.Action)
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
	c := sessionConn(t)
	ctx := context.Background()

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
			t.Errorf("push message has id %q, want none", resp.ID)
		}
		v, err := values.Unmarshal(resp.Result)
		if err != nil {
			t.Fatalf("decode push result: %v", err)
		}
		n, err := values.NotificationFromValue(v)
		if err != nil {
			t.Fatalf("decode notification: %v", err)
		}
		if n.Action != values.ActionCreate {
			t.Errorf("push action = %s, want CREATE", n.Action)
		}
	case <-time.After(time.Second):
		t.Fatal("no push message")
	}
}

func TestConn_ClosedReturnsErrClosed(t *testing.T) {
	c := New(memstore.New(), nil)
	ctx := context.Background()
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := c.Send(ctx, wire.MethodVersion); !errors.Is(err, wire.ErrClosed) {
		t.Errorf("Send after close = %v, want ErrClosed", err)
	}
	if _, err := c.PushMessages(); !errors.Is(err, wire.ErrClosed) {
		t.Errorf("PushMessages after close = %v, want ErrClosed", err)
	}
	if err := c.Close(ctx); !errors.Is(err, wire.ErrClosed) {
		t.Errorf("second Close = %v, want ErrClosed", err)
	}
}
