package surreal

import (
	"context"

	"github.com/forgo/surreal/pkg/values"
)

// Stream is the single consumer of one live query's notifications.
//
// A Stream is an exclusive handle: it may be handed from one goroutine to
// another between calls, but two goroutines must never call Next or Kill
// concurrently. It carries no internal locking.
//
// A stream ends in one of two terminal states: Closed, when the server or
// connection ended the subscription, or Killed, after an explicit Kill.
// Both surface as Next returning ok == false.
type Stream struct {
	id     values.UUID
	ch     <-chan values.Notification
	kill   func(context.Context) error
	killed bool
}

// ID returns the live query's subscription id.
func (s *Stream) ID() values.UUID { return s.id }

// Next blocks until a notification arrives, the stream ends, or ctx is
// done. It returns ok == true with a notification, or ok == false when no
// further notifications will arrive (stream closed or killed) or the
// context was canceled. After a false return due to stream end, every later
// call returns false immediately.
func (s *Stream) Next(ctx context.Context) (*values.Notification, bool) {
	if s.killed {
		return nil, false
	}
	select {
	case n, ok := <-s.ch:
		if !ok {
			return nil, false
		}
		return &n, true
	case <-ctx.Done():
		return nil, false
	}
}

// Kill terminates the subscription. Subsequent Next calls return false
// without blocking. Kill is idempotent; only the first call reaches the
// backend.
func (s *Stream) Kill(ctx context.Context) error {
	if s.killed {
		return nil
	}
	s.killed = true
	return s.kill(ctx)
}
