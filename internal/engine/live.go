package engine

import (
	"github.com/forgo/surreal/internal/wire"
	"github.com/forgo/surreal/pkg/values"
)

// notifyBuffer bounds each subscription channel. A consumer that falls this
// far behind starts losing the oldest undelivered notifications; delivery
// order within a subscription is otherwise emission order.
const notifyBuffer = 256

type subscription struct {
	id     values.UUID
	ns, db string
	table  string
	ch     chan values.Notification
}

// Live registers a live query against a whole table and returns its
// subscription ID.
func (e *Engine) Live(table string) (values.UUID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return values.UUID{}, wire.ErrClosed
	}
	if err := e.needSession(); err != nil {
		return values.UUID{}, err
	}
	if table == "" || containsColon(table) {
		return values.UUID{}, failed("live queries subscribe to a whole table, got %q", table)
	}
	sub := &subscription{
		id:    values.NewRandomUUID(),
		ns:    e.ns,
		db:    e.db,
		table: table,
		ch:    make(chan values.Notification, notifyBuffer),
	}
	e.subs[sub.id] = sub
	return sub.id, nil
}

// Kill terminates a live query. The subscriber's channel is closed, so a
// blocked receiver wakes with end of stream.
func (e *Engine) Kill(id values.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return wire.ErrClosed
	}
	sub, ok := e.subs[id]
	if !ok {
		return failed("no live query with id %s", id)
	}
	close(sub.ch)
	delete(e.subs, id)
	return nil
}

// Notifications returns the channel feeding a subscription.
func (e *Engine) Notifications(id values.UUID) (<-chan values.Notification, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sub, ok := e.subs[id]
	if !ok {
		return nil, false
	}
	return sub.ch, true
}

// EnablePush turns on the raw push feed: every notification dispatched to
// any subscription is also delivered here. Used by the raw RPC channel.
func (e *Engine) EnablePush() <-chan values.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.push == nil && !e.closed {
		e.push = make(chan values.Notification, notifyBuffer)
	}
	return e.push
}

// notify dispatches one change event to every matching subscription.
// Callers hold e.mu.
func (e *Engine) notify(table string, action values.Action, data values.Value) {
	for _, sub := range e.subs {
		if sub.ns != e.ns || sub.db != e.db || sub.table != table {
			continue
		}
		n := values.Notification{QueryID: sub.id, Action: action, Data: data}
		select {
		case sub.ch <- n:
		default:
			// Drop the oldest so the consumer sees the freshest tail.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- n:
			default:
			}
			e.log.Warn("live subscription overflow, dropping notification",
				"query_id", sub.id.String(), "table", table)
		}
		if e.push != nil {
			select {
			case e.push <- n:
			default:
			}
		}
	}
}
