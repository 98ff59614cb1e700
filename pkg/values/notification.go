package values

import (
	"errors"
	"fmt"
)

// Action is the kind of change reported by a live-query notification.
type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "CREATE"
	case ActionUpdate:
		return "UPDATE"
	case ActionDelete:
		return "DELETE"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

var ErrBadAction = errors.New("unknown notification action")

// ParseAction parses the wire form ("CREATE", "UPDATE", "DELETE").
func ParseAction(s string) (Action, error) {
	switch s {
	case "CREATE":
		return ActionCreate, nil
	case "UPDATE":
		return ActionUpdate, nil
	case "DELETE":
		return ActionDelete, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrBadAction, s)
	}
}

// Notification is one live-query event: which subscription it belongs to,
// what happened, and the affected record value.
type Notification struct {
	QueryID UUID
	Action  Action
	Data    Value
}

// NotificationValue renders a Notification as the wire-level Object with
// id, action and result entries.
func NotificationValue(n Notification) Value {
	obj := NewObject()
	obj.Insert("id", NewUUID(n.QueryID))
	obj.InsertString("action", n.Action.String())
	obj.Insert("result", n.Data)
	return NewObjectValue(obj)
}

// NotificationFromValue decodes the wire-level Object form produced by the
// server (or by NotificationValue).
func NotificationFromValue(v Value) (Notification, error) {
	obj, ok := v.Object()
	if !ok {
		return Notification{}, fmt.Errorf("notification is not an object: %s", v.Kind())
	}
	var n Notification

	idv, ok := obj.Get("id")
	if !ok {
		return Notification{}, errors.New("notification has no id")
	}
	switch idv.Kind() {
	case KindUUID:
		n.QueryID, _ = idv.UUID()
	case KindStrand:
		s, _ := idv.Strand()
		u, err := ParseUUID(s)
		if err != nil {
			return Notification{}, fmt.Errorf("notification id: %w", err)
		}
		n.QueryID = u
	default:
		return Notification{}, fmt.Errorf("notification id has kind %s", idv.Kind())
	}

	av, ok := obj.Get("action")
	if !ok {
		return Notification{}, errors.New("notification has no action")
	}
	s, ok := av.Strand()
	if !ok {
		return Notification{}, fmt.Errorf("notification action has kind %s", av.Kind())
	}
	action, err := ParseAction(s)
	if err != nil {
		return Notification{}, err
	}
	n.Action = action

	n.Data, _ = obj.Get("result")
	return n, nil
}
