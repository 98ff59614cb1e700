package values

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Custom CBOR tag numbers of the SurrealDB wire protocol.
const (
	tagDatetimeString  uint64 = 0
	tagNone            uint64 = 6
	tagTable           uint64 = 7
	tagRecordID        uint64 = 8
	tagUUIDString      uint64 = 9
	tagDecimalString   uint64 = 10
	tagDatetimeCompact uint64 = 12
	tagDurationString  uint64 = 13
	tagDurationCompact uint64 = 14
	tagUUIDBinary      uint64 = 37
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{}.EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal encodes a Value into the CBOR wire encoding.
//
// Object entries are encoded as a CBOR map, which does not carry insertion
// order; this is permitted because Object equality is order-independent.
func Marshal(v Value) ([]byte, error) {
	return encMode.Marshal(v.wire())
}

// Unmarshal decodes a CBOR wire encoding into a Value.
func Unmarshal(data []byte) (Value, error) {
	var raw any
	if err := decMode.Unmarshal(data, &raw); err != nil {
		return Value{}, err
	}
	return fromWire(raw)
}

func (v Value) wire() any {
	switch v.kind {
	case KindNone:
		return cbor.Tag{Number: tagNone, Content: nil}
	case KindNull:
		return nil
	case KindBool:
		return v.boolean
	case KindNumber:
		if v.number.float {
			return v.number.f
		}
		return v.number.i
	case KindStrand:
		return v.str
	case KindDuration:
		return cbor.Tag{Number: tagDurationCompact, Content: []any{v.duration.Secs, v.duration.Nanos}}
	case KindDatetime:
		return cbor.Tag{Number: tagDatetimeString, Content: v.str}
	case KindUUID:
		return cbor.Tag{Number: tagUUIDBinary, Content: v.uuid.UUID[:]}
	case KindArray:
		out := make([]any, len(v.array))
		for i, e := range v.array {
			out[i] = e.wire()
		}
		return out
	case KindObject:
		out := make(map[string]any, v.object.Len())
		for k, e := range v.object.entries {
			out[k] = e.wire()
		}
		return out
	case KindBytes:
		if v.bytes == nil {
			return []byte{}
		}
		return v.bytes
	case KindThing:
		return cbor.Tag{Number: tagRecordID, Content: []any{v.thing.Table, v.thing.ID.wire()}}
	default:
		return nil
	}
}

func (id ID) wire() any {
	switch id.kind {
	case IDInt:
		return id.i
	case IDString:
		return id.s
	case IDArray:
		out := make([]any, len(id.arr))
		for i, e := range id.arr {
			out[i] = e.wire()
		}
		return out
	case IDObject:
		return NewObjectValue(id.obj).wire()
	default:
		return nil
	}
}

func fromWire(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return NewNull(), nil
	case bool:
		return NewBool(x), nil
	case int64:
		return NewInt(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return Value{}, fmt.Errorf("integer %d overflows int64", x)
		}
		return NewInt(int64(x)), nil
	case float64:
		return NewFloat(x), nil
	case float32:
		return NewFloat(float64(x)), nil
	case string:
		return NewStrand(x), nil
	case []byte:
		return NewBytes(x), nil
	case []any:
		arr := make([]Value, len(x))
		for i, e := range x {
			v, err := fromWire(e)
			if err != nil {
				return Value{}, err
			}
			arr[i] = v
		}
		return NewArray(arr), nil
	case map[string]any:
		obj, err := objectFromWire(x)
		if err != nil {
			return Value{}, err
		}
		return NewObjectValue(obj), nil
	case cbor.Tag:
		return tagFromWire(x)
	case time.Time:
		return NewDatetimeTime(x), nil
	default:
		return Value{}, fmt.Errorf("unsupported wire type %T", raw)
	}
}

// objectFromWire sorts keys so that decoding is deterministic; the wire
// carries no insertion order.
func objectFromWire(m map[string]any) (*Object, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	obj := NewObject()
	for _, k := range keys {
		v, err := fromWire(m[k])
		if err != nil {
			return nil, err
		}
		obj.Insert(k, v)
	}
	return obj, nil
}

func tagFromWire(t cbor.Tag) (Value, error) {
	switch t.Number {
	case tagNone:
		return NewNone(), nil
	case tagDatetimeString:
		s, ok := t.Content.(string)
		if !ok {
			return Value{}, fmt.Errorf("datetime tag holds %T", t.Content)
		}
		return NewDatetime(s), nil
	case tagDatetimeCompact:
		secs, nanos, err := secsNanos(t.Content)
		if err != nil {
			return Value{}, fmt.Errorf("compact datetime: %w", err)
		}
		return NewDatetimeTime(time.Unix(secs, nanos)), nil
	case tagDurationCompact:
		secs, nanos, err := secsNanos(t.Content)
		if err != nil {
			return Value{}, fmt.Errorf("compact duration: %w", err)
		}
		if secs < 0 || nanos < 0 || nanos > math.MaxUint32 {
			return Value{}, fmt.Errorf("compact duration out of range: [%d, %d]", secs, nanos)
		}
		return NewDuration(Duration{Secs: uint64(secs), Nanos: uint32(nanos)}), nil
	case tagDurationString:
		s, ok := t.Content.(string)
		if !ok {
			return Value{}, fmt.Errorf("duration tag holds %T", t.Content)
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return Value{}, fmt.Errorf("duration string: %w", err)
		}
		return NewDuration(DurationFrom(d)), nil
	case tagUUIDString:
		s, ok := t.Content.(string)
		if !ok {
			return Value{}, fmt.Errorf("uuid tag holds %T", t.Content)
		}
		u, err := ParseUUID(s)
		if err != nil {
			return Value{}, err
		}
		return NewUUID(u), nil
	case tagUUIDBinary:
		b, ok := t.Content.([]byte)
		if !ok {
			return Value{}, fmt.Errorf("uuid tag holds %T", t.Content)
		}
		u, err := UUIDFromBytes(b)
		if err != nil {
			return Value{}, err
		}
		return NewUUID(u), nil
	case tagTable, tagDecimalString:
		s, ok := t.Content.(string)
		if !ok {
			return Value{}, fmt.Errorf("tag %d holds %T", t.Number, t.Content)
		}
		return NewStrand(s), nil
	case tagRecordID:
		return thingFromWire(t.Content)
	default:
		// Tolerate unknown tags by decoding their content; the protocol may
		// grow tags this layer does not model.
		return fromWire(t.Content)
	}
}

func thingFromWire(content any) (Value, error) {
	parts, ok := content.([]any)
	if !ok || len(parts) != 2 {
		return Value{}, fmt.Errorf("record id tag holds %T", content)
	}
	table, ok := parts[0].(string)
	if !ok {
		return Value{}, fmt.Errorf("record id table is %T", parts[0])
	}
	id, err := idFromWire(parts[1])
	if err != nil {
		return Value{}, err
	}
	return NewThing(Thing{Table: table, ID: id}), nil
}

func idFromWire(raw any) (ID, error) {
	switch x := raw.(type) {
	case int64:
		return IntID(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return ID{}, fmt.Errorf("record id %d overflows int64", x)
		}
		return IntID(int64(x)), nil
	case string:
		return StringID(x), nil
	case []any:
		arr := make([]Value, len(x))
		for i, e := range x {
			v, err := fromWire(e)
			if err != nil {
				return ID{}, err
			}
			arr[i] = v
		}
		return ArrayID(arr), nil
	case map[string]any:
		obj, err := objectFromWire(x)
		if err != nil {
			return ID{}, err
		}
		return ObjectID(obj), nil
	default:
		return ID{}, fmt.Errorf("unsupported record id type %T", raw)
	}
}

func secsNanos(content any) (secs, nanos int64, err error) {
	parts, ok := content.([]any)
	if !ok || len(parts) == 0 || len(parts) > 2 {
		return 0, 0, fmt.Errorf("want [secs, nanos], got %T", content)
	}
	secs, err = wireInt(parts[0])
	if err != nil {
		return 0, 0, err
	}
	if len(parts) == 2 {
		nanos, err = wireInt(parts[1])
		if err != nil {
			return 0, 0, err
		}
	}
	return secs, nanos, nil
}

func wireInt(raw any) (int64, error) {
	switch x := raw.(type) {
	case int64:
		return x, nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d overflows int64", x)
		}
		return int64(x), nil
	default:
		return 0, fmt.Errorf("want integer, got %T", raw)
	}
}
