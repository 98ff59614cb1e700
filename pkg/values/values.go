package values

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the variants of Value. The discriminant must be
// inspected (via Kind or the comma-ok accessors) before any payload is used.
type Kind int

const (
	KindNone Kind = iota
	KindNull
	KindBool
	KindNumber
	KindStrand
	KindDuration
	KindDatetime
	KindUUID
	KindArray
	KindObject
	KindBytes
	KindThing
)

var kindNames = map[Kind]string{
	KindNone:     "none",
	KindNull:     "null",
	KindBool:     "bool",
	KindNumber:   "number",
	KindStrand:   "strand",
	KindDuration: "duration",
	KindDatetime: "datetime",
	KindUUID:     "uuid",
	KindArray:    "array",
	KindObject:   "object",
	KindBytes:    "bytes",
	KindThing:    "thing",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is a closed tagged union representing any database value.
// The zero Value is None.
type Value struct {
	kind     Kind
	boolean  bool
	number   Number
	str      string // payload for Strand and Datetime
	duration Duration
	uuid     UUID
	array    []Value
	object   *Object
	bytes    []byte
	thing    Thing
}

// NewNone returns the None value ("no value", distinct from Null).
func NewNone() Value { return Value{kind: KindNone} }

// NewNull returns the explicit Null value.
func NewNull() Value { return Value{kind: KindNull} }

func NewBool(b bool) Value { return Value{kind: KindBool, boolean: b} }

func NewInt(i int64) Value { return Value{kind: KindNumber, number: IntNumber(i)} }

func NewFloat(f float64) Value { return Value{kind: KindNumber, number: FloatNumber(f)} }

func NewNumber(n Number) Value { return Value{kind: KindNumber, number: n} }

// NewStrand returns a string value.
func NewStrand(s string) Value { return Value{kind: KindStrand, str: s} }

func NewDuration(d Duration) Value { return Value{kind: KindDuration, duration: d} }

// NewDatetime returns a datetime value from its RFC 3339 representation.
// The string is not validated at this layer.
func NewDatetime(s string) Value { return Value{kind: KindDatetime, str: s} }

// NewDatetimeTime returns a datetime value rendered from t in UTC.
func NewDatetimeTime(t time.Time) Value {
	return NewDatetime(t.UTC().Format(time.RFC3339Nano))
}

func NewUUID(u UUID) Value { return Value{kind: KindUUID, uuid: u} }

func NewArray(vs []Value) Value { return Value{kind: KindArray, array: vs} }

// NewObjectValue wraps an Object. A nil Object is treated as empty.
func NewObjectValue(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: KindObject, object: o}
}

// NewBytes returns a byte-buffer value. A nil slice is a valid empty buffer.
func NewBytes(b []byte) Value { return Value{kind: KindBytes, bytes: b} }

func NewThing(t Thing) Value { return Value{kind: KindThing, thing: t} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNone() bool { return v.kind == KindNone }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.boolean, true
}

func (v Value) Number() (Number, bool) {
	if v.kind != KindNumber {
		return Number{}, false
	}
	return v.number, true
}

func (v Value) Strand() (string, bool) {
	if v.kind != KindStrand {
		return "", false
	}
	return v.str, true
}

func (v Value) Duration() (Duration, bool) {
	if v.kind != KindDuration {
		return Duration{}, false
	}
	return v.duration, true
}

func (v Value) Datetime() (string, bool) {
	if v.kind != KindDatetime {
		return "", false
	}
	return v.str, true
}

func (v Value) UUID() (UUID, bool) {
	if v.kind != KindUUID {
		return UUID{}, false
	}
	return v.uuid, true
}

func (v Value) Array() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.array, true
}

func (v Value) Object() (*Object, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.object, true
}

func (v Value) Bytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return v.bytes, true
}

func (v Value) Thing() (Thing, bool) {
	if v.kind != KindThing {
		return Thing{}, false
	}
	return v.thing, true
}

// Number holds either a 64-bit signed integer or a 64-bit float.
// The two variants are distinct: an integer 1 and a float 1.0 do not
// compare equal.
type Number struct {
	float bool
	i     int64
	f     float64
}

func IntNumber(i int64) Number { return Number{i: i} }

func FloatNumber(f float64) Number { return Number{float: true, f: f} }

func (n Number) IsFloat() bool { return n.float }

func (n Number) Int() (int64, bool) {
	if n.float {
		return 0, false
	}
	return n.i, true
}

func (n Number) Float() (float64, bool) {
	if !n.float {
		return 0, false
	}
	return n.f, true
}

func (n Number) String() string {
	if n.float {
		return strconv.FormatFloat(n.f, 'g', -1, 64)
	}
	return strconv.FormatInt(n.i, 10)
}

// Duration is a span of time as whole seconds plus nanoseconds.
// Nanos is below 1e9 by convention; this layer does not normalize.
type Duration struct {
	Secs  uint64
	Nanos uint32
}

// DurationFrom converts a non-negative time.Duration. Negative durations
// are clamped to zero.
func DurationFrom(d time.Duration) Duration {
	if d < 0 {
		d = 0
	}
	return Duration{
		Secs:  uint64(d / time.Second),
		Nanos: uint32(d % time.Second),
	}
}

// Std converts to time.Duration, saturating at the maximum representable.
func (d Duration) Std() time.Duration {
	const maxSecs = uint64(1<<63-1) / uint64(time.Second)
	if d.Secs >= maxSecs {
		return time.Duration(1<<63 - 1)
	}
	return time.Duration(d.Secs)*time.Second + time.Duration(d.Nanos)
}

func (d Duration) String() string { return d.Std().String() }

// UUID is a 16-byte identifier.
type UUID struct {
	uuid.UUID
}

// NewRandomUUID returns a random (version 4) UUID.
func NewRandomUUID() UUID { return UUID{uuid.New()} }

// ParseUUID parses the canonical textual form.
func ParseUUID(s string) (UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, err
	}
	return UUID{u}, nil
}

// UUIDFromBytes builds a UUID from exactly 16 raw bytes.
func UUIDFromBytes(b []byte) (UUID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return UUID{}, err
	}
	return UUID{u}, nil
}

// IDKind discriminates the variants of ID.
type IDKind int

const (
	IDInt IDKind = iota
	IDString
	IDArray
	IDObject
)

// ID is the unique key component of a record: an integer, a string, an
// array of Values, or an Object.
type ID struct {
	kind IDKind
	i    int64
	s    string
	arr  []Value
	obj  *Object
}

func IntID(i int64) ID { return ID{kind: IDInt, i: i} }

func StringID(s string) ID { return ID{kind: IDString, s: s} }

func ArrayID(vs []Value) ID { return ID{kind: IDArray, arr: vs} }

func ObjectID(o *Object) ID {
	if o == nil {
		o = NewObject()
	}
	return ID{kind: IDObject, obj: o}
}

// RandomID returns a fresh random string ID, used when a record is created
// without an explicit identifier.
func RandomID() ID { return StringID(strings.ReplaceAll(uuid.NewString(), "-", "")) }

func (id ID) Kind() IDKind { return id.kind }

func (id ID) Int() (int64, bool) {
	if id.kind != IDInt {
		return 0, false
	}
	return id.i, true
}

func (id ID) Str() (string, bool) {
	if id.kind != IDString {
		return "", false
	}
	return id.s, true
}

func (id ID) Values() ([]Value, bool) {
	if id.kind != IDArray {
		return nil, false
	}
	return id.arr, true
}

func (id ID) Object() (*Object, bool) {
	if id.kind != IDObject {
		return nil, false
	}
	return id.obj, true
}

// String renders the canonical textual form of the ID. Array and Object IDs
// render in literal form.
func (id ID) String() string {
	switch id.kind {
	case IDInt:
		return strconv.FormatInt(id.i, 10)
	case IDString:
		return id.s
	case IDArray:
		return NewArray(id.arr).String()
	case IDObject:
		return NewObjectValue(id.obj).String()
	default:
		return ""
	}
}

// Thing identifies one record as table plus ID, rendered "table:id".
type Thing struct {
	Table string
	ID    ID
}

var ErrBadThing = errors.New("invalid record reference (want table:id)")

// ParseThing splits "table:id" on the first colon. A purely numeric
// identifier parses as an integer ID, anything else as a string ID.
func ParseThing(s string) (Thing, error) {
	table, rest, ok := strings.Cut(s, ":")
	if !ok || table == "" || rest == "" {
		return Thing{}, fmt.Errorf("%w: %q", ErrBadThing, s)
	}
	if i, err := strconv.ParseInt(rest, 10, 64); err == nil {
		return Thing{Table: table, ID: IntID(i)}, nil
	}
	return Thing{Table: table, ID: StringID(rest)}, nil
}

func (t Thing) String() string { return t.Table + ":" + t.ID.String() }
