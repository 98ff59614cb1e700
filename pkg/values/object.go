package values

// Object is an insertion-ordered map from string keys to Values.
// Keys are unique; inserting under an existing key overwrites the value
// but keeps the key's original position. Iteration order is insertion
// order, but equality between Objects ignores it.
//
// Object is not safe for concurrent mutation.
type Object struct {
	keys    []string
	entries map[string]Value
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{entries: make(map[string]Value)}
}

// Insert sets key to v, overwriting any existing entry (last insert wins).
func (o *Object) Insert(key string, v Value) {
	if _, ok := o.entries[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.entries[key] = v
}

// InsertString is sugar for Insert(key, NewStrand(v)).
func (o *Object) InsertString(key, v string) { o.Insert(key, NewStrand(v)) }

// InsertInt is sugar for Insert(key, NewInt(v)).
func (o *Object) InsertInt(key string, v int64) { o.Insert(key, NewInt(v)) }

// InsertFloat is sugar for Insert(key, NewFloat(v)). Both C float and
// double map onto the single float64 Number variant, so one method covers
// both widths.
func (o *Object) InsertFloat(key string, v float64) { o.Insert(key, NewFloat(v)) }

// InsertBool is sugar for Insert(key, NewBool(v)).
func (o *Object) InsertBool(key string, v bool) { o.Insert(key, NewBool(v)) }

// Get returns the value stored under key. The second return is false when
// the key is absent, which is distinct from a present Null value.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.entries[key]
	return v, ok
}

// Remove deletes key if present.
func (o *Object) Remove(key string) {
	if _, ok := o.entries[key]; !ok {
		return
	}
	delete(o.entries, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (o *Object) Len() int { return len(o.entries) }

// Keys returns the keys in insertion order. The slice is a copy.
func (o *Object) Keys() []string {
	keys := make([]string, len(o.keys))
	copy(keys, o.keys)
	return keys
}

// Clone returns a deep copy.
func (o *Object) Clone() *Object {
	out := NewObject()
	for _, k := range o.keys {
		out.Insert(k, cloneValue(o.entries[k]))
	}
	return out
}

func cloneValue(v Value) Value {
	switch v.kind {
	case KindArray:
		arr := make([]Value, len(v.array))
		for i, e := range v.array {
			arr[i] = cloneValue(e)
		}
		return NewArray(arr)
	case KindObject:
		return NewObjectValue(v.object.Clone())
	case KindBytes:
		b := make([]byte, len(v.bytes))
		copy(b, v.bytes)
		return NewBytes(b)
	case KindThing:
		return NewThing(cloneThing(v.thing))
	default:
		return v
	}
}

func cloneThing(t Thing) Thing {
	switch t.ID.kind {
	case IDArray:
		arr := make([]Value, len(t.ID.arr))
		for i, e := range t.ID.arr {
			arr[i] = cloneValue(e)
		}
		return Thing{Table: t.Table, ID: ArrayID(arr)}
	case IDObject:
		return Thing{Table: t.Table, ID: ObjectID(t.ID.obj.Clone())}
	default:
		return t
	}
}
