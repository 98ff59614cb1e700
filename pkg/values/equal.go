package values

import "bytes"

// Equal reports deep structural equality of two Values.
//
// Values of different kinds are never equal. Array comparison is
// order-dependent; Object comparison is order-independent. An integer
// Number and a float Number are different kinds of Number and do not
// compare equal even when numerically identical.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNone, KindNull:
		return true
	case KindBool:
		return a.boolean == b.boolean
	case KindNumber:
		return numberEqual(a.number, b.number)
	case KindStrand, KindDatetime:
		return a.str == b.str
	case KindDuration:
		return a.duration == b.duration
	case KindUUID:
		return a.uuid == b.uuid
	case KindArray:
		return arrayEqual(a.array, b.array)
	case KindObject:
		return objectEqual(a.object, b.object)
	case KindBytes:
		return bytes.Equal(a.bytes, b.bytes)
	case KindThing:
		return thingEqual(a.thing, b.thing)
	default:
		return false
	}
}

func numberEqual(a, b Number) bool {
	if a.float != b.float {
		return false
	}
	if a.float {
		return a.f == b.f
	}
	return a.i == b.i
}

func arrayEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func objectEqual(a, b *Object) bool {
	if a == nil {
		return b == nil || b.Len() == 0
	}
	if b == nil {
		return a.Len() == 0
	}
	if a.Len() != b.Len() {
		return false
	}
	for k, av := range a.entries {
		bv, ok := b.entries[k]
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

func idEqual(a, b ID) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case IDInt:
		return a.i == b.i
	case IDString:
		return a.s == b.s
	case IDArray:
		return arrayEqual(a.arr, b.arr)
	case IDObject:
		return objectEqual(a.obj, b.obj)
	default:
		return false
	}
}

func thingEqual(a, b Thing) bool {
	return a.Table == b.Table && idEqual(a.ID, b.ID)
}
