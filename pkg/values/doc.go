// Package values implements the value model shared by every part of the
// surreal client: a closed, tagged representation of any database value.
//
// # Value
//
// Value is a discriminated union over twelve kinds (None, Null, Bool,
// Number, Strand, Duration, Datetime, UUID, Array, Object, Bytes, Thing).
// Exactly one payload is meaningful per kind. Payloads are reached through
// comma-ok accessors, which return false when the Value holds a different
// kind:
//
//	v := values.NewInt(42)
//	if n, ok := v.Number(); ok {
//	    i, _ := n.Int()
//	    fmt.Println(i) // 42
//	}
//
// # Object
//
// Object is an insertion-ordered map from string keys to Values. Inserting
// under an existing key overwrites the value but keeps the key's original
// position. Get distinguishes an absent key from a key holding Null:
//
//	obj := values.NewObject()
//	obj.InsertString("name", "tobie")
//	obj.InsertInt("age", 30)
//
// # Equality
//
// Equal performs deep structural comparison. Array comparison is
// order-dependent; Object comparison is order-independent (two Objects with
// the same key/value pairs are equal regardless of insertion order).
// Integer and float Numbers are distinct kinds and never compare equal.
//
// # Wire format
//
// Marshal and Unmarshal convert Values to and from the CBOR wire encoding
// used by the SurrealDB RPC protocol, including its custom tags for None,
// record IDs, durations, datetimes and UUIDs.
package values
