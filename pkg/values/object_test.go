package values

import (
	"reflect"
	"testing"
)

func TestObject_InsertAndGet(t *testing.T) {
	obj := NewObject()
	obj.InsertString("name", "tobie")
	obj.InsertInt("age", 30)
	obj.InsertBool("active", true)
	obj.InsertFloat("score", 9.5)

	if obj.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", obj.Len())
	}
	v, ok := obj.Get("name")
	if !ok {
		t.Fatal("name is absent")
	}
	if s, _ := v.Strand(); s != "tobie" {
		t.Errorf("name = %q", s)
	}
	if _, ok := obj.Get("missing"); ok {
		t.Error("Get returned a value for a missing key")
	}
}

func TestObject_AbsentKeyDistinctFromNull(t *testing.T) {
	obj := NewObject()
	obj.Insert("note", NewNull())

	v, ok := obj.Get("note")
	if !ok || !v.IsNull() {
		t.Errorf("Get(note) = (%s, %v), want (null, true)", v.Kind(), ok)
	}
	if _, ok := obj.Get("gone"); ok {
		t.Error("absent key reported present")
	}
}

func TestObject_OverwriteKeepsPosition(t *testing.T) {
	obj := NewObject()
	obj.InsertInt("a", 1)
	obj.InsertInt("b", 2)
	obj.InsertInt("a", 3)

	if obj.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", obj.Len())
	}
	if got := obj.Keys(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Keys() = %v, want [a b]", got)
	}
	v, _ := obj.Get("a")
	if n, _ := v.Number(); !numberEqual(n, IntNumber(3)) {
		t.Errorf("a = %s, want 3", n)
	}
}

func TestObject_Remove(t *testing.T) {
	obj := NewObject()
	obj.InsertInt("a", 1)
	obj.InsertInt("b", 2)
	obj.Remove("a")
	obj.Remove("never") // no-op

	if obj.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", obj.Len())
	}
	if got := obj.Keys(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Keys() = %v, want [b]", got)
	}
	if _, ok := obj.Get("a"); ok {
		t.Error("removed key still present")
	}
}

func TestObject_CloneIsDeep(t *testing.T) {
	inner := NewObject()
	inner.InsertString("city", "london")
	obj := NewObject()
	obj.Insert("addr", NewObjectValue(inner))
	obj.Insert("tags", NewArray([]Value{NewStrand("x")}))

	clone := obj.Clone()
	inner.InsertString("city", "paris")

	v, _ := clone.Get("addr")
	cloned, _ := v.Object()
	city, _ := cloned.Get("city")
	if s, _ := city.Strand(); s != "london" {
		t.Errorf("clone observed mutation of the original: city = %q", s)
	}
}
