package types

import "testing"

func TestSimpleTypesIntern(t *testing.T) {
	if I32() != I32() {
		t.Error("I32() should return the same handle on every call")
	}
	if I1() != I1() {
		t.Error("I1() should return the same handle on every call")
	}
	if Unit() != Unit() {
		t.Error("Unit() should return the same handle on every call")
	}
	if OpaquePointer() != OpaquePointer() {
		t.Error("OpaquePointer() should return the same handle on every call")
	}
	if I32() == I1() {
		t.Error("distinct type constructors must not collide")
	}
}

func TestPointerInterning(t *testing.T) {
	p1 := Pointer(I32())
	p2 := Pointer(I32())
	if p1 != p2 {
		t.Error("Pointer(i32) should intern to a single handle")
	}
	pp1 := Pointer(Pointer(I32()))
	pp2 := Pointer(Pointer(I32()))
	if pp1 != pp2 {
		t.Error("Pointer(Pointer(i32)) should intern to a single handle")
	}
	if pp1 == p1 {
		t.Error("i32** must not collide with i32*")
	}
}

func TestFunctionInterning(t *testing.T) {
	f1 := Function([]*Type{I32(), I32()}, I32())
	f2 := Function([]*Type{I32(), I32()}, I32())
	if f1 != f2 {
		t.Error("structurally equal function types should intern to one handle")
	}
	f3 := Function([]*Type{I32(), I1()}, I32())
	if f1 == f3 {
		t.Error("function types with different params must not collide")
	}
	f4 := Function(nil, Unit())
	if f4.String() != "fn() -> ()" {
		t.Errorf("got %q", f4.String())
	}
}

func TestDerefMatches(t *testing.T) {
	pi32 := Pointer(I32())
	if !pi32.DerefMatches(I32()) {
		t.Error("i32* should deref-match i32")
	}
	if pi32.DerefMatches(I1()) {
		t.Error("i32* should not deref-match i1")
	}
	if !OpaquePointer().DerefMatches(I32()) {
		t.Error("opaque ptr should deref-match anything")
	}
	if !OpaquePointer().DerefMatches(Unit()) {
		t.Error("opaque ptr should deref-match anything, including unit")
	}
}

func TestPointerBase(t *testing.T) {
	base, ok := Pointer(I32()).PointerBase()
	if !ok || base != I32() {
		t.Errorf("PointerBase() = %v, %v; want i32, true", base, ok)
	}
	if _, ok := OpaquePointer().PointerBase(); ok {
		t.Error("opaque pointer has no static pointee")
	}
}

func TestStringForms(t *testing.T) {
	cases := []struct {
		ty   *Type
		want string
	}{
		{I32(), "i32"},
		{I1(), "i1"},
		{Unit(), "()"},
		{Pointer(I32()), "i32*"},
		{Pointer(Pointer(I32())), "i32**"},
		{OpaquePointer(), "ptr"},
		{Function([]*Type{I32(), I32()}, I1()), "fn(i32, i32) -> i1"},
	}
	for _, c := range cases {
		if got := c.ty.String(); got != c.want {
			t.Errorf("String() = %q, want %q", got, c.want)
		}
	}
}
