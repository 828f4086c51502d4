package ir

import (
	"strings"
	"testing"

	"github.com/floatshadow/accipit/internal/types"
)

// buildAddOne constructs the module for:
//
//	fn @add_one(#x: i32) -> i32 {
//	%entry:
//	  let %y: i32 = add #x, 1
//	  ret %y
//	}
func buildAddOne() *Module {
	m := NewModule("add_one_mod")
	f := &Function{
		Type: types.Function([]*types.Type{types.I32()}, types.I32()),
		Name: "add_one",
	}
	xRef := m.InsertValue(&Value{Type: types.I32(), Name: "x", Kind: Argument{Index: 0}})
	f.Params = []ValueRef{xRef}

	one := m.InsertValue(&Value{Type: types.I32(), Kind: ConstInt{Val: 1}})
	entry := NewDanglingBlock("entry")
	entryRef := f.InsertDanglingBlock(entry)
	f.Attach(entryRef)

	y := m.InsertValue(&Value{Type: types.I32(), Name: "y", Kind: Binary{Op: Add, LHS: xRef, RHS: one}})
	entry.AppendInstr(y)
	entry.SetTerminator(Return{Value: y})

	m.InsertFunction(f)
	return m
}

func TestPrintRoundTripShape(t *testing.T) {
	m := buildAddOne()
	out := String(m)

	wantLines := []string{
		"fn @add_one(#x: i32) -> i32 {",
		"%entry:",
		"let %y: i32 = add #x, 1",
		"ret %y",
		"}",
	}
	for _, want := range wantLines {
		if !strings.Contains(out, want) {
			t.Errorf("dump output missing %q; got:\n%s", want, out)
		}
	}
}

func TestPrintExternalFunctionHasNoBody(t *testing.T) {
	m := NewModule("mod")
	f := &Function{
		Type:       types.Function([]*types.Type{types.I32()}, types.Unit()),
		Name:       "putint",
		IsExternal: true,
	}
	pRef := m.InsertValue(&Value{Type: types.I32(), Name: "x", Kind: Argument{Index: 0}})
	f.Params = []ValueRef{pRef}
	m.InsertFunction(f)

	out := String(m)
	if !strings.Contains(out, "fn @putint(#x: i32) -> ();") {
		t.Errorf("expected external function declaration with trailing semicolon, got:\n%s", out)
	}
	if strings.Contains(out, "{") {
		t.Errorf("external function must not print a body, got:\n%s", out)
	}
}

func TestPrintGlobal(t *testing.T) {
	m := NewModule("mod")
	g := m.InsertValue(&Value{Type: types.Pointer(types.I32()), Name: "counter", Kind: GlobalVar{ElemType: types.I32(), Size: 1}})
	m.AddGlobal(g)

	out := String(m)
	if !strings.Contains(out, "@counter: region i32, 1") {
		t.Errorf("expected global declaration, got:\n%s", out)
	}
}
