package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/floatshadow/accipit/internal/ir"
)

const addSrc = `
fn @main(#a: i32, #b: i32) -> i32 {
%entry:
  let %r: i32 = add #a, #b
  ret %r
}
`

func TestParseAddition(t *testing.T) {
	mod, err := Parse(addSrc, "add_mod")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f, _, ok := mod.GetFunctionByName("main")
	if !ok {
		t.Fatal("function main not found")
	}
	if f.NumBlocks() != 1 {
		t.Fatalf("expected 1 block, got %d", f.NumBlocks())
	}
}

const maxSrc = `
fn @max(#x: i32, #y: i32) -> i32 {
%entry:
  let %c: i1 = gt #x, #y
  br %c, label %t, label %f
%t: ret #x
%f: ret #y
}
fn @main(#a: i32, #b: i32) -> i32 {
%e: let %m: i32 = call @max, #a, #b
    ret %m
}
`

func TestParseBranchAndForwardLabels(t *testing.T) {
	mod, err := Parse(maxSrc, "max_mod")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	max, _, ok := mod.GetFunctionByName("max")
	if !ok {
		t.Fatal("function max not found")
	}
	if max.NumBlocks() != 3 {
		t.Fatalf("expected 3 blocks, got %d", max.NumBlocks())
	}
	for i := 0; i < max.NumBlocks(); i++ {
		bb := max.Block(ir.BlockRef(i))
		if !bb.Attached() {
			t.Errorf("block %q never attached (dangling label)", bb.Name)
		}
	}
}

const globalSrc = `
@g: region i32, 1
fn @putint(#x: i32) -> ();
fn @main() -> () {
%e:
  let %u1: () = store 42, @g
  let %v: i32 = load @g
  let %u2: () = call @putint, %v
  ret ()
}
`

func TestParseGlobalsAndExternalCalls(t *testing.T) {
	mod, err := Parse(globalSrc, "global_mod")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(mod.Globals) != 1 {
		t.Fatalf("expected 1 global, got %d", len(mod.Globals))
	}
	putint, _, ok := mod.GetFunctionByName("putint")
	if !ok || !putint.IsExternal {
		t.Fatal("expected external declaration for putint")
	}
}

func TestParseRejectsDanglingLabel(t *testing.T) {
	src := `
fn @bad() -> () {
%e:
  jmp label %never
}
`
	if _, err := Parse(src, "m"); err == nil {
		t.Error("expected a parse error for an undefined label")
	}
}

func TestDumpRoundTrip(t *testing.T) {
	mod, err := Parse(maxSrc, "max_mod")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	dump := ir.String(mod)

	reparsed, err := Parse(dump, "max_mod")
	if err != nil {
		t.Fatalf("re-parsing dump output failed: %v\ndump:\n%s", err, dump)
	}
	if strings.Count(dump, "fn @") != 2 {
		t.Fatalf("expected 2 function headers in dump, got:\n%s", dump)
	}
	if _, _, ok := reparsed.GetFunctionByName("max"); !ok {
		t.Error("re-parsed module missing function max")
	}
	if _, _, ok := reparsed.GetFunctionByName("main"); !ok {
		t.Error("re-parsed module missing function main")
	}

	// The dump format must round-trip exactly: printing what was just
	// re-parsed from a dump should reproduce that same dump, byte for
	// byte (spec.md §8's round-trip property).
	if diff := cmp.Diff(dump, ir.String(reparsed)); diff != "" {
		t.Errorf("dump output did not round-trip (-first +second):\n%s", diff)
	}
}
