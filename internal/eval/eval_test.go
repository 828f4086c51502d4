package eval_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/floatshadow/accipit/internal/eval"
	"github.com/floatshadow/accipit/internal/parser"
	"github.com/floatshadow/accipit/internal/rtbridge"
)

const additionSrc = `
fn @main(#a: i32, #b: i32) -> i32 {
%entry:
  let %r: i32 = add #a, #b
  ret %r
}
`

func TestScenarioAddition(t *testing.T) {
	mod, err := parser.Parse(additionSrc, "s1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	v, err := eval.Run(mod, "main", []eval.RVal{eval.RInt{Val: 3}, eval.RInt{Val: 4}}, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	ri, ok := v.(eval.RInt)
	if !ok || ri.Val != 7 {
		t.Fatalf("got %v, want RInt(7)", v)
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

func TestScenarioBranch(t *testing.T) {
	cases := []struct{ a, b, want int32 }{
		{9, 2, 9},
		{2, 9, 9},
		{5, 5, 5},
	}
	for _, c := range cases {
		mod, err := parser.Parse(maxSrc, "s2")
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		v, err := eval.Run(mod, "main", []eval.RVal{eval.RInt{Val: c.a}, eval.RInt{Val: c.b}}, nil, nil)
		if err != nil {
			t.Fatalf("Run(%d,%d): %v", c.a, c.b, err)
		}
		if ri, ok := v.(eval.RInt); !ok || ri.Val != c.want {
			t.Errorf("max(%d,%d) = %v, want %d", c.a, c.b, v, c.want)
		}
	}
}

// sumSrc sums the integers [0, #n) into a 16-element local array, one
// slot per iteration, then returns the total. The loop counter and
// accumulator live in alloca'd cells rather than bare registers: this
// grammar has no phi or block-parameter form, and a register bound once
// in %h is never reassigned by %b, so a register alone can't carry
// state across iterations. A cell does, because %h's `load` re-executes
// (and rebinds its own value) on every visit to the block, always
// picking up whatever %b most recently stored.
const sumSrc = `
fn @sum(#n: i32) -> i32 {
%e:
  let %p: i32* = alloca i32, 16
  let %ic: i32* = alloca i32, 1
  let %sc: i32* = alloca i32, 1
  let %u0: () = store 0, %ic
  let %u1: () = store 0, %sc
  jmp label %h
%h:
  let %i: i32 = load %ic
  let %c: i1 = lt %i, #n
  br %c, label %b, label %x
%b:
  let %s: i32 = load %sc
  let %q: i32* = offset i32, %p, [%i < 16]
  let %u2: () = store %i, %q
  let %v: i32 = load %q
  let %s2: i32 = add %s, %v
  let %i2: i32 = add %i, 1
  let %u3: () = store %s2, %sc
  let %u4: () = store %i2, %ic
  jmp label %h
%x:
  let %r: i32 = load %sc
  ret %r
}
`

func TestScenarioLoopWithLocalArray(t *testing.T) {
	cases := []struct {
		n, want int32
	}{
		{5, 10},
		{0, 0},
		{16, 120},
	}
	for _, c := range cases {
		mod, err := parser.Parse(sumSrc, "s3")
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		v, err := eval.Run(mod, "sum", []eval.RVal{eval.RInt{Val: c.n}}, nil, nil)
		if err != nil {
			t.Fatalf("Run(n=%d): %v", c.n, err)
		}
		if ri, ok := v.(eval.RInt); !ok || ri.Val != c.want {
			t.Errorf("sum(%d) = %v, want %d", c.n, v, c.want)
		}
	}
}

func TestScenarioOffsetInvalidIndex(t *testing.T) {
	mod, err := parser.Parse(sumSrc, "s3")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = eval.Run(mod, "sum", []eval.RVal{eval.RInt{Val: 17}}, nil, nil)
	if err == nil {
		t.Fatal("expected an offset-invalid-index error for n=17")
	}
	if !strings.Contains(err.Error(), "offset-invalid-index") {
		t.Errorf("got %v, want an offset-invalid-index error", err)
	}
}

// tensorSrc stores a 2x3x2 row-major tensor flattened into a single
// 12-element array and reads back one element by its three
// coordinates. With three dimensions, dimension 0's stride (the
// product of the two bounds after it, 3*2=6) differs from its
// immediately-following bound (3), which is exactly the distinction a
// stride computation that only peeks one dimension ahead gets wrong.
const tensorSrc = `
fn @fill(#m: i32*) -> i32 {
%e:
  let %p0: i32* = offset i32, #m, [0 < 2], [0 < 3], [0 < 2]
  let %u0: () = store 0, %p0
  let %p1: i32* = offset i32, #m, [0 < 2], [0 < 3], [1 < 2]
  let %u1: () = store 1, %p1
  let %p2: i32* = offset i32, #m, [0 < 2], [1 < 3], [0 < 2]
  let %u2: () = store 2, %p2
  let %p3: i32* = offset i32, #m, [0 < 2], [1 < 3], [1 < 2]
  let %u3: () = store 3, %p3
  let %p4: i32* = offset i32, #m, [0 < 2], [2 < 3], [0 < 2]
  let %u4: () = store 4, %p4
  let %p5: i32* = offset i32, #m, [0 < 2], [2 < 3], [1 < 2]
  let %u5: () = store 5, %p5
  let %p6: i32* = offset i32, #m, [1 < 2], [0 < 3], [0 < 2]
  let %u6: () = store 6, %p6
  let %p7: i32* = offset i32, #m, [1 < 2], [0 < 3], [1 < 2]
  let %u7: () = store 7, %p7
  let %p8: i32* = offset i32, #m, [1 < 2], [1 < 3], [0 < 2]
  let %u8: () = store 8, %p8
  let %p9: i32* = offset i32, #m, [1 < 2], [1 < 3], [1 < 2]
  let %u9: () = store 9, %p9
  let %p10: i32* = offset i32, #m, [1 < 2], [2 < 3], [0 < 2]
  let %u10: () = store 10, %p10
  let %p11: i32* = offset i32, #m, [1 < 2], [2 < 3], [1 < 2]
  let %u11: () = store 11, %p11
  ret 0
}
fn @at(#i: i32, #j: i32, #k: i32) -> i32 {
%e:
  let %m: i32* = alloca i32, 12
  let %fill: i32 = call @fill, %m
  let %q: i32* = offset i32, %m, [#i < 2], [#j < 3], [#k < 2]
  let %v: i32 = load %q
  ret %v
}
`

func TestScenarioMultiDimensionalOffset(t *testing.T) {
	// want = i*6 + j*2 + k, the row-major linearization of a [2,3,2] tensor.
	cases := []struct{ i, j, k, want int32 }{
		{0, 0, 0, 0}, {0, 1, 1, 3}, {0, 2, 1, 5},
		{1, 0, 0, 6}, {1, 1, 0, 8}, {1, 2, 1, 11},
	}
	for _, c := range cases {
		mod, err := parser.Parse(tensorSrc, "s3b")
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		v, err := eval.Run(mod, "at", []eval.RVal{eval.RInt{Val: c.i}, eval.RInt{Val: c.j}, eval.RInt{Val: c.k}}, nil, nil)
		if err != nil {
			t.Fatalf("Run(%d,%d,%d): %v", c.i, c.j, c.k, err)
		}
		if ri, ok := v.(eval.RInt); !ok || ri.Val != c.want {
			t.Errorf("at(%d,%d,%d) = %v, want %d", c.i, c.j, c.k, v, c.want)
		}
	}
}

const globalSrc = `
@g: region i32, 1
fn @putint(#x: i32) -> ();
fn @main() -> () {
%e:
  let %u1: () = store 42, @g
  let %v:  i32 = load @g
  let %u2: () = call @putint, %v
  ret ()
}
`

func TestScenarioGlobalAndExternalIO(t *testing.T) {
	mod, err := parser.Parse(globalSrc, "s4")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var out bytes.Buffer
	bridge := rtbridge.New(strings.NewReader(""), &out, false)
	if _, err := eval.Run(mod, "main", nil, bridge, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := out.String(); got != "42" {
		t.Errorf("stdout = %q, want %q", got, "42")
	}
}

const danglingSrc = `
fn @bad() -> i32* {
%e:
  let %p: i32* = alloca i32, 1
  ret %p
}
fn @main() -> i32 {
%e:
  let %q: i32* = call @bad
  ret 0
}
`

func TestScenarioDanglingPointerReturn(t *testing.T) {
	mod, err := parser.Parse(danglingSrc, "s5")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = eval.Run(mod, "main", nil, nil, nil)
	if err == nil {
		t.Fatal("expected a return-dangling-pointer error")
	}
	if !strings.Contains(err.Error(), "return-dangling-pointer") {
		t.Errorf("got %v, want a return-dangling-pointer error", err)
	}
}

const forwardSrc = `
fn @main() -> i32 {
%e: jmp label %later
%later: ret 1
}
`

func TestScenarioForwardReferenceBlock(t *testing.T) {
	mod, err := parser.Parse(forwardSrc, "s6")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	v, err := eval.Run(mod, "main", nil, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ri, ok := v.(eval.RInt); !ok || ri.Val != 1 {
		t.Fatalf("got %v, want RInt(1)", v)
	}
}

func TestDivisionByZeroFails(t *testing.T) {
	src := `
fn @main(#a: i32, #b: i32) -> i32 {
%e:
  let %r: i32 = div #a, #b
  ret %r
}
`
	mod, err := parser.Parse(src, "divzero")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = eval.Run(mod, "main", []eval.RVal{eval.RInt{Val: 1}, eval.RInt{Val: 0}}, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "incompatible-binary-operands") {
		t.Fatalf("got %v, want an incompatible-binary-operands error", err)
	}
}

func TestFrameHygieneReleasesAllocaMemory(t *testing.T) {
	src := `
fn @leaker() -> i32 {
%e:
  let %p: i32* = alloca i32, 4
  let %u: () = store 9, %p
  let %v: i32 = load %p
  ret %v
}
fn @main() -> i32 {
%e:
  let %r1: i32 = call @leaker
  let %r2: i32 = call @leaker
  ret %r2
}
`
	mod, err := parser.Parse(src, "hygiene")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	v, err := eval.Run(mod, "main", nil, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ri, ok := v.(eval.RInt); !ok || ri.Val != 9 {
		t.Fatalf("got %v, want RInt(9) from the second independent call", v)
	}
}
