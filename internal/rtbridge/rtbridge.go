// Package rtbridge is the Runtime Bridge: the fixed set of external
// names the evaluator dispatches to the host rather than to IR-defined
// code (spec.md §4.6, "Runtime Bridge"). Signatures is authoritative
// both for the Builder's call type-checking (a built-in need not be
// declared with an external `fn` header to be called) and for the
// evaluator's dispatch.
package rtbridge

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/runenames"

	"github.com/floatshadow/accipit/internal/diag"
	"github.com/floatshadow/accipit/internal/types"
)

// Signature is a built-in's static parameter/return types.
type Signature struct {
	Params []*types.Type
	Ret    *types.Type
}

// Signatures is the fixed table of recognized host built-ins.
var Signatures = map[string]Signature{
	"getint":    {Params: nil, Ret: types.I32()},
	"getch":     {Params: nil, Ret: types.I32()},
	"getarray":  {Params: []*types.Type{types.OpaquePointer()}, Ret: types.I32()},
	"putint":    {Params: []*types.Type{types.I32()}, Ret: types.Unit()},
	"putch":     {Params: []*types.Type{types.I32()}, Ret: types.Unit()},
	"putarray":  {Params: []*types.Type{types.I32(), types.OpaquePointer()}, Ret: types.Unit()},
	"starttime": {Params: nil, Ret: types.Unit()},
	"stoptime":  {Params: nil, Ret: types.Unit()},
}

// IsBuiltin reports whether name is a recognized Runtime Bridge callee.
func IsBuiltin(name string) bool {
	_, ok := Signatures[name]
	return ok
}

// ArrayMem abstracts the slice of i32 slots a getarray/putarray call
// reads or writes, decoupling this package from the evaluator's memory
// model (internal/eval.MemRef and internal/eval.Frame).
type ArrayMem interface {
	// Get reads the i32 at index i (0-based from the pointer's offset).
	Get(i int) (int32, error)
	// Set writes v at index i.
	Set(i int, v int32) error
}

// Bridge is the host I/O surface the evaluator calls through. The
// default implementation talks to process stdin/stdout; tests supply a
// buffer-backed implementation instead.
type Bridge struct {
	in      *bufio.Reader
	out     *bufio.Writer
	verbose bool
	warned  map[string]bool
}

// New returns a Bridge reading from in and writing to out. If verbose,
// putch annotates its output with the Unicode code point's name.
func New(in io.Reader, out io.Writer, verbose bool) *Bridge {
	return &Bridge{
		in:      bufio.NewReader(in),
		out:     bufio.NewWriter(out),
		verbose: verbose,
		warned:  make(map[string]bool),
	}
}

// Flush flushes any buffered output; the CLI calls this once at exit.
func (b *Bridge) Flush() error { return b.out.Flush() }

// GetInt reads one decimal integer from the host input.
func (b *Bridge) GetInt() (int32, error) {
	var v int32
	if _, err := fmt.Fscan(b.in, &v); err != nil {
		return 0, diag.Errorf(diag.KindPanicIO, "getint: %v", err)
	}
	return v, nil
}

// GetCh reads one byte from the host input and returns it as an i32.
func (b *Bridge) GetCh() (int32, error) {
	c, err := b.in.ReadByte()
	if err != nil {
		return 0, diag.Errorf(diag.KindPanicIO, "getch: %v", err)
	}
	return int32(c), nil
}

// GetArray reads a length n (n >= 0 required), then n integers into mem
// starting at index 0, and returns n.
func (b *Bridge) GetArray(mem ArrayMem) (int32, error) {
	var n int32
	if _, err := fmt.Fscan(b.in, &n); err != nil {
		return 0, diag.Errorf(diag.KindPanicIO, "getarray: %v", err)
	}
	if n < 0 {
		return 0, diag.Errorf(diag.KindPanicIO, "getarray: length must be non-negative, found %d", n)
	}
	for i := int32(0); i < n; i++ {
		var v int32
		if _, err := fmt.Fscan(b.in, &v); err != nil {
			return 0, diag.Errorf(diag.KindPanicIO, "getarray: %v", err)
		}
		if err := mem.Set(int(i), v); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// PutInt writes x in decimal form and flushes.
func (b *Bridge) PutInt(x int32) error {
	fmt.Fprintf(b.out, "%d", x)
	return b.out.Flush()
}

// PutCh writes x as a Unicode code point. In verbose mode it also
// writes the code point's name to stderr-style diagnostic output via
// the returned annotation string (the caller decides where that goes).
func (b *Bridge) PutCh(x int32) (annotation string, err error) {
	r := rune(x)
	b.out.WriteRune(r)
	if err := b.out.Flush(); err != nil {
		return "", err
	}
	if b.verbose {
		name := runenames.Name(r)
		annotation = fmt.Sprintf("putch: U+%04X %s", r, name)
	}
	return annotation, nil
}

// PutArray prints "n:" followed by " v" for each of the first n slots
// of mem, then flushes.
func (b *Bridge) PutArray(n int32, mem ArrayMem) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d:", n)
	for i := int32(0); i < n; i++ {
		v, err := mem.Get(int(i))
		if err != nil {
			return err
		}
		fmt.Fprintf(&sb, " %d", v)
	}
	b.out.WriteString(sb.String())
	return b.out.Flush()
}

// StartTime and StopTime warn once to stderr and otherwise do nothing;
// the interpreter has no timing facility to back them with (SPEC_FULL.md
// Open Question resolution).
func (b *Bridge) StartTime(warn io.Writer) { b.warnOnce(warn, "starttime") }
func (b *Bridge) StopTime(warn io.Writer)  { b.warnOnce(warn, "stoptime") }

func (b *Bridge) warnOnce(warn io.Writer, name string) {
	if b.warned[name] {
		return
	}
	b.warned[name] = true
	fmt.Fprintf(warn, "%s: timing is not supported by this interpreter, ignoring\n", name)
}
