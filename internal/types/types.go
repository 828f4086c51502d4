// Package types implements the type interner described by the IR's type
// system: i32, i1, unit, pointer-to-T, opaque ptr, and function types.
// Two structurally equal types always resolve to the same *Type handle,
// so callers may compare types with ==.
package types

import (
	"fmt"
	"strings"
	"sync"
)

// Kind discriminates the closed set of type constructors.
type Kind int

const (
	KindI32 Kind = iota
	KindI1
	KindUnit
	KindPointer
	KindOpaquePointer
	KindFunction
)

// Type is an interned, structurally-unique type handle. Its zero value is
// never produced by this package; always obtain a *Type from one of the
// constructors below.
type Type struct {
	kind   Kind
	elem   *Type   // Pointer: pointee type. nil otherwise.
	params []*Type // Function: parameter types, in order.
	ret    *Type   // Function: return type.
}

func (t *Type) String() string {
	switch t.kind {
	case KindI32:
		return "i32"
	case KindI1:
		return "i1"
	case KindUnit:
		return "()"
	case KindPointer:
		return t.elem.String() + "*"
	case KindOpaquePointer:
		return "ptr"
	case KindFunction:
		parts := make([]string, len(t.params))
		for i, p := range t.params {
			parts[i] = p.String()
		}
		return fmt.Sprintf("fn(%s) -> %s", strings.Join(parts, ", "), t.ret.String())
	default:
		return "<invalid type>"
	}
}

// IsI32 reports whether t is the 32-bit integer type.
func (t *Type) IsI32() bool { return t.kind == KindI32 }

// IsI1 reports whether t is the 1-bit boolean type.
func (t *Type) IsI1() bool { return t.kind == KindI1 }

// IsIntegerOrBool reports whether t may appear as an operand of a
// bitwise/logical binary operator (and/or/xor accept i32 or i1).
func (t *Type) IsIntegerOrBool() bool { return t.kind == KindI32 || t.kind == KindI1 }

// IsUnit reports whether t is the unit type.
func (t *Type) IsUnit() bool { return t.kind == KindUnit }

// IsPointer reports whether t is a pointer type, opaque or typed.
func (t *Type) IsPointer() bool { return t.kind == KindPointer || t.kind == KindOpaquePointer }

// IsOpaquePointer reports whether t is the opaque `ptr` type.
func (t *Type) IsOpaquePointer() bool { return t.kind == KindOpaquePointer }

// IsFunction reports whether t is a function type.
func (t *Type) IsFunction() bool { return t.kind == KindFunction }

// DerefMatches reports whether a pointer of type t may be dereferenced to
// produce a value of type target: either t points to target exactly, or
// t is opaque (compatible with any pointee at the use site).
func (t *Type) DerefMatches(target *Type) bool {
	switch t.kind {
	case KindOpaquePointer:
		return true
	case KindPointer:
		return t.elem == target
	default:
		return false
	}
}

// PointerBase returns the pointee type of a typed pointer. ok is false for
// opaque pointers (no static pointee) and non-pointer types.
func (t *Type) PointerBase() (base *Type, ok bool) {
	if t.kind == KindPointer {
		return t.elem, true
	}
	return nil, false
}

// FunctionParams returns the parameter types of a function type.
func (t *Type) FunctionParams() []*Type {
	if t.kind != KindFunction {
		return nil
	}
	return t.params
}

// FunctionRet returns the return type of a function type.
func (t *Type) FunctionRet() *Type {
	if t.kind != KindFunction {
		return nil
	}
	return t.ret
}

// interner is the process-wide hash-consing pool. A thread-local cache
// would suffice per spec.md §4.1 (the evaluator is single-threaded), but
// the mutex costs nothing at this scale and keeps the pool safe to share
// across concurrent test runs.
type interner struct {
	mu     sync.Mutex
	simple map[Kind]*Type
	ptrs   map[*Type]*Type
	fns    map[string]*Type
}

var pool = &interner{
	simple: make(map[Kind]*Type),
	ptrs:   make(map[*Type]*Type),
	fns:    make(map[string]*Type),
}

func (p *interner) simpleType(k Kind) *Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.simple[k]; ok {
		return t
	}
	t := &Type{kind: k}
	p.simple[k] = t
	return t
}

// I32 returns the interned i32 type.
func I32() *Type { return pool.simpleType(KindI32) }

// I1 returns the interned i1 type.
func I1() *Type { return pool.simpleType(KindI1) }

// Unit returns the interned unit type.
func Unit() *Type { return pool.simpleType(KindUnit) }

// OpaquePointer returns the interned opaque `ptr` type.
func OpaquePointer() *Type { return pool.simpleType(KindOpaquePointer) }

// Pointer returns the interned pointer-to-elem type.
func Pointer(elem *Type) *Type {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	if t, ok := pool.ptrs[elem]; ok {
		return t
	}
	t := &Type{kind: KindPointer, elem: elem}
	pool.ptrs[elem] = t
	return t
}

// Function returns the interned function type (params...) -> ret.
// Because params and ret are themselves interned, their addresses form a
// canonical key for the whole function type.
func Function(params []*Type, ret *Type) *Type {
	key := functionKey(params, ret)
	pool.mu.Lock()
	defer pool.mu.Unlock()
	if t, ok := pool.fns[key]; ok {
		return t
	}
	t := &Type{kind: KindFunction, params: append([]*Type(nil), params...), ret: ret}
	pool.fns[key] = t
	return t
}

func functionKey(params []*Type, ret *Type) string {
	var b strings.Builder
	for _, p := range params {
		fmt.Fprintf(&b, "%p,", p)
	}
	fmt.Fprintf(&b, "->%p", ret)
	return b.String()
}
