// Package eval is the tree-walking Evaluator (spec.md §4.6): it walks a
// published *ir.Module against a runtime state disjoint from the static
// value graph, dispatching Binary/Offset/Alloca/Load/Store/FnCall
// instructions and Jump/Branch/Return/Panic terminators.
package eval

import (
	"fmt"

	"github.com/floatshadow/accipit/internal/diag"
	"github.com/floatshadow/accipit/internal/ir"
)

// RVal is the runtime value domain, disjoint from the IR's static value
// handles: what an instruction actually produces while walking the graph,
// as opposed to the *types.Type it is statically declared to have.
//
// Grounded on original_source/src/apps/executor.rs's `Val` enum
// (Unit/Integer/Bool/Pointer/Function/Undefined); Function is omitted
// here because this IR never admits a function value as a first-class
// operand (calls always name their callee directly).
type RVal interface {
	isRVal()
	String() string
}

// RUnit is the single unit-typed runtime value.
type RUnit struct{}

// RInt is a 32-bit integer, host two's-complement.
type RInt struct{ Val int32 }

// RBool is a boolean.
type RBool struct{ Val bool }

// RPtr is a pointer to a memory region, carrying its own provenance so
// that a stale pointer escaping its owning frame can be detected at
// Return time (spec.md §4.6, "dangling pointer return").
type RPtr struct{ Ref MemRef }

// RUndefined is the value of a memory slot that was allocated but never
// written, or a slot read before any Store reached it.
type RUndefined struct{}

// RNullPtr is the `null` literal: a pointer-typed value that never
// addresses any region. Loading or storing through it fails with
// invalid-pointer, distinguishing it from a dereferenceable RPtr.
type RNullPtr struct{}

func (RUnit) isRVal()      {}
func (RInt) isRVal()       {}
func (RBool) isRVal()      {}
func (RPtr) isRVal()       {}
func (RUndefined) isRVal() {}
func (RNullPtr) isRVal()   {}

func (RUnit) String() string      { return "()" }
func (v RInt) String() string     { return fmt.Sprintf("%d", v.Val) }
func (v RBool) String() string    { return fmt.Sprintf("%t", v.Val) }
func (v RPtr) String() string     { return fmt.Sprintf("ptr(%s)", v.Ref) }
func (RUndefined) String() string { return "undefined" }
func (RNullPtr) String() string   { return "null" }

// MemRef is a runtime pointer's provenance: which frame's allocation it
// points into, which instruction (or global) produced the region, and
// where within that region it currently sits.
//
// Grounded on executor.rs's `MemoryObject{function, base, offset_within,
// size}`; `function` (a name, used only for display there) is replaced
// here by `FrameIndex`, the allocating frame's stack depth, which is what
// spec.md §4.6 actually needs to detect a dangling return — the original
// never implements that check, so this field is this implementation's
// own addition tracking the depth directly rather than a function name.
type MemRef struct {
	FrameIndex   int
	Base         ir.ValueRef
	OffsetWithin int
	RegionSize   int
}

func (r MemRef) String() string {
	return fmt.Sprintf("frame=%d base=%%%d off=%d/%d", r.FrameIndex, r.Base, r.OffsetWithin, r.RegionSize)
}

// Valid reports whether r currently addresses a slot inside its region.
func (r MemRef) Valid() bool { return r.OffsetWithin >= 0 && r.OffsetWithin < r.RegionSize }

// offsetBy derives a new MemRef into the same region at offset+delta, or
// fails with offset-exceeds-region if the result would fall outside it.
// Pointer arithmetic never crosses into a different base (spec.md §4.6).
func (r MemRef) offsetBy(delta int) (MemRef, error) {
	next := r
	next.OffsetWithin = r.OffsetWithin + delta
	if next.OffsetWithin < 0 || next.OffsetWithin >= next.RegionSize {
		return MemRef{}, diag.Errorf(diag.KindOffsetExceedsRegion,
			"offset %d exceeds region of size %d", next.OffsetWithin, next.RegionSize)
	}
	return next, nil
}

// computeBinary applies op to lhs/rhs with host two's-complement
// semantics, per the match table in executor.rs's `Val::compute_binary`:
// the five arithmetic operators (add/sub/mul/div/rem) require Integer,Integer;
// And/Or/Xor accept either Integer,Integer or Bool,Bool; the six
// comparisons require Integer,Integer and always produce Bool.
func computeBinary(op ir.BinOp, lhs, rhs RVal) (RVal, error) {
	if _, ok := lhs.(RUndefined); ok {
		return nil, diag.Errorf(diag.KindUseUndefined, "operand of %s is undefined", op)
	}
	if _, ok := rhs.(RUndefined); ok {
		return nil, diag.Errorf(diag.KindUseUndefined, "operand of %s is undefined", op)
	}

	li, lIsInt := lhs.(RInt)
	ri, rIsInt := rhs.(RInt)
	lb, lIsBool := lhs.(RBool)
	rb, rIsBool := rhs.(RBool)

	if op.IsBitwise() && lIsBool && rIsBool {
		return computeBoolBitwise(op, lb.Val, rb.Val)
	}

	if !lIsInt || !rIsInt {
		return nil, diag.Errorf(diag.KindIncompatibleBinaryOperands,
			"%s requires matching integer (or, for and/or/xor, boolean) operands, found %s and %s", op, lhs, rhs)
	}

	switch op {
	case ir.Add:
		return RInt{li.Val + ri.Val}, nil
	case ir.Sub:
		return RInt{li.Val - ri.Val}, nil
	case ir.Mul:
		return RInt{li.Val * ri.Val}, nil
	case ir.Div:
		if ri.Val == 0 {
			return nil, diag.Errorf(diag.KindIncompatibleBinaryOperands, "division by zero")
		}
		return RInt{li.Val / ri.Val}, nil
	case ir.Rem:
		if ri.Val == 0 {
			return nil, diag.Errorf(diag.KindIncompatibleBinaryOperands, "remainder by zero")
		}
		return RInt{li.Val % ri.Val}, nil
	case ir.And:
		return RInt{li.Val & ri.Val}, nil
	case ir.Or:
		return RInt{li.Val | ri.Val}, nil
	case ir.Xor:
		return RInt{li.Val ^ ri.Val}, nil
	case ir.Lt:
		return RBool{li.Val < ri.Val}, nil
	case ir.Gt:
		return RBool{li.Val > ri.Val}, nil
	case ir.Le:
		return RBool{li.Val <= ri.Val}, nil
	case ir.Ge:
		return RBool{li.Val >= ri.Val}, nil
	case ir.Eq:
		return RBool{li.Val == ri.Val}, nil
	case ir.Ne:
		return RBool{li.Val != ri.Val}, nil
	default:
		return nil, diag.Errorf(diag.KindNotImplemented, "unrecognized binary operator %s", op)
	}
}

func computeBoolBitwise(op ir.BinOp, l, r bool) (RVal, error) {
	switch op {
	case ir.And:
		return RBool{l && r}, nil
	case ir.Or:
		return RBool{l || r}, nil
	case ir.Xor:
		return RBool{l != r}, nil
	default:
		return nil, diag.Errorf(diag.KindIncompatibleBinaryOperands, "%s does not accept boolean operands", op)
	}
}
