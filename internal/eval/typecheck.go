package eval

import (
	"github.com/floatshadow/accipit/internal/diag"
	"github.com/floatshadow/accipit/internal/types"
)

// matchesType reports whether the runtime value v may stand in for a
// static value of type t (spec.md §4.6, "type-check against the
// parameter's declared type"). An Undefined value never matches any
// type, per spec.md's explicit parenthetical.
func matchesType(v RVal, t *types.Type) bool {
	switch v.(type) {
	case RInt:
		return t.IsI32()
	case RBool:
		return t.IsI1()
	case RUnit:
		return t.IsUnit()
	case RPtr, RNullPtr:
		return t.IsPointer()
	case RUndefined:
		return false
	default:
		return false
	}
}

// checkType is matchesType wrapped into a diagnostic, for call argument
// binding and the other sites spec.md §4.6 requires a type check at.
func checkType(v RVal, t *types.Type, context string) error {
	if !matchesType(v, t) {
		return diag.Errorf(diag.KindTypeMismatch, "%s: expected %s, found %s", context, t, v)
	}
	return nil
}

// arrayMem adapts a base RPtr's backing region to rtbridge.ArrayMem, so
// getarray/putarray can read and write through the evaluator's memory
// store without rtbridge importing this package's concrete types.
type arrayMem struct {
	s   *State
	ref MemRef
}

func (a arrayMem) Get(i int) (int32, error) {
	slot, err := a.slot(i)
	if err != nil {
		return 0, err
	}
	region := a.s.region(a.ref)
	v, ok := region[slot].(RInt)
	if !ok {
		return 0, diag.Errorf(diag.KindTypeMismatch, "array element at index %d is not an i32, found %s", i, region[slot])
	}
	return v.Val, nil
}

func (a arrayMem) Set(i int, v int32) error {
	slot, err := a.slot(i)
	if err != nil {
		return err
	}
	region := a.s.region(a.ref)
	region[slot] = RInt{v}
	return nil
}

func (a arrayMem) slot(i int) (int, error) {
	next, err := a.ref.offsetBy(i)
	if err != nil {
		return 0, err
	}
	return next.OffsetWithin, nil
}
