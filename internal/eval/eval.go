package eval

import (
	"fmt"
	"io"

	"github.com/floatshadow/accipit/internal/diag"
	"github.com/floatshadow/accipit/internal/ir"
	"github.com/floatshadow/accipit/internal/rtbridge"
)

// mustLookup resolves ref or fails. In a well-formed module every operand
// was already bound by the time it is read (SSA dominance guarantees the
// producing instruction runs first), so reaching the failure branch
// indicates a malformed module the Builder should have rejected.
func (s *State) mustLookup(ref ir.ValueRef) (RVal, error) {
	v, ok := s.lookup(ref)
	if !ok {
		return nil, diag.Errorf(diag.KindNotImplemented, "value %%%d has no binding in the current scope", ref)
	}
	return v, nil
}

// Bootstrap seeds the global frame from the module's constants and
// global variables (spec.md §4.6, "Startup"): every ConstInt/ConstBool/
// ConstUnit/ConstNullPtr value binds to its runtime equivalent, and
// every global variable allocates a region at frame index 0 and binds
// to a Ptr at offset 0.
func Bootstrap(s *State, mod *ir.Module) {
	for i := 0; i < mod.NumValues(); i++ {
		ref := ir.ValueRef(i)
		switch k := mod.GetValue(ref).Kind.(type) {
		case ir.ConstInt:
			s.global.set(ref, RInt{k.Val})
		case ir.ConstBool:
			s.global.set(ref, RBool{k.Val})
		case ir.ConstUnit:
			s.global.set(ref, RUnit{})
		case ir.ConstNullPtr:
			s.global.set(ref, RNullPtr{})
		}
	}
	for _, globalRef := range mod.Globals {
		g := mod.GetValue(globalRef).Kind.(ir.GlobalVar)
		region := make([]RVal, g.Size)
		for i := range region {
			region[i] = RUndefined{}
		}
		s.memory[memKey{Base: globalRef, FrameIndex: 0}] = region
		s.global.set(globalRef, RPtr{MemRef{FrameIndex: 0, Base: globalRef, OffsetWithin: 0, RegionSize: g.Size}})
	}
}

// Run bootstraps a fresh State from mod and calls entry with args,
// dispatching Runtime Bridge built-ins through bridge. diagOut receives
// verbose-mode rune annotations and the starttime/stoptime warnings; a
// nil diagOut discards them.
func Run(mod *ir.Module, entry string, args []RVal, bridge *rtbridge.Bridge, diagOut io.Writer) (RVal, error) {
	s := NewState(mod)
	if diagOut != nil {
		s.DiagOut = diagOut
	}
	s.Bridge = bridge
	Bootstrap(s, mod)

	fn, fref, ok := mod.GetFunctionByName(entry)
	if !ok {
		return nil, diag.Errorf(diag.KindSymbolNotFound, "entry function %q not found", entry)
	}
	if fn.IsExternal {
		return nil, diag.Errorf(diag.KindSymbolNotFound, "entry function %q has no definition", entry)
	}
	return runOnFunction(s, mod, fn, fref, args)
}

// runOnFunction pushes a new frame, arity- and type-checks args against
// fn's declared parameters, binds them, then walks blocks from the
// entry block until a terminator unsets the position (spec.md §4.6,
// "Calling a function" / "Executing a block").
func runOnFunction(s *State, mod *ir.Module, fn *ir.Function, fref ir.FuncRef, args []RVal) (RVal, error) {
	if len(args) != len(fn.Params) {
		return nil, diag.Errorf(diag.KindFunctionArityMismatch,
			"%s expects %d argument(s), found %d", fn.Name, len(fn.Params), len(args))
	}

	frame := s.pushFrame()
	for i, paramRef := range fn.Params {
		paramDecl := mod.GetValue(paramRef)
		if err := checkType(args[i], paramDecl.Type, fmt.Sprintf("argument %d to %s", i, fn.Name)); err != nil {
			s.popFrame()
			return nil, err
		}
		frame.set(paramRef, args[i])
	}

	s.Position = fn.EntryBlock()
	var exitVal RVal = RUndefined{}
	for s.Position != ir.NoBlock {
		block := fn.Block(s.Position)
		v, err := runOnBasicBlock(s, mod, fn, block)
		if err != nil {
			s.popFrame()
			return nil, err
		}
		exitVal = v
	}
	s.popFrame()
	return exitVal, nil
}

// runOnBasicBlock executes every instruction in order, recording each in
// the program counter before evaluating it, then dispatches the block's
// terminator.
func runOnBasicBlock(s *State, mod *ir.Module, fn *ir.Function, block *ir.BasicBlock) (RVal, error) {
	for _, instrRef := range block.Instrs {
		s.ProgramCounter = instrRef
		v, err := singleStep(s, mod, instrRef)
		if err != nil {
			return nil, err
		}
		s.setVal(instrRef, v)
	}
	return singleStepTerminator(s, mod, block.Terminator)
}

// singleStep evaluates one instruction's ValueKind (spec.md §4.6,
// "Instruction semantics").
func singleStep(s *State, mod *ir.Module, ref ir.ValueRef) (RVal, error) {
	switch k := mod.GetValue(ref).Kind.(type) {
	case ir.Binary:
		lhs, err := s.mustLookup(k.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := s.mustLookup(k.RHS)
		if err != nil {
			return nil, err
		}
		return computeBinary(k.Op, lhs, rhs)
	case ir.Offset:
		return evalOffset(s, mod, k)
	case ir.Alloca:
		return RPtr{s.allocate(ref, k.Count)}, nil
	case ir.Load:
		return evalLoad(s, k)
	case ir.Store:
		return evalStore(s, k)
	case ir.FnCall:
		return evalCall(s, mod, k)
	default:
		return nil, diag.Errorf(diag.KindNotImplemented, "value %%%d is not an executable instruction", ref)
	}
}

// evalOffset resolves pointer arithmetic over a typed region (spec.md
// §4.6, "Offset"): bound-check every index, accumulate the total offset
// (each dimension's stride is the product of the bounds strictly inside
// it, the innermost dimension's stride is 1), and derive a new MemRef
// within the same base region.
func evalOffset(s *State, mod *ir.Module, off ir.Offset) (RVal, error) {
	baseDecl := mod.GetValue(off.Base)
	baseVal, err := s.mustLookup(off.Base)
	if err != nil {
		return nil, err
	}
	if err := checkType(baseVal, baseDecl.Type, "offset base"); err != nil {
		return nil, err
	}
	basePtr, ok := baseVal.(RPtr)
	if !ok {
		return nil, diag.Errorf(diag.KindInvalidPointer, "offset requires a dereferenceable pointer, found %s", baseVal)
	}

	indices := make([]int, len(off.Indices))
	for i, idxRef := range off.Indices {
		idxVal, err := s.mustLookup(idxRef)
		if err != nil {
			return nil, err
		}
		iv, ok := idxVal.(RInt)
		if !ok {
			return nil, diag.Errorf(diag.KindTypeMismatch, "offset index must be i32, found %s", idxVal)
		}
		bound := off.Bounds[i]
		if iv.Val < 0 || (!bound.Unbounded && int(iv.Val) >= bound.N) {
			return nil, diag.Errorf(diag.KindOffsetInvalidIndex, "index %d out of bounds %s", iv.Val, bound)
		}
		indices[i] = int(iv.Val)
	}

	// strides[i] is the product of every bound after dimension i
	// (spec.md §4.6: total = Σᵢ indexᵢ · Πⱼ>ᵢ boundⱼ), not just the
	// immediately following one.
	strides := make([]int, len(off.Bounds))
	product := 1
	for i := len(off.Bounds) - 1; i >= 0; i-- {
		strides[i] = product
		product *= off.Bounds[i].N
	}

	total := 0
	for i, idx := range indices {
		total += idx * strides[i]
	}

	next, err := basePtr.Ref.offsetBy(total)
	if err != nil {
		return nil, err
	}
	return RPtr{next}, nil
}

func evalLoad(s *State, ld ir.Load) (RVal, error) {
	addrVal, err := s.mustLookup(ld.Addr)
	if err != nil {
		return nil, err
	}
	ptr, ok := addrVal.(RPtr)
	if !ok {
		return nil, diag.Errorf(diag.KindInvalidPointer, "load requires a pointer operand, found %s", addrVal)
	}
	if !ptr.Ref.Valid() {
		return nil, diag.Errorf(diag.KindOffsetExceedsRegion,
			"load at offset %d exceeds region of size %d", ptr.Ref.OffsetWithin, ptr.Ref.RegionSize)
	}
	return s.region(ptr.Ref)[ptr.Ref.OffsetWithin], nil
}

func evalStore(s *State, st ir.Store) (RVal, error) {
	addrVal, err := s.mustLookup(st.Addr)
	if err != nil {
		return nil, err
	}
	ptr, ok := addrVal.(RPtr)
	if !ok {
		return nil, diag.Errorf(diag.KindInvalidPointer, "store requires a pointer operand, found %s", addrVal)
	}
	if !ptr.Ref.Valid() {
		return nil, diag.Errorf(diag.KindOffsetExceedsRegion,
			"store at offset %d exceeds region of size %d", ptr.Ref.OffsetWithin, ptr.Ref.RegionSize)
	}
	v, err := s.mustLookup(st.Value)
	if err != nil {
		return nil, err
	}
	s.region(ptr.Ref)[ptr.Ref.OffsetWithin] = v
	return RUnit{}, nil
}

// evalCall resolves args, then either dispatches to the Runtime Bridge
// (if the callee names a recognized built-in) or recursively calls the
// named function — an undeclared or declared-external non-built-in
// callee is an unresolved-symbol failure (spec.md §4.7).
func evalCall(s *State, mod *ir.Module, call ir.FnCall) (RVal, error) {
	args := make([]RVal, len(call.Args))
	for i, argRef := range call.Args {
		v, err := s.mustLookup(argRef)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	if rtbridge.IsBuiltin(call.Callee) {
		return s.callBuiltin(call.Callee, args)
	}

	fn, fref, ok := mod.GetFunctionByName(call.Callee)
	if !ok || fn.IsExternal {
		return nil, diag.Errorf(diag.KindSymbolNotFound, "undeclared function %q", call.Callee)
	}
	return runOnFunction(s, mod, fn, fref, args)
}

func (s *State) callBuiltin(name string, args []RVal) (RVal, error) {
	switch name {
	case "getint":
		v, err := s.Bridge.GetInt()
		if err != nil {
			return nil, err
		}
		return RInt{v}, nil
	case "getch":
		v, err := s.Bridge.GetCh()
		if err != nil {
			return nil, err
		}
		return RInt{v}, nil
	case "getarray":
		ref, err := argPtr(args, 0)
		if err != nil {
			return nil, err
		}
		n, err := s.Bridge.GetArray(arrayMem{s: s, ref: ref})
		if err != nil {
			return nil, err
		}
		return RInt{n}, nil
	case "putint":
		iv, ok := args[0].(RInt)
		if !ok {
			return nil, diag.Errorf(diag.KindTypeMismatch, "putint expects i32, found %s", args[0])
		}
		if err := s.Bridge.PutInt(iv.Val); err != nil {
			return nil, err
		}
		return RUnit{}, nil
	case "putch":
		iv, ok := args[0].(RInt)
		if !ok {
			return nil, diag.Errorf(diag.KindTypeMismatch, "putch expects i32, found %s", args[0])
		}
		annotation, err := s.Bridge.PutCh(iv.Val)
		if err != nil {
			return nil, err
		}
		if annotation != "" {
			fmt.Fprintln(s.DiagOut, annotation)
		}
		return RUnit{}, nil
	case "putarray":
		nv, ok := args[0].(RInt)
		if !ok {
			return nil, diag.Errorf(diag.KindTypeMismatch, "putarray expects an i32 length, found %s", args[0])
		}
		ref, err := argPtr(args, 1)
		if err != nil {
			return nil, err
		}
		if err := s.Bridge.PutArray(nv.Val, arrayMem{s: s, ref: ref}); err != nil {
			return nil, err
		}
		return RUnit{}, nil
	case "starttime":
		s.Bridge.StartTime(s.DiagOut)
		return RUnit{}, nil
	case "stoptime":
		s.Bridge.StopTime(s.DiagOut)
		return RUnit{}, nil
	default:
		return nil, diag.Errorf(diag.KindNotImplemented, "unrecognized runtime built-in %q", name)
	}
}

func argPtr(args []RVal, i int) (MemRef, error) {
	ptr, ok := args[i].(RPtr)
	if !ok {
		return MemRef{}, diag.Errorf(diag.KindInvalidPointer, "expected a pointer argument, found %s", args[i])
	}
	return ptr.Ref, nil
}

// singleStepTerminator dispatches a basic block's terminator (spec.md
// §4.6, "Terminators").
func singleStepTerminator(s *State, mod *ir.Module, t ir.Terminator) (RVal, error) {
	switch term := t.(type) {
	case ir.Jump:
		s.Position = term.Dest
		return RUnit{}, nil
	case ir.Branch:
		condVal, err := s.mustLookup(term.Cond)
		if err != nil {
			return nil, err
		}
		taken, err := branchTaken(condVal)
		if err != nil {
			return nil, err
		}
		if taken {
			s.Position = term.Then
		} else {
			s.Position = term.Else
		}
		return RUnit{}, nil
	case ir.Return:
		v, err := s.mustLookup(term.Value)
		if err != nil {
			return nil, err
		}
		if ptr, ok := v.(RPtr); ok {
			callerDepth := s.top().Depth - 1
			if ptr.Ref.FrameIndex > callerDepth {
				return nil, diag.Errorf(diag.KindReturnDanglingPointer,
					"returning a pointer allocated at frame depth %d past its owning call (depth %d)",
					ptr.Ref.FrameIndex, callerDepth)
			}
		}
		s.Position = ir.NoBlock
		return v, nil
	case ir.PanicTerm:
		return nil, diag.Errorf(diag.KindStuckInPanic, "block %%%d left unterminated", s.Position)
	default:
		return nil, diag.Errorf(diag.KindNotImplemented, "unrecognized terminator")
	}
}

// branchTaken accepts an i1 condition directly, and — per spec.md's
// explicit Branch-on-i32 concession — an i32 condition too, with a
// non-zero value routing to the then-label.
func branchTaken(v RVal) (bool, error) {
	switch cond := v.(type) {
	case RBool:
		return cond.Val, nil
	case RInt:
		return cond.Val != 0, nil
	default:
		return false, diag.Errorf(diag.KindTypeMismatch, "branch condition must be i1 or i32, found %s", v)
	}
}
