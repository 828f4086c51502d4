// Package builder is the sole authority that mutates a Module once
// construction begins (spec.md §4.3): the lexer/parser front end calls
// through here for every function, block and instruction. The one
// exception is literal constants, which the parser inserts straight into
// the module's value arena (one fresh value per occurrence); the Builder
// keeps no constants table.
// The central trick inherited from the original implementation is the
// "dangling block" pattern: a forward label reference (`jmp label %loop`
// before `%loop:` has been parsed) allocates a placeholder block
// immediately and returns its handle, and the later `%loop:` header
// reuses and attaches that same placeholder instead of creating a
// second one.
package builder

import (
	"github.com/floatshadow/accipit/internal/diag"
	"github.com/floatshadow/accipit/internal/ir"
	"github.com/floatshadow/accipit/internal/rtbridge"
	"github.com/floatshadow/accipit/internal/types"
)

// Param describes one formal parameter while emitting a function header.
type Param struct {
	Name string // "" for an unnamed parameter
	Type *types.Type
}

// funcState is the per-function scratch the Builder threads while
// emitting one function body; it is discarded once the body closes.
type funcState struct {
	localValues map[string]ir.ValueRef
	localBlocks map[string]ir.BlockRef
	fref        ir.FuncRef
	position    ir.BlockRef
	namer       *Namer
}

// Builder accumulates a Module from a sequence of Emit*/Fixup* calls
// driven by the parser.
type Builder struct {
	Module *ir.Module

	fn      *funcState
	globals map[string]ir.ValueRef
}

// New returns a Builder constructing a fresh, empty module.
func New(moduleName string) *Builder {
	return &Builder{
		Module:  ir.NewModule(moduleName),
		globals: make(map[string]ir.ValueRef),
	}
}

func (b *Builder) valueType(ref ir.ValueRef) *types.Type {
	return b.Module.GetValue(ref).Type
}

// GetValueRef resolves a local name (argument or instruction result)
// within the function currently being emitted, or a global variable name.
// Function names are not values and are not resolved here.
func (b *Builder) GetValueRef(name string) (ir.ValueRef, bool) {
	if b.fn != nil {
		if ref, ok := b.fn.localValues[name]; ok {
			return ref, true
		}
	}
	ref, ok := b.globals[name]
	return ref, ok
}

// GetBlockRef resolves a label name within the function currently being
// emitted.
func (b *Builder) GetBlockRef(name string) (ir.BlockRef, bool) {
	ref, ok := b.fn.localBlocks[name]
	return ref, ok
}

// GetOrInsertPlaceholderBlock returns the block handle for name,
// allocating an un-attached placeholder (the "dangling block") the
// first time a terminator refers to a label that has not been defined
// yet. EmitBasicBlock later attaches and reuses this same handle.
func (b *Builder) GetOrInsertPlaceholderBlock(name string) ir.BlockRef {
	if ref, ok := b.fn.localBlocks[name]; ok {
		return ref
	}
	f := b.Module.GetFunction(b.fn.fref)
	bb := ir.NewDanglingBlock(name)
	ref := f.InsertDanglingBlock(bb)
	b.fn.localBlocks[name] = ref
	return ref
}

func (b *Builder) insertInstruction(ref ir.ValueRef) {
	f := b.Module.GetFunction(b.fn.fref)
	f.Block(b.fn.position).AppendInstr(ref)
}

// insertLocalSymbol inserts v into the module's value arena and, if it
// has a name, registers it in the current function's local symbol
// table, returning the new handle.
func (b *Builder) insertLocalSymbol(v *ir.Value) ir.ValueRef {
	ref := b.Module.InsertValue(v)
	if v.Name != "" {
		b.fn.localValues[v.Name] = ref
	}
	return ref
}

// EmitGlobal declares a global region of elemType×size and records it
// both in the module's global list and the builder's global symbol
// table, returning its (pointer-typed) value handle.
func (b *Builder) EmitGlobal(name string, elemType *types.Type, size int) ir.ValueRef {
	ref := b.Module.InsertValue(&ir.Value{
		Type: types.Pointer(elemType),
		Name: name,
		Kind: ir.GlobalVar{ElemType: elemType, Size: size},
	})
	b.Module.AddGlobal(ref)
	b.globals[name] = ref
	return ref
}

// EmitFunction opens a new function header, registering its parameters
// as named/anonymous Argument values, and makes it the Builder's current
// function. A subsequent EmitBasicBlock/SetInsertPoint pair is required
// before any instruction-emitting call for a non-external function.
func (b *Builder) EmitFunction(name string, params []Param, ret *types.Type, isExternal bool) (ir.FuncRef, error) {
	if b.Module.HasFunction(name) {
		return 0, diag.Errorf(diag.KindParse, "function %q redefined", name)
	}
	paramTypes := make([]*types.Type, len(params))
	for i, p := range params {
		paramTypes[i] = p.Type
	}
	f := &ir.Function{
		Type:       types.Function(paramTypes, ret),
		Name:       name,
		IsExternal: isExternal,
	}
	fref := b.Module.InsertFunction(f)

	local := make(map[string]ir.ValueRef)
	paramRefs := make([]ir.ValueRef, len(params))
	for i, p := range params {
		aref := b.Module.InsertValue(&ir.Value{Type: p.Type, Name: p.Name, Kind: ir.Argument{Index: i}})
		paramRefs[i] = aref
		if p.Name != "" {
			local[p.Name] = aref
		}
	}
	f.Params = paramRefs

	b.fn = &funcState{
		localValues: local,
		localBlocks: make(map[string]ir.BlockRef),
		fref:        fref,
		position:    ir.NoBlock,
		namer:       NewNamer(),
	}
	return fref, nil
}

// FinishFunction closes the function currently being emitted, failing
// if any label was referenced but never defined (a dangling block).
func (b *Builder) FinishFunction() error {
	f := b.Module.GetFunction(b.fn.fref)
	if dangling := f.DanglingBlocks(); len(dangling) > 0 {
		bb := f.Block(dangling[0])
		b.fn = nil
		return diag.Errorf(diag.KindParse, "label %%%s referenced but never defined in function %q", bb.Name, f.Name)
	}
	b.fn = nil
	return nil
}

// SetInsertPoint moves the current insertion point to an already
// allocated block.
func (b *Builder) SetInsertPoint(ref ir.BlockRef) {
	b.fn.position = ref
}

// EmitBasicBlock opens (or reuses, if a forward jump already allocated
// it) a block named name, attaches it to the function's ordered block
// list, and makes it the insertion point.
func (b *Builder) EmitBasicBlock(name string) ir.BlockRef {
	ref := b.GetOrInsertPlaceholderBlock(name)
	f := b.Module.GetFunction(b.fn.fref)
	f.Attach(ref)
	b.fn.position = ref
	return ref
}

// EmitBinary type-checks and appends a binary-operator instruction.
// annotated, if non-nil, is the explicit result-type annotation from
// the source text and must agree with the computed result type.
func (b *Builder) EmitBinary(op ir.BinOp, name string, lhs, rhs ir.ValueRef, annotated *types.Type) (ir.ValueRef, error) {
	lhsTy := b.valueType(lhs)
	rhsTy := b.valueType(rhs)

	var operandsOK bool
	if op.IsBitwise() {
		operandsOK = lhsTy.IsIntegerOrBool() && lhsTy == rhsTy
	} else {
		operandsOK = lhsTy.IsI32() && lhsTy == rhsTy
	}
	if !operandsOK {
		return 0, diag.Errorf(diag.KindIncompatibleBinaryOperands,
			"operator %s requires matching operand types, got %s and %s", op, lhsTy, rhsTy)
	}

	result := lhsTy
	if op.IsComparison() {
		result = types.I1()
	}
	if annotated != nil && annotated != result {
		return 0, diag.Errorf(diag.KindTypeMismatch,
			"expected result type %s for %s, found annotation %s", result, op, annotated)
	}

	inner := b.fn.namer.Next(name)
	ref := b.insertLocalSymbol(&ir.Value{Type: result, Name: inner, Kind: ir.Binary{Op: op, LHS: lhs, RHS: rhs}})
	b.insertInstruction(ref)
	return ref, nil
}

// EmitOffset appends a pointer-arithmetic instruction over a region of
// elemType elements, indexed by indices each bounded by bounds. annotated,
// if non-nil, must equal the computed pointer-to-elemType result type.
func (b *Builder) EmitOffset(name string, elemType *types.Type, base ir.ValueRef, indices []ir.ValueRef, bounds []ir.Bound, annotated *types.Type) (ir.ValueRef, error) {
	baseTy := b.valueType(base)
	if !baseTy.IsPointer() || !baseTy.DerefMatches(elemType) {
		return 0, diag.Errorf(diag.KindTypeMismatch, "offset base must dereference-match %s, found %s", elemType, baseTy)
	}
	for _, idx := range indices {
		if !b.valueType(idx).IsI32() {
			return 0, diag.Errorf(diag.KindOffsetInvalidIndex, "offset index must be i32")
		}
	}
	for i, bound := range bounds {
		if bound.Unbounded && i != 0 {
			return 0, diag.Errorf(diag.KindTypeMismatch,
				"only the outermost dimension's bound may be unbounded, found unbounded dimension %d", i)
		}
	}
	result := types.Pointer(elemType)
	if annotated != nil && annotated != result {
		return 0, diag.Errorf(diag.KindTypeMismatch, "expected result type %s for offset, found annotation %s", result, annotated)
	}
	inner := b.fn.namer.Next(name)
	ref := b.insertLocalSymbol(&ir.Value{
		Type: result,
		Name: inner,
		Kind: ir.Offset{ElemType: elemType, Base: base, Indices: indices, Bounds: bounds},
	})
	b.insertInstruction(ref)
	return ref, nil
}

// EmitAlloca appends a frame-local allocation of count elements of
// elemType, producing a pointer to the region. annotated, if non-nil,
// must equal the computed result type.
func (b *Builder) EmitAlloca(name string, elemType *types.Type, count int, annotated *types.Type) (ir.ValueRef, error) {
	result := types.Pointer(elemType)
	if annotated != nil && annotated != result {
		return 0, diag.Errorf(diag.KindTypeMismatch, "expected result type %s for alloca, found annotation %s", result, annotated)
	}
	inner := b.fn.namer.Next(name)
	ref := b.insertLocalSymbol(&ir.Value{
		Type: result,
		Name: inner,
		Kind: ir.Alloca{ElemType: elemType, Count: count},
	})
	b.insertInstruction(ref)
	return ref, nil
}

// EmitLoad appends a load through addr. If addr is an opaque pointer,
// annotated must supply the element type to load; if addr is typed,
// annotated (when present) must agree with the pointee type.
func (b *Builder) EmitLoad(name string, addr ir.ValueRef, annotated *types.Type) (ir.ValueRef, error) {
	addrTy := b.valueType(addr)
	if !addrTy.IsPointer() {
		return 0, diag.Errorf(diag.KindTypeMismatch, "load address must be a pointer, found %s", addrTy)
	}
	result := annotated
	if base, ok := addrTy.PointerBase(); ok {
		if result == nil {
			result = base
		} else if result != base {
			return 0, diag.Errorf(diag.KindTypeMismatch, "cannot load %s through pointer of type %s", result, addrTy)
		}
	} else if result == nil {
		return 0, diag.Errorf(diag.KindTypeMismatch, "load through an opaque pointer requires an explicit type annotation")
	}
	inner := b.fn.namer.Next(name)
	ref := b.insertLocalSymbol(&ir.Value{Type: result, Name: inner, Kind: ir.Load{Addr: addr}})
	b.insertInstruction(ref)
	return ref, nil
}

// EmitStore appends a store of value through addr. The instruction's
// static type is always unit; annotated, if present, must say so. A store
// takes a fresh anonymous name from the function's Namer (its source name
// is not kept) and is not entered in the local symbol table.
func (b *Builder) EmitStore(value, addr ir.ValueRef, annotated *types.Type) (ir.ValueRef, error) {
	addrTy := b.valueType(addr)
	valTy := b.valueType(value)
	if !addrTy.IsPointer() || !addrTy.DerefMatches(valTy) {
		return 0, diag.Errorf(diag.KindTypeMismatch, "cannot store %s through pointer of type %s", valTy, addrTy)
	}
	if annotated != nil && !annotated.IsUnit() {
		return 0, diag.Errorf(diag.KindTypeMismatch, "store always has unit type, found annotation %s", annotated)
	}
	ref := b.Module.InsertValue(&ir.Value{Type: types.Unit(), Name: b.fn.namer.Next(""), Kind: ir.Store{Value: value, Addr: addr}})
	b.insertInstruction(ref)
	return ref, nil
}

// EmitCall appends a direct call to callee, type-checking arity and
// argument types against callee's signature. Runtime Bridge built-ins
// (getint, putint, ...) have a fixed signature and need no prior `fn`
// declaration in the module; any other name must already be declared.
func (b *Builder) EmitCall(name string, callee string, args []ir.ValueRef) (ir.ValueRef, error) {
	var params []*types.Type
	var ret *types.Type
	if sig, ok := rtbridge.Signatures[callee]; ok {
		params, ret = sig.Params, sig.Ret
	} else if f, _, ok := b.Module.GetFunctionByName(callee); ok {
		params, ret = f.Type.FunctionParams(), f.Type.FunctionRet()
	} else {
		return 0, diag.Errorf(diag.KindSymbolNotFound, "call to undeclared function @%s", callee)
	}
	if len(params) != len(args) {
		return 0, diag.Errorf(diag.KindFunctionArityMismatch,
			"call to @%s expects %d arguments, found %d", callee, len(params), len(args))
	}
	for i, a := range args {
		if b.valueType(a) != params[i] {
			return 0, diag.Errorf(diag.KindTypeMismatch,
				"argument %d of call to @%s: expected %s, found %s", i, callee, params[i], b.valueType(a))
		}
	}
	inner := b.fn.namer.Next(name)
	ref := b.insertLocalSymbol(&ir.Value{Type: ret, Name: inner, Kind: ir.FnCall{Callee: callee, Args: args}})
	b.insertInstruction(ref)
	return ref, nil
}

// FixupTerminatorJump installs an unconditional jump as the current
// block's terminator.
func (b *Builder) FixupTerminatorJump(dest ir.BlockRef) {
	f := b.Module.GetFunction(b.fn.fref)
	f.Block(b.fn.position).SetTerminator(ir.Jump{Dest: dest})
}

// FixupTerminatorBranch installs a conditional branch, requiring cond to
// be i1 or (per the extended condition rule) i32.
func (b *Builder) FixupTerminatorBranch(cond ir.ValueRef, thenB, elseB ir.BlockRef) error {
	condTy := b.valueType(cond)
	if !condTy.IsI1() && !condTy.IsI32() {
		return diag.Errorf(diag.KindTypeMismatch, "branch condition must be i1 or i32, found %s", condTy)
	}
	f := b.Module.GetFunction(b.fn.fref)
	f.Block(b.fn.position).SetTerminator(ir.Branch{Cond: cond, Then: thenB, Else: elseB})
	return nil
}

// FixupTerminatorReturn installs a return, checking the value's type
// against the enclosing function's declared return type.
func (b *Builder) FixupTerminatorReturn(value ir.ValueRef) error {
	f := b.Module.GetFunction(b.fn.fref)
	want := f.Type.FunctionRet()
	got := b.valueType(value)
	if want != got {
		return diag.Errorf(diag.KindTypeMismatch, "function %q returns %s, found %s", f.Name, want, got)
	}
	f.Block(b.fn.position).SetTerminator(ir.Return{Value: value})
	return nil
}
