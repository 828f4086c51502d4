package ir

import "github.com/floatshadow/accipit/internal/types"

// This file implements the BasicBlock, Function and Module types, and the
// arena bookkeeping the Builder drives them through. The Insert*/Attach*/
// Append*/Set* methods below are exported only so that package builder can
// reach them. The Builder drives every call except InsertValue for literal
// constants, which package parser calls directly; no component mutates a
// Module once it has been handed to the evaluator.

// BasicBlock is (optional name, ordered instruction list, terminator).
// Blocks are owned by their parent function's block arena; a block is
// "attached" once it appears in Function.Blocks, and "dangling" if it
// exists only as a forward-referenced placeholder.
type BasicBlock struct {
	Name       string
	Instrs     []ValueRef
	Terminator Terminator
	attached   bool
}

// Attached reports whether b has been appended to its function's ordered
// block list. A block created by a forward label reference starts
// detached ("dangling") until EmitBasicBlock attaches it.
func (b *BasicBlock) Attached() bool { return b.attached }

// NewDanglingBlock constructs a block with the given optional name and the
// sentinel Panic terminator, not yet attached to any function.
func NewDanglingBlock(name string) *BasicBlock {
	return &BasicBlock{Name: name, Terminator: PanicTerm{}}
}

// AppendInstr appends an instruction handle to b's instruction list.
func (b *BasicBlock) AppendInstr(ref ValueRef) {
	b.Instrs = append(b.Instrs, ref)
}

// SetTerminator installs b's terminator, replacing the Panic sentinel.
func (b *BasicBlock) SetTerminator(t Terminator) {
	b.Terminator = t
}

// Function is (function type, name, parameters, externality, ordered
// block list, block arena).
type Function struct {
	Type       *types.Type
	Name       string
	Params     []ValueRef
	IsExternal bool

	Blocks     []BlockRef
	blockArena []*BasicBlock
}

// Block resolves a BlockRef against this function's block arena.
func (f *Function) Block(ref BlockRef) *BasicBlock {
	return f.blockArena[ref]
}

// NumBlocks returns the size of the block arena, including any blocks
// that were created but never attached.
func (f *Function) NumBlocks() int { return len(f.blockArena) }

// EntryBlock returns the function's first attached block.
func (f *Function) EntryBlock() BlockRef { return f.Blocks[0] }

// InsertDanglingBlock allocates a new block in the arena without
// attaching it to the ordered block list; returns its handle.
func (f *Function) InsertDanglingBlock(bb *BasicBlock) BlockRef {
	ref := BlockRef(len(f.blockArena))
	f.blockArena = append(f.blockArena, bb)
	return ref
}

// Attach appends an already-allocated block handle to the ordered block
// list, marking it attached. It is a no-op to attach the same handle
// twice; EmitBasicBlock reaches that case when a label header repeats the
// name of a block that is already attached.
func (f *Function) Attach(ref BlockRef) {
	bb := f.blockArena[ref]
	if bb.attached {
		return
	}
	bb.attached = true
	f.Blocks = append(f.Blocks, ref)
}

// DanglingBlocks returns the handles of every block in the arena that was
// never attached — a non-empty result is a parse error (spec.md §9).
func (f *Function) DanglingBlocks() []BlockRef {
	var out []BlockRef
	for i, b := range f.blockArena {
		if !b.attached {
			out = append(out, BlockRef(i))
		}
	}
	return out
}

// Module is (name, value arena, global handles, function arena, ordered
// function list, name→function map).
type Module struct {
	Name string

	values  []*Value
	Globals []ValueRef

	functions   []*Function
	FuncOrder   []FuncRef
	funcsByName map[string]FuncRef
}

// NewModule returns an empty module ready for the Builder to populate.
func NewModule(name string) *Module {
	return &Module{
		Name:        name,
		funcsByName: make(map[string]FuncRef),
	}
}

// InsertValue appends a value to the arena and returns its handle.
func (m *Module) InsertValue(v *Value) ValueRef {
	ref := ValueRef(len(m.values))
	m.values = append(m.values, v)
	return ref
}

// GetValue resolves a ValueRef against the module's value arena.
func (m *Module) GetValue(ref ValueRef) *Value { return m.values[ref] }

// NumValues returns the size of the value arena.
func (m *Module) NumValues() int { return len(m.values) }

// InsertFunction appends a function to the arena, registers its name, and
// returns its handle. The caller must ensure the name is not a duplicate
// (the Builder checks this before calling).
func (m *Module) InsertFunction(f *Function) FuncRef {
	ref := FuncRef(len(m.functions))
	m.functions = append(m.functions, f)
	m.funcsByName[f.Name] = ref
	m.FuncOrder = append(m.FuncOrder, ref)
	return ref
}

// AddGlobal records a global variable's value handle in declaration order.
func (m *Module) AddGlobal(ref ValueRef) {
	m.Globals = append(m.Globals, ref)
}

// GetFunction resolves a FuncRef against the module's function arena.
func (m *Module) GetFunction(ref FuncRef) *Function { return m.functions[ref] }

// GetFunctionByName looks up a function by its declared name.
func (m *Module) GetFunctionByName(name string) (*Function, FuncRef, bool) {
	ref, ok := m.funcsByName[name]
	if !ok {
		return nil, 0, false
	}
	return m.functions[ref], ref, true
}

// HasFunction reports whether name is already declared in the module.
func (m *Module) HasFunction(name string) bool {
	_, ok := m.funcsByName[name]
	return ok
}
