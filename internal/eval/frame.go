package eval

import (
	"io"

	"github.com/floatshadow/accipit/internal/ir"
	"github.com/floatshadow/accipit/internal/rtbridge"
)

// memKey identifies one memory region in the process-wide store: the
// instruction (or global) that allocated it, and the depth of the frame
// that owns it. spec.md §4.6 keys the store on exactly this pair so that
// two different calls to the same function, each allocating from the
// same `alloca` instruction, get independent regions.
type memKey struct {
	Base       ir.ValueRef
	FrameIndex int
}

// Frame is one call's local state: its depth in the stack (frame_index
// in spec.md §4.6, 0 reserved for the global frame), the bindings from
// instruction/parameter handles to runtime values, and the set of
// memory keys this frame allocated (so teardown can release exactly
// those regions and no others).
//
// Grounded on executor.rs's `Frame{frame_val_env, frame_memory,
// working_function}`; `frame_memory` is folded into the shared
// `State.memory` store here (keyed by memKey) rather than duplicated
// per frame, since a MemRef's key already identifies which frame it
// belongs to.
type Frame struct {
	Depth   int
	Values  map[ir.ValueRef]RVal
	allocas []memKey
}

func newFrame(depth int) *Frame {
	return &Frame{Depth: depth, Values: make(map[ir.ValueRef]RVal)}
}

func (f *Frame) set(ref ir.ValueRef, v RVal) { f.Values[ref] = v }

func (f *Frame) get(ref ir.ValueRef) (RVal, bool) {
	v, ok := f.Values[ref]
	return v, ok
}

// State is the evaluator's complete mutable state (spec.md §4.6): the
// global frame, the call stack, the shared memory store, the current
// position, and the program counter (the instruction being evaluated; it
// is recorded but no error message includes it).
//
// Grounded on executor.rs's `ProgramEnv{position, program_counter,
// global_frame, frames}`; `search_value_env`'s top-frame-then-global
// fallback is `State.lookup` below.
type State struct {
	Module *ir.Module

	global *Frame
	frames []*Frame

	memory map[memKey][]RVal

	Position       ir.BlockRef
	ProgramCounter ir.ValueRef

	// Bridge is the host I/O surface a FnCall to a recognized runtime
	// built-in dispatches to (spec.md §4.7).
	Bridge *rtbridge.Bridge
	// DiagOut receives verbose-mode rune annotations and the one-time
	// starttime/stoptime warnings; defaults to io.Discard.
	DiagOut io.Writer
}

// NewState returns an evaluator state with an empty global frame, ready
// for Bootstrap to populate it from a module's constants and globals.
func NewState(mod *ir.Module) *State {
	return &State{
		Module:         mod,
		global:         newFrame(0),
		memory:         make(map[memKey][]RVal),
		Position:       ir.NoBlock,
		ProgramCounter: ir.NoValue,
		DiagOut:        io.Discard,
	}
}

// top returns the innermost call frame, or the global frame if no call
// is in progress (so top-level module bootstrap can reuse the same
// binding path as a real call).
func (s *State) top() *Frame {
	if len(s.frames) == 0 {
		return s.global
	}
	return s.frames[len(s.frames)-1]
}

func (s *State) pushFrame() *Frame {
	f := newFrame(len(s.frames) + 1)
	s.frames = append(s.frames, f)
	return f
}

// popFrame pops the top call frame and releases every memory region it
// allocated, satisfying the "frame hygiene" property (spec.md §8,
// Universal invariant 6): after a function returns, no memory key at
// that frame's depth remains in the store.
func (s *State) popFrame() {
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	for _, key := range f.allocas {
		delete(s.memory, key)
	}
}

// setVal binds ref to v in the top frame (a call frame, or the global
// frame outside any call).
func (s *State) setVal(ref ir.ValueRef, v RVal) { s.top().set(ref, v) }

// lookup resolves ref against the top frame first, falling back to the
// global frame — the same order executor.rs's `search_value_env` walks,
// so a function body can read constants and global-pointer bindings
// without them being re-bound per call.
func (s *State) lookup(ref ir.ValueRef) (RVal, bool) {
	if len(s.frames) > 0 {
		if v, ok := s.top().get(ref); ok {
			return v, true
		}
	}
	return s.global.get(ref)
}

// allocate reserves a fresh region of count Undefined slots keyed by
// (base, the current frame's depth), records the key in the current
// frame's alloca set, and returns the MemRef addressing its first slot.
func (s *State) allocate(base ir.ValueRef, count int) MemRef {
	frame := s.top()
	key := memKey{Base: base, FrameIndex: frame.Depth}
	region := make([]RVal, count)
	for i := range region {
		region[i] = RUndefined{}
	}
	s.memory[key] = region
	frame.allocas = append(frame.allocas, key)
	return MemRef{FrameIndex: frame.Depth, Base: base, OffsetWithin: 0, RegionSize: count}
}

// region resolves a MemRef to its backing slice. The global frame's
// regions (frame index 0) outlive every call, so a pointer into a
// global can be read/written from any depth.
func (s *State) region(ref MemRef) []RVal {
	return s.memory[memKey{Base: ref.Base, FrameIndex: ref.FrameIndex}]
}
