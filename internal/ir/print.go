package ir

// This file implements the module pretty-printer (spec.md §6, dump
// format). It is a small context-carrying formatter rather than one that
// embeds back-references into each value (spec.md §9): operands only
// know their own handle, so printing an instruction requires resolving
// sibling operands through the owning Module, which is exactly what
// Printer exists to thread through.

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Printer renders a Module in the textual dump format that the lexer and
// parser can re-consume (the round-trip property of spec.md §8).
type Printer struct {
	w   io.Writer
	mod *Module
}

// NewPrinter returns a Printer that writes mod's dump form to w.
func NewPrinter(w io.Writer, mod *Module) *Printer {
	return &Printer{w: w, mod: mod}
}

// Print writes the complete module dump.
func (p *Printer) Print() error {
	for _, ref := range p.mod.Globals {
		if err := p.printGlobal(ref); err != nil {
			return err
		}
	}
	for _, fref := range p.mod.FuncOrder {
		if err := p.printFunction(p.mod.GetFunction(fref)); err != nil {
			return err
		}
	}
	return nil
}

// String renders mod in dump form without requiring a caller-supplied
// io.Writer; used by CLI --dump-module. Evaluator diagnostics do not use it.
func String(mod *Module) string {
	var buf bytes.Buffer
	_ = NewPrinter(&buf, mod).Print()
	return buf.String()
}

func (p *Printer) printGlobal(ref ValueRef) error {
	v := p.mod.GetValue(ref)
	gv, ok := v.Kind.(GlobalVar)
	if !ok {
		return fmt.Errorf("global %s has non-global kind %T", v.Name, v.Kind)
	}
	_, err := fmt.Fprintf(p.w, "@%s: region %s, %d\n\n", v.Name, gv.ElemType, gv.Size)
	return err
}

func (p *Printer) printFunction(f *Function) error {
	params := make([]string, len(f.Params))
	for i, pref := range f.Params {
		pv := p.mod.GetValue(pref)
		params[i] = fmt.Sprintf("#%s: %s", pv.Name, pv.Type)
	}
	ret := f.Type.FunctionRet()
	if _, err := fmt.Fprintf(p.w, "fn @%s(%s) -> %s", f.Name, strings.Join(params, ", "), ret); err != nil {
		return err
	}
	if f.IsExternal {
		_, err := fmt.Fprint(p.w, ";\n\n")
		return err
	}
	if _, err := fmt.Fprint(p.w, " {\n"); err != nil {
		return err
	}
	for _, bref := range f.Blocks {
		if err := p.printBlock(f, f.Block(bref)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(p.w, "}\n\n")
	return err
}

func (p *Printer) printBlock(f *Function, b *BasicBlock) error {
	if _, err := fmt.Fprintf(p.w, "%%%s:\n", b.Name); err != nil {
		return err
	}
	for _, iref := range b.Instrs {
		if err := p.printInstr(iref); err != nil {
			return err
		}
	}
	return p.printTerminator(f, b.Terminator)
}

func (p *Printer) printInstr(ref ValueRef) error {
	v := p.mod.GetValue(ref)
	rhs, err := p.rhsString(v.Kind)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(p.w, "  let %%%s: %s = %s\n", v.Name, v.Type, rhs)
	return err
}

func (p *Printer) rhsString(kind ValueKind) (string, error) {
	switch k := kind.(type) {
	case Binary:
		return fmt.Sprintf("%s %s, %s", k.Op, p.operand(k.LHS), p.operand(k.RHS)), nil
	case Offset:
		parts := make([]string, len(k.Indices))
		for i, idx := range k.Indices {
			parts[i] = fmt.Sprintf("[%s < %s]", p.operand(idx), k.Bounds[i])
		}
		return fmt.Sprintf("offset %s, %s, %s", k.ElemType, p.operand(k.Base), strings.Join(parts, ", ")), nil
	case Alloca:
		return fmt.Sprintf("alloca %s, %d", k.ElemType, k.Count), nil
	case Load:
		return fmt.Sprintf("load %s", p.operand(k.Addr)), nil
	case Store:
		return fmt.Sprintf("store %s, %s", p.operand(k.Value), p.operand(k.Addr)), nil
	case FnCall:
		if len(k.Args) == 0 {
			return fmt.Sprintf("call @%s", k.Callee), nil
		}
		args := make([]string, len(k.Args))
		for i, a := range k.Args {
			args[i] = p.operand(a)
		}
		return fmt.Sprintf("call @%s, %s", k.Callee, strings.Join(args, ", ")), nil
	default:
		return "", fmt.Errorf("not an instruction: %T", kind)
	}
}

func (p *Printer) printTerminator(f *Function, t Terminator) error {
	switch term := t.(type) {
	case Jump:
		_, err := fmt.Fprintf(p.w, "  jmp label %%%s\n", f.Block(term.Dest).Name)
		return err
	case Branch:
		_, err := fmt.Fprintf(p.w, "  br %s, label %%%s, label %%%s\n",
			p.operand(term.Cond), f.Block(term.Then).Name, f.Block(term.Else).Name)
		return err
	case Return:
		_, err := fmt.Fprintf(p.w, "  ret %s\n", p.operand(term.Value))
		return err
	case PanicTerm:
		_, err := fmt.Fprint(p.w, "  panic!\n")
		return err
	default:
		return fmt.Errorf("unknown terminator %T", t)
	}
}

// operand renders a value reference the way it appears on the
// right-hand side of an instruction or terminator: literal form for
// constants, prefixed identifier otherwise.
func (p *Printer) operand(ref ValueRef) string {
	v := p.mod.GetValue(ref)
	switch k := v.Kind.(type) {
	case ConstInt:
		return fmt.Sprintf("%d", k.Val)
	case ConstBool:
		if k.Val {
			return "true"
		}
		return "false"
	case ConstUnit:
		return "()"
	case ConstNullPtr:
		return "null"
	case Argument:
		return "#" + v.Name
	case GlobalVar:
		return "@" + v.Name
	default:
		return "%" + v.Name
	}
}
