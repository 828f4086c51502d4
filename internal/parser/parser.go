// Package parser is the recursive-descent front end driving
// internal/builder (spec.md §4.5). The parser itself is stateless
// beyond its token cursor; all IR state lives in the Builder, exactly
// as original_source/src/frontend/parser.rs's production functions each
// thread a shared IRBuilder through rather than building their own
// tree.
package parser

import (
	"github.com/floatshadow/accipit/internal/builder"
	"github.com/floatshadow/accipit/internal/diag"
	"github.com/floatshadow/accipit/internal/ir"
	"github.com/floatshadow/accipit/internal/lexer"
	"github.com/floatshadow/accipit/internal/types"
)

// Parse lexes and parses src into a complete Module named moduleName,
// or returns the first positioned lexer/parser error.
func Parse(src string, moduleName string) (*ir.Module, error) {
	toks, err := lexer.Lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, b: builder.New(moduleName)}
	if err := p.parseModule(); err != nil {
		return nil, err
	}
	return p.b.Module, nil
}

type parser struct {
	toks []lexer.Token
	pos  int
	b    *builder.Builder
}

func (p *parser) peek() lexer.Token { return p.toks[p.pos] }

func (p *parser) pos0() diag.Pos {
	t := p.peek()
	return diag.Pos{Line: t.Line, Col: t.Col}
}

func (p *parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if t.Kind != lexer.EOF {
		p.pos++
	}
	return t
}

func (p *parser) at(k lexer.Kind) bool { return p.peek().Kind == k }

func (p *parser) expect(k lexer.Kind) (lexer.Token, error) {
	t := p.peek()
	if t.Kind != k {
		return lexer.Token{}, diag.At(p.pos0(), diag.KindParse, "expected %s, found %s", k, t.Kind)
	}
	return p.advance(), nil
}

func (p *parser) expectIdent(prefix lexer.Prefix) (lexer.Token, error) {
	t := p.peek()
	if t.Kind != lexer.Ident || t.Prefix != prefix {
		return lexer.Token{}, diag.At(p.pos0(), diag.KindParse,
			"expected identifier prefixed %q, found %s", string(rune(prefix)), t.Kind)
	}
	return p.advance(), nil
}

// parseModule consumes { function | global } until EOF.
func (p *parser) parseModule() error {
	for !p.at(lexer.EOF) {
		if p.at(lexer.KwFn) {
			if err := p.parseFunction(); err != nil {
				return err
			}
			continue
		}
		if p.at(lexer.Ident) && p.peek().Prefix == lexer.Global {
			if err := p.parseGlobal(); err != nil {
				return err
			}
			continue
		}
		return diag.At(p.pos0(), diag.KindParse, "expected a function or global declaration, found %s", p.peek().Kind)
	}
	// The parser succeeds only once the entire token stream is consumed
	// (spec.md §4.5); EOF is what the loop above just confirmed.
	return nil
}

// parseGlobal consumes '@' ident ':' 'region' type ',' int.
func (p *parser) parseGlobal() error {
	name, err := p.expectIdent(lexer.Global)
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.Colon); err != nil {
		return err
	}
	if _, err := p.expect(lexer.KwRegion); err != nil {
		return err
	}
	elemTy, err := p.parseType()
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.Comma); err != nil {
		return err
	}
	sizeTok, err := p.expect(lexer.IntLit)
	if err != nil {
		return err
	}
	p.b.EmitGlobal(name.Text, elemTy, int(sizeTok.IntVal))
	return nil
}

// parseFunction consumes 'fn' ident '(' [param {',' param}] ')' '->' type (';' | '{' body '}').
func (p *parser) parseFunction() error {
	if _, err := p.expect(lexer.KwFn); err != nil {
		return err
	}
	name, err := p.expectIdent(lexer.Global)
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.LParen); err != nil {
		return err
	}
	var params []builder.Param
	if !p.at(lexer.RParen) {
		for {
			param, err := p.parseParam()
			if err != nil {
				return err
			}
			params = append(params, param)
			if !p.at(lexer.Comma) {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return err
	}
	if _, err := p.expect(lexer.Arrow); err != nil {
		return err
	}
	ret, err := p.parseType()
	if err != nil {
		return err
	}

	if p.at(lexer.SemiColon) {
		p.advance()
		_, err := p.b.EmitFunction(name.Text, params, ret, true)
		return err
	}

	if _, err := p.expect(lexer.LBrace); err != nil {
		return err
	}
	if _, err := p.b.EmitFunction(name.Text, params, ret, false); err != nil {
		return err
	}
	for !p.at(lexer.RBrace) {
		if err := p.parseBlock(); err != nil {
			return err
		}
	}
	if _, err := p.expect(lexer.RBrace); err != nil {
		return err
	}
	return p.b.FinishFunction()
}

func (p *parser) parseParam() (builder.Param, error) {
	name, err := p.expectIdent(lexer.Param)
	if err != nil {
		return builder.Param{}, err
	}
	if _, err := p.expect(lexer.Colon); err != nil {
		return builder.Param{}, err
	}
	ty, err := p.parseType()
	if err != nil {
		return builder.Param{}, err
	}
	return builder.Param{Name: name.Text, Type: ty}, nil
}

// parseType consumes 'i32' | 'i1' | '()' | type '*' | 'ptr' | 'fn' '(' [type {',' type}] ')' '->' type.
func (p *parser) parseType() (*types.Type, error) {
	var base *types.Type
	switch {
	case p.at(lexer.TyI32):
		p.advance()
		base = types.I32()
	case p.at(lexer.TyI1):
		p.advance()
		base = types.I1()
	case p.at(lexer.TyPtr):
		p.advance()
		base = types.OpaquePointer()
	case p.at(lexer.LParen):
		p.advance()
		if _, err := p.expect(lexer.RParen); err != nil {
			return nil, err
		}
		base = types.Unit()
	case p.at(lexer.KwFn):
		p.advance()
		if _, err := p.expect(lexer.LParen); err != nil {
			return nil, err
		}
		var params []*types.Type
		if !p.at(lexer.RParen) {
			for {
				pt, err := p.parseType()
				if err != nil {
					return nil, err
				}
				params = append(params, pt)
				if !p.at(lexer.Comma) {
					break
				}
				p.advance()
			}
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Arrow); err != nil {
			return nil, err
		}
		ret, err := p.parseType()
		if err != nil {
			return nil, err
		}
		base = types.Function(params, ret)
	default:
		return nil, diag.At(p.pos0(), diag.KindParse, "expected a type, found %s", p.peek().Kind)
	}
	for p.at(lexer.Asterisk) {
		p.advance()
		base = types.Pointer(base)
	}
	return base, nil
}

// parseBlock consumes ident ':' { instr } terminator.
func (p *parser) parseBlock() error {
	label, err := p.expectIdent(lexer.Local)
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.Colon); err != nil {
		return err
	}
	p.b.EmitBasicBlock(label.Text)

	for p.at(lexer.KwLet) {
		if err := p.parseInstr(); err != nil {
			return err
		}
	}
	return p.parseTerminator()
}

// parseSymbol consumes ident [':' type] for a 'let' binding target.
func (p *parser) parseSymbol() (string, *types.Type, error) {
	name, err := p.expectIdent(lexer.Local)
	if err != nil {
		return "", nil, err
	}
	if !p.at(lexer.Colon) {
		return name.Text, nil, nil
	}
	p.advance()
	ty, err := p.parseType()
	if err != nil {
		return "", nil, err
	}
	return name.Text, ty, nil
}

var binOpKinds = map[lexer.Kind]ir.BinOp{
	lexer.KwAdd: ir.Add, lexer.KwSub: ir.Sub, lexer.KwMul: ir.Mul,
	lexer.KwDiv: ir.Div, lexer.KwRem: ir.Rem,
	lexer.KwAnd: ir.And, lexer.KwOr: ir.Or, lexer.KwXor: ir.Xor,
	lexer.KwLt: ir.Lt, lexer.KwGt: ir.Gt, lexer.KwLe: ir.Le,
	lexer.KwGe: ir.Ge, lexer.KwEq: ir.Eq, lexer.KwNe: ir.Ne,
}

// parseInstr consumes 'let' ident [':' type] '=' rhs.
func (p *parser) parseInstr() error {
	if _, err := p.expect(lexer.KwLet); err != nil {
		return err
	}
	name, annotated, err := p.parseSymbol()
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.Equal); err != nil {
		return err
	}

	if op, ok := binOpKinds[p.peek().Kind]; ok {
		p.advance()
		lhs, err := p.parseValue()
		if err != nil {
			return err
		}
		if _, err := p.expect(lexer.Comma); err != nil {
			return err
		}
		rhs, err := p.parseValue()
		if err != nil {
			return err
		}
		_, err = p.b.EmitBinary(op, name, lhs, rhs, annotated)
		return err
	}

	switch p.peek().Kind {
	case lexer.KwOffset:
		return p.parseOffset(name, annotated)
	case lexer.KwAlloca:
		return p.parseAlloca(name, annotated)
	case lexer.KwLoad:
		return p.parseLoad(name, annotated)
	case lexer.KwStore:
		return p.parseStore(annotated)
	case lexer.KwCall:
		return p.parseCall(name)
	default:
		return diag.At(p.pos0(), diag.KindParse, "expected an instruction opcode, found %s", p.peek().Kind)
	}
}

func (p *parser) parseOffset(name string, annotated *types.Type) error {
	p.advance() // 'offset'
	elemTy, err := p.parseType()
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.Comma); err != nil {
		return err
	}
	base, err := p.parseValue()
	if err != nil {
		return err
	}
	var indices []ir.ValueRef
	var bounds []ir.Bound
	for p.at(lexer.Comma) {
		p.advance()
		if _, err := p.expect(lexer.LBracket); err != nil {
			return err
		}
		idx, err := p.parseValue()
		if err != nil {
			return err
		}
		if _, err := p.expect(lexer.Less); err != nil {
			return err
		}
		var bound ir.Bound
		if p.at(lexer.KwNone) {
			p.advance()
			bound = ir.Bound{Unbounded: true}
		} else {
			tok, err := p.expect(lexer.IntLit)
			if err != nil {
				return err
			}
			bound = ir.Bound{N: int(tok.IntVal)}
		}
		if _, err := p.expect(lexer.RBracket); err != nil {
			return err
		}
		indices = append(indices, idx)
		bounds = append(bounds, bound)
	}
	_, err = p.b.EmitOffset(name, elemTy, base, indices, bounds, annotated)
	return err
}

func (p *parser) parseAlloca(name string, annotated *types.Type) error {
	p.advance() // 'alloca'
	elemTy, err := p.parseType()
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.Comma); err != nil {
		return err
	}
	countTok, err := p.expect(lexer.IntLit)
	if err != nil {
		return err
	}
	_, err = p.b.EmitAlloca(name, elemTy, int(countTok.IntVal), annotated)
	return err
}

func (p *parser) parseLoad(name string, annotated *types.Type) error {
	p.advance() // 'load'
	addr, err := p.parseValue()
	if err != nil {
		return err
	}
	_, err = p.b.EmitLoad(name, addr, annotated)
	return err
}

func (p *parser) parseStore(annotated *types.Type) error {
	p.advance() // 'store'
	value, err := p.parseValue()
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.Comma); err != nil {
		return err
	}
	addr, err := p.parseValue()
	if err != nil {
		return err
	}
	_, err = p.b.EmitStore(value, addr, annotated)
	return err
}

func (p *parser) parseCall(name string) error {
	p.advance() // 'call'
	callee, err := p.expectIdent(lexer.Global)
	if err != nil {
		return err
	}
	var args []ir.ValueRef
	for p.at(lexer.Comma) {
		p.advance()
		v, err := p.parseValue()
		if err != nil {
			return err
		}
		args = append(args, v)
	}
	_, err = p.b.EmitCall(name, callee.Text, args)
	return err
}

// parseTerminator consumes 'jmp' 'label' ident | 'br' value ',' 'label' ident ',' 'label' ident | 'ret' value.
func (p *parser) parseTerminator() error {
	switch p.peek().Kind {
	case lexer.KwJmp:
		p.advance()
		if _, err := p.expect(lexer.KwLabel); err != nil {
			return err
		}
		label, err := p.expectIdent(lexer.Local)
		if err != nil {
			return err
		}
		dest := p.b.GetOrInsertPlaceholderBlock(label.Text)
		p.b.FixupTerminatorJump(dest)
		return nil

	case lexer.KwBr:
		p.advance()
		cond, err := p.parseValue()
		if err != nil {
			return err
		}
		if _, err := p.expect(lexer.Comma); err != nil {
			return err
		}
		if _, err := p.expect(lexer.KwLabel); err != nil {
			return err
		}
		thenLabel, err := p.expectIdent(lexer.Local)
		if err != nil {
			return err
		}
		if _, err := p.expect(lexer.Comma); err != nil {
			return err
		}
		if _, err := p.expect(lexer.KwLabel); err != nil {
			return err
		}
		elseLabel, err := p.expectIdent(lexer.Local)
		if err != nil {
			return err
		}
		thenRef := p.b.GetOrInsertPlaceholderBlock(thenLabel.Text)
		elseRef := p.b.GetOrInsertPlaceholderBlock(elseLabel.Text)
		return p.b.FixupTerminatorBranch(cond, thenRef, elseRef)

	case lexer.KwRet:
		p.advance()
		val, err := p.parseValue()
		if err != nil {
			return err
		}
		return p.b.FixupTerminatorReturn(val)

	default:
		return diag.At(p.pos0(), diag.KindParse, "expected a terminator (jmp/br/ret), found %s", p.peek().Kind)
	}
}

// parseValue consumes ident | int | 'true' | 'false' | '(' ')' | 'null',
// resolving identifiers against the Builder's local/global scope and
// inserting a fresh arena entry for literal constants.
func (p *parser) parseValue() (ir.ValueRef, error) {
	t := p.peek()
	switch t.Kind {
	case lexer.Ident:
		p.advance()
		ref, ok := p.b.GetValueRef(t.Text)
		if !ok {
			return 0, diag.At(p.pos0(), diag.KindSymbolNotFound, "undefined symbol %q", t.String())
		}
		return ref, nil
	case lexer.IntLit:
		p.advance()
		return p.b.Module.InsertValue(&ir.Value{Type: types.I32(), Kind: ir.ConstInt{Val: int32(t.IntVal)}}), nil
	case lexer.KwTrue:
		p.advance()
		return p.b.Module.InsertValue(&ir.Value{Type: types.I1(), Kind: ir.ConstBool{Val: true}}), nil
	case lexer.KwFalse:
		p.advance()
		return p.b.Module.InsertValue(&ir.Value{Type: types.I1(), Kind: ir.ConstBool{Val: false}}), nil
	case lexer.LParen:
		p.advance()
		if _, err := p.expect(lexer.RParen); err != nil {
			return 0, err
		}
		return p.b.Module.InsertValue(&ir.Value{Type: types.Unit(), Kind: ir.ConstUnit{}}), nil
	case lexer.KwNull:
		p.advance()
		return p.b.Module.InsertValue(&ir.Value{Type: types.OpaquePointer(), Kind: ir.ConstNullPtr{}}), nil
	default:
		return 0, diag.At(p.pos0(), diag.KindParse, "expected a value, found %s", t.Kind)
	}
}
