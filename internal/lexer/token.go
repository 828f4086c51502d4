package lexer

import "fmt"

// Kind discriminates the token categories of spec.md §4.4.
type Kind int

const (
	EOF Kind = iota

	Ident // %, #, or @ prefixed identifier; Prefix tells which

	IntLit
	KwTrue
	KwFalse
	KwNone
	KwNull

	KwFn
	KwLet
	KwLabel
	KwRegion

	TyI32
	TyI1
	TyPtr

	// Binary operator keywords.
	KwAdd
	KwSub
	KwMul
	KwDiv
	KwRem
	KwAnd
	KwOr
	KwXor
	KwLt
	KwGt
	KwLe
	KwGe
	KwEq
	KwNe

	// Instruction/terminator opcode keywords.
	KwOffset
	KwAlloca
	KwLoad
	KwStore
	KwCall
	KwJmp
	KwBr
	KwRet

	// Delimiters.
	LParen
	RParen
	LBracket
	RBracket
	LBrace
	RBrace
	Arrow
	Equal
	Comma
	Colon
	SemiColon
	Less
	Asterisk
)

var kindNames = map[Kind]string{
	EOF: "EOF", Ident: "identifier", IntLit: "integer literal",
	KwTrue: "true", KwFalse: "false", KwNone: "none", KwNull: "null",
	KwFn: "fn", KwLet: "let", KwLabel: "label", KwRegion: "region",
	TyI32: "i32", TyI1: "i1", TyPtr: "ptr",
	KwAdd: "add", KwSub: "sub", KwMul: "mul", KwDiv: "div", KwRem: "rem",
	KwAnd: "and", KwOr: "or", KwXor: "xor",
	KwLt: "lt", KwGt: "gt", KwLe: "le", KwGe: "ge", KwEq: "eq", KwNe: "ne",
	KwOffset: "offset", KwAlloca: "alloca", KwLoad: "load", KwStore: "store",
	KwCall: "call", KwJmp: "jmp", KwBr: "br", KwRet: "ret",
	LParen: "(", RParen: ")", LBracket: "[", RBracket: "]",
	LBrace: "{", RBrace: "}", Arrow: "->", Equal: "=", Comma: ",",
	Colon: ":", SemiColon: ";", Less: "<", Asterisk: "*",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// keywords maps the reserved words (including opcode and type keywords)
// to their token kind; anything not in this table lexes as an error if
// it looks like a bare word outside an identifier prefix.
var keywords = map[string]Kind{
	"true": KwTrue, "false": KwFalse, "none": KwNone, "null": KwNull,
	"fn": KwFn, "let": KwLet, "label": KwLabel, "region": KwRegion,
	"i32": TyI32, "i1": TyI1, "ptr": TyPtr,
	"add": KwAdd, "sub": KwSub, "mul": KwMul, "div": KwDiv, "rem": KwRem,
	"and": KwAnd, "or": KwOr, "xor": KwXor,
	"lt": KwLt, "gt": KwGt, "le": KwLe, "ge": KwGe, "eq": KwEq, "ne": KwNe,
	"offset": KwOffset, "alloca": KwAlloca, "load": KwLoad, "store": KwStore,
	"call": KwCall, "jmp": KwJmp, "br": KwBr, "ret": KwRet,
}

// Prefix is the sigil on an identifier token, giving its scope.
type Prefix byte

const (
	NoPrefix Prefix = 0
	Local    Prefix = '%'
	Param    Prefix = '#'
	Global   Prefix = '@'
)

// Token is one lexical unit together with its source position.
type Token struct {
	Kind   Kind
	Text   string // identifier body (without prefix) or raw literal text
	Prefix Prefix // set only when Kind == Ident
	IntVal int64  // set only when Kind == IntLit
	Line   int
	Col    int
}

func (t Token) String() string {
	if t.Kind == Ident {
		return fmt.Sprintf("%c%s", t.Prefix, t.Text)
	}
	if t.Text != "" {
		return t.Text
	}
	return t.Kind.String()
}
