// Package diag defines the error taxonomy shared by every phase of the
// interpreter (lexer, parser, builder, evaluator, CLI). Each kind below is
// a sentinel; callers test for it with errors.Is. Wrapping follows the
// convention used throughout golang.org/x/tools/internal/lsp/cache: errors
// are composed outward-in with golang.org/x/xerrors so that context
// accumulates at each layer boundary without losing the root sentinel.
package diag

import (
	"fmt"

	errors "golang.org/x/xerrors"
)

// Kind is one of the fixed, user-visible error categories from the
// specification's error handling design.
type Kind struct{ name string }

func (k *Kind) Error() string { return k.name }

var (
	KindLexer                      = &Kind{"lexer-error"}
	KindParse                      = &Kind{"parse-error"}
	KindSymbolNotFound             = &Kind{"symbol-not-found"}
	KindTypeMismatch               = &Kind{"type-mismatch"}
	KindOffsetInvalidIndex         = &Kind{"offset-invalid-index"}
	KindOffsetExceedsRegion        = &Kind{"offset-exceeds-region"}
	KindInvalidPointer             = &Kind{"invalid-pointer"}
	KindUseUndefined               = &Kind{"use-undefined"}
	KindStuckInPanic               = &Kind{"stuck-in-panic"}
	KindNotImplemented             = &Kind{"not-implemented"}
	KindInvalidInputArgument       = &Kind{"invalid-input-argument"}
	KindFunctionArityMismatch      = &Kind{"function-arity-mismatch"}
	KindReturnDanglingPointer      = &Kind{"return-dangling-pointer"}
	KindIncompatibleBinaryOperands = &Kind{"incompatible-binary-operands"}
	KindPanicIO                    = &Kind{"panic-io"}
)

// Pos is a 1-based line/column position within a source file.
type Pos struct {
	Line, Col int
}

func (p Pos) String() string {
	if p.Line == 0 {
		return "<unknown position>"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Errorf builds an error of the given kind with a formatted message,
// still matchable by errors.Is(err, kind).
func Errorf(kind *Kind, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return errors.Errorf("%s: %w", msg, kind)
}

// At is Errorf with a source position prepended, for lexer/parser errors.
func At(pos Pos, kind *Kind, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return errors.Errorf("%s: %s: %w", pos, msg, kind)
}

// Wrap adds one more layer of context to an existing diagnostic error
// without discarding the chain beneath it (e.g. the CLI wrapping an
// evaluator error with the name of the file being run).
func Wrap(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return errors.Errorf("%s: %w", msg, err)
}
