// Package diag holds the error taxonomy shared by every stage of the
// pipeline. A stage reports the first problem it finds as an *Error and stops;
// nothing downstream runs after a diagnostic.
package diag

import (
	"errors"
	"fmt"
)

// ExitCode is the process status used for any diagnostic.
const ExitCode = 10

// Kind identifies one diagnostic. Kinds are grouped into classes by Class.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindLexical
	KindSyntax
	KindDuplicateDeclaration
	KindUndeclaredIdentifier
	KindUnknownType
	KindProcedureNotFound
	KindNotAVariable
	KindArity
	KindTypeError
	KindTypeMismatch
	KindUndefinedVariable
	KindDivisionByZero
	KindInputError
	KindStackOverflow
	KindCancelled
	KindOverflow
)

func (k Kind) String() string {
	switch k {
	case KindLexical:
		return "UnexpectedCharacter"
	case KindSyntax:
		return "UnexpectedToken"
	case KindDuplicateDeclaration:
		return "DuplicateDeclaration"
	case KindUndeclaredIdentifier:
		return "UndeclaredIdentifier"
	case KindUnknownType:
		return "UnknownType"
	case KindProcedureNotFound:
		return "ProcedureNotFound"
	case KindNotAVariable:
		return "NotAVariable"
	case KindArity:
		return "ArgumentCount"
	case KindTypeError:
		return "IncompatibleAssignment"
	case KindTypeMismatch:
		return "OperandMismatch"
	case KindUndefinedVariable:
		return "UndefinedVariable"
	case KindDivisionByZero:
		return "DivisionByZero"
	case KindInputError:
		return "InvalidInput"
	case KindStackOverflow:
		return "StackOverflow"
	case KindCancelled:
		return "Cancelled"
	case KindOverflow:
		return "IntegerOverflow"
	default:
		return "Invalid"
	}
}

// Class returns the error family a kind belongs to.
func (k Kind) Class() string {
	switch k {
	case KindLexical:
		return "LexicalError"
	case KindSyntax:
		return "SyntaxError"
	case KindDuplicateDeclaration, KindUndeclaredIdentifier, KindUnknownType,
		KindProcedureNotFound, KindNotAVariable:
		return "SemanticError"
	case KindArity:
		return "ArityError"
	case KindTypeError, KindTypeMismatch:
		return "TypeError"
	case KindUndefinedVariable:
		return "RuntimeNameError"
	default:
		return "RuntimeError"
	}
}

// Error is a positioned diagnostic. Line and Column are 1-based; zero means
// the position is unknown.
type Error struct {
	Kind   Kind
	Msg    string
	Token  string
	Line   int
	Column int
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s[%s] %d:%d: %s", e.Kind.Class(), e.Kind, e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("%s[%s]: %s", e.Kind.Class(), e.Kind, e.Msg)
}

// HasPosition reports whether the diagnostic carries a source position.
func (e *Error) HasPosition() bool { return e.Line > 0 }

// New builds a diagnostic without a position.
func New(kind Kind, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, a...)}
}

// At builds a diagnostic anchored at the given source position.
func At(kind Kind, line, column int, tok string, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, a...), Token: tok, Line: line, Column: column}
}

// As extracts a diagnostic from an error chain.
func As(err error) (*Error, bool) {
	var d *Error
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// Is reports whether err carries a diagnostic of the given kind.
func Is(err error, kind Kind) bool {
	d, ok := As(err)
	return ok && d.Kind == kind
}
