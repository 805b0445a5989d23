// Package errors defines the user-visible error taxonomy: coded errors with
// source locations that can be matched against sentinel kinds with errors.Is.
package errors

import (
	goerrors "errors"
	"fmt"
	"time"
)

// Kind is a sentinel error identifying a class of failure. Errors returned
// by the parser, the interpreter and the engine unwrap to exactly one Kind.
type Kind struct {
	code ErrorCode
}

func (k *Kind) Error() string {
	return k.code.Description()
}

// Code returns the error code associated with the kind.
func (k *Kind) Code() ErrorCode {
	return k.code
}

var (
	ErrSyntax            = &Kind{code: E1003}
	ErrUndefinedVariable = &Kind{code: E2001}
	ErrUnknownFunction   = &Kind{code: E2002}
	ErrDivisionByZero    = &Kind{code: E3002}
	ErrArity             = &Kind{code: E3010}
	ErrBusy              = &Kind{code: E4001}
)

// Coded is implemented by errors that carry an ErrorCode.
type Coded interface {
	error
	Code() ErrorCode
}

// CodeOf returns the code of the first coded error in err's chain, or the
// empty code if there is none.
func CodeOf(err error) ErrorCode {
	var coded Coded
	if goerrors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}

// SourceLocation represents a position in source code.
type SourceLocation struct {
	Filename string
	Line     int    // 1-based line number
	Column   int    // 1-based column number
	Source   string // The line of source code
}

// String returns a formatted string representation of the source location.
func (s SourceLocation) String() string {
	if s.Filename != "" {
		return fmt.Sprintf("%s:%d:%d", s.Filename, s.Line, s.Column)
	}
	return fmt.Sprintf("%d:%d", s.Line, s.Column)
}

// IsZero returns true if the location has not been set.
func (s SourceLocation) IsZero() bool {
	return s.Line == 0 && s.Column == 0
}

// FriendlyError is an interface for errors that have a human friendly message
// in addition to a the lower level default error message.
type FriendlyError interface {
	Error() string
	FriendlyErrorMessage() string
}

// FormattableError is an interface for errors that can be formatted with
// the enhanced error formatter (with colors, source context, etc).
type FormattableError interface {
	Error() string
	ToFormatted() *FormattedError
}

// EvalError is a semantic failure raised while evaluating an expression,
// on either the interpreted or the compiled path.
type EvalError struct {
	Kind     *Kind
	Message  string
	Location SourceLocation
	Hint     string
}

func (e *EvalError) Error() string {
	if e.Location.IsZero() {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Location)
}

func (e *EvalError) Unwrap() error {
	return e.Kind
}

// Code returns the error code of the underlying kind.
func (e *EvalError) Code() ErrorCode {
	return e.Kind.code
}

// FriendlyErrorMessage returns a human-friendly error message.
func (e *EvalError) FriendlyErrorMessage() string {
	return NewFormatter(false).Format(e.ToFormatted())
}

// ToFormatted converts to the FormattedError type for display.
func (e *EvalError) ToFormatted() *FormattedError {
	fe := &FormattedError{
		Code:     e.Kind.code,
		Kind:     "error",
		Message:  e.Message,
		Filename: e.Location.Filename,
		Line:     e.Location.Line,
		Column:   e.Location.Column,
		Hint:     e.Hint,
	}
	if e.Location.Source != "" {
		fe.SourceLines = []SourceLineEntry{
			{Number: e.Location.Line, Text: e.Location.Source, IsMain: true},
		}
	}
	return fe
}

// NewUndefinedVariable returns an error for a read of a name with no value.
// Candidates are the names currently bound and feed the "did you mean" hint.
func NewUndefinedVariable(name string, loc SourceLocation, candidates []string) *EvalError {
	return &EvalError{
		Kind:     ErrUndefinedVariable,
		Message:  fmt.Sprintf("undefined variable %q", name),
		Location: loc,
		Hint:     FormatSuggestions(SuggestSimilar(name, candidates)),
	}
}

// NewUnknownFunction returns an error for a call to a name that is not a builtin.
func NewUnknownFunction(name string, loc SourceLocation, candidates []string) *EvalError {
	return &EvalError{
		Kind:     ErrUnknownFunction,
		Message:  fmt.Sprintf("unknown function %q", name),
		Location: loc,
		Hint:     FormatSuggestions(SuggestSimilar(name, candidates)),
	}
}

// NewArityError returns an error for a call with the wrong number of arguments.
func NewArityError(name string, want, got int, loc SourceLocation) *EvalError {
	return &EvalError{
		Kind:     ErrArity,
		Message:  fmt.Sprintf("%s() takes %d argument(s) (%d given)", name, want, got),
		Location: loc,
	}
}

// NewDivisionByZero returns an error for a division or modulo by zero.
// The operator is the source symbol, "/" or "%".
func NewDivisionByZero(operator string, loc SourceLocation) *EvalError {
	msg := "division by zero"
	if operator == "%" {
		msg = "modulo by zero"
	}
	return &EvalError{
		Kind:     ErrDivisionByZero,
		Message:  msg,
		Location: loc,
	}
}

// NewBusyError returns the transient error reported when the engine lock
// could not be acquired within the configured wait.
func NewBusyError(wait time.Duration) *EvalError {
	return &EvalError{
		Kind:    ErrBusy,
		Message: fmt.Sprintf("engine busy: lock not acquired within %s", wait),
	}
}
