package parser

import (
	"fmt"

	"github.com/deepnoodle-ai/hotpath/errors"
	"github.com/deepnoodle-ai/hotpath/internal/token"
)

// ErrorOpts is a struct that holds a variety of error data.
// All fields are optional, although one of `Cause` or `Message`
// are recommended. `Message` takes priority over the text of `Cause`.
type ErrorOpts struct {
	Code          errors.ErrorCode
	Message       string
	Cause         error
	File          string
	StartPosition token.Position
	EndPosition   token.Position
	SourceCode    string
}

// SyntaxError reports malformed input. It matches errors.ErrSyntax with
// errors.Is regardless of its specific code.
type SyntaxError struct {
	code          errors.ErrorCode
	message       string
	cause         error
	file          string
	startPosition token.Position
	endPosition   token.Position
	sourceCode    string
}

// NewSyntaxError returns a new SyntaxError populated with the given error data.
func NewSyntaxError(opts ErrorOpts) *SyntaxError {
	code := opts.Code
	if code == "" {
		code = errors.E1003
	}
	message := opts.Message
	if message == "" && opts.Cause != nil {
		message = opts.Cause.Error()
	}
	return &SyntaxError{
		code:          code,
		message:       message,
		cause:         opts.Cause,
		file:          opts.File,
		startPosition: opts.StartPosition,
		endPosition:   opts.EndPosition,
		sourceCode:    opts.SourceCode,
	}
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error: %s (line %d, column %d)",
		e.message, e.startPosition.LineNumber(), e.startPosition.ColumnNumber())
}

// Code returns the specific error code, e.g. E1007 for an unclosed delimiter.
func (e *SyntaxError) Code() errors.ErrorCode {
	return e.code
}

func (e *SyntaxError) Message() string {
	return e.message
}

func (e *SyntaxError) Cause() error {
	return e.cause
}

func (e *SyntaxError) File() string {
	return e.file
}

func (e *SyntaxError) StartPosition() token.Position {
	return e.startPosition
}

func (e *SyntaxError) EndPosition() token.Position {
	return e.endPosition
}

func (e *SyntaxError) SourceCode() string {
	return e.sourceCode
}

// Unwrap returns the syntax sentinel and the lexer error, if any.
func (e *SyntaxError) Unwrap() []error {
	if e.cause != nil {
		return []error{errors.ErrSyntax, e.cause}
	}
	return []error{errors.ErrSyntax}
}

func (e *SyntaxError) FriendlyErrorMessage() string {
	return errors.NewFormatter(false).Format(e.ToFormatted())
}

// ToFormatted converts the parser error to a FormattedError for display.
func (e *SyntaxError) ToFormatted() *errors.FormattedError {
	start := e.startPosition
	end := e.endPosition
	fe := &errors.FormattedError{
		Code:     e.code,
		Kind:     "syntax error",
		Message:  e.message,
		Filename: e.file,
		Line:     start.LineNumber(),
		Column:   start.ColumnNumber(),
	}
	if end.Line == start.Line && end.Column > start.Column {
		fe.EndColumn = end.Column
	}
	if e.sourceCode != "" {
		fe.SourceLines = []errors.SourceLineEntry{
			{Number: start.LineNumber(), Text: e.sourceCode, IsMain: true},
		}
	}
	return fe
}

func tokenTypeDescription(t token.Type) string {
	switch t {
	case token.EOF:
		return "end of input"
	case token.IDENT:
		return "identifier"
	case token.INT:
		return "integer"
	case token.IF:
		return "if"
	default:
		return fmt.Sprintf("%q", string(t))
	}
}

func tokenDescription(t token.Token) string {
	switch t.Type {
	case token.EOF:
		return "end of input"
	case token.IDENT:
		return fmt.Sprintf("identifier %q", t.Literal)
	case token.INT:
		return fmt.Sprintf("integer %s", t.Literal)
	default:
		return fmt.Sprintf("%q", t.Literal)
	}
}
