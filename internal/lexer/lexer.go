// Package lexer provides a Lexer that converts expression source text into tokens.
package lexer

import (
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/hotpath/internal/token"
)

// Error describes an invalid character sequence found in the input.
type Error struct {
	Msg string
	Pos token.Position
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (line %d, column %d)", e.Msg, e.Pos.LineNumber(), e.Pos.ColumnNumber())
}

// Lexer walks the input one byte at a time. Only ASCII is meaningful to the
// language, so multi-byte runes surface as illegal characters.
type Lexer struct {
	input     string
	position  int  // index of ch
	next      int  // index after ch
	ch        byte // current character, 0 at EOF
	line      int
	lineStart int
	filename  string
}

// New returns a Lexer positioned at the start of input.
func New(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// SetFilename sets the filename reported in token positions.
func (l *Lexer) SetFilename(filename string) {
	l.filename = filename
}

// Filename returns the filename reported in token positions.
func (l *Lexer) Filename() string {
	return l.filename
}

// Next returns the next token. At the end of the input it keeps returning EOF.
func (l *Lexer) Next() (token.Token, error) {
	l.skipWhitespace()
	start := l.pos()
	var tok token.Token
	switch l.ch {
	case 0:
		if l.position < len(l.input) {
			l.readChar()
			return token.Token{}, &Error{Msg: "unexpected NUL character", Pos: start}
		}
		tok = l.newToken(token.EOF, "", start)
	case '+':
		tok = l.single(token.PLUS, start)
	case '-':
		tok = l.single(token.MINUS, start)
	case '*':
		tok = l.single(token.ASTERISK, start)
	case '/':
		tok = l.single(token.SLASH, start)
	case '%':
		tok = l.single(token.MOD, start)
	case '(':
		tok = l.single(token.LPAREN, start)
	case ')':
		tok = l.single(token.RPAREN, start)
	case ',':
		tok = l.single(token.COMMA, start)
	case ';':
		tok = l.single(token.SEMICOLON, start)
	case '=':
		tok = l.oneOrTwo(token.ASSIGN, '=', token.EQ, start)
	case '<':
		tok = l.oneOrTwo(token.LT, '=', token.LT_EQUALS, start)
	case '>':
		tok = l.oneOrTwo(token.GT, '=', token.GT_EQUALS, start)
	case '!':
		if l.peekChar() != '=' {
			l.readChar()
			return token.Token{}, &Error{Msg: "unexpected character '!'", Pos: start}
		}
		tok = l.oneOrTwo(token.ILLEGAL, '=', token.NOT_EQ, start)
	default:
		switch {
		case isDigit(l.ch):
			literal := l.readWhile(isDigit)
			return l.newToken(token.INT, literal, start), nil
		case isLetter(l.ch):
			literal := l.readWhile(isIdentChar)
			return l.newToken(token.LookupIdentifier(literal), literal, start), nil
		}
		ch := l.ch
		l.readChar()
		return token.Token{}, &Error{Msg: fmt.Sprintf("unexpected character %q", ch), Pos: start}
	}
	return tok, nil
}

// Tokenize lexes the whole input, including the trailing EOF token.
func (l *Lexer) Tokenize() ([]token.Token, error) {
	var tokens []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			return tokens, nil
		}
	}
}

// GetLineText returns the source line containing tok, without its newline.
func (l *Lexer) GetLineText(tok token.Token) string {
	start := tok.StartPosition.LineStart
	if start < 0 || start > len(l.input) {
		return ""
	}
	line := l.input[start:]
	if end := strings.IndexByte(line, '\n'); end >= 0 {
		line = line[:end]
	}
	return strings.TrimRight(line, "\r")
}

func (l *Lexer) readChar() {
	if l.next >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.next]
	}
	l.position = l.next
	l.next++
}

func (l *Lexer) peekChar() byte {
	if l.next >= len(l.input) {
		return 0
	}
	return l.input[l.next]
}

func (l *Lexer) pos() token.Position {
	return token.Position{
		Char:      l.position,
		LineStart: l.lineStart,
		Line:      l.line,
		Column:    l.position - l.lineStart,
		File:      l.filename,
	}
}

func (l *Lexer) single(typ token.Type, start token.Position) token.Token {
	literal := string(l.ch)
	l.readChar()
	return l.newToken(typ, literal, start)
}

// oneOrTwo lexes a one-character token, or the two-character token when the
// following character is second.
func (l *Lexer) oneOrTwo(one token.Type, second byte, two token.Type, start token.Position) token.Token {
	if l.peekChar() == second {
		literal := string([]byte{l.ch, second})
		l.readChar()
		l.readChar()
		return l.newToken(two, literal, start)
	}
	return l.single(one, start)
}

func (l *Lexer) newToken(typ token.Type, literal string, start token.Position) token.Token {
	return token.Token{
		Type:          typ,
		Literal:       literal,
		StartPosition: start,
		EndPosition:   start.Advance(len(literal)),
	}
}

func (l *Lexer) readWhile(accept func(byte) bool) string {
	start := l.position
	for l.ch != 0 && accept(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) skipWhitespace() {
	for {
		switch l.ch {
		case ' ', '\t', '\r':
			l.readChar()
		case '\n':
			l.readChar()
			l.line++
			l.lineStart = l.position
		default:
			return
		}
	}
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isIdentChar(ch byte) bool {
	return isLetter(ch) || isDigit(ch)
}
