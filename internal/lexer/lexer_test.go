package lexer

import (
	"testing"

	"github.com/deepnoodle-ai/hotpath/internal/token"
	"github.com/stretchr/testify/require"
)

func TestNextToken(t *testing.T) {
	input := "x = if(y >= 10, fib(y) % 3, -2) != 4 <= 5 < 6 > 7 == 8 / 9 * 1;"

	tests := []struct {
		expectedType    token.Type
		expectedLiteral string
	}{
		{token.IDENT, "x"},
		{token.ASSIGN, "="},
		{token.IF, "if"},
		{token.LPAREN, "("},
		{token.IDENT, "y"},
		{token.GT_EQUALS, ">="},
		{token.INT, "10"},
		{token.COMMA, ","},
		{token.IDENT, "fib"},
		{token.LPAREN, "("},
		{token.IDENT, "y"},
		{token.RPAREN, ")"},
		{token.MOD, "%"},
		{token.INT, "3"},
		{token.COMMA, ","},
		{token.MINUS, "-"},
		{token.INT, "2"},
		{token.RPAREN, ")"},
		{token.NOT_EQ, "!="},
		{token.INT, "4"},
		{token.LT_EQUALS, "<="},
		{token.INT, "5"},
		{token.LT, "<"},
		{token.INT, "6"},
		{token.GT, ">"},
		{token.INT, "7"},
		{token.EQ, "=="},
		{token.INT, "8"},
		{token.SLASH, "/"},
		{token.INT, "9"},
		{token.ASTERISK, "*"},
		{token.INT, "1"},
		{token.SEMICOLON, ";"},
		{token.EOF, ""},
	}
	l := New(input)
	for i, tt := range tests {
		tok, err := l.Next()
		require.Nil(t, err)
		require.Equal(t, tt.expectedType, tok.Type, "tests[%d]", i)
		require.Equal(t, tt.expectedLiteral, tok.Literal, "tests[%d]", i)
	}
	// EOF is sticky
	tok, err := l.Next()
	require.Nil(t, err)
	require.Equal(t, token.EOF, tok.Type)
}

func TestIdentifiers(t *testing.T) {
	l := New("_a1 b_2 iffy if")
	tokens, err := l.Tokenize()
	require.Nil(t, err)
	require.Len(t, tokens, 5)
	require.Equal(t, "_a1", tokens[0].Literal)
	require.Equal(t, token.IDENT, tokens[0].Type)
	require.Equal(t, "b_2", tokens[1].Literal)
	require.Equal(t, token.IDENT, tokens[2].Type)
	require.Equal(t, token.IF, tokens[3].Type)
	require.Equal(t, token.EOF, tokens[4].Type)
}

func TestPositions(t *testing.T) {
	l := New("1 +\n  foo")
	l.SetFilename("expr.hp")
	tokens, err := l.Tokenize()
	require.Nil(t, err)
	require.Len(t, tokens, 4)

	plus := tokens[1]
	require.Equal(t, 0, plus.StartPosition.Line)
	require.Equal(t, 2, plus.StartPosition.Column)

	foo := tokens[2]
	require.Equal(t, 1, foo.StartPosition.Line)
	require.Equal(t, 2, foo.StartPosition.Column)
	require.Equal(t, 6, foo.StartPosition.Char)
	require.Equal(t, 5, foo.EndPosition.Column)
	require.Equal(t, "expr.hp", foo.StartPosition.File)
}

func TestIllegalCharacters(t *testing.T) {
	tests := []struct {
		input string
		msg   string
	}{
		{"1 ! 2", "unexpected character '!'"},
		{"1 & 2", "unexpected character '&'"},
		{"x = $", "unexpected character '$'"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := New(tt.input).Tokenize()
			require.NotNil(t, err)
			lexErr, ok := err.(*Error)
			require.True(t, ok)
			require.Equal(t, tt.msg, lexErr.Msg)
		})
	}
}

func TestGetLineText(t *testing.T) {
	l := New("a + 1\nb * 2\r\nc")
	tokens, err := l.Tokenize()
	require.Nil(t, err)
	require.Equal(t, "a + 1", l.GetLineText(tokens[0]))
	require.Equal(t, "b * 2", l.GetLineText(tokens[3]))
	require.Equal(t, "c", l.GetLineText(tokens[6]))
}
