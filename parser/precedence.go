package parser

import "github.com/deepnoodle-ai/hotpath/internal/token"

// Precedence order for operators
const (
	_ int = iota
	LOWEST
	ASSIGN      // =
	EQUALS      // == or !=
	LESSGREATER // > or <
	SUM         // + or -
	PRODUCT     // * or / or %
	PREFIX      // -X
	CALL        // fib(X)
)

// Precedences for each token type
var precedences = map[token.Type]int{
	token.ASSIGN:    ASSIGN,
	token.EQ:        EQUALS,
	token.NOT_EQ:    EQUALS,
	token.LT:        LESSGREATER,
	token.LT_EQUALS: LESSGREATER,
	token.GT:        LESSGREATER,
	token.GT_EQUALS: LESSGREATER,
	token.PLUS:      SUM,
	token.MINUS:     SUM,
	token.SLASH:     PRODUCT,
	token.ASTERISK:  PRODUCT,
	token.MOD:       PRODUCT,
	token.LPAREN:    CALL,
}

// OperatorPrecedence returns the binding strength of the binary operator
// written as symbol, or LOWEST if symbol is not an operator. Higher values
// bind tighter.
func OperatorPrecedence(symbol string) int {
	if p, ok := precedences[token.Type(symbol)]; ok {
		return p
	}
	return LOWEST
}
