package parser

import (
	"strconv"

	"github.com/deepnoodle-ai/hotpath/ast"
	"github.com/deepnoodle-ai/hotpath/errors"
	"github.com/deepnoodle-ai/hotpath/internal/token"
	"github.com/deepnoodle-ai/hotpath/op"
)

func (p *Parser) parseIdent() ast.Expr {
	return &ast.Ident{NamePos: p.curToken.StartPosition, Name: p.curToken.Literal}
}

func (p *Parser) parseInt() ast.Expr {
	tok := p.curToken
	value, err := strconv.ParseInt(tok.Literal, 10, 64)
	if err != nil {
		p.setTokenError(tok, errors.E1008, "integer literal %s out of range", tok.Literal)
		return nil
	}
	return &ast.Int{ValuePos: tok.StartPosition, Literal: tok.Literal, Value: value}
}

// parsePrefixExpr handles unary minus, which is sugar for subtraction from zero.
func (p *Parser) parsePrefixExpr() ast.Expr {
	opPos := p.curToken.StartPosition
	p.nextToken()
	right := p.parseExpression(PREFIX)
	if right == nil {
		return nil
	}
	return &ast.Infix{
		X:     &ast.Int{ValuePos: opPos, Literal: "0", Value: 0},
		OpPos: opPos,
		Op:    op.Subtract,
		Y:     right,
	}
}

func (p *Parser) parseInfixExpr(left ast.Expr) ast.Expr {
	opPos := p.curToken.StartPosition
	bop, ok := op.Lookup(p.curToken.Literal)
	if !ok {
		p.setTokenError(p.curToken, errors.E1001, "unexpected %s", tokenDescription(p.curToken))
		return nil
	}
	precedence := p.currentPrecedence()
	p.nextToken()
	right := p.parseExpression(precedence)
	if right == nil {
		return nil
	}
	return &ast.Infix{X: left, OpPos: opPos, Op: bop, Y: right}
}

// parseAssign parses "name = value". Assignment is right-associative, so
// "a = b = 1" assigns 1 to both names.
func (p *Parser) parseAssign(left ast.Expr) ast.Expr {
	eq := p.curToken
	name, ok := left.(*ast.Ident)
	if !ok {
		p.setTokenError(eq, errors.E1005, "cannot assign to %s", left.String())
		return nil
	}
	p.nextToken()
	value := p.parseExpression(LOWEST)
	if value == nil {
		return nil
	}
	return &ast.Assign{Name: name, EqPos: eq.StartPosition, Value: value}
}

func (p *Parser) parseGroupedExpr() ast.Expr {
	p.nextToken() // move past '('
	expr := p.parseExpression(LOWEST)
	if expr == nil {
		return nil
	}
	if !p.expectPeek("parenthesized expression", token.RPAREN) {
		return nil
	}
	return expr
}

func (p *Parser) parseCall(fun ast.Expr) ast.Expr {
	name, ok := fun.(*ast.Ident)
	if !ok {
		p.setTokenError(p.curToken, errors.E1003, "only named functions can be called")
		return nil
	}
	lparen := p.curToken.StartPosition
	args, ok := p.parseExprList("call arguments", token.RPAREN)
	if !ok {
		return nil
	}
	return &ast.Call{Fun: name, Lparen: lparen, Args: args, Rparen: p.curToken.StartPosition}
}

// parseIf parses "if(cond, consequence, alternative)".
func (p *Parser) parseIf() ast.Expr {
	ifPos := p.curToken.StartPosition
	if !p.expectPeek("if expression", token.LPAREN) {
		return nil
	}
	lparen := p.curToken.StartPosition
	parts := make([]ast.Expr, 3)
	for i := range parts {
		if i > 0 && !p.expectPeek("if expression", token.COMMA) {
			return nil
		}
		p.nextToken()
		if parts[i] = p.parseExpression(LOWEST); parts[i] == nil {
			return nil
		}
	}
	if !p.expectPeek("if expression", token.RPAREN) {
		return nil
	}
	return &ast.If{
		If:          ifPos,
		Lparen:      lparen,
		Cond:        parts[0],
		Consequence: parts[1],
		Alternative: parts[2],
		Rparen:      p.curToken.StartPosition,
	}
}

// parseExprList parses a comma separated list ending with end. The current
// token is the opening delimiter.
func (p *Parser) parseExprList(context string, end token.Type) ([]ast.Expr, bool) {
	list := []ast.Expr{}
	if p.peekTokenIs(end) {
		p.nextToken()
		return list, true
	}
	p.nextToken()
	expr := p.parseExpression(LOWEST)
	if expr == nil {
		return nil, false
	}
	list = append(list, expr)
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		if expr = p.parseExpression(LOWEST); expr == nil {
			return nil, false
		}
		list = append(list, expr)
	}
	if !p.expectPeek(context, end) {
		return nil, false
	}
	return list, true
}
