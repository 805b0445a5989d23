package ast

import (
	"bytes"
	"strings"

	"github.com/deepnoodle-ai/hotpath/internal/token"
	"github.com/deepnoodle-ai/hotpath/op"
)

// Int is an expression node that holds an integer literal.
type Int struct {
	ValuePos token.Position // position of the literal
	Literal  string         // the literal text
	Value    int64          // the parsed value
}

func (x *Int) exprNode() {}

func (x *Int) Pos() token.Position { return x.ValuePos }
func (x *Int) End() token.Position { return x.ValuePos.Advance(len(x.Literal)) }

func (x *Int) String() string { return x.Literal }

// Ident is an expression node that refers to a variable by name.
type Ident struct {
	NamePos token.Position // position of identifier
	Name    string         // identifier name
}

func (x *Ident) exprNode() {}

func (x *Ident) Pos() token.Position { return x.NamePos }
func (x *Ident) End() token.Position { return x.NamePos.Advance(len(x.Name)) }

func (x *Ident) String() string { return x.Name }

// Infix is a binary operator expression.
type Infix struct {
	X     Expr            // left operand
	OpPos token.Position  // position of operator
	Op    op.BinaryOpType // operator
	Y     Expr            // right operand
}

func (x *Infix) exprNode() {}

func (x *Infix) Pos() token.Position { return x.X.Pos() }
func (x *Infix) End() token.Position { return x.Y.End() }

func (x *Infix) String() string {
	var out bytes.Buffer
	out.WriteString("(")
	out.WriteString(x.X.String())
	out.WriteString(" " + x.Op.String() + " ")
	out.WriteString(x.Y.String())
	out.WriteString(")")
	return out.String()
}

// Assign binds the value of an expression to a name and evaluates to that value.
type Assign struct {
	Name  *Ident         // variable being assigned
	EqPos token.Position // position of "="
	Value Expr           // assigned value
}

func (x *Assign) exprNode() {}

func (x *Assign) Pos() token.Position { return x.Name.Pos() }
func (x *Assign) End() token.Position { return x.Value.End() }

func (x *Assign) String() string {
	var out bytes.Buffer
	out.WriteString(x.Name.Name)
	out.WriteString(" = ")
	out.WriteString(x.Value.String())
	return out.String()
}

// Call is an expression node that calls a builtin function by name.
type Call struct {
	Fun    *Ident         // function name
	Lparen token.Position // position of "("
	Args   []Expr         // function arguments
	Rparen token.Position // position of ")"
}

func (x *Call) exprNode() {}

func (x *Call) Pos() token.Position { return x.Fun.Pos() }
func (x *Call) End() token.Position { return x.Rparen.Advance(1) }

func (x *Call) String() string {
	args := make([]string, 0, len(x.Args))
	for _, a := range x.Args {
		args = append(args, a.String())
	}
	return x.Fun.Name + "(" + strings.Join(args, ", ") + ")"
}

// If is a conditional expression. A nonzero condition selects Consequence,
// zero selects Alternative. Only the selected branch is evaluated.
type If struct {
	If          token.Position // position of "if" keyword
	Lparen      token.Position // position of "("
	Cond        Expr           // condition
	Consequence Expr           // value when the condition is nonzero
	Alternative Expr           // value when the condition is zero
	Rparen      token.Position // position of ")"
}

func (x *If) exprNode() {}

func (x *If) Pos() token.Position { return x.If }
func (x *If) End() token.Position { return x.Rparen.Advance(1) }

func (x *If) String() string {
	var out bytes.Buffer
	out.WriteString("if(")
	out.WriteString(x.Cond.String())
	out.WriteString(", ")
	out.WriteString(x.Consequence.String())
	out.WriteString(", ")
	out.WriteString(x.Alternative.String())
	out.WriteString(")")
	return out.String()
}
