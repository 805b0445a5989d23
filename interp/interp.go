// Package interp is the tree-walking evaluator that defines the semantics of
// the expression language. Compiled code must agree with it on every input.
package interp

import (
	"github.com/deepnoodle-ai/hotpath/ast"
	"github.com/deepnoodle-ai/hotpath/errors"
	"github.com/deepnoodle-ai/hotpath/internal/token"
	"github.com/deepnoodle-ai/hotpath/op"
)

// Interpreter evaluates expressions. It holds no per-evaluation state and
// is safe for concurrent use as long as each evaluation has its own Scope.
type Interpreter struct {
	builtins map[string]Builtin
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithBuiltin registers an additional builtin, replacing any of the same name.
func WithBuiltin(b Builtin) Option {
	return func(in *Interpreter) {
		in.builtins[b.Name] = b
	}
}

// New returns an Interpreter with the default builtins.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{builtins: map[string]Builtin{}}
	for _, b := range DefaultBuiltins() {
		in.builtins[b.Name] = b
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Builtins returns the names of the callable functions in lexical order.
func (in *Interpreter) Builtins() []string {
	return builtinNames(in.builtins)
}

// Eval evaluates node against scope. Operands of binary operators are
// evaluated left to right and only the selected branch of an if is evaluated.
// Assignments are applied to scope as they happen; callers that need
// all-or-nothing semantics pass an Overlay.
func (in *Interpreter) Eval(node ast.Expr, scope Scope) (int64, error) {
	switch n := node.(type) {
	case *ast.Int:
		return n.Value, nil
	case *ast.Ident:
		v, ok := scope.Get(n.Name)
		if !ok {
			return 0, errors.NewUndefinedVariable(n.Name, location(n.Pos()), scope.Names())
		}
		return v, nil
	case *ast.Infix:
		x, err := in.Eval(n.X, scope)
		if err != nil {
			return 0, err
		}
		y, err := in.Eval(n.Y, scope)
		if err != nil {
			return 0, err
		}
		v, ok := Apply(n.Op, x, y)
		if !ok {
			return 0, errors.NewDivisionByZero(n.Op.String(), location(n.OpPos))
		}
		return v, nil
	case *ast.Assign:
		v, err := in.Eval(n.Value, scope)
		if err != nil {
			return 0, err
		}
		scope.Set(n.Name.Name, v)
		return v, nil
	case *ast.Call:
		return in.call(n, scope)
	case *ast.If:
		cond, err := in.Eval(n.Cond, scope)
		if err != nil {
			return 0, err
		}
		if cond != 0 {
			return in.Eval(n.Consequence, scope)
		}
		return in.Eval(n.Alternative, scope)
	}
	panic("interp: unexpected node type")
}

func (in *Interpreter) call(n *ast.Call, scope Scope) (int64, error) {
	fn, ok := in.builtins[n.Fun.Name]
	if !ok {
		return 0, errors.NewUnknownFunction(n.Fun.Name, location(n.Pos()), in.Builtins())
	}
	if len(n.Args) != fn.Arity {
		return 0, errors.NewArityError(fn.Name, fn.Arity, len(n.Args), location(n.Pos()))
	}
	args := make([]int64, len(n.Args))
	for i, a := range n.Args {
		v, err := in.Eval(a, scope)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	return fn.Fn(args), nil
}

// Apply computes x <op> y with wrapping 64-bit arithmetic. Comparisons yield
// 1 or 0. The boolean is false when a division or modulo has a zero divisor.
func Apply(bop op.BinaryOpType, x, y int64) (int64, bool) {
	switch bop {
	case op.Add:
		return x + y, true
	case op.Subtract:
		return x - y, true
	case op.Multiply:
		return x * y, true
	case op.Divide:
		if y == 0 {
			return 0, false
		}
		return x / y, true
	case op.Modulo:
		if y == 0 {
			return 0, false
		}
		return x % y, true
	case op.Equal:
		return truth(x == y), true
	case op.NotEqual:
		return truth(x != y), true
	case op.LessThan:
		return truth(x < y), true
	case op.GreaterThan:
		return truth(x > y), true
	case op.LessThanOrEqual:
		return truth(x <= y), true
	case op.GreaterThanOrEqual:
		return truth(x >= y), true
	}
	panic("interp: unexpected operator " + bop.String())
}

func truth(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func location(pos token.Position) errors.SourceLocation {
	return errors.SourceLocation{
		Filename: pos.File,
		Line:     pos.LineNumber(),
		Column:   pos.ColumnNumber(),
	}
}
