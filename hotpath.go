// Package hotpath evaluates integer expressions adaptively: expressions are
// interpreted until they have run often enough to be hot, and hot expressions
// are compiled once to native code.
//
// A long-lived Engine keeps the profile, the compiled code and the variables
// across calls:
//
//	engine, err := hotpath.New(hotpath.WithHotThreshold(5))
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
//	res, err := engine.Execute(ctx, "x = 10")
//
// Eval is a one-shot convenience that never reaches the threshold unless it
// is 1.
package hotpath

import (
	"context"

	"github.com/deepnoodle-ai/hotpath/ast"
	"github.com/deepnoodle-ai/hotpath/interp"
	"github.com/deepnoodle-ai/hotpath/jit"
	"github.com/deepnoodle-ai/hotpath/parser"
)

// Engine is the adaptive execution engine.
type Engine = jit.Engine

// Result is the outcome of one execution.
type Result = jit.Result

// New returns an engine configured by opts.
func New(opts ...Option) (*Engine, error) {
	return jit.New(collectOptions(opts...).engineOpts()...)
}

// Parse parses source code into an expression tree.
func Parse(ctx context.Context, source string, opts ...Option) (ast.Expr, error) {
	return parser.Parse(ctx, source, collectOptions(opts...).parserOpts()...)
}

// Eval parses and evaluates source code on a fresh engine and returns its
// value.
func Eval(ctx context.Context, source string, opts ...Option) (int64, error) {
	o := collectOptions(opts...)
	expr, err := parser.Parse(ctx, source, o.parserOpts()...)
	if err != nil {
		return 0, err
	}
	engine, err := jit.New(o.engineOpts()...)
	if err != nil {
		return 0, err
	}
	defer engine.Close()
	res, err := engine.ExecuteExpr(ctx, expr)
	if err != nil {
		return 0, err
	}
	return res.Value, nil
}

// Builtins returns the names of the functions callable from expressions with
// the given options, in lexical order.
func Builtins(opts ...Option) []string {
	return collectOptions(opts...).interpreter().Builtins()
}

func (o *options) interpreter() *interp.Interpreter {
	var interpOpts []interp.Option
	for _, b := range o.builtins {
		interpOpts = append(interpOpts, interp.WithBuiltin(b))
	}
	return interp.New(interpOpts...)
}
