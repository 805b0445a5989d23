package jit

import (
	"time"

	"github.com/deepnoodle-ai/hotpath/ast"
	"github.com/deepnoodle-ai/hotpath/codegen"
	"github.com/deepnoodle-ai/hotpath/native"
)

// compiled is the artifact installed in a cache entry. The handle is nil in
// simulate mode.
type compiled struct {
	art    *codegen.Artifact
	handle *native.Handle
}

func (c *compiled) Size() int {
	return c.art.Size()
}

func (c *compiled) Release() error {
	if c.handle == nil {
		return nil
	}
	return c.handle.Release()
}

// seedsFor returns the names read by expr that hold a value in vars.
func seedsFor(expr ast.Expr, vars map[string]int64) []string {
	var seeds []string
	for _, name := range ast.Reads(expr).Sorted() {
		if _, ok := vars[name]; ok {
			seeds = append(seeds, name)
		}
	}
	return seeds
}

// compile generates and prepares code for expr. It runs without the engine
// lock and touches no engine state.
func (e *Engine) compile(expr ast.Expr, vars map[string]int64) (*compiled, time.Duration, error) {
	start := time.Now()
	art, err := codegen.Generate(expr, seedsFor(expr, vars))
	if err != nil {
		return nil, time.Since(start), err
	}
	c := &compiled{art: art}
	if e.cfg.Mode == ModeNative {
		h, err := native.Prepare(art.Code, art.Entry)
		if err != nil {
			return nil, time.Since(start), err
		}
		c.handle = h
	}
	return c, time.Since(start), nil
}
