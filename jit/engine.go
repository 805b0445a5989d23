// Package jit implements the adaptive execution engine. Every expression is
// interpreted until its shape has been executed often enough to be hot; a hot
// compilable expression is then translated to machine code once and runs
// natively from that point on.
//
// # Concurrency
//
// One lock guards the hotspot cache, the statistics and the environment.
// Admission waits at most Config.LockTimeout for it and fails with a busy
// error otherwise. Once admitted, an execution runs to completion: caller
// cancellation is only observed while waiting for admission. Interpretation
// and code generation run outside the lock against a snapshot of the
// environment; compiled code runs under it, so an artifact is never released
// while it executes.
//
// # Environment
//
// Executions are transactional: assignments become visible only when the
// whole expression succeeds. An interpreted execution whose inputs were
// changed by a concurrent commit is evaluated again under the lock, so every
// outcome matches some serial order of the executions.
package jit

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/deepnoodle-ai/hotpath/ast"
	"github.com/deepnoodle-ai/hotpath/codegen"
	hperrors "github.com/deepnoodle-ai/hotpath/errors"
	"github.com/deepnoodle-ai/hotpath/hotspot"
	"github.com/deepnoodle-ai/hotpath/interp"
	"github.com/deepnoodle-ai/hotpath/parser"
	"github.com/rs/zerolog"
)

var (
	ErrClosed      = errors.New("jit: engine is closed")
	ErrNotCompiled = errors.New("jit: no compiled code for fingerprint")
)

// Result is the outcome of one execution.
type Result struct {
	Value           int64               `json:"value"`
	Environment     map[string]int64    `json:"environment"`
	ExecutionTime   time.Duration       `json:"execution_time_ns"`
	CompilationTime time.Duration       `json:"compilation_time_ns,omitempty"`
	Compiled        bool                `json:"was_jit_compiled"`
	Fingerprint     hotspot.Fingerprint `json:"fingerprint"`
	ExecutionCount  uint64              `json:"execution_count"`
}

// Engine is the dispatcher between the interpreter and compiled code.
type Engine struct {
	cfg    Config
	log    zerolog.Logger
	interp *interp.Interpreter
	lock   *lock

	// Guarded by lock
	cache  *hotspot.Cache
	stats  hotspot.Stats
	env    *interp.Environment
	closed bool

	busy atomic.Uint64
}

// New returns an engine with an empty cache and environment.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg: DefaultConfig(),
		log: zerolog.Nop(),
		env: interp.NewEnvironment(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("jit: %w", err)
	}
	e.cfg = e.cfg.effective()
	if e.interp == nil {
		e.interp = interp.New()
	}
	e.lock = newLock(e.cfg.LockTimeout)
	e.cache = hotspot.NewCache(e.cfg.HotThreshold, e.cfg.MaxEntries,
		hotspot.WithEvictHook(e.onEvict))
	return e, nil
}

func (e *Engine) onEvict(entry hotspot.Entry, err error) {
	var ev *zerolog.Event
	if err != nil {
		ev = e.log.Warn().Err(err)
	} else {
		ev = e.log.Debug()
	}
	ev.Stringer("fingerprint", entry.Fingerprint).
		Uint64("count", entry.Count).
		Stringer("state", entry.State).
		Msg("evicted cache entry")
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Execute parses and executes source text.
func (e *Engine) Execute(ctx context.Context, src string) (*Result, error) {
	expr, err := parser.Parse(ctx, src)
	if err != nil {
		return nil, err
	}
	return e.ExecuteExpr(ctx, expr)
}

// ExecuteExpr executes a parsed expression.
func (e *Engine) ExecuteExpr(ctx context.Context, expr ast.Expr) (*Result, error) {
	start := time.Now()
	fp := hotspot.Of(expr)
	compilable := codegen.IsCompilable(expr)
	canonical := expr.String()

	if err := e.admit(ctx); err != nil {
		return nil, err
	}
	count, promote := e.cache.Record(fp, compilable, canonical)
	res := &Result{Fingerprint: fp, ExecutionCount: count}
	if !promote {
		if done, err := e.runCompiled(expr, fp, canonical, res, start); done {
			e.lock.release()
			return e.finish(res, err)
		}
	}
	vars := e.env.Snapshot()
	e.lock.release()

	if promote {
		e.log.Debug().Stringer("fingerprint", fp).Uint64("count", count).Msg("expression is hot")
		c, elapsed, genErr := e.compile(expr, vars)
		res.CompilationTime = elapsed

		// Admitted work runs to completion, so the entry always leaves the
		// attempted state.
		e.lock.wait()
		if e.install(fp, c, elapsed, genErr) {
			if done, err := e.runCompiled(expr, fp, canonical, res, start); done {
				e.lock.release()
				return e.finish(res, err)
			}
		}
		vars = e.env.Snapshot()
		e.lock.release()
	}

	overlay := interp.NewOverlay(vars)
	value, evalErr := e.interp.Eval(expr, overlay)

	e.lock.wait()
	defer e.lock.release()
	if e.closed {
		return nil, ErrClosed
	}
	if e.stale(expr, vars) {
		// Another execution committed a name this one read. Evaluate again
		// under the lock so the outcome matches some serial order.
		e.log.Debug().Stringer("fingerprint", fp).Msg("inputs changed; re-evaluating")
		overlay = interp.NewOverlay(e.env.Snapshot())
		value, evalErr = e.interp.Eval(expr, overlay)
	}
	if evalErr == nil {
		overlay.Commit(e.env)
		res.Value = value
	}
	res.ExecutionTime = time.Since(start)
	e.stats.RecordExecution(res.ExecutionTime, false, evalErr != nil)
	if evalErr != nil {
		return nil, evalErr
	}
	res.Environment = e.env.Snapshot()
	return res, nil
}

// stale reports whether any name the expression reads differs between the
// snapshot and the environment. Called with the lock held.
func (e *Engine) stale(expr ast.Expr, snapshot map[string]int64) bool {
	for name := range ast.Reads(expr) {
		cur, ok := e.env.Get(name)
		prev, had := snapshot[name]
		if ok != had || cur != prev {
			return true
		}
	}
	return false
}

func (e *Engine) finish(res *Result, err error) (*Result, error) {
	if err != nil {
		return nil, err
	}
	return res, nil
}

// admit acquires the lock for a new request.
func (e *Engine) admit(ctx context.Context) error {
	if err := e.lock.acquire(ctx); err != nil {
		if errors.Is(err, hperrors.ErrBusy) {
			e.busy.Add(1)
			e.log.Warn().Dur("timeout", e.cfg.LockTimeout).Msg("rejected request: engine busy")
		}
		return err
	}
	if e.closed {
		e.lock.release()
		return ErrClosed
	}
	return nil
}

// install attaches generated code to the promoted entry, or marks the entry
// never-compile when generation failed. It reports whether code is installed.
// Called with the lock held.
func (e *Engine) install(fp hotspot.Fingerprint, c *compiled, elapsed time.Duration, genErr error) bool {
	if e.closed {
		if c != nil {
			c.Release()
		}
		return false
	}
	if genErr != nil {
		e.cache.MarkFailed(fp)
		e.stats.RecordCompileFailure(elapsed)
		e.log.Info().Err(genErr).Stringer("fingerprint", fp).Msg("compilation failed; entry stays interpreted")
		return false
	}
	if err := e.cache.Install(fp, c); err != nil {
		// The entry was evicted or reset while compiling.
		if rerr := c.Release(); rerr != nil {
			e.log.Warn().Err(rerr).Stringer("fingerprint", fp).Msg("release failed")
		}
		e.log.Debug().Err(err).Stringer("fingerprint", fp).Msg("discarded compiled code")
		return false
	}
	e.stats.RecordCompilation(elapsed)
	e.log.Info().
		Stringer("fingerprint", fp).
		Int("bytes", c.Size()).
		Bool("native", c.handle != nil).
		Dur("elapsed", elapsed).
		Msg("compiled expression")
	return true
}

// runCompiled executes the installed code for fp if there is any and its
// inputs are available. It reports whether the execution was handled; when
// it was not, the caller interprets. Called with the lock held.
func (e *Engine) runCompiled(expr ast.Expr, fp hotspot.Fingerprint, canonical string, res *Result, start time.Time) (bool, error) {
	entry, ok := e.cache.Lookup(fp)
	if !ok || entry.State != hotspot.Compiled || entry.Expr != canonical {
		return false, nil
	}
	c := entry.Artifact.(*compiled)

	if c.handle == nil {
		overlay := interp.NewOverlay(e.env.Snapshot())
		value, err := e.interp.Eval(expr, overlay)
		if err == nil {
			overlay.Commit(e.env)
		}
		e.completeCompiled(res, start, value, err)
		return true, err
	}

	layout := c.art.Layout
	frame := layout.NewFrame()
	for _, name := range layout.Seeds() {
		v, ok := e.env.Get(name)
		if !ok {
			return false, nil
		}
		slot, _ := layout.Slot(name)
		frame.Set(slot, v)
	}
	value, err := c.handle.Invoke(frame)
	if err != nil {
		e.log.Error().Err(err).Stringer("fingerprint", fp).Msg("invoke failed")
		return false, nil
	}
	if frame.Status() != codegen.StatusOK {
		// The interpreter reports the error with its source location.
		return false, nil
	}
	for slot, name := range layout.Names() {
		if frame.Written(slot) {
			e.env.Set(name, frame.Value(slot))
		}
	}
	e.completeCompiled(res, start, value, nil)
	return true, nil
}

func (e *Engine) completeCompiled(res *Result, start time.Time, value int64, err error) {
	res.ExecutionTime = time.Since(start)
	e.stats.RecordExecution(res.ExecutionTime, true, err != nil)
	if err != nil {
		return
	}
	res.Value = value
	res.Compiled = true
	res.Environment = e.env.Snapshot()
}

// Stats returns a copy of the counters and the cache size, taken together
// under the lock.
func (e *Engine) Stats(ctx context.Context) (hotspot.Stats, error) {
	if err := e.admit(ctx); err != nil {
		return hotspot.Stats{}, err
	}
	defer e.lock.release()
	s := e.stats
	s.Evictions = e.cache.Evictions()
	s.BusyRejections = e.busy.Load()
	s.CacheEntries = e.cache.Len()
	return s, nil
}

// CacheInfo returns a view of every cache entry, most executed first.
func (e *Engine) CacheInfo(ctx context.Context) ([]hotspot.EntryInfo, error) {
	if err := e.admit(ctx); err != nil {
		return nil, err
	}
	defer e.lock.release()
	return e.cache.Entries(), nil
}

// Artifact returns the generated code installed for fp.
func (e *Engine) Artifact(ctx context.Context, fp hotspot.Fingerprint) (*codegen.Artifact, error) {
	if err := e.admit(ctx); err != nil {
		return nil, err
	}
	defer e.lock.release()
	entry, ok := e.cache.Lookup(fp)
	if !ok || entry.State != hotspot.Compiled {
		return nil, fmt.Errorf("%w %s", ErrNotCompiled, fp)
	}
	return entry.Artifact.(*compiled).art, nil
}

// Environment returns a copy of the variables.
func (e *Engine) Environment(ctx context.Context) (map[string]int64, error) {
	if err := e.admit(ctx); err != nil {
		return nil, err
	}
	defer e.lock.release()
	return e.env.Snapshot(), nil
}

// SetVariable assigns a variable outside of any expression.
func (e *Engine) SetVariable(ctx context.Context, name string, value int64) error {
	if err := e.admit(ctx); err != nil {
		return err
	}
	defer e.lock.release()
	e.env.Set(name, value)
	return nil
}

// Reset clears the cache, the counters and the environment, releasing all
// compiled code.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.admit(ctx); err != nil {
		return err
	}
	defer e.lock.release()
	err := e.cache.Clear()
	e.stats = hotspot.Stats{}
	e.busy.Store(0)
	e.env.Clear()
	e.log.Info().Msg("engine reset")
	return err
}

// Close releases all compiled code. Later calls fail with ErrClosed.
func (e *Engine) Close() error {
	e.lock.wait()
	defer e.lock.release()
	if e.closed {
		return nil
	}
	e.closed = true
	e.log.Debug().Int("entries", e.cache.Len()).Msg("closing engine")
	return e.cache.Clear()
}
