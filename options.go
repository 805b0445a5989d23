package hotpath

import (
	"maps"
	"time"

	"github.com/deepnoodle-ai/hotpath/interp"
	"github.com/deepnoodle-ai/hotpath/jit"
	"github.com/deepnoodle-ai/hotpath/parser"
	"github.com/rs/zerolog"
)

// Option configures an engine or a one-shot evaluation.
type Option func(*options)

type options struct {
	cfg      jit.Config
	log      *zerolog.Logger
	vars     map[string]int64
	builtins []interp.Builtin
	filename string
	maxDepth int
}

func collectOptions(opts ...Option) *options {
	o := &options{cfg: jit.DefaultConfig(), vars: map[string]int64{}}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

func (o *options) engineOpts() []jit.Option {
	opts := []jit.Option{jit.WithConfig(o.cfg)}
	if o.log != nil {
		opts = append(opts, jit.WithLogger(*o.log))
	}
	if len(o.vars) > 0 {
		opts = append(opts, jit.WithVariables(o.vars))
	}
	if len(o.builtins) > 0 {
		opts = append(opts, jit.WithInterpreter(o.interpreter()))
	}
	return opts
}

func (o *options) parserOpts() []parser.Option {
	var opts []parser.Option
	if o.filename != "" {
		opts = append(opts, parser.WithFilename(o.filename))
	}
	if o.maxDepth > 0 {
		opts = append(opts, parser.WithMaxDepth(o.maxDepth))
	}
	return opts
}

// WithConfig replaces the engine configuration.
func WithConfig(cfg jit.Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithHotThreshold sets the number of executions after which a compilable
// expression is compiled.
func WithHotThreshold(n uint64) Option {
	return func(o *options) {
		o.cfg.HotThreshold = n
	}
}

// WithMaxEntries bounds the number of expressions the cache tracks.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		o.cfg.MaxEntries = n
	}
}

// WithLockTimeout bounds how long a call waits for the engine before it is
// rejected as busy.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		o.cfg.LockTimeout = d
	}
}

// WithMode selects native or simulated execution of compiled code.
func WithMode(m jit.Mode) Option {
	return func(o *options) {
		o.cfg.Mode = m
	}
}

// WithLogger sets the engine's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = &log
	}
}

// WithVariables provides initial variables. This option is additive; if the
// same name is supplied more than once the last value wins.
func WithVariables(vars map[string]int64) Option {
	return func(o *options) {
		maps.Copy(o.vars, vars)
	}
}

// WithVariable provides a single initial variable.
func WithVariable(name string, value int64) Option {
	return func(o *options) {
		o.vars[name] = value
	}
}

// WithBuiltin registers a function callable from expressions. Calls are
// never compiled, so expressions using it always run interpreted.
func WithBuiltin(name string, arity int, fn func(args []int64) int64) Option {
	return func(o *options) {
		o.builtins = append(o.builtins, interp.Builtin{Name: name, Arity: arity, Fn: fn})
	}
}

// WithFilename sets the filename reported in syntax errors.
func WithFilename(filename string) Option {
	return func(o *options) {
		o.filename = filename
	}
}

// WithMaxDepth bounds the nesting depth accepted by the parser.
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		o.maxDepth = depth
	}
}
