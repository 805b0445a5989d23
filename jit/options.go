package jit

import (
	"time"

	"github.com/deepnoodle-ai/hotpath/interp"
	"github.com/rs/zerolog"
)

// Option is a configuration function for an Engine.
type Option func(*Engine)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithHotThreshold sets the execution count at which expressions compile.
func WithHotThreshold(n uint64) Option {
	return func(e *Engine) {
		e.cfg.HotThreshold = n
	}
}

// WithMaxEntries sets the capacity of the hotspot cache.
func WithMaxEntries(n int) Option {
	return func(e *Engine) {
		e.cfg.MaxEntries = n
	}
}

// WithLockTimeout sets how long a request waits for admission.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.cfg.LockTimeout = d
	}
}

// WithMode selects native or simulated execution.
func WithMode(m Mode) Option {
	return func(e *Engine) {
		e.cfg.Mode = m
	}
}

// WithLogger sets the logger for compilation and cache events.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithInterpreter sets the interpreter used for cold entries, for entries
// that cannot be compiled and for simulated execution.
func WithInterpreter(in *interp.Interpreter) Option {
	return func(e *Engine) {
		e.interp = in
	}
}

// WithVariables seeds the environment.
func WithVariables(vars map[string]int64) Option {
	return func(e *Engine) {
		for name, v := range vars {
			e.env.Set(name, v)
		}
	}
}
