package jit

import (
	"fmt"
	"time"

	"github.com/deepnoodle-ai/hotpath/native"
)

const (
	// DefaultHotThreshold is the execution count at which an expression is
	// compiled.
	DefaultHotThreshold = 10

	// DefaultMaxEntries is the capacity of the hotspot cache.
	DefaultMaxEntries = 1024

	// DefaultLockTimeout bounds how long a request waits to be admitted.
	DefaultLockTimeout = 250 * time.Millisecond
)

// Mode selects how compiled entries are executed.
type Mode uint8

const (
	// ModeNative runs generated machine code.
	ModeNative Mode = iota
	// ModeSimulate generates code but evaluates compiled entries with the
	// interpreter. Only timing and statistics differ from ModeNative.
	ModeSimulate
)

func (m Mode) String() string {
	switch m {
	case ModeNative:
		return "native"
	case ModeSimulate:
		return "simulate"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode parses the form produced by String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "native":
		return ModeNative, nil
	case "simulate":
		return ModeSimulate, nil
	}
	return 0, fmt.Errorf("unknown mode %q (want native or simulate)", s)
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Config holds engine configuration.
type Config struct {
	// HotThreshold is the execution count at which a compilable expression
	// is compiled.
	HotThreshold uint64 `json:"hot_threshold" yaml:"hot_threshold" mapstructure:"hot_threshold"`

	// MaxEntries is the maximum number of cache entries.
	MaxEntries int `json:"max_entries" yaml:"max_entries" mapstructure:"max_entries"`

	// LockTimeout bounds the wait for the engine lock before a request is
	// rejected as busy.
	LockTimeout time.Duration `json:"lock_timeout" yaml:"lock_timeout" mapstructure:"lock_timeout"`

	// Mode selects native or simulated execution of compiled entries.
	Mode Mode `json:"mode" yaml:"mode" mapstructure:"mode"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		HotThreshold: DefaultHotThreshold,
		MaxEntries:   DefaultMaxEntries,
		LockTimeout:  DefaultLockTimeout,
		Mode:         ModeNative,
	}
}

// Validate reports a configuration that cannot be used.
func (c Config) Validate() error {
	if c.HotThreshold < 1 {
		return fmt.Errorf("hot threshold must be at least 1")
	}
	if c.MaxEntries < 1 {
		return fmt.Errorf("max entries must be at least 1")
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("lock timeout must be positive")
	}
	if c.Mode != ModeNative && c.Mode != ModeSimulate {
		return fmt.Errorf("invalid mode %s", c.Mode)
	}
	return nil
}

// effective returns the configuration the engine actually runs with. Native
// mode degrades to simulation where native execution is unsupported.
func (c Config) effective() Config {
	if c.Mode == ModeNative && !native.Supported {
		c.Mode = ModeSimulate
	}
	return c
}
