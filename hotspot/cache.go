package hotspot

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// State is the compilation state of a cache entry.
type State uint8

const (
	// Cold entries are below the hot threshold and run interpreted.
	Cold State = iota
	// Attempted entries crossed the threshold; compilation is in progress.
	Attempted
	// Compiled entries run their installed artifact. Terminal.
	Compiled
	// NeverCompile entries are not compilable or failed to compile. Terminal.
	NeverCompile
)

func (s State) String() string {
	switch s {
	case Cold:
		return "cold"
	case Attempted:
		return "attempted"
	case Compiled:
		return "compiled"
	case NeverCompile:
		return "never_compile"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Artifact is compiled code owned by exactly one cache entry. Release frees
// its executable memory and is called once, when the entry is evicted or the
// cache is cleared.
type Artifact interface {
	Size() int
	Release() error
}

var (
	ErrNotFound     = errors.New("hotspot: no entry for fingerprint")
	ErrNotAttempted = errors.New("hotspot: entry is not awaiting compilation")
)

// Entry is the cache record for one fingerprint.
type Entry struct {
	Fingerprint Fingerprint
	Count       uint64
	State       State
	Artifact    Artifact
	Expr        string
}

// EntryInfo is a read-only view of an entry.
type EntryInfo struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	Count       uint64      `json:"execution_count"`
	Compiled    bool        `json:"is_compiled"`
	State       string      `json:"state"`
	CodeSize    int         `json:"code_size,omitempty"`
	Expr        string      `json:"expr,omitempty"`
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithEvictHook registers a function called with each entry evicted to
// make room, after its artifact has been released.
func WithEvictHook(fn func(Entry, error)) CacheOption {
	return func(c *Cache) {
		c.onEvict = fn
	}
}

// Cache maps fingerprints to entries and decides promotion. It holds at most
// maxEntries entries; inserting into a full cache first evicts the entry with
// the lowest execution count, ties going to the lowest fingerprint. Cache is
// not safe for concurrent use; the caller serializes access.
type Cache struct {
	threshold  uint64
	maxEntries int
	entries    map[Fingerprint]*Entry
	evictions  uint64
	onEvict    func(Entry, error)
}

// NewCache returns an empty cache promoting at threshold executions.
func NewCache(threshold uint64, maxEntries int, opts ...CacheOption) *Cache {
	if threshold < 1 {
		threshold = 1
	}
	if maxEntries < 1 {
		maxEntries = 1
	}
	c := &Cache{
		threshold:  threshold,
		maxEntries: maxEntries,
		entries:    map[Fingerprint]*Entry{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Threshold returns the promotion threshold.
func (c *Cache) Threshold() uint64 {
	return c.threshold
}

// MaxEntries returns the capacity.
func (c *Cache) MaxEntries() int {
	return c.maxEntries
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Evictions returns how many entries were evicted to make room.
func (c *Cache) Evictions() uint64 {
	return c.evictions
}

// Record counts one submission of fp, inserting a new entry when needed.
// It returns the updated count and whether the caller should compile now,
// which is true at most once per entry: the first time the count reaches the
// threshold while the entry is cold and compilable. A cold entry that reaches
// the threshold without being compilable becomes NeverCompile.
func (c *Cache) Record(fp Fingerprint, compilable bool, expr string) (uint64, bool) {
	e, ok := c.entries[fp]
	if !ok {
		c.EvictIfFull()
		e = &Entry{Fingerprint: fp, Expr: expr}
		c.entries[fp] = e
	}
	e.Count++
	if e.State != Cold || e.Count < c.threshold {
		return e.Count, false
	}
	if !compilable {
		e.State = NeverCompile
		return e.Count, false
	}
	e.State = Attempted
	return e.Count, true
}

// Install attaches a compiled artifact to an entry awaiting compilation. The
// artifact is never replaced once installed. On error the caller still owns
// the artifact and must release it.
func (c *Cache) Install(fp Fingerprint, artifact Artifact) error {
	e, ok := c.entries[fp]
	if !ok {
		return ErrNotFound
	}
	if e.State != Attempted {
		return ErrNotAttempted
	}
	e.Artifact = artifact
	e.State = Compiled
	return nil
}

// MarkFailed moves an entry awaiting compilation to NeverCompile.
func (c *Cache) MarkFailed(fp Fingerprint) {
	if e, ok := c.entries[fp]; ok && e.State == Attempted {
		e.State = NeverCompile
	}
}

// Lookup returns the entry for fp. The entry must not be retained past the
// caller's critical section.
func (c *Cache) Lookup(fp Fingerprint) (*Entry, bool) {
	e, ok := c.entries[fp]
	return e, ok
}

// EvictIfFull removes the least executed entry when the cache is at capacity
// and releases its artifact. It reports whether an entry was evicted.
func (c *Cache) EvictIfFull() bool {
	if len(c.entries) < c.maxEntries {
		return false
	}
	var victim *Entry
	for _, e := range c.entries {
		if victim == nil || e.Count < victim.Count ||
			(e.Count == victim.Count && e.Fingerprint < victim.Fingerprint) {
			victim = e
		}
	}
	delete(c.entries, victim.Fingerprint)
	c.evictions++
	var err error
	if victim.Artifact != nil {
		err = victim.Artifact.Release()
	}
	if c.onEvict != nil {
		c.onEvict(*victim, err)
	}
	return true
}

// Entries returns a view of every entry, most executed first.
func (c *Cache) Entries() []EntryInfo {
	out := make([]EntryInfo, 0, len(c.entries))
	for _, e := range c.entries {
		info := EntryInfo{
			Fingerprint: e.Fingerprint,
			Count:       e.Count,
			Compiled:    e.State == Compiled,
			State:       e.State.String(),
			Expr:        e.Expr,
		}
		if e.Artifact != nil {
			info.CodeSize = e.Artifact.Size()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Fingerprint < out[j].Fingerprint
	})
	return out
}

// Clear removes every entry and releases every artifact. Release failures
// are collected and returned together; the cache is empty regardless.
func (c *Cache) Clear() error {
	var result *multierror.Error
	for fp, e := range c.entries {
		if e.Artifact != nil {
			if err := e.Artifact.Release(); err != nil {
				result = multierror.Append(result, fmt.Errorf("release %s: %w", fp, err))
			}
		}
	}
	c.entries = map[Fingerprint]*Entry{}
	c.evictions = 0
	return result.ErrorOrNil()
}
