package interp

import "sort"

// Scope is the variable storage an expression is evaluated against.
type Scope interface {
	Get(name string) (int64, bool)
	Set(name string, value int64)
	Names() []string
}

// Environment maps variable names to values. It is not safe for concurrent
// use; the engine serializes access to its environment.
type Environment struct {
	vars map[string]int64
}

// NewEnvironment returns an empty environment.
func NewEnvironment() *Environment {
	return &Environment{vars: map[string]int64{}}
}

// NewEnvironmentFrom returns an environment holding a copy of vars.
func NewEnvironmentFrom(vars map[string]int64) *Environment {
	env := NewEnvironment()
	for name, value := range vars {
		env.vars[name] = value
	}
	return env
}

func (e *Environment) Get(name string) (int64, bool) {
	v, ok := e.vars[name]
	return v, ok
}

func (e *Environment) Set(name string, value int64) {
	e.vars[name] = value
}

// Names returns the bound names in lexical order.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.vars))
	for name := range e.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of bound names.
func (e *Environment) Len() int {
	return len(e.vars)
}

// Snapshot returns a copy of the current bindings.
func (e *Environment) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(e.vars))
	for name, value := range e.vars {
		out[name] = value
	}
	return out
}

// Clear removes every binding.
func (e *Environment) Clear() {
	e.vars = map[string]int64{}
}

// Overlay is a Scope that reads through to a base snapshot and keeps its
// own writes separate, so an evaluation that fails part way leaves the
// environment untouched.
type Overlay struct {
	base   map[string]int64
	writes map[string]int64
}

// NewOverlay returns an overlay on top of base. The base map is never modified.
func NewOverlay(base map[string]int64) *Overlay {
	return &Overlay{base: base, writes: map[string]int64{}}
}

func (o *Overlay) Get(name string) (int64, bool) {
	if v, ok := o.writes[name]; ok {
		return v, true
	}
	v, ok := o.base[name]
	return v, ok
}

func (o *Overlay) Set(name string, value int64) {
	o.writes[name] = value
}

// Names returns the names visible through the overlay in lexical order.
func (o *Overlay) Names() []string {
	seen := make(map[string]struct{}, len(o.base)+len(o.writes))
	for name := range o.base {
		seen[name] = struct{}{}
	}
	for name := range o.writes {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Writes returns the values assigned through the overlay.
func (o *Overlay) Writes() map[string]int64 {
	return o.writes
}

// Commit copies the overlay's writes into env.
func (o *Overlay) Commit(env *Environment) {
	for name, value := range o.writes {
		env.Set(name, value)
	}
}
