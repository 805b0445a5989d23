package ast

import "sort"

// NameSet is a set of variable names.
type NameSet map[string]struct{}

// Add inserts a name into the set.
func (s NameSet) Add(name string) {
	s[name] = struct{}{}
}

// Has reports whether the set contains name.
func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Intersects reports whether s and other share at least one name.
func (s NameSet) Intersects(other NameSet) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for name := range small {
		if large.Has(name) {
			return true
		}
	}
	return false
}

// Sorted returns the names in lexical order.
func (s NameSet) Sorted() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reads returns the names referenced as values anywhere in the expression.
// Assignment targets and function names are not reads.
func Reads(node Expr) NameSet {
	set := NameSet{}
	Walk(nameCollector{reads: set}, node)
	return set
}

// Writes returns the names assigned anywhere in the expression, including
// inside branches that may not execute.
func Writes(node Expr) NameSet {
	set := NameSet{}
	Walk(nameCollector{writes: set}, node)
	return set
}

// nameCollector records reads and writes. Assignment targets and function
// names are not reads, so Assign and Call walk only their operands.
type nameCollector struct {
	reads, writes NameSet
}

func (c nameCollector) Visit(node Node) Visitor {
	switch n := node.(type) {
	case *Ident:
		if c.reads != nil {
			c.reads.Add(n.Name)
		}
	case *Assign:
		if c.writes != nil {
			c.writes.Add(n.Name.Name)
		}
		Walk(c, n.Value)
		return nil
	case *Call:
		for _, a := range n.Args {
			Walk(c, a)
		}
		return nil
	}
	return c
}
