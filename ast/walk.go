package ast

import "iter"

// Visitor defines the interface for AST traversal. If Visit returns nil,
// children of the node are not visited. Otherwise, the returned Visitor
// is used to visit children.
type Visitor interface {
	Visit(node Node) (w Visitor)
}

// Walk traverses an AST in depth-first order. It starts by calling
// v.Visit(node); if the returned visitor w is not nil, Walk is invoked
// recursively with visitor w for each of the children of node, in source
// order.
func Walk(v Visitor, node Node) {
	if v = v.Visit(node); v == nil {
		return
	}
	for _, child := range children(node) {
		Walk(v, child)
	}
}

// Preorder returns an iterator over all the nodes of the AST rooted at node
// in depth-first preorder.
func Preorder(root Node) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		var visit func(Node) bool
		visit = func(n Node) bool {
			if !yield(n) {
				return false
			}
			for _, child := range children(n) {
				if !visit(child) {
					return false
				}
			}
			return true
		}
		visit(root)
	}
}

func children(node Node) []Node {
	switch n := node.(type) {
	case *Infix:
		return []Node{n.X, n.Y}
	case *Assign:
		return []Node{n.Name, n.Value}
	case *Call:
		out := make([]Node, 0, len(n.Args)+1)
		out = append(out, n.Fun)
		for _, a := range n.Args {
			out = append(out, a)
		}
		return out
	case *If:
		return []Node{n.Cond, n.Consequence, n.Alternative}
	}
	return nil
}
