// Package hotspot tracks how often each expression shape is executed and owns
// the bounded cache of compiled code for the shapes that became hot.
package hotspot

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/fnv"
	"strconv"

	"github.com/deepnoodle-ai/hotpath/ast"
)

// Fingerprint identifies an expression by its structure: node kinds,
// operators, literal values, names and nesting. Source positions and
// whitespace do not contribute, so "1+2" and "1 + 2" share a fingerprint.
type Fingerprint uint64

// String returns the fingerprint as 16 lowercase hex digits.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// ParseFingerprint parses the form produced by String.
func ParseFingerprint(s string) (Fingerprint, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %q", s)
	}
	return Fingerprint(v), nil
}

// MarshalText encodes the fingerprint in its hex form.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText decodes the hex form.
func (f *Fingerprint) UnmarshalText(text []byte) error {
	v, err := ParseFingerprint(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// node tags of the canonical encoding
const (
	tagInt byte = iota + 1
	tagIdent
	tagInfix
	tagAssign
	tagCall
	tagIf
)

// Of computes the fingerprint of an expression with 64-bit FNV-1a over a
// prefix encoding of the tree. Every variable-length field is length
// prefixed so distinct trees never share an encoding.
func Of(node ast.Expr) Fingerprint {
	h := fnv.New64a()
	encode(h, node)
	return Fingerprint(h.Sum64())
}

func encode(h hash.Hash64, node ast.Expr) {
	var buf [binary.MaxVarintLen64]byte
	writeTag := func(tag byte) {
		h.Write([]byte{tag})
	}
	writeUvarint := func(v uint64) {
		n := binary.PutUvarint(buf[:], v)
		h.Write(buf[:n])
	}
	writeName := func(name string) {
		writeUvarint(uint64(len(name)))
		h.Write([]byte(name))
	}

	switch n := node.(type) {
	case *ast.Int:
		writeTag(tagInt)
		var v [8]byte
		binary.LittleEndian.PutUint64(v[:], uint64(n.Value))
		h.Write(v[:])
	case *ast.Ident:
		writeTag(tagIdent)
		writeName(n.Name)
	case *ast.Infix:
		writeTag(tagInfix)
		h.Write([]byte{byte(n.Op)})
		encode(h, n.X)
		encode(h, n.Y)
	case *ast.Assign:
		writeTag(tagAssign)
		writeName(n.Name.Name)
		encode(h, n.Value)
	case *ast.Call:
		writeTag(tagCall)
		writeName(n.Fun.Name)
		writeUvarint(uint64(len(n.Args)))
		for _, a := range n.Args {
			encode(h, a)
		}
	case *ast.If:
		writeTag(tagIf)
		encode(h, n.Cond)
		encode(h, n.Consequence)
		encode(h, n.Alternative)
	default:
		panic(fmt.Sprintf("hotspot: unexpected node type %T", node))
	}
}
