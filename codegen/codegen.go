// Package codegen translates compilable expressions into x86-64 machine code.
//
// # Code shape
//
// Every artifact is one routine following the same frame discipline:
//
//	push rbp
//	mov rbp, rsp
//	sub rsp, 8*slots         ; one word per variable slot
//	<copy slot values in>    ; from the frame block addressed by rdi
//	<expression>             ; result in rax
//	<copy slot values out>
//	exit:
//	mov rsp, rbp
//	pop rbp
//	ret
//
// Binary operators evaluate the right operand, push it, evaluate the left
// operand into rax and pop the right operand into rcx before applying the
// operator. Conditionals and the division guards use forward branches that
// are emitted with a placeholder displacement and patched once the target is
// known.
//
// # Variables
//
// Generated code never consults an environment. Names read by the expression
// are seeded into their slots by the caller; a read of a name that is neither
// seeded nor definitely assigned beforehand fails generation with
// ErrUnboundVariable. Because operands run in the reverse of the interpreter's
// order, a binary node whose operands interfere through assignment fails with
// ErrOrderDependent.
//
// # Division
//
// A zero divisor stores a nonzero status in the frame block and leaves through
// the exit label, so the caller can report the same error as the interpreter.
// A divisor of -1 is handled without idiv, which would fault on MinInt64.
package codegen

import (
	"errors"
	"fmt"

	"github.com/deepnoodle-ai/hotpath/amd64"
	"github.com/deepnoodle-ai/hotpath/ast"
	"github.com/deepnoodle-ai/hotpath/op"
)

const (
	// MaxSlots is the maximum number of variable slots in one artifact.
	MaxSlots = 32

	// MaxDepth is the maximum number of operand words pushed at once.
	MaxDepth = 48
)

var (
	ErrNotCompilable   = errors.New("codegen: expression contains a function call")
	ErrUnboundVariable = errors.New("codegen: variable is read before it is assigned")
	ErrOrderDependent  = errors.New("codegen: operands interfere through assignment")
	ErrTooComplex      = errors.New("codegen: expression exceeds the native frame budget")
	ErrUnpatchedBranch = errors.New("codegen: branch placeholder was never patched")
)

// Artifact is the output of a successful generation.
type Artifact struct {
	// Code is the complete routine.
	Code []byte
	// Layout maps variable names to slots.
	Layout *Layout
	// Entry is the offset of the first instruction to execute.
	Entry int
	// MaxDepth is the deepest operand stack the routine reaches.
	MaxDepth int
}

// Size returns the length of the code in bytes.
func (a *Artifact) Size() int {
	return len(a.Code)
}

// IsCompilable reports whether the expression can be generated at all. Every
// node kind except a function call is compilable, so the answer is whether
// the tree contains a call.
func IsCompilable(node ast.Expr) bool {
	for n := range ast.Preorder(node) {
		if _, ok := n.(*ast.Call); ok {
			return false
		}
	}
	return true
}

// Generator holds the state of one generation.
type Generator struct {
	asm *amd64.Assembler

	layout *Layout

	// Names that hold a value at the current point of the routine
	defined ast.NameSet

	// Operand words currently pushed, and the most ever pushed
	depth    int
	maxDepth int

	// Placeholder sites not yet patched
	pending map[int]bool

	// Jumps to the exit label
	exits []int

	// Set on a generation error
	failure error
}

// Generate translates expr into an artifact. seeds names the variables whose
// values the caller will supply; they are given the first slots in order.
func Generate(expr ast.Expr, seeds []string) (*Artifact, error) {
	if !IsCompilable(expr) {
		return nil, ErrNotCompilable
	}
	g := &Generator{
		asm:     amd64.New(),
		layout:  newLayout(),
		defined: ast.NameSet{},
		pending: map[int]bool{},
	}
	for _, name := range seeds {
		g.layout.allocate(name)
		g.defined.Add(name)
	}
	g.layout.seeds = g.layout.Len()

	if err := g.compile(expr); err != nil {
		return nil, err
	}
	if g.depth != 0 {
		return nil, fmt.Errorf("codegen: operand depth %d after expression", g.depth)
	}
	if g.layout.Len() > MaxSlots {
		return nil, fmt.Errorf("%w: %d variable slots", ErrTooComplex, g.layout.Len())
	}

	// Copy slots back out through rcx so rax keeps the result.
	for slot := 0; slot < g.layout.Len(); slot++ {
		g.asm.MovRegMem(amd64.RCX, amd64.RBP, FrameOffset(slot))
		g.asm.MovMemReg(amd64.RDI, valueOffset(slot), amd64.RCX)
	}
	exit := g.asm.Len()
	for _, site := range g.exits {
		if err := g.patch(site, exit); err != nil {
			return nil, err
		}
	}
	g.asm.MovRegReg(amd64.RSP, amd64.RBP)
	g.asm.Pop(amd64.RBP)
	g.asm.Ret()

	if len(g.pending) > 0 {
		return nil, ErrUnpatchedBranch
	}

	// The body only contains relative branches, so the prologue can be
	// prepended once the slot count is known.
	pro := amd64.New()
	pro.Push(amd64.RBP)
	pro.MovRegReg(amd64.RBP, amd64.RSP)
	if n := g.layout.Len(); n > 0 {
		pro.SubImm(amd64.RSP, int32(8*n))
	}
	for slot := 0; slot < g.layout.Len(); slot++ {
		pro.MovRegMem(amd64.RAX, amd64.RDI, valueOffset(slot))
		pro.MovMemReg(amd64.RBP, FrameOffset(slot), amd64.RAX)
	}

	code := make([]byte, 0, pro.Len()+g.asm.Len())
	code = append(code, pro.Bytes()...)
	code = append(code, g.asm.Bytes()...)
	art := &Artifact{
		Code:     code,
		Layout:   g.layout,
		Entry:    0,
		MaxDepth: g.maxDepth,
	}
	if err := Verify(art); err != nil {
		return nil, err
	}
	return art, nil
}

func (g *Generator) compile(node ast.Expr) error {
	if g.failure != nil {
		return g.failure
	}
	switch node := node.(type) {
	case *ast.Int:
		g.asm.MovRegImm(amd64.RAX, node.Value)
	case *ast.Ident:
		if err := g.compileIdent(node); err != nil {
			return err
		}
	case *ast.Infix:
		if err := g.compileInfix(node); err != nil {
			return err
		}
	case *ast.Assign:
		if err := g.compileAssign(node); err != nil {
			return err
		}
	case *ast.If:
		if err := g.compileIf(node); err != nil {
			return err
		}
	case *ast.Call:
		return ErrNotCompilable
	default:
		return fmt.Errorf("codegen: unknown node type %T", node)
	}
	return nil
}

func (g *Generator) compileIdent(node *ast.Ident) error {
	if !g.defined.Has(node.Name) {
		return fmt.Errorf("%w: %q", ErrUnboundVariable, node.Name)
	}
	slot, _ := g.layout.Slot(node.Name)
	g.asm.MovRegMem(amd64.RAX, amd64.RBP, FrameOffset(slot))
	return nil
}

func (g *Generator) compileAssign(node *ast.Assign) error {
	if err := g.compile(node.Value); err != nil {
		return err
	}
	slot := g.layout.allocate(node.Name.Name)
	if slot >= MaxSlots {
		return fmt.Errorf("%w: more than %d variables", ErrTooComplex, MaxSlots)
	}
	g.asm.MovMemReg(amd64.RBP, FrameOffset(slot), amd64.RAX)
	g.asm.MovMemImm(amd64.RDI, flagOffset(slot), 1)
	g.defined.Add(node.Name.Name)
	return nil
}

func interferes(x, y ast.Expr) bool {
	xw, yw := ast.Writes(x), ast.Writes(y)
	if len(xw) == 0 && len(yw) == 0 {
		return false
	}
	return xw.Intersects(ast.Reads(y)) || xw.Intersects(yw) || yw.Intersects(ast.Reads(x))
}

func (g *Generator) compileInfix(node *ast.Infix) error {
	if !node.Op.IsValid() {
		return fmt.Errorf("codegen: invalid operator %d", node.Op)
	}
	if interferes(node.X, node.Y) {
		return fmt.Errorf("%w: %s", ErrOrderDependent, node)
	}
	if err := g.compile(node.Y); err != nil {
		return err
	}
	if err := g.push(); err != nil {
		return err
	}
	if err := g.compile(node.X); err != nil {
		return err
	}
	if err := g.pop(); err != nil {
		return err
	}

	a := g.asm
	switch node.Op {
	case op.Add:
		a.Add(amd64.RAX, amd64.RCX)
	case op.Subtract:
		a.Sub(amd64.RAX, amd64.RCX)
	case op.Multiply:
		a.Imul(amd64.RAX, amd64.RCX)
	case op.Divide, op.Modulo:
		return g.compileDivision(node.Op)
	default:
		cond, ok := comparisons[node.Op]
		if !ok {
			return fmt.Errorf("codegen: unsupported operator %s", node.Op)
		}
		a.Cmp(amd64.RAX, amd64.RCX)
		a.Setcc(cond, amd64.RAX)
		a.MovzxReg8(amd64.RAX, amd64.RAX)
	}
	return nil
}

var comparisons = map[op.BinaryOpType]amd64.Cond{
	op.Equal:              amd64.CondE,
	op.NotEqual:           amd64.CondNE,
	op.LessThan:           amd64.CondL,
	op.GreaterThan:        amd64.CondG,
	op.LessThanOrEqual:    amd64.CondLE,
	op.GreaterThanOrEqual: amd64.CondGE,
}

// compileDivision applies rax / rcx or rax % rcx with the zero and -1 guards.
func (g *Generator) compileDivision(bop op.BinaryOpType) error {
	a := g.asm
	status := StatusDivideByZero
	if bop == op.Modulo {
		status = StatusModuloByZero
	}

	a.Test(amd64.RCX, amd64.RCX)
	nonZero := g.jcc(amd64.CondNE)
	if g.depth > 0 {
		a.AddImm(amd64.RSP, int32(8*g.depth))
	}
	a.MovMemImm(amd64.RDI, 0, int32(status))
	g.exits = append(g.exits, g.jmp())
	if err := g.patch(nonZero, a.Len()); err != nil {
		return err
	}

	a.CmpImm8(amd64.RCX, -1)
	notMinusOne := g.jcc(amd64.CondNE)
	if bop == op.Divide {
		a.Neg(amd64.RAX)
	} else {
		a.Xor32(amd64.RAX, amd64.RAX)
	}
	done := g.jmp()
	if err := g.patch(notMinusOne, a.Len()); err != nil {
		return err
	}
	a.Cqo()
	a.Idiv(amd64.RCX)
	if bop == op.Modulo {
		a.MovRegReg(amd64.RAX, amd64.RDX)
	}
	return g.patch(done, a.Len())
}

func (g *Generator) compileIf(node *ast.If) error {
	if err := g.compile(node.Cond); err != nil {
		return err
	}
	a := g.asm
	a.Test(amd64.RAX, amd64.RAX)
	jumpIfFalse := g.jcc(amd64.CondE)

	before := g.copyDefined()
	if err := g.compile(node.Consequence); err != nil {
		return err
	}
	afterTrue := g.defined
	g.defined = before

	jumpOver := g.jmp()
	if err := g.patch(jumpIfFalse, a.Len()); err != nil {
		return err
	}
	if err := g.compile(node.Alternative); err != nil {
		return err
	}
	if err := g.patch(jumpOver, a.Len()); err != nil {
		return err
	}

	// Only names assigned on both branches are defined afterwards.
	merged := ast.NameSet{}
	for name := range g.defined {
		if afterTrue.Has(name) {
			merged.Add(name)
		}
	}
	g.defined = merged
	return nil
}

func (g *Generator) copyDefined() ast.NameSet {
	out := make(ast.NameSet, len(g.defined))
	for name := range g.defined {
		out.Add(name)
	}
	return out
}

func (g *Generator) push() error {
	g.asm.Push(amd64.RAX)
	g.depth++
	if g.depth > MaxDepth {
		g.failure = fmt.Errorf("%w: operand depth above %d", ErrTooComplex, MaxDepth)
		return g.failure
	}
	if g.depth > g.maxDepth {
		g.maxDepth = g.depth
	}
	return nil
}

func (g *Generator) pop() error {
	if g.depth == 0 {
		return errors.New("codegen: operand stack underflow")
	}
	g.asm.Pop(amd64.RCX)
	g.depth--
	return nil
}

func (g *Generator) jcc(cond amd64.Cond) int {
	site := g.asm.Jcc(cond)
	g.pending[site] = true
	return site
}

func (g *Generator) jmp() int {
	site := g.asm.Jmp()
	g.pending[site] = true
	return site
}

func (g *Generator) patch(site, target int) error {
	if !g.pending[site] {
		return fmt.Errorf("codegen: no placeholder at offset %d", site)
	}
	delete(g.pending, site)
	return g.asm.Patch(site, target)
}
