package codegen

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/deepnoodle-ai/hotpath/amd64"
	"github.com/deepnoodle-ai/hotpath/ast"
	hperrors "github.com/deepnoodle-ai/hotpath/errors"
	"github.com/deepnoodle-ai/hotpath/interp"
	"github.com/deepnoodle-ai/hotpath/op"
	"github.com/deepnoodle-ai/hotpath/parser"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) ast.Expr {
	t.Helper()
	expr, err := parser.Parse(context.Background(), src)
	require.Nil(t, err)
	return expr
}

func listing(t *testing.T, code []byte) []string {
	t.Helper()
	insts, err := amd64.Decode(code)
	require.Nil(t, err)
	var lines []string
	for _, in := range insts {
		lines = append(lines, in.String())
	}
	return lines
}

// run generates src seeded from vars and executes it on the emulator.
func run(t *testing.T, src string, vars map[string]int64) (int64, Frame, *Artifact) {
	t.Helper()
	expr := parse(t, src)
	var seeds []string
	for _, name := range ast.Reads(expr).Sorted() {
		if _, ok := vars[name]; ok {
			seeds = append(seeds, name)
		}
	}
	art, err := Generate(expr, seeds)
	require.Nil(t, err)
	frame := art.Layout.NewFrame()
	for _, name := range art.Layout.Seeds() {
		slot, _ := art.Layout.Slot(name)
		frame.Set(slot, vars[name])
	}
	v, err := emulate(art, frame)
	require.Nil(t, err)
	return v, frame, art
}

func TestIsCompilable(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"1", true},
		{"x", true},
		{"2 + 3 * 4", true},
		{"x = y = 3", true},
		{"if(x < 1, 2, 3)", true},
		{"fib(6)", false},
		{"1 + fact(3)", false},
		{"if(1, 2, pow(2, 3))", false},
		{"x = fib(2)", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Equal(t, tt.expected, IsCompilable(parse(t, tt.input)))
		})
	}
}

func TestGenerateListing(t *testing.T) {
	art, err := Generate(parse(t, "1 + 2"), nil)
	require.Nil(t, err)
	require.Equal(t, 0, art.Entry)
	require.Equal(t, 1, art.MaxDepth)
	require.Equal(t, 0, art.Layout.Len())
	require.Equal(t, []string{
		"push rbp",
		"mov rbp, rsp",
		"mov rax, 2",
		"push rax",
		"mov rax, 1",
		"pop rcx",
		"add rax, rcx",
		"mov rsp, rbp",
		"pop rbp",
		"ret",
	}, listing(t, art.Code))
	require.Equal(t, len(art.Code), art.Size())
}

func TestGenerateVariables(t *testing.T) {
	art, err := Generate(parse(t, "x = x + 1"), []string{"x"})
	require.Nil(t, err)
	require.Equal(t, []string{
		"push rbp",
		"mov rbp, rsp",
		"sub rsp, 8",
		"mov rax, qword [rdi+0x8]",
		"mov qword [rbp-0x8], rax",
		"mov rax, 1",
		"push rax",
		"mov rax, qword [rbp-0x8]",
		"pop rcx",
		"add rax, rcx",
		"mov qword [rbp-0x8], rax",
		"mov qword [rdi+0x10], 1",
		"mov rcx, qword [rbp-0x8]",
		"mov qword [rdi+0x8], rcx",
		"mov rsp, rbp",
		"pop rbp",
		"ret",
	}, listing(t, art.Code))
}

func TestComparisonWidening(t *testing.T) {
	art, err := Generate(parse(t, "1 < 2"), nil)
	require.Nil(t, err)
	lines := listing(t, art.Code)
	require.Contains(t, strings.Join(lines, "\n"), "cmp rax, rcx\nsetl al\nmovzx eax, al")
}

func TestLayoutFirstWriteOrder(t *testing.T) {
	v, frame, art := run(t, "a = b = x + 1", map[string]int64{"x": 4})
	require.Equal(t, int64(5), v)
	require.Equal(t, []string{"x", "b", "a"}, art.Layout.Names())
	require.Equal(t, []string{"x"}, art.Layout.Seeds())
	for slot, name := range art.Layout.Names() {
		require.Equal(t, name == "a" || name == "b", frame.Written(slot), name)
	}
	slot, ok := art.Layout.Slot("a")
	require.True(t, ok)
	require.Equal(t, int64(5), frame.Value(slot))
	require.Equal(t, "a", art.Layout.Name(slot))
	require.Equal(t, int32(-24), FrameOffset(slot))
}

func TestSeededVariable(t *testing.T) {
	v, _, _ := run(t, "x * 3 + 7", map[string]int64{"x": 10})
	require.Equal(t, int64(37), v)
}

func TestConditionalBranches(t *testing.T) {
	v, frame, art := run(t, "if(c, y = 1, z = 2)", map[string]int64{"c": 0})
	require.Equal(t, int64(2), v)
	ySlot, _ := art.Layout.Slot("y")
	zSlot, _ := art.Layout.Slot("z")
	require.False(t, frame.Written(ySlot))
	require.True(t, frame.Written(zSlot))

	v, _, _ = run(t, "if(c, 10, 20)", map[string]int64{"c": -5})
	require.Equal(t, int64(10), v)
}

func TestDivisionGuards(t *testing.T) {
	v, frame, _ := run(t, "x / y", map[string]int64{"x": math.MinInt64, "y": -1})
	require.Equal(t, int64(math.MinInt64), v)
	require.Equal(t, StatusOK, frame.Status())

	v, _, _ = run(t, "x % y", map[string]int64{"x": math.MinInt64, "y": -1})
	require.Equal(t, int64(0), v)

	v, _, _ = run(t, "-7 % 3", nil)
	require.Equal(t, int64(-1), v)

	_, frame, _ = run(t, "1 + 2 * (3 / y)", map[string]int64{"y": 0})
	require.Equal(t, StatusDivideByZero, frame.Status())

	_, frame, _ = run(t, "1 + (x = 5 % y)", map[string]int64{"y": 0})
	require.Equal(t, StatusModuloByZero, frame.Status())
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		input string
		seeds []string
		err   error
	}{
		{"fib(3)", nil, ErrNotCompilable},
		{"y + 1", nil, ErrUnboundVariable},
		{"if(c, y = 1, 2) + 0", []string{"c"}, nil},
		{"if(c, y = 1, 2) * 0 + y", []string{"c"}, ErrOrderDependent},
		{"if(c, x = 1, 2) - 0", []string{"c"}, nil},
		{"(x = 2) * (x + 1)", nil, ErrOrderDependent},
		{"(x = 2) * (x = 1)", nil, ErrOrderDependent},
		{"x + (x = 1)", []string{"x"}, ErrOrderDependent},
		{"if(c, z = 1, 0) - if(c, z, 0)", []string{"c"}, ErrOrderDependent},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Generate(parse(t, tt.input), tt.seeds)
			if tt.err == nil {
				require.Nil(t, err)
				return
			}
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestDefiniteAssignment(t *testing.T) {
	// Assigned on one branch of the condition only.
	_, err := Generate(parse(t, "if(if(c, z = 1, 0), 0, z)"), []string{"c"})
	require.ErrorIs(t, err, ErrUnboundVariable)

	// Assigned in the condition before either branch runs.
	v, _, _ := run(t, "if(z = c, z, z + 1)", map[string]int64{"c": 0})
	require.Equal(t, int64(1), v)

	// Assigned on both branches.
	v, _, _ = run(t, "if(q = if(c, z = 3, z = 4), z, 0)", map[string]int64{"c": 1})
	require.Equal(t, int64(3), v)
}

func TestTooComplex(t *testing.T) {
	var b strings.Builder
	for i := 0; i < MaxSlots+1; i++ {
		b.WriteString("v")
		b.WriteString(strings.Repeat("x", i+1))
		b.WriteString(" = ")
	}
	b.WriteString("1")
	_, err := Generate(parse(t, b.String()), nil)
	require.ErrorIs(t, err, ErrTooComplex)

	// Left-nested sums keep one operand per level on the stack.
	nested := func(n int) string {
		return strings.Repeat("(", n) + "1" + strings.Repeat(" + 1)", n)
	}
	art, err := Generate(parse(t, nested(MaxDepth)), nil)
	require.Nil(t, err)
	require.Equal(t, MaxDepth, art.MaxDepth)
	_, err = Generate(parse(t, nested(MaxDepth+1)), nil)
	require.ErrorIs(t, err, ErrTooComplex)

	// Right-nested sums do not.
	src := strings.Repeat("1 + (", MaxDepth+1) + "1" + strings.Repeat(")", MaxDepth+1)
	art, err = Generate(parse(t, src), nil)
	require.Nil(t, err)
	require.Equal(t, 1, art.MaxDepth)
}

func TestVerifyRejects(t *testing.T) {
	layout := newLayout()
	build := func(body func(a *amd64.Assembler)) *Artifact {
		a := amd64.New()
		a.Push(amd64.RBP)
		a.MovRegReg(amd64.RBP, amd64.RSP)
		body(a)
		a.MovRegReg(amd64.RSP, amd64.RBP)
		a.Pop(amd64.RBP)
		a.Ret()
		return &Artifact{Code: a.Bytes(), Layout: layout}
	}

	ok := build(func(a *amd64.Assembler) {
		a.MovRegImm(amd64.RAX, 1)
	})
	require.Nil(t, Verify(ok))

	tests := []struct {
		name string
		art  *Artifact
		msg  string
	}{
		{"unbalanced", build(func(a *amd64.Assembler) { a.Push(amd64.RAX) }), "unbalanced stack"},
		{"underflow", build(func(a *amd64.Assembler) { a.Pop(amd64.RCX) }), "stack underflow"},
		{"unpatched", build(func(a *amd64.Assembler) { a.Jmp() }), "never patched"},
		{"frame slot", build(func(a *amd64.Assembler) { a.MovRegMem(amd64.RAX, amd64.RBP, -8) }), "outside the frame"},
		{"block word", build(func(a *amd64.Assembler) { a.MovRegMem(amd64.RAX, amd64.RDI, 8) }), "outside the frame block"},
		{"base", build(func(a *amd64.Assembler) { a.MovRegMem(amd64.RAX, amd64.RSI, 0) }), "unexpected base register"},
		{"merge", build(func(a *amd64.Assembler) {
			a.Test(amd64.RAX, amd64.RAX)
			site := a.Jcc(amd64.CondE)
			a.Push(amd64.RAX)
			require.Nil(t, a.Patch(site, a.Len()))
			a.Pop(amd64.RCX)
		}), "conflicts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(tt.art)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.msg)
		})
	}

	a := amd64.New()
	a.MovRegImm(amd64.RAX, 1)
	err := Verify(&Artifact{Code: a.Bytes(), Layout: layout})
	require.ErrorContains(t, err, "falls off the end")
}

// randomExpr builds a compilable expression over the names a, b and c.
func randomExpr(r *rand.Rand, depth int) ast.Expr {
	names := []string{"a", "b", "c"}
	if depth == 0 || r.Intn(4) == 0 {
		if r.Intn(2) == 0 {
			return &ast.Ident{Name: names[r.Intn(len(names))]}
		}
		values := []int64{0, 1, -1, 2, 3, 7, -13, math.MaxInt64, math.MinInt64}
		return &ast.Int{Value: values[r.Intn(len(values))]}
	}
	switch r.Intn(6) {
	case 0:
		return &ast.Assign{
			Name:  &ast.Ident{Name: names[r.Intn(len(names))]},
			Value: randomExpr(r, depth-1),
		}
	case 1:
		return &ast.If{
			Cond:        randomExpr(r, depth-1),
			Consequence: randomExpr(r, depth-1),
			Alternative: randomExpr(r, depth-1),
		}
	default:
		ops := op.All()
		return &ast.Infix{
			X:  randomExpr(r, depth-1),
			Op: ops[r.Intn(len(ops))],
			Y:  randomExpr(r, depth-1),
		}
	}
}

func TestEquivalence(t *testing.T) {
	r := rand.New(rand.NewSource(62))
	vars := map[string]int64{"a": 6, "b": -3, "c": 0}
	in := interp.New()
	compiled := 0
	for i := 0; i < 2000; i++ {
		expr := randomExpr(r, 4)
		var seeds []string
		for _, name := range ast.Reads(expr).Sorted() {
			seeds = append(seeds, name)
		}
		art, err := Generate(expr, seeds)
		if errors.Is(err, ErrOrderDependent) || errors.Is(err, ErrUnboundVariable) {
			continue
		}
		require.Nil(t, err, expr.String())
		compiled++

		overlay := interp.NewOverlay(vars)
		want, wantErr := in.Eval(expr, overlay)

		frame := art.Layout.NewFrame()
		for _, name := range art.Layout.Seeds() {
			slot, _ := art.Layout.Slot(name)
			frame.Set(slot, vars[name])
		}
		got, err := emulate(art, frame)
		require.Nil(t, err, expr.String())

		if wantErr != nil {
			require.ErrorIs(t, wantErr, hperrors.ErrDivisionByZero, expr.String())
			require.NotEqual(t, StatusOK, frame.Status(), expr.String())
			continue
		}
		require.Equal(t, StatusOK, frame.Status(), expr.String())
		require.Equal(t, want, got, expr.String())

		writes := map[string]int64{}
		for slot, name := range art.Layout.Names() {
			if frame.Written(slot) {
				writes[name] = frame.Value(slot)
			}
		}
		require.Equal(t, overlay.Writes(), writes, expr.String())
	}
	require.Greater(t, compiled, 200)
}
