package interp

import "sort"

// Builtin is a native function callable by name from expressions.
// Arguments are evaluated left to right before Fn is called.
type Builtin struct {
	Name  string
	Arity int
	Fn    func(args []int64) int64
}

// DefaultBuiltins returns the functions available to every interpreter.
func DefaultBuiltins() []Builtin {
	return []Builtin{
		{Name: "fib", Arity: 1, Fn: func(args []int64) int64 { return Fibonacci(args[0]) }},
		{Name: "fact", Arity: 1, Fn: func(args []int64) int64 { return Factorial(args[0]) }},
		{Name: "pow", Arity: 2, Fn: func(args []int64) int64 { return Power(args[0], args[1]) }},
	}
}

// Fibonacci returns the nth Fibonacci number, or n itself when n <= 1.
// Results wrap on overflow.
func Fibonacci(n int64) int64 {
	if n <= 1 {
		return n
	}
	var a, b int64 = 0, 1
	for i := int64(2); i <= n; i++ {
		a, b = b, a+b
	}
	return b
}

// Factorial returns n!, or 1 when n <= 1. Results wrap on overflow.
func Factorial(n int64) int64 {
	result := int64(1)
	for i := int64(2); i <= n; i++ {
		result *= i
	}
	return result
}

// Power returns base raised to exp. Negative exponents yield 0 since the
// language has no fractions. Results wrap on overflow.
func Power(base, exp int64) int64 {
	if exp < 0 {
		return 0
	}
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

func builtinNames(m map[string]Builtin) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
