// Package op defines the closed set of binary operators understood by the
// interpreter and the native code generator.
package op

// BinaryOpType describes a type of binary operation, as in an operation that
// takes two operands. For example, addition, comparison, etc.
type BinaryOpType uint8

const (
	Invalid            BinaryOpType = 0
	Add                BinaryOpType = 1
	Subtract           BinaryOpType = 2
	Multiply           BinaryOpType = 3
	Divide             BinaryOpType = 4
	Modulo             BinaryOpType = 5
	Equal              BinaryOpType = 6
	NotEqual           BinaryOpType = 7
	LessThan           BinaryOpType = 8
	GreaterThan        BinaryOpType = 9
	LessThanOrEqual    BinaryOpType = 10
	GreaterThanOrEqual BinaryOpType = 11
)

// Info contains information about an operator.
type Info struct {
	Op         BinaryOpType
	Name       string
	Symbol     string
	Comparison bool
}

var infos = make([]Info, 16)

var symbols = map[string]BinaryOpType{}

func init() {
	ops := []Info{
		{Add, "ADD", "+", false},
		{Subtract, "SUBTRACT", "-", false},
		{Multiply, "MULTIPLY", "*", false},
		{Divide, "DIVIDE", "/", false},
		{Modulo, "MODULO", "%", false},
		{Equal, "EQUAL", "==", true},
		{NotEqual, "NOT_EQUAL", "!=", true},
		{LessThan, "LESS_THAN", "<", true},
		{GreaterThan, "GREATER_THAN", ">", true},
		{LessThanOrEqual, "LESS_THAN_OR_EQUAL", "<=", true},
		{GreaterThanOrEqual, "GREATER_THAN_OR_EQUAL", ">=", true},
	}
	for _, o := range ops {
		infos[o.Op] = o
		symbols[o.Symbol] = o.Op
	}
}

// All returns every valid operator in declaration order.
func All() []BinaryOpType {
	return []BinaryOpType{
		Add, Subtract, Multiply, Divide, Modulo,
		Equal, NotEqual, LessThan, GreaterThan, LessThanOrEqual, GreaterThanOrEqual,
	}
}

// GetInfo returns information about the given operator. The zero Info is
// returned for values outside the closed set.
func GetInfo(bop BinaryOpType) Info {
	if int(bop) >= len(infos) {
		return Info{}
	}
	return infos[bop]
}

// Lookup returns the operator written as symbol in source code.
func Lookup(symbol string) (BinaryOpType, bool) {
	bop, ok := symbols[symbol]
	return bop, ok
}

// String returns a string representation of the binary operation.
// For example "+" for addition.
func (bop BinaryOpType) String() string {
	return GetInfo(bop).Symbol
}

// IsValid reports whether bop is a member of the closed operator set.
func (bop BinaryOpType) IsValid() bool {
	return GetInfo(bop).Op != Invalid
}

// IsComparison reports whether the operator produces a 0/1 truth value.
func (bop BinaryOpType) IsComparison() bool {
	return GetInfo(bop).Comparison
}

// IsDivision reports whether the operator traps on a zero right operand.
func (bop BinaryOpType) IsDivision() bool {
	return bop == Divide || bop == Modulo
}
