package errors

import "sort"

// ErrorCode represents a unique identifier for error types.
// Codes are organized by category:
//   - E1xxx: Parse errors
//   - E2xxx: Name resolution errors
//   - E3xxx: Runtime errors
//   - E4xxx: Engine errors
type ErrorCode string

const (
	// Parse errors (E1xxx)
	E1001 ErrorCode = "E1001" // Unexpected token
	E1003 ErrorCode = "E1003" // Invalid syntax
	E1005 ErrorCode = "E1005" // Invalid assignment target
	E1007 ErrorCode = "E1007" // Unclosed delimiter
	E1008 ErrorCode = "E1008" // Invalid number literal
	E1009 ErrorCode = "E1009" // Maximum nesting depth exceeded

	// Name resolution errors (E2xxx)
	E2001 ErrorCode = "E2001" // Undefined variable
	E2002 ErrorCode = "E2002" // Undefined function

	// Runtime errors (E3xxx)
	E3002 ErrorCode = "E3002" // Division by zero
	E3010 ErrorCode = "E3010" // Invalid argument count

	// Engine errors (E4xxx)
	E4001 ErrorCode = "E4001" // Engine busy
)

// codeDescriptions maps error codes to their short descriptions.
var codeDescriptions = map[ErrorCode]string{
	E1001: "unexpected token",
	E1003: "invalid syntax",
	E1005: "invalid assignment target",
	E1007: "unclosed delimiter",
	E1008: "invalid number literal",
	E1009: "maximum nesting depth exceeded",

	E2001: "undefined variable",
	E2002: "undefined function",

	E3002: "division by zero",
	E3010: "wrong number of arguments",

	E4001: "engine busy",
}

// Description returns the short description for an error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}

// String returns the error code as a string.
func (c ErrorCode) String() string {
	return string(c)
}

// Category returns the error category based on the code prefix.
func (c ErrorCode) Category() string {
	if len(c) < 2 {
		return "unknown"
	}
	switch c[1] {
	case '1':
		return "parse"
	case '2':
		return "name"
	case '3':
		return "runtime"
	case '4':
		return "engine"
	default:
		return "unknown"
	}
}

// Codes returns every defined error code in ascending order.
func Codes() []ErrorCode {
	codes := make([]ErrorCode, 0, len(codeDescriptions))
	for c := range codeDescriptions {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
