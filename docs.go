package hotpath

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/deepnoodle-ai/hotpath/errors"
	"github.com/deepnoodle-ai/hotpath/jit"
	"github.com/deepnoodle-ai/hotpath/op"
	"github.com/deepnoodle-ai/hotpath/parser"
)

// Version is the current hotpath version.
const Version = "0.3.0"

// DocsOption configures documentation retrieval.
type DocsOption func(*docsOptions)

type docsOptions struct {
	category string
	topic    string
}

// DocsCategory filters documentation to a specific category.
// Valid categories: "functions", "operators", "syntax", "errors", "engine"
func DocsCategory(cat string) DocsOption {
	return func(o *docsOptions) {
		o.category = cat
	}
}

// DocsTopic retrieves documentation for a specific topic: a function name,
// an operator symbol or an error code.
func DocsTopic(topic string) DocsOption {
	return func(o *docsOptions) {
		o.topic = topic
	}
}

// Documentation provides structured access to the language reference.
type Documentation struct {
	data any
}

// JSON returns the documentation as a JSON string.
func (d *Documentation) JSON() string {
	b, _ := json.MarshalIndent(d.data, "", "  ")
	return string(b)
}

// Data returns the raw documentation data.
func (d *Documentation) Data() any {
	return d.data
}

type docsFunction struct {
	Name        string `json:"name"`
	Signature   string `json:"signature"`
	Description string `json:"description"`
	Example     string `json:"example"`
}

type docsOperator struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Precedence  int    `json:"precedence"`
	Description string `json:"description"`
}

type docsSyntaxPattern struct {
	Pattern     string `json:"pattern"`
	Description string `json:"description"`
}

type docsError struct {
	Code        string `json:"code"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

type docsEngine struct {
	HotThreshold uint64 `json:"default_hot_threshold"`
	MaxEntries   int    `json:"default_max_entries"`
	LockTimeout  string `json:"default_lock_timeout"`
	Compiled     string `json:"compiled"`
	Interpreted  string `json:"interpreted"`
}

type docsReference struct {
	Version   string              `json:"version"`
	Functions []docsFunction      `json:"functions"`
	Operators []docsOperator      `json:"operators"`
	Syntax    []docsSyntaxPattern `json:"syntax"`
	Errors    []docsError         `json:"errors"`
	Engine    docsEngine          `json:"engine"`
}

var functionDocs = []docsFunction{
	{"fact", "fact(n)", "n factorial; 1 when n <= 1. Wraps on overflow.", "fact(5) == 120"},
	{"fib", "fib(n)", "the nth Fibonacci number; n itself when n <= 1.", "fib(10) == 55"},
	{"pow", "pow(base, exp)", "base raised to exp; 1 when exp is 0 and 0 when exp is negative.", "pow(2, 10) == 1024"},
}

var operatorDescriptions = map[op.BinaryOpType]string{
	op.Add:                "wrapping addition",
	op.Subtract:           "wrapping subtraction",
	op.Multiply:           "wrapping multiplication",
	op.Divide:             "division truncating toward zero; dividing by zero is an error",
	op.Modulo:             "remainder with the sign of the dividend; modulo by zero is an error",
	op.Equal:              "1 if equal, else 0",
	op.NotEqual:           "1 if not equal, else 0",
	op.LessThan:           "1 if less, else 0",
	op.GreaterThan:        "1 if greater, else 0",
	op.LessThanOrEqual:    "1 if less or equal, else 0",
	op.GreaterThanOrEqual: "1 if greater or equal, else 0",
}

var syntaxDocs = []docsSyntaxPattern{
	{"42", "64-bit signed integer literal"},
	{"name", "variable read; reading an unset variable is an error"},
	{"name = expr", "assignment; evaluates to the assigned value and is right associative"},
	{"-expr", "negation, the same as 0 - expr"},
	{"(expr)", "grouping"},
	{"if(cond, then, else)", "evaluates then when cond is non-zero, else otherwise; only one branch runs"},
	{"f(a, b)", "builtin function call; calls always run interpreted"},
}

func buildReference() docsReference {
	ref := docsReference{
		Version:   Version,
		Functions: functionDocs,
		Syntax:    syntaxDocs,
		Engine: docsEngine{
			HotThreshold: jit.DefaultHotThreshold,
			MaxEntries:   jit.DefaultMaxEntries,
			LockTimeout:  jit.DefaultLockTimeout.String(),
			Compiled:     "integer literals, variables, arithmetic, comparisons, assignments and if",
			Interpreted:  "every expression containing a function call",
		},
	}
	for _, bop := range op.All() {
		info := op.GetInfo(bop)
		ref.Operators = append(ref.Operators, docsOperator{
			Symbol:      info.Symbol,
			Name:        strings.ToLower(info.Name),
			Precedence:  parser.OperatorPrecedence(info.Symbol),
			Description: operatorDescriptions[bop],
		})
	}
	sort.SliceStable(ref.Operators, func(i, j int) bool {
		return ref.Operators[i].Precedence > ref.Operators[j].Precedence
	})
	for _, code := range errors.Codes() {
		ref.Errors = append(ref.Errors, docsError{
			Code:        code.String(),
			Category:    code.Category(),
			Description: code.Description(),
		})
	}
	return ref
}

// Docs returns documentation for the expression language and the engine.
// With no options the full reference is returned.
func Docs(opts ...DocsOption) *Documentation {
	o := &docsOptions{}
	for _, opt := range opts {
		opt(o)
	}
	ref := buildReference()
	switch {
	case o.topic != "":
		return &Documentation{data: buildTopicDocs(ref, o.topic)}
	case o.category != "":
		return &Documentation{data: buildCategoryDocs(ref, o.category)}
	}
	return &Documentation{data: ref}
}

func buildCategoryDocs(ref docsReference, category string) any {
	switch strings.ToLower(category) {
	case "functions":
		return map[string]any{"functions": ref.Functions}
	case "operators":
		return map[string]any{"operators": ref.Operators}
	case "syntax":
		return map[string]any{"syntax": ref.Syntax}
	case "errors":
		return map[string]any{"errors": ref.Errors}
	case "engine":
		return map[string]any{"engine": ref.Engine}
	}
	return map[string]any{
		"error":      fmt.Sprintf("unknown category %q", category),
		"categories": []string{"functions", "operators", "syntax", "errors", "engine"},
	}
}

func buildTopicDocs(ref docsReference, topic string) any {
	for _, f := range ref.Functions {
		if f.Name == topic {
			return f
		}
	}
	for _, o := range ref.Operators {
		if o.Symbol == topic || o.Name == strings.ToLower(topic) {
			return o
		}
	}
	for _, e := range ref.Errors {
		if e.Code == strings.ToUpper(topic) {
			return e
		}
	}
	return map[string]any{"error": fmt.Sprintf("unknown topic %q", topic)}
}
