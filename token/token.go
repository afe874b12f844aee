package token

import (
	"fmt"
	"sort"
	"strings"
)

// Type identifies the lexical class of a Token.
type Type int

const (
	EOF Type = iota

	// Operators and punctuation.
	Add
	Assign
	Colon
	Comma
	Div
	Dot
	Eq
	FloorDiv
	Gt
	GtEq
	LBrace
	LBracket
	LParen
	Lt
	LtEq
	Mod
	Mul
	Ne
	Pipe
	Pow
	RBrace
	RBracket
	RParen
	Semicolon
	Sub
	Tilde

	// Literals and identifiers.
	Whitespace
	Float
	Integer
	Name
	String
)

// typeNames maps each Type to the identifier used in token test
// expressions such as "name" or "name:as".
var typeNames = map[Type]string{
	EOF:        "eof",
	Add:        "add",
	Assign:     "assign",
	Colon:      "colon",
	Comma:      "comma",
	Div:        "div",
	Dot:        "dot",
	Eq:         "eq",
	FloorDiv:   "floordiv",
	Gt:         "gt",
	GtEq:       "gteq",
	LBrace:     "lbrace",
	LBracket:   "lbracket",
	LParen:     "lparen",
	Lt:         "lt",
	LtEq:       "lteq",
	Mod:        "mod",
	Mul:        "mul",
	Ne:         "ne",
	Pipe:       "pipe",
	Pow:        "pow",
	RBrace:     "rbrace",
	RBracket:   "rbracket",
	RParen:     "rparen",
	Semicolon:  "semicolon",
	Sub:        "sub",
	Tilde:      "tilde",
	Whitespace: "whitespace",
	Float:      "float",
	Integer:    "integer",
	Name:       "name",
	String:     "string",
}

// Operators binds operator source text to token types.
var Operators = map[string]Type{
	"+":  Add,
	"-":  Sub,
	"/":  Div,
	"//": FloorDiv,
	"*":  Mul,
	"%":  Mod,
	"**": Pow,
	"~":  Tilde,
	"[":  LBracket,
	"]":  RBracket,
	"(":  LParen,
	")":  RParen,
	"{":  LBrace,
	"}":  RBrace,
	"==": Eq,
	"!=": Ne,
	">":  Gt,
	">=": GtEq,
	"<":  Lt,
	"<=": LtEq,
	"=":  Assign,
	".":  Dot,
	":":  Colon,
	"|":  Pipe,
	",":  Comma,
	";":  Semicolon,
}

// reverseOperators maps operator token types back to their source text.
var reverseOperators = func() map[Type]string {
	m := make(map[Type]string, len(Operators))
	for text, typ := range Operators {
		m[typ] = text
	}

	return m
}()

// OperatorTexts returns all operator spellings sorted longest first, so a
// longest-match lexer rule can be assembled from them.
func OperatorTexts() []string {
	texts := make([]string, 0, len(Operators))
	for text := range Operators {
		texts = append(texts, text)
	}

	sort.Slice(texts, func(i, j int) bool {
		if len(texts[i]) != len(texts[j]) {
			return len(texts[i]) > len(texts[j])
		}

		return texts[i] < texts[j]
	})

	return texts
}

// String returns the test-expression identifier of the type.
func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}

	return fmt.Sprintf("type(%d)", int(t))
}

// Token is a single lexical token. Value holds a string for names,
// operators, and strings, an int64 for integers, and a float64 for floats.
type Token struct {
	Type  Type
	Value any
	Line  int
}

// ValueString returns the token's value rendered as source-ish text.
func (t Token) ValueString() string {
	switch v := t.Value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// String renders the token for error messages: operator text for
// operators, the literal value for names, the type name otherwise.
func (t Token) String() string {
	if op, ok := reverseOperators[t.Type]; ok {
		return op
	}

	if t.Type == Name {
		return t.ValueString()
	}

	return t.Type.String()
}

// Test checks a token against a token expression. The expression is either
// a bare type name ("name") or a type:value pair ("name:as").
func (t Token) Test(expr string) bool {
	if typeName, want, ok := strings.Cut(expr, ":"); ok {
		return typeName == t.Type.String() && want == t.ValueString()
	}

	return expr == t.Type.String()
}

// TestAny checks the token against multiple token expressions.
func (t Token) TestAny(exprs ...string) bool {
	for _, expr := range exprs {
		if t.Test(expr) {
			return true
		}
	}

	return false
}

// describeType renders a token type for humans.
func describeType(name string) string {
	for typ, typeName := range typeNames {
		if typeName != name {
			continue
		}

		if op, ok := reverseOperators[typ]; ok {
			return op
		}

		break
	}

	switch name {
	case "eof":
		return "end of input"
	default:
		return name
	}
}

// Describe returns a human-readable description of the token.
func Describe(t Token) string {
	if t.Type == Name {
		return t.ValueString()
	}

	return describeType(t.Type.String())
}

// DescribeExpr is like Describe but for token test expressions.
func DescribeExpr(expr string) string {
	if typeName, value, ok := strings.Cut(expr, ":"); ok {
		if typeName == "name" {
			return value
		}

		return describeType(typeName)
	}

	return describeType(expr)
}
