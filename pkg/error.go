package pkg

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Kind classifies errors by how callers are allowed to react to them.
type Kind int

const (
	// KindSyntax marks template-authoring errors raised while parsing one
	// tag invocation. Speculative combinators absorb this kind and treat it
	// as "this alternative does not match".
	KindSyntax Kind = iota
	// KindConfig marks tag-definition errors raised by the one-time
	// structuring pass. These abort startup and are never absorbed.
	KindConfig
	// KindUndefined marks the soft-fail resolution outcome "value not
	// found", distinct from all structural errors.
	KindUndefined
)

// Predefined errors (sentinel values).
var (
	// Lexer and token stream.
	ErrBadCharacter      = SyntaxError("no lexical rule matches input")
	ErrUnbalancedBracket = SyntaxError("unbalanced bracket")
	ErrUnexpectedToken   = SyntaxError("unexpected token")
	ErrBadStringLiteral  = SyntaxError("malformed string literal")

	// Expression parser and evaluator.
	ErrExprSyntax      = SyntaxError("invalid expression")
	ErrReservedName    = SyntaxError("reserved keyword used as a name")
	ErrNotCallable     = SyntaxError("object is not callable")
	ErrFilterNotFound  = SyntaxError("no filter registered under name")
	ErrTestNotFound    = SyntaxError("no test registered under name")
	ErrBadOperand      = SyntaxError("operator cannot be applied to operand")
	ErrInvalidInteger  = SyntaxError("value could not be converted to integer")
	ErrUndefined       = NewError(KindUndefined, "variable is undefined")

	// Argument descriptors.
	ErrArgumentRequired   = SyntaxError("required argument is missing")
	ErrTooFewArguments    = SyntaxError("too few tokens for argument")
	ErrTooManyArguments   = SyntaxError("too many arguments")
	ErrInvalidArgument    = SyntaxError("excluded value supplied for argument")
	ErrBreakpointExpected = SyntaxError("expected breakpoint keyword")
	ErrInvalidFlag        = SyntaxError("invalid flag value")
	ErrKeywordInUse       = SyntaxError("name is already bound elsewhere in the tag")
	ErrTagName            = SyntaxError("tag name does not match expected name")
	ErrUnexpectedElement  = SyntaxError("unexpected template element")
	ErrNoOptionMatched    = SyntaxError("none of the specified options match")

	// Tag definition (structuring pass).
	ErrImproperlyConfigured = ConfigError("improperly configured tag")
	ErrBlockTagFirst        = ConfigError("the first argument cannot be a block tag")
	ErrEndTagNotLast        = ConfigError("end tag must be the last argument")
	ErrNodeListUnterminated = ConfigError("node list capture has no following block or end tag")
	ErrFlagVocabulary       = ConfigError("flag must specify true values and/or false values")
	ErrNotInitialized       = ConfigError("options must be compiled before parsing")
)

// Error is the module-wide error type. It carries a classification Kind,
// an optional wrapped cause, and structured logging attributes.
// It implements both error and slog.LogValuer.
type Error struct {
	kind  Kind
	msg   string
	err   error       // wrapped error (for errors.Unwrap)
	base  *Error      // sentinel this error derives from (for errors.Is)
	attrs []slog.Attr // attributes for structured logging
}

// NewError creates a new Error with the given kind and message.
func NewError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// SyntaxError creates a new Error of KindSyntax.
func SyntaxError(msg string) *Error { return NewError(KindSyntax, msg) }

// ConfigError creates a new Error of KindConfig.
func ConfigError(msg string) *Error { return NewError(KindConfig, msg) }

// Kind returns the error classification.
func (e *Error) Kind() Kind { return e.kind }

// Error implements the error interface.
func (e *Error) Error() string {
	// Build error message using the first available format,
	// depending on which fields are set:
	//
	//   1. "<msg>: <err>" // base and wrapped error both set
	//   2. "<msg>"        // wrapped error is nil
	//   3. "<err>"        // base error message is empty
	//   4. ""             // no fields are set
	part := make([]string, 0, 2)

	if e.msg != "" {
		part = append(part, e.msg)
	}

	if e.err != nil {
		part = append(part, e.err.Error())
	}

	return strings.Join(part, ": ")
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

// Is reports whether the target is this error or the sentinel it was
// derived from, so errors.Is(e.Wrapf(...), sentinel) holds.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e == t || e.base == t
}

// LogValue implements slog.LogValuer for rich structured logging.
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.attrs)+2)

	if e.msg != "" {
		attrs = append(attrs, slog.String("error", e.msg))
	}

	if e.err != nil {
		attrs = append(attrs, slog.String("cause", e.err.Error()))
	}

	return slog.GroupValue(append(attrs, e.attrs...)...)
}

// derive copies the receiver, recording the outermost sentinel as base.
func (e *Error) derive() *Error {
	base := e.base
	if base == nil {
		base = e
	}

	return &Error{
		kind:  e.kind,
		msg:   e.msg,
		err:   e.err,
		base:  base,
		attrs: e.attrs,
	}
}

// Wrap creates a new Error wrapping another error.
func (e *Error) Wrap(err error) *Error {
	d := e.derive()
	d.err = err

	return d
}

// Wrapf creates a new Error wrapping a formatted cause. The formatted text
// becomes part of the user-visible message.
func (e *Error) Wrapf(format string, args ...any) *Error {
	return e.Wrap(fmt.Errorf(format, args...))
}

// With adds attributes to the error for structured logging.
// This creates a new Error instance to maintain immutability.
func (e *Error) With(attrs ...slog.Attr) *Error {
	d := e.derive()

	newAttrs := make([]slog.Attr, len(e.attrs)+len(attrs))
	copy(newAttrs, e.attrs)
	copy(newAttrs[len(e.attrs):], attrs)
	d.attrs = newAttrs

	return d
}

// IsSyntax reports whether err is a KindSyntax Error anywhere in its chain.
func IsSyntax(err error) bool { return isKind(err, KindSyntax) }

// IsConfig reports whether err is a KindConfig Error anywhere in its chain.
func IsConfig(err error) bool { return isKind(err, KindConfig) }

// IsUndefined reports whether err is the soft-fail "value not found"
// resolution outcome.
func IsUndefined(err error) bool { return isKind(err, KindUndefined) }

func isKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.kind == kind
	}

	return false
}
