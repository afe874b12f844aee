// Package value wraps parsed argument payloads so that a tag node can
// resolve them against a runtime context uniformly, whether the payload
// was known at parse time or must be evaluated. Wrappers never mutate
// their payload, so resolving twice yields the same result.
package value

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/legutierr/blocktags/expr"
	"github.com/legutierr/blocktags/pkg"
)

// Value resolves to a concrete result against a runtime context.
type Value interface {
	Resolve(ctx *expr.Context) (any, error)
}

// Static is an already-known value; resolution returns it unchanged.
// String payloads have surrounding quotes stripped.
type Static struct {
	value any
}

// NewStatic wraps a known value.
func NewStatic(v any) Static {
	if s, ok := v.(string); ok {
		v = strings.Trim(s, `"'`)
	}

	return Static{value: v}
}

func (s Static) Resolve(*expr.Context) (any, error) { return s.value, nil }

// Null always resolves to nil.
type Null struct{}

func (Null) Resolve(*expr.Context) (any, error) { return nil, nil }

// Expression adapts an expression tree to the Value interface. The
// undefined soft-fail propagates; outer wrappers decide whether to
// absorb it.
type Expression struct {
	Node expr.Node
}

func (e Expression) Resolve(ctx *expr.Context) (any, error) {
	return e.Node.Resolve(ctx)
}

// String resolves its inner value as text. An undefined inner value
// resolves to nil, and so does the empty string unless the inner value
// was static: the host engine renders nil as "", so a dynamic "" is
// indistinguishable from absent and is normalized to nil.
type String struct {
	Var Value
}

// NewString wraps an inner value with string cleaning semantics.
func NewString(v Value) String { return String{Var: v} }

func (s String) Resolve(ctx *expr.Context) (any, error) {
	resolved, err := s.Var.Resolve(ctx)
	if err != nil {
		if pkg.IsUndefined(err) {
			return nil, nil
		}

		return nil, err
	}

	return s.clean(resolved)
}

func (s String) clean(v any) (any, error) {
	if v == "" {
		if _, static := s.Var.(Static); !static {
			return nil, nil
		}
	}

	return v, nil
}

// Integer resolves its inner value and coerces it to an integer. A
// coercion failure is a syntax error under the strict deployment policy;
// otherwise it logs a warning and substitutes the empty-string sentinel.
type Integer struct {
	Var Value
}

// NewInteger wraps an inner value with integer coercion.
func NewInteger(v Value) Integer { return Integer{Var: v} }

func (n Integer) Resolve(ctx *expr.Context) (any, error) {
	resolved, err := n.Var.Resolve(ctx)
	if err != nil {
		if pkg.IsUndefined(err) {
			return nil, nil
		}

		return nil, err
	}

	return n.clean(resolved)
}

// ErrorValue is substituted for a failed coercion under the lenient
// deployment policy.
const ErrorValue = ""

func (n Integer) clean(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}

		i, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return n.fail(v)
		}

		return i, nil
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case float32:
		return int64(t), nil
	case bool:
		if t {
			return int64(1), nil
		}

		return int64(0), nil
	}

	return n.fail(v)
}

func (n Integer) fail(v any) (any, error) {
	if pkg.Strict() {
		return nil, pkg.ErrInvalidInteger.
			Wrapf("%v could not be converted to an integer", v)
	}

	slog.Warn("value could not be converted to an integer",
		slog.String("value", fmt.Sprint(v)))

	return ErrorValue, nil
}

// List aggregates values; resolution resolves each element in order. An
// undefined element makes the whole list resolve to nil.
type List struct {
	Items []Value
}

// NewList aggregates values into a resolvable list.
func NewList(items ...Value) *List { return &List{Items: items} }

// Append adds an element.
func (l *List) Append(v Value) { l.Items = append(l.Items, v) }

// Len returns the element count.
func (l *List) Len() int { return len(l.Items) }

func (l *List) Resolve(ctx *expr.Context) (any, error) {
	resolved := make([]any, len(l.Items))

	for i, item := range l.Items {
		v, err := item.Resolve(ctx)
		if err != nil {
			if pkg.IsUndefined(err) {
				return nil, nil
			}

			return nil, err
		}

		resolved[i] = v
	}

	return resolved, nil
}

// Dict aggregates named values; resolution resolves each entry. An
// undefined entry makes the whole dict resolve to nil.
type Dict struct {
	Entries map[string]Value
}

// NewDict aggregates named values into a resolvable mapping.
func NewDict() *Dict { return &Dict{Entries: map[string]Value{}} }

// Has reports whether a key is present.
func (d *Dict) Has(key string) bool {
	_, ok := d.Entries[key]

	return ok
}

// Set binds a key.
func (d *Dict) Set(key string, v Value) { d.Entries[key] = v }

// Len returns the entry count.
func (d *Dict) Len() int { return len(d.Entries) }

func (d *Dict) Resolve(ctx *expr.Context) (any, error) {
	resolved := make(map[string]any, len(d.Entries))

	for key, entry := range d.Entries {
		v, err := entry.Resolve(ctx)
		if err != nil {
			if pkg.IsUndefined(err) {
				return nil, nil
			}

			return nil, err
		}

		resolved[key] = v
	}

	return resolved, nil
}
