package expr

import (
	"errors"
	"testing"

	"github.com/legutierr/blocktags/lexer"
	"github.com/legutierr/blocktags/pkg"
)

func mustParse(t *testing.T, source string) Node {
	t.Helper()

	stream, err := lexer.Tokenize(source)
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", source, err)
	}

	node, err := Parse(stream)
	if err != nil {
		t.Fatalf("Parse(%q): %v", source, err)
	}

	if !stream.EOS() {
		t.Fatalf("Parse(%q) left tokens: %v", source, stream.Values())
	}

	return node
}

func resolveString(t *testing.T, source string, ctx *Context) (any, error) {
	t.Helper()

	return mustParse(t, source).Resolve(ctx)
}

func TestResolveArithmetic(t *testing.T) {
	tests := []struct {
		source string
		want   any
	}{
		{`1 + 2 * 3`, int64(7)},
		{`(1 + 2) * 3`, int64(9)},
		{`7 - 2 - 1`, int64(4)},
		{`2 ** 3 ** 2`, int64(64)},
		{`7 // 2`, int64(3)},
		{`-7 // 2`, int64(-4)},
		{`7 / 2`, 3.5},
		{`7 % 3`, int64(1)},
		{`-1`, int64(-1)},
		{`+1.5`, 1.5},
		{`1.5 + 1`, 2.5},
		{`'a' + 'b'`, "ab"},
		{`'a' ~ 1 ~ 'b'`, "a1b"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			got, err := resolveString(t, tt.source, NewContext(nil))
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.source, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %#v, want %#v", tt.source, got, tt.want)
			}
		})
	}
}

func TestResolveLogicAndComparison(t *testing.T) {
	ctx := NewContext(map[string]any{
		"x":     int64(5),
		"items": []any{int64(1), int64(2)},
		"s":     "hello",
	})

	tests := []struct {
		source string
		want   any
	}{
		{`x == 5`, true},
		{`x != 5`, false},
		{`x > 3 `, true},
		{`x >= 5`, true},
		{`x < 3`, false},
		{`x <= 5`, true},
		{`1 in items`, true},
		{`3 not in items`, true},
		{`'ell' in s`, true},
		{`not x`, false},
		{`x and s`, "hello"},
		{`0 or s`, "hello"},
		{`missing or 'fallback'`, "fallback"},
		{`true and missing`, nil},
		{`missing == none`, true},
		{`1 if x > 3 else 2`, int64(1)},
		{`1 if False else 2`, int64(2)},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			got, err := resolveString(t, tt.source, ctx)
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.source, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %#v, want %#v", tt.source, got, tt.want)
			}
		})
	}
}

func TestDeprecatedAssignComparison(t *testing.T) {
	got, err := resolveString(t, `1 = 1`, NewContext(nil))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != true {
		t.Errorf("Resolve(`1 = 1`) = %#v, want true", got)
	}
}

func TestCondExprWithoutElse(t *testing.T) {
	_, err := resolveString(t, `1 if false`, NewContext(nil))
	if !errors.Is(err, pkg.ErrUndefined) {
		t.Fatalf("Resolve(`1 if false`) = %v, want undefined", err)
	}

	got, err := resolveString(t, `1 if false or 'd'`, NewContext(nil))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != int64(1) {
		t.Errorf("got %#v, want 1", got)
	}
}

func TestResolveLookupChain(t *testing.T) {
	type profile struct {
		Email string
	}

	ctx := NewContext(map[string]any{
		"user": map[string]any{
			"name":    "ada",
			"profile": profile{Email: "ada@example.com"},
		},
		"items": []any{"zero", "one", "two"},
		"fn":    func() any { return "called" },
	})

	tests := []struct {
		source string
		want   any
	}{
		{`user.name`, "ada"},
		{`user['name']`, "ada"},
		{`user.profile.email`, "ada@example.com"},
		{`items.1`, "one"},
		{`items[2]`, "two"},
		{`fn`, "called"}, // zero-argument callables are invoked on lookup
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			got, err := resolveString(t, tt.source, ctx)
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.source, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %#v, want %#v", tt.source, got, tt.want)
			}
		})
	}
}

func TestResolveUndefined(t *testing.T) {
	ctx := NewContext(map[string]any{"user": map[string]any{}})

	for _, source := range []string{`missing`, `user.missing`, `user['nope']`} {
		t.Run(source, func(t *testing.T) {
			_, err := resolveString(t, source, ctx)
			if !errors.Is(err, pkg.ErrUndefined) {
				t.Fatalf("Resolve(%q) = %v, want undefined", source, err)
			}
			if !pkg.IsUndefined(err) {
				t.Errorf("IsUndefined(%v) = false", err)
			}
		})
	}
}

func TestSequenceLeniency(t *testing.T) {
	ctx := NewContext(nil)

	got, err := resolveString(t, `[1, missing, 'x']`, ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	list, ok := got.([]any)
	if !ok || len(list) != 3 {
		t.Fatalf("got %#v, want 3-element list", got)
	}
	if list[1] != "" {
		t.Errorf("undefined element = %#v, want empty string", list[1])
	}

	got, err = resolveString(t, `{'k': missing}`, ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m := got.(map[string]any); m["k"] != "" {
		t.Errorf("undefined dict value = %#v, want empty string", m["k"])
	}

	_, err = resolveString(t, `{missing: 1}`, ctx)
	if err == nil || pkg.IsUndefined(err) {
		t.Errorf("undefined dict key = %v, want hard error", err)
	}
}

func TestResolveCalls(t *testing.T) {
	ctx := NewContext(map[string]any{
		"add":   func(a, b int64) int64 { return a + b },
		"greet": func(name string, opts map[string]any) string { return "hi " + name },
		"sum": func(ns ...int64) int64 {
			var total int64
			for _, n := range ns {
				total += n
			}
			return total
		},
		"args": []any{int64(3), int64(4)},
		"cat":  func(a, b any) string { return stringify(a) + stringify(b) },
	})

	tests := []struct {
		source string
		want   any
	}{
		{`add(1, 2)`, int64(3)},
		{`sum(1, 2, 3)`, int64(6)},
		{`sum(*args)`, int64(7)},
		{`greet('ada', **{'loud': true})`, "hi ada"},
		{`cat('x', missing)`, "x"}, // undefined argument becomes ""
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			got, err := resolveString(t, tt.source, ctx)
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.source, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %#v, want %#v", tt.source, got, tt.want)
			}
		})
	}

	_, err := resolveString(t, `missing(1)`, ctx)
	if err == nil || pkg.IsUndefined(err) {
		t.Errorf("undefined call target = %v, want hard error", err)
	}
}

func TestResolveFiltersAndTests(t *testing.T) {
	ctx := NewContext(map[string]any{
		"name":  "ada",
		"items": []any{"a", "b"},
		"n":     int64(9),
	})

	tests := []struct {
		source string
		want   any
	}{
		{`name|upper`, "ADA"},
		{`missing|default:'d'`, "d"},
		{`missing|default('d')`, "d"},
		{`items|join:', '`, "a, b"},
		{`items|length`, int64(2)},
		{`name|upper|lower`, "ada"},
		{`n is divisibleby 3`, true},
		{`n is not even`, true},
		{`missing is defined`, false},
		{`name is string`, true},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			got, err := resolveString(t, tt.source, ctx)
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.source, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %#v, want %#v", tt.source, got, tt.want)
			}
		})
	}

	_, err := resolveString(t, `name|nosuchfilter`, ctx)
	if !errors.Is(err, pkg.ErrFilterNotFound) {
		t.Errorf("unknown filter error = %v, want %v", err, pkg.ErrFilterNotFound)
	}
}

func TestRegisteredFilterOverridesBuiltin(t *testing.T) {
	ctx := NewContext(map[string]any{"name": "ada"})
	ctx.Filters = map[string]FilterFunc{
		"upper": func(value any, _ []any, _ map[string]any) (any, error) {
			return "custom", nil
		},
	}

	got, err := resolveString(t, `name|upper`, ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "custom" {
		t.Errorf("got %#v, want %q", got, "custom")
	}
}

func TestResolveSlices(t *testing.T) {
	ctx := NewContext(map[string]any{
		"items": []any{int64(0), int64(1), int64(2), int64(3), int64(4)},
		"s":     "hello",
	})

	tests := []struct {
		source string
		want   []any
	}{
		{`items[1:3]`, []any{int64(1), int64(2)}},
		{`items[:2]`, []any{int64(0), int64(1)}},
		{`items[3:]`, []any{int64(3), int64(4)}},
		{`items[::2]`, []any{int64(0), int64(2), int64(4)}},
		{`items[-2:]`, []any{int64(3), int64(4)}},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			got, err := resolveString(t, tt.source, ctx)
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.source, err)
			}

			list, ok := got.([]any)
			if !ok || len(list) != len(tt.want) {
				t.Fatalf("Resolve(%q) = %#v, want %#v", tt.source, got, tt.want)
			}
			for i := range list {
				if list[i] != tt.want[i] {
					t.Errorf("element %d = %#v, want %#v", i, list[i], tt.want[i])
				}
			}
		})
	}

	got, err := resolveString(t, `s[1:4]`, ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "ell" {
		t.Errorf("string slice = %#v, want %q", got, "ell")
	}

	got, err = resolveString(t, `s[::-1]`, ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "olleh" {
		t.Errorf("reversed string = %#v, want %q", got, "olleh")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   error
	}{
		{"reserved and", `and`, pkg.ErrReservedName},
		{"reserved or in call", `f(or)`, pkg.ErrReservedName},
		{"positional after keyword", `f(a=1, 2)`, pkg.ErrExprSyntax},
		{"two star args", `f(*a, *b)`, pkg.ErrExprSyntax},
		{"chained is", `x is odd is even`, pkg.ErrExprSyntax},
		{"dangling operator", `1 +`, pkg.ErrExprSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream, err := lexer.Tokenize(tt.source)
			if err != nil {
				t.Fatalf("Tokenize(%q): %v", tt.source, err)
			}

			_, err = Parse(stream)
			if err == nil {
				t.Fatalf("Parse(%q) = nil error, want %v", tt.source, tt.want)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.source, err, tt.want)
			}
		})
	}
}

func TestTuples(t *testing.T) {
	got, err := resolveString(t, `(1, 'a')`, NewContext(nil))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	list, ok := got.([]any)
	if !ok || len(list) != 2 || list[0] != int64(1) || list[1] != "a" {
		t.Fatalf("got %#v, want [1 a]", got)
	}

	got, err = resolveString(t, `()`, NewContext(nil))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if list, ok := got.([]any); !ok || len(list) != 0 {
		t.Errorf("empty tuple = %#v", got)
	}

	got, err = resolveString(t, `(1)`, NewContext(nil))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != int64(1) {
		t.Errorf("parenthesized scalar = %#v, want 1", got)
	}
}
