package value

import (
	"errors"
	"testing"

	"github.com/legutierr/blocktags/expr"
	"github.com/legutierr/blocktags/lexer"
	"github.com/legutierr/blocktags/pkg"
)

func exprValue(t *testing.T, source string) Expression {
	t.Helper()

	stream, err := lexer.Tokenize(source)
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", source, err)
	}

	node, err := expr.Parse(stream)
	if err != nil {
		t.Fatalf("Parse(%q): %v", source, err)
	}

	return Expression{Node: node}
}

func TestStaticStripsQuotes(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{`'hello'`, "hello"},
		{`"hello"`, "hello"},
		{"hello", "hello"},
		{42, 42},
		{nil, nil},
	}

	for _, tt := range tests {
		got, err := NewStatic(tt.in).Resolve(nil)
		if err != nil {
			t.Fatalf("Resolve(%#v): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Resolve(%#v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestStringCleaning(t *testing.T) {
	ctx := expr.NewContext(map[string]any{"empty": "", "name": "ada"})

	// A dynamic empty string is normalized to nil.
	got, err := NewString(exprValue(t, `empty`)).Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != nil {
		t.Errorf("dynamic empty string = %#v, want nil", got)
	}

	// A static empty string is preserved.
	got, err = NewString(NewStatic("")).Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "" {
		t.Errorf("static empty string = %#v, want \"\"", got)
	}

	// Undefined resolves to nil, not an error.
	got, err = NewString(exprValue(t, `missing`)).Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != nil {
		t.Errorf("undefined = %#v, want nil", got)
	}

	got, err = NewString(exprValue(t, `name`)).Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "ada" {
		t.Errorf("got %#v, want %q", got, "ada")
	}
}

func TestIntegerCoercion(t *testing.T) {
	ctx := expr.NewContext(map[string]any{
		"n":    int64(3),
		"text": "17",
		"junk": "seventeen",
	})

	for _, tt := range []struct {
		source string
		want   any
	}{
		{`n`, int64(3)},
		{`text`, int64(17)},
		{`2.9`, int64(2)},
		{`missing`, nil},
	} {
		got, err := NewInteger(exprValue(t, tt.source)).Resolve(ctx)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.source, err)
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %#v, want %#v", tt.source, got, tt.want)
		}
	}
}

func TestIntegerErrorPolicy(t *testing.T) {
	ctx := expr.NewContext(map[string]any{"junk": "seventeen"})

	pkg.SetStrict(true)
	defer pkg.SetStrict(false)

	_, err := NewInteger(exprValue(t, `junk`)).Resolve(ctx)
	if !errors.Is(err, pkg.ErrInvalidInteger) {
		t.Fatalf("strict coercion error = %v, want %v", err, pkg.ErrInvalidInteger)
	}

	pkg.SetStrict(false)

	got, err := NewInteger(exprValue(t, `junk`)).Resolve(ctx)
	if err != nil {
		t.Fatalf("lenient coercion: %v", err)
	}
	if got != ErrorValue {
		t.Errorf("lenient coercion = %#v, want %q sentinel", got, ErrorValue)
	}
}

func TestListAndDictResolution(t *testing.T) {
	ctx := expr.NewContext(map[string]any{"a": int64(1), "b": int64(2)})

	list := NewList(exprValue(t, `a`), exprValue(t, `b`))

	got, err := list.Resolve(ctx)
	if err != nil {
		t.Fatalf("List.Resolve: %v", err)
	}

	items := got.([]any)
	if len(items) != 2 || items[0] != int64(1) || items[1] != int64(2) {
		t.Errorf("List.Resolve = %#v, want [1 2]", got)
	}

	// An undefined element collapses the whole aggregate to nil.
	list.Append(exprValue(t, `missing`))

	got, err = list.Resolve(ctx)
	if err != nil {
		t.Fatalf("List.Resolve: %v", err)
	}
	if got != nil {
		t.Errorf("List.Resolve with undefined element = %#v, want nil", got)
	}

	dict := NewDict()
	dict.Set("x", exprValue(t, `a`))

	got, err = dict.Resolve(ctx)
	if err != nil {
		t.Fatalf("Dict.Resolve: %v", err)
	}
	if m := got.(map[string]any); m["x"] != int64(1) {
		t.Errorf("Dict.Resolve = %#v", got)
	}
}
