package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/legutierr/blocktags/expr"
	"github.com/legutierr/blocktags/pkg"
)

func writeContext(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "context.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	return path
}

func TestLoadContext(t *testing.T) {
	t.Run("empty path yields empty context", func(t *testing.T) {
		ec, err := LoadContext("")
		if err != nil {
			t.Fatalf("LoadContext: %v", err)
		}
		if len(ec.Vars) != 0 {
			t.Errorf("Vars = %v, want empty", ec.Vars)
		}
	})

	t.Run("mapping document", func(t *testing.T) {
		path := writeContext(t, "name: ada\nserver:\n  port: 8080\n")

		ec, err := LoadContext(path)
		if err != nil {
			t.Fatalf("LoadContext: %v", err)
		}
		if ec.Vars["name"] != "ada" {
			t.Errorf("name = %#v", ec.Vars["name"])
		}
		if _, ok := ec.Vars["server"].(map[string]any); !ok {
			t.Errorf("server = %#v, want nested mapping", ec.Vars["server"])
		}
	})

	t.Run("empty document", func(t *testing.T) {
		path := writeContext(t, "")

		ec, err := LoadContext(path)
		if err != nil {
			t.Fatalf("LoadContext: %v", err)
		}
		if len(ec.Vars) != 0 {
			t.Errorf("Vars = %v, want empty", ec.Vars)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadContext(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, pkg.ErrImproperlyConfigured) {
			t.Fatalf("err = %v, want %v", err, pkg.ErrImproperlyConfigured)
		}
	})
}

func TestEvaluate(t *testing.T) {
	ec := expr.NewContext(map[string]any{
		"x": int64(6), "who": "ada",
	})

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"arithmetic", "x * 7", "42"},
		{"lookup with filter", "who | upper", "ADA"},
		{"conditional", "'yes' if x > 5 else 'no'", "yes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Evaluate(ec, tt.source)
			if err != nil {
				t.Fatalf("Evaluate(%q): %v", tt.source, err)
			}
			if got := expr.Stringify(result); got != tt.want {
				t.Errorf("Evaluate(%q) = %q, want %q", tt.source, got, tt.want)
			}
		})
	}

	t.Run("trailing input", func(t *testing.T) {
		_, err := Evaluate(ec, "1 2")
		if !errors.Is(err, pkg.ErrExprSyntax) {
			t.Fatalf("err = %v, want %v", err, pkg.ErrExprSyntax)
		}
	})
}
