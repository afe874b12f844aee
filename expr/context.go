package expr

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/legutierr/blocktags/pkg"
)

// FilterFunc transforms a piped value. Extra arguments come from the
// `|name:arg` and `|name(args...)` forms.
type FilterFunc func(value any, args []any, kwargs map[string]any) (any, error)

// TestFunc implements the `is [not] name` form.
type TestFunc func(value any, args []any, kwargs map[string]any) (bool, error)

// Context is the resolution environment for expressions: the variable
// bindings plus the filter and test registries. Filters and tests are
// looked up at resolve time, so a Context may be built after parsing.
type Context struct {
	Vars    map[string]any
	Filters map[string]FilterFunc
	Tests   map[string]TestFunc
}

// NewContext wraps variable bindings in a resolution environment with no
// extra filters or tests beyond the builtins.
func NewContext(vars map[string]any) *Context {
	return &Context{Vars: vars}
}

// Filter returns the named filter, preferring registered filters over
// builtins.
func (c *Context) Filter(name string) (FilterFunc, error) {
	if c != nil && c.Filters != nil {
		if f, ok := c.Filters[name]; ok {
			return f, nil
		}
	}

	if f, ok := builtinFilters[name]; ok {
		return f, nil
	}

	return nil, pkg.ErrFilterNotFound.Wrapf("filter %q", name)
}

// Test returns the named test, preferring registered tests over builtins.
func (c *Context) Test(name string) (TestFunc, error) {
	if c != nil && c.Tests != nil {
		if t, ok := c.Tests[name]; ok {
			return t, nil
		}
	}

	if t, ok := builtinTests[name]; ok {
		return t, nil
	}

	return nil, pkg.ErrTestNotFound.Wrapf("test %q", name)
}

// FilterNames returns the sorted names of all available filters,
// builtins included.
func (c *Context) FilterNames() []string {
	names := slices.Collect(maps.Keys(builtinFilters))
	if c != nil {
		names = append(names, slices.Collect(maps.Keys(c.Filters))...)
	}

	slices.Sort(names)

	return slices.Compact(names)
}

// TestNames returns the sorted names of all available tests, builtins
// included.
func (c *Context) TestNames() []string {
	names := slices.Collect(maps.Keys(builtinTests))
	if c != nil {
		names = append(names, slices.Collect(maps.Keys(c.Tests))...)
	}

	slices.Sort(names)

	return slices.Compact(names)
}

var builtinFilters = map[string]FilterFunc{
	"default": func(value any, args []any, _ map[string]any) (any, error) {
		if value == nil || value == "" {
			if len(args) > 0 {
				return args[0], nil
			}

			return "", nil
		}

		return value, nil
	},
	"length": func(value any, _ []any, _ map[string]any) (any, error) {
		n, ok := lengthOf(value)
		if !ok {
			return nil, pkg.ErrBadOperand.Wrapf("length of %T", value)
		}

		return int64(n), nil
	},
	"upper": func(value any, _ []any, _ map[string]any) (any, error) {
		return strings.ToUpper(stringify(value)), nil
	},
	"lower": func(value any, _ []any, _ map[string]any) (any, error) {
		return strings.ToLower(stringify(value)), nil
	},
	"join": func(value any, args []any, _ map[string]any) (any, error) {
		sep := ""
		if len(args) > 0 {
			sep = stringify(args[0])
		}

		items, ok := value.([]any)
		if !ok {
			return nil, pkg.ErrBadOperand.Wrapf("join of %T", value)
		}

		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = stringify(item)
		}

		return strings.Join(parts, sep), nil
	},
	"string": func(value any, _ []any, _ map[string]any) (any, error) {
		return stringify(value), nil
	},
}

var builtinTests = map[string]TestFunc{
	"defined": func(value any, _ []any, _ map[string]any) (bool, error) {
		return value != nil, nil
	},
	"none": func(value any, _ []any, _ map[string]any) (bool, error) {
		return value == nil, nil
	},
	"string": func(value any, _ []any, _ map[string]any) (bool, error) {
		_, ok := value.(string)

		return ok, nil
	},
	"number": func(value any, _ []any, _ map[string]any) (bool, error) {
		_, ok := asFloat(value)

		return ok, nil
	},
	"odd": func(value any, _ []any, _ map[string]any) (bool, error) {
		n, ok := asInt(value)
		if !ok {
			return false, pkg.ErrBadOperand.Wrapf("odd of %T", value)
		}

		return n%2 != 0, nil
	},
	"even": func(value any, _ []any, _ map[string]any) (bool, error) {
		n, ok := asInt(value)
		if !ok {
			return false, pkg.ErrBadOperand.Wrapf("even of %T", value)
		}

		return n%2 == 0, nil
	},
	"divisibleby": func(value any, args []any, _ map[string]any) (bool, error) {
		n, ok := asInt(value)
		if !ok {
			return false, pkg.ErrBadOperand.Wrapf("divisibleby of %T", value)
		}

		if len(args) == 0 {
			return false, pkg.ErrBadOperand.Wrapf("divisibleby requires an argument")
		}

		d, ok := asInt(args[0])
		if !ok || d == 0 {
			return false, pkg.ErrBadOperand.Wrapf("divisibleby %v", args[0])
		}

		return n%d == 0, nil
	},
}

// Stringify renders a resolved value the way template text rendering
// expects: nil and booleans use their literal spellings.
func Stringify(v any) string { return stringify(v) }

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case bool:
		if t {
			return "True"
		}

		return "False"
	case string:
		return t
	default:
		return fmt.Sprint(v)
	}
}
