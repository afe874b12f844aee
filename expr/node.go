package expr

import (
	"strings"

	"github.com/legutierr/blocktags/pkg"
)

// Node is a parsed expression. Resolve evaluates it against a context.
// Resolution of an undefined variable fails with pkg.ErrUndefined, which
// most structural positions treat as a hard error; the positions that
// deliberately absorb it do so through ResolveSafe or their own leniency
// rules.
type Node interface {
	Resolve(ctx *Context) (any, error)
}

// lookupNode is implemented by nodes that can defer invocation of a
// callable result, so call targets resolve to the function itself.
type lookupNode interface {
	Node
	resolve(ctx *Context, callCallable bool) (any, error)
}

// ResolveSafe resolves a node, absorbing the undefined soft-fail as nil.
func ResolveSafe(n Node, ctx *Context) (any, error) {
	v, err := n.Resolve(ctx)
	if err != nil {
		if pkg.IsUndefined(err) {
			return nil, nil
		}

		return nil, err
	}

	return v, nil
}

// resolveLenient resolves a node, substituting the empty string for the
// undefined soft-fail. List and tuple elements and keyword values use
// this leniency.
func resolveLenient(n Node, ctx *Context) (any, error) {
	v, err := n.Resolve(ctx)
	if err != nil {
		if pkg.IsUndefined(err) {
			return "", nil
		}

		return nil, err
	}

	return v, nil
}

// Name looks up a variable. The spellings of none, true, and false (both
// cases) are constants and never reach the context.
type Name struct {
	Name string
}

func (n *Name) Resolve(ctx *Context) (any, error) { return n.resolve(ctx, true) }

func (n *Name) resolve(ctx *Context, callCallable bool) (any, error) {
	switch n.Name {
	case "none", "None":
		return nil, nil
	case "true", "True":
		return true, nil
	case "false", "False":
		return false, nil
	}

	var vars map[string]any
	if ctx != nil {
		vars = ctx.Vars
	}

	return resolveLookup(n.Name, vars, callCallable)
}

// Const is a literal constant value.
type Const struct {
	Value any
}

func (c *Const) Resolve(*Context) (any, error) { return c.Value, nil }

// TemplateData is a run of constant template text captured between tags.
type TemplateData struct {
	Data string
}

func (t *TemplateData) Resolve(*Context) (any, error) { return t.Data, nil }

// Tuple is a comma-delimited sequence inside parentheses. Elements that
// resolve undefined become the empty string.
type Tuple struct {
	Items []Node
}

func (t *Tuple) Resolve(ctx *Context) (any, error) {
	return resolveItems(t.Items, ctx)
}

// List is a bracketed sequence literal with the same element leniency as
// Tuple.
type List struct {
	Items []Node
}

func (l *List) Resolve(ctx *Context) (any, error) {
	return resolveItems(l.Items, ctx)
}

func resolveItems(items []Node, ctx *Context) ([]any, error) {
	resolved := make([]any, len(items))

	for i, item := range items {
		v, err := resolveLenient(item, ctx)
		if err != nil {
			return nil, err
		}

		resolved[i] = v
	}

	return resolved, nil
}

// Dict is a braced mapping literal.
type Dict struct {
	Items []*Pair
}

func (d *Dict) Resolve(ctx *Context) (any, error) {
	resolved := make(map[string]any, len(d.Items))

	for _, pair := range d.Items {
		key, value, err := pair.resolvePair(ctx)
		if err != nil {
			return nil, err
		}

		resolved[stringify(key)] = value
	}

	return resolved, nil
}

// Pair is one key/value entry of a Dict. An undefined key is a hard
// error; an undefined value becomes the empty string.
type Pair struct {
	Key   Node
	Value Node
}

func (p *Pair) Resolve(ctx *Context) (any, error) {
	key, value, err := p.resolvePair(ctx)
	if err != nil {
		return nil, err
	}

	return [2]any{key, value}, nil
}

func (p *Pair) resolvePair(ctx *Context) (key, value any, err error) {
	key, err = p.Key.Resolve(ctx)
	if err != nil {
		if pkg.IsUndefined(err) {
			return nil, nil, pkg.ErrExprSyntax.Wrapf("cannot resolve dict key: %v", err)
		}

		return nil, nil, err
	}

	value, err = resolveLenient(p.Value, ctx)
	if err != nil {
		return nil, nil, err
	}

	return key, value, nil
}

// Keyword is a name=value argument in a call. An undefined value becomes
// the empty string.
type Keyword struct {
	Key   string
	Value Node
}

func (k *Keyword) Resolve(ctx *Context) (any, error) {
	v, err := resolveLenient(k.Value, ctx)
	if err != nil {
		return nil, err
	}

	return [2]any{k.Key, v}, nil
}

// CondExpr is the inline conditional `value if test else other`. Only the
// selected branch is resolved. With no else branch, a false test resolves
// as undefined.
type CondExpr struct {
	Test Node
	True Node
	Else Node
}

func (c *CondExpr) Resolve(ctx *Context) (any, error) {
	test, err := c.Test.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	if truth(test) {
		return c.True.Resolve(ctx)
	}

	if c.Else == nil {
		return nil, pkg.ErrUndefined.Wrapf("conditional expression has no else branch")
	}

	return c.Else.Resolve(ctx)
}

// Filter applies a named filter to a piped value. The filter is looked up
// at resolve time; an undefined piped value filters as nil.
type Filter struct {
	Node      Node
	Name      string
	Args      []Node
	Kwargs    []*Keyword
	DynArgs   Node
	DynKwargs Node
}

func (f *Filter) Resolve(ctx *Context) (any, error) {
	fn, err := ctx.Filter(f.Name)
	if err != nil {
		return nil, err
	}

	value, err := ResolveSafe(f.Node, ctx)
	if err != nil {
		return nil, err
	}

	args, kwargs, err := resolveCallArgs(ctx, f.Args, f.Kwargs, f.DynArgs, f.DynKwargs, false)
	if err != nil {
		return nil, err
	}

	return fn(value, args, kwargs)
}

// Test applies a named boolean test to a value, as in `x is divisibleby 3`.
type Test struct {
	Node      Node
	Name      string
	Args      []Node
	Kwargs    []*Keyword
	DynArgs   Node
	DynKwargs Node
}

func (t *Test) Resolve(ctx *Context) (any, error) {
	fn, err := ctx.Test(t.Name)
	if err != nil {
		return nil, err
	}

	value, err := ResolveSafe(t.Node, ctx)
	if err != nil {
		return nil, err
	}

	args, kwargs, err := resolveCallArgs(ctx, t.Args, t.Kwargs, t.DynArgs, t.DynKwargs, false)
	if err != nil {
		return nil, err
	}

	return fn(value, args, kwargs)
}

// Call invokes a callable value. The target resolves without callable
// auto-invocation; an undefined target is a hard error. Positional
// arguments that fail to resolve become the empty string, but a dynamic
// *args or **kwargs expression must resolve.
type Call struct {
	Target    Node
	Args      []Node
	Kwargs    []*Keyword
	DynArgs   Node
	DynKwargs Node
}

func (c *Call) Resolve(ctx *Context) (any, error) {
	var (
		fn  any
		err error
	)

	if ln, ok := c.Target.(lookupNode); ok {
		fn, err = ln.resolve(ctx, false)
	} else {
		fn, err = c.Target.Resolve(ctx)
	}

	if err != nil {
		if pkg.IsUndefined(err) {
			return nil, pkg.ErrNotCallable.Wrapf("function is not defined: %v", err)
		}

		return nil, err
	}

	args, kwargs, err := resolveCallArgs(ctx, c.Args, c.Kwargs, c.DynArgs, c.DynKwargs, true)
	if err != nil {
		return nil, err
	}

	return callValue(fn, args, kwargs)
}

// resolveCallArgs resolves positional and keyword arguments plus the
// optional dynamic argument expressions. When lenientArgs is set, a
// positional argument that fails to resolve is replaced with "".
func resolveCallArgs(ctx *Context, argNodes []Node, kwargNodes []*Keyword,
	dynArgs, dynKwargs Node, lenientArgs bool,
) ([]any, map[string]any, error) {
	args := make([]any, 0, len(argNodes))

	for _, node := range argNodes {
		v, err := node.Resolve(ctx)
		if err != nil {
			if lenientArgs {
				v = ""
			} else {
				return nil, nil, err
			}
		}

		args = append(args, v)
	}

	var kwargs map[string]any

	if len(kwargNodes) > 0 {
		kwargs = make(map[string]any, len(kwargNodes))
		for _, kw := range kwargNodes {
			v, err := resolveLenient(kw.Value, ctx)
			if err != nil {
				return nil, nil, err
			}

			kwargs[kw.Key] = v
		}
	}

	if dynArgs != nil {
		v, err := dynArgs.Resolve(ctx)
		if err != nil {
			return nil, nil, pkg.ErrBadOperand.Wrapf("dynamic arguments must not be undefined: %v", err)
		}

		extra, ok := v.([]any)
		if !ok {
			return nil, nil, pkg.ErrBadOperand.Wrapf("dynamic arguments must be a list, got %T", v)
		}

		args = append(args, extra...)
	}

	if dynKwargs != nil {
		v, err := dynKwargs.Resolve(ctx)
		if err != nil {
			return nil, nil, pkg.ErrBadOperand.Wrapf("dynamic keywords must not be undefined: %v", err)
		}

		extra, ok := v.(map[string]any)
		if !ok {
			return nil, nil, pkg.ErrBadOperand.Wrapf("dynamic keywords must be a map, got %T", v)
		}

		if kwargs == nil {
			kwargs = make(map[string]any, len(extra))
		}

		for k, val := range extra {
			kwargs[k] = val
		}
	}

	return args, kwargs, nil
}

// Getattr accesses a named attribute, falling through the full lookup
// chain of the target value.
type Getattr struct {
	Target Node
	Attr   string
}

func (g *Getattr) Resolve(ctx *Context) (any, error) { return g.resolve(ctx, true) }

func (g *Getattr) resolve(ctx *Context, callCallable bool) (any, error) {
	store, err := g.Target.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	return resolveLookup(g.Attr, store, callCallable)
}

// Getitem accesses a subscript. A Slice argument selects a range instead
// of a single element.
type Getitem struct {
	Target Node
	Arg    Node
}

func (g *Getitem) Resolve(ctx *Context) (any, error) { return g.resolve(ctx, true) }

func (g *Getitem) resolve(ctx *Context, callCallable bool) (any, error) {
	store, err := g.Target.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	if sl, ok := g.Arg.(*Slice); ok {
		start, stop, step, err := sl.parts(ctx)
		if err != nil {
			return nil, err
		}

		return applySlice(store, start, stop, step)
	}

	key, err := g.Arg.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	return resolveLookup(key, store, callCallable)
}

// Slice holds the start:stop:step parts of a subscript range. Any part
// may be nil.
type Slice struct {
	Start Node
	Stop  Node
	Step  Node
}

func (s *Slice) Resolve(ctx *Context) (any, error) {
	start, stop, step, err := s.parts(ctx)
	if err != nil {
		return nil, err
	}

	return [3]any{start, stop, step}, nil
}

func (s *Slice) parts(ctx *Context) (start, stop, step any, err error) {
	resolve := func(n Node) (any, error) {
		if n == nil {
			return nil, nil
		}

		return n.Resolve(ctx)
	}

	if start, err = resolve(s.Start); err != nil {
		return nil, nil, nil, err
	}

	if stop, err = resolve(s.Stop); err != nil {
		return nil, nil, nil, err
	}

	if step, err = resolve(s.Step); err != nil {
		return nil, nil, nil, err
	}

	return start, stop, step, nil
}

// Concat joins its operands' text renderings, as the `~` operator.
type Concat struct {
	Items []Node
}

func (c *Concat) Resolve(ctx *Context) (any, error) {
	var sb strings.Builder

	for _, item := range c.Items {
		v, err := item.Resolve(ctx)
		if err != nil {
			return nil, err
		}

		sb.WriteString(stringify(v))
	}

	return sb.String(), nil
}

// Compare folds comparison operands left to right. Operand values absorb
// the undefined soft-fail as nil rather than failing.
type Compare struct {
	Expr Node
	Ops  []Operand
}

// Operand pairs a comparison operator spelling with its right-hand
// expression.
type Operand struct {
	Op   string
	Expr Node
}

func (c *Compare) Resolve(ctx *Context) (any, error) {
	current, err := ResolveSafe(c.Expr, ctx)
	if err != nil {
		return nil, err
	}

	for _, op := range c.Ops {
		right, err := ResolveSafe(op.Expr, ctx)
		if err != nil {
			return nil, err
		}

		current, err = compareValues(op.Op, current, right)
		if err != nil {
			return nil, err
		}
	}

	return current, nil
}

func compareValues(op string, a, b any) (any, error) {
	switch op {
	case "eq":
		return equal(a, b), nil
	case "ne":
		return !equal(a, b), nil
	case "lt":
		return less(a, b)
	case "gt":
		return less(b, a)
	case "lteq":
		lt, err := less(b, a)
		if err != nil {
			return nil, err
		}

		return !lt, nil
	case "gteq":
		lt, err := less(a, b)
		if err != nil {
			return nil, err
		}

		return !lt, nil
	case "in":
		return contains(a, b)
	case "notin":
		in, err := contains(a, b)
		if err != nil {
			return nil, err
		}

		return !in, nil
	}

	return nil, pkg.ErrBadOperand.Wrapf("unknown comparison operator %q", op)
}

// Binary arithmetic and logic nodes.

type Add struct{ Left, Right Node }

func (n *Add) Resolve(ctx *Context) (any, error) {
	return resolveBinary(ctx, n.Left, n.Right, addValues)
}

type Sub struct{ Left, Right Node }

func (n *Sub) Resolve(ctx *Context) (any, error) {
	return resolveBinary(ctx, n.Left, n.Right, subValues)
}

type Mul struct{ Left, Right Node }

func (n *Mul) Resolve(ctx *Context) (any, error) {
	return resolveBinary(ctx, n.Left, n.Right, mulValues)
}

type Div struct{ Left, Right Node }

func (n *Div) Resolve(ctx *Context) (any, error) {
	return resolveBinary(ctx, n.Left, n.Right, divValues)
}

type FloorDiv struct{ Left, Right Node }

func (n *FloorDiv) Resolve(ctx *Context) (any, error) {
	return resolveBinary(ctx, n.Left, n.Right, floorDivValues)
}

type Mod struct{ Left, Right Node }

func (n *Mod) Resolve(ctx *Context) (any, error) {
	return resolveBinary(ctx, n.Left, n.Right, modValues)
}

type Pow struct{ Left, Right Node }

func (n *Pow) Resolve(ctx *Context) (any, error) {
	return resolveBinary(ctx, n.Left, n.Right, powValues)
}

func resolveBinary(ctx *Context, left, right Node, op func(a, b any) (any, error)) (any, error) {
	a, err := left.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	b, err := right.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	return op(a, b)
}

// And short-circuits; operands absorb the undefined soft-fail.
type And struct{ Left, Right Node }

func (n *And) Resolve(ctx *Context) (any, error) {
	left, err := ResolveSafe(n.Left, ctx)
	if err != nil {
		return nil, err
	}

	if !truth(left) {
		return left, nil
	}

	return ResolveSafe(n.Right, ctx)
}

// Or short-circuits; operands absorb the undefined soft-fail.
type Or struct{ Left, Right Node }

func (n *Or) Resolve(ctx *Context) (any, error) {
	left, err := ResolveSafe(n.Left, ctx)
	if err != nil {
		return nil, err
	}

	if truth(left) {
		return left, nil
	}

	return ResolveSafe(n.Right, ctx)
}

// Not negates truthiness; its operand absorbs the undefined soft-fail.
type Not struct{ Node Node }

func (n *Not) Resolve(ctx *Context) (any, error) {
	v, err := ResolveSafe(n.Node, ctx)
	if err != nil {
		return nil, err
	}

	return !truth(v), nil
}

type Neg struct{ Node Node }

func (n *Neg) Resolve(ctx *Context) (any, error) {
	v, err := n.Node.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	return negValue(v)
}

type Pos struct{ Node Node }

func (n *Pos) Resolve(ctx *Context) (any, error) {
	v, err := n.Node.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	return posValue(v)
}
