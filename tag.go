package blocktags

import (
	"sort"

	"github.com/legutierr/blocktags/args"
	"github.com/legutierr/blocktags/expr"
	"github.com/legutierr/blocktags/pkg"
)

// RenderFunc renders one parsed tag invocation. It receives the resolved
// positional and named argument values.
type RenderFunc func(ctx *expr.Context, posargs []any, kwargs map[string]any) (string, error)

// Tag couples a name, a compiled argument grammar, and a render
// callback. A Tag is immutable after NewTag and safe for concurrent use.
type Tag struct {
	name    string
	options *Options
	render  RenderFunc
}

// NewTag compiles the options for the given name and returns the tag.
func NewTag(name string, options *Options, render RenderFunc) (*Tag, error) {
	if options == nil {
		options = NewOptions()
	}

	if err := options.Compile(name); err != nil {
		return nil, err
	}

	return &Tag{name: name, options: options, render: render}, nil
}

// Name returns the tag's name.
func (t *Tag) Name() string { return t.name }

// Options returns the compiled argument grammar.
func (t *Tag) Options() *Options { return t.options }

// Parse parses one invocation into a renderable node. The contents are
// the raw text between the tag delimiters, tag name included.
func (t *Tag) Parse(parser args.TemplateParser, contents string) (*TagNode, error) {
	container, err := t.options.Parse(parser, contents)
	if err != nil {
		return nil, err
	}

	return &TagNode{tag: t, container: container}, nil
}

// TagNode is one parsed invocation of a tag, ready to render against a
// runtime context.
type TagNode struct {
	tag       *Tag
	container *args.Container
}

// Tag returns the defining tag.
func (n *TagNode) Tag() *Tag { return n.tag }

// Container exposes the captured argument bag.
func (n *TagNode) Container() *args.Container { return n.container }

// Nodes enumerates the host nodes of every captured sub-document, for
// host-engine introspection.
func (n *TagNode) Nodes() []any {
	var nodes []any
	for _, nl := range n.container.NodeLists {
		nodes = append(nodes, nl.Nodes()...)
	}

	return nodes
}

// Render resolves every captured value against the context and invokes
// the tag's render callback.
func (n *TagNode) Render(ctx *expr.Context) (string, error) {
	posargs := make([]any, len(n.container.Args))

	for i, v := range n.container.Args {
		resolved, err := v.Resolve(ctx)
		if err != nil {
			return "", err
		}

		posargs[i] = resolved
	}

	kwargs := make(map[string]any, len(n.container.Kwargs))

	for name, v := range n.container.Kwargs {
		resolved, err := v.Resolve(ctx)
		if err != nil {
			return "", err
		}

		kwargs[name] = resolved
	}

	if n.tag.render == nil {
		return "", nil
	}

	return n.tag.render(ctx, posargs, kwargs)
}

// Registry is an explicit, externally owned collection of tags. It is
// not safe for concurrent mutation; populate it at startup.
type Registry struct {
	tags map[string]*Tag
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tags: map[string]*Tag{}}
}

// Register adds a tag, rejecting duplicate names.
func (r *Registry) Register(t *Tag) error {
	if _, ok := r.tags[t.name]; ok {
		return pkg.ErrKeywordInUse.
			Wrapf("tag %q is already registered", t.name)
	}

	r.tags[t.name] = t

	return nil
}

// Lookup returns the named tag.
func (r *Registry) Lookup(name string) (*Tag, bool) {
	t, ok := r.tags[name]

	return t, ok
}

// Names returns the registered tag names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tags))
	for name := range r.tags {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// asNameKey and nodeListKey are the reserved binding names of the
// registration helpers below; the wrappers strip them before the user
// function runs.
const (
	asNameKey   = "_as_name"
	nodeListKey = "_nodelist"
)

// TagFunc is the callback signature of RegisterFunction: any invocation
// arguments, a result.
type TagFunc func(ctx *expr.Context, posargs []any, kwargs map[string]any) (any, error)

// BlockFunc is the callback signature of RegisterBlock; it additionally
// receives the captured sub-document.
type BlockFunc func(ctx *expr.Context, nodes args.NodeSequence, posargs []any, kwargs map[string]any) (any, error)

// RegisterFunction wraps a plain function as a tag accepting arbitrary
// positional and keyword arguments plus a trailing `as name` capture.
// With `as`, the result is stored in the context under the given name
// and the tag renders empty; without it, the result renders as text.
func RegisterFunction(r *Registry, name string, fn TagFunc) (*Tag, error) {
	options := NewOptions(
		args.NewMultiValue(""),
		args.NewMultiKeyword(""),
		args.NewOptional(args.NewConstant("as"), args.NewValue(asNameKey).NoResolve()),
	)

	tag, err := NewTag(name, options, functionRender(fn))
	if err != nil {
		return nil, err
	}

	if err := r.Register(tag); err != nil {
		return nil, err
	}

	return tag, nil
}

// RegisterBlock is RegisterFunction for block tags: the wrapped function
// also receives the sub-document captured up to end<name>.
func RegisterBlock(r *Registry, name string, fn BlockFunc) (*Tag, error) {
	options := NewOptions(
		args.NewMultiValue(""),
		args.NewMultiKeyword(""),
		args.NewOptional(args.NewConstant("as"), args.NewValue(asNameKey).NoResolve()),
		args.NewNodeList(nodeListKey),
		args.NewEndTag(""),
	)

	tag, err := NewTag(name, options, func(ctx *expr.Context, posargs []any, kwargs map[string]any) (string, error) {
		nodes, _ := kwargs[nodeListKey].(args.NodeSequence)
		delete(kwargs, nodeListKey)

		return applyAsName(ctx, kwargs, func() (any, error) {
			return fn(ctx, nodes, posargs, kwargs)
		})
	})
	if err != nil {
		return nil, err
	}

	if err := r.Register(tag); err != nil {
		return nil, err
	}

	return tag, nil
}

func functionRender(fn TagFunc) RenderFunc {
	return func(ctx *expr.Context, posargs []any, kwargs map[string]any) (string, error) {
		return applyAsName(ctx, kwargs, func() (any, error) {
			return fn(ctx, posargs, kwargs)
		})
	}
}

// applyAsName strips the `as name` capture from the keyword bag, runs
// the user function, and either stores the result under the captured
// name or renders it.
func applyAsName(ctx *expr.Context, kwargs map[string]any, fn func() (any, error)) (string, error) {
	asName, _ := kwargs[asNameKey].(string)
	delete(kwargs, asNameKey)

	result, err := fn()
	if err != nil {
		return "", err
	}

	if asName != "" {
		if ctx.Vars == nil {
			ctx.Vars = map[string]any{}
		}

		ctx.Vars[asName] = result

		return "", nil
	}

	return expr.Stringify(result), nil
}
