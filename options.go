// Package blocktags parses the arguments of block-structured template
// tags declaratively: a tag definition lists descriptors for its
// arguments once, and the compiled form parses and validates every
// invocation, resolving captured expressions lazily against a runtime
// context.
package blocktags

import (
	"github.com/legutierr/blocktags/args"
	"github.com/legutierr/blocktags/lexer"
	"github.com/legutierr/blocktags/pkg"
)

// Block names one NodeList/BlockTag pair of the WithBlocks shorthand.
// Tag is the block tag that terminates the preceding sub-document; Name
// is the capture name of that sub-document and defaults to Tag.
type Block struct {
	Tag  string
	Name string
}

// Options declares a tag's argument grammar. Specs may be descriptors or
// bare strings (shorthand for breakpoint keywords). An Options value is
// mutable until Compile and immutable afterwards.
type Options struct {
	specs   []any
	tagname string
	root    *args.BlockTag
}

// NewOptions collects argument specs for a tag definition.
func NewOptions(specs ...any) *Options {
	return &Options{specs: specs}
}

// WithBlocks appends the standard block structure: a sub-document
// capture before each named block tag, with the middle tags optional and
// the final one required. The last block entry is the tag that closes
// the whole construct.
func (o *Options) WithBlocks(blocks ...Block) *Options {
	if len(blocks) == 0 {
		return o
	}

	pairs := make([]args.Argument, 0, 2*len(blocks))

	for _, b := range blocks {
		name := b.Name
		if name == "" {
			name = b.Tag
		}

		pairs = append(pairs, args.NewNodeList(name), args.NewBlockTag(b.Tag))
	}

	o.specs = append(o.specs, pairs[0])

	middle := pairs[1 : len(pairs)-1]
	for len(middle) > 0 {
		o.specs = append(o.specs, args.NewOptional(middle[0], middle[1]))
		middle = middle[2:]
	}

	o.specs = append(o.specs, pairs[len(pairs)-1])

	return o
}

// Compiled reports whether Compile has run.
func (o *Options) Compiled() bool { return o.root != nil }

// Compile validates the specs, runs the structuring pass, and builds the
// root parser. Configuration errors surface here, once per definition,
// never during invocation parsing. Compiling twice is a no-op when the
// tag name matches.
func (o *Options) Compile(tagname string) error {
	if o.root != nil {
		if o.tagname != tagname {
			return pkg.ErrImproperlyConfigured.
				Wrapf("options already compiled for tag %q, cannot recompile for %q",
					o.tagname, tagname)
		}

		return nil
	}

	arguments, err := convertSpecs(o.specs)
	if err != nil {
		return err
	}

	arguments, err = args.Structure(arguments, tagname)
	if err != nil {
		return err
	}

	if len(arguments) > 0 {
		switch first := arguments[0].(type) {
		case *args.BlockTag:
			return pkg.ErrBlockTagFirst.
				Wrapf("tag %q", tagname)
		case *args.TagName:
			if first.Name() != tagname {
				return pkg.ErrImproperlyConfigured.
					Wrapf("tag name %q does not match declared name %q",
						tagname, first.Name())
			}
		}
	}

	root := args.NewBlockTag(tagname, arguments...)
	if err := root.Initialize(tagname); err != nil {
		return err
	}

	o.tagname = tagname
	o.root = root

	return nil
}

// Parse parses one invocation's raw contents (the text between the tag
// delimiters, including the tag name) into a fresh result container.
func (o *Options) Parse(parser args.TemplateParser, contents string) (*args.Container, error) {
	if o.root == nil {
		return nil, pkg.ErrNotInitialized.
			Wrapf("parsing %q", contents)
	}

	stream, err := lexer.Tokenize(contents)
	if err != nil {
		return nil, err
	}

	container := args.NewContainer()
	if err := o.root.Parse(parser, stream, container, nil); err != nil {
		return nil, err
	}

	return container, nil
}

// convertSpecs normalizes the mixed spec list: strings become breakpoint
// keyword descriptors, descriptors pass through.
func convertSpecs(specs []any) ([]args.Argument, error) {
	arguments := make([]args.Argument, len(specs))

	for i, spec := range specs {
		switch t := spec.(type) {
		case string:
			arguments[i] = args.NewConstant(t)
		case args.Argument:
			arguments[i] = t
		default:
			return nil, pkg.ErrImproperlyConfigured.
				Wrapf("argument spec %d has unsupported type %T", i, spec)
		}
	}

	return arguments, nil
}
