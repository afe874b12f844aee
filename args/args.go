// Package args implements the declarative argument grammar of a block
// tag: a tree of descriptors compiled once per tag definition and then
// shared read-only across invocations. Parsing one invocation mutates
// only the token stream and the result container, never the descriptors.
package args

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/legutierr/blocktags/pkg"
	"github.com/legutierr/blocktags/token"
	"github.com/legutierr/blocktags/value"
)

// TokenKind classifies the host engine's document tokens.
type TokenKind int

const (
	TextToken TokenKind = iota
	VarToken
	BlockToken
	CommentToken
)

// TemplateToken is one raw token of the host document, with its
// delimiters stripped.
type TemplateToken struct {
	Kind     TokenKind
	Contents string
}

// TagName returns the leading word of a block token's contents.
func (t TemplateToken) TagName() string {
	name, _, _ := strings.Cut(strings.TrimSpace(t.Contents), " ")

	return name
}

// NodeSequence is an opaque parsed sub-document produced by the host
// engine's document parser.
type NodeSequence interface {
	Nodes() []any
}

// EmptyNodes is the default for an omitted node-list capture.
type EmptyNodes struct{}

func (EmptyNodes) Nodes() []any { return nil }

// TemplateParser is the host engine's document parser, handed to the
// descriptor tree so block-structured descriptors can pull in the
// sub-document following the current tag.
type TemplateParser interface {
	// NextToken consumes the next raw document token.
	NextToken() (TemplateToken, error)
	// PeekToken reports the next raw document token without consuming it.
	PeekToken() (TemplateToken, bool)
	// Parse builds host nodes up to (not including) a block token whose
	// tag name is one of until.
	Parse(until ...string) (NodeSequence, error)
	// Fork returns an independent copy for speculative parsing; consuming
	// from the fork never affects the original.
	Fork() TemplateParser
}

// Argument is one descriptor of a tag's argument grammar. Probe checks
// feasibility against a stream the caller is willing to discard; Parse
// consumes for real, binding results into the container. The remaining
// not-yet-parsed siblings are threaded through as lookahead context.
type Argument interface {
	Name() string
	Required() bool
	// Initialize binds the descriptor to its owning tag. It is called by
	// the one-time structuring pass and surfaces configuration errors.
	Initialize(tagname string) error
	Probe(parser TemplateParser, stream *token.Stream) error
	Parse(parser TemplateParser, stream *token.Stream, container *Container, nextargs []Argument) error
}

// Defaulter is implemented by descriptors that can supply a value when
// their tokens are absent.
type Defaulter interface {
	HasDefault() bool
	DefaultValue() value.Value
}

// excluder is implemented by descriptors whose captures can be fenced
// off from later breakpoint keywords.
type excluder interface {
	addExclude(values ...string)
}

// Container is the result bag of one tag invocation: positional values,
// named values, and any captured sub-documents.
type Container struct {
	Args      []value.Value
	Kwargs    map[string]value.Value
	NodeLists []NodeSequence
}

// NewContainer creates an empty result bag.
func NewContainer() *Container {
	return &Container{Kwargs: map[string]value.Value{}}
}

// bind inserts a parsed value: positionally when name is empty, named
// otherwise. Binding a name twice is always an error.
func (c *Container) bind(tagname, name string, v value.Value) error {
	if name == "" {
		c.Args = append(c.Args, v)

		return nil
	}

	if _, ok := c.Kwargs[name]; ok {
		return pkg.ErrKeywordInUse.
			Wrapf("name %q is already bound in tag %q", name, tagname)
	}

	c.Kwargs[name] = v

	return nil
}

// base carries the fields every descriptor shares.
type base struct {
	name     string
	required bool
	tagname  string
}

func (b *base) Name() string { return b.name }

func (b *base) Required() bool { return b.required }

func (b *base) Initialize(tagname string) error {
	b.tagname = tagname

	return nil
}

// TagName marks an explicit leading tag-name descriptor. The compiled
// root block consumes the name itself, so TagName never parses tokens;
// it exists so a definition can state the name it expects.
type TagName struct {
	base
}

// NewTagName creates a tag-name marker.
func NewTagName(name string) *TagName {
	return &TagName{base: base{name: name, required: true}}
}

func (t *TagName) Probe(TemplateParser, *token.Stream) error { return nil }

func (t *TagName) Parse(TemplateParser, *token.Stream, *Container, []Argument) error {
	return nil
}

// suggest renders a closest-match hint for an unrecognized keyword.
func suggest(got string, allowed []string) string {
	matches := fuzzy.Find(got, allowed)
	if len(matches) == 0 {
		return ""
	}

	return fmt.Sprintf(" (closest match: %q)", matches[0].Str)
}
