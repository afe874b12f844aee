package args

import (
	"fmt"
	"slices"
	"strings"

	"github.com/legutierr/blocktags/lexer"
	"github.com/legutierr/blocktags/pkg"
	"github.com/legutierr/blocktags/token"
	"github.com/legutierr/blocktags/value"
)

// NodeList captures the sub-document between the current tag and one of
// a set of terminating block tags. The terminators are usually inferred
// by the structuring pass from the descriptors that follow.
type NodeList struct {
	base
	explicitEnds []string
	endTags      []string
}

// NewNodeList creates a sub-document capture.
func NewNodeList(name string) *NodeList {
	return &NodeList{base: base{name: name, required: true}}
}

// WithEndTags fixes the terminating tag names explicitly, disabling
// inference.
func (n *NodeList) WithEndTags(tags ...string) *NodeList {
	n.explicitEnds = tags
	n.endTags = tags

	return n
}

func (n *NodeList) explicitEndTags() []string { return n.explicitEnds }

func (n *NodeList) setEndTags(tags []string) { n.endTags = tags }

func (n *NodeList) HasDefault() bool { return true }

func (n *NodeList) DefaultValue() value.Value { return value.NewStatic(EmptyNodes{}) }

// Probe accepts only an exhausted stream: a sub-document capture starts
// where the current tag's own tokens end.
func (n *NodeList) Probe(_ TemplateParser, stream *token.Stream) error {
	if !stream.EOS() {
		return pkg.ErrTooManyArguments.
			Wrapf("tag %q: %v", n.tagname, stream.Values())
	}

	return nil
}

func (n *NodeList) Parse(parser TemplateParser, stream *token.Stream,
	container *Container, _ []Argument,
) error {
	if err := n.Probe(parser, stream); err != nil {
		return err
	}

	nodes, err := parser.Parse(n.endTags...)
	if err != nil {
		return err
	}

	if err := container.bind(n.tagname, n.name, value.NewStatic(nodes)); err != nil {
		return err
	}

	container.NodeLists = append(container.NodeLists, nodes)

	return nil
}

// Literal captures the sub-document as its raw source text instead of
// parsed nodes, re-serializing each document token with its original
// delimiters. Nested occurrences of the owning tag are tracked so that
// only the matching terminator ends the capture.
type Literal struct {
	NodeList
}

// NewLiteral creates a raw-text sub-document capture.
func NewLiteral(name string) *Literal {
	return &Literal{NodeList: *NewNodeList(name)}
}

func (l *Literal) DefaultValue() value.Value { return value.NewStatic("") }

func (l *Literal) Parse(parser TemplateParser, stream *token.Stream,
	container *Container, _ []Argument,
) error {
	if err := l.Probe(parser, stream); err != nil {
		return err
	}

	var sb strings.Builder

	depth := 0

	for {
		tok, ok := parser.PeekToken()
		if !ok {
			return pkg.ErrNodeListUnterminated.
				Wrapf("tag %q: expected one of %v", l.tagname, l.endTags)
		}

		if tok.Kind == BlockToken {
			switch name := tok.TagName(); {
			case name == l.tagname:
				depth++
			case slices.Contains(l.endTags, name):
				depth--
			}

			if depth < 0 {
				break
			}
		}

		tok, err := parser.NextToken()
		if err != nil {
			return err
		}

		switch tok.Kind {
		case BlockToken:
			fmt.Fprintf(&sb, "{%% %s %%}", tok.Contents)
		case VarToken:
			fmt.Fprintf(&sb, "{{ %s }}", tok.Contents)
		case CommentToken:
			fmt.Fprintf(&sb, "{# %s #}", tok.Contents)
		default:
			sb.WriteString(tok.Contents)
		}
	}

	return container.bind(l.tagname, l.name, value.NewStatic(sb.String()))
}

// BlockTag matches one inner block tag of a compound tag, such as the
// "else" of an if/else, and parses its children against that tag's
// tokens. A BlockTag whose stream is exhausted pulls the next block
// token out of the host document itself.
type BlockTag struct {
	MultiArgument
}

// NewBlockTag creates an inner block tag descriptor. The name may be
// dotted; matching compares the final component.
func NewBlockTag(name string, children ...Argument) *BlockTag {
	b := &BlockTag{MultiArgument: *NewMultiArgument(children...)}
	b.name = name

	return b
}

// Initialize binds the children to this block's own name, not the
// enclosing tag's.
func (b *BlockTag) Initialize(string) error {
	return b.MultiArgument.Initialize(b.name)
}

// Probe walks a leading dotted name and compares its final component
// against the expected tag name. It consumes the dot components it
// walks, so callers speculate on clones.
func (b *BlockTag) Probe(_ TemplateParser, stream *token.Stream) error {
	if b.name == "" || stream.EOS() {
		return nil
	}

	got := stream.Current().ValueString()
	for stream.Look().Test("dot") {
		stream.Next()
		stream.Next()
		got = stream.Current().ValueString()
	}

	if got != b.name {
		return pkg.ErrTagName.
			Wrapf("expected tag %q, got %q%s", b.name, got, suggest(got, []string{b.name}))
	}

	return nil
}

func (b *BlockTag) Parse(parser TemplateParser, stream *token.Stream,
	container *Container, nextargs []Argument,
) error {
	if stream.EOS() {
		fetched, err := b.nextBlock(parser)
		if err != nil {
			return err
		}

		stream = fetched
	}

	if b.name != "" {
		if err := b.Probe(parser, stream); err != nil {
			return err
		}

		stream.Next()
	}

	if err := b.doParse(parser, stream, container, nextargs); err != nil {
		return err
	}

	if !stream.EOS() {
		return pkg.ErrTooManyArguments.
			Wrapf("tag %q: %v", b.name, stream.Values())
	}

	return nil
}

// nextBlock advances the host document to the next block token and
// returns its contents as a token stream, skipping comment blocks.
func (b *BlockTag) nextBlock(parser TemplateParser) (*token.Stream, error) {
	for {
		tok, err := parser.NextToken()
		if err != nil {
			return nil, err
		}

		switch tok.Kind {
		case BlockToken:
			stream, err := lexer.Tokenize(tok.Contents)
			if err != nil {
				return nil, err
			}

			if stream.Current().Test("name") && stream.Current().ValueString() == "comment" {
				if err := skipCommentBlock(parser); err != nil {
					return nil, err
				}

				continue
			}

			return stream, nil
		case VarToken:
			return nil, pkg.ErrUnexpectedElement.
				Wrapf("expected block tag %q, got variable %q", b.name, tok.Contents)
		}
	}
}

// skipCommentBlock discards everything up to and including the matching
// endcomment tag.
func skipCommentBlock(parser TemplateParser) error {
	if _, err := parser.Parse("endcomment"); err != nil {
		return err
	}

	_, err := parser.NextToken()

	return err
}

// EndTag consumes the closing block tag of a compound tag. Without an
// explicit name it closes "end" + the owning tag's name.
type EndTag struct {
	base
	explicit string
	endName  string
}

// NewEndTag creates a closing tag descriptor. An empty name derives the
// closer from the owning tag.
func NewEndTag(name string) *EndTag {
	return &EndTag{base: base{required: true}, explicit: name}
}

func (e *EndTag) Initialize(tagname string) error {
	e.endName = e.explicit
	if e.endName == "" {
		e.endName = "end" + tagname
	}

	e.name = e.endName

	return e.base.Initialize(tagname)
}

// EndName returns the closing tag name this descriptor consumes; it is
// empty before initialization.
func (e *EndTag) EndName() string { return e.endName }

func (e *EndTag) Probe(_ TemplateParser, stream *token.Stream) error {
	if !stream.EOS() {
		return pkg.ErrTooManyArguments.
			Wrapf("tag %q: %v", e.tagname, stream.Values())
	}

	return nil
}

func (e *EndTag) Parse(parser TemplateParser, stream *token.Stream,
	_ *Container, _ []Argument,
) error {
	if err := e.Probe(parser, stream); err != nil {
		return err
	}

	var words []string

	for {
		tok, err := parser.NextToken()
		if err != nil {
			return err
		}

		if tok.Kind == VarToken {
			return pkg.ErrUnexpectedElement.
				Wrapf("expected block tag %q, got variable %q", e.endName, tok.Contents)
		}

		if tok.Kind != BlockToken {
			continue
		}

		words = strings.Fields(tok.Contents)
		if len(words) > 0 && words[0] == "comment" {
			if err := skipCommentBlock(parser); err != nil {
				return err
			}

			continue
		}

		break
	}

	if len(words) == 0 || words[0] != e.endName {
		got := strings.Join(words, " ")

		return pkg.ErrTagName.
			Wrapf("expected closing tag %q, got %q%s",
				e.endName, got, suggest(got, []string{e.endName}))
	}

	if len(words) > 1 {
		return pkg.ErrTooManyArguments.
			Wrapf("tag %q: %v", e.endName, words[1:])
	}

	return nil
}
