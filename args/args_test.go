package args

import (
	"errors"
	"strings"
	"testing"

	"github.com/legutierr/blocktags/expr"
	"github.com/legutierr/blocktags/lexer"
	"github.com/legutierr/blocktags/pkg"
	"github.com/legutierr/blocktags/token"
)

// fakeNodes is a minimal host node sequence for tests.
type fakeNodes struct {
	contents []string
}

func (f *fakeNodes) Nodes() []any {
	nodes := make([]any, len(f.contents))
	for i, c := range f.contents {
		nodes[i] = c
	}

	return nodes
}

// fakeParser is a scripted host document parser: a queue of raw tokens.
// Parse consumes text and variable tokens into a node sequence until one
// of the terminating block tags is next.
type fakeParser struct {
	tokens []TemplateToken
}

func newFakeParser(tokens ...TemplateToken) *fakeParser {
	return &fakeParser{tokens: tokens}
}

func (f *fakeParser) NextToken() (TemplateToken, error) {
	if len(f.tokens) == 0 {
		return TemplateToken{}, pkg.ErrNodeListUnterminated.
			Wrapf("document exhausted")
	}

	tok := f.tokens[0]
	f.tokens = f.tokens[1:]

	return tok, nil
}

func (f *fakeParser) PeekToken() (TemplateToken, bool) {
	if len(f.tokens) == 0 {
		return TemplateToken{}, false
	}

	return f.tokens[0], true
}

func (f *fakeParser) Parse(until ...string) (NodeSequence, error) {
	var nodes fakeNodes

	for len(f.tokens) > 0 {
		tok := f.tokens[0]
		if tok.Kind == BlockToken {
			name := tok.TagName()

			stop := false
			for _, u := range until {
				if name == u {
					stop = true

					break
				}
			}

			if stop {
				return &nodes, nil
			}
		}

		nodes.contents = append(nodes.contents, tok.Contents)
		f.tokens = f.tokens[1:]
	}

	return &nodes, nil
}

func (f *fakeParser) Fork() TemplateParser {
	dup := make([]TemplateToken, len(f.tokens))
	copy(dup, f.tokens)

	return &fakeParser{tokens: dup}
}

func tokenize(t *testing.T, source string) *token.Stream {
	t.Helper()

	stream, err := lexer.Tokenize(source)
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", source, err)
	}

	return stream
}

// parseArgs structures the descriptor list for tagname and runs a full
// parse of the given invocation text against a scripted document.
func parseArgs(t *testing.T, tagname string, descriptors []Argument,
	source string, parser TemplateParser,
) (*Container, error) {
	t.Helper()

	structured, err := Structure(descriptors, tagname)
	if err != nil {
		t.Fatalf("Structure: %v", err)
	}

	root := NewBlockTag(tagname, structured...)
	if err := root.Initialize(tagname); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if parser == nil {
		parser = newFakeParser()
	}

	container := NewContainer()

	return container, root.Parse(parser, tokenize(t, source), container, nil)
}

func resolveKwarg(t *testing.T, container *Container, name string, ctx *expr.Context) any {
	t.Helper()

	v, ok := container.Kwargs[name]
	if !ok {
		t.Fatalf("kwarg %q not bound; have %v", name, container.Kwargs)
	}

	resolved, err := v.Resolve(ctx)
	if err != nil {
		t.Fatalf("resolve %q: %v", name, err)
	}

	return resolved
}

func TestRequiredAndDefaultValues(t *testing.T) {
	descriptors := func() []Argument {
		return []Argument{
			NewValue("greeting"),
			NewValue("name").WithDefault("world"),
		}
	}

	ctx := expr.NewContext(map[string]any{"who": "ada"})

	t.Run("both supplied", func(t *testing.T) {
		container, err := parseArgs(t, "hello", descriptors(), `hello 'hi' who`, nil)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}

		if got := resolveKwarg(t, container, "greeting", ctx); got != "hi" {
			t.Errorf("greeting = %#v", got)
		}
		if got := resolveKwarg(t, container, "name", ctx); got != "ada" {
			t.Errorf("name = %#v", got)
		}
	})

	t.Run("default fills omitted", func(t *testing.T) {
		container, err := parseArgs(t, "hello", descriptors(), `hello 'hi'`, nil)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}

		if got := resolveKwarg(t, container, "name", ctx); got != "world" {
			t.Errorf("name = %#v, want default", got)
		}
	})

	t.Run("missing required fails", func(t *testing.T) {
		_, err := parseArgs(t, "hello", descriptors(), `hello`, nil)
		if err == nil || !pkg.IsSyntax(err) {
			t.Fatalf("err = %v, want syntax error", err)
		}
	})

	t.Run("trailing tokens fail", func(t *testing.T) {
		_, err := parseArgs(t, "hello", descriptors(), `hello 'hi' who extra`, nil)
		if !errors.Is(err, pkg.ErrTooManyArguments) {
			t.Fatalf("err = %v, want %v", err, pkg.ErrTooManyArguments)
		}
	})
}

func TestConstantBreakpoint(t *testing.T) {
	descriptors := []Argument{
		NewValue("value"),
		NewConstant("as"),
		NewValue("varname").NoResolve(),
	}

	container, err := parseArgs(t, "set", descriptors, `set 1 + 2 as total`, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	ctx := expr.NewContext(nil)

	if got := resolveKwarg(t, container, "value", ctx); got != int64(3) {
		t.Errorf("value = %#v", got)
	}
	if got := resolveKwarg(t, container, "varname", ctx); got != "total" {
		t.Errorf("varname = %#v", got)
	}

	_, err = parseArgs(t, "set", []Argument{
		NewValue("value"),
		NewConstant("as"),
		NewValue("varname").NoResolve(),
	}, `set 1 with total`, nil)
	if !errors.Is(err, pkg.ErrBreakpointExpected) {
		t.Fatalf("err = %v, want %v", err, pkg.ErrBreakpointExpected)
	}
}

func TestMultiValueStopsAtBreakpoint(t *testing.T) {
	descriptors := []Argument{
		NewMultiValue("items"),
		NewConstant("as"),
		NewValue("varname").NoResolve(),
	}

	container, err := parseArgs(t, "gather", descriptors, `gather 1 2 3 as x`, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	ctx := expr.NewContext(nil)

	items := resolveKwarg(t, container, "items", ctx).([]any)
	if len(items) != 3 || items[0] != int64(1) || items[2] != int64(3) {
		t.Errorf("items = %#v", items)
	}

	if got := resolveKwarg(t, container, "varname", ctx); got != "x" {
		t.Errorf("varname = %#v", got)
	}
}

func TestMultiValueMaxAndCommas(t *testing.T) {
	t.Run("max caps the run", func(t *testing.T) {
		descriptors := []Argument{
			NewMultiValue("items").Max(2),
			NewConstant("then"),
			NewMultiValue("rest"),
		}

		container, err := parseArgs(t, "take", descriptors, `take 1 2 then 3 4`, nil)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}

		ctx := expr.NewContext(nil)

		if items := resolveKwarg(t, container, "items", ctx).([]any); len(items) != 2 {
			t.Errorf("items = %#v, want 2 values", items)
		}
		if rest := resolveKwarg(t, container, "rest", ctx).([]any); len(rest) != 2 {
			t.Errorf("rest = %#v, want 2 values", rest)
		}
	})

	t.Run("comma discipline", func(t *testing.T) {
		descriptors := func() []Argument {
			return []Argument{
				NewMultiValue("items").Commas(),
				NewConstant("done"),
			}
		}

		container, err := parseArgs(t, "take", descriptors(), `take 1, 2, 3 done`, nil)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}

		ctx := expr.NewContext(nil)

		if items := resolveKwarg(t, container, "items", ctx).([]any); len(items) != 3 {
			t.Errorf("items = %#v, want 3 values", items)
		}

		// A missing comma ends the run, leaving tokens the breakpoint
		// cannot accept.
		_, err = parseArgs(t, "take", descriptors(), `take 1, 2 3 done`, nil)
		if !errors.Is(err, pkg.ErrBreakpointExpected) {
			t.Fatalf("err = %v, want %v", err, pkg.ErrBreakpointExpected)
		}
	})

	t.Run("required with no match fails", func(t *testing.T) {
		descriptors := []Argument{
			NewMultiValue("items").Require(true),
			NewConstant("as"),
			NewValue("varname").NoResolve(),
		}

		_, err := parseArgs(t, "take", descriptors, `take as x`, nil)
		if !errors.Is(err, pkg.ErrTooFewArguments) {
			t.Fatalf("err = %v, want %v", err, pkg.ErrTooFewArguments)
		}
	})
}

func TestMultiKeyword(t *testing.T) {
	descriptors := func() []Argument {
		return []Argument{NewMultiKeyword("options").Require(true)}
	}

	container, err := parseArgs(t, "cfg", descriptors(), `cfg depth=2 mode='fast'`, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	ctx := expr.NewContext(nil)

	options := resolveKwarg(t, container, "options", ctx).(map[string]any)
	if options["depth"] != int64(2) || options["mode"] != "fast" {
		t.Errorf("options = %#v", options)
	}

	_, err = parseArgs(t, "cfg", descriptors(), `cfg depth=2 depth=3`, nil)
	if !errors.Is(err, pkg.ErrKeywordInUse) {
		t.Fatalf("duplicate keyword err = %v, want %v", err, pkg.ErrKeywordInUse)
	}
}

func TestFlagVocabulary(t *testing.T) {
	t.Run("case folded match", func(t *testing.T) {
		descriptors := []Argument{
			NewFlag("loud").True("on", "yes").False("off", "no"),
		}

		container, err := parseArgs(t, "shout", descriptors, `shout YES`, nil)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}

		if got := resolveKwarg(t, container, "loud", expr.NewContext(nil)); got != true {
			t.Errorf("loud = %#v", got)
		}
	})

	t.Run("invalid value suggests closest", func(t *testing.T) {
		descriptors := []Argument{
			NewFlag("loud").True("on").False("off"),
		}

		_, err := parseArgs(t, "shout", descriptors, `shout onn`, nil)
		if !errors.Is(err, pkg.ErrInvalidFlag) {
			t.Fatalf("err = %v, want %v", err, pkg.ErrInvalidFlag)
		}
		if !strings.Contains(err.Error(), `closest match: "on"`) {
			t.Errorf("err %q lacks fuzzy suggestion", err.Error())
		}
	})

	t.Run("default absorbs invalid value", func(t *testing.T) {
		descriptors := []Argument{
			NewFlag("loud").True("on").False("off").WithDefault(false),
			NewValue("rest").NoResolve(),
		}

		container, err := parseArgs(t, "shout", descriptors, `shout whatever`, nil)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}

		ctx := expr.NewContext(nil)

		if got := resolveKwarg(t, container, "loud", ctx); got != false {
			t.Errorf("loud = %#v, want default", got)
		}

		// The invalid token is left for the next descriptor.
		if got := resolveKwarg(t, container, "rest", ctx); got != "whatever" {
			t.Errorf("rest = %#v", got)
		}
	})

	t.Run("no vocabulary is a config error", func(t *testing.T) {
		_, err := Structure([]Argument{NewFlag("loud")}, "shout")
		if !errors.Is(err, pkg.ErrFlagVocabulary) {
			t.Fatalf("err = %v, want %v", err, pkg.ErrFlagVocabulary)
		}
	})
}

func TestOneOfCommitsMatchingAlternative(t *testing.T) {
	descriptors := func() []Argument {
		return []Argument{
			NewOneOf(
				NewMultiArgument(NewConstant("up"), NewValue("amount")),
				NewMultiArgument(NewConstant("down"), NewValue("amount")),
			),
		}
	}

	ctx := expr.NewContext(nil)

	container, err := parseArgs(t, "move", descriptors(), `move down 4`, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := resolveKwarg(t, container, "amount", ctx); got != int64(4) {
		t.Errorf("amount = %#v", got)
	}

	_, err = parseArgs(t, "move", descriptors(), `move sideways 4`, nil)
	if !errors.Is(err, pkg.ErrNoOptionMatched) {
		t.Fatalf("err = %v, want %v", err, pkg.ErrNoOptionMatched)
	}
}

func TestOptionalMergesWithPrecedingConstant(t *testing.T) {
	// The structuring pass merges "as" with the non-required capture
	// after it, so the keyword is only expected when the capture appears.
	descriptors := func() []Argument {
		return []Argument{
			NewValue("value"),
			NewConstant("as"),
			NewValue("varname").NoResolve().Require(false),
		}
	}

	ctx := expr.NewContext(nil)

	container, err := parseArgs(t, "calc", descriptors(), `calc 7 as x`, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := resolveKwarg(t, container, "varname", ctx); got != "x" {
		t.Errorf("varname = %#v", got)
	}

	container, err = parseArgs(t, "calc", descriptors(), `calc 7`, nil)
	if err != nil {
		t.Fatalf("parse without as: %v", err)
	}
	if got := resolveKwarg(t, container, "value", ctx); got != int64(7) {
		t.Errorf("value = %#v", got)
	}
	if got := resolveKwarg(t, container, "varname", ctx); got != nil {
		t.Errorf("varname = %#v, want nil default", got)
	}
}

func TestRepetition(t *testing.T) {
	group := func() *Repetition {
		return NewRepetition("pairs",
			NewValue("key").NoResolve(),
			NewValue("val"),
		)
	}

	ctx := expr.NewContext(nil)

	t.Run("collects independent repetitions", func(t *testing.T) {
		container, err := parseArgs(t, "map", []Argument{group()}, `map a 1 b 2`, nil)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}

		reps := resolveKwarg(t, container, "pairs", ctx).([]any)
		if len(reps) != 2 {
			t.Fatalf("reps = %#v, want 2", reps)
		}

		first := reps[0].(*RepContainer)

		key, err := first.Get("key")
		if err != nil {
			t.Fatalf("Get(key): %v", err)
		}
		if key != "a" {
			t.Errorf("first key = %#v", key)
		}

		second := reps[1].(*RepContainer)

		val, err := second.Get("val")
		if err != nil {
			t.Fatalf("Get(val): %v", err)
		}
		if val != int64(2) {
			t.Errorf("second val = %#v", val)
		}
	})

	t.Run("unresolved access fails", func(t *testing.T) {
		rep := NewRepContainer()

		if _, err := rep.Get("key"); !errors.Is(err, pkg.ErrNotInitialized) {
			t.Fatalf("err = %v, want %v", err, pkg.ErrNotInitialized)
		}
	})

	t.Run("min reps enforced", func(t *testing.T) {
		_, err := parseArgs(t, "map",
			[]Argument{group().MinReps(2)}, `map a 1`, nil)
		if !errors.Is(err, pkg.ErrArgumentRequired) {
			t.Fatalf("err = %v, want %v", err, pkg.ErrArgumentRequired)
		}
	})

	t.Run("max reps enforced", func(t *testing.T) {
		_, err := parseArgs(t, "map",
			[]Argument{group().MaxReps(1)}, `map a 1 b 2`, nil)
		if !errors.Is(err, pkg.ErrTooManyArguments) {
			t.Fatalf("err = %v, want %v", err, pkg.ErrTooManyArguments)
		}
	})

	t.Run("zero reps synthesizes defaults when every child has one", func(t *testing.T) {
		rep := NewRepetition("pairs",
			NewValue("key").WithDefault("k"),
			NewValue("val").WithDefault(0),
		)

		container, err := parseArgs(t, "map", []Argument{rep}, `map`, nil)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}

		reps := resolveKwarg(t, container, "pairs", ctx).([]any)
		if len(reps) != 1 {
			t.Fatalf("reps = %#v, want 1 synthesized", reps)
		}

		key, err := reps[0].(*RepContainer).Get("key")
		if err != nil {
			t.Fatalf("Get(key): %v", err)
		}
		if key != "k" {
			t.Errorf("key = %#v", key)
		}
	})
}

func TestDuplicateBindingFails(t *testing.T) {
	_, err := parseArgs(t, "dup", []Argument{
		NewValue("x"),
		NewValue("x"),
	}, `dup 1 2`, nil)
	if !errors.Is(err, pkg.ErrKeywordInUse) {
		t.Fatalf("err = %v, want %v", err, pkg.ErrKeywordInUse)
	}
}

func TestNodeListCapture(t *testing.T) {
	descriptors := []Argument{
		NewNodeList("body"),
		NewEndTag(""),
	}

	parser := newFakeParser(
		TemplateToken{Kind: TextToken, Contents: "hello "},
		TemplateToken{Kind: VarToken, Contents: "name"},
		TemplateToken{Kind: BlockToken, Contents: "endwrap"},
	)

	container, err := parseArgs(t, "wrap", descriptors, `wrap`, parser)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(container.NodeLists) != 1 {
		t.Fatalf("NodeLists = %d, want 1", len(container.NodeLists))
	}
	if nodes := container.NodeLists[0].Nodes(); len(nodes) != 2 {
		t.Errorf("captured nodes = %#v", nodes)
	}
}

func TestNodeListConfigErrors(t *testing.T) {
	t.Run("nodelist last", func(t *testing.T) {
		_, err := Structure([]Argument{NewNodeList("body")}, "wrap")
		if !errors.Is(err, pkg.ErrNodeListUnterminated) {
			t.Fatalf("err = %v, want %v", err, pkg.ErrNodeListUnterminated)
		}
	})

	t.Run("non-block follower", func(t *testing.T) {
		_, err := Structure([]Argument{
			NewNodeList("body"),
			NewValue("x"),
		}, "wrap")
		if !errors.Is(err, pkg.ErrImproperlyConfigured) {
			t.Fatalf("err = %v, want %v", err, pkg.ErrImproperlyConfigured)
		}
	})

	t.Run("descriptor after end tag", func(t *testing.T) {
		_, err := Structure([]Argument{
			NewNodeList("body"),
			NewEndTag(""),
			NewValue("x"),
		}, "wrap")
		if !errors.Is(err, pkg.ErrEndTagNotLast) {
			t.Fatalf("err = %v, want %v", err, pkg.ErrEndTagNotLast)
		}
	})
}

func TestBlockTagAlternation(t *testing.T) {
	// if/else/endif: body, then either an else block with its own body or
	// the end tag directly.
	descriptors := []Argument{
		NewValue("condition"),
		NewNodeList("then"),
		NewOneOf(
			NewBlockTag("else",
				NewNodeList("otherwise"),
				NewEndTag("endcheck"),
			),
			NewEndTag(""),
		),
	}

	parser := newFakeParser(
		TemplateToken{Kind: TextToken, Contents: "yes"},
		TemplateToken{Kind: BlockToken, Contents: "else"},
		TemplateToken{Kind: TextToken, Contents: "no"},
		TemplateToken{Kind: BlockToken, Contents: "endcheck"},
	)

	container, err := parseArgs(t, "check", descriptors, `check done`, parser)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(container.NodeLists) != 2 {
		t.Fatalf("NodeLists = %d, want 2", len(container.NodeLists))
	}

	ctx := expr.NewContext(map[string]any{"done": true})

	then := resolveKwarg(t, container, "then", ctx).(NodeSequence)
	if nodes := then.Nodes(); len(nodes) != 1 || nodes[0] != "yes" {
		t.Errorf("then = %#v", nodes)
	}

	otherwise := resolveKwarg(t, container, "otherwise", ctx).(NodeSequence)
	if nodes := otherwise.Nodes(); len(nodes) != 1 || nodes[0] != "no" {
		t.Errorf("otherwise = %#v", nodes)
	}
}

func TestLiteralRoundTrip(t *testing.T) {
	descriptors := []Argument{
		NewLiteral("source"),
		NewEndTag(""),
	}

	parser := newFakeParser(
		TemplateToken{Kind: TextToken, Contents: "a "},
		TemplateToken{Kind: VarToken, Contents: "x"},
		TemplateToken{Kind: BlockToken, Contents: "if y"},
		TemplateToken{Kind: CommentToken, Contents: "note"},
		TemplateToken{Kind: BlockToken, Contents: "endverbatim"},
	)

	container, err := parseArgs(t, "verbatim", descriptors, `verbatim`, parser)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	got := resolveKwarg(t, container, "source", expr.NewContext(nil))

	want := "a {{ x }}{% if y %}{# note #}"
	if got != want {
		t.Errorf("source = %q, want %q", got, want)
	}
}

func TestEndTagRejectsTrailingWords(t *testing.T) {
	descriptors := []Argument{
		NewNodeList("body"),
		NewEndTag(""),
	}

	parser := newFakeParser(
		TemplateToken{Kind: BlockToken, Contents: "endwrap now"},
	)

	_, err := parseArgs(t, "wrap", descriptors, `wrap`, parser)
	if !errors.Is(err, pkg.ErrTooManyArguments) {
		t.Fatalf("err = %v, want %v", err, pkg.ErrTooManyArguments)
	}
}
