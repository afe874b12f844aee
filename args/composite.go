package args

import (
	"github.com/legutierr/blocktags/expr"
	"github.com/legutierr/blocktags/pkg"
	"github.com/legutierr/blocktags/token"
	"github.com/legutierr/blocktags/value"
)

// MultiArgument is a fixed sequence of child descriptors parsed in
// order. It is the base of every grouping descriptor.
type MultiArgument struct {
	base
	children []Argument
}

// NewMultiArgument groups descriptors into one sequence.
func NewMultiArgument(children ...Argument) *MultiArgument {
	return &MultiArgument{base: base{required: true}, children: children}
}

// Named gives the group a name (used by subclasses that bind results).
func (m *MultiArgument) Named(name string) *MultiArgument {
	m.name = name

	return m
}

// Children returns the child descriptors, for the structuring pass.
func (m *MultiArgument) Children() []Argument { return m.children }

func (m *MultiArgument) Initialize(tagname string) error {
	if err := m.base.Initialize(tagname); err != nil {
		return err
	}

	for _, child := range m.children {
		if err := child.Initialize(tagname); err != nil {
			return err
		}
	}

	return nil
}

// Probe checks the children against a disposable copy of the stream.
// Each probed child is followed by one token skip: the probe is a
// feasibility test, not a parse, so it advances coarsely and leaves the
// precise consumption to Parse. A child left over once the copy runs dry
// must accept the empty stream (only sub-document captures do).
func (m *MultiArgument) Probe(parser TemplateParser, stream *token.Stream) error {
	clone := stream.Clone()

	i := 0
	for ; !clone.EOS() && i < len(m.children); i++ {
		if err := m.children[i].Probe(parser, clone); err != nil {
			return err
		}

		clone.Next()
	}

	if i < len(m.children) {
		if err := m.children[i].Probe(parser, clone); err != nil {
			return err
		}
	}

	return nil
}

// doParse parses the children in order, threading the not-yet-parsed
// siblings as lookahead context. The last child sees the caller's own
// lookahead, so greedy captures inside the group still stop at tokens
// belonging to descriptors after the group.
func (m *MultiArgument) doParse(parser TemplateParser, stream *token.Stream,
	container *Container, nextargs []Argument,
) error {
	for i, child := range m.children {
		rest := nextargs
		if i < len(m.children)-1 {
			rest = m.children[i+1:]
		}

		if err := child.Parse(parser, stream, container, rest); err != nil {
			return err
		}
	}

	return nil
}

func (m *MultiArgument) Parse(parser TemplateParser, stream *token.Stream,
	container *Container, nextargs []Argument,
) error {
	return m.doParse(parser, stream, container, nextargs)
}

// OneOf parses exactly one of its alternatives: the first whose
// speculative parse on disposable copies succeeds is then re-parsed for
// real against the live parser, stream and container.
type OneOf struct {
	MultiArgument
}

// NewOneOf groups descriptors into a first-match alternation.
func NewOneOf(alternatives ...Argument) *OneOf {
	return &OneOf{MultiArgument: *NewMultiArgument(alternatives...)}
}

func (o *OneOf) Probe(parser TemplateParser, stream *token.Stream) error {
	for _, alt := range o.children {
		err := alt.Probe(parser, stream.Clone())
		if err == nil {
			return nil
		}

		if !pkg.IsSyntax(err) {
			return err
		}
	}

	return pkg.ErrNoOptionMatched.
		Wrapf("tag %q: %v", o.tagname, stream.Values())
}

func (o *OneOf) Parse(parser TemplateParser, stream *token.Stream,
	container *Container, nextargs []Argument,
) error {
	for _, alt := range o.children {
		err := alt.Parse(parser.Fork(), stream.Clone(), NewContainer(), nextargs)
		if err == nil {
			return alt.Parse(parser, stream, container, nextargs)
		}

		if !pkg.IsSyntax(err) {
			return err
		}
	}

	return pkg.ErrNoOptionMatched.
		Wrapf("tag %q: %v", o.tagname, stream.Values())
}

// Optional parses its children as a group if the whole group matches,
// and otherwise consumes nothing, installing each child's default
// instead.
type Optional struct {
	MultiArgument
}

// NewOptional groups descriptors into an all-or-nothing optional unit.
func NewOptional(children ...Argument) *Optional {
	o := &Optional{MultiArgument: *NewMultiArgument(children...)}
	o.required = false

	return o
}

func (o *Optional) Parse(parser TemplateParser, stream *token.Stream,
	container *Container, nextargs []Argument,
) error {
	err := o.doParse(parser.Fork(), stream.Clone(), NewContainer(), nextargs)
	if err == nil {
		return o.doParse(parser, stream, container, nextargs)
	}

	if !pkg.IsSyntax(err) {
		return err
	}

	for _, child := range o.children {
		d, ok := child.(Defaulter)
		if !ok || !d.HasDefault() {
			continue
		}

		if err := container.bind(o.tagname, child.Name(), d.DefaultValue()); err != nil {
			return err
		}
	}

	return nil
}

// RepContainer holds the captures of one repetition of a Repetition
// group. It resolves to itself; the indexed and named accessors become
// usable once Resolve has run.
type RepContainer struct {
	container *Container

	resolved       bool
	resolvedArgs   []any
	resolvedKwargs map[string]any
}

// NewRepContainer creates an empty repetition capture.
func NewRepContainer() *RepContainer {
	return &RepContainer{container: NewContainer()}
}

func (r *RepContainer) Resolve(ctx *expr.Context) (any, error) {
	r.resolvedArgs = make([]any, len(r.container.Args))

	for i, v := range r.container.Args {
		resolved, err := v.Resolve(ctx)
		if err != nil {
			return nil, err
		}

		r.resolvedArgs[i] = resolved
	}

	r.resolvedKwargs = make(map[string]any, len(r.container.Kwargs))

	for name, v := range r.container.Kwargs {
		resolved, err := v.Resolve(ctx)
		if err != nil {
			return nil, err
		}

		r.resolvedKwargs[name] = resolved
	}

	r.resolved = true

	return r, nil
}

// Len returns the positional capture count.
func (r *RepContainer) Len() int { return len(r.container.Args) }

// At returns the i-th resolved positional capture.
func (r *RepContainer) At(i int) (any, error) {
	if !r.resolved {
		return nil, pkg.ErrNotInitialized.
			Wrapf("repetition captures must be resolved before access")
	}

	if i < 0 || i >= len(r.resolvedArgs) {
		return nil, pkg.ErrUndefined.
			Wrapf("no positional capture at index %d", i)
	}

	return r.resolvedArgs[i], nil
}

// Get returns the resolved named capture.
func (r *RepContainer) Get(name string) (any, error) {
	if !r.resolved {
		return nil, pkg.ErrNotInitialized.
			Wrapf("repetition captures must be resolved before access")
	}

	v, ok := r.resolvedKwargs[name]
	if !ok {
		return nil, pkg.ErrUndefined.
			Wrapf("no named capture %q", name)
	}

	return v, nil
}

// Repetition parses its child group zero or more times, binding one
// RepContainer per repetition. Unlike MultiValue it is greedy on whole
// group matches: it keeps repeating while the group parses, without
// yielding to later siblings.
type Repetition struct {
	MultiArgument
	minReps int
	maxReps int
}

// NewRepetition creates a repeated group under the given name.
func NewRepetition(name string, children ...Argument) *Repetition {
	r := &Repetition{MultiArgument: *NewMultiArgument(children...)}
	r.name = name
	r.required = false

	return r
}

// MinReps sets the minimum repetition count; a positive minimum makes
// the group required.
func (r *Repetition) MinReps(n int) *Repetition {
	r.minReps = n
	r.required = n > 0

	return r
}

// MaxReps caps the repetition count.
func (r *Repetition) MaxReps(n int) *Repetition {
	r.maxReps = n

	return r
}

func (r *Repetition) Parse(parser TemplateParser, stream *token.Stream,
	container *Container, nextargs []Argument,
) error {
	// One persistent speculative copy spans all iterations: each
	// successful trial advances it past one repetition, keeping trial and
	// live parses in lockstep.
	fork := parser.Fork()
	clone := stream.Clone()

	reps := value.NewList()

	for {
		err := r.doParse(fork, clone, NewContainer(), nextargs)
		if err != nil {
			if !pkg.IsSyntax(err) {
				return err
			}

			break
		}

		rep := NewRepContainer()
		if err := r.doParse(parser, stream, rep.container, nextargs); err != nil {
			return err
		}

		reps.Append(rep)

		container.NodeLists = append(container.NodeLists, rep.container.NodeLists...)
	}

	if reps.Len() < r.minReps {
		return pkg.ErrArgumentRequired.
			Wrapf("tag %q: group %q repeated %d times, need at least %d",
				r.tagname, r.name, reps.Len(), r.minReps)
	}

	if r.maxReps > 0 && reps.Len() > r.maxReps {
		return pkg.ErrTooManyArguments.
			Wrapf("tag %q: group %q repeated %d times, at most %d allowed",
				r.tagname, r.name, reps.Len(), r.maxReps)
	}

	if reps.Len() == 0 {
		if rep, ok := r.defaultRep(); ok {
			reps.Append(rep)
		}
	}

	return container.bind(r.tagname, r.name, reps)
}

// defaultRep synthesizes one repetition from the children's defaults.
// It exists only when every child carries a default, so the synthetic
// repetition is structurally identical to a parsed one.
func (r *Repetition) defaultRep() (*RepContainer, bool) {
	rep := NewRepContainer()

	for _, child := range r.children {
		d, ok := child.(Defaulter)
		if !ok || !d.HasDefault() {
			return nil, false
		}

		if err := rep.container.bind(r.tagname, child.Name(), d.DefaultValue()); err != nil {
			return nil, false
		}
	}

	return rep, true
}
