package args

import (
	"github.com/legutierr/blocktags/pkg"
	"github.com/legutierr/blocktags/token"
	"github.com/legutierr/blocktags/value"
)

// captureFunc consumes one value from the stream and binds it into the
// container. Shared by the multi-value loop below.
type captureFunc func(parser TemplateParser, stream *token.Stream, container *Container) error

// multiParse is the greedy capture loop shared by MultiValue and
// MultiKeyword. Before each capture it probes the remaining sibling
// descriptors on disposable stream clones: a sibling that would accept
// the current position terminates the loop, so trailing breakpoints and
// fixed arguments keep their tokens. Optional siblings are probed up to
// and including the first non-optional one.
func multiParse(parser TemplateParser, stream *token.Stream, container *Container,
	nextargs []Argument, maxValues int, commas bool, capture captureFunc,
) (int, error) {
	num := 0

	if stream.EOS() {
		return num, nil
	}

	if maxValues == 0 {
		maxValues = stream.Size()
	}

	checkCommas := false

	for i := 0; !stream.EOS() && i < maxValues; i++ {
		j := 0
		for ; j < len(nextargs); j++ {
			if !isOptionalArg(nextargs[j]) {
				break
			}

			if err := nextargs[j].Probe(parser, stream.Clone()); err == nil {
				return num, nil
			} else if !pkg.IsSyntax(err) {
				return num, err
			}
		}

		if j < len(nextargs) {
			if err := nextargs[j].Probe(parser, stream.Clone()); err == nil {
				return num, nil
			} else if !pkg.IsSyntax(err) {
				return num, err
			}
		}

		if checkCommas {
			if _, err := stream.Expect("comma"); err != nil {
				break
			}
		}

		if err := capture(parser, stream, container); err != nil {
			return num, err
		}

		num++

		if commas {
			checkCommas = true
		}
	}

	return num, nil
}

func isOptionalArg(a Argument) bool {
	switch a.(type) {
	case *Optional, *Repetition:
		return true
	}

	return false
}

// MultiValue captures a greedy run of expressions into one list. Unlike
// Repetition it yields tokens to whichever later sibling can take them.
type MultiValue struct {
	Value
	maxValues int
	commas    bool
}

// NewMultiValue creates a greedy list capture. It is optional by default
// and defaults to an empty list.
func NewMultiValue(name string) *MultiValue {
	m := &MultiValue{Value: *NewValue(name)}
	m.required = false
	m.def = []any{}

	return m
}

// Max caps the number of captured values.
func (m *MultiValue) Max(n int) *MultiValue {
	m.maxValues = n

	return m
}

// Commas requires a comma between consecutive values.
func (m *MultiValue) Commas() *MultiValue {
	m.commas = true

	return m
}

// Require overrides the required flag.
func (m *MultiValue) Require(required bool) *MultiValue {
	m.required = required

	return m
}

// Exclude forbids specific token values from being captured.
func (m *MultiValue) Exclude(values ...string) *MultiValue {
	m.exclude = append(m.exclude, values...)

	return m
}

// sequence returns the accumulation list bound under the descriptor's
// name, creating it on first use. A foreign value already bound under
// the name is a collision.
func (m *MultiValue) sequence(container *Container) (*value.List, error) {
	bound, ok := container.Kwargs[m.name]
	if !ok {
		seq := value.NewList()
		container.Kwargs[m.name] = seq

		return seq, nil
	}

	seq, ok := bound.(*value.List)
	if !ok {
		return nil, pkg.ErrKeywordInUse.
			Wrapf("name %q is already bound in tag %q", m.name, m.tagname)
	}

	return seq, nil
}

func (m *MultiValue) captureOne(parser TemplateParser, stream *token.Stream,
	container *Container,
) error {
	val, err := m.capture(parser, stream)
	if err != nil {
		return err
	}

	if m.name == "" {
		container.Args = append(container.Args, val)

		return nil
	}

	seq, err := m.sequence(container)
	if err != nil {
		return err
	}

	seq.Append(val)

	return nil
}

func (m *MultiValue) Parse(parser TemplateParser, stream *token.Stream,
	container *Container, nextargs []Argument,
) error {
	num, err := multiParse(parser, stream, container, nextargs,
		m.maxValues, m.commas, m.captureOne)
	if err != nil {
		return err
	}

	if num == 0 {
		if m.required {
			return pkg.ErrTooFewArguments.
				Wrapf("tag %q: argument %q matched no values", m.tagname, m.name)
		}

		if m.name != "" {
			if _, err := m.sequence(container); err != nil {
				return err
			}
		}
	}

	return nil
}

// MultiKeyword captures a greedy run of name=expression pairs into one
// mapping. Without a declared name the pairs bind directly into the
// container under their parsed names.
type MultiKeyword struct {
	Keyword
	maxValues int
	commas    bool
}

// NewMultiKeyword creates a greedy mapping capture. It is optional by
// default, accepts any keyword names, and defaults to an empty mapping.
func NewMultiKeyword(name string) *MultiKeyword {
	m := &MultiKeyword{Keyword: *NewKeyword(name)}
	m.required = false
	m.enforceName = false
	m.def = map[string]any{}

	return m
}

// Max caps the number of captured pairs.
func (m *MultiKeyword) Max(n int) *MultiKeyword {
	m.maxValues = n

	return m
}

// Commas requires a comma between consecutive pairs.
func (m *MultiKeyword) Commas() *MultiKeyword {
	m.commas = true

	return m
}

// Require overrides the required flag.
func (m *MultiKeyword) Require(required bool) *MultiKeyword {
	m.required = required

	return m
}

// Exclude forbids specific keyword names from being captured.
func (m *MultiKeyword) Exclude(values ...string) *MultiKeyword {
	m.exclude = append(m.exclude, values...)

	return m
}

func (m *MultiKeyword) mapping(container *Container) (*value.Dict, error) {
	bound, ok := container.Kwargs[m.name]
	if !ok {
		dict := value.NewDict()
		container.Kwargs[m.name] = dict

		return dict, nil
	}

	dict, ok := bound.(*value.Dict)
	if !ok {
		return nil, pkg.ErrKeywordInUse.
			Wrapf("name %q is already bound in tag %q", m.name, m.tagname)
	}

	return dict, nil
}

func (m *MultiKeyword) captureOne(parser TemplateParser, stream *token.Stream,
	container *Container,
) error {
	name, val, err := m.captureKeyword(parser, stream)
	if err != nil {
		return err
	}

	if m.name == "" {
		return container.bind(m.tagname, name, val)
	}

	dict, err := m.mapping(container)
	if err != nil {
		return err
	}

	if dict.Has(name) {
		return pkg.ErrKeywordInUse.
			Wrapf("keyword %q is already bound in argument %q of tag %q",
				name, m.name, m.tagname)
	}

	dict.Set(name, val)

	return nil
}

func (m *MultiKeyword) Parse(parser TemplateParser, stream *token.Stream,
	container *Container, nextargs []Argument,
) error {
	num, err := multiParse(parser, stream, container, nextargs,
		m.maxValues, m.commas, m.captureOne)
	if err != nil {
		return err
	}

	if num == 0 {
		if m.required {
			return pkg.ErrTooFewArguments.
				Wrapf("tag %q: argument %q matched no pairs", m.tagname, m.name)
		}

		if m.name != "" {
			if _, err := m.mapping(container); err != nil {
				return err
			}
		}
	}

	return nil
}
