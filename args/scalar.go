package args

import (
	"errors"
	"slices"
	"strings"

	"github.com/legutierr/blocktags/expr"
	"github.com/legutierr/blocktags/pkg"
	"github.com/legutierr/blocktags/token"
	"github.com/legutierr/blocktags/value"
)

// Constant matches one specific literal token, a breakpoint keyword such
// as "as" or "with". It binds nothing.
type Constant struct {
	base
	value string
}

// NewConstant creates a breakpoint keyword descriptor.
func NewConstant(v string) *Constant {
	return &Constant{base: base{required: true}, value: v}
}

func (c *Constant) Probe(_ TemplateParser, stream *token.Stream) error {
	if stream.EOS() {
		return pkg.ErrTooFewArguments.
			Wrapf("tag %q: missing keyword %q", c.tagname, c.value)
	}

	got := stream.Current().ValueString()
	if got == c.value {
		return nil
	}

	return pkg.ErrBreakpointExpected.
		Wrapf("tag %q: expected %q, got %q%s",
			c.tagname, c.value, got, suggest(got, []string{c.value}))
}

func (c *Constant) Parse(parser TemplateParser, stream *token.Stream,
	_ *Container, _ []Argument,
) error {
	if err := c.Probe(parser, stream); err != nil {
		return err
	}

	stream.Next()

	return nil
}

// Value captures one expression (or one raw token when resolution is
// disabled) as a named or positional result.
type Value struct {
	base
	def     any
	resolve bool
	exclude []string
	wrap    func(value.Value) value.Value
}

// NewValue creates a single-value descriptor. It is required and
// resolved by default.
func NewValue(name string) *Value {
	return &Value{
		base:    base{name: name, required: true},
		resolve: true,
		wrap:    func(inner value.Value) value.Value { return value.NewString(inner) },
	}
}

// NewIntegerValue is NewValue with integer coercion on resolve.
func NewIntegerValue(name string) *Value {
	v := NewValue(name)
	v.wrap = func(inner value.Value) value.Value { return value.NewInteger(inner) }

	return v
}

// WithDefault declares the value optional with the given default.
func (v *Value) WithDefault(d any) *Value {
	v.def = d
	v.required = false

	return v
}

// Require overrides the required flag.
func (v *Value) Require(required bool) *Value {
	v.required = required

	return v
}

// NoResolve captures the raw token text instead of parsing an
// expression; the result resolves to the literal text.
func (v *Value) NoResolve() *Value {
	v.resolve = false

	return v
}

// Exclude forbids specific token values from being captured.
func (v *Value) Exclude(values ...string) *Value {
	v.exclude = append(v.exclude, values...)

	return v
}

func (v *Value) addExclude(values ...string) { v.exclude = append(v.exclude, values...) }

func (v *Value) HasDefault() bool { return true }

func (v *Value) DefaultValue() value.Value { return value.NewStatic(v.def) }

func (v *Value) Probe(parser TemplateParser, stream *token.Stream) error {
	_, err := v.capture(parser, stream)

	return err
}

func (v *Value) capture(_ TemplateParser, stream *token.Stream) (value.Value, error) {
	if stream.EOS() {
		return nil, pkg.ErrArgumentRequired.
			Wrapf("tag %q: argument %q is required", v.tagname, v.describe())
	}

	current := stream.Current().ValueString()
	if slices.Contains(v.exclude, current) {
		return nil, pkg.ErrInvalidArgument.
			Wrapf("tag %q: %q is not a valid value for argument %q",
				v.tagname, current, v.describe())
	}

	if !v.resolve {
		return v.wrap(value.NewStatic(stream.Next().ValueString())), nil
	}

	node, err := expr.Parse(stream)
	if err != nil {
		return nil, err
	}

	return v.wrap(value.Expression{Node: node}), nil
}

func (v *Value) Parse(parser TemplateParser, stream *token.Stream,
	container *Container, _ []Argument,
) error {
	val, err := v.capture(parser, stream)
	if err != nil {
		return err
	}

	return container.bind(v.tagname, v.name, val)
}

func (v *Value) describe() string {
	if v.name != "" {
		return v.name
	}

	return "<positional>"
}

// Keyword captures a name=expression pair. With a fixed name the parsed
// name must match; without one, any name is accepted and becomes the
// binding key.
type Keyword struct {
	Value

	// enforceName requires the parsed keyword to equal the declared name.
	enforceName bool
}

// NewKeyword creates a keyword descriptor. A non-empty name is enforced
// against the input.
func NewKeyword(name string) *Keyword {
	k := &Keyword{Value: *NewValue(name)}
	k.enforceName = name != ""

	return k
}

// NewIntegerKeyword is NewKeyword with integer coercion on resolve.
func NewIntegerKeyword(name string) *Keyword {
	k := NewKeyword(name)
	k.wrap = func(inner value.Value) value.Value { return value.NewInteger(inner) }

	return k
}

func (k *Keyword) Probe(parser TemplateParser, stream *token.Stream) error {
	_, _, err := k.captureKeyword(parser, stream)

	return err
}

func (k *Keyword) captureKeyword(_ TemplateParser, stream *token.Stream) (string, value.Value, error) {
	if stream.EOS() {
		return "", nil, pkg.ErrArgumentRequired.
			Wrapf("tag %q: keyword argument %q is required", k.tagname, k.describe())
	}

	nameTok, err := stream.Expect("name")
	if err != nil {
		return "", nil, err
	}

	if _, err := stream.Expect("assign"); err != nil {
		return "", nil, err
	}

	node, err := expr.Parse(stream)
	if err != nil {
		return "", nil, err
	}

	name := nameTok.ValueString()

	if slices.Contains(k.exclude, name) {
		return "", nil, pkg.ErrInvalidArgument.
			Wrapf("tag %q: %q is not a valid keyword for argument %q",
				k.tagname, name, k.describe())
	}

	if k.enforceName && name != k.name {
		return "", nil, pkg.ErrArgumentRequired.
			Wrapf("tag %q: expected keyword %q, got %q%s",
				k.tagname, k.name, name, suggest(name, []string{k.name}))
	}

	return name, k.wrap(value.Expression{Node: node}), nil
}

func (k *Keyword) Parse(parser TemplateParser, stream *token.Stream,
	container *Container, _ []Argument,
) error {
	name, val, err := k.captureKeyword(parser, stream)
	if err != nil {
		return err
	}

	return container.bind(k.tagname, name, val)
}

// Flag maps a restricted token vocabulary to a boolean.
type Flag struct {
	base
	def           any
	hasDefault    bool
	trueValues    []string
	falseValues   []string
	caseSensitive bool
	exclude       []string
}

// NewFlag creates a flag descriptor. At least one of True or False must
// be configured before the tag compiles.
func NewFlag(name string) *Flag {
	return &Flag{base: base{name: name, required: true}}
}

// True declares the token values that mean true.
func (f *Flag) True(values ...string) *Flag {
	f.trueValues = append(f.trueValues, values...)

	return f
}

// False declares the token values that mean false.
func (f *Flag) False(values ...string) *Flag {
	f.falseValues = append(f.falseValues, values...)

	return f
}

// CaseSensitive disables the default case folding of the vocabulary.
func (f *Flag) CaseSensitive() *Flag {
	f.caseSensitive = true

	return f
}

// WithDefault makes the flag optional: an unrecognized or absent token
// falls back to the default instead of failing.
func (f *Flag) WithDefault(d any) *Flag {
	f.def = d
	f.hasDefault = true
	f.required = false

	return f
}

func (f *Flag) addExclude(values ...string) { f.exclude = append(f.exclude, values...) }

func (f *Flag) HasDefault() bool { return f.hasDefault }

func (f *Flag) DefaultValue() value.Value { return value.NewStatic(f.def) }

func (f *Flag) Initialize(tagname string) error {
	if len(f.trueValues) == 0 && len(f.falseValues) == 0 {
		return pkg.ErrFlagVocabulary.
			Wrapf("flag %q of tag %q", f.name, tagname)
	}

	return f.base.Initialize(tagname)
}

func (f *Flag) fold(s string) string {
	if f.caseSensitive {
		return s
	}

	return strings.ToLower(s)
}

func (f *Flag) Probe(parser TemplateParser, stream *token.Stream) error {
	_, err := f.cleanValue(stream)

	return err
}

func (f *Flag) cleanValue(stream *token.Stream) (bool, error) {
	if stream.EOS() {
		return false, pkg.ErrTooFewArguments.
			Wrapf("tag %q: missing value for flag %q", f.tagname, f.name)
	}

	got := stream.Current().ValueString()
	folded := f.fold(got)

	if slices.Contains(f.exclude, got) || slices.Contains(f.exclude, folded) {
		return false, pkg.ErrInvalidArgument.
			Wrapf("tag %q: %q is not a valid value for flag %q", f.tagname, got, f.name)
	}

	if slices.ContainsFunc(f.trueValues, func(v string) bool { return f.fold(v) == folded }) {
		return true, nil
	}

	if slices.ContainsFunc(f.falseValues, func(v string) bool { return f.fold(v) == folded }) {
		return false, nil
	}

	allowed := append(append([]string{}, f.trueValues...), f.falseValues...)

	return false, pkg.ErrInvalidFlag.
		Wrapf("tag %q: %q is not a valid value for flag %q, allowed: %s%s",
			f.tagname, got, f.name, strings.Join(allowed, ", "), suggest(got, allowed))
}

func (f *Flag) Parse(parser TemplateParser, stream *token.Stream,
	container *Container, _ []Argument,
) error {
	var val value.Value

	b, err := f.cleanValue(stream)

	switch {
	case err == nil:
		stream.Next()

		val = value.NewStatic(b)
	case errors.Is(err, pkg.ErrInvalidFlag) && f.hasDefault:
		val = value.NewStatic(f.def)
	default:
		return err
	}

	return container.bind(f.tagname, f.name, val)
}
