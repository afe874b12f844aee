package args

import (
	"iter"
	"slices"

	"github.com/legutierr/blocktags/pkg"
)

// Structure validates and rewires a descriptor list for parsing. It
// scans right to left so that every descriptor can see its already
// structured followers: breakpoint keywords behind it become exclusions,
// the block and end tags behind a sub-document capture become its
// terminators, and non-required descriptors are folded into Optional
// groups (merging with an immediately preceding breakpoint keyword).
// The pass recurses into grouping descriptors and runs once per tag
// definition.
func Structure(arguments []Argument, tagname string) ([]Argument, error) {
	return structure(arguments, tagname, nil, false)
}

func structure(arguments []Argument, tagname string,
	outside []Argument, isOptional bool,
) ([]Argument, error) {
	if len(arguments) == 0 {
		return arguments, nil
	}

	// extended lets a descriptor scan past its own list into the
	// enclosing group's followers.
	extended := append(slices.Clone(arguments), outside...)

	last := arguments[len(arguments)-1]
	if err := structureOne(last, tagname, outside); err != nil {
		return nil, err
	}

	i := len(arguments) - 2
	j := len(arguments) - 1

	for i >= 0 {
		current := arguments[i]
		visited := arguments[j]
		alreadyVisited := extended[j:]

		if _, ok := current.(*EndTag); ok {
			return nil, pkg.ErrEndTagNotLast.
				Wrapf("tag %q", tagname)
		}

		if err := structureOne(current, tagname, alreadyVisited); err != nil {
			return nil, err
		}

		if !isOptional {
			current, visited, err := notRequiredToOptional(tagname, current, visited)
			if err != nil {
				return nil, err
			}

			arguments[i], extended[i] = current, current

			if visited == nil {
				// current and visited merged into one Optional.
				arguments = slices.Delete(arguments, j, j+1)
				extended = slices.Delete(extended, j, j+1)
			} else {
				arguments[j], extended[j] = visited, visited
			}
		}

		i--
		j--
	}

	if !isOptional {
		_, first, err := notRequiredToOptional(tagname, nil, arguments[0])
		if err != nil {
			return nil, err
		}

		arguments[0] = first
	}

	return arguments, nil
}

// structureOne initializes a descriptor, recurses into its children,
// and configures it against the descriptors that follow it.
func structureOne(arg Argument, tagname string, following []Argument) error {
	if err := arg.Initialize(tagname); err != nil {
		return err
	}

	if err := structureChildren(arg, tagname, following); err != nil {
		return err
	}

	applyExcludes(arg, following)

	return resolveEndTags(arg, tagname, following)
}

func structureChildren(arg Argument, tagname string, following []Argument) error {
	var (
		group      *MultiArgument
		childTag   = tagname
		isOptional bool
	)

	switch t := arg.(type) {
	case *BlockTag:
		group, childTag = &t.MultiArgument, t.name
	case *OneOf:
		group = &t.MultiArgument
	case *Optional:
		group, isOptional = &t.MultiArgument, true
	case *Repetition:
		group, isOptional = &t.MultiArgument, true
	case *MultiArgument:
		group = t
	default:
		return nil
	}

	children, err := structure(group.children, childTag, following, isOptional)
	if err != nil {
		return err
	}

	group.children = children

	return nil
}

// applyExcludes fences a capturing descriptor off from the breakpoint
// keywords that may follow it, so a greedy capture cannot swallow them.
func applyExcludes(arg Argument, following []Argument) {
	ex, ok := arg.(excluder)
	if !ok {
		return
	}

	var values []string

	for a := range nextContainedFirst(following) {
		if c, ok := a.(*Constant); ok {
			values = append(values, c.value)
		}
	}

	ex.addExclude(values...)
}

// nodelister is satisfied by sub-document captures whose terminators the
// structuring pass infers.
type nodelister interface {
	explicitEndTags() []string
	setEndTags(tags []string)
}

// resolveEndTags infers a sub-document capture's terminating tag names
// from the block and end tags that follow it. An alternation directly
// after the capture contributes each alternative's leading tag.
func resolveEndTags(arg Argument, tagname string, following []Argument) error {
	nl, ok := arg.(nodelister)
	if !ok {
		return nil
	}

	if explicit := nl.explicitEndTags(); explicit != nil {
		nl.setEndTags(explicit)

		return nil
	}

	var endtags []string

	for a := range nextContainedFirst(following) {
		switch t := a.(type) {
		case *BlockTag:
			endtags = append(endtags, t.name)
		case *EndTag:
			endtags = append(endtags, t.endName)
		case *OneOf:
			for _, alt := range t.children {
				for inner := range nextContainedFirst([]Argument{alt}) {
					switch b := inner.(type) {
					case *BlockTag:
						endtags = append(endtags, b.name)
					case *EndTag:
						endtags = append(endtags, b.endName)
					default:
						return pkg.ErrImproperlyConfigured.
							Wrapf("tag %q: every alternative following a sub-document capture must start with a block or end tag, got %T", tagname, inner)
					}
				}
			}
		default:
			return pkg.ErrImproperlyConfigured.
				Wrapf("tag %q: a sub-document capture must be followed by a block or end tag, got %T", tagname, a)
		}
	}

	if len(endtags) == 0 {
		return pkg.ErrNodeListUnterminated.
			Wrapf("tag %q", tagname)
	}

	nl.setEndTags(endtags)

	return nil
}

// notRequiredToOptional folds a non-required descriptor into an Optional
// group. When the descriptor directly follows a breakpoint keyword the
// two merge into one group, so the keyword is only expected when the
// descriptor's tokens are present.
func notRequiredToOptional(tagname string, first, second Argument) (Argument, Argument, error) {
	if second == nil || second.Required() {
		return first, second, nil
	}

	if c, ok := first.(*Constant); ok {
		opt := NewOptional(c, second)
		if err := opt.Initialize(tagname); err != nil {
			return nil, nil, err
		}

		return opt, nil, nil
	}

	if isOptionalArg(second) {
		return first, second, nil
	}

	opt := NewOptional(second)
	if err := opt.Initialize(tagname); err != nil {
		return nil, nil, err
	}

	return first, opt, nil
}

// nextContainedFirst iterates the descriptors that could consume the
// next token: optional groups are flattened, and iteration past each
// level stops at its first non-optional descriptor.
func nextContainedFirst(list []Argument) iter.Seq[Argument] {
	return func(yield func(Argument) bool) {
		walkContained(list, true, yield)
	}
}

// nextContained iterates every descriptor in the list with optional
// groups flattened.
func nextContained(list []Argument) iter.Seq[Argument] {
	return func(yield func(Argument) bool) {
		walkContained(list, false, yield)
	}
}

// walkContained reports false when the consumer stopped iteration, true
// when this level completed (or hit its first non-optional descriptor
// under firstsOnly).
func walkContained(list []Argument, firstsOnly bool, yield func(Argument) bool) bool {
	for _, a := range list {
		switch t := a.(type) {
		case *Optional:
			if !walkContained(t.children, firstsOnly, yield) {
				return false
			}
		case *Repetition:
			if !walkContained(t.children, firstsOnly, yield) {
				return false
			}
		default:
			if !yield(a) {
				return false
			}

			if firstsOnly {
				return true
			}
		}
	}

	return true
}
