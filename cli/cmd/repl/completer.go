package repl

import (
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/legutierr/blocktags/expr"
)

// isWordBoundary reports whether the rune delimits a word for completion
// purposes: whitespace, the member-access dot, and expression operator
// or punctuation characters.
func isWordBoundary(r rune) bool {
	switch r {
	case '.', ' ', '\t',
		'(', ')', '[', ']', '{', '}',
		'+', '-', '*', '/', '%', '~',
		'<', '>', '=', '!',
		'&', '|', ',', '?', ':', ';':
		return true
	}

	return false
}

// wordBounds returns the word at the cursor position and its byte
// boundaries within input. Returns an empty word when the cursor sits on
// a boundary (after a space, between dots, start of line).
func wordBounds(input string, cursor int) (word string, start, end int) {
	if cursor > len(input) {
		cursor = len(input)
	}

	start = cursor

	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if isWordBoundary(r) {
			break
		}

		start -= size
	}

	end = cursor

	for end < len(input) {
		r, size := utf8.DecodeRuneInString(input[end:])
		if isWordBoundary(r) {
			break
		}

		end += size
	}

	return input[start:end], start, end
}

// parentPath returns the dot-separated prefix path leading up to the
// current word, considering only the contiguous member-access chain. For
// input "x + server.http.ho" with the word "ho", the parent path is
// "server.http". Returns "" for top-level words.
func parentPath(input string, wordStart int) string {
	prefix := input[:wordStart]

	trimmed, dotted := strings.CutSuffix(prefix, ".")
	if !dotted || trimmed == "" {
		return ""
	}

	pos := len(trimmed)

	for pos > 0 {
		r, size := utf8.DecodeLastRuneInString(trimmed[:pos])
		if r != '.' && isWordBoundary(r) {
			break
		}

		pos -= size
	}

	return strings.TrimSpace(trimmed[pos:])
}

// afterPipe reports whether the word at wordStart sits in filter
// position, directly following a `|`.
func afterPipe(input string, wordStart int) bool {
	return strings.HasSuffix(
		strings.TrimRight(input[:wordStart], " \t"), "|",
	)
}

// candidates returns the names that are valid completions for the word
// at wordStart. An empty parent yields all top-level variables plus
// filter names when the word follows a pipe; a non-empty parent is
// resolved through nested mappings and yields the names of its direct
// children.
func candidates(ec *expr.Context, input string, wordStart int) []string {
	parent := parentPath(input, wordStart)

	if parent == "" {
		var names []string

		if afterPipe(input, wordStart) {
			names = append(names, ec.FilterNames()...)
		} else {
			for name := range ec.Vars {
				names = append(names, name)
			}
		}

		slices.Sort(names)

		return names
	}

	// Resolve the parent path segment by segment through nested maps.
	node := any(ec.Vars)

	for _, segment := range strings.Split(parent, ".") {
		mapping, ok := node.(map[string]any)
		if !ok {
			return nil
		}

		node, ok = mapping[segment]
		if !ok {
			return nil
		}
	}

	mapping, ok := node.(map[string]any)
	if !ok {
		return nil
	}

	names := slices.Collect(maps.Keys(mapping))
	slices.Sort(names)

	return names
}
