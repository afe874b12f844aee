package lexer

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/legutierr/blocktags/pkg"
	"github.com/legutierr/blocktags/token"
)

// Lexing rules, tried in order at every position. All patterns are
// anchored; the operator alternation is assembled longest-spelling-first
// so multi-character operators win over their prefixes.
var (
	whitespaceRe = regexp.MustCompile(`^\s+`)
	floatRe      = regexp.MustCompile(`^\d+\.\d+`)
	integerRe    = regexp.MustCompile(`^\d+`)
	nameRe       = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*`)
	stringRe     = regexp.MustCompile(
		`^('([^'\\]*(?:\\.[^'\\]*)*)'|"([^"\\]*(?:\\.[^"\\]*)*)")`)
	operatorRe = func() *regexp.Regexp {
		texts := token.OperatorTexts()
		quoted := make([]string, len(texts))

		for i, text := range texts {
			quoted[i] = regexp.QuoteMeta(text)
		}

		return regexp.MustCompile(`^(` + strings.Join(quoted, "|") + `)`)
	}()
)

// closerFor maps each opening bracket to the closer it requires.
var closerFor = map[string]string{"(": ")", "[": "]", "{": "}"}

// tokenCache stores lexed token slices keyed by xxh3 of the source text.
// The same tag invocation text recurs across renders, so lexing is
// memoized; cached slices are immutable and copied out per stream.
var tokenCache sync.Map

// Tokenize lexes the raw argument text of one tag invocation into a fresh
// token stream. Results are cached by content hash; every call returns an
// independent stream.
func Tokenize(source string) (*token.Stream, error) {
	key := xxh3.HashString(source)

	if cached, ok := tokenCache.Load(key); ok {
		return token.NewStream(copyTokens(cached.([]token.Token))), nil
	}

	tokens, err := scan(source)
	if err != nil {
		return nil, err
	}

	tokenCache.Store(key, tokens)

	return token.NewStream(copyTokens(tokens)), nil
}

// ClearCache removes all memoized token slices. This is primarily useful
// for testing or when memory needs to be reclaimed.
func ClearCache() {
	tokenCache = sync.Map{}
}

func copyTokens(tokens []token.Token) []token.Token {
	dup := make([]token.Token, len(tokens))
	copy(dup, tokens)

	return dup
}

// scan runs the rule table over the source, maintaining the bracket
// balance stack.
func scan(source string) ([]token.Token, error) {
	var (
		tokens    []token.Token
		balancing []string // expected closers, innermost last
	)

	pos, line := 0, 1

	for pos < len(source) {
		rest := source[pos:]

		if m := whitespaceRe.FindString(rest); m != "" {
			line += strings.Count(m, "\n")
			pos += len(m)

			continue
		}

		// The float rule must not fire directly after a dot, so that
		// "x.1.2" lexes as two integer subscripts rather than a float.
		if m := floatRe.FindString(rest); m != "" && (pos == 0 || source[pos-1] != '.') {
			value, err := strconv.ParseFloat(m, 64)
			if err != nil {
				return nil, pkg.ErrBadCharacter.Wrapf("bad float %q at line %d", m, line)
			}

			tokens = append(tokens, token.Token{Type: token.Float, Value: value, Line: line})
			pos += len(m)

			continue
		}

		if m := integerRe.FindString(rest); m != "" {
			value, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				return nil, pkg.ErrBadCharacter.Wrapf("bad integer %q at line %d", m, line)
			}

			tokens = append(tokens, token.Token{Type: token.Integer, Value: value, Line: line})
			pos += len(m)

			continue
		}

		if m := nameRe.FindString(rest); m != "" {
			tokens = append(tokens, token.Token{Type: token.Name, Value: m, Line: line})
			pos += len(m)

			continue
		}

		if m := stringRe.FindString(rest); m != "" {
			value, err := unescape(m[1 : len(m)-1])
			if err != nil {
				return nil, pkg.ErrBadStringLiteral.Wrap(err).
					With(slog.Int("line", line))
			}

			tokens = append(tokens, token.Token{Type: token.String, Value: value, Line: line})
			line += strings.Count(m, "\n")
			pos += len(m)

			continue
		}

		if m := operatorRe.FindString(rest); m != "" {
			if err := balance(&balancing, m, line); err != nil {
				return nil, err
			}

			tokens = append(tokens, token.Token{
				Type:  token.Operators[m],
				Value: m,
				Line:  line,
			})
			pos += len(m)

			continue
		}

		// Dead position: no rule matches and input remains.
		return nil, pkg.ErrBadCharacter.
			Wrapf("unexpected character %q at line %d", source[pos], line)
	}

	if len(balancing) > 0 {
		return nil, pkg.ErrUnbalancedBracket.
			Wrapf("unexpected end of input, expected %q", balancing[len(balancing)-1])
	}

	return tokens, nil
}

// balance updates the bracket stack for an operator token, failing on a
// stray or mismatched closer.
func balance(stack *[]string, op string, line int) error {
	if closer, ok := closerFor[op]; ok {
		*stack = append(*stack, closer)

		return nil
	}

	switch op {
	case ")", "]", "}":
		if len(*stack) == 0 {
			return pkg.ErrUnbalancedBracket.
				Wrapf("unexpected %q at line %d", op, line)
		}

		expected := (*stack)[len(*stack)-1]
		*stack = (*stack)[:len(*stack)-1]

		if expected != op {
			return pkg.ErrUnbalancedBracket.
				Wrapf("unexpected %q at line %d, expected %q", op, line, expected)
		}
	}

	return nil
}

// unescape decodes backslash escapes inside a string literal body.
// Unknown escapes are preserved verbatim.
func unescape(body string) (string, error) {
	if !strings.ContainsRune(body, '\\') {
		return body, nil
	}

	var sb strings.Builder

	sb.Grow(len(body))

	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			sb.WriteByte(c)

			continue
		}

		i++
		switch body[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case '0':
			sb.WriteByte(0)
		case '\\', '\'', '"':
			sb.WriteByte(body[i])
		case 'x':
			if i+2 >= len(body) {
				return "", pkg.ErrBadStringLiteral.Wrapf("truncated \\x escape")
			}

			n, err := strconv.ParseUint(body[i+1:i+3], 16, 8)
			if err != nil {
				return "", pkg.ErrBadStringLiteral.Wrapf("bad \\x escape %q", body[i+1:i+3])
			}

			sb.WriteByte(byte(n))
			i += 2
		default:
			sb.WriteByte('\\')
			sb.WriteByte(body[i])
		}
	}

	return sb.String(), nil
}
