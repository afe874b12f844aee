package token

import (
	"log/slog"

	"github.com/legutierr/blocktags/pkg"
)

// EOFToken is the sentinel returned by Current once a stream is exhausted.
var EOFToken = Token{Type: EOF, Value: ""}

// Stream is an ordered, mutable cursor over the tokens of one tag
// invocation. Consumed tokens are discarded permanently, so Size reflects
// only what remains. A Clone shares no storage with its origin, which is
// what makes disposable copies safe for speculative parses.
type Stream struct {
	remaining []Token
}

// NewStream creates a stream over the given tokens. The slice is owned by
// the stream afterwards.
func NewStream(tokens []Token) *Stream {
	return &Stream{remaining: tokens}
}

// Clone returns a full structural copy of the remaining queue. Consuming
// tokens from the clone never affects the original.
func (s *Stream) Clone() *Stream {
	dup := make([]Token, len(s.remaining))
	copy(dup, s.remaining)

	return &Stream{remaining: dup}
}

// EOS reports whether no tokens remain.
func (s *Stream) EOS() bool { return len(s.remaining) == 0 }

// Size returns the number of remaining tokens.
func (s *Stream) Size() int { return len(s.remaining) }

// List returns a copy of the remaining tokens.
func (s *Stream) List() []Token {
	dup := make([]Token, len(s.remaining))
	copy(dup, s.remaining)

	return dup
}

// Values returns the remaining tokens' values as strings, for error
// reporting.
func (s *Stream) Values() []string {
	values := make([]string, len(s.remaining))
	for i, t := range s.remaining {
		values[i] = t.ValueString()
	}

	return values
}

// Current returns the head token without consuming it. It never fails:
// an exhausted stream yields the EOF sentinel.
func (s *Stream) Current() Token {
	if len(s.remaining) == 0 {
		return EOFToken
	}

	return s.remaining[0]
}

// Next consumes and returns the token that was current.
func (s *Stream) Next() Token {
	t := s.Current()

	if len(s.remaining) > 0 {
		s.remaining = s.remaining[1:]
	}

	return t
}

// Push prepends a token to the stream.
func (s *Stream) Push(t Token) {
	s.remaining = append([]Token{t}, s.remaining...)
}

// Look peeks one token past current without consuming anything.
func (s *Stream) Look() Token {
	old := s.Next()
	result := s.Current()
	s.Push(old)

	return result
}

// Skip advances n tokens.
func (s *Stream) Skip(n int) {
	for range n {
		s.Next()
	}
}

// NextIf consumes and returns the current token iff it matches the token
// expression.
func (s *Stream) NextIf(expr string) (Token, bool) {
	if s.Current().Test(expr) {
		return s.Next(), true
	}

	return Token{}, false
}

// SkipIf is like NextIf but only reports whether a token was consumed.
func (s *Stream) SkipIf(expr string) bool {
	_, ok := s.NextIf(expr)

	return ok
}

// Expect consumes the current token if it matches the token expression,
// or fails with a descriptive error.
func (s *Stream) Expect(expr string) (Token, error) {
	current := s.Current()
	if !current.Test(expr) {
		return Token{}, pkg.ErrUnexpectedToken.
			Wrapf("expected %q, got %q", DescribeExpr(expr), Describe(current)).
			With(slog.Int("line", current.Line))
	}

	return s.Next(), nil
}
