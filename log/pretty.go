package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// prettyHandler renders human-oriented single-line records: a colored
// level tag, the message, then dimmed key=value attributes.
type prettyHandler struct {
	mutex *sync.Mutex
	out   io.Writer
	opts  *slog.HandlerOptions
	attrs []slog.Attr
	group string
}

var (
	styleDebug = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleInfo  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleError = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleKey   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleTime  = lipgloss.NewStyle().Faint(true)
)

func newPrettyHandler(out io.Writer, opts *slog.HandlerOptions) *prettyHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}

	return &prettyHandler{mutex: &sync.Mutex{}, out: out, opts: opts}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}

	return level >= min
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder

	if !r.Time.IsZero() {
		stamp := slog.Time(slog.TimeKey, r.Time)
		if h.opts.ReplaceAttr != nil {
			stamp = h.opts.ReplaceAttr(nil, stamp)
		}

		if !stamp.Equal(slog.Attr{}) {
			sb.WriteString(styleTime.Render(stamp.Value.String()))
			sb.WriteByte(' ')
		}
	}

	sb.WriteString(levelStyle(r.Level).Render(levelTag(r.Level)))
	sb.WriteByte(' ')
	sb.WriteString(r.Message)

	for _, attr := range h.attrs {
		h.writeAttr(&sb, attr)
	}

	r.Attrs(func(attr slog.Attr) bool {
		h.writeAttr(&sb, attr)

		return true
	})

	sb.WriteByte('\n')

	h.mutex.Lock()
	defer h.mutex.Unlock()

	_, err := io.WriteString(h.out, sb.String())

	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	dup := *h
	dup.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)

	return &dup
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	dup := *h
	if dup.group != "" {
		name = dup.group + "." + name
	}

	dup.group = name

	return &dup
}

func (h *prettyHandler) writeAttr(sb *strings.Builder, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}

	key := attr.Key
	if h.group != "" {
		key = h.group + "." + key
	}

	sb.WriteByte(' ')
	sb.WriteString(styleKey.Render(key + "="))
	sb.WriteString(fmt.Sprint(attr.Value.Resolve().Any()))
}

func levelTag(level slog.Level) string {
	return strings.ToUpper(Level(level).String())
}

func levelStyle(level slog.Level) lipgloss.Style {
	switch {
	case level >= slog.LevelError:
		return styleError
	case level >= slog.LevelWarn:
		return styleWarn
	case level >= slog.LevelInfo:
		return styleInfo
	default:
		return styleDebug
	}
}
