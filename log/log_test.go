package log

import (
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"bogus", DefaultLevel},
		{"", DefaultLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"text", FormatText},
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{" pretty ", FormatPretty},
		{"bogus", DefaultFormat},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseFormat(tt.input); got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var sb strings.Builder

	l := Make(&sb, WithLevel(LevelWarn), WithTimeLayout(""))

	l.Info("dropped")
	l.Warn("kept", slog.String("k", "v"))

	out := sb.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info message not filtered: %q", out)
	}
	if !strings.Contains(out, "kept") || !strings.Contains(out, "k=v") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestLoggerFormats(t *testing.T) {
	for _, format := range []Format{FormatText, FormatJSON, FormatPretty} {
		t.Run(format.String(), func(t *testing.T) {
			var sb strings.Builder

			l := Make(&sb, WithFormat(format), WithTimeLayout(""))
			if l.Format() != format {
				t.Fatalf("Format = %v, want %v", l.Format(), format)
			}

			l.Error("boom", slog.Int("code", 3))

			if !strings.Contains(sb.String(), "boom") {
				t.Errorf("output %q missing message", sb.String())
			}
		})
	}
}

func TestZeroLoggerDiscards(t *testing.T) {
	var l Logger

	// Must not panic.
	l.Debug("a")
	l.Info("b")
	l.Warn("c")
	l.Error("d")
}

func TestWithAttrs(t *testing.T) {
	var sb strings.Builder

	l := Make(&sb, WithTimeLayout("")).With(slog.String("tag", "cycle"))
	l.Info("parsed")

	if !strings.Contains(sb.String(), "tag=cycle") {
		t.Errorf("output %q missing bound attr", sb.String())
	}
}
