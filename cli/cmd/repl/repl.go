// Package repl implements an interactive evaluator for the expression
// sub-language, with fuzzy completion and persistent history.
package repl

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/legutierr/blocktags/cli/cmd"
	"github.com/legutierr/blocktags/expr"
)

// HistoryDirIdentifier is the kong variable naming the default history
// directory.
const HistoryDirIdentifier = "historyDir"

// Cmd starts the interactive evaluator.
type Cmd struct {
	Context    string `help:"YAML context file"             short:"c"`
	HistoryDir string `help:"Directory for history file"              default:"${historyDir}" type:"path"`
}

// Run executes the repl command.
func (r *Cmd) Run(ctx context.Context) error {
	ec, err := cmd.LoadContext(r.Context)
	if err != nil {
		return err
	}

	history := NewHistory(filepath.Join(r.HistoryDir, baseHistory))
	if err := history.Load(); err != nil {
		slog.WarnContext(ctx, "could not load history",
			slog.String("error", err.Error()))
	}

	p := tea.NewProgram(newModel(ec, history), tea.WithContext(ctx))
	_, err = p.Run()

	return err
}

const (
	prompt       = "➜ "
	defaultWidth = 80
	maxShown     = 8
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Bold(true)
	resultStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	selectedStyle   = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("4"))
)

func helpMessage() string {
	return `
Commands:

  :help    Print this cruft
  :vars    List top-level context variables
  :quit    Exit

Usage:
  Type an expression to evaluate it (context variables are in scope)
  Completions appear automatically as you type
  Press Tab / Shift-Tab to cycle through candidates
  Use Up/Down arrows for history navigation
  Press Ctrl+C or Ctrl+D to exit
`
}

// model is the Bubble Tea model for the REPL.
type model struct {
	ec           *expr.Context
	input        textinput.Model
	history      *History
	historyIdx   int
	draft        string        // pending input saved during history navigation
	matches      fuzzy.Matches // current fuzzy match results
	wordStart    int           // byte offset of current word start
	wordEnd      int           // byte offset of current word end
	suggIdx      int           // selected candidate index
	tabActive    bool          // whether user is tab-cycling
	preTabText   string        // input text before tab-cycling began
	preTabCursor int           // cursor position before tab-cycling began
	width        int
	quitting     bool
}

func newModel(ec *expr.Context, history *History) model {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render(prompt)
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = defaultWidth

	return model{
		ec:         ec,
		input:      ti,
		history:    history,
		historyIdx: history.Len(),
		width:      defaultWidth,
	}
}

func (m model) Init() tea.Cmd { return textinput.Blink }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - len(prompt)

		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+d":
			m.quitting = true

			return m, tea.Quit

		case "ctrl+c":
			if m.input.Value() == "" {
				m.quitting = true

				return m, tea.Quit
			}

			m.input.SetValue("")
			m.resetCompletion()

			return m, nil

		case "enter":
			return m.submit()

		case "up":
			m.navigateHistory(-1)

			return m, nil

		case "down":
			m.navigateHistory(+1)

			return m, nil

		case "tab":
			m.cycle(+1)

			return m, nil

		case "shift+tab":
			m.cycle(-1)

			return m, nil
		}
	}

	var blink tea.Cmd

	m.input, blink = m.input.Update(msg)
	m.tabActive = false
	m.refreshCompletion()

	return m, blink
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	sb.WriteString(m.input.View())
	sb.WriteByte('\n')

	if sugg := m.renderSuggestions(); sugg != "" {
		sb.WriteString(sugg)
		sb.WriteByte('\n')
	}

	sb.WriteString(hintStyle.Render(
		"tab: complete | up/down: history | :help | ctrl+d: exit"))
	sb.WriteByte('\n')

	return sb.String()
}

// submit evaluates the current line, or dispatches it as a control
// command when it begins with a colon.
func (m model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}

	if err := m.history.Write(line); err != nil {
		slog.Warn("could not write history", slog.String("error", err.Error()))
	}

	m.historyIdx = m.history.Len()
	m.draft = ""
	m.input.SetValue("")
	m.resetCompletion()

	echo := promptStyle.Render(prompt) + line

	if rest, ok := strings.CutPrefix(line, ":"); ok {
		return m.control(echo, strings.TrimSpace(rest))
	}

	result, err := cmd.Evaluate(m.ec, line)
	if err != nil {
		return m, tea.Println(echo + "\n" + errorStyle.Render(err.Error()))
	}

	return m, tea.Println(echo + "\n" + resultStyle.Render(expr.Stringify(result)))
}

func (m model) control(echo, name string) (tea.Model, tea.Cmd) {
	switch name {
	case "quit", "exit":
		m.quitting = true

		return m, tea.Quit

	case "help":
		return m, tea.Println(echo + "\n" + hintStyle.Render(helpMessage()))

	case "vars":
		names := make([]string, 0, len(m.ec.Vars))
		for name, value := range m.ec.Vars {
			names = append(names, fmt.Sprintf("  %s = %s",
				name, expr.Stringify(value)))
		}

		slices.Sort(names)

		return m, tea.Println(echo + "\n" + strings.Join(names, "\n"))

	default:
		return m, tea.Println(echo + "\n" +
			errorStyle.Render(fmt.Sprintf("unknown command %q (try :help)", name)))
	}
}

func (m *model) navigateHistory(delta int) {
	idx := m.historyIdx + delta
	if idx < 0 || idx > m.history.Len() {
		return
	}

	if m.historyIdx == m.history.Len() && delta < 0 {
		m.draft = m.input.Value()
	}

	m.historyIdx = idx

	if idx == m.history.Len() {
		m.input.SetValue(m.draft)
	} else if line, ok := m.history.At(idx); ok {
		m.input.SetValue(line)
	}

	m.input.CursorEnd()
	m.resetCompletion()
}

// refreshCompletion recomputes the fuzzy matches for the word at the
// cursor.
func (m *model) refreshCompletion() {
	word, start, end := wordBounds(m.input.Value(), m.input.Position())

	m.wordStart, m.wordEnd = start, end
	m.suggIdx = 0
	m.matches = nil

	if word == "" {
		return
	}

	m.matches = fuzzy.Find(word, candidates(m.ec, m.input.Value(), start))
}

func (m *model) resetCompletion() {
	m.matches = nil
	m.suggIdx = 0
	m.tabActive = false
}

// cycle steps through the current candidates, splicing the selected one
// into the input in place of the word being completed.
func (m *model) cycle(delta int) {
	if len(m.matches) == 0 {
		return
	}

	if !m.tabActive {
		m.tabActive = true
		m.preTabText = m.input.Value()
		m.preTabCursor = m.input.Position()
		m.suggIdx = 0
	} else {
		n := len(m.matches)
		m.suggIdx = (m.suggIdx + delta + n) % n
	}

	chosen := m.matches[m.suggIdx].Str
	spliced := m.preTabText[:m.wordStart] + chosen + m.preTabText[m.wordEnd:]

	m.input.SetValue(spliced)
	m.input.SetCursor(m.wordStart + len(chosen))
}

// renderSuggestions formats the current candidate row, ellipsized to the
// terminal width.
func (m model) renderSuggestions() string {
	if len(m.matches) == 0 {
		return ""
	}

	parts := make([]string, 0, maxShown)

	for i, match := range m.matches {
		if i == maxShown {
			parts = append(parts, hintStyle.Render("…"))

			break
		}

		style := suggestionStyle
		if m.tabActive && i == m.suggIdx {
			style = selectedStyle
		}

		parts = append(parts, style.Render(match.Str))
	}

	return strings.Join(parts, " ")
}
