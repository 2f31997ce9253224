package editstream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/editstream/internal/ui"
)

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
)

// ErrInterrupted is returned when the user quits the progress UI before
// the run finished.
var ErrInterrupted = errors.New("interrupted")

type summaryMsg struct{ Summary }

type errorMsg struct{ err error }

type progressMsg struct{ current, total int }

type state int

const (
	stateProcessing state = iota
	stateSummary
	stateError
)

type model struct {
	cancel      context.CancelFunc
	spinner     spinner.Model
	state       state
	cur, total  int
	interrupted bool
	summary     Summary
	err         error
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// Quit once the cancelled run reports back.
			if !m.interrupted {
				m.interrupted = true
				m.cancel()
			}
		}

	case progressMsg:
		m.cur, m.total = msg.current, msg.total

	case summaryMsg:
		m.state, m.summary = stateSummary, msg.Summary
		return m, tea.Quit

	case errorMsg:
		m.state, m.err = stateError, msg.err
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateProcessing {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	switch m.state {
	case stateProcessing:
		if m.interrupted {
			return fmt.Sprintf("%s Cancelling...", m.spinner.View())
		}
		if m.total > 0 {
			return fmt.Sprintf("%s Processing... %d/%d", m.spinner.View(), m.cur, m.total)
		}
		return fmt.Sprintf("%s Processing...", m.spinner.View())
	case stateError:
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	default:
		return FormatSummary(m.summary)
	}
}

type runResult struct {
	summary Summary
	err     error
}

// TUI shows a spinner with block progress while the app runs, then the
// summary.
type TUI struct {
	app *App
}

func NewTUI(app *App) *TUI {
	return &TUI{app: app}
}

// Run executes the app behind the progress UI. Quitting the UI cancels the
// run. Run returns only after the app has.
func (t *TUI) Run(ctx context.Context) (Summary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	p := tea.NewProgram(model{cancel: cancel, spinner: s}, tea.WithContext(ctx))
	t.app.SetProgressCallback(func(current, total int) {
		p.Send(progressMsg{current, total})
	})

	done := make(chan runResult, 1)
	go func() {
		summary, err := t.app.Execute(runCtx)
		done <- runResult{summary, err}
		if err != nil {
			p.Send(errorMsg{err})
			return
		}
		p.Send(summaryMsg{summary})
	}()

	final, perr := p.Run()
	cancel()
	res := <-done

	return res.summary, runError(ctx, final, perr, res.err)
}

func runError(ctx context.Context, final tea.Model, perr, runErr error) error {
	if runErr != nil {
		return runErr
	}
	if perr != nil && !errors.Is(perr, tea.ErrProgramKilled) {
		return perr
	}
	if m, ok := final.(model); ok && m.interrupted {
		return ErrInterrupted
	}
	if ctx.Err() != nil {
		return ErrInterrupted
	}
	return nil
}

// FormatSummary renders a run summary for the terminal.
func FormatSummary(s Summary) string {
	var b strings.Builder
	b.WriteString(ui.Header(s.Message))

	for _, d := range s.Diffs {
		b.WriteString(ui.Diff(d.Doc))
	}
	if len(s.Diffs) > 0 {
		b.WriteByte('\n')
	}

	unmatched := make([]string, len(s.Unmatched))
	for i, u := range s.Unmatched {
		unmatched[i] = u.String()
	}

	b.WriteString(ui.List("Created:", ui.KindCreated, s.Created))
	b.WriteString(ui.List("Modified:", ui.KindModified, s.Modified))
	b.WriteString(ui.List("Removed:", ui.KindRemoved, s.Removed))
	b.WriteString(ui.List("Unchanged:", ui.KindUnchanged, s.Unchanged))
	b.WriteString(ui.List("Unmatched:", ui.KindWarning, unmatched))
	b.WriteString(ui.List("Failed:", ui.KindFailed, s.Failed))
	if s.Incomplete != "" {
		b.WriteString(ui.List("Incomplete:", ui.KindFailed, []string{s.Incomplete}))
	}
	if s.Skipped > 0 {
		b.WriteString(ui.List("Skipped:", ui.KindWarning, []string{fmt.Sprintf("%d block(s) without a path", s.Skipped)}))
	}

	if b.Len() == 0 {
		return faintStyle.Render("Nothing to do.") + "\n"
	}
	return b.String()
}
