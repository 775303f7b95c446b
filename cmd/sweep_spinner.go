package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/bnema/session-tokens/internal/domain"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type sweepFinishedMsg struct {
	results []domain.ComplianceResult
	err     error
}

// sweepProgress shows a spinner with the number of live sessions being
// checked, then leaves the sweep tally as its last frame.
type sweepProgress struct {
	spinner spinner.Model
	live    int
	sweep   tea.Cmd
	results []domain.ComplianceResult
	err     error
	done    bool
}

func newSweepProgress(live int, sweep tea.Cmd) sweepProgress {
	return sweepProgress{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("203"))),
		),
		live:  live,
		sweep: sweep,
	}
}

func (m sweepProgress) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.sweep)
}

func (m sweepProgress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sweepFinishedMsg:
		m.results, m.err, m.done = msg.results, msg.err, true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m sweepProgress) View() string {
	if m.done {
		return summarizeSweep(m.results) + "\n"
	}
	return fmt.Sprintf("%s sweeping %d live %s", m.spinner.View(), m.live, plural(m.live, "session", "sessions"))
}

func runSweepProgress(ctx context.Context, output io.Writer, live int, sweep func(context.Context) ([]domain.ComplianceResult, error)) ([]domain.ComplianceResult, error) {
	final, err := tea.NewProgram(
		newSweepProgress(live, func() tea.Msg {
			results, err := sweep(ctx)
			return sweepFinishedMsg{results: results, err: err}
		}),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	).Run()
	if err != nil {
		return nil, err
	}

	m, ok := final.(sweepProgress)
	if !ok {
		return nil, fmt.Errorf("sweep progress finished with %T", final)
	}
	return m.results, m.err
}

// summarizeSweep tallies results by what the sweep did to each session.
func summarizeSweep(results []domain.ComplianceResult) string {
	var compliant, paused, timedOut, skipped int
	for _, result := range results {
		switch {
		case result.TimedOut:
			timedOut++
		case result.Paused:
			paused++
		case result.Skipped:
			skipped++
		case result.Compliant:
			compliant++
		}
	}

	return fmt.Sprintf("swept %d %s: %d compliant, %d paused, %d timed out, %d skipped",
		len(results), plural(len(results), "session", "sessions"), compliant, paused, timedOut, skipped)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
