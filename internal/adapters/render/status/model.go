package status

import (
	"fmt"
	"io"

	"github.com/bnema/session-tokens/internal/domain"
	tea "github.com/charmbracelet/bubbletea"
)

// row is one session placed in the forest, depth 0 for roots.
type row struct {
	token domain.Token
	depth int
}

type layoutMsg struct {
	rows  []row
	tally map[domain.State]int
}

type forestModel struct {
	tokens []domain.Token
	opts   RenderOptions
	styles styles
	frame  string
}

// Init lays the sessions out as a forest; the first frame is the final one.
func (m forestModel) Init() tea.Cmd {
	tokens := m.tokens
	return func() tea.Msg {
		return layoutMsg{rows: layoutForest(tokens), tally: tallyStates(tokens)}
	}
}

func (m forestModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if layout, ok := msg.(layoutMsg); ok {
		m.frame = renderView(layout.rows, layout.tally, m.opts, m.styles)
		return m, tea.Quit
	}
	return m, nil
}

func (m forestModel) View() string {
	return m.frame
}

// Render lays tokens out parent first, children indented under their parent
// in ChildIDs order. Sessions whose parent is not in tokens are shown as roots.
func Render(tokens []domain.Token, opts RenderOptions) (string, error) {
	final, err := tea.NewProgram(
		forestModel{tokens: tokens, opts: opts, styles: newStyles()},
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	).Run()
	if err != nil {
		return "", fmt.Errorf("run session renderer: %w", err)
	}

	m, ok := final.(forestModel)
	if !ok {
		return "", fmt.Errorf("session renderer finished with %T", final)
	}
	return m.View(), nil
}

func layoutForest(tokens []domain.Token) []row {
	byID := make(map[domain.TokenID]domain.Token, len(tokens))
	for _, token := range tokens {
		byID[token.ID] = token
	}

	rows := make([]row, 0, len(tokens))
	placed := make(map[domain.TokenID]bool, len(tokens))

	var place func(token domain.Token, depth int)
	place = func(token domain.Token, depth int) {
		if placed[token.ID] {
			return
		}
		placed[token.ID] = true
		rows = append(rows, row{token: token, depth: depth})
		for _, childID := range token.ChildIDs {
			if child, ok := byID[childID]; ok {
				place(child, depth+1)
			}
		}
	}

	for _, token := range tokens {
		if _, hasParent := byID[token.ParentID]; token.IsRoot() || !hasParent {
			place(token, 0)
		}
	}
	// Children the parent does not list still get a row.
	for _, token := range tokens {
		place(token, 0)
	}

	return rows
}

func tallyStates(tokens []domain.Token) map[domain.State]int {
	tally := make(map[domain.State]int, 3)
	for _, token := range tokens {
		tally[token.State]++
	}
	return tally
}
