package report

import (
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/billingops/account-rescue-cli/internal/application"
	"github.com/billingops/account-rescue-cli/internal/domain"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type renderReadyMsg struct{}

// model renders once and quits; the bubbletea program exists only so the
// output goes through the same styling pipeline as the interactive spinner.
type model struct {
	render func(styles) string
	styles styles
	output string
}

func newModel(render func(styles) string) model {
	return model{render: render, styles: newStyles()}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		return renderReadyMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case renderReadyMsg:
		m.output = m.render(m.styles)
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m model) View() string {
	return m.output
}

func runOnce(render func(styles) string) (string, error) {
	p := tea.NewProgram(
		newModel(render),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := finalModel.(model)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}

// RenderCandidates formats a discovery result for the terminal.
func RenderCandidates(candidates []domain.Account, opts RenderOptions) (string, error) {
	return runOnce(func(s styles) string {
		return renderCandidatesView(candidates, opts, s)
	})
}

// RenderSummary formats the outcome of a rescue run.
func RenderSummary(summary application.RunSummary) (string, error) {
	return runOnce(func(s styles) string {
		return renderSummaryView(summary, s)
	})
}
