package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/billingops/account-rescue-cli/internal/ports"
)

type discoverDoneMsg struct {
	err error
}

type discoverProgressMsg struct {
	event ports.ProgressEvent
}

type discoverSpinnerModel struct {
	spinner    spinner.Model
	fetch      tea.Cmd
	page       int
	fetched    int
	candidates int
	err        error
	done       bool
}

func newDiscoverSpinnerModel(fetch tea.Cmd) discoverSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return discoverSpinnerModel{
		spinner: s,
		fetch:   fetch,
	}
}

func (m discoverSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch)
}

func (m discoverSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case discoverProgressMsg:
		if msg.event.Kind == ports.ProgressPage {
			m.page = msg.event.Page
			m.fetched = msg.event.Fetched
			m.candidates = msg.event.Total
		}
		return m, nil
	case discoverDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m discoverSpinnerModel) View() string {
	if m.done {
		return ""
	}

	if m.page == 0 {
		return fmt.Sprintf("%s Scanning accounts...", m.spinner.View())
	}

	return fmt.Sprintf("%s Scanning accounts... page %d, %d fetched, %d candidate(s)",
		m.spinner.View(), m.page, m.fetched, m.candidates)
}

// runDiscoverSpinner runs fetch behind an animated status line. Discovery
// events are forwarded to base (the structured log) and also drive the
// on-screen paging counters.
func runDiscoverSpinner(ctx context.Context, output io.Writer, base ports.ProgressFunc, fetch func(context.Context, ports.ProgressFunc) error) error {
	var p *tea.Program

	// p is assigned before Run starts the fetch command, and Send is safe
	// from the fetch goroutine.
	progress := func(event ports.ProgressEvent) {
		if base != nil {
			base(event)
		}
		p.Send(discoverProgressMsg{event: event})
	}

	fetchCmd := func() tea.Msg {
		return discoverDoneMsg{err: fetch(ctx, progress)}
	}

	p = tea.NewProgram(
		newDiscoverSpinnerModel(fetchCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(discoverSpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}
