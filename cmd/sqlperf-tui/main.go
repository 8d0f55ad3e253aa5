package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rmax-ai/sqlperf/pkg/client"
)

// Config
const (
	defaultDaemonURL = "http://localhost:8091"
	requestTimeout   = 2 * time.Minute
	viewportHeight   = 16
	paneWidth        = 48

	timingNote = "Timings vary with caching and in-memory execution. Plans are the reliable signal at scale."
)

// Styles
var (
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(2*paneWidth + 4)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(paneWidth)

	slowTitle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	fastTitle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
)

type scenariosMsg struct {
	scenarios []client.Scenario
	err       error
}

type compareMsg struct {
	comparison client.Comparison
	err        error
}

type model struct {
	api        *client.Client
	spinner    spinner.Model
	viewport   viewport.Model
	scenarios  []client.Scenario
	cursor     int
	running    bool
	comparison *client.Comparison
	err        error
	ready      bool
}

func initialModel(api *client.Client) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		api:      api,
		spinner:  s,
		viewport: newViewport(2*paneWidth + 4),
	}
}

func newViewport(width int) viewport.Model {
	vp := viewport.New(width, viewportHeight)
	vp.Style = lipgloss.NewStyle().PaddingRight(2)
	return vp
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchScenarios(m.api),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "j":
			if m.cursor < len(m.scenarios)-1 {
				m.cursor++
			}
			return m, nil
		case "enter", "r":
			if m.running || len(m.scenarios) == 0 {
				return m, nil
			}
			m.running = true
			m.err = nil
			return m, runComparison(m.api, m.scenarios[m.cursor].ID)
		}
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case scenariosMsg:
		m.ready = true
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.scenarios = msg.scenarios
			sort.Slice(m.scenarios, func(i, j int) bool { return m.scenarios[i].ID < m.scenarios[j].ID })
			if m.cursor >= len(m.scenarios) {
				m.cursor = 0
			}
		}

	case compareMsg:
		m.running = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			cmp := msg.comparison
			m.comparison = &cmp
			m.viewport.SetContent(renderComparison(cmp, m.explanationFor(cmp.ScenarioID)))
			m.viewport.GotoTop()
		}

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
	}

	return m, tea.Batch(cmds...)
}

func renderPane(title lipgloss.Style, res client.RunResult) string {
	var sb strings.Builder
	sb.WriteString(title.Render(strings.ToUpper(res.Variant)) + "\n\n")
	sb.WriteString(fmt.Sprintf("Time:    %d ms\n", res.TimeMs))
	sb.WriteString(fmt.Sprintf("Insight: %s\n\n", res.Insight))
	sb.WriteString(subtleStyle.Render(res.Plan))
	return paneStyle.Render(sb.String())
}

func (m model) explanationFor(id string) client.Explanation {
	for _, s := range m.scenarios {
		if s.ID == id {
			return s.Explanation
		}
	}
	return client.Explanation{}
}

func renderBullets(title lipgloss.Style, heading string, items []string) string {
	if len(items) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(title.Render(heading) + "\n")
	for _, item := range items {
		sb.WriteString("  • " + item + "\n")
	}
	return sb.String()
}

func renderComparison(cmp client.Comparison, ex client.Explanation) string {
	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		renderPane(slowTitle, cmp.Slow),
		renderPane(fastTitle, cmp.Optimized),
	)
	speedup := "Speedup: n/a"
	if cmp.Speedup > 0 {
		speedup = fmt.Sprintf("Speedup: %.1fx", cmp.Speedup)
	}

	parts := []string{panes, okStyle.Render(speedup)}
	if b := renderBullets(slowTitle, "Why is the slow variant slow?", ex.Slow); b != "" {
		parts = append(parts, "", b)
	}
	if b := renderBullets(fastTitle, "What makes the optimized variant fast?", ex.Optimized); b != "" {
		parts = append(parts, b)
	}
	parts = append(parts, subtleStyle.Render(timingNote))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Loading scenarios...", m.spinner.View())
	}

	var list strings.Builder
	list.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Scenarios") + "\n\n")
	if len(m.scenarios) == 0 {
		list.WriteString(subtleStyle.Render("No scenarios available."))
	}
	for i, s := range m.scenarios {
		line := fmt.Sprintf("%s (%s)", s.ID, s.Label)
		if i == m.cursor {
			list.WriteString(selectedStyle.Render("> "+line) + "\n")
		} else {
			list.WriteString("  " + line + "\n")
		}
	}

	title := "Comparison"
	if m.running {
		title = fmt.Sprintf("%s Running slow then optimized...", m.spinner.View())
	}
	header := headerStyle.Render(title)

	body := subtleStyle.Render("Select a scenario and press enter.")
	if m.comparison != nil {
		body = m.viewport.View()
	}

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Online • %d Scenarios", len(m.scenarios)))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\n↑/↓ select • enter compare • q quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, list.String(), header, body, footer)
}

// Commands

func fetchScenarios(api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		list, err := api.Scenarios(ctx)
		return scenariosMsg{scenarios: list, err: err}
	}
}

func runComparison(api *client.Client, scenarioID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		cmp, err := api.Compare(ctx, scenarioID)
		return compareMsg{comparison: cmp, err: err}
	}
}

func main() {
	url := defaultDaemonURL
	if v := os.Getenv("SQLPERF_ENDPOINT"); v != "" {
		url = v
	}
	p := tea.NewProgram(initialModel(client.NewClient(url)), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
