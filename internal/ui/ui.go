// Package ui provides the terminal board: what to do next, what has gone
// stale, and the open task list.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/taskpilot/internal/tasks"
)

// Panel represents which panel is currently focused.
type Panel int

const (
	PanelNext Panel = iota
	PanelStale
	PanelTasks
)

const panelCount = 3

const loadTimeout = 2 * time.Minute

// Model holds the board state.
type Model struct {
	source Source
	ctx    context.Context

	width       int
	height      int
	activePanel Panel
	quitting    bool

	loading bool
	spinner spinner.Model
	snap    *Snapshot
	err     error
	status  string

	open     []tasks.Task
	selected int

	styles *Styles
}

// Styles holds lipgloss styles for the board.
type Styles struct {
	ActiveBorder   lipgloss.Style
	InactiveBorder lipgloss.Style

	Title     lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Highlight lipgloss.Style
	Muted     lipgloss.Style

	StatusOK    lipgloss.Style
	StatusWarn  lipgloss.Style
	StatusError lipgloss.Style

	TaskSelected lipgloss.Style

	PriorityUrgent lipgloss.Style
	PriorityHigh   lipgloss.Style
	PriorityNormal lipgloss.Style

	HelpKey  lipgloss.Style
	HelpText lipgloss.Style
}

func newStyles() *Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#666", Dark: "#888"}
	highlight := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	green := lipgloss.AdaptiveColor{Light: "#22863a", Dark: "#3fb950"}
	yellow := lipgloss.AdaptiveColor{Light: "#b08800", Dark: "#d29922"}
	red := lipgloss.AdaptiveColor{Light: "#cb2431", Dark: "#f85149"}

	return &Styles{
		ActiveBorder: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight),
		InactiveBorder: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtle),

		Title:     lipgloss.NewStyle().Bold(true).Foreground(highlight).MarginBottom(1),
		Label:     lipgloss.NewStyle().Foreground(subtle),
		Value:     lipgloss.NewStyle().Bold(true),
		Highlight: lipgloss.NewStyle().Foreground(highlight).Bold(true),
		Muted:     lipgloss.NewStyle().Foreground(subtle),

		StatusOK:    lipgloss.NewStyle().Foreground(green).Bold(true),
		StatusWarn:  lipgloss.NewStyle().Foreground(yellow).Bold(true),
		StatusError: lipgloss.NewStyle().Foreground(red).Bold(true),

		TaskSelected: lipgloss.NewStyle().
			Background(highlight).
			Foreground(lipgloss.Color("#fff")).
			Bold(true),

		PriorityUrgent: lipgloss.NewStyle().Foreground(red).Bold(true),
		PriorityHigh:   lipgloss.NewStyle().Foreground(yellow),
		PriorityNormal: lipgloss.NewStyle().Foreground(subtle),

		HelpKey:  lipgloss.NewStyle().Foreground(highlight).Bold(true),
		HelpText: lipgloss.NewStyle().Foreground(subtle),
	}
}

// loadedMsg carries a finished load.
type loadedMsg struct {
	snap *Snapshot
	err  error
}

// toggledMsg reports a finished completion toggle.
type toggledMsg struct {
	id  string
	err error
}

// New creates a board reading from src.
func New(ctx context.Context, src Source) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &Model{
		source:  src,
		ctx:     ctx,
		width:   100,
		height:  30,
		loading: true,
		spinner: sp,
		styles:  newStyles(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, loadTimeout)
		defer cancel()
		snap, err := m.source.Load(ctx)
		return loadedMsg{snap: snap, err: err}
	}
}

func (m Model) toggle(id string) tea.Cmd {
	return func() tea.Msg {
		return toggledMsg{id: id, err: m.source.Toggle(m.ctx, id)}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.snap = msg.snap
			m.open = tasks.Incomplete(msg.snap.Tasks)
			if m.selected >= len(m.open) {
				m.selected = max(0, len(m.open)-1)
			}
			m.status = "updated " + msg.snap.LoadedAt.Format("15:04:05")
		}
		return m, nil

	case toggledMsg:
		if msg.err != nil {
			m.status = "toggle failed: " + msg.err.Error()
			return m, nil
		}
		m.status = "completed " + msg.id
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, m.load())

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab", "right", "l":
		m.activePanel = (m.activePanel + 1) % panelCount
		return m, nil

	case "shift+tab", "left", "h":
		m.activePanel = (m.activePanel + panelCount - 1) % panelCount
		return m, nil

	case "up", "k":
		if m.activePanel == PanelTasks && m.selected > 0 {
			m.selected--
		}
		return m, nil

	case "down", "j":
		if m.activePanel == PanelTasks && m.selected < len(m.open)-1 {
			m.selected++
		}
		return m, nil

	case "home", "g":
		m.selected = 0
		return m, nil

	case "end", "G":
		m.selected = max(0, len(m.open)-1)
		return m, nil

	case "r":
		if m.loading {
			return m, nil
		}
		m.loading = true
		m.status = "refreshing"
		return m, tea.Batch(m.spinner.Tick, m.load())

	case "x", " ":
		if m.activePanel != PanelTasks || m.loading || len(m.open) == 0 {
			return m, nil
		}
		return m, m.toggle(m.open[m.selected].ID)
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	topHeight := m.height / 2
	bottomHeight := m.height - topHeight - 3
	leftWidth := m.width / 2
	rightWidth := m.width - leftWidth

	nextPanel := m.getBorder(PanelNext).Width(leftWidth - 2).Height(topHeight - 2).
		Render(m.renderNextPanel(leftWidth - 4))
	stalePanel := m.getBorder(PanelStale).Width(rightWidth - 2).Height(topHeight - 2).
		Render(m.renderStalePanel(rightWidth - 4))
	taskPanel := m.getBorder(PanelTasks).Width(m.width - 2).Height(bottomHeight - 2).
		Render(m.renderTaskPanel(bottomHeight - 2))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, nextPanel, stalePanel),
		taskPanel,
		m.renderHelpBar(),
	)
}

func (m Model) getBorder(panel Panel) lipgloss.Style {
	if m.activePanel == panel {
		return m.styles.ActiveBorder
	}
	return m.styles.InactiveBorder
}

func (m Model) renderNextPanel(width int) string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Next Up"))
	b.WriteString("\n")

	switch {
	case m.loading && m.snap == nil:
		b.WriteString(m.spinner.View() + " asking the assistant...")
		return b.String()
	case m.err != nil:
		b.WriteString(m.styles.StatusError.Render("load failed: " + m.err.Error()))
		return b.String()
	case m.snap == nil || len(m.snap.Tasks) == 0:
		b.WriteString(m.styles.Muted.Render("No tasks yet"))
		return b.String()
	case m.snap.RecommendErr != nil:
		b.WriteString(m.styles.StatusWarn.Render("Recommendations unavailable"))
		return b.String()
	}

	set := m.snap.Recommendations
	if set == nil || len(set.Recommendations) == 0 {
		b.WriteString(m.styles.Muted.Render("Nothing to recommend"))
		return b.String()
	}
	for i, r := range set.Recommendations {
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, m.styles.Highlight.Render(fmt.Sprintf("%3d", r.Score)), r.Title)
		if r.Reason != "" {
			b.WriteString("   " + m.styles.Muted.Render(truncate(r.Reason, width-3)) + "\n")
		}
		if len(r.BlockedBy) > 0 {
			b.WriteString("   " + m.styles.StatusWarn.Render("blocked by "+strings.Join(m.titles(r.BlockedBy), ", ")) + "\n")
		}
	}
	if set.Insights != "" {
		b.WriteString("\n" + m.styles.Label.Render(truncate(set.Insights, width*2)))
	}
	return b.String()
}

func (m Model) renderStalePanel(width int) string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Gone Quiet"))
	b.WriteString("\n")

	if m.snap == nil || len(m.snap.StaleTasks) == 0 {
		b.WriteString(m.styles.Muted.Render("Nothing stale"))
		return b.String()
	}

	for _, t := range m.snap.StaleTasks {
		fmt.Fprintf(&b, "%s %s\n", m.styles.StatusWarn.Render(fmt.Sprintf("%2dd", t.DaysSinceUpdate)), t.Title)
		if m.snap.Stale != nil {
			if msg := m.snap.Stale.TaskMessages[t.ID]; msg != "" {
				b.WriteString("    " + m.styles.Muted.Render(truncate(msg, width-4)) + "\n")
			}
		}
	}
	if m.snap.Stale != nil && m.snap.Stale.ActionSuggestion != "" {
		b.WriteString("\n" + m.styles.Label.Render(truncate(m.snap.Stale.ActionSuggestion, width*2)))
	}
	return b.String()
}

func (m Model) renderTaskPanel(height int) string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(fmt.Sprintf("Open Tasks (%d)", len(m.open))))
	b.WriteString("\n")

	if len(m.open) == 0 {
		b.WriteString(m.styles.Muted.Render("All done"))
		return b.String()
	}

	visible := max(1, height-3)
	start := 0
	if m.selected >= visible {
		start = m.selected - visible + 1
	}

	for i := start; i < len(m.open) && i < start+visible; i++ {
		t := m.open[i]
		line := fmt.Sprintf(" %s %-9s %s", m.priorityStyle(t.Priority).Render(fmt.Sprintf("%-6s", t.Priority)), t.Category, t.Title)
		if i == m.selected && m.activePanel == PanelTasks {
			line = m.styles.TaskSelected.Render(line)
		}
		b.WriteString(line + "\n")
	}
	if len(m.open) > visible {
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf(" [%d/%d]", m.selected+1, len(m.open))))
	}
	return b.String()
}

func (m Model) priorityStyle(p tasks.Priority) lipgloss.Style {
	switch p {
	case tasks.PriorityUrgent:
		return m.styles.PriorityUrgent
	case tasks.PriorityHigh:
		return m.styles.PriorityHigh
	default:
		return m.styles.PriorityNormal
	}
}

func (m Model) renderHelpBar() string {
	helpItems := []struct {
		key  string
		desc string
	}{
		{"tab", "switch panel"},
		{"j/k", "up/down"},
		{"x", "toggle done"},
		{"r", "refresh"},
		{"q", "quit"},
	}

	parts := make([]string, 0, len(helpItems))
	for _, item := range helpItems {
		parts = append(parts, fmt.Sprintf("%s %s",
			m.styles.HelpKey.Render(item.key),
			m.styles.HelpText.Render(item.desc),
		))
	}

	bar := "  " + strings.Join(parts, "  |  ")
	if m.loading && m.snap != nil {
		bar += "  " + m.spinner.View()
	}
	if m.status != "" {
		bar += "  " + m.styles.Muted.Render(m.status)
	}
	return bar
}

// titles maps ids to task titles, falling back to the id.
func (m Model) titles(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id
		if m.snap == nil {
			continue
		}
		for _, t := range m.snap.Tasks {
			if t.ID == id {
				out[i] = t.Title
				break
			}
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// Run starts the board in the alternate screen.
func (m *Model) Run() error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	return err
}
