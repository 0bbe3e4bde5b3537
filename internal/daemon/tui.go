package daemon

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type dashTab int

const (
	tabOverview dashTab = iota
	tabCycle
	tabHistory
	numTabs
)

var tabNames = [numTabs]string{"Overview", "Current Cycle", "History"}

type refreshMsg time.Time

const refreshEvery = 500 * time.Millisecond

// DashboardModel is the Bubbletea model for the purge loop dashboard.
type DashboardModel struct {
	state    *State
	root     string
	snapshot StateSnapshot
	tab      dashTab
	offset   int
	frame    int
	width    int
	height   int
	cancelFn func()
}

// NewDashboardModel creates a dashboard for the loop purging root.
// cancelFn is called when the user stops the loop.
func NewDashboardModel(state *State, root string, cancelFn func()) DashboardModel {
	return DashboardModel{
		state:    state,
		root:     root,
		cancelFn: cancelFn,
	}
}

func (m DashboardModel) Init() tea.Cmd {
	return refresh()
}

func refresh() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		m.snapshot = m.state.Snapshot()
		m.frame++
		return m, refresh()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			if m.cancelFn != nil {
				m.cancelFn()
			}
			return m, tea.Quit
		case "1", "2", "3":
			m.show(dashTab(key[0] - '1'))
		case "tab":
			m.show((m.tab + 1) % numTabs)
		case "j", "down":
			m.offset++
		case "k", "up":
			m.offset = max(m.offset-1, 0)
		case "g":
			m.offset = 0
		}
	}
	return m, nil
}

func (m *DashboardModel) show(t dashTab) {
	m.tab = t
	m.offset = 0
}

func (m DashboardModel) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var body string
	switch m.tab {
	case tabOverview:
		body = m.overview()
	case tabCycle:
		body = m.cycle()
	case tabHistory:
		body = m.history()
	}

	// header (2) + tabs (1) + spacing (2) + footer (1)
	rows := max(m.height-6, 3)
	return strings.Join([]string{
		m.header(),
		m.tabBar(),
		"",
		m.clip(body, rows),
		mutedStyle.Render("1-3 tabs · tab next · j/k scroll · g top · q stop"),
	}, "\n")
}

// clip returns exactly rows lines of body starting at the scroll offset.
func (m *DashboardModel) clip(body string, rows int) string {
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	m.offset = min(m.offset, max(len(lines)-rows, 0))
	lines = lines[m.offset:min(m.offset+rows, len(lines))]
	for len(lines) < rows {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m DashboardModel) header() string {
	snap := m.snapshot
	detail := ""
	if snap.PhaseMsg != "" {
		detail = mutedStyle.Render(snap.PhaseMsg)
	}
	up := time.Since(snap.StartedAt).Round(time.Second)
	return titleStyle.Render("purgelogs "+m.root) +
		mutedStyle.Render(fmt.Sprintf("  up %s · %d cycles", up, snap.TotalCycles)) +
		"\n" + phaseBadge(snap.Phase) + " " + detail
}

func (m DashboardModel) tabBar() string {
	parts := make([]string, 0, numTabs)
	for i, name := range tabNames {
		label := fmt.Sprintf("%d %s", i+1, name)
		if dashTab(i) == m.tab {
			parts = append(parts, tabOnStyle.Render(label))
		} else {
			parts = append(parts, tabOffStyle.Render(label))
		}
	}
	return strings.Join(parts, "   ")
}

func card(label string, value int, style lipgloss.Style) string {
	return cardStyle.Render(mutedStyle.Render(label) + "\n" + style.Render(fmt.Sprint(value)))
}

func (m DashboardModel) overview() string {
	snap := m.snapshot
	var b strings.Builder

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		card("Removed", snap.TotalDeleted, removedStyle),
		card("Failed cycles", snap.TotalFailures, removedStyle),
		card("Cycles", snap.TotalCycles, titleStyle),
	))
	b.WriteString("\n")

	if snap.Phase == PhaseWaiting && !snap.NextRunAt.IsZero() {
		wait := max(time.Until(snap.NextRunAt).Round(time.Second), 0)
		fmt.Fprintf(&b, "Next cycle in %s\n", pendingStyle.Render(wait.String()))
	}

	if len(snap.History) > 0 {
		b.WriteString("\nLast cycles\n")
		for _, h := range snap.History[:min(5, len(snap.History))] {
			fmt.Fprintf(&b, "  %s %s  -%d  +%d protected  %s  %s\n",
				shortID(h.CycleID), mutedStyle.Render(h.StartedAt.Format(time.TimeOnly)),
				h.Deleted, h.Protected, h.Duration.Round(time.Millisecond), outcome(h))
		}
	}
	return b.String()
}

func (m DashboardModel) cycle() string {
	cur := m.snapshot.Current
	if cur == nil || m.snapshot.Phase != PhasePurging {
		return mutedStyle.Render("No active cycle")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Cycle %s, %s elapsed, %d job dirs decided\n\n",
		shortID(cur.CycleID), time.Since(cur.StartedAt).Round(time.Second), cur.Visited)
	fmt.Fprintf(&b, "  %-10s %s\n", "removed", removedStyle.Render(fmt.Sprint(cur.Deleted)))
	fmt.Fprintf(&b, "  %-10s %s\n", "protected", protectedStyle.Render(fmt.Sprint(cur.Protected)))
	fmt.Fprintf(&b, "  %-10s %d\n", "kept", cur.Kept)
	if bar := outcomeBar(cur, 40); bar != "" {
		b.WriteString("\n  " + bar + "\n")
	}
	if cur.LastPath != "" {
		fmt.Fprintf(&b, "\n%s %s\n", activity[m.frame%len(activity)], cur.LastPath)
	}
	return b.String()
}

// outcomeBar splits width cells between removed, protected and kept decisions.
func outcomeBar(cur *LiveCycle, width int) string {
	if cur.Visited == 0 {
		return ""
	}
	removed := cur.Deleted * width / cur.Visited
	protected := cur.Protected * width / cur.Visited
	kept := width - removed - protected
	return removedStyle.Render(strings.Repeat("█", removed)) +
		protectedStyle.Render(strings.Repeat("█", protected)) +
		mutedStyle.Render(strings.Repeat("░", kept))
}

func (m DashboardModel) history() string {
	if len(m.snapshot.History) == 0 {
		return mutedStyle.Render("No completed cycles")
	}

	var b strings.Builder
	row := "%-9s %-9s %7s %8s %10s %6s %9s  %s\n"
	fmt.Fprintf(&b, row, "CYCLE", "STARTED", "JOBS", "REMOVED", "PROTECTED", "KEPT", "TOOK", "RESULT")
	for _, h := range m.snapshot.History {
		fmt.Fprintf(&b, row,
			shortID(h.CycleID), h.StartedAt.Format(time.TimeOnly),
			fmt.Sprint(h.JobDirs), fmt.Sprint(h.Deleted), fmt.Sprint(h.Protected), fmt.Sprint(h.Kept),
			h.Duration.Round(time.Millisecond), outcome(h))
	}
	return b.String()
}

func outcome(h CycleSummary) string {
	switch {
	case h.Error != "":
		return removedStyle.Render("error: " + h.Error)
	case h.DryRun:
		return pendingStyle.Render("dry-run")
	}
	return protectedStyle.Render("ok")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
