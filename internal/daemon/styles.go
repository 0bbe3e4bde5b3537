package daemon

import "github.com/charmbracelet/lipgloss"

// Colors follow the purge outcomes used in the text summary:
// red for removals, green for protection, amber for dry-run and waits.
var (
	colorRemoved   = lipgloss.AdaptiveColor{Light: "160", Dark: "203"}
	colorProtected = lipgloss.AdaptiveColor{Light: "28", Dark: "114"}
	colorPending   = lipgloss.AdaptiveColor{Light: "136", Dark: "221"}
	colorActive    = lipgloss.AdaptiveColor{Light: "25", Dark: "75"}
	colorMuted     = lipgloss.AdaptiveColor{Light: "245", Dark: "241"}
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	removedStyle   = lipgloss.NewStyle().Foreground(colorRemoved)
	protectedStyle = lipgloss.NewStyle().Foreground(colorProtected)
	pendingStyle   = lipgloss.NewStyle().Foreground(colorPending)

	tabOnStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorActive).Underline(true)
	tabOffStyle = lipgloss.NewStyle().Foreground(colorMuted)

	badgeStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 2)
)

// phaseBadge renders the loop phase as a colored label.
func phaseBadge(p Phase) string {
	color := colorMuted
	switch p {
	case PhasePurging:
		color = colorActive
	case PhaseWaiting:
		color = colorPending
	}
	return badgeStyle.Foreground(color).Render(p.String())
}

// activity frames shown next to the path being decided.
var activity = []string{"›  ", "›› ", "›››"}
