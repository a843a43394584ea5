package spectator

import "github.com/charmbracelet/lipgloss"

var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleArena = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))

	styleAlive = lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true)

	styleDead = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	styleEvent = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	styleChat = lipgloss.NewStyle().
			Foreground(lipgloss.Color("117"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	styleWinner = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Bold(true)
)
