package spectator

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"puppet-arena/server/internal/net/proto"
	"puppet-arena/server/internal/world"
)

const (
	arenaCols  = 40
	arenaRows  = 16
	maxLogRows = 200
)

// frameMsg carries one server frame into the Update loop.
type frameMsg Frame

// closedMsg signals that the frame channel is exhausted.
type closedMsg struct{}

// Model is the Bubble Tea model for the spectator.
type Model struct {
	frames <-chan Frame

	gameID string
	state  *world.GameState

	roster table.Model
	log    viewport.Model
	lines  []string

	width    int
	height   int
	ready    bool
	closed   bool
	quitting bool
}

func New(frames <-chan Frame) Model {
	columns := []table.Column{
		{Title: "", Width: 1},
		{Title: "Puppet", Width: 14},
		{Title: "Pos", Width: 11},
		{Title: "Target", Width: 10},
		{Title: "Last", Width: 22},
	}
	t := table.New(table.WithColumns(columns), table.WithHeight(8))
	return Model{frames: frames, roster: t}
}

// Run starts the Bubble Tea program reading from frames.
func Run(frames <-chan Frame) error {
	p := tea.NewProgram(New(frames), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func waitForFrame(frames <-chan Frame) tea.Cmd {
	return func() tea.Msg {
		frame, ok := <-frames
		if !ok {
			return closedMsg{}
		}
		return frameMsg(frame)
	}
}

func (m Model) Init() tea.Cmd {
	return waitForFrame(m.frames)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		logHeight := m.height - arenaRows - 4
		if logHeight < 3 {
			logHeight = 3
		}
		if !m.ready {
			m.log = viewport.New(m.width, logHeight)
			m.ready = true
		} else {
			m.log.Width = m.width
			m.log.Height = logHeight
		}
		m.refreshLog()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.log, cmd = m.log.Update(msg)
			return m, cmd
		}
		return m, nil

	case frameMsg:
		m = m.apply(Frame(msg))
		return m, waitForFrame(m.frames)

	case closedMsg:
		m.closed = true
		m = m.appendLines(styleError.Render("[connection closed]"))
		return m, nil
	}
	return m, nil
}

// apply folds one frame into the model.
func (m Model) apply(frame Frame) Model {
	switch frame.Type {
	case proto.TypeGameStarted:
		m.gameID = frame.GameID
		return m.appendLines(styleEvent.Render(fmt.Sprintf("[match %s started]", frame.GameID)))
	case proto.TypeError:
		return m.appendLines(styleError.Render(fmt.Sprintf("[error %s] %s", frame.Code, frame.Message)))
	case proto.TypeStateUpdate:
		if frame.State == nil {
			return m
		}
		if frame.GameID != "" {
			m.gameID = frame.GameID
		}
		return m.applyState(frame.State)
	}
	return m
}

func (m Model) applyState(state *world.GameState) Model {
	var fresh []string
	var prevEvents []world.Event
	var prevMessages []world.Message
	if m.state != nil && state.TurnNumber >= m.state.TurnNumber {
		prevEvents = m.state.Events
		prevMessages = m.state.Messages
	}
	for _, e := range since(prevEvents, state.Events) {
		// Moves show in the roster and talk in the chat lines below.
		if e.Kind == world.EventMove || e.Kind == world.EventTalk {
			continue
		}
		fresh = append(fresh, styleEvent.Render(describeEvent(e)))
	}
	for _, msg := range since(prevMessages, state.Messages) {
		fresh = append(fresh, styleChat.Render(fmt.Sprintf("%s: %s", msg.From, msg.Content)))
	}

	m.state = state
	m.roster.SetRows(rosterRows(state))
	return m.appendLines(fresh...)
}

// since returns the suffix of next that follows the last entry of prev. Both
// logs are sliding windows, so the overlap is located by value.
func since[T comparable](prev, next []T) []T {
	if len(prev) == 0 {
		return next
	}
	last := prev[len(prev)-1]
	for i := len(next) - 1; i >= 0; i-- {
		if next[i] == last {
			return next[i+1:]
		}
	}
	return next
}

func (m Model) appendLines(lines ...string) Model {
	if len(lines) == 0 {
		return m
	}
	m.lines = append(m.lines, lines...)
	if len(m.lines) > maxLogRows {
		m.lines = m.lines[len(m.lines)-maxLogRows:]
	}
	m.refreshLog()
	return m
}

func (m *Model) refreshLog() {
	if !m.ready {
		return
	}
	m.log.SetContent(strings.Join(m.lines, "\n"))
	m.log.GotoBottom()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Connecting..."
	}
	var arena string
	if m.state != nil {
		arena = styleArena.Render(renderArena(m.state, arenaCols, arenaRows))
	} else {
		arena = styleArena.Render(strings.Repeat(strings.Repeat(" ", arenaCols)+"\n", arenaRows-1) + strings.Repeat(" ", arenaCols))
	}
	top := lipgloss.JoinHorizontal(lipgloss.Top, arena, " ", m.roster.View())
	return top + "\n" + m.log.View() + "\n" + m.renderStatusBar()
}

func (m Model) renderStatusBar() string {
	parts := []string{"match " + orDash(m.gameID)}
	if m.state != nil {
		parts = append(parts,
			fmt.Sprintf("turn %d", m.state.TurnNumber),
			fmt.Sprintf("%d/%d alive", m.state.LivingCount(), len(m.state.Puppets)))
		if m.state.Completed {
			winner := "nobody"
			if m.state.Winner != "" {
				winner = m.state.Winner
				if p, ok := m.state.Puppet(m.state.Winner); ok && p.Name != "" {
					winner = p.Name
				}
			}
			parts = append(parts, styleWinner.Render("winner: "+winner))
		}
	}
	if m.closed {
		parts = append(parts, "disconnected")
	}
	bar := " " + strings.Join(parts, " | ")
	if m.width > 0 && lipgloss.Width(bar) < m.width {
		bar += strings.Repeat(" ", m.width-lipgloss.Width(bar))
	}
	return styleStatusBar.Render(bar)
}

// glyph labels the i-th puppet on the arena map.
func glyph(i int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	if i < len(letters) {
		return string(letters[i])
	}
	return "#"
}

// renderArena draws puppets on a cols×rows grid scaled to the environment.
// Living puppets are drawn over dead ones sharing a cell.
func renderArena(state *world.GameState, cols, rows int) string {
	grid := make([][]string, rows)
	for r := range grid {
		grid[r] = make([]string, cols)
		for c := range grid[r] {
			grid[r][c] = "·"
		}
	}
	env := state.Environment
	place := func(i int, p *world.Puppet) {
		pos := env.Clamp(p.Position)
		c := int(pos.X / env.Width * float64(cols-1))
		r := int(pos.Y / env.Height * float64(rows-1))
		if p.IsAlive {
			grid[r][c] = styleAlive.Render(glyph(i))
		} else {
			grid[r][c] = styleDead.Render("x")
		}
	}
	for i, p := range state.Puppets {
		if !p.IsAlive {
			place(i, p)
		}
	}
	for i, p := range state.Puppets {
		if p.IsAlive {
			place(i, p)
		}
	}
	lines := make([]string, rows)
	for r := range grid {
		lines[r] = strings.Join(grid[r], "")
	}
	return strings.Join(lines, "\n")
}

func rosterRows(state *world.GameState) []table.Row {
	rows := make([]table.Row, 0, len(state.Puppets))
	for i, p := range state.Puppets {
		mark := glyph(i)
		if !p.IsAlive {
			mark = "x"
		}
		rows = append(rows, table.Row{
			mark,
			orDash(p.Name),
			fmt.Sprintf("%.1f,%.1f", p.Position.X, p.Position.Y),
			orDash(p.Target),
			describeAction(p.LastAction),
		})
	}
	return rows
}

func describeAction(a *world.Action) string {
	if a == nil {
		return "-"
	}
	switch a.Type {
	case world.ActionMove:
		if a.Delta == nil {
			return "move"
		}
		return fmt.Sprintf("move %+.1f,%+.1f", a.Delta.X, a.Delta.Y)
	case world.ActionAttack:
		return "attack " + a.TargetID
	case world.ActionTalk:
		return "talk"
	}
	return string(a.Type)
}

func describeEvent(e world.Event) string {
	switch e.Kind {
	case world.EventElimination:
		return fmt.Sprintf("[turn %d] %s eliminated %s", e.Turn, e.AgentID, e.TargetID)
	case world.EventCompleted:
		if e.AgentID == "" {
			return fmt.Sprintf("[turn %d] match over, no survivors", e.Turn)
		}
		return fmt.Sprintf("[turn %d] match over, %s wins", e.Turn, e.AgentID)
	}
	detail := ""
	if e.Detail != "" {
		detail = ": " + e.Detail
	}
	return fmt.Sprintf("[turn %d] %s %s%s", e.Turn, e.Kind, orDash(e.AgentID), detail)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
