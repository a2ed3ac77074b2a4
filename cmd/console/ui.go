package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jmswank/neural-link/pkg/room"
)

const pollInterval = 2 * time.Second

// UI screens.
type screen int

const (
	screenLobby screen = iota
	screenJoinEntry
	screenWaiting
	screenPlaying
	screenDead
)

// Reveal stages for a freshly arrived scene.
const (
	revealEnv = iota
	revealEvent
	revealAnalysis
	revealChoices
)

type ConsoleUI struct {
	api      *APIClient
	viewport viewport.Model
	codeIn   textinput.Model
	spin     spinner.Model
	ready    bool
	width    int
	height   int

	screen       screen
	roomID       string
	room         *room.Room
	lastSeenTurn int
	revealStage  int
	waitingMove  bool
	copied       bool
	err          error
	notice       string
}

type actionMsg struct {
	resp *GameResponse
	err  error
}

type pollMsg struct {
	resp *GameResponse
	err  error
}

type pollTickMsg struct{}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	hudStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	envStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	eventStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")) // white

	analysisStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	damageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // red
			Bold(true)

	healStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")) // green

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	deadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true).
			Align(lipgloss.Center)
)

var roleCaser = cases.Title(language.English)

func NewConsoleUI(api *APIClient) ConsoleUI {
	ti := textinput.New()
	ti.Placeholder = "4-digit room code"
	ti.CharLimit = 4
	ti.Width = 20

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	return ConsoleUI{
		api:      api,
		viewport: vp,
		codeIn:   ti,
		spin:     sp,
		screen:   screenLobby,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.spin.Tick
}

func pollTick() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		vpCmd tea.Cmd
		tiCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = m.width - 4
		m.viewport.Height = m.height - 6
		m.ready = true
		m.refreshContent()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case actionMsg:
		m.waitingMove = false
		if msg.err != nil {
			m.err = msg.err
			m.refreshContent()
			return m, nil
		}
		return m.applyResponse(msg.resp)

	case pollMsg:
		if msg.err == nil && msg.resp != nil && msg.resp.Room != nil {
			m.adoptRoom(msg.resp.Room)
		}
		if m.screen == screenWaiting || (m.screen == screenPlaying && m.waitingMove) {
			return m, pollTick()
		}
		return m, nil

	case pollTickMsg:
		if m.roomID == "" {
			return m, nil
		}
		return m, m.fetchRoom()

	case spinner.TickMsg:
		m.spin, spCmd = m.spin.Update(msg)
		return m, spCmd
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	m.codeIn, tiCmd = m.codeIn.Update(msg)
	return m, tea.Batch(vpCmd, tiCmd)
}

func (m ConsoleUI) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	switch m.screen {
	case screenLobby:
		switch msg.String() {
		case "c":
			return m, m.doAction(func() (*GameResponse, error) { return m.api.CreateRoom() })
		case "j":
			m.screen = screenJoinEntry
			m.codeIn.Reset()
			m.codeIn.Focus()
			return m, textinput.Blink
		case "q":
			return m, tea.Quit
		}

	case screenJoinEntry:
		switch msg.Type {
		case tea.KeyEnter:
			code := strings.TrimSpace(m.codeIn.Value())
			if len(code) != 4 {
				m.notice = "Room codes are 4 digits."
				return m, nil
			}
			m.codeIn.Blur()
			return m, m.doAction(func() (*GameResponse, error) { return m.api.JoinRoom(code) })
		case tea.KeyEsc:
			m.screen = screenLobby
			m.codeIn.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.codeIn, cmd = m.codeIn.Update(msg)
		return m, cmd

	case screenWaiting:
		switch msg.String() {
		case "s":
			return m, m.doAction(func() (*GameResponse, error) { return m.api.StartGame(m.roomID) })
		case "y":
			if err := clipboard.WriteAll(m.roomID); err == nil {
				m.copied = true
				m.refreshContent()
			}
			return m, nil
		case "q":
			return m, tea.Quit
		}

	case screenPlaying:
		if m.waitingMove {
			break
		}
		switch msg.String() {
		case "enter", " ":
			if m.revealStage < revealChoices {
				m.revealStage++
				m.refreshContent()
			}
			return m, nil
		case "1", "2":
			if m.revealStage < revealChoices {
				return m, nil
			}
			view := m.myView()
			idx := 0
			if msg.String() == "2" {
				idx = 1
			}
			if view == nil || idx >= len(view.Choices) {
				return m, nil
			}
			choice := view.Choices[idx].Text
			m.waitingMove = true
			m.refreshContent()
			return m, tea.Batch(
				m.doAction(func() (*GameResponse, error) { return m.api.MakeMove(m.roomID, choice) }),
				pollTick(),
			)
		case "p":
			// Warm the cache for both branches while deciding.
			return m, m.doAction(func() (*GameResponse, error) { return m.api.PreloadTurn(m.roomID) })
		case "q":
			return m, tea.Quit
		}

	case screenDead:
		if msg.String() == "q" || msg.Type == tea.KeyEnter {
			return m, tea.Quit
		}
	}

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, vpCmd
}

func (m ConsoleUI) doAction(call func() (*GameResponse, error)) tea.Cmd {
	return func() tea.Msg {
		resp, err := call()
		return actionMsg{resp: resp, err: err}
	}
}

func (m ConsoleUI) fetchRoom() tea.Cmd {
	return func() tea.Msg {
		resp, err := m.api.GetRoom(m.roomID)
		return pollMsg{resp: resp, err: err}
	}
}

func (m ConsoleUI) applyResponse(resp *GameResponse) (tea.Model, tea.Cmd) {
	m.err = nil
	m.notice = ""

	switch resp.Status {
	case "ROOM_CREATED", "JOINED":
		m.roomID = resp.RoomID
		m.screen = screenWaiting
		if resp.Room != nil {
			m.room = resp.Room
		}
		m.refreshContent()
		return m, pollTick()

	case "STARTED", "NEW_TURN":
		m.roomID = resp.RoomID
		if resp.Room != nil {
			m.adoptRoom(resp.Room)
		}
		return m, nil

	case "WAITING":
		if resp.Room != nil {
			m.adoptRoom(resp.Room)
		}
		if m.screen == screenPlaying {
			m.waitingMove = true
		}
		m.refreshContent()
		return m, pollTick()

	case "QUOTA_EXCEEDED":
		m.notice = "The grid is saturated today. Try again tomorrow."
		m.refreshContent()
		return m, nil

	case "NOT_FOUND":
		m.notice = "No such room."
		if m.screen == screenJoinEntry {
			m.codeIn.Focus()
		}
		m.refreshContent()
		return m, nil

	default:
		m.notice = resp.Error
		m.refreshContent()
		return m, nil
	}
}

// adoptRoom folds fresh server state into the model, detecting new
// turns and the player's death.
func (m *ConsoleUI) adoptRoom(rm *room.Room) {
	m.room = rm
	if m.roomID == "" {
		m.roomID = rm.ID
	}

	if p, ok := rm.Players[m.api.playerID]; ok && p.Dead {
		m.screen = screenDead
		m.refreshContent()
		return
	}

	if rm.Status == room.StatusPlaying {
		if m.screen != screenPlaying {
			m.screen = screenPlaying
			m.lastSeenTurn = 0
		}
		if rm.Turn > m.lastSeenTurn {
			m.lastSeenTurn = rm.Turn
			m.revealStage = revealEnv
			m.waitingMove = false
		}
	}
	m.refreshContent()
}

func (m *ConsoleUI) myView() *room.SceneView {
	if m.room == nil || m.room.CurrentScene == nil {
		return nil
	}
	if v, ok := m.room.CurrentScene[m.api.playerID]; ok {
		return v
	}
	// Fall back to any view so the screen is never blank.
	for _, v := range m.room.CurrentScene {
		return v
	}
	return nil
}

func (m *ConsoleUI) refreshContent() {
	if !m.ready {
		return
	}

	width := m.viewport.Width - 2
	var b strings.Builder

	switch m.screen {
	case screenLobby:
		b.WriteString(titleStyle.Render("NEURAL LINK") + "\n\n")
		b.WriteString("A shared-world story over the wire.\n\n")
		b.WriteString(choiceStyle.Render("[c]") + " create a room\n")
		b.WriteString(choiceStyle.Render("[j]") + " join a room\n")
		b.WriteString(choiceStyle.Render("[q]") + " quit\n")

	case screenJoinEntry:
		b.WriteString(titleStyle.Render("JOIN ROOM") + "\n\n")
		b.WriteString(m.codeIn.View() + "\n\n")
		b.WriteString(hintStyle.Render("Enter to join, Esc to go back") + "\n")

	case screenWaiting:
		b.WriteString(titleStyle.Render("ROOM "+m.roomID) + "\n\n")
		b.WriteString(m.spin.View() + " Waiting for the crew to assemble...\n\n")
		if m.room != nil {
			b.WriteString("Jacked in:\n")
			for _, id := range sortedPlayerIDs(m.room) {
				p := m.room.Players[id]
				b.WriteString(fmt.Sprintf("  %s (%s)\n", p.Profile.Name, roleCaser.String(p.Profile.Role)))
			}
			b.WriteString("\n")
		}
		b.WriteString(choiceStyle.Render("[s]") + " start the run\n")
		b.WriteString(choiceStyle.Render("[y]") + " copy room code")
		if m.copied {
			b.WriteString(hintStyle.Render("  copied"))
		}
		b.WriteString("\n")

	case screenPlaying:
		m.renderScene(&b, width)

	case screenDead:
		b.WriteString("\n\n")
		b.WriteString(deadStyle.Width(width).Render("FLATLINED") + "\n\n")
		b.WriteString(wordwrap.String("Your link collapses into static. The story goes on without you.", width) + "\n\n")
		b.WriteString(hintStyle.Render("Press q to disconnect") + "\n")
	}

	if m.notice != "" {
		b.WriteString("\n" + analysisStyle.Render(m.notice) + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("Error: "+m.err.Error()) + "\n")
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *ConsoleUI) renderScene(b *strings.Builder, width int) {
	view := m.myView()
	if view == nil {
		b.WriteString(m.spin.View() + " Syncing the feed...\n")
		return
	}

	b.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	if view.Environment != nil {
		b.WriteString(envStyle.Render(wordwrap.String(*view.Environment, width)) + "\n\n")
	}
	if m.revealStage >= revealEvent {
		b.WriteString(eventStyle.Render(wordwrap.String(view.Event, width)) + "\n\n")
		if view.HPChange < 0 {
			b.WriteString(damageStyle.Render(fmt.Sprintf("%d HP", view.HPChange)) + "\n\n")
		} else if view.HPChange > 0 {
			b.WriteString(healStyle.Render(fmt.Sprintf("+%d HP", view.HPChange)) + "\n\n")
		}
	}
	if m.revealStage >= revealAnalysis && view.Analysis != "" {
		b.WriteString(analysisStyle.Render(wordwrap.String(view.Analysis, width)) + "\n\n")
	}

	if m.waitingMove {
		b.WriteString(m.spin.View() + " Waiting for the others...\n")
		return
	}

	if m.revealStage >= revealChoices {
		for i, c := range view.Choices {
			b.WriteString(choiceStyle.Render(fmt.Sprintf("[%d]", i+1)) + " " + wordwrap.String(c.Text, width-4) + "\n")
		}
		b.WriteString("\n" + hintStyle.Render("Pick 1 or 2. [p] preloads both futures.") + "\n")
	} else {
		b.WriteString(hintStyle.Render("Enter to continue...") + "\n")
	}
}

func (m ConsoleUI) View() string {
	if !m.ready {
		return "Jacking in..."
	}
	return m.renderHUD() + "\n" + m.viewport.View() + "\n"
}

func (m ConsoleUI) renderHUD() string {
	left := titleStyle.Render(" NEURAL LINK ")

	var parts []string
	if m.roomID != "" {
		parts = append(parts, "room "+m.roomID)
	}
	if m.room != nil {
		parts = append(parts, fmt.Sprintf("turn %d", m.room.Turn))
		if p, ok := m.room.Players[m.api.playerID]; ok {
			parts = append(parts, fmt.Sprintf("hp %d", p.Profile.Public.HP))
		}
	}
	if len(parts) == 0 {
		return left
	}
	return left + hudStyle.Render(" "+strings.Join(parts, "  ·  "))
}

func sortedPlayerIDs(rm *room.Room) []string {
	ids := make([]string, 0, len(rm.Players))
	for id := range rm.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
