package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/rule-horror/internal/handlers"
	"github.com/jwebster45206/rule-horror/internal/services/events"
	"github.com/jwebster45206/rule-horror/pkg/chat"
	"github.com/jwebster45206/rule-horror/pkg/client"
	"github.com/muesli/reflow/wordwrap"
)

const PlaceHolderText = "Describe what you do, or /help for commands..."

type lineKind int

const (
	lineUser lineKind = iota
	lineGame
	lineRefusal
	lineEvent
	lineError
)

type line struct {
	kind lineKind
	text string
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	api          *client.Client
	events       <-chan events.Event
	session      *handlers.SessionView
	history      []line
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	loading      bool

	confirmLeave bool
	spinner      spinner.Model
}

type commandResponseMsg struct {
	response *chat.CommandResponse
	err      error
}

type sessionMsg struct {
	session *handlers.SessionView
	err     error
}

type eventMsg struct {
	event events.Event
}

var (
	chatPanelStyle = lipgloss.NewStyle().Padding(1, 1, 0, 2)

	metaPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("52")).
			Padding(1, 1, 0, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("160")). // blood red
			Bold(true)

	gameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("109"))
	refusalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
	eventStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("141")).Italic(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	leaveStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)
)

func NewConsoleUI(cfg *ConsoleConfig, api *client.Client, eventChan <-chan events.Event) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = dimStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	sp := spinner.New(spinner.WithSpinner(spinner.Pulse), spinner.WithStyle(titleStyle))

	return ConsoleUI{
		config:       cfg,
		api:          api,
		events:       eventChan,
		textarea:     ta,
		spinner:      sp,
		chatViewport: viewport.New(50, 20),
		metaViewport: viewport.New(20, 20),
	}
}

// parseInput turns console input into a command. Bare text is an action.
func parseInput(input string) (command, args string) {
	if strings.HasPrefix(input, "/") {
		return chat.ParseLine(input)
	}
	return "act", strings.TrimSpace(input)
}

func writeMetadata(cfg *ConsoleConfig, s *handlers.SessionView) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("SESSION") + "\n\n")
	fmt.Fprintf(&b, "Key:\n%s\n\n", cfg.SessionKey)
	fmt.Fprintf(&b, "You:\n%s\n\n", cfg.PlayerName)

	if s == nil {
		b.WriteString("No game running.\n\nTry:\n/start solo\n/start multi\n/restore\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Scene:\n%s\n\n", s.SceneName)
	fmt.Fprintf(&b, "Time:\n%s, %d min\n\n", s.Time.Label, s.Time.Elapsed)
	fmt.Fprintf(&b, "Hints:\n%d/%d used\n\n", s.Hints.Used, s.Hints.Max)

	fmt.Fprintf(&b, "Players (%d/%d):\n", len(s.Players), s.MaxPlayers)
	for _, p := range s.Players {
		if p.Alive {
			fmt.Fprintf(&b, "• %s  sanity %d\n", p.Name, p.Sanity)
		} else {
			fmt.Fprintf(&b, "• %s  dead\n", p.Name)
		}
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "%s:\n", s.RulesTitle)
	for i, r := range s.Rules {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}
	if s.Cleared {
		b.WriteString("\n" + titleStyle.Render("CLEARED") + "\n")
	}
	if s.SanityBreak {
		b.WriteString("\n" + eventStyle.Render("Not everything you see is true.") + "\n")
	}
	return b.String()
}

func describeEvent(ev events.Event) string {
	name, _ := ev.Data["name"].(string)
	switch ev.Type {
	case events.EventTypePlayerJoined:
		return fmt.Sprintf("%s joined the game.", name)
	case events.EventTypePlayerLeft:
		return fmt.Sprintf("%s left the game.", name)
	case events.EventTypePlayerDied:
		return fmt.Sprintf("%s is dead.", name)
	case events.EventTypeRulesMutated:
		return "The rules have changed."
	case events.EventTypeCollaborationTriggered:
		return "Something happened because you acted together."
	case events.EventTypeSessionCleared:
		return "The win condition has been met."
	case events.EventTypeSessionEnded:
		return "The game is over."
	}
	return ""
}

func (m *ConsoleUI) writeChatContent() {
	width := m.chatViewport.Width - 6
	if width < 20 {
		width = 20
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("RULE HORROR") + "\n\n")
	b.WriteString("Read the rules. Follow the rules. Some of the rules are lies.\n\n")
	b.WriteString(dimStyle.Render(strings.Repeat("─", width)) + "\n\n")

	for _, l := range m.history {
		text := wordwrap.String(l.text, width)
		switch l.kind {
		case lineUser:
			b.WriteString(userStyle.Render("> "+text) + "\n\n")
		case lineRefusal:
			b.WriteString(refusalStyle.Render(text) + "\n\n")
		case lineEvent:
			b.WriteString(eventStyle.Render(text) + "\n\n")
		case lineError:
			b.WriteString(errorStyle.Render("Error: "+text) + "\n\n")
		default:
			b.WriteString(gameStyle.Render(text) + "\n\n")
		}
	}
	if m.loading {
		b.WriteString(m.spinner.View() + dimStyle.Render(" the building considers your move"))
	}

	m.chatViewport.SetContent(b.String())
	m.chatViewport.GotoBottom()
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.refreshSession(), m.waitForEvent())
}

// layout splits the width 7:3 between the story and the sidebar.
func (m ConsoleUI) layout() (chatWidth, metaWidth int) {
	chatWidth = m.width * 7 / 10
	return chatWidth, m.width - chatWidth
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		chatWidth, metaWidth := m.layout()
		m.chatViewport.Width = chatWidth - 3
		m.chatViewport.Height = m.height - 6
		m.metaViewport.Width = metaWidth - 4
		m.metaViewport.Height = m.height - 1
		m.textarea.SetWidth(chatWidth - 3)
		m.ready = true
		m.writeChatContent()
		m.metaViewport.SetContent(writeMetadata(m.config, m.session))
		return m, nil

	case tea.KeyMsg:
		if m.confirmLeave {
			switch msg.String() {
			case "y", "Y", "ctrl+c":
				return m, tea.Quit
			case "n", "N", "esc":
				m.confirmLeave = false
				return m, m.textarea.Focus()
			}
			return m, nil
		}
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.confirmLeave = true
			m.textarea.Blur()
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		}

	case commandResponseMsg:
		m.loading = false
		kind := lineGame
		if msg.err != nil {
			m.history = append(m.history, line{kind: lineError, text: msg.err.Error()})
		} else {
			if !msg.response.OK {
				kind = lineRefusal
			}
			for _, text := range msg.response.Messages {
				m.history = append(m.history, line{kind: kind, text: text})
			}
		}
		m.writeChatContent()
		return m, m.refreshSession()

	case sessionMsg:
		if msg.err == nil {
			m.session = msg.session
			m.metaViewport.SetContent(writeMetadata(m.config, m.session))
		}
		return m, nil

	case eventMsg:
		cmds = append(cmds, m.waitForEvent())
		// our own commands already printed their results
		if msg.event.PlayerID != m.config.PlayerID {
			if text := describeEvent(msg.event); text != "" {
				m.history = append(m.history, line{kind: lineEvent, text: text})
				m.writeChatContent()
			}
			cmds = append(cmds, m.refreshSession())
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.writeChatContent()
		return m, cmd
	}

	var cmd tea.Cmd
	if !m.confirmLeave {
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.chatViewport, cmd = m.chatViewport.Update(msg)
	cmds = append(cmds, cmd)
	m.metaViewport, cmd = m.metaViewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit sends the textarea contents as a command. Input is ignored while
// a command is in flight.
func (m ConsoleUI) submit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())
	if m.loading || input == "" {
		return m, nil
	}
	m.textarea.Reset()
	if input == "/quit" {
		m.confirmLeave = true
		m.textarea.Blur()
		return m, nil
	}

	command, args := parseInput(input)
	m.history = append(m.history, line{kind: lineUser, text: input})
	m.loading = true
	m.writeChatContent()
	return m, tea.Batch(m.sendCommand(command, args), m.spinner.Tick)
}

func (m ConsoleUI) sendCommand(command, args string) tea.Cmd {
	return func() tea.Msg {
		resp, _, err := m.api.Command(context.Background(), m.config.SessionKey, chat.CommandRequest{
			PlayerID:   m.config.PlayerID,
			PlayerName: m.config.PlayerName,
			Command:    command,
			Args:       args,
		})
		return commandResponseMsg{resp, err}
	}
}

func (m ConsoleUI) refreshSession() tea.Cmd {
	return func() tea.Msg {
		s, err := m.api.Session(context.Background(), m.config.SessionKey)
		return sessionMsg{s, err}
	}
}

func (m ConsoleUI) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return nil
		}
		return eventMsg{ev}
	}
}

func (m ConsoleUI) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}
	chatWidth, metaWidth := m.layout()

	input := m.textarea.View()
	if m.confirmLeave {
		input = leaveStyle.Render("Leave the building?") + " " +
			dimStyle.Render("The game keeps running on the server; /save first for a named save. [y/n]")
	}

	story := chatPanelStyle.Width(chatWidth).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			dimStyle.Render(strings.Repeat("─", max(chatWidth-3, 1))),
			input,
		),
	)
	meta := metaPanelStyle.Width(metaWidth - 1).Height(m.height).Render(m.metaViewport.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, story, meta)
}
