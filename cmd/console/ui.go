package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/story-arbiter/internal/handlers"
	"github.com/jwebster45206/story-arbiter/pkg/session"
	"github.com/jwebster45206/story-arbiter/pkg/validation"
)

const (
	AgentName       = "Narrator"
	PlaceHolderText = "Type your action here... (@key=value adds parameters)"
)

// Transcript line kinds
const (
	linePlayer   = "player"
	lineNarrator = "narrator"
	lineNotice   = "notice"
	lineError    = "error"
)

type transcriptLine struct {
	kind string
	text string
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	api          *apiClient
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	loading      bool

	transcript  []transcriptLine
	session     *session.Session
	last        *handlers.TurnResponse
	characterID string

	// Character selection state
	showCharacterModal bool
	characters         []handlers.CharacterSummary
	selectedCharacter  int
	loadingCharacters  bool

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type charactersLoadedMsg struct {
	characters []handlers.CharacterSummary
	err        error
}

type historyLoadedMsg struct {
	entries []session.Entry
	session *session.Session
	err     error
}

type turnResponseMsg struct {
	response *handlers.TurnResponse
	err      error
}

type commandResultMsg struct {
	text   string
	err    error
	reload bool
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

const helpText = `Commands:
• /help - Show this help
• /history - Reload the recorded history
• /compress - Compress the history to the prompt budget
• /clear - Clear the recorded history
• /copy - Copy the last narration to the clipboard
• Ctrl+C - Quit

Parameters:
• @action=cast_spell @spell=Fireball
• @action=use_item @item=Potion of Healing
• @action=rest @rest=long @time=night @flag=safe
`

func NewConsoleUI(cfg *ConsoleConfig, api *apiClient) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	return ConsoleUI{
		config:             cfg,
		api:                api,
		textarea:           ta,
		chatViewport:       chatVp,
		metaViewport:       viewport.New(20, 20),
		showCharacterModal: true,
		loadingCharacters:  true,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.loadCharacters()
}

// layout sizes the panels for the current window
func (m *ConsoleUI) layout() {
	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6
	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}
	if m.showCharacterModal {
		return m.updateCharacterModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.writeChatContent()
		m.metaViewport.SetContent(m.writeMetadata())

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()

			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}

			message, params, err := parseInput(input)
			if err != nil {
				m.appendLine(lineError, err.Error())
				return m, nil
			}

			m.loading = true
			m.progressTick = 0
			m.appendLine(linePlayer, input)
			return m, tea.Batch(m.sendTurn(message, params), progressTick())
		}

	case turnResponseMsg:
		m.loading = false
		if msg.err != nil {
			m.appendLine(lineError, "Error: "+msg.err.Error())
			return m, nil
		}
		m.last = msg.response
		switch {
		case msg.response.Narration != "":
			m.appendLine(lineNarrator, msg.response.Narration)
		case msg.response.Message != "":
			m.appendLine(lineNotice, msg.response.Message)
		}
		if notice, ok := msg.response.Details["notice"].(string); ok && notice != "" {
			m.appendLine(lineNotice, notice)
		}
		if msg.response.Story != "" {
			m.session = &session.Session{ID: msg.response.SessionID, CharacterID: m.characterID, Story: msg.response.Story, Scene: msg.response.Scene}
		}
		m.metaViewport.SetContent(m.writeMetadata())

	case historyLoadedMsg:
		if msg.err != nil {
			m.appendLine(lineError, "Error: "+msg.err.Error())
			return m, nil
		}
		if msg.session != nil {
			m.session = msg.session
		}
		m.transcript = transcriptFrom(msg.entries)
		m.writeChatContent()
		m.metaViewport.SetContent(m.writeMetadata())

	case commandResultMsg:
		if msg.err != nil {
			m.appendLine(lineError, "Error: "+msg.err.Error())
		} else if msg.text != "" {
			m.appendLine(lineNotice, msg.text)
		}
		if msg.reload {
			return m, m.loadHistory()
		}

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func (m *ConsoleUI) appendLine(kind, text string) {
	m.transcript = append(m.transcript, transcriptLine{kind: kind, text: text})
	m.writeChatContent()
}

// transcriptFrom turns recorded history into transcript lines
func transcriptFrom(entries []session.Entry) []transcriptLine {
	lines := make([]transcriptLine, 0, len(entries))
	for _, e := range entries {
		kind := linePlayer
		if e.Sender == session.SenderNarrator {
			kind = lineNarrator
		}
		lines = append(lines, transcriptLine{kind: kind, text: e.Message})
	}
	return lines
}

// writeChatContent rebuilds the chat panel for the current viewport width
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6 // Account for left(3) + right(3) padding
	if chatWidth < 10 {
		chatWidth = 10
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("STORY ARBITER") + "\n\n")
	content.WriteString("Describe what your character does. Type /help for commands.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth)) + "\n\n")

	for _, l := range m.transcript {
		content.WriteString(formatLine(l, chatWidth) + "\n\n")
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func formatLine(l transcriptLine, width int) string {
	switch l.kind {
	case linePlayer:
		return userStyle.Render("You: ") + wordwrap.String(l.text, width-5)
	case lineNarrator:
		prefix := AgentName + ": "
		return narratorStyle.Render(prefix) + wordwrap.String(l.text, width-len(prefix))
	case lineError:
		return errorStyle.Render(wordwrap.String(l.text, width))
	default:
		return noticeStyle.Render(wordwrap.String(l.text, width))
	}
}

func (m ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("SESSION") + "\n\n")

	id := m.config.SessionID
	if len(id) > 8 {
		id = id[:8] + "..."
	}
	content.WriteString("Session:\n" + id + "\n\n")
	content.WriteString("Character:\n" + orNone(m.characterID) + "\n\n")

	if m.session != nil {
		content.WriteString("Story:\n" + orNone(m.session.Story) + "\n\n")
		content.WriteString("Scene:\n" + orNone(m.session.Scene) + "\n\n")
	}

	if m.last != nil {
		content.WriteString("Last turn:\n")
		content.WriteString(fmt.Sprintf("• status: %s\n", m.last.Status))
		content.WriteString(fmt.Sprintf("• intent: %s (%.2f)\n", orNone(string(m.last.Intent)), m.last.Confidence))
		if m.last.FallbackReason != "" {
			content.WriteString(fmt.Sprintf("• fallback: %s\n", m.last.FallbackReason))
		}
		if m.last.Compression != "" {
			content.WriteString(fmt.Sprintf("• memory: %s\n", m.last.Compression))
		}
		content.WriteString(fmt.Sprintf("• %dms\n\n", m.last.DurationMS))
	}

	content.WriteString("Commands:\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• /help: Help\n")
	return content.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "/help":
		m.appendLine(lineNotice, helpText)
	case "/history":
		return m, m.loadHistory()
	case "/clear":
		return m, m.runCommand(func() (string, error) {
			return "History cleared.", m.api.clearHistory(m.config.SessionID)
		}, true)
	case "/compress":
		return m, m.runCommand(func() (string, error) {
			resp, err := m.api.compress(m.config.SessionID)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Compressed with %s: %d to %d tokens.", resp.Strategy, resp.TokensBefore, resp.TokensAfter), nil
		}, true)
	case "/copy":
		text := m.lastNarration()
		if text == "" {
			m.appendLine(lineNotice, "Nothing to copy yet.")
			return m, nil
		}
		if err := clipboard.WriteAll(text); err != nil {
			m.appendLine(lineError, "Error: "+err.Error())
			return m, nil
		}
		m.appendLine(lineNotice, "Copied the last narration to the clipboard.")
	default:
		m.appendLine(lineError, fmt.Sprintf("Unknown command %s. Type /help.", input))
	}
	return m, nil
}

func (m ConsoleUI) lastNarration() string {
	for i := len(m.transcript) - 1; i >= 0; i-- {
		if m.transcript[i].kind == lineNarrator {
			return m.transcript[i].text
		}
	}
	return ""
}

func (m ConsoleUI) runCommand(fn func() (string, error), reload bool) tea.Cmd {
	return func() tea.Msg {
		text, err := fn()
		return commandResultMsg{text: text, err: err, reload: reload && err == nil}
	}
}

func (m ConsoleUI) sendTurn(message string, params validation.Params) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.api.sendTurn(m.config.SessionID, m.characterID, message, params)
		return turnResponseMsg{resp, err}
	}
}

func (m ConsoleUI) loadCharacters() tea.Cmd {
	return func() tea.Msg {
		list, err := m.api.listCharacters()
		return charactersLoadedMsg{list, err}
	}
}

// loadHistory fetches the session and its history. A session that does not
// exist yet is an empty transcript.
func (m ConsoleUI) loadHistory() tea.Cmd {
	return func() tea.Msg {
		sess, err := m.api.getSession(m.config.SessionID)
		if err != nil {
			if isNotFound(err) {
				return historyLoadedMsg{}
			}
			return historyLoadedMsg{err: err}
		}
		entries, err := m.api.getHistory(m.config.SessionID)
		return historyLoadedMsg{entries: entries, session: sess, err: err}
	}
}

func (m ConsoleUI) updateCharacterModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case charactersLoadedMsg:
		m.loadingCharacters = false
		if msg.err != nil {
			m.err = msg.err
		} else if len(msg.characters) == 0 {
			m.err = errors.New("no characters are available")
		} else {
			m.characters = msg.characters
		}

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.loadingCharacters || m.err != nil {
				return m, tea.Quit
			}
			m.showQuitModal = true
			return m, nil
		case tea.KeyUp:
			if m.selectedCharacter > 0 {
				m.selectedCharacter--
			}
		case tea.KeyDown:
			if m.selectedCharacter < len(m.characters)-1 {
				m.selectedCharacter++
			}
		case tea.KeyEnter:
			if m.loadingCharacters || m.err != nil || len(m.characters) == 0 {
				return m, nil
			}
			m.characterID = m.characters[m.selectedCharacter].ID
			m.showCharacterModal = false
			if m.width > 0 && m.height > 0 {
				m.layout()
			}
			m.ready = true
			m.writeChatContent()
			m.metaViewport.SetContent(m.writeMetadata())
			m.textarea.Focus()
			return m, tea.Batch(textarea.Blink, m.loadHistory())
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				if m.showCharacterModal {
					return m, nil
				}
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Are you sure you want to quit your adventure?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderCharacterModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	switch {
	case m.loadingCharacters:
		content.WriteString(modalTitleStyle.Render("Loading Characters..."))
		content.WriteString("\n\n")
		content.WriteString(noticeStyle.Render("Please wait while we fetch available characters..."))
	case m.err != nil:
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(fmt.Sprintf("Failed to load characters: %v", m.err)))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	default:
		content.WriteString(modalTitleStyle.Render("Choose a Character"))
		content.WriteString("\n\n")
		for i, c := range m.characters {
			label := characterLabel(c)
			if i == m.selectedCharacter {
				content.WriteString(modalSelectedItemStyle.Render("▶ " + label))
			} else {
				content.WriteString(modalItemStyle.Render("  " + label))
			}
			content.WriteString("\n")
		}
		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func characterLabel(c handlers.CharacterSummary) string {
	name := c.Name
	if name == "" {
		name = c.ID
	}
	switch {
	case c.Class != "" && c.Level > 0:
		return fmt.Sprintf("%s (Level %d %s)", name, c.Level, c.Class)
	case c.Class != "":
		return fmt.Sprintf("%s (%s)", name, c.Class)
	default:
		return name
	}
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showCharacterModal {
		return m.renderCharacterModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 0))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30
	}
	usable = min(max(usable, 10), 80)

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && frame%4 < 2:
			bar.WriteString("▓")
		default:
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
