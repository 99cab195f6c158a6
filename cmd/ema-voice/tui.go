package main

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/muesli/reflow/wordwrap"
)

type messageUpdateMsg struct {
	id   string
	text string
}

type playbackStatusMsg events.PlaybackStatus

type responseDoneMsg struct {
	turn llms.Turn
	err  error
}

type transcriptEntry struct {
	user bool
	id   string
	text string
}

// responder is the part of the orchestrator the terminal UI drives.
type responder interface {
	Respond(ctx context.Context, prompt string, images ...string) (llms.Turn, error)
	Cancel()
	StopSpeaking()
	Reset()
}

var (
	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusBarStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	inputBorderStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
)

const helpLine = "enter send · esc stop · ctrl+s mute · /reset · ctrl+c quit"

type tuiModel struct {
	responder responder

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	transcript []transcriptEntry
	playback   events.PlaybackStatusValue
	pending    int
	lastError  error

	width, height int
	ready         bool
}

func newTUIModel(r responder) *tuiModel {
	input := textinput.New()
	input.Placeholder = "Ask anything..."
	input.CharLimit = 8192
	input.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot

	return &tuiModel{
		responder: r,
		input:     input,
		spinner:   s,
		playback:  events.PlaybackStatusIdle,
	}
}

func (m *tuiModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		viewportHeight := max(msg.Height-5, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, viewportHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = viewportHeight
		}
		m.input.Width = max(msg.Width-6, 10)
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.responder.Cancel()
			return m, tea.Quit
		case tea.KeyEsc:
			m.responder.Cancel()
			return m, nil
		case tea.KeyCtrlS:
			m.responder.StopSpeaking()
			return m, nil
		case tea.KeyEnter:
			return m, m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case messageUpdateMsg:
		m.updateAssistant(msg.id, msg.text)

	case playbackStatusMsg:
		m.playback = msg.Status

	case responseDoneMsg:
		m.pending = max(m.pending-1, 0)
		m.lastError = msg.err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if _, ok := msg.(tea.KeyMsg); !ok {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *tuiModel) submit() tea.Cmd {
	prompt := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if prompt == "" {
		return nil
	}

	if prompt == "/reset" {
		m.responder.Reset()
		m.transcript = nil
		m.lastError = nil
		m.refresh()
		return nil
	}

	m.transcript = append(m.transcript, transcriptEntry{user: true, text: prompt})
	m.pending++
	m.lastError = nil
	m.refresh()

	r := m.responder
	return func() tea.Msg {
		turn, err := r.Respond(context.Background(), prompt)
		return responseDoneMsg{turn: turn, err: err}
	}
}

func (m *tuiModel) updateAssistant(id, text string) {
	for i := len(m.transcript) - 1; i >= 0; i-- {
		if !m.transcript[i].user && m.transcript[i].id == id {
			m.transcript[i].text = text
			m.refresh()
			return
		}
	}
	m.transcript = append(m.transcript, transcriptEntry{id: id, text: text})
	m.refresh()
}

func (m *tuiModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *tuiModel) renderTranscript() string {
	width := max(m.width-2, 20)

	var b strings.Builder
	for i, entry := range m.transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if entry.user {
			b.WriteString(userLabelStyle.Render("You"))
		} else {
			b.WriteString(assistantLabelStyle.Render("Assistant"))
		}
		b.WriteString("\n")
		b.WriteString(wordwrap.String(entry.text, width))
	}
	return b.String()
}

func (m *tuiModel) View() string {
	if !m.ready {
		return "starting..."
	}

	status := helpLine
	switch {
	case m.lastError != nil:
		status = errorStyle.Render(m.lastError.Error())
	case m.pending > 0 || m.playback != events.PlaybackStatusIdle:
		status = m.spinner.View() + " " + activityLabel(m.pending > 0, m.playback) + " · " + helpLine
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		inputBorderStyle.Width(max(m.width-2, 10)).Render(m.input.View()),
		statusBarStyle.Render(status),
	)
}

func activityLabel(generating bool, playback events.PlaybackStatusValue) string {
	switch {
	case playback == events.PlaybackStatusPlaying:
		return "speaking"
	case generating:
		return "thinking"
	default:
		return string(playback)
	}
}

// programDisplay forwards orchestrator callbacks into the program loop.
type programDisplay struct {
	program *tea.Program
}

func (d programDisplay) UpdateMessage(id, text string) {
	d.program.Send(messageUpdateMsg{id: id, text: text})
}

func (d programDisplay) PlaybackStatus(status events.PlaybackStatus) {
	d.program.Send(playbackStatusMsg(status))
}

func runTUI(a *app) error {
	program := tea.NewProgram(newTUIModel(a.orchestrator), tea.WithAltScreen())
	display := programDisplay{program: program}
	a.addDisplay(display, display.PlaybackStatus)

	_, err := program.Run()
	return err
}

var _ orchestration.Display = programDisplay{}
