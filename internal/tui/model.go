package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/lumia-zhu/aiplanner-sub000/internal/clip"
	"github.com/lumia-zhu/aiplanner-sub000/internal/conversation"
	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/events"
)

// Session is the part of a conversation session the chat client drives.
type Session interface {
	ID() string
	State() conversation.State
	Messages() []core.ChatMessage
	Dispatch(ctx context.Context, ev conversation.Event) error
}

// Copier puts text on the clipboard.
type Copier interface {
	Copy(text string) (clip.Result, error)
}

type focus int

const (
	focusOptions focus = iota
	focusInput
)

// Options configures the chat model.
type Options struct {
	Bus    *events.EventBus
	Copier Copier
	// DispatchTimeout bounds one user turn, including the model calls it
	// triggers. Zero means no limit beyond the session's own.
	DispatchTimeout time.Duration
	// Plain disables markdown rendering.
	Plain bool
}

// Model is the chat client.
type Model struct {
	session Session
	opts    Options
	events  <-chan events.Event
	keys    keyMap

	messages    []core.ChatMessage
	streaming   string
	mode        conversation.ModeKind
	optionMsgID string
	optionSet   core.InteractiveType
	options     []conversation.Option
	cursor      int
	focus       focus

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	renderer *glamour.TermRenderer

	busy   bool
	status string
	err    error
	width  int
	height int
	ready  bool
}

// busEventMsg wraps one event from the session's subscription.
type busEventMsg struct{ event events.Event }

// busClosedMsg reports the subscription ended.
type busClosedMsg struct{}

// dispatchDoneMsg reports a finished user turn.
type dispatchDoneMsg struct{ err error }

// copiedMsg reports a clipboard copy.
type copiedMsg struct {
	result clip.Result
	err    error
}

// New creates a chat model for session. The caller starts the session;
// the model only renders it and dispatches user input.
func New(session Session, opts Options) *Model {
	ti := textinput.New()
	ti.Placeholder = "Type a reply, or /back /cancel /skip"
	ti.CharLimit = 2000

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorPrimary)

	m := &Model{
		session:  session,
		opts:     opts,
		keys:     defaultKeyMap(),
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		help:     help.New(),
	}
	if opts.Bus != nil {
		m.events = opts.Bus.SubscribeSession(session.ID())
	}
	m.refresh()
	return m
}

// Close releases the bus subscription.
func (m *Model) Close() {
	if m.opts.Bus != nil && m.events != nil {
		m.opts.Bus.Unsubscribe(m.events)
		m.events = nil
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

func (m *Model) waitForEvent() tea.Cmd {
	ch := m.events
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return busClosedMsg{}
		}
		return busEventMsg{event: ev}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case busEventMsg:
		m.handleBusEvent(msg.event)
		return m, m.waitForEvent()

	case busClosedMsg:
		m.events = nil
		return m, nil

	case dispatchDoneMsg:
		m.busy = false
		m.err = msg.err
		m.refresh()
		return m, nil

	case copiedMsg:
		switch {
		case msg.err != nil:
			m.err = msg.err
		case msg.result.Method == clip.MethodFile:
			m.status = "saved to " + msg.result.FilePath
		default:
			m.status = "copied"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.CopyLast):
		return m, m.copy(clip.LastAssistant(m.messages))
	case key.Matches(msg, m.keys.CopyTranscript):
		return m, m.copy(clip.Transcript(m.messages))
	case key.Matches(msg, m.keys.SwitchFocus):
		m.setFocus(1 - m.focus)
		return m, nil
	}

	if m.focus == focusOptions {
		switch {
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.options)-1 {
				m.cursor++
			}
			return m, nil
		case key.Matches(msg, m.keys.Select):
			return m, m.chooseOption()
		}
		return m, nil
	}

	if key.Matches(msg, m.keys.Select) {
		return m, m.submitText()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) chooseOption() tea.Cmd {
	if m.busy || m.cursor >= len(m.options) {
		return nil
	}
	ev, err := optionEvent(m.optionMsgID, m.optionSet, m.options[m.cursor])
	if err != nil {
		m.err = err
		return nil
	}
	return m.dispatch(ev)
}

func (m *Model) submitText() tea.Cmd {
	if m.busy {
		return nil
	}
	ev, err := textEvent(m.mode, m.input.Value())
	if err != nil {
		m.err = err
		return nil
	}
	m.input.Reset()
	return m.dispatch(ev)
}

func (m *Model) dispatch(ev conversation.Event) tea.Cmd {
	m.busy = true
	m.err = nil
	m.status = ""
	session, timeout := m.session, m.opts.DispatchTimeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return dispatchDoneMsg{err: session.Dispatch(ctx, ev)}
	}
}

func (m *Model) copy(text string) tea.Cmd {
	c := m.opts.Copier
	if c == nil {
		m.err = fmt.Errorf("clipboard is not available")
		return nil
	}
	return func() tea.Msg {
		res, err := c.Copy(text)
		return copiedMsg{result: res, err: err}
	}
}

func (m *Model) handleBusEvent(ev events.Event) {
	switch e := ev.(type) {
	case events.StreamChunkEvent:
		m.streaming += e.Chunk
		m.syncViewport()
	case events.MessageFinalizedEvent:
		m.streaming = ""
		m.refresh()
	case events.MessageUpdatedEvent, events.ModeChangedEvent:
		m.refresh()
	case events.SidebarCollapseEvent:
		m.status = "session ended, press esc to leave"
	}
}

// refresh re-reads the session, which is the source of truth for messages
// and mode.
func (m *Model) refresh() {
	m.messages = m.session.Messages()
	m.mode = m.session.State().Mode.Kind()

	id, in, opts := activeOptions(m.messages)
	if id != m.optionMsgID {
		m.cursor = 0
	}
	m.optionMsgID, m.options = id, opts
	m.optionSet = ""
	if in != nil {
		m.optionSet = in.Type
	}
	if m.cursor >= len(m.options) {
		m.cursor = 0
	}

	switch {
	case len(m.options) > 0 && !m.acceptsText():
		m.setFocus(focusOptions)
	case m.acceptsText():
		m.setFocus(focusInput)
	}
	m.syncViewport()
}

func (m *Model) acceptsText() bool {
	switch m.mode {
	case conversation.KindClarificationInput, conversation.KindClarificationEdit,
		conversation.KindContextInput, conversation.KindEstimationInput,
		conversation.KindEstimationReflection, conversation.KindPriorityFeeling,
		conversation.KindSingleTask, conversation.KindPriorityMatrix:
		return true
	}
	return false
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	if f == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.ready = true
	m.viewport.Width = width
	m.input.Width = max(10, width-4)
	if !m.opts.Plain {
		r, err := glamour.NewTermRenderer(glamour.WithStylePath("dark"), glamour.WithWordWrap(max(20, width-4)))
		if err == nil {
			m.renderer = r
		}
	}
	m.layout()
}

func (m *Model) layout() {
	reserved := lipgloss.Height(m.headerView()) + lipgloss.Height(m.optionsView()) + lipgloss.Height(m.footerView()) + 1
	m.viewport.Height = max(3, m.height-reserved)
	m.syncViewport()
}

func (m *Model) syncViewport() {
	m.viewport.SetContent(m.conversationView())
	m.viewport.GotoBottom()
}

func (m *Model) markdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

func (m *Model) conversationView() string {
	var b strings.Builder
	for _, msg := range m.messages {
		text := msg.Text()
		if text == "" {
			continue
		}
		switch msg.Role {
		case core.RoleUser:
			b.WriteString(UserLabelStyle.Render("You") + "\n" + text + "\n\n")
		default:
			b.WriteString(AssistantLabelStyle.Render("Planner") + "\n" + m.markdown(text) + "\n\n")
		}
	}
	if m.streaming != "" {
		b.WriteString(AssistantLabelStyle.Render("Planner") + "\n" + StreamingStyle.Render(m.streaming) + "\n")
	}
	return b.String()
}

func (m *Model) headerView() string {
	return HeaderStyle.Render("AI Planner") + " " + ModeStyle.Render(string(m.mode))
}

func (m *Model) optionsView() string {
	if len(m.options) == 0 {
		return ""
	}
	lines := make([]string, len(m.options))
	for i, opt := range m.options {
		if i == m.cursor && m.focus == focusOptions {
			lines[i] = SelectedOptionStyle.Render("> " + opt.Label)
		} else {
			lines[i] = OptionStyle.Render("  " + opt.Label)
		}
	}
	return OptionsBoxStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) footerView() string {
	var line string
	switch {
	case m.busy:
		line = m.spinner.View() + " thinking..."
	case m.err != nil:
		line = ErrorStyle.Render(m.err.Error())
	case m.status != "":
		line = StatusStyle.Render(m.status)
	}
	return m.input.View() + "\n" + line + "\n" + FooterStyle.Render(m.help.View(m.keys))
}

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}
	m.layout()
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.viewport.View(),
		m.optionsView(),
		m.footerView(),
	)
}

// Run starts the program and blocks until the user quits.
func Run(session Session, opts Options) error {
	m := New(session, opts)
	defer m.Close()
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
