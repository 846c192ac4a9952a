package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumia-zhu/aiplanner-sub000/internal/clip"
	"github.com/lumia-zhu/aiplanner-sub000/internal/conversation"
	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/events"
)

type fakeSession struct {
	mu         sync.Mutex
	state      conversation.State
	messages   []core.ChatMessage
	dispatched []conversation.Event
	err        error
	// onDispatch simulates the session reacting to an event.
	onDispatch func(*fakeSession, conversation.Event)
}

func (f *fakeSession) ID() string { return "s1" }

func (f *fakeSession) State() conversation.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSession) Messages() []core.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.ChatMessage(nil), f.messages...)
}

func (f *fakeSession) Dispatch(_ context.Context, ev conversation.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, ev)
	if f.onDispatch != nil {
		f.onDispatch(f, ev)
	}
	return f.err
}

func greeting() core.ChatMessage {
	return core.ChatMessage{ID: "g1", Role: core.RoleAssistant, Content: []core.ContentPart{
		core.TextPart("Hi! What would you like to do?"),
		core.InteractivePart(core.InteractiveWorkflowOptions, []conversation.Option{
			{Value: "single-task", Label: "Work on one task"},
			{Value: "prioritize", Label: "Prioritize my day"},
			{Value: "end", Label: "I'm done"},
		}),
	}}
}

func newTestModel(t *testing.T, s *fakeSession, opts Options) *Model {
	t.Helper()
	opts.Plain = true
	m := New(s, opts)
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

// run executes cmd and feeds its message back, as the bubbletea runtime does.
func run(m *Model, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	m.Update(cmd())
}

func TestModel_ChoosesOption(t *testing.T) {
	s := &fakeSession{state: conversation.InitialState(), messages: []core.ChatMessage{greeting()}}
	m := newTestModel(t, s, Options{})

	assert.Equal(t, focusOptions, m.focus)
	assert.Contains(t, m.View(), "Prioritize my day")

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	run(m, cmd)

	assert.False(t, m.busy)
	require.Len(t, s.dispatched, 1)
	assert.Equal(t, conversation.Event{Kind: conversation.EventChooseFlow, Flow: conversation.FlowPrioritize, MessageID: "g1"}, s.dispatched[0])
}

func TestModel_SubmitsEstimateText(t *testing.T) {
	s := &fakeSession{state: conversation.State{Mode: conversation.EstimationInput{TaskID: "t1"}, Epoch: 3}}
	m := newTestModel(t, s, Options{})
	assert.Equal(t, focusInput, m.focus)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("45m")})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(m, cmd)

	require.Len(t, s.dispatched, 1)
	assert.Equal(t, conversation.EventSubmitEstimate, s.dispatched[0].Kind)
	assert.Equal(t, 45, s.dispatched[0].Minutes)
	assert.Empty(t, m.input.Value())
}

func TestModel_InvalidTextShowsError(t *testing.T) {
	s := &fakeSession{state: conversation.State{Mode: conversation.EstimationInput{TaskID: "t1"}}}
	m := newTestModel(t, s, Options{})

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("soon")})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Empty(t, s.dispatched)
	assert.Contains(t, m.View(), "enter a duration")
}

func TestModel_DispatchErrorIsShown(t *testing.T) {
	s := &fakeSession{
		state:    conversation.InitialState(),
		messages: []core.ChatMessage{greeting()},
		err:      core.ErrInvalidTransition("initial", "apply"),
	}
	m := newTestModel(t, s, Options{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(m, cmd)
	assert.Error(t, m.err)
	assert.False(t, m.busy)
}

func TestModel_StreamsFromBus(t *testing.T) {
	bus := events.New(16)
	defer bus.Close()
	s := &fakeSession{state: conversation.InitialState()}
	m := newTestModel(t, s, Options{Bus: bus})

	bus.Publish(events.NewStreamChunkEvent("s1", "st1", "Hello the"))
	run(m, m.waitForEvent())
	assert.Contains(t, m.conversationView(), "Hello the")

	s.mu.Lock()
	s.messages = []core.ChatMessage{greeting()}
	s.mu.Unlock()
	bus.Publish(events.NewMessageFinalizedEvent("s1", "st1", greeting()))
	run(m, m.waitForEvent())

	assert.Empty(t, m.streaming)
	assert.Len(t, m.options, 3)
	assert.Contains(t, m.conversationView(), "What would you like to do?")

	bus.Publish(events.NewSidebarCollapseEvent("s1"))
	run(m, m.waitForEvent())
	assert.Contains(t, m.status, "session ended")
}

func TestModel_RefreshMovesFocusWithMode(t *testing.T) {
	s := &fakeSession{state: conversation.InitialState(), messages: []core.ChatMessage{greeting()}}
	s.onDispatch = func(f *fakeSession, ev conversation.Event) {
		f.state = conversation.State{Mode: conversation.PriorityFeeling{}, Epoch: 1}
	}
	m := newTestModel(t, s, Options{})
	require.Equal(t, focusOptions, m.focus)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(m, cmd)
	assert.Equal(t, conversation.KindPriorityFeeling, m.mode)
	assert.Equal(t, focusInput, m.focus)
}

type fakeCopier struct {
	got    string
	result clip.Result
	err    error
}

func (c *fakeCopier) Copy(text string) (clip.Result, error) {
	c.got = text
	return c.result, c.err
}

func TestModel_CopyLastReply(t *testing.T) {
	c := &fakeCopier{result: clip.Result{Method: clip.MethodFile, FilePath: "/tmp/x.txt"}}
	s := &fakeSession{state: conversation.InitialState(), messages: []core.ChatMessage{greeting()}}
	m := newTestModel(t, s, Options{Copier: c})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	run(m, cmd)
	assert.Equal(t, "Hi! What would you like to do?", c.got)
	assert.Contains(t, m.status, "/tmp/x.txt")

	c.err = errors.New("no clipboard")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	run(m, cmd)
	assert.True(t, strings.HasPrefix(c.got, "[assistant]"))
	assert.EqualError(t, m.err, "no clipboard")
}

func TestModel_QuitKey(t *testing.T) {
	s := &fakeSession{state: conversation.InitialState()}
	m := newTestModel(t, s, Options{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
