package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/events"
	"github.com/lumia-zhu/aiplanner-sub000/internal/testutil"
	"github.com/lumia-zhu/aiplanner-sub000/internal/tools"
)

var testDay = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeAssistant struct {
	mu           sync.Mutex
	questions    []string
	structured   *core.StructuredContext
	decompose    *tools.DecomposeOutput
	reflection   string
	priorities   *tools.PrioritizeOutput
	err          error
	lastFeeling  string
	lastExtra    string
	lastQuestion []string
}

func (f *fakeAssistant) Clarify(context.Context, *core.Task) ([]string, error) {
	return f.questions, f.err
}

func (f *fakeAssistant) StructureAnswer(_ context.Context, _ *core.Task, qs []string, _ string) (*core.StructuredContext, error) {
	f.mu.Lock()
	f.lastQuestion = qs
	f.mu.Unlock()
	return f.structured, f.err
}

func (f *fakeAssistant) Decompose(_ context.Context, _ *core.Task, extra string) (*tools.DecomposeOutput, error) {
	f.mu.Lock()
	f.lastExtra = extra
	f.mu.Unlock()
	return f.decompose, f.err
}

func (f *fakeAssistant) ReflectOnEstimate(context.Context, *core.Task, int) (string, error) {
	return f.reflection, f.err
}

func (f *fakeAssistant) Prioritize(_ context.Context, _ []*core.Task, feeling string) (*tools.PrioritizeOutput, error) {
	f.mu.Lock()
	f.lastFeeling = feeling
	f.mu.Unlock()
	return f.priorities, f.err
}

type fixture struct {
	session *Session
	tasks   *testutil.MemoryTaskStore
	bus     *events.EventBus
}

func newFixture(t *testing.T, a Assistant, opts ...func(*Deps)) *fixture {
	t.Helper()
	store := testutil.NewMemoryTaskStore()
	require.NoError(t, store.CreateTask(context.Background(), &core.Task{
		ID: "t1", UserID: "u1", Date: core.DateKey(testDay), Title: "Plan conference talk",
	}))
	bus := events.New(128)
	deps := Deps{Assistant: a, Tasks: store, Bus: bus}
	for _, opt := range opts {
		opt(&deps)
	}
	cfg := Config{TransitionDelay: 5 * time.Millisecond, ChunkSize: 64, BufferPercent: 20}
	s := NewSession("s1", "u1", testDay, cfg, deps)
	t.Cleanup(func() {
		s.Close()
		bus.Close()
	})
	return &fixture{session: s, tasks: store, bus: bus}
}

func (f *fixture) dispatch(t *testing.T, evs ...Event) {
	t.Helper()
	for _, ev := range evs {
		require.NoError(t, f.session.Dispatch(context.Background(), ev), "event %s", ev.Kind)
	}
}

func (f *fixture) task(t *testing.T, id string) *core.Task {
	t.Helper()
	task, err := f.tasks.GetTask(context.Background(), id)
	require.NoError(t, err)
	return task
}

func lastAssistantText(s *Session) string {
	msgs := s.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == core.RoleAssistant {
			return msgs[i].Text()
		}
	}
	return ""
}

func TestSession_EstimateWithBuffer(t *testing.T) {
	for _, tt := range []struct {
		name       string
		withBuffer bool
		want       int
	}{
		{"with buffer", true, 72},
		{"without buffer", false, 60},
	} {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &fakeAssistant{reflection: "Remember rehearsal time."})
			f.dispatch(t,
				Event{Kind: EventChooseFlow, Flow: FlowSingleTask},
				Event{Kind: EventChooseAction, Action: ActionEstimate},
				Event{Kind: EventSelectTask, TaskID: "t1"},
				Event{Kind: EventSubmitEstimate, Minutes: 60},
			)
			refl, ok := f.session.State().Mode.(EstimationReflection)
			require.True(t, ok)
			assert.Equal(t, "Remember rehearsal time.", refl.Reflection)

			f.dispatch(t,
				Event{Kind: EventSubmitEstimate, Minutes: 60},
				Event{Kind: EventConfirmEstimate, WithBuffer: tt.withBuffer},
			)
			assert.Equal(t, SingleTaskAction{}, f.session.State().Mode)
			assert.Equal(t, tt.want, f.task(t, "t1").EstimatedMinutes)
		})
	}
}

func TestSession_ClarifyConfirm(t *testing.T) {
	a := &fakeAssistant{
		questions:  []string{"Which conference?", "When is it?"},
		structured: &core.StructuredContext{Summary: "Talk at GoDays", Deadline: "2026-05-01", DeadlineConfidence: core.ConfidenceHigh},
	}
	f := newFixture(t, a)
	f.dispatch(t,
		Event{Kind: EventChooseFlow, Flow: FlowSingleTask},
		Event{Kind: EventChooseAction, Action: ActionClarify},
		Event{Kind: EventSelectTask, TaskID: "t1"},
	)
	in, ok := f.session.State().Mode.(ClarificationInput)
	require.True(t, ok)
	assert.Equal(t, a.questions, in.Questions)

	f.dispatch(t, Event{Kind: EventSubmitAnswer, Text: "GoDays, May 1st"})
	in = f.session.State().Mode.(ClarificationInput)
	require.NotNil(t, in.Proposal)
	assert.Equal(t, a.questions, a.lastQuestion)

	f.dispatch(t, Event{Kind: EventConfirm})
	assert.Equal(t, SingleTaskAction{}, f.session.State().Mode)

	sc := f.task(t, "t1").StructuredContext
	require.NotNil(t, sc)
	assert.Equal(t, "Talk at GoDays", sc.Summary)
	assert.Equal(t, "GoDays, May 1st", sc.RawAnswer)
	assert.NotNil(t, sc.ConfirmedAt)

	var userTexts []string
	for _, m := range f.session.Messages() {
		if m.Role == core.RoleUser {
			userTexts = append(userTexts, m.Text())
		}
	}
	assert.Equal(t, []string{"GoDays, May 1st"}, userTexts)
}

func TestSession_DecomposeAccept(t *testing.T) {
	a := &fakeAssistant{decompose: &tools.DecomposeOutput{
		Subtasks: []tools.Subtask{
			{Title: "Draft outline", EstimatedMinutes: 30, Priority: core.PriorityHigh},
			{Title: "Build slides", EstimatedMinutes: 90, Priority: core.PriorityMedium},
		},
		TotalEstimatedMinutes: 120,
		Complexity:            "medium",
	}}
	f := newFixture(t, a)
	f.dispatch(t,
		Event{Kind: EventChooseFlow, Flow: FlowSingleTask},
		Event{Kind: EventChooseAction, Action: ActionDecompose},
		Event{Kind: EventSelectTask, TaskID: "t1"},
		Event{Kind: EventSubmitContext, Text: "for GoDays"},
	)
	assert.Equal(t, "for GoDays", a.lastExtra)
	st, ok := f.session.State().Mode.(SingleTask)
	require.True(t, ok)
	require.NotNil(t, st.Proposal)

	f.dispatch(t, Event{Kind: EventAcceptSubtasks})
	tasks, err := f.tasks.ListTasks(context.Background(), "u1", testDay)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	children := 0
	for _, task := range tasks {
		if task.ParentID == "t1" {
			children++
		}
	}
	assert.Equal(t, 2, children)
}

func TestSession_PrioritizeApply(t *testing.T) {
	a := &fakeAssistant{priorities: &tools.PrioritizeOutput{
		Priorities: []tools.TaskPriority{{TaskID: "t1", Quadrant: core.QuadrantImportantNotUrgent, Urgency: 3, Importance: 8, SuggestedOrder: 1}},
		Strategy:   "Protect focus time",
	}}
	profiles := testutil.NewMemoryProfileStore()
	require.NoError(t, profiles.UpsertProfile(context.Background(), &core.UserProfile{UserID: "u1", Occupation: "Engineer"}))
	f := newFixture(t, a, func(d *Deps) { d.Profiles = profiles })

	f.dispatch(t,
		Event{Kind: EventChooseFlow, Flow: FlowPrioritize},
		Event{Kind: EventSubmitFeeling, Text: "tired"},
	)
	assert.Contains(t, a.lastFeeling, "tired")
	assert.Contains(t, a.lastFeeling, "Occupation: Engineer")
	_, ok := f.session.State().Mode.(PriorityMatrix)
	require.True(t, ok)

	f.dispatch(t, Event{Kind: EventApply})
	assert.Equal(t, Initial{}, f.session.State().Mode)
	task := f.task(t, "t1")
	assert.Equal(t, core.QuadrantImportantNotUrgent, task.Quadrant)
	assert.Equal(t, core.PriorityMedium, task.Priority)
}

func TestSession_EffectFailureApologizes(t *testing.T) {
	f := newFixture(t, &fakeAssistant{err: core.ErrAdapter("mock", "endpoint down", false)})
	f.dispatch(t,
		Event{Kind: EventChooseFlow, Flow: FlowSingleTask},
		Event{Kind: EventChooseAction, Action: ActionDecompose},
		Event{Kind: EventSelectTask, TaskID: "t1"},
		Event{Kind: EventSkip},
	)
	assert.Equal(t, SingleTaskAction{}, f.session.State().Mode)

	testutil.Eventually(t, time.Second, func() bool {
		msgs := f.session.Messages()
		apologized := false
		for _, m := range msgs {
			if m.Text() == TextApology {
				apologized = true
			}
		}
		if !apologized {
			return false
		}
		in := msgs[len(msgs)-1].Interactive()
		return in != nil && in.Type == core.InteractiveSingleTaskAction
	}, "apology and option set not shown after failure")
}

func TestSession_MissingTaskFailsGracefully(t *testing.T) {
	f := newFixture(t, &fakeAssistant{})
	f.dispatch(t,
		Event{Kind: EventChooseFlow, Flow: FlowSingleTask},
		Event{Kind: EventChooseAction, Action: ActionClarify},
		Event{Kind: EventSelectTask, TaskID: "ghost"},
	)
	assert.Equal(t, SingleTaskAction{}, f.session.State().Mode)
}

func TestSession_ForeignTaskIsNotFound(t *testing.T) {
	f := newFixture(t, &fakeAssistant{reflection: "ok"})
	require.NoError(t, f.tasks.CreateTask(context.Background(), &core.Task{
		ID: "foreign", UserID: "u2", Date: core.DateKey(testDay), Title: "Someone else's task",
	}))

	f.dispatch(t,
		Event{Kind: EventChooseFlow, Flow: FlowSingleTask},
		Event{Kind: EventChooseAction, Action: ActionEstimate},
		Event{Kind: EventSelectTask, TaskID: "foreign"},
		Event{Kind: EventSubmitEstimate, Minutes: 60},
	)
	assert.Equal(t, SingleTaskAction{}, f.session.State().Mode)

	err := f.session.Dispatch(context.Background(), Event{Kind: EventConfirmEstimate, WithBuffer: true})
	assert.Error(t, err)

	got := f.task(t, "foreign")
	assert.Equal(t, "u2", got.UserID)
	assert.Zero(t, got.EstimatedMinutes)
}

func TestSession_FirstOptionPressAccepted(t *testing.T) {
	f := newFixture(t, &fakeAssistant{})
	select {
	case <-f.session.Start():
	case <-time.After(time.Second):
		t.Fatal("greeting not streamed")
	}
	greeting := f.session.Messages()[0]

	err := f.session.Dispatch(context.Background(), Event{Kind: EventBack, MessageID: greeting.ID})
	assert.True(t, core.IsCategory(err, core.ErrCatState), "back is not valid from initial")
	got, ok := f.session.log.Get(greeting.ID)
	require.True(t, ok)
	assert.True(t, got.Interactive().IsActive, "a rejected event must leave the options usable")

	require.NoError(t, f.session.Dispatch(context.Background(),
		Event{Kind: EventChooseFlow, Flow: FlowSingleTask, MessageID: greeting.ID}))
	assert.Equal(t, SingleTaskAction{}, f.session.State().Mode)
}

func TestSession_InteractiveUsedOnce(t *testing.T) {
	f := newFixture(t, &fakeAssistant{})
	select {
	case <-f.session.Start():
	case <-time.After(time.Second):
		t.Fatal("greeting not streamed")
	}
	greeting := f.session.Messages()[0]
	require.NotNil(t, greeting.Interactive())
	assert.Equal(t, core.InteractiveWorkflowOptions, greeting.Interactive().Type)

	f.dispatch(t, Event{Kind: EventChooseFlow, Flow: FlowSingleTask, MessageID: greeting.ID})

	err := f.session.Dispatch(context.Background(), Event{Kind: EventBack, MessageID: greeting.ID})
	assert.True(t, core.IsCategory(err, core.ErrCatState), "second action on the same options must fail")
	assert.Equal(t, SingleTaskAction{}, f.session.State().Mode)
}

func TestSession_StalePromptDropped(t *testing.T) {
	f := newFixture(t, &fakeAssistant{})
	f.dispatch(t, Event{Kind: EventChooseFlow, Flow: FlowSingleTask})
	stale := f.session.State().Epoch
	f.dispatch(t, Event{Kind: EventChooseAction, Action: ActionEstimate})

	f.session.firePrompt(prompt(core.InteractiveSingleTaskAction, TextPickAction, stale))

	testutil.Eventually(t, time.Second, func() bool {
		return len(f.session.Messages()) == 1
	}, "current prompt not shown")
	time.Sleep(20 * time.Millisecond)

	msgs := f.session.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, core.InteractiveTaskSelection, msgs[0].Interactive().Type)

	opts, ok := msgs[0].Interactive().Data.([]Option)
	require.True(t, ok)
	assert.Equal(t, []Option{{Value: "t1", Label: "Plan conference talk"}}, opts)
}

func TestSession_EndCollapsesSidebar(t *testing.T) {
	f := newFixture(t, &fakeAssistant{})
	collapse := f.bus.Subscribe(events.TypeSidebarCollapse)

	f.dispatch(t, Event{Kind: EventChooseFlow, Flow: FlowEnd})
	select {
	case <-collapse:
	case <-time.After(time.Second):
		t.Fatal("no sidebar_collapse event")
	}
	assert.Equal(t, TextGoodbye, lastAssistantText(f.session))

	err := f.session.Dispatch(context.Background(), Event{Kind: EventBack})
	assert.Error(t, err)
}

func TestSession_RejectsInternalEvents(t *testing.T) {
	f := newFixture(t, &fakeAssistant{})
	err := f.session.Dispatch(context.Background(), Event{Kind: EventEffectFailed, Err: errors.New("x")})
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))
}

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(Config{TransitionDelay: time.Millisecond}, Deps{Assistant: &fakeAssistant{}})
	s := m.Create("u1", testDay)

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, []string{s.ID()}, m.IDs())

	require.NoError(t, m.Delete(s.ID()))
	_, err = m.Get(s.ID())
	assert.True(t, core.IsCategory(err, core.ErrCatNotFound))
	assert.True(t, core.IsCategory(m.Delete(s.ID()), core.ErrCatNotFound))
	assert.Error(t, s.Dispatch(context.Background(), Event{Kind: EventChooseFlow, Flow: FlowEnd}))
}
