package conversation

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumia-zhu/aiplanner-sub000/internal/config"
	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/events"
	"github.com/lumia-zhu/aiplanner-sub000/internal/logging"
)

const (
	DefaultTransitionDelay = time.Second
	DefaultBufferPercent   = 20
	DefaultEffectTimeout   = 2 * time.Minute

	codeSessionClosed = "SESSION_CLOSED"
)

// Config tunes a session.
type Config struct {
	TransitionDelay time.Duration
	ChunkSize       int
	ChunkDelay      time.Duration
	BufferPercent   int
	EffectTimeout   time.Duration
}

// DefaultConfig returns the built-in session settings.
func DefaultConfig() Config {
	return Config{
		TransitionDelay: DefaultTransitionDelay,
		ChunkSize:       DefaultChunkSize,
		ChunkDelay:      DefaultChunkDelay,
		BufferPercent:   DefaultBufferPercent,
		EffectTimeout:   DefaultEffectTimeout,
	}
}

// ConfigFrom maps the conversation config section.
func ConfigFrom(c config.ConversationConfig, aiTimeout time.Duration) Config {
	cfg := Config{
		TransitionDelay: c.TransitionDelay,
		ChunkSize:       c.ChunkSize,
		ChunkDelay:      c.ChunkDelay,
		BufferPercent:   c.BufferPercent,
		EffectTimeout:   aiTimeout,
	}
	if cfg.EffectTimeout <= 0 {
		cfg.EffectTimeout = DefaultEffectTimeout
	}
	return cfg
}

// BufferedMinutes pads minutes by percent, rounded to the nearest minute.
func BufferedMinutes(minutes, percent int) int {
	return int(math.Round(float64(minutes) * (1 + float64(percent)/100)))
}

// Deps are the collaborators of a session. Tasks is required for every
// task-bound flow; Chats and Profiles are optional.
type Deps struct {
	Assistant Assistant
	Tasks     core.TaskStore
	Chats     core.ChatStore
	Profiles  core.ProfileStore
	Bus       *events.EventBus
	Logger    *logging.Logger
	Now       func() time.Time
}

// Option is one button of an interactive option set.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Session is one user's guided conversation for one day. Dispatch calls are
// serialized; AI work runs inside the dispatching call.
type Session struct {
	id     string
	userID string
	date   time.Time
	cfg    Config
	deps   Deps
	logger *logging.Logger

	log      *Log
	streamer *Streamer

	turn   sync.Mutex
	timer  *time.Timer
	closed bool

	stateMu sync.RWMutex
	state   State

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession creates a session. Call Start to post the greeting.
func NewSession(id, userID string, date time.Time, cfg Config, deps Deps) *Session {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.BufferPercent <= 0 {
		cfg.BufferPercent = DefaultBufferPercent
	}
	if cfg.EffectTimeout <= 0 {
		cfg.EffectTimeout = DefaultEffectTimeout
	}
	logger := logging.OrNop(deps.Logger).WithSession(id).WithUser(userID)
	log := NewLog(id, userID, date, deps.Chats, deps.Bus, logger)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       id,
		userID:   userID,
		date:     date,
		cfg:      cfg,
		deps:     deps,
		logger:   logger,
		log:      log,
		streamer: NewStreamer(log, deps.Bus, id, cfg.ChunkSize, cfg.ChunkDelay),
		state:    InitialState(),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.streamer.now = deps.Now
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// UserID returns the owner.
func (s *Session) UserID() string { return s.userID }

// Date returns the day the session plans.
func (s *Session) Date() time.Time { return s.date }

// State returns the current state.
func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Messages returns the conversation so far.
func (s *Session) Messages() []core.ChatMessage {
	return s.log.Messages()
}

// Streamer exposes the session's streamer.
func (s *Session) Streamer() *Streamer { return s.streamer }

// Start posts the greeting with the top-level options.
func (s *Session) Start() <-chan struct{} {
	s.turn.Lock()
	defer s.turn.Unlock()
	return s.streamer.Stream(TextGreeting, s.interactive(core.InteractiveWorkflowOptions))
}

// Dispatch applies a user event. Invalid events are rejected without
// changing anything. Failures inside effects never surface here: the session
// apologizes and returns to a stable option set instead.
func (s *Session) Dispatch(ctx context.Context, ev Event) error {
	if ev.Internal() {
		return core.ErrValidation(core.CodeInvalidInput, fmt.Sprintf("%s cannot be dispatched", ev.Kind))
	}

	s.turn.Lock()
	defer s.turn.Unlock()
	if s.closed {
		return core.ErrState(codeSessionClosed, "session is closed")
	}

	next, effects, err := Transition(s.State(), ev)
	if err != nil {
		return err
	}
	if ev.MessageID != "" {
		if err := s.log.Deactivate(ev.MessageID); err != nil {
			return err
		}
	}
	if text := userText(ev); text != "" {
		s.log.Append(core.ChatMessage{
			ID:        uuid.NewString(),
			Role:      core.RoleUser,
			Content:   []core.ContentPart{core.TextPart(text)},
			CreatedAt: s.deps.Now(),
		})
	}
	s.commit(next)
	s.run(ctx, effects)
	return nil
}

// Close stops pending prompts and the live stream. Further events are
// rejected.
func (s *Session) Close() {
	s.turn.Lock()
	defer s.turn.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.cancel()
	s.streamer.Cancel()
}

func (s *Session) commit(next State) {
	s.stateMu.Lock()
	prev := s.state
	s.state = next
	s.stateMu.Unlock()

	if prev.Mode.Kind() != next.Mode.Kind() {
		s.logger.Debug("mode changed", "from", string(prev.Mode.Kind()), "to", string(next.Mode.Kind()))
		s.deps.Bus.Publish(events.NewModeChangedEvent(s.id, string(prev.Mode.Kind()), string(next.Mode.Kind())))
	}
}

// apply feeds an internal event back into the machine.
func (s *Session) apply(ctx context.Context, ev Event) {
	next, effects, err := Transition(s.State(), ev)
	if err != nil {
		s.logger.Error("internal event rejected", "event", string(ev.Kind), "error", err)
		if ev.Kind == EventEffectFailed {
			return
		}
		s.apply(ctx, Event{Kind: EventEffectFailed, Err: err})
		return
	}
	s.commit(next)
	s.run(ctx, effects)
}

func (s *Session) run(ctx context.Context, effects []Effect) {
	for _, e := range effects {
		if err := s.perform(ctx, e); err != nil {
			s.logger.Warn("conversation effect failed", "effect", string(e.Kind), "error", err)
			s.apply(ctx, Event{Kind: EventEffectFailed, Err: err})
			return
		}
	}
}

func (s *Session) perform(ctx context.Context, e Effect) error {
	switch e.Kind {
	case EffectSay:
		s.streamer.Stream(e.Text, nil)
		return nil
	case EffectPrompt:
		s.schedulePrompt(e)
		return nil
	case EffectClose:
		if s.timer != nil {
			s.timer.Stop()
		}
		done := s.streamer.Stream(e.Text, nil)
		go func() {
			<-done
			s.deps.Bus.Publish(events.NewSidebarCollapseEvent(s.id))
		}()
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.EffectTimeout)
	defer cancel()

	switch e.Kind {
	case EffectClarify:
		task, err := s.task(ctx, e.TaskID)
		if err != nil {
			return err
		}
		qs, err := s.deps.Assistant.Clarify(ctx, task)
		if err != nil {
			return err
		}
		s.apply(ctx, Event{Kind: EventQuestionsReady, Questions: qs})

	case EffectStructureAnswer:
		task, err := s.task(ctx, e.TaskID)
		if err != nil {
			return err
		}
		sc, err := s.deps.Assistant.StructureAnswer(ctx, task, e.Questions, e.Answer)
		if err != nil {
			return err
		}
		s.apply(ctx, Event{Kind: EventAnswerStructured, Context: sc})

	case EffectCommitContext:
		task, err := s.task(ctx, e.TaskID)
		if err != nil {
			return err
		}
		sc := *e.Context
		if sc.RawAnswer == "" {
			sc.RawAnswer = e.Answer
		}
		now := s.deps.Now()
		sc.ConfirmedAt = &now
		task.StructuredContext = &sc
		task.UpdatedAt = now
		return s.deps.Tasks.UpdateTask(ctx, task)

	case EffectDecompose:
		task, err := s.task(ctx, e.TaskID)
		if err != nil {
			return err
		}
		out, err := s.deps.Assistant.Decompose(ctx, task, e.Text)
		if err != nil {
			return err
		}
		s.apply(ctx, Event{Kind: EventDecompositionReady, Decomposition: out})

	case EffectCommitSubtasks:
		parent, err := s.task(ctx, e.TaskID)
		if err != nil {
			return err
		}
		now := s.deps.Now()
		for _, st := range e.Subtasks {
			if err := s.deps.Tasks.CreateTask(ctx, &core.Task{
				ID:               uuid.NewString(),
				UserID:           parent.UserID,
				Date:             parent.Date,
				Title:            st.Title,
				Description:      st.Description,
				EstimatedMinutes: st.EstimatedMinutes,
				Priority:         st.Priority,
				ParentID:         parent.ID,
				CreatedAt:        now,
				UpdatedAt:        now,
			}); err != nil {
				return err
			}
		}

	case EffectReflectEstimate:
		task, err := s.task(ctx, e.TaskID)
		if err != nil {
			return err
		}
		text, err := s.deps.Assistant.ReflectOnEstimate(ctx, task, e.Minutes)
		if err != nil {
			return err
		}
		s.apply(ctx, Event{Kind: EventReflectionReady, Text: text})

	case EffectCommitEstimate:
		task, err := s.task(ctx, e.TaskID)
		if err != nil {
			return err
		}
		minutes := e.Minutes
		if e.WithBuffer {
			minutes = BufferedMinutes(minutes, s.cfg.BufferPercent)
		}
		task.EstimatedMinutes = minutes
		task.UpdatedAt = s.deps.Now()
		return s.deps.Tasks.UpdateTask(ctx, task)

	case EffectPrioritize:
		tasks, err := s.tasks(ctx)
		if err != nil {
			return err
		}
		out, err := s.deps.Assistant.Prioritize(ctx, tasks, s.feelingContext(ctx, e.Feeling))
		if err != nil {
			return err
		}
		titles := make(map[string]string, len(tasks))
		for _, t := range tasks {
			titles[t.ID] = t.Title
		}
		s.apply(ctx, Event{Kind: EventPrioritiesReady, Priorities: out, Titles: titles})

	case EffectApplyPriorities:
		for _, p := range e.Priorities {
			task, err := s.task(ctx, p.TaskID)
			if err != nil {
				return err
			}
			task.Quadrant = p.Quadrant
			task.Priority = p.Quadrant.Priority()
			task.UpdatedAt = s.deps.Now()
			if err := s.deps.Tasks.UpdateTask(ctx, task); err != nil {
				return err
			}
		}

	default:
		return core.ErrInternal("unknown effect "+string(e.Kind), nil)
	}
	return nil
}

func (s *Session) schedulePrompt(e Effect) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.TransitionDelay, func() { s.firePrompt(e) })
}

// firePrompt shows a delayed option set once the previous message finished
// streaming, unless a newer transition happened in between.
func (s *Session) firePrompt(e Effect) {
	if err := s.streamer.Wait(s.ctx); err != nil {
		return
	}
	s.turn.Lock()
	defer s.turn.Unlock()
	if s.closed {
		return
	}
	if epoch := s.State().Epoch; epoch != e.Epoch {
		s.logger.Debug("dropping stale prompt", "interactive", string(e.Interactive), "epoch", e.Epoch, "current", epoch)
		return
	}
	s.streamer.Stream(e.Text, s.interactive(e.Interactive))
}

func (s *Session) interactive(t core.InteractiveType) *core.Interactive {
	return &core.Interactive{Type: t, Data: s.optionsFor(t), IsActive: true}
}

func (s *Session) optionsFor(t core.InteractiveType) any {
	switch t {
	case core.InteractiveWorkflowOptions:
		return []Option{
			{Value: string(FlowSingleTask), Label: "Work on one task"},
			{Value: string(FlowPrioritize), Label: "Prioritize my day"},
			{Value: string(FlowEnd), Label: "I'm done"},
		}
	case core.InteractiveSingleTaskAction:
		return []Option{
			{Value: string(ActionClarify), Label: "Clarify a task"},
			{Value: string(ActionDecompose), Label: "Break a task down"},
			{Value: string(ActionEstimate), Label: "Estimate a task"},
			{Value: string(EventBack), Label: "Back"},
		}
	case core.InteractiveFeelingOptions:
		return []Option{
			{Value: "energetic", Label: "Full of energy"},
			{Value: "calm", Label: "Calm and focused"},
			{Value: "tired", Label: "A bit tired"},
			{Value: "stressed", Label: "Stressed"},
		}
	case core.InteractiveClarificationConfirm:
		return []Option{
			{Value: string(EventConfirm), Label: "Looks right"},
			{Value: string(EventReject), Label: "Needs changes"},
		}
	case core.InteractiveEstimationConfirm:
		minutes := 0
		if m, ok := s.State().Mode.(EstimationBuffer); ok {
			minutes = m.Minutes
		}
		buffered := BufferedMinutes(minutes, s.cfg.BufferPercent)
		return []Option{
			{Value: "with_buffer", Label: fmt.Sprintf("%d minutes (with %d%% buffer)", buffered, s.cfg.BufferPercent)},
			{Value: "without_buffer", Label: fmt.Sprintf("%d minutes", minutes)},
			{Value: string(EventCancel), Label: "Cancel"},
		}
	case core.InteractiveTaskSelection:
		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		defer cancel()
		tasks, err := s.tasks(ctx)
		if err != nil {
			s.logger.Warn("listing tasks for selection failed", "error", err)
		}
		opts := make([]Option, 0, len(tasks))
		for _, t := range tasks {
			if !t.Completed {
				opts = append(opts, Option{Value: t.ID, Label: t.Title})
			}
		}
		return opts
	}
	return nil
}

func (s *Session) feelingContext(ctx context.Context, feeling string) string {
	text := feeling
	if text != "" {
		text = "The user feels " + text + " today."
	}
	if s.deps.Profiles == nil {
		return text
	}
	p, err := s.deps.Profiles.GetProfile(ctx, s.userID)
	if err != nil || p == nil {
		return text
	}
	if p.Occupation != "" {
		text = joinNonEmpty(text, "Occupation: "+p.Occupation)
	}
	if p.WorkHours != "" {
		text = joinNonEmpty(text, "Working hours: "+p.WorkHours)
	}
	return text
}

func (s *Session) task(ctx context.Context, id string) (*core.Task, error) {
	if s.deps.Tasks == nil {
		return nil, core.ErrConfig("NO_TASK_STORE", "session has no task store")
	}
	t, err := s.deps.Tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	// Tasks of other users are reported as missing.
	if t.UserID != s.userID {
		return nil, core.ErrNotFound("task", id)
	}
	return t, nil
}

func (s *Session) tasks(ctx context.Context) ([]*core.Task, error) {
	if s.deps.Tasks == nil {
		return nil, core.ErrConfig("NO_TASK_STORE", "session has no task store")
	}
	return s.deps.Tasks.ListTasks(ctx, s.userID, s.date)
}

func userText(ev Event) string {
	switch ev.Kind {
	case EventSubmitAnswer, EventSubmitEdit, EventSubmitContext, EventSubmitFeeling:
		return ev.Text
	case EventSubmitEstimate:
		return strconv.Itoa(ev.Minutes) + " minutes"
	}
	return ""
}
