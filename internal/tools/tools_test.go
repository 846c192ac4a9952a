package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/events"
	"github.com/lumia-zhu/aiplanner-sub000/internal/prompts"
	"github.com/lumia-zhu/aiplanner-sub000/internal/testutil"
)

const (
	decomposeMarker  = "breaks a task into concrete"
	estimateMarker   = "estimate how long"
	clarifyMarker    = "Ask the questions that would make it"
	checklistMarker  = "practical execution checklist"
	prioritizeMarker = "urgency/importance matrix"
)

const talkDecomposition = `{
  "subtasks": [
    {"title": "Pick the topic", "estimated_minutes": 30, "priority": "high", "dependencies": []},
    {"title": "Draft the outline", "estimated_minutes": 60, "priority": "high", "dependencies": [0, 0, 7]},
    {"title": "Build the slides", "estimated_minutes": 120, "priority": "medium", "dependencies": [1, 2]}
  ],
  "reasoning": "Topic first, then structure, then slides.",
  "total_estimated_minutes": 0,
  "complexity": "medium"
}`

func newDeps(p *testutil.MockProvider) Deps {
	return Deps{AI: testutil.NewService(p), Prompts: prompts.MustNewRenderer()}
}

func testConfig(typ ToolType) Config {
	cfg := DefaultConfigs()[typ]
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestDecompose_PlanConferenceTalk(t *testing.T) {
	mock := testutil.NewMockProvider().On("Plan conference talk", talkDecomposition)
	tool := NewDecomposeTool(testConfig(TypeDecompose), newDeps(mock))

	res := tool.Execute(context.Background(), DecomposeInput{Title: "Plan conference talk"}, ExecutionContext{UserID: "u1"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, TypeDecompose, res.ToolType)

	out, ok := Output[DecomposeOutput](res)
	require.True(t, ok)
	require.Len(t, out.Subtasks, 3)
	assert.Equal(t, []int{0}, out.Subtasks[1].Dependencies, "duplicate and out-of-range indexes dropped")
	assert.Equal(t, []int{1}, out.Subtasks[2].Dependencies, "self dependency dropped")
	assert.Equal(t, 210, out.TotalEstimatedMinutes)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].Request.Schema)
	assert.Equal(t, "decompose_output", calls[0].Request.Schema.Name)

	stats := tool.Statistics()
	assert.Equal(t, int64(1), stats.TotalExecutions)
	assert.Equal(t, int64(1), stats.SuccessfulExecutions)
}

func TestPrioritize_RejectsMoreThanFiftyTasks(t *testing.T) {
	mock := testutil.NewMockProvider()
	tool := NewPrioritizeTool(testConfig(TypePrioritize), newDeps(mock))

	in := PrioritizeInput{}
	for i := 0; i < 51; i++ {
		in.Tasks = append(in.Tasks, PrioritizeTask{ID: fmt.Sprintf("t%d", i), Title: "task"})
	}
	res := tool.Execute(context.Background(), in, ExecutionContext{})

	require.False(t, res.Success)
	var de *core.DomainError
	require.True(t, errors.As(res.Err, &de))
	assert.Equal(t, core.ErrCatValidation, de.Category)
	assert.Equal(t, core.CodeTooManyTasks, de.Code)
	assert.Equal(t, 0, mock.CallCount(""), "validation failures never reach the model")

	stats := tool.Statistics()
	assert.Equal(t, int64(1), stats.FailedExecutions)
	assert.Equal(t, stats.TotalExecutions, stats.SuccessfulExecutions+stats.FailedExecutions)
}

func TestPrioritize_NormalizesOrder(t *testing.T) {
	mock := testutil.NewMockProvider().On(prioritizeMarker, `{
	  "priorities": [
	    {"task_id": "b", "quadrant": "important-not-urgent", "urgency": 3, "importance": 8, "reasoning": "", "suggested_order": 5},
	    {"task_id": "ghost", "quadrant": "urgent-important", "urgency": 9, "importance": 9, "reasoning": "", "suggested_order": 1},
	    {"task_id": "a", "quadrant": "urgent-important", "urgency": 9, "importance": 9, "reasoning": "", "suggested_order": 2}
	  ],
	  "strategy": "Do a first."
	}`)
	tool := NewPrioritizeTool(testConfig(TypePrioritize), newDeps(mock))

	res := tool.Execute(context.Background(), map[string]any{
		"tasks": []map[string]any{{"id": "a", "title": "Tax return"}, {"id": "b", "title": "Gym"}},
		"today": "2026-03-01",
	}, ExecutionContext{})
	require.True(t, res.Success, res.Error)

	out, _ := Output[PrioritizeOutput](res)
	require.Len(t, out.Priorities, 2)
	assert.Equal(t, "a", out.Priorities[0].TaskID)
	assert.Equal(t, 1, out.Priorities[0].SuggestedOrder)
	assert.Equal(t, 2, out.Priorities[1].SuggestedOrder)
}

func TestBase_DisabledToolIsNotCounted(t *testing.T) {
	mock := testutil.NewMockProvider()
	tool := NewEstimateTool(testConfig(TypeEstimate), newDeps(mock))
	tool.SetEnabled(false)

	res := tool.Execute(context.Background(), EstimateInput{Title: "x"}, ExecutionContext{})
	require.False(t, res.Success)
	assert.True(t, core.IsCategory(res.Err, core.ErrCatToolDisabled))
	assert.Equal(t, Statistics{}, tool.Statistics())
	assert.Zero(t, mock.CallCount(""))

	tool.SetEnabled(true)
	assert.True(t, tool.Config().Enabled)
}

func TestBase_InputValidation(t *testing.T) {
	mock := testutil.NewMockProvider()
	tool := NewClarifyTool(testConfig(TypeClarify), newDeps(mock))

	tests := []struct {
		name  string
		input any
	}{
		{"missing title", ClarifyInput{}},
		{"nil", nil},
		{"wrong shape", `{"title": 5}`},
		{"too many questions", &ClarifyInput{Title: "x", MaxQuestions: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tool.Execute(context.Background(), tt.input, ExecutionContext{})
			require.False(t, res.Success)
			assert.True(t, core.IsCategory(res.Err, core.ErrCatValidation), "got %v", res.Err)
		})
	}
	assert.Zero(t, mock.CallCount(""))
	assert.Equal(t, int64(len(tests)), tool.Statistics().FailedExecutions)
}

func TestBase_ParseErrorIsAFailedExecution(t *testing.T) {
	mock := testutil.NewMockProvider().WithResponse("Sorry, I can't help with that.")
	tool := NewChecklistTool(testConfig(TypeChecklist), newDeps(mock))

	res := tool.Execute(context.Background(), ChecklistInput{Title: "Move flat"}, ExecutionContext{})
	require.False(t, res.Success)
	assert.True(t, core.IsCategory(res.Err, core.ErrCatParse))
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, 1, mock.CallCount(""), "parse errors are not retried")

	stats := tool.Statistics()
	assert.Equal(t, int64(1), stats.FailedExecutions)
	assert.NotEmpty(t, stats.LastError)
}

func TestBase_RetriesRetryableFailures(t *testing.T) {
	mock := testutil.NewMockProvider().
		Enqueue(testutil.MockResponse{Err: core.ErrAdapter("mock", "overloaded", true)}).
		On(estimateMarker, `{"estimated_minutes": 45, "min_minutes": 60, "max_minutes": 30, "confidence": "medium", "reasoning": "r"}`)
	cfg := testConfig(TypeEstimate)
	cfg.Retry, cfg.MaxRetries = true, 1
	tool := NewEstimateTool(cfg, newDeps(mock))

	res := tool.Execute(context.Background(), EstimateInput{Title: "Write report"}, ExecutionContext{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, mock.CallCount("Complete"))

	out, _ := Output[EstimateOutput](res)
	assert.Equal(t, 45, out.MinMinutes, "min clamped to the estimate")
	assert.Equal(t, 45, out.MaxMinutes, "max raised to the estimate")
}

func TestBase_NoRetryWhenDisabled(t *testing.T) {
	mock := testutil.NewMockProvider().WithError(core.ErrAdapter("mock", "overloaded", true))
	cfg := testConfig(TypeEstimate)
	cfg.Retry = false
	tool := NewEstimateTool(cfg, newDeps(mock))

	res := tool.Execute(context.Background(), EstimateInput{Title: "x"}, ExecutionContext{})
	require.False(t, res.Success)
	assert.Equal(t, 1, mock.CallCount(""))
}

func TestBase_TimeoutBoundsExecution(t *testing.T) {
	mock := testutil.NewMockProvider().WithDelay(time.Hour)
	cfg := testConfig(TypeChecklist)
	cfg.Timeout = 20 * time.Millisecond
	tool := NewChecklistTool(cfg, newDeps(mock))

	start := time.Now()
	res := tool.Execute(context.Background(), ChecklistInput{Title: "x"}, ExecutionContext{})
	require.False(t, res.Success)
	assert.True(t, core.IsCategory(res.Err, core.ErrCatTimeout), "got %v", res.Err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestBase_RecoversHookPanics(t *testing.T) {
	mock := testutil.NewMockProvider()
	b := NewBase(Config{Type: "custom", Enabled: true}, newDeps(mock), Hooks[ChecklistInput, ChecklistOutput]{
		Prompt: func(*ChecklistInput) (string, error) { panic("boom") },
	})

	res := b.Execute(context.Background(), ChecklistInput{Title: "x"}, ExecutionContext{})
	require.False(t, res.Success)
	assert.True(t, core.IsCategory(res.Err, core.ErrCatInternal))
	assert.Equal(t, int64(1), b.Statistics().FailedExecutions)
}

func TestClarify_SortsAndTruncates(t *testing.T) {
	mock := testutil.NewMockProvider().On(clarifyMarker, `{
	  "questions": [
	    {"question": "Colour?", "category": "scope", "importance": "optional"},
	    {"question": "When is it due?", "category": "deadline", "importance": "critical"},
	    {"question": "Who is it for?", "category": "goal", "importance": "important"}
	  ],
	  "summary": "A talk."
	}`)
	tool := NewClarifyTool(testConfig(TypeClarify), newDeps(mock))

	res := tool.Execute(context.Background(), ClarifyInput{Title: "Talk", MaxQuestions: 2}, ExecutionContext{})
	require.True(t, res.Success, res.Error)
	out, _ := Output[ClarifyOutput](res)
	require.Len(t, out.Questions, 2)
	assert.Equal(t, "When is it due?", out.Questions[0].Question)
	assert.Equal(t, "Who is it for?", out.Questions[1].Question)
}

func TestChecklist_SortsByCategory(t *testing.T) {
	mock := testutil.NewMockProvider().On(checklistMarker, `{
	  "items": [
	    {"title": "Celebrate", "category": "completion", "mandatory": false},
	    {"title": "Book room", "category": "preparation", "mandatory": true},
	    {"title": "Rehearse", "category": "validation", "mandatory": true}
	  ]
	}`)
	tool := NewChecklistTool(testConfig(TypeChecklist), newDeps(mock))

	res := tool.Execute(context.Background(), ChecklistInput{Title: "Talk"}, ExecutionContext{})
	require.True(t, res.Success, res.Error)
	out, _ := Output[ChecklistOutput](res)
	assert.Equal(t, []string{"Book room", "Rehearse", "Celebrate"},
		[]string{out.Items[0].Title, out.Items[1].Title, out.Items[2].Title})
}

func TestBase_PublishesToolEvents(t *testing.T) {
	bus := events.New(8)
	defer bus.Close()
	sub := bus.Subscribe(events.TypeToolExecuted)

	mock := testutil.NewMockProvider().On(decomposeMarker, talkDecomposition)
	deps := newDeps(mock)
	deps.Bus = bus
	tool := NewDecomposeTool(testConfig(TypeDecompose), deps)
	tool.Execute(context.Background(), DecomposeInput{Title: "Plan conference talk"}, ExecutionContext{SessionID: "s1"})

	select {
	case ev := <-sub:
		te, ok := ev.(events.ToolExecutedEvent)
		require.True(t, ok)
		assert.Equal(t, "decompose", te.Tool)
		assert.True(t, te.Success)
		assert.Equal(t, "s1", te.SessionID())
	case <-time.After(time.Second):
		t.Fatal("no tool_executed event")
	}
}

func TestBase_ModelOverrideReachesService(t *testing.T) {
	mock := testutil.NewMockProvider().On(estimateMarker, `{"estimated_minutes": 10, "min_minutes": 5, "max_minutes": 15, "confidence": "high", "reasoning": ""}`)
	tool := NewEstimateTool(testConfig(TypeEstimate), newDeps(mock))

	res := tool.Execute(context.Background(), EstimateInput{Title: "x"}, ExecutionContext{Model: "unknown-model"})
	require.False(t, res.Success)
	assert.True(t, core.IsCategory(res.Err, core.ErrCatConfig))
}
