package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/events"
	"github.com/lumia-zhu/aiplanner-sub000/internal/prompts"
	"github.com/lumia-zhu/aiplanner-sub000/internal/testutil"
	"github.com/lumia-zhu/aiplanner-sub000/internal/tools"
)

const (
	clarifyMarker    = "Ask the questions that would make it"
	decomposeMarker  = "breaks a task into concrete"
	estimateMarker   = "estimate how long"
	prioritizeMarker = "urgency/importance matrix"
	checklistMarker  = "practical execution checklist"
)

const (
	clarifyReply = `{"questions":[{"question":"Which conference is it for?","category":"context","importance":"critical"}],
"ambiguities":["audience unknown"],"summary":"Needs the audience"}`
	decomposeReply = `{"subtasks":[
{"title":"Draft the outline","estimated_minutes":30,"priority":"high"},
{"title":"Build the slides","estimated_minutes":90,"priority":"medium","dependencies":[0]}],
"reasoning":"Outline before slides.","total_estimated_minutes":120,"complexity":"medium"}`
	estimateReply   = `{"estimated_minutes":40,"min_minutes":30,"max_minutes":60,"confidence":"medium","reasoning":"typical"}`
	prioritizeReply = `{"priorities":[{"task_id":"t1","quadrant":"urgent-important","urgency":8,"importance":9,"reasoning":"talk is soon","suggested_order":1}],
"strategy":"Talk first"}`
	checklistReply = `{"items":[{"title":"Rehearse twice","category":"preparation","mandatory":true}],"tips":["Time yourself"]}`
)

func scriptedMock() *testutil.MockProvider {
	return testutil.NewMockProvider().
		On(clarifyMarker, clarifyReply).
		On(decomposeMarker, decomposeReply).
		On(estimateMarker, estimateReply).
		On(prioritizeMarker, prioritizeReply).
		On(checklistMarker, checklistReply)
}

func newRegistry(p *testutil.MockProvider) *tools.Registry {
	deps := tools.Deps{AI: testutil.NewService(p), Prompts: prompts.MustNewRenderer()}
	return tools.NewDefaultRegistry(deps, tools.DefaultConfigs())
}

func talkTasks() []*core.Task {
	return []*core.Task{{ID: "t1", UserID: "u1", Date: "2026-03-02", Title: "Plan conference talk"}}
}

func TestTransitions_Determinism(t *testing.T) {
	assert.Equal(t, []core.WorkflowPhase{core.PhaseAnalyzing}, Transitions[core.PhaseInitial])
	assert.Empty(t, Transitions[core.PhaseCompleted])
	for _, p := range core.AllPhases() {
		_, ok := Transitions[p]
		assert.True(t, ok, "phase %s missing from table", p)
	}
	assert.True(t, CanTransition(core.PhaseAnalyzing, core.PhaseEstimating))
	assert.False(t, CanTransition(core.PhaseEstimating, core.PhaseDecomposing))

	_, ok := DefaultNext(core.PhaseCompleted)
	assert.False(t, ok)
}

func TestOrchestrator_FullRun(t *testing.T) {
	bus := events.New(32)
	defer bus.Close()
	done := bus.Subscribe(events.TypeWorkflowCompleted)

	cm := NewContextManager("u1", "s1", talkTasks())
	o := New(cm, Deps{Registry: newRegistry(scriptedMock()), Bus: bus})

	res := o.Execute(context.Background(), ExecuteOptions{})
	require.True(t, res.Success, res.Error)
	assert.True(t, res.Completed)
	assert.Equal(t, core.PhaseCompleted, res.Phase)
	assert.Equal(t, []string{"analyze", "clarify", "decompose", "prioritize", "check"}, res.ExecutedSteps)

	snap := cm.Snapshot()
	require.Len(t, snap.Tasks, 3)
	parent := snap.Task("t1")
	assert.Equal(t, 120, parent.EstimatedMinutes)
	assert.Equal(t, core.QuadrantUrgentImportant, parent.Quadrant)
	assert.Equal(t, core.PriorityHigh, parent.Priority)
	for _, sub := range snap.Tasks[1:] {
		assert.Equal(t, "t1", sub.ParentID)
		assert.NotEmpty(t, sub.ID)
		assert.GreaterOrEqual(t, sub.EstimatedMinutes, 1)
	}
	assert.Contains(t, snap.Clarifications, "t1")
	assert.Contains(t, snap.Checklists, "t1")
	assert.Len(t, snap.PlanHistory, 2)
	assert.Equal(t, "Talk first", snap.Metadata[MetaStrategy])

	select {
	case e := <-done:
		assert.Equal(t, "s1", e.SessionID())
	case <-time.After(time.Second):
		t.Fatal("no workflow_completed event")
	}
}

func TestOrchestrator_EstimatesUnsizedTasks(t *testing.T) {
	cm := NewContextManager("u1", "s1", []*core.Task{
		{ID: "t1", Title: "Review the quarterly budget with the finance team"},
		{ID: "t2", Title: "Reply to the vendor about the renewal contract", EstimatedMinutes: 20},
	})
	o := New(cm, Deps{Registry: newRegistry(scriptedMock())})

	res := o.Execute(context.Background(), ExecuteOptions{SkipPhases: []core.WorkflowPhase{core.PhaseDecomposing}})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"analyze", "estimate", "prioritize", "check"}, res.ExecutedSteps)
	assert.Equal(t, 40, cm.Snapshot().Task("t1").EstimatedMinutes)
	assert.Equal(t, 20, cm.Snapshot().Task("t2").EstimatedMinutes)
}

func TestOrchestrator_MaxStepsOne(t *testing.T) {
	cm := NewContextManager("u1", "s1", talkTasks())
	o := New(cm, Deps{Registry: newRegistry(scriptedMock())})

	res := o.Execute(context.Background(), ExecuteOptions{MaxSteps: 1})
	require.True(t, res.Success, res.Error)
	assert.False(t, res.Completed)
	assert.Equal(t, []string{"analyze"}, res.ExecutedSteps)
	assert.Equal(t, core.PhaseClarifying, res.Phase)

	res = o.Execute(context.Background(), ExecuteOptions{MaxSteps: 1})
	assert.Equal(t, []string{"clarify"}, res.ExecutedSteps)
}

func TestOrchestrator_MissingTool(t *testing.T) {
	reg := newRegistry(scriptedMock())
	reg.Unregister(tools.TypeClarify)
	o := New(NewContextManager("u1", "s1", talkTasks()), Deps{Registry: reg})

	res := o.Execute(context.Background(), ExecuteOptions{})
	assert.False(t, res.Success)
	assert.Equal(t, core.PhaseClarifying, res.Phase)
	assert.Equal(t, []string{"analyze"}, res.ExecutedSteps)
	assert.True(t, core.IsCategory(res.Err, core.ErrCatMissingTool), res.Error)
}

func TestOrchestrator_SkipPhases(t *testing.T) {
	cm := NewContextManager("u1", "s1", []*core.Task{
		{ID: "t1", Title: "Review the quarterly budget with the finance team", EstimatedMinutes: 30},
	})
	o := New(cm, Deps{Registry: tools.NewRegistry()})

	res := o.Execute(context.Background(), ExecuteOptions{
		SkipPhases: []core.WorkflowPhase{core.PhasePrioritizing, core.PhaseChecking},
	})
	require.True(t, res.Success, res.Error)
	assert.True(t, res.Completed)
	assert.Equal(t, []string{"analyze"}, res.ExecutedSteps)
}

func TestOrchestrator_StepFailure(t *testing.T) {
	mock := testutil.NewMockProvider().OnError(clarifyMarker, core.ErrAdapter("mock", "endpoint down", false))

	bus := events.New(8)
	defer bus.Close()
	failed := bus.Subscribe(events.TypeWorkflowFailed)

	o := New(NewContextManager("u1", "s1", talkTasks()), Deps{Registry: newRegistry(mock), Bus: bus})
	res := o.Execute(context.Background(), ExecuteOptions{})

	assert.False(t, res.Success)
	assert.Equal(t, core.PhaseClarifying, res.Phase)
	assert.Equal(t, []string{"analyze"}, res.ExecutedSteps)
	assert.Contains(t, res.Error, "endpoint down")

	select {
	case <-failed:
	case <-time.After(time.Second):
		t.Fatal("no workflow_failed event")
	}
}

func TestOrchestrator_InvalidTransition(t *testing.T) {
	steps := []Step{{
		ID:    "jump",
		Phase: core.PhaseAnalyzing,
		Execute: func(context.Context, StepEnv) (StepResult, error) {
			return StepResult{NextPhase: core.PhaseCompleted}, nil
		},
	}}
	o := New(NewContextManager("u1", "s1", nil), Deps{Steps: steps})

	res := o.Execute(context.Background(), ExecuteOptions{})
	assert.False(t, res.Success)
	assert.True(t, core.IsCategory(res.Err, core.ErrCatState), res.Error)
	assert.Equal(t, core.PhaseAnalyzing, o.Context().Phase())
}

func TestOrchestrator_RejectsReentrantExecute(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	steps := []Step{{
		ID:    "slow",
		Phase: core.PhaseAnalyzing,
		Execute: func(context.Context, StepEnv) (StepResult, error) {
			close(started)
			<-release
			return StepResult{}, nil
		},
	}}
	cm := NewContextManager("u1", "s1", talkTasks())
	o := New(cm, Deps{Steps: steps})

	first := make(chan *ExecuteResult, 1)
	go func() { first <- o.Execute(context.Background(), ExecuteOptions{MaxSteps: 1}) }()
	<-started

	before := cm.Snapshot()
	second := o.Execute(context.Background(), ExecuteOptions{})
	assert.False(t, second.Success)
	assert.True(t, core.IsCategory(second.Err, core.ErrCatBusy))
	assert.Equal(t, before, cm.Snapshot())
	assert.Error(t, o.Reset("u1", "s1", nil))

	close(release)
	res := <-first
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"slow"}, res.ExecutedSteps)
	assert.False(t, o.Executing())
}

func TestOrchestrator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(NewContextManager("u1", "s1", talkTasks()), Deps{Registry: tools.NewRegistry()})
	res := o.Execute(ctx, ExecuteOptions{})
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Empty(t, res.ExecutedSteps)
}
