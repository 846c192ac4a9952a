package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/tools"
)

func TestContextManager_SnapshotIsDeep(t *testing.T) {
	cm := NewContextManager("u1", "s1", []*core.Task{{ID: "t1", Title: "Write report", Tags: []string{"work"}}})
	cm.SetClarification("t1", tools.ClarifyOutput{Summary: "ok"})
	cm.SetMetadata("k", "v")
	cm.SavePlanVersion("first")

	snap := cm.Snapshot()
	snap.Tasks[0].Title = "changed"
	snap.Tasks[0].Tags[0] = "home"
	snap.Metadata["k"] = "changed"
	snap.PlanHistory[0].Tasks[0].Title = "changed"
	delete(snap.Clarifications, "t1")

	again := cm.Snapshot()
	assert.Equal(t, "Write report", again.Tasks[0].Title)
	assert.Equal(t, "work", again.Tasks[0].Tags[0])
	assert.Equal(t, "v", again.Metadata["k"])
	assert.Equal(t, "Write report", again.PlanHistory[0].Tasks[0].Title)
	assert.Contains(t, again.Clarifications, "t1")
}

func TestContextManager_UpdateTask(t *testing.T) {
	cm := NewContextManager("u1", "s1", []*core.Task{{ID: "t1", Title: "Write report"}})

	require.NoError(t, cm.UpdateTask("t1", func(t *core.Task) { t.EstimatedMinutes = 45 }))
	assert.Equal(t, 45, cm.Snapshot().Task("t1").EstimatedMinutes)

	err := cm.UpdateTask("missing", func(*core.Task) {})
	assert.True(t, core.IsCategory(err, core.ErrCatNotFound))
}

func TestContextManager_PlanVersionsAndReset(t *testing.T) {
	cm := NewContextManager("u1", "s1", nil)
	assert.Equal(t, 1, cm.SavePlanVersion("a"))
	assert.Equal(t, 2, cm.SavePlanVersion("b"))

	cm.SetPhase(core.PhaseEstimating)
	cm.Reset("u2", "s2", []*core.Task{{ID: "x", Title: "New"}})

	snap := cm.Snapshot()
	assert.Equal(t, core.PhaseInitial, snap.Phase)
	assert.Equal(t, "s2", snap.SessionID)
	assert.Empty(t, snap.PlanHistory)
	assert.Len(t, snap.Tasks, 1)
}

func TestAnalyze(t *testing.T) {
	tasks := []*core.Task{
		{ID: "vague", Title: "Plan talk"},
		{ID: "clear", Title: "Review the quarterly budget with finance team", EstimatedMinutes: 45, Quadrant: core.QuadrantUrgentImportant},
		{ID: "large", Title: "Migrate the billing service to the new cluster", EstimatedMinutes: 240, Quadrant: core.QuadrantImportantNotUrgent},
		{ID: "done", Title: "x", Completed: true},
	}
	a := Analyze(tasks)

	assert.Equal(t, []string{"vague"}, a.NeedsClarification)
	assert.Equal(t, []string{"vague", "large"}, a.NeedsDecomposition)
	assert.Equal(t, []string{"vague"}, a.NeedsEstimation)
	assert.True(t, a.NeedsPrioritization)
	assert.Contains(t, a.Summary, "3 open tasks")
}

func TestAnalyze_SubtaskNotDecomposedAgain(t *testing.T) {
	tasks := []*core.Task{
		{ID: "p", Title: "Prepare the annual offsite for the whole team", EstimatedMinutes: 300},
		{ID: "c", Title: "Book the venue for the annual offsite", ParentID: "p", EstimatedMinutes: 120},
	}
	a := Analyze(tasks)
	assert.Empty(t, a.NeedsDecomposition)
	assert.True(t, a.NeedsPrioritization)
}
