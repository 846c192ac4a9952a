package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/prompts"
	"github.com/lumia-zhu/aiplanner-sub000/internal/testutil"
	"github.com/lumia-zhu/aiplanner-sub000/internal/tools"
)

func newAIAssistant(mock *testutil.MockProvider) *AIAssistant {
	svc := testutil.NewService(mock)
	renderer := prompts.MustNewRenderer()
	return &AIAssistant{
		Registry: tools.NewDefaultRegistry(tools.Deps{AI: svc, Prompts: renderer}, tools.DefaultConfigs()),
		AI:       svc,
		Prompts:  renderer,
		Now:      func() time.Time { return testDay },
	}
}

func TestAIAssistant_StructureAnswer(t *testing.T) {
	mock := testutil.NewMockProvider().On("free-form answer",
		`{"summary":"Talk at GoDays","deadline":"2026-05-01","deadline_confidence":"high","constraints":["20 minutes"]}`)
	a := newAIAssistant(mock)

	sc, err := a.StructureAnswer(context.Background(), &core.Task{Title: "Plan conference talk"},
		[]string{"Which conference?"}, "GoDays on May 1st, 20 minute slot")
	require.NoError(t, err)
	assert.Equal(t, "Talk at GoDays", sc.Summary)
	assert.Equal(t, core.ConfidenceHigh, sc.DeadlineConfidence)
	assert.Equal(t, "GoDays on May 1st, 20 minute slot", sc.RawAnswer)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	require.NotEmpty(t, calls[0].Request.Messages)
}

func TestAIAssistant_ReflectOnEstimate(t *testing.T) {
	mock := testutil.NewMockProvider().On("sanity-check", "Slides usually take longer than expected.")
	a := newAIAssistant(mock)

	text, err := a.ReflectOnEstimate(context.Background(), &core.Task{Title: "Plan conference talk"}, 60)
	require.NoError(t, err)
	assert.Equal(t, "Slides usually take longer than expected.", text)
}

func TestAIAssistant_ClarifyUsesTool(t *testing.T) {
	mock := testutil.NewMockProvider().On("Ask the questions that would make it",
		`{"questions":[{"question":"Who is the audience?","category":"context","importance":"critical"}],"summary":"vague"}`)
	a := newAIAssistant(mock)

	qs, err := a.Clarify(context.Background(), &core.Task{UserID: "u1", Title: "Plan conference talk"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Who is the audience?"}, qs)
	assert.Equal(t, int64(1), a.Registry.Statistics()[tools.TypeClarify].TotalExecutions)
}

func TestAIAssistant_PrioritizeSkipsCompleted(t *testing.T) {
	a := newAIAssistant(testutil.NewMockProvider())
	_, err := a.Prioritize(context.Background(), []*core.Task{{ID: "t1", Title: "Done", Completed: true}}, "")
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))
}

func TestAIAssistant_PrioritizeCapsRequestSize(t *testing.T) {
	mock := testutil.NewMockProvider().WithResponse(`{"priorities":[
		{"task_id":"t1","quadrant":"urgent-important","urgency":9,"importance":9,"suggested_order":1},
		{"task_id":"t60","quadrant":"urgent-important","urgency":9,"importance":9,"suggested_order":2}
	],"strategy":"first things first"}`)
	a := newAIAssistant(mock)

	var tasks []*core.Task
	for i := 1; i <= 60; i++ {
		tasks = append(tasks, &core.Task{ID: fmt.Sprintf("t%d", i), UserID: "u1", Title: fmt.Sprintf("task %d", i)})
	}
	out, err := a.Prioritize(context.Background(), tasks, "")
	require.NoError(t, err)
	require.Len(t, out.Priorities, 1, "tasks past the request limit are not sent")
	assert.Equal(t, "t1", out.Priorities[0].TaskID)
}
