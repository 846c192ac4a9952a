package workflow

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

// RefineRequest selects the tasks of one user and day to refine.
type RefineRequest struct {
	UserID string
	Date   time.Time
	// TaskIDs restricts the run to these tasks; empty means every task of the day.
	TaskIDs []string
	Options ExecuteOptions
}

// RefineResult is the outcome of Refine.
type RefineResult struct {
	Result  *ExecuteResult `json:"result"`
	Context *Context       `json:"context"`
	Created int            `json:"created"`
	Updated int            `json:"updated"`
}

// Refine loads the day's tasks from store, runs a fresh orchestrator over
// them and writes changed and new tasks back. Tasks are persisted even when
// the run stops early so the work of completed steps is kept.
func Refine(ctx context.Context, store core.TaskStore, req RefineRequest, deps Deps) (*RefineResult, error) {
	if store == nil {
		return nil, core.ErrConfig("NO_TASK_STORE", "refine needs a task store")
	}
	if req.UserID == "" {
		return nil, core.ErrValidation(core.CodeInvalidInput, "user id is required")
	}

	all, err := store.ListTasks(ctx, req.UserID, req.Date)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	tasks := selectTasks(all, req.TaskIDs)
	if len(tasks) == 0 {
		return nil, core.ErrValidation(core.CodeInvalidInput, "no tasks to refine for "+core.DateKey(req.Date))
	}

	before := make(map[string]*core.Task, len(tasks))
	for _, t := range tasks {
		before[t.ID] = t.Clone()
	}

	cm := NewContextManager(req.UserID, uuid.NewString(), tasks)
	result := New(cm, deps).Execute(ctx, req.Options)
	snap := cm.Snapshot()

	out := &RefineResult{Result: result, Context: snap}
	// The run's own context may be done; persistence gets a fresh deadline.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	for _, t := range snap.Tasks {
		orig, ok := before[t.ID]
		switch {
		case !ok:
			if err := store.CreateTask(saveCtx, t); err != nil {
				return out, fmt.Errorf("saving new task %s: %w", t.ID, err)
			}
			out.Created++
		case !reflect.DeepEqual(orig, t):
			if deps.Now != nil {
				t.UpdatedAt = deps.Now()
			} else {
				t.UpdatedAt = time.Now()
			}
			if err := store.UpdateTask(saveCtx, t); err != nil {
				return out, fmt.Errorf("saving task %s: %w", t.ID, err)
			}
			out.Updated++
		}
	}
	return out, nil
}

func selectTasks(all []*core.Task, ids []string) []*core.Task {
	if len(ids) == 0 {
		return all
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*core.Task
	for _, t := range all {
		if want[t.ID] {
			out = append(out, t)
		}
	}
	return out
}
