package api

import (
	"net/http"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/workflow"
)

// RunWorkflowRequest refines one user's tasks for a day.
type RunWorkflowRequest struct {
	UserID     string   `json:"user_id"`
	Date       string   `json:"date,omitempty"`
	TaskIDs    []string `json:"task_ids,omitempty"`
	MaxSteps   int      `json:"max_steps,omitempty"`
	SkipPhases []string `json:"skip_phases,omitempty"`
	Model      string   `json:"model,omitempty"`
}

func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	var req RunWorkflowRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondDomainError(w, err)
		return
	}
	date, err := s.parseDate(req.Date)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	skip := make([]core.WorkflowPhase, 0, len(req.SkipPhases))
	for _, raw := range req.SkipPhases {
		p, err := core.ParsePhase(raw)
		if err != nil {
			s.respondDomainError(w, core.ErrValidation(core.CodeInvalidInput, err.Error()))
			return
		}
		skip = append(skip, p)
	}

	deps := s.workflow
	if deps.Registry == nil {
		deps.Registry = s.registry
	}
	if deps.AI == nil {
		deps.AI = s.ai
	}
	if deps.Bus == nil {
		deps.Bus = s.bus
	}
	if deps.Logger == nil {
		deps.Logger = s.logger
	}

	out, err := workflow.Refine(r.Context(), s.tasks, workflow.RefineRequest{
		UserID:  req.UserID,
		Date:    date,
		TaskIDs: req.TaskIDs,
		Options: workflow.ExecuteOptions{MaxSteps: req.MaxSteps, SkipPhases: skip, Model: req.Model},
	}, deps)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}
