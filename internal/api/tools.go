package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/tools"
)

// ToolResponse is a tool's configuration with its statistics.
type ToolResponse struct {
	tools.Config
	Statistics tools.Statistics `json:"statistics"`
}

// ExecuteToolRequest runs one tool.
type ExecuteToolRequest struct {
	Input     json.RawMessage `json:"input"`
	UserID    string          `json:"user_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Model     string          `json:"model,omitempty"`
}

// BatchRequest runs several tools concurrently.
type BatchRequest struct {
	Requests []tools.BatchRequest `json:"requests"`
}

// handleListTools lists tools by descending priority. Query parameters:
// q (fuzzy name match), tag, enabled, min_priority.
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		respondError(w, http.StatusServiceUnavailable, "tools not available")
		return
	}
	q := r.URL.Query()

	var list []tools.Tool
	if name := q.Get("q"); name != "" {
		list = s.registry.FindByName(name)
	} else {
		f := tools.Filter{Tag: q.Get("tag")}
		if raw := q.Get("enabled"); raw != "" {
			enabled, err := strconv.ParseBool(raw)
			if err != nil {
				s.respondDomainError(w, core.ErrValidation(core.CodeInvalidInput, "enabled must be a boolean"))
				return
			}
			f.Enabled = &enabled
		}
		if raw := q.Get("min_priority"); raw != "" {
			p, err := strconv.Atoi(raw)
			if err != nil {
				s.respondDomainError(w, core.ErrValidation(core.CodeInvalidInput, "min_priority must be an integer"))
				return
			}
			f.MinPriority = p
		}
		list = s.registry.Query(f)
	}

	out := make([]ToolResponse, 0, len(list))
	for _, t := range list {
		out = append(out, ToolResponse{Config: t.Config(), Statistics: t.Statistics()})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		respondError(w, http.StatusServiceUnavailable, "tools not available")
		return
	}
	typ := tools.ToolType(chi.URLParam(r, "toolType"))
	if !typ.Valid() {
		s.respondDomainError(w, core.ErrNotFound("tool", string(typ)))
		return
	}
	var req ExecuteToolRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondDomainError(w, err)
		return
	}
	if len(req.Input) == 0 {
		s.respondDomainError(w, core.ErrValidation(core.CodeInvalidInput, "input is required"))
		return
	}

	res := s.registry.Execute(r.Context(), typ, req.Input, tools.ExecutionContext{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Timestamp: s.now(),
		Model:     req.Model,
	})
	respondJSON(w, resultStatus(res), res)
}

func (s *Server) handleBatchExecute(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		respondError(w, http.StatusServiceUnavailable, "tools not available")
		return
	}
	var req BatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondDomainError(w, err)
		return
	}
	if len(req.Requests) == 0 {
		s.respondDomainError(w, core.ErrValidation(core.CodeInvalidInput, "requests is empty"))
		return
	}
	for i := range req.Requests {
		if req.Requests[i].Context.Timestamp.IsZero() {
			req.Requests[i].Context.Timestamp = s.now()
		}
	}
	// Individual failures are reported per result.
	respondJSON(w, http.StatusOK, s.registry.BatchExecute(r.Context(), req.Requests))
}

func resultStatus(res *tools.Result) int {
	if res.Success {
		return http.StatusOK
	}
	if status, ok := httpStatusForDomainError(res.Err); ok {
		return status
	}
	return http.StatusInternalServerError
}
