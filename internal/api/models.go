package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/lumia-zhu/aiplanner-sub000/internal/ai"
)

// ModelResponse describes one model adapter. Credentials are never included.
type ModelResponse struct {
	ai.ModelConfig
	Primary   bool            `json:"primary"`
	Metrics   ai.ModelMetrics `json:"metrics"`
	Available *bool           `json:"available,omitempty"`
}

const probeTimeout = 10 * time.Second

// handleListModels reports every adapter's metrics. With probe=true each
// adapter is also checked for availability.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	if s.ai == nil {
		respondError(w, http.StatusServiceUnavailable, "AI service not available")
		return
	}
	probe, _ := strconv.ParseBool(r.URL.Query().Get("probe"))
	primary := s.ai.PrimaryModel()

	var out []ModelResponse
	for _, a := range s.ai.Adapters() {
		m := ModelResponse{
			ModelConfig: a.Config(),
			Primary:     a.Name() == primary,
			Metrics:     a.Metrics(),
		}
		if probe {
			ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
			ok := a.IsAvailable(ctx)
			cancel()
			m.Available = &ok
		}
		out = append(out, m)
	}
	if out == nil {
		out = []ModelResponse{}
	}
	respondJSON(w, http.StatusOK, out)
}
