// Package api serves the planner over HTTP: conversation sessions, tools,
// workflow runs, model metrics and a server-sent event stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/lumia-zhu/aiplanner-sub000/internal/ai"
	"github.com/lumia-zhu/aiplanner-sub000/internal/conversation"
	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/events"
	"github.com/lumia-zhu/aiplanner-sub000/internal/logging"
	"github.com/lumia-zhu/aiplanner-sub000/internal/tools"
	"github.com/lumia-zhu/aiplanner-sub000/internal/workflow"
)

// Deps are the collaborators the server exposes.
type Deps struct {
	Sessions *conversation.Manager
	Registry *tools.Registry
	AI       *ai.Service
	Tasks    core.TaskStore
	Bus      *events.EventBus
	Logger   *logging.Logger
	// Gatherer backs /metrics; nil uses the default Prometheus registry.
	Gatherer prometheus.Gatherer
	// Workflow is handed to every workflow run.
	Workflow workflow.Deps
	// AllowedOrigins configures CORS; empty allows any origin.
	AllowedOrigins []string
	Now            func() time.Time
}

// Server provides the HTTP API.
type Server struct {
	router   chi.Router
	sessions *conversation.Manager
	registry *tools.Registry
	ai       *ai.Service
	tasks    core.TaskStore
	bus      *events.EventBus
	logger   *logging.Logger
	gatherer prometheus.Gatherer
	workflow workflow.Deps
	origins  []string
	now      func() time.Time
}

// NewServer creates a new API server.
func NewServer(deps Deps) *Server {
	s := &Server{
		sessions: deps.Sessions,
		registry: deps.Registry,
		ai:       deps.AI,
		tasks:    deps.Tasks,
		bus:      deps.Bus,
		logger:   logging.OrNop(deps.Logger),
		gatherer: deps.Gatherer,
		workflow: deps.Workflow,
		origins:  deps.AllowedOrigins,
		now:      deps.Now,
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		MaxAge:         300,
	}).Handler)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Post("/events", s.handleSessionEvent)
				r.Get("/messages", s.handleSessionMessages)
				r.Get("/stream", s.handleSessionStream)
			})
		})

		r.Route("/tools", func(r chi.Router) {
			r.Get("/", s.handleListTools)
			r.Post("/batch", s.handleBatchExecute)
			r.Post("/{toolType}/execute", s.handleExecuteTool)
		})

		r.Post("/workflows", s.handleRunWorkflow)
		r.Get("/models", s.handleListModels)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Category string `json:"category,omitempty"`
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondDomainError maps err onto a status. Errors that are not
// DomainErrors are logged and hidden behind a generic 500.
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	status, ok := httpStatusForDomainError(err)
	if !ok {
		s.logger.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	var de *core.DomainError
	errors.As(err, &de)
	respondJSON(w, status, ErrorResponse{Error: de.Message, Code: de.Code, Category: string(de.Category)})
}

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return core.ErrValidation(core.CodeInvalidInput, "invalid request body").WithCause(err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting API server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
