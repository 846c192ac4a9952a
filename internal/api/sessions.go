package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumia-zhu/aiplanner-sub000/internal/conversation"
	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

// CreateSessionRequest starts a refinement conversation.
type CreateSessionRequest struct {
	UserID string `json:"user_id"`
	// Date is the planned day (YYYY-MM-DD); empty means today.
	Date string `json:"date,omitempty"`
}

// SessionResponse describes a live session.
type SessionResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Date     string `json:"date"`
	Mode     string `json:"mode"`
	Epoch    uint64 `json:"epoch"`
	Messages int    `json:"messages"`
	Stream   bool   `json:"streaming"`
}

func sessionResponse(s *conversation.Session) SessionResponse {
	st := s.State()
	return SessionResponse{
		ID:       s.ID(),
		UserID:   s.UserID(),
		Date:     core.DateKey(s.Date()),
		Mode:     string(st.Mode.Kind()),
		Epoch:    st.Epoch,
		Messages: len(s.Messages()),
		Stream:   s.Streamer().Streaming(),
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		respondError(w, http.StatusServiceUnavailable, "conversations not available")
		return
	}
	var req CreateSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondDomainError(w, err)
		return
	}
	if req.UserID == "" {
		s.respondDomainError(w, core.ErrValidation(core.CodeInvalidInput, "user_id is required"))
		return
	}
	date, err := s.parseDate(req.Date)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	sess := s.sessions.Create(req.UserID, date)
	respondJSON(w, http.StatusCreated, sessionResponse(sess))
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*conversation.Session, bool) {
	if s.sessions == nil {
		respondError(w, http.StatusServiceUnavailable, "conversations not available")
		return nil, false
	}
	sess, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondDomainError(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		respondError(w, http.StatusServiceUnavailable, "conversations not available")
		return
	}
	if err := s.sessions.Delete(chi.URLParam(r, "sessionID")); err != nil {
		s.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionEvent dispatches one user event. The call returns once the
// state machine and its effects ran; streamed text arrives over /stream.
func (s *Server) handleSessionEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var ev conversation.Event
	if err := decodeBody(w, r, &ev); err != nil {
		s.respondDomainError(w, err)
		return
	}
	if err := sess.Dispatch(r.Context(), ev); err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, sessionResponse(sess))
}

func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sess.Messages())
}

func (s *Server) parseDate(raw string) (time.Time, error) {
	if raw == "" {
		now := s.now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), nil
	}
	d, err := time.ParseInLocation(core.DateLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, core.ErrValidation(core.CodeInvalidInput, "date must be YYYY-MM-DD").WithCause(err)
	}
	return d, nil
}
