package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

// SessionService is the slice of the service used by session routes.
type SessionService interface {
	CreateSession(ctx context.Context, req service.CreateSessionRequest) (model.SessionWindow, error)
	GetSession(ctx context.Context, sessionID string) (model.SessionWindow, error)
	ListSessions(ctx context.Context) ([]model.SessionWindow, error)
	Location() *time.Location
}

// sessionRequest mirrors the OpenAPI schema for POST /sessions.
type sessionRequest struct {
	SessionID        string `json:"session_id"`
	ScopeKey         string `json:"scope_key"`
	Date             string `json:"date"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	LateGraceMinutes *int   `json:"late_grace_minutes"`
	MaxScore         *int   `json:"max_score"`
}

// SessionsHandler handles session requests.
type SessionsHandler struct {
	svc    SessionService
	loc    *time.Location
	logger logger.Logger
}

// NewSessionsHandler creates a new sessions handler rendering times in loc.
func NewSessionsHandler(svc SessionService, loc *time.Location, log logger.Logger) *SessionsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &SessionsHandler{svc: svc, loc: loc, logger: orNop(log)}
}

// HandleCreate handles POST /sessions requests.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	win, err := h.svc.CreateSession(r.Context(), service.CreateSessionRequest{
		SessionID:        req.SessionID,
		ScopeKey:         req.ScopeKey,
		Date:             req.Date,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		LateGraceMinutes: req.LateGraceMinutes,
		MaxScore:         req.MaxScore,
	})
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "api.create_session", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSession(win, h.loc))
}

// HandleList handles GET /sessions requests.
func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.svc.ListSessions(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "api.list_sessions", err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSession(s, h.loc))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /sessions/{sessionID} requests.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	win, err := h.svc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "api.get_session", err)
		return
	}
	writeJSON(w, http.StatusOK, toSession(win, h.loc))
}
