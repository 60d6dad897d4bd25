package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

// RecognitionService is the slice of the service that produces and reads
// attendance events.
type RecognitionService interface {
	Recognize(ctx context.Context, req service.RecognizeRequest) (service.Result, error)
	Attendance(ctx context.Context, sessionID string) ([]service.AttendanceRecord, error)
	DeleteAttendance(ctx context.Context, sessionID, externalID string) error
}

// recognizeRequest mirrors the OpenAPI schema for POST /sessions/{id}/recognitions.
type recognizeRequest struct {
	Faces [][]float32 `json:"faces"`
	// Timestamp is an optional RFC3339 capture instant.
	Timestamp string `json:"timestamp"`
}

// EventsHandler handles recognition and attendance requests.
type EventsHandler struct {
	svc    RecognitionService
	loc    *time.Location
	logger logger.Logger
}

// NewEventsHandler creates a new events handler rendering times in loc.
func NewEventsHandler(svc RecognitionService, loc *time.Location, log logger.Logger) *EventsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &EventsHandler{svc: svc, loc: loc, logger: orNop(log)}
}

// HandleRecognize handles POST /sessions/{sessionID}/recognitions requests.
// A recorded event answers 201, a frame without exactly one face 422, and
// every other routine outcome 200.
func (h *EventsHandler) HandleRecognize(w http.ResponseWriter, r *http.Request) {
	const op = "api.recognize"
	var req recognizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	var at time.Time
	if ts := strings.TrimSpace(req.Timestamp); ts != "" {
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", model.WrapKind(op, ErrBadRequest, err))
			return
		}
		at = parsed
	}

	res, err := h.svc.Recognize(r.Context(), service.RecognizeRequest{
		SessionID: chi.URLParam(r, "sessionID"),
		Faces:     req.Faces,
		Now:       at,
	})
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, op, err)
		return
	}

	status := http.StatusOK
	switch res.Status {
	case service.StatusRecorded:
		status = http.StatusCreated
	case service.StatusInvalidFaceCount:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, toRecognition(res, h.loc))
}

// HandleList handles GET /sessions/{sessionID}/attendance requests.
func (h *EventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.Attendance(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "api.list_attendance", err)
		return
	}
	out := make([]eventResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toEvent(rec.AttendanceEvent, rec.DisplayName, h.loc))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleDelete handles DELETE /sessions/{sessionID}/attendance/{externalID} requests.
func (h *EventsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	err := h.svc.DeleteAttendance(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "externalID"))
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "api.delete_attendance", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
