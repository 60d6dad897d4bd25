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

// EnrollmentService is the slice of the service used by enrollment routes.
type EnrollmentService interface {
	Enroll(ctx context.Context, req service.EnrollRequest) (model.EnrollmentSample, error)
	Unenroll(ctx context.Context, sampleID string) error
	ListEnrollments(ctx context.Context, scope string) ([]model.EnrollmentSample, error)
	Location() *time.Location
}

// enrollRequest mirrors the OpenAPI schema for POST /enrollments.
// Embedding is shorthand for a frame with exactly one face.
type enrollRequest struct {
	ExternalID  string      `json:"external_id"`
	DisplayName string      `json:"display_name"`
	Scope       string      `json:"scope"`
	Faces       [][]float32 `json:"faces"`
	Embedding   []float32   `json:"embedding"`
}

// EnrollmentsHandler handles enrollment requests.
type EnrollmentsHandler struct {
	svc    EnrollmentService
	logger logger.Logger
}

// NewEnrollmentsHandler creates a new enrollments handler.
func NewEnrollmentsHandler(svc EnrollmentService, log logger.Logger) *EnrollmentsHandler {
	return &EnrollmentsHandler{svc: svc, logger: orNop(log)}
}

// HandleCreate handles POST /enrollments requests.
func (h *EnrollmentsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_enrollment"
	var req enrollRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	faces := req.Faces
	if faces == nil && req.Embedding != nil {
		faces = [][]float32{req.Embedding}
	}

	sample, err := h.svc.Enroll(r.Context(), service.EnrollRequest{
		ExternalID:  req.ExternalID,
		DisplayName: req.DisplayName,
		Scope:       req.Scope,
		Faces:       faces,
	})
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSample(sample, h.svc.Location()))
}

// HandleList handles GET /enrollments requests. The optional scope query
// parameter narrows the listing to one scope.
func (h *EnrollmentsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	samples, err := h.svc.ListEnrollments(r.Context(), r.URL.Query().Get("scope"))
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "api.list_enrollments", err)
		return
	}
	loc := h.svc.Location()
	out := make([]sampleResponse, 0, len(samples))
	for _, s := range samples {
		out = append(out, toSample(s, loc))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleDelete handles DELETE /enrollments/{sampleID} requests.
func (h *EnrollmentsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Unenroll(r.Context(), chi.URLParam(r, "sampleID")); err != nil {
		writeServiceError(r.Context(), w, h.logger, "api.delete_enrollment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
