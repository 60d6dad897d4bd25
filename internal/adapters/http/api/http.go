// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	service "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

const requestTimeout = 30 * time.Second

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	EnrollmentService
	SessionService
	RecognitionService
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	enrollmentsHandler *EnrollmentsHandler
	sessionsHandler    *SessionsHandler
	eventsHandler      *EventsHandler

	allowedOrigins []string
	logger         logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS allow list. An empty list allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithLogger sets the logger used for server-side failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	loc := deps.Location()
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps, s.logger)
	s.enrollmentsHandler = NewEnrollmentsHandler(deps, s.logger)
	s.sessionsHandler = NewSessionsHandler(deps, loc, s.logger)
	s.eventsHandler = NewEventsHandler(deps, loc, s.logger)
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/enrollments", func(r chi.Router) {
		r.Post("/", MetricsMiddleware(s.enrollmentsHandler.HandleCreate, "enrollments"))
		r.Get("/", MetricsMiddleware(s.enrollmentsHandler.HandleList, "enrollments"))
		r.Delete("/{sampleID}", MetricsMiddleware(s.enrollmentsHandler.HandleDelete, "enrollment"))
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", MetricsMiddleware(s.sessionsHandler.HandleCreate, "sessions"))
		r.Get("/", MetricsMiddleware(s.sessionsHandler.HandleList, "sessions"))
		r.Get("/{sessionID}", MetricsMiddleware(s.sessionsHandler.HandleGet, "session"))
		r.Post("/{sessionID}/recognitions", MetricsMiddleware(s.eventsHandler.HandleRecognize, "recognitions"))
		r.Get("/{sessionID}/attendance", MetricsMiddleware(s.eventsHandler.HandleList, "attendance"))
		r.Delete("/{sessionID}/attendance/{externalID}", MetricsMiddleware(s.eventsHandler.HandleDelete, "attendance"))
	})
}

// Handler returns a router with the API routes, extra registrations and the
// CORS policy applied.
func (s *Server) Handler(ctx context.Context, extra ...func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(requestTimeout))

	s.Register(ctx, r)
	for _, register := range extra {
		register(r)
	}

	origins := s.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// errorStatus maps service and domain error kinds to an HTTP status and code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, model.ErrSampleNotFound):
		return http.StatusNotFound, "sample_not_found"
	case errors.Is(err, model.ErrEventNotFound):
		return http.StatusNotFound, "event_not_found"
	case errors.Is(err, model.ErrNameConflict):
		return http.StatusConflict, "name_conflict"
	case errors.Is(err, model.ErrDimensionMismatch):
		return http.StatusBadRequest, "dimension_mismatch"
	case errors.Is(err, service.ErrFaceCount):
		return http.StatusBadRequest, "invalid_face_count"
	case errors.Is(err, model.ErrInvalidSession):
		return http.StatusBadRequest, "invalid_session"
	case errors.Is(err, model.ErrInvalidSample):
		return http.StatusBadRequest, "invalid_sample"
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	}
	return http.StatusInternalServerError, "internal"
}

func writeServiceError(ctx context.Context, w http.ResponseWriter, log logger.Logger, op string, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
	}
	writeError(w, status, code, err)
}

func orNop(l logger.Logger) logger.Logger {
	if l == nil {
		return logger.Nop()
	}
	return l
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.WrapKind("api.decode", ErrBadRequest, err)
	}
	return nil
}
