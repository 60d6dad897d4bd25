package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

const clockLayout = "15:04"

// CreateSessionRequest describes a session in wall-clock terms of the
// service location.
type CreateSessionRequest struct {
	// SessionID is generated when empty.
	SessionID string
	ScopeKey  string
	// Date is YYYY-MM-DD.
	Date string
	// StartTime and EndTime are HH:MM.
	StartTime string
	EndTime   string
	// LateGraceMinutes and MaxScore fall back to the service defaults when nil.
	LateGraceMinutes *int
	MaxScore         *int
}

// CreateSession validates and stores a session window.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (model.SessionWindow, error) {
	day, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(req.Date), s.location)
	if err != nil {
		return model.SessionWindow{}, model.WrapKind("service.create_session", model.ErrInvalidSession, fmt.Errorf("date: %w", err))
	}
	start, err := s.atClock(day, req.StartTime)
	if err != nil {
		return model.SessionWindow{}, model.WrapKind("service.create_session", model.ErrInvalidSession, fmt.Errorf("start time: %w", err))
	}
	end, err := s.atClock(day, req.EndTime)
	if err != nil {
		return model.SessionWindow{}, model.WrapKind("service.create_session", model.ErrInvalidSession, fmt.Errorf("end time: %w", err))
	}

	w := model.SessionWindow{
		SessionID: strings.TrimSpace(req.SessionID),
		ScopeKey:  strings.TrimSpace(req.ScopeKey),
		Start:     start,
		End:       end,
		LateGrace: s.defaultLateGrace,
		MaxScore:  s.defaultMaxScore,
		CreatedAt: s.now(),
	}
	if w.SessionID == "" {
		w.SessionID = s.newID()
	}
	if req.LateGraceMinutes != nil {
		w.LateGrace = time.Duration(*req.LateGraceMinutes) * time.Minute
	}
	if req.MaxScore != nil {
		w.MaxScore = *req.MaxScore
	}

	return w, s.CreateWindow(ctx, w)
}

// CreateWindow stores an already-resolved session window.
func (s *Service) CreateWindow(ctx context.Context, w model.SessionWindow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if err := s.store.CreateSession(ctx, w); err != nil {
		return err
	}
	s.logger.Info(ctx, "session created",
		logger.String("session_id", w.SessionID),
		logger.String("scope", w.ScopeKey),
		logger.String("start", w.Start.In(s.location).Format(time.RFC3339)),
		logger.String("end", w.End.In(s.location).Format(time.RFC3339)),
	)
	return nil
}

func (s *Service) atClock(day time.Time, clock string) (time.Time, error) {
	t, err := time.ParseInLocation(clockLayout, strings.TrimSpace(clock), s.location)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, s.location), nil
}

// GetSession returns a session window.
func (s *Service) GetSession(ctx context.Context, sessionID string) (model.SessionWindow, error) {
	return s.store.GetSession(ctx, sessionID)
}

// ListSessions returns all sessions ordered by start.
func (s *Service) ListSessions(ctx context.Context) ([]model.SessionWindow, error) {
	return s.store.ListSessions(ctx)
}

// AttendanceRecord is an event joined with the identity's display name.
type AttendanceRecord struct {
	model.AttendanceEvent
	DisplayName string
}

// Attendance lists who is recorded for a session, in arrival order.
func (s *Service) Attendance(ctx context.Context, sessionID string) ([]AttendanceRecord, error) {
	w, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	events, err := s.store.ListAttendance(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	samples, err := s.store.LoadEnrollments(ctx, w.ScopeKey)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(samples))
	for _, sm := range samples {
		names[sm.ExternalID] = sm.DisplayName
	}
	out := make([]AttendanceRecord, 0, len(events))
	for _, ev := range events {
		out = append(out, AttendanceRecord{AttendanceEvent: ev, DisplayName: names[ev.ExternalID]})
	}
	return out, nil
}

// DeleteAttendance removes a recorded event so the identity can be recorded again.
func (s *Service) DeleteAttendance(ctx context.Context, sessionID, externalID string) error {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return err
	}
	if err := s.store.DeleteAttendance(ctx, sessionID, externalID); err != nil {
		if errors.Is(err, model.ErrEventNotFound) {
			s.logger.Debug(ctx, "no attendance to delete", logger.String("session_id", sessionID), logger.String("external_id", externalID))
		}
		return err
	}
	s.logger.Info(ctx, "attendance deleted", logger.String("session_id", sessionID), logger.String("external_id", externalID))
	return nil
}
