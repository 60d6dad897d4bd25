package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/okian/rollcall/internal/domain/ledger"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

// Status is the routine outcome of a recognition attempt.
type Status string

// Recognition outcomes. None of these are errors.
const (
	StatusRecorded         Status = "recorded"
	StatusDuplicate        Status = "duplicate"
	StatusUnrecognized     Status = "unrecognized"
	StatusNoEnrollment     Status = "no_enrollment"
	StatusInvalidFaceCount Status = "invalid_face_count"
)

// RecognizeRequest is one captured frame after embedding extraction.
type RecognizeRequest struct {
	SessionID string
	// Faces holds one embedding per detected face. Exactly one is required.
	Faces [][]float32
	// Now is the capture instant; zero means the service clock.
	Now time.Time
}

// Result describes what a recognition attempt did.
type Result struct {
	Status      Status
	ExternalID  string
	DisplayName string
	// Distance is the best per-identity distance; +Inf when nothing was compared.
	Distance  float64
	Threshold float64
	FaceCount int
	// Event is the recorded event, or the existing one for StatusDuplicate.
	Event *model.AttendanceEvent
}

// Recognize resolves one embedding to an identity and records attendance at
// most once per (session, identity). Routine outcomes are reported through
// Result.Status; only an unknown session, a dimension mismatch or a store
// failure is returned as an error.
func (s *Service) Recognize(ctx context.Context, req RecognizeRequest) (_ Result, err error) {
	start := time.Now()
	res := Result{Distance: math.Inf(1), Threshold: s.matcher.Threshold(), FaceCount: len(req.Faces)}
	defer func() {
		metrics.RecordPipelineLatency(float64(time.Since(start).Microseconds()) / 1000)
		if err == nil {
			s.count(res.Status)
			metrics.RecordRecognition(string(res.Status))
		}
	}()

	if len(req.Faces) != 1 {
		res.Status = StatusInvalidFaceCount
		s.logger.Debug(ctx, "rejected frame", logger.String("session_id", req.SessionID), logger.Int("faces", len(req.Faces)))
		return res, nil
	}

	window, err := s.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return Result{}, err
	}

	query := model.Embedding(req.Faces[0])
	if query.Dim() != s.dimension {
		return Result{}, model.DimensionMismatch("service.recognize", s.dimension, query.Dim())
	}

	cat, err := s.catalog.Load(ctx, window.ScopeKey)
	if err != nil {
		s.logger.Error(ctx, "catalog load failed", logger.String("scope", window.ScopeKey), logger.Error(err))
		return Result{}, fmt.Errorf("load catalog: %w", err)
	}
	metrics.UpdateCatalogSamples(cat.Len())
	if cat.Empty() {
		res.Status = StatusNoEnrollment
		s.logger.Warn(ctx, "no enrollments for session scope",
			logger.String("session_id", window.SessionID), logger.String("scope", window.ScopeKey))
		return res, nil
	}

	m, err := s.matcher.Match(query, cat.Samples())
	if err != nil {
		return Result{}, err
	}
	res.Distance = m.Distance
	metrics.RecordMatchDistance(m.Distance)
	if !m.Matched {
		res.Status = StatusUnrecognized
		s.logger.Debug(ctx, "unrecognized face",
			logger.String("session_id", window.SessionID), logger.Float64("distance", m.Distance))
		return res, nil
	}
	res.ExternalID = m.ExternalID
	res.DisplayName = m.DisplayName

	recorded, err := s.ledger.HasRecord(ctx, window.SessionID, m.ExternalID)
	if err != nil {
		return Result{}, fmt.Errorf("check attendance: %w", err)
	}
	if recorded {
		existing, err := s.ledger.Existing(ctx, window.SessionID, m.ExternalID)
		switch {
		case err == nil:
			res = s.duplicate(ctx, res, existing)
			return res, nil
		case !errors.Is(err, model.ErrEventNotFound):
			return Result{}, fmt.Errorf("read attendance: %w", err)
		}
		// Deleted since the check; record it afresh.
	}

	now := req.Now
	if now.IsZero() {
		now = s.now()
	}
	decision := s.policy.Evaluate(window, now)
	// SQL stores keep microseconds at most.
	now = now.Truncate(time.Microsecond)

	ev, err := s.ledger.Append(ctx, model.AttendanceEvent{
		EventID:    s.newID(),
		SessionID:  window.SessionID,
		ExternalID: m.ExternalID,
		Timestamp:  now,
		Score:      decision.Score,
		Note:       decision.Note,
	})
	if errors.Is(err, ledger.ErrDuplicate) {
		res = s.duplicate(ctx, res, ev)
		return res, nil
	}
	if err != nil {
		s.logger.Error(ctx, "append attendance failed", logger.String("session_id", window.SessionID), logger.Error(err))
		return Result{}, fmt.Errorf("append attendance: %w", err)
	}

	res.Status = StatusRecorded
	res.Event = &ev
	metrics.RecordEventRecorded()
	s.logger.Info(ctx, "attendance recorded",
		logger.String("session_id", ev.SessionID),
		logger.String("external_id", ev.ExternalID),
		logger.Int("score", ev.Score),
		logger.String("note", ev.Note.String()),
		logger.Float64("distance", m.Distance),
	)
	return res, nil
}

func (s *Service) duplicate(ctx context.Context, res Result, existing model.AttendanceEvent) Result {
	res.Status = StatusDuplicate
	res.Event = &existing
	metrics.RecordDuplicate()
	s.logger.Debug(ctx, "already recorded",
		logger.String("session_id", existing.SessionID), logger.String("external_id", existing.ExternalID))
	return res
}

func (s *Service) count(st Status) {
	switch st {
	case StatusRecorded:
		s.counts.recorded.Add(1)
	case StatusDuplicate:
		s.counts.duplicate.Add(1)
	case StatusUnrecognized:
		s.counts.unrecognized.Add(1)
	case StatusNoEnrollment:
		s.counts.noEnrollment.Add(1)
	case StatusInvalidFaceCount:
		s.counts.invalidFaces.Add(1)
	}
}
