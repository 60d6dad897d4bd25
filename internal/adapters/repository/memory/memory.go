// Package memory implements repository.Store in process memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/domain/dedupe"
	"github.com/okian/rollcall/internal/domain/model"
)

// Store is an in-memory repository.Store. Attendance uniqueness is enforced
// by a dedupe claim set acting as the unique index on (session, identity);
// the claim and the write happen under the same lock.
type Store struct {
	mu sync.RWMutex

	samples  []model.EnrollmentSample // insertion order
	revision int64

	sessions map[string]model.SessionWindow

	claims dedupe.Deduper
	events map[string]model.AttendanceEvent

	closed bool
}

var _ repository.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		sessions: make(map[string]model.SessionWindow),
		claims:   dedupe.NewInMemoryDeduper(),
		events:   make(map[string]model.AttendanceEvent),
	}
}

// LoadEnrollments returns samples for scope plus unscoped samples.
func (s *Store) LoadEnrollments(_ context.Context, scope string) ([]model.EnrollmentSample, error) {
	defer repository.Observe("memory.load_enrollments", time.Now(), nil)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, repository.ErrClosed
	}

	out := make([]model.EnrollmentSample, 0, len(s.samples))
	for _, sm := range s.samples {
		if sm.Scope == scope || sm.Scope == "" {
			out = append(out, cloneSample(sm))
		}
	}
	return out, nil
}

// ListEnrollments returns samples for scope; empty scope lists all.
func (s *Store) ListEnrollments(_ context.Context, scope string) ([]model.EnrollmentSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, repository.ErrClosed
	}

	out := make([]model.EnrollmentSample, 0, len(s.samples))
	for _, sm := range s.samples {
		if scope == "" || sm.Scope == scope {
			out = append(out, cloneSample(sm))
		}
	}
	return out, nil
}

// CreateEnrollment appends a sample.
func (s *Store) CreateEnrollment(_ context.Context, sm model.EnrollmentSample) error {
	defer repository.Observe("memory.create_enrollment", time.Now(), nil)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return repository.ErrClosed
	}

	for _, existing := range s.samples {
		if existing.SampleID == sm.SampleID {
			return model.WrapKind("memory.create_enrollment", model.ErrInvalidSample, errDuplicateSampleID)
		}
		if existing.ExternalID == sm.ExternalID && existing.DisplayName != sm.DisplayName {
			return model.NewKind("memory.create_enrollment", model.ErrNameConflict)
		}
	}
	s.samples = append(s.samples, cloneSample(sm))
	s.revision++
	return nil
}

// DeleteEnrollment removes one sample.
func (s *Store) DeleteEnrollment(_ context.Context, sampleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return repository.ErrClosed
	}

	for i, sm := range s.samples {
		if sm.SampleID == sampleID {
			s.samples = append(s.samples[:i], s.samples[i+1:]...)
			s.revision++
			return nil
		}
	}
	return model.NewKind("memory.delete_enrollment", model.ErrSampleNotFound)
}

// EnrollmentRevision returns the enrollment change counter.
func (s *Store) EnrollmentRevision(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, repository.ErrClosed
	}
	return s.revision, nil
}

// CreateSession stores a session window.
func (s *Store) CreateSession(_ context.Context, w model.SessionWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return repository.ErrClosed
	}
	if _, ok := s.sessions[w.SessionID]; ok {
		return model.WrapKind("memory.create_session", model.ErrInvalidSession, errDuplicateSessionID)
	}
	s.sessions[w.SessionID] = w
	return nil
}

// GetSession returns a session window.
func (s *Store) GetSession(_ context.Context, sessionID string) (model.SessionWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.SessionWindow{}, repository.ErrClosed
	}
	w, ok := s.sessions[sessionID]
	if !ok {
		return model.SessionWindow{}, model.NewKind("memory.get_session", model.ErrSessionNotFound)
	}
	return w, nil
}

// ListSessions returns sessions ordered by start.
func (s *Store) ListSessions(_ context.Context) ([]model.SessionWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, repository.ErrClosed
	}
	out := make([]model.SessionWindow, 0, len(s.sessions))
	for _, w := range s.sessions {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out, nil
}

// HasAttendance reports whether an event exists for the pair.
func (s *Store) HasAttendance(ctx context.Context, sessionID, externalID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, repository.ErrClosed
	}
	return s.claims.Seen(ctx, model.AttendanceKey(sessionID, externalID)), nil
}

// InsertAttendance claims the pair and stores ev atomically.
func (s *Store) InsertAttendance(ctx context.Context, ev model.AttendanceEvent) (bool, error) {
	defer repository.Observe("memory.insert_attendance", time.Now(), nil)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, repository.ErrClosed
	}

	key := model.AttendanceKey(ev.SessionID, ev.ExternalID)
	if s.claims.SeenAndRecord(ctx, key) {
		return false, nil
	}
	s.events[key] = ev
	return true, nil
}

// GetAttendance returns the event for the pair.
func (s *Store) GetAttendance(_ context.Context, sessionID, externalID string) (model.AttendanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.AttendanceEvent{}, repository.ErrClosed
	}
	ev, ok := s.events[model.AttendanceKey(sessionID, externalID)]
	if !ok {
		return model.AttendanceEvent{}, model.NewKind("memory.get_attendance", model.ErrEventNotFound)
	}
	return ev, nil
}

// ListAttendance returns a session's events ordered by timestamp.
func (s *Store) ListAttendance(_ context.Context, sessionID string) ([]model.AttendanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, repository.ErrClosed
	}
	out := make([]model.AttendanceEvent, 0)
	for _, ev := range s.events {
		if ev.SessionID == sessionID {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ExternalID < out[j].ExternalID
	})
	return out, nil
}

// DeleteAttendance removes the pair's event and releases its claim.
func (s *Store) DeleteAttendance(ctx context.Context, sessionID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return repository.ErrClosed
	}
	key := model.AttendanceKey(sessionID, externalID)
	if _, ok := s.events[key]; !ok {
		return model.NewKind("memory.delete_attendance", model.ErrEventNotFound)
	}
	delete(s.events, key)
	s.claims.Unrecord(ctx, key)
	return nil
}

// Close marks the store closed. Subsequent calls return repository.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneSample(sm model.EnrollmentSample) model.EnrollmentSample {
	sm.Embedding = sm.Embedding.Clone()
	return sm
}
