// Package repository defines the persistent store boundary used by the
// attendance engine, and its errors.
package repository

import (
	"context"

	"github.com/okian/rollcall/internal/domain/model"
)

// EnrollmentStore provides enrollment CRUD and catalog reads.
type EnrollmentStore interface {
	// LoadEnrollments returns every sample whose scope equals scope, plus the
	// samples enrolled without a scope. Returns an empty slice when nothing matches.
	LoadEnrollments(ctx context.Context, scope string) ([]model.EnrollmentSample, error)

	// ListEnrollments returns samples for scope; an empty scope lists everything.
	ListEnrollments(ctx context.Context, scope string) ([]model.EnrollmentSample, error)

	// CreateEnrollment appends a sample. Returns model.ErrNameConflict when the
	// external id is already enrolled under a different display name.
	CreateEnrollment(ctx context.Context, s model.EnrollmentSample) error

	// DeleteEnrollment removes one sample. Returns model.ErrSampleNotFound if unknown.
	DeleteEnrollment(ctx context.Context, sampleID string) error

	// EnrollmentRevision returns a counter that changes on every create or delete.
	EnrollmentRevision(ctx context.Context) (int64, error)
}

// SessionStore provides session window persistence.
type SessionStore interface {
	CreateSession(ctx context.Context, w model.SessionWindow) error
	// GetSession returns model.ErrSessionNotFound if unknown.
	GetSession(ctx context.Context, sessionID string) (model.SessionWindow, error)
	// ListSessions returns sessions ordered by start time.
	ListSessions(ctx context.Context) ([]model.SessionWindow, error)
}

// AttendanceStore provides the attendance ledger persistence.
type AttendanceStore interface {
	HasAttendance(ctx context.Context, sessionID, externalID string) (bool, error)

	// InsertAttendance writes ev unless an event already exists for
	// (ev.SessionID, ev.ExternalID). The check and the write are a single
	// atomic operation. inserted is false when an event already existed.
	InsertAttendance(ctx context.Context, ev model.AttendanceEvent) (inserted bool, err error)

	// GetAttendance returns model.ErrEventNotFound if no event exists.
	GetAttendance(ctx context.Context, sessionID, externalID string) (model.AttendanceEvent, error)

	// ListAttendance returns the session's events ordered by timestamp.
	ListAttendance(ctx context.Context, sessionID string) ([]model.AttendanceEvent, error)

	// DeleteAttendance removes an event. Returns model.ErrEventNotFound if none exists.
	DeleteAttendance(ctx context.Context, sessionID, externalID string) error
}

// Store is the full persistent store.
type Store interface {
	EnrollmentStore
	SessionStore
	AttendanceStore
	Close() error
}
