// Package ledger records at most one attendance event per (session, identity).
package ledger

import (
	"context"
	"errors"

	"github.com/okian/rollcall/internal/domain/model"
)

// ErrDuplicate is returned by Append when the pair already has an event.
var ErrDuplicate = errors.New("attendance already recorded")

// Store is the persistence the ledger sits on. InsertAttendance must perform
// its existence check and write atomically.
type Store interface {
	HasAttendance(ctx context.Context, sessionID, externalID string) (bool, error)
	InsertAttendance(ctx context.Context, ev model.AttendanceEvent) (bool, error)
	GetAttendance(ctx context.Context, sessionID, externalID string) (model.AttendanceEvent, error)
}

// Ledger is the append-only attendance record.
type Ledger struct {
	store Store
}

// New returns a ledger over store.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// HasRecord reports whether the identity is already recorded for the session.
func (l *Ledger) HasRecord(ctx context.Context, sessionID, externalID string) (bool, error) {
	return l.store.HasAttendance(ctx, sessionID, externalID)
}

// Existing returns the recorded event for the pair.
func (l *Ledger) Existing(ctx context.Context, sessionID, externalID string) (model.AttendanceEvent, error) {
	return l.store.GetAttendance(ctx, sessionID, externalID)
}

// Append writes ev. If another event already holds the pair, Append returns
// that event together with ErrDuplicate and ev is discarded. Callers pass
// timestamps already truncated to the store's precision, so the returned ev
// equals what a later read yields.
func (l *Ledger) Append(ctx context.Context, ev model.AttendanceEvent) (model.AttendanceEvent, error) {
	inserted, err := l.store.InsertAttendance(ctx, ev)
	if err != nil {
		return model.AttendanceEvent{}, err
	}
	if inserted {
		return ev, nil
	}
	existing, err := l.store.GetAttendance(ctx, ev.SessionID, ev.ExternalID)
	if err != nil {
		return model.AttendanceEvent{}, err
	}
	return existing, ErrDuplicate
}
