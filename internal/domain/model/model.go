// Package model contains domain models passed between layers.
package model

import (
	"math"
	"strings"
	"time"
)

// Embedding is a fixed-length face feature vector produced by an external extractor.
type Embedding []float32

// Dim returns the number of components.
func (e Embedding) Dim() int { return len(e) }

// Finite reports whether every component is neither NaN nor infinite.
func (e Embedding) Finite() bool {
	for _, v := range e {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Clone returns a copy that does not share the backing array.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// EnrollmentSample is one enrolled photo of a person.
// Samples are only ever created or deleted as a whole.
type EnrollmentSample struct {
	SampleID    string    // unique per sample
	ExternalID  string    // identity the sample belongs to
	DisplayName string    // canonical name of the identity
	Embedding   Embedding // exactly D components
	Scope       string    // class/group label; empty means enrolled for every scope
	CreatedAt   time.Time
}

// Identity groups every sample sharing an ExternalID within a scope.
type Identity struct {
	ExternalID  string
	DisplayName string
	Samples     []EnrollmentSample
}

// SessionWindow bounds the time during which attendance counts for a scope.
type SessionWindow struct {
	SessionID string
	ScopeKey  string
	Start     time.Time
	End       time.Time
	LateGrace time.Duration
	MaxScore  int
	CreatedAt time.Time
}

// Date returns the calendar day of the session start, formatted YYYY-MM-DD.
func (w SessionWindow) Date() string { return w.Start.Format(time.DateOnly) }

// Validate checks the window invariants.
func (w SessionWindow) Validate() error {
	switch {
	case strings.TrimSpace(w.SessionID) == "":
		return NewKind("model.session_window", ErrInvalidSession)
	case w.End.Before(w.Start):
		return WrapKind("model.session_window", ErrInvalidSession, errEndBeforeStart)
	case w.MaxScore <= 0:
		return WrapKind("model.session_window", ErrInvalidSession, errMaxScore)
	case w.LateGrace < 0:
		return WrapKind("model.session_window", ErrInvalidSession, errNegativeGrace)
	}
	return nil
}

// Note qualifies an attendance score.
type Note string

// Attendance notes.
const (
	NoteNone         Note = ""
	NoteLate         Note = "late"
	NoteAfterWindow  Note = "after-window"
	NoteBeforeWindow Note = "before-window"
)

// String implements fmt.Stringer; the empty note renders as "none".
func (n Note) String() string {
	if n == NoteNone {
		return "none"
	}
	return string(n)
}

// ParseNote parses the wire form of a note. "none" and "" map to NoteNone.
func ParseNote(s string) (Note, bool) {
	switch Note(strings.TrimSpace(strings.ToLower(s))) {
	case "", "none":
		return NoteNone, true
	case NoteLate:
		return NoteLate, true
	case NoteAfterWindow:
		return NoteAfterWindow, true
	case NoteBeforeWindow:
		return NoteBeforeWindow, true
	}
	return NoteNone, false
}

// AttendanceEvent is the single recorded presence of an identity in a session.
type AttendanceEvent struct {
	EventID    string
	SessionID  string
	ExternalID string
	Timestamp  time.Time
	Score      int // in [0, session MaxScore]
	Note       Note
}

// AttendanceKey returns the (session, identity) unit of mutual exclusion as a string key.
func AttendanceKey(sessionID, externalID string) string {
	return sessionID + "\x00" + externalID
}
