// Package scoring turns a session window and an instant into an attendance score.
package scoring

import (
	"time"

	"github.com/okian/rollcall/internal/domain/model"
)

// Decision is the outcome of evaluating a window at one instant.
type Decision struct {
	Score int
	Note  model.Note
}

// Option applies a configuration option to the Policy.
type Option func(*Policy)

// WithEarlyNote sets the note attached to arrivals before the window opens.
// Only NoteAfterWindow and NoteBeforeWindow are accepted; anything else is ignored.
func WithEarlyNote(n model.Note) Option {
	return func(p *Policy) {
		if n == model.NoteAfterWindow || n == model.NoteBeforeWindow {
			p.earlyNote = n
		}
	}
}

// Policy is the attendance window policy. It holds no mutable state and is
// safe for concurrent use.
type Policy struct {
	earlyNote model.Note
}

// NewPolicy creates a window policy with configuration options.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		// Early arrivals have always been stored as "after-window".
		earlyNote: model.NoteAfterWindow,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EarlyNote returns the note used for arrivals before the window opens.
func (p *Policy) EarlyNote() model.Note { return p.earlyNote }

// Evaluate scores now against the window. Branches are checked in order:
//
//	start <= now <= end            -> maxScore, none
//	end < now < end+grace          -> 0, none
//	now >= end+grace               -> 0, late
//	now < start                    -> 0, early note
func (p *Policy) Evaluate(w model.SessionWindow, now time.Time) Decision {
	lateAt := w.End.Add(w.LateGrace)
	switch {
	case !now.Before(w.Start) && !now.After(w.End):
		return Decision{Score: w.MaxScore, Note: model.NoteNone}
	case now.After(w.End) && now.Before(lateAt):
		return Decision{Score: 0, Note: model.NoteNone}
	case !now.Before(lateAt):
		return Decision{Score: 0, Note: model.NoteLate}
	default:
		return Decision{Score: 0, Note: p.earlyNote}
	}
}

// Evaluate scores now against the window using the default policy.
func Evaluate(w model.SessionWindow, now time.Time) Decision {
	return defaultPolicy.Evaluate(w, now)
}

var defaultPolicy = NewPolicy()
