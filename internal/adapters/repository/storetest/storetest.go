// Package storetest holds the behavioural contract every repository.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) repository.Store

var base = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

// Sample builds an enrollment sample with a small embedding.
func Sample(id, ext, name, scope string, emb ...float32) model.EnrollmentSample {
	if len(emb) == 0 {
		emb = []float32{1, 0, 0}
	}
	return model.EnrollmentSample{
		SampleID:    id,
		ExternalID:  ext,
		DisplayName: name,
		Scope:       scope,
		Embedding:   emb,
		CreatedAt:   base,
	}
}

// Session builds a 09:00-10:00 session with a 15 minute grace.
func Session(id, scope string) model.SessionWindow {
	return model.SessionWindow{
		SessionID: id,
		ScopeKey:  scope,
		Start:     base,
		End:       base.Add(time.Hour),
		LateGrace: 15 * time.Minute,
		MaxScore:  10,
		CreatedAt: base,
	}
}

// Event builds an attendance event at base+offset.
func Event(id, session, ext string, offset time.Duration) model.AttendanceEvent {
	return model.AttendanceEvent{
		EventID:    id,
		SessionID:  session,
		ExternalID: ext,
		Timestamp:  base.Add(offset),
		Score:      10,
		Note:       model.NoteNone,
	}
}

// Run executes the full contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	runEnrollments(t, newStore)
	runSessions(t, newStore)
	runAttendance(t, newStore)
}

func runEnrollments(t *testing.T, newStore Factory) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		s := newStore(t)
		defer s.Close()

		Convey("When nothing is enrolled", func() {
			got, err := s.LoadEnrollments(ctx, "math")
			So(err, ShouldBeNil)
			So(got, ShouldBeEmpty)
		})

		Convey("When samples are enrolled in several scopes", func() {
			rev0, err := s.EnrollmentRevision(ctx)
			So(err, ShouldBeNil)

			So(s.CreateEnrollment(ctx, Sample("s1", "alice", "Alice", "math", 0.1, 0.2, 0.3)), ShouldBeNil)
			So(s.CreateEnrollment(ctx, Sample("s2", "bob", "Bob", "physics")), ShouldBeNil)
			So(s.CreateEnrollment(ctx, Sample("s3", "carol", "Carol", "")), ShouldBeNil)
			So(s.CreateEnrollment(ctx, Sample("s4", "alice", "Alice", "math")), ShouldBeNil)

			Convey("Then the revision moves", func() {
				rev, err := s.EnrollmentRevision(ctx)
				So(err, ShouldBeNil)
				So(rev, ShouldBeGreaterThan, rev0)
			})

			Convey("Then a scope loads its own and global samples in insertion order", func() {
				got, err := s.LoadEnrollments(ctx, "math")
				So(err, ShouldBeNil)
				ids := make([]string, 0, len(got))
				for _, sm := range got {
					ids = append(ids, sm.SampleID)
				}
				So(ids, ShouldResemble, []string{"s1", "s3", "s4"})
			})

			Convey("Then embeddings round-trip exactly", func() {
				got, err := s.LoadEnrollments(ctx, "math")
				So(err, ShouldBeNil)
				So([]float32(got[0].Embedding), ShouldResemble, []float32{0.1, 0.2, 0.3})
				So(got[0].DisplayName, ShouldEqual, "Alice")
				So(got[0].Scope, ShouldEqual, "math")
			})

			Convey("Then listing without scope returns everything", func() {
				got, err := s.ListEnrollments(ctx, "")
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 4)
			})

			Convey("Then listing a scope excludes global samples", func() {
				got, err := s.ListEnrollments(ctx, "physics")
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 1)
				So(got[0].ExternalID, ShouldEqual, "bob")
			})

			Convey("Then a conflicting display name is rejected", func() {
				err := s.CreateEnrollment(ctx, Sample("s5", "alice", "Alicia", "math"))
				So(errors.Is(err, model.ErrNameConflict), ShouldBeTrue)
			})

			Convey("Then a reused sample id is rejected", func() {
				err := s.CreateEnrollment(ctx, Sample("s1", "dave", "Dave", "math"))
				So(errors.Is(err, model.ErrInvalidSample), ShouldBeTrue)
			})

			Convey("Then deleting a sample removes it and moves the revision", func() {
				before, _ := s.EnrollmentRevision(ctx)
				So(s.DeleteEnrollment(ctx, "s4"), ShouldBeNil)
				after, _ := s.EnrollmentRevision(ctx)
				So(after, ShouldBeGreaterThan, before)

				got, err := s.LoadEnrollments(ctx, "math")
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 2)
			})

			Convey("Then deleting an unknown sample fails with not found", func() {
				err := s.DeleteEnrollment(ctx, "nope")
				So(errors.Is(err, model.ErrSampleNotFound), ShouldBeTrue)
			})
		})
	})
}

func runSessions(t *testing.T, newStore Factory) {
	Convey("Given a store with sessions", t, func() {
		ctx := context.Background()
		s := newStore(t)
		defer s.Close()

		later := Session("late", "math")
		later.Start = later.Start.Add(24 * time.Hour)
		later.End = later.End.Add(24 * time.Hour)
		So(s.CreateSession(ctx, later), ShouldBeNil)
		So(s.CreateSession(ctx, Session("early", "math")), ShouldBeNil)

		Convey("When fetched by id", func() {
			got, err := s.GetSession(ctx, "early")

			Convey("Then every field survives", func() {
				So(err, ShouldBeNil)
				want := Session("early", "math")
				So(got.ScopeKey, ShouldEqual, want.ScopeKey)
				So(got.Start.Equal(want.Start), ShouldBeTrue)
				So(got.End.Equal(want.End), ShouldBeTrue)
				So(got.LateGrace, ShouldEqual, want.LateGrace)
				So(got.MaxScore, ShouldEqual, want.MaxScore)
			})
		})

		Convey("When an unknown id is fetched", func() {
			_, err := s.GetSession(ctx, "missing")
			So(errors.Is(err, model.ErrSessionNotFound), ShouldBeTrue)
		})

		Convey("When a session id is reused", func() {
			err := s.CreateSession(ctx, Session("early", "physics"))
			So(errors.Is(err, model.ErrInvalidSession), ShouldBeTrue)
		})

		Convey("When listed", func() {
			got, err := s.ListSessions(ctx)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			So(got[0].SessionID, ShouldEqual, "early")
			So(got[1].SessionID, ShouldEqual, "late")
		})
	})
}

func runAttendance(t *testing.T, newStore Factory) {
	Convey("Given a store with one session", t, func() {
		ctx := context.Background()
		s := newStore(t)
		defer s.Close()
		So(s.CreateSession(ctx, Session("s1", "math")), ShouldBeNil)

		Convey("When an event is inserted", func() {
			ev := Event("e1", "s1", "alice", 30*time.Minute)
			ev.Note = model.NoteLate
			ev.Score = 0
			inserted, err := s.InsertAttendance(ctx, ev)
			So(err, ShouldBeNil)
			So(inserted, ShouldBeTrue)

			Convey("Then it is visible", func() {
				has, err := s.HasAttendance(ctx, "s1", "alice")
				So(err, ShouldBeNil)
				So(has, ShouldBeTrue)

				got, err := s.GetAttendance(ctx, "s1", "alice")
				So(err, ShouldBeNil)
				So(got.EventID, ShouldEqual, "e1")
				So(got.Score, ShouldEqual, 0)
				So(got.Note, ShouldEqual, model.NoteLate)
				So(got.Timestamp.Equal(ev.Timestamp), ShouldBeTrue)
			})

			Convey("Then a second insert for the pair is refused and the first kept", func() {
				inserted, err := s.InsertAttendance(ctx, Event("e2", "s1", "alice", 40*time.Minute))
				So(err, ShouldBeNil)
				So(inserted, ShouldBeFalse)

				got, err := s.GetAttendance(ctx, "s1", "alice")
				So(err, ShouldBeNil)
				So(got.EventID, ShouldEqual, "e1")
			})

			Convey("Then deleting it frees the pair", func() {
				So(s.DeleteAttendance(ctx, "s1", "alice"), ShouldBeNil)
				has, err := s.HasAttendance(ctx, "s1", "alice")
				So(err, ShouldBeNil)
				So(has, ShouldBeFalse)

				inserted, err := s.InsertAttendance(ctx, Event("e3", "s1", "alice", 5*time.Minute))
				So(err, ShouldBeNil)
				So(inserted, ShouldBeTrue)
			})
		})

		Convey("When unknown events are read or deleted", func() {
			_, err := s.GetAttendance(ctx, "s1", "nobody")
			So(errors.Is(err, model.ErrEventNotFound), ShouldBeTrue)
			err = s.DeleteAttendance(ctx, "s1", "nobody")
			So(errors.Is(err, model.ErrEventNotFound), ShouldBeTrue)
		})

		Convey("When several identities are recorded", func() {
			for i, ext := range []string{"carol", "alice", "bob"} {
				_, err := s.InsertAttendance(ctx, Event("e"+ext, "s1", ext, time.Duration(i)*time.Minute))
				So(err, ShouldBeNil)
			}

			Convey("Then they list in timestamp order", func() {
				got, err := s.ListAttendance(ctx, "s1")
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 3)
				So(got[0].ExternalID, ShouldEqual, "carol")
				So(got[2].ExternalID, ShouldEqual, "bob")
			})

			Convey("Then other sessions list nothing", func() {
				got, err := s.ListAttendance(ctx, "other")
				So(err, ShouldBeNil)
				So(got, ShouldBeEmpty)
			})
		})

		Convey("When many goroutines insert the same pair", func() {
			const n = 32
			var wg sync.WaitGroup
			var wins, failures atomic.Int64
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					inserted, err := s.InsertAttendance(ctx, Event(fmt.Sprintf("race-%d", i), "s1", "dave", time.Minute))
					if err != nil {
						failures.Add(1)
						return
					}
					if inserted {
						wins.Add(1)
					}
				}(i)
			}
			wg.Wait()

			Convey("Then exactly one insert wins", func() {
				So(failures.Load(), ShouldEqual, 0)
				So(wins.Load(), ShouldEqual, 1)
				got, err := s.ListAttendance(ctx, "s1")
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 1)
			})
		})
	})
}
