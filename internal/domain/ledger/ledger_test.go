package ledger_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/rollcall/internal/adapters/repository/memory"
	"github.com/okian/rollcall/internal/domain/ledger"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func event(id, session, ext string) model.AttendanceEvent {
	return model.AttendanceEvent{
		EventID:    id,
		SessionID:  session,
		ExternalID: ext,
		Timestamp:  time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC),
		Score:      10,
	}
}

func TestLedger(t *testing.T) {
	convey.Convey("Given an empty ledger", t, func() {
		ctx := context.Background()
		l := ledger.New(memory.New())

		convey.Convey("When an event is appended", func() {
			got, err := l.Append(ctx, event("e1", "s1", "alice"))

			convey.Convey("Then it is recorded", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(got.EventID, convey.ShouldEqual, "e1")
				has, err := l.HasRecord(ctx, "s1", "alice")
				convey.So(err, convey.ShouldBeNil)
				convey.So(has, convey.ShouldBeTrue)
			})

			convey.Convey("Then a second append returns the first event", func() {
				got, err := l.Append(ctx, event("e2", "s1", "alice"))
				convey.So(err, convey.ShouldEqual, ledger.ErrDuplicate)
				convey.So(got.EventID, convey.ShouldEqual, "e1")
			})

			convey.Convey("Then other sessions are independent", func() {
				_, err := l.Append(ctx, event("e3", "s2", "alice"))
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When nothing is recorded", func() {
			has, err := l.HasRecord(ctx, "s1", "bob")
			convey.So(err, convey.ShouldBeNil)
			convey.So(has, convey.ShouldBeFalse)
		})

		convey.Convey("When many goroutines append the same pair", func() {
			const n = 50
			var wg sync.WaitGroup
			var wins, dups atomic.Int64
			winners := make(chan string, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					got, err := l.Append(ctx, event(fmt.Sprintf("e%d", i), "s1", "carol"))
					switch err {
					case nil:
						wins.Add(1)
					case ledger.ErrDuplicate:
						dups.Add(1)
					}
					winners <- got.EventID
				}(i)
			}
			wg.Wait()
			close(winners)

			convey.Convey("Then exactly one wins and all observe the same event", func() {
				convey.So(wins.Load(), convey.ShouldEqual, 1)
				convey.So(dups.Load(), convey.ShouldEqual, n-1)
				seen := make(map[string]struct{})
				for id := range winners {
					seen[id] = struct{}{}
				}
				convey.So(len(seen), convey.ShouldEqual, 1)
			})
		})
	})
}
