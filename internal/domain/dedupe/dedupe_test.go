package dedupe_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/rollcall/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithInitialCapacity(16))

		Convey("Then it starts empty", func() {
			So(d.Size(), ShouldEqual, 0)
			So(d.Seen(ctx, "k"), ShouldBeFalse)
		})

		Convey("When a key is claimed for the first time", func() {
			seen := d.SeenAndRecord(ctx, "session-1|S1")

			Convey("Then it should return false and record the claim", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
				So(d.Seen(ctx, "session-1|S1"), ShouldBeTrue)
			})
		})

		Convey("When the same key is claimed twice", func() {
			d.SeenAndRecord(ctx, "session-1|S1")
			seen := d.SeenAndRecord(ctx, "session-1|S1")

			Convey("Then the second call reports it as already claimed", func() {
				So(seen, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a claim is released", func() {
			d.SeenAndRecord(ctx, "k")
			d.Unrecord(ctx, "k")

			Convey("Then it can be claimed again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "k"), ShouldBeFalse)
			})
		})

		Convey("When releasing an unknown key", func() {
			d.Unrecord(ctx, "missing")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When many keys are claimed", func() {
			const n = 5000
			for i := 0; i < n; i++ {
				So(d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i)), ShouldBeFalse)
			}

			Convey("Then none is ever forgotten", func() {
				So(d.Size(), ShouldEqual, int64(n))
				So(d.Seen(ctx, "k-0"), ShouldBeTrue)
			})
		})

		Convey("When keys are empty or very long", func() {
			long := strings.Repeat("a", 10000)

			Convey("Then they behave like any other key", func() {
				So(d.SeenAndRecord(ctx, ""), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, ""), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, long), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, long), ShouldBeTrue)
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given many goroutines racing to claim the same key", t, func() {
		d := dedupe.NewInMemoryDeduper()
		const racers = 64
		var winners atomic.Int32
		var wg sync.WaitGroup

		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(context.Background(), "session-1|S1") {
					winners.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one claims it", func() {
			So(winners.Load(), ShouldEqual, 1)
			So(d.Size(), ShouldEqual, 1)
		})
	})

	Convey("Given goroutines claiming distinct keys", t, func() {
		d := dedupe.NewInMemoryDeduper()
		const goroutines, perGoroutine = 10, 100
		var wg sync.WaitGroup

		for g := 0; g < goroutines; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for j := 0; j < perGoroutine; j++ {
					d.SeenAndRecord(context.Background(), fmt.Sprintf("k-%d-%d", g, j))
				}
			}(g)
		}
		wg.Wait()

		Convey("Then every key is recorded", func() {
			So(d.Size(), ShouldEqual, int64(goroutines*perGoroutine))
		})
	})
}
