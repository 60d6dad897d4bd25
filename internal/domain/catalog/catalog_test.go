package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/rollcall/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeSource struct {
	mu       sync.Mutex
	samples  []model.EnrollmentSample
	revision int64
	loads    atomic.Int64
	err      error
}

func (f *fakeSource) LoadEnrollments(_ context.Context, scope string) ([]model.EnrollmentSample, error) {
	f.loads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.EnrollmentSample, 0)
	for _, s := range f.samples {
		if s.Scope == scope || s.Scope == "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSource) EnrollmentRevision(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revision, nil
}

func (f *fakeSource) add(s model.EnrollmentSample) {
	f.mu.Lock()
	f.samples = append(f.samples, s)
	f.revision++
	f.mu.Unlock()
}

func sample(id, ext, scope string) model.EnrollmentSample {
	return model.EnrollmentSample{SampleID: id, ExternalID: ext, DisplayName: ext, Scope: scope, Embedding: model.Embedding{1, 0}}
}

func TestNew(t *testing.T) {
	Convey("Given samples of two identities interleaved", t, func() {
		samples := []model.EnrollmentSample{
			sample("s1", "bob", "a"),
			sample("s2", "alice", "a"),
			sample("s3", "bob", "a"),
		}
		c := New("a", 7, samples)

		Convey("Then identities keep first-appearance order", func() {
			ids := c.Identities()
			So(len(ids), ShouldEqual, 2)
			So(ids[0].ExternalID, ShouldEqual, "bob")
			So(len(ids[0].Samples), ShouldEqual, 2)
			So(ids[1].ExternalID, ShouldEqual, "alice")
		})

		Convey("Then counts and metadata are exposed", func() {
			So(c.Len(), ShouldEqual, 3)
			So(c.Empty(), ShouldBeFalse)
			So(c.Scope(), ShouldEqual, "a")
			So(c.Revision(), ShouldEqual, 7)
		})
	})

	Convey("Given no samples", t, func() {
		c := New("a", 0, nil)
		So(c.Empty(), ShouldBeTrue)
		So(c.Identities(), ShouldBeEmpty)
	})
}

func TestDirect(t *testing.T) {
	Convey("Given a direct loader", t, func() {
		src := &fakeSource{}
		src.add(sample("s1", "alice", "math"))
		src.add(sample("s2", "bob", "physics"))
		src.add(sample("s3", "carol", ""))
		d := NewDirect(src)

		Convey("When loading a scope", func() {
			c, err := d.Load(context.Background(), "math")

			Convey("Then it contains scoped and global samples only", func() {
				So(err, ShouldBeNil)
				So(c.Len(), ShouldEqual, 2)
				So(c.Identities()[0].ExternalID, ShouldEqual, "alice")
				So(c.Identities()[1].ExternalID, ShouldEqual, "carol")
			})
		})

		Convey("When the source fails", func() {
			src.err = errors.New("boom")
			_, err := d.Load(context.Background(), "math")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestCached(t *testing.T) {
	Convey("Given a cached loader", t, func() {
		ctx := context.Background()
		src := &fakeSource{}
		src.add(sample("s1", "alice", "math"))
		c := NewCached(src)

		Convey("When loading twice without changes", func() {
			first, err1 := c.Load(ctx, "math")
			second, err2 := c.Load(ctx, "math")

			Convey("Then the source is read once", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(src.loads.Load(), ShouldEqual, 1)
				So(second.Revision(), ShouldEqual, first.Revision())
			})
		})

		Convey("When an enrollment lands between loads", func() {
			_, _ = c.Load(ctx, "math")
			src.add(sample("s2", "bob", "math"))
			got, err := c.Load(ctx, "math")

			Convey("Then the new sample is visible immediately", func() {
				So(err, ShouldBeNil)
				So(got.Len(), ShouldEqual, 2)
				So(src.loads.Load(), ShouldEqual, 2)
			})
		})

		Convey("When different scopes are loaded", func() {
			_, _ = c.Load(ctx, "math")
			_, _ = c.Load(ctx, "physics")

			Convey("Then each scope has its own snapshot", func() {
				So(src.loads.Load(), ShouldEqual, 2)
			})
		})

		Convey("When invalidated", func() {
			_, _ = c.Load(ctx, "math")
			c.Invalidate()
			_, _ = c.Load(ctx, "math")

			Convey("Then the next load goes to the source", func() {
				So(src.loads.Load(), ShouldEqual, 2)
			})
		})

		Convey("When loaded concurrently", func() {
			var wg sync.WaitGroup
			var bad atomic.Int64
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					got, err := c.Load(ctx, "math")
					if err != nil || got.Len() != 1 {
						bad.Add(1)
					}
				}()
			}
			wg.Wait()

			Convey("Then every caller sees the same catalog", func() {
				So(bad.Load(), ShouldEqual, 0)
			})
		})
	})
}
