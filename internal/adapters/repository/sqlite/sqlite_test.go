package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/adapters/repository/sqlite"
	"github.com/okian/rollcall/internal/adapters/repository/storetest"
	. "github.com/smartystreets/goconvey/convey"
)

func open(t *testing.T) repository.Store {
	t.Helper()
	s, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "rollcall.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	return s
}

func TestSQLiteStoreContract(t *testing.T) {
	storetest.Run(t, open)
}

func TestSQLiteReopen(t *testing.T) {
	Convey("Given a database file with data", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "rollcall.db")

		s, err := sqlite.New(ctx, path)
		So(err, ShouldBeNil)
		So(s.CreateEnrollment(ctx, storetest.Sample("s1", "alice", "Alice", "math", 0.5, -0.25)), ShouldBeNil)
		So(s.CreateSession(ctx, storetest.Session("sess", "math")), ShouldBeNil)
		inserted, err := s.InsertAttendance(ctx, storetest.Event("e1", "sess", "alice", 0))
		So(err, ShouldBeNil)
		So(inserted, ShouldBeTrue)
		rev, err := s.EnrollmentRevision(ctx)
		So(err, ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		Convey("When the file is reopened", func() {
			again, err := sqlite.New(ctx, path)
			So(err, ShouldBeNil)
			defer again.Close()

			Convey("Then migrations are not reapplied and data persists", func() {
				got, err := again.LoadEnrollments(ctx, "math")
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 1)
				So([]float32(got[0].Embedding), ShouldResemble, []float32{0.5, -0.25})

				rev2, err := again.EnrollmentRevision(ctx)
				So(err, ShouldBeNil)
				So(rev2, ShouldEqual, rev)

				inserted, err := again.InsertAttendance(ctx, storetest.Event("e2", "sess", "alice", 0))
				So(err, ShouldBeNil)
				So(inserted, ShouldBeFalse)
			})
		})
	})

	Convey("Given a closed store", t, func() {
		ctx := context.Background()
		s := open(t)
		So(s.Close(), ShouldBeNil)

		Convey("Then operations fail", func() {
			_, err := s.LoadEnrollments(ctx, "")
			So(err, ShouldNotBeNil)
		})
	})
}
