package migrate_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
	"github.com/okian/rollcall/internal/adapters/repository/migrate"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRunner(t *testing.T) {
	Convey("Given a sqlite database and two migrations", t, func() {
		ctx := context.Background()
		db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "m.db"))
		So(err, ShouldBeNil)
		defer db.Close()

		fsys := fstest.MapFS{
			"m/002_b.sql":  {Data: []byte("CREATE TABLE b (id TEXT PRIMARY KEY);")},
			"m/001_a.sql":  {Data: []byte("CREATE TABLE a (id TEXT PRIMARY KEY);")},
			"m/README.txt": {Data: []byte("ignored")},
		}
		r := migrate.New(db, fsys, "m", migrate.WithPlaceholder(migrate.Question))

		Convey("When pending is listed", func() {
			files, err := r.Pending(ctx)

			Convey("Then sql files come back sorted", func() {
				So(err, ShouldBeNil)
				So(files, ShouldResemble, []string{"001_a.sql", "002_b.sql"})
			})
		})

		Convey("When migrations run twice", func() {
			So(r.Up(ctx), ShouldBeNil)
			So(r.Up(ctx), ShouldBeNil)

			Convey("Then each is applied once", func() {
				versions, err := r.Applied(ctx)
				So(err, ShouldBeNil)
				So(versions, ShouldResemble, []string{"001_a.sql", "002_b.sql"})

				pending, err := r.Pending(ctx)
				So(err, ShouldBeNil)
				So(pending, ShouldBeEmpty)
			})
		})

		Convey("When a migration is broken", func() {
			bad := fstest.MapFS{"m/001_bad.sql": {Data: []byte("CREATE TABLEX nope;")}}
			err := migrate.New(db, bad, "m", migrate.WithPlaceholder(migrate.Question)).Up(ctx)

			Convey("Then Up fails and nothing is recorded", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "001_bad.sql")
			})
		})
	})
}
