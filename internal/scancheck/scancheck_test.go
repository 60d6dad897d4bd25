package scancheck_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/okian/rollcall/internal/adapters/http/api"
	"github.com/okian/rollcall/internal/adapters/repository/memory"
	service "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/scancheck"
	. "github.com/smartystreets/goconvey/convey"
)

func newServer(dim int) *httptest.Server {
	svc := service.New(memory.New(), service.WithDimension(dim))
	return httptest.NewServer(api.NewServer(svc).Handler(context.Background()))
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		srv := newServer(16)
		defer srv.Close()

		Convey("When the scan check floods one session", func() {
			var progress atomic.Int64
			report, err := scancheck.Run(context.Background(), scancheck.Config{
				BaseURL:    srv.URL,
				Identities: 6,
				Workers:    4,
				Repeats:    3,
				Dimension:  16,
				Cleanup:    true,
				Progress:   func() { progress.Add(1) },
			}, nil)

			Convey("Then every identity is recorded exactly once", func() {
				So(err, ShouldBeNil)
				So(report.Submitted, ShouldEqual, 6*4*3)
				So(report.Recorded, ShouldEqual, 6)
				So(report.Duplicate, ShouldEqual, 6*4*3-6)
				So(report.Attendance, ShouldEqual, 6)
				So(report.Failed, ShouldEqual, 0)
				So(progress.Load(), ShouldEqual, int64(6*4*3))
			})
		})

		Convey("When the dimension does not match the service", func() {
			_, err := scancheck.Run(context.Background(), scancheck.Config{
				BaseURL: srv.URL, Identities: 2, Workers: 1, Repeats: 1, Dimension: 8,
			}, nil)

			Convey("Then enrollment fails", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "enrollment failed")
			})
		})
	})

	Convey("Given a service that records every frame", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
		mux.HandleFunc("POST /enrollments", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"sample_id":"x"}`))
		})
		mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"session_id":"s","start":"2024-03-04T00:00:00Z","end":"2024-03-04T23:59:00Z"}`))
		})
		mux.HandleFunc("POST /sessions/s/recognitions", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"status":"recorded"}`))
		})
		mux.HandleFunc("GET /sessions/s/attendance", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("Then verification fails", func() {
			_, err := scancheck.Run(context.Background(), scancheck.Config{
				BaseURL: srv.URL, Identities: 2, Workers: 2, Repeats: 1, Dimension: 4,
			}, nil)
			So(errors.Is(err, scancheck.ErrVerification), ShouldBeTrue)
		})
	})

	Convey("Given a negative worker count", t, func() {
		_, err := scancheck.Run(context.Background(), scancheck.Config{Workers: -1}, nil)
		So(errors.Is(err, scancheck.ErrInvalidConfig), ShouldBeTrue)
	})
}
