package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	service "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/config"
	"github.com/okian/rollcall/pkg/logger"
)

func TestNewHandler(t *testing.T) {
	t.Setenv("ROLLCALL_STORE_DRIVER", "memory")
	t.Setenv("ROLLCALL_EMBEDDING_DIM", "4")
	t.Setenv("ROLLCALL_TIMEZONE", "UTC")

	convey.Convey("Given configuration from the environment", t, func() {
		ctx := context.Background()
		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverMemory)

		store, err := service.OpenStore(ctx, cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		defer store.Close()

		svc, err := service.FromConfig(cfg, store, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Dimension(), convey.ShouldEqual, 4)

		h := newHandler(ctx, cfg, svc, logger.Nop())

		for _, path := range []string{"/healthz", "/metrics", "/stats", "/openapi.yaml", "/api-docs", "/sessions", "/enrollments"} {
			convey.Convey("Then GET "+path+" is served", func() {
				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			})
		}

		convey.Convey("Then an unknown route is 404", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusNotFound)
		})
	})
}
