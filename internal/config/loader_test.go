package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/rollcall/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"ROLLCALL_CONFIG",
	"ROLLCALL_ADDR",
	"ROLLCALL_LOG_LEVEL",
	"ROLLCALL_LOG_FORMAT",
	"ROLLCALL_STORE_DRIVER",
	"ROLLCALL_STORE_DSN",
	"ROLLCALL_EMBEDDING_DIM",
	"ROLLCALL_EMBEDDING_NORMALIZE",
	"ROLLCALL_MATCH_THRESHOLD",
	"ROLLCALL_CATALOG_CACHE",
	"ROLLCALL_TIMEZONE",
	"ROLLCALL_DEFAULT_LATE_GRACE_MINUTES",
	"ROLLCALL_DEFAULT_MAX_SCORE",
	"ROLLCALL_EARLY_NOTE",
	"ROLLCALL_CORS_ALLOWED_ORIGINS",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverSQLite)
				convey.So(cfg.StoreDSN, convey.ShouldEqual, "rollcall.db")
				convey.So(cfg.EmbeddingDim, convey.ShouldEqual, 512)
				convey.So(cfg.EmbeddingNormalize, convey.ShouldBeTrue)
				convey.So(cfg.MatchThreshold, convey.ShouldEqual, 1.0)
				convey.So(cfg.CatalogCache, convey.ShouldBeTrue)
				convey.So(cfg.DefaultLateGrace(), convey.ShouldEqual, 15*time.Minute)
				convey.So(cfg.DefaultMaxScore, convey.ShouldEqual, 10)
				convey.So(cfg.EarlyNote, convey.ShouldEqual, "after-window")
				convey.So(cfg.CORSAllowedOrigins, convey.ShouldResemble, []string{"*"})
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("ROLLCALL_ADDR", ":8080")
			_ = os.Setenv("ROLLCALL_STORE_DRIVER", "memory")
			_ = os.Setenv("ROLLCALL_EMBEDDING_DIM", "128")
			_ = os.Setenv("ROLLCALL_EMBEDDING_NORMALIZE", "false")
			_ = os.Setenv("ROLLCALL_MATCH_THRESHOLD", "0.6")
			_ = os.Setenv("ROLLCALL_EARLY_NOTE", "before-window")
			_ = os.Setenv("ROLLCALL_CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverMemory)
				convey.So(cfg.EmbeddingDim, convey.ShouldEqual, 128)
				convey.So(cfg.EmbeddingNormalize, convey.ShouldBeFalse)
				convey.So(cfg.MatchThreshold, convey.ShouldEqual, 0.6)
				convey.So(cfg.EarlyNote, convey.ShouldEqual, "before-window")
				convey.So(cfg.CORSAllowedOrigins, convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := createTempConfigFile(t, `
addr: ":9090"
store_driver: postgres
store_dsn: "postgres://u:p@localhost/rollcall?sslmode=disable"
embedding_dim: 3
default_max_score: 5
timezone: UTC
`)
			_ = os.Setenv("ROLLCALL_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverPostgres)
				convey.So(cfg.EmbeddingDim, convey.ShouldEqual, 3)
				convey.So(cfg.DefaultMaxScore, convey.ShouldEqual, 5)
				loc, err := cfg.Location()
				convey.So(err, convey.ShouldBeNil)
				convey.So(loc, convey.ShouldEqual, time.UTC)
			})

			convey.Convey("Then missing fields keep defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MatchThreshold, convey.ShouldEqual, 1.0)
				convey.So(cfg.DefaultLateGraceMinutes, convey.ShouldEqual, 15)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			path := createTempConfigFile(t, "addr: \":9090\"\nembedding_dim: 64\n")
			_ = os.Setenv("ROLLCALL_CONFIG", path)
			_ = os.Setenv("ROLLCALL_ADDR", ":8080")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.EmbeddingDim, convey.ShouldEqual, 64)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			_ = os.Setenv("ROLLCALL_CONFIG", createTempConfigFile(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("ROLLCALL_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("ROLLCALL_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given default config", t, func() {
		cfg := config.New(context.Background())
		convey.So(cfg.Validate(), convey.ShouldBeNil)

		cases := []struct {
			name   string
			mutate func(*config.Config)
			want   string
		}{
			{"zero dimension", func(c *config.Config) { c.EmbeddingDim = 0 }, "embedding_dim"},
			{"zero threshold", func(c *config.Config) { c.MatchThreshold = 0 }, "match_threshold"},
			{"zero max score", func(c *config.Config) { c.DefaultMaxScore = 0 }, "default_max_score"},
			{"negative grace", func(c *config.Config) { c.DefaultLateGraceMinutes = -1 }, "default_late_grace_minutes"},
			{"unknown driver", func(c *config.Config) { c.StoreDriver = "redis" }, "store_driver"},
			{"missing dsn", func(c *config.Config) { c.StoreDSN = "" }, "store_dsn"},
			{"unknown early note", func(c *config.Config) { c.EarlyNote = "late" }, "early_note"},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }, "log_format"},
			{"unknown timezone", func(c *config.Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
			{"zero pool", func(c *config.Config) { c.StoreMaxOpenConns = 0 }, "store_max_open_conns"},
		}

		for _, tc := range cases {
			convey.Convey("When "+tc.name, func() {
				c := *cfg
				tc.mutate(&c)
				err := c.Validate()

				convey.Convey("Then validation names the field", func() {
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
					convey.So(err.Error(), convey.ShouldContainSubstring, tc.want)
				})
			})
		}

		convey.Convey("When the memory driver has no dsn", func() {
			c := *cfg
			c.StoreDriver = config.DriverMemory
			c.StoreDSN = ""
			convey.So(c.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestDotEnv(t *testing.T) {
	convey.Convey("Given a .env file in the working directory", t, func() {
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		dir := t.TempDir()
		content := "ROLLCALL_ADDR=:7070\nROLLCALL_EMBEDDING_DIM=16\n"
		convey.So(os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600), convey.ShouldBeNil)
		t.Chdir(dir)

		convey.Convey("When the environment sets one of the same keys", func() {
			_ = os.Setenv("ROLLCALL_EMBEDDING_DIM", "32")
			cfg, err := config.Load(context.Background())

			convey.Convey("Then .env fills the gaps without overriding", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.EmbeddingDim, convey.ShouldEqual, 32)
			})
		})
	})
}
