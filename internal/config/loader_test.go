package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/stagegate/internal/config"
	"github.com/okian/stagegate/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	ctx := context.Background()
	// Keep a stray ./.env in the package directory from leaking in.
	emptyEnv := writeFile(t, "empty.env", "")
	t.Setenv(config.EnvDotenvFile, emptyEnv)

	convey.Convey("Given a config loader", t, func() {
		convey.Reset(func() {
			for _, kv := range os.Environ() {
				key, _, _ := strings.Cut(kv, "=")
				if strings.HasPrefix(key, config.EnvPrefix) {
					os.Unsetenv(key)
				}
			}
			os.Setenv(config.EnvDotenvFile, emptyEnv)
		})

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreMemory)
				convey.So(cfg.MetricsEnabled, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			os.Setenv("STAGEGATE_ADDR", ":7070")
			os.Setenv("STAGEGATE_ASYNC_RANKING", "true")
			os.Setenv("STAGEGATE_RANK_WORKER_COUNT", "3")
			os.Setenv("STAGEGATE_RANK_REFRESH_INTERVAL", "30s")
			os.Setenv("STAGEGATE_METRICS_ENABLED", "false")
			os.Setenv("STAGEGATE_REGION_START_TIMES", "EMEA=2025-10-10T08:00:00Z, APAC=2025-10-15T00:00:00Z")
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.AsyncRanking, convey.ShouldBeTrue)
				convey.So(cfg.RankWorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.RankRefreshInterval, convey.ShouldEqual, 30*time.Second)
				convey.So(cfg.MetricsEnabled, convey.ShouldBeFalse)
				sched, _ := cfg.Schedule()
				convey.So(len(sched), convey.ShouldEqual, 2)
				_, ok := sched.OpensAt(model.RegionAPAC)
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with a YAML file and env overrides", func() {
			path := writeFile(t, "cfg.yaml", `
addr: ":6060"
store_driver: sqlite
sqlite_path: /tmp/x.db
max_leaderboard_limit: 25
region_start_times:
  AMRS: "2025-10-15T14:00:00Z"
`)
			os.Setenv(config.EnvConfigFile, path)
			os.Setenv("STAGEGATE_MAX_LEADERBOARD_LIMIT", "50")
			cfg, err := config.Load(ctx)

			convey.Convey("Then env should win over the file and the file over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreSQLite)
				convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 50)
				convey.So(cfg.ArtifactBaseURL, convey.ShouldEqual, "/pdfs/")
				sched, _ := cfg.Schedule()
				at, _ := sched.OpensAt(model.RegionAMRS)
				convey.So(at, convey.ShouldEqual, time.Date(2025, 10, 15, 14, 0, 0, 0, time.UTC))
			})
		})

		convey.Convey("When the dotenv file sets variables", func() {
			os.Setenv(config.EnvDotenvFile, writeFile(t, "test.env", "STAGEGATE_LOG_LEVEL=debug\n"))
			cfg, err := config.Load(ctx)

			convey.Convey("Then they are picked up", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
			})
		})

		convey.Convey("When the explicit dotenv file is missing", func() {
			os.Setenv(config.EnvDotenvFile, filepath.Join(t.TempDir(), "missing.env"))
			_, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			os.Setenv(config.EnvConfigFile, writeFile(t, "bad.yaml", "addr: [unclosed"))
			_, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			os.Setenv(config.EnvConfigFile, "/nonexistent/stagegate.yaml")
			_, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			os.Setenv("STAGEGATE_RANK_QUEUE_SIZE", "lots")
			_, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When loading config with an invalid driver", func() {
			os.Setenv("STAGEGATE_STORE_DRIVER", "mongo")
			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
