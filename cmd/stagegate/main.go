package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/stagegate/internal/adapters/credential"
	"github.com/okian/stagegate/internal/adapters/http/api"
	"github.com/okian/stagegate/internal/adapters/http/site"
	"github.com/okian/stagegate/internal/adapters/http/swagger"
	"github.com/okian/stagegate/internal/adapters/repository"
	app "github.com/okian/stagegate/internal/app"
	"github.com/okian/stagegate/internal/config"
	"github.com/okian/stagegate/internal/seeding"
	"github.com/okian/stagegate/pkg/logger"
	"github.com/okian/stagegate/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "stagegate stopped with error", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

// run loads configuration and serves until ctx ends or a component fails.
func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return err
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.SetEnabled(cfg.MetricsEnabled)
	if !metrics.Enabled() {
		log.Info(ctx, "metrics recording disabled")
	}

	store, err := repository.Open(ctx, cfg.StoreDriver, cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "store close failed", logger.Error(err))
		}
	}()

	svc, err := newService(cfg, store)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop(context.WithoutCancel(ctx))

	mux, err := newMux(ctx, cfg, svc)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store", cfg.StoreDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		metrics.RunSystemCollector(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(gctx, "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		log.Info(shutdownCtx, "server stopped")
		return nil
	})
	return g.Wait()
}

// newService builds the competition service from cfg.
func newService(cfg *config.Config, store repository.Store) (*app.Service, error) {
	creds := credential.NewBcrypt(credential.WithCost(cfg.BcryptCost))
	opts := []app.Option{
		app.WithArtifactBaseURL(cfg.ArtifactBaseURL),
		app.WithLeaderboardLimit(cfg.MaxLeaderboardLimit),
		app.WithRefreshInterval(cfg.RankRefreshInterval),
	}
	if cfg.AsyncRanking {
		opts = append(opts, app.WithAsyncRanking(cfg.RankQueueSize, cfg.RankWorkerCount))
	}
	if cfg.SeedOnStart {
		schedule, err := cfg.Schedule()
		if err != nil {
			return nil, err
		}
		opts = append(opts, app.WithSeed(seeding.Options{
			Challenges: true,
			Schedule:   schedule,
			DemoTeams:  cfg.SeedDemoTeams,
			Hasher:     creds,
		}))
	}
	return app.New(store, creds, opts...), nil
}

// newMux registers docs, artifacts and the API.
func newMux(ctx context.Context, cfg *config.Config, svc *app.Service) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	if err := site.Register(ctx, mux, cfg.ArtifactBaseURL, cfg.ArtifactDir); err != nil {
		return nil, fmt.Errorf("artifacts: %w", err)
	}
	api.NewServer(svc).Register(ctx, mux)
	return mux, nil
}
