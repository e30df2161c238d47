// Package service wires the progression and ranking core to storage,
// credentials and the rank pipeline, and implements the operations the
// HTTP API and the admin tool call.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/stagegate/internal/adapters/mq/queue"
	workerpool "github.com/okian/stagegate/internal/adapters/mq/worker"
	"github.com/okian/stagegate/internal/adapters/credential"
	"github.com/okian/stagegate/internal/adapters/repository"
	"github.com/okian/stagegate/internal/domain/dedupe"
	"github.com/okian/stagegate/internal/domain/model"
	"github.com/okian/stagegate/internal/domain/ranking"
	"github.com/okian/stagegate/internal/domain/region"
	"github.com/okian/stagegate/internal/seeding"
	"github.com/okian/stagegate/pkg/clock"
	"github.com/okian/stagegate/pkg/logger"
	"github.com/okian/stagegate/pkg/metrics"
)

const (
	defaultLeaderboardLimit = 100
	defaultArtifactBaseURL  = "/pdfs/"
	defaultQueueSize        = 256
	defaultWorkerCount      = 1
)

// Store is the storage the service needs.
type Store interface {
	repository.TeamStore
	repository.ChallengeStore
	repository.LeaderboardStore
}

// Credentials hashes new secrets and verifies submitted ones.
type Credentials interface {
	credential.Hasher
	credential.Verifier
}

// Service implements the competition operations.
type Service struct {
	mu sync.RWMutex

	// Core components
	store  Store
	creds  Credentials
	clock  clock.Clock
	gate   *region.Gate
	ranker *ranking.Recomputer

	// Configuration
	artifactBaseURL  string
	leaderboardLimit int
	asyncRanking     bool
	queueSize        int
	workerCount      int
	refreshInterval  time.Duration
	seed             *seeding.Options

	// Rank pipeline, set while started in async mode
	queue   eventqueue.Queue
	pending dedupe.Deduper
	pool    *workerpool.Pool

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithArtifactBaseURL sets the prefix joined with artifact file names.
func WithArtifactBaseURL(base string) Option {
	return func(s *Service) {
		if base != "" {
			s.artifactBaseURL = base
		}
	}
}

// WithLeaderboardLimit caps the rows a leaderboard read returns.
func WithLeaderboardLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.leaderboardLimit = limit
		}
	}
}

// WithAsyncRanking moves rank passes onto a queue drained by workers.
// Non-positive sizes keep the defaults.
func WithAsyncRanking(queueSize, workers int) Option {
	return func(s *Service) {
		s.asyncRanking = true
		if queueSize > 0 {
			s.queueSize = queueSize
		}
		if workers > 0 {
			s.workerCount = workers
		}
	}
}

// WithRefreshInterval runs a reconcile pass every interval while started.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		s.refreshInterval = d
	}
}

// WithSeed seeds the store on Start.
func WithSeed(opts seeding.Options) Option {
	return func(s *Service) {
		s.seed = &opts
	}
}

// New constructs a Service over store.
func New(store Store, creds Credentials, opts ...Option) *Service {
	s := &Service{
		store:            store,
		creds:            creds,
		clock:            clock.System{},
		artifactBaseURL:  defaultArtifactBaseURL,
		leaderboardLimit: defaultLeaderboardLimit,
		queueSize:        defaultQueueSize,
		workerCount:      defaultWorkerCount,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.gate = region.NewGate(store, region.WithClock(s.clock))
	s.ranker = ranking.NewRecomputer(store,
		ranking.WithClock(s.clock),
		ranking.WithLogger(s.logger.Named("ranking")),
	)
	return s
}

// Start seeds the store if configured, runs the startup rank pass and
// starts the rank pipeline. Leaderboard reads are consistent with the
// stored teams once Start returns.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting competition service...")

	if s.seed != nil {
		if _, err := seeding.Seed(ctx, s.store, *s.seed); err != nil {
			return err
		}
	}

	snap, err := s.ranker.Recompute(ctx, "startup")
	if snap == nil {
		return err
	}
	if err != nil {
		s.logger.Warn(ctx, "startup leaderboard not persisted", logger.Error(err))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	if s.asyncRanking {
		s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
		s.pending = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.queueSize))
		s.pool = workerpool.NewPool(s.workerCount, s.queue, s.ranker, workerpool.WithPending(s.pending))
		s.pool.Start(runCtx)
	}
	if s.refreshInterval > 0 {
		go s.ranker.Run(runCtx, s.refreshInterval)
	}

	s.started = true
	s.logger.Info(ctx, "competition service started",
		logger.Int("teams", snap.Len()),
		logger.Bool("asyncRanking", s.asyncRanking),
		logger.Int("workers", s.workerCount),
		logger.Duration("refreshInterval", s.refreshInterval),
	)
	return nil
}

// Stop drains the rank pipeline and stops background passes.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping competition service...")

	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.queue, s.pending, s.pool, s.cancel = nil, nil, nil, nil

	s.started = false
	s.logger.Info(ctx, "competition service stopped")
}

// requestRank schedules a full rank pass after a progression write. In
// async mode requests coalesce while one is pending; when the queue does
// not accept the request the pass runs inline. Rank failures never fail
// the write that caused them.
func (s *Service) requestRank(ctx context.Context, reason string, team *model.Team) {
	s.mu.RLock()
	q, pending := s.queue, s.pending
	s.mu.RUnlock()

	if q != nil {
		if pending.SeenAndRecord(ctx, model.ScopeAll) {
			metrics.RecordRankRequestMerged()
			return
		}
		err := q.Enqueue(ctx, model.RecomputeEvent{
			EventID: uuid.NewString(),
			Scope:   model.ScopeAll,
			Reason:  reason,
			Team:    team.Name,
			Region:  team.Region,
		})
		if err == nil {
			return
		}
		pending.Unrecord(ctx, model.ScopeAll)
		s.logger.Warn(ctx, "rank request not queued, recomputing inline",
			logger.String("reason", reason),
			logger.Error(err),
		)
	}

	if _, err := s.ranker.Recompute(ctx, reason); err != nil {
		s.logger.Error(ctx, "rank recompute failed",
			logger.String("reason", reason),
			logger.String("team", team.Name),
			logger.Error(err),
		)
	}
}

// Recompute runs a rank pass now.
func (s *Service) Recompute(ctx context.Context) (*ranking.Snapshot, error) {
	return s.ranker.Recompute(ctx, "manual")
}

// Snapshot returns the latest published ranking.
func (s *Service) Snapshot() *ranking.Snapshot {
	return s.ranker.Current()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.ranker.Current()
	stats := map[string]interface{}{
		"started":          s.started,
		"asyncRanking":     s.asyncRanking,
		"workerCount":      s.workerCount,
		"queueSize":        s.queueSize,
		"leaderboardLimit": s.leaderboardLimit,
		"rankPasses":       s.ranker.Passes(),
		"teams":            snap.Len(),
		"rankedAt":         snap.ComputedAt,
	}

	if s.queue != nil {
		queueLen := s.queue.Len(context.Background())
		stats["queueLength"] = queueLen
		stats["pendingPasses"] = s.pending.Size()
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}
