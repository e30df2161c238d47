package ranking

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/stagegate/internal/domain/model"
	"github.com/okian/stagegate/pkg/clock"
	"github.com/okian/stagegate/pkg/logger"
	"github.com/okian/stagegate/pkg/metrics"
)

// TeamLister reads team records. An empty region lists every team.
type TeamLister interface {
	ListTeams(ctx context.Context, region model.Region) ([]model.Team, error)
}

// LeaderboardWriter persists a full ranking, replacing the previous one.
type LeaderboardWriter interface {
	ReplaceLeaderboard(ctx context.Context, entries []model.LeaderboardEntry) error
}

// Recomputer runs full ranking passes one at a time and publishes the
// latest result as an immutable snapshot.
type Recomputer struct {
	store LeaderboardSource
	clock clock.Clock
	log   logger.Logger

	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
	passes  atomic.Uint64
}

// LeaderboardSource is the storage a Recomputer reads from and writes to.
type LeaderboardSource interface {
	TeamLister
	LeaderboardWriter
}

// Option configures a Recomputer.
type Option func(*Recomputer)

// WithClock overrides the time source stamped on entries.
func WithClock(c clock.Clock) Option {
	return func(r *Recomputer) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Recomputer) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRecomputer creates a Recomputer over store. Until the first pass the
// published snapshot is empty.
func NewRecomputer(store LeaderboardSource, opts ...Option) *Recomputer {
	r := &Recomputer{
		store: store,
		clock: clock.System{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Get().Named("ranking")
	}
	r.current.Store(Compute(nil, r.clock.Now()))
	return r
}

// Recompute reads every team, ranks them, persists the result and
// publishes it. Passes are serialized, so a later pass always starts from
// data at least as fresh as an earlier one.
//
// A persistence failure still publishes the in-memory snapshot and
// returns the error.
func (r *Recomputer) Recompute(ctx context.Context, reason string) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	teams, err := r.store.ListTeams(ctx, "")
	if err != nil {
		metrics.RecordRankRecomputeError()
		metrics.RecordErrorByComponent("ranking", "list_teams")
		return nil, fmt.Errorf("list teams: %w", err)
	}

	snap := Compute(teams, r.clock.Now())
	r.current.Store(snap)
	r.passes.Add(1)
	recordDistribution(teams)

	if err := r.store.ReplaceLeaderboard(ctx, snap.Entries()); err != nil {
		metrics.RecordRankRecomputeError()
		metrics.RecordErrorByComponent("ranking", "persist")
		return snap, fmt.Errorf("persist leaderboard: %w", err)
	}

	took := time.Since(start)
	metrics.RecordRankRecompute(float64(took.Microseconds()) / 1000)
	r.log.Debug(ctx, "leaderboard recomputed",
		logger.String("reason", reason),
		logger.Int("teams", len(teams)),
		logger.Duration("took", took),
	)
	return snap, nil
}

// Current returns the most recently published snapshot; never nil.
func (r *Recomputer) Current() *Snapshot {
	return r.current.Load()
}

// Passes returns how many passes have published a snapshot.
func (r *Recomputer) Passes() uint64 {
	return r.passes.Load()
}

// Run recomputes every interval until ctx is cancelled. A non-positive
// interval returns immediately.
func (r *Recomputer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Recompute(ctx, "periodic"); err != nil && ctx.Err() == nil {
				r.log.Warn(ctx, "periodic recompute failed", logger.Error(err))
			}
		}
	}
}

func recordDistribution(teams []model.Team) {
	var byStage [model.GatedStages + 1]int
	for _, t := range teams {
		if t.StagesUnlocked >= 0 && t.StagesUnlocked <= model.GatedStages {
			byStage[t.StagesUnlocked]++
		}
	}
	metrics.UpdateTeamsTotal(len(teams))
	for stages, n := range byStage {
		metrics.UpdateTeamsByStage(stages, n)
	}
}
