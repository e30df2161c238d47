// Package repository defines the storage port and its adapters.
package repository

import (
	"context"
	"time"

	"github.com/okian/stagegate/internal/domain/model"
	"github.com/okian/stagegate/pkg/metrics"
)

// TeamStore holds Team Progress Records keyed by team name.
type TeamStore interface {
	// CreateTeam inserts a new record. Returns ErrAlreadyExists when the
	// name is taken.
	CreateTeam(ctx context.Context, t model.Team) error

	// GetTeam returns a copy of the record. Returns ErrNotFound.
	GetTeam(ctx context.Context, name string) (model.Team, error)

	// UpdateTeam runs fn on the current record and stores the result as one
	// atomic read-modify-write. When fn returns an error nothing is written.
	UpdateTeam(ctx context.Context, name string, fn func(*model.Team) error) (model.Team, error)

	// ListTeams returns every team of region, or every team when region is empty.
	ListTeams(ctx context.Context, region model.Region) ([]model.Team, error)

	CountTeams(ctx context.Context) (int, error)
}

// ChallengeStore holds stage definitions and the region schedule.
type ChallengeStore interface {
	// GetChallenge returns ErrNotFound for stages without a definition.
	GetChallenge(ctx context.Context, stage int) (model.Challenge, error)
	PutChallenge(ctx context.Context, c model.Challenge) error
	ListChallenges(ctx context.Context) ([]model.Challenge, error)

	RegionSchedule(ctx context.Context) (model.RegionSchedule, error)
	PutRegionStart(ctx context.Context, r model.Region, at time.Time) error
}

// LeaderboardStore holds the derived leaderboard rows.
type LeaderboardStore interface {
	// ReplaceLeaderboard swaps every stored row for entries.
	ReplaceLeaderboard(ctx context.Context, entries []model.LeaderboardEntry) error

	// ListLeaderboard returns rows ordered by global rank, or by regional
	// rank when region is set. limit < 1 means no limit.
	ListLeaderboard(ctx context.Context, region model.Region, limit int) ([]model.LeaderboardEntry, error)
}

// Store is the full storage port.
type Store interface {
	TeamStore
	ChallengeStore
	LeaderboardStore
	Close() error
}

func observeQuery(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func observeUpdate(start time.Time) {
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
}
