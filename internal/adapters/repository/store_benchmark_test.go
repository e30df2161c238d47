package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/stagegate/internal/domain/model"
)

const benchTeams = 200

func seedBench(b *testing.B, s Store) {
	b.Helper()
	ctx := context.Background()
	regions := model.Regions()
	for i := 0; i < benchTeams; i++ {
		t := newTeam(fmt.Sprintf("team-%03d", i), regions[i%len(regions)])
		if err := s.CreateTeam(ctx, t); err != nil {
			b.Fatal(err)
		}
	}
}

func benchStores(b *testing.B) map[string]Store {
	b.Helper()
	sqlite, err := NewSQLiteStore(context.Background(), filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = sqlite.Close() })
	out := map[string]Store{"memory": NewMemoryStore(), "sqlite": sqlite}
	for _, s := range out {
		seedBench(b, s)
	}
	return out
}

func BenchmarkUpdateTeam(b *testing.B) {
	for name, s := range benchStores(b) {
		b.Run(name, func(b *testing.B) {
			ctx := context.Background()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, err := s.UpdateTeam(ctx, fmt.Sprintf("team-%03d", i%benchTeams), func(t *model.Team) error {
					t.LastSubmittedToken = "ERFT_stage2_p1-1_p2-2_p3-3"
					return nil
				})
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkListTeams(b *testing.B) {
	for name, s := range benchStores(b) {
		b.Run(name, func(b *testing.B) {
			ctx := context.Background()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := s.ListTeams(ctx, ""); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkReplaceLeaderboard(b *testing.B) {
	entries := make([]model.LeaderboardEntry, benchTeams)
	for i := range entries {
		entries[i] = model.LeaderboardEntry{
			TeamID: fmt.Sprint(i), TeamName: fmt.Sprintf("team-%03d", i), Region: model.RegionEMEA,
			StagesUnlocked: i % 5, TotalElapsed: time.Duration(i) * time.Second,
			GlobalRank: i + 1, RegionalRank: i + 1, UpdatedAt: t0,
		}
	}
	for name, s := range benchStores(b) {
		b.Run(name, func(b *testing.B) {
			ctx := context.Background()
			for i := 0; i < b.N; i++ {
				if err := s.ReplaceLeaderboard(ctx, entries); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
