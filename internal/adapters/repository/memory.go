package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/okian/stagegate/internal/domain/model"
)

// MemoryStore keeps everything in process memory. One mutex guards all
// state, which also serializes UpdateTeam calls.
type MemoryStore struct {
	mu          sync.RWMutex
	teams       map[string]model.Team
	challenges  map[int]model.Challenge
	schedule    model.RegionSchedule
	leaderboard []model.LeaderboardEntry
	closed      bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		teams:      make(map[string]model.Team),
		challenges: make(map[int]model.Challenge),
		schedule:   make(model.RegionSchedule),
	}
}

func (s *MemoryStore) CreateTeam(_ context.Context, t model.Team) error {
	defer observeUpdate(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.teams[t.Name]; ok {
		return fmt.Errorf("team %q: %w", t.Name, ErrAlreadyExists)
	}
	c := t.Clone()
	c.Normalize()
	s.teams[t.Name] = c
	return nil
}

func (s *MemoryStore) GetTeam(_ context.Context, name string) (model.Team, error) {
	defer observeQuery(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[name]
	if !ok {
		return model.Team{}, fmt.Errorf("team %q: %w", name, ErrNotFound)
	}
	return t.Clone(), nil
}

func (s *MemoryStore) UpdateTeam(_ context.Context, name string, fn func(*model.Team) error) (model.Team, error) {
	defer observeUpdate(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Team{}, ErrClosed
	}
	cur, ok := s.teams[name]
	if !ok {
		return model.Team{}, fmt.Errorf("team %q: %w", name, ErrNotFound)
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return model.Team{}, err
	}
	next.Name = cur.Name
	next.Normalize()
	s.teams[name] = next.Clone()
	return next, nil
}

func (s *MemoryStore) ListTeams(_ context.Context, region model.Region) ([]model.Team, error) {
	defer observeQuery(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Team, 0, len(s.teams))
	for _, t := range s.teams {
		if region == "" || t.Region == region {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) CountTeams(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.teams), nil
}

func (s *MemoryStore) GetChallenge(_ context.Context, stage int) (model.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.challenges[stage]
	if !ok {
		return model.Challenge{}, fmt.Errorf("stage %d: %w", stage, ErrNotFound)
	}
	c.Answers = slices.Clone(c.Answers)
	return c, nil
}

func (s *MemoryStore) PutChallenge(_ context.Context, c model.Challenge) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Answers = slices.Clone(c.Answers)
	s.challenges[c.Stage] = c
	return nil
}

func (s *MemoryStore) ListChallenges(context.Context) ([]model.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Challenge, 0, len(s.challenges))
	for _, c := range s.challenges {
		c.Answers = slices.Clone(c.Answers)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stage < out[j].Stage })
	return out, nil
}

func (s *MemoryStore) RegionSchedule(context.Context) (model.RegionSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(model.RegionSchedule, len(s.schedule))
	for r, at := range s.schedule {
		out[r] = at
	}
	return out, nil
}

func (s *MemoryStore) PutRegionStart(_ context.Context, r model.Region, at time.Time) error {
	if !r.Valid() {
		return fmt.Errorf("%w: %q", model.ErrInvalidRegion, r)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedule[r] = at.UTC()
	return nil
}

func (s *MemoryStore) ReplaceLeaderboard(_ context.Context, entries []model.LeaderboardEntry) error {
	defer observeUpdate(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.leaderboard = slices.Clone(entries)
	return nil
}

func (s *MemoryStore) ListLeaderboard(_ context.Context, region model.Region, limit int) ([]model.LeaderboardEntry, error) {
	defer observeQuery(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.LeaderboardEntry, 0, len(s.leaderboard))
	for _, e := range s.leaderboard {
		if region == "" || e.Region == region {
			out = append(out, e)
		}
	}
	sortEntries(out, region != "")
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Close marks the store closed; further writes fail.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func sortEntries(entries []model.LeaderboardEntry, regional bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		ra, rb := a.GlobalRank, b.GlobalRank
		if regional {
			ra, rb = a.RegionalRank, b.RegionalRank
		}
		if ra != rb {
			return ra < rb
		}
		return a.TeamName < b.TeamName
	})
}
