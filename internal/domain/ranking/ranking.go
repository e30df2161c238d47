// Package ranking computes global and regional leaderboards from team
// progress records.
//
// Ordering: teams with progress first, by stages unlocked DESC then total
// elapsed ASC, then team name ASC for determinism. Ranks are 1-based
// positions, except that an entry whose keys equal the previous entry's
// keys shares its rank (1, 1, 3). Teams without progress all receive
// model.UnrankedSentinel and are listed by name.
package ranking

import (
	"sort"
	"time"

	"github.com/okian/stagegate/internal/domain/model"
)

// Placement is one ranked team within a scope.
type Placement struct {
	Team model.Team
	Rank int
}

// Order ranks teams within a single scope. The input is not modified.
func Order(teams []model.Team) []Placement {
	ranked := make([]model.Team, 0, len(teams))
	unranked := make([]model.Team, 0)
	for _, t := range teams {
		if t.StagesUnlocked > 0 {
			ranked = append(ranked, t)
		} else {
			unranked = append(unranked, t)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.StagesUnlocked != b.StagesUnlocked {
			return a.StagesUnlocked > b.StagesUnlocked
		}
		if a.TotalElapsed != b.TotalElapsed {
			return a.TotalElapsed < b.TotalElapsed
		}
		return a.Name < b.Name
	})
	sort.SliceStable(unranked, func(i, j int) bool {
		return unranked[i].Name < unranked[j].Name
	})

	out := make([]Placement, 0, len(teams))
	for i, t := range ranked {
		rank := i + 1
		if i > 0 && sameKeys(ranked[i-1], t) {
			rank = out[i-1].Rank
		}
		out = append(out, Placement{Team: t, Rank: rank})
	}
	for _, t := range unranked {
		out = append(out, Placement{Team: t, Rank: model.UnrankedSentinel})
	}
	return out
}

func sameKeys(a, b model.Team) bool {
	return a.StagesUnlocked == b.StagesUnlocked && a.TotalElapsed == b.TotalElapsed
}

// Snapshot is an immutable ranking of every team.
type Snapshot struct {
	ComputedAt time.Time

	global   []model.LeaderboardEntry
	regional map[model.Region][]model.LeaderboardEntry
	byName   map[string]model.LeaderboardEntry
}

// Compute builds a full snapshot: one global pass plus one pass per region
// over the same records.
func Compute(teams []model.Team, now time.Time) *Snapshot {
	s := &Snapshot{
		ComputedAt: now,
		regional:   make(map[model.Region][]model.LeaderboardEntry),
		byName:     make(map[string]model.LeaderboardEntry, len(teams)),
	}

	global := Order(teams)
	for _, p := range global {
		s.byName[p.Team.Name] = model.LeaderboardEntry{
			TeamID:         p.Team.ID,
			TeamName:       p.Team.Name,
			Region:         p.Team.Region,
			StagesUnlocked: p.Team.StagesUnlocked,
			TotalElapsed:   p.Team.TotalElapsed,
			GlobalRank:     p.Rank,
			UpdatedAt:      now,
		}
	}

	byRegion := make(map[model.Region][]model.Team)
	for _, t := range teams {
		byRegion[t.Region] = append(byRegion[t.Region], t)
	}
	regional := make(map[model.Region][]Placement, len(byRegion))
	for r, members := range byRegion {
		placed := Order(members)
		regional[r] = placed
		for _, p := range placed {
			e := s.byName[p.Team.Name]
			e.RegionalRank = p.Rank
			s.byName[p.Team.Name] = e
		}
	}

	// Ordered views are materialized once entries carry both ranks.
	s.global = make([]model.LeaderboardEntry, 0, len(global))
	for _, p := range global {
		s.global = append(s.global, s.byName[p.Team.Name])
	}
	for r, placed := range regional {
		view := make([]model.LeaderboardEntry, 0, len(placed))
		for _, p := range placed {
			view = append(view, s.byName[p.Team.Name])
		}
		s.regional[r] = view
	}
	return s
}

// Global returns up to limit entries in global order; limit < 1 means all.
func (s *Snapshot) Global(limit int) []model.LeaderboardEntry {
	return head(s.global, limit)
}

// Region returns up to limit entries of r in regional order.
func (s *Snapshot) Region(r model.Region, limit int) []model.LeaderboardEntry {
	return head(s.regional[r], limit)
}

// Entry returns the ranking of one team.
func (s *Snapshot) Entry(name string) (model.LeaderboardEntry, bool) {
	e, ok := s.byName[name]
	return e, ok
}

// Entries returns every entry in global order.
func (s *Snapshot) Entries() []model.LeaderboardEntry {
	return head(s.global, 0)
}

// Len returns the number of ranked teams.
func (s *Snapshot) Len() int {
	return len(s.global)
}

func head(entries []model.LeaderboardEntry, limit int) []model.LeaderboardEntry {
	n := len(entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.LeaderboardEntry, n)
	copy(out, entries[:n])
	return out
}
