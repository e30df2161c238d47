package model

import "time"

// UnrankedSentinel is the rank given to every team without progress.
const UnrankedSentinel = 999

// LeaderboardEntry is the derived, recomputable ranking of one team.
type LeaderboardEntry struct {
	TeamID         string
	TeamName       string
	Region         Region
	StagesUnlocked int
	TotalElapsed   time.Duration
	GlobalRank     int
	RegionalRank   int
	UpdatedAt      time.Time
}

// Unranked reports whether the entry carries the sentinel rank.
func (e LeaderboardEntry) Unranked() bool {
	return e.StagesUnlocked == 0
}
