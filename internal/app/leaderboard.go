package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/stagegate/internal/domain/model"
)

// TiedLast is shown instead of the sentinel rank.
const TiedLast = "T"

// Row is one leaderboard line as displayed.
type Row struct {
	Rank           string
	TeamName       string
	Region         model.Region
	StagesUnlocked int
	TotalTime      string
}

// Leaderboard returns the global ranking, or the ranking of regionCode
// when it is set, from the latest snapshot. limit is capped at the
// configured maximum; limit < 1 means the maximum.
func (s *Service) Leaderboard(_ context.Context, regionCode string, limit int) ([]Row, error) {
	if limit < 1 || limit > s.leaderboardLimit {
		limit = s.leaderboardLimit
	}
	snap := s.ranker.Current()

	if regionCode == "" {
		return rows(snap.Global(limit), false), nil
	}
	r, err := model.ParseRegion(regionCode)
	if err != nil {
		return nil, err
	}
	return rows(snap.Region(r, limit), true), nil
}

func rows(entries []model.LeaderboardEntry, regional bool) []Row {
	out := make([]Row, len(entries))
	for i, e := range entries {
		rank := e.GlobalRank
		if regional {
			rank = e.RegionalRank
		}
		out[i] = Row{
			Rank:           DisplayRank(rank),
			TeamName:       e.TeamName,
			Region:         e.Region,
			StagesUnlocked: e.StagesUnlocked,
			TotalTime:      DisplayTime(e.StagesUnlocked, e.TotalElapsed),
		}
	}
	return out
}

// DisplayRank renders a rank, "T" for teams without progress.
func DisplayRank(rank int) string {
	if rank == model.UnrankedSentinel {
		return TiedLast
	}
	return strconv.Itoa(rank)
}

// DisplayTime renders a total as HH:MM:SS, or "-" without progress.
func DisplayTime(stages int, d time.Duration) string {
	if stages == 0 {
		return "-"
	}
	return FormatDuration(d)
}

// FormatDuration renders d as HH:MM:SS, truncating to whole seconds.
// Hours are not wrapped at 24.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
