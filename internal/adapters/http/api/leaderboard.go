package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	service "github.com/okian/stagegate/internal/app"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, region string, limit int) ([]service.Row, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

type leaderboardRow struct {
	Rank           string `json:"rank"`
	TeamName       string `json:"team_name"`
	Region         string `json:"region"`
	StagesUnlocked int    `json:"stages_unlocked"`
	TotalTime      string `json:"total_time"`
}

// HandleGlobal handles GET /leaderboard/global?limit=N. The limit is
// optional and capped by the service.
func (h *LeaderboardHandler) HandleGlobal(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "api.leaderboard_global", "")
}

// HandleRegional handles GET /leaderboard/regional/{region}?limit=N.
func (h *LeaderboardHandler) HandleRegional(w http.ResponseWriter, r *http.Request) {
	code := strings.Trim(strings.TrimPrefix(r.URL.Path, "/leaderboard/regional/"), "/")
	if code == "" {
		http.NotFound(w, r)
		return
	}
	h.serve(w, r, "api.leaderboard_regional", code)
}

func (h *LeaderboardHandler) serve(w http.ResponseWriter, r *http.Request, op, region string) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	rows, err := h.deps.Leaderboard(r.Context(), region, limit)
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	out := make([]leaderboardRow, len(rows))
	for i, row := range rows {
		out[i] = leaderboardRow{
			Rank:           row.Rank,
			TeamName:       row.TeamName,
			Region:         string(row.Region),
			StagesUnlocked: row.StagesUnlocked,
			TotalTime:      row.TotalTime,
		}
	}
	writeJSON(w, http.StatusOK, out)
}
