// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	service "github.com/okian/stagegate/internal/app"
	"github.com/okian/stagegate/internal/domain/region"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	TeamDependencies
	ChallengeDependencies
	LeaderboardDependencies
	StatsProvider
}

// Server wires HTTP routes for the competition API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	teamsHandler       *TeamsHandler
	challengesHandler  *ChallengesHandler
	leaderboardHandler *LeaderboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		teamsHandler:       NewTeamsHandler(deps),
		challengesHandler:  NewChallengesHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
	}
}

// Register attaches all HTTP routes to mux. Token URLs are claimed by the
// catch-all route, so nothing else may register "/".
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/teams/create", MetricsMiddleware(s.teamsHandler.HandleCreate, "teams_create"))
	mux.HandleFunc("/teams/login", MetricsMiddleware(s.teamsHandler.HandleLogin, "teams_login"))
	mux.HandleFunc("/teams/start-timer", MetricsMiddleware(s.teamsHandler.HandleStartTimer, "teams_start_timer"))

	mux.HandleFunc("/api/challenges/validate", MetricsMiddleware(s.challengesHandler.HandleValidate, "challenges_validate"))
	mux.HandleFunc("/api/submit", MetricsMiddleware(s.challengesHandler.HandleFinalSubmit, "final_submit"))
	mux.HandleFunc("/", MetricsMiddleware(s.challengesHandler.HandleTokenURL, "token_url"))

	mux.HandleFunc("/leaderboard/global", MetricsMiddleware(s.leaderboardHandler.HandleGlobal, "leaderboard_global"))
	mux.HandleFunc("/leaderboard/regional/", MetricsMiddleware(s.leaderboardHandler.HandleRegional, "leaderboard_regional"))
}

// teamSummary mirrors the OpenAPI TeamSummary schema.
type teamSummary struct {
	TeamName       string  `json:"team_name"`
	Region         string  `json:"region"`
	StagesUnlocked int     `json:"stages_unlocked"`
	TotalTime      float64 `json:"total_time"` // seconds
	TimerStarted   bool    `json:"timer_started"`
	Finalized      bool    `json:"finalized"`
	ChallengeOpen  bool    `json:"challenge_open"`
	StartTime      *string `json:"start_time"`
}

func newTeamSummary(s service.Summary) teamSummary {
	out := teamSummary{
		TeamName:       s.TeamName,
		Region:         string(s.Region),
		StagesUnlocked: s.StagesUnlocked,
		TotalTime:      s.TotalElapsed.Seconds(),
		TimerStarted:   s.TimerStarted,
		Finalized:      s.Finalized,
		ChallengeOpen:  s.ChallengeOpen,
	}
	if s.OpensAt != nil {
		v := region.FormatUTC(*s.OpensAt)
		out.StartTime = &v
	}
	return out
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, fmt.Errorf("invalid json body: %w", err))
	}
	return nil
}
