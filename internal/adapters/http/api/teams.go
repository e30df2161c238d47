package api

import (
	"context"
	"net/http"
	"time"

	service "github.com/okian/stagegate/internal/app"
)

// TeamDependencies defines the team account operations.
type TeamDependencies interface {
	CreateTeam(ctx context.Context, name, secret, region string) (service.Summary, error)
	Login(ctx context.Context, name, secret string) (service.Summary, error)
	StartTimer(ctx context.Context, name, secret string) (service.TimerResult, error)
}

// TeamsHandler handles registration, login and timer start.
type TeamsHandler struct {
	deps TeamDependencies
}

// NewTeamsHandler creates a new teams handler.
func NewTeamsHandler(deps TeamDependencies) *TeamsHandler {
	return &TeamsHandler{deps: deps}
}

type createTeamRequest struct {
	TeamName string `json:"team_name"`
	Password string `json:"password"`
	Region   string `json:"region"`
}

type credentialsRequest struct {
	TeamName string `json:"team_name"`
	Password string `json:"password"`
}

type timerResponse struct {
	AlreadyStarted bool    `json:"already_started"`
	StartedAt      string  `json:"started_at"`
	PDFURL         *string `json:"pdf_url"`
}

// HandleCreate handles POST /teams/create.
func (h *TeamsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_team"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req createTeamRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	sum, err := h.deps.CreateTeam(r.Context(), req.TeamName, req.Password, req.Region)
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTeamSummary(sum))
}

// HandleLogin handles POST /teams/login.
func (h *TeamsHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.login"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req credentialsRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	sum, err := h.deps.Login(r.Context(), req.TeamName, req.Password)
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, newTeamSummary(sum))
}

// HandleStartTimer handles POST /teams/start-timer.
func (h *TeamsHandler) HandleStartTimer(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_timer"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req credentialsRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	res, err := h.deps.StartTimer(r.Context(), req.TeamName, req.Password)
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	resp := timerResponse{
		AlreadyStarted: res.AlreadyStarted,
		StartedAt:      res.StartedAt.UTC().Format(time.RFC3339),
	}
	if res.ArtifactURL != "" {
		resp.PDFURL = &res.ArtifactURL
	}
	writeJSON(w, http.StatusOK, resp)
}
