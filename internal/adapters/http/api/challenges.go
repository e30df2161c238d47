package api

import (
	"context"
	"net/http"
	"strings"

	service "github.com/okian/stagegate/internal/app"
	"github.com/okian/stagegate/internal/domain/token"
)

// ChallengeDependencies defines the submission operations.
type ChallengeDependencies interface {
	Submit(ctx context.Context, name, secret, raw string) (service.SubmitResult, error)
	Finalize(ctx context.Context, name, secret, url string) (service.FinalizeResult, error)
}

// ChallengesHandler handles token validation and the final submission.
type ChallengesHandler struct {
	deps ChallengeDependencies
}

// NewChallengesHandler creates a new challenges handler.
func NewChallengesHandler(deps ChallengeDependencies) *ChallengesHandler {
	return &ChallengesHandler{deps: deps}
}

type validateRequest struct {
	TeamName     string `json:"team_name"`
	Password     string `json:"password"`
	SubmittedURL string `json:"submitted_url"`
}

type validateResponse struct {
	Stage          int     `json:"stage"`
	CorrectCount   int     `json:"correct_count"`
	Unlocked       bool    `json:"unlocked"`
	Message        string  `json:"message"`
	PDFURL         *string `json:"pdf_url"`
	StagesUnlocked int     `json:"stages_unlocked"`
}

type finalSubmitRequest struct {
	TeamName     string `json:"team_name"`
	Password     string `json:"password"`
	BitbucketURL string `json:"bitbucket_url"`
}

type finalSubmitResponse struct {
	Status          string  `json:"status"`
	BitbucketURL    string  `json:"bitbucket_url"`
	FirstSubmission bool    `json:"first_submission"`
	StageTime       float64 `json:"stage_time"` // seconds
}

// HandleValidate handles POST /api/challenges/validate. submitted_url must be
// the bare token; it reaches the decoder byte for byte.
func (h *ChallengesHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	const op = "api.validate"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req validateRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	h.submit(w, r, op, req.TeamName, req.Password, req.SubmittedURL)
}

// HandleTokenURL handles GET /ERFT_stage{N}_p1-..._p2-..._p3-...?team=&pwd=,
// the direct form of HandleValidate. Any other path is not found.
func (h *ChallengesHandler) HandleTokenURL(w http.ResponseWriter, r *http.Request) {
	const op = "api.validate_url"
	raw := strings.TrimPrefix(r.URL.Path, "/")
	if r.Method != http.MethodGet || !token.IsCandidate(raw) {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	team, pwd := q.Get("team"), q.Get("pwd")
	if team == "" || pwd == "" {
		writeServiceError(w, r, op, NewKind(op, ErrAuthRequired))
		return
	}
	h.submit(w, r, op, team, pwd, raw)
}

func (h *ChallengesHandler) submit(w http.ResponseWriter, r *http.Request, op, team, pwd, raw string) {
	res, err := h.deps.Submit(r.Context(), team, pwd, raw)
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	resp := validateResponse{
		Stage:          res.Stage,
		CorrectCount:   res.CorrectCount,
		Unlocked:       res.Unlocked,
		Message:        res.Message,
		StagesUnlocked: res.StagesUnlocked,
	}
	if res.ArtifactURL != "" {
		resp.PDFURL = &res.ArtifactURL
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleFinalSubmit handles POST /api/submit.
func (h *ChallengesHandler) HandleFinalSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.final_submit"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req finalSubmitRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	res, err := h.deps.Finalize(r.Context(), req.TeamName, req.Password, req.BitbucketURL)
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, finalSubmitResponse{
		Status:          "accepted",
		BitbucketURL:    res.URL,
		FirstSubmission: res.First,
		StageTime:       res.StageElapsed.Seconds(),
	})
}
