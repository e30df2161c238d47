package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/stagegate/internal/adapters/repository"
	"github.com/okian/stagegate/internal/domain/model"
	"github.com/okian/stagegate/internal/domain/progression"
	"github.com/okian/stagegate/internal/domain/region"
	"github.com/okian/stagegate/pkg/logger"
	"github.com/okian/stagegate/pkg/metrics"
)

// Summary is a team's progress as shown after registration or login.
type Summary struct {
	TeamName       string
	Region         model.Region
	StagesUnlocked int
	TotalElapsed   time.Duration
	TimerStarted   bool
	Finalized      bool
	ChallengeOpen  bool
	OpensAt        *time.Time
}

// TimerResult reports a timer start.
type TimerResult struct {
	AlreadyStarted bool
	StartedAt      time.Time
	ArtifactURL    string // stage 1 artifact, empty when stage 1 is not defined
}

// FinalizeResult reports a final submission.
type FinalizeResult struct {
	URL          string
	First        bool
	StageElapsed time.Duration
}

// CreateTeam registers a team with no progress.
func (s *Service) CreateTeam(ctx context.Context, name, secret, regionCode string) (Summary, error) {
	name = strings.TrimSpace(name)
	if name == "" || secret == "" {
		return Summary{}, fmt.Errorf("%w: team name and password are required", model.ErrInvalidInput)
	}
	r, err := model.ParseRegion(regionCode)
	if err != nil {
		return Summary{}, err
	}
	hash, err := s.creds.Hash(secret)
	if err != nil {
		return Summary{}, fmt.Errorf("create team: %w", err)
	}

	team := model.Team{
		ID:           uuid.NewString(),
		Name:         name,
		PasswordHash: hash,
		Region:       r,
		RegisteredAt: s.clock.Now(),
		StageElapsed: make(map[int]time.Duration),
	}
	if err := s.store.CreateTeam(ctx, team); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return Summary{}, fmt.Errorf("%w: %s", model.ErrNameTaken, name)
		}
		return Summary{}, fmt.Errorf("create team: %w", err)
	}

	metrics.RecordTeamRegistered()
	s.logger.Info(ctx, "team registered",
		logger.String("team", team.Name),
		logger.String("region", string(team.Region)),
	)
	s.requestRank(ctx, "team_created", &team)
	return s.summary(ctx, &team), nil
}

// Login checks credentials and returns the team's progress. Unlike the
// other authenticated operations it tells an unknown team apart.
func (s *Service) Login(ctx context.Context, name, secret string) (Summary, error) {
	team, err := s.store.GetTeam(ctx, strings.TrimSpace(name))
	if errors.Is(err, repository.ErrNotFound) {
		return Summary{}, fmt.Errorf("%w: %s", model.ErrNotFound, name)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("login: %w", err)
	}
	if !s.creds.Verify(secret, team.PasswordHash) {
		return Summary{}, model.ErrBadCredential
	}
	return s.summary(ctx, &team), nil
}

// StartTimer starts the team's clock once its region is open.
func (s *Service) StartTimer(ctx context.Context, name, secret string) (TimerResult, error) {
	team, err := s.authenticate(ctx, name, secret)
	if err != nil {
		return TimerResult{}, err
	}

	status, err := s.gate.Check(ctx, team.Region)
	if err != nil {
		return TimerResult{}, fmt.Errorf("region schedule: %w", err)
	}
	if !status.Open {
		return TimerResult{}, fmt.Errorf("%w: %s opens at %s", model.ErrRegionClosed, team.Region, region.FormatUTC(*status.OpensAt))
	}

	var started bool
	team, err = s.store.UpdateTeam(ctx, team.Name, func(t *model.Team) error {
		started = progression.StartTimer(t, s.clock.Now())
		return nil
	})
	if err != nil {
		return TimerResult{}, s.storeErr("start timer", err)
	}

	res := TimerResult{AlreadyStarted: !started, StartedAt: *team.TimerStartedAt}
	if c, err := s.store.GetChallenge(ctx, model.FirstStage); err == nil {
		res.ArtifactURL = s.artifactURL(c.Artifact)
	}
	if started {
		s.logger.Info(ctx, "timer started",
			logger.String("team", team.Name),
			logger.String("region", string(team.Region)),
		)
	}
	return res, nil
}

// Finalize records the final artifact URL of a team with every gated
// stage unlocked. Repeated calls replace the URL.
func (s *Service) Finalize(ctx context.Context, name, secret, url string) (FinalizeResult, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return FinalizeResult{}, fmt.Errorf("%w: submission url is required", model.ErrInvalidInput)
	}
	team, err := s.authenticate(ctx, name, secret)
	if err != nil {
		return FinalizeResult{}, err
	}

	var out progression.FinalizeOutcome
	_, err = s.store.UpdateTeam(ctx, team.Name, func(t *model.Team) error {
		o, err := progression.Finalize(t, url, s.clock.Now())
		out = o
		return err
	})
	if err != nil {
		if errors.Is(err, model.ErrStagesIncomplete) {
			metrics.RecordSubmission(metrics.OutcomeRejected)
			return FinalizeResult{}, err
		}
		return FinalizeResult{}, s.storeErr("finalize", err)
	}

	metrics.RecordSubmission(metrics.OutcomeFinalized)
	if out.First {
		metrics.RecordFinalSubmission()
	}
	s.logger.Info(ctx, "final submission recorded",
		logger.String("team", team.Name),
		logger.Bool("first", out.First),
		logger.Duration("elapsed", out.Elapsed),
	)
	return FinalizeResult{URL: url, First: out.First, StageElapsed: out.Elapsed}, nil
}

// authenticate loads the team and checks its secret. Unknown teams and
// wrong secrets are indistinguishable to the caller.
func (s *Service) authenticate(ctx context.Context, name, secret string) (model.Team, error) {
	team, err := s.store.GetTeam(ctx, strings.TrimSpace(name))
	if errors.Is(err, repository.ErrNotFound) {
		return model.Team{}, model.ErrBadCredential
	}
	if err != nil {
		return model.Team{}, fmt.Errorf("load team: %w", err)
	}
	if !s.creds.Verify(secret, team.PasswordHash) {
		return model.Team{}, model.ErrBadCredential
	}
	return team, nil
}

func (s *Service) storeErr(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return model.ErrBadCredential
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) summary(ctx context.Context, t *model.Team) Summary {
	sum := Summary{
		TeamName:       t.Name,
		Region:         t.Region,
		StagesUnlocked: t.StagesUnlocked,
		TotalElapsed:   t.TotalElapsed,
		TimerStarted:   t.TimerStartedAt != nil,
		Finalized:      t.Finalized(),
		ChallengeOpen:  true,
	}
	status, err := s.gate.Check(ctx, t.Region)
	if err != nil {
		s.logger.Warn(ctx, "region schedule unavailable", logger.Error(err))
		return sum
	}
	sum.ChallengeOpen = status.Open
	sum.OpensAt = status.OpensAt
	return sum
}

func (s *Service) artifactURL(file string) string {
	if file == "" {
		return ""
	}
	return strings.TrimSuffix(s.artifactBaseURL, "/") + "/" + file
}
