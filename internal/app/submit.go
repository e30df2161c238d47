package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/stagegate/internal/adapters/repository"
	"github.com/okian/stagegate/internal/domain/model"
	"github.com/okian/stagegate/internal/domain/progression"
	"github.com/okian/stagegate/internal/domain/token"
	"github.com/okian/stagegate/pkg/logger"
	"github.com/okian/stagegate/pkg/metrics"
)

// Response messages shown to teams.
const (
	MessageAllCorrect = "All correct! Stage unlocked."
	messagePartial    = "%d out of %d values correct"
)

// SubmitResult is the outcome of a token submission. Replays of an
// unlocked stage look exactly like the first unlock.
type SubmitResult struct {
	Stage          int
	CorrectCount   int
	Unlocked       bool
	ArtifactURL    string
	Message        string
	StagesUnlocked int
}

// Submit validates raw for the team and advances its progress when all
// values match and the stage is next in line.
func (s *Service) Submit(ctx context.Context, name, secret, raw string) (SubmitResult, error) {
	team, err := s.authenticate(ctx, name, secret)
	if err != nil {
		return SubmitResult{}, err
	}

	tok, err := token.Parse(raw)
	if err != nil {
		metrics.RecordSubmission(metrics.OutcomeRejected)
		return SubmitResult{}, err
	}
	def, err := s.store.GetChallenge(ctx, tok.Stage)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.RecordSubmission(metrics.OutcomeRejected)
		return SubmitResult{}, fmt.Errorf("%w: stage %d", model.ErrUnknownStage, tok.Stage)
	}
	if err != nil {
		return SubmitResult{}, fmt.Errorf("load stage %d: %w", tok.Stage, err)
	}

	var out progression.Outcome
	team, err = s.store.UpdateTeam(ctx, team.Name, func(t *model.Team) error {
		o, err := progression.Advance(t, def, tok, raw, s.clock.Now())
		out = o
		return err
	})
	if err != nil {
		if errors.Is(err, model.ErrSkipAhead) {
			metrics.RecordSubmission(metrics.OutcomeRejected)
			s.logger.Warn(ctx, "skip-ahead submission rejected",
				logger.String("team", name),
				logger.Int("stage", tok.Stage),
				logger.Int("unlocked", out.StagesBefore),
			)
			return SubmitResult{}, err
		}
		return SubmitResult{}, s.storeErr("submit", err)
	}

	res := SubmitResult{
		Stage:          out.Stage,
		CorrectCount:   out.CorrectCount,
		Unlocked:       out.AllCorrect,
		StagesUnlocked: team.StagesUnlocked,
		Message:        fmt.Sprintf(messagePartial, out.CorrectCount, model.AnswerCount),
	}
	if out.AllCorrect {
		res.Message = MessageAllCorrect
		res.ArtifactURL = s.artifactURL(out.Artifact)
	}

	switch {
	case out.Advanced:
		metrics.RecordSubmission(metrics.OutcomeUnlocked)
		metrics.RecordStageUnlock(out.Target)
		s.logger.Info(ctx, "stage unlocked",
			logger.String("team", team.Name),
			logger.String("region", string(team.Region)),
			logger.Int("stage", out.Target),
			logger.Duration("elapsed", out.Elapsed),
		)
		s.requestRank(ctx, "unlock", &team)
	case out.ReplayedStage:
		metrics.RecordSubmission(metrics.OutcomeReplayed)
		s.logger.Debug(ctx, "unlocked stage replayed",
			logger.String("team", team.Name),
			logger.Int("stage", out.Target),
		)
	default:
		metrics.RecordSubmission(metrics.OutcomePartial)
		s.logger.Debug(ctx, "partial submission",
			logger.String("team", team.Name),
			logger.Int("stage", out.Stage),
			logger.Int("correct", out.CorrectCount),
		)
	}
	return res, nil
}
