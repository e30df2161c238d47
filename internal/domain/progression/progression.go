// Package progression is the per-team stage state machine.
//
// States are Team.StagesUnlocked in 0..model.GatedStages plus the terminal
// finalized flag. Functions here mutate the record they are given and never
// touch storage; callers run them inside the store's atomic update so a
// failed step leaves nothing behind.
package progression

import (
	"fmt"
	"time"

	"github.com/okian/stagegate/internal/domain/matcher"
	"github.com/okian/stagegate/internal/domain/model"
	"github.com/okian/stagegate/internal/domain/token"
)

// Outcome describes what a submission did.
type Outcome struct {
	Stage         int           // decoded stage
	Target        int           // stage being unlocked (Stage - 1)
	CorrectCount  int           // 0..3
	AllCorrect    bool          // CorrectCount == 3, first time or replay
	Advanced      bool          // state changed; ranks must be recomputed
	StagesBefore  int           // progress before the submission
	StagesAfter   int           // progress after the submission
	Elapsed       time.Duration // recorded stage time when Advanced
	Artifact      string        // artifact released by the stage, when AllCorrect
	ReplayedStage bool          // AllCorrect on an already unlocked stage
}

// Advance applies a decoded token to team.
//
// The token for stage N carries the answers to stage N-1's problems, held
// by def (the stage N definition), and opens stage N-1 in progress terms.
// Elapsed time is measured from the team's anchor at every unlock, so later
// stage values are cumulative snapshots rather than per-stage deltas.
func Advance(team *model.Team, def model.Challenge, tok token.Token, raw string, now time.Time) (Outcome, error) {
	if def.Stage != tok.Stage {
		return Outcome{}, fmt.Errorf("%w: definition for stage %d used for token stage %d", model.ErrUnknownStage, def.Stage, tok.Stage)
	}
	team.Normalize()

	target := tok.Stage - 1
	out := Outcome{
		Stage:        tok.Stage,
		Target:       target,
		StagesBefore: team.StagesUnlocked,
		StagesAfter:  team.StagesUnlocked,
	}
	if target > team.StagesUnlocked+1 {
		return out, fmt.Errorf("%w: stage %d requested with %d unlocked", model.ErrSkipAhead, tok.Stage, team.StagesUnlocked)
	}

	team.LastSubmittedToken = raw

	out.CorrectCount = matcher.Count(tok.Values, def)
	if !matcher.AllCorrect(out.CorrectCount) {
		return out, nil
	}
	out.AllCorrect = true
	out.Artifact = def.Artifact

	if target != team.StagesUnlocked+1 || target > model.GatedStages {
		out.ReplayedStage = true
		return out, nil
	}

	elapsed := now.Sub(team.Anchor())
	if elapsed < 0 {
		elapsed = 0
	}
	team.StageElapsed[target] = elapsed
	team.StagesUnlocked = target
	team.TotalElapsed = team.SumGated()

	out.Advanced = true
	out.Elapsed = elapsed
	out.StagesAfter = target
	return out, nil
}

// StartTimer sets the timer anchor once. It reports false when the timer
// was already running.
func StartTimer(team *model.Team, now time.Time) bool {
	if team.TimerStartedAt != nil {
		return false
	}
	t := now.UTC()
	team.TimerStartedAt = &t
	return true
}

// FinalizeOutcome describes a final submission.
type FinalizeOutcome struct {
	First   bool          // no previous final submission existed
	Elapsed time.Duration // stage 5 time, recorded on the first call only
}

// Finalize records the final artifact URL. It requires every gated stage
// to be unlocked. Later calls overwrite the URL; the stage 5 time is kept
// from the first call.
func Finalize(team *model.Team, url string, now time.Time) (FinalizeOutcome, error) {
	team.Normalize()
	if team.StagesUnlocked < model.GatedStages {
		return FinalizeOutcome{}, fmt.Errorf("%w: %d of %d unlocked", model.ErrStagesIncomplete, team.StagesUnlocked, model.GatedStages)
	}

	out := FinalizeOutcome{First: !team.Finalized()}
	if d, ok := team.Elapsed(model.FinalStage); ok {
		out.Elapsed = d
	} else {
		d := now.Sub(team.Anchor())
		if d < 0 {
			d = 0
		}
		team.StageElapsed[model.FinalStage] = d
		out.Elapsed = d
	}

	u := url
	at := now.UTC()
	team.FinalSubmissionURL = &u
	team.FinalSubmittedAt = &at
	return out, nil
}

// Consistent checks the record invariants: progress in range, elapsed
// entries only for unlocked gated stages, and the total equal to their sum.
func Consistent(team *model.Team) error {
	if team.StagesUnlocked < 0 || team.StagesUnlocked > model.GatedStages {
		return fmt.Errorf("stages unlocked %d out of range", team.StagesUnlocked)
	}
	for stage := model.FirstStage; stage <= model.GatedStages; stage++ {
		_, set := team.StageElapsed[stage]
		if set != (stage <= team.StagesUnlocked) {
			return fmt.Errorf("stage %d elapsed presence does not match %d unlocked", stage, team.StagesUnlocked)
		}
	}
	if _, set := team.StageElapsed[model.FinalStage]; set && team.StagesUnlocked < model.GatedStages {
		return fmt.Errorf("final stage time recorded before gated stages")
	}
	if sum := team.SumGated(); team.TotalElapsed != sum {
		return fmt.Errorf("total elapsed %s does not equal stage sum %s", team.TotalElapsed, sum)
	}
	return nil
}
