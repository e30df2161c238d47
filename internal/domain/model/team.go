package model

import (
	"maps"
	"time"
)

// Team is the authoritative progress record of one team.
//
// Optional fields are pointers; nil means "not set yet". Stage entries in
// StageElapsed are present only once set and are never overwritten.
type Team struct {
	ID                 string
	Name               string
	PasswordHash       string
	Region             Region
	RegisteredAt       time.Time
	TimerStartedAt     *time.Time
	StagesUnlocked     int
	StageElapsed       map[int]time.Duration
	TotalElapsed       time.Duration
	LastSubmittedToken string
	FinalSubmissionURL *string
	FinalSubmittedAt   *time.Time
}

// Anchor is the instant stage times are measured from.
func (t *Team) Anchor() time.Time {
	if t.TimerStartedAt != nil {
		return *t.TimerStartedAt
	}
	return t.RegisteredAt
}

// Elapsed returns the recorded time for stage, if set.
func (t *Team) Elapsed(stage int) (time.Duration, bool) {
	d, ok := t.StageElapsed[stage]
	return d, ok
}

// SumGated recomputes the total over the gated stages.
func (t *Team) SumGated() time.Duration {
	var total time.Duration
	for stage := FirstStage; stage <= GatedStages; stage++ {
		if d, ok := t.StageElapsed[stage]; ok {
			total += d
		}
	}
	return total
}

// Finalized reports whether a final submission was recorded.
func (t *Team) Finalized() bool {
	return t.FinalSubmissionURL != nil
}

// Normalize fills defaults for records written by older versions.
func (t *Team) Normalize() {
	if t.StageElapsed == nil {
		t.StageElapsed = make(map[int]time.Duration)
	}
	if t.StagesUnlocked < 0 {
		t.StagesUnlocked = 0
	}
	if t.StagesUnlocked > GatedStages {
		t.StagesUnlocked = GatedStages
	}
	t.TotalElapsed = t.SumGated()
}

// Clone returns a deep copy so callers can mutate freely.
func (t Team) Clone() Team {
	c := t
	c.StageElapsed = maps.Clone(t.StageElapsed)
	if c.StageElapsed == nil {
		c.StageElapsed = make(map[int]time.Duration)
	}
	if t.TimerStartedAt != nil {
		v := *t.TimerStartedAt
		c.TimerStartedAt = &v
	}
	if t.FinalSubmissionURL != nil {
		v := *t.FinalSubmissionURL
		c.FinalSubmissionURL = &v
	}
	if t.FinalSubmittedAt != nil {
		v := *t.FinalSubmittedAt
		c.FinalSubmittedAt = &v
	}
	return c
}
