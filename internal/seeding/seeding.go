// Package seeding writes the default stage set, region schedule and
// optional demo teams into a store.
package seeding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/stagegate/internal/adapters/repository"
	"github.com/okian/stagegate/internal/domain/model"
	"github.com/okian/stagegate/pkg/logger"
)

// DemoSecret is the secret of every demo team.
const DemoSecret = "demo123"

// Target is the storage seeding writes to.
type Target interface {
	repository.TeamStore
	repository.ChallengeStore
}

// Hasher hashes demo team secrets.
type Hasher interface {
	Hash(secret string) (string, error)
}

// DefaultChallenges returns the five-stage set. The answers stored on
// stage N are the three results of stage N-1's problems; stage 1 is handed
// out on timer start and has none.
func DefaultChallenges() []model.Challenge {
	return []model.Challenge{
		{Stage: 1, Kind: "dataset", Title: "Dataset Analysis - Fraud Detection Basics", Artifact: "stage1.pdf"},
		{Stage: 2, Kind: "website", Title: "Website Feature - Dashboard Enhancement", Answers: []string{"1", "2", "3"}, Artifact: "stage2.pdf"},
		{Stage: 3, Kind: "dataset", Title: "Dataset Analysis - Advanced Patterns", Answers: []string{"4", "5", "6"}, Artifact: "stage3.pdf"},
		{Stage: 4, Kind: "website", Title: "Website Feature - Fraud Detection Module", Answers: []string{"7", "8", "9"}, Artifact: "stage4.pdf"},
		{Stage: 5, Kind: "accessibility", Title: "Accessibility & Usability - Final Round", Answers: []string{"10", "11", "12"}, Artifact: "stage5.pdf"},
	}
}

// DefaultSchedule returns the default regional opening instants.
func DefaultSchedule() model.RegionSchedule {
	return model.RegionSchedule{
		model.RegionEMEA: time.Date(2025, 10, 10, 8, 0, 0, 0, time.UTC),
		model.RegionAMRS: time.Date(2025, 10, 15, 14, 0, 0, 0, time.UTC),
		model.RegionAPAC: time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC),
	}
}

type demo struct {
	name    string
	region  model.Region
	age     time.Duration
	started bool
	stages  []time.Duration // elapsed per unlocked stage, seconds granularity
	final   string
}

func secs(s ...int) []time.Duration {
	out := make([]time.Duration, len(s))
	for i, v := range s {
		out[i] = time.Duration(v) * time.Second
	}
	return out
}

var demos = []demo{ //nolint:gochecknoglobals // fixed demo data
	{name: "CodeMasters_EMEA", region: model.RegionEMEA, age: 5 * time.Hour, started: true, stages: secs(450, 820, 1200)},
	{name: "FraudBusters_EU", region: model.RegionEMEA, age: 4 * time.Hour, started: true, stages: secs(600, 950)},
	{name: "DataNinjas_London", region: model.RegionEMEA, age: 3 * time.Hour, started: true, stages: secs(720)},
	{name: "NewTeam_EMEA", region: model.RegionEMEA, age: time.Hour},
	{name: "ByteForce_NYC", region: model.RegionAMRS, age: 4*time.Hour + 30*time.Minute, started: true, stages: secs(380, 720, 1050, 1400)},
	{name: "AlgoWarriors_SF", region: model.RegionAMRS, age: 3*time.Hour + 45*time.Minute, started: true, stages: secs(520, 890)},
	{name: "HackSquad_Boston", region: model.RegionAMRS, age: 2 * time.Hour},
	{name: "TechTitans_Mumbai", region: model.RegionAPAC, age: 6 * time.Hour, started: true, stages: secs(420, 750, 1100, 1350, 1600),
		final: "https://bitbucket.org/techtitans/innovation-summit"},
	{name: "CodeSamurai_Chennai", region: model.RegionAPAC, age: 5*time.Hour + 15*time.Minute, started: true, stages: secs(480, 810, 1180)},
	{name: "DevDragons", region: model.RegionAPAC, age: 2*time.Hour + 30*time.Minute, started: true, stages: secs(590)},
}

// DemoTeams builds the sample teams relative to now.
func DemoTeams(h Hasher, now time.Time) ([]model.Team, error) {
	hash, err := h.Hash(DemoSecret)
	if err != nil {
		return nil, fmt.Errorf("hash demo secret: %w", err)
	}
	out := make([]model.Team, 0, len(demos))
	for _, d := range demos {
		t := model.Team{
			ID:           uuid.NewString(),
			Name:         d.name,
			PasswordHash: hash,
			Region:       d.region,
			RegisteredAt: now.Add(-d.age),
			StageElapsed: make(map[int]time.Duration),
		}
		if d.started {
			at := t.RegisteredAt
			t.TimerStartedAt = &at
		}
		for i, el := range d.stages {
			t.StageElapsed[i+1] = el
		}
		t.StagesUnlocked = min(len(d.stages), model.GatedStages)
		if d.final != "" {
			url := d.final
			t.FinalSubmissionURL = &url
			at := t.Anchor().Add(t.StageElapsed[model.FinalStage])
			t.FinalSubmittedAt = &at
		}
		t.Normalize()
		out = append(out, t)
	}
	return out, nil
}

// Options selects what Seed writes.
type Options struct {
	Challenges bool
	Schedule   model.RegionSchedule // nil skips the schedule
	DemoTeams  bool
	Hasher     Hasher
	Now        time.Time
}

// Result counts what Seed wrote.
type Result struct {
	Challenges int
	Regions    int
	Teams      int
	Skipped    int
}

// Seed writes the selected data. Stage definitions and region instants are
// overwritten; demo teams that already exist are left untouched.
func Seed(ctx context.Context, store Target, opts Options) (Result, error) {
	var res Result
	log := logger.Get().Named("seeding")

	if opts.Challenges {
		for _, c := range DefaultChallenges() {
			if err := store.PutChallenge(ctx, c); err != nil {
				return res, fmt.Errorf("seed stage %d: %w", c.Stage, err)
			}
			res.Challenges++
		}
	}

	for _, r := range model.Regions() {
		at, ok := opts.Schedule.OpensAt(r)
		if !ok {
			continue
		}
		if err := store.PutRegionStart(ctx, r, at); err != nil {
			return res, fmt.Errorf("seed region %s: %w", r, err)
		}
		res.Regions++
	}

	if opts.DemoTeams {
		if opts.Hasher == nil {
			return res, errors.New("demo teams need a hasher")
		}
		now := opts.Now
		if now.IsZero() {
			now = time.Now().UTC()
		}
		teams, err := DemoTeams(opts.Hasher, now)
		if err != nil {
			return res, err
		}
		for _, t := range teams {
			err := store.CreateTeam(ctx, t)
			switch {
			case errors.Is(err, repository.ErrAlreadyExists):
				res.Skipped++
			case err != nil:
				return res, fmt.Errorf("seed team %s: %w", t.Name, err)
			default:
				res.Teams++
			}
		}
	}

	log.Info(ctx, "seed complete",
		logger.Int("challenges", res.Challenges),
		logger.Int("regions", res.Regions),
		logger.Int("teams", res.Teams),
		logger.Int("skipped", res.Skipped),
	)
	return res, nil
}
