package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/stagegate/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestParseRegion(t *testing.T) {
	convey.Convey("Given region codes", t, func() {
		convey.Convey("When the code is in the closed set", func() {
			for _, code := range []string{"EMEA", "AMRS", "APAC", " APAC "} {
				r, err := model.ParseRegion(code)
				convey.So(err, convey.ShouldBeNil)
				convey.So(r.Valid(), convey.ShouldBeTrue)
			}
		})

		convey.Convey("When the code is unknown or differently cased", func() {
			for _, code := range []string{"", "emea", "LATAM"} {
				_, err := model.ParseRegion(code)
				convey.So(errors.Is(err, model.ErrInvalidRegion), convey.ShouldBeTrue)
			}
		})
	})
}

func TestRegionSchedule(t *testing.T) {
	convey.Convey("Given a schedule with one region", t, func() {
		at := time.Date(2025, 10, 10, 8, 0, 0, 0, time.UTC)
		s := model.RegionSchedule{model.RegionEMEA: at}

		got, ok := s.OpensAt(model.RegionEMEA)
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(got, convey.ShouldEqual, at)

		_, ok = s.OpensAt(model.RegionAPAC)
		convey.So(ok, convey.ShouldBeFalse)

		var empty model.RegionSchedule
		_, ok = empty.OpensAt(model.RegionEMEA)
		convey.So(ok, convey.ShouldBeFalse)
	})
}

func TestTeam(t *testing.T) {
	convey.Convey("Given a team record", t, func() {
		reg := time.Date(2025, 10, 10, 8, 0, 0, 0, time.UTC)
		team := model.Team{Name: "alpha", Region: model.RegionEMEA, RegisteredAt: reg}

		convey.Convey("Then the anchor is registration until the timer starts", func() {
			convey.So(team.Anchor(), convey.ShouldEqual, reg)
			started := reg.Add(time.Hour)
			team.TimerStartedAt = &started
			convey.So(team.Anchor(), convey.ShouldEqual, started)
		})

		convey.Convey("Then the gated sum ignores the final stage", func() {
			team.StageElapsed = map[int]time.Duration{1: time.Minute, 2: 3 * time.Minute, 5: time.Hour}
			convey.So(team.SumGated(), convey.ShouldEqual, 4*time.Minute)
		})

		convey.Convey("When normalizing a legacy record", func() {
			team.StagesUnlocked = 7
			team.TotalElapsed = time.Hour
			team.Normalize()

			convey.So(team.StageElapsed, convey.ShouldNotBeNil)
			convey.So(team.StagesUnlocked, convey.ShouldEqual, model.GatedStages)
			convey.So(team.TotalElapsed, convey.ShouldEqual, 0)
		})

		convey.Convey("When cloning", func() {
			url := "https://example.org/repo"
			team.FinalSubmissionURL = &url
			team.StageElapsed = map[int]time.Duration{1: time.Minute}
			c := team.Clone()
			c.StageElapsed[2] = time.Hour
			*c.FinalSubmissionURL = "changed"

			convey.Convey("Then the original is untouched", func() {
				_, ok := team.Elapsed(2)
				convey.So(ok, convey.ShouldBeFalse)
				convey.So(*team.FinalSubmissionURL, convey.ShouldEqual, url)
				convey.So(team.Finalized(), convey.ShouldBeTrue)
			})
		})
	})
}

func TestChallengeValidate(t *testing.T) {
	convey.Convey("Given challenge definitions", t, func() {
		convey.So(model.Challenge{Stage: 1, Artifact: "stage1.pdf"}.Validate(), convey.ShouldBeNil)
		convey.So(model.Challenge{Stage: 2, Answers: []string{"1", "2", "3"}, Artifact: "stage2.pdf"}.Validate(), convey.ShouldBeNil)

		convey.So(errors.Is(model.Challenge{Stage: 0, Artifact: "x"}.Validate(), model.ErrInvalidInput), convey.ShouldBeTrue)
		convey.So(errors.Is(model.Challenge{Stage: 6, Artifact: "x"}.Validate(), model.ErrInvalidInput), convey.ShouldBeTrue)
		convey.So(errors.Is(model.Challenge{Stage: 2, Answers: []string{"1"}, Artifact: "x"}.Validate(), model.ErrInvalidInput), convey.ShouldBeTrue)
		convey.So(errors.Is(model.Challenge{Stage: 2}.Validate(), model.ErrInvalidInput), convey.ShouldBeTrue)

		convey.So(model.Challenge{Stage: 1}.HasAnswers(), convey.ShouldBeFalse)
	})
}
