package region_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/stagegate/internal/domain/model"
	"github.com/okian/stagegate/internal/domain/region"
	"github.com/okian/stagegate/pkg/clock"
	. "github.com/smartystreets/goconvey/convey"
)

type stubSchedule struct {
	schedule model.RegionSchedule
	err      error
	calls    int
}

func (s *stubSchedule) RegionSchedule(ctx context.Context) (model.RegionSchedule, error) {
	s.calls++
	return s.schedule, s.err
}

func TestCheck(t *testing.T) {
	opens := time.Date(2025, 10, 15, 14, 0, 0, 0, time.UTC)
	schedule := model.RegionSchedule{model.RegionAMRS: opens}

	Convey("Given a region with a configured start", t, func() {
		Convey("When now is before the start", func() {
			st := region.Check(model.RegionAMRS, schedule, opens.Add(-time.Second))
			So(st.Open, ShouldBeFalse)
			So(*st.OpensAt, ShouldEqual, opens)
		})

		Convey("When now equals the start", func() {
			st := region.Check(model.RegionAMRS, schedule, opens)
			So(st.Open, ShouldBeTrue)
			So(*st.OpensAt, ShouldEqual, opens)
		})

		Convey("When the start was given in another zone", func() {
			sgt := time.FixedZone("SGT", 8*3600)
			local := model.RegionSchedule{model.RegionAPAC: time.Date(2025, 10, 15, 8, 0, 0, 0, sgt)}
			st := region.Check(model.RegionAPAC, local, time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC))
			So(st.Open, ShouldBeTrue)
			So(st.OpensAt.Location(), ShouldEqual, time.UTC)
		})
	})

	Convey("Given a region with no configured start", t, func() {
		Convey("Then it is open with no opening instant for any now", func() {
			for _, now := range []time.Time{{}, opens.Add(-24 * time.Hour), opens.Add(24 * time.Hour)} {
				st := region.Check(model.RegionEMEA, schedule, now)
				So(st.Open, ShouldBeTrue)
				So(st.OpensAt, ShouldBeNil)
			}
		})

		Convey("Then a nil schedule is open too", func() {
			st := region.Check(model.RegionEMEA, nil, opens)
			So(st.Open, ShouldBeTrue)
			So(st.OpensAt, ShouldBeNil)
		})
	})
}

func TestGate(t *testing.T) {
	Convey("Given a gate over a schedule source", t, func() {
		opens := time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)
		src := &stubSchedule{schedule: model.RegionSchedule{model.RegionAPAC: opens}}
		clk := clock.NewManual(opens.Add(-time.Minute))
		g := region.NewGate(src, region.WithClock(clk))
		ctx := context.Background()

		Convey("Then it re-evaluates on every call", func() {
			st, err := g.Check(ctx, model.RegionAPAC)
			So(err, ShouldBeNil)
			So(st.Open, ShouldBeFalse)

			clk.Advance(time.Minute)
			st, err = g.Check(ctx, model.RegionAPAC)
			So(err, ShouldBeNil)
			So(st.Open, ShouldBeTrue)
			So(src.calls, ShouldEqual, 2)
		})

		Convey("Then source errors propagate", func() {
			src.err = errors.New("store down")
			_, err := g.Check(ctx, model.RegionAPAC)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given an instant to display", t, func() {
		So(region.FormatUTC(time.Date(2025, 10, 15, 8, 0, 0, 0, time.UTC)), ShouldEqual, "2025-10-15 08:00:00 UTC")
	})
}
