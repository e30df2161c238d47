package clock_test

import (
	"testing"
	"time"

	"github.com/okian/stagegate/pkg/clock"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManualClock(t *testing.T) {
	Convey("Given a manual clock", t, func() {
		start := time.Date(2025, 10, 10, 8, 0, 0, 0, time.FixedZone("CEST", 2*3600))
		c := clock.NewManual(start)

		Convey("Then it reports the start instant in UTC", func() {
			So(c.Now().Equal(start), ShouldBeTrue)
			So(c.Now().Location(), ShouldEqual, time.UTC)
		})

		Convey("When advanced", func() {
			c.Advance(90 * time.Minute)

			Convey("Then it moves by exactly that amount", func() {
				So(c.Now().Sub(start), ShouldEqual, 90*time.Minute)
			})
		})
	})

	Convey("Given the system clock", t, func() {
		Convey("Then it returns UTC", func() {
			So(clock.System{}.Now().Location(), ShouldEqual, time.UTC)
		})
	})
}
