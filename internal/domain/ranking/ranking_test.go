package ranking

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/okian/stagegate/internal/domain/model"
	"github.com/okian/stagegate/pkg/clock"
	"github.com/okian/stagegate/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func team(name string, region model.Region, stages int, total time.Duration) model.Team {
	return model.Team{ID: "id-" + name, Name: name, Region: region, StagesUnlocked: stages, TotalElapsed: total}
}

func names(entries []model.LeaderboardEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.TeamName
	}
	return out
}

func ranks(entries []model.LeaderboardEntry, global bool) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		if global {
			out[i] = e.GlobalRank
		} else {
			out[i] = e.RegionalRank
		}
	}
	return out
}

func TestCompute(t *testing.T) {
	now := time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)

	Convey("Given teams with different progress", t, func() {
		teams := []model.Team{
			team("C", model.RegionAPAC, 3, 90*time.Minute),
			team("A", model.RegionEMEA, 3, 100*time.Minute),
			team("B", model.RegionEMEA, 2, 10*time.Minute),
		}

		Convey("When computing", func() {
			snap := Compute(teams, now)

			Convey("Then more stages rank first and less time breaks ties", func() {
				So(names(snap.Global(0)), ShouldResemble, []string{"C", "A", "B"})
				So(ranks(snap.Global(0), true), ShouldResemble, []int{1, 2, 3})
			})

			Convey("Then regional ranks are computed within each region", func() {
				So(names(snap.Region(model.RegionEMEA, 0)), ShouldResemble, []string{"A", "B"})
				So(ranks(snap.Region(model.RegionEMEA, 0), false), ShouldResemble, []int{1, 2})
				a, ok := snap.Entry("A")
				So(ok, ShouldBeTrue)
				So(a.GlobalRank, ShouldEqual, 2)
				So(a.RegionalRank, ShouldEqual, 1)
				So(a.UpdatedAt, ShouldEqual, now)
				c, _ := snap.Entry("C")
				So(c.RegionalRank, ShouldEqual, 1)
			})

			Convey("Then an empty region yields no entries", func() {
				So(snap.Region(model.RegionAMRS, 10), ShouldBeEmpty)
			})

			Convey("Then the limit caps the view", func() {
				So(names(snap.Global(2)), ShouldResemble, []string{"C", "A"})
				So(snap.Len(), ShouldEqual, 3)
			})
		})
	})

	Convey("Given teams without progress", t, func() {
		teams := []model.Team{
			team("zeta", model.RegionAMRS, 0, 0),
			team("alpha", model.RegionAMRS, 0, 0),
			team("mid", model.RegionAMRS, 1, time.Minute),
		}

		Convey("When computing", func() {
			snap := Compute(teams, now)

			Convey("Then they share the sentinel rank in name order after ranked teams", func() {
				So(names(snap.Global(0)), ShouldResemble, []string{"mid", "alpha", "zeta"})
				So(ranks(snap.Global(0), true), ShouldResemble, []int{1, model.UnrankedSentinel, model.UnrankedSentinel})
				So(ranks(snap.Region(model.RegionAMRS, 0), false), ShouldResemble, []int{1, model.UnrankedSentinel, model.UnrankedSentinel})
				z, _ := snap.Entry("zeta")
				So(z.Unranked(), ShouldBeTrue)
			})
		})
	})

	Convey("Given exact ties on stages and time", t, func() {
		teams := []model.Team{
			team("b", model.RegionEMEA, 2, 30*time.Minute),
			team("a", model.RegionEMEA, 2, 30*time.Minute),
			team("c", model.RegionEMEA, 2, 31*time.Minute),
		}

		Convey("When computing", func() {
			snap := Compute(teams, now)

			Convey("Then tied teams share a rank and the next one skips", func() {
				So(names(snap.Global(0)), ShouldResemble, []string{"a", "b", "c"})
				So(ranks(snap.Global(0), true), ShouldResemble, []int{1, 1, 3})
			})
		})
	})

	Convey("Given the same teams in any order", t, func() {
		base := []model.Team{
			team("a", model.RegionEMEA, 4, 200*time.Minute),
			team("b", model.RegionAPAC, 4, 200*time.Minute),
			team("c", model.RegionAMRS, 1, 5*time.Minute),
			team("d", model.RegionEMEA, 0, 0),
			team("e", model.RegionAPAC, 2, 50*time.Minute),
		}
		want := Compute(base, now).Entries()

		Convey("Then the result is identical", func() {
			rng := rand.New(rand.NewSource(3))
			for i := 0; i < 20; i++ {
				shuffled := append([]model.Team(nil), base...)
				rng.Shuffle(len(shuffled), func(x, y int) { shuffled[x], shuffled[y] = shuffled[y], shuffled[x] })
				So(Compute(shuffled, now).Entries(), ShouldResemble, want)
			}
		})
	})

	Convey("Given no teams", t, func() {
		snap := Compute(nil, now)

		Convey("Then every view is empty", func() {
			So(snap.Global(5), ShouldBeEmpty)
			So(snap.Len(), ShouldEqual, 0)
			_, ok := snap.Entry("x")
			So(ok, ShouldBeFalse)
		})
	})
}

type fakeStore struct {
	mu       sync.Mutex
	teams    []model.Team
	written  []model.LeaderboardEntry
	listErr  error
	writeErr error
}

func (f *fakeStore) ListTeams(_ context.Context, _ model.Region) ([]model.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Team(nil), f.teams...), nil
}

func (f *fakeStore) ReplaceLeaderboard(_ context.Context, entries []model.LeaderboardEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = entries
	return nil
}

func TestRecomputer(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC))

	Convey("Given a recomputer over a store", t, func() {
		store := &fakeStore{teams: []model.Team{
			team("A", model.RegionEMEA, 1, time.Minute),
			team("B", model.RegionEMEA, 0, 0),
		}}
		r := NewRecomputer(store, WithClock(clk))

		Convey("Then the initial snapshot is empty", func() {
			So(r.Current().Len(), ShouldEqual, 0)
			So(r.Passes(), ShouldEqual, 0)
		})

		Convey("When recomputing", func() {
			snap, err := r.Recompute(ctx, "test")

			Convey("Then the snapshot is published and persisted", func() {
				So(err, ShouldBeNil)
				So(r.Current(), ShouldEqual, snap)
				So(r.Passes(), ShouldEqual, 1)
				So(names(store.written), ShouldResemble, []string{"A", "B"})
				So(store.written[0].UpdatedAt, ShouldEqual, clk.Now())
			})
		})

		Convey("When the store cannot be read", func() {
			store.listErr = errors.New("down")
			_, err := r.Recompute(ctx, "test")

			Convey("Then the previous snapshot stays", func() {
				So(err, ShouldNotBeNil)
				So(r.Passes(), ShouldEqual, 0)
			})
		})

		Convey("When persisting fails", func() {
			store.writeErr = errors.New("disk full")
			snap, err := r.Recompute(ctx, "test")

			Convey("Then reads still see the fresh ranking", func() {
				So(err, ShouldNotBeNil)
				So(snap, ShouldNotBeNil)
				So(r.Current().Len(), ShouldEqual, 2)
			})
		})

		Convey("When many passes run concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = r.Recompute(ctx, "concurrent")
				}()
			}
			wg.Wait()

			Convey("Then every pass completes", func() {
				So(r.Passes(), ShouldEqual, 8)
				So(r.Current().Len(), ShouldEqual, 2)
			})
		})

		Convey("When running periodically", func() {
			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				r.Run(runCtx, 5*time.Millisecond)
				close(done)
			}()
			deadline := time.Now().Add(2 * time.Second)
			for r.Passes() == 0 && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
			cancel()
			<-done

			Convey("Then at least one pass ran", func() {
				So(r.Passes(), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the interval is not positive", func() {
			r.Run(ctx, 0)

			Convey("Then Run returns without a pass", func() {
				So(r.Passes(), ShouldEqual, 0)
			})
		})
	})
}
