package service_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	service "github.com/okian/stagegate/internal/app"
	"github.com/okian/stagegate/internal/adapters/credential"
	"github.com/okian/stagegate/internal/adapters/repository"
	"github.com/okian/stagegate/internal/domain/progression"
	"github.com/okian/stagegate/internal/seeding"
	"github.com/okian/stagegate/pkg/clock"
)

// eventually polls cond until it holds or the deadline passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service with async ranking over SQLite", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, err := repository.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "stagegate.db"))
		So(err, ShouldBeNil)
		defer store.Close()

		clk := clock.NewManual(t0)
		svc := service.New(store, credential.NewBcrypt(credential.WithCost(bcrypt.MinCost)),
			service.WithClock(clk),
			service.WithAsyncRanking(16, 2),
			service.WithSeed(seeding.Options{Challenges: true, Schedule: seeding.DefaultSchedule()}),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When many teams register and submit concurrently", func() {
			const teams = 12
			var wg sync.WaitGroup
			for i := 0; i < teams; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					name := fmt.Sprintf("team-%02d", i)
					if _, err := svc.CreateTeam(ctx, name, "pw", "EMEA"); err != nil {
						t.Error(err)
						return
					}
					if i%2 == 0 {
						if _, err := svc.Submit(ctx, name, "pw", tok(2, "1", "2", "3")); err != nil {
							t.Error(err)
						}
					}
				}(i)
			}
			wg.Wait()

			Convey("Then the published leaderboard converges on every write", func() {
				So(eventually(func() bool {
					rows, err := svc.Leaderboard(ctx, "EMEA", 0)
					if err != nil || len(rows) != teams {
						return false
					}
					ranked := 0
					for _, r := range rows {
						if r.Rank != service.TiedLast {
							ranked++
						}
					}
					return ranked == teams/2
				}), ShouldBeTrue)
			})

			Convey("Then the stored records stay consistent", func() {
				all, err := store.ListTeams(ctx, "")
				So(err, ShouldBeNil)
				So(all, ShouldHaveLength, teams)
				for _, tm := range all {
					So(progression.Consistent(&tm), ShouldBeNil)
				}
			})

			Convey("Then stats expose the rank pipeline", func() {
				stats := svc.GetStats()
				So(stats["asyncRanking"], ShouldEqual, true)
				So(stats, ShouldContainKey, "queueLength")
				So(stats, ShouldContainKey, "pendingPasses")
			})
		})

		Convey("When the same team submits concurrently", func() {
			_, err := svc.CreateTeam(ctx, "racer", "pw", "EMEA")
			So(err, ShouldBeNil)
			clk.Advance(time.Minute)

			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = svc.Submit(ctx, "racer", "pw", tok(2, "1", "2", "3"))
				}()
			}
			wg.Wait()

			Convey("Then the stage is recorded exactly once", func() {
				team, err := store.GetTeam(ctx, "racer")
				So(err, ShouldBeNil)
				So(team.StagesUnlocked, ShouldEqual, 1)
				So(team.StageElapsed[1], ShouldEqual, time.Minute)
				So(team.TotalElapsed, ShouldEqual, time.Minute)
			})
		})
	})
}
