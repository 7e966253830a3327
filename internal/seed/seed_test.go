package seed

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hunterhub/hunter-ranking/internal/adapters/http/api"
	"github.com/hunterhub/hunter-ranking/internal/adapters/kv"
	"github.com/hunterhub/hunter-ranking/internal/adapters/repository"
	"github.com/hunterhub/hunter-ranking/internal/domain/model"
	"github.com/hunterhub/hunter-ranking/internal/domain/types"
	"github.com/hunterhub/hunter-ranking/internal/history"
	"github.com/hunterhub/hunter-ranking/internal/identity"
	"github.com/hunterhub/hunter-ranking/internal/ranking/cloud"
	"github.com/hunterhub/hunter-ranking/internal/ranking/hybrid"
	"github.com/hunterhub/hunter-ranking/internal/ranking/local"
	. "github.com/smartystreets/goconvey/convey"
)

func newRankingServer() *httptest.Server {
	store := kv.NewMemory()
	ident := identity.NewHeaderProvider(store)
	repo := repository.NewMemoryStore()
	rank := hybrid.New(local.New(store, ident), cloud.New(repo, ident), ident)

	r := api.NewRouter([]string{"*"})
	api.NewServer(api.Dependencies{
		Rankings:  rank,
		Histories: history.New(repo, store, ident),
		Identity:  ident,
	}).Register(context.Background(), r)
	return httptest.NewServer(r)
}

func TestRun(t *testing.T) {
	Convey("Given a running ranking service", t, func() {
		srv := newRankingServer()
		defer srv.Close()
		out := filepath.Join(t.TempDir(), "plays.json")

		Convey("When a seed run completes", func() {
			stats, err := Run(context.Background(), Config{
				BaseURL:      srv.URL,
				Users:        12,
				PlaysPerUser: 3,
				Limit:        20,
				Workers:      4,
				Timeout:      5 * time.Second,
				OutputFile:   out,
			})

			Convey("Then every play is stored and every ranking verifies", func() {
				So(err, ShouldBeNil)
				So(stats.PlaysGenerated, ShouldEqual, 12*3*3)
				So(stats.PlaysStored, ShouldEqual, stats.PlaysGenerated)
				So(stats.PlaysFailed, ShouldEqual, 0)
				So(stats.GamesVerified, ShouldEqual, 3)
				_, statErr := os.Stat(out)
				So(statErr, ShouldBeNil)
			})
		})
	})

	Convey("Given no service at the URL", t, func() {
		srv := newRankingServer()
		url := srv.URL
		srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := Run(ctx, Config{BaseURL: url, Timeout: 200 * time.Millisecond})
		So(err, ShouldNotBeNil)
	})
}

func TestGenerator(t *testing.T) {
	Convey("Given generated users and plays", t, func() {
		users := generateUsers(8)
		plays := generatePlays(users, []string{model.GameReflex, "memory"}, 4)

		Convey("Then ids are unique and some users are unnamed", func() {
			ids := map[string]bool{}
			unnamed := 0
			for _, u := range users {
				ids[u.ID] = true
				if u.Username == "" {
					unnamed++
				}
			}
			So(ids, ShouldHaveLength, 8)
			So(unnamed, ShouldEqual, 2)
		})

		Convey("Then scores stay in the game's range", func() {
			So(plays, ShouldHaveLength, 8*2*4)
			for _, p := range plays {
				if p.GameType == model.GameReflex {
					So(p.Score, ShouldBeBetweenOrEqual, 150, 900)
				} else {
					So(p.Score, ShouldBeBetweenOrEqual, 1, 10_000)
				}
			}
		})

		Convey("Then the expected best is each user's minimum", func() {
			best := expectedBest([]Play{
				{UserID: "a", GameType: model.GameReflex, Score: 400},
				{UserID: "a", GameType: model.GameReflex, Score: 250},
				{UserID: "a", GameType: model.GameTarget, Score: 9000},
			})
			So(best[model.GameReflex]["a"], ShouldEqual, 250)
			So(best[model.GameTarget]["a"], ShouldEqual, 9000)
		})
	})
}

func TestVerifyRanking(t *testing.T) {
	Convey("Given a served ranking page", t, func() {
		now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
		entry := func(rank int, user string, score int64, at time.Time) types.RankingEntry {
			return types.RankingEntry{Rank: rank, UserID: user, Score: score, Timestamp: at}
		}
		best := map[string]int64{"a": 200, "b": 300}
		caller := &User{ID: "a"}
		data := types.RankingData{
			Rankings: []types.RankingEntry{
				entry(1, "a", 200, now),
				entry(2, "x", 300, now.Add(time.Second)),
				entry(3, "b", 300, now),
			},
			UserRank:     &types.RankingEntry{Rank: 1, UserID: "a", Score: 200},
			TotalPlayers: 3,
		}

		Convey("Then a consistent page passes", func() {
			So(verifyRanking(model.GameReflex, data, best, caller, 2), ShouldBeNil)
		})

		Convey("Then a stale tie-break fails", func() {
			data.Rankings[1], data.Rankings[2] = entry(2, "b", 300, now), entry(3, "x", 300, now.Add(time.Second))
			So(errors.Is(verifyRanking(model.GameReflex, data, best, caller, 2), ErrVerification), ShouldBeTrue)
		})

		Convey("Then a duplicated user fails", func() {
			data.Rankings[2] = entry(3, "a", 300, now)
			So(errors.Is(verifyRanking(model.GameReflex, data, best, caller, 2), ErrVerification), ShouldBeTrue)
		})

		Convey("Then a non-best score fails", func() {
			best["b"] = 250
			So(errors.Is(verifyRanking(model.GameReflex, data, best, caller, 2), ErrVerification), ShouldBeTrue)
		})

		Convey("Then a missing userRank fails", func() {
			data.UserRank = nil
			So(errors.Is(verifyRanking(model.GameReflex, data, best, caller, 2), ErrVerification), ShouldBeTrue)
		})
	})
}
