package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hunterhub/hunter-ranking/internal/adapters/repository"
	"github.com/hunterhub/hunter-ranking/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryStore(t *testing.T) {
	Convey("Given an empty memory store", t, func() {
		ctx := context.Background()
		var store repository.Store = repository.Instrument(repository.NewMemoryStore())
		now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

		Convey("When the same score is created twice", func() {
			rec := model.ScoreRecord{UserID: "u1", GameType: model.GameReflex, Score: 300, Timestamp: now, SessionID: "s1"}
			first, err := store.CreateGameScore(ctx, rec)
			So(err, ShouldBeNil)
			_, err = store.CreateGameScore(ctx, rec)

			Convey("Then the second write is rejected as a duplicate", func() {
				So(first.ID, ShouldEqual, rec.Key())
				So(errors.Is(err, repository.ErrDuplicate), ShouldBeTrue)

				list, err := store.ListGameScores(ctx, model.GameReflex)
				So(err, ShouldBeNil)
				So(len(list), ShouldEqual, 1)
			})
		})

		Convey("When listing by game type", func() {
			_, _ = store.CreateGameScore(ctx, model.ScoreRecord{UserID: "u1", GameType: model.GameReflex, Timestamp: now, SessionID: "a"})
			_, _ = store.CreateGameScore(ctx, model.ScoreRecord{UserID: "u1", GameType: model.GameTarget, Timestamp: now, SessionID: "b"})

			list, err := store.ListGameScores(ctx, model.GameTarget)
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 1)
			So(list[0].GameType, ShouldEqual, model.GameTarget)
		})

		Convey("When a profile is created and updated", func() {
			_, err := store.GetUserProfile(ctx, "u1")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

			p, err := store.CreateUserProfile(ctx, model.UserProfile{
				ID: "p1", UserID: "u1", TotalGamesPlayed: 1, CreatedAt: now, XLinked: true, XDisplayName: "@gon",
			})
			So(err, ShouldBeNil)
			stale := p
			stale.TotalGamesPlayed = 40
			stale.UserID = "someone-else"
			stale.XLinked = false
			stale.XDisplayName = ""
			stale.Username = "gon"
			stale.LastActiveAt = now.Add(time.Hour)
			_, err = store.UpdateUserProfile(ctx, stale)
			So(err, ShouldBeNil)
			_, err = store.UpdateUserProfile(ctx, stale)
			So(err, ShouldBeNil)

			got, err := store.GetUserProfile(ctx, "u1")
			So(err, ShouldBeNil)
			So(got.TotalGamesPlayed, ShouldEqual, 3)
			So(got.CreatedAt, ShouldEqual, now)
			So(got.LastActiveAt, ShouldEqual, now.Add(time.Hour))
			So(got.Username, ShouldEqual, "gon")
			So(got.XLinked, ShouldBeTrue)
			So(got.XDisplayName, ShouldEqual, "@gon")
		})

		Convey("When updating an unknown profile", func() {
			_, err := store.UpdateUserProfile(ctx, model.UserProfile{ID: "nope"})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a store with an injected fault", t, func() {
		ctx := context.Background()
		mem := repository.NewMemoryStore(repository.WithFault(func(op string, n int) error {
			if op == repository.OpCreateGameHistory && n == 2 {
				return repository.ErrUnavailable
			}
			return nil
		}))

		Convey("When the second history write hits the fault", func() {
			base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
			_, err1 := mem.CreateGameHistory(ctx, model.HistoryRecord{UserID: "u", GameType: model.GameReflex, PlayedAt: base})
			_, err2 := mem.CreateGameHistory(ctx, model.HistoryRecord{UserID: "u", GameType: model.GameReflex, PlayedAt: base.Add(time.Second)})
			_, err3 := mem.CreateGameHistory(ctx, model.HistoryRecord{UserID: "u", GameType: model.GameReflex, PlayedAt: base.Add(time.Second)})

			Convey("Then only that call fails and the retry succeeds", func() {
				So(err1, ShouldBeNil)
				So(errors.Is(err2, repository.ErrUnavailable), ShouldBeTrue)
				So(err3, ShouldBeNil)
				So(mem.Calls(repository.OpCreateGameHistory), ShouldEqual, 3)

				rows, err := mem.ListGameHistories(ctx)
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 2)
			})
		})

		Convey("When the hook is cleared", func() {
			mem.SetFault(func(string, int) error { return repository.ErrUnavailable })
			_, err := mem.ListGameHistories(ctx)
			So(err, ShouldNotBeNil)
			mem.SetFault(nil)
			_, err = mem.ListGameHistories(ctx)
			So(err, ShouldBeNil)
		})
	})
}
