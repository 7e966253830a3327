package ranking_test

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/hunterhub/hunter-ranking/internal/domain/model"
	"github.com/hunterhub/hunter-ranking/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)

func rec(user string, score int64, offset time.Duration) model.ScoreRecord {
	return model.ScoreRecord{UserID: user, GameType: model.GameReflex, Score: score, Timestamp: t0.Add(offset)}
}

func TestPlaceholderName(t *testing.T) {
	Convey("Given user ids of various lengths", t, func() {
		So(ranking.PlaceholderName("abcdef123456"), ShouldEqual, "ユーザーabcdef")
		So(ranking.PlaceholderName("abc"), ShouldEqual, "ユーザーabc")
		So(ranking.PlaceholderName(""), ShouldEqual, "ユーザー")
	})
}

func TestBestPerUser(t *testing.T) {
	Convey("Given several records per user", t, func() {
		records := []model.ScoreRecord{
			rec("d", 400, 0),
			rec("a", 500, time.Second),
			rec("d", 250, 2*time.Second),
			rec("a", 520, 3*time.Second),
			rec("", 1, 0),
		}

		best := ranking.BestPerUser(records)

		Convey("Then each user appears once with their minimum score", func() {
			So(len(best), ShouldEqual, 2)
			So(best[0].UserID, ShouldEqual, "d")
			So(best[0].Score, ShouldEqual, 250)
			So(best[1].UserID, ShouldEqual, "a")
			So(best[1].Score, ShouldEqual, 500)
		})
	})

	Convey("Given random populations", t, func() {
		rng := rand.New(rand.NewSource(7))
		for round := 0; round < 20; round++ {
			var records []model.ScoreRecord
			minByUser := map[string]int64{}
			for i := 0; i < 200; i++ {
				user := fmt.Sprintf("user-%d", rng.Intn(25))
				score := int64(150 + rng.Intn(900))
				records = append(records, rec(user, score, time.Duration(rng.Intn(10_000))*time.Millisecond))
				if cur, ok := minByUser[user]; !ok || score < cur {
					minByUser[user] = score
				}
			}

			board := ranking.NewBoard(records)
			entries, _ := board.Entries("", 0, nil)

			So(len(entries), ShouldEqual, len(minByUser))
			So(board.Players(), ShouldEqual, len(minByUser))
			So(board.Records(), ShouldEqual, 200)
			seen := map[string]bool{}
			for i, e := range entries {
				So(seen[e.UserID], ShouldBeFalse)
				seen[e.UserID] = true
				So(e.Score, ShouldEqual, minByUser[e.UserID])
				So(e.Rank, ShouldEqual, i+1)
				if i > 0 {
					So(entries[i-1].Score, ShouldBeLessThanOrEqualTo, e.Score)
				}
			}
		}
	})
}

func TestBoardEntries(t *testing.T) {
	Convey("Given users A=500@t1, B=300@t2, C=300@t3", t, func() {
		board := ranking.NewBoard([]model.ScoreRecord{
			rec("A", 500, 1*time.Minute),
			rec("B", 300, 2*time.Minute),
			rec("C", 300, 3*time.Minute),
		})

		Convey("When listing all entries", func() {
			entries, userRank := board.Entries("B", 10, nil)

			Convey("Then the newer tie ranks first", func() {
				So(len(entries), ShouldEqual, 3)
				So(entries[0].UserID, ShouldEqual, "C")
				So(entries[1].UserID, ShouldEqual, "B")
				So(entries[2].UserID, ShouldEqual, "A")
				So(board.Players(), ShouldEqual, 3)
			})

			Convey("Then the caller is flagged and returned as user rank", func() {
				So(entries[1].IsCurrentUser, ShouldBeTrue)
				So(userRank, ShouldNotBeNil)
				So(userRank.Rank, ShouldEqual, 2)
			})

			Convey("Then missing names fall back to the placeholder", func() {
				So(entries[0].DisplayName, ShouldEqual, "ユーザーC")
			})
		})

		Convey("When the caller is below the limit", func() {
			entries, userRank := board.Entries("A", 1, nil)

			Convey("Then the page is truncated but the user rank is still found", func() {
				So(len(entries), ShouldEqual, 1)
				So(userRank, ShouldNotBeNil)
				So(userRank.Rank, ShouldEqual, 3)
			})
		})

		Convey("When a name function is provided", func() {
			entries, _ := board.Entries("", 2, func(r model.ScoreRecord) string { return "hunter-" + r.UserID })

			Convey("Then it decides the display name", func() {
				So(entries[0].DisplayName, ShouldEqual, "hunter-C")
				So(board.UserIDs(2), ShouldResemble, []string{"C", "B"})
			})
		})

		Convey("When the caller never played", func() {
			_, userRank := board.Entries("Z", 10, nil)
			So(userRank, ShouldBeNil)
		})
	})

	Convey("Given an empty board", t, func() {
		board := ranking.NewBoard(nil)
		entries, userRank := board.Entries("me", 10, nil)
		So(entries, ShouldBeEmpty)
		So(userRank, ShouldBeNil)
		So(board.Players(), ShouldEqual, 0)
	})
}

func TestBoardRankOf(t *testing.T) {
	Convey("Given a sequence population of 10000 and 15000", t, func() {
		board := ranking.NewBoard([]model.ScoreRecord{
			{UserID: "x", GameType: model.GameSequence, Score: 10000, Timestamp: t0},
			{UserID: "y", GameType: model.GameSequence, Score: 15000, Timestamp: t0},
		})

		Convey("When ranking 12000", func() {
			r := board.RankOf(12000, "me")

			Convey("Then it lands second of three", func() {
				So(r.Rank, ShouldEqual, 2)
				So(r.TotalPlayers, ShouldEqual, 3)
			})
		})

		Convey("When ranking an equal score", func() {
			So(board.RankOf(10000, "me").Rank, ShouldEqual, 1)
		})

		Convey("When the caller is part of the population", func() {
			r := board.RankOf(12000, "x")

			Convey("Then the caller's own best is excluded", func() {
				So(r.Rank, ShouldEqual, 1)
				So(r.TotalPlayers, ShouldEqual, 2)
			})
		})

		Convey("Then rank never decreases as the score grows", func() {
			prev := 0
			for s := int64(0); s <= 20000; s += 500 {
				r := board.RankOf(s, "me").Rank
				So(r, ShouldBeGreaterThanOrEqualTo, prev)
				prev = r
			}
		})
	})
}

func TestFilterGame(t *testing.T) {
	Convey("Given mixed game records", t, func() {
		records := []model.ScoreRecord{
			{UserID: "a", GameType: model.GameReflex},
			{UserID: "a", GameType: model.GameTarget},
		}
		So(len(ranking.FilterGame(records, model.GameTarget)), ShouldEqual, 1)
		So(ranking.FilterGame(records, "unknown"), ShouldBeEmpty)
	})
}
