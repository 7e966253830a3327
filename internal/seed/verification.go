package seed

import (
	"errors"
	"fmt"

	"github.com/hunterhub/hunter-ranking/internal/domain/model"
	"github.com/hunterhub/hunter-ranking/internal/domain/ranking"
	"github.com/hunterhub/hunter-ranking/internal/domain/types"
)

// ErrVerification is returned when a served ranking breaks an ordering rule.
var ErrVerification = errors.New("ranking verification failed")

// verifyRanking checks one served ranking page against the generated plays.
// The service may hold other users too, so only our users' scores are
// compared exactly:
//   - each user appears at most once
//   - entries are in ranking order with ranks 1..n
//   - our users show their best score
//   - the caller's userRank matches their best score
func verifyRanking(gameType string, data types.RankingData, best map[string]int64, caller *User, ours int) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrVerification, gameType, fmt.Sprintf(format, args...))
	}

	seen := make(map[string]bool, len(data.Rankings))
	for i, e := range data.Rankings {
		if seen[e.UserID] {
			return fail("user %s listed twice", e.UserID)
		}
		seen[e.UserID] = true

		if e.Rank != i+1 {
			return fail("entry %d has rank %d", i, e.Rank)
		}
		if i > 0 && !ranking.Better(asRecord(data.Rankings[i-1]), asRecord(e)) {
			return fail("entry %d (%d) is not behind entry %d (%d)", i, e.Score, i-1, data.Rankings[i-1].Score)
		}
		if want, ok := best[e.UserID]; ok && e.Score != want {
			return fail("user %s shows %d, best is %d", e.UserID, e.Score, want)
		}
	}

	if data.TotalPlayers < ours {
		return fail("total players %d below the %d seeded users", data.TotalPlayers, ours)
	}
	if caller != nil {
		if data.UserRank == nil {
			return fail("caller %s has no userRank", caller.ID)
		}
		if want := best[caller.ID]; data.UserRank.Score != want {
			return fail("caller userRank shows %d, best is %d", data.UserRank.Score, want)
		}
	}
	return nil
}

func asRecord(e types.RankingEntry) model.ScoreRecord {
	return model.ScoreRecord{UserID: e.UserID, Score: e.Score, Timestamp: e.Timestamp}
}
