package seed

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/hunterhub/hunter-ranking/internal/domain/model"
)

// scoreRange is the plausible score span of a game type in milliseconds.
type scoreRange struct{ lo, hi int64 }

var scoreRanges = map[string]scoreRange{
	model.GameReflex:   {lo: 150, hi: 900},
	model.GameTarget:   {lo: 5_000, hi: 30_000},
	model.GameSequence: {lo: 15_000, hi: 120_000},
}

var defaultRange = scoreRange{lo: 1, hi: 10_000}

// randomInt returns a uniform value in [lo, hi].
func randomInt(lo, hi int64) int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(hi-lo+1))
	if err != nil {
		return lo
	}
	return lo + n.Int64()
}

// generateUsers creates n users with unique ids. Every fourth user has no
// username so placeholder names show up in the rankings.
func generateUsers(n int) []User {
	users := make([]User, n)
	for i := range users {
		users[i].ID = uuid.NewString()
		if i%4 != 3 {
			users[i].Username = fmt.Sprintf("hunter%03d", i)
		}
	}
	return users
}

// generatePlays creates playsPerUser plays for each user and game type.
func generatePlays(users []User, gameTypes []string, playsPerUser int) []Play {
	plays := make([]Play, 0, len(users)*len(gameTypes)*playsPerUser)
	for _, u := range users {
		for _, gt := range gameTypes {
			r, ok := scoreRanges[gt]
			if !ok {
				r = defaultRange
			}
			for range playsPerUser {
				plays = append(plays, Play{
					UserID:   u.ID,
					Username: u.Username,
					GameType: gt,
					Score:    randomInt(r.lo, r.hi),
				})
			}
		}
	}
	return plays
}

// expectedBest returns each user's best score per game type.
func expectedBest(plays []Play) map[string]map[string]int64 {
	best := map[string]map[string]int64{}
	for _, p := range plays {
		if best[p.GameType] == nil {
			best[p.GameType] = map[string]int64{}
		}
		if cur, ok := best[p.GameType][p.UserID]; !ok || p.Score < cur {
			best[p.GameType][p.UserID] = p.Score
		}
	}
	return best
}
