// Package ranking holds the best-per-user ranking arithmetic shared by the
// local and cloud paths.
package ranking

import (
	"sort"

	"github.com/hunterhub/hunter-ranking/internal/domain/model"
	"github.com/hunterhub/hunter-ranking/internal/domain/types"
)

const placeholderPrefix = "ユーザー"
const placeholderIDRunes = 6

// NameFunc resolves the display name of a ranked record.
type NameFunc func(rec model.ScoreRecord) string

// PlaceholderName is the deterministic name shown for users without one.
func PlaceholderName(userID string) string {
	r := []rune(userID)
	if len(r) > placeholderIDRunes {
		r = r[:placeholderIDRunes]
	}
	return placeholderPrefix + string(r)
}

// Better reports whether a ranks ahead of b: lower score first, then the
// more recent timestamp, then user id so the order is total.
func Better(a, b model.ScoreRecord) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.UserID < b.UserID
}

// Sort orders records in ranking order in place.
func Sort(records []model.ScoreRecord) {
	sort.Slice(records, func(i, j int) bool {
		return Better(records[i], records[j])
	})
}

// BestPerUser keeps each user's single best record and returns them in
// ranking order. Records without a user id are ignored.
func BestPerUser(records []model.ScoreRecord) []model.ScoreRecord {
	best := make(map[string]model.ScoreRecord, len(records))
	for _, r := range records {
		if r.UserID == "" {
			continue
		}
		if cur, ok := best[r.UserID]; !ok || Better(r, cur) {
			best[r.UserID] = r
		}
	}

	out := make([]model.ScoreRecord, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	Sort(out)
	return out
}

// FilterGame returns the records of one game type.
func FilterGame(records []model.ScoreRecord, gameType string) []model.ScoreRecord {
	out := make([]model.ScoreRecord, 0, len(records))
	for _, r := range records {
		if r.GameType == gameType {
			out = append(out, r)
		}
	}
	return out
}

// Board is the best-per-user population of a single game type.
type Board struct {
	best    []model.ScoreRecord
	records int
}

// NewBoard builds a board from every record of one game type.
func NewBoard(records []model.ScoreRecord) *Board {
	return &Board{best: BestPerUser(records), records: len(records)}
}

// Players is the number of distinct users on the board.
func (b *Board) Players() int { return len(b.best) }

// Records is the raw number of records the board was built from.
func (b *Board) Records() int { return b.records }

// UserIDs returns the user ids of the first limit entries. limit <= 0 means all.
func (b *Board) UserIDs(limit int) []string {
	n := b.clamp(limit)
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = b.best[i].UserID
	}
	return ids
}

// Entries returns the first limit ranked entries and the entry of
// currentUserID anywhere on the board. limit <= 0 means all.
func (b *Board) Entries(currentUserID string, limit int, name NameFunc) ([]types.RankingEntry, *types.RankingEntry) {
	n := b.clamp(limit)
	entries := make([]types.RankingEntry, 0, n)
	var userRank *types.RankingEntry

	for i, rec := range b.best {
		if i >= n && (userRank != nil || currentUserID == "") {
			break
		}
		inPage := i < n
		isCurrent := currentUserID != "" && rec.UserID == currentUserID
		if !inPage && !isCurrent {
			continue
		}
		entry := b.entry(i, rec, isCurrent, name)
		if inPage {
			entries = append(entries, entry)
		}
		if isCurrent {
			e := entry
			userRank = &e
		}
	}
	return entries, userRank
}

// RankOf places a candidate score against every other user's best score.
// The rank is one plus the number of strictly better scores, and the
// candidate counts as one extra player.
func (b *Board) RankOf(score int64, excludeUserID string) types.ScoreRank {
	better, others := 0, 0
	for _, rec := range b.best {
		if excludeUserID != "" && rec.UserID == excludeUserID {
			continue
		}
		others++
		if rec.Score < score {
			better++
		}
	}
	return types.ScoreRank{Rank: better + 1, TotalPlayers: others + 1}
}

func (b *Board) entry(i int, rec model.ScoreRecord, isCurrent bool, name NameFunc) types.RankingEntry {
	display := rec.DisplayName
	if name != nil {
		display = name(rec)
	}
	if display == "" {
		display = PlaceholderName(rec.UserID)
	}
	return types.RankingEntry{
		Rank:          i + 1,
		UserID:        rec.UserID,
		DisplayName:   display,
		Score:         rec.Score,
		Timestamp:     rec.Timestamp,
		IsCurrentUser: isCurrent,
	}
}

func (b *Board) clamp(limit int) int {
	if limit <= 0 || limit > len(b.best) {
		return len(b.best)
	}
	return limit
}
