// Package types contains read shapes returned by the ranking services.
package types

import "time"

// Modes reported by SystemStatus.
const (
	ModeCloud  = "cloud"
	ModeLocal  = "local"
	ModeHybrid = "hybrid"
)

// RankingEntry is one row of a ranking view. It is derived, never persisted.
type RankingEntry struct {
	Rank          int       `json:"rank"`
	UserID        string    `json:"userId"`
	Username      string    `json:"username,omitempty"`
	DisplayName   string    `json:"displayName"`
	Score         int64     `json:"score"`
	Timestamp     time.Time `json:"timestamp"`
	IsCurrentUser bool      `json:"isCurrentUser"`
}

// RankingData is the result of a ranking read.
type RankingData struct {
	Rankings     []RankingEntry `json:"rankings"`
	UserRank     *RankingEntry  `json:"userRank"`
	TotalPlayers int            `json:"totalPlayers"`
	// TotalCount is the raw number of records behind the ranking.
	TotalCount  int       `json:"totalCount"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// EmptyRankingData is the safe default shown when nothing could be read.
func EmptyRankingData(now time.Time) RankingData {
	return RankingData{Rankings: []RankingEntry{}, LastUpdated: now}
}

// ScoreRank is the hypothetical placement of a candidate score.
type ScoreRank struct {
	Rank         int `json:"rank"`
	TotalPlayers int `json:"totalPlayers"`
}

// TopPlayers maps a game type to its rank-1 entry, nil when nobody played.
type TopPlayers map[string]*RankingEntry

// UserStats aggregates the caller's own local records.
type UserStats struct {
	TotalGames   int            `json:"totalGames"`
	BestScore    *int64         `json:"bestScore"`
	AverageScore float64        `json:"averageScore"`
	RecentGames  []RecentGame   `json:"recentGames"`
	Rank         *int           `json:"rank"`
	ByGameType   map[string]int `json:"byGameType,omitempty"`
}

// RecentGame is a compact view of one of the caller's latest plays.
type RecentGame struct {
	GameType  string    `json:"gameType"`
	Score     int64     `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// SystemStatus reports which ranking paths are reachable.
type SystemStatus struct {
	LocalAvailable bool      `json:"localAvailable"`
	CloudAvailable bool      `json:"cloudAvailable"`
	Mode           string    `json:"mode"`
	LastSync       time.Time `json:"lastSync,omitempty"`
}
