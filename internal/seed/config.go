// Package seed drives a running ranking service with synthetic plays and
// checks the rankings it serves.
package seed

import (
	"time"

	"github.com/hunterhub/hunter-ranking/internal/domain/model"
)

// Config holds configuration for a seed run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Users        int           // Number of synthetic users
	PlaysPerUser int           // Plays per user and game type
	GameTypes    []string      // Game types to play
	Limit        int           // Ranking page size fetched for verification
	Workers      int           // Concurrent submissions
	Timeout      time.Duration // HTTP request timeout
	OutputFile   string        // Optional JSON dump of the generated plays
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.Users <= 0 {
		c.Users = 50
	}
	if c.PlaysPerUser <= 0 {
		c.PlaysPerUser = 3
	}
	if len(c.GameTypes) == 0 {
		c.GameTypes = model.GameTypes()
	}
	if c.Limit <= 0 {
		c.Limit = 20
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// User is a synthetic player.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Play is one score submission.
type Play struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	GameType string `json:"gameType"`
	Score    int64  `json:"score"`
}

// Stats holds run statistics.
type Stats struct {
	PlaysGenerated int
	PlaysStored    int
	PlaysDropped   int
	PlaysFailed    int
	GamesVerified  int
	StartTime      time.Time
	Duration       time.Duration
}
