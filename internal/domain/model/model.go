// Package model contains domain models passed between layers.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// Game types with a ranking and a history of their own.
const (
	GameReflex   = "reflex"
	GameTarget   = "target"
	GameSequence = "sequence"
)

// GameTypes returns the fixed set iterated by top-player lookups and migrations.
func GameTypes() []string {
	return []string{GameReflex, GameTarget, GameSequence}
}

// ScoreRecord is one submitted play result. Lower scores are better for
// every game type. Records are immutable once written.
type ScoreRecord struct {
	ID          string          `json:"id,omitempty" dynamodbav:"id"`
	UserID      string          `json:"userId" dynamodbav:"userId"`
	GameType    string          `json:"gameType" dynamodbav:"gameType"`
	Score       int64           `json:"score" dynamodbav:"score"`
	Timestamp   time.Time       `json:"timestamp" dynamodbav:"timestamp"`
	SessionID   string          `json:"sessionId" dynamodbav:"sessionId"`
	DisplayName string          `json:"displayName,omitempty" dynamodbav:"displayName,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty" dynamodbav:"-"`
}

// Key returns the deterministic idempotency key of the record:
// hex(sha256(userId|sessionId|timestamp)).
func (r ScoreRecord) Key() string {
	return hashKey(r.UserID, r.SessionID, r.Timestamp.UTC().Format(time.RFC3339Nano))
}

// WithKey returns a copy whose ID is set to Key() when empty.
func (r ScoreRecord) WithKey() ScoreRecord {
	if r.ID == "" {
		r.ID = r.Key()
	}
	return r
}

// UserProfile is the remote per-user profile. XLinked and XDisplayName are
// written only by the identity linking flow.
type UserProfile struct {
	ID                 string    `json:"id" dynamodbav:"id"`
	UserID             string    `json:"userId" dynamodbav:"userId"`
	Username           string    `json:"username,omitempty" dynamodbav:"username,omitempty"`
	TotalGamesPlayed   int       `json:"totalGamesPlayed" dynamodbav:"totalGamesPlayed"`
	CreatedAt          time.Time `json:"createdAt" dynamodbav:"createdAt"`
	LastActiveAt       time.Time `json:"lastActiveAt" dynamodbav:"lastActiveAt"`
	FingerprintQuality int       `json:"fingerprintQuality" dynamodbav:"fingerprintQuality"`
	XLinked            bool      `json:"xLinked" dynamodbav:"xLinked"`
	XDisplayName       string    `json:"xDisplayName,omitempty" dynamodbav:"xDisplayName,omitempty"`
}

// LinkedName returns the X display name when the profile is linked and has one.
func (p UserProfile) LinkedName() (string, bool) {
	if p.XLinked && strings.TrimSpace(p.XDisplayName) != "" {
		return p.XDisplayName, true
	}
	return "", false
}

// HistoryRecord is one row of a user's own play log. GameData holds the
// full result object as JSON.
type HistoryRecord struct {
	ID          string          `json:"id,omitempty" dynamodbav:"id"`
	UserID      string          `json:"userId" dynamodbav:"userId"`
	GameType    string          `json:"gameType" dynamodbav:"gameType"`
	GameData    json.RawMessage `json:"gameData" dynamodbav:"-"`
	Score       int64           `json:"score" dynamodbav:"score"`
	PlayedAt    time.Time       `json:"playedAt" dynamodbav:"playedAt"`
	DisplayName string          `json:"displayName,omitempty" dynamodbav:"displayName,omitempty"`
}

// Key returns the deterministic idempotency key of the row.
func (h HistoryRecord) Key() string {
	return hashKey(h.UserID, h.GameType, h.PlayedAt.UTC().Format(time.RFC3339Nano))
}

// WithKey returns a copy whose ID is set to Key() when empty.
func (h HistoryRecord) WithKey() HistoryRecord {
	if h.ID == "" {
		h.ID = h.Key()
	}
	return h
}

func hashKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
