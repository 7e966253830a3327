// Package repository defines the remote score store the cloud ranking and the
// game history service talk to. The store supports create, filtered list and
// profile update only; score and history rows are never updated or deleted.
package repository

import (
	"context"

	"github.com/hunterhub/hunter-ranking/internal/domain/model"
)

// Operation names used for metrics and failure injection.
const (
	OpCreateGameScore   = "createGameScore"
	OpListGameScores    = "listGameScores"
	OpCreateGameHistory = "createGameHistory"
	OpListGameHistories = "listGameHistories"
	OpGetUserProfile    = "userProfilesByUserId"
	OpCreateUserProfile = "createUserProfile"
	OpUpdateUserProfile = "updateUserProfile"
)

// Store is the remote record store.
type Store interface {
	// CreateGameScore writes rec under rec.ID. A record with the same ID
	// already present yields ErrDuplicate.
	CreateGameScore(ctx context.Context, rec model.ScoreRecord) (model.ScoreRecord, error)
	// ListGameScores returns every record of gameType, all users, unordered.
	ListGameScores(ctx context.Context, gameType string) ([]model.ScoreRecord, error)

	CreateGameHistory(ctx context.Context, rec model.HistoryRecord) (model.HistoryRecord, error)
	// ListGameHistories returns every history row of every user.
	ListGameHistories(ctx context.Context) ([]model.HistoryRecord, error)

	// GetUserProfile returns ErrNotFound when userID has no profile.
	GetUserProfile(ctx context.Context, userID string) (model.UserProfile, error)
	CreateUserProfile(ctx context.Context, p model.UserProfile) (model.UserProfile, error)
	// UpdateUserProfile counts one more game on the profile with p.ID, sets
	// its lastActiveAt and, when p.Username is set, its username. Link state
	// and fingerprint quality belong to the linking flow and are left alone.
	UpdateUserProfile(ctx context.Context, p model.UserProfile) (model.UserProfile, error)
}
