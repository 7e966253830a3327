// Package identity answers who the caller is. The header provider takes the
// identity from each request; the local provider keeps one anonymous user in
// local storage.
package identity

import (
	"context"
	"strings"
	"time"

	"github.com/hunterhub/hunter-ranking/internal/domain/ranking"
)

// Provider is the identity contract the ranking and history services consume.
type Provider interface {
	// CurrentUserID returns ErrNoIdentity when the caller is unknown.
	CurrentUserID(ctx context.Context) (string, error)
	// Username is empty when the user never set one.
	Username(ctx context.Context) string
	HasUsername(ctx context.Context) bool
	IsXLinked(ctx context.Context) bool
	XDisplayName(ctx context.Context) string
	// DisplayName prefers the linked X name, then the username, then the placeholder.
	DisplayName(ctx context.Context) string
	IncrementGameCount(ctx context.Context) error
	CurrentUserProfile(ctx context.Context) (Profile, error)
}

// Profile is the locally known state of a user.
type Profile struct {
	UserID             string    `json:"userId"`
	Username           string    `json:"username,omitempty"`
	UsernameUpdatedAt  time.Time `json:"usernameUpdatedAt,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	LastActiveAt       time.Time `json:"lastActiveAt"`
	FingerprintQuality int       `json:"fingerprintQuality"`
	SessionCount       int       `json:"sessionCount"`
	TotalGamesPlayed   int       `json:"totalGamesPlayed"`
	XLinked            bool      `json:"xLinked"`
	XDisplayName       string    `json:"xDisplayName,omitempty"`
}

// User is the request scoped identity.
type User struct {
	ID           string
	Username     string
	XLinked      bool
	XDisplayName string
}

type userKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// FromContext returns the user stored by WithUser.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	return u, ok && u.ID != ""
}

func displayName(userID, username string, xLinked bool, xName string) string {
	if xLinked && strings.TrimSpace(xName) != "" {
		return xName
	}
	if strings.TrimSpace(username) != "" {
		return username
	}
	return ranking.PlaceholderName(userID)
}
