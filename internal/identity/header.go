package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hunterhub/hunter-ranking/internal/adapters/kv"
)

const gameCountKeyPrefix = "hunterhub_game_count:"

// HeaderProvider serves the identity placed in the request context by
// Middleware. Game counters live in the kv store, one key per user.
type HeaderProvider struct {
	store kv.Store
	mu    sync.Mutex
}

// NewHeaderProvider creates a provider keeping counters in store.
func NewHeaderProvider(store kv.Store) *HeaderProvider {
	return &HeaderProvider{store: store}
}

// CurrentUserID returns ErrNoIdentity when the request carried no user.
func (p *HeaderProvider) CurrentUserID(ctx context.Context) (string, error) {
	u, ok := FromContext(ctx)
	if !ok {
		return "", ErrNoIdentity
	}
	return u.ID, nil
}

// Username returns the chosen username, empty when there is none.
func (p *HeaderProvider) Username(ctx context.Context) string {
	u, _ := FromContext(ctx)
	return u.Username
}

// HasUsername reports whether the username is long enough to display.
func (p *HeaderProvider) HasUsername(ctx context.Context) bool {
	return len([]rune(p.Username(ctx))) >= minUsernameLen
}

// IsXLinked reports the link state sent with the request.
func (p *HeaderProvider) IsXLinked(ctx context.Context) bool {
	u, _ := FromContext(ctx)
	return u.XLinked
}

// XDisplayName returns the linked X name sent with the request.
func (p *HeaderProvider) XDisplayName(ctx context.Context) string {
	u, _ := FromContext(ctx)
	return u.XDisplayName
}

// DisplayName resolves the name shown on boards for the caller.
func (p *HeaderProvider) DisplayName(ctx context.Context) string {
	u, _ := FromContext(ctx)
	return displayName(u.ID, u.Username, u.XLinked, u.XDisplayName)
}

// IncrementGameCount bumps the caller's stored game counter.
func (p *HeaderProvider) IncrementGameCount(ctx context.Context) error {
	u, ok := FromContext(ctx)
	if !ok {
		return ErrNoIdentity
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	prof, err := p.load(ctx, u)
	if err != nil {
		return err
	}
	prof.TotalGamesPlayed++
	prof.LastActiveAt = time.Now().UTC()
	if err := kv.SetJSON(ctx, p.store, gameCountKeyPrefix+u.ID, prof); err != nil {
		return fmt.Errorf("save game count of %s: %w", u.ID, err)
	}
	return nil
}

// CurrentUserProfile returns the caller's stored counters, fresh ones on
// first use.
func (p *HeaderProvider) CurrentUserProfile(ctx context.Context) (Profile, error) {
	u, ok := FromContext(ctx)
	if !ok {
		return Profile{}, ErrNoIdentity
	}
	return p.load(ctx, u)
}

func (p *HeaderProvider) load(ctx context.Context, u User) (Profile, error) {
	var prof Profile
	err := kv.GetJSON(ctx, p.store, gameCountKeyPrefix+u.ID, &prof)
	if err != nil && !kv.IsMissing(err) {
		return Profile{}, fmt.Errorf("load profile of %s: %w", u.ID, err)
	}
	if err != nil || prof.UserID == "" {
		now := time.Now().UTC()
		prof = Profile{UserID: u.ID, CreatedAt: now, LastActiveAt: now, FingerprintQuality: fullQuality}
	}
	prof.Username = u.Username
	prof.XLinked = u.XLinked
	prof.XDisplayName = u.XDisplayName
	return prof, nil
}

var _ Provider = (*HeaderProvider)(nil)
