package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hunterhub/hunter-ranking/internal/adapters/kv"
	"github.com/hunterhub/hunter-ranking/pkg/logger"
)

const (
	minUsernameLen = 2
	maxUsernameLen = 20
	invalidChars   = `<>"'&`
	fullQuality    = 100
)

// LocalProvider is a single anonymous user persisted under kv.KeyUserProfile.
// The user id is generated on first use and survives restarts.
type LocalProvider struct {
	store kv.Store
	log   logger.Logger
	now   func() time.Time

	mu      sync.Mutex
	current *Profile
}

// NewLocalProvider creates a provider backed by store.
func NewLocalProvider(store kv.Store) *LocalProvider {
	return &LocalProvider{store: store, log: logger.Named("identity"), now: time.Now}
}

// profile loads or creates the user. Must be called with p.mu held.
func (p *LocalProvider) profile(ctx context.Context) (*Profile, error) {
	if p.current != nil {
		return p.current, nil
	}
	var prof Profile
	err := kv.GetJSON(ctx, p.store, kv.KeyUserProfile, &prof)
	switch {
	case err == nil && prof.UserID != "":
		prof.SessionCount++
		prof.LastActiveAt = p.now().UTC()
	case err == nil || kv.IsMissing(err):
		if errors.Is(err, kv.ErrCorrupt) {
			p.log.Warn(ctx, "stored user profile unreadable, starting a new one", logger.Error(err))
		}
		now := p.now().UTC()
		prof = Profile{
			UserID:             uuid.NewString(),
			CreatedAt:          now,
			LastActiveAt:       now,
			FingerprintQuality: fullQuality,
			SessionCount:       1,
		}
	default:
		return nil, fmt.Errorf("load user profile: %w", err)
	}
	if err := p.save(ctx, &prof); err != nil {
		return nil, err
	}
	p.current = &prof
	return p.current, nil
}

func (p *LocalProvider) save(ctx context.Context, prof *Profile) error {
	if err := kv.SetJSON(ctx, p.store, kv.KeyUserProfile, prof); err != nil {
		return fmt.Errorf("save user profile: %w", err)
	}
	return nil
}

func (p *LocalProvider) snapshot(ctx context.Context) (Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prof, err := p.profile(ctx)
	if err != nil {
		return Profile{}, err
	}
	return *prof, nil
}

// CurrentUserID returns the persisted user, creating it on first use.
func (p *LocalProvider) CurrentUserID(ctx context.Context) (string, error) {
	prof, err := p.snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoIdentity, err)
	}
	return prof.UserID, nil
}

// Username returns the persisted username, empty when none was chosen.
func (p *LocalProvider) Username(ctx context.Context) string {
	prof, err := p.snapshot(ctx)
	if err != nil {
		p.log.Warn(ctx, "username unavailable", logger.Error(err))
		return ""
	}
	return prof.Username
}

func (p *LocalProvider) HasUsername(ctx context.Context) bool {
	return len([]rune(p.Username(ctx))) >= minUsernameLen
}

func (p *LocalProvider) IsXLinked(ctx context.Context) bool {
	prof, _ := p.snapshot(ctx)
	return prof.XLinked
}

func (p *LocalProvider) XDisplayName(ctx context.Context) string {
	prof, _ := p.snapshot(ctx)
	return prof.XDisplayName
}

func (p *LocalProvider) DisplayName(ctx context.Context) string {
	prof, _ := p.snapshot(ctx)
	return displayName(prof.UserID, prof.Username, prof.XLinked, prof.XDisplayName)
}

// IncrementGameCount bumps and persists the game counter.
func (p *LocalProvider) IncrementGameCount(ctx context.Context) error {
	return p.update(ctx, func(prof *Profile) error {
		prof.TotalGamesPlayed++
		prof.LastActiveAt = p.now().UTC()
		return nil
	})
}

// CurrentUserProfile returns a copy of the persisted profile.
func (p *LocalProvider) CurrentUserProfile(ctx context.Context) (Profile, error) {
	return p.snapshot(ctx)
}

// SetUsername validates and stores name: 2 to 20 characters after trimming,
// none of <>"'&.
func (p *LocalProvider) SetUsername(ctx context.Context, name string) error {
	trimmed := strings.TrimSpace(name)
	switch n := len([]rune(trimmed)); {
	case n < minUsernameLen:
		return fmt.Errorf("%w: must be at least %d characters long", ErrInvalidUsername, minUsernameLen)
	case n > maxUsernameLen:
		return fmt.Errorf("%w: must be %d characters or less", ErrInvalidUsername, maxUsernameLen)
	case strings.ContainsAny(trimmed, invalidChars):
		return fmt.Errorf("%w: contains invalid characters", ErrInvalidUsername)
	}
	return p.update(ctx, func(prof *Profile) error {
		prof.Username = trimmed
		prof.UsernameUpdatedAt = p.now().UTC()
		return nil
	})
}

// SetXLink records the outcome of the X account linking flow. An empty name unlinks.
func (p *LocalProvider) SetXLink(ctx context.Context, xName string) error {
	return p.update(ctx, func(prof *Profile) error {
		prof.XDisplayName = strings.TrimSpace(xName)
		prof.XLinked = prof.XDisplayName != ""
		return nil
	})
}

func (p *LocalProvider) update(ctx context.Context, fn func(*Profile) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	prof, err := p.profile(ctx)
	if err != nil {
		return err
	}
	next := *prof
	if err := fn(&next); err != nil {
		return err
	}
	if err := p.save(ctx, &next); err != nil {
		return err
	}
	*prof = next
	return nil
}

var _ Provider = (*LocalProvider)(nil)
