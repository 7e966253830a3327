package cloud

import (
	"time"

	"github.com/hunterhub/hunter-ranking/internal/domain/dedupe"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithProfileCacheTTL sets how long looked up profiles are reused. Zero disables caching.
func WithProfileCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.profileTTL = ttl
	}
}

// WithEnrichConcurrency bounds the number of concurrent profile lookups.
func WithEnrichConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.enrichConcurrency = n
		}
	}
}

// WithPushRetries sets how many times a failed migration push is retried.
func WithPushRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.pushRetries = n
		}
	}
}

// WithRetryInterval sets the initial backoff between migration push retries.
func WithRetryInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retryInterval = d
		}
	}
}

// WithDeduper replaces the set of keys already pushed by migrations.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.pushed = d
		}
	}
}

// WithArchiver makes migrations archive the ledger before clearing it.
func WithArchiver(a Archiver) Option {
	return func(s *Service) {
		s.archiver = a
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithSessionIDs replaces the session id generator.
func WithSessionIDs(fn func() string) Option {
	return func(s *Service) {
		s.newSession = fn
	}
}
