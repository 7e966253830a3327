package cloud

import (
	"context"
	"errors"
	"sync"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/hunterhub/hunter-ranking/internal/adapters/repository"
	"github.com/hunterhub/hunter-ranking/internal/domain/model"
	"github.com/hunterhub/hunter-ranking/pkg/logger"
	"github.com/hunterhub/hunter-ranking/pkg/metrics"
)

// lookupProfiles fetches the profile of each user one by one. A user whose
// lookup fails is left out of the result; a user without a profile maps to
// the zero profile.
func (s *Service) lookupProfiles(ctx context.Context, userIDs []string) map[string]model.UserProfile {
	out := make(map[string]model.UserProfile, len(userIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.enrichConcurrency)
	for _, id := range userIDs {
		if p, ok := s.cachedProfile(id); ok {
			mu.Lock()
			out[id] = p
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			p, err := s.repo.GetUserProfile(gctx, id)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				metrics.RecordEnrichmentSkipped()
				s.log.Debug(gctx, "profile lookup failed, keeping stored name",
					logger.String("user_id", id), logger.Error(err))
				return nil
			}
			s.rememberProfile(id, p)
			mu.Lock()
			out[id] = p
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Service) cachedProfile(userID string) (model.UserProfile, bool) {
	if s.profiles == nil {
		return model.UserProfile{}, false
	}
	v, ok := s.profiles.Get(userID)
	metrics.RecordProfileCache(ok)
	if !ok {
		return model.UserProfile{}, false
	}
	return v.(model.UserProfile), true
}

func (s *Service) rememberProfile(userID string, p model.UserProfile) {
	if s.profiles != nil {
		s.profiles.Set(userID, p, cache.DefaultExpiration)
	}
}

func (s *Service) forgetProfile(userID string) {
	if s.profiles != nil {
		s.profiles.Delete(userID)
	}
}
