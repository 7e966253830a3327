// Package cloud ranks scores across every user through the remote store. It
// pulls the full record set of a game type on each read and ranks in memory;
// remote failures are returned to the caller.
package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/hunterhub/hunter-ranking/internal/adapters/repository"
	"github.com/hunterhub/hunter-ranking/internal/domain/dedupe"
	"github.com/hunterhub/hunter-ranking/internal/domain/model"
	"github.com/hunterhub/hunter-ranking/internal/domain/ranking"
	"github.com/hunterhub/hunter-ranking/internal/domain/types"
	"github.com/hunterhub/hunter-ranking/internal/identity"
	"github.com/hunterhub/hunter-ranking/pkg/logger"
	"github.com/hunterhub/hunter-ranking/pkg/metrics"
)

const (
	defaultProfileTTL        = 30 * time.Second
	defaultEnrichConcurrency = 8
	defaultPushRetries       = 2
	fullFingerprintQuality   = 100
)

// Service is the cloud ranking adapter.
type Service struct {
	repo  repository.Store
	ident identity.Provider

	profileTTL        time.Duration
	profiles          *cache.Cache
	enrichConcurrency int

	pushed        dedupe.Deduper
	pushRetries   int
	retryInterval time.Duration
	archiver      Archiver

	now        func() time.Time
	newSession func() string
	log        logger.Logger
}

// New creates a cloud ranking adapter over repo.
func New(repo repository.Store, ident identity.Provider, opts ...Option) *Service {
	s := &Service{
		repo:              repo,
		ident:             ident,
		profileTTL:        defaultProfileTTL,
		enrichConcurrency: defaultEnrichConcurrency,
		pushRetries:       defaultPushRetries,
		retryInterval:     backoff.DefaultInitialInterval,
		now:               time.Now,
		newSession:        func() string { return "session_" + uuid.NewString() },
		log:               logger.Named("cloud_ranking"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pushed == nil {
		s.pushed = dedupe.NewInMemoryDeduper()
	}
	if s.profileTTL > 0 {
		s.profiles = cache.New(s.profileTTL, 2*s.profileTTL)
	}
	return s
}

// SubmitScore writes a record for the caller and upserts the caller's
// profile. Any remote failure is returned.
func (s *Service) SubmitScore(ctx context.Context, gameType string, score int64, metadata json.RawMessage) (model.ScoreRecord, error) {
	userID, err := s.ident.CurrentUserID(ctx)
	if err != nil {
		return model.ScoreRecord{}, err
	}
	rec := model.ScoreRecord{
		UserID:    userID,
		GameType:  gameType,
		Score:     score,
		Timestamp: s.now().UTC(),
		SessionID: s.newSession(),
		Metadata:  metadata,
	}.WithKey()
	return s.SubmitRecord(ctx, rec)
}

// SubmitRecord writes a record built elsewhere, keeping its key, then
// upserts the caller's profile. An empty display name is filled with the
// caller's username or the placeholder.
func (s *Service) SubmitRecord(ctx context.Context, rec model.ScoreRecord) (model.ScoreRecord, error) {
	username := ""
	if s.ident.HasUsername(ctx) {
		username = s.ident.Username(ctx)
	}
	if rec.DisplayName == "" {
		rec.DisplayName = username
	}
	if rec.DisplayName == "" {
		rec.DisplayName = ranking.PlaceholderName(rec.UserID)
	}
	rec = rec.WithKey()

	if _, err := s.repo.CreateGameScore(ctx, rec); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		metrics.RecordScoreSubmission(metrics.PathCloud, metrics.OutcomeError)
		return model.ScoreRecord{}, fmt.Errorf("submit %s score: %w", rec.GameType, err)
	}
	metrics.RecordScoreSubmission(metrics.PathCloud, metrics.OutcomeOK)

	if err := s.upsertProfile(ctx, rec.UserID, username); err != nil {
		return rec, err
	}
	return rec, nil
}

// upsertProfile creates the profile on the first submission and otherwise
// bumps its game counter. Link state is never written here.
func (s *Service) upsertProfile(ctx context.Context, userID, username string) error {
	defer s.forgetProfile(userID)
	now := s.now().UTC()

	p, err := s.repo.GetUserProfile(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		_, err = s.repo.CreateUserProfile(ctx, model.UserProfile{
			ID:                 uuid.NewString(),
			UserID:             userID,
			Username:           username,
			TotalGamesPlayed:   1,
			CreatedAt:          now,
			LastActiveAt:       now,
			FingerprintQuality: fullFingerprintQuality,
		})
		if err != nil {
			return fmt.Errorf("create profile of %s: %w", userID, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("load profile of %s: %w", userID, err)
	}

	p.LastActiveAt = now
	p.Username = username
	if _, err := s.repo.UpdateUserProfile(ctx, p); err != nil {
		return fmt.Errorf("update profile of %s: %w", userID, err)
	}
	return nil
}

func (s *Service) board(ctx context.Context, gameType string) (*ranking.Board, error) {
	records, err := s.repo.ListGameScores(ctx, gameType)
	if err != nil {
		return nil, fmt.Errorf("list %s scores: %w", gameType, err)
	}
	return ranking.NewBoard(ranking.FilterGame(records, gameType)), nil
}

// GetRankings ranks the best remote score of each user and resolves display
// names of the returned page. TotalCount is the raw number of records.
func (s *Service) GetRankings(ctx context.Context, gameType string, limit int) (types.RankingData, error) {
	board, err := s.board(ctx, gameType)
	if err != nil {
		return types.RankingData{}, err
	}
	callerID, _ := s.ident.CurrentUserID(ctx)

	var others []string
	for _, id := range board.UserIDs(limit) {
		if id != callerID {
			others = append(others, id)
		}
	}
	profiles := s.lookupProfiles(ctx, others)

	entries, userRank := board.Entries(callerID, limit, s.nameFor(ctx, callerID, profiles))
	return types.RankingData{
		Rankings:     entries,
		UserRank:     userRank,
		TotalPlayers: board.Players(),
		TotalCount:   board.Records(),
		LastUpdated:  s.now().UTC(),
	}, nil
}

// nameFor resolves display names. The caller's own entry follows the local
// link state, so an unlinked caller never shows a stale linked name. Other
// users show their linked X name when their profile has one.
func (s *Service) nameFor(ctx context.Context, callerID string, profiles map[string]model.UserProfile) ranking.NameFunc {
	own := ""
	if callerID != "" {
		switch {
		case s.ident.IsXLinked(ctx) && s.ident.XDisplayName(ctx) != "":
			own = s.ident.XDisplayName(ctx)
		case s.ident.HasUsername(ctx):
			own = s.ident.Username(ctx)
		}
	}
	return func(rec model.ScoreRecord) string {
		if rec.UserID == callerID && callerID != "" {
			if own != "" {
				return own
			}
			return rec.DisplayName
		}
		if name, ok := profiles[rec.UserID].LinkedName(); ok {
			return name
		}
		return rec.DisplayName
	}
}

// CurrentScoreRank places score against the best remote score of every
// other user. The candidate counts as one more player.
func (s *Service) CurrentScoreRank(ctx context.Context, gameType string, score int64) (types.ScoreRank, error) {
	board, err := s.board(ctx, gameType)
	if err != nil {
		return types.ScoreRank{}, err
	}
	callerID, _ := s.ident.CurrentUserID(ctx)
	return board.RankOf(score, callerID), nil
}

// GetTopPlayer returns the rank one entry, nil when nobody played.
func (s *Service) GetTopPlayer(ctx context.Context, gameType string) (*types.RankingEntry, error) {
	data, err := s.GetRankings(ctx, gameType, 1)
	if err != nil {
		return nil, err
	}
	if len(data.Rankings) == 0 {
		return nil, nil
	}
	top := data.Rankings[0]
	return &top, nil
}

// GetAllTopPlayers looks up every game type concurrently and fails if any lookup fails.
func (s *Service) GetAllTopPlayers(ctx context.Context) (types.TopPlayers, error) {
	gameTypes := model.GameTypes()
	tops := make([]*types.RankingEntry, len(gameTypes))
	g, gctx := errgroup.WithContext(ctx)
	for i, gt := range gameTypes {
		g.Go(func() error {
			top, err := s.GetTopPlayer(gctx, gt)
			tops[i] = top
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(types.TopPlayers, len(gameTypes))
	for i, gt := range gameTypes {
		out[gt] = tops[i]
	}
	return out, nil
}

// TotalPlayCount is the number of remote records of gameType, all users.
func (s *Service) TotalPlayCount(ctx context.Context, gameType string) (int, error) {
	board, err := s.board(ctx, gameType)
	if err != nil {
		return 0, err
	}
	return board.Records(), nil
}

// UserPlayCount is the number of remote records of gameType the caller submitted.
func (s *Service) UserPlayCount(ctx context.Context, gameType string) (int, error) {
	userID, err := s.ident.CurrentUserID(ctx)
	if err != nil {
		return 0, err
	}
	records, err := s.repo.ListGameScores(ctx, gameType)
	if err != nil {
		return 0, fmt.Errorf("list %s scores: %w", gameType, err)
	}
	n := 0
	for _, r := range records {
		if r.UserID == userID && r.GameType == gameType {
			n++
		}
	}
	return n, nil
}
