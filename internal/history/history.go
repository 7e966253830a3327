// Package history keeps each user's own play log with the full result
// objects. Rows go to the remote store; while it is unreachable they are
// kept in a short local list per game type.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hunterhub/hunter-ranking/internal/adapters/kv"
	"github.com/hunterhub/hunter-ranking/internal/adapters/repository"
	"github.com/hunterhub/hunter-ranking/internal/domain/model"
	"github.com/hunterhub/hunter-ranking/internal/domain/scoring"
	"github.com/hunterhub/hunter-ranking/internal/identity"
	"github.com/hunterhub/hunter-ranking/pkg/logger"
	"github.com/hunterhub/hunter-ranking/pkg/metrics"
)

const (
	defaultLocalKeep = 10
	migrationKind    = "history"
)

// Paths a row was saved on.
const (
	PathCloud = "cloud"
	PathLocal = "local"
)

// LocalKey returns the local storage key of a game type's fallback list.
func LocalKey(gameType string) string {
	switch gameType {
	case model.GameReflex:
		return "reflexTestHistory"
	case model.GameTarget:
		return "targetTrackingHistory"
	case model.GameSequence:
		return "sequenceGameHistory"
	default:
		return gameType + "History"
	}
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithScorer replaces the scorer deriving a row's score from its result object.
func WithScorer(sc scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithLocalKeep sets how many rows per user and game type the local list keeps.
func WithLocalKeep(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.keep = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// SaveResult tells where a row ended up.
type SaveResult struct {
	Record model.HistoryRecord `json:"record"`
	Path   string              `json:"path"`
}

// MigrationReport summarises a local to cloud history migration.
type MigrationReport struct {
	Pushed  int `json:"pushed"`
	Failed  int `json:"failed"`
	Cleared int `json:"cleared"`
}

// Service is the game history service.
type Service struct {
	repo   repository.Store
	store  kv.Store
	ident  identity.Provider
	scorer scoring.Scorer
	keep   int
	now    func() time.Time
	log    logger.Logger

	mu sync.Mutex
}

// New creates a history service.
func New(repo repository.Store, store kv.Store, ident identity.Provider, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		store:  store,
		ident:  ident,
		scorer: scoring.NewResultScorer(),
		keep:   defaultLocalKeep,
		now:    time.Now,
		log:    logger.Named("history"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveGameHistory stores the caller's result object. A remote success
// drops the caller's local rows of that game type; a remote failure keeps
// the row locally instead. Only a failing local write is returned.
func (s *Service) SaveGameHistory(ctx context.Context, gameType string, gameData json.RawMessage) (SaveResult, error) {
	userID, err := s.ident.CurrentUserID(ctx)
	if err != nil {
		return SaveResult{}, err
	}
	derived, err := s.scorer.Score(ctx, scoring.Input{GameType: gameType, GameData: gameData})
	if err != nil {
		return SaveResult{}, err
	}

	rec := model.HistoryRecord{
		UserID:      userID,
		GameType:    gameType,
		GameData:    gameData,
		Score:       derived.Score,
		PlayedAt:    s.now().UTC(),
		DisplayName: s.ident.DisplayName(ctx),
	}.WithKey()

	_, err = s.repo.CreateGameHistory(ctx, rec)
	if err == nil || errors.Is(err, repository.ErrDuplicate) {
		metrics.RecordHistorySave(PathCloud)
		if _, err := s.dropLocal(ctx, gameType, func(r model.HistoryRecord) bool { return r.UserID == userID }); err != nil {
			s.log.Warn(ctx, "local history not cleared", logger.String("game_type", gameType), logger.Error(err))
		}
		return SaveResult{Record: rec, Path: PathCloud}, nil
	}

	s.log.Error(ctx, "cloud history save failed, keeping it locally",
		logger.String("game_type", gameType), logger.Error(err))
	if err := s.saveLocal(ctx, rec); err != nil {
		return SaveResult{}, err
	}
	metrics.RecordHistorySave(PathLocal)
	return SaveResult{Record: rec, Path: PathLocal}, nil
}

// GetGameHistory returns the caller's rows of gameType, newest first, each
// scored from its result object. Rows whose result object is not valid JSON
// are skipped. limit <= 0 returns
// every row. On remote failure the local list is returned.
func (s *Service) GetGameHistory(ctx context.Context, gameType string, limit int) ([]model.HistoryRecord, error) {
	userID, err := s.ident.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.ListGameHistories(ctx)
	if err != nil {
		s.log.Warn(ctx, "cloud history unavailable, reading local list",
			logger.String("game_type", gameType), logger.Error(err))
		local, lerr := s.loadLocal(ctx, gameType)
		if lerr != nil {
			return nil, lerr
		}
		rows = local
	}

	out := make([]model.HistoryRecord, 0, len(rows))
	for _, r := range rows {
		if r.UserID != userID || r.GameType != gameType {
			continue
		}
		if !json.Valid(r.GameData) {
			s.log.Warn(ctx, "skipping unreadable history row", logger.String("id", r.ID))
			continue
		}
		// Not every backend stores the score; derive it from the result object.
		if derived, err := s.scorer.Score(ctx, scoring.Input{GameType: r.GameType, GameData: r.GameData}); err == nil {
			r.Score = derived.Score
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PlayedAt.After(out[j].PlayedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetLatestGameHistory returns the caller's newest row, nil when there is none.
func (s *Service) GetLatestGameHistory(ctx context.Context, gameType string) (*model.HistoryRecord, error) {
	rows, err := s.GetGameHistory(ctx, gameType, 1)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// MigrateLocalToCloud pushes every local row of every game type. A game
// type's local list is removed only when all of its rows were pushed.
func (s *Service) MigrateLocalToCloud(ctx context.Context) (MigrationReport, error) {
	var report MigrationReport
	for _, gameType := range model.GameTypes() {
		rows, err := s.loadLocal(ctx, gameType)
		if err != nil {
			metrics.RecordMigrationRun(migrationKind, metrics.OutcomeError)
			return report, err
		}
		if len(rows) == 0 {
			continue
		}

		pushed := make(map[string]struct{}, len(rows))
		for _, r := range rows {
			r = r.WithKey()
			if _, err := s.repo.CreateGameHistory(ctx, r); err != nil && !errors.Is(err, repository.ErrDuplicate) {
				report.Failed++
				metrics.RecordMigrationRecord(migrationKind, metrics.OutcomeError)
				s.log.Error(ctx, "failed to migrate history row",
					logger.String("game_type", gameType), logger.String("user_id", r.UserID), logger.Error(err))
				continue
			}
			report.Pushed++
			metrics.RecordMigrationRecord(migrationKind, metrics.OutcomeOK)
			pushed[r.Key()] = struct{}{}
		}
		if len(pushed) < len(rows) {
			continue
		}

		n, err := s.dropLocal(ctx, gameType, func(r model.HistoryRecord) bool {
			_, ok := pushed[r.Key()]
			return ok
		})
		if err != nil {
			metrics.RecordMigrationRun(migrationKind, metrics.OutcomeError)
			return report, err
		}
		report.Cleared += n
	}

	outcome := metrics.OutcomeOK
	if report.Failed > 0 {
		outcome = metrics.OutcomeError
	}
	metrics.RecordMigrationRun(migrationKind, outcome)
	return report, nil
}

func (s *Service) loadLocal(ctx context.Context, gameType string) ([]model.HistoryRecord, error) {
	var rows []model.HistoryRecord
	err := kv.GetJSON(ctx, s.store, LocalKey(gameType), &rows)
	switch {
	case err == nil:
		return rows, nil
	case errors.Is(err, kv.ErrCorrupt):
		s.log.Error(ctx, "local history unreadable, treating as empty",
			logger.String("game_type", gameType), logger.Error(err))
		return nil, nil
	case kv.IsMissing(err):
		return nil, nil
	default:
		return nil, fmt.Errorf("load local %s history: %w", gameType, err)
	}
}

// saveLocal prepends rec and keeps the newest rows of its user.
func (s *Service) saveLocal(ctx context.Context, rec model.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.loadLocal(ctx, rec.GameType)
	if err != nil {
		return err
	}
	out := []model.HistoryRecord{rec}
	kept := 1
	for _, r := range rows {
		if r.UserID == rec.UserID {
			if kept >= s.keep {
				continue
			}
			kept++
		}
		out = append(out, r)
	}
	if err := kv.SetJSON(ctx, s.store, LocalKey(rec.GameType), out); err != nil {
		return fmt.Errorf("save local %s history: %w", rec.GameType, err)
	}
	return nil
}

// dropLocal removes the rows matching drop and deletes the key once empty.
func (s *Service) dropLocal(ctx context.Context, gameType string, drop func(model.HistoryRecord) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.loadLocal(ctx, gameType)
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	kept := rows[:0]
	for _, r := range rows {
		if !drop(r) {
			kept = append(kept, r)
		}
	}
	removed := len(rows) - len(kept)
	switch {
	case removed == 0:
		return 0, nil
	case len(kept) == 0:
		err = s.store.Remove(ctx, LocalKey(gameType))
	default:
		err = kv.SetJSON(ctx, s.store, LocalKey(gameType), kept)
	}
	if err != nil {
		return 0, fmt.Errorf("clear local %s history: %w", gameType, err)
	}
	return removed, nil
}
