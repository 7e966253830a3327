// Package local is the on-device score ledger. It ranks with no network
// access and is the fallback for every cloud read.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hunterhub/hunter-ranking/internal/adapters/kv"
	"github.com/hunterhub/hunter-ranking/internal/domain/model"
	"github.com/hunterhub/hunter-ranking/internal/domain/ranking"
	"github.com/hunterhub/hunter-ranking/internal/domain/types"
	"github.com/hunterhub/hunter-ranking/internal/identity"
	"github.com/hunterhub/hunter-ranking/pkg/logger"
	"github.com/hunterhub/hunter-ranking/pkg/metrics"
)

const recentGamesLimit = 5

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithSessionIDs replaces the session id generator.
func WithSessionIDs(fn func() string) Option {
	return func(s *Store) {
		s.newSession = fn
	}
}

// Store keeps every score submitted on this device as one JSON array under
// kv.KeyGlobalScores. The array is read, modified and written back whole.
type Store struct {
	kv         kv.Store
	ident      identity.Provider
	now        func() time.Time
	newSession func() string
	log        logger.Logger

	mu sync.Mutex
}

// New creates a ledger on store for the callers identified by ident.
func New(store kv.Store, ident identity.Provider, opts ...Option) *Store {
	s := &Store{
		kv:         store,
		ident:      ident,
		now:        time.Now,
		newSession: func() string { return "session_" + uuid.NewString() },
		log:        logger.Named("local_ranking"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// load returns the ledger. A missing or unparsable ledger is empty; other
// storage failures are returned.
func (s *Store) load(ctx context.Context) ([]model.ScoreRecord, error) {
	var records []model.ScoreRecord
	err := kv.GetJSON(ctx, s.kv, kv.KeyGlobalScores, &records)
	switch {
	case err == nil:
		return records, nil
	case errors.Is(err, kv.ErrCorrupt):
		s.log.Error(ctx, "local ledger unreadable, treating as empty", logger.Error(err))
		return nil, nil
	case kv.IsMissing(err):
		return nil, nil
	default:
		return nil, fmt.Errorf("load local ledger: %w", err)
	}
}

func (s *Store) save(ctx context.Context, records []model.ScoreRecord) error {
	if records == nil {
		records = []model.ScoreRecord{}
	}
	if err := kv.SetJSON(ctx, s.kv, kv.KeyGlobalScores, records); err != nil {
		return fmt.Errorf("save local ledger: %w", err)
	}
	metrics.UpdateLedgerRecords(len(records))
	return nil
}

// NewRecord builds the caller's next record with its idempotency key set.
// The hybrid service writes the same record to both paths.
func (s *Store) NewRecord(ctx context.Context, gameType string, score int64, metadata json.RawMessage) (model.ScoreRecord, error) {
	userID, err := s.ident.CurrentUserID(ctx)
	if err != nil {
		return model.ScoreRecord{}, err
	}
	return model.ScoreRecord{
		UserID:    userID,
		GameType:  gameType,
		Score:     score,
		Timestamp: s.now().UTC(),
		SessionID: s.newSession(),
		Metadata:  metadata,
	}.WithKey(), nil
}

// SubmitScore appends a record for the caller. Only storage write failures,
// such as an exhausted quota, are returned.
func (s *Store) SubmitScore(ctx context.Context, gameType string, score int64, metadata json.RawMessage) (model.ScoreRecord, error) {
	rec, err := s.NewRecord(ctx, gameType, score, metadata)
	if err != nil {
		return model.ScoreRecord{}, err
	}
	if err := s.Append(ctx, rec); err != nil {
		return model.ScoreRecord{}, err
	}
	return rec, nil
}

// Append adds rec to the ledger.
func (s *Store) Append(ctx context.Context, rec model.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := s.save(ctx, append(records, rec)); err != nil {
		metrics.RecordScoreSubmission(metrics.PathLocal, metrics.OutcomeError)
		return err
	}
	metrics.RecordScoreSubmission(metrics.PathLocal, metrics.OutcomeOK)
	s.log.Debug(ctx, "score stored locally",
		logger.String("game_type", rec.GameType), logger.Int64("score", rec.Score))
	return nil
}

func (s *Store) board(ctx context.Context, gameType string) (*ranking.Board, error) {
	s.mu.Lock()
	records, err := s.load(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return ranking.NewBoard(ranking.FilterGame(records, gameType)), nil
}

// nameFor shows the caller's own username and the placeholder for everybody else.
func (s *Store) nameFor(ctx context.Context, callerID string) ranking.NameFunc {
	username := ""
	if callerID != "" && s.ident.HasUsername(ctx) {
		username = s.ident.Username(ctx)
	}
	return func(rec model.ScoreRecord) string {
		if username != "" && rec.UserID == callerID {
			return username
		}
		return ranking.PlaceholderName(rec.UserID)
	}
}

// GetRankings ranks the best score of each user. limit <= 0 returns every
// user. UserRank is found on the whole board, not only the returned page.
func (s *Store) GetRankings(ctx context.Context, gameType string, limit int) (types.RankingData, error) {
	board, err := s.board(ctx, gameType)
	if err != nil {
		return types.RankingData{}, err
	}
	callerID, _ := s.ident.CurrentUserID(ctx)
	entries, userRank := board.Entries(callerID, limit, s.nameFor(ctx, callerID))
	return types.RankingData{
		Rankings:     entries,
		UserRank:     userRank,
		TotalPlayers: board.Players(),
		TotalCount:   board.Records(),
		LastUpdated:  s.now().UTC(),
	}, nil
}

// CurrentScoreRank places score against the other users' best local scores.
func (s *Store) CurrentScoreRank(ctx context.Context, gameType string, score int64) (types.ScoreRank, error) {
	board, err := s.board(ctx, gameType)
	if err != nil {
		return types.ScoreRank{}, err
	}
	callerID, _ := s.ident.CurrentUserID(ctx)
	return board.RankOf(score, callerID), nil
}

// GetTopPlayer returns the rank one entry, nil when nobody played.
func (s *Store) GetTopPlayer(ctx context.Context, gameType string) (*types.RankingEntry, error) {
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

// GetAllTopPlayers looks up the top player of every game type concurrently.
func (s *Store) GetAllTopPlayers(ctx context.Context) (types.TopPlayers, error) {
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

// GetUserStats aggregates the caller's own records, optionally of one game
// type. Rank is set only when a game type is given and the caller has played it.
func (s *Store) GetUserStats(ctx context.Context, gameType string) (types.UserStats, error) {
	userID, err := s.ident.CurrentUserID(ctx)
	if err != nil {
		return types.UserStats{}, err
	}
	s.mu.Lock()
	records, err := s.load(ctx)
	s.mu.Unlock()
	if err != nil {
		return types.UserStats{}, err
	}

	var mine []model.ScoreRecord
	byGame := map[string]int{}
	for _, r := range records {
		if r.UserID != userID || (gameType != "" && r.GameType != gameType) {
			continue
		}
		mine = append(mine, r)
		byGame[r.GameType]++
	}

	stats := types.UserStats{TotalGames: len(mine), RecentGames: []types.RecentGame{}, ByGameType: byGame}
	if len(mine) == 0 {
		return stats, nil
	}

	best, sum := mine[0].Score, int64(0)
	for _, r := range mine {
		sum += r.Score
		if r.Score < best {
			best = r.Score
		}
	}
	stats.BestScore = &best
	stats.AverageScore = float64(sum) / float64(len(mine))

	sort.SliceStable(mine, func(i, j int) bool { return mine[i].Timestamp.After(mine[j].Timestamp) })
	for i := 0; i < len(mine) && i < recentGamesLimit; i++ {
		stats.RecentGames = append(stats.RecentGames, types.RecentGame{
			GameType: mine[i].GameType, Score: mine[i].Score, Timestamp: mine[i].Timestamp,
		})
	}

	if gameType != "" {
		data, err := s.GetRankings(ctx, gameType, 0)
		if err != nil {
			return types.UserStats{}, err
		}
		if data.UserRank != nil {
			rank := data.UserRank.Rank
			stats.Rank = &rank
		}
	}
	return stats, nil
}

// Records returns the whole ledger, all users and game types.
func (s *Store) Records(ctx context.Context) ([]model.ScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Snapshot returns the ledger as stored, for backups.
func (s *Store) Snapshot(ctx context.Context) ([]byte, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.ScoreRecord{}
	}
	return json.Marshal(records)
}

// RemoveRecords drops the records whose idempotency key is in keys and
// returns how many were removed.
func (s *Store) RemoveRecords(ctx context.Context, keys map[string]struct{}) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	kept := records[:0]
	for _, r := range records {
		if _, drop := keys[r.Key()]; !drop {
			kept = append(kept, r)
		}
	}
	removed := len(records) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := s.save(ctx, kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// Clear deletes the ledger.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Remove(ctx, kv.KeyGlobalScores); err != nil {
		return fmt.Errorf("clear local ledger: %w", err)
	}
	metrics.UpdateLedgerRecords(0)
	return nil
}

// LastSync returns the time of the last successful migration, zero when none.
func (s *Store) LastSync(ctx context.Context) time.Time {
	raw, err := s.kv.Get(ctx, kv.KeyLastSync)
	if err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}
	}
	return t
}

// MarkSynced stamps the last sync time.
func (s *Store) MarkSynced(ctx context.Context, at time.Time) error {
	if err := s.kv.Set(ctx, kv.KeyLastSync, []byte(at.UTC().Format(time.RFC3339Nano))); err != nil {
		return fmt.Errorf("save last sync: %w", err)
	}
	metrics.UpdateLastSync(at.Unix())
	return nil
}
