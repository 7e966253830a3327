// Package hybrid is the single ranking entry point. Writes go to the local
// ledger and, when enabled, to the cloud; neither failure reaches the
// caller. Reads try the cloud first, then the local ledger, then an empty
// default.
package hybrid

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hunterhub/hunter-ranking/internal/domain/model"
	"github.com/hunterhub/hunter-ranking/internal/domain/types"
	"github.com/hunterhub/hunter-ranking/internal/identity"
	"github.com/hunterhub/hunter-ranking/internal/ranking/cloud"
	"github.com/hunterhub/hunter-ranking/pkg/logger"
	"github.com/hunterhub/hunter-ranking/pkg/metrics"
)

// Read operation names used in logs and metrics.
const (
	opRankings   = "rankings"
	opScoreRank  = "score_rank"
	opTopPlayer  = "top_player"
	opTopPlayers = "top_players"
	opPlayCount  = "play_count"
)

// Local is the on-device ledger.
type Local interface {
	cloud.Ledger
	NewRecord(ctx context.Context, gameType string, score int64, metadata json.RawMessage) (model.ScoreRecord, error)
	Append(ctx context.Context, rec model.ScoreRecord) error
	GetRankings(ctx context.Context, gameType string, limit int) (types.RankingData, error)
	CurrentScoreRank(ctx context.Context, gameType string, score int64) (types.ScoreRank, error)
	GetTopPlayer(ctx context.Context, gameType string) (*types.RankingEntry, error)
	GetAllTopPlayers(ctx context.Context) (types.TopPlayers, error)
	GetUserStats(ctx context.Context, gameType string) (types.UserStats, error)
	LastSync(ctx context.Context) time.Time
	MarkSynced(ctx context.Context, at time.Time) error
}

// Cloud is the remote ranking adapter.
type Cloud interface {
	SubmitRecord(ctx context.Context, rec model.ScoreRecord) (model.ScoreRecord, error)
	GetRankings(ctx context.Context, gameType string, limit int) (types.RankingData, error)
	CurrentScoreRank(ctx context.Context, gameType string, score int64) (types.ScoreRank, error)
	GetTopPlayer(ctx context.Context, gameType string) (*types.RankingEntry, error)
	GetAllTopPlayers(ctx context.Context) (types.TopPlayers, error)
	TotalPlayCount(ctx context.Context, gameType string) (int, error)
	UserPlayCount(ctx context.Context, gameType string) (int, error)
	MigrateFromLocal(ctx context.Context, ledger cloud.Ledger) (cloud.MigrationReport, error)
}

// SubmitResult reports which paths accepted a score.
type SubmitResult struct {
	Record model.ScoreRecord `json:"record"`
	Local  bool              `json:"local"`
	Cloud  bool              `json:"cloud"`
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the initial switches.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service is the hybrid ranking façade.
type Service struct {
	local Local
	cloud Cloud
	ident identity.Provider
	now   func() time.Time
	log   logger.Logger

	mu  sync.RWMutex
	cfg Config

	// migrateMu serialises manual and scheduled migrations.
	migrateMu sync.Mutex

	cronMu    sync.Mutex
	scheduler *cron.Cron
	syncEntry cron.EntryID
	syncCtx   context.Context
}

// New creates the façade.
func New(local Local, remote Cloud, ident identity.Provider, opts ...Option) *Service {
	s := &Service{
		local: local,
		cloud: remote,
		ident: ident,
		now:   time.Now,
		log:   logger.Named("hybrid_ranking"),
		cfg:   DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the current switches.
func (s *Service) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// UpdateConfig merges u into the switches and reschedules auto sync.
func (s *Service) UpdateConfig(u ConfigUpdate) Config {
	s.mu.Lock()
	s.cfg = s.cfg.Apply(u)
	cfg := s.cfg
	s.mu.Unlock()

	s.log.Info(context.Background(), "ranking config updated",
		logger.Bool("use_cloud", cfg.UseCloud), logger.Bool("fallback_to_local", cfg.FallbackToLocal),
		logger.Bool("auto_sync", cfg.AutoSync), logger.Int("sync_interval_minutes", cfg.SyncInterval))
	s.reschedule()
	return cfg
}

// SubmitScore writes the score locally and then, in cloud mode, remotely.
// Both writes carry the same record so a later migration does not
// duplicate it. Failures are logged and reported in the result only.
func (s *Service) SubmitScore(ctx context.Context, gameType string, score int64, metadata json.RawMessage) SubmitResult {
	var res SubmitResult

	rec, err := s.local.NewRecord(ctx, gameType, score, metadata)
	if err != nil {
		s.log.Error(ctx, "cannot build score record", logger.String("game_type", gameType), logger.Error(err))
		return res
	}
	res.Record = rec

	if err := s.local.Append(ctx, rec); err != nil {
		s.log.Error(ctx, "local score save failed", logger.String("game_type", gameType), logger.Error(err))
	} else {
		res.Local = true
	}
	if err := s.ident.IncrementGameCount(ctx); err != nil {
		s.log.Warn(ctx, "game count not updated", logger.Error(err))
	}

	if s.Config().UseCloud {
		if _, err := s.cloud.SubmitRecord(ctx, rec); err != nil {
			s.log.Error(ctx, "cloud score save failed", logger.String("game_type", gameType), logger.Error(err))
		} else {
			res.Cloud = true
		}
	}
	return res
}

// read runs the cloud call, falls back to the local call and finally to
// zero. With FallbackToLocal off a cloud error is returned as is.
func read[T any](ctx context.Context, s *Service, op string, fromCloud, fromLocal func() (T, error), zero func() T) (T, error) {
	cfg := s.Config()
	if cfg.UseCloud {
		v, err := fromCloud()
		if err == nil {
			metrics.RecordRankingRead(op, metrics.PathCloud)
			return v, nil
		}
		if !cfg.FallbackToLocal {
			var empty T
			return empty, err
		}
		metrics.RecordFallback(op)
		s.log.Warn(ctx, "cloud read failed, using local data", logger.String("operation", op), logger.Error(err))
	}

	v, err := fromLocal()
	if err == nil {
		metrics.RecordRankingRead(op, metrics.PathLocal)
		return v, nil
	}
	s.log.Error(ctx, "local read failed, using defaults", logger.String("operation", op), logger.Error(err))
	metrics.RecordRankingRead(op, metrics.PathDefault)
	return zero(), nil
}

// GetRankings returns the best score of each user for gameType.
func (s *Service) GetRankings(ctx context.Context, gameType string, limit int) (types.RankingData, error) {
	return read(ctx, s, opRankings,
		func() (types.RankingData, error) { return s.cloud.GetRankings(ctx, gameType, limit) },
		func() (types.RankingData, error) { return s.local.GetRankings(ctx, gameType, limit) },
		func() types.RankingData { return types.EmptyRankingData(s.now().UTC()) },
	)
}

// GetCurrentScoreRank places a candidate score among the other players.
func (s *Service) GetCurrentScoreRank(ctx context.Context, gameType string, score int64) (types.ScoreRank, error) {
	return read(ctx, s, opScoreRank,
		func() (types.ScoreRank, error) { return s.cloud.CurrentScoreRank(ctx, gameType, score) },
		func() (types.ScoreRank, error) { return s.local.CurrentScoreRank(ctx, gameType, score) },
		func() types.ScoreRank { return types.ScoreRank{} },
	)
}

// GetTopPlayer returns the rank one entry of gameType, nil when unknown.
func (s *Service) GetTopPlayer(ctx context.Context, gameType string) (*types.RankingEntry, error) {
	return read(ctx, s, opTopPlayer,
		func() (*types.RankingEntry, error) { return s.cloud.GetTopPlayer(ctx, gameType) },
		func() (*types.RankingEntry, error) { return s.local.GetTopPlayer(ctx, gameType) },
		func() *types.RankingEntry { return nil },
	)
}

// GetAllTopPlayers returns the top player of every game type.
func (s *Service) GetAllTopPlayers(ctx context.Context) (types.TopPlayers, error) {
	return read(ctx, s, opTopPlayers,
		func() (types.TopPlayers, error) { return s.cloud.GetAllTopPlayers(ctx) },
		func() (types.TopPlayers, error) { return s.local.GetAllTopPlayers(ctx) },
		func() types.TopPlayers {
			out := make(types.TopPlayers)
			for _, gt := range model.GameTypes() {
				out[gt] = nil
			}
			return out
		},
	)
}

// GetTotalPlayCount counts every play of gameType.
func (s *Service) GetTotalPlayCount(ctx context.Context, gameType string) (int, error) {
	return read(ctx, s, opPlayCount,
		func() (int, error) { return s.cloud.TotalPlayCount(ctx, gameType) },
		func() (int, error) {
			data, err := s.local.GetRankings(ctx, gameType, 1)
			return data.TotalCount, err
		},
		func() int { return 0 },
	)
}

// GetUserPlayCount counts the caller's plays of gameType.
func (s *Service) GetUserPlayCount(ctx context.Context, gameType string) (int, error) {
	return read(ctx, s, opPlayCount,
		func() (int, error) { return s.cloud.UserPlayCount(ctx, gameType) },
		func() (int, error) {
			stats, err := s.local.GetUserStats(ctx, gameType)
			return stats.TotalGames, err
		},
		func() int { return 0 },
	)
}

// GetUserStats aggregates the caller's local records. A failing ledger
// yields empty stats.
func (s *Service) GetUserStats(ctx context.Context, gameType string) types.UserStats {
	stats, err := s.local.GetUserStats(ctx, gameType)
	if err != nil {
		s.log.Error(ctx, "user stats unavailable", logger.Error(err))
		return types.UserStats{RecentGames: []types.RecentGame{}}
	}
	return stats
}

// MigrateToCloud pushes the local ledger to the cloud, then switches reads
// to the cloud. The sync time is stamped when no record failed.
func (s *Service) MigrateToCloud(ctx context.Context) (cloud.MigrationReport, error) {
	report, err := s.sync(ctx)
	if err != nil {
		return report, err
	}
	s.mu.Lock()
	s.cfg.UseCloud = true
	s.mu.Unlock()
	return report, nil
}

func (s *Service) sync(ctx context.Context) (cloud.MigrationReport, error) {
	s.migrateMu.Lock()
	defer s.migrateMu.Unlock()

	report, err := s.cloud.MigrateFromLocal(ctx, s.local)
	if err != nil {
		s.log.Error(ctx, "migration to cloud failed", logger.Error(err))
		return report, err
	}
	if report.Failed == 0 {
		if err := s.local.MarkSynced(ctx, s.now()); err != nil {
			s.log.Warn(ctx, "last sync time not saved", logger.Error(err))
		}
	}
	return report, nil
}

// GetSystemStatus probes both paths with a one entry ranking read.
func (s *Service) GetSystemStatus(ctx context.Context) types.SystemStatus {
	var status types.SystemStatus
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := s.local.GetRankings(ctx, model.GameReflex, 1)
		status.LocalAvailable = err == nil
	}()
	go func() {
		defer wg.Done()
		_, err := s.cloud.GetRankings(ctx, model.GameReflex, 1)
		status.CloudAvailable = err == nil
	}()
	wg.Wait()

	switch {
	case status.CloudAvailable && status.LocalAvailable && s.Config().UseCloud:
		status.Mode = types.ModeHybrid
	case status.CloudAvailable && s.Config().UseCloud:
		status.Mode = types.ModeCloud
	default:
		status.Mode = types.ModeLocal
	}
	status.LastSync = s.local.LastSync(ctx)
	return status
}
