// Package service wires the storage adapters and the ranking and history
// services from configuration.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/hunterhub/hunter-ranking/internal/adapters/backup"
	"github.com/hunterhub/hunter-ranking/internal/adapters/kv"
	"github.com/hunterhub/hunter-ranking/internal/adapters/repository"
	"github.com/hunterhub/hunter-ranking/internal/adapters/repository/appsync"
	"github.com/hunterhub/hunter-ranking/internal/adapters/repository/dynamo"
	"github.com/hunterhub/hunter-ranking/internal/config"
	"github.com/hunterhub/hunter-ranking/internal/domain/dedupe"
	"github.com/hunterhub/hunter-ranking/internal/history"
	"github.com/hunterhub/hunter-ranking/internal/identity"
	"github.com/hunterhub/hunter-ranking/internal/ranking/cloud"
	"github.com/hunterhub/hunter-ranking/internal/ranking/hybrid"
	"github.com/hunterhub/hunter-ranking/internal/ranking/local"
	"github.com/hunterhub/hunter-ranking/pkg/logger"
	"github.com/hunterhub/hunter-ranking/pkg/metrics"
)

// ErrNotStarted is returned by accessors used before Start.
var ErrNotStarted = errors.New("service not started")

// Service owns the storage clients and the services built on them.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Storage, either injected or built on Start.
	store    kv.Store
	remote   repository.Store
	uploader backup.Uploader
	redis    *redis.Client

	// Services
	ident     identity.Provider
	ledger    *local.Store
	cloud     *cloud.Service
	rankings  *hybrid.Service
	histories *history.Service

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithKVStore uses store instead of the configured kv backend.
func WithKVStore(store kv.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithRemoteStore uses remote instead of the configured remote backend.
func WithRemoteStore(remote repository.Store) Option {
	return func(s *Service) {
		s.remote = remote
	}
}

// WithBackupUploader uses u for off-site ledger backups instead of the
// configured bucket.
func WithBackupUploader(u backup.Uploader) Option {
	return func(s *Service) {
		s.uploader = u
	}
}

// New constructs a Service for cfg. Nothing is dialed until Start.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start connects the storage backends, builds the services and starts the
// auto-sync scheduler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("app")
	}
	s.logger.Info(ctx, "starting ranking service...")

	if err := s.openStores(ctx); err != nil {
		s.closeStores()
		return err
	}

	cfg := s.cfg
	switch cfg.IdentityMode {
	case config.IdentityLocal:
		s.ident = identity.NewLocalProvider(s.store)
	default:
		s.ident = identity.NewHeaderProvider(s.store)
	}

	archiveOpts := []backup.Option{backup.WithPrefix(cfg.BackupPrefix)}
	if s.uploader != nil {
		archiveOpts = append(archiveOpts, backup.WithUploader(s.uploader))
	}

	s.ledger = local.New(s.store, s.ident)
	s.cloud = cloud.New(s.remote, s.ident,
		cloud.WithProfileCacheTTL(cfg.ProfileCacheTTL()),
		cloud.WithEnrichConcurrency(cfg.EnrichConcurrency),
		cloud.WithPushRetries(cfg.PushRetries),
		cloud.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.PushedKeysSize))),
		cloud.WithArchiver(backup.NewArchiver(s.store, archiveOpts...)),
	)
	s.rankings = hybrid.New(s.ledger, s.cloud, s.ident, hybrid.WithConfig(hybrid.Config{
		UseCloud:        cfg.UseCloud,
		FallbackToLocal: cfg.FallbackToLocal,
		AutoSync:        cfg.AutoSync,
		SyncInterval:    cfg.SyncIntervalMinutes,
	}))
	s.histories = history.New(s.remote, s.store, s.ident, history.WithLocalKeep(cfg.HistoryLocalKeep))

	s.rankings.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "ranking service started",
		logger.String("kv_backend", cfg.KVBackend),
		logger.String("remote_backend", cfg.RemoteBackend),
		logger.String("identity_mode", cfg.IdentityMode),
		logger.Bool("use_cloud", cfg.UseCloud),
		logger.Bool("auto_sync", cfg.AutoSync),
	)
	return nil
}

// openStores dials whatever was not injected.
func (s *Service) openStores(ctx context.Context) error {
	cfg := s.cfg

	if s.store == nil {
		var (
			store kv.Store
			err   error
		)
		switch cfg.KVBackend {
		case config.KVFile:
			store, err = kv.NewFile(cfg.KVDir)
		case config.KVRedis:
			var r *kv.Redis
			r, s.redis, err = kv.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
			store = r
		default:
			store = kv.NewMemory(kv.WithQuota(cfg.KVQuotaBytes))
		}
		if err != nil {
			return fmt.Errorf("open %s kv store: %w", cfg.KVBackend, err)
		}
		s.store = kv.Instrument(store, cfg.KVBackend)
	}

	if s.remote == nil {
		var (
			remote repository.Store
			err    error
		)
		switch cfg.RemoteBackend {
		case config.RemoteDynamo:
			remote, err = dynamo.Dial(ctx, cfg.AWSRegion, cfg.DynamoEndpoint, dynamo.Tables{
				Scores:       cfg.DynamoScoreTable,
				Histories:    cfg.DynamoHistoryTable,
				Profiles:     cfg.DynamoProfileTable,
				ProfileIndex: cfg.DynamoProfileIndex,
			})
		case config.RemoteAppSync:
			remote = appsync.New(cfg.AppSyncURL, cfg.AppSyncAPIKey,
				appsync.WithHTTPClient(&http.Client{Timeout: cfg.RemoteTimeout()}))
		default:
			remote = repository.NewMemoryStore()
		}
		if err != nil {
			return fmt.Errorf("open %s remote store: %w", cfg.RemoteBackend, err)
		}
		s.remote = repository.Instrument(remote)
	}

	if s.uploader == nil && cfg.BackupBucket != "" {
		u, err := backup.DialS3(ctx, backup.S3Config{
			Bucket:          cfg.BackupBucket,
			Endpoint:        cfg.BackupEndpoint,
			Region:          cfg.BackupRegion,
			AccessKeyID:     cfg.BackupAccessKeyID,
			SecretAccessKey: cfg.BackupSecretAccessKey,
		})
		if err != nil {
			return fmt.Errorf("open backup bucket: %w", err)
		}
		s.uploader = u
	}
	return nil
}

func (s *Service) closeStores() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn(context.Background(), "redis close failed", logger.Error(err))
		}
		s.redis = nil
	}
}

// Stop halts the auto-sync scheduler and closes the storage clients.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping ranking service...")
	s.rankings.Stop()
	s.closeStores()

	s.started = false
	s.logger.Info(context.Background(), "ranking service stopped")
}

// Rankings returns the hybrid ranking façade.
func (s *Service) Rankings() (*hybrid.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.rankings, nil
}

// Histories returns the game history service.
func (s *Service) Histories() (*history.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.histories, nil
}

// Identity returns the identity provider.
func (s *Service) Identity() (identity.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.ident, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"kvBackend":     s.cfg.KVBackend,
		"remoteBackend": s.cfg.RemoteBackend,
		"identityMode":  s.cfg.IdentityMode,
	}

	if s.started {
		if records, err := s.ledger.Records(ctx); err == nil {
			stats["ledgerRecords"] = len(records)
			metrics.UpdateLedgerRecords(len(records))
		}
		if last := s.ledger.LastSync(ctx); !last.IsZero() {
			stats["lastSync"] = last
			metrics.UpdateLastSync(last.Unix())
		}
		cfg := s.rankings.Config()
		stats["useCloud"] = cfg.UseCloud
		stats["autoSync"] = s.rankings.AutoSyncScheduled()
	}

	return stats
}
