// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - Flat koanf keys so env vars map 1:1 (HUNTER_USE_CLOUD -> use_cloud).
//   - New returns defaults, Load layers .env, file and env over them.
//   - Durations are carried as integer minutes or seconds in the key name.
package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by the storage selectors.
const (
	KVMemory = "memory"
	KVFile   = "file"
	KVRedis  = "redis"

	RemoteMemory  = "memory"
	RemoteDynamo  = "dynamo"
	RemoteAppSync = "appsync"

	IdentityHeader = "header"
	IdentityLocal  = "local"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`
	// CORSOrigins is a comma separated list of allowed browser origins.
	CORSOrigins string `koanf:"cors_origins"`
	// MaxRankingsLimit caps GET /rankings/{gameType}?limit.
	MaxRankingsLimit int `koanf:"max_rankings_limit"`

	// KVBackend selects local storage: memory, file or redis.
	KVBackend     string `koanf:"kv_backend"`
	KVDir         string `koanf:"kv_dir"`
	KVQuotaBytes  int    `koanf:"kv_quota_bytes"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisPrefix   string `koanf:"redis_prefix"`

	// RemoteBackend selects the cloud store: memory, dynamo or appsync.
	RemoteBackend      string `koanf:"remote_backend"`
	AWSRegion          string `koanf:"aws_region"`
	DynamoEndpoint     string `koanf:"dynamo_endpoint"`
	DynamoScoreTable   string `koanf:"dynamo_score_table"`
	DynamoHistoryTable string `koanf:"dynamo_history_table"`
	DynamoProfileTable string `koanf:"dynamo_profile_table"`
	DynamoProfileIndex string `koanf:"dynamo_profile_index"`
	AppSyncURL         string `koanf:"appsync_url"`
	AppSyncAPIKey      string `koanf:"appsync_api_key"`
	RemoteTimeoutSec   int    `koanf:"remote_timeout_seconds"`

	// Hybrid façade switches.
	UseCloud            bool `koanf:"use_cloud"`
	FallbackToLocal     bool `koanf:"fallback_to_local"`
	AutoSync            bool `koanf:"auto_sync"`
	SyncIntervalMinutes int  `koanf:"sync_interval_minutes"`

	// Cloud adapter tuning.
	ProfileCacheTTLSec int `koanf:"profile_cache_ttl_seconds"`
	EnrichConcurrency  int `koanf:"enrich_concurrency"`
	PushRetries        int `koanf:"push_retries"`
	PushedKeysSize     int `koanf:"pushed_keys_size"`

	// HistoryLocalKeep bounds the per game type local history fallback.
	HistoryLocalKeep int `koanf:"history_local_keep"`

	// Ledger backup to an S3 compatible bucket. Empty bucket disables upload.
	BackupBucket          string `koanf:"backup_bucket"`
	BackupEndpoint        string `koanf:"backup_endpoint"`
	BackupRegion          string `koanf:"backup_region"`
	BackupAccessKeyID     string `koanf:"backup_access_key_id"`
	BackupSecretAccessKey string `koanf:"backup_secret_access_key"`
	BackupPrefix          string `koanf:"backup_prefix"`

	// IdentityMode is "header" (per request) or "local" (single persisted user).
	IdentityMode string `koanf:"identity_mode"`

	// Prometheus naming. MetricsLatencyBucketsMs is a comma separated list;
	// empty keeps the client defaults. MetricsEnvironment, when set, is
	// attached to every series as the env label.
	MetricsNamespace        string `koanf:"metrics_namespace"`
	MetricsSubsystem        string `koanf:"metrics_subsystem"`
	MetricsLatencyBucketsMs string `koanf:"metrics_latency_buckets_ms"`
	MetricsEnvironment      string `koanf:"metrics_environment"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		CORSOrigins:         "*",
		MaxRankingsLimit:    100,
		KVBackend:           KVMemory,
		KVDir:               "./data",
		RedisAddr:           "localhost:6379",
		RedisPrefix:         "hunter:",
		RemoteBackend:       RemoteMemory,
		AWSRegion:           "ap-northeast-1",
		DynamoScoreTable:    "GameScore",
		DynamoHistoryTable:  "GameHistory",
		DynamoProfileTable:  "UserProfile",
		DynamoProfileIndex:  "byUserId",
		RemoteTimeoutSec:    10,
		UseCloud:            true,
		FallbackToLocal:     true,
		AutoSync:            false,
		SyncIntervalMinutes: 5,
		ProfileCacheTTLSec:  30,
		EnrichConcurrency:   8,
		PushRetries:         2,
		PushedKeysSize:      50_000,
		HistoryLocalKeep:    10,
		BackupRegion:        "auto",
		BackupPrefix:        "ledger/",
		IdentityMode:        IdentityHeader,
		MetricsNamespace:    "hunter",
		MetricsSubsystem:    "ranking",
	}
}

// AllowedOrigins splits CORSOrigins into trimmed, non-empty entries.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// SyncInterval returns the auto-sync period.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMinutes) * time.Minute
}

// ProfileCacheTTL returns how long remote profiles are cached.
func (c *Config) ProfileCacheTTL() time.Duration {
	return time.Duration(c.ProfileCacheTTLSec) * time.Second
}

// RemoteTimeout returns the per call timeout for the remote store.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.RemoteTimeoutSec) * time.Second
}

// LatencyBuckets parses MetricsLatencyBucketsMs into ascending bucket bounds.
func (c *Config) LatencyBuckets() ([]float64, error) {
	var out []float64
	for _, f := range strings.Split(c.MetricsLatencyBucketsMs, ",") {
		if f = strings.TrimSpace(f); f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("bad latency bucket %q", f)
		}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out, nil
}

// MetricsLabels returns the constant labels of every metric series.
func (c *Config) MetricsLabels() map[string]string {
	if c.MetricsEnvironment == "" {
		return nil
	}
	return map[string]string{"env": c.MetricsEnvironment}
}
