package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "HUNTER_"
	envConfigFile = "HUNTER_CONFIG"
	envDotEnvFile = "HUNTER_DOTENV"
	defaultDotEnv = ".env"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. .env file (HUNTER_DOTENV or ./.env), only for vars not already set
//  3. file (YAML) if HUNTER_CONFIG is set
//  4. env (prefix HUNTER_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	if err := loadDotEnv(); err != nil {
		return nil, fmt.Errorf("%w: dotenv: %w", ErrLoadConfig, err)
	}

	k := koanf.New(".")

	if path := os.Getenv(envConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: file %s: %w", ErrLoadConfig, path, err)
		}
	}

	// HUNTER_USE_CLOUD -> use_cloud. Underscores are preserved to match
	// the flat koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv(envDotEnvFile)
	if path == "" {
		path = defaultDotEnv
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// Validate reports the first invalid setting wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Addr) == "" {
		return invalid("addr must not be empty")
	}
	if c.MaxRankingsLimit < 1 {
		return invalid("max_rankings_limit must be positive")
	}

	switch c.KVBackend {
	case KVMemory:
	case KVFile:
		if c.KVDir == "" {
			return invalid("kv_dir is required for the file backend")
		}
	case KVRedis:
		if c.RedisAddr == "" {
			return invalid("redis_addr is required for the redis backend")
		}
	default:
		return invalid("unknown kv_backend %q", c.KVBackend)
	}

	switch c.RemoteBackend {
	case RemoteMemory:
	case RemoteDynamo:
		if c.DynamoScoreTable == "" || c.DynamoHistoryTable == "" || c.DynamoProfileTable == "" {
			return invalid("dynamo table names must not be empty")
		}
	case RemoteAppSync:
		if c.AppSyncURL == "" {
			return invalid("appsync_url is required for the appsync backend")
		}
	default:
		return invalid("unknown remote_backend %q", c.RemoteBackend)
	}

	switch c.IdentityMode {
	case IdentityHeader, IdentityLocal:
	default:
		return invalid("unknown identity_mode %q", c.IdentityMode)
	}

	if c.AutoSync && c.SyncIntervalMinutes < 1 {
		return invalid("sync_interval_minutes must be positive when auto_sync is on")
	}
	if c.HistoryLocalKeep < 1 {
		return invalid("history_local_keep must be positive")
	}
	if strings.TrimSpace(c.MetricsNamespace) == "" {
		return invalid("metrics_namespace must not be empty")
	}
	if _, err := c.LatencyBuckets(); err != nil {
		return invalid("metrics_latency_buckets_ms: %v", err)
	}
	return nil
}
