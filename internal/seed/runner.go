package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/hunterhub/hunter-ranking/pkg/logger"
)

const (
	outputFilePermission = 0o600
	healthRetries        = 5
)

// Run seeds the service and verifies the rankings it then serves.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	cfg = cfg.withDefaults()
	log := logger.Get().Named("seed")
	stats := Stats{StartTime: time.Now()}
	c := newClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting seed run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("playsPerUser", cfg.PlaysPerUser),
		logger.Any("gameTypes", cfg.GameTypes),
		logger.Int("workers", cfg.Workers))

	if err := waitHealthy(ctx, c); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	users := generateUsers(cfg.Users)
	plays := generatePlays(users, cfg.GameTypes, cfg.PlaysPerUser)
	stats.PlaysGenerated = len(plays)

	if err := submitPlays(ctx, c, cfg.Workers, plays, &stats); err != nil {
		return stats, fmt.Errorf("submission failed: %w", err)
	}

	best := expectedBest(plays)
	caller := &users[0]
	for _, gt := range cfg.GameTypes {
		data, err := c.rankings(ctx, caller, gt, cfg.Limit)
		if err != nil {
			return stats, fmt.Errorf("fetch %s rankings: %w", gt, err)
		}
		if err := verifyRanking(gt, data, best[gt], caller, len(users)); err != nil {
			return stats, err
		}
		stats.GamesVerified++
		log.Info(ctx, "ranking verified",
			logger.String("gameType", gt),
			logger.Int("totalPlayers", data.TotalPlayers),
			logger.Int("totalCount", data.TotalCount))
	}

	if cfg.OutputFile != "" {
		if err := savePlays(cfg.OutputFile, plays); err != nil {
			log.Warn(ctx, "failed to save plays", logger.Error(err))
		}
	}

	stats.Duration = time.Since(stats.StartTime)
	log.Info(ctx, "seed run completed",
		logger.Int("generated", stats.PlaysGenerated),
		logger.Int("stored", stats.PlaysStored),
		logger.Int("dropped", stats.PlaysDropped),
		logger.Int("failed", stats.PlaysFailed),
		logger.Int("gamesVerified", stats.GamesVerified),
		logger.Duration("duration", stats.Duration))
	return stats, nil
}

func waitHealthy(ctx context.Context, c *client) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), healthRetries), ctx)
	return backoff.Retry(func() error { return c.health(ctx) }, b)
}

// submitPlays posts every play with at most workers requests in flight. A
// failed request is counted, not fatal; only cancellation stops the run.
func submitPlays(ctx context.Context, c *client, workers int, plays []Play, stats *Stats) error {
	var stored, dropped, failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range plays {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			ack, err := c.submit(gctx, p)
			switch {
			case err != nil:
				atomic.AddInt64(&failed, 1)
				logger.Get().Debug(gctx, "submission failed", logger.String("user", p.UserID), logger.Error(err))
			case ack.Status == "dropped":
				atomic.AddInt64(&dropped, 1)
			default:
				atomic.AddInt64(&stored, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.PlaysStored = int(stored)
	stats.PlaysDropped = int(dropped)
	stats.PlaysFailed = int(failed)
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d submissions failed", failed, len(plays))
	}
	return nil
}

func savePlays(path string, plays []Play) error {
	raw, err := json.MarshalIndent(plays, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plays: %w", err)
	}
	if err := os.WriteFile(path, raw, outputFilePermission); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
