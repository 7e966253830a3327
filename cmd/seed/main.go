package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hunterhub/hunter-ranking/internal/seed"
	"github.com/hunterhub/hunter-ranking/pkg/logger"
)

// Default configuration constants.
const (
	defaultUsers        = 200
	defaultPlaysPerUser = 5
	defaultLimit        = 50
	defaultWorkers      = 16
	defaultTimeout      = 10 * time.Second
	defaultRunTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		users     = flag.Int("users", defaultUsers, "Number of synthetic users")
		plays     = flag.Int("plays", defaultPlaysPerUser, "Plays per user and game type")
		gameTypes = flag.String("games", "reflex,target,sequence", "Comma separated game types")
		limit     = flag.Int("limit", defaultLimit, "Ranking page size to verify")
		workers   = flag.Int("workers", defaultWorkers, "Concurrent submissions")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		output    = flag.String("output", "", "Optional file for the generated plays")
		verbose   = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	var games []string
	for _, g := range strings.Split(*gameTypes, ",") {
		if g = strings.TrimSpace(g); g != "" {
			games = append(games, g)
		}
	}

	_, err := seed.Run(ctx, seed.Config{
		BaseURL:      strings.TrimRight(*baseURL, "/"),
		Users:        *users,
		PlaysPerUser: *plays,
		GameTypes:    games,
		Limit:        *limit,
		Workers:      *workers,
		Timeout:      *timeout,
		OutputFile:   *output,
	})
	if err != nil {
		logger.Get().Error(ctx, "seed run failed", logger.Error(err))
		cancel()
		stop()
		os.Exit(1)
	}
}
