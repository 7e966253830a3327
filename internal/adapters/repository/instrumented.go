package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hunterhub/hunter-ranking/internal/domain/model"
	"github.com/hunterhub/hunter-ranking/pkg/metrics"
)

// Instrumented records latency and failures of every call of the wrapped Store.
// ErrNotFound and ErrDuplicate are expected outcomes and do not count as failures.
type Instrumented struct {
	next Store
}

// Instrument wraps next with remote call metrics.
func Instrument(next Store) *Instrumented {
	return &Instrumented{next: next}
}

func observe(op string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) {
		err = nil
	}
	metrics.RecordRemoteCall(op, float64(time.Since(start).Milliseconds()), err)
}

func (i *Instrumented) CreateGameScore(ctx context.Context, rec model.ScoreRecord) (model.ScoreRecord, error) {
	start := time.Now()
	out, err := i.next.CreateGameScore(ctx, rec)
	observe(OpCreateGameScore, start, err)
	return out, err
}

func (i *Instrumented) ListGameScores(ctx context.Context, gameType string) ([]model.ScoreRecord, error) {
	start := time.Now()
	out, err := i.next.ListGameScores(ctx, gameType)
	observe(OpListGameScores, start, err)
	return out, err
}

func (i *Instrumented) CreateGameHistory(ctx context.Context, rec model.HistoryRecord) (model.HistoryRecord, error) {
	start := time.Now()
	out, err := i.next.CreateGameHistory(ctx, rec)
	observe(OpCreateGameHistory, start, err)
	return out, err
}

func (i *Instrumented) ListGameHistories(ctx context.Context) ([]model.HistoryRecord, error) {
	start := time.Now()
	out, err := i.next.ListGameHistories(ctx)
	observe(OpListGameHistories, start, err)
	return out, err
}

func (i *Instrumented) GetUserProfile(ctx context.Context, userID string) (model.UserProfile, error) {
	start := time.Now()
	out, err := i.next.GetUserProfile(ctx, userID)
	observe(OpGetUserProfile, start, err)
	return out, err
}

func (i *Instrumented) CreateUserProfile(ctx context.Context, p model.UserProfile) (model.UserProfile, error) {
	start := time.Now()
	out, err := i.next.CreateUserProfile(ctx, p)
	observe(OpCreateUserProfile, start, err)
	return out, err
}

func (i *Instrumented) UpdateUserProfile(ctx context.Context, p model.UserProfile) (model.UserProfile, error) {
	start := time.Now()
	out, err := i.next.UpdateUserProfile(ctx, p)
	observe(OpUpdateUserProfile, start, err)
	return out, err
}
