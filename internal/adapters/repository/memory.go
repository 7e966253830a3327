package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/hunterhub/hunter-ranking/internal/domain/model"
)

// FaultFunc decides whether the n-th call (1-based) of op fails.
type FaultFunc func(op string, n int) error

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithFault installs a failure hook consulted before every call.
func WithFault(f FaultFunc) MemoryOption {
	return func(s *MemoryStore) {
		s.fault = f
	}
}

// MemoryStore is an in-process Store for local development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	scores    []model.ScoreRecord
	scoreIDs  map[string]struct{}
	histories []model.HistoryRecord
	histIDs   map[string]struct{}
	profiles  map[string]model.UserProfile // by profile ID
	calls     map[string]int
	fault     FaultFunc
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		scoreIDs: make(map[string]struct{}),
		histIDs:  make(map[string]struct{}),
		profiles: make(map[string]model.UserProfile),
		calls:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetFault replaces the failure hook. A nil hook disables failures.
func (s *MemoryStore) SetFault(f FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

// Calls returns how many times op was invoked, failed calls included.
func (s *MemoryStore) Calls(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

// enter must be called with s.mu held for writing.
func (s *MemoryStore) enter(ctx context.Context, op string) error {
	s.calls[op]++
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.fault != nil {
		if err := s.fault(op, s.calls[op]); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func (s *MemoryStore) CreateGameScore(ctx context.Context, rec model.ScoreRecord) (model.ScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpCreateGameScore); err != nil {
		return model.ScoreRecord{}, err
	}
	rec = rec.WithKey()
	if _, ok := s.scoreIDs[rec.ID]; ok {
		return model.ScoreRecord{}, fmt.Errorf("%s %s: %w", OpCreateGameScore, rec.ID, ErrDuplicate)
	}
	s.scoreIDs[rec.ID] = struct{}{}
	s.scores = append(s.scores, rec)
	return rec, nil
}

func (s *MemoryStore) ListGameScores(ctx context.Context, gameType string) ([]model.ScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpListGameScores); err != nil {
		return nil, err
	}
	out := make([]model.ScoreRecord, 0, len(s.scores))
	for _, r := range s.scores {
		if r.GameType == gameType {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateGameHistory(ctx context.Context, rec model.HistoryRecord) (model.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpCreateGameHistory); err != nil {
		return model.HistoryRecord{}, err
	}
	rec = rec.WithKey()
	if _, ok := s.histIDs[rec.ID]; ok {
		return model.HistoryRecord{}, fmt.Errorf("%s %s: %w", OpCreateGameHistory, rec.ID, ErrDuplicate)
	}
	s.histIDs[rec.ID] = struct{}{}
	s.histories = append(s.histories, rec)
	return rec, nil
}

func (s *MemoryStore) ListGameHistories(ctx context.Context) ([]model.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpListGameHistories); err != nil {
		return nil, err
	}
	return append([]model.HistoryRecord(nil), s.histories...), nil
}

func (s *MemoryStore) GetUserProfile(ctx context.Context, userID string) (model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpGetUserProfile); err != nil {
		return model.UserProfile{}, err
	}
	for _, p := range s.profiles {
		if p.UserID == userID {
			return p, nil
		}
	}
	return model.UserProfile{}, fmt.Errorf("profile of %s: %w", userID, ErrNotFound)
}

func (s *MemoryStore) CreateUserProfile(ctx context.Context, p model.UserProfile) (model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpCreateUserProfile); err != nil {
		return model.UserProfile{}, err
	}
	if _, ok := s.profiles[p.ID]; ok {
		return model.UserProfile{}, fmt.Errorf("%s %s: %w", OpCreateUserProfile, p.ID, ErrDuplicate)
	}
	s.profiles[p.ID] = p
	return p, nil
}

func (s *MemoryStore) UpdateUserProfile(ctx context.Context, p model.UserProfile) (model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpUpdateUserProfile); err != nil {
		return model.UserProfile{}, err
	}
	cur, ok := s.profiles[p.ID]
	if !ok {
		return model.UserProfile{}, fmt.Errorf("%s %s: %w", OpUpdateUserProfile, p.ID, ErrNotFound)
	}
	cur.TotalGamesPlayed++
	cur.LastActiveAt = p.LastActiveAt
	if p.Username != "" {
		cur.Username = p.Username
	}
	s.profiles[p.ID] = cur
	return cur, nil
}
