// Package kv is the local key-value storage the ranking ledger, the history
// fallback lists and the anonymous identity are persisted in.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Well-known keys.
const (
	KeyGlobalScores = "hunterhub_global_scores"
	KeyScoresBackup = "hunterhub_global_scores_backup"
	KeyLastSync     = "hunterhub_last_ranking_sync"
	KeyUserProfile  = "hunterhub_user_profile"
)

// Store is a string-keyed blob store. Values are opaque bytes, usually JSON.
type Store interface {
	// Get returns ErrNotFound when key has never been set or was removed.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set returns ErrQuota when the backend refuses the write for lack of space.
	Set(ctx context.Context, key string, value []byte) error
	// Remove is a no-op for unknown keys.
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// GetJSON decodes the value of key into v. Missing keys yield ErrNotFound.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// IsMissing reports whether err means the value is absent or unreadable,
// in which case callers start from an empty value.
func IsMissing(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorrupt)
}
