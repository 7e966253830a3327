// Package backup archives the local score ledger before migrated records are
// removed from it: always under the backup kv key, and to an S3 compatible
// bucket when one is configured.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/hunterhub/hunter-ranking/internal/adapters/kv"
	"github.com/hunterhub/hunter-ranking/pkg/logger"
)

// Uploader stores an object under key.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) error
}

// Archiver writes ledger snapshots.
type Archiver struct {
	store    kv.Store
	uploader Uploader
	prefix   string
	now      func() time.Time
	log      logger.Logger
}

// Option applies a configuration option to the Archiver.
type Option func(*Archiver)

// WithUploader enables off-site copies.
func WithUploader(u Uploader) Option {
	return func(a *Archiver) {
		a.uploader = u
	}
}

// WithPrefix sets the object key prefix, "ledger/" by default.
func WithPrefix(prefix string) Option {
	return func(a *Archiver) {
		if prefix != "" {
			a.prefix = prefix
		}
	}
}

// WithClock replaces time.Now for object naming.
func WithClock(now func() time.Time) Option {
	return func(a *Archiver) {
		a.now = now
	}
}

// NewArchiver creates an archiver that always keeps the latest snapshot in store.
func NewArchiver(store kv.Store, opts ...Option) *Archiver {
	a := &Archiver{store: store, prefix: "ledger/", now: time.Now, log: logger.Named("backup")}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Archive saves payload locally and, when an uploader is configured, as
// <prefix><timestamp>.json. The local copy must succeed; an upload failure is
// logged and returned so callers can decide whether to proceed.
func (a *Archiver) Archive(ctx context.Context, payload []byte) (string, error) {
	if err := a.store.Set(ctx, kv.KeyScoresBackup, payload); err != nil {
		return "", fmt.Errorf("save local ledger backup: %w", err)
	}
	if a.uploader == nil {
		return "", nil
	}
	key := path.Join(a.prefix, a.now().UTC().Format("20060102T150405.000000000Z")+".json")
	if err := a.uploader.Upload(ctx, key, "application/json", bytes.NewReader(payload)); err != nil {
		a.log.Warn(ctx, "ledger upload failed", logger.String("key", key), logger.Error(err))
		return "", fmt.Errorf("upload ledger backup %s: %w", key, err)
	}
	a.log.Info(ctx, "ledger uploaded", logger.String("key", key), logger.Int("bytes", len(payload)))
	return key, nil
}
