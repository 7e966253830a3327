package cloud

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/cenkalti/backoff/v4"

	"github.com/hunterhub/hunter-ranking/internal/adapters/repository"
	"github.com/hunterhub/hunter-ranking/internal/domain/model"
	"github.com/hunterhub/hunter-ranking/pkg/logger"
	"github.com/hunterhub/hunter-ranking/pkg/metrics"
)

const migrationKind = "scores"

// Ledger is the local record set a migration reads and trims.
type Ledger interface {
	Records(ctx context.Context) ([]model.ScoreRecord, error)
	Snapshot(ctx context.Context) ([]byte, error)
	RemoveRecords(ctx context.Context, keys map[string]struct{}) (int, error)
}

// Archiver keeps a copy of the ledger before records are removed from it.
type Archiver interface {
	Archive(ctx context.Context, payload []byte) (string, error)
}

// MigrationReport summarises one migration run.
type MigrationReport struct {
	Pushed  int `json:"pushed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Cleared int `json:"cleared"`
	// Backup is the object key of the uploaded ledger copy, empty when none was uploaded.
	Backup string `json:"backup,omitempty"`
}

// MigrateFromLocal pushes every ledger record to the remote store, one batch
// per game type. Records keep their owner, timestamp and idempotency key.
// A failed record is logged and skipped. Only batches in which every record
// reached the remote store are removed from the ledger, after the ledger
// has been archived.
func (s *Service) MigrateFromLocal(ctx context.Context, ledger Ledger) (MigrationReport, error) {
	var report MigrationReport

	records, err := ledger.Records(ctx)
	if err != nil {
		metrics.RecordMigrationRun(migrationKind, metrics.OutcomeError)
		return report, fmt.Errorf("read local ledger: %w", err)
	}
	if len(records) == 0 {
		s.log.Info(ctx, "no local scores to migrate")
		metrics.RecordMigrationRun(migrationKind, metrics.OutcomeOK)
		return report, nil
	}

	done := make(map[string]struct{})
	for _, batch := range batchesByGame(records) {
		keys, ok := s.pushBatch(ctx, batch, &report)
		if err := ctx.Err(); err != nil {
			metrics.RecordMigrationRun(migrationKind, metrics.OutcomeError)
			return report, fmt.Errorf("migration interrupted: %w", err)
		}
		if !ok {
			s.log.Warn(ctx, "batch kept locally after partial failure",
				logger.String("game_type", batch[0].GameType), logger.Int("records", len(batch)))
			continue
		}
		for k := range keys {
			done[k] = struct{}{}
		}
	}

	if len(done) > 0 {
		if err := s.clear(ctx, ledger, done, &report); err != nil {
			metrics.RecordMigrationRun(migrationKind, metrics.OutcomeError)
			return report, err
		}
	}

	outcome := metrics.OutcomeOK
	if report.Failed > 0 {
		outcome = metrics.OutcomeError
	}
	metrics.RecordMigrationRun(migrationKind, outcome)
	s.log.Info(ctx, "score migration finished",
		logger.Int("pushed", report.Pushed), logger.Int("skipped", report.Skipped),
		logger.Int("failed", report.Failed), logger.Int("cleared", report.Cleared))
	return report, nil
}

// pushBatch pushes one game type and reports whether every record made it.
func (s *Service) pushBatch(ctx context.Context, batch []model.ScoreRecord, report *MigrationReport) (map[string]struct{}, bool) {
	keys := make(map[string]struct{}, len(batch))
	ok := true
	for _, rec := range batch {
		rec = rec.WithKey()
		key := rec.Key()
		if s.pushed.SeenAndRecord(ctx, key) {
			report.Skipped++
			metrics.RecordMigrationRecord(migrationKind, "skipped")
			keys[key] = struct{}{}
			continue
		}
		if err := s.push(ctx, rec); err != nil {
			s.pushed.Unrecord(ctx, key)
			report.Failed++
			ok = false
			metrics.RecordMigrationRecord(migrationKind, metrics.OutcomeError)
			s.log.Error(ctx, "failed to migrate score",
				logger.String("user_id", rec.UserID), logger.String("game_type", rec.GameType),
				logger.Int64("score", rec.Score), logger.Error(err))
			if ctx.Err() != nil {
				return keys, false
			}
			continue
		}
		report.Pushed++
		metrics.RecordMigrationRecord(migrationKind, metrics.OutcomeOK)
		keys[key] = struct{}{}
	}
	return keys, ok
}

// push writes rec with exponential backoff. A duplicate means an earlier
// attempt already landed.
func (s *Service) push(ctx context.Context, rec model.ScoreRecord) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.pushRetries)), ctx)

	return backoff.Retry(func() error {
		_, err := s.repo.CreateGameScore(ctx, rec)
		if err == nil || errors.Is(err, repository.ErrDuplicate) {
			return nil
		}
		return err
	}, policy)
}

func (s *Service) clear(ctx context.Context, ledger Ledger, keys map[string]struct{}, report *MigrationReport) error {
	if s.archiver != nil {
		snapshot, err := ledger.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrArchive, err)
		}
		key, err := s.archiver.Archive(ctx, snapshot)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrArchive, err)
		}
		report.Backup = key
	}

	n, err := ledger.RemoveRecords(ctx, keys)
	if err != nil {
		return fmt.Errorf("remove migrated records: %w", err)
	}
	report.Cleared = n
	return nil
}

// batchesByGame groups records by game type, known game types first.
func batchesByGame(records []model.ScoreRecord) [][]model.ScoreRecord {
	groups := make(map[string][]model.ScoreRecord)
	for _, r := range records {
		groups[r.GameType] = append(groups[r.GameType], r)
	}

	order := make([]string, 0, len(groups))
	for _, gt := range model.GameTypes() {
		if _, ok := groups[gt]; ok {
			order = append(order, gt)
		}
	}
	var extra []string
	for gt := range groups {
		if !slices.Contains(model.GameTypes(), gt) {
			extra = append(extra, gt)
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	out := make([][]model.ScoreRecord, 0, len(order))
	for _, gt := range order {
		out = append(out, groups[gt])
	}
	return out
}
