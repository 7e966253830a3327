package cloud_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hunterhub/hunter-ranking/internal/adapters/backup"
	"github.com/hunterhub/hunter-ranking/internal/adapters/kv"
	"github.com/hunterhub/hunter-ranking/internal/adapters/repository"
	"github.com/hunterhub/hunter-ranking/internal/domain/model"
	"github.com/hunterhub/hunter-ranking/internal/identity"
	"github.com/hunterhub/hunter-ranking/internal/ranking/cloud"
	"github.com/hunterhub/hunter-ranking/internal/ranking/local"
	. "github.com/smartystreets/goconvey/convey"
)

type failingArchiver struct{}

func (failingArchiver) Archive(context.Context, []byte) (string, error) {
	return "", errors.New("bucket unreachable")
}

func failNth(target string, nth int) repository.FaultFunc {
	return func(op string, n int) error {
		if op == target && n == nth {
			return repository.ErrUnavailable
		}
		return nil
	}
}

func newLedger(store kv.Store) *local.Store {
	var mu sync.Mutex
	clock := t0
	return local.New(store, identity.NewHeaderProvider(store), local.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}))
}

func remoteCount(repo repository.Store, gameType string) int {
	list, err := repo.ListGameScores(context.Background(), gameType)
	if err != nil {
		panic(err)
	}
	return len(list)
}

func TestMigrateFromLocal(t *testing.T) {
	Convey("Given a local ledger with five reflex rows", t, func() {
		store := kv.NewMemory()
		ledger := newLedger(store)
		ctx := identity.WithUser(context.Background(), identity.User{ID: "hunter-1"})
		for _, s := range []int64{410, 390, 380, 360, 350} {
			_, err := ledger.SubmitScore(ctx, model.GameReflex, s, nil)
			So(err, ShouldBeNil)
		}
		repo := repository.NewMemoryStore()

		Convey("When the remote create fails on row 3 only", func() {
			repo.SetFault(failNth(repository.OpCreateGameScore, 3))
			svc := newService(repo, cloud.WithPushRetries(0))

			report, err := svc.MigrateFromLocal(ctx, ledger)

			Convey("Then the other rows are pushed and the ledger keeps all five", func() {
				So(err, ShouldBeNil)
				So(report.Pushed, ShouldEqual, 4)
				So(report.Failed, ShouldEqual, 1)
				So(report.Cleared, ShouldEqual, 0)
				So(remoteCount(repo, model.GameReflex), ShouldEqual, 4)
				left, _ := ledger.Records(ctx)
				So(len(left), ShouldEqual, 5)
			})

			Convey("Then a rerun pushes only row 3 and clears the ledger", func() {
				report, err := svc.MigrateFromLocal(ctx, ledger)
				So(err, ShouldBeNil)
				So(report.Skipped, ShouldEqual, 4)
				So(report.Pushed, ShouldEqual, 1)
				So(report.Cleared, ShouldEqual, 5)
				So(remoteCount(repo, model.GameReflex), ShouldEqual, 5)
				left, _ := ledger.Records(ctx)
				So(left, ShouldBeEmpty)
			})

			Convey("Then a rerun by a fresh process creates no duplicates", func() {
				fresh := newService(repo)
				report, err := fresh.MigrateFromLocal(ctx, ledger)
				So(err, ShouldBeNil)
				So(report.Pushed, ShouldEqual, 5)
				So(report.Failed, ShouldEqual, 0)
				So(remoteCount(repo, model.GameReflex), ShouldEqual, 5)
			})
		})

		Convey("When a push fails once and is retried", func() {
			repo.SetFault(failNth(repository.OpCreateGameScore, 2))
			svc := newService(repo, cloud.WithPushRetries(2), cloud.WithRetryInterval(time.Millisecond))

			report, err := svc.MigrateFromLocal(ctx, ledger)

			Convey("Then every row lands and the ledger is archived then cleared", func() {
				So(err, ShouldBeNil)
				So(report.Pushed, ShouldEqual, 5)
				So(report.Failed, ShouldEqual, 0)
				So(report.Cleared, ShouldEqual, 5)
				So(repo.Calls(repository.OpCreateGameScore), ShouldEqual, 6)
			})
		})

		Convey("When an archiver is configured", func() {
			svc := newService(repo, cloud.WithArchiver(backup.NewArchiver(store)))
			_, err := svc.MigrateFromLocal(ctx, ledger)
			So(err, ShouldBeNil)

			Convey("Then the pre-migration ledger is kept under the backup key", func() {
				var saved []model.ScoreRecord
				So(kv.GetJSON(context.Background(), store, kv.KeyScoresBackup, &saved), ShouldBeNil)
				So(len(saved), ShouldEqual, 5)
			})
		})

		Convey("When archiving fails", func() {
			svc := newService(repo, cloud.WithArchiver(failingArchiver{}))
			report, err := svc.MigrateFromLocal(ctx, ledger)

			Convey("Then nothing is removed from the ledger", func() {
				So(errors.Is(err, cloud.ErrArchive), ShouldBeTrue)
				So(report.Pushed, ShouldEqual, 5)
				So(report.Cleared, ShouldEqual, 0)
				left, _ := ledger.Records(ctx)
				So(len(left), ShouldEqual, 5)
			})
		})
	})

	Convey("Given a ledger with two game types", t, func() {
		store := kv.NewMemory()
		ledger := newLedger(store)
		ctx := identity.WithUser(context.Background(), identity.User{ID: "hunter-2"})
		_, _ = ledger.SubmitScore(ctx, model.GameReflex, 300, nil)
		_, _ = ledger.SubmitScore(ctx, model.GameReflex, 280, nil)
		_, _ = ledger.SubmitScore(ctx, model.GameTarget, 11000, nil)

		repo := repository.NewMemoryStore(repository.WithFault(failNth(repository.OpCreateGameScore, 2)))
		svc := newService(repo, cloud.WithPushRetries(0))

		Convey("When the reflex batch fails partially", func() {
			report, err := svc.MigrateFromLocal(ctx, ledger)

			Convey("Then only the complete target batch is cleared", func() {
				So(err, ShouldBeNil)
				So(report.Cleared, ShouldEqual, 1)
				left, _ := ledger.Records(ctx)
				So(len(left), ShouldEqual, 2)
				for _, r := range left {
					So(r.GameType, ShouldEqual, model.GameReflex)
				}
			})
		})
	})

	Convey("Given an empty ledger", t, func() {
		svc := newService(repository.NewMemoryStore())
		report, err := svc.MigrateFromLocal(context.Background(), newLedger(kv.NewMemory()))
		So(err, ShouldBeNil)
		So(report, ShouldResemble, cloud.MigrationReport{})
	})
}
