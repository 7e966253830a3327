package service_test

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/hunterhub/hunter-ranking/internal/app"
	"github.com/hunterhub/hunter-ranking/internal/config"
	"github.com/hunterhub/hunter-ranking/pkg/logger"
)

func TestService_New(t *testing.T) {
	Convey("Given a service built without configuration", t, func() {
		svc := service.New(nil)

		Convey("Then it falls back to the defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats(context.Background())
			So(stats["started"], ShouldEqual, false)
			So(stats["kvBackend"], ShouldEqual, config.KVMemory)
			So(stats["remoteBackend"], ShouldEqual, config.RemoteMemory)
			So(stats["identityMode"], ShouldEqual, config.IdentityHeader)
		})

		Convey("Then its accessors refuse to hand out services", func() {
			_, err := svc.Rankings()
			So(err, ShouldEqual, service.ErrNotStarted)
			_, err = svc.Histories()
			So(err, ShouldEqual, service.ErrNotStarted)
			_, err = svc.Identity()
			So(err, ShouldEqual, service.ErrNotStarted)
		})

		Convey("Then Stop is a no-op", func() {
			So(svc.Stop, ShouldNotPanic)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a service with in-memory backends", t, func() {
		svc := service.New(config.New(), service.WithLogger(logger.Discard()))
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then every service is available", func() {
				rankings, err := svc.Rankings()
				So(err, ShouldBeNil)
				So(rankings, ShouldNotBeNil)

				histories, err := svc.Histories()
				So(err, ShouldBeNil)
				So(histories, ShouldNotBeNil)

				ident, err := svc.Identity()
				So(err, ShouldBeNil)
				So(ident, ShouldNotBeNil)
			})

			Convey("Then the stats describe the running service", func() {
				stats := svc.GetStats(ctx)
				So(stats["started"], ShouldEqual, true)
				So(stats["ledgerRecords"], ShouldEqual, 0)
				So(stats["useCloud"], ShouldEqual, true)
				So(stats["autoSync"], ShouldEqual, false)
				So(stats, ShouldNotContainKey, "lastSync")
			})

			Convey("Then a second Start is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("Then Stop makes the accessors fail again", func() {
				svc.Stop()
				_, err := svc.Rankings()
				So(err, ShouldEqual, service.ErrNotStarted)
				So(svc.GetStats(ctx)["started"], ShouldEqual, false)
			})
		})
	})

	Convey("Given auto sync switched on", t, func() {
		cfg := config.New()
		cfg.AutoSync = true
		cfg.SyncIntervalMinutes = 1
		svc := service.New(cfg, service.WithLogger(logger.Discard()))
		defer svc.Stop()

		Convey("Then the sync job is scheduled on Start", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.GetStats(context.Background())["autoSync"], ShouldEqual, true)
		})
	})

	Convey("Given the file kv backend", t, func() {
		cfg := config.New()
		cfg.KVBackend = config.KVFile
		cfg.KVDir = t.TempDir()
		cfg.IdentityMode = config.IdentityLocal
		svc := service.New(cfg, service.WithLogger(logger.Discard()))
		defer svc.Stop()

		Convey("Then the service starts with a persisted local identity", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			ident, err := svc.Identity()
			So(err, ShouldBeNil)
			id, err := ident.CurrentUserID(context.Background())
			So(err, ShouldBeNil)
			So(id, ShouldNotBeEmpty)
		})
	})

	Convey("Given a redis backend nobody listens on", t, func() {
		cfg := config.New()
		cfg.KVBackend = config.KVRedis
		cfg.RedisAddr = "127.0.0.1:1"
		svc := service.New(cfg, service.WithLogger(logger.Discard()))

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		Convey("Then Start fails and the service stays stopped", func() {
			err := svc.Start(ctx)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "open redis kv store")
			_, err = svc.Rankings()
			So(err, ShouldEqual, service.ErrNotStarted)
		})
	})
}
