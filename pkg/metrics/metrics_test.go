package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then every collector is registered on it", func() {
				So(manager, ShouldNotBeNil)
				manager.scoreSubmissions.WithLabelValues(PathLocal, OutcomeOK).Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				names := make(map[string]bool, len(families))
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_unit_score_submissions_total"], ShouldBeTrue)
			})
		})

		Convey("When registering the same names twice on one registry", func() {
			registry := prometheus.NewRegistry()
			_ = NewManager(WithPrometheusRegistry(registry))

			Convey("Then promauto panics on the duplicate", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording ranking metrics", func() {
			before := testutil.ToFloat64(global().fallbacks.WithLabelValues("get_rankings"))
			RecordFallback("get_rankings")
			RecordRankingRead("get_rankings", PathLocal)
			RecordScoreSubmission(PathCloud, OutcomeError)
			UpdateLedgerRecords(7)

			Convey("Then the counters move", func() {
				So(testutil.ToFloat64(global().fallbacks.WithLabelValues("get_rankings")), ShouldEqual, before+1)
				So(testutil.ToFloat64(global().ledgerRecords), ShouldEqual, 7)
			})
		})

		Convey("When recording a failed remote call", func() {
			before := testutil.ToFloat64(global().remoteErrors.WithLabelValues("list_game_scores"))
			RecordRemoteCall("list_game_scores", 12, errors.New("timeout"))
			RecordRemoteCall("list_game_scores", 3, nil)

			Convey("Then only the failure is counted as an error", func() {
				So(testutil.ToFloat64(global().remoteErrors.WithLabelValues("list_game_scores")), ShouldEqual, before+1)
			})
		})

		Convey("When recording migration, history and storage metrics", func() {
			So(func() {
				RecordMigrationRecord("scores", "pushed")
				RecordMigrationRun("history", OutcomeOK)
				UpdateLastSync(1_700_000_000)
				RecordHistorySave(PathLocal)
				RecordKVError("redis", "get")
				RecordProfileCache(true)
				RecordProfileCache(false)
				RecordEnrichmentSkipped()
			}, ShouldNotPanic)
			So(testutil.ToFloat64(global().lastSyncUnix), ShouldEqual, 1_700_000_000)
		})

		Convey("When recording HTTP and error metrics", func() {
			So(func() {
				RecordHTTPRequest("rankings", "GET", "200")
				RecordHTTPRequestDuration("rankings", "GET", "200", 4)
				RecordErrorByComponent("http", "client_error")
				RecordErrorByType("client_error", "medium")
				RecordErrorByEndpoint("rankings", "GET", "client_error")
				RecordErrorLatency("http", "client_error", 2)
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.4)
			}, ShouldNotPanic)
		})

		Convey("Then GetRegistry exposes the manager's registry", func() {
			So(GetRegistry(), ShouldEqual, current.Load().registry)
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given a process-wide manager reconfigured from settings", t, func() {
		before := GetRegistry()
		m := Configure(
			WithNamespace("arena"),
			WithSubsystem("scores"),
			WithHistogramBuckets([]float64{5, 50, 500}),
			WithConstLabels(map[string]string{"env": "staging"}),
		)
		defer Configure()

		RecordRemoteCall("listGameScores", 42, nil)

		Convey("Then recordings land on the new registry under the new names", func() {
			So(global(), ShouldEqual, m)
			So(GetRegistry(), ShouldNotEqual, before)

			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			var found bool
			for _, f := range families {
				if f.GetName() != "arena_scores_remote_call_latency_milliseconds" {
					continue
				}
				found = true
				metric := f.GetMetric()[0]
				So(len(metric.GetHistogram().GetBucket()), ShouldEqual, 3)
				labels := map[string]string{}
				for _, l := range metric.GetLabel() {
					labels[l.GetName()] = l.GetValue()
				}
				So(labels["env"], ShouldEqual, "staging")
			}
			So(found, ShouldBeTrue)
		})
	})
}
