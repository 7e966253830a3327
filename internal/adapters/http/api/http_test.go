package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hunterhub/hunter-ranking/internal/adapters/http/api"
	"github.com/hunterhub/hunter-ranking/internal/adapters/kv"
	"github.com/hunterhub/hunter-ranking/internal/adapters/repository"
	"github.com/hunterhub/hunter-ranking/internal/domain/types"
	"github.com/hunterhub/hunter-ranking/internal/history"
	"github.com/hunterhub/hunter-ranking/internal/identity"
	"github.com/hunterhub/hunter-ranking/internal/ranking/cloud"
	"github.com/hunterhub/hunter-ranking/internal/ranking/hybrid"
	"github.com/hunterhub/hunter-ranking/internal/ranking/local"
	. "github.com/smartystreets/goconvey/convey"
)

type testServer struct {
	repo    *repository.MemoryStore
	rank    *hybrid.Service
	handler http.Handler
}

func newTestServer(cfg hybrid.Config) testServer {
	store := kv.NewMemory()
	ident := identity.NewHeaderProvider(store)
	repo := repository.NewMemoryStore()
	rank := hybrid.New(
		local.New(store, ident),
		cloud.New(repo, ident, cloud.WithPushRetries(0)),
		ident,
		hybrid.WithConfig(cfg),
	)
	hist := history.New(repo, store, ident)

	r := api.NewRouter([]string{"https://hunter.example"})
	api.NewServer(api.Dependencies{
		Rankings:  rank,
		Histories: hist,
		Identity:  ident,
		MaxLimit:  50,
	}).Register(context.Background(), r)
	return testServer{repo: repo, rank: rank, handler: r}
}

// do sends a request as userID; an empty userID sends no identity headers.
func (ts testServer) do(method, path, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(identity.HeaderUserID, userID)
		req.Header.Set(identity.HeaderUsername, "hunter-"+userID)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestScoresAndRankings(t *testing.T) {
	Convey("Given a server with both stores reachable", t, func() {
		ts := newTestServer(hybrid.DefaultConfig())

		Convey("When an anonymous caller posts a score", func() {
			w := ts.do(http.MethodPost, "/scores", "", `{"gameType":"reflex","score":250}`)

			Convey("Then it is rejected for missing identity", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
				So(decode[errorBody](w).Code, ShouldEqual, "identity_required")
			})
		})

		Convey("When a score body is malformed", func() {
			So(ts.do(http.MethodPost, "/scores", "u1", `{"gameType":"reflex"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(ts.do(http.MethodPost, "/scores", "u1", `{"gameType":"reflex","score":-1}`).Code, ShouldEqual, http.StatusBadRequest)
			So(ts.do(http.MethodPost, "/scores", "u1", `not json`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When three hunters post reflex scores", func() {
			for _, s := range []struct{ user, body string }{
				{"u1", `{"gameType":"reflex","score":300,"metadata":{"successCount":5}}`},
				{"u2", `{"gameType":"reflex","score":250}`},
				{"u3", `{"gameType":"reflex","score":400}`},
			} {
				w := ts.do(http.MethodPost, "/scores", s.user, s.body)
				So(w.Code, ShouldEqual, http.StatusAccepted)
				ack := decode[map[string]any](w)
				So(ack["status"], ShouldEqual, "stored")
				So(ack["local"], ShouldBeTrue)
				So(ack["cloud"], ShouldBeTrue)
			}

			Convey("Then the ranking is ascending with the caller marked", func() {
				w := ts.do(http.MethodGet, "/rankings/reflex?limit=2", "u3", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				data := decode[types.RankingData](w)
				So(data.Rankings, ShouldHaveLength, 2)
				So(data.Rankings[0].UserID, ShouldEqual, "u2")
				So(data.Rankings[1].UserID, ShouldEqual, "u1")
				So(data.TotalPlayers, ShouldEqual, 3)
				So(data.UserRank, ShouldNotBeNil)
				So(data.UserRank.Rank, ShouldEqual, 3)
			})

			Convey("Then the default limit applies when none is given", func() {
				data := decode[types.RankingData](ts.do(http.MethodGet, "/rankings/reflex", "", ""))
				So(data.Rankings, ShouldHaveLength, 3)
				So(data.UserRank, ShouldBeNil)
			})

			Convey("Then a candidate score is placed among the others", func() {
				w := ts.do(http.MethodGet, "/rankings/reflex/rank?score=275", "u4", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[types.ScoreRank](w), ShouldResemble, types.ScoreRank{Rank: 2, TotalPlayers: 4})
			})

			Convey("Then the top player and play counts are served", func() {
				top := decode[types.RankingEntry](ts.do(http.MethodGet, "/rankings/reflex/top", "", ""))
				So(top.UserID, ShouldEqual, "u2")

				tops := decode[map[string]*types.RankingEntry](ts.do(http.MethodGet, "/top-players", "", ""))
				So(tops, ShouldHaveLength, 3)
				So(tops["reflex"].Score, ShouldEqual, 250)
				So(tops["target"], ShouldBeNil)

				plays := decode[map[string]int](ts.do(http.MethodGet, "/rankings/reflex/plays", "u1", ""))
				So(plays["total"], ShouldEqual, 3)
				So(plays["user"], ShouldEqual, 1)
			})

			Convey("Then the caller's local stats are served", func() {
				stats := decode[types.UserStats](ts.do(http.MethodGet, "/stats?gameType=reflex", "u1", ""))
				So(stats.TotalGames, ShouldEqual, 1)
				So(*stats.BestScore, ShouldEqual, 300)
			})
		})

		Convey("When query parameters are out of range", func() {
			w := ts.do(http.MethodGet, "/rankings/reflex?limit=51", "", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode[errorBody](w).Code, ShouldEqual, "limit_exceeded")

			So(ts.do(http.MethodGet, "/rankings/reflex?limit=0", "", "").Code, ShouldEqual, http.StatusBadRequest)
			So(ts.do(http.MethodGet, "/rankings/reflex/rank?score=fast", "", "").Code, ShouldEqual, http.StatusBadRequest)
			So(ts.do(http.MethodGet, "/rankings/9lives", "", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When nobody has played a game", func() {
			w := ts.do(http.MethodGet, "/rankings/target/top", "", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given an unreachable cloud and no local fallback", t, func() {
		cfg := hybrid.DefaultConfig()
		cfg.FallbackToLocal = false
		ts := newTestServer(cfg)
		ts.repo.SetFault(func(string, int) error { return repository.ErrUnavailable })

		Convey("Then ranking reads answer 503 without leaking the cause", func() {
			w := ts.do(http.MethodGet, "/rankings/reflex", "u1", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			body := decode[errorBody](w)
			So(body.Code, ShouldEqual, "unavailable")
			So(body.Message, ShouldEqual, api.ErrUnavailable.Error())
		})

		Convey("Then a submission is still acknowledged", func() {
			w := ts.do(http.MethodPost, "/scores", "u1", `{"gameType":"target","score":9000}`)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			ack := decode[map[string]any](w)
			So(ack["local"], ShouldBeTrue)
			So(ack["cloud"], ShouldBeFalse)
		})
	})
}

func TestHistoryRoutes(t *testing.T) {
	Convey("Given a server with a reachable cloud", t, func() {
		ts := newTestServer(hybrid.DefaultConfig())

		Convey("When a sequence result is posted", func() {
			w := ts.do(http.MethodPost, "/history/sequence", "u1", `{"completionTime":31.5,"completed":true}`)

			Convey("Then it is stored in the cloud", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				res := decode[history.SaveResult](w)
				So(res.Path, ShouldEqual, history.PathCloud)
				So(res.Record.Score, ShouldEqual, 31500)
			})

			Convey("Then it is listed and returned as latest", func() {
				rows := decode[[]map[string]any](ts.do(http.MethodGet, "/history/sequence?limit=5", "u1", ""))
				So(rows, ShouldHaveLength, 1)

				latest := ts.do(http.MethodGet, "/history/sequence/latest", "u1", "")
				So(latest.Code, ShouldEqual, http.StatusOK)
				So(latest.Body.String(), ShouldContainSubstring, `"completionTime":31.5`)
			})

			Convey("Then another hunter sees nothing", func() {
				So(ts.do(http.MethodGet, "/history/sequence/latest", "u2", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the result object is not JSON", func() {
			So(ts.do(http.MethodPost, "/history/reflex", "u1", `{`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a reflex result cannot be decoded", func() {
			w := ts.do(http.MethodPost, "/history/reflex", "u1", `{"testResults":"fast"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode[errorBody](w).Code, ShouldEqual, "invalid_result")
		})

		Convey("When an anonymous caller reads history", func() {
			So(ts.do(http.MethodGet, "/history/reflex", "", "").Code, ShouldEqual, http.StatusUnauthorized)
		})
	})
}

func TestSystemRoutes(t *testing.T) {
	Convey("Given a server in local mode", t, func() {
		cfg := hybrid.DefaultConfig()
		cfg.UseCloud = false
		ts := newTestServer(cfg)

		Convey("When reading config and status", func() {
			got := decode[hybrid.Config](ts.do(http.MethodGet, "/config", "", ""))
			So(got.UseCloud, ShouldBeFalse)
			status := decode[types.SystemStatus](ts.do(http.MethodGet, "/status", "", ""))
			So(status.Mode, ShouldEqual, types.ModeLocal)
			So(status.CloudAvailable, ShouldBeTrue)
		})

		Convey("When a partial config update is sent", func() {
			w := ts.do(http.MethodPut, "/config", "", `{"fallbackToLocal":false,"syncInterval":15}`)

			Convey("Then only those fields change", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				got := decode[hybrid.Config](w)
				So(got.FallbackToLocal, ShouldBeFalse)
				So(got.SyncInterval, ShouldEqual, 15)
				So(got.UseCloud, ShouldBeFalse)
			})
		})

		Convey("When a config update is invalid", func() {
			So(ts.do(http.MethodPut, "/config", "", `{"syncInterval":0}`).Code, ShouldEqual, http.StatusBadRequest)
			So(ts.do(http.MethodPut, "/config", "", `{"cloud":true}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When local plays are migrated", func() {
			So(ts.do(http.MethodPost, "/scores", "u1", `{"gameType":"target","score":9000}`).Code, ShouldEqual, http.StatusAccepted)
			So(ts.do(http.MethodPost, "/scores", "u2", `{"gameType":"target","score":8000}`).Code, ShouldEqual, http.StatusAccepted)
			w := ts.do(http.MethodPost, "/migrate", "u1", "")

			Convey("Then both reports come back and cloud mode is on", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode[struct {
					Scores  cloud.MigrationReport   `json:"scores"`
					History history.MigrationReport `json:"history"`
				}](w)
				So(body.Scores.Pushed, ShouldEqual, 2)
				So(body.Scores.Failed, ShouldEqual, 0)
				So(ts.rank.Config().UseCloud, ShouldBeTrue)

				status := decode[types.SystemStatus](ts.do(http.MethodGet, "/status", "", ""))
				So(status.Mode, ShouldEqual, types.ModeHybrid)
			})
		})

		Convey("When the caller asks for their profile", func() {
			w := ts.do(http.MethodGet, "/profile", "u9", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[identity.Profile](w).UserID, ShouldEqual, "u9")
		})

		Convey("When metrics are scraped", func() {
			w := ts.do(http.MethodGet, "/healthz", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When a browser sends a preflight request", func() {
			req := httptest.NewRequest(http.MethodOptions, "/scores", http.NoBody)
			req.Header.Set("Origin", "https://hunter.example")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", identity.HeaderUserID)
			w := httptest.NewRecorder()
			ts.handler.ServeHTTP(w, req)

			Convey("Then the identity headers are allowed", func() {
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://hunter.example")
				So(strings.ToLower(w.Header().Get("Access-Control-Allow-Headers")), ShouldContainSubstring,
					strings.ToLower(identity.HeaderUserID))
			})
		})
	})
}
