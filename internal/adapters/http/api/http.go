// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hunterhub/hunter-ranking/internal/domain/model"
	"github.com/hunterhub/hunter-ranking/internal/domain/types"
	"github.com/hunterhub/hunter-ranking/internal/history"
	"github.com/hunterhub/hunter-ranking/internal/identity"
	"github.com/hunterhub/hunter-ranking/internal/ranking/cloud"
	"github.com/hunterhub/hunter-ranking/internal/ranking/hybrid"
)

const (
	defaultLimit    = 10
	defaultMaxLimit = 100
)

// Rankings is the ranking façade the handlers read from and submit to.
type Rankings interface {
	SubmitScore(ctx context.Context, gameType string, score int64, metadata json.RawMessage) hybrid.SubmitResult
	GetRankings(ctx context.Context, gameType string, limit int) (types.RankingData, error)
	GetCurrentScoreRank(ctx context.Context, gameType string, score int64) (types.ScoreRank, error)
	GetTopPlayer(ctx context.Context, gameType string) (*types.RankingEntry, error)
	GetAllTopPlayers(ctx context.Context) (types.TopPlayers, error)
	GetTotalPlayCount(ctx context.Context, gameType string) (int, error)
	GetUserPlayCount(ctx context.Context, gameType string) (int, error)
	GetUserStats(ctx context.Context, gameType string) types.UserStats
	MigrateToCloud(ctx context.Context) (cloud.MigrationReport, error)
	GetSystemStatus(ctx context.Context) types.SystemStatus
	Config() hybrid.Config
	UpdateConfig(u hybrid.ConfigUpdate) hybrid.Config
}

// Histories is the per user play log.
type Histories interface {
	SaveGameHistory(ctx context.Context, gameType string, gameData json.RawMessage) (history.SaveResult, error)
	GetGameHistory(ctx context.Context, gameType string, limit int) ([]model.HistoryRecord, error)
	GetLatestGameHistory(ctx context.Context, gameType string) (*model.HistoryRecord, error)
	MigrateLocalToCloud(ctx context.Context) (history.MigrationReport, error)
}

// Dependencies bundles what the handlers need.
type Dependencies struct {
	Rankings  Rankings
	Histories Histories
	Identity  identity.Provider
	// MaxLimit caps the limit query parameter; zero means 100.
	MaxLimit int
}

// Server wires HTTP routes for the business API.
type Server struct {
	identity       identity.Provider
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	scoresHandler  *ScoresHandler
	rankHandler    *RankingsHandler
	historyHandler *HistoryHandler
	systemHandler  *SystemHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	maxLimit := deps.MaxLimit
	if maxLimit <= 0 {
		maxLimit = defaultMaxLimit
	}
	return &Server{
		identity:       deps.Identity,
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps.Rankings),
		scoresHandler:  NewScoresHandler(deps.Rankings),
		rankHandler:    NewRankingsHandler(deps.Rankings, maxLimit),
		historyHandler: NewHistoryHandler(deps.Histories, maxLimit),
		systemHandler:  NewSystemHandler(deps.Rankings, deps.Histories, deps.Identity),
	}
}

// NewRouter returns a chi router with the shared middleware stack. Browser
// origins listed in origins may call the API with the identity headers.
func NewRouter(origins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept", "Content-Type",
			identity.HeaderUserID, identity.HeaderUsername, identity.HeaderXLinked, identity.HeaderXDisplayName,
		},
		MaxAge: 300,
	}))
	r.Use(identity.Middleware)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/status", MetricsMiddleware(s.systemHandler.HandleStatus, "status"))
	r.Get("/config", MetricsMiddleware(s.systemHandler.HandleGetConfig, "config"))
	r.Put("/config", MetricsMiddleware(s.systemHandler.HandlePutConfig, "config"))
	r.Get("/top-players", MetricsMiddleware(s.rankHandler.HandleGetTopPlayers, "top_players"))

	r.Route("/rankings/{gameType}", func(r chi.Router) {
		r.Get("/", MetricsMiddleware(s.rankHandler.HandleGetRankings, "rankings"))
		r.Get("/rank", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
		r.Get("/top", MetricsMiddleware(s.rankHandler.HandleGetTop, "top"))
		r.Get("/plays", MetricsMiddleware(s.rankHandler.HandleGetPlays, "plays"))
	})

	// Everything below acts on the caller's own data.
	r.Group(func(r chi.Router) {
		r.Use(s.requireIdentity)
		r.Post("/scores", MetricsMiddleware(s.scoresHandler.HandlePostScore, "scores"))
		r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
		r.Get("/profile", MetricsMiddleware(s.systemHandler.HandleProfile, "profile"))
		r.Post("/migrate", MetricsMiddleware(s.systemHandler.HandleMigrate, "migrate"))
		r.Route("/history/{gameType}", func(r chi.Router) {
			r.Post("/", MetricsMiddleware(s.historyHandler.HandlePostHistory, "history"))
			r.Get("/", MetricsMiddleware(s.historyHandler.HandleGetHistory, "history"))
			r.Get("/latest", MetricsMiddleware(s.historyHandler.HandleGetLatest, "history_latest"))
		})
	})
}

// requireIdentity rejects requests whose caller the identity provider cannot name.
func (s *Server) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const op = "api.require_identity"
		if _, err := s.identity.CurrentUserID(r.Context()); err != nil {
			writeError(w, http.StatusUnauthorized, "identity_required", WrapKind(op, ErrUnauthorized, err))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError reports the error kind. The wrapped cause is shown for client
// errors only.
func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	var oe *opError
	if errors.As(err, &oe) && oe.kind != nil {
		msg = oe.kind.Error()
		if oe.err != nil && status < http.StatusInternalServerError {
			msg += ": " + oe.err.Error()
		}
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

var gameTypePattern = regexp.MustCompile(`^[a-z][a-zA-Z0-9_-]{0,31}$`)

// gameTypeParam returns the {gameType} path segment when it is well formed.
func gameTypeParam(r *http.Request) (string, bool) {
	gt := chi.URLParam(r, "gameType")
	return gt, gameTypePattern.MatchString(gt)
}

var (
	errLimit         = errors.New("limit must be a positive integer")
	errLimitExceeded = errors.New("limit exceeds maximum")
)

// limitParam parses ?limit, defaulting to 10. It fails for values outside [1, maxLimit].
func limitParam(r *http.Request, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return min(defaultLimit, maxLimit), nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errLimit
	}
	if n > maxLimit {
		return 0, errLimitExceeded
	}
	return n, nil
}

func writeLimitError(w http.ResponseWriter, op string, err error) {
	code := "bad_request"
	if errors.Is(err, errLimitExceeded) {
		code = "limit_exceeded"
	}
	writeError(w, http.StatusBadRequest, code, WrapKind(op, ErrBadRequest, err))
}

func writeGameTypeError(w http.ResponseWriter, op string) {
	writeError(w, http.StatusBadRequest, "bad_game_type", NewKind(op, ErrBadRequest))
}

// writeReadError maps a failed ranking read. Reads only fail when the cloud
// is down and the local fallback is switched off.
func writeReadError(w http.ResponseWriter, op string, err error) {
	writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
}
