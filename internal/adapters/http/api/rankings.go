package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/hunterhub/hunter-ranking/internal/domain/types"
)

// RankingsDependencies defines the read side of the ranking façade.
type RankingsDependencies interface {
	GetRankings(ctx context.Context, gameType string, limit int) (types.RankingData, error)
	GetCurrentScoreRank(ctx context.Context, gameType string, score int64) (types.ScoreRank, error)
	GetTopPlayer(ctx context.Context, gameType string) (*types.RankingEntry, error)
	GetAllTopPlayers(ctx context.Context) (types.TopPlayers, error)
	GetTotalPlayCount(ctx context.Context, gameType string) (int, error)
	GetUserPlayCount(ctx context.Context, gameType string) (int, error)
}

// RankingsHandler handles ranking reads.
type RankingsHandler struct {
	deps     RankingsDependencies
	maxLimit int
}

// NewRankingsHandler creates a new rankings handler.
func NewRankingsHandler(deps RankingsDependencies, maxLimit int) *RankingsHandler {
	return &RankingsHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetRankings handles GET /rankings/{gameType}?limit=N requests.
func (h *RankingsHandler) HandleGetRankings(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rankings"
	gt, ok := gameTypeParam(r)
	if !ok {
		writeGameTypeError(w, op)
		return
	}
	n, err := limitParam(r, h.maxLimit)
	if err != nil {
		writeLimitError(w, op, err)
		return
	}
	data, err := h.deps.GetRankings(r.Context(), gt, n)
	if err != nil {
		writeReadError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// HandleGetRank handles GET /rankings/{gameType}/rank?score=S requests.
func (h *RankingsHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	gt, ok := gameTypeParam(r)
	if !ok {
		writeGameTypeError(w, op)
		return
	}
	score, err := strconv.ParseInt(r.URL.Query().Get("score"), 10, 64)
	if err != nil || score < 0 {
		writeError(w, http.StatusBadRequest, "bad_request",
			WrapKind(op, ErrBadRequest, errors.New("score must be a non-negative integer")))
		return
	}
	rank, err := h.deps.GetCurrentScoreRank(r.Context(), gt, score)
	if err != nil {
		writeReadError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rank)
}

// HandleGetTop handles GET /rankings/{gameType}/top requests. An empty board
// answers 404.
func (h *RankingsHandler) HandleGetTop(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_top"
	gt, ok := gameTypeParam(r)
	if !ok {
		writeGameTypeError(w, op)
		return
	}
	top, err := h.deps.GetTopPlayer(r.Context(), gt)
	if err != nil {
		writeReadError(w, op, err)
		return
	}
	if top == nil {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, top)
}

// HandleGetTopPlayers handles GET /top-players requests.
func (h *RankingsHandler) HandleGetTopPlayers(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_top_players"
	tops, err := h.deps.GetAllTopPlayers(r.Context())
	if err != nil {
		writeReadError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, tops)
}

type playsResponse struct {
	Total int `json:"total"`
	User  int `json:"user"`
}

// HandleGetPlays handles GET /rankings/{gameType}/plays requests.
func (h *RankingsHandler) HandleGetPlays(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_plays"
	gt, ok := gameTypeParam(r)
	if !ok {
		writeGameTypeError(w, op)
		return
	}
	total, err := h.deps.GetTotalPlayCount(r.Context(), gt)
	if err != nil {
		writeReadError(w, op, err)
		return
	}
	user, err := h.deps.GetUserPlayCount(r.Context(), gt)
	if err != nil {
		writeReadError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, playsResponse{Total: total, User: user})
}
