package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/hunterhub/hunter-ranking/internal/adapters/kv"
	"github.com/hunterhub/hunter-ranking/internal/domain/scoring"
	"github.com/hunterhub/hunter-ranking/internal/identity"
)

// maxResultBytes bounds a posted result object.
const maxResultBytes = 64 << 10

// HistoryHandler handles the caller's play log.
type HistoryHandler struct {
	deps     Histories
	maxLimit int
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps Histories, maxLimit int) *HistoryHandler {
	return &HistoryHandler{deps: deps, maxLimit: maxLimit}
}

// HandlePostHistory handles POST /history/{gameType}. The body is the raw
// result object of the finished game.
func (h *HistoryHandler) HandlePostHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_history"
	gt, ok := gameTypeParam(r)
	if !ok {
		writeGameTypeError(w, op)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxResultBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", WrapKind(op, ErrBadRequest, err))
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "bad_request",
			WrapKind(op, ErrBadRequest, errors.New("body must be a JSON result object")))
		return
	}

	res, err := h.deps.SaveGameHistory(r.Context(), gt, body)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, res)
	case errors.Is(err, scoring.ErrInvalidResult):
		writeError(w, http.StatusBadRequest, "invalid_result", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, identity.ErrNoIdentity):
		writeError(w, http.StatusUnauthorized, "identity_required", WrapKind(op, ErrUnauthorized, err))
	case errors.Is(err, kv.ErrQuota):
		writeError(w, http.StatusInsufficientStorage, "quota_exceeded", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

// HandleGetHistory handles GET /history/{gameType}?limit=N, newest first.
func (h *HistoryHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_history"
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
	rows, err := h.deps.GetGameHistory(r.Context(), gt, n)
	if err != nil {
		writeReadError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleGetLatest handles GET /history/{gameType}/latest.
func (h *HistoryHandler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_latest_history"
	gt, ok := gameTypeParam(r)
	if !ok {
		writeGameTypeError(w, op)
		return
	}
	row, err := h.deps.GetLatestGameHistory(r.Context(), gt)
	if err != nil {
		writeReadError(w, op, err)
		return
	}
	if row == nil {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, row)
}
