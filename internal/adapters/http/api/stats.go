package api

import (
	"context"
	"net/http"

	"github.com/hunterhub/hunter-ranking/internal/domain/types"
)

// StatsProvider returns the caller's own aggregates.
type StatsProvider interface {
	GetUserStats(ctx context.Context, gameType string) types.UserStats
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

// HandleStats handles GET /stats?gameType=G requests. Without gameType the
// stats span every game.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_stats"
	gt := r.URL.Query().Get("gameType")
	if gt != "" && !gameTypePattern.MatchString(gt) {
		writeGameTypeError(w, op)
		return
	}
	writeJSON(w, http.StatusOK, h.statsProvider.GetUserStats(r.Context(), gt))
}
