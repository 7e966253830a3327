package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hunterhub/hunter-ranking/internal/ranking/hybrid"
)

// ScoreSubmitter accepts finished plays.
type ScoreSubmitter interface {
	SubmitScore(ctx context.Context, gameType string, score int64, metadata json.RawMessage) hybrid.SubmitResult
}

// ScoresHandler handles score submissions.
type ScoresHandler struct {
	deps ScoreSubmitter
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoreSubmitter) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// scoreRequest mirrors the OpenAPI schema for POST /scores.
type scoreRequest struct {
	GameType string          `json:"gameType"`
	Score    *int64          `json:"score"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

func (s scoreRequest) validate() error {
	switch {
	case !gameTypePattern.MatchString(s.GameType):
		return errors.New("invalid gameType")
	case s.Score == nil:
		return errors.New("missing score")
	case *s.Score < 0:
		return errors.New("score must not be negative")
	}
	if len(s.Metadata) > 0 && !json.Valid(s.Metadata) {
		return errors.New("metadata must be JSON")
	}
	return nil
}

// submitResponse reports where the score landed. Status is "stored" when at
// least one path accepted it and "dropped" otherwise.
type submitResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
	Local  bool   `json:"local"`
	Cloud  bool   `json:"cloud"`
}

// HandlePostScore handles POST /scores requests. A well formed submission is
// always acknowledged with 202; storage failures are reported in the body.
func (h *ScoresHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_score"
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res := h.deps.SubmitScore(r.Context(), req.GameType, *req.Score, req.Metadata)
	status := "stored"
	if !res.Local && !res.Cloud {
		status = "dropped"
	}
	writeJSON(w, http.StatusAccepted, submitResponse{
		Status: status,
		ID:     res.Record.ID,
		Local:  res.Local,
		Cloud:  res.Cloud,
	})
}
