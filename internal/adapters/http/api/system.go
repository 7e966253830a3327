package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hunterhub/hunter-ranking/internal/domain/types"
	"github.com/hunterhub/hunter-ranking/internal/history"
	"github.com/hunterhub/hunter-ranking/internal/identity"
	"github.com/hunterhub/hunter-ranking/internal/ranking/cloud"
	"github.com/hunterhub/hunter-ranking/internal/ranking/hybrid"
)

// SystemDependencies is the control surface of the ranking façade.
type SystemDependencies interface {
	MigrateToCloud(ctx context.Context) (cloud.MigrationReport, error)
	GetSystemStatus(ctx context.Context) types.SystemStatus
	Config() hybrid.Config
	UpdateConfig(u hybrid.ConfigUpdate) hybrid.Config
}

// HistoryMigrator pushes the local history lists to the cloud.
type HistoryMigrator interface {
	MigrateLocalToCloud(ctx context.Context) (history.MigrationReport, error)
}

// SystemHandler handles status, configuration and migration requests.
type SystemHandler struct {
	deps     SystemDependencies
	history  HistoryMigrator
	identity identity.Provider
}

// NewSystemHandler creates a new system handler.
func NewSystemHandler(deps SystemDependencies, hist HistoryMigrator, ident identity.Provider) *SystemHandler {
	return &SystemHandler{deps: deps, history: hist, identity: ident}
}

// HandleStatus handles GET /status requests.
func (h *SystemHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.GetSystemStatus(r.Context()))
}

// HandleGetConfig handles GET /config requests.
func (h *SystemHandler) HandleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Config())
}

// HandlePutConfig handles PUT /config requests. Only the fields present in
// the body change.
func (h *SystemHandler) HandlePutConfig(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_config"
	var u hybrid.ConfigUpdate
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if u.SyncInterval != nil && *u.SyncInterval <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request",
			WrapKind(op, ErrBadRequest, errors.New("syncInterval must be positive")))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.UpdateConfig(u))
}

type migrateResponse struct {
	Scores  cloud.MigrationReport   `json:"scores"`
	History history.MigrationReport `json:"history"`
}

// HandleMigrate handles POST /migrate. Scores move first, then history; both
// run even when the first one fails.
func (h *SystemHandler) HandleMigrate(w http.ResponseWriter, r *http.Request) {
	const op = "api.migrate"
	var resp migrateResponse
	scoresReport, scoresErr := h.deps.MigrateToCloud(r.Context())
	historyReport, historyErr := h.history.MigrateLocalToCloud(r.Context())
	resp.Scores, resp.History = scoresReport, historyReport

	if err := errors.Join(scoresErr, historyErr); err != nil {
		writeError(w, http.StatusInternalServerError, "migration_failed", WrapKind(op, ErrMigration, err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleProfile handles GET /profile requests.
func (h *SystemHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile"
	p, err := h.identity.CurrentUserProfile(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}
