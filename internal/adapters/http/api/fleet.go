package api

import (
	"context"
	"net/http"

	"github.com/okian/stratowatch/internal/domain/model"
)

// FleetDependencies defines the interface for board-wide health.
type FleetDependencies interface {
	FleetHealth(ctx context.Context) (model.FleetHealth, error)
}

// FleetHandler handles fleet health requests.
type FleetHandler struct {
	deps FleetDependencies
}

// NewFleetHandler creates a new fleet handler.
func NewFleetHandler(deps FleetDependencies) *FleetHandler {
	return &FleetHandler{deps: deps}
}

// HandleFleetHealth handles GET /fleet/health requests.
func (h *FleetHandler) HandleFleetHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.deps.FleetHealth(r.Context())
	if err != nil {
		writeUpstreamError(w, "api.fleet_health", err)
		return
	}
	writeJSON(w, http.StatusOK, health)
}
