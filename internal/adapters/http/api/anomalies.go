package api

import (
	"context"
	"net/http"
	"strconv"
)

// AnomaliesDependencies defines the interface for board listings.
type AnomaliesDependencies interface {
	TopN(ctx context.Context, n int) ([]Entry, error)
}

// AnomaliesHandler handles ranked board requests.
type AnomaliesHandler struct {
	deps     AnomaliesDependencies
	maxLimit int
}

// NewAnomaliesHandler creates a new anomalies handler.
func NewAnomaliesHandler(deps AnomaliesDependencies, maxLimit int) *AnomaliesHandler {
	return &AnomaliesHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetAnomalies handles GET /anomalies?limit=N requests.
func (h *AnomaliesHandler) HandleGetAnomalies(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_anomalies"

	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrLimitExceeded))
		return
	}
	entries, err := h.deps.TopN(r.Context(), n)
	if err != nil {
		writeUpstreamError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
