package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/stratowatch/internal/domain/model"
	"github.com/okian/stratowatch/internal/domain/types"
)

// ScoreDependencies defines the interface for fleet scoring.
type ScoreDependencies interface {
	ScoreFleet(ctx context.Context, objects []model.TrackedObject) (types.FleetReport, error)
}

// scoreRequest mirrors the OpenAPI schema for POST /score.
type scoreRequest struct {
	Objects []model.TrackedObject `json:"objects"`
}

// ScoreHandler handles fleet scoring requests.
type ScoreHandler struct {
	deps         ScoreDependencies
	maxBatchSize int
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps ScoreDependencies, maxBatchSize int) *ScoreHandler {
	return &ScoreHandler{deps: deps, maxBatchSize: maxBatchSize}
}

// HandleScore handles POST /score requests. Per-object failures are part of
// the 200 response; only an unusable request is rejected as a whole.
func (h *ScoreHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.score"

	var req scoreRequest
	if status, err := decodeBody(w, r, &req); err != nil {
		if status == http.StatusRequestEntityTooLarge {
			writeError(w, status, "batch_too_large", NewKind(op, err))
			return
		}
		writeError(w, status, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Objects) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrEmptyBatch))
		return
	}
	if len(req.Objects) > h.maxBatchSize {
		writeError(w, http.StatusRequestEntityTooLarge, "batch_too_large",
			WrapKind(op, ErrBatchTooLarge, fmt.Errorf("%d objects, at most %d", len(req.Objects), h.maxBatchSize)))
		return
	}

	report, err := h.deps.ScoreFleet(r.Context(), req.Objects)
	if err != nil {
		writeUpstreamError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
