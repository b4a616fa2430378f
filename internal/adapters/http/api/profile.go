package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/stratowatch/internal/domain/model"
	"github.com/okian/stratowatch/internal/domain/types"
)

// ProfileDependencies defines the interface for sounding profiles.
type ProfileDependencies interface {
	BuildProfile(ctx context.Context, levels []model.SoundingLevel) types.ProfileReport
}

// profileRequest mirrors the OpenAPI schema for POST /profile.
type profileRequest struct {
	Levels []model.SoundingLevel `json:"levels"`
}

// ProfileHandler handles atmospheric profile requests.
type ProfileHandler struct {
	deps         ProfileDependencies
	maxBatchSize int
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(deps ProfileDependencies, maxBatchSize int) *ProfileHandler {
	return &ProfileHandler{deps: deps, maxBatchSize: maxBatchSize}
}

// HandleProfile handles POST /profile requests.
func (h *ProfileHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.profile"

	var req profileRequest
	if status, err := decodeBody(w, r, &req); err != nil {
		if status == http.StatusRequestEntityTooLarge {
			writeError(w, status, "batch_too_large", NewKind(op, err))
			return
		}
		writeError(w, status, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Levels) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrEmptyBatch))
		return
	}
	if len(req.Levels) > h.maxBatchSize {
		writeError(w, http.StatusRequestEntityTooLarge, "batch_too_large",
			WrapKind(op, ErrBatchTooLarge, fmt.Errorf("%d levels, at most %d", len(req.Levels), h.maxBatchSize)))
		return
	}

	writeJSON(w, http.StatusOK, h.deps.BuildProfile(r.Context(), req.Levels))
}
