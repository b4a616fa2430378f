package worker

import (
	"context"
	"sync/atomic"

	"github.com/okian/stratowatch/internal/domain/model"
)

// Batch gathers the outcomes of one fleet scoring call. Each pending index is
// completed exactly once, by a worker or by the caller scoring inline.
type Batch struct {
	outcomes []model.Outcome
	pending  atomic.Int64
	done     chan struct{}
}

// NewBatch wraps a pre-filled outcome slice with pending elements still to be
// completed.
func NewBatch(outcomes []model.Outcome, pending int) *Batch {
	b := &Batch{outcomes: outcomes, done: make(chan struct{})}
	b.pending.Store(int64(pending))
	if pending <= 0 {
		close(b.done)
	}
	return b
}

// Job builds a queue job that completes into this batch.
func (b *Batch) Job(index int, obj model.TrackedObject) model.ScoreJob {
	return model.ScoreJob{Index: index, Object: obj, Done: b.Complete}
}

// Complete stores an outcome at its index.
func (b *Batch) Complete(o model.Outcome) {
	b.outcomes[o.Index] = o
	if b.pending.Add(-1) == 0 {
		close(b.done)
	}
}

// Wait blocks until every pending element completed or ctx is done. The
// outcome slice must not be used after a context error.
func (b *Batch) Wait(ctx context.Context) ([]model.Outcome, error) {
	select {
	case <-b.done:
		return b.outcomes, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
