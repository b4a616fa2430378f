package scoring

import (
	"fmt"

	"github.com/okian/stratowatch/internal/domain/dedupe"
	"github.com/okian/stratowatch/internal/domain/model"
)

// ScoreFleet scores every object in input order. A failing element never
// aborts the pass: its Outcome carries the error instead of a result.
func (s *Scorer) ScoreFleet(objects []model.TrackedObject) []model.Outcome {
	outcomes, pending := s.PrepareFleet(objects)
	for _, i := range pending {
		outcomes[i] = s.ScoreAt(i, objects[i])
	}
	return outcomes
}

// PrepareFleet allocates one Outcome per object and resolves the elements
// that can be rejected without scoring, which today means repeated IDs. It
// returns the indexes still to be scored, in ascending order.
func (s *Scorer) PrepareFleet(objects []model.TrackedObject) ([]model.Outcome, []int) {
	outcomes := make([]model.Outcome, len(objects))
	pending := make([]int, 0, len(objects))
	ids := dedupe.New()

	for i, obj := range objects {
		outcomes[i] = model.Outcome{Index: i, ID: obj.ID}
		if obj.ID != "" && ids.SeenAndRecord(obj.ID) {
			outcomes[i].Err = model.InvalidInputf("duplicate object id %q", obj.ID)
			continue
		}
		pending = append(pending, i)
	}
	return outcomes, pending
}

// ScoreAt scores a single fleet element and wraps the result as an Outcome.
func (s *Scorer) ScoreAt(index int, obj model.TrackedObject) model.Outcome {
	res, err := s.ScoreObject(obj)
	if err != nil {
		return model.Outcome{Index: index, ID: obj.ID, Err: fmt.Errorf("object %d: %w", index, err)}
	}
	return model.Outcome{Index: index, ID: obj.ID, Result: &res}
}

// Summarize condenses outcomes into fleet health counters.
func Summarize(outcomes []model.Outcome) model.FleetHealth {
	h := model.FleetHealth{Total: len(outcomes)}
	for _, o := range outcomes {
		if !o.OK() {
			h.Invalid++
			continue
		}
		h.Add(*o.Result)
	}
	h.Finalize()
	return h
}
