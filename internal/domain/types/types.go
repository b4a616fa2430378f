// Package types contains the response shapes shared by the service and the
// HTTP API.
package types

import (
	"time"

	"github.com/okian/stratowatch/internal/domain/model"
)

// Entry represents an anomaly board row.
type Entry struct {
	Rank           int                  `json:"rank"`
	ID             string               `json:"id"`
	DivergenceKm   float64              `json:"divergence_km"`
	DeviationPct   float64              `json:"deviation_pct"`
	Classification model.Classification `json:"classification"`
	Flags          []model.Flag         `json:"flags,omitempty"`
	ScoredAt       time.Time            `json:"scored_at"`
}

// ElementError reports why one element of a batch was rejected.
type ElementError struct {
	Index   int    `json:"index"`
	ID      string `json:"id,omitempty"`
	Message string `json:"error"`
}

// FleetReport is the result of scoring one fleet. Results and Errors are each
// in input order.
type FleetReport struct {
	Results []model.DeviationResult `json:"results"`
	Errors  []ElementError          `json:"errors"`
	Health  model.FleetHealth       `json:"health"`
}

// NewFleetReport splits outcomes into results and element errors.
func NewFleetReport(outcomes []model.Outcome, health model.FleetHealth) FleetReport {
	r := FleetReport{
		Results: make([]model.DeviationResult, 0, health.Scored),
		Errors:  make([]ElementError, 0, health.Invalid),
		Health:  health,
	}
	for _, o := range outcomes {
		if o.OK() {
			r.Results = append(r.Results, *o.Result)
			continue
		}
		r.Errors = append(r.Errors, ElementError{Index: o.Index, ID: o.ID, Message: o.Err.Error()})
	}
	return r
}

// ProfileReport is a built profile plus its rejected levels.
type ProfileReport struct {
	model.ProfileResult
	Errors []ElementError `json:"errors"`
}

// NewProfileReport converts level errors into their wire form.
func NewProfileReport(res model.ProfileResult) ProfileReport {
	r := ProfileReport{ProfileResult: res, Errors: make([]ElementError, 0, len(res.Errors))}
	if r.Levels == nil {
		r.Levels = []model.ProfileLevel{}
	}
	for _, e := range res.Errors {
		r.Errors = append(r.Errors, ElementError{Index: e.Index, Message: e.Err.Error()})
	}
	return r
}
