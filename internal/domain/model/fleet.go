// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
)

// Coordinate bounds in degrees.
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// GeoPoint is a WGS-84 latitude/longitude pair in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate reports ErrInvalidInput when the point lies outside the valid
// coordinate ranges or carries a non-finite component.
func (p GeoPoint) Validate() error {
	if !finite(p.Lat) || p.Lat < MinLatitude || p.Lat > MaxLatitude {
		return InvalidInputf("latitude %v outside [%v,%v]", p.Lat, MinLatitude, MaxLatitude)
	}
	if !finite(p.Lon) || p.Lon < MinLongitude || p.Lon > MaxLongitude {
		return InvalidInputf("longitude %v outside [%v,%v]", p.Lon, MinLongitude, MaxLongitude)
	}
	return nil
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", p.Lat, p.Lon)
}

// Telemetry carries optional live readings reported by a balloon. Nil
// pointers mean the reading was not reported.
type Telemetry struct {
	AltitudeM       float64  `json:"altitude_m,omitempty"`
	VerticalRateMps *float64 `json:"vertical_rate_mps,omitempty"`
	BatteryPercent  *float64 `json:"battery_percent,omitempty"`
	TemperatureC    *float64 `json:"temperature_c,omitempty"`
	PressureHPa     *float64 `json:"pressure_hpa,omitempty"`
}

// TrackedObject is one fleet member as supplied to a scoring call.
type TrackedObject struct {
	ID            string     `json:"id"`
	Observed      GeoPoint   `json:"observed"`
	Predicted     GeoPoint   `json:"predicted"`
	UncertaintyKm float64    `json:"uncertainty_km"`
	Telemetry     *Telemetry `json:"telemetry,omitempty"`
}

// Classification labels a deviation result.
type Classification string

// Classifications.
const (
	Nominal   Classification = "nominal"
	Anomalous Classification = "anomalous"
)

// Flag marks a telemetry exception detected alongside the spatial score.
type Flag string

// Telemetry exception flags.
const (
	FlagRapidDescent Flag = "rapid_descent"
	FlagLowBattery   Flag = "low_battery"
)

// DeviationResult is the derived score of a single object. It is never stored
// by the scoring core.
type DeviationResult struct {
	ID             string         `json:"id"`
	DivergenceKm   float64        `json:"divergence_km"`
	DeviationPct   float64        `json:"deviation_pct"`
	Classification Classification `json:"classification"`
	Flags          []Flag         `json:"flags,omitempty"`
}

// Anomalous reports whether the result crossed the deviation threshold.
func (r DeviationResult) Anomalous() bool { return r.Classification == Anomalous }

// HasFlag reports whether f was raised for this result.
func (r DeviationResult) HasFlag(f Flag) bool {
	for _, got := range r.Flags {
		if got == f {
			return true
		}
	}
	return false
}

// Outcome is the per-element result of a fleet scoring pass. Exactly one of
// Result and Err is set.
type Outcome struct {
	Index  int
	ID     string
	Result *DeviationResult
	Err    error
}

// OK reports whether the element was scored successfully.
func (o Outcome) OK() bool { return o.Err == nil && o.Result != nil }

// FleetHealth summarises a set of outcomes or board entries.
type FleetHealth struct {
	Total        int     `json:"total"`
	Scored       int     `json:"scored"`
	Nominal      int     `json:"nominal"`
	Anomalous    int     `json:"anomalous"`
	Invalid      int     `json:"invalid"`
	LowBattery   int     `json:"low_battery"`
	RapidDescent int     `json:"rapid_descent"`
	NominalPct   float64 `json:"nominal_pct"`
	AnomalousPct float64 `json:"anomalous_pct"`
}

// Add counts one successfully scored result.
func (h *FleetHealth) Add(r DeviationResult) {
	h.Scored++
	if r.Anomalous() {
		h.Anomalous++
	} else {
		h.Nominal++
	}
	if r.HasFlag(FlagLowBattery) {
		h.LowBattery++
	}
	if r.HasFlag(FlagRapidDescent) {
		h.RapidDescent++
	}
}

// Finalize derives the percentages from the counters. Percentages are taken
// over scored results; they stay zero when nothing was scored.
func (h *FleetHealth) Finalize() {
	if h.Scored == 0 {
		h.NominalPct, h.AnomalousPct = 0, 0
		return
	}
	h.NominalPct = float64(h.Nominal) / float64(h.Scored) * 100
	h.AnomalousPct = float64(h.Anomalous) / float64(h.Scored) * 100
}

// ScoreJob is a unit of fleet scoring work handed to the worker pool.
type ScoreJob struct {
	Index  int
	Object TrackedObject
	Done   func(Outcome)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
