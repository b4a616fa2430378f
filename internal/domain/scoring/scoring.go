// Package scoring computes how far tracked balloons drifted from their
// predicted positions and classifies them as nominal or anomalous.
//
// Every function in this package is pure: results depend only on the inputs
// and the Scorer configuration, and nothing is retained between calls.
package scoring

import (
	"math"

	"github.com/okian/stratowatch/internal/domain/model"
)

// Default scoring configuration constants.
const (
	DefaultThresholdPct      = 15.0
	DefaultRapidDescentMps   = -10.0
	DefaultLowBatteryPercent = 30.0
	percentMultiplier        = 100.0
)

// Scorer scores deviations. The zero value is not usable; build one with New.
type Scorer struct {
	threshold       float64
	kmPerDegree     float64
	mode            DistanceMode
	rapidDescentMps float64
	lowBatteryPct   float64
}

// New creates a Scorer with defaults overridden by opts.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		threshold:       DefaultThresholdPct,
		kmPerDegree:     DefaultKmPerDegree,
		mode:            ModeApproximate,
		rapidDescentMps: DefaultRapidDescentMps,
		lowBatteryPct:   DefaultLowBatteryPercent,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Threshold returns the configured anomaly threshold in percent.
func (s *Scorer) Threshold() float64 { return s.threshold }

// Mode returns the configured distance mode.
func (s *Scorer) Mode() DistanceMode { return s.mode }

// Divergence returns the distance in kilometers between two points using the
// configured mode. Points are not validated.
func (s *Scorer) Divergence(observed, predicted model.GeoPoint) float64 {
	if s.mode == ModeHaversine {
		return haversineKm(observed, predicted)
	}
	return approximateKm(observed, predicted, s.kmPerDegree)
}

// ScoreDeviation scores one observed/predicted pair against a positional
// uncertainty radius. The returned result has no ID.
func (s *Scorer) ScoreDeviation(observed, predicted model.GeoPoint, uncertaintyKm float64) (model.DeviationResult, error) {
	if math.IsNaN(uncertaintyKm) || math.IsInf(uncertaintyKm, 0) || uncertaintyKm <= 0 {
		return model.DeviationResult{}, model.InvalidInputf("uncertainty must be a positive number of kilometers, got %v", uncertaintyKm)
	}
	if err := observed.Validate(); err != nil {
		return model.DeviationResult{}, err
	}
	if err := predicted.Validate(); err != nil {
		return model.DeviationResult{}, err
	}

	divergence := s.Divergence(observed, predicted)
	pct := divergence / uncertaintyKm * percentMultiplier
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return model.DeviationResult{}, model.InvalidInputf("uncertainty %v km is too small for a divergence of %v km", uncertaintyKm, divergence)
	}

	class := model.Nominal
	if pct > s.threshold {
		class = model.Anomalous
	}

	return model.DeviationResult{
		DivergenceKm:   divergence,
		DeviationPct:   pct,
		Classification: class,
	}, nil
}

// ScoreObject scores a tracked object and evaluates its telemetry flags.
func (s *Scorer) ScoreObject(obj model.TrackedObject) (model.DeviationResult, error) {
	if obj.ID == "" {
		return model.DeviationResult{}, model.InvalidInputf("object id must not be empty")
	}
	res, err := s.ScoreDeviation(obj.Observed, obj.Predicted, obj.UncertaintyKm)
	if err != nil {
		return model.DeviationResult{}, err
	}
	res.ID = obj.ID
	res.Flags = s.flags(obj.Telemetry)
	return res, nil
}

func (s *Scorer) flags(t *model.Telemetry) []model.Flag {
	if t == nil {
		return nil
	}
	var out []model.Flag
	if t.VerticalRateMps != nil && *t.VerticalRateMps <= s.rapidDescentMps {
		out = append(out, model.FlagRapidDescent)
	}
	if t.BatteryPercent != nil && *t.BatteryPercent < s.lowBatteryPct {
		out = append(out, model.FlagLowBattery)
	}
	return out
}
