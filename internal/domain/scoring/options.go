package scoring

import "math"

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithThreshold sets the deviation percentage above which a result is
// anomalous. Zero marks any divergence as anomalous; negative and NaN values
// are ignored.
func WithThreshold(pct float64) Option {
	return func(s *Scorer) {
		if pct >= 0 && !math.IsInf(pct, 1) {
			s.threshold = pct
		}
	}
}

// WithKmPerDegree overrides the kilometers-per-degree constant of the
// approximate distance mode.
func WithKmPerDegree(km float64) Option {
	return func(s *Scorer) {
		if km > 0 {
			s.kmPerDegree = km
		}
	}
}

// WithDistanceMode selects the divergence formula.
func WithDistanceMode(mode DistanceMode) Option {
	return func(s *Scorer) {
		if mode == ModeApproximate || mode == ModeHaversine {
			s.mode = mode
		}
	}
}

// WithRapidDescentRate sets the vertical rate (m/s, negative) at or below
// which a balloon is flagged as descending rapidly.
func WithRapidDescentRate(mps float64) Option {
	return func(s *Scorer) {
		if mps < 0 {
			s.rapidDescentMps = mps
		}
	}
}

// WithLowBatteryPercent sets the charge below which a balloon is flagged.
func WithLowBatteryPercent(pct float64) Option {
	return func(s *Scorer) {
		if pct > 0 && pct <= 100 {
			s.lowBatteryPct = pct
		}
	}
}
