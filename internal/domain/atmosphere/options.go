package atmosphere

// DefaultDeviationThresholdC is the absolute deviation above which a level is
// marked anomalous.
const DefaultDeviationThresholdC = 10.0

// Option applies a configuration option to the Profiler.
type Option func(*Profiler)

// WithDeviationThreshold sets the absolute deviation in °C above which a level
// is marked anomalous. Non-positive values are ignored.
func WithDeviationThreshold(c float64) Option {
	return func(p *Profiler) {
		if c > 0 {
			p.threshold = c
		}
	}
}
