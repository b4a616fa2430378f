package repository

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Option applies a configuration option to the TreapBoard.
type Option func(*TreapBoard)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(b *TreapBoard) {
		if interval > 0 {
			b.metricsUpdateInterval = interval
		}
	}
}

// WithClock replaces the clock that drives the metrics updater.
func WithClock(c clockwork.Clock) Option {
	return func(b *TreapBoard) {
		if c != nil {
			b.clock = c
		}
	}
}
