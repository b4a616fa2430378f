package service

import (
	"github.com/jonboulle/clockwork"
	"github.com/okian/stratowatch/internal/domain/atmosphere"
	"github.com/okian/stratowatch/internal/domain/scoring"
	"github.com/okian/stratowatch/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of scoring workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithParallelThreshold sets the fleet size from which scoring is fanned out
// to the worker pool.
func WithParallelThreshold(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallelThreshold = n
		}
	}
}

// WithScoringOptions configures the anomaly scorer.
func WithScoringOptions(opts ...scoring.Option) Option {
	return func(s *Service) {
		s.scoringOpts = append(s.scoringOpts, opts...)
	}
}

// WithProfileOptions configures the atmospheric profiler.
func WithProfileOptions(opts ...atmosphere.Option) Option {
	return func(s *Service) {
		s.profileOpts = append(s.profileOpts, opts...)
	}
}

// WithClock sets the clock used to timestamp board entries.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
