// Package service wires the anomaly scorer, the atmospheric profiler, the
// anomaly board and the worker pool into the operations used by the HTTP API.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	jobqueue "github.com/okian/stratowatch/internal/adapters/mq/queue"
	workerpool "github.com/okian/stratowatch/internal/adapters/mq/worker"
	repository "github.com/okian/stratowatch/internal/adapters/repository"
	"github.com/okian/stratowatch/internal/domain/atmosphere"
	"github.com/okian/stratowatch/internal/domain/model"
	"github.com/okian/stratowatch/internal/domain/scoring"
	"github.com/okian/stratowatch/internal/domain/types"
	"github.com/okian/stratowatch/pkg/logger"
	"github.com/okian/stratowatch/pkg/metrics"
)

const (
	defaultQueueSize         = 10_000
	defaultParallelThreshold = 256
)

// Service implements the API dependencies for fleet scoring and soundings.
type Service struct {
	mu sync.RWMutex

	// Core components
	scorer   *scoring.Scorer
	profiler *atmosphere.Profiler
	board    *repository.TreapBoard
	queue    *jobqueue.InMemoryQueue
	pool     *workerpool.Pool
	clock    clockwork.Clock

	// Configuration
	workerCount       int
	queueSize         int
	parallelThreshold int
	scoringOpts       []scoring.Option
	profileOpts       []atmosphere.Option

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service. The scorer and profiler are usable right away;
// fleet scoring and board queries need Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:       runtime.NumCPU() * 2,
		queueSize:         defaultQueueSize,
		parallelThreshold: defaultParallelThreshold,
		clock:             clockwork.NewRealClock(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.scorer = scoring.New(s.scoringOpts...)
	s.profiler = atmosphere.NewProfiler(s.profileOpts...)
	return s
}

// Start initializes the board, queue and worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting anomaly service...")

	// Background loops outlive the caller's ctx; Stop cancels them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.board = repository.NewTreapBoard(runCtx, repository.WithClock(s.clock))
	s.queue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.scorer)
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "anomaly service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("parallelThreshold", s.parallelThreshold),
		logger.Float64("thresholdPct", s.scorer.Threshold()),
		logger.String("distanceMode", string(s.scorer.Mode())),
	)

	return nil
}

// Stop gracefully shuts down the worker pool and the board.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping anomaly service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	_ = s.board.Close()
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "anomaly service stopped")
}

// ScoreFleet scores objects, records every successful result on the board and
// returns per-element results and errors in input order. Fleets of at least
// the parallel threshold are fanned out to the worker pool; the outcome is the
// same as scoring sequentially.
func (s *Service) ScoreFleet(ctx context.Context, objects []model.TrackedObject) (types.FleetReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return types.FleetReport{}, ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return types.FleetReport{}, err
	}

	start := time.Now()

	var outcomes []model.Outcome
	if len(objects) >= s.parallelThreshold {
		var err error
		if outcomes, err = s.scoreParallel(ctx, objects); err != nil {
			return types.FleetReport{}, err
		}
	} else {
		outcomes = s.scorer.ScoreFleet(objects)
	}

	scoredAt := s.clock.Now()
	for _, o := range outcomes {
		if !o.OK() {
			metrics.RecordObjectInvalid()
			s.logger.Debug(ctx, "object rejected", logger.Int("index", o.Index), logger.Error(o.Err))
			continue
		}
		metrics.RecordObjectScored(string(o.Result.Classification))
		for _, f := range o.Result.Flags {
			metrics.RecordFlagRaised(string(f))
		}
		if err := s.board.Upsert(ctx, *o.Result, scoredAt); err != nil {
			s.logger.Warn(ctx, "board upsert failed", logger.String("objectID", o.ID), logger.Error(err))
		}
	}

	health := scoring.Summarize(outcomes)
	metrics.RecordFleetScored(float64(time.Since(start).Microseconds()) / 1000)
	s.logger.Debug(ctx, "fleet scored",
		logger.Int("total", health.Total),
		logger.Int("anomalous", health.Anomalous),
		logger.Int("invalid", health.Invalid),
	)

	return types.NewFleetReport(outcomes, health), nil
}

// scoreParallel hands pending elements to the worker pool. Elements the queue
// refuses are scored inline so every index completes exactly once.
func (s *Service) scoreParallel(ctx context.Context, objects []model.TrackedObject) ([]model.Outcome, error) {
	outcomes, pending := s.scorer.PrepareFleet(objects)
	batch := workerpool.NewBatch(outcomes, len(pending))

	for _, i := range pending {
		job := batch.Job(i, objects[i])
		if !s.queue.Enqueue(ctx, job) {
			metrics.RecordInlineFallback()
			batch.Complete(s.scorer.ScoreAt(i, objects[i]))
		}
	}

	return batch.Wait(ctx)
}

// BuildProfile compares a sounding against the reference atmosphere.
func (s *Service) BuildProfile(ctx context.Context, levels []model.SoundingLevel) types.ProfileReport {
	start := time.Now()
	res := s.profiler.BuildProfile(levels)

	metrics.RecordProfileBuilt(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordProfileLevels("valid", len(res.Levels))
	metrics.RecordProfileLevels("invalid", len(res.Errors))

	if s.logger != nil {
		s.logger.Debug(ctx, "profile built",
			logger.Int("levels", len(res.Levels)),
			logger.Int("rejected", len(res.Errors)),
			logger.Float64("meanDeviationC", res.MeanDeviationC),
		)
	}

	return types.NewProfileReport(res)
}

// TopN returns the n most deviating objects on the board.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, ErrNotStarted
	}

	entries, err := s.board.TopN(ctx, n)
	if err != nil {
		return nil, err
	}

	out := make([]types.Entry, len(entries))
	for i, e := range entries {
		out[i] = toEntry(e)
	}
	return out, nil
}

// Rank returns the board row of one object.
func (s *Service) Rank(ctx context.Context, id string) (types.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return types.Entry{}, ErrNotStarted
	}

	e, err := s.board.Rank(ctx, id)
	if err != nil {
		return types.Entry{}, err
	}
	return toEntry(e), nil
}

// FleetHealth summarises the latest result of every object on the board.
func (s *Service) FleetHealth(ctx context.Context) (model.FleetHealth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return model.FleetHealth{}, ErrNotStarted
	}
	return s.board.Health(ctx), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":           s.started,
		"workerCount":       s.workerCount,
		"queueSize":         s.queueSize,
		"parallelThreshold": s.parallelThreshold,
		"thresholdPct":      s.scorer.Threshold(),
		"distanceMode":      string(s.scorer.Mode()),
		"profileThresholdC": s.profiler.Threshold(),
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["boardEntries"] = s.board.Count(ctx)
		stats["processed"] = s.pool.Processed()

		metrics.UpdateQueueSize(queueLen)
	}

	return stats
}

func toEntry(e repository.Entry) types.Entry {
	return types.Entry{
		Rank:           e.Rank,
		ID:             e.ID,
		DivergenceKm:   e.DivergenceKm,
		DeviationPct:   e.DeviationPct,
		Classification: e.Classification,
		Flags:          e.Flags,
		ScoredAt:       e.ScoredAt,
	}
}
