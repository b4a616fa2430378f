package repository

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/stratowatch/internal/domain/model"
	"github.com/okian/stratowatch/pkg/metrics"
)

// Treap-based, in-memory Board implementation.
//
// Ordering: deviation DESC, then ID ASC (deterministic).
// "less" means ranks earlier, so an in-order walk yields the board from the
// most to the least deviating object. Node priorities are random, which keeps
// the expected depth logarithmic whatever the insertion order.
//
// Keys are the deviation percentages themselves. Upsert rejects NaN and Inf,
// so every key compares totally and distinct values never tie.

// record is the board payload kept per object.
type record struct {
	deviation      float64
	divergenceKm   float64
	classification model.Classification
	flags          []model.Flag
	scoredAt       time.Time
}

// treap node
type node struct {
	id        string
	deviation float64
	prio      uint64
	left      *node
	right     *node
	size      int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aDev, aID) ranks before (bDev, bID).
func less(aDev float64, aID string, bDev float64, bID string) bool {
	if aDev != bDev {
		return aDev > bDev
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, dev float64, prio uint64) *node {
	if n == nil {
		return &node{id: id, deviation: dev, prio: prio, size: 1}
	}
	if less(dev, id, n.deviation, n.id) {
		n.left = insert(n.left, id, dev, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, dev, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, dev float64) *node {
	if n == nil {
		return nil
	}
	switch {
	case dev == n.deviation && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, dev)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, dev)
		}
	case less(dev, id, n.deviation, n.id):
		n.left = deleteNode(n.left, id, dev)
	default:
		n.right = deleteNode(n.right, id, dev)
	}
	fix(n)
	return n
}

// countAbove returns how many nodes carry a strictly higher deviation.
func countAbove(n *node, dev float64) int {
	count := 0
	for n != nil {
		if n.deviation > dev {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit nodes in rank order.
func collectTopN(n *node, limit int, out *[]*node) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// TreapBoard is the default Board. It is safe for concurrent use.
type TreapBoard struct {
	mu   sync.RWMutex
	root *node
	byID map[string]record

	// running totals for Health
	anomalous    int
	lowBattery   int
	rapidDescent int

	clock                 clockwork.Clock
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewTreapBoard constructs a board and starts its metrics updater, which runs
// until ctx is done or Close is called.
func NewTreapBoard(ctx context.Context, opts ...Option) *TreapBoard {
	b := &TreapBoard{
		byID:                  make(map[string]record),
		clock:                 clockwork.NewRealClock(),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}

	for _, opt := range opts {
		opt(b)
	}

	b.startMetricsUpdater(ctx)
	return b
}

// Close stops the background metrics updater.
func (b *TreapBoard) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()
	return nil
}

// Upsert implements Board.Upsert in O(log n) expected time.
func (b *TreapBoard) Upsert(_ context.Context, result model.DeviationResult, scoredAt time.Time) error {
	if result.ID == "" || math.IsNaN(result.DeviationPct) || math.IsInf(result.DeviationPct, 0) {
		metrics.RecordErrorByComponent("repository", "invalid_entry")
		return ErrInvalidEntry
	}

	start := time.Now()
	defer func() {
		metrics.RecordBoardUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	dev := result.DeviationPct
	rec := record{
		deviation:      dev,
		divergenceKm:   result.DivergenceKm,
		classification: result.Classification,
		flags:          append([]model.Flag(nil), result.Flags...),
		scoredAt:       scoredAt,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.byID[result.ID]; ok {
		b.root = deleteNode(b.root, result.ID, old.deviation)
		b.account(old, -1)
	}
	b.byID[result.ID] = rec
	b.account(rec, 1)
	b.root = insert(b.root, result.ID, dev, rand.Uint64())
	return nil
}

// account adjusts the running health totals by delta for rec.
func (b *TreapBoard) account(rec record, delta int) {
	if rec.classification == model.Anomalous {
		b.anomalous += delta
	}
	for _, f := range rec.flags {
		switch f {
		case model.FlagLowBattery:
			b.lowBattery += delta
		case model.FlagRapidDescent:
			b.rapidDescent += delta
		}
	}
}

// Rank returns the competition rank of an object in O(log n): one plus the
// number of objects with a strictly higher deviation.
func (b *TreapBoard) Rank(_ context.Context, id string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordBoardQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}
	e := rec.entry(id)
	e.Rank = countAbove(b.root, rec.deviation) + 1
	return e, nil
}

// TopN returns the n most deviating objects with competition ranks.
func (b *TreapBoard) TopN(_ context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordBoardQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	nodes := make([]*node, 0, min(n, len(b.byID)))
	collectTopN(b.root, n, &nodes)

	out := make([]Entry, len(nodes))
	for i, nd := range nodes {
		out[i] = b.byID[nd.id].entry(nd.id)
		if i > 0 && nodes[i-1].deviation == nd.deviation {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = i + 1
		}
	}
	return out, nil
}

// Count returns the number of objects on the board.
func (b *TreapBoard) Count(_ context.Context) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}

// Health summarises the board. Every entry is a scored result, so Invalid is
// always zero.
func (b *TreapBoard) Health(_ context.Context) model.FleetHealth {
	b.mu.RLock()
	h := model.FleetHealth{
		Total:        len(b.byID),
		Scored:       len(b.byID),
		Anomalous:    b.anomalous,
		Nominal:      len(b.byID) - b.anomalous,
		LowBattery:   b.lowBattery,
		RapidDescent: b.rapidDescent,
	}
	b.mu.RUnlock()
	h.Finalize()
	return h
}

// Remove drops an object from the board.
func (b *TreapBoard) Remove(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.byID[id]
	if !ok {
		return ErrNotFound
	}
	b.root = deleteNode(b.root, id, rec.deviation)
	b.account(rec, -1)
	delete(b.byID, id)
	return nil
}

func (r record) entry(id string) Entry {
	return Entry{
		ID:             id,
		DivergenceKm:   r.divergenceKm,
		DeviationPct:   r.deviation,
		Classification: r.classification,
		Flags:          append([]model.Flag(nil), r.flags...),
		ScoredAt:       r.scoredAt,
	}
}

// startMetricsUpdater publishes board gauges on every tick of the clock.
func (b *TreapBoard) startMetricsUpdater(ctx context.Context) {
	ticker := b.clock.NewTicker(b.metricsUpdateInterval)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopChan:
				return
			case <-ticker.Chan():
				b.updateMetrics()
			}
		}
	}()
}

func (b *TreapBoard) updateMetrics() {
	b.mu.RLock()
	total, anomalous := len(b.byID), b.anomalous
	b.mu.RUnlock()

	metrics.UpdateBoardEntries(total)
	metrics.UpdateBoardAnomalous(anomalous)
}
