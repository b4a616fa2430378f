// Package repository keeps the in-memory anomaly board: the latest deviation
// result per tracked object, ranked by deviation percentage.
package repository

import (
	"context"
	"time"

	"github.com/okian/stratowatch/internal/domain/model"
)

// Entry is one board row.
type Entry struct {
	Rank           int
	ID             string
	DivergenceKm   float64
	DeviationPct   float64
	Classification model.Classification
	Flags          []model.Flag
	ScoredAt       time.Time
}

// Board provides read/write access to the ranked anomaly view.
type Board interface {
	// Upsert records the latest result for an object, replacing any previous
	// one regardless of its deviation.
	Upsert(ctx context.Context, result model.DeviationResult, scoredAt time.Time) error

	// Rank returns the board row for an object.
	// Returns ErrNotFound if the object is unknown.
	Rank(ctx context.Context, id string) (Entry, error)

	// TopN returns the n most deviating objects, deviation desc then ID asc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of objects on the board.
	Count(ctx context.Context) int

	// Health summarises the classifications and flags currently on the board.
	Health(ctx context.Context) model.FleetHealth

	// Remove drops an object from the board. Returns ErrNotFound if absent.
	Remove(ctx context.Context, id string) error
}
