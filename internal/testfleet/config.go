// Package testfleet generates synthetic balloon fleets and soundings and
// checks a running service against the local scorer.
package testfleet

import (
	"errors"
	"fmt"
	"time"
)

// MaxSoundingLevels keeps generated pressures distinct at 0.1 hPa resolution.
const MaxSoundingLevels = 500

// Config holds configuration for a generation run.
type Config struct {
	BaseURL   string        // Base URL of the service
	Objects   int           // Number of fleet objects to generate
	Levels    int           // Number of sounding levels to generate
	Seed      uint64        // Seed for all generated data
	BatchSize int           // Objects per POST /score request
	Workers   int           // Concurrent submitters
	Timeout   time.Duration // HTTP request timeout
	OutputDir string        // Where fixture files are written; empty skips writing
	Submit    bool          // Submit to BaseURL and verify responses
	Tolerance float64       // Allowed absolute difference on float fields
	Verbose   bool          // Enable debug logging
}

// ErrInvalidConfig reports an unusable Config.
var ErrInvalidConfig = errors.New("invalid genfleet config")

// Validate checks the fields a run depends on.
func (c *Config) Validate() error {
	switch {
	case c.Objects < 1:
		return errors.Join(ErrInvalidConfig, errors.New("objects must be at least 1"))
	case c.Levels < 2 || c.Levels > MaxSoundingLevels:
		return errors.Join(ErrInvalidConfig, fmt.Errorf("levels must be in [2,%d]", MaxSoundingLevels))
	case c.Submit && c.BatchSize < 1:
		return errors.Join(ErrInvalidConfig, errors.New("batch must be at least 1"))
	case c.Submit && c.Workers < 1:
		return errors.Join(ErrInvalidConfig, errors.New("workers must be at least 1"))
	case !c.Submit && c.OutputDir == "":
		return errors.Join(ErrInvalidConfig, errors.New("nothing to do: set -out or -submit"))
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	ObjectsGenerated int
	LevelsGenerated  int
	BatchesSubmitted int
	BatchesFailed    int
	ResultsVerified  int
	ErrorsVerified   int
	Mismatches       int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
