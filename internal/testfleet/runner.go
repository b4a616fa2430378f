package testfleet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/okian/stratowatch/internal/domain/atmosphere"
	"github.com/okian/stratowatch/internal/domain/model"
	"github.com/okian/stratowatch/internal/domain/scoring"
	"github.com/okian/stratowatch/internal/domain/types"
	"github.com/okian/stratowatch/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Fixture file names written to Config.OutputDir.
const (
	FleetFile    = "fleet.json"
	SoundingFile = "sounding.json"
)

// boardSample is how many top board rows are fetched for the order check.
const boardSample = 100

// ErrVerification reports that the service disagreed with local results.
var ErrVerification = errors.New("verification failed")

// Run generates the fixtures, optionally writes them to disk and optionally
// submits them to a running service and verifies the answers.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.Get().Named("genfleet")
	stats := &Stats{StartTime: time.Now()}

	fleet := GenerateFleet(cfg.Seed, cfg.Objects)
	sounding := GenerateSounding(cfg.Seed, cfg.Levels)
	stats.ObjectsGenerated, stats.LevelsGenerated = len(fleet), len(sounding)
	log.Info(ctx, "generated fixtures",
		logger.Int("objects", len(fleet)),
		logger.Int("levels", len(sounding)),
		logger.Any("seed", cfg.Seed),
	)

	if cfg.OutputDir != "" {
		if err := writeFixtures(cfg.OutputDir, fleet, sounding); err != nil {
			return stats, err
		}
		log.Info(ctx, "wrote fixtures", logger.String("dir", cfg.OutputDir))
	}

	if cfg.Submit {
		if err := submitAndVerify(ctx, cfg, fleet, sounding, stats, log); err != nil {
			return finish(stats), err
		}
	}

	return finish(stats), nil
}

func finish(stats *Stats) *Stats {
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	return stats
}

func writeFixtures(dir string, fleet []model.TrackedObject, sounding []model.SoundingLevel) error {
	if err := os.MkdirAll(dir, directoryPermission); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, FleetFile), map[string]any{"objects": fleet}); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, SoundingFile), map[string]any{"levels": sounding})
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, filePermission); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func submitAndVerify(ctx context.Context, cfg *Config, fleet []model.TrackedObject, sounding []model.SoundingLevel, stats *Stats, log logger.Logger) error {
	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Healthy(ctx); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// The local scorer uses the service defaults; a service configured
	// differently will be reported as mismatching.
	scorer := scoring.New()
	var mismatches []Mismatch

	reports, err := submitFleet(ctx, client, cfg, fleet, stats)
	if err != nil {
		return err
	}
	for offset, rep := range reports {
		end := min(offset+cfg.BatchSize, len(fleet))
		mm := VerifyFleet(scorer, fleet[offset:end], offset, rep, cfg.Tolerance)
		mismatches = append(mismatches, mm...)
		stats.ResultsVerified += len(rep.Results)
		stats.ErrorsVerified += len(rep.Errors)
	}

	var profile types.ProfileReport
	if err := client.Post(ctx, "/profile", map[string]any{"levels": sounding}, &profile); err != nil {
		return fmt.Errorf("profile submission failed: %w", err)
	}
	mismatches = append(mismatches, VerifyProfile(atmosphere.NewProfiler(), sounding, profile, cfg.Tolerance)...)

	var board []types.Entry
	if err := client.Get(ctx, fmt.Sprintf("/anomalies?limit=%d", boardSample), &board); err != nil {
		return fmt.Errorf("board retrieval failed: %w", err)
	}
	mismatches = append(mismatches, VerifyBoardOrder(board)...)

	stats.Mismatches = len(mismatches)
	for _, m := range mismatches {
		log.Warn(ctx, "mismatch", logger.String("detail", m.String()))
	}
	if len(mismatches) > 0 {
		return fmt.Errorf("%w: %d mismatches", ErrVerification, len(mismatches))
	}
	log.Info(ctx, "service answers match local results",
		logger.Int("results", stats.ResultsVerified),
		logger.Int("errors", stats.ErrorsVerified),
		logger.Int("profileLevels", len(profile.Levels)),
	)
	return nil
}

// submitFleet posts the fleet in batches from cfg.Workers goroutines and
// returns the reports keyed by batch offset. Failed batches are counted and
// logged; they do not stop the run.
func submitFleet(ctx context.Context, client *Client, cfg *Config, fleet []model.TrackedObject, stats *Stats) (map[int]types.FleetReport, error) {
	log := logger.Get().Named("genfleet")

	offsets := make(chan int, cfg.Workers*2)
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		reports = make(map[int]types.FleetReport)
	)

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for offset := range offsets {
				end := min(offset+cfg.BatchSize, len(fleet))
				var rep types.FleetReport
				err := client.Post(ctx, "/score", map[string]any{"objects": fleet[offset:end]}, &rep)

				mu.Lock()
				stats.BatchesSubmitted++
				if err != nil {
					stats.BatchesFailed++
				} else {
					reports[offset] = rep
				}
				mu.Unlock()

				if err != nil {
					log.Warn(ctx, "batch failed", logger.Int("offset", offset), logger.Error(err))
				} else if cfg.Verbose {
					log.Debug(ctx, "batch scored", logger.Int("offset", offset), logger.Int("anomalous", rep.Health.Anomalous))
				}
			}
		}()
	}

	go func() {
		defer close(offsets)
		for offset := 0; offset < len(fleet); offset += cfg.BatchSize {
			select {
			case <-ctx.Done():
				return
			case offsets <- offset:
			}
		}
	}()

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if stats.BatchesFailed > 0 {
		return reports, fmt.Errorf("%d of %d batches failed", stats.BatchesFailed, stats.BatchesSubmitted)
	}
	return reports, nil
}
