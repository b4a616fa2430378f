package testfleet

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/okian/stratowatch/pkg/logger"
)

// SetupLogging initialises the process logger in the given format.
func SetupLogging(format string, verbose bool) error {
	if err := logger.InitWithFormat(format); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		logger.SetLevel(slog.LevelDebug)
	}
	return nil
}

// PrintStats writes a human summary of a run.
func PrintStats(w io.Writer, s *Stats) {
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintf(w, `genfleet summary
  objects generated: %d
  levels generated:  %d
  batches submitted: %d (failed %d)
  results verified:  %d
  errors verified:   %d
  mismatches:        %d
  duration:          %s
`, s.ObjectsGenerated, s.LevelsGenerated, s.BatchesSubmitted, s.BatchesFailed,
		s.ResultsVerified, s.ErrorsVerified, s.Mismatches, s.Duration.Round(time.Millisecond))
}
