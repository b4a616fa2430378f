// Command genfleet generates synthetic balloon fleets and soundings and can
// check a running stratowatch service against them.
package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/stratowatch/internal/testfleet"
)

// Default configuration constants.
const (
	defaultObjects   = 1000
	defaultLevels    = 40
	defaultBatchSize = 250
	defaultWorkers   = 2 // multiplier for runtime.NumCPU()
	defaultTimeout   = 30 * time.Second
	defaultRunTime   = 10 * time.Minute
	defaultTolerance = 1e-6
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		objects   = flag.Int("objects", defaultObjects, "Number of fleet objects to generate")
		levels    = flag.Int("levels", defaultLevels, "Number of sounding levels to generate")
		seed      = flag.Uint64("seed", 7284, "Seed for generated data")
		batch     = flag.Int("batch", defaultBatchSize, "Objects per POST /score request")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent submitters")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		out       = flag.String("out", "", "Directory to write fleet.json and sounding.json to")
		submit    = flag.Bool("submit", false, "Submit fixtures to the service and verify the responses")
		tolerance = flag.Float64("tolerance", defaultTolerance, "Allowed absolute difference on float fields")
		logFormat = flag.String("log-format", "tint", "Log format: text, json or tint")
		verbose   = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if err := testfleet.SetupLogging(*logFormat, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTime)
	defer cancel()

	stats, err := testfleet.Run(ctx, &testfleet.Config{
		BaseURL:   *baseURL,
		Objects:   *objects,
		Levels:    *levels,
		Seed:      *seed,
		BatchSize: *batch,
		Workers:   *workers,
		Timeout:   *timeout,
		OutputDir: *out,
		Submit:    *submit,
		Tolerance: *tolerance,
		Verbose:   *verbose,
	})
	if stats != nil {
		testfleet.PrintStats(os.Stdout, stats)
	}
	if err != nil {
		os.Stderr.WriteString("genfleet failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
