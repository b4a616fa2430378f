// Package config defines service configuration and how it is loaded.
//
// Conventions:
// - New() returns the defaults; Load layers a YAML file and env vars on top.
// - Validation failures wrap ErrInvalidConfig, load failures ErrLoadConfig.
package config

import (
	"fmt"
	"math"
	"net/netip"
	"runtime"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text, json or tint.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory job queue.
	QueueSize int `koanf:"queue_size"`

	// ParallelThreshold is the fleet size from which scoring fans out to the
	// worker pool. Smaller fleets are scored inline.
	ParallelThreshold int `koanf:"parallel_threshold"`

	// MaxBatchSize caps the number of objects or levels in one request.
	MaxBatchSize int `koanf:"max_batch_size"`

	// MaxAnomalyLimit caps GET /anomalies?limit.
	MaxAnomalyLimit int `koanf:"max_anomaly_limit"`

	// DeviationThresholdPct is the percentage above which an object is anomalous.
	DeviationThresholdPct float64 `koanf:"deviation_threshold_pct"`

	// KmPerDegree is the constant of the approximate distance mode.
	KmPerDegree float64 `koanf:"km_per_degree"`

	// DistanceMode is approximate or haversine.
	DistanceMode string `koanf:"distance_mode"`

	// RapidDescentMps flags objects descending at or faster than this (negative) rate.
	RapidDescentMps float64 `koanf:"rapid_descent_mps"`

	// LowBatteryPct flags objects whose battery is below this percentage.
	LowBatteryPct float64 `koanf:"low_battery_pct"`

	// ProfileDeviationThresholdC marks sounding levels whose |deviation| exceeds it.
	ProfileDeviationThresholdC float64 `koanf:"profile_deviation_threshold_c"`

	// RateLimitRPS and RateLimitBurst configure the per-client token bucket.
	// A zero RPS disables rate limiting.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// TrustedProxies is a comma-separated list of proxy addresses or CIDRs
	// whose X-Forwarded-For header the rate limiter believes. Empty means
	// clients are keyed by socket address only.
	TrustedProxies string `koanf:"trusted_proxies"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:                   "info",
		LogFormat:                  "text",
		Addr:                       ":9080",
		WorkerCount:                runtime.NumCPU() * 2,
		QueueSize:                  10_000,
		ParallelThreshold:          256,
		MaxBatchSize:               10_000,
		MaxAnomalyLimit:            100,
		DeviationThresholdPct:      15,
		KmPerDegree:                111,
		DistanceMode:               "approximate",
		RapidDescentMps:            -10,
		LowBatteryPct:              30,
		ProfileDeviationThresholdC: 10,
		RateLimitRPS:               50,
		RateLimitBurst:             100,
	}
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.WorkerCount < 1:
		return invalid("worker_count must be at least 1, got %d", c.WorkerCount)
	case c.QueueSize < 1:
		return invalid("queue_size must be at least 1, got %d", c.QueueSize)
	case c.ParallelThreshold < 1:
		return invalid("parallel_threshold must be at least 1, got %d", c.ParallelThreshold)
	case c.MaxBatchSize < 1:
		return invalid("max_batch_size must be at least 1, got %d", c.MaxBatchSize)
	case c.MaxAnomalyLimit < 1:
		return invalid("max_anomaly_limit must be at least 1, got %d", c.MaxAnomalyLimit)
	case !(c.DeviationThresholdPct >= 0) || math.IsInf(c.DeviationThresholdPct, 1):
		return invalid("deviation_threshold_pct must be a finite non-negative number, got %v", c.DeviationThresholdPct)
	case c.KmPerDegree <= 0:
		return invalid("km_per_degree must be positive, got %v", c.KmPerDegree)
	case c.RapidDescentMps >= 0:
		return invalid("rapid_descent_mps must be negative, got %v", c.RapidDescentMps)
	case c.LowBatteryPct <= 0 || c.LowBatteryPct > 100:
		return invalid("low_battery_pct must be in (0,100], got %v", c.LowBatteryPct)
	case c.ProfileDeviationThresholdC <= 0:
		return invalid("profile_deviation_threshold_c must be positive, got %v", c.ProfileDeviationThresholdC)
	case c.RateLimitRPS < 0:
		return invalid("rate_limit_rps must not be negative, got %v", c.RateLimitRPS)
	case c.RateLimitRPS > 0 && c.RateLimitBurst < 1:
		return invalid("rate_limit_burst must be at least 1 when rate limiting is on, got %d", c.RateLimitBurst)
	}

	switch strings.ToLower(c.DistanceMode) {
	case "approximate", "haversine":
	default:
		return invalid("distance_mode must be approximate or haversine, got %q", c.DistanceMode)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json", "tint":
	default:
		return invalid("log_format must be text, json or tint, got %q", c.LogFormat)
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return invalid("trusted_proxies: %v", err)
	}
	return nil
}

// TrustedProxyPrefixes parses TrustedProxies. Bare addresses become
// single-host prefixes.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range strings.Split(c.TrustedProxies, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
