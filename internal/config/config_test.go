package config_test

import (
	"errors"
	"math"
	"runtime"
	"testing"

	"github.com/okian/stratowatch/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.ParallelThreshold, convey.ShouldEqual, 256)
			convey.So(cfg.MaxBatchSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.MaxAnomalyLimit, convey.ShouldEqual, 100)
			convey.So(cfg.DeviationThresholdPct, convey.ShouldEqual, 15.0)
			convey.So(cfg.KmPerDegree, convey.ShouldEqual, 111.0)
			convey.So(cfg.DistanceMode, convey.ShouldEqual, "approximate")
			convey.So(cfg.RapidDescentMps, convey.ShouldEqual, -10.0)
			convey.So(cfg.LowBatteryPct, convey.ShouldEqual, 30.0)
			convey.So(cfg.ProfileDeviationThresholdC, convey.ShouldEqual, 10.0)
		})

		convey.Convey("Then the defaults validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one bad setting", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
			want   string
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }, "addr must not be empty"},
			{"zero workers", func(c *config.Config) { c.WorkerCount = 0 }, "worker_count"},
			{"zero queue", func(c *config.Config) { c.QueueSize = 0 }, "queue_size"},
			{"zero parallel threshold", func(c *config.Config) { c.ParallelThreshold = 0 }, "parallel_threshold"},
			{"zero batch", func(c *config.Config) { c.MaxBatchSize = 0 }, "max_batch_size"},
			{"zero anomaly limit", func(c *config.Config) { c.MaxAnomalyLimit = 0 }, "max_anomaly_limit"},
			{"negative threshold", func(c *config.Config) { c.DeviationThresholdPct = -1 }, "deviation_threshold_pct"},
			{"NaN threshold", func(c *config.Config) { c.DeviationThresholdPct = math.NaN() }, "deviation_threshold_pct"},
			{"negative km per degree", func(c *config.Config) { c.KmPerDegree = -1 }, "km_per_degree"},
			{"positive descent", func(c *config.Config) { c.RapidDescentMps = 5 }, "rapid_descent_mps"},
			{"battery above 100", func(c *config.Config) { c.LowBatteryPct = 120 }, "low_battery_pct"},
			{"zero profile threshold", func(c *config.Config) { c.ProfileDeviationThresholdC = 0 }, "profile_deviation_threshold_c"},
			{"negative rps", func(c *config.Config) { c.RateLimitRPS = -1 }, "rate_limit_rps"},
			{"zero burst", func(c *config.Config) { c.RateLimitBurst = 0 }, "rate_limit_burst"},
			{"unknown distance mode", func(c *config.Config) { c.DistanceMode = "vincenty" }, "distance_mode"},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }, "log_format"},
			{"bad trusted proxy", func(c *config.Config) { c.TrustedProxies = "10.0.0.0/8, proxy.local" }, "trusted_proxies"},
		}

		for _, tc := range cases {
			convey.Convey("When "+tc.name, func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.Convey("Then validation fails with ErrInvalidConfig", func() {
					convey.So(err, convey.ShouldNotBeNil)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
					convey.So(err.Error(), convey.ShouldContainSubstring, tc.want)
				})
			})
		}

		convey.Convey("When rate limiting is off", func() {
			cfg := config.New()
			cfg.RateLimitRPS = 0
			cfg.RateLimitBurst = 0

			convey.Convey("Then burst is not checked", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the deviation threshold is zero", func() {
			cfg := config.New()
			cfg.DeviationThresholdPct = 0

			convey.Convey("Then it is accepted", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When trusted proxies mix CIDRs and addresses", func() {
			cfg := config.New()
			cfg.TrustedProxies = " 10.0.0.0/8 ,192.0.2.7,, ::ffff:198.51.100.1"

			convey.Convey("Then each becomes a prefix", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
				prefixes, err := cfg.TrustedProxyPrefixes()
				convey.So(err, convey.ShouldBeNil)
				convey.So(prefixes, convey.ShouldHaveLength, 3)
				convey.So(prefixes[0].String(), convey.ShouldEqual, "10.0.0.0/8")
				convey.So(prefixes[1].String(), convey.ShouldEqual, "192.0.2.7/32")
				convey.So(prefixes[2].String(), convey.ShouldEqual, "198.51.100.1/32")
			})
		})

		convey.Convey("When modes use mixed case", func() {
			cfg := config.New()
			cfg.DistanceMode = "Haversine"
			cfg.LogFormat = "JSON"

			convey.Convey("Then they are accepted", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})
	})
}
