package api

import "net/netip"

type serverConfig struct {
	maxBatchSize    int
	maxAnomalyLimit int
	rateLimitRPS    float64
	rateLimitBurst  int
	trustedProxies  []netip.Prefix
}

// Option configures a Server.
type Option func(*serverConfig)

// WithMaxBatchSize caps the number of objects or levels in one request.
func WithMaxBatchSize(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxBatchSize = n
		}
	}
}

// WithMaxAnomalyLimit caps the limit accepted by GET /anomalies.
func WithMaxAnomalyLimit(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxAnomalyLimit = n
		}
	}
}

// WithRateLimit enables a per-client token bucket. A non-positive rps leaves
// rate limiting off.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *serverConfig) {
		if rps > 0 && burst > 0 {
			c.rateLimitRPS = rps
			c.rateLimitBurst = burst
		}
	}
}

// WithTrustedProxies lists the proxies whose X-Forwarded-For header is
// believed when keying the rate limiter.
func WithTrustedProxies(prefixes ...netip.Prefix) Option {
	return func(c *serverConfig) {
		c.trustedProxies = append(c.trustedProxies, prefixes...)
	}
}
