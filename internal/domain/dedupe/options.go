// Package dedupe tracks identifiers that were already seen.
package dedupe

// Option applies a configuration option to the Set.
type Option func(*Set)

// WithMaxSize caps the number of remembered IDs.
// If maxSize > 0 the oldest ID is evicted once the cap is reached.
// If maxSize <= 0 the set is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(s *Set) {
		s.maxSize = maxSize
	}
}
