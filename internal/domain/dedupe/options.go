// Package dedupe tracks idempotency keys of mutating requests so replays
// can be told apart from first deliveries.
package dedupe

// Option applies a configuration option to the ledger.
type Option func(*ledger)

// WithMaxSize sets the maximum number of keys to keep in memory.
// If maxSize > 0: bounded, oldest key evicted first.
// If maxSize <= 0: unbounded.
func WithMaxSize(maxSize int) Option {
	return func(l *ledger) {
		l.maxSize = maxSize
	}
}
