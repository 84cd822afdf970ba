// Package ratelimit guards the authentication endpoints against brute-force
// and token-grinding traffic. Two implementations share one interface: an
// in-memory sliding window for single-instance deployments, and a
// Redis-backed fixed window for fleets behind a shared counter.
package ratelimit

import "context"

// Limiter records one attempt for the key and reports whether it is within
// budget. Implementations return common.ErrRateLimited once the key has
// exhausted its window, and nil otherwise.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}
