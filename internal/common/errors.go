// Package common defines shared constants and sentinel errors used across
// the service layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Auth taxonomy. These four are the only failure kinds the engine
	// surfaces to the transport layer; everything else wraps ErrorInternal.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRefreshRevoked     = errors.New("refresh token revoked")
	ErrRateLimited        = errors.New("rate limited")
)
