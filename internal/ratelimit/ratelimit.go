// Package ratelimit implements the (principal, ip) sliding-window login
// limiter with temporary lockout, generalized from a (username, ip)
// limiter to cover any authentication principal — a user email, an
// AuthRequest access code, or an admin-panel login attempt.
package ratelimit

import (
	"context"
	"time"
)

// Limiter controls login attempts and temporary lockouts for one
// (principal, ip) pair.
type Limiter interface {
	// Allow reports whether an attempt is currently permitted and, if
	// not, how long until the lockout clears.
	Allow(ctx context.Context, principal string, ipHash []byte) (bool, time.Duration, error)
	// Success clears the counters after a successful attempt.
	Success(ctx context.Context, principal string, ipHash []byte) error
	// Failure records a failed attempt, returning whether this failure
	// just triggered a new lockout and for how long.
	Failure(ctx context.Context, principal string, ipHash []byte) (bool, time.Duration, error)
}
