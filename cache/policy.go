package cache

import (
	"errors"
	"time"
)

// ErrInvalidPolicy indicates a Policy with negative durations or limits.
var ErrInvalidPolicy = errors.New("cache: invalid policy")

// Policy configures freshness and retention of cached queries.
type Policy struct {
	// StaleTime is how long a successful result stays fresh.
	// If zero, data never ages and only invalidation makes it stale.
	StaleTime time.Duration

	// MaxStaleTime caps StaleTime. If zero, no maximum is enforced.
	MaxStaleTime time.Duration

	// KeepUnusedFor is how long an entry with no subscribers survives after
	// its last use. If zero, entries are never evicted automatically.
	KeepUnusedFor time.Duration

	// SweepInterval is how often the janitor looks for unused entries.
	// If zero, no janitor runs and Sweep must be called explicitly.
	SweepInterval time.Duration

	// RefetchConcurrency bounds background refetches after invalidation.
	RefetchConcurrency int
}

// DefaultPolicy returns the default policy.
// StaleTime: 0 (invalidation only), KeepUnusedFor: 60s, SweepInterval: 30s,
// RefetchConcurrency: 4.
func DefaultPolicy() Policy {
	return Policy{
		StaleTime:          0,
		MaxStaleTime:       time.Hour,
		KeepUnusedFor:      60 * time.Second,
		SweepInterval:      30 * time.Second,
		RefetchConcurrency: 4,
	}
}

// Validate rejects negative settings.
func (p Policy) Validate() error {
	if p.StaleTime < 0 || p.MaxStaleTime < 0 || p.KeepUnusedFor < 0 || p.SweepInterval < 0 || p.RefetchConcurrency < 0 {
		return ErrInvalidPolicy
	}
	return nil
}

// EffectiveStaleTime returns the stale time to use, applying the default
// for a non-positive override and clamping to MaxStaleTime.
func (p Policy) EffectiveStaleTime(override time.Duration) time.Duration {
	st := override
	if st <= 0 {
		st = p.StaleTime
	}
	if p.MaxStaleTime > 0 && st > p.MaxStaleTime {
		st = p.MaxStaleTime
	}
	return st
}

// Aged reports whether data fetched at fetchedAt has outlived the stale time.
func (p Policy) Aged(fetchedAt, now time.Time) bool {
	st := p.EffectiveStaleTime(0)
	if st <= 0 {
		return false
	}
	return now.Sub(fetchedAt) >= st
}

// Unused reports whether an entry last used at lastUsed may be evicted.
func (p Policy) Unused(lastUsed, now time.Time) bool {
	if p.KeepUnusedFor <= 0 {
		return false
	}
	return now.Sub(lastUsed) >= p.KeepUnusedFor
}
