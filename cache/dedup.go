package cache

import (
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Deduplicator collapses concurrent fetches for the same key into one call.
// Callers that arrive while a fetch is pending share its outcome; once the
// pending call is removed, the next caller starts a new fetch.
type Deduplicator struct {
	group    singleflight.Group
	inflight atomic.Int64
}

// NewDeduplicator creates an empty deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// RunExclusive runs fn unless a call for key is already pending, in which
// case it waits for that call. leader is true for the caller whose fn ran.
// When RunExclusive returns, the pending call has already been removed.
func (d *Deduplicator) RunExclusive(key Key, fn func() (any, error)) (value any, leader bool, err error) {
	value, err, _ = d.group.Do(string(key), func() (any, error) {
		leader = true
		d.inflight.Add(1)
		defer d.inflight.Add(-1)
		return fn()
	})
	return value, leader, err
}

// InFlight returns the number of fetches currently running.
func (d *Deduplicator) InFlight() int {
	return int(d.inflight.Load())
}
