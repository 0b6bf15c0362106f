package cache

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Status is the lifecycle state of a cached query.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// FetchFunc performs the network call behind a query.
type FetchFunc func(ctx context.Context) (any, error)

// Entry is an immutable snapshot of one cached query. Status, Data and Err
// are always taken together from the same state.
type Entry struct {
	Key         Key
	Endpoint    string
	Status      Status
	Data        any
	HasData     bool
	Err         error
	FetchedAt   time.Time
	Tags        []Tag
	Stale       bool
	Subscribers int
	Version     uint64
}

// Fresh reports whether the entry can be served without a fetch.
func (e Entry) Fresh() bool {
	return e.Status == StatusSuccess && !e.Stale
}

type subscription struct {
	id     uint64
	fn     func(Entry)
	active atomic.Bool

	mu        sync.Mutex
	running   bool
	pending   *Entry
	seen      uint64
	delivered bool
}

// deliver hands e to the subscriber unless it has unsubscribed or already
// saw a newer version. Calls to fn never overlap: while one goroutine is
// delivering, later snapshots are parked and only the newest is handed
// over when fn returns. A call from inside fn parks its snapshot the same
// way instead of recursing.
func (s *subscription) deliver(e Entry) {
	s.mu.Lock()
	if s.pending == nil || e.Version > s.pending.Version {
		s.pending = &e
	}
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	for {
		next := s.pending
		s.pending = nil
		if next == nil {
			s.running = false
			s.mu.Unlock()
			return
		}
		if !s.active.Load() || (s.delivered && next.Version <= s.seen) {
			continue
		}
		s.seen, s.delivered = next.Version, true
		s.mu.Unlock()
		s.fn(*next)
		s.mu.Lock()
	}
}

// record is the Store's mutable state for one key. Guarded by Store.mu.
type record struct {
	key       Key
	status    Status
	data      any
	hasData   bool
	err       error
	fetchedAt time.Time
	lastUsed  time.Time
	tags      []Tag
	stale     bool
	version   uint64

	fetch  FetchFunc
	tagger Tagger
	subs   map[uint64]*subscription

	// started counts fetch attempts; settled is the newest attempt whose
	// outcome was applied. invalidatedAt is the value of started when the
	// entry was last invalidated.
	started       uint64
	settled       uint64
	invalidatedAt uint64
}

func (r *record) snapshot() Entry {
	return Entry{
		Key:         r.key,
		Endpoint:    r.key.Endpoint(),
		Status:      r.status,
		Data:        r.data,
		HasData:     r.hasData,
		Err:         r.err,
		FetchedAt:   r.fetchedAt,
		Tags:        slices.Clone(r.tags),
		Stale:       r.stale,
		Subscribers: len(r.subs),
		Version:     r.version,
	}
}

// notification carries a snapshot to subscribers outside the store lock.
type notification struct {
	entry Entry
	subs  []*subscription
}

func (r *record) notifyLocked() notification {
	r.version++
	n := notification{entry: r.snapshot()}
	if len(r.subs) > 0 {
		n.subs = make([]*subscription, 0, len(r.subs))
		for _, s := range r.subs {
			n.subs = append(n.subs, s)
		}
	}
	return n
}

func (n notification) send() {
	for _, s := range n.subs {
		s.deliver(n.entry)
	}
}
