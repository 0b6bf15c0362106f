package cache

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kyptronix/spectrum-admin/observe"
	"github.com/kyptronix/spectrum-admin/resilience"
)

// Store is the client-side query cache. It tracks one entry per key,
// collapses concurrent fetches, indexes provided tags and refetches
// invalidated entries that are being watched.
//
// Contract:
// - Concurrency: all methods are safe for concurrent use. Network I/O never
//   happens under the store lock.
// - Subscribers: callbacks run outside the lock, receive immutable
//   snapshots and must not block.
// - Context: Request and Refetch return when ctx ends, but the shared fetch
//   keeps running and its result is still cached.
type Store struct {
	mu      sync.RWMutex
	entries map[Key]*record
	index   *TagIndex
	nextSub uint64

	dedup    *Deduplicator
	policy   Policy
	bulkhead *resilience.Bulkhead
	now      func() time.Time

	logger  observe.Logger
	metrics observe.Metrics
	mw      *observe.Middleware

	bg        sync.WaitGroup
	life      context.Context
	cancel    context.CancelFunc
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithPolicy sets the freshness and retention policy.
func WithPolicy(p Policy) Option {
	return func(s *Store) { s.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observe.Metrics) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithInstruments sets logger, metrics and tracer together.
func WithInstruments(in observe.Instruments) Option {
	return func(s *Store) {
		WithLogger(in.Logger)(s)
		WithMetrics(in.Metrics)(s)
		s.mw = observe.MiddlewareFrom(in)
	}
}

// WithBulkhead bounds background refetches with b instead of a bulkhead
// sized from the policy.
func WithBulkhead(b *resilience.Bulkhead) Option {
	return func(s *Store) { s.bulkhead = b }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store and starts its eviction janitor if the policy
// asks for one. Call Close to stop it.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[Key]*record),
		index:   NewTagIndex(),
		dedup:   NewDeduplicator(),
		policy:  DefaultPolicy(),
		now:     time.Now,
		logger:  observe.NopLogger(),
		metrics: observe.NopMetrics(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mw == nil {
		s.mw = observe.NewMiddleware(nil, s.metrics, s.logger)
	}
	if s.bulkhead == nil {
		n := s.policy.RefetchConcurrency
		if n <= 0 {
			n = DefaultPolicy().RefetchConcurrency
		}
		s.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: n, MaxWait: time.Minute})
	}
	s.life, s.cancel = context.WithCancel(context.Background())

	if s.policy.SweepInterval > 0 && s.policy.KeepUnusedFor > 0 {
		go s.janitor(s.policy.SweepInterval)
	}
	return s
}

// Close stops the janitor and cancels running fetches. Later requests fail
// with ErrClosed.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		close(s.done)
	})
}

// Get returns a snapshot of key without touching the network.
func (s *Store) Get(key Key) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	return rec.snapshot(), true
}

// Subscribe registers fn for every change of key and immediately delivers
// the current snapshot. The returned function unsubscribes; it is
// idempotent and stops delivery at once, even for a snapshot already in
// flight. fn is never called concurrently with itself and sees versions in
// increasing order; snapshots superseded while fn runs are skipped.
func (s *Store) Subscribe(key Key, fn func(Entry)) (unsubscribe func()) {
	s.mu.Lock()
	rec := s.recordLocked(key)
	s.nextSub++
	sub := &subscription{id: s.nextSub, fn: fn}
	sub.active.Store(true)
	rec.subs[sub.id] = sub
	rec.lastUsed = s.now()
	current := rec.snapshot()
	s.mu.Unlock()

	sub.deliver(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			s.mu.Lock()
			if rec, ok := s.entries[key]; ok {
				delete(rec.subs, sub.id)
				rec.lastUsed = s.now()
			}
			s.mu.Unlock()
		})
	}
}

// Request returns the data for key. A fresh successful entry is served
// without a fetch. Otherwise the entry moves to loading with its previous
// data kept, and fetch runs once for all concurrent callers. tags computes
// the tags the result provides.
func (s *Store) Request(ctx context.Context, key Key, tags Tagger, fetch FetchFunc) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, ValidationError(key.Endpoint(), err.Error())
	}
	if fetch == nil {
		return nil, ValidationError(key.Endpoint(), "no fetch function")
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}

	now := s.now()
	s.mu.Lock()
	rec := s.recordLocked(key)
	rec.lastUsed = now
	rec.fetch = fetch
	rec.tagger = tags
	if rec.status == StatusSuccess && !rec.stale && !s.policy.Aged(rec.fetchedAt, now) {
		data := rec.data
		s.mu.Unlock()
		s.metrics.RecordCacheHit(ctx, observe.OpMeta{Kind: observe.OpQuery, Endpoint: key.Endpoint(), Key: string(key)})
		return data, nil
	}
	s.mu.Unlock()

	return s.await(ctx, key)
}

// Refetch forces a fetch of key with the fetch function remembered from the
// last Request.
func (s *Store) Refetch(ctx context.Context, key Key) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.mu.RLock()
	rec, ok := s.entries[key]
	known := ok && rec.fetch != nil
	s.mu.RUnlock()
	if !known {
		return ValidationError(key.Endpoint(), "no fetch registered for "+string(key))
	}

	_, err := s.await(ctx, key)
	return err
}

// Invalidate marks every entry matched by tags stale and returns their keys.
// Matched entries with subscribers refetch in the background. An entry whose
// fetch is already running refetches once that fetch settles. Others
// refetch on their next Request.
func (s *Store) Invalidate(ctx context.Context, tags ...Tag) []Key {
	s.mu.Lock()
	keys := s.index.KeysForTags(tags)
	notes := make([]notification, 0, len(keys))
	var refetch []Key
	for _, k := range keys {
		rec := s.entries[k]
		rec.stale = true
		rec.invalidatedAt = rec.started
		if rec.status != StatusLoading && len(rec.subs) > 0 && rec.fetch != nil {
			refetch = append(refetch, k)
		}
		notes = append(notes, rec.notifyLocked())
	}
	s.mu.Unlock()

	for _, n := range notes {
		n.send()
	}

	s.metrics.RecordInvalidation(ctx, TagStrings(tags), len(keys))
	if len(keys) > 0 {
		s.logger.Debug(ctx, "cache invalidated",
			observe.F("tags", TagStrings(tags)),
			observe.F("keys", len(keys)),
			observe.F("refetch", len(refetch)),
		)
	}

	for _, k := range refetch {
		s.background(ctx, k)
	}
	return keys
}

// Evict removes key and its tags. Loading entries are not evicted.
func (s *Store) Evict(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[key]
	if !ok || rec.status == StatusLoading {
		return false
	}
	s.removeLocked(key)
	return true
}

// Sweep evicts entries with no subscribers, no running fetch, and no use
// within Policy.KeepUnusedFor. It returns the number evicted.
func (s *Store) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, rec := range s.entries {
		if len(rec.subs) > 0 || rec.status == StatusLoading {
			continue
		}
		if !s.policy.Unused(rec.lastUsed, now) {
			continue
		}
		s.removeLocked(key)
		n++
	}
	return n
}

// Keys returns all cached keys, sorted.
func (s *Store) Keys() []Key {
	s.mu.RLock()
	keys := make([]Key, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// Stats summarises the store.
type Stats struct {
	Entries     int
	Idle        int
	Loading     int
	Success     int
	Errors      int
	Stale       int
	Subscribers int
	Tagged      int
	InFlight    int
}

// Stats returns a summary of the current entries.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Entries: len(s.entries), Tagged: s.index.Len(), InFlight: s.dedup.InFlight()}
	for _, rec := range s.entries {
		switch rec.status {
		case StatusIdle:
			st.Idle++
		case StatusLoading:
			st.Loading++
		case StatusSuccess:
			st.Success++
		case StatusError:
			st.Errors++
		}
		if rec.stale {
			st.Stale++
		}
		st.Subscribers += len(rec.subs)
	}
	return st
}

// Wait blocks until all running fetches and background refetches finish.
func (s *Store) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) recordLocked(key Key) *record {
	rec, ok := s.entries[key]
	if !ok {
		rec = &record{key: key, subs: make(map[uint64]*subscription)}
		s.entries[key] = rec
	}
	return rec
}

func (s *Store) removeLocked(key Key) {
	delete(s.entries, key)
	s.index.Remove(key)
}

type outcome struct {
	value any
	err   error
}

// await runs a shared fetch of key in a tracked goroutine and waits for it
// or for ctx.
func (s *Store) await(ctx context.Context, key Key) (any, error) {
	ch := make(chan outcome, 1)
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		v, err := s.load(ctx, key)
		ch <- outcome{v, err}
	}()

	select {
	case o := <-ch:
		return o.value, o.err
	case <-ctx.Done():
		// The fetch keeps running and still caches its result.
		return nil, NetworkError(key.Endpoint(), ctx.Err())
	}
}

// background refetches key through the bulkhead.
func (s *Store) background(ctx context.Context, key Key) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		err := s.bulkhead.Execute(s.life, func(context.Context) error {
			_, err := s.load(ctx, key)
			return err
		})
		if err != nil && s.life.Err() == nil {
			s.logger.Debug(ctx, "background refetch failed", observe.F("cache.key", string(key)), observe.F("error", err))
		}
	}()
}

// load moves key to loading and joins or leads the shared fetch. The leader
// applies the outcome after the pending call has been removed.
func (s *Store) load(ctx context.Context, key Key) (any, error) {
	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	stop := context.AfterFunc(s.life, cancel)
	defer stop()

	s.mu.Lock()
	rec, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return nil, ValidationError(key.Endpoint(), "entry evicted")
	}
	var note notification
	if rec.status != StatusLoading {
		rec.status = StatusLoading
		note = rec.notifyLocked()
	}
	s.mu.Unlock()
	note.send()

	meta := observe.OpMeta{Kind: observe.OpQuery, Endpoint: key.Endpoint(), Key: string(key)}
	var seq uint64
	v, leader, err := s.dedup.RunExclusive(key, func() (any, error) {
		var fetch FetchFunc
		s.mu.Lock()
		if rec, ok := s.entries[key]; ok {
			rec.started++
			seq = rec.started
			fetch = rec.fetch
		}
		s.mu.Unlock()
		if fetch == nil {
			return nil, ValidationError(key.Endpoint(), "entry evicted")
		}
		return s.mw.Wrap(func(ctx context.Context, _ observe.OpMeta) (any, error) {
			return fetch(ctx)
		})(fctx, meta)
	})

	if !leader {
		s.metrics.RecordDedupJoin(ctx, meta)
		return v, classifyResult(key, err)
	}
	err = classifyResult(key, err)
	s.settle(ctx, key, seq, v, err)
	return v, err
}

func classifyResult(key Key, err error) error {
	if err == nil {
		return nil
	}
	return classify(key.Endpoint(), err)
}

// settle applies the outcome of attempt seq unless a newer attempt has
// already been applied.
func (s *Store) settle(ctx context.Context, key Key, seq uint64, v any, err error) {
	s.mu.Lock()
	rec, ok := s.entries[key]
	if !ok || seq == 0 || seq <= rec.settled {
		s.mu.Unlock()
		return
	}
	rec.settled = seq

	kind, _ := KindOf(err)
	switch {
	case err == nil:
		rec.data = v
		rec.hasData = true
		rec.err = nil
		rec.fetchedAt = s.now()
		rec.status = StatusSuccess
		rec.stale = seq <= rec.invalidatedAt
		s.reindexLocked(rec, v, nil)

	case !kind.Stored():
		// Validation or conflict: the cached data is unchanged.
		switch {
		case rec.err != nil:
			rec.status = StatusError
		case rec.hasData:
			rec.status = StatusSuccess
		default:
			rec.status = StatusIdle
		}

	default:
		rec.err = err
		rec.status = StatusError
		s.reindexLocked(rec, nil, err)
	}

	if rec.started > seq {
		rec.status = StatusLoading
	}
	refetch := rec.status == StatusSuccess && rec.stale && len(rec.subs) > 0 && rec.fetch != nil
	note := rec.notifyLocked()
	s.mu.Unlock()

	note.send()
	if refetch {
		s.background(ctx, key)
	}
}

func (s *Store) reindexLocked(rec *record, data any, err error) {
	if rec.tagger == nil {
		rec.tags = nil
		s.index.Remove(rec.key)
		return
	}
	rec.tags = rec.tagger.Tags(data, err)
	s.index.Index(rec.key, rec.tags)
}

func (s *Store) janitor(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug(s.life, "cache swept", observe.F("evicted", n))
			}
		case <-s.done:
			return
		}
	}
}
