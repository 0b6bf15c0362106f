package cache

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPolicy disables the janitor so tests drive eviction explicitly.
func testPolicy() Policy {
	p := DefaultPolicy()
	p.SweepInterval = 0
	return p
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := NewStore(append([]Option{WithPolicy(testPolicy())}, opts...)...)
	t.Cleanup(s.Close)
	return s
}

func waitIdle(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

// fakeFetch counts calls and can hold each call until released.
type fakeFetch struct {
	calls atomic.Int32
	gate  chan struct{}

	mu    sync.Mutex
	value any
	err   error
}

func newFakeFetch(value any) *fakeFetch {
	return &fakeFetch{value: value}
}

func (f *fakeFetch) hold() { f.gate = make(chan struct{}) }

func (f *fakeFetch) release() { close(f.gate) }

func (f *fakeFetch) set(value any, err error) {
	f.mu.Lock()
	f.value, f.err = value, err
	f.mu.Unlock()
}

// fetch reads its result before waiting on the gate, like a server that
// answered from state that has since changed.
func (f *fakeFetch) fetch(ctx context.Context) (any, error) {
	f.calls.Add(1)
	f.mu.Lock()
	value, err := f.value, f.err
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return value, err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestStore_RequestCachesSuccess(t *testing.T) {
	s := newTestStore(t)
	f := newFakeFetch("stats")
	ctx := context.Background()

	v, err := s.Request(ctx, "stats.get:0", StaticTags(Category("Stats")), f.fetch)
	require.NoError(t, err)
	assert.Equal(t, "stats", v)

	v, err = s.Request(ctx, "stats.get:0", StaticTags(Category("Stats")), f.fetch)
	require.NoError(t, err)
	assert.Equal(t, "stats", v)
	assert.Equal(t, int32(1), f.calls.Load())

	e, ok := s.Get("stats.get:0")
	require.True(t, ok)
	assert.Equal(t, StatusSuccess, e.Status)
	assert.True(t, e.Fresh())
	assert.Equal(t, "stats.get", e.Endpoint)
	assert.Equal(t, []Tag{Category("Stats")}, e.Tags)
}

func TestStore_ConcurrentRequestsShareOneFetch(t *testing.T) {
	s := newTestStore(t)
	f := newFakeFetch([]string{"r1", "r2"})
	f.hold()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]any, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := s.Request(ctx, "reports.list:1", nil, f.fetch)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	f.release()
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, results[0], results[1])
}

func TestStore_TagReach(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	listFetch := newFakeFetch("list")
	detailFetch := newFakeFetch("detail")
	listKey, detailKey := Key("users.list:1"), Key("users.get:u2")

	unsub1 := s.Subscribe(listKey, func(Entry) {})
	defer unsub1()
	unsub2 := s.Subscribe(detailKey, func(Entry) {})
	defer unsub2()

	_, err := s.Request(ctx, listKey, StaticTags(List("Users"), Instance("Users", "u1")), listFetch.fetch)
	require.NoError(t, err)
	_, err = s.Request(ctx, detailKey, StaticTags(Instance("Users", "u2")), detailFetch.fetch)
	require.NoError(t, err)

	keys := s.Invalidate(ctx, List("Users"))
	assert.Equal(t, []Key{listKey}, keys)
	waitIdle(t, s)
	assert.Equal(t, int32(2), listFetch.calls.Load())
	assert.Equal(t, int32(1), detailFetch.calls.Load())

	keys = s.Invalidate(ctx, Category("Users"))
	assert.Equal(t, []Key{detailKey, listKey}, keys)
	waitIdle(t, s)
	assert.Equal(t, int32(3), listFetch.calls.Load())
	assert.Equal(t, int32(2), detailFetch.calls.Load())
}

func TestStore_InvalidateWithoutSubscribersRefetchesOnNextRequest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := newFakeFetch("v1")

	_, err := s.Request(ctx, "posts.list:1", StaticTags(List("Posts")), f.fetch)
	require.NoError(t, err)

	s.Invalidate(ctx, Category("Posts"))
	waitIdle(t, s)
	assert.Equal(t, int32(1), f.calls.Load())

	e, _ := s.Get("posts.list:1")
	assert.True(t, e.Stale)
	assert.Equal(t, "v1", e.Data)

	f.set("v2", nil)
	v, err := s.Request(ctx, "posts.list:1", StaticTags(List("Posts")), f.fetch)
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestStore_StaleWhileRevalidate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := Key("reports.list:1")
	f := newFakeFetch("v1")

	var mu sync.Mutex
	var seen []Entry
	unsub := s.Subscribe(key, func(e Entry) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	})
	defer unsub()

	_, err := s.Request(ctx, key, StaticTags(List("Reports")), f.fetch)
	require.NoError(t, err)

	f.set("v2", nil)
	f.hold()
	s.Invalidate(ctx, Category("Reports"))

	require.Eventually(t, func() bool { return f.calls.Load() == 2 }, time.Second, time.Millisecond)
	e, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, StatusLoading, e.Status)
	assert.Equal(t, "v1", e.Data)
	assert.True(t, e.HasData)
	assert.True(t, e.Stale)

	f.release()
	waitIdle(t, s)

	e, _ = s.Get(key)
	assert.Equal(t, StatusSuccess, e.Status)
	assert.Equal(t, "v2", e.Data)
	assert.False(t, e.Stale)

	mu.Lock()
	defer mu.Unlock()
	for _, snap := range seen {
		if snap.Status == StatusLoading && snap.HasData {
			assert.Equal(t, "v1", snap.Data, "loading snapshots keep the previous data")
		}
	}
	assert.Equal(t, "v2", seen[len(seen)-1].Data)
}

func TestStore_ErrorIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok := newFakeFetch("reports")
	bad := newFakeFetch(nil)
	bad.set(nil, ServerError("blockedUsers.list", http.StatusInternalServerError, "", "db down"))

	_, err := s.Request(ctx, "reports.list:1", nil, ok.fetch)
	require.NoError(t, err)
	_, err = s.Request(ctx, "blockedUsers.list:1", nil, bad.fetch)
	require.ErrorIs(t, err, ErrServer)

	reports, _ := s.Get("reports.list:1")
	blocked, _ := s.Get("blockedUsers.list:1")
	assert.Equal(t, StatusSuccess, reports.Status)
	assert.Equal(t, "reports", reports.Data)
	assert.Equal(t, StatusError, blocked.Status)
	assert.ErrorIs(t, blocked.Err, ErrServer)
}

func TestStore_ErrorKeepsPreviousData(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := Key("stats.get:0")
	f := newFakeFetch("v1")

	_, err := s.Request(ctx, key, StaticTags(Category("Stats")), f.fetch)
	require.NoError(t, err)

	f.set(nil, errors.New("connection reset"))
	err = s.Refetch(ctx, key)
	require.ErrorIs(t, err, ErrNetwork)

	e, _ := s.Get(key)
	assert.Equal(t, StatusError, e.Status)
	assert.Equal(t, "v1", e.Data)
	assert.True(t, e.HasData)
	assert.ErrorIs(t, e.Err, ErrNetwork)
}

func TestStore_ParseErrorStored(t *testing.T) {
	s := newTestStore(t)
	f := newFakeFetch(nil)
	f.set(nil, ParseError("posts.list", errors.New("unexpected token")))

	_, err := s.Request(context.Background(), "posts.list:1", nil, f.fetch)
	require.ErrorIs(t, err, ErrParse)

	e, _ := s.Get("posts.list:1")
	assert.Equal(t, StatusError, e.Status)
	assert.ErrorIs(t, e.Err, ErrParse)
}

func TestStore_ValidationErrorNotStored(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := Key("users.list:1")
	f := newFakeFetch("users")

	_, err := s.Request(ctx, key, nil, f.fetch)
	require.NoError(t, err)

	f.set(nil, ValidationError("users.list", "limit out of range"))
	err = s.Refetch(ctx, key)
	require.ErrorIs(t, err, ErrValidation)

	e, _ := s.Get(key)
	assert.Equal(t, StatusSuccess, e.Status)
	assert.NoError(t, e.Err)
	assert.Equal(t, "users", e.Data)

	fresh := newFakeFetch(nil)
	fresh.set(nil, ValidationError("users.list", "bad"))
	_, err = s.Request(ctx, "users.list:2", nil, fresh.fetch)
	require.ErrorIs(t, err, ErrValidation)
	e, _ = s.Get("users.list:2")
	assert.Equal(t, StatusIdle, e.Status)
}

func TestStore_CallerCancelStillCaches(t *testing.T) {
	s := newTestStore(t)
	f := newFakeFetch("late")
	f.hold()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := s.Request(ctx, "stats.get:0", nil, f.fetch)
		errc <- err
	}()

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	err := <-errc
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrNetwork)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "stats.get", ce.Op)
	assert.False(t, ce.Retryable())

	f.release()
	waitIdle(t, s)

	e, _ := s.Get("stats.get:0")
	assert.Equal(t, StatusSuccess, e.Status)
	assert.Equal(t, "late", e.Data)
}

func TestStore_InvalidateDuringFetchRefetchesAfterSettle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := Key("blockedUsers.list:1")
	tags := StaticTags(List("BlockedUsers"))
	f := newFakeFetch("v1")

	unsub := s.Subscribe(key, func(Entry) {})
	defer unsub()

	_, err := s.Request(ctx, key, tags, f.fetch)
	require.NoError(t, err)

	f.set("v2", nil)
	f.hold()
	errc := make(chan error, 1)
	go func() { errc <- s.Refetch(ctx, key) }()
	require.Eventually(t, func() bool { return f.calls.Load() == 2 }, time.Second, time.Millisecond)

	// The running fetch already read v2; the server now holds v3.
	assert.Equal(t, []Key{key}, s.Invalidate(ctx, Category("BlockedUsers")))
	f.set("v3", nil)
	f.release()
	require.NoError(t, <-errc)
	waitIdle(t, s)

	assert.Equal(t, int32(3), f.calls.Load())
	e, _ := s.Get(key)
	assert.Equal(t, StatusSuccess, e.Status)
	assert.Equal(t, "v3", e.Data)
	assert.False(t, e.Stale)
}

func TestStore_SubscribeUnsubscribe(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := Key("stats.get:0")
	f := newFakeFetch("v1")

	var calls atomic.Int32
	unsub := s.Subscribe(key, func(Entry) { calls.Add(1) })

	e, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, StatusIdle, e.Status)
	assert.Equal(t, 1, e.Subscribers)
	assert.Equal(t, int32(1), calls.Load(), "current snapshot delivered on subscribe")

	_, err := s.Request(ctx, key, nil, f.fetch)
	require.NoError(t, err)
	delivered := calls.Load()
	assert.GreaterOrEqual(t, delivered, int32(3), "loading and success snapshots")

	unsub()
	unsub()
	e, _ = s.Get(key)
	assert.Zero(t, e.Subscribers)

	require.NoError(t, s.Refetch(ctx, key))
	assert.Equal(t, delivered, calls.Load())
}

func TestStore_SweepEvictsUnused(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := newTestStore(t, WithClock(clock.Now))
	ctx := context.Background()

	_, err := s.Request(ctx, "reports.list:1", StaticTags(List("Reports")), newFakeFetch("r").fetch)
	require.NoError(t, err)
	unsub := s.Subscribe("stats.get:0", func(Entry) {})
	_, err = s.Request(ctx, "stats.get:0", StaticTags(Category("Stats")), newFakeFetch("s").fetch)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	assert.Zero(t, s.Sweep())

	clock.Advance(31 * time.Second)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, []Key{"stats.get:0"}, s.Keys())
	assert.Empty(t, s.Invalidate(ctx, Category("Reports")), "evicted keys leave the tag index")

	unsub()
	clock.Advance(61 * time.Second)
	assert.Equal(t, 1, s.Sweep())
	assert.Empty(t, s.Keys())
}

func TestStore_StaleTimeAgesData(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	p := testPolicy()
	p.StaleTime = time.Minute
	s := NewStore(WithPolicy(p), WithClock(clock.Now))
	t.Cleanup(s.Close)

	f := newFakeFetch("v")
	ctx := context.Background()
	_, _ = s.Request(ctx, "stats.get:0", nil, f.fetch)
	_, _ = s.Request(ctx, "stats.get:0", nil, f.fetch)
	assert.Equal(t, int32(1), f.calls.Load())

	clock.Advance(time.Minute)
	_, _ = s.Request(ctx, "stats.get:0", nil, f.fetch)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestStore_EvictAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _ = s.Request(ctx, "a:1", StaticTags(List("A")), newFakeFetch(1).fetch)
	bad := newFakeFetch(nil)
	bad.set(nil, errors.New("down"))
	_, _ = s.Request(ctx, "b:1", nil, bad.fetch)

	st := s.Stats()
	assert.Equal(t, 2, st.Entries)
	assert.Equal(t, 1, st.Success)
	assert.Equal(t, 1, st.Errors)
	assert.Equal(t, 1, st.Tagged)

	assert.True(t, s.Evict("a:1"))
	assert.False(t, s.Evict("a:1"))
	assert.Zero(t, s.Stats().Tagged)
}

func TestStore_RequestValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Request(ctx, "", nil, newFakeFetch(1).fetch)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.Request(ctx, "a:1", nil, nil)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, s.Refetch(ctx, "never:1"), ErrValidation)

	s.Close()
	_, err = s.Request(ctx, "a:1", nil, newFakeFetch(1).fetch)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStore_SubscriberCallbacksDoNotOverlap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := Key("reports.list:1")
	f := newFakeFetch("v1")

	var inFlight, overlaps atomic.Int32
	var mu sync.Mutex
	var versions []uint64
	unsub := s.Subscribe(key, func(e Entry) {
		if inFlight.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(100 * time.Microsecond)
		mu.Lock()
		versions = append(versions, e.Version)
		mu.Unlock()
		inFlight.Add(-1)
	})
	defer unsub()

	_, err := s.Request(ctx, key, StaticTags(List("Reports")), f.fetch)
	require.NoError(t, err)

	for range 20 {
		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Invalidate(ctx, Category("Reports"))
			}()
		}
		wg.Wait()
		waitIdle(t, s)
	}

	e, ok := s.Get(key)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return versions[len(versions)-1] == e.Version
	}, time.Second, time.Millisecond, "latest snapshot delivered")

	assert.Zero(t, overlaps.Load(), "callback ran concurrently with itself")
	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1], "versions delivered out of order")
	}
}
