package admin

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/kyptronix/spectrum-admin/cache"
)

// View is what a screen renders for one query.
type View[T any] struct {
	Status    cache.Status
	Data      T
	HasData   bool
	Err       error
	Stale     bool
	FetchedAt time.Time
}

// Loading reports a first load with nothing to show yet.
func (v View[T]) Loading() bool { return v.Status == cache.StatusLoading && !v.HasData }

// Fetching reports any fetch in progress, including background refreshes
// of data that is still shown.
func (v View[T]) Fetching() bool { return v.Status == cache.StatusLoading }

func viewOf[T any](e cache.Entry) View[T] {
	v := View[T]{
		Status:    e.Status,
		Err:       e.Err,
		Stale:     e.Stale,
		FetchedAt: e.FetchedAt,
	}
	if e.HasData {
		if data, ok := e.Data.(T); ok {
			v.Data = data
			v.HasData = true
		}
	}
	return v
}

// Watcher keeps a query subscribed so invalidations refetch it in the
// background, and reports every change to its callback.
type Watcher[T any] struct {
	c     *Client
	q     Query[T]
	key   cache.Key
	fetch cache.FetchFunc
	fn    func(View[T])

	mu      sync.Mutex
	current View[T]

	unsubscribe func()
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

// Watch subscribes to q and starts its first fetch. fn may be nil; it runs
// once with the current state and again on every change, and must not
// block. Call Close when the view goes away.
func Watch[T any](c *Client, q Query[T], fn func(View[T])) (*Watcher[T], error) {
	key, err := Key(c, q)
	if err != nil {
		return nil, err
	}
	w := &Watcher[T]{
		c:   c,
		q:   q,
		key: key,
		fn:  fn,
		fetch: c.fetcher(q.Endpoint, q.Params, func(raw json.RawMessage) (any, error) {
			return q.decode(raw)
		}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.unsubscribe = c.store.Subscribe(key, w.deliver)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		_, _ = c.store.Request(ctx, key, q.Tagger(), w.fetch)
	}()
	return w, nil
}

func (w *Watcher[T]) deliver(e cache.Entry) {
	v := viewOf[T](e)
	w.mu.Lock()
	w.current = v
	w.mu.Unlock()
	if w.fn != nil {
		w.fn(v)
	}
}

// Key returns the cache key being watched.
func (w *Watcher[T]) Key() cache.Key { return w.key }

// Current returns the latest view.
func (w *Watcher[T]) Current() View[T] {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Refetch fetches the query again even if its data is fresh.
func (w *Watcher[T]) Refetch(ctx context.Context) error {
	err := w.c.store.Refetch(ctx, w.key)
	if errors.Is(err, cache.ErrValidation) {
		// The first request has not registered its fetch yet.
		_, err = w.c.store.Request(ctx, w.key, w.q.Tagger(), w.fetch)
	}
	return err
}

// Close unsubscribes and waits for the first fetch to return. The entry
// stays cached until the store evicts it.
func (w *Watcher[T]) Close() {
	w.closeOnce.Do(func() {
		w.unsubscribe()
		w.cancel()
		w.wg.Wait()
	})
}

// WatchReports watches one page of reports.
func WatchReports(c *Client, page cache.PageRequest, fn func(View[ReportPage])) (*Watcher[ReportPage], error) {
	return Watch(c, ReportsQuery(page), fn)
}

// WatchBlockedUsers watches one page of blocks.
func WatchBlockedUsers(c *Client, page cache.PageRequest, fn func(View[BlockedUsersPage])) (*Watcher[BlockedUsersPage], error) {
	return Watch(c, BlockedUsersQuery(page), fn)
}

// WatchStats watches the moderation counters.
func WatchStats(c *Client, fn func(View[Stats])) (*Watcher[Stats], error) {
	return Watch(c, StatsQuery(), fn)
}

// WatchPosts watches one page of posts.
func WatchPosts(c *Client, page cache.PageRequest, fn func(View[PostPage])) (*Watcher[PostPage], error) {
	return Watch(c, PostsQuery(page), fn)
}

// WatchUsers watches one page of accounts.
func WatchUsers(c *Client, page cache.PageRequest, fn func(View[UserPage])) (*Watcher[UserPage], error) {
	return Watch(c, UsersQuery(page), fn)
}
