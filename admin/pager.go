package admin

import (
	"context"
	"sync"

	"github.com/kyptronix/spectrum-admin/cache"
)

// Pager walks the pages of a list query. Navigation outside the known
// page range keeps the current page and issues no request.
type Pager[T any] struct {
	c     *Client
	query func(cache.PageRequest) Query[Page[T]]

	mu      sync.Mutex
	req     cache.PageRequest
	current Page[T]
	loaded  bool
}

// NewPager creates a Pager starting on page 1. limit 0 uses the default.
func NewPager[T any](c *Client, query func(cache.PageRequest) Query[Page[T]], limit int) *Pager[T] {
	return &Pager[T]{
		c:     c,
		query: query,
		req:   cache.PageRequest{Page: cache.DefaultPage, Limit: limit}.WithDefaults(),
	}
}

// Load fetches the current page.
func (p *Pager[T]) Load(ctx context.Context) (Page[T], error) {
	p.mu.Lock()
	req := p.req
	p.mu.Unlock()
	return p.load(ctx, req)
}

// GoTo moves to page. It returns false without fetching when page is
// outside the range reported by the last load.
func (p *Pager[T]) GoTo(ctx context.Context, page int) (Page[T], bool, error) {
	p.mu.Lock()
	if p.loaded {
		if _, ok := p.current.Page.Clamp(page); !ok {
			cur := p.current
			p.mu.Unlock()
			return cur, false, nil
		}
	} else if page < 1 {
		p.mu.Unlock()
		return Page[T]{}, false, nil
	}
	req := cache.PageRequest{Page: page, Limit: p.req.Limit}
	p.mu.Unlock()

	out, err := p.load(ctx, req)
	if err != nil {
		return out, false, err
	}
	return out, true, nil
}

// Next moves to the following page.
func (p *Pager[T]) Next(ctx context.Context) (Page[T], bool, error) {
	return p.GoTo(ctx, p.Descriptor().CurrentPage+1)
}

// Prev moves to the preceding page.
func (p *Pager[T]) Prev(ctx context.Context) (Page[T], bool, error) {
	return p.GoTo(ctx, p.Descriptor().CurrentPage-1)
}

// Descriptor returns the position of the current page. Before the first
// load it describes the requested page.
func (p *Pager[T]) Descriptor() cache.Descriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return cache.Descriptor{CurrentPage: p.req.Page, ItemsPerPage: p.req.Limit}
	}
	return p.current.Page
}

func (p *Pager[T]) load(ctx context.Context, req cache.PageRequest) (Page[T], error) {
	out, err := Fetch(ctx, p.c, p.query(req))
	if err != nil {
		return out, err
	}
	p.mu.Lock()
	p.req = req
	p.current = out
	p.loaded = true
	p.mu.Unlock()
	return out, nil
}

// ReportsPager pages through reports.
func ReportsPager(c *Client, limit int) *Pager[Report] {
	return NewPager(c, ReportsQuery, limit)
}

// BlockedUsersPager pages through blocks.
func BlockedUsersPager(c *Client, limit int) *Pager[BlockRelation] {
	return NewPager(c, BlockedUsersQuery, limit)
}

// PostsPager pages through posts.
func PostsPager(c *Client, limit int) *Pager[Post] {
	return NewPager(c, PostsQuery, limit)
}

// UsersPager pages through accounts.
func UsersPager(c *Client, limit int) *Pager[User] {
	return NewPager(c, UsersQuery, limit)
}
