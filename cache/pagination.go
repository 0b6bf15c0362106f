package cache

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Page request defaults and limits.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageRequest selects one page of a list endpoint.
type PageRequest struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// WithDefaults fills zero fields with DefaultPage and DefaultLimit.
func (r PageRequest) WithDefaults() PageRequest {
	if r.Page == 0 {
		r.Page = DefaultPage
	}
	if r.Limit == 0 {
		r.Limit = DefaultLimit
	}
	return r
}

// Validate rejects pages below 1 and limits outside [1, MaxLimit].
func (r PageRequest) Validate() error {
	if r.Page < 1 {
		return ValidationError("pagination", fmt.Sprintf("page must be >= 1, got %d", r.Page))
	}
	if r.Limit < 1 || r.Limit > MaxLimit {
		return ValidationError("pagination", fmt.Sprintf("limit must be in [1, %d], got %d", MaxLimit, r.Limit))
	}
	return nil
}

// Params returns the request as query parameters.
func (r PageRequest) Params() map[string]any {
	return map[string]any{"page": r.Page, "limit": r.Limit}
}

// Meta is pagination metadata as reported by the server. Nil fields were
// absent from the response.
type Meta struct {
	CurrentPage  *int
	TotalPages   *int
	TotalItems   *int
	ItemsPerPage *int
	HasNextPage  *bool
	HasPrevPage  *bool
}

var (
	currentPageFields  = []string{"currentPage", "page"}
	totalItemsFields   = []string{"totalItems", "total", "totalPosts", "totalUsers", "totalReports", "totalBlockedUsers", "totalPackages"}
	itemsPerPageFields = []string{"itemsPerPage", "limit", "postsPerPage", "usersPerPage", "reportsPerPage"}
)

// MetaFromJSON extracts pagination metadata from a response body, reading
// a nested "pagination" object when present and top-level fields otherwise.
// It returns nil when the body carries no pagination fields.
func MetaFromJSON(body []byte) (*Meta, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, ParseError("pagination", err)
	}

	fields := top
	if raw, ok := top["pagination"]; ok && string(raw) != "null" {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err != nil {
			return nil, ParseError("pagination", fmt.Errorf("pagination is not an object: %w", err))
		}
		fields = nested
	}

	var m Meta
	var err error
	found := false
	pick := func(dst **int, names ...string) {
		if err != nil {
			return
		}
		for _, name := range names {
			raw, ok := fields[name]
			if !ok || string(raw) == "null" {
				continue
			}
			var n int
			if n, err = intField(name, raw); err != nil {
				return
			}
			*dst = &n
			found = true
			return
		}
	}
	pickBool := func(dst **bool, name string) {
		if err != nil {
			return
		}
		raw, ok := fields[name]
		if !ok || string(raw) == "null" {
			return
		}
		var b bool
		if uerr := json.Unmarshal(raw, &b); uerr != nil {
			err = ParseError("pagination", fmt.Errorf("%s: %w", name, uerr))
			return
		}
		*dst = &b
		found = true
	}

	pick(&m.CurrentPage, currentPageFields...)
	pick(&m.TotalPages, "totalPages")
	pick(&m.TotalItems, totalItemsFields...)
	pick(&m.ItemsPerPage, itemsPerPageFields...)
	pickBool(&m.HasNextPage, "hasNextPage")
	pickBool(&m.HasPrevPage, "hasPrevPage")

	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &m, nil
}

// intField accepts a JSON number or a numeric string.
func intField(name string, raw json.RawMessage) (int, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if serr := json.Unmarshal(raw, &s); serr != nil {
			return 0, ParseError("pagination", fmt.Errorf("%s: %w", name, err))
		}
		n = json.Number(s)
	}
	i, err := strconv.Atoi(n.String())
	if err != nil {
		return 0, ParseError("pagination", fmt.Errorf("%s: %w", name, err))
	}
	return i, nil
}

// Descriptor is the validated position of a page within a list.
type Descriptor struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalItems   int  `json:"totalItems"`
	ItemsPerPage int  `json:"itemsPerPage"`
	HasNextPage  bool `json:"hasNextPage"`
	HasPrevPage  bool `json:"hasPrevPage"`
}

// Describe builds a Descriptor from server metadata. Without metadata the
// result is a single page holding itemCount items. Inconsistent metadata
// fails with a parse error.
func Describe(meta *Meta, req PageRequest, itemCount int) (Descriptor, error) {
	req = req.WithDefaults()
	if meta == nil {
		per := req.Limit
		if itemCount > per {
			per = itemCount
		}
		return Descriptor{CurrentPage: 1, TotalPages: 1, TotalItems: itemCount, ItemsPerPage: per}, nil
	}

	d := Descriptor{
		CurrentPage:  deref(meta.CurrentPage, req.Page),
		ItemsPerPage: deref(meta.ItemsPerPage, req.Limit),
		TotalItems:   deref(meta.TotalItems, -1),
		TotalPages:   deref(meta.TotalPages, -1),
	}

	if d.ItemsPerPage <= 0 {
		return Descriptor{}, ParseError("pagination", fmt.Errorf("items per page must be positive, got %d", d.ItemsPerPage))
	}
	if d.TotalPages < 0 && d.TotalItems >= 0 {
		d.TotalPages = (d.TotalItems + d.ItemsPerPage - 1) / d.ItemsPerPage
	}
	if d.TotalPages < 0 {
		return Descriptor{}, ParseError("pagination", fmt.Errorf("total pages missing"))
	}
	if d.TotalItems < 0 {
		// Only the page count is known; the last page may be partial.
		d.TotalItems = (d.TotalPages-1)*d.ItemsPerPage + itemCount
		if d.TotalPages == 0 {
			d.TotalItems = 0
		}
	}

	if d.TotalItems > 0 {
		if d.CurrentPage < 1 || d.CurrentPage > d.TotalPages {
			return Descriptor{}, ParseError("pagination", fmt.Errorf("current page %d outside [1, %d]", d.CurrentPage, d.TotalPages))
		}
	} else {
		d.CurrentPage = 1
		d.TotalPages = max(d.TotalPages, 1)
	}

	next := d.CurrentPage < d.TotalPages
	prev := d.CurrentPage > 1
	if meta.HasNextPage != nil && *meta.HasNextPage != next {
		return Descriptor{}, ParseError("pagination", fmt.Errorf("hasNextPage=%t on page %d of %d", *meta.HasNextPage, d.CurrentPage, d.TotalPages))
	}
	if meta.HasPrevPage != nil && *meta.HasPrevPage != prev {
		return Descriptor{}, ParseError("pagination", fmt.Errorf("hasPrevPage=%t on page %d of %d", *meta.HasPrevPage, d.CurrentPage, d.TotalPages))
	}
	d.HasNextPage = next
	d.HasPrevPage = prev
	return d, nil
}

// Clamp reports whether page is inside [1, TotalPages]. Out-of-range pages
// return the current page and false.
func (d Descriptor) Clamp(page int) (int, bool) {
	if page < 1 || page > d.TotalPages {
		return d.CurrentPage, false
	}
	return page, true
}

// Next returns the following page, if any.
func (d Descriptor) Next() (int, bool) { return d.Clamp(d.CurrentPage + 1) }

// Prev returns the preceding page, if any.
func (d Descriptor) Prev() (int, bool) { return d.Clamp(d.CurrentPage - 1) }

func deref[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
