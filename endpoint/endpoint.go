package endpoint

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/kyptronix/spectrum-admin/cache"
)

// Params are the arguments of one operation.
type Params map[string]any

// String returns the parameter formatted as a string, or "" when absent.
func (p Params) String(name string) string {
	v, ok := p[name]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the parameter as an int. Absent parameters report ok=false.
func (p Params) Int(name string) (n int, ok bool, err error) {
	v, present := p[name]
	if !present || v == nil {
		return 0, false, nil
	}
	switch x := v.(type) {
	case int:
		return x, true, nil
	case int32:
		return int(x), true, nil
	case int64:
		return int(x), true, nil
	case float64:
		if x != float64(int(x)) {
			return 0, true, fmt.Errorf("%s must be an integer, got %v", name, x)
		}
		return int(x), true, nil
	case json.Number:
		i, err := strconv.Atoi(x.String())
		return i, true, err
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, true, fmt.Errorf("%s must be an integer, got %q", name, x)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("%s must be an integer, got %T", name, v)
	}
}

// Request is a resolved API call.
type Request struct {
	Name   string
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Idempotent reports whether the request can be retried safely.
func (r Request) Idempotent() bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// URL joins the request path and query onto base.
func (r Request) URL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("endpoint: invalid base url %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("endpoint: base url %q must be absolute", base)
	}
	u = u.JoinPath(r.Path)
	u.RawQuery = r.Query.Encode()
	return u.String(), nil
}

// BodyFunc builds the request body from the parameters.
type BodyFunc func(p Params) (any, error)

// FixedBody sends the same body on every call.
func FixedBody(v any) BodyFunc {
	return func(Params) (any, error) { return v, nil }
}

// ParamBody sends the parameter name as the whole body. The parameter is
// required.
func ParamBody(name string) BodyFunc {
	return func(p Params) (any, error) {
		v, ok := p[name]
		if !ok || v == nil {
			return nil, fmt.Errorf("missing %s", name)
		}
		return v, nil
	}
}

// FieldsBody sends an object made of the named parameters, all required.
func FieldsBody(names ...string) BodyFunc {
	return func(p Params) (any, error) {
		out := make(map[string]any, len(names))
		for _, n := range names {
			v, ok := p[n]
			if !ok || v == nil {
				return nil, fmt.Errorf("missing %s", n)
			}
			out[n] = v
		}
		return out, nil
	}
}

// Def describes one operation.
type Def struct {
	Name   string
	Method string
	// Path may contain {name} placeholders.
	Path string
	// Category is the tag type the operation reads or writes.
	Category string
	// Paginated operations accept page and limit.
	Paginated bool
	// Query lists optional parameters sent as query string values.
	Query []string
	Body  BodyFunc
}

// PathParams returns the placeholder names in d.Path, in order.
func (d Def) PathParams() []string {
	var names []string
	rest := d.Path
	for {
		i := strings.IndexByte(rest, '{')
		if i < 0 {
			return names
		}
		j := strings.IndexByte(rest[i:], '}')
		if j < 0 {
			return names
		}
		names = append(names, rest[i+1:i+j])
		rest = rest[i+j+1:]
	}
}

// Resolver resolves operation names against a catalog.
//
// Contract:
// - Concurrency: safe for concurrent use once built.
// - Errors: unknown names, missing path parameters, bad bodies and
//   out-of-range pages return *cache.Error of kind validation.
type Resolver struct {
	defs map[string]Def
}

// NewResolver creates a Resolver over defs. Later duplicates replace
// earlier ones.
func NewResolver(defs ...Def) *Resolver {
	r := &Resolver{defs: make(map[string]Def, len(defs))}
	for _, d := range defs {
		r.defs[d.Name] = d
	}
	return r
}

// Default returns a Resolver over Catalog.
func Default() *Resolver {
	return NewResolver(Catalog()...)
}

// Lookup returns the definition for name.
func (r *Resolver) Lookup(name string) (Def, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names returns the catalog's operation names, sorted.
func (r *Resolver) Names() []string {
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve builds the Request for name with p.
func (r *Resolver) Resolve(name string, p Params) (Request, error) {
	d, ok := r.defs[name]
	if !ok {
		return Request{}, cache.ValidationError(name, "unknown endpoint")
	}

	reqPath := d.Path
	for _, param := range d.PathParams() {
		v := p.String(param)
		if v == "" {
			return Request{}, cache.ValidationError(name, "missing path parameter "+param)
		}
		reqPath = strings.Replace(reqPath, "{"+param+"}", url.PathEscape(v), 1)
	}

	query := url.Values{}
	if d.Paginated {
		page, err := pageFrom(name, p)
		if err != nil {
			return Request{}, err
		}
		query.Set("page", strconv.Itoa(page.Page))
		query.Set("limit", strconv.Itoa(page.Limit))
	}
	for _, q := range d.Query {
		if v := p.String(q); v != "" {
			query.Set(q, v)
		}
	}

	var body any
	if d.Body != nil {
		b, err := d.Body(p)
		if err != nil {
			return Request{}, cache.ValidationError(name, err.Error())
		}
		body = b
	}

	return Request{
		Name:   name,
		Method: d.Method,
		Path:   reqPath,
		Query:  query,
		Body:   body,
	}, nil
}

// PageOf reads page and limit from p with defaults applied and validated.
func PageOf(p Params) (cache.PageRequest, error) {
	return pageFrom("pagination", p)
}

func pageFrom(op string, p Params) (cache.PageRequest, error) {
	req := cache.PageRequest{Page: cache.DefaultPage, Limit: cache.DefaultLimit}
	page, ok, err := p.Int("page")
	if err != nil {
		return cache.PageRequest{}, cache.ValidationError(op, err.Error())
	}
	if ok {
		req.Page = page
	}
	limit, ok, err := p.Int("limit")
	if err != nil {
		return cache.PageRequest{}, cache.ValidationError(op, err.Error())
	}
	if ok {
		req.Limit = limit
	}
	if err := req.Validate(); err != nil {
		return cache.PageRequest{}, err
	}
	return req, nil
}
