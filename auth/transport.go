package auth

import (
	"net/http"

	"golang.org/x/oauth2"
)

// DefaultAPIKeyHeader is the header APIKeyTransport sets when none is given.
const DefaultAPIKeyHeader = "X-API-Key"

// NewClient returns an HTTP client that sends a bearer token from src on
// every request. base defaults to http.DefaultTransport.
func NewClient(base http.RoundTripper, src oauth2.TokenSource) *http.Client {
	return &http.Client{Transport: &oauth2.Transport{Source: src, Base: base}}
}

// APIKeyTransport adds a static API key header to every request.
type APIKeyTransport struct {
	Key    string
	Header string
	Base   http.RoundTripper
}

// RoundTrip sends a copy of req carrying the key. The original request is
// not modified.
func (t *APIKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Key == "" {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, ErrMissingCredentials
	}
	header := t.Header
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	r := req.Clone(req.Context())
	r.Header.Set(header, t.Key)

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}
