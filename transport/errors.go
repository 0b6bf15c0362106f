package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kyptronix/spectrum-admin/cache"
)

// ErrInvalidBaseURL is returned by New for a base URL that is not absolute.
var ErrInvalidBaseURL = errors.New("transport: invalid base url")

// throttledError is a server error that carries a Retry-After delay.
type throttledError struct {
	err   *cache.Error
	after time.Duration
}

func (e *throttledError) Error() string             { return e.err.Error() }
func (e *throttledError) Unwrap() error             { return e.err }
func (e *throttledError) RetryAfter() time.Duration { return e.after }

// errorBody is the shape of the API's error responses.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    any    `json:"code"`
}

// responseError builds the error for a non-2xx response.
func responseError(op string, resp *http.Response, body []byte, now time.Time) error {
	var eb errorBody
	message := ""
	code := ""
	if json.Unmarshal(body, &eb) == nil {
		message = eb.Error
		if message == "" {
			message = eb.Message
		}
		if eb.Code != nil {
			switch c := eb.Code.(type) {
			case string:
				code = c
			case float64:
				code = strconv.FormatFloat(c, 'f', -1, 64)
			}
		}
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 {
		message = text
	}

	ce := cache.ServerError(op, resp.StatusCode, code, message)
	if resp.StatusCode == http.StatusConflict {
		// The API refused a write that clashes with current state; like a
		// local conflict it goes back to the caller and is never cached.
		ce.Kind = cache.KindConflict
		return ce
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		if after := parseRetryAfter(resp.Header.Get("Retry-After"), now); after > 0 {
			return &throttledError{err: ce, after: after}
		}
	}
	return ce
}

// parseRetryAfter reads delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// retryable decides whether a read is worth another attempt.
func retryable(err error) bool {
	var ce *cache.Error
	if errors.As(err, &ce) {
		return ce.Retryable()
	}
	return false
}
