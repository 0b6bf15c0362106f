// Package transport sends resolved endpoint requests over HTTP.
//
// HTTP encodes bodies as JSON, tags every request with an X-Request-ID and
// maps failures onto the cache error taxonomy: connection problems become
// network errors, non-2xx responses become server errors carrying the
// API's {error|message, code} body, and undecodable 2xx bodies become parse
// errors.
//
// Reads and writes run through separate resilience executors. Reads retry
// network errors, 5xx and 429 responses; writes are never retried because
// the admin API's mutations are not idempotent. A 429 or 503 with a
// Retry-After header overrides the retry backoff.
package transport
