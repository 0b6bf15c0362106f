// Package resilience protects calls to the admin API.
//
// Reads go through an Executor combining a RateLimiter, a CircuitBreaker,
// Retry with Retry-After support and a per-attempt Timeout. Writes skip the
// retry so a non-idempotent call is never sent twice. The cache store uses a
// Bulkhead to bound background refetches after an invalidation.
//
// All types are safe for concurrent use.
package resilience
