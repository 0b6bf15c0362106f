// Package cache is the client-side query cache of the admin dashboard.
//
// A Store holds one entry per Key, derived from an endpoint name and its
// parameters by a Keyer. Concurrent requests for the same key share a single
// fetch through the Deduplicator. Successful results record the tags they
// provide in a TagIndex; the mutation Dispatcher invalidates tags from a
// declarative InvalidationTable after each successful write, and the Store
// refetches watched entries in the background while keeping their previous
// data visible. Pagination metadata from list responses is validated into a
// Descriptor that bounds page navigation.
//
// Failures are reported as *Error with a Kind: network, server, parse,
// conflict or validation.
package cache
