// Package observe provides observability primitives for the admin query layer.
//
// It is a pure instrumentation library: no fetching, no transport, no I/O
// beyond exporter setup and log output. The cache store, the mutation
// dispatcher and the HTTP transport accept the Logger, Tracer and Metrics
// defined here; NewObserver wires all three from a single Config.
package observe
