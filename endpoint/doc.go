// Package endpoint is the catalog of admin API operations.
//
// A Resolver maps an operation name and its parameters to a concrete
// Request (method, path, query and body). It performs no I/O, so every
// entry in the catalog can be checked without a server.
//
// Path templates use {name} placeholders that are filled from Params and
// escaped. List operations take page and limit parameters, default them to
// page 1 and limit 10, and reject out-of-range values with a validation
// error from the cache package.
package endpoint
