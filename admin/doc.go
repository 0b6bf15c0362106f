// Package admin is the typed client for the moderation and account
// screens of the admin dashboard.
//
// Reads go through the query cache: each Query names an endpoint, decodes
// the body into an explicit schema with documented defaults and provides
// tags (one per item plus the list tag). Writes go through the mutation
// dispatcher, which invalidates the tags listed in Invalidations once the
// API confirms the write.
//
// Screens use Watch to keep a query subscribed. While watched, a query
// refetches in the background after any invalidation that reaches it, and
// the previous data stays visible until the new data arrives. Pager walks
// list pages and never requests a page outside the range the API last
// reported.
//
// Schema defaults:
//   - a missing list decodes as empty and missing pagination as one page
//   - isActive absent means active
//   - likes and comments accept a count or the array they count
//   - list items without an id fail with a parse error
package admin
