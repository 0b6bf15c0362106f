// Package auth supplies credentials for calls to the admin API.
//
// Bearer tokens come from an oauth2.TokenSource: a fixed token, or one
// obtained by logging in with an email and password and renewed shortly
// before the JWT it carries expires. NewClient attaches the token to every
// request through oauth2.Transport. Deployments that authenticate with a
// static key use APIKeyTransport instead.
package auth
