// Package secret resolves credentials referenced from configuration.
//
// Configuration values may name a secret instead of holding it:
//
//	password: secretref:env:SPECTRUM_ADMIN_PASSWORD
//	token:    secretref:file:/run/secrets/spectrum_token
//	header:   Bearer secretref:env:SPECTRUM_TOKEN
//
// Values also go through strict environment expansion (${VAR} must be set;
// $$ is a literal dollar). Providers are created by name from a Registry;
// DefaultRegistry knows "env" and "file".
package secret
