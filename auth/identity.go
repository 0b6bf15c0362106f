package auth

import (
	"fmt"
	"slices"
	"time"
)

// Identity describes the account a bearer token was issued to.
type Identity struct {
	// Principal is the user id (sub, uid or userId claim).
	Principal string

	Email string

	// Roles holds the role claim, whether sent as a string or a list.
	Roles []string

	Claims    map[string]any
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// IdentityOf reads the identity carried by a JWT without verifying it.
func IdentityOf(raw string) (*Identity, error) {
	claims, err := ParseClaims(raw)
	if err != nil {
		return nil, err
	}

	id := &Identity{Claims: map[string]any(claims)}
	for _, name := range []string{"sub", "uid", "userId"} {
		if s, ok := claims[name].(string); ok && s != "" {
			id.Principal = s
			break
		}
	}
	id.Email, _ = claims["email"].(string)

	switch v := claims["role"].(type) {
	case string:
		id.Roles = []string{v}
	case []any:
		for _, r := range v {
			if s, ok := r.(string); ok {
				id.Roles = append(id.Roles, s)
			}
		}
	}
	if roles, ok := claims["roles"].([]any); ok {
		for _, r := range roles {
			if s, ok := r.(string); ok && !slices.Contains(id.Roles, s) {
				id.Roles = append(id.Roles, s)
			}
		}
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		id.IssuedAt = iat.Time
	}
	return id, nil
}

// HasRole checks if the identity has a specific role.
func (id *Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// IsAdmin reports whether the token grants the admin role.
func (id *Identity) IsAdmin() bool { return id.HasRole("admin") }

// IsExpired checks if the identity has expired at now.
func (id *Identity) IsExpired(now time.Time) bool {
	if id.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(id.ExpiresAt)
}

// AdminIdentity reads raw and checks that it can still call the admin API.
// Expired tokens fail with ErrTokenExpired and tokens without the admin
// role with ErrNotAdmin; the identity is returned with either error.
// Opaque tokens fail with ErrTokenMalformed.
func AdminIdentity(raw string, now time.Time) (*Identity, error) {
	id, err := IdentityOf(raw)
	if err != nil {
		return nil, err
	}
	if id.IsExpired(now) {
		return id, fmt.Errorf("%w at %s", ErrTokenExpired, id.ExpiresAt.Format(time.RFC3339))
	}
	if !id.IsAdmin() {
		return id, fmt.Errorf("%w: principal %q has roles %v", ErrNotAdmin, id.Principal, id.Roles)
	}
	return id, nil
}
