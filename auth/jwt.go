package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// parser never verifies signatures; only the API holds the signing key.
var parser = jwt.NewParser()

// ParseClaims decodes the claims of a JWT without verifying it.
func ParseClaims(raw string) (jwt.MapClaims, error) {
	if raw == "" {
		return nil, ErrMissingCredentials
	}
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	return claims, nil
}

// Expiry returns the exp claim of a JWT. Tokens without exp, or opaque
// tokens that are not JWTs, report a zero time and no error.
func Expiry(raw string) (time.Time, error) {
	claims, err := ParseClaims(raw)
	if errors.Is(err, ErrTokenMalformed) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}
