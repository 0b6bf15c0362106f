package cache

import (
	"errors"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for key handling and store lifecycle.
var (
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
	ErrClosed     = errors.New("cache: store is closed")
)

// Key identifies one cached query: an endpoint name plus a digest of its
// normalised parameters, formatted "<endpoint>:<16 hex chars>".
type Key string

// Endpoint returns the endpoint name portion of the key.
func (k Key) Endpoint() string {
	s := string(k)
	if i := strings.LastIndexByte(s, ':'); i > 0 {
		return s[:i]
	}
	return s
}

// String implements fmt.Stringer.
func (k Key) String() string { return string(k) }

// ValidateKey checks that a key can be stored.
func ValidateKey(key Key) error {
	s := string(key)
	if strings.TrimSpace(s) == "" {
		return ErrInvalidKey
	}
	if len(s) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(s, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
