package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Keyer derives cache keys from an endpoint name and its parameters.
//
// Contract:
// - Determinism: equal parameters produce equal keys regardless of map
//   iteration order, struct vs map representation, or numeric type.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(endpoint string, params any) (Key, error)
}

// DefaultKeyer derives keys from a SHA-256 digest of canonical JSON.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key derives "<endpoint>:<hash>", where hash is the first 16 hex characters
// of SHA-256 over the canonical JSON of params. Nil and empty params yield
// the same key.
func (k *DefaultKeyer) Key(endpoint string, params any) (Key, error) {
	if endpoint == "" || strings.ContainsAny(endpoint, "\n\r") {
		return "", ErrInvalidKey
	}

	canonical, err := Canonical(params)
	if err != nil {
		return "", fmt.Errorf("cache: canonicalize params for %s: %w", endpoint, err)
	}

	sum := sha256.Sum256(canonical)
	key := Key(endpoint + ":" + hex.EncodeToString(sum[:8]))
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

var defaultKeyer = NewDefaultKeyer()

// KeyFor derives a key with the default keyer.
func KeyFor(endpoint string, params any) (Key, error) {
	return defaultKeyer.Key(endpoint, params)
}

// Canonical returns the deterministic JSON form of params. Values are first
// normalised through a JSON round trip, so structs, maps and numeric types
// with equal JSON meaning collapse to one representation. Object members are
// emitted in sorted key order. Nil and empty objects both encode as "{}".
func Canonical(params any) ([]byte, error) {
	normalised, err := normalise(params)
	if err != nil {
		return nil, err
	}
	if normalised == nil {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, normalised); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func normalise(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if m, ok := out.(map[string]any); ok && len(m) == 0 {
		return nil, nil
	}
	return out, nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil

	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil

	case json.Number:
		// Integer literals keep every digit; 1, 1.0 and 1e0 share one form.
		if i, err := strconv.ParseInt(val.String(), 10, 64); err == nil {
			buf.WriteString(strconv.FormatInt(i, 10))
			return nil
		}
		if u, err := strconv.ParseUint(val.String(), 10, 64); err == nil {
			buf.WriteString(strconv.FormatUint(u, 10))
			return nil
		}
		if f, err := val.Float64(); err == nil {
			b, err := json.Marshal(f)
			if err != nil {
				return err
			}
			buf.Write(b)
			return nil
		}
		buf.WriteString(val.String())
		return nil

	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

var _ Keyer = (*DefaultKeyer)(nil)
