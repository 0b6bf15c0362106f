package secret

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
)

const refPrefix = "secretref:"

var (
	// ErrUnknownProvider reports a reference to a provider nobody registered.
	ErrUnknownProvider = errors.New("secret: unknown provider")

	// ErrEmptySecret reports an empty value from a strict resolver.
	ErrEmptySecret = errors.New("secret: empty value")
)

// refPattern finds secretref:<provider>:<ref> anywhere in a value.
var refPattern = regexp.MustCompile(`secretref:([^:\s]+):(\S+)`)

// Resolver turns config values into credentials. Values are first expanded
// against the environment; "secretref:<provider>:<ref>" markers are then
// replaced by the named provider's value.
type Resolver struct {
	providers map[string]Provider
	strict    bool
}

// NewResolver creates a resolver. A strict resolver treats an empty
// provider value as an error.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider, len(providers)), strict: strict}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any provider with the same name.
func (r *Resolver) Register(p Provider) {
	if r == nil || p == nil {
		return
	}
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[p.Name()] = p
}

// ResolveValue expands value. A nil Resolver only expands the environment.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil || r == nil {
		return expanded, err
	}
	if provider, ref, ok := ParseSecretRef(expanded); ok {
		return r.lookup(ctx, provider, ref)
	}
	return r.replaceRefs(ctx, expanded)
}

// ResolveFields resolves the named fields in place, in name order. Empty
// fields are skipped. Errors name the field, never its value.
func (r *Resolver) ResolveFields(ctx context.Context, fields map[string]*string) error {
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		dst := fields[name]
		if dst == nil || *dst == "" {
			continue
		}
		out, err := r.ResolveValue(ctx, *dst)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", name, err)
		}
		*dst = out
	}
	return nil
}

// Close closes the providers in name order and joins their errors.
func (r *Resolver) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(r.providers)) {
		if err := r.providers[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// ParseSecretRef splits a value that is exactly one reference:
//
//	secretref:<provider>:<ref>
func ParseSecretRef(value string) (provider, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, refPrefix)
	if !found {
		return "", "", false
	}
	provider, ref, found = strings.Cut(rest, ":")
	if !found || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

// IsRef reports whether value contains a secret reference.
func IsRef(value string) bool {
	return refPattern.MatchString(value)
}

func (r *Resolver) lookup(ctx context.Context, provider, ref string) (string, error) {
	p, ok := r.providers[provider]
	if !ok || p == nil {
		return "", fmt.Errorf("%w %q", ErrUnknownProvider, provider)
	}
	v, err := p.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if r.strict && v == "" {
		return "", fmt.Errorf("%w from %s", ErrEmptySecret, provider)
	}
	return v, nil
}

// replaceRefs substitutes every embedded reference, such as the token in
// "Bearer secretref:file:token".
func (r *Resolver) replaceRefs(ctx context.Context, value string) (string, error) {
	var b strings.Builder
	last := 0
	for _, m := range refPattern.FindAllStringSubmatchIndex(value, -1) {
		v, err := r.lookup(ctx, value[m[2]:m[3]], value[m[4]:m[5]])
		if err != nil {
			return "", err
		}
		b.WriteString(value[last:m[0]])
		b.WriteString(v)
		last = m[1]
	}
	if last == 0 {
		return value, nil
	}
	b.WriteString(value[last:])
	return b.String(), nil
}
