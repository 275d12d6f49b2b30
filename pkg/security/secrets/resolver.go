package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
)

var refPattern = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Resolver substitutes secret references using an ordered list of providers.
type Resolver struct {
	providers []Provider
	logger    *slog.Logger
}

// NewResolver creates a resolver trying providers in order.
func NewResolver(logger *slog.Logger, providers ...Provider) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		providers: providers,
		logger:    logger.With("component", "secrets"),
	}
}

// HasReferences reports whether s contains any secret reference.
func HasReferences(s string) bool {
	return refPattern.MatchString(s)
}

// Lookup returns the secret from the first provider holding it. Errors other
// than ErrNotFound stop the search.
func (r *Resolver) Lookup(ctx context.Context, name string) (string, error) {
	for _, p := range r.providers {
		value, err := p.Lookup(ctx, name)
		if err == nil {
			r.logger.Debug("secret resolved", "name", redactName(name), "provider", p.Name())
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("secret %q from %s: %w", name, p.Name(), err)
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Resolve replaces every ${secret:name} in s. All unresolvable references are
// reported together; s is returned unchanged on error.
func (r *Resolver) Resolve(ctx context.Context, s string) (string, error) {
	var errs []error
	out := refPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := refPattern.FindStringSubmatch(ref)[1]
		value, err := r.Lookup(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return ref
		}
		return value
	})
	if len(errs) > 0 {
		return s, errors.Join(errs...)
	}
	return out, nil
}

// redactName keeps the first and last two characters of a secret name.
func redactName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
