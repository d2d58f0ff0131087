package service

import (
	"context"

	"github.com/jaescalo/property-deployer/internal/domain"
	"github.com/jaescalo/property-deployer/internal/papi"
)

// Resolver maps a property name to its immutable identifier and current
// production version. Resolution happens fresh on every run; the result
// is never cached across invocations.
type Resolver struct {
	client papi.PropertyClient
	retry  RetryPolicy
}

// NewResolver creates a new Resolver.
func NewResolver(client papi.PropertyClient, retry RetryPolicy) *Resolver {
	return &Resolver{client: client, retry: retry}
}

// Resolve looks up the property by name. A property that has never been
// activated to production resolves with HasProduction false, which callers
// must treat as "no base version" rather than version 0.
func (r *Resolver) Resolve(ctx context.Context, name string) (*domain.PropertySummary, error) {
	var summary *domain.PropertySummary
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		s, err := r.client.FindProperty(ctx, name)
		if err != nil {
			return err
		}
		summary = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}
