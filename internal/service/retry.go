package service

import (
	"context"
	"time"

	"github.com/jaescalo/property-deployer/internal/domain"
	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds retries of transient transport errors on idempotent
// reads. Writes are never retried here: a write that failed in flight may
// still have been applied, and re-issuing it could duplicate side effects.
type RetryPolicy struct {
	Attempts uint64
	Base     time.Duration
}

// DefaultRetryPolicy matches the service defaults.
var DefaultRetryPolicy = RetryPolicy{Attempts: 5, Base: 2 * time.Second}

// Do runs fn, retrying with exponential backoff while it reports a
// transport error. Application-level errors pass through immediately.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	base := p.Base
	if base <= 0 {
		base = DefaultRetryPolicy.Base
	}

	backoff := retry.WithMaxRetries(attempts, retry.NewExponential(base))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			if domain.IsTransport(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
}
