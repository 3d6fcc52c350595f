package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/jhoicas/traslados-api/internal/domain"
)

// RetryPolicy reintentos ante conflictos de concurrencia (bloqueos, serialización, CAS).
type RetryPolicy struct {
	MaxRetries uint64
	Base       time.Duration
}

// DefaultRetryPolicy valores por defecto cuando la configuración no los define.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 5, Base: 10 * time.Millisecond}
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.Base
	if base <= 0 {
		base = time.Millisecond
	}
	b := retry.NewExponential(base)
	b = retry.WithJitterPercent(20, b)
	return retry.WithMaxRetries(p.MaxRetries, b)
}

// Do ejecuta fn y la repite solo si falla con domain.ErrConcurrencyConflict.
// Agotados los reintentos devuelve *domain.ConcurrencyConflictError con el número de intentos.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := 0
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempts++
		err := fn(ctx)
		if err != nil && errors.Is(err, domain.ErrConcurrencyConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil || !errors.Is(err, domain.ErrConcurrencyConflict) {
		return err
	}
	var cc *domain.ConcurrencyConflictError
	if errors.As(err, &cc) {
		cc.Attempts = attempts
		return cc
	}
	return &domain.ConcurrencyConflictError{Attempts: attempts, Err: err}
}
