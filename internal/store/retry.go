package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/stoicmail/reflection-guard/internal/models"
	"github.com/stoicmail/reflection-guard/internal/utils"
)

// RetryPolicy bounds how hard the store tries before reporting failure.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
	// Retryable decides whether err is worth another attempt. Nil retries
	// everything except context cancellation and rejected audit keys.
	Retryable func(error) bool
}

// Retrying wraps a Store, retrying transient failures with exponential
// backoff. Errors that survive all attempts are wrapped as persistence errors.
type Retrying struct {
	inner  Store
	policy RetryPolicy
	logger *slog.Logger
}

// WithRetry decorates inner with policy.
func WithRetry(inner Store, policy RetryPolicy, logger *slog.Logger) *Retrying {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	if policy.Backoff <= 0 {
		policy.Backoff = 25 * time.Millisecond
	}
	if policy.Retryable == nil {
		policy.Retryable = shouldRetry
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{inner: inner, policy: policy, logger: logger}
}

// Unwrap returns the decorated store.
func (r *Retrying) Unwrap() Store { return r.inner }

func (r *Retrying) do(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < r.policy.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return utils.PersistenceError(op, err)
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !r.policy.Retryable(err) || attempt == r.policy.Attempts-1 {
			break
		}
		r.logger.Debug("retrying store operation", slog.String("op", op), slog.Int("attempt", attempt+1), slog.Any("error", err))
		if err := sleepCtx(ctx, backoff(attempt, r.policy.Backoff)); err != nil {
			return utils.PersistenceError(op, err)
		}
	}
	return utils.PersistenceError(op, lastErr)
}

func (r *Retrying) LoadHistory(ctx context.Context, key string) (history []models.ResponseStatistics, found bool, err error) {
	err = r.do(ctx, "store.LoadHistory", func() error {
		var inner error
		history, found, inner = r.inner.LoadHistory(ctx, key)
		return inner
	})
	return history, found, err
}

func (r *Retrying) SaveHistory(ctx context.Context, key string, history []models.ResponseStatistics) error {
	return r.do(ctx, "store.SaveHistory", func() error {
		return r.inner.SaveHistory(ctx, key, history)
	})
}

func (r *Retrying) UpdateHistory(ctx context.Context, key string, fn UpdateFunc) error {
	return r.do(ctx, "store.UpdateHistory", func() error {
		return r.inner.UpdateHistory(ctx, key, fn)
	})
}

func (r *Retrying) AppendAuditLog(ctx context.Context, record models.AuditRecord) error {
	return r.do(ctx, "store.AppendAuditLog", func() error {
		return r.inner.AppendAuditLog(ctx, record)
	})
}

func (r *Retrying) Ping(ctx context.Context) error {
	return r.inner.Ping(ctx)
}

func (r *Retrying) Close() error {
	return r.inner.Close()
}

func backoff(attempt int, base time.Duration) time.Duration {
	return time.Duration(1<<attempt) * base
}

func shouldRetry(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrInvalidAuditKey), errors.Is(err, ErrAuditExists):
		return false
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
