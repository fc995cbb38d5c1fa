package alerting

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/stoicmail/reflection-guard/internal/metrics"
)

// RateLimitedNotifier drops notifications beyond a per-minute budget.
type RateLimitedNotifier struct {
	inner   Notifier
	limiter *rate.Limiter
}

// NewRateLimitedNotifier allows perMinute notifications per minute with a burst
// of the same size. perMinute <= 0 returns inner unchanged.
func NewRateLimitedNotifier(inner Notifier, perMinute int) Notifier {
	if perMinute <= 0 {
		return inner
	}
	return &RateLimitedNotifier{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

func (r *RateLimitedNotifier) Name() string { return r.inner.Name() }

func (r *RateLimitedNotifier) Notify(ctx context.Context, n Notification) error {
	if !r.limiter.Allow() {
		metrics.ObserveNotification(r.inner.Name(), metrics.NotificationThrottled)
		return ErrThrottled
	}
	return r.inner.Notify(ctx, n)
}
