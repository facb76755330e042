package upstream

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"dexAdapter/internal/metrics"
)

// Limiter wraps a token-bucket rate limiter for upstream calls of a network.
type Limiter struct {
	limiter *rate.Limiter
	network string
}

// NewLimiter allows rps requests per second with burst capacity. A
// non-positive rps yields nil, which callers treat as unlimited.
func NewLimiter(rps float64, burst int, network string) *Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		network: network,
	}
}

// Wait blocks until the limiter allows one event, or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	r := l.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate: cannot reserve token")
	}
	delay := r.Delay()
	if delay > 0 {
		metrics.UpstreamThrottled.WithLabelValues(l.network).Inc()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			r.Cancel()
			return ctx.Err()
		}
	}
	return nil
}
