package client

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy paces retries of runs the daemon rejected as busy.
type BackoffStrategy interface {
	Next(attempt int) time.Duration
}

// ExponentialBackoff multiplies the wait by Factor per attempt, capped at
// Max (0 means uncapped). Jitter spreads clients queued behind the same
// scenario lock so they do not retry in lockstep.
type ExponentialBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64 // fraction of the delay, 0.0 to 1.0
}

// DefaultBackoff is sized for scenario runs, which hold their lock from a
// few milliseconds up to a few seconds for row-by-row cursor runs.
func DefaultBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		Base:   200 * time.Millisecond,
		Max:    3 * time.Second,
		Factor: 2.0,
		Jitter: 0.25,
	}
}

// Next returns the wait before retry number attempt (0-based).
func (b *ExponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}

	delay := float64(b.Base) * math.Pow(factor, float64(attempt))
	if b.Max > 0 && delay > float64(b.Max) {
		delay = float64(b.Max)
	}
	if b.Jitter > 0 {
		delay *= 1 + (rand.Float64()*2-1)*b.Jitter
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

// retryDelay is the wait before retrying after err: the backoff step, or
// the daemon's Retry-After hint when that is longer.
func retryDelay(b BackoffStrategy, attempt int, err error) time.Duration {
	wait := b.Next(attempt)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > wait {
		wait = apiErr.RetryAfter
	}
	return wait
}
