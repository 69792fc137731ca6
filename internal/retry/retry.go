package retry

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"time"
)

// Backoff computes the wait before the next attempt. attempt is the 1-based number of the
// attempt that just failed.
type Backoff interface {
	Delay(attempt int) time.Duration
}

// Fixed waits the same duration between every attempt.
type Fixed time.Duration

// Delay implements Backoff.
func (f Fixed) Delay(int) time.Duration {
	return time.Duration(f)
}

// Exponential multiplies the wait after each failed attempt, capped at Max.
type Exponential struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// Delay implements Backoff.
func (e Exponential) Delay(attempt int) time.Duration {
	if e.Initial <= 0 {
		return 0
	}
	mult := e.Multiplier
	if mult < 1 {
		mult = 1
	}
	if attempt < 1 {
		attempt = 1
	}
	wait := time.Duration(float64(e.Initial) * math.Pow(mult, float64(attempt-1)))
	if e.Max > 0 && (wait > e.Max || wait <= 0) {
		wait = e.Max
	}
	return wait
}

// Options configures a single Do call.
type Options struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	Backoff     Backoff
	// ShouldRetry decides whether a failure is worth another attempt. Defaults to Transient.
	ShouldRetry func(err error) bool
	// OnRetry is called after a failed attempt that will be retried, before waiting.
	OnRetry func(attempt int, err error)
}

// Do runs op until it succeeds, the error is not retryable, or MaxAttempts is reached.
// Attempts are strictly sequential. The last error is returned unchanged.
func Do[T any](ctx context.Context, opts Options, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if op == nil {
		return zero, errors.New("retry: operation is nil")
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	shouldRetry := opts.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = Transient
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == maxAttempts || !shouldRetry(err) {
			return zero, err
		}

		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err)
		}

		var wait time.Duration
		if opts.Backoff != nil {
			wait = opts.Backoff.Delay(attempt)
		}
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, err
			case <-timer.C:
			}
		}
	}

	return zero, lastErr
}

// StatusCoder is implemented by errors that carry an HTTP status (0 for transport failures).
type StatusCoder interface {
	StatusCode() int
}

// Always retries every error. This is the policy-agnostic behavior callers opt into explicitly.
func Always(error) bool {
	return true
}

// Transient retries transport failures and 408/429/5xx responses. Client errors and
// cancellations are permanent.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsCircuitOpen(err) {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return IsRetryableStatus(sc.StatusCode())
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsRetryableStatus reports whether an HTTP status is worth retrying. Status 0 means the
// request never got a response.
func IsRetryableStatus(status int) bool {
	switch status {
	case 0, http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
