package middleware

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimit throttles outgoing calls to rps requests per second with the given burst. Callers
// block until a token is available or their context ends. rps <= 0 disables throttling.
func RateLimit(rps float64, burst int) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		if rps <= 0 {
			return next
		}
		if burst < 1 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(rps), burst)
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if err := limiter.Wait(r.Context()); err != nil {
				return nil, err
			}
			return next.RoundTrip(r)
		})
	}
}
