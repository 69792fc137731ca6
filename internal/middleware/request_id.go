package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries a per-call id the backend can log alongside ours.
const RequestIDHeader = "X-Request-ID"

// RequestID sets X-Request-ID on outgoing requests that do not already carry one.
func RequestID() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if r.Header.Get(RequestIDHeader) != "" {
				return next.RoundTrip(r)
			}
			r = r.Clone(r.Context())
			r.Header.Set(RequestIDHeader, uuid.New().String())
			return next.RoundTrip(r)
		})
	}
}
