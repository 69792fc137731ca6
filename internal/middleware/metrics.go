package middleware

import (
	"net/http"
	"time"
)

// RequestRecorder is implemented by metrics.ClientMetrics.
type RequestRecorder interface {
	RecordRequest(method, path string, status int, duration time.Duration)
}

// Metrics records the status and duration of every backend call. Transport failures are
// recorded with status 0.
func Metrics(rec RequestRecorder) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		if rec == nil {
			return next
		}
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(r)
			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			rec.RecordRequest(r.Method, r.URL.Path, status, time.Since(start))
			return resp, err
		})
	}
}
