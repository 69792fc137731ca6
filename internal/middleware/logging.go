package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Logger returns a transport middleware that logs every backend call.
func Logger(log zerolog.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()

			resp, err := next.RoundTrip(r)
			duration := time.Since(start)

			if err != nil {
				log.Warn().
					Err(err).
					Str("request_id", r.Header.Get(RequestIDHeader)).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Dur("duration", duration).
					Msg("HTTP request failed")
				return nil, err
			}

			event := log.Debug()
			if resp.StatusCode >= 500 {
				event = log.Warn()
			}
			event.
				Str("request_id", r.Header.Get(RequestIDHeader)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", resp.StatusCode).
				Int64("bytes", resp.ContentLength).
				Dur("duration", duration).
				Msg("HTTP request")
			return resp, nil
		})
	}
}
