package transport

import (
	"net/http"
	"time"

	"github.com/pribylovaa/quest-gateway/internal/metrics"
)

// WithMetrics считает исходящие запросы и их длительность.
func WithMetrics(m *metrics.Metrics) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(r)

			code := 0
			if err == nil {
				code = resp.StatusCode
			}
			m.Upstream(r.Method, code, time.Since(start))

			return resp, err
		})
	}
}
