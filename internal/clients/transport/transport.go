// transport предоставляет обёртки http.RoundTripper для исходящих вызовов
// к бэкенду: metadata -> timeout -> logging -> metrics.
package transport

import "net/http"

type CtxKey string

const CtxRequestID CtxKey = "request_id"

// RoundTripperFunc - адаптер функции к http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Middleware оборачивает RoundTripper.
type Middleware func(http.RoundTripper) http.RoundTripper

// Chain применяет обёртки так, что первая в списке выполняется первой.
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}

	return base
}
