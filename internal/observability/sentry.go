// observability - отправка паник и внутренних ошибок в Sentry.
// Пустой DSN отключает отправку: функции пакета остаются безопасными no-op.
package observability

import (
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
)

func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// CapturePanic - паника в обработчике запроса.
func CapturePanic(r *http.Request, rec any, stack []byte) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("method", r.Method)
		scope.SetTag("path", r.URL.Path)
		scope.SetExtra("panic", rec)
		scope.SetExtra("stack", string(stack))
		if rid := r.Header.Get("X-Request-Id"); rid != "" {
			scope.SetTag("request_id", rid)
		}
		sentry.CaptureMessage("panic in request")
	})
}

// CaptureError - неожиданная ошибка, ставшая ответом 500.
func CaptureError(r *http.Request, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("method", r.Method)
		scope.SetTag("path", r.URL.Path)
		if rid := r.Header.Get("X-Request-Id"); rid != "" {
			scope.SetTag("request_id", rid)
		}
		sentry.CaptureException(err)
	})
}
