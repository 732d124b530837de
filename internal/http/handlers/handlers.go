package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pribylovaa/quest-gateway/internal/clients/questapi"
	"github.com/pribylovaa/quest-gateway/internal/cookie"
	apierrors "github.com/pribylovaa/quest-gateway/internal/errors"
	"github.com/pribylovaa/quest-gateway/internal/observability"
	"github.com/pribylovaa/quest-gateway/internal/session"
	logctx "github.com/pribylovaa/quest-gateway/pkg/log"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// Sessions - операции над сессиями, нужные обработчикам.
type Sessions interface {
	Login(ctx context.Context, provider, idpToken string) (*session.Manager, error)
	Resolve(ctx context.Context, id string) (*session.Manager, error)
	Logout(ctx context.Context, id string) error
}

// Handlers агрегирует зависимости обработчиков.
// Manager сессии каждый обработчик получает явно через Sessions.Resolve.
type Handlers struct {
	Sessions      Sessions
	Cookies       *cookie.Codec
	MaxImageBytes int64

	validate *validator.Validate
}

// New паникует, если валидатор не удалось настроить (как config.MustLoad).
func New(s Sessions, c *cookie.Codec, maxImageBytes int64) *Handlers {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}

	return &Handlers{
		Sessions:      s,
		Cookies:       c,
		MaxImageBytes: maxImageBytes,
		validate:      v,
	}
}

// maxJSONBody - лимит тела обычных JSON-запросов.
const maxJSONBody = 64 << 10

// writeJSON - единый ответ JSON с нужным Content-Type.
// Ошибки выводим через fail.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// writeRaw - ответ бэкенда без перекодирования.
func writeRaw(w http.ResponseWriter, status int, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// decodeJSON читает тело не длиннее limit байт. Превышение - ErrPayloadTooLarge,
// битый JSON - 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(value); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierrors.ErrPayloadTooLarge
		}
		if errors.Is(err, io.EOF) {
			return apierrors.BadRequest("empty body")
		}
		return apierrors.BadRequest("invalid JSON")
	}

	return nil
}

// fail пишет ошибку. Истёкшая или исчезнувшая сессия дополнительно очищает
// cookie (принудительный выход); внутренние ошибки уходят в лог и Sentry.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, session.ErrSessionExpired) || errors.Is(err, session.ErrUnauthorized) {
		h.Cookies.Clear(w)
	}

	status, _ := apierrors.ToHTTP(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable && status != http.StatusGatewayTimeout {
		logctx.From(r.Context()).Error("request_failed",
			slog.String("path", r.URL.Path),
			slog.String("err", err.Error()),
		)
		observability.CaptureError(r, err)
	}

	apierrors.WriteError(w, r, err)
}

// manager находит Manager сессии по cookie. При ошибке ответ уже записан.
func (h *Handlers) manager(w http.ResponseWriter, r *http.Request) (*session.Manager, bool) {
	id, err := h.Cookies.Read(r)
	if err != nil {
		if errors.Is(err, cookie.ErrInvalid) {
			h.Cookies.Clear(w)
		}
		apierrors.WriteError(w, r, session.ErrUnauthorized)
		return nil, false
	}

	m, err := h.Sessions.Resolve(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}

	return m, true
}

// api - клиент квестов от имени сессии запроса.
func (h *Handlers) api(w http.ResponseWriter, r *http.Request) (*questapi.Client, bool) {
	m, ok := h.manager(w, r)
	if !ok {
		return nil, false
	}

	return questapi.New(m), true
}

// parseQuestID - id квеста: положительное целое.
func parseQuestID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierrors.BadRequest("invalid quest id")
	}

	return id, nil
}
