// errors стандартизирует ответы об ошибках HTTP-слоя quest-gateway.
// На вход принимает ошибку (сессия, валидация, бэкенд), на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message; для ошибок бэкенда - его detail.
//
// Токены и тела запросов в сообщения не попадают.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/pribylovaa/quest-gateway/internal/clients/backend"
	"github.com/pribylovaa/quest-gateway/internal/session"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// LoginURL - куда UI отправляет пользователя после принудительного выхода.
const LoginURL = "/login"

// ErrPayloadTooLarge - тело запроса превышает лимит (фото выполнения).
var ErrPayloadTooLarge = stderrors.New("request entity too large")

// ValidationError - ошибка входных данных на границе шлюза; бэкенд не вызывается.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return "bad request: " + e.Message }

// BadRequest - короткий конструктор ValidationError.
func BadRequest(msg string) error { return &ValidationError{Message: msg} }

// APIError - единый формат для фронта.
// Code - короткий стабильный код для машиночитаемой обработки на FE.
// Message - безопасное человекочитаемое описание.
// RequestID - прокидывается из X-Request-Id, если есть (для трассировки).
// LoginURL - только для session_expired.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	LoginURL  string `json:"login_url,omitempty"`
}

// ErrorResponse - корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку в HTTP-статус и унифицированный ответ.
//
// Поведение:
//   - err == nil - программная ошибка вызова: 500/internal;
//   - ошибки сессии - 401 (unauthorized / session_expired + login_url);
//   - *ValidationError - 400, ErrPayloadTooLarge - 413;
//   - *backend.StatusError - статус бэкенда как есть, message = detail;
//   - backend.ErrUnavailable - 503, невалидный JSON бэкенда - 500,
//     слишком длинный ответ бэкенда - 502;
//   - отмена клиентом - 499, дедлайн - 504;
//   - прочее - 500/internal без деталей.
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := classify(err)

	resp := ErrorResponse{Error: APIError{Code: code, Message: msg}}
	if code == "session_expired" {
		resp.Error.LoginURL = LoginURL
	}

	return status, resp
}

func classify(err error) (int, string, string) {
	if err == nil {
		return http.StatusInternalServerError, "internal", "internal error"
	}

	var (
		ve *ValidationError
		se *backend.StatusError
	)

	switch {
	case stderrors.Is(err, session.ErrSessionExpired):
		return http.StatusUnauthorized, "session_expired", "session expired, please sign in again"
	case stderrors.Is(err, session.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", "unauthorized"
	case stderrors.As(err, &ve):
		return http.StatusBadRequest, "bad_request", ve.Message
	case stderrors.Is(err, session.ErrUnknownProvider):
		return http.StatusBadRequest, "bad_request", "unknown identity provider"
	case stderrors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large", "request entity too large"
	case stderrors.As(err, &se):
		return se.Status, "upstream_error", se.Detail
	case stderrors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	case stderrors.Is(err, backend.ErrUnavailable):
		return http.StatusServiceUnavailable, "upstream_unavailable", "service unavailable"
	case stderrors.Is(err, backend.ErrResponseTooLarge):
		return http.StatusBadGateway, "upstream_error", "upstream response too large"
	case stderrors.Is(err, backend.ErrMalformedResponse):
		return http.StatusInternalServerError, "internal", "invalid JSON"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

// WriteError - хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
