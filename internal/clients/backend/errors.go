package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable - бэкенд недоступен (сетевая ошибка, таймаут апстрима).
	ErrUnavailable = errors.New("backend unavailable")
	// ErrMalformedResponse - успешный статус, но тело не разбирается.
	ErrMalformedResponse = errors.New("invalid JSON in backend response")
	// ErrResponseTooLarge - тело ответа длиннее лимита; обрезанное тело не разбираем.
	ErrResponseTooLarge = errors.New("backend response too large")
)

// StatusError - не-2xx ответ бэкенда. Status передаётся браузеру как есть.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend status %d: %s", e.Status, e.Detail)
}

// Detail извлекает поле "detail" из JSON-ошибки бэкенда.
// Если тела нет или поле пустое - возвращает fallback.
func Detail(body []byte, fallback string) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fallback
	}

	switch d := payload.Detail.(type) {
	case string:
		if strings.TrimSpace(d) != "" {
			return d
		}
	case nil:
	default:
		if raw, err := json.Marshal(d); err == nil {
			return string(raw)
		}
	}

	return fallback
}

// AsStatusError строит *StatusError из ответа с не-2xx статусом.
func AsStatusError(resp *Response, fallback string) *StatusError {
	return &StatusError{Status: resp.StatusCode, Detail: Detail(resp.Body, fallback)}
}
