// session - жизненный цикл пары токенов бэкенда для одной браузерной сессии.
//
// Manager хранит текущую пару и реализует протокол обновления: ленивую проверку
// срока, refresh по 401 с одним повтором и single-flight refresh для конкурентных
// запросов. Registry держит по одному Manager на id сессии в пределах процесса.
package session

import (
	"context"
	"errors"

	"github.com/pribylovaa/quest-gateway/internal/clients/backend"
)

var (
	// ErrUnauthorized - сессии нет (не было входа или был выход).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionExpired - сессия в терминальном состоянии, нужен повторный вход.
	ErrSessionExpired = errors.New("session expired")
	// ErrUnknownProvider - провайдер не разрешён конфигурацией.
	ErrUnknownProvider = errors.New("unknown identity provider")
)

// Backend - вызовы бэкенда, которые нужны сессии.
type Backend interface {
	Exchange(ctx context.Context, provider, accessToken string) (*backend.ExchangeResult, error)
	Refresh(ctx context.Context, refreshToken string) (*backend.RefreshResult, error)
	Do(ctx context.Context, req backend.Request, accessToken string) (*backend.Response, error)
}

// State - состояние валидности токенов.
type State int

const (
	StateAbsent State = iota
	StateValid
	StateStale
	StateRefreshing
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateValid:
		return "valid"
	case StateStale:
		return "stale"
	case StateRefreshing:
		return "refreshing"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}
