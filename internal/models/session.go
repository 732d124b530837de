package models

import (
	"strings"
	"time"
)

// Теги LastError, по которым UI принудительно разлогинивает пользователя.
const (
	ErrTagRefreshFailed = "refresh-failed"
	ErrTagUnauthorized  = "unauthorized"
)

// Session - серверная сессия, на которую ссылается подписанная cookie.
// Токены из неё никогда не попадают в ответы браузеру.
type Session struct {
	ID        string
	Pair      *TokenPair
	User      User
	LastError string
	CreatedAt time.Time
}

// Invalid - сессия помечена после неудачного refresh или отзыва токена.
func (s *Session) Invalid() bool { return s.LastError != "" }

// User - профиль, который бэкенд возвращает при обмене identity-токена.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// DisplayName - "Имя Фамилия" без лишних пробелов.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// PublicSession - то, что видит браузер: только публичные данные пользователя.
type PublicSession struct {
	User  PublicUser `json:"user"`
	Error string     `json:"error,omitempty"`
}

type PublicUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public строит безопасное представление сессии.
func (s *Session) Public() PublicSession {
	return PublicSession{
		User: PublicUser{
			Name:  s.User.DisplayName(),
			Email: s.User.Email,
		},
		Error: s.LastError,
	}
}
