package models

import "time"

// TokenPair - пара токенов бэкенда, выданная обменом identity-токена или refresh.
//
// Значение неизменяемо: refresh создаёт новую пару целиком, поэтому конкурентные
// читатели никогда не видят новый AccessToken со старым ExpiresAt.
//   - AccessToken - короткоживущий bearer для запросов к API;
//   - RefreshToken - секрет для выпуска новой пары;
//   - IssuedAt/ExpiresAt - локальная оценка срока жизни: бэкенд его не сообщает.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// NewTokenPair выпускает пару с ExpiresAt = now + ttl.
func NewTokenPair(access, refresh string, now time.Time, ttl time.Duration) *TokenPair {
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		IssuedAt:     now,
		ExpiresAt:    now.Add(ttl),
	}
}

// Rotate возвращает новую пару после refresh. Пустой refresh означает,
// что бэкенд его не прислал, и прежний RefreshToken сохраняется.
func (p *TokenPair) Rotate(access, refresh string, now time.Time, ttl time.Duration) *TokenPair {
	if refresh == "" {
		refresh = p.RefreshToken
	}

	return NewTokenPair(access, refresh, now, ttl)
}

// Fresh сообщает, что access-токен ещё не устарел на момент now.
func (p *TokenPair) Fresh(now time.Time) bool {
	return p != nil && now.Before(p.ExpiresAt)
}
