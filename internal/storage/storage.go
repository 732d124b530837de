package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pribylovaa/quest-gateway/internal/models"
)

var (
	// ErrNotFound - сессия не найдена или истекла.
	ErrNotFound = errors.New("not found")
)

// Store задаёт контракт хранилища серверных сессий.
// Срок жизни сессии абсолютный: CreatedAt + max_age хранилища.
type Store interface {
	// Save создаёт или целиком заменяет сессию.
	Save(ctx context.Context, s *models.Session) error
	// Get возвращает копию сессии или ErrNotFound.
	Get(ctx context.Context, id string) (*models.Session, error)
	// Delete удаляет сессию; отсутствие сессии ошибкой не считается.
	Delete(ctx context.Context, id string) error
	Close() error
}

// Sweeper - хранилище, которому нужна периодическая чистка (memory).
type Sweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
