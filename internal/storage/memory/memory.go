// memory - хранилище сессий в памяти процесса. Подходит для одного инстанса;
// просроченные записи удаляет janitor через DeleteExpired.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pribylovaa/quest-gateway/internal/models"
	"github.com/pribylovaa/quest-gateway/internal/storage"
)

type entry struct {
	session   models.Session
	expiresAt time.Time
}

type Store struct {
	mu     sync.RWMutex
	items  map[string]entry
	maxAge time.Duration
	now    func() time.Time
}

// New создаёт хранилище с абсолютным сроком жизни сессии maxAge.
func New(maxAge time.Duration) *Store {
	return &Store{
		items:  make(map[string]entry),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// WithClock подменяет часы (тесты).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Save(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[sess.ID] = entry{
		session:   *sess,
		expiresAt: sess.CreatedAt.Add(s.maxAge),
	}

	return nil
}

func (s *Store) Get(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	e, ok := s.items[id]
	s.mu.RUnlock()

	if !ok || !s.now().Before(e.expiresAt) {
		return nil, storage.ErrNotFound
	}

	out := e.session
	return &out, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()

	return nil
}

// DeleteExpired удаляет все сессии, истёкшие к моменту now.
func (s *Store) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.items {
		if !now.Before(e.expiresAt) {
			delete(s.items, id)
			n++
		}
	}

	return n, nil
}

func (s *Store) Close() error { return nil }
