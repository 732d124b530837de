package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pribylovaa/quest-gateway/internal/models"
	"github.com/pribylovaa/quest-gateway/internal/storage"
	"github.com/pribylovaa/quest-gateway/pkg/log"
	"github.com/pribylovaa/quest-gateway/pkg/redact"

	"github.com/google/uuid"
)

// Registry - по одному Manager на id сессии в пределах процесса, чтобы все
// конкурентные запросы одной сессии делили single-flight refresh.
type Registry struct {
	mu        sync.Mutex
	managers  map[string]*Manager
	providers map[string]struct{}

	backend Backend
	store   storage.Store
	cfg     Config
}

func NewRegistry(b Backend, st storage.Store, cfg Config) *Registry {
	providers := make(map[string]struct{}, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providers[p] = struct{}{}
	}

	return &Registry{
		managers:  make(map[string]*Manager),
		providers: providers,
		backend:   b,
		store:     st,
		cfg:       cfg,
	}
}

// Login меняет токен провайдера на пару токенов бэкенда и создаёт сессию.
func (r *Registry) Login(ctx context.Context, provider, idpToken string) (*Manager, error) {
	const op = "session.Login"

	if _, ok := r.providers[provider]; !ok {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrUnknownProvider, provider)
	}

	res, err := r.backend.Exchange(ctx, provider, idpToken)
	if err != nil {
		log.From(ctx).Warn("login_failed",
			slog.String("op", op),
			slog.String("provider", provider),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := r.clock()
	sess := &models.Session{
		ID:        uuid.NewString(),
		Pair:      models.NewTokenPair(res.Access, res.Refresh, now, r.cfg.AccessTokenTTL),
		User:      res.User,
		CreatedAt: now,
	}
	if err := r.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("%s: save: %w", op, err)
	}

	m := NewManager(sess, r.backend, r.store, r.cfg)

	r.mu.Lock()
	r.managers[sess.ID] = m
	r.mu.Unlock()

	r.cfg.Metrics.SessionEvent("login")
	_, lg := log.With(ctx, slog.String("op", op), slog.String("session", redact.Token(sess.ID)))
	lg.Info("login_ok",
		slog.String("provider", provider),
		slog.String("email", redact.Email(res.User.Email)),
	)

	return m, nil
}

// Resolve возвращает Manager сессии. Хранилище - источник истины: удалённая
// или истёкшая сессия вытесняется из кэша и даёт ErrUnauthorized.
func (r *Registry) Resolve(ctx context.Context, id string) (*Manager, error) {
	const op = "session.Resolve"

	sess, err := r.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			r.evict(id)
			return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.managers[id]; ok {
		m.adopt(sess)
		return m, nil
	}

	m := NewManager(sess, r.backend, r.store, r.cfg)
	r.managers[id] = m
	return m, nil
}

// Logout удаляет сессию из хранилища и кэша.
func (r *Registry) Logout(ctx context.Context, id string) error {
	const op = "session.Logout"

	// Сначала закрываем Manager: идущий refresh уже не сможет записать
	// сессию обратно после удаления.
	r.evict(id)

	if err := r.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r.cfg.Metrics.SessionEvent("logout")

	return nil
}

// Sweep вытесняет из кэша Manager'ы сессий, которых больше нет в хранилище.
func (r *Registry) Sweep(ctx context.Context) (int, error) {
	const op = "session.Sweep"

	r.mu.Lock()
	ids := make([]string, 0, len(r.managers))
	for id := range r.managers {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	n := 0
	for _, id := range ids {
		_, err := r.store.Get(ctx, id)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			r.evict(id)
			n++
		case err != nil:
			return n, fmt.Errorf("%s: %w", op, err)
		}
	}

	return n, nil
}

// Cleanup - один проход janitor'а: удаляет истёкшие сессии из хранилища
// (если ему нужна чистка) и вытесняет Manager'ы исчезнувших сессий.
func (r *Registry) Cleanup(ctx context.Context, sw storage.Sweeper) (expired, evicted int, err error) {
	const op = "session.Cleanup"

	if sw != nil {
		expired, err = sw.DeleteExpired(ctx, r.clock().UTC())
		if err != nil {
			return 0, 0, fmt.Errorf("%s: %w", op, err)
		}
	}

	evicted, err = r.Sweep(ctx)
	if err != nil {
		return expired, evicted, fmt.Errorf("%s: %w", op, err)
	}

	return expired, evicted, nil
}

// Len - число закэшированных Manager'ов.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.managers)
}

func (r *Registry) evict(id string) {
	r.mu.Lock()
	m, ok := r.managers[id]
	delete(r.managers, id)
	r.mu.Unlock()

	if ok {
		m.clear()
	}
}

func (r *Registry) clock() time.Time {
	if r.cfg.Now != nil {
		return r.cfg.Now()
	}
	return time.Now()
}
