package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pribylovaa/quest-gateway/internal/clients/backend"
	"github.com/pribylovaa/quest-gateway/internal/metrics"
	"github.com/pribylovaa/quest-gateway/internal/models"
	"github.com/pribylovaa/quest-gateway/internal/storage"
	"github.com/pribylovaa/quest-gateway/pkg/log"
	"github.com/pribylovaa/quest-gateway/pkg/redact"

	"golang.org/x/sync/singleflight"
)

// Config - зависимости Manager и Registry.
type Config struct {
	AccessTokenTTL time.Duration
	Providers      []string
	Metrics        *metrics.Metrics
	// Now - часы; nil означает time.Now.
	Now func() time.Time
}

// Manager - владелец пары токенов одной сессии.
//
// Пара неизменяема и заменяется целиком под мьютексом, поэтому читатели
// не видят смешанного состояния. Все изменения сохраняются в storage.Store.
type Manager struct {
	mu         sync.RWMutex
	id         string
	user       models.User
	createdAt  time.Time
	pair       *models.TokenPair
	lastError  string
	refreshing bool
	// closed - был выход: состояние больше не сохраняется и не подтягивается.
	closed bool

	// persistMu упорядочивает сохранение и закрытие: после clear запись
	// удалённой сессии в хранилище невозможна.
	persistMu sync.Mutex

	flight  singleflight.Group
	backend Backend
	store   storage.Store
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
}

// NewManager восстанавливает Manager из сохранённой сессии.
func NewManager(sess *models.Session, b Backend, st storage.Store, cfg Config) *Manager {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{
		id:        sess.ID,
		user:      sess.User,
		createdAt: sess.CreatedAt,
		pair:      sess.Pair,
		lastError: sess.LastError,
		backend:   b,
		store:     st,
		ttl:       cfg.AccessTokenTTL,
		now:       now,
		metrics:   cfg.Metrics,
	}
}

func (m *Manager) ID() string { return m.id }

// State - текущее состояние по часам Manager.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch {
	case m.lastError != "":
		return StateInvalid
	case m.pair == nil:
		return StateAbsent
	case m.refreshing:
		return StateRefreshing
	case m.pair.Fresh(m.now()):
		return StateValid
	default:
		return StateStale
	}
}

// Snapshot - копия сессии для хранения и публичного представления.
func (m *Manager) Snapshot() *models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() *models.Session {
	return &models.Session{
		ID:        m.id,
		Pair:      m.pair,
		User:      m.user,
		LastError: m.lastError,
		CreatedAt: m.createdAt,
	}
}

// GetValidToken возвращает access-токен, пригодный для запроса.
// valid - из памяти без сети; stale - через общий refresh;
// invalid - ErrSessionExpired без сети; absent - ErrUnauthorized.
func (m *Manager) GetValidToken(ctx context.Context) (string, error) {
	const op = "session.GetValidToken"

	m.mu.RLock()
	pair, lastErr := m.pair, m.lastError
	m.mu.RUnlock()

	switch {
	case lastErr != "":
		return "", fmt.Errorf("%s: %w", op, ErrSessionExpired)
	case pair == nil:
		return "", fmt.Errorf("%s: %w", op, ErrUnauthorized)
	case pair.Fresh(m.now()):
		return pair.AccessToken, nil
	}

	return m.refresh(ctx, pair.AccessToken)
}

// Refresh принудительно обновляет пару, даже если текущая ещё свежая.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	const op = "session.Refresh"

	m.mu.RLock()
	pair, lastErr := m.pair, m.lastError
	m.mu.RUnlock()

	switch {
	case lastErr != "":
		return "", fmt.Errorf("%s: %w", op, ErrSessionExpired)
	case pair == nil:
		return "", fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	return m.refresh(ctx, pair.AccessToken)
}

// refresh присоединяет вызывающего к общему обновлению, ключом служит
// отвергнутый (или просроченный) access-токен. Сам refresh идёт на контексте
// без отмены: уход одного вызывающего не прерывает обновление для остальных.
func (m *Manager) refresh(ctx context.Context, rejected string) (string, error) {
	const op = "session.refresh"

	ch := m.flight.DoChan("refresh:"+rejected, func() (any, error) {
		return m.doRefresh(context.WithoutCancel(ctx), rejected)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (m *Manager) doRefresh(ctx context.Context, rejected string) (string, error) {
	const op = "session.doRefresh"

	lg := log.From(ctx).With(slog.String("op", op), slog.String("session", redact.Token(m.id)))

	m.mu.Lock()
	pair, lastErr := m.pair, m.lastError
	switch {
	case lastErr != "":
		m.mu.Unlock()
		return "", fmt.Errorf("%s: %w", op, ErrSessionExpired)
	case pair == nil:
		m.mu.Unlock()
		return "", fmt.Errorf("%s: %w", op, ErrUnauthorized)
	case pair.AccessToken != rejected && pair.Fresh(m.now()):
		// отвергнутый токен уже заменён другим вызывающим
		m.mu.Unlock()
		m.metrics.Refresh(metrics.RefreshReused)
		return pair.AccessToken, nil
	}
	m.refreshing = true
	m.mu.Unlock()

	if pair.RefreshToken == "" {
		lg.Warn("refresh_failed", slog.String("err", "no refresh token"))
		m.metrics.Refresh(metrics.RefreshFailed)
		return "", fmt.Errorf("%s: %w", op, m.invalidate(ctx, models.ErrTagRefreshFailed))
	}

	res, err := m.backend.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		lg.Warn("refresh_failed", slog.String("err", err.Error()))
		m.metrics.Refresh(metrics.RefreshFailed)
		return "", fmt.Errorf("%s: %w", op, m.invalidate(ctx, models.ErrTagRefreshFailed))
	}

	m.mu.Lock()
	switch {
	case m.closed || m.pair == nil:
		// выход, пока шёл запрос
		m.refreshing = false
		m.mu.Unlock()
		return "", fmt.Errorf("%s: %w", op, ErrUnauthorized)
	case m.lastError != "":
		m.refreshing = false
		m.mu.Unlock()
		return "", fmt.Errorf("%s: %w", op, ErrSessionExpired)
	}
	next := pair.Rotate(res.Access, res.Refresh, m.now(), m.ttl)
	m.pair = next
	m.refreshing = false
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.persist(ctx, snap)
	m.metrics.Refresh(metrics.RefreshOK)
	lg.Debug("refresh_ok", slog.Time("expires_at", next.ExpiresAt))

	return next.AccessToken, nil
}

// invalidate переводит сессию в терминальное состояние. Первый тег сохраняется.
// Возвращает ошибку для вызывающих: ErrSessionExpired, а после выхода -
// ErrUnauthorized (закрытая сессия не воскрешается в хранилище).
func (m *Manager) invalidate(ctx context.Context, tag string) error {
	m.mu.Lock()
	m.refreshing = false
	if m.closed {
		m.mu.Unlock()
		return ErrUnauthorized
	}
	if m.lastError == "" {
		m.lastError = tag
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.metrics.SessionEvent("expired")
	m.persist(ctx, snap)

	return ErrSessionExpired
}

// clear - выход (invalid/valid/stale -> absent) для всех, кто ещё держит Manager.
// Ждёт идущее сохранение, после чего Manager в хранилище не пишет.
func (m *Manager) clear() {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	m.pair = nil
	m.lastError = ""
	m.refreshing = false
	m.closed = true
	m.mu.Unlock()
}

// adopt подтягивает более новое состояние из хранилища (другой инстанс шлюза).
func (m *Manager) adopt(sess *models.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if sess.Invalid() && m.lastError == "" {
		m.lastError = sess.LastError
	}
	if sess.Pair != nil && (m.pair == nil || sess.Pair.IssuedAt.After(m.pair.IssuedAt)) {
		m.pair = sess.Pair
	}
}

func (m *Manager) persist(ctx context.Context, snap *models.Session) {
	if m.store == nil {
		return
	}

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return
	}

	if err := m.store.Save(ctx, snap); err != nil {
		log.From(ctx).Error("session_persist_failed",
			slog.String("op", "session.persist"),
			slog.String("err", err.Error()),
		)
	}
}

// CallAuthenticated выполняет запрос с bearer-токеном сессии.
// На 401 делает ровно один принудительный refresh и один повтор;
// повторный 401 переводит сессию в invalid. Остальные ответы и ошибки
// возвращаются как есть.
func (m *Manager) CallAuthenticated(ctx context.Context, req backend.Request) (*backend.Response, error) {
	const op = "session.CallAuthenticated"

	token, err := m.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := m.backend.Do(ctx, req, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	log.From(ctx).Debug("access_token_rejected", slog.String("op", op))

	token, err = m.refresh(ctx, token)
	if err != nil {
		return nil, err
	}

	resp, err = m.backend.Do(ctx, req, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%s: %w", op, m.invalidate(context.WithoutCancel(ctx), models.ErrTagUnauthorized))
	}

	return resp, nil
}
