// redis - хранилище сессий в Redis: общий для нескольких инстансов шлюза.
// Сессия хранится как Redis Hash, срок жизни задаётся через EXPIREAT.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pribylovaa/quest-gateway/internal/models"
	"github.com/pribylovaa/quest-gateway/internal/storage"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb    *redis.Client
	prefix string
	maxAge time.Duration
}

// New создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой - используется "qg:sess:".
func New(ctx context.Context, redisURL, prefix string, maxAge time.Duration) (*Store, error) {
	const op = "internal/storage/redis/New"

	if prefix == "" {
		prefix = "qg:sess:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	return &Store{rdb: rdb, prefix: prefix, maxAge: maxAge}, nil
}

func (s *Store) key(id string) string { return s.prefix + id }

// Поля хэша: acc, ref, iat, exp (unix ms), uid, fn, ln, email, err, created (unix ms).
func (s *Store) Save(ctx context.Context, sess *models.Session) error {
	const op = "internal/storage/redis/Save"

	kv := map[string]string{
		"uid":     strconv.FormatInt(sess.User.ID, 10),
		"fn":      sess.User.FirstName,
		"ln":      sess.User.LastName,
		"email":   sess.User.Email,
		"err":     sess.LastError,
		"created": formatTime(sess.CreatedAt),
		"acc":     "",
		"ref":     "",
		"iat":     "0",
		"exp":     "0",
	}
	if p := sess.Pair; p != nil {
		kv["acc"] = p.AccessToken
		kv["ref"] = p.RefreshToken
		kv["iat"] = formatTime(p.IssuedAt)
		kv["exp"] = formatTime(p.ExpiresAt)
	}

	k := s.key(sess.ID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, k, kv)
	pipe.ExpireAt(ctx, k, sess.CreatedAt.Add(s.maxAge))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Session, error) {
	const op = "internal/storage/redis/Get"

	m, err := s.rdb.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(m) == 0 {
		return nil, storage.ErrNotFound
	}

	uid, err := strconv.ParseInt(m["uid"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: uid: %w", op, err)
	}
	created, err := parseTime(m["created"])
	if err != nil {
		return nil, fmt.Errorf("%s: created: %w", op, err)
	}

	sess := &models.Session{
		ID: id,
		User: models.User{
			ID:        uid,
			FirstName: m["fn"],
			LastName:  m["ln"],
			Email:     m["email"],
		},
		LastError: m["err"],
		CreatedAt: created,
	}

	if m["acc"] != "" {
		iat, err := parseTime(m["iat"])
		if err != nil {
			return nil, fmt.Errorf("%s: iat: %w", op, err)
		}
		exp, err := parseTime(m["exp"])
		if err != nil {
			return nil, fmt.Errorf("%s: exp: %w", op, err)
		}
		sess.Pair = &models.TokenPair{
			AccessToken:  m["acc"],
			RefreshToken: m["ref"],
			IssuedAt:     iat,
			ExpiresAt:    exp,
		}
	}

	return sess, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	const op = "internal/storage/redis/Delete"

	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) Close() error { return s.rdb.Close() }

func formatTime(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

func parseTime(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}

	return time.UnixMilli(ms).UTC(), nil
}
