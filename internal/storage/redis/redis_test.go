package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/pribylovaa/quest-gateway/internal/models"
	"github.com/pribylovaa/quest-gateway/internal/storage"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T, maxAge time.Duration) (*Store, func()) {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "6379/tcp")

	st, err := New(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()), "test:sess:", maxAge)
	require.NoError(t, err)

	cleanup := func() {
		_ = st.Close()
		_ = c.Terminate(context.Background())
	}
	return st, cleanup
}

func TestNew_BadURL(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "://nope", "", time.Hour)
	require.Error(t, err)
}

// TestIntegration_SaveGetDelete - полный цикл сессии, включая замену пары.
func TestIntegration_SaveGetDelete(t *testing.T) {
	st, cleanup := startRedis(t, time.Hour)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	sess := &models.Session{
		ID:        "s1",
		Pair:      models.NewTokenPair("A1", "R1", now, 30*time.Minute),
		User:      models.User{ID: 42, FirstName: "Taro", LastName: "Yamada", Email: "t@example.com"},
		CreatedAt: now,
	}
	require.NoError(t, st.Save(ctx, sess))

	got, err := st.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "A1", got.Pair.AccessToken)
	require.Equal(t, "R1", got.Pair.RefreshToken)
	require.True(t, now.Equal(got.Pair.IssuedAt))
	require.True(t, now.Add(30*time.Minute).Equal(got.Pair.ExpiresAt))
	require.Equal(t, sess.User, got.User)
	require.Empty(t, got.LastError)

	sess.Pair = sess.Pair.Rotate("A2", "", now.Add(time.Minute), 30*time.Minute)
	sess.LastError = models.ErrTagRefreshFailed
	require.NoError(t, st.Save(ctx, sess))

	got, err = st.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "A2", got.Pair.AccessToken)
	require.Equal(t, "R1", got.Pair.RefreshToken)
	require.Equal(t, models.ErrTagRefreshFailed, got.LastError)

	ttl, err := st.rdb.TTL(ctx, st.key("s1")).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, 50*time.Minute)

	require.NoError(t, st.Delete(ctx, "s1"))
	_, err = st.Get(ctx, "s1")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

// TestIntegration_ExpiredOnSave - сессия старше max_age сразу недоступна.
func TestIntegration_ExpiredOnSave(t *testing.T) {
	st, cleanup := startRedis(t, time.Minute)
	defer cleanup()

	ctx := context.Background()
	old := time.Now().Add(-2 * time.Minute)
	require.NoError(t, st.Save(ctx, &models.Session{ID: "old", CreatedAt: old}))

	_, err := st.Get(ctx, "old")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
