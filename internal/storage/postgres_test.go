package storage

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fendi147258369-dot/omnisafe-web/backend/pkg/database"
)

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("OMNISAFE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("OMNISAFE_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	require.NoError(t, database.RunMigrations(ctx, logger, url, "../../migrations"))

	pg, err := database.New(ctx, url, database.MaxPoolSize(2))
	require.NoError(t, err)
	defer pg.Close()

	store := NewPostgresStore(logger, pg)
	now := time.Now().UTC()
	store.now = func() time.Time { return now }

	key := "test:" + uuid.NewString()
	expiring := key + ":ttl"
	defer func() { _ = store.Delete(context.Background(), key, expiring) }()

	_, err = store.Get(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, key, []byte("v1"), 0))
	require.NoError(t, store.Set(ctx, key, []byte("v2"), 0))
	value, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "v2", string(value), "set overwrites")

	require.NoError(t, store.Set(ctx, expiring, []byte("x"), time.Minute))
	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, expiring)
	require.ErrorIs(t, err, ErrNotFound)

	removed, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, removed, int64(1))

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)
}
