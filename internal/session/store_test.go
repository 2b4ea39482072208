package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/paladium/internal/auth"
	"github.com/mmynk/paladium/internal/models"
)

func testCredentials(t *testing.T, ttl time.Duration) Credentials {
	t.Helper()
	user := models.User{ID: "7", Email: "ann@example.com", Name: "Ann", Type: models.UserTypeAnnotator}
	token, err := auth.NewJWTManager("secret", ttl).Generate(user)
	require.NoError(t, err)
	return Credentials{Token: token, Type: user.Type, User: user}
}

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, "")
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func setupSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store { return setupSQLiteStore(t) },
		"redis": func(t *testing.T) Store {
			s, _ := setupRedisStore(t)
			return s
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)

			_, err := store.Load(ctx)
			assert.ErrorIs(t, err, ErrNoSession)

			creds := testCredentials(t, time.Hour)
			require.NoError(t, store.Save(ctx, creds))

			got, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, creds, got)

			replaced := creds
			replaced.User.Name = "Ann B"
			require.NoError(t, store.Save(ctx, replaced))
			got, err = store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, "Ann B", got.User.Name)

			require.NoError(t, store.Clear(ctx))
			_, err = store.Load(ctx)
			assert.ErrorIs(t, err, ErrNoSession)

			// Clearing twice is fine.
			assert.NoError(t, store.Clear(ctx))
		})
	}
}

func TestRedisStoreExpiresWithToken(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t)

	require.NoError(t, store.Save(ctx, testCredentials(t, time.Hour)))

	ttl := mr.TTL(DefaultRedisKey)
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)

	mr.FastForward(time.Hour + time.Second)
	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRedisStoreSaveExpiredTokenClears(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t)

	require.NoError(t, store.Save(ctx, testCredentials(t, time.Hour)))
	require.NoError(t, store.Save(ctx, testCredentials(t, -time.Minute)))

	assert.False(t, mr.Exists(DefaultRedisKey))
}

func TestRedisStoreCustomKey(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, "paladium:session:work")
	defer store.Close()

	require.NoError(t, store.Save(ctx, testCredentials(t, time.Hour)))
	assert.True(t, mr.Exists("paladium:session:work"))
	assert.False(t, mr.Exists(DefaultRedisKey))
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
