package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expenseflow-go/pkg/database"
)

// exerciseKeyValue checks the contract every KeyValue implementation shares.
func exerciseKeyValue(t *testing.T, kv KeyValue) {
	t.Helper()
	ctx := context.Background()

	_, err := kv.Get(ctx, "userRole")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "userRole", "MANAGER"))
	value, err := kv.Get(ctx, "userRole")
	require.NoError(t, err)
	assert.Equal(t, "MANAGER", value)

	require.NoError(t, kv.Set(ctx, "userRole", "ADMIN"))
	value, err = kv.Get(ctx, "userRole")
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", value)

	require.NoError(t, kv.Set(ctx, "authToken", "tok"))

	require.NoError(t, kv.Remove(ctx, "userRole"))
	_, err = kv.Get(ctx, "userRole")
	assert.ErrorIs(t, err, ErrNotFound)

	// Removing twice is fine and leaves other keys alone.
	require.NoError(t, kv.Remove(ctx, "userRole"))
	value, err = kv.Get(ctx, "authToken")
	require.NoError(t, err)
	assert.Equal(t, "tok", value)
}

func TestMemoryStore(t *testing.T) {
	exerciseKeyValue(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStore(client, nil)
	exerciseKeyValue(t, store)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestRedisStore_Namespace(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	opts := DefaultRedisOptions()
	opts.Namespace = "device-1"
	store := NewRedisStore(client, opts)

	require.NoError(t, store.Set(context.Background(), "userRole", "EMPLOYEE"))

	value, err := mr.Get("device-1:userRole")
	require.NoError(t, err)
	assert.Equal(t, "EMPLOYEE", value)
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	opts := DefaultRedisOptions()
	opts.RetryDelay = 0
	store := NewRedisStore(client, opts)
	mr.Close()

	_, err := store.Get(context.Background(), "userRole")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Error(t, store.Set(context.Background(), "userRole", "ADMIN"))
}

func TestDBStore(t *testing.T) {
	db, err := database.New(database.Config{
		Driver:       database.DriverSQLite,
		Path:         ":memory:",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	defer db.Close()

	store, err := NewDBStore(db)
	require.NoError(t, err)
	exerciseKeyValue(t, store)
}

func TestKeyBuilder(t *testing.T) {
	assert.Equal(t, "ns:a:b", NewKeyBuilder("ns").Build("a", "b"))
	assert.Equal(t, "a", NewKeyBuilder("").Build("a"))
}
