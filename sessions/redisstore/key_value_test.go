package redisstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-source-portal/sessions"
	"github.com/jrsteele09/go-source-portal/sessions/redisstore"
	"github.com/jrsteele09/go-source-portal/users"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// setupTestRedis connects to REDIS_TEST_ADDR; tests are skipped without it.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestKeyValue_SetGetDelete(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	kv := redisstore.NewWithPrefix(client, "test:"+uuid.NewString()+":")

	_, err := kv.Get(ctx, "missing")
	require.ErrorIs(t, err, sessions.ErrKeyNotFound)

	require.NoError(t, kv.SetMany(ctx, map[string]string{"a": "1", "b": "2"}, time.Minute))

	got, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "1", got)

	require.NoError(t, kv.Delete(ctx, "a", "b", "never-set"))
	_, err = kv.Get(ctx, "b")
	require.ErrorIs(t, err, sessions.ErrKeyNotFound)
}

func TestKeyValue_StoreRoundTrip(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	factory := redisstore.Factory(client, "test:"+uuid.NewString()+":")
	store := sessions.NewStore(factory("browser-1"), sessions.WithMaxTTL(time.Minute))

	user := &users.User{
		ID:    "user-1",
		Email: "ops@rentals.example",
		Company: &users.Company{
			ID:             "company-1",
			Type:           users.CompanyTypeSource,
			Status:         users.CompanyActive,
			ApprovalStatus: users.ApprovalApproved,
		},
	}
	require.NoError(t, store.Set(ctx, "access-1", "refresh-1", user))

	sess, ok := store.Get(ctx)
	require.True(t, ok)
	require.Equal(t, "refresh-1", sess.RefreshToken)
	require.Equal(t, *user.Company, *sess.User.Company)

	require.NoError(t, store.Clear(ctx))
	require.False(t, store.IsAuthenticated(ctx))

	other := sessions.NewStore(factory("browser-2"))
	require.False(t, other.IsAuthenticated(ctx))
}

func TestKeyValue_KeepTTLOnUpdate(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	prefix := "test:" + uuid.NewString() + ":"
	kv := redisstore.NewWithPrefix(client, prefix)

	require.NoError(t, kv.SetMany(ctx, map[string]string{"user": "v1"}, time.Minute))
	require.NoError(t, kv.SetMany(ctx, map[string]string{"user": "v2"}, 0))

	ttl, err := client.TTL(ctx, prefix+"user").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	require.NoError(t, kv.Delete(ctx, "user"))
}
