package sessions_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	portalerrors "github.com/jrsteele09/go-source-portal/internal/errors"
	"github.com/jrsteele09/go-source-portal/sessions"
	"github.com/jrsteele09/go-source-portal/sessions/repofakes"
	"github.com/jrsteele09/go-source-portal/users"
	"github.com/stretchr/testify/require"
)

func testUser() *users.User {
	return &users.User{
		ID:        "user-1",
		Email:     "ops@rentals.example",
		Role:      users.RoleSourceAdmin,
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Company: &users.Company{
			ID:             "company-1",
			CompanyName:    "Rentals Ltd",
			Type:           users.CompanyTypeSource,
			Status:         users.CompanyActive,
			ApprovalStatus: users.ApprovalApproved,
			AdapterType:    "grpc",
			GRPCEndpoint:   "adapter.rentals.example:50051",
		},
	}
}

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := sessions.NewStore(repofakes.NewFakeKeyValue())
	user := testUser()

	require.NoError(t, store.Set(ctx, "access-1", "refresh-1", user))

	sess, ok := store.Get(ctx)
	require.True(t, ok)
	require.Equal(t, "access-1", sess.Token)
	require.Equal(t, "refresh-1", sess.RefreshToken)
	require.Equal(t, user.ID, sess.User.ID)
	require.Equal(t, *user.Company, *sess.User.Company)
	require.True(t, user.CreatedAt.Equal(sess.User.CreatedAt))
	require.True(t, user.UpdatedAt.Equal(sess.User.UpdatedAt))
}

func TestStore_IsAuthenticatedRequiresBoth(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		store := sessions.NewStore(repofakes.NewFakeKeyValue())
		require.False(t, store.IsAuthenticated(ctx))
		require.Equal(t, "", store.AccessToken(ctx))
	})

	t.Run("both set", func(t *testing.T) {
		store := sessions.NewStore(repofakes.NewFakeKeyValue())
		require.NoError(t, store.Set(ctx, "access-1", "refresh-1", testUser()))
		require.True(t, store.IsAuthenticated(ctx))
		require.Equal(t, "access-1", store.AccessToken(ctx))
	})

	t.Run("token without user", func(t *testing.T) {
		kv := repofakes.NewFakeKeyValue()
		kv.Put(sessions.KeyToken, "access-1")
		store := sessions.NewStore(kv)

		require.False(t, store.IsAuthenticated(ctx))
		require.Equal(t, 0, kv.Len(), "partial session must be cleared")
	})

	t.Run("user without token", func(t *testing.T) {
		kv := repofakes.NewFakeKeyValue()
		kv.Put(sessions.KeyUser, `{"id":"user-1","email":"a@b.example","company":{}}`)
		store := sessions.NewStore(kv)

		require.False(t, store.IsAuthenticated(ctx))
		require.Equal(t, 0, kv.Len())
	})

	t.Run("set rejects half a session", func(t *testing.T) {
		store := sessions.NewStore(repofakes.NewFakeKeyValue())
		require.ErrorIs(t, store.Set(ctx, "", "refresh", testUser()), portalerrors.ErrSessionInvalid)
		require.ErrorIs(t, store.Set(ctx, "access", "refresh", nil), portalerrors.ErrSessionInvalid)
		require.False(t, store.IsAuthenticated(ctx))
	})
}

func TestStore_MalformedUserIsNoSession(t *testing.T) {
	ctx := context.Background()

	for name, raw := range map[string]string{
		"not json":        "{not-json",
		"missing company": `{"id":"user-1","email":"a@b.example"}`,
		"missing id":      `{"email":"a@b.example","company":{"type":"SOURCE"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			kv := repofakes.NewFakeKeyValue()
			kv.Put(sessions.KeyToken, "access-1")
			kv.Put(sessions.KeyRefreshToken, "refresh-1")
			kv.Put(sessions.KeyUser, raw)
			store := sessions.NewStore(kv)

			_, ok := store.Get(ctx)
			require.False(t, ok)
			require.Equal(t, 0, kv.Len())
		})
	}
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	kv := repofakes.NewFakeKeyValue()
	store := sessions.NewStore(kv)
	require.NoError(t, store.Set(ctx, "access-1", "refresh-1", testUser()))

	require.NoError(t, store.Clear(ctx))
	first, okFirst := store.Get(ctx)
	require.NoError(t, store.Clear(ctx))
	second, okSecond := store.Get(ctx)

	require.False(t, okFirst)
	require.False(t, okSecond)
	require.Equal(t, first, second)
	require.Equal(t, 0, kv.Len())
}

func TestStore_UpdateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps credentials", func(t *testing.T) {
		store := sessions.NewStore(repofakes.NewFakeKeyValue())
		require.NoError(t, store.Set(ctx, "access-1", "refresh-1", testUser()))

		updated := testUser()
		updated.Company.ApprovalStatus = users.ApprovalRejected
		require.NoError(t, store.UpdateUser(ctx, updated))

		sess, ok := store.Get(ctx)
		require.True(t, ok)
		require.Equal(t, "access-1", sess.Token)
		require.Equal(t, users.ApprovalRejected, sess.User.Company.ApprovalStatus)
	})

	t.Run("no session", func(t *testing.T) {
		store := sessions.NewStore(repofakes.NewFakeKeyValue())
		require.ErrorIs(t, store.UpdateUser(ctx, testUser()), portalerrors.ErrSessionNotFound)
	})
}

func TestStore_TTLFollowsTokenExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	kv := repofakes.NewFakeKeyValue().WithNowTime(func() time.Time { return clock })
	store := sessions.NewStore(kv,
		sessions.WithMaxTTL(24*time.Hour),
		sessions.WithNowTime(func() time.Time { return clock }),
	)

	token := signedToken(t, now.Add(time.Hour))
	require.NoError(t, store.Set(ctx, token, "refresh-1", testUser()))

	clock = now.Add(59 * time.Minute)
	require.True(t, store.IsAuthenticated(ctx))

	clock = now.Add(61 * time.Minute)
	require.False(t, store.IsAuthenticated(ctx))
}

func TestStore_RefusesExpiredToken(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	kv := repofakes.NewFakeKeyValue().WithNowTime(func() time.Time { return now })
	store := sessions.NewStore(kv,
		sessions.WithMaxTTL(24*time.Hour),
		sessions.WithNowTime(func() time.Time { return now }),
	)

	err := store.Set(ctx, signedToken(t, now.Add(-time.Minute)), "refresh-1", testUser())
	require.ErrorIs(t, err, portalerrors.ErrSessionInvalid)
	require.False(t, store.IsAuthenticated(ctx))
	require.Zero(t, kv.Len())
}

func TestStore_NamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	root := repofakes.NewFakeKeyValue()
	a := sessions.NewStore(root.Namespace("browser-a"))
	b := sessions.NewStore(root.Namespace("browser-b"))

	require.NoError(t, a.Set(ctx, "access-a", "refresh-a", testUser()))
	require.True(t, a.IsAuthenticated(ctx))
	require.False(t, b.IsAuthenticated(ctx))

	require.NoError(t, b.Clear(ctx))
	require.True(t, a.IsAuthenticated(ctx))
}
