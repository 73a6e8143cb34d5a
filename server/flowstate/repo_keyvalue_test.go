package flowstate_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-source-portal/server/flowstate"
	"github.com/jrsteele09/go-source-portal/sessions/repofakes"
	"github.com/stretchr/testify/require"
)

func TestKeyValueRepo(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	kv := repofakes.NewFakeKeyValue().WithNowTime(clock)
	repo := flowstate.NewKeyValueRepo(kv.Factory(), 10*time.Minute, clock)

	_, err := repo.Get(ctx, "browser-1")
	require.ErrorIs(t, err, flowstate.ErrNotFound)

	require.Error(t, repo.Upsert(ctx, "", &flowstate.FlowState{}))
	require.Error(t, repo.Upsert(ctx, "browser-1", nil))

	require.NoError(t, repo.Upsert(ctx, "browser-1", &flowstate.FlowState{Kind: flowstate.KindVerifyEmail, Email: "ops@rentals.example"}))

	t.Run("round trip", func(t *testing.T) {
		state, err := repo.Get(ctx, "browser-1")
		require.NoError(t, err)
		require.Equal(t, flowstate.KindVerifyEmail, state.Kind)
		require.Equal(t, "ops@rentals.example", state.Email)
		require.True(t, now.Equal(state.CreatedAt))
	})

	t.Run("visible to another repo on the same backend", func(t *testing.T) {
		other := flowstate.NewKeyValueRepo(kv.Factory(), 10*time.Minute, clock)
		state, err := other.Get(ctx, "browser-1")
		require.NoError(t, err)
		require.Equal(t, "ops@rentals.example", state.Email)
	})

	t.Run("browsers are isolated", func(t *testing.T) {
		_, err := repo.Get(ctx, "browser-2")
		require.ErrorIs(t, err, flowstate.ErrNotFound)
	})

	t.Run("verified reset code is kept", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, "browser-4", &flowstate.FlowState{Kind: flowstate.KindPasswordReset, Email: "ops@rentals.example", OTP: "4321", OTPVerified: true}))
		state, err := repo.Get(ctx, "browser-4")
		require.NoError(t, err)
		require.Equal(t, "4321", state.OTP)
		require.True(t, state.OTPVerified)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, "browser-3", &flowstate.FlowState{Kind: flowstate.KindPasswordReset}))
		require.NoError(t, repo.Delete(ctx, "browser-3"))
		require.NoError(t, repo.Delete(ctx, "browser-3"))
		_, err := repo.Get(ctx, "browser-3")
		require.ErrorIs(t, err, flowstate.ErrNotFound)
	})

	t.Run("expires", func(t *testing.T) {
		now = now.Add(11 * time.Minute)
		_, err := repo.Get(ctx, "browser-1")
		require.ErrorIs(t, err, flowstate.ErrNotFound)
	})
}
