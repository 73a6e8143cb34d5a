package sessions_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-source-portal/sessions"
	"github.com/stretchr/testify/require"
)

func TestTokenExpiry(t *testing.T) {
	t.Run("jwt with exp", func(t *testing.T) {
		exp := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		got, ok := sessions.TokenExpiry(signedToken(t, exp))
		require.True(t, ok)
		require.True(t, exp.Equal(got))
	})

	t.Run("opaque token", func(t *testing.T) {
		_, ok := sessions.TokenExpiry("opaque-bearer-credential")
		require.False(t, ok)
	})

	t.Run("empty", func(t *testing.T) {
		_, ok := sessions.TokenExpiry("")
		require.False(t, ok)
	})
}
