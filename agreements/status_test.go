package agreements_test

import (
	"testing"

	"github.com/jrsteele09/go-source-portal/agreements"
	portalerrors "github.com/jrsteele09/go-source-portal/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	t.Run("drafted is draft", func(t *testing.T) {
		s, err := agreements.ParseStatus("DRAFTED")
		require.NoError(t, err)
		require.Equal(t, agreements.StatusDraft, s)

		s, err = agreements.ParseStatus("draft")
		require.NoError(t, err)
		require.Equal(t, agreements.StatusDraft, s)
	})

	t.Run("every known status", func(t *testing.T) {
		for _, want := range agreements.Statuses {
			got, err := agreements.ParseStatus(string(want))
			require.NoError(t, err)
			require.Equal(t, want, got)
		}
	})

	t.Run("unknown is an error", func(t *testing.T) {
		_, err := agreements.ParseStatus("PAUSED")
		require.ErrorIs(t, err, portalerrors.ErrUnknownStatus)

		_, err = agreements.ParseStatus("")
		require.ErrorIs(t, err, portalerrors.ErrUnknownStatus)
	})
}

func TestCanTransition(t *testing.T) {
	require.True(t, agreements.CanTransition(agreements.StatusDraft, agreements.StatusOffered))

	for _, from := range agreements.Statuses {
		for _, to := range agreements.Statuses {
			if from == agreements.StatusDraft && to == agreements.StatusOffered {
				continue
			}
			require.False(t, agreements.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestFilter(t *testing.T) {
	f, err := agreements.ParseFilter("")
	require.NoError(t, err)
	require.Equal(t, agreements.FilterAll, f)

	f, err = agreements.ParseFilter("active")
	require.NoError(t, err)
	require.True(t, f.Matches(agreements.StatusActive))
	require.False(t, f.Matches(agreements.StatusDraft))
	require.Equal(t, "Active", f.Label())

	f, err = agreements.ParseFilter("drafted")
	require.NoError(t, err)
	require.Equal(t, agreements.Filter(agreements.StatusDraft), f)

	_, err = agreements.ParseFilter("bogus")
	require.Error(t, err)

	require.Equal(t, "All", agreements.FilterAll.Label())
	require.Equal(t, "Suspended", agreements.StatusSuspended.Label())
}
