package auth_test

import (
	"testing"

	"github.com/jrsteele09/go-source-portal/auth"
	portalerrors "github.com/jrsteele09/go-source-portal/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestValidator_ValidateEmail(t *testing.T) {
	v := auth.NewValidator()

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, v.ValidateEmail("ops@rentals.example"))
	})

	t.Run("missing", func(t *testing.T) {
		err := v.ValidateEmail("  ")
		require.ErrorIs(t, err, portalerrors.ErrValidation)
		require.Contains(t, err.Error(), "Email is required")
	})

	t.Run("malformed", func(t *testing.T) {
		for _, email := range []string{"ops", "ops@", "ops@localhost", "Ops <ops@rentals.example>"} {
			require.ErrorIs(t, v.ValidateEmail(email), portalerrors.ErrValidation, email)
		}
	})
}

func TestValidator_ValidateRegistration(t *testing.T) {
	v := auth.NewValidator()

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, v.ValidateRegistration("Rentals Ltd", "ops@rentals.example", "Passw0rdX"))
	})

	t.Run("short company name", func(t *testing.T) {
		err := v.ValidateRegistration("R", "ops@rentals.example", "Passw0rdX")
		var vErr *auth.ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Equal(t, "companyName", vErr.Field)
	})

	t.Run("weak password", func(t *testing.T) {
		err := v.ValidateRegistration("Rentals Ltd", "ops@rentals.example", "password")
		var vErr *auth.ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Equal(t, "password", vErr.Field)
		require.Contains(t, vErr.Message, "uppercase")
	})
}

func TestValidator_ValidateOTP(t *testing.T) {
	v := auth.NewValidator()

	require.NoError(t, v.ValidateOTP("0421"))
	require.NoError(t, v.ValidateOTP(" 0421 "))

	for _, otp := range []string{"", "123", "12345", "12a4"} {
		require.ErrorIs(t, v.ValidateOTP(otp), portalerrors.ErrValidation, otp)
	}
}

func TestValidator_ValidatePasswordsMatch(t *testing.T) {
	v := auth.NewValidator()
	require.NoError(t, v.ValidatePasswordsMatch("Passw0rdX", "Passw0rdX"))
	require.ErrorIs(t, v.ValidatePasswordsMatch("Passw0rdX", "Passw0rdY"), portalerrors.ErrValidation)
}
