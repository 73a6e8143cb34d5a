package auth

import (
	"net/mail"
	"strings"

	portalerrors "github.com/jrsteele09/go-source-portal/internal/errors"
	"github.com/jrsteele09/go-source-portal/users"
)

// OTPLength is the number of digits in email verification and password reset codes
const OTPLength = 4

// ValidationError reports a single invalid form field. It matches
// portalerrors.ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == portalerrors.ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Validator holds the client-side checks run before any network call.
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateEmail validates the email address format
func (v *Validator) ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("email", "Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return invalid("email", "Please enter a valid email address")
	}
	return nil
}

// ValidateUserCredentials validates login credentials
func (v *Validator) ValidateUserCredentials(email, password string) error {
	if err := v.ValidateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return invalid("password", "Password is required")
	}
	return nil
}

// ValidateRegistration validates the sign-up form
func (v *Validator) ValidateRegistration(companyName, email, password string) error {
	name := strings.TrimSpace(companyName)
	if name == "" {
		return invalid("companyName", "Company name is required")
	}
	if len(name) < 2 {
		return invalid("companyName", "Company name must be at least 2 characters")
	}
	if err := v.ValidateEmail(email); err != nil {
		return err
	}
	return v.ValidateNewPassword(password)
}

// ValidateNewPassword validates a password being set (registration or reset)
func (v *Validator) ValidateNewPassword(password string) error {
	if password == "" {
		return invalid("password", "Password is required")
	}
	if err := users.ValidatePasswordStrength(password); err != nil {
		return invalid("password", capitalise(err.Error()))
	}
	return nil
}

// ValidatePasswordsMatch checks the confirmation field of a new-password form
func (v *Validator) ValidatePasswordsMatch(password, confirm string) error {
	if password != confirm {
		return invalid("confirmPassword", "Passwords do not match")
	}
	return nil
}

// ValidateOTP checks the code is exactly OTPLength ASCII digits
func (v *Validator) ValidateOTP(otp string) error {
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return invalid("otp", "Verification code is required")
	}
	if len(otp) != OTPLength {
		return invalid("otp", "Verification code must be 4 digits")
	}
	for _, c := range otp {
		if c < '0' || c > '9' {
			return invalid("otp", "Verification code must contain only digits")
		}
	}
	return nil
}

func capitalise(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
