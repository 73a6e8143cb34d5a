package auth

import (
	"errors"
	"fmt"

	"github.com/jrsteele09/go-source-portal/apiclient"
	portalerrors "github.com/jrsteele09/go-source-portal/internal/errors"
)

// AccountError rejects a session because the account is not allowed into the
// portal. Reason is one of the portalerrors account sentinels; Status carries
// the offending company status when known.
type AccountError struct {
	Reason error
	Status string
}

func (e *AccountError) Error() string {
	if e.Status == "" {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%s (status %s)", e.Reason.Error(), e.Status)
}

func (e *AccountError) Unwrap() error {
	return e.Reason
}

// UserMessage converts any error produced by the portal's flows into the copy
// shown to the user. Unknown errors get a generic message; details stay in logs.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}

	var accountErr *AccountError
	if errors.As(err, &accountErr) {
		return accountMessage(accountErr)
	}

	switch {
	case errors.Is(err, portalerrors.ErrConnectivity):
		return "Unable to reach the server. Please check your internet connection and try again."
	case errors.Is(err, portalerrors.ErrInvalidResponse):
		return "The server returned an unexpected response. Please try again."
	case errors.Is(err, portalerrors.ErrNotSourceCompany):
		return "This portal is only for source companies. Please use the portal for your account type."
	case errors.Is(err, portalerrors.ErrApprovalPending), errors.Is(err, portalerrors.ErrNotApproved):
		return "Your account is pending admin approval. You will be able to log in once an administrator approves your registration."
	case errors.Is(err, portalerrors.ErrApprovalRejected):
		return "Your account registration has been rejected. Please contact support for more information."
	case errors.Is(err, portalerrors.ErrAccountNotActive):
		return "Your account is not active. Please contact support."
	case errors.Is(err, portalerrors.ErrEmailNotVerified):
		return "Please verify your email address before logging in. We have sent you a verification code."
	case errors.Is(err, portalerrors.ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, portalerrors.ErrBusy):
		return "A request is already in progress. Please wait."
	case errors.Is(err, portalerrors.ErrDuplicateAgreement):
		return "An agreement with this reference already exists for this agent."
	case errors.Is(err, portalerrors.ErrInvalidTransition):
		return "Only draft agreements can be offered."
	case errors.Is(err, portalerrors.ErrSessionNotFound), errors.Is(err, portalerrors.ErrSessionInvalid), errors.Is(err, portalerrors.ErrUnauthorized):
		return "Your session has expired. Please log in again."
	case errors.Is(err, portalerrors.ErrValidation):
		return "Please check the highlighted fields and try again."
	}

	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Something went wrong. Please try again."
}

func accountMessage(e *AccountError) string {
	switch {
	case errors.Is(e.Reason, portalerrors.ErrNotSourceCompany):
		return "This portal is only for source companies. Please use the portal for your account type."
	case errors.Is(e.Reason, portalerrors.ErrApprovalPending):
		return "Your account is pending admin approval. You will be able to log in once an administrator approves your registration."
	case errors.Is(e.Reason, portalerrors.ErrApprovalRejected):
		return "Your account registration has been rejected. Please contact support for more information."
	case errors.Is(e.Reason, portalerrors.ErrNotApproved):
		if e.Status != "" {
			return fmt.Sprintf("Your account is not approved. Current status: %s. Please contact support.", e.Status)
		}
		return "Your account is pending admin approval. You will be able to log in once an administrator approves your registration."
	case errors.Is(e.Reason, portalerrors.ErrAccountNotActive):
		if e.Status != "" {
			return fmt.Sprintf("Your account is not active. Current status: %s. Please contact support.", e.Status)
		}
		return "Your account is not active. Please contact support."
	}
	return "Your account cannot access this portal."
}
