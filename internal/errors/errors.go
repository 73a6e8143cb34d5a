package errors

import "errors"

// Common error types for the source portal
var (
	// Validation errors, raised before any network call
	ErrValidation = errors.New("validation failed")

	// Authorization errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotSourceCompany   = errors.New("company is not a source")
	ErrNotApproved        = errors.New("company not approved")
	ErrApprovalPending    = errors.New("company approval pending")
	ErrApprovalRejected   = errors.New("company approval rejected")
	ErrAccountNotActive   = errors.New("account not active")
	ErrEmailNotVerified   = errors.New("email not verified")

	// Transport errors
	ErrConnectivity    = errors.New("no response from server")
	ErrInvalidResponse = errors.New("invalid response from server")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionInvalid  = errors.New("session invalid")

	// Agreement errors
	ErrDuplicateAgreement = errors.New("duplicate agreement reference")
	ErrInvalidTransition  = errors.New("invalid agreement status transition")
	ErrUnknownStatus      = errors.New("unknown agreement status")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrBusy     = errors.New("request already in progress")
)
