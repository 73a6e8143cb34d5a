package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	portalerrors "github.com/jrsteele09/go-source-portal/internal/errors"
	"github.com/jrsteele09/go-source-portal/internal/utils"
)

// Kind classifies how a request failed.
type Kind int

const (
	// KindStatus: a response arrived with a non-2xx status
	KindStatus Kind = iota + 1
	// KindConnectivity: no response arrived (DNS, refused, timeout, TLS)
	KindConnectivity
	// KindInvalidResponse: a 2xx response whose body is empty or unreadable
	KindInvalidResponse
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindConnectivity:
		return "connectivity"
	case KindInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// Backend machine error codes the portal reacts to
const (
	CodeNotApproved      = "NOT_APPROVED"
	CodeAccountNotActive = "ACCOUNT_NOT_ACTIVE"
	CodeEmailNotVerified = "EMAIL_NOT_VERIFIED"
)

// Error is the structured failure of a single API call.
type Error struct {
	Kind       Kind
	StatusCode int
	Code       string // backend machine code, e.g. NOT_APPROVED
	Message    string
	RequestID  string
	Err        error // underlying transport or decode error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case KindStatus:
		if e.Code != "" {
			return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
		}
		return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("api error: %s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is maps the error onto the portal's sentinel taxonomy so callers can use
// errors.Is without knowing about HTTP.
func (e *Error) Is(target error) bool {
	switch target {
	case portalerrors.ErrConnectivity:
		return e.Kind == KindConnectivity
	case portalerrors.ErrInvalidResponse:
		return e.Kind == KindInvalidResponse
	case portalerrors.ErrUnauthorized:
		return e.Kind == KindStatus && e.StatusCode == http.StatusUnauthorized
	case portalerrors.ErrForbidden:
		return e.Kind == KindStatus && e.StatusCode == http.StatusForbidden
	case portalerrors.ErrNotFound:
		return e.Kind == KindStatus && e.StatusCode == http.StatusNotFound
	case portalerrors.ErrNotApproved:
		return e.Code == CodeNotApproved
	case portalerrors.ErrAccountNotActive:
		return e.Code == CodeAccountNotActive
	case portalerrors.ErrEmailNotVerified:
		return e.Code == CodeEmailNotVerified
	}
	return false
}

type errorBody struct {
	Message   string `json:"message"`
	Error     any    `json:"error"`
	Code      string `json:"code"`
	ErrorCode string `json:"errorCode"`
}

// parseStatusError builds a KindStatus error. Message precedence: body message,
// body error, status-derived text.
func parseStatusError(status int, body []byte, requestID string) *Error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	var errText string
	switch v := eb.Error.(type) {
	case string:
		errText = v
	case map[string]any:
		// Some endpoints nest {error: {code, message}}
		if m, ok := v["message"].(string); ok {
			errText = m
		}
		if c, ok := v["code"].(string); ok && eb.Code == "" {
			eb.Code = c
		}
	}

	return &Error{
		Kind:       KindStatus,
		StatusCode: status,
		Code:       strings.TrimSpace(utils.FirstNonEmpty(eb.Code, eb.ErrorCode)),
		Message:    utils.FirstNonEmpty(eb.Message, errText, statusText(status)),
		RequestID:  requestID,
	}
}

func statusText(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return "The request was invalid. Please check your input."
	case status == http.StatusUnauthorized:
		return "Your session has expired. Please log in again."
	case status == http.StatusForbidden:
		return "You do not have permission to perform this action."
	case status == http.StatusNotFound:
		return "The requested resource was not found."
	case status == http.StatusConflict:
		return "The request conflicts with existing data."
	case status == http.StatusTooManyRequests:
		return "Too many requests. Please try again shortly."
	case status >= 500:
		return "The server encountered an error. Please try again later."
	}
	return utils.FirstNonEmpty(http.StatusText(status), fmt.Sprintf("Request failed with status %d", status))
}
