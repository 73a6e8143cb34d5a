package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-source-portal/apiclient"
	portalerrors "github.com/jrsteele09/go-source-portal/internal/errors"
	"github.com/jrsteele09/go-source-portal/sessions"
	"github.com/jrsteele09/go-source-portal/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// API paths of the remote auth endpoints
const (
	PathLogin              = "/auth/login"
	PathRegister           = "/auth/register"
	PathVerifyEmail        = "/auth/verify-email"
	PathResendVerification = "/auth/resend-verification"
	PathForgotPassword     = "/auth/forgot-password"
	PathVerifyResetOTP     = "/auth/verify-reset-otp"
	PathResetPassword      = "/auth/reset-password"
	PathMe                 = "/auth/me"
	PathLogout             = "/auth/logout"
)

// PendingVerification is the flow state carried from registration to the
// email verification step.
type PendingVerification struct {
	Email string
}

// tokenResponse is the session tuple returned by login and verify-email.
// Older deployments send the access credential as "token".
type tokenResponse struct {
	Access  string      `json:"access"`
	Token   string      `json:"token"`
	Refresh string      `json:"refresh"`
	User    *users.User `json:"user"`
}

func (r tokenResponse) accessToken() string {
	if r.Access != "" {
		return r.Access
	}
	return r.Token
}

func (r tokenResponse) validate() error {
	if r.accessToken() == "" {
		return errors.Wrap(portalerrors.ErrInvalidResponse, "access token missing")
	}
	if r.Refresh == "" {
		return errors.Wrap(portalerrors.ErrInvalidResponse, "refresh token missing")
	}
	if err := r.User.Validate(); err != nil {
		return errors.Wrap(portalerrors.ErrInvalidResponse, err.Error())
	}
	return nil
}

// Service runs the auth flows of one browser session against the remote API.
type Service struct {
	api       apiclient.Doer
	store     *sessions.Store
	validator *Validator
}

// NewService creates the auth flows for the session held in store. api should
// already be bound to the same store for its bearer credentials.
func NewService(api apiclient.Doer, store *sessions.Store) (*Service, error) {
	if api == nil {
		return nil, errors.New("[NewService] api client is required")
	}
	if store == nil {
		return nil, errors.New("[NewService] session store is required")
	}

	s := &Service{
		api:       api,
		store:     store,
		validator: NewValidator(),
	}
	return s, nil
}

// CheckAccount applies the portal's access rules in order: the company must be
// a SOURCE, approved by an admin, and active. The first failing rule is
// returned as an *AccountError.
func CheckAccount(user *users.User) error {
	if !user.IsSource() {
		return &AccountError{Reason: portalerrors.ErrNotSourceCompany}
	}

	switch status := user.ApprovalStatus(); status {
	case users.ApprovalApproved:
	case users.ApprovalPending:
		return &AccountError{Reason: portalerrors.ErrApprovalPending, Status: string(status)}
	case users.ApprovalRejected:
		return &AccountError{Reason: portalerrors.ErrApprovalRejected, Status: string(status)}
	default:
		return &AccountError{Reason: portalerrors.ErrNotApproved, Status: string(status)}
	}

	if !user.IsActive() {
		return &AccountError{Reason: portalerrors.ErrAccountNotActive, Status: string(user.CompanyStatus())}
	}
	return nil
}

// Login authenticates against the API and persists the session only when the
// account passes CheckAccount. Any account rejection clears the store.
func (s *Service) Login(ctx context.Context, email, password string) (sessions.Session, error) {
	email = normaliseEmail(email)
	if err := s.validator.ValidateUserCredentials(email, password); err != nil {
		return sessions.Session{}, err
	}

	var resp tokenResponse
	err := s.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   PathLogin,
		Body:   map[string]string{"email": email, "password": password},
		Public: true,
	}, &resp)
	if err != nil {
		return sessions.Session{}, s.loginFailure(ctx, err)
	}

	if err := resp.validate(); err != nil {
		return sessions.Session{}, errors.Wrap(err, "[Service.Login] contract check")
	}

	if err := CheckAccount(resp.User); err != nil {
		log.Info().Str("user_id", resp.User.ID).Err(err).Msg("Login rejected by account rules")
		s.clear(ctx)
		return sessions.Session{}, err
	}

	return s.persist(ctx, resp, "[Service.Login]")
}

func (s *Service) loginFailure(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, portalerrors.ErrConnectivity), errors.Is(err, portalerrors.ErrInvalidResponse):
		return errors.Wrap(err, "[Service.Login] api.Do")
	case errors.Is(err, portalerrors.ErrNotApproved):
		s.clear(ctx)
		return &AccountError{Reason: portalerrors.ErrNotApproved}
	case errors.Is(err, portalerrors.ErrAccountNotActive):
		s.clear(ctx)
		return &AccountError{Reason: portalerrors.ErrAccountNotActive}
	case errors.Is(err, portalerrors.ErrEmailNotVerified):
		s.clear(ctx)
		return errors.Wrap(portalerrors.ErrEmailNotVerified, "[Service.Login]")
	case errors.Is(err, portalerrors.ErrUnauthorized):
		return errors.Wrap(portalerrors.ErrInvalidCredentials, "[Service.Login]")
	}
	return errors.Wrap(err, "[Service.Login] api.Do")
}

// Register creates a SOURCE company account. No session is created; the
// returned state carries the email into the verification step.
func (s *Service) Register(ctx context.Context, companyName, email, password string) (PendingVerification, error) {
	email = normaliseEmail(email)
	companyName = strings.TrimSpace(companyName)
	if err := s.validator.ValidateRegistration(companyName, email, password); err != nil {
		return PendingVerification{}, err
	}

	err := s.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   PathRegister,
		Body: map[string]string{
			"companyName": companyName,
			"email":       email,
			"password":    password,
			"type":        string(users.CompanyTypeSource),
		},
		Public:     true,
		AllowEmpty: true,
	}, nil)
	if err != nil {
		return PendingVerification{}, errors.Wrap(err, "[Service.Register] api.Do")
	}
	return PendingVerification{Email: email}, nil
}

// VerifyEmail confirms the registration code and persists the returned
// session. Approval is not checked here; callers route the new session through
// the approval gate, which shows the pending view for unapproved companies.
func (s *Service) VerifyEmail(ctx context.Context, email, otp string) (sessions.Session, error) {
	email = normaliseEmail(email)
	otp = strings.TrimSpace(otp)
	if err := s.validator.ValidateEmail(email); err != nil {
		return sessions.Session{}, err
	}
	if err := s.validator.ValidateOTP(otp); err != nil {
		return sessions.Session{}, err
	}

	var resp tokenResponse
	err := s.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   PathVerifyEmail,
		Body:   map[string]string{"email": email, "otp": otp},
		Public: true,
	}, &resp)
	if err != nil {
		return sessions.Session{}, errors.Wrap(err, "[Service.VerifyEmail] api.Do")
	}

	if err := resp.validate(); err != nil {
		return sessions.Session{}, errors.Wrap(err, "[Service.VerifyEmail] contract check")
	}

	if !resp.User.IsSource() {
		s.clear(ctx)
		return sessions.Session{}, &AccountError{Reason: portalerrors.ErrNotSourceCompany}
	}

	return s.persist(ctx, resp, "[Service.VerifyEmail]")
}

// ResendVerification asks the API to send a new email verification code
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = normaliseEmail(email)
	if err := s.validator.ValidateEmail(email); err != nil {
		return err
	}
	if err := s.postPublic(ctx, PathResendVerification, map[string]string{"email": email}); err != nil {
		return errors.Wrap(err, "[Service.ResendVerification]")
	}
	return nil
}

// RequestPasswordReset is step one of the reset flow: the API emails a code.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normaliseEmail(email)
	if err := s.validator.ValidateEmail(email); err != nil {
		return err
	}
	if err := s.postPublic(ctx, PathForgotPassword, map[string]string{"email": email}); err != nil {
		return errors.Wrap(err, "[Service.RequestPasswordReset]")
	}
	return nil
}

// VerifyResetOTP is step two: the code is checked before a new password is asked for.
func (s *Service) VerifyResetOTP(ctx context.Context, email, otp string) error {
	email = normaliseEmail(email)
	otp = strings.TrimSpace(otp)
	if err := s.validator.ValidateEmail(email); err != nil {
		return err
	}
	if err := s.validator.ValidateOTP(otp); err != nil {
		return err
	}
	if err := s.postPublic(ctx, PathVerifyResetOTP, map[string]string{"email": email, "otp": otp}); err != nil {
		return errors.Wrap(err, "[Service.VerifyResetOTP]")
	}
	return nil
}

// ResetPassword is the last step. It never authenticates; the user logs in afterwards.
func (s *Service) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	email = normaliseEmail(email)
	otp = strings.TrimSpace(otp)
	if err := s.validator.ValidateEmail(email); err != nil {
		return err
	}
	if err := s.validator.ValidateOTP(otp); err != nil {
		return err
	}
	if err := s.validator.ValidateNewPassword(newPassword); err != nil {
		return err
	}

	body := map[string]string{"email": email, "otp": otp, "newPassword": newPassword}
	if err := s.postPublic(ctx, PathResetPassword, body); err != nil {
		return errors.Wrap(err, "[Service.ResetPassword]")
	}
	return nil
}

// RefreshProfile reloads the user from the API and replaces the stored copy.
// A 401 means the credentials are gone and the session is cleared.
func (s *Service) RefreshProfile(ctx context.Context) (*users.User, error) {
	if !s.store.IsAuthenticated(ctx) {
		return nil, portalerrors.ErrSessionNotFound
	}

	var raw json.RawMessage
	if err := s.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: PathMe}, &raw); err != nil {
		if errors.Is(err, portalerrors.ErrUnauthorized) {
			s.clear(ctx)
			return nil, errors.Wrap(portalerrors.ErrSessionNotFound, "[Service.RefreshProfile] token rejected")
		}
		return nil, errors.Wrap(err, "[Service.RefreshProfile] api.Do")
	}

	// The profile is either bare or wrapped as {"user": {...}}
	data := []byte(raw)
	if wrapped := gjson.GetBytes(data, "user"); wrapped.IsObject() {
		data = []byte(wrapped.Raw)
	}

	var user users.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, errors.Wrap(portalerrors.ErrInvalidResponse, "[Service.RefreshProfile] decode user")
	}
	if err := user.Validate(); err != nil {
		return nil, errors.Wrap(portalerrors.ErrInvalidResponse, "[Service.RefreshProfile] "+err.Error())
	}

	if err := s.store.UpdateUser(ctx, &user); err != nil {
		return nil, errors.Wrap(err, "[Service.RefreshProfile] store.UpdateUser")
	}
	return &user, nil
}

// Logout revokes the refresh token when one is held and always clears the
// local session, even when the API cannot be reached.
func (s *Service) Logout(ctx context.Context) error {
	if sess, ok := s.store.Get(ctx); ok && sess.RefreshToken != "" {
		err := s.api.Do(ctx, apiclient.Request{
			Method:     http.MethodPost,
			Path:       PathLogout,
			Body:       map[string]string{"refresh": sess.RefreshToken},
			AllowEmpty: true,
		}, nil)
		if err != nil {
			log.Warn().Err(err).Msg("Logout call failed, clearing local session anyway")
		}
	}

	if err := s.store.Clear(ctx); err != nil {
		return errors.Wrap(err, "[Service.Logout] store.Clear")
	}
	return nil
}

func (s *Service) persist(ctx context.Context, resp tokenResponse, op string) (sessions.Session, error) {
	sess := sessions.Session{
		Token:        resp.accessToken(),
		RefreshToken: resp.Refresh,
		User:         resp.User,
	}
	if err := s.store.Set(ctx, sess.Token, sess.RefreshToken, sess.User); err != nil {
		return sessions.Session{}, errors.Wrap(err, op+" store.Set")
	}
	return sess, nil
}

func (s *Service) postPublic(ctx context.Context, path string, body any) error {
	return s.api.Do(ctx, apiclient.Request{
		Method:     http.MethodPost,
		Path:       path,
		Body:       body,
		Public:     true,
		AllowEmpty: true,
	}, nil)
}

func (s *Service) clear(ctx context.Context) {
	if err := s.store.Clear(ctx); err != nil {
		log.Err(err).Msg("Failed to clear rejected session")
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
