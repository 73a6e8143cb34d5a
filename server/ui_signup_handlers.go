package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-source-portal/auth"
	"github.com/jrsteele09/go-source-portal/server/flowstate"
	"github.com/rs/zerolog/log"
)

// startFlow records which multi-step flow the browser is in and for which email
func (s *Server) startFlow(ctx context.Context, browserID string, kind flowstate.Kind, email string) {
	state := &flowstate.FlowState{
		Kind:      kind,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		CreatedAt: s.nowTime(),
	}
	if err := s.flows.Upsert(ctx, browserID, state); err != nil {
		log.Err(err).Str("flow", string(kind)).Msg("Failed to store flow state")
	}
}

func (s *Server) forgetFlow(ctx context.Context, browserID string) {
	if err := s.flows.Delete(ctx, browserID); err != nil {
		log.Err(err).Msg("Failed to delete flow state")
	}
}

// currentFlow returns the browser's flow when it is of the given kind
func (s *Server) currentFlow(ctx context.Context, browserID string, kind flowstate.Kind) (*flowstate.FlowState, bool) {
	state, err := s.flows.Get(ctx, browserID)
	if err != nil || state.Kind != kind {
		return nil, false
	}
	return state, true
}

// RegisterGetHandler renders the registration page
func (s *Server) RegisterGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, "register.html", s.newPageData(r, "Register your company", "register"))
	}
}

// RegisterPostHandler creates a SOURCE company account and moves on to email verification
func (s *Server) RegisterPostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		b := browserFromContext(r.Context())

		pending, err := b.Auth.Register(r.Context(), r.FormValue("companyName"), r.FormValue("email"), r.FormValue("password"))
		if err != nil {
			log.Info().Err(err).Msg("Registration rejected")
			data := s.newPageData(r, "Register your company", "register")
			data.withError(err)
			data.Form = formValues(r, "companyName", "email")
			s.render(w, http.StatusUnprocessableEntity, "register.html", data)
			return
		}

		s.startFlow(r.Context(), b.ID, flowstate.KindVerifyEmail, pending.Email)
		redirectWithNotice(w, r, s.url(RouteVerifyEmail), "We have sent a verification code to "+pending.Email+".")
	}
}

// VerifyEmailGetHandler renders the code entry step of registration
func (s *Server) VerifyEmailGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := browserFromContext(r.Context())
		flow, ok := s.currentFlow(r.Context(), b.ID, flowstate.KindVerifyEmail)
		if !ok {
			redirectWithError(w, r, s.url(RouteLogin), "Your verification session has expired. Please log in or register again.")
			return
		}
		data := s.newPageData(r, "Verify your email", "register")
		data.Form["email"] = flow.Email
		s.render(w, http.StatusOK, "verify_email.html", data)
	}
}

// VerifyEmailPostHandler confirms the code. The new session goes through the
// approval gate, so an unapproved company lands on the pending view.
func (s *Server) VerifyEmailPostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		b := browserFromContext(r.Context())
		flow, ok := s.currentFlow(r.Context(), b.ID, flowstate.KindVerifyEmail)
		if !ok {
			redirectWithError(w, r, s.url(RouteLogin), "Your verification session has expired. Please log in or register again.")
			return
		}

		if _, err := b.Auth.VerifyEmail(r.Context(), flow.Email, r.FormValue("otp")); err != nil {
			log.Info().Err(err).Msg("Email verification rejected")
			data := s.newPageData(r, "Verify your email", "register")
			data.withError(err)
			data.Form["email"] = flow.Email
			s.render(w, http.StatusUnprocessableEntity, "verify_email.html", data)
			return
		}

		s.forgetFlow(r.Context(), b.ID)
		redirectWithNotice(w, r, s.url(RouteDashboard), "Your email has been verified.")
	}
}

// ResendVerificationHandler asks for a new verification code
func (s *Server) ResendVerificationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := browserFromContext(r.Context())
		flow, ok := s.currentFlow(r.Context(), b.ID, flowstate.KindVerifyEmail)
		if !ok {
			redirectWithError(w, r, s.url(RouteLogin), "Your verification session has expired. Please log in or register again.")
			return
		}
		if err := b.Auth.ResendVerification(r.Context(), flow.Email); err != nil {
			redirectWithError(w, r, s.url(RouteVerifyEmail), auth.UserMessage(err))
			return
		}
		redirectWithNotice(w, r, s.url(RouteVerifyEmail), "A new verification code has been sent.")
	}
}

// ForgotPasswordGetHandler renders step one of the password reset
func (s *Server) ForgotPasswordGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, "forgot_password.html", s.newPageData(r, "Reset your password", "login"))
	}
}

// ForgotPasswordPostHandler requests a reset code for the email
func (s *Server) ForgotPasswordPostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		b := browserFromContext(r.Context())
		email := r.FormValue("email")

		if err := b.Auth.RequestPasswordReset(r.Context(), email); err != nil {
			data := s.newPageData(r, "Reset your password", "login")
			data.withError(err)
			data.Form = formValues(r, "email")
			s.render(w, http.StatusUnprocessableEntity, "forgot_password.html", data)
			return
		}

		s.startFlow(r.Context(), b.ID, flowstate.KindPasswordReset, email)
		redirectWithNotice(w, r, s.url(RouteResetVerify), "If an account exists for that email, a reset code is on its way.")
	}
}

// ResetVerifyGetHandler renders step two: code entry
func (s *Server) ResetVerifyGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := browserFromContext(r.Context())
		flow, ok := s.currentFlow(r.Context(), b.ID, flowstate.KindPasswordReset)
		if !ok {
			redirectWithError(w, r, s.url(RouteForgotPassword), "Please request a new reset code.")
			return
		}
		data := s.newPageData(r, "Enter your reset code", "login")
		data.Form["email"] = flow.Email
		s.render(w, http.StatusOK, "reset_verify.html", data)
	}
}

// ResetVerifyPostHandler checks the code before the new password is asked for
func (s *Server) ResetVerifyPostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		b := browserFromContext(r.Context())
		flow, ok := s.currentFlow(r.Context(), b.ID, flowstate.KindPasswordReset)
		if !ok {
			redirectWithError(w, r, s.url(RouteForgotPassword), "Please request a new reset code.")
			return
		}

		otp := strings.TrimSpace(r.FormValue("otp"))
		if err := b.Auth.VerifyResetOTP(r.Context(), flow.Email, otp); err != nil {
			data := s.newPageData(r, "Enter your reset code", "login")
			data.withError(err)
			data.Form["email"] = flow.Email
			s.render(w, http.StatusUnprocessableEntity, "reset_verify.html", data)
			return
		}

		flow.OTP = otp
		flow.OTPVerified = true
		if err := s.flows.Upsert(r.Context(), b.ID, flow); err != nil {
			log.Err(err).Msg("Failed to store verified reset code")
			redirectWithError(w, r, s.url(RouteForgotPassword), "Please request a new reset code.")
			return
		}
		redirectSuccess(w, r, s.url(RouteResetPassword))
	}
}

// ResetPasswordGetHandler renders step three: the new password
func (s *Server) ResetPasswordGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := browserFromContext(r.Context())
		flow, ok := s.currentFlow(r.Context(), b.ID, flowstate.KindPasswordReset)
		if !ok || !flow.OTPVerified {
			redirectWithError(w, r, s.url(RouteForgotPassword), "Please request a new reset code.")
			return
		}
		data := s.newPageData(r, "Choose a new password", "login")
		data.Form["email"] = flow.Email
		s.render(w, http.StatusOK, "reset_password.html", data)
	}
}

// ResetPasswordPostHandler sets the new password and sends the user to log in
func (s *Server) ResetPasswordPostHandler() http.HandlerFunc {
	validator := auth.NewValidator()

	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		b := browserFromContext(r.Context())
		flow, ok := s.currentFlow(r.Context(), b.ID, flowstate.KindPasswordReset)
		if !ok || !flow.OTPVerified {
			redirectWithError(w, r, s.url(RouteForgotPassword), "Please request a new reset code.")
			return
		}

		password := r.FormValue("password")
		err := validator.ValidatePasswordsMatch(password, r.FormValue("confirmPassword"))
		if err == nil {
			err = b.Auth.ResetPassword(r.Context(), flow.Email, flow.OTP, password)
		}
		if err != nil {
			data := s.newPageData(r, "Choose a new password", "login")
			data.withError(err)
			data.Form["email"] = flow.Email
			s.render(w, http.StatusUnprocessableEntity, "reset_password.html", data)
			return
		}

		s.forgetFlow(r.Context(), b.ID)
		login := withQuery(s.url(RouteLogin), "email", flow.Email)
		redirectWithNotice(w, r, login, "Your password has been reset. Please log in.")
	}
}
