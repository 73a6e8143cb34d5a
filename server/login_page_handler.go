package server

import (
	"errors"
	"net/http"

	"github.com/jrsteele09/go-source-portal/auth"
	portalerrors "github.com/jrsteele09/go-source-portal/internal/errors"
	"github.com/jrsteele09/go-source-portal/server/flowstate"
	"github.com/rs/zerolog/log"
)

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.newPageData(r, "Log in", "login")
		data.Form["email"] = r.URL.Query().Get("email")
		data.Form["next"] = safeNext(r.URL.Query().Get("next"))
		s.render(w, http.StatusOK, "login.html", data)
	}
}

// LoginSubmissionHandler processes the login form submission (POST /login)
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		b := browserFromContext(r.Context())
		email := r.FormValue("email")
		next := safeNext(r.FormValue("next"))

		_, err := b.Auth.Login(r.Context(), email, r.FormValue("password"))
		if err != nil {
			if errors.Is(err, portalerrors.ErrEmailNotVerified) {
				s.startFlow(r.Context(), b.ID, flowstate.KindVerifyEmail, email)
				redirectWithError(w, r, s.url(RouteVerifyEmail), auth.UserMessage(err))
				return
			}
			log.Info().Err(err).Msg("Login rejected")

			data := s.newPageData(r, "Log in", "login")
			data.withError(err)
			data.Form["email"] = email
			data.Form["next"] = next
			s.render(w, loginFailureStatus(err), "login.html", data)
			return
		}

		// A fresh login starts from a clean slate of browser-local state
		s.refreshers.Stop(b.ID)
		s.forgetFlow(r.Context(), b.ID)
		if err := b.Adapter.Clear(r.Context()); err != nil {
			log.Warn().Err(err).Msg("Failed to clear stale adapter test result")
		}

		if next == "" {
			next = RouteDashboard
		}
		redirectSuccess(w, r, s.url(next))
	}
}

// loginFailureStatus separates an unreachable or misbehaving API from a
// rejected login
func loginFailureStatus(err error) int {
	switch {
	case errors.Is(err, portalerrors.ErrConnectivity):
		return http.StatusServiceUnavailable
	case errors.Is(err, portalerrors.ErrInvalidResponse):
		return http.StatusBadGateway
	case errors.Is(err, portalerrors.ErrValidation):
		return http.StatusUnprocessableEntity
	}
	return http.StatusUnauthorized
}

// LogoutHandler ends the session (POST /logout). The session is cleared even
// when the API cannot be reached.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := browserFromContext(r.Context())
		s.endBrowserSession(r, b)
		redirectWithNotice(w, r, s.url(RouteLogin), "You have been logged out.")
	}
}

// endBrowserSession logs out and drops every piece of state kept for the browser
func (s *Server) endBrowserSession(r *http.Request, b *browser) {
	s.refreshers.Stop(b.ID)
	s.forgetFlow(r.Context(), b.ID)
	if err := b.Adapter.Clear(r.Context()); err != nil {
		log.Warn().Err(err).Msg("Failed to clear adapter test result")
	}
	if err := b.Auth.Logout(r.Context()); err != nil {
		log.Err(err).Msg("Failed to clear session on logout")
	}
}
