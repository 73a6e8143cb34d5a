package server

import (
	"net/http"

	"github.com/jrsteele09/go-source-portal/auth"
	"github.com/jrsteele09/go-source-portal/gate"
	"github.com/rs/zerolog/log"
)

// PendingView is the content of the blocking pending-approval page
type PendingView struct {
	Reason string
	Email  string
}

// renderPending renders the blocking view for a session that exists but may
// not enter the authenticated area
func (s *Server) renderPending(w http.ResponseWriter, r *http.Request, decision gate.Decision, status int) {
	data := s.newPageData(r, "Account pending approval", "pending")
	view := PendingView{Reason: decision.Reason}
	if decision.Session.User != nil {
		view.Email = decision.Session.User.Email
	}
	data.Content = view
	s.render(w, status, "pending.html", data)
}

// PendingCheckHandler reloads the profile so an approval granted since login
// takes effect without logging in again
func (s *Server) PendingCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := browserFromContext(r.Context())

		if _, err := b.Auth.RefreshProfile(r.Context()); err != nil {
			log.Info().Err(err).Msg("Profile refresh from pending view failed")
			decision := s.gate.Check(r.Context(), b.Store)
			if decision.State != gate.PendingOrUnapproved {
				redirectWithError(w, r, s.url(RouteLogin), auth.UserMessage(err))
				return
			}
			decision.Reason = auth.UserMessage(err)
			s.renderPending(w, r, decision, http.StatusForbidden)
			return
		}

		decision := s.gate.Check(r.Context(), b.Store)
		switch decision.State {
		case gate.Authorized:
			redirectWithNotice(w, r, s.url(RouteDashboard), "Your account has been approved.")
		case gate.PendingOrUnapproved:
			s.renderPending(w, r, decision, http.StatusForbidden)
		default:
			redirectWithError(w, r, s.url(RouteLogin), decision.Reason)
		}
	}
}

// PendingLeaveHandler clears the session and goes to login or, with
// to=register, to registration for another account
func (s *Server) PendingLeaveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := browserFromContext(r.Context())
		s.endBrowserSession(r, b)

		if r.FormValue("to") == "register" {
			redirectSuccess(w, r, s.url(RouteRegister))
			return
		}
		redirectSuccess(w, r, s.url(RouteLogin))
	}
}
