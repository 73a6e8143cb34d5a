package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-source-portal/adapters"
	"github.com/jrsteele09/go-source-portal/agreements"
	"github.com/jrsteele09/go-source-portal/apiclient"
	"github.com/jrsteele09/go-source-portal/auth"
	"github.com/jrsteele09/go-source-portal/gate"
	portalerrors "github.com/jrsteele09/go-source-portal/internal/errors"
	"github.com/jrsteele09/go-source-portal/sessions"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyBrowser stores the *browser bound to the request cookie
	ContextKeyBrowser ContextKey = "browser"
	// ContextKeySession stores the authorized sessions.Session
	ContextKeySession ContextKey = "session"
)

// browser is everything the portal keeps for one browser cookie. All of it is
// built per request on top of the shared key/value backend.
type browser struct {
	ID         string
	Store      *sessions.Store
	API        *apiclient.Client
	Auth       *auth.Service
	Agreements *agreements.Service
	Adapter    *adapters.ResultStore
}

func (s *Server) newBrowser(id string) (*browser, error) {
	kv := s.kvFactory(id)
	ttl := s.config.GetSessionTTL()
	store := sessions.NewStore(kv, sessions.WithMaxTTL(ttl), sessions.WithNowTime(s.nowTime))
	api := s.api.WithSession(store)

	authService, err := auth.NewService(api, store)
	if err != nil {
		return nil, err
	}
	agreementService, err := agreements.NewService(api)
	if err != nil {
		return nil, err
	}
	return &browser{
		ID:         id,
		Store:      store,
		API:        api,
		Auth:       authService,
		Agreements: agreementService,
		Adapter:    adapters.NewResultStore(kv, ttl),
	}, nil
}

func browserFromContext(ctx context.Context) *browser {
	b, _ := ctx.Value(ContextKeyBrowser).(*browser)
	return b
}

func sessionFromContext(ctx context.Context) (sessions.Session, bool) {
	sess, ok := ctx.Value(ContextKeySession).(sessions.Session)
	return sess, ok
}

// BrowserMiddleware binds the request to its browser cookie, issuing a new id
// when the browser has none.
func (s *Server) BrowserMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := s.browserID(r)
		if id == "" {
			id = uuid.NewString()
			s.SetBrowserCookie(w, r, id, browserCookieMaxAge)
		}

		b, err := s.newBrowser(id)
		if err != nil {
			log.Err(err).Msg("Failed to bind browser")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyBrowser, b)
		next(w, r.WithContext(ctx))
	}
}

// RequireApproval is the approval gate for the authenticated area. It must run
// after BrowserMiddleware.
func (s *Server) RequireApproval() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			b := browserFromContext(r.Context())
			decision := s.gate.Check(r.Context(), b.Store)

			switch decision.State {
			case gate.Authorized:
				ctx := context.WithValue(r.Context(), ContextKeySession, decision.Session)
				next(w, r.WithContext(ctx))
			case gate.PendingOrUnapproved:
				s.renderPending(w, r, decision, http.StatusForbidden)
			default:
				s.refreshers.Stop(b.ID)
				login := withQuery(s.url(RouteLogin), "next", r.URL.RequestURI())
				redirectWithError(w, r, login, decision.Reason)
			}
		}
	}
}

// RedirectAuthorized sends browsers that already hold an authorized session
// away from the guest pages.
func (s *Server) RedirectAuthorized() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			b := browserFromContext(r.Context())
			sess, ok := b.Store.Get(r.Context())
			if gate.Evaluate(sess, ok).Allowed() {
				redirectSuccess(w, r, s.url(RouteDashboard))
				return
			}
			next(w, r)
		}
	}
}

// BusyMiddleware rejects a submission while the same browser already has one
// in flight on the same route.
func (s *Server) BusyMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := browserFromContext(r.Context())
		release, ok := s.busy.TryStart(b.ID + " " + r.Pattern)
		if !ok {
			log.Info().Str("route", r.Pattern).Msg("Rejecting duplicate submission")
			http.Error(w, auth.UserMessage(portalerrors.ErrBusy), http.StatusConflict)
			return
		}
		defer release()
		next(w, r)
	}
}

// expireSession ends a browser session the API no longer accepts and sends the
// browser to login, returning to next afterwards. It reports whether err was
// such a rejection; any other error is left to the caller.
func (s *Server) expireSession(w http.ResponseWriter, r *http.Request, err error, next string) bool {
	if !errors.Is(err, portalerrors.ErrUnauthorized) && !errors.Is(err, portalerrors.ErrSessionNotFound) {
		return false
	}

	b := browserFromContext(r.Context())
	log.Info().Str("route", r.Pattern).Msg("API rejected the session, logging the browser out")
	s.refreshers.Stop(b.ID)
	if err := b.Store.Clear(r.Context()); err != nil {
		log.Err(err).Msg("Failed to clear rejected session")
	}
	if err := b.Adapter.Clear(r.Context()); err != nil {
		log.Warn().Err(err).Msg("Failed to clear adapter test result")
	}

	login := s.url(RouteLogin)
	if next = safeNext(next); next != "" {
		login = withQuery(login, "next", next)
	}
	redirectWithError(w, r, login, auth.UserMessage(portalerrors.ErrUnauthorized))
	return true
}
