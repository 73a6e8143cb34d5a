package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-source-portal/adapters"
	"github.com/jrsteele09/go-source-portal/agreements"
	"github.com/jrsteele09/go-source-portal/auth"
	"github.com/jrsteele09/go-source-portal/users"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DashboardView is the content of the dashboard page
type DashboardView struct {
	Agents    []agreements.Agent
	Counts    agreements.Counts
	Statuses  []agreements.Status
	Endpoint  string
	LastTest  *adapters.Result
	CanCreate agreements.Decision
}

// IndexHandler sends the root to the dashboard; the approval gate decides
// where the browser actually ends up
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != RouteHome {
			s.NotFoundHandler()(w, r)
			return
		}
		redirectSuccess(w, r, s.url(RouteDashboard))
	}
}

// DashboardHandler renders the agents and the agreement totals, loaded in parallel
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := browserFromContext(r.Context())
		sess, _ := sessionFromContext(r.Context())
		data := s.newPageData(r, "Dashboard", "dashboard")

		var (
			agents []agreements.Agent
			mine   agreements.AgreementSet
		)
		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			var err error
			agents, err = b.Agreements.ListAgents(ctx)
			return err
		})
		g.Go(func() error {
			var err error
			mine, err = b.Agreements.FetchMine(ctx)
			return err
		})
		if err := g.Wait(); err != nil {
			if s.expireSession(w, r, err, r.URL.RequestURI()) {
				return
			}
			log.Err(err).Msg("Failed to load dashboard")
			if data.Error == "" {
				data.Error = auth.UserMessage(err)
			}
		}

		view := DashboardView{
			Agents:    agents,
			Counts:    mine.Counts,
			Statuses:  agreements.Statuses,
			Endpoint:  sess.User.GRPCEndpoint(),
			CanCreate: agreements.AccountDecision(s.account(r.Context(), b, sess.User), "create agreements"),
		}
		if last, ok := b.Adapter.Load(r.Context()); ok {
			view.LastTest = &last
		}
		data.Content = view
		s.render(w, http.StatusOK, "dashboard.html", data)
	}
}

// account builds the precondition inputs of the session user. A stored
// connectivity result only counts for the endpoint it was run against.
func (s *Server) account(ctx context.Context, b *browser, u *users.User) agreements.Account {
	return agreements.AccountFromUser(u, b.Adapter.PassedFor(ctx, u.GRPCEndpoint()))
}
