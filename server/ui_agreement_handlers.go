package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-source-portal/agreements"
	"github.com/jrsteele09/go-source-portal/auth"
	portalerrors "github.com/jrsteele09/go-source-portal/internal/errors"
	"github.com/rs/zerolog/log"
)

// dateInputLayout is the value format of an HTML date input
const dateInputLayout = "2006-01-02"

// agreementRoute fills the {id} of an agreement route pattern
func agreementRoute(pattern, id string) string {
	return strings.Replace(pattern, "{id}", url.PathEscape(id), 1)
}

// FilterTab is one status tab of the agreement list
type FilterTab struct {
	Filter agreements.Filter
	Label  string
	Count  int
	Active bool
}

// AgreementRow is an agreement with its offer decision
type AgreementRow struct {
	Agreement agreements.Agreement
	Offer     agreements.Decision
}

// AgreementsView is the content of the agreement list page
type AgreementsView struct {
	Tabs           []FilterTab
	Rows           []AgreementRow
	Filter         agreements.Filter
	FetchedAt      time.Time
	RefreshError   string
	RefreshSeconds int
}

// AgreementFormView is the content of the create page
type AgreementFormView struct {
	Agents   []agreements.Agent
	Account  agreements.Decision
	Decision agreements.Decision
}

// AgreementDetailView is the content of the detail page
type AgreementDetailView struct {
	Agreement agreements.Agreement
	Offer     agreements.Decision
}

// refresherFor returns the running background refresh of the browser's agreements
func (s *Server) refresherFor(b *browser) *agreements.Refresher {
	return s.refreshers.Get(b.ID, func() *agreements.Refresher {
		return agreements.NewRefresher(b.Agreements.FetchMine,
			agreements.WithInterval(s.config.GetRefreshInterval()),
			agreements.WithNowTime(s.nowTime),
		)
	})
}

// currentAgreements returns the latest applied refresh, fetching in the
// request when the background refresh has not landed yet
func (s *Server) currentAgreements(ctx context.Context, b *browser) agreements.Snapshot {
	refresher := s.refresherFor(b)
	if snap, ok := refresher.Snapshot(); ok {
		return snap
	}
	refresher.Refresh(ctx)
	snap, _ := refresher.Snapshot()
	return snap
}

// AgreementsListHandler renders the source's agreements under a status filter.
// Counts always describe the full set.
func (s *Server) AgreementsListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := browserFromContext(r.Context())
		sess, _ := sessionFromContext(r.Context())
		data := s.newPageData(r, "My agreements", "agreements")

		filter, err := agreements.ParseFilter(r.URL.Query().Get("status"))
		if err != nil {
			data.Error = "Unknown status filter, showing all agreements."
			filter = agreements.FilterAll
		}

		snap := s.currentAgreements(r.Context(), b)
		if snap.Err != nil && s.expireSession(w, r, snap.Err, r.URL.RequestURI()) {
			return
		}
		mine := snap.Set.Select(filter)
		account := s.account(r.Context(), b, sess.User)

		view := AgreementsView{
			Filter:         filter,
			FetchedAt:      snap.FetchedAt,
			RefreshSeconds: int(s.config.GetRefreshInterval() / time.Second),
		}
		if snap.Err != nil {
			view.RefreshError = auth.UserMessage(snap.Err)
		}

		view.Tabs = append(view.Tabs, FilterTab{
			Filter: agreements.FilterAll,
			Label:  agreements.FilterAll.Label(),
			Count:  mine.Counts.All,
			Active: filter == agreements.FilterAll,
		})
		for _, status := range agreements.Statuses {
			f := agreements.Filter(status)
			view.Tabs = append(view.Tabs, FilterTab{Filter: f, Label: f.Label(), Count: mine.Counts.Of(f), Active: filter == f})
		}

		for _, a := range mine.Agreements {
			view.Rows = append(view.Rows, AgreementRow{
				Agreement: a,
				Offer:     agreements.CanOffer(agreements.OfferConditions{Status: a.Status, Account: account}),
			})
		}

		data.Content = view
		s.render(w, http.StatusOK, "agreements.html", data)
	}
}

// AgreementNewHandler renders the create form
func (s *Server) AgreementNewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := browserFromContext(r.Context())
		sess, _ := sessionFromContext(r.Context())
		data := s.newPageData(r, "New agreement", "agreements")
		data.Form["agentId"] = r.URL.Query().Get("agentId")

		view, err := s.agreementForm(r.Context(), b, s.account(r.Context(), b, sess.User))
		if err != nil {
			if s.expireSession(w, r, err, r.URL.RequestURI()) {
				return
			}
			data.Error = auth.UserMessage(err)
		}
		data.Content = view
		s.render(w, http.StatusOK, "agreement_new.html", data)
	}
}

// AgreementCreateHandler validates the form against the create preconditions
// and creates the agreement
func (s *Server) AgreementCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		b := browserFromContext(r.Context())
		sess, _ := sessionFromContext(r.Context())
		account := s.account(r.Context(), b, sess.User)

		conditions := agreements.CreateConditions{
			AgentID:      strings.TrimSpace(r.FormValue("agentId")),
			AgreementRef: strings.TrimSpace(r.FormValue("agreementRef")),
			ValidFrom:    parseDateInput(r.FormValue("validFrom")),
			ValidTo:      parseDateInput(r.FormValue("validTo")),
			Account:      account,
		}

		fail := func(status int, message string) {
			data := s.newPageData(r, "New agreement", "agreements")
			data.Form = formValues(r, "agentId", "agreementRef", "validFrom", "validTo")
			data.Error = message
			view, err := s.agreementForm(r.Context(), b, account)
			if err != nil {
				log.Err(err).Msg("Failed to reload agents for create form")
			}
			data.Content = view
			s.render(w, status, "agreement_new.html", data)
		}

		if decision := agreements.CanCreate(conditions); !decision.Enabled {
			fail(http.StatusUnprocessableEntity, decision.Reason)
			return
		}

		created, err := b.Agreements.Create(r.Context(), agreements.CreateInput{
			AgentID:      conditions.AgentID,
			SourceID:     sess.User.Company.ID,
			AgreementRef: conditions.AgreementRef,
			ValidFrom:    conditions.ValidFrom,
			ValidTo:      conditions.ValidTo,
		})
		if err != nil {
			if s.expireSession(w, r, err, RouteAgreementNew) {
				return
			}
			log.Info().Err(err).Msg("Agreement create failed")
			status := http.StatusBadGateway
			if errors.Is(err, portalerrors.ErrDuplicateAgreement) || errors.Is(err, portalerrors.ErrValidation) {
				status = http.StatusUnprocessableEntity
			}
			fail(status, auth.UserMessage(err))
			return
		}

		s.refresherFor(b).Refresh(r.Context())
		redirectWithNotice(w, r, s.url(agreementRoute(RouteAgreementDetail, created.ID)), "Agreement "+created.AgreementRef+" created as a draft.")
	}
}

func (s *Server) agreementForm(ctx context.Context, b *browser, account agreements.Account) (AgreementFormView, error) {
	view := AgreementFormView{Account: agreements.AccountDecision(account, "create agreements")}
	agents, err := b.Agreements.ListAgents(ctx)
	if err != nil {
		return view, err
	}
	view.Agents = agents
	return view, nil
}

// AgreementDetailHandler renders one agreement
func (s *Server) AgreementDetailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := browserFromContext(r.Context())
		sess, _ := sessionFromContext(r.Context())

		a, err := b.Agreements.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			s.agreementLoadFailed(w, r, err, r.URL.RequestURI())
			return
		}

		data := s.newPageData(r, "Agreement "+a.AgreementRef, "agreements")
		data.Content = AgreementDetailView{
			Agreement: a,
			Offer:     agreements.CanOffer(agreements.OfferConditions{Status: a.Status, Account: s.account(r.Context(), b, sess.User)}),
		}
		s.render(w, http.StatusOK, "agreement_detail.html", data)
	}
}

// AgreementOfferHandler offers a DRAFT agreement to its agent
func (s *Server) AgreementOfferHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := browserFromContext(r.Context())
		sess, _ := sessionFromContext(r.Context())
		id := r.PathValue("id")
		detailRoute := agreementRoute(RouteAgreementDetail, id)
		detail := s.url(detailRoute)

		// Decide on the current status, not on whatever the page showed
		current, err := b.Agreements.Get(r.Context(), id)
		if err != nil {
			s.agreementLoadFailed(w, r, err, detailRoute)
			return
		}

		decision := agreements.CanOffer(agreements.OfferConditions{Status: current.Status, Account: s.account(r.Context(), b, sess.User)})
		if !decision.Enabled {
			redirectWithError(w, r, detail, decision.Reason)
			return
		}

		offered, err := b.Agreements.Offer(r.Context(), current)
		if err != nil {
			if s.expireSession(w, r, err, detailRoute) {
				return
			}
			log.Info().Err(err).Str("agreement_id", id).Msg("Agreement offer failed")
			redirectWithError(w, r, detail, auth.UserMessage(err))
			return
		}

		s.refresherFor(b).Refresh(r.Context())
		redirectWithNotice(w, r, detail, "Agreement "+offered.AgreementRef+" offered.")
	}
}

// agreementLoadFailed answers a failed agreement read; next is where a browser
// whose session was rejected returns after logging in again
func (s *Server) agreementLoadFailed(w http.ResponseWriter, r *http.Request, err error, next string) {
	if s.expireSession(w, r, err, next) {
		return
	}
	if errors.Is(err, portalerrors.ErrNotFound) {
		s.NotFoundHandler()(w, r)
		return
	}
	log.Err(err).Msg("Failed to load agreement")
	redirectWithError(w, r, s.url(RouteAgreements), auth.UserMessage(err))
}

// parseDateInput reads a date input value as midnight UTC; bad input is the zero time
func parseDateInput(raw string) time.Time {
	t, err := time.Parse(dateInputLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}
	}
	return t
}
