// Package gate decides whether a browser session may enter the
// authenticated area of the portal.
package gate

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-source-portal/auth"
	portalerrors "github.com/jrsteele09/go-source-portal/internal/errors"
	"github.com/jrsteele09/go-source-portal/sessions"
	"github.com/rs/zerolog/log"
)

// State is the outcome of a gate evaluation.
type State int

const (
	// Checking is the initial state while the session is being read
	Checking State = iota
	// Unauthenticated sends the browser to the login page
	Unauthenticated
	// PendingOrUnapproved renders the blocking pending-approval view
	PendingOrUnapproved
	// Authorized renders the protected content
	Authorized
)

func (s State) String() string {
	switch s {
	case Checking:
		return "CHECKING"
	case Unauthenticated:
		return "UNAUTHENTICATED"
	case PendingOrUnapproved:
		return "PENDING_OR_UNAPPROVED"
	case Authorized:
		return "AUTHORIZED"
	}
	return "UNKNOWN"
}

// Decision is a gate state plus the user-facing reason for it.
type Decision struct {
	State   State
	Reason  string
	Session sessions.Session
}

// Allowed reports whether protected content may be rendered
func (d Decision) Allowed() bool {
	return d.State == Authorized
}

// Evaluate is the pure gate function. ok is false when no usable session was
// found. A session whose company is not a SOURCE fails closed.
func Evaluate(sess sessions.Session, ok bool) Decision {
	if !ok || !sess.Valid() {
		return Decision{State: Unauthenticated, Reason: "Please log in to continue."}
	}

	err := auth.CheckAccount(sess.User)
	switch {
	case err == nil:
		return Decision{State: Authorized, Session: sess}
	case errors.Is(err, portalerrors.ErrNotSourceCompany):
		return Decision{State: Unauthenticated, Reason: auth.UserMessage(err)}
	}
	return Decision{State: PendingOrUnapproved, Reason: auth.UserMessage(err), Session: sess}
}

// SessionReader is the part of sessions.Store the gate needs.
type SessionReader interface {
	Get(ctx context.Context) (sessions.Session, bool)
	Clear(ctx context.Context) error
}

// Gate evaluates the session of the current request.
type Gate struct{}

func New() *Gate {
	return &Gate{}
}

// Check reads the session and evaluates it. Sessions that can never be
// authorized here (wrong company type) are cleared.
func (g *Gate) Check(ctx context.Context, store SessionReader) Decision {
	sess, ok := store.Get(ctx)
	decision := Evaluate(sess, ok)

	if ok && decision.State == Unauthenticated {
		log.Info().Msg("Clearing session that cannot use this portal")
		if err := store.Clear(ctx); err != nil {
			log.Err(err).Msg("Failed to clear session")
		}
	}
	return decision
}
