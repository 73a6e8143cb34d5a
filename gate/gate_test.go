package gate_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-source-portal/gate"
	"github.com/jrsteele09/go-source-portal/sessions"
	"github.com/jrsteele09/go-source-portal/sessions/repofakes"
	"github.com/jrsteele09/go-source-portal/users"
	"github.com/stretchr/testify/require"
)

func user(typ users.CompanyType, approval users.ApprovalStatus, status users.CompanyStatus) *users.User {
	return &users.User{
		ID:    "user-1",
		Email: "ops@rentals.example",
		Company: &users.Company{
			ID:             "company-1",
			Type:           typ,
			ApprovalStatus: approval,
			Status:         status,
		},
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		sess   sessions.Session
		ok     bool
		want   gate.State
		reason string
	}{
		{"no session", sessions.Session{}, false, gate.Unauthenticated, "log in"},
		{"token without user", sessions.Session{Token: "t"}, true, gate.Unauthenticated, "log in"},
		{"approved and active", sessions.Session{Token: "t", User: user(users.CompanyTypeSource, users.ApprovalApproved, users.CompanyActive)}, true, gate.Authorized, ""},
		{"pending", sessions.Session{Token: "t", User: user(users.CompanyTypeSource, users.ApprovalPending, users.CompanyPendingVerification)}, true, gate.PendingOrUnapproved, "pending admin approval"},
		{"rejected", sessions.Session{Token: "t", User: user(users.CompanyTypeSource, users.ApprovalRejected, users.CompanyActive)}, true, gate.PendingOrUnapproved, "rejected"},
		{"approved but suspended", sessions.Session{Token: "t", User: user(users.CompanyTypeSource, users.ApprovalApproved, users.CompanySuspended)}, true, gate.PendingOrUnapproved, "SUSPENDED"},
		{"agent company", sessions.Session{Token: "t", User: user(users.CompanyTypeAgent, users.ApprovalApproved, users.CompanyActive)}, true, gate.Unauthenticated, "source companies"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := gate.Evaluate(tt.sess, tt.ok)
			require.Equal(t, tt.want, d.State, d.State.String())
			require.Contains(t, d.Reason, tt.reason)
			require.Equal(t, tt.want == gate.Authorized, d.Allowed())
		})
	}
}

func TestGate_Check(t *testing.T) {
	ctx := context.Background()
	g := gate.New()

	t.Run("unapproved never reaches protected content", func(t *testing.T) {
		store := sessions.NewStore(repofakes.NewFakeKeyValue())
		require.NoError(t, store.Set(ctx, "t", "r", user(users.CompanyTypeSource, users.ApprovalPending, users.CompanyActive)))

		d := g.Check(ctx, store)
		require.Equal(t, gate.PendingOrUnapproved, d.State)
		// The pending view keeps the session so the user can check again
		require.True(t, store.IsAuthenticated(ctx))
	})

	t.Run("malformed user fails closed", func(t *testing.T) {
		kv := repofakes.NewFakeKeyValue()
		kv.Put(sessions.KeyToken, "t")
		kv.Put(sessions.KeyUser, "{not json")
		store := sessions.NewStore(kv)

		d := g.Check(ctx, store)
		require.Equal(t, gate.Unauthenticated, d.State)
		require.Equal(t, 0, kv.Len())
	})

	t.Run("non source session is cleared", func(t *testing.T) {
		store := sessions.NewStore(repofakes.NewFakeKeyValue())
		require.NoError(t, store.Set(ctx, "t", "r", user(users.CompanyTypeAgent, users.ApprovalApproved, users.CompanyActive)))

		d := g.Check(ctx, store)
		require.Equal(t, gate.Unauthenticated, d.State)
		require.False(t, store.IsAuthenticated(ctx))
	})

	t.Run("authorized carries the session", func(t *testing.T) {
		store := sessions.NewStore(repofakes.NewFakeKeyValue())
		require.NoError(t, store.Set(ctx, "t", "r", user(users.CompanyTypeSource, users.ApprovalApproved, users.CompanyActive)))

		d := g.Check(ctx, store)
		require.True(t, d.Allowed())
		require.Equal(t, "t", d.Session.Token)
	})
}
