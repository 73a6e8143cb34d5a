package agreements

import (
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/go-source-portal/users"
)

// Decision says whether an action is enabled and, when it is not, why.
type Decision struct {
	Enabled bool
	Reason  string
}

func enabled() Decision {
	return Decision{Enabled: true}
}

func disabled(reason string) Decision {
	return Decision{Reason: reason}
}

// Account is the account state both actions depend on.
type Account struct {
	CompanyStatus      users.CompanyStatus
	GRPCEndpoint       string
	ConnectivityPassed bool
}

// AccountFromUser builds the account conditions of a session user.
// connectivityPassed must refer to the user's current endpoint.
func AccountFromUser(u *users.User, connectivityPassed bool) Account {
	return Account{
		CompanyStatus:      u.CompanyStatus(),
		GRPCEndpoint:       u.GRPCEndpoint(),
		ConnectivityPassed: connectivityPassed,
	}
}

// CreateConditions is the current state of the create form.
type CreateConditions struct {
	AgentID      string
	AgreementRef string
	ValidFrom    time.Time
	ValidTo      time.Time
	Account      Account
}

// OfferConditions is the state of one agreement row.
type OfferConditions struct {
	Status  Status
	Account Account
}

// CanCreate evaluates the create action. Checks run top to bottom and the
// first failing one gives the reason: form fields, then account, then
// connectivity.
func CanCreate(c CreateConditions) Decision {
	switch {
	case strings.TrimSpace(c.AgentID) == "":
		return disabled("Please select an agent to create an agreement")
	case strings.TrimSpace(c.AgreementRef) == "":
		return disabled("Please enter an agreement reference")
	case c.ValidFrom.IsZero() || c.ValidTo.IsZero():
		return disabled("Please select both valid from and valid to dates")
	case !c.ValidFrom.Before(c.ValidTo):
		return disabled("Valid to date must be after valid from date")
	}
	return AccountDecision(c.Account, "create agreements")
}

// CanOffer evaluates the offer action of one agreement.
func CanOffer(c OfferConditions) Decision {
	if !CanTransition(c.Status, StatusOffered) {
		return disabled("Only draft agreements can be offered")
	}
	return AccountDecision(c.Account, "offer agreements")
}

// AccountDecision evaluates only the account checks of an action, for views
// that need to know whether the account side is ready before a form is filled.
func AccountDecision(a Account, action string) Decision {
	switch {
	case a.CompanyStatus != users.CompanyActive:
		status := string(a.CompanyStatus)
		if status == "" {
			status = "unknown"
		}
		return disabled(fmt.Sprintf("Your company status is %s. Only ACTIVE companies can %s", status, action))
	case strings.TrimSpace(a.GRPCEndpoint) == "":
		return disabled(fmt.Sprintf("Please configure your gRPC endpoint before you %s", action))
	case !a.ConnectivityPassed:
		return disabled(fmt.Sprintf("Please run a successful gRPC connection test before you %s", action))
	}
	return enabled()
}
