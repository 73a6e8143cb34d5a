package agreements

import (
	"strings"

	portalerrors "github.com/jrsteele09/go-source-portal/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status is the lifecycle state of an agreement.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusOffered   Status = "OFFERED"
	StatusAccepted  Status = "ACCEPTED"
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusExpired   Status = "EXPIRED"
	StatusRejected  Status = "REJECTED"
)

// legacyDrafted is how the creation endpoint spells StatusDraft
const legacyDrafted = "DRAFTED"

// Statuses lists every status in display order
var Statuses = []Status{
	StatusDraft,
	StatusOffered,
	StatusAccepted,
	StatusActive,
	StatusSuspended,
	StatusExpired,
	StatusRejected,
}

// ParseStatus maps an API status string onto a Status. DRAFTED and DRAFT are
// the same state; anything unrecognised is an error rather than a guess.
func ParseStatus(raw string) (Status, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == legacyDrafted {
		log.Debug().Str("status", raw).Msg("Reconciled DRAFTED to DRAFT")
		return StatusDraft, nil
	}
	for _, known := range Statuses {
		if Status(s) == known {
			return known, nil
		}
	}
	return "", errors.Wrapf(portalerrors.ErrUnknownStatus, "%q", raw)
}

// Label is the human readable form used in views, e.g. "Offered"
func (s Status) Label() string {
	// Casers are stateful, so one per call
	return cases.Title(language.English).String(strings.ToLower(string(s)))
}

// CanTransition reports whether the portal itself may move an agreement from
// one status to another. Only offering a draft is initiated here; every other
// transition is made by the remote system and only observed.
func CanTransition(from, to Status) bool {
	return from == StatusDraft && to == StatusOffered
}

// Filter selects agreements by status. FilterAll selects everything.
type Filter string

const FilterAll Filter = "ALL"

// ParseFilter accepts "", "ALL" or any status spelling ParseStatus accepts.
func ParseFilter(raw string) (Filter, error) {
	if strings.TrimSpace(raw) == "" || strings.EqualFold(strings.TrimSpace(raw), string(FilterAll)) {
		return FilterAll, nil
	}
	s, err := ParseStatus(raw)
	if err != nil {
		return "", err
	}
	return Filter(s), nil
}

// Matches reports whether an agreement with status s passes the filter
func (f Filter) Matches(s Status) bool {
	return f == FilterAll || f == "" || Status(f) == s
}

// Label is the human readable form of the filter
func (f Filter) Label() string {
	if f == FilterAll || f == "" {
		return "All"
	}
	return Status(f).Label()
}
