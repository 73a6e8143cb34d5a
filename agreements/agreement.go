package agreements

import (
	"strings"
	"time"

	portalerrors "github.com/jrsteele09/go-source-portal/internal/errors"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Party is the counterparty or owner summary embedded in an agreement.
type Party struct {
	ID          string
	CompanyName string
	Email       string
}

// Agreement is the canonical agreement record. Whatever shape the API sends,
// only this type leaves the package.
type Agreement struct {
	ID           string
	AgentID      string
	SourceID     string
	AgreementRef string
	Status       Status
	ValidFrom    time.Time
	ValidTo      time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Agent        *Party
	Source       *Party
}

// AgentAgreement is the per-agent agreement summary in the agents listing.
type AgentAgreement struct {
	ID           string
	AgreementRef string
	Status       Status
	ValidFrom    time.Time
	ValidTo      time.Time
}

// Agent is a counterparty together with the agreements it holds with this source.
type Agent struct {
	ID                   string
	CompanyName          string
	Email                string
	Status               string
	Agreements           []AgentAgreement
	AgreementCount       int
	ActiveAgreementCount int
}

// Counts is the per-status tally of a full agreement set.
type Counts struct {
	All      int
	ByStatus map[Status]int
}

// Of returns the count for a filter
func (c Counts) Of(f Filter) int {
	if f == FilterAll || f == "" {
		return c.All
	}
	return c.ByStatus[Status(f)]
}

// CountAgreements tallies agreements by status
func CountAgreements(list []Agreement) Counts {
	c := Counts{All: len(list), ByStatus: make(map[Status]int, len(Statuses))}
	for _, a := range list {
		c.ByStatus[a.Status]++
	}
	return c
}

// AgreementSet is the complete list of the source's own agreements.
type AgreementSet struct {
	Agreements []Agreement
	Counts     Counts
}

// NewAgreementSet builds a set and its counts
func NewAgreementSet(list []Agreement) AgreementSet {
	return AgreementSet{Agreements: list, Counts: CountAgreements(list)}
}

// MyAgreements is a filtered view over a full set. Counts always describe the
// full set so every filter tab can show its total.
type MyAgreements struct {
	Filter     Filter
	Agreements []Agreement
	Counts     Counts
}

// Select applies a filter without touching the counts
func (s AgreementSet) Select(f Filter) MyAgreements {
	if f == "" {
		f = FilterAll
	}
	out := make([]Agreement, 0, len(s.Agreements))
	for _, a := range s.Agreements {
		if f.Matches(a.Status) {
			out = append(out, a)
		}
	}
	return MyAgreements{Filter: f, Agreements: out, Counts: s.Counts}
}

// DuplicateResult is the answer of the duplicate reference check.
type DuplicateResult struct {
	Duplicate  bool
	ExistingID string
}

// pick returns the first of the given paths present in r. Paths list the
// camelCase spelling first and the snake_case one after.
func pick(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

// unwrap strips the envelope some endpoints put around a payload.
func unwrap(r gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() && (v.IsObject() || v.IsArray()) {
			return v
		}
	}
	return r
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseTime(r gjson.Result) (time.Time, error) {
	raw := strings.TrimSpace(r.String())
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognised timestamp %q", raw)
}

func parseParty(r gjson.Result) *Party {
	if !r.IsObject() {
		return nil
	}
	return &Party{
		ID:          pick(r, "id").String(),
		CompanyName: pick(r, "companyName", "company_name", "name").String(),
		Email:       pick(r, "email").String(),
	}
}

// parseAgreement is the single normalization boundary for agreement payloads.
func parseAgreement(r gjson.Result) (Agreement, error) {
	if !r.IsObject() {
		return Agreement{}, errors.Wrap(portalerrors.ErrInvalidResponse, "agreement is not an object")
	}

	a := Agreement{
		ID:           pick(r, "id").String(),
		AgentID:      pick(r, "agentId", "agent_id", "agent.id").String(),
		SourceID:     pick(r, "sourceId", "source_id", "source.id").String(),
		AgreementRef: pick(r, "agreementRef", "agreement_ref", "ref").String(),
		Agent:        parseParty(pick(r, "agent")),
		Source:       parseParty(pick(r, "source")),
	}
	if a.ID == "" {
		return Agreement{}, errors.Wrap(portalerrors.ErrInvalidResponse, "agreement id missing")
	}

	status, err := ParseStatus(pick(r, "status").String())
	if err != nil {
		return Agreement{}, errors.Wrapf(portalerrors.ErrInvalidResponse, "agreement %s: %v", a.ID, err)
	}
	a.Status = status

	times := []struct {
		dst   *time.Time
		paths []string
	}{
		{&a.ValidFrom, []string{"validFrom", "valid_from"}},
		{&a.ValidTo, []string{"validTo", "valid_to"}},
		{&a.CreatedAt, []string{"createdAt", "created_at"}},
		{&a.UpdatedAt, []string{"updatedAt", "updated_at"}},
	}
	for _, f := range times {
		t, err := parseTime(pick(r, f.paths...))
		if err != nil {
			return Agreement{}, errors.Wrapf(portalerrors.ErrInvalidResponse, "agreement %s: %v", a.ID, err)
		}
		*f.dst = t
	}
	return a, nil
}

func parseAgreementList(r gjson.Result) ([]Agreement, error) {
	list := unwrap(r, "items", "data", "agreements")
	if !list.IsArray() {
		return nil, errors.Wrap(portalerrors.ErrInvalidResponse, "agreement list is not an array")
	}

	out := make([]Agreement, 0, len(list.Array()))
	for _, item := range list.Array() {
		a, err := parseAgreement(item)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func parseAgent(r gjson.Result) (Agent, error) {
	agent := Agent{
		ID:          pick(r, "id").String(),
		CompanyName: pick(r, "companyName", "company_name").String(),
		Email:       pick(r, "email").String(),
		Status:      pick(r, "status").String(),
	}
	if agent.ID == "" {
		return Agent{}, errors.Wrap(portalerrors.ErrInvalidResponse, "agent id missing")
	}

	active := 0
	for _, item := range pick(r, "agreements").Array() {
		status, err := ParseStatus(pick(item, "status").String())
		if err != nil {
			return Agent{}, errors.Wrapf(portalerrors.ErrInvalidResponse, "agent %s: %v", agent.ID, err)
		}
		from, err := parseTime(pick(item, "validFrom", "valid_from"))
		if err != nil {
			return Agent{}, errors.Wrapf(portalerrors.ErrInvalidResponse, "agent %s: %v", agent.ID, err)
		}
		to, err := parseTime(pick(item, "validTo", "valid_to"))
		if err != nil {
			return Agent{}, errors.Wrapf(portalerrors.ErrInvalidResponse, "agent %s: %v", agent.ID, err)
		}
		if status == StatusActive {
			active++
		}
		agent.Agreements = append(agent.Agreements, AgentAgreement{
			ID:           pick(item, "id").String(),
			AgreementRef: pick(item, "agreementRef", "agreement_ref", "ref").String(),
			Status:       status,
			ValidFrom:    from,
			ValidTo:      to,
		})
	}

	// Counts come from the API when present, otherwise from the embedded list
	agent.AgreementCount = len(agent.Agreements)
	if v := pick(r, "agreementCount", "agreement_count", "_count.agreements"); v.Exists() {
		agent.AgreementCount = int(v.Int())
	}
	agent.ActiveAgreementCount = active
	if v := pick(r, "activeAgreementCount", "active_agreement_count"); v.Exists() {
		agent.ActiveAgreementCount = int(v.Int())
	}
	return agent, nil
}

func parseAgentList(r gjson.Result) ([]Agent, error) {
	list := unwrap(r, "items", "data", "agents")
	if !list.IsArray() {
		return nil, errors.Wrap(portalerrors.ErrInvalidResponse, "agent list is not an array")
	}

	out := make([]Agent, 0, len(list.Array()))
	for _, item := range list.Array() {
		agent, err := parseAgent(item)
		if err != nil {
			return nil, err
		}
		out = append(out, agent)
	}
	return out, nil
}
