package agreements

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-source-portal/apiclient"
	portalerrors "github.com/jrsteele09/go-source-portal/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// API paths of the remote agreement endpoints
const (
	PathAgents         = "/agreements/all"
	PathAgreements     = "/agreements"
	PathCheckDuplicate = "/agreements/check-duplicate"
)

// AgreementPath is the detail path of one agreement
func AgreementPath(id string) string {
	return PathAgreements + "/" + url.PathEscape(id)
}

// OfferPath is the offer action path of one agreement
func OfferPath(id string) string {
	return AgreementPath(id) + "/offer"
}

// CreateInput is the data of a new agreement.
type CreateInput struct {
	AgentID      string
	SourceID     string
	AgreementRef string
	ValidFrom    time.Time
	ValidTo      time.Time
}

// Validate checks the fields before any request is made
func (in CreateInput) Validate() error {
	switch {
	case strings.TrimSpace(in.AgentID) == "":
		return errors.Wrap(portalerrors.ErrValidation, "agent is required")
	case strings.TrimSpace(in.SourceID) == "":
		return errors.Wrap(portalerrors.ErrValidation, "source is required")
	case strings.TrimSpace(in.AgreementRef) == "":
		return errors.Wrap(portalerrors.ErrValidation, "agreement reference is required")
	case in.ValidFrom.IsZero() || in.ValidTo.IsZero():
		return errors.Wrap(portalerrors.ErrValidation, "both validity dates are required")
	case !in.ValidFrom.Before(in.ValidTo):
		return errors.Wrap(portalerrors.ErrValidation, "valid from must be before valid to")
	}
	return nil
}

// Service reads and writes agreements through the remote API.
type Service struct {
	api apiclient.Doer
}

func NewService(api apiclient.Doer) (*Service, error) {
	if api == nil {
		return nil, errors.New("[NewService] api client is required")
	}
	return &Service{api: api}, nil
}

// ListAgents returns every agent with its agreement summaries and counts
func (s *Service) ListAgents(ctx context.Context) ([]Agent, error) {
	r, err := s.get(ctx, PathAgents, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.ListAgents]")
	}
	agents, err := parseAgentList(r)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.ListAgents]")
	}
	return agents, nil
}

// FetchMine returns the source's complete agreement set
func (s *Service) FetchMine(ctx context.Context) (AgreementSet, error) {
	r, err := s.get(ctx, PathAgreements, url.Values{"scope": {"source"}})
	if err != nil {
		return AgreementSet{}, errors.Wrap(err, "[Service.FetchMine]")
	}
	list, err := parseAgreementList(r)
	if err != nil {
		return AgreementSet{}, errors.Wrap(err, "[Service.FetchMine]")
	}
	return NewAgreementSet(list), nil
}

// ListMine returns the source's agreements matching filter. The filter is
// applied locally so the counts cover the full set.
func (s *Service) ListMine(ctx context.Context, filter Filter) (MyAgreements, error) {
	set, err := s.FetchMine(ctx)
	if err != nil {
		return MyAgreements{}, err
	}
	return set.Select(filter), nil
}

// Get returns one agreement, whichever field naming the API used
func (s *Service) Get(ctx context.Context, id string) (Agreement, error) {
	if strings.TrimSpace(id) == "" {
		return Agreement{}, errors.Wrap(portalerrors.ErrValidation, "[Service.Get] id is required")
	}
	r, err := s.get(ctx, AgreementPath(id), nil)
	if err != nil {
		return Agreement{}, errors.Wrap(err, "[Service.Get]")
	}
	a, err := parseAgreement(unwrap(r, "agreement", "data"))
	if err != nil {
		return Agreement{}, errors.Wrap(err, "[Service.Get]")
	}
	return a, nil
}

// CheckDuplicate asks whether agreementRef is already used between this agent and source
func (s *Service) CheckDuplicate(ctx context.Context, agreementRef, agentID, sourceID string) (DuplicateResult, error) {
	var raw json.RawMessage
	err := s.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   PathCheckDuplicate,
		Body: map[string]string{
			"agreementRef": strings.TrimSpace(agreementRef),
			"agentId":      agentID,
			"sourceId":     sourceID,
		},
	}, &raw)
	if err != nil {
		return DuplicateResult{}, errors.Wrap(err, "[Service.CheckDuplicate]")
	}

	r := unwrap(gjson.ParseBytes(raw), "data")
	dup := pick(r, "duplicate", "isDuplicate", "is_duplicate")
	if !dup.Exists() {
		return DuplicateResult{}, errors.Wrap(portalerrors.ErrInvalidResponse, "[Service.CheckDuplicate] duplicate flag missing")
	}
	return DuplicateResult{
		Duplicate:  dup.Bool(),
		ExistingID: pick(r, "existingId", "existing_id", "existingAgreementId", "existing_agreement_id").String(),
	}, nil
}

// Create validates the input, refuses a duplicate reference and creates the
// agreement in DRAFT.
func (s *Service) Create(ctx context.Context, in CreateInput) (Agreement, error) {
	in.AgreementRef = strings.TrimSpace(in.AgreementRef)
	if err := in.Validate(); err != nil {
		return Agreement{}, err
	}

	dup, err := s.CheckDuplicate(ctx, in.AgreementRef, in.AgentID, in.SourceID)
	if err != nil {
		return Agreement{}, errors.Wrap(err, "[Service.Create]")
	}
	if dup.Duplicate {
		return Agreement{}, errors.Wrapf(portalerrors.ErrDuplicateAgreement, "[Service.Create] %s exists as %s", in.AgreementRef, dup.ExistingID)
	}

	var raw json.RawMessage
	err = s.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   PathAgreements,
		Body: map[string]string{
			"agentId":      in.AgentID,
			"sourceId":     in.SourceID,
			"agreementRef": in.AgreementRef,
			"validFrom":    in.ValidFrom.UTC().Format(time.RFC3339),
			"validTo":      in.ValidTo.UTC().Format(time.RFC3339),
		},
	}, &raw)
	if err != nil {
		return Agreement{}, errors.Wrap(err, "[Service.Create]")
	}

	a, err := parseAgreement(unwrap(gjson.ParseBytes(raw), "agreement", "data"))
	if err != nil {
		return Agreement{}, errors.Wrap(err, "[Service.Create]")
	}
	log.Info().Str("agreement_id", a.ID).Str("ref", a.AgreementRef).Msg("Agreement created")
	return a, nil
}

// Offer moves a DRAFT agreement to OFFERED. When the API does not echo the
// agreement back, current is returned with its new status.
func (s *Service) Offer(ctx context.Context, current Agreement) (Agreement, error) {
	if !CanTransition(current.Status, StatusOffered) {
		return Agreement{}, errors.Wrapf(portalerrors.ErrInvalidTransition, "[Service.Offer] %s to %s", current.Status, StatusOffered)
	}

	var raw json.RawMessage
	err := s.api.Do(ctx, apiclient.Request{
		Method:     http.MethodPost,
		Path:       OfferPath(current.ID),
		AllowEmpty: true,
	}, &raw)
	if err != nil {
		return Agreement{}, errors.Wrap(err, "[Service.Offer]")
	}

	r := unwrap(gjson.ParseBytes(raw), "agreement", "data")
	if len(raw) == 0 || !r.Get("id").Exists() {
		offered := current
		offered.Status = StatusOffered
		return offered, nil
	}
	a, err := parseAgreement(r)
	if err != nil {
		return Agreement{}, errors.Wrap(err, "[Service.Offer]")
	}
	log.Info().Str("agreement_id", a.ID).Str("status", string(a.Status)).Msg("Agreement offered")
	return a, nil
}

func (s *Service) get(ctx context.Context, path string, query url.Values) (gjson.Result, error) {
	var raw json.RawMessage
	if err := s.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: path, Query: query}, &raw); err != nil {
		return gjson.Result{}, err
	}
	return gjson.ParseBytes(raw), nil
}
