/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package issuance implements the OpenID4VCI issuance protocol engine: the
// credential offer state machine, authorization binding, token exchange and
// credential issuance, immediate or deferred.
package issuance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/trustmesh/vci/pkg/doc/joseutil"
	"github.com/trustmesh/vci/pkg/doc/keydid"
	"github.com/trustmesh/vci/pkg/event/spi"
	"github.com/trustmesh/vci/pkg/service/dataagreement"
)

var logger = log.New("issuance")

const (
	// GrantTypeAuthorizationCode is the authorization-code grant with PKCE.
	GrantTypeAuthorizationCode = "authorization_code"
	// GrantTypePreAuthorizedCode is the pre-authorized-code grant.
	GrantTypePreAuthorizedCode = "urn:ietf:params:oauth:grant-type:pre-authorized_code"

	// FormatJWTVC is the only credential format served.
	FormatJWTVC = "jwt_vc"

	accessTokenExpiry = 24 * time.Hour

	// preAuthorisedCodeExpiry bounds how long a minted pre-authorized code
	// stays redeemable.
	preAuthorisedCodeExpiry = 24 * time.Hour

	// acceptanceTokenExpiry bounds deferred polling; backing data that takes
	// longer than this to arrive requires a fresh offer.
	acceptanceTokenExpiry = 30 * 24 * time.Hour
)

type offerStore interface {
	Create(ctx context.Context, offer *CredentialOffer) (*CredentialOffer, error)
	Get(ctx context.Context, id string) (*CredentialOffer, error)
	FindByAuthorisationState(ctx context.Context, state string) (*CredentialOffer, error)
	FindByAuthorizationCode(ctx context.Context, code string) (*CredentialOffer, error)
	FindByPreAuthorisedCode(ctx context.Context, code string) (*CredentialOffer, error)
	FindByAccessToken(ctx context.Context, token string) (*CredentialOffer, error)
	FindByAcceptanceToken(ctx context.Context, token string) (*CredentialOffer, error)
	ListByAgreement(ctx context.Context, agreementID string) ([]*CredentialOffer, error)
	Update(ctx context.Context, offer *CredentialOffer) error
	// UpdateIfStatus persists offer only when its stored status equals expected,
	// giving single-writer semantics for one-time codes and tokens.
	UpdateIfStatus(ctx context.Context, offer *CredentialOffer, expected OfferStatus) error
	Delete(ctx context.Context, id string) error
}

type agreementService interface {
	GetByID(ctx context.Context, id string) (*dataagreement.Agreement, error)
}

type statusListManager interface {
	Allocate(ctx context.Context, organisationID string) (int, error)
	SetStatus(ctx context.Context, organisationID string, index int, revoked bool) error
}

type identityProvider interface {
	Identity(ctx context.Context, organisationID string) (*keydid.Identity, error)
}

type eventService interface {
	Publish(ctx context.Context, topic string, events ...*spi.Event) error
}

type pinGenerator interface {
	Generate() string
	Validate(expected, got string) bool
}

// Config holds configuration options and dependencies for Service.
type Config struct {
	OfferStore        offerStore
	AgreementService  agreementService
	StatusListManager statusListManager
	IdentityProvider  identityProvider
	EventService      eventService
	PinGenerator      pinGenerator
	IssuerDomain      string
	Clock             joseutil.Clock
}

// Service drives the issuance protocol for one deployment.
type Service struct {
	store        offerStore
	agreements   agreementService
	statusList   statusListManager
	identities   identityProvider
	eventSvc     eventService
	pinGenerator pinGenerator
	issuerDomain string
	now          joseutil.Clock
	verifier     *joseutil.Verifier
}

// NewService returns a new Service instance.
func NewService(cfg *Config) *Service {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &Service{
		store:        cfg.OfferStore,
		agreements:   cfg.AgreementService,
		statusList:   cfg.StatusListManager,
		identities:   cfg.IdentityProvider,
		eventSvc:     cfg.EventService,
		pinGenerator: cfg.PinGenerator,
		issuerDomain: cfg.IssuerDomain,
		now:          now,
		verifier:     joseutil.NewVerifier(joseutil.WithVerifierClock(now)),
	}
}

// allowedStateTransitions guards every offer mutation. A transition absent from
// the map is a protocol violation and fails without a state commit.
var allowedStateTransitions = map[OfferStatus][]OfferStatus{
	OfferStatusCreated:            {OfferStatusAuthorizationBound, OfferStatusTokenIssued},
	OfferStatusAuthorizationBound: {OfferStatusTokenIssued},
	OfferStatusTokenIssued:        {OfferStatusCredentialIssued, OfferStatusCredentialDeferred},
	OfferStatusCredentialDeferred: {OfferStatusCredentialIssued},
}

func validateStateTransition(from, to OfferStatus) error {
	for _, allowed := range allowedStateTransitions[from] {
		if allowed == to {
			return nil
		}
	}

	return fmt.Errorf("%w: state transition %s -> %s not allowed", ErrUpdateCredentialOffer, from, to)
}

func (s *Service) signer(ctx context.Context, organisationID string) (*joseutil.Signer, error) {
	identity, err := s.identities.Identity(ctx, organisationID)
	if err != nil {
		return nil, fmt.Errorf("resolve organisation identity: %w", err)
	}

	return joseutil.NewSigner(identity, joseutil.WithClock(s.now)), nil
}

func (s *Service) sendOfferEvent(ctx context.Context, offer *CredentialOffer, eventType spi.EventType) {
	if s.eventSvc == nil {
		return
	}

	event := spi.NewEvent(s.issuerDomain, eventType, s.now())
	event.OfferID = offer.ID

	payload, err := json.Marshal(map[string]string{
		"dataAgreementId": offer.DataAgreementID,
		"status":          string(offer.Status),
	})
	if err == nil {
		event.Data = payload
	}

	if err := s.eventSvc.Publish(ctx, spi.IssuerEventTopic, event); err != nil {
		logger.Warn("publish issuer event failed, ignoring", log.WithError(err))
	}
}
