/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package startcmd wires the issuance services and starts the REST server.
package startcmd

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/trustmesh/vci/internal/logfields"
	"github.com/trustmesh/vci/pkg/doc/keydid"
	"github.com/trustmesh/vci/pkg/event/inprocess"
	"github.com/trustmesh/vci/pkg/event/spi"
	"github.com/trustmesh/vci/pkg/restapi/v1/issuer"
	"github.com/trustmesh/vci/pkg/service/credentialstatus"
	"github.com/trustmesh/vci/pkg/service/dataagreement"
	"github.com/trustmesh/vci/pkg/service/issuance"
	"github.com/trustmesh/vci/pkg/service/wellknown"
	"github.com/trustmesh/vci/pkg/storage/memstore"
	"github.com/trustmesh/vci/pkg/storage/mongodb"
	"github.com/trustmesh/vci/pkg/storage/mongodb/agreementstore"
	"github.com/trustmesh/vci/pkg/storage/mongodb/offerstore"
	"github.com/trustmesh/vci/pkg/storage/mongodb/statusliststore"
)

var logger = log.New("vci-rest-startcmd")

const eventBusBuffer = 256

// GetStartCmd returns the Cobra start command.
func GetStartCmd() *cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start vci-rest",
		Long:  "Start the credential issuance REST server",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := getStartupParameters(cmd)
			if err != nil {
				return err
			}

			return startServer(params)
		},
	}

	createFlags(startCmd)

	return startCmd
}

type stores struct {
	offers     issuanceOfferStore
	agreements agreementStore
	statusList statusListStore
	close      func() error
}

type issuanceOfferStore interface {
	Create(ctx context.Context, offer *issuance.CredentialOffer) (*issuance.CredentialOffer, error)
	Get(ctx context.Context, id string) (*issuance.CredentialOffer, error)
	FindByAuthorisationState(ctx context.Context, state string) (*issuance.CredentialOffer, error)
	FindByAuthorizationCode(ctx context.Context, code string) (*issuance.CredentialOffer, error)
	FindByPreAuthorisedCode(ctx context.Context, code string) (*issuance.CredentialOffer, error)
	FindByAccessToken(ctx context.Context, token string) (*issuance.CredentialOffer, error)
	FindByAcceptanceToken(ctx context.Context, token string) (*issuance.CredentialOffer, error)
	ListByAgreement(ctx context.Context, agreementID string) ([]*issuance.CredentialOffer, error)
	Update(ctx context.Context, offer *issuance.CredentialOffer) error
	UpdateIfStatus(ctx context.Context, offer *issuance.CredentialOffer, expected issuance.OfferStatus) error
	Delete(ctx context.Context, id string) error
}

type agreementStore interface {
	Create(ctx context.Context, agreement *dataagreement.Agreement) (*dataagreement.Agreement, error)
	GetByID(ctx context.Context, id string) (*dataagreement.Agreement, error)
	GetByPurposeAndOrganisationID(ctx context.Context, organisationID, purpose string) (*dataagreement.Agreement, error)
	ListByOrganisationID(ctx context.Context, organisationID string) ([]*dataagreement.Agreement, error)
}

type statusListStore interface {
	Get(ctx context.Context, organisationID string) (*credentialstatus.StatusList, error)
	UpsertIfVersion(ctx context.Context, list *credentialstatus.StatusList, expected int) error
}

type identityRegistry struct {
	identity *keydid.Identity
}

func (r *identityRegistry) Identity(_ context.Context, _ string) (*keydid.Identity, error) {
	return r.identity, nil
}

func startServer(params *startupParameters) error {
	identity, err := buildIdentity(params.identitySeed)
	if err != nil {
		return fmt.Errorf("build organisation identity: %w", err)
	}

	logger.Info("organisation identity ready",
		logfields.WithOrganisationID(params.organisationID), log.WithURL(identity.DID))

	storeSet, err := buildStores(params)
	if err != nil {
		return err
	}

	if storeSet.close != nil {
		defer storeSet.close() //nolint: errcheck
	}

	bus := inprocess.NewBus(eventBusBuffer)
	defer bus.Close()

	bus.Subscribe(spi.IssuerEventTopic, logEvent)
	bus.Subscribe(spi.CredentialStatusEventTopic, logEvent)

	identities := &identityRegistry{identity: identity}

	agreementSvc := dataagreement.NewService(&dataagreement.Config{
		Store: storeSet.agreements,
	})

	statusSvc := credentialstatus.New(&credentialstatus.Config{
		Store:            storeSet.statusList,
		IdentityProvider: identities,
		EventService:     bus,
		IssuerDomain:     params.hostURLExternal,
	})

	issuanceSvc := issuance.NewService(&issuance.Config{
		OfferStore:        storeSet.offers,
		AgreementService:  agreementSvc,
		StatusListManager: statusSvc,
		IdentityProvider:  identities,
		EventService:      bus,
		PinGenerator:      issuance.NewPinGenerator(),
		IssuerDomain:      params.hostURLExternal,
	})

	controller := issuer.NewController(&issuer.Config{
		IssuanceService:   issuanceSvc,
		AgreementService:  agreementSvc,
		StatusListService: statusSvc,
		WellKnownService:  wellknown.NewService(&wellknown.Config{ExternalHostURL: params.hostURLExternal}),
		OrganisationID:    params.organisationID,
	})

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())

	controller.Register(e)

	logger.Info("starting vci-rest server", log.WithURL(params.hostURL))

	return e.Start(params.hostURL)
}

func buildIdentity(seed []byte) (*keydid.Identity, error) {
	if len(seed) > 0 {
		return keydid.FromSeed(seed)
	}

	return keydid.NewEd25519(nil)
}

func buildStores(params *startupParameters) (*stores, error) {
	if params.databaseType == databaseTypeMem {
		return &stores{
			offers:     memstore.NewOfferStore(),
			agreements: memstore.NewAgreementStore(),
			statusList: memstore.NewStatusListStore(),
		}, nil
	}

	mongoClient, err := mongodb.New(params.databaseURL, params.databaseName)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	ctx, cancel := mongoClient.ContextWithTimeout()
	defer cancel()

	offers, err := offerstore.New(ctx, mongoClient)
	if err != nil {
		return nil, fmt.Errorf("create offer store: %w", err)
	}

	agreements, err := agreementstore.New(ctx, mongoClient)
	if err != nil {
		return nil, fmt.Errorf("create agreement store: %w", err)
	}

	statusLists, err := statusliststore.New(ctx, mongoClient)
	if err != nil {
		return nil, fmt.Errorf("create status list store: %w", err)
	}

	return &stores{
		offers:     offers,
		agreements: agreements,
		statusList: statusLists,
		close:      mongoClient.Close,
	}, nil
}

func logEvent(_ context.Context, event *spi.Event) error {
	logger.Debug("domain event", logfields.WithEvent(event))

	return nil
}
