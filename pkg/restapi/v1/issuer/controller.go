/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package issuer exposes the issuance protocol endpoints over HTTP.
package issuer

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trustmesh/vci/pkg/service/dataagreement"
	"github.com/trustmesh/vci/pkg/service/issuance"
	"github.com/trustmesh/vci/pkg/service/wellknown"
)

type issuanceService interface {
	CreateCredentialOffer(ctx context.Context, req *issuance.CreateOfferRequest) (*issuance.CredentialOffer, error)
	GetCredentialOffer(ctx context.Context, offerID string) (*issuance.CredentialOffer, error)
	ListCredentialOffers(ctx context.Context, agreementID string) ([]*issuance.CredentialOffer, error)
	DeleteCredentialOffer(ctx context.Context, offerID string) error
	InitiateCredentialOffer(ctx context.Context, offerID string) (string, error)
	CredentialOfferByReference(ctx context.Context, offerID string) (*issuance.OfferDocument, error)
	UpdateOfferFromAuthorisationRequest(ctx context.Context, req *issuance.AuthorizeRequest) (string, error)
	RequestObjectByReference(ctx context.Context, offerID string) (string, error)
	PresentationRequestByReference(ctx context.Context, offerID string) (string, error)
	HandleDirectPost(ctx context.Context, req *issuance.DirectPostRequest) (string, error)
	CreateAccessToken(ctx context.Context, req *issuance.TokenRequest) (*issuance.TokenResponse, error)
	IssueCredential(ctx context.Context, req *issuance.IssueCredentialRequest) (*issuance.CredentialResponse, error)
	IssueDeferredCredential(ctx context.Context, acceptanceToken string) (*issuance.CredentialResponse, error)
	UpdateDeferredOfferWithAttributeValues(ctx context.Context, offerID string,
		values map[string]interface{}) (*issuance.CredentialOffer, error)
	UpdateRevocationStatus(ctx context.Context, offerID string, revoked bool) (*issuance.CredentialOffer, error)
}

type agreementService interface {
	CreateDataAgreement(ctx context.Context, req *dataagreement.CreateRequest) (*dataagreement.Agreement, error)
	GetByID(ctx context.Context, id string) (*dataagreement.Agreement, error)
	ListByOrganisationID(ctx context.Context, organisationID string) ([]*dataagreement.Agreement, error)
}

type statusListService interface {
	StatusListCredential(ctx context.Context, organisationID string) (string, error)
}

type wellKnownService interface {
	GetOpenIDCredentialIssuerConfig(credentialTypes [][]string) *wellknown.OpenIDCredentialIssuerConfiguration
	GetOpenIDConfiguration() *wellknown.OpenIDConfiguration
}

// Config holds configuration options and dependencies for Controller.
type Config struct {
	IssuanceService   issuanceService
	AgreementService  agreementService
	StatusListService statusListService
	WellKnownService  wellKnownService
	OrganisationID    string
}

// Controller for the issuer API.
type Controller struct {
	issuanceSvc    issuanceService
	agreementSvc   agreementService
	statusListSvc  statusListService
	wellKnownSvc   wellKnownService
	organisationID string
}

// NewController creates a new Controller instance.
func NewController(config *Config) *Controller {
	return &Controller{
		issuanceSvc:    config.IssuanceService,
		agreementSvc:   config.AgreementService,
		statusListSvc:  config.StatusListService,
		wellKnownSvc:   config.WellKnownService,
		organisationID: config.OrganisationID,
	}
}

// Register binds all routes on e.
func (c *Controller) Register(e *echo.Echo) {
	e.GET("/.well-known/openid-credential-issuer", c.GetOpenIDCredentialIssuerConfig)
	e.GET("/.well-known/openid-configuration", c.GetOpenIDConfiguration)

	e.GET("/authorize", c.Authorize)
	e.POST("/direct_post", c.DirectPost)
	e.POST("/token", c.Token)
	e.POST("/credential", c.Credential)
	e.POST("/credential_deferred", c.CredentialDeferred)

	e.GET("/credential-offer/:offerID", c.CredentialOfferByReference)
	e.GET("/credential-offer/:offerID/initiate", c.InitiateCredentialOffer)
	e.GET("/request-uri/:offerID", c.RequestObjectByReference)
	e.GET("/verifiable-presentation/:offerID", c.PresentationRequestByReference)

	e.GET("/credentials/status/:organisationID", c.StatusListCredential)

	e.POST("/credential-schema", c.CreateDataAgreement)
	e.GET("/credential-schemas", c.ListDataAgreements)
	e.GET("/credential-schema/:agreementID", c.GetDataAgreement)

	e.POST("/credential-schema/:agreementID/credential-offer", c.CreateCredentialOffer)
	e.GET("/credential-schema/:agreementID/credential-offers", c.ListCredentialOffers)
	e.GET("/credential-schema/:agreementID/credential-offer/:offerID", c.GetCredentialOffer)
	e.PUT("/credential-schema/:agreementID/credential-offer/:offerID", c.UpdateDeferredOffer)
	e.DELETE("/credential-schema/:agreementID/credential-offer/:offerID", c.DeleteCredentialOffer)
	e.POST("/credential-schema/:agreementID/credential-offer/:offerID/revoke", c.RevokeCredentialOffer)
	e.POST("/credential-schema/:agreementID/credential-offer/:offerID/unrevoke", c.UnrevokeCredentialOffer)
}

// GetOpenIDCredentialIssuerConfig serves GET /.well-known/openid-credential-issuer.
func (c *Controller) GetOpenIDCredentialIssuerConfig(ctx echo.Context) error {
	agreements, err := c.agreementSvc.ListByOrganisationID(ctx.Request().Context(), c.organisationID)
	if err != nil {
		return mapError(err)
	}

	credentialTypes := make([][]string, 0, len(agreements))
	for _, agreement := range agreements {
		credentialTypes = append(credentialTypes, agreement.CredentialTypes)
	}

	return ctx.JSON(http.StatusOK, c.wellKnownSvc.GetOpenIDCredentialIssuerConfig(credentialTypes))
}

// GetOpenIDConfiguration serves GET /.well-known/openid-configuration.
func (c *Controller) GetOpenIDConfiguration(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.wellKnownSvc.GetOpenIDConfiguration())
}

// Authorize serves GET /authorize.
func (c *Controller) Authorize(ctx echo.Context) error {
	redirect, err := c.issuanceSvc.UpdateOfferFromAuthorisationRequest(ctx.Request().Context(),
		&issuance.AuthorizeRequest{
			IssuerState:         ctx.QueryParam("issuer_state"),
			State:               ctx.QueryParam("state"),
			ClientID:            ctx.QueryParam("client_id"),
			CodeChallenge:       ctx.QueryParam("code_challenge"),
			CodeChallengeMethod: ctx.QueryParam("code_challenge_method"),
			RedirectURI:         ctx.QueryParam("redirect_uri"),
			Scope:               ctx.QueryParam("scope"),
			Request:             ctx.QueryParam("request"),
			ClientMetadata:      ctx.QueryParam("client_metadata"),
		})
	if err != nil {
		return mapError(err)
	}

	return ctx.Redirect(http.StatusFound, redirect)
}

// DirectPost serves POST /direct_post.
func (c *Controller) DirectPost(ctx echo.Context) error {
	redirect, err := c.issuanceSvc.HandleDirectPost(ctx.Request().Context(), &issuance.DirectPostRequest{
		IDToken:                ctx.FormValue("id_token"),
		VPToken:                ctx.FormValue("vp_token"),
		PresentationSubmission: ctx.FormValue("presentation_submission"),
		State:                  ctx.FormValue("state"),
	})
	if err != nil {
		return mapError(err)
	}

	return ctx.Redirect(http.StatusFound, redirect)
}

// Token serves POST /token.
func (c *Controller) Token(ctx echo.Context) error {
	token, err := c.issuanceSvc.CreateAccessToken(ctx.Request().Context(), &issuance.TokenRequest{
		GrantType:           ctx.FormValue("grant_type"),
		PreAuthorisedCode:   ctx.FormValue("pre-authorized_code"),
		UserPin:             ctx.FormValue("user_pin"),
		Code:                ctx.FormValue("code"),
		ClientID:            ctx.FormValue("client_id"),
		CodeVerifier:        ctx.FormValue("code_verifier"),
		ClientAssertion:     ctx.FormValue("client_assertion"),
		ClientAssertionType: ctx.FormValue("client_assertion_type"),
	})
	if err != nil {
		return mapError(err)
	}

	return ctx.JSON(http.StatusOK, token)
}

type credentialRequestBody struct {
	Format string   `json:"format"`
	Types  []string `json:"types"`
	Proof  struct {
		ProofType string `json:"proof_type"`
		JWT       string `json:"jwt"`
	} `json:"proof"`
}

// Credential serves POST /credential.
func (c *Controller) Credential(ctx echo.Context) error {
	var body credentialRequestBody
	if err := ctx.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	resp, err := c.issuanceSvc.IssueCredential(ctx.Request().Context(), &issuance.IssueCredentialRequest{
		AccessToken: bearerToken(ctx),
		Format:      body.Format,
		Types:       body.Types,
		ProofJWT:    body.Proof.JWT,
	})
	if err != nil {
		return mapError(err)
	}

	return ctx.JSON(http.StatusOK, resp)
}

// CredentialDeferred serves POST /credential_deferred.
func (c *Controller) CredentialDeferred(ctx echo.Context) error {
	resp, err := c.issuanceSvc.IssueDeferredCredential(ctx.Request().Context(), bearerToken(ctx))
	if err != nil {
		return mapError(err)
	}

	return ctx.JSON(http.StatusOK, resp)
}

// CredentialOfferByReference serves GET /credential-offer/:offerID.
func (c *Controller) CredentialOfferByReference(ctx echo.Context) error {
	doc, err := c.issuanceSvc.CredentialOfferByReference(ctx.Request().Context(), ctx.Param("offerID"))
	if err != nil {
		return mapError(err)
	}

	return ctx.JSON(http.StatusOK, doc)
}

// InitiateCredentialOffer serves GET /credential-offer/:offerID/initiate.
func (c *Controller) InitiateCredentialOffer(ctx echo.Context) error {
	redirect, err := c.issuanceSvc.InitiateCredentialOffer(ctx.Request().Context(), ctx.Param("offerID"))
	if err != nil {
		return mapError(err)
	}

	return ctx.Redirect(http.StatusFound, redirect)
}

// RequestObjectByReference serves GET /request-uri/:offerID.
func (c *Controller) RequestObjectByReference(ctx echo.Context) error {
	raw, err := c.issuanceSvc.RequestObjectByReference(ctx.Request().Context(), ctx.Param("offerID"))
	if err != nil {
		return mapError(err)
	}

	return ctx.Blob(http.StatusOK, "application/jwt", []byte(raw))
}

// PresentationRequestByReference serves GET /verifiable-presentation/:offerID.
func (c *Controller) PresentationRequestByReference(ctx echo.Context) error {
	raw, err := c.issuanceSvc.PresentationRequestByReference(ctx.Request().Context(), ctx.Param("offerID"))
	if err != nil {
		return mapError(err)
	}

	return ctx.Blob(http.StatusOK, "application/jwt", []byte(raw))
}

// StatusListCredential serves GET /credentials/status/:organisationID.
func (c *Controller) StatusListCredential(ctx echo.Context) error {
	raw, err := c.statusListSvc.StatusListCredential(ctx.Request().Context(), ctx.Param("organisationID"))
	if err != nil {
		return mapError(err)
	}

	return ctx.Blob(http.StatusOK, "application/jwt", []byte(raw))
}

type createAgreementBody struct {
	Purpose            string                        `json:"purpose"`
	PurposeDescription string                        `json:"purposeDescription"`
	DataAttributes     []dataagreement.DataAttribute `json:"dataAttributes"`
	ExchangeMode       string                        `json:"exchangeMode"`
	CredentialTypes    []string                      `json:"credentialTypes"`
}

// CreateDataAgreement serves POST /credential-schema.
func (c *Controller) CreateDataAgreement(ctx echo.Context) error {
	var body createAgreementBody
	if err := ctx.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	agreement, err := c.agreementSvc.CreateDataAgreement(ctx.Request().Context(), &dataagreement.CreateRequest{
		OrganisationID:     c.organisationID,
		Purpose:            body.Purpose,
		PurposeDescription: body.PurposeDescription,
		DataAttributes:     body.DataAttributes,
		ExchangeMode:       dataagreement.ExchangeMode(body.ExchangeMode),
		CredentialTypes:    body.CredentialTypes,
	})
	if err != nil {
		return mapError(err)
	}

	return ctx.JSON(http.StatusCreated, agreement)
}

// ListDataAgreements serves GET /credential-schemas.
func (c *Controller) ListDataAgreements(ctx echo.Context) error {
	agreements, err := c.agreementSvc.ListByOrganisationID(ctx.Request().Context(), c.organisationID)
	if err != nil {
		return mapError(err)
	}

	return ctx.JSON(http.StatusOK, agreements)
}

// GetDataAgreement serves GET /credential-schema/:agreementID.
func (c *Controller) GetDataAgreement(ctx echo.Context) error {
	agreement, err := c.agreementSvc.GetByID(ctx.Request().Context(), ctx.Param("agreementID"))
	if err != nil {
		return mapError(err)
	}

	return ctx.JSON(http.StatusOK, agreement)
}

type createOfferBody struct {
	IssuanceMode        string                 `json:"issuanceMode"`
	IsPreAuthorised     bool                   `json:"isPreAuthorised"`
	SupportsRevocation  bool                   `json:"supportsRevocation"`
	UserPin             string                 `json:"userPin"`
	ClientID            string                 `json:"clientId"`
	DataAttributeValues map[string]interface{} `json:"dataAttributeValues"`
}

// CreateCredentialOffer serves POST /credential-schema/:agreementID/credential-offer.
func (c *Controller) CreateCredentialOffer(ctx echo.Context) error {
	var body createOfferBody
	if err := ctx.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	offer, err := c.issuanceSvc.CreateCredentialOffer(ctx.Request().Context(), &issuance.CreateOfferRequest{
		DataAgreementID:     ctx.Param("agreementID"),
		IssuanceMode:        issuance.IssuanceMode(body.IssuanceMode),
		IsPreAuthorised:     body.IsPreAuthorised,
		SupportsRevocation:  body.SupportsRevocation,
		UserPin:             body.UserPin,
		ClientID:            body.ClientID,
		DataAttributeValues: body.DataAttributeValues,
	})
	if err != nil {
		return mapError(err)
	}

	return ctx.JSON(http.StatusCreated, offer)
}

// ListCredentialOffers serves GET /credential-schema/:agreementID/credential-offers.
func (c *Controller) ListCredentialOffers(ctx echo.Context) error {
	offers, err := c.issuanceSvc.ListCredentialOffers(ctx.Request().Context(), ctx.Param("agreementID"))
	if err != nil {
		return mapError(err)
	}

	return ctx.JSON(http.StatusOK, offers)
}

// GetCredentialOffer serves GET /credential-schema/:agreementID/credential-offer/:offerID.
func (c *Controller) GetCredentialOffer(ctx echo.Context) error {
	offer, err := c.issuanceSvc.GetCredentialOffer(ctx.Request().Context(), ctx.Param("offerID"))
	if err != nil {
		return mapError(err)
	}

	return ctx.JSON(http.StatusOK, offer)
}

type updateOfferBody struct {
	DataAttributeValues map[string]interface{} `json:"dataAttributeValues"`
}

// UpdateDeferredOffer serves PUT /credential-schema/:agreementID/credential-offer/:offerID.
func (c *Controller) UpdateDeferredOffer(ctx echo.Context) error {
	var body updateOfferBody
	if err := ctx.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	offer, err := c.issuanceSvc.UpdateDeferredOfferWithAttributeValues(ctx.Request().Context(),
		ctx.Param("offerID"), body.DataAttributeValues)
	if err != nil {
		return mapError(err)
	}

	return ctx.JSON(http.StatusOK, offer)
}

// DeleteCredentialOffer serves DELETE /credential-schema/:agreementID/credential-offer/:offerID.
func (c *Controller) DeleteCredentialOffer(ctx echo.Context) error {
	if err := c.issuanceSvc.DeleteCredentialOffer(ctx.Request().Context(), ctx.Param("offerID")); err != nil {
		return mapError(err)
	}

	return ctx.NoContent(http.StatusNoContent)
}

// RevokeCredentialOffer serves POST /credential-schema/:agreementID/credential-offer/:offerID/revoke.
func (c *Controller) RevokeCredentialOffer(ctx echo.Context) error {
	return c.updateRevocation(ctx, true)
}

// UnrevokeCredentialOffer serves POST /credential-schema/:agreementID/credential-offer/:offerID/unrevoke.
func (c *Controller) UnrevokeCredentialOffer(ctx echo.Context) error {
	return c.updateRevocation(ctx, false)
}

func (c *Controller) updateRevocation(ctx echo.Context, revoked bool) error {
	offer, err := c.issuanceSvc.UpdateRevocationStatus(ctx.Request().Context(), ctx.Param("offerID"), revoked)
	if err != nil {
		return mapError(err)
	}

	return ctx.JSON(http.StatusOK, offer)
}

func bearerToken(ctx echo.Context) string {
	auth := ctx.Request().Header.Get(echo.HeaderAuthorization)

	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found {
		return ""
	}

	return token
}
