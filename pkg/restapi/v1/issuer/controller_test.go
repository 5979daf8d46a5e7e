/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuer_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/trustmesh/vci/pkg/doc/joseutil"
	"github.com/trustmesh/vci/pkg/doc/keydid"
	"github.com/trustmesh/vci/pkg/restapi/v1/issuer"
	"github.com/trustmesh/vci/pkg/service/credentialstatus"
	"github.com/trustmesh/vci/pkg/service/dataagreement"
	"github.com/trustmesh/vci/pkg/service/issuance"
	"github.com/trustmesh/vci/pkg/service/wellknown"
	"github.com/trustmesh/vci/pkg/storage/memstore"
)

const (
	testDomain = "https://issuer.example.com"
	testOrgID  = "org-1"
)

type staticIdentityProvider struct {
	identity *keydid.Identity
}

func (p *staticIdentityProvider) Identity(_ context.Context, _ string) (*keydid.Identity, error) {
	return p.identity, nil
}

func newServer(t *testing.T) (*echo.Echo, *dataagreement.Service, *issuance.Service) {
	t.Helper()

	clock := func() time.Time {
		return time.Date(2023, time.June, 15, 12, 0, 0, 0, time.UTC)
	}

	identity, err := keydid.FromSeed([]byte("controller-test-seed"))
	require.NoError(t, err)

	identities := &staticIdentityProvider{identity: identity}

	agreementSvc := dataagreement.NewService(&dataagreement.Config{
		Store: memstore.NewAgreementStore(),
		Now:   clock,
	})

	statusSvc := credentialstatus.New(&credentialstatus.Config{
		Store:            memstore.NewStatusListStore(),
		IdentityProvider: identities,
		IssuerDomain:     testDomain,
		Clock:            clock,
	})

	issuanceSvc := issuance.NewService(&issuance.Config{
		OfferStore:        memstore.NewOfferStore(),
		AgreementService:  agreementSvc,
		StatusListManager: statusSvc,
		IdentityProvider:  identities,
		PinGenerator:      issuance.NewPinGenerator(),
		IssuerDomain:      testDomain,
		Clock:             clock,
	})

	controller := issuer.NewController(&issuer.Config{
		IssuanceService:   issuanceSvc,
		AgreementService:  agreementSvc,
		StatusListService: statusSvc,
		WellKnownService:  wellknown.NewService(&wellknown.Config{ExternalHostURL: testDomain}),
		OrganisationID:    testOrgID,
	})

	e := echo.New()
	controller.Register(e)

	return e, agreementSvc, issuanceSvc
}

func createAgreement(t *testing.T, svc *dataagreement.Service) *dataagreement.Agreement {
	t.Helper()

	agreement, err := svc.CreateDataAgreement(context.Background(), &dataagreement.CreateRequest{
		OrganisationID: testOrgID,
		Purpose:        "proof of employment",
		DataAttributes: []dataagreement.DataAttribute{
			{Name: "employeeName", DataType: "string"},
		},
		ExchangeMode: dataagreement.ExchangeModeDataSource,
	})
	require.NoError(t, err)

	return agreement
}

func doJSON(e *echo.Echo, method, target string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	return rec
}

func doForm(e *echo.Echo, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	return rec
}

func TestWellKnownEndpoints(t *testing.T) {
	e, agreementSvc, _ := newServer(t)
	createAgreement(t, agreementSvc)

	rec := doJSON(e, http.MethodGet, "/.well-known/openid-credential-issuer", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var issuerConfig map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issuerConfig))
	require.Equal(t, testDomain, issuerConfig["credential_issuer"])

	rec = doJSON(e, http.MethodGet, "/.well-known/openid-configuration", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var openIDConfig map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &openIDConfig))
	require.Equal(t, testDomain+"/token", openIDConfig["token_endpoint"])
}

func TestIssuanceOverHTTP(t *testing.T) {
	e, agreementSvc, _ := newServer(t)
	agreement := createAgreement(t, agreementSvc)

	rec := doJSON(e, http.MethodPost, "/credential-schema/"+agreement.ID+"/credential-offer",
		`{"isPreAuthorised":true,"userPin":"1234","dataAttributeValues":{"employeeName":"Alice Example"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var offer issuance.CredentialOffer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &offer))
	require.NotEmpty(t, offer.PreAuthorisedCode)

	rec = doJSON(e, http.MethodGet, "/credential-offer/"+offer.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc issuance.OfferDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.NotNil(t, doc.Grants.PreAuthorizedCode)

	rec = doForm(e, "/token", url.Values{
		"grant_type":          {issuance.GrantTypePreAuthorizedCode},
		"pre-authorized_code": {offer.PreAuthorisedCode},
		"user_pin":            {"1234"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var token issuance.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
	require.NotEmpty(t, token.AccessToken)

	holder, err := keydid.FromSeed([]byte("holder-seed"))
	require.NoError(t, err)

	proof, err := joseutil.NewSigner(holder).ProofOfPossession(testDomain, token.CNonce)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/credential",
		strings.NewReader(`{"format":"jwt_vc","types":["VerifiableCredential"],"proof":{"proof_type":"jwt","jwt":"`+proof+`"}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token.AccessToken)

	recorder := httptest.NewRecorder()
	e.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp issuance.CredentialResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Credential)
}

func TestTokenEndpoint_WrongPin(t *testing.T) {
	e, agreementSvc, _ := newServer(t)
	agreement := createAgreement(t, agreementSvc)

	rec := doJSON(e, http.MethodPost, "/credential-schema/"+agreement.ID+"/credential-offer",
		`{"isPreAuthorised":true,"userPin":"1234","dataAttributeValues":{"employeeName":"Alice Example"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var offer issuance.CredentialOffer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &offer))

	rec = doForm(e, "/token", url.Values{
		"grant_type":          {issuance.GrantTypePreAuthorizedCode},
		"pre-authorized_code": {offer.PreAuthorisedCode},
		"user_pin":            {"9999"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCredentialEndpoint_MissingToken(t *testing.T) {
	e, _, _ := newServer(t)

	rec := doJSON(e, http.MethodPost, "/credential", `{"format":"jwt_vc"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownOffer(t *testing.T) {
	e, _, _ := newServer(t)

	rec := doJSON(e, http.MethodGet, "/credential-offer/unknown", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
