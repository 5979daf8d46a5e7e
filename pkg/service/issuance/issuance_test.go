/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuance_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trustmesh/vci/pkg/doc/joseutil"
	"github.com/trustmesh/vci/pkg/doc/keydid"
	"github.com/trustmesh/vci/pkg/service/credentialstatus"
	"github.com/trustmesh/vci/pkg/service/dataagreement"
	"github.com/trustmesh/vci/pkg/service/issuance"
	"github.com/trustmesh/vci/pkg/storage/memstore"
)

const issuerDomain = "https://issuer.example.com"

type staticIdentityProvider struct {
	identity *keydid.Identity
}

func (p *staticIdentityProvider) Identity(_ context.Context, _ string) (*keydid.Identity, error) {
	return p.identity, nil
}

type env struct {
	service    *issuance.Service
	status     *credentialstatus.Service
	agreement  *dataagreement.Agreement
	issuer     *keydid.Identity
	holder     *keydid.Identity
	holderSign *joseutil.Signer
	clock      joseutil.Clock
	now        *time.Time
}

// advance moves the shared test clock forward.
func (e *env) advance(d time.Duration) {
	*e.now = e.now.Add(d)
}

func newEnv(t *testing.T) *env {
	t.Helper()

	now := time.Date(2023, time.June, 15, 12, 0, 0, 0, time.UTC)
	nowRef := &now

	clock := func() time.Time {
		return *nowRef
	}

	issuer, err := keydid.FromSeed([]byte("issuer-seed"))
	require.NoError(t, err)

	holder, err := keydid.FromSeed([]byte("holder-seed"))
	require.NoError(t, err)

	agreementStore := memstore.NewAgreementStore()

	agreementSvc := dataagreement.NewService(&dataagreement.Config{
		Store: agreementStore,
		Now:   clock,
	})

	agreement, err := agreementSvc.CreateDataAgreement(context.Background(), &dataagreement.CreateRequest{
		OrganisationID: "org-1",
		Purpose:        "proof of employment",
		DataAttributes: []dataagreement.DataAttribute{
			{Name: "employeeName", DataType: "string"},
			{Name: "salary", DataType: "number", LimitedDisclosure: true},
		},
		ExchangeMode: dataagreement.ExchangeModeDataSource,
	})
	require.NoError(t, err)

	identities := &staticIdentityProvider{identity: issuer}

	statusSvc := credentialstatus.New(&credentialstatus.Config{
		Store:            memstore.NewStatusListStore(),
		IdentityProvider: identities,
		IssuerDomain:     issuerDomain,
		Clock:            clock,
	})

	service := issuance.NewService(&issuance.Config{
		OfferStore:        memstore.NewOfferStore(),
		AgreementService:  agreementSvc,
		StatusListManager: statusSvc,
		IdentityProvider:  identities,
		PinGenerator:      issuance.NewPinGenerator(),
		IssuerDomain:      issuerDomain,
		Clock:             clock,
	})

	return &env{
		service:    service,
		status:     statusSvc,
		agreement:  agreement,
		issuer:     issuer,
		holder:     holder,
		holderSign: joseutil.NewSigner(holder, joseutil.WithClock(clock)),
		clock:      clock,
		now:        nowRef,
	}
}

func attributeValues() map[string]interface{} {
	return map[string]interface{}{
		"employeeName": "Alice Example",
		"salary":       4200.50,
	}
}

func TestPreAuthorizedFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	offer, err := e.service.CreateCredentialOffer(ctx, &issuance.CreateOfferRequest{
		DataAgreementID:     e.agreement.ID,
		IsPreAuthorised:     true,
		UserPin:             "1234",
		DataAttributeValues: attributeValues(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, offer.PreAuthorisedCode)
	require.Equal(t, issuance.OfferStatusCreated, offer.Status)

	t.Run("missing pin", func(t *testing.T) {
		_, err = e.service.CreateAccessToken(ctx, &issuance.TokenRequest{
			GrantType:         issuance.GrantTypePreAuthorizedCode,
			PreAuthorisedCode: offer.PreAuthorisedCode,
		})
		require.ErrorIs(t, err, issuance.ErrUserPinRequired)
	})

	t.Run("wrong pin", func(t *testing.T) {
		_, err = e.service.CreateAccessToken(ctx, &issuance.TokenRequest{
			GrantType:         issuance.GrantTypePreAuthorizedCode,
			PreAuthorisedCode: offer.PreAuthorisedCode,
			UserPin:           "0000",
		})
		require.ErrorIs(t, err, issuance.ErrCreateAccessToken)
	})

	token, err := e.service.CreateAccessToken(ctx, &issuance.TokenRequest{
		GrantType:         issuance.GrantTypePreAuthorizedCode,
		PreAuthorisedCode: offer.PreAuthorisedCode,
		UserPin:           "1234",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token.AccessToken)
	require.Equal(t, "bearer", token.TokenType)

	t.Run("pre-authorized code replay", func(t *testing.T) {
		_, err = e.service.CreateAccessToken(ctx, &issuance.TokenRequest{
			GrantType:         issuance.GrantTypePreAuthorizedCode,
			PreAuthorisedCode: offer.PreAuthorisedCode,
			UserPin:           "1234",
		})
		require.ErrorIs(t, err, issuance.ErrCreateAccessToken)
	})

	proof, err := e.holderSign.ProofOfPossession(issuerDomain, token.CNonce)
	require.NoError(t, err)

	resp, err := e.service.IssueCredential(ctx, &issuance.IssueCredentialRequest{
		AccessToken: token.AccessToken,
		Format:      issuance.FormatJWTVC,
		ProofJWT:    proof,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Credential)

	// salary is selectively disclosable, so the credential is in combined format
	parts := strings.Split(resp.Credential, "~")
	require.Len(t, parts, 3)
	require.Empty(t, parts[2])

	decoded, err := joseutil.DecodeUnverified(parts[0])
	require.NoError(t, err)
	require.Equal(t, e.issuer.DID, decoded.Claims["iss"])

	vc, ok := decoded.Claims["vc"].(map[string]interface{})
	require.True(t, ok)

	subject, ok := vc["credentialSubject"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "Alice Example", subject["employeeName"])
	require.NotContains(t, subject, "salary")
	require.Contains(t, subject, "_sd")
}

func TestPreAuthorizedFlow_WrongNonceProof(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	offer, err := e.service.CreateCredentialOffer(ctx, &issuance.CreateOfferRequest{
		DataAgreementID:     e.agreement.ID,
		IsPreAuthorised:     true,
		UserPin:             "1234",
		DataAttributeValues: attributeValues(),
	})
	require.NoError(t, err)

	token, err := e.service.CreateAccessToken(ctx, &issuance.TokenRequest{
		GrantType:         issuance.GrantTypePreAuthorizedCode,
		PreAuthorisedCode: offer.PreAuthorisedCode,
		UserPin:           "1234",
	})
	require.NoError(t, err)

	proof, err := e.holderSign.ProofOfPossession(issuerDomain, "stale-nonce")
	require.NoError(t, err)

	_, err = e.service.IssueCredential(ctx, &issuance.IssueCredentialRequest{
		AccessToken: token.AccessToken,
		ProofJWT:    proof,
	})
	require.ErrorIs(t, err, joseutil.ErrInvalidProof)

	_, err = e.service.IssueCredential(ctx, &issuance.IssueCredentialRequest{
		AccessToken: "unknown-token",
		ProofJWT:    proof,
	})
	require.ErrorIs(t, err, issuance.ErrInvalidAccessToken)
}

func TestAuthorizationCodeFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	offer, err := e.service.CreateCredentialOffer(ctx, &issuance.CreateOfferRequest{
		DataAgreementID:     e.agreement.ID,
		ClientID:            "wallet-client",
		DataAttributeValues: attributeValues(),
	})
	require.NoError(t, err)

	verifier := "verifier123"
	digest := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(digest[:])

	redirect, err := e.service.UpdateOfferFromAuthorisationRequest(ctx, &issuance.AuthorizeRequest{
		IssuerState:         offer.ID,
		State:               "wallet-state-1",
		ClientID:            "wallet-client",
		CodeChallenge:       challenge,
		CodeChallengeMethod: "S256",
		RedirectURI:         "openid://callback",
		Scope:               "openid",
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(redirect, "openid://?"))

	redirectURL, err := url.Parse(redirect)
	require.NoError(t, err)

	nonce := redirectURL.Query().Get("nonce")
	require.NotEmpty(t, nonce)
	require.Equal(t, "id_token", redirectURL.Query().Get("response_type"))
	require.Equal(t, issuerDomain+"/request-uri/"+offer.ID, redirectURL.Query().Get("request_uri"))

	t.Run("second bind fails", func(t *testing.T) {
		_, err = e.service.UpdateOfferFromAuthorisationRequest(ctx, &issuance.AuthorizeRequest{
			IssuerState: offer.ID,
			State:       "wallet-state-2",
		})
		require.ErrorIs(t, err, issuance.ErrUpdateCredentialOffer)
	})

	idToken, err := e.holderSign.IDToken(issuerDomain, nonce)
	require.NoError(t, err)

	t.Run("direct post with unknown state", func(t *testing.T) {
		_, err = e.service.HandleDirectPost(ctx, &issuance.DirectPostRequest{
			IDToken: idToken,
			State:   "unknown-state",
		})
		require.ErrorIs(t, err, issuance.ErrInvalidStateInIDTokenResponse)
	})

	callback, err := e.service.HandleDirectPost(ctx, &issuance.DirectPostRequest{
		IDToken: idToken,
		State:   "wallet-state-1",
	})
	require.NoError(t, err)

	callbackURL, err := url.Parse(callback)
	require.NoError(t, err)
	require.Equal(t, "wallet-state-1", callbackURL.Query().Get("state"))

	code := callbackURL.Query().Get("code")
	require.NotEmpty(t, code)

	t.Run("direct post replay", func(t *testing.T) {
		_, err = e.service.HandleDirectPost(ctx, &issuance.DirectPostRequest{
			IDToken: idToken,
			State:   "wallet-state-1",
		})
		require.ErrorIs(t, err, issuance.ErrInvalidStateInIDTokenResponse)
	})

	t.Run("wrong code verifier", func(t *testing.T) {
		_, err = e.service.CreateAccessToken(ctx, &issuance.TokenRequest{
			GrantType:    issuance.GrantTypeAuthorizationCode,
			Code:         code,
			ClientID:     "wallet-client",
			CodeVerifier: "wrong",
		})
		require.ErrorIs(t, err, issuance.ErrCreateAccessToken)
	})

	t.Run("missing client id", func(t *testing.T) {
		_, err = e.service.CreateAccessToken(ctx, &issuance.TokenRequest{
			GrantType:    issuance.GrantTypeAuthorizationCode,
			Code:         code,
			CodeVerifier: verifier,
		})
		require.ErrorIs(t, err, issuance.ErrClientIDRequired)
	})

	token, err := e.service.CreateAccessToken(ctx, &issuance.TokenRequest{
		GrantType:    issuance.GrantTypeAuthorizationCode,
		Code:         code,
		ClientID:     "wallet-client",
		CodeVerifier: verifier,
	})
	require.NoError(t, err)
	require.NotEmpty(t, token.AccessToken)

	t.Run("authorization code replay", func(t *testing.T) {
		_, err = e.service.CreateAccessToken(ctx, &issuance.TokenRequest{
			GrantType:    issuance.GrantTypeAuthorizationCode,
			Code:         code,
			ClientID:     "wallet-client",
			CodeVerifier: verifier,
		})
		require.ErrorIs(t, err, issuance.ErrCreateAccessToken)
	})

	proof, err := e.holderSign.ProofOfPossession(issuerDomain, token.CNonce)
	require.NoError(t, err)

	resp, err := e.service.IssueCredential(ctx, &issuance.IssueCredentialRequest{
		AccessToken: token.AccessToken,
		ProofJWT:    proof,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Credential)
}

func TestAuthorizationFlow_PreAuthorizedOfferRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	offer, err := e.service.CreateCredentialOffer(ctx, &issuance.CreateOfferRequest{
		DataAgreementID:     e.agreement.ID,
		IsPreAuthorised:     true,
		UserPin:             "1234",
		DataAttributeValues: attributeValues(),
	})
	require.NoError(t, err)

	_, err = e.service.UpdateOfferFromAuthorisationRequest(ctx, &issuance.AuthorizeRequest{
		IssuerState: offer.ID,
		State:       "wallet-state-1",
	})
	require.ErrorIs(t, err, issuance.ErrCredentialOfferIsPreAuthorized)
}

func TestDeferredFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	offer, err := e.service.CreateCredentialOffer(ctx, &issuance.CreateOfferRequest{
		DataAgreementID: e.agreement.ID,
		IssuanceMode:    issuance.IssuanceModeDeferred,
		IsPreAuthorised: true,
		UserPin:         "1234",
	})
	require.NoError(t, err)

	token, err := e.service.CreateAccessToken(ctx, &issuance.TokenRequest{
		GrantType:         issuance.GrantTypePreAuthorizedCode,
		PreAuthorisedCode: offer.PreAuthorisedCode,
		UserPin:           "1234",
	})
	require.NoError(t, err)

	proof, err := e.holderSign.ProofOfPossession(issuerDomain, token.CNonce)
	require.NoError(t, err)

	receipt, err := e.service.IssueCredential(ctx, &issuance.IssueCredentialRequest{
		AccessToken: token.AccessToken,
		ProofJWT:    proof,
	})
	require.NoError(t, err)
	require.Empty(t, receipt.Credential)
	require.NotEmpty(t, receipt.AcceptanceToken)

	// polls before data arrives are idempotent
	for i := 0; i < 2; i++ {
		_, err = e.service.IssueDeferredCredential(ctx, receipt.AcceptanceToken)
		require.ErrorIs(t, err, issuance.ErrCredentialPending)
	}

	_, err = e.service.IssueDeferredCredential(ctx, "unknown-token")
	require.ErrorIs(t, err, issuance.ErrInvalidAcceptanceToken)

	_, err = e.service.UpdateDeferredOfferWithAttributeValues(ctx, offer.ID, attributeValues())
	require.NoError(t, err)

	first, err := e.service.IssueDeferredCredential(ctx, receipt.AcceptanceToken)
	require.NoError(t, err)
	require.NotEmpty(t, first.Credential)

	second, err := e.service.IssueDeferredCredential(ctx, receipt.AcceptanceToken)
	require.NoError(t, err)
	require.Equal(t, first.Credential, second.Credential)
}

func TestRevocationRoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	offer, err := e.service.CreateCredentialOffer(ctx, &issuance.CreateOfferRequest{
		DataAgreementID:     e.agreement.ID,
		IsPreAuthorised:     true,
		UserPin:             "1234",
		SupportsRevocation:  true,
		DataAttributeValues: attributeValues(),
	})
	require.NoError(t, err)

	token, err := e.service.CreateAccessToken(ctx, &issuance.TokenRequest{
		GrantType:         issuance.GrantTypePreAuthorizedCode,
		PreAuthorisedCode: offer.PreAuthorisedCode,
		UserPin:           "1234",
	})
	require.NoError(t, err)

	proof, err := e.holderSign.ProofOfPossession(issuerDomain, token.CNonce)
	require.NoError(t, err)

	_, err = e.service.IssueCredential(ctx, &issuance.IssueCredentialRequest{
		AccessToken: token.AccessToken,
		ProofJWT:    proof,
	})
	require.NoError(t, err)

	issued, err := e.service.GetCredentialOffer(ctx, offer.ID)
	require.NoError(t, err)
	require.NotNil(t, issued.StatusListIndex)

	index := *issued.StatusListIndex

	revoked, err := e.status.GetStatus(ctx, "org-1", index)
	require.NoError(t, err)
	require.False(t, revoked)

	updated, err := e.service.UpdateRevocationStatus(ctx, offer.ID, true)
	require.NoError(t, err)
	require.True(t, updated.IsRevoked)

	revoked, err = e.status.GetStatus(ctx, "org-1", index)
	require.NoError(t, err)
	require.True(t, revoked)

	updated, err = e.service.UpdateRevocationStatus(ctx, offer.ID, false)
	require.NoError(t, err)
	require.False(t, updated.IsRevoked)

	revoked, err = e.status.GetStatus(ctx, "org-1", index)
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestRevocation_NoIndex(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	offer, err := e.service.CreateCredentialOffer(ctx, &issuance.CreateOfferRequest{
		DataAgreementID:     e.agreement.ID,
		IsPreAuthorised:     true,
		UserPin:             "1234",
		DataAttributeValues: attributeValues(),
	})
	require.NoError(t, err)

	_, err = e.service.UpdateRevocationStatus(ctx, offer.ID, true)
	require.ErrorIs(t, err, issuance.ErrCredentialOfferRevocation)
}

func TestCreateCredentialOffer_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	t.Run("unknown agreement", func(t *testing.T) {
		_, err := e.service.CreateCredentialOffer(ctx, &issuance.CreateOfferRequest{
			DataAgreementID:     "missing",
			DataAttributeValues: attributeValues(),
		})
		require.ErrorIs(t, err, issuance.ErrCreateCredentialOffer)
	})

	t.Run("undeclared attribute", func(t *testing.T) {
		_, err := e.service.CreateCredentialOffer(ctx, &issuance.CreateOfferRequest{
			DataAgreementID:     e.agreement.ID,
			DataAttributeValues: map[string]interface{}{"passportNumber": "X123"},
		})
		require.ErrorIs(t, err, dataagreement.ErrDataAttributeValidation)
	})

	t.Run("missing values for immediate issuance", func(t *testing.T) {
		_, err := e.service.CreateCredentialOffer(ctx, &issuance.CreateOfferRequest{
			DataAgreementID: e.agreement.ID,
		})
		require.ErrorIs(t, err, issuance.ErrCreateCredentialOffer)
	})

	t.Run("malformed pin", func(t *testing.T) {
		_, err := e.service.CreateCredentialOffer(ctx, &issuance.CreateOfferRequest{
			DataAgreementID:     e.agreement.ID,
			IsPreAuthorised:     true,
			UserPin:             "12",
			DataAttributeValues: attributeValues(),
		})
		require.ErrorIs(t, err, issuance.ErrCreateCredentialOffer)
	})

	t.Run("generated pin", func(t *testing.T) {
		offer, err := e.service.CreateCredentialOffer(ctx, &issuance.CreateOfferRequest{
			DataAgreementID:     e.agreement.ID,
			IsPreAuthorised:     true,
			DataAttributeValues: attributeValues(),
		})
		require.NoError(t, err)
		require.Len(t, offer.UserPin, 4)
	})
}

func TestOfferLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	offer, err := e.service.CreateCredentialOffer(ctx, &issuance.CreateOfferRequest{
		DataAgreementID:     e.agreement.ID,
		IsPreAuthorised:     true,
		UserPin:             "1234",
		DataAttributeValues: attributeValues(),
	})
	require.NoError(t, err)

	initiate, err := e.service.InitiateCredentialOffer(ctx, offer.ID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(initiate, "openid-credential-offer://?credential_offer_uri="))

	doc, err := e.service.CredentialOfferByReference(ctx, offer.ID)
	require.NoError(t, err)
	require.Equal(t, issuerDomain, doc.CredentialIssuer)
	require.NotNil(t, doc.Grants.PreAuthorizedCode)
	require.True(t, doc.Grants.PreAuthorizedCode.UserPinRequired)
	require.Len(t, doc.Credentials, 1)

	offers, err := e.service.ListCredentialOffers(ctx, e.agreement.ID)
	require.NoError(t, err)
	require.Len(t, offers, 1)

	require.NoError(t, e.service.DeleteCredentialOffer(ctx, offer.ID))

	_, err = e.service.GetCredentialOffer(ctx, offer.ID)
	require.ErrorIs(t, err, issuance.ErrCredentialOfferNotFound)
}

func TestRequestObjectByReference(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	offer, err := e.service.CreateCredentialOffer(ctx, &issuance.CreateOfferRequest{
		DataAgreementID:     e.agreement.ID,
		ClientID:            "wallet-client",
		DataAttributeValues: attributeValues(),
	})
	require.NoError(t, err)

	raw, err := e.service.RequestObjectByReference(ctx, offer.ID)
	require.NoError(t, err)

	decoded, err := joseutil.DecodeUnverified(raw)
	require.NoError(t, err)
	require.Equal(t, "id_token", decoded.Claims["response_type"])
	require.Equal(t, e.issuer.DID, decoded.Claims["iss"])

	raw, err = e.service.PresentationRequestByReference(ctx, offer.ID)
	require.NoError(t, err)

	decoded, err = joseutil.DecodeUnverified(raw)
	require.NoError(t, err)
	require.Equal(t, "vp_token", decoded.Claims["response_type"])
	require.Contains(t, decoded.Claims, "presentation_definition")
}

func TestAuthorizationFlow_VPTokenScope(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	offer, err := e.service.CreateCredentialOffer(ctx, &issuance.CreateOfferRequest{
		DataAgreementID:     e.agreement.ID,
		ClientID:            "wallet-client",
		DataAttributeValues: attributeValues(),
	})
	require.NoError(t, err)

	redirect, err := e.service.UpdateOfferFromAuthorisationRequest(ctx, &issuance.AuthorizeRequest{
		IssuerState:    offer.ID,
		State:          "wallet-state-vp",
		ClientID:       "wallet-client",
		RedirectURI:    "openid://callback",
		Scope:          "openid ver_test:vp_token",
		ClientMetadata: `{"client_name":"Example Wallet"}`,
	})
	require.NoError(t, err)

	redirectURL, err := url.Parse(redirect)
	require.NoError(t, err)
	require.Equal(t, "vp_token", redirectURL.Query().Get("response_type"))
	require.Equal(t, issuerDomain+"/verifiable-presentation/"+offer.ID,
		redirectURL.Query().Get("request_uri"))

	raw, err := e.service.PresentationRequestByReference(ctx, offer.ID)
	require.NoError(t, err)

	decoded, err := joseutil.DecodeUnverified(raw)
	require.NoError(t, err)
	require.Equal(t, "vp_token", decoded.Claims["response_type"])

	metadata, ok := decoded.Claims["client_metadata"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "Example Wallet", metadata["client_name"])

	raw, err = e.service.RequestObjectByReference(ctx, offer.ID)
	require.NoError(t, err)

	decoded, err = joseutil.DecodeUnverified(raw)
	require.NoError(t, err)

	metadata, ok = decoded.Claims["client_metadata"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "Example Wallet", metadata["client_name"])
}

func TestPreAuthorizedCodeExpiry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	offer, err := e.service.CreateCredentialOffer(ctx, &issuance.CreateOfferRequest{
		DataAgreementID:     e.agreement.ID,
		IsPreAuthorised:     true,
		UserPin:             "1234",
		DataAttributeValues: attributeValues(),
	})
	require.NoError(t, err)

	e.advance(25 * time.Hour)

	_, err = e.service.CreateAccessToken(ctx, &issuance.TokenRequest{
		GrantType:         issuance.GrantTypePreAuthorizedCode,
		PreAuthorisedCode: offer.PreAuthorisedCode,
		UserPin:           "1234",
	})
	require.ErrorIs(t, err, issuance.ErrCreateAccessToken)
	require.ErrorContains(t, err, "expired")
}

func TestAcceptanceTokenExpiry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	offer, err := e.service.CreateCredentialOffer(ctx, &issuance.CreateOfferRequest{
		DataAgreementID: e.agreement.ID,
		IssuanceMode:    issuance.IssuanceModeDeferred,
		IsPreAuthorised: true,
		UserPin:         "1234",
	})
	require.NoError(t, err)

	token, err := e.service.CreateAccessToken(ctx, &issuance.TokenRequest{
		GrantType:         issuance.GrantTypePreAuthorizedCode,
		PreAuthorisedCode: offer.PreAuthorisedCode,
		UserPin:           "1234",
	})
	require.NoError(t, err)

	proof, err := e.holderSign.ProofOfPossession(issuerDomain, token.CNonce)
	require.NoError(t, err)

	receipt, err := e.service.IssueCredential(ctx, &issuance.IssueCredentialRequest{
		AccessToken: token.AccessToken,
		ProofJWT:    proof,
	})
	require.NoError(t, err)
	require.NotEmpty(t, receipt.AcceptanceToken)

	e.advance(31 * 24 * time.Hour)

	_, err = e.service.IssueDeferredCredential(ctx, receipt.AcceptanceToken)
	require.ErrorIs(t, err, issuance.ErrInvalidAcceptanceToken)
	require.ErrorContains(t, err, "expired")
}
