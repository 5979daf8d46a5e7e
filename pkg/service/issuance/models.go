/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuance

import (
	"time"
)

// IssuanceMode determines whether a credential is produced at request time or
// resolved later through the deferred endpoint.
type IssuanceMode string

const (
	// IssuanceModeDataSource issues the credential at the credential endpoint.
	IssuanceModeDataSource IssuanceMode = "data-source"
	// IssuanceModeDeferred hands out an acceptance token; the credential is
	// produced once the backing data arrives.
	IssuanceModeDeferred IssuanceMode = "deferred"
)

// OfferStatus is the state of one issuance transaction.
type OfferStatus string

const (
	OfferStatusCreated            OfferStatus = "created"
	OfferStatusAuthorizationBound OfferStatus = "authorization_bound"
	OfferStatusTokenIssued        OfferStatus = "token_issued"
	OfferStatusCredentialIssued   OfferStatus = "credential_issued"
	OfferStatusCredentialDeferred OfferStatus = "credential_deferred"
)

// CredentialOffer tracks one issuance transaction from creation to its
// terminal state. Exactly one of the authorization-code flow fields and
// PreAuthorisedCode is the active grant path.
type CredentialOffer struct {
	ID              string `json:"id"`
	DataAgreementID string `json:"dataAgreementId"`
	OrganisationID  string `json:"organisationId"`

	Status             OfferStatus  `json:"status"`
	IssuanceMode       IssuanceMode `json:"issuanceMode"`
	IsPreAuthorised    bool         `json:"isPreAuthorised"`
	SupportsRevocation bool         `json:"supportsRevocation"`

	// authorization-code flow bindings
	ClientID            string                 `json:"clientId,omitempty"`
	CodeChallenge       string                 `json:"codeChallenge,omitempty"`
	CodeChallengeMethod string                 `json:"codeChallengeMethod,omitempty"`
	RedirectURI         string                 `json:"redirectUri,omitempty"`
	AuthorisationState  string                 `json:"authorisationState,omitempty"`
	ClientMetadata      map[string]interface{} `json:"clientMetadata,omitempty"`
	AuthorizationCode   string                 `json:"authorizationCode,omitempty"`

	// pre-authorized-code flow bindings
	PreAuthorisedCode          string    `json:"preAuthorisedCode,omitempty"`
	PreAuthorisedCodeExpiresAt time.Time `json:"preAuthorisedCodeExpiresAt,omitempty"`
	UserPin                    string    `json:"userPin,omitempty"`

	AccessToken              string    `json:"accessToken,omitempty"`
	AcceptanceToken          string    `json:"acceptanceToken,omitempty"`
	AcceptanceTokenExpiresAt time.Time `json:"acceptanceTokenExpiresAt,omitempty"`
	CNonce                   string    `json:"cNonce,omitempty"`
	TokenExpiresAt           time.Time `json:"tokenExpiresAt,omitempty"`

	DataAttributeValues map[string]interface{} `json:"dataAttributeValues,omitempty"`
	HolderDID           string                 `json:"holderDid,omitempty"`
	Credential          string                 `json:"credential,omitempty"`

	IsRevoked       bool `json:"isRevoked"`
	StatusListIndex *int `json:"statusListIndex,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy safe to mutate.
func (o *CredentialOffer) Clone() *CredentialOffer {
	clone := *o

	if o.ClientMetadata != nil {
		clone.ClientMetadata = make(map[string]interface{}, len(o.ClientMetadata))
		for k, v := range o.ClientMetadata {
			clone.ClientMetadata[k] = v
		}
	}

	if o.DataAttributeValues != nil {
		clone.DataAttributeValues = make(map[string]interface{}, len(o.DataAttributeValues))
		for k, v := range o.DataAttributeValues {
			clone.DataAttributeValues[k] = v
		}
	}

	if o.StatusListIndex != nil {
		idx := *o.StatusListIndex
		clone.StatusListIndex = &idx
	}

	return &clone
}

// CreateOfferRequest is the input for CreateCredentialOffer.
type CreateOfferRequest struct {
	DataAgreementID     string
	OrganisationID      string
	IssuanceMode        IssuanceMode
	IsPreAuthorised     bool
	SupportsRevocation  bool
	UserPin             string
	ClientID            string
	DataAttributeValues map[string]interface{}
}

// AuthorizeRequest is the wallet's authorization request resolved against an offer.
type AuthorizeRequest struct {
	IssuerState         string
	State               string
	ClientID            string
	CodeChallenge       string
	CodeChallengeMethod string
	RedirectURI         string
	Scope               string
	// Request is an optional signed authorization-request JWT carrying client_metadata.
	Request string
	// ClientMetadata is the plain query-parameter fallback when Request is absent.
	ClientMetadata string
}

// DirectPostRequest is the wallet's ID-token or VP-token response.
type DirectPostRequest struct {
	IDToken                string
	VPToken                string
	PresentationSubmission string
	State                  string
}

// TokenRequest covers both grant paths of the token endpoint.
type TokenRequest struct {
	GrantType           string
	PreAuthorisedCode   string
	UserPin             string
	Code                string
	ClientID            string
	CodeVerifier        string
	ClientAssertion     string
	ClientAssertionType string
}

// TokenResponse is the token endpoint response.
type TokenResponse struct {
	AccessToken     string `json:"access_token"`
	TokenType       string `json:"token_type"`
	ExpiresIn       int64  `json:"expires_in"`
	CNonce          string `json:"c_nonce"`
	CNonceExpiresIn int64  `json:"c_nonce_expires_in"`
}

// IssueCredentialRequest is the credential endpoint input.
type IssueCredentialRequest struct {
	AccessToken string
	Format      string
	Types       []string
	ProofJWT    string
}

// CredentialResponse is the credential endpoint response: either a credential
// or a deferred receipt carrying an acceptance token.
type CredentialResponse struct {
	Format          string `json:"format,omitempty"`
	Credential      string `json:"credential,omitempty"`
	AcceptanceToken string `json:"acceptance_token,omitempty"`
	CNonce          string `json:"c_nonce,omitempty"`
	CNonceExpiresIn int64  `json:"c_nonce_expires_in,omitempty"`
}

// OfferGrants is the grants section of a credential offer document.
type OfferGrants struct {
	AuthorizationCode *AuthorizationCodeGrant `json:"authorization_code,omitempty"`
	PreAuthorizedCode *PreAuthorizedCodeGrant `json:"urn:ietf:params:oauth:grant-type:pre-authorized_code,omitempty"`
}

// AuthorizationCodeGrant carries the issuer_state the wallet must echo.
type AuthorizationCodeGrant struct {
	IssuerState string `json:"issuer_state"`
}

// PreAuthorizedCodeGrant carries the pre-authorized code and PIN requirement.
type PreAuthorizedCodeGrant struct {
	PreAuthorizedCode string `json:"pre-authorized_code"`
	UserPinRequired   bool   `json:"user_pin_required"`
}

// OfferDocument is the credential-offer-by-reference document.
type OfferDocument struct {
	CredentialIssuer string            `json:"credential_issuer"`
	Credentials      []OfferCredential `json:"credentials"`
	Grants           OfferGrants       `json:"grants"`
}

// OfferCredential describes one offered credential.
type OfferCredential struct {
	Format string   `json:"format"`
	Types  []string `json:"types"`
}
