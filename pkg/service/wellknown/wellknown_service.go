/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package wellknown renders the discovery documents served under /.well-known.
package wellknown

import (
	"strings"

	"github.com/samber/lo"
)

// OpenIDCredentialIssuerConfiguration is the openid-credential-issuer document.
type OpenIDCredentialIssuerConfiguration struct {
	CredentialIssuer           *string               `json:"credential_issuer,omitempty"`
	AuthorizationServer        *string               `json:"authorization_server,omitempty"`
	CredentialEndpoint         *string               `json:"credential_endpoint,omitempty"`
	DeferredCredentialEndpoint *string               `json:"deferred_credential_endpoint,omitempty"`
	CredentialsSupported       []CredentialSupported `json:"credentials_supported"`
}

// CredentialSupported describes one offered credential configuration.
type CredentialSupported struct {
	Format                               string   `json:"format"`
	Types                                []string `json:"types"`
	CryptographicBindingMethodsSupported []string `json:"cryptographic_binding_methods_supported,omitempty"`
	CryptographicSuitesSupported         []string `json:"cryptographic_suites_supported,omitempty"`
}

// OpenIDConfiguration is the openid-configuration document.
type OpenIDConfiguration struct {
	Issuer                           *string  `json:"issuer,omitempty"`
	AuthorizationEndpoint            *string  `json:"authorization_endpoint,omitempty"`
	TokenEndpoint                    *string  `json:"token_endpoint,omitempty"`
	JWKSURI                          *string  `json:"jwks_uri,omitempty"`
	ScopesSupported                  []string `json:"scopes_supported"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
}

// Config holds configuration options for Service.
type Config struct {
	ExternalHostURL string
}

// Service builds discovery documents parameterized by the issuer domain.
type Service struct {
	externalHostURL string
}

// NewService returns a new Service instance.
func NewService(config *Config) *Service {
	return &Service{
		externalHostURL: strings.TrimSuffix(config.ExternalHostURL, "/"),
	}
}

// GetOpenIDCredentialIssuerConfig returns the openid-credential-issuer
// document listing the credential configurations supported per agreement types.
func (s *Service) GetOpenIDCredentialIssuerConfig(credentialTypes [][]string) *OpenIDCredentialIssuerConfiguration {
	supported := make([]CredentialSupported, 0, len(credentialTypes))

	for _, types := range credentialTypes {
		supported = append(supported, CredentialSupported{
			Format:                               "jwt_vc",
			Types:                                types,
			CryptographicBindingMethodsSupported: []string{"did:key"},
			CryptographicSuitesSupported:         []string{"ES256", "EdDSA"},
		})
	}

	return &OpenIDCredentialIssuerConfiguration{
		CredentialIssuer:           lo.ToPtr(s.externalHostURL),
		AuthorizationServer:        lo.ToPtr(s.externalHostURL),
		CredentialEndpoint:         lo.ToPtr(s.externalHostURL + "/credential"),
		DeferredCredentialEndpoint: lo.ToPtr(s.externalHostURL + "/credential_deferred"),
		CredentialsSupported:       supported,
	}
}

// GetOpenIDConfiguration returns the openid-configuration document.
func (s *Service) GetOpenIDConfiguration() *OpenIDConfiguration {
	return &OpenIDConfiguration{
		Issuer:                 lo.ToPtr(s.externalHostURL),
		AuthorizationEndpoint:  lo.ToPtr(s.externalHostURL + "/authorize"),
		TokenEndpoint:          lo.ToPtr(s.externalHostURL + "/token"),
		JWKSURI:                lo.ToPtr(s.externalHostURL + "/jwks"),
		ScopesSupported:        []string{"openid"},
		ResponseTypesSupported: []string{"code", "vp_token", "id_token"},
		GrantTypesSupported: []string{
			"authorization_code",
			"urn:ietf:params:oauth:grant-type:pre-authorized_code",
		},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{"ES256", "EdDSA"},
	}
}
