/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package joseutil builds and verifies the JWTs exchanged during credential
// issuance: ID-tokens, proof-of-possession tokens, VP-token responses, SD-JWT
// credentials and plain signed credentials.
package joseutil

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/google/uuid"

	"github.com/trustmesh/vci/pkg/doc/keydid"
)

const (
	// TypeProofOfPossession is the JOSE typ of an OpenID4VCI holder proof.
	TypeProofOfPossession = "openid4vci-proof+jwt"

	idTokenExpiry = time.Hour
	proofExpiry   = 24 * time.Hour
	sdJWTExpiry   = time.Hour

	sdAlg = "sha-256"
)

// Clock supplies wall-clock time so that iat/exp/nbf are deterministic under test.
type Clock func() time.Time

// Signer issues compact-serialized JWTs on behalf of one identity.
type Signer struct {
	identity *keydid.Identity
	now      Clock
}

// SignerOption customizes a Signer.
type SignerOption func(*Signer)

// WithClock overrides the wall clock.
func WithClock(now Clock) SignerOption {
	return func(s *Signer) {
		s.now = now
	}
}

// NewSigner returns a Signer bound to identity.
func NewSigner(identity *keydid.Identity, opts ...SignerOption) *Signer {
	s := &Signer{
		identity: identity,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// DID returns the signing identity's did:key identifier.
func (s *Signer) DID() string {
	return s.identity.DID
}

func (s *Signer) joseSigner(typ string) (jose.Signer, error) {
	opts := (&jose.SignerOptions{}).WithHeader(jose.HeaderKey("kid"), s.identity.KID())
	if typ != "" {
		opts = opts.WithType(jose.ContentType(typ))
	}

	signer, err := jose.NewSigner(jose.SigningKey{
		Algorithm: s.identity.Algorithm,
		Key:       s.identity.Signer(),
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("create jose signer: %w", err)
	}

	return signer, nil
}

// IDToken returns a self-signed authentication assertion with a one-hour expiry.
func (s *Signer) IDToken(audience, nonce string) (string, error) {
	now := s.now()

	return s.SignClaims("JWT", map[string]interface{}{
		"iss":   s.identity.DID,
		"sub":   s.identity.DID,
		"aud":   audience,
		"iat":   now.Unix(),
		"exp":   now.Add(idTokenExpiry).Unix(),
		"nonce": nonce,
	})
}

// ProofOfPossession returns a holder proof JWT with a 24-hour expiry. The
// signature algorithm follows the identity suite (ES256 or EdDSA).
func (s *Signer) ProofOfPossession(audience, nonce string) (string, error) {
	now := s.now()

	return s.SignClaims(TypeProofOfPossession, map[string]interface{}{
		"iss":   s.identity.DID,
		"aud":   audience,
		"iat":   now.Unix(),
		"exp":   now.Add(proofExpiry).Unix(),
		"nonce": nonce,
	})
}

// VPTokenResponse wraps the given credentials in a Verifiable Presentation and
// signs the enclosing JWT with a fresh urn:uuid jti.
func (s *Signer) VPTokenResponse(audience, nonce string, credentials []string) (string, error) {
	now := s.now()
	jti := "urn:uuid:" + uuid.NewString()

	return s.SignClaims("JWT", map[string]interface{}{
		"iss":   s.identity.DID,
		"sub":   s.identity.DID,
		"aud":   audience,
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"exp":   now.Add(idTokenExpiry).Unix(),
		"nonce": nonce,
		"jti":   jti,
		"vp": map[string]interface{}{
			"@context":             []string{"https://www.w3.org/2018/credentials/v1"},
			"id":                   jti,
			"type":                 []string{"VerifiablePresentation"},
			"holder":               s.identity.DID,
			"verifiableCredential": credentials,
		},
	})
}

// SDJWT signs a selective-disclosure payload: digests land in the _sd array and
// plain claims are embedded as-is. Disclosures are appended by the caller via
// CombinedFormat.
func (s *Signer) SDJWT(digests []string, claims map[string]interface{}) (string, error) {
	now := s.now()

	payload := map[string]interface{}{
		"_sd":     digests,
		"_sd_alg": sdAlg,
		"iss":     s.identity.DID,
		"iat":     now.Unix(),
		"exp":     now.Add(sdJWTExpiry).Unix(),
	}

	for k, v := range claims {
		payload[k] = v
	}

	return s.SignClaims("", payload)
}

// SignClaims signs an arbitrary claims set. typ is carried in the JOSE header
// when non-empty. The kid header always carries "<did>#<method-specific-id>".
func (s *Signer) SignClaims(typ string, claims map[string]interface{}) (string, error) {
	signer, err := s.joseSigner(typ)
	if err != nil {
		return "", err
	}

	raw, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("sign claims: %w", err)
	}

	return raw, nil
}
