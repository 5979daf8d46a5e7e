/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuance

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"

	"github.com/trustmesh/vci/internal/logfields"
	"github.com/trustmesh/vci/pkg/doc/joseutil"
	"github.com/trustmesh/vci/pkg/event/spi"
)

const (
	tokenTypeBearer = "bearer"

	codeChallengeMethodS256 = "S256"

	clientAssertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
)

// CreateAccessToken redeems a pre-authorized code or an authorization code for
// an access token. Each code is consumable exactly once: the persistence write
// is a status-guarded compare-and-set, and the token is disclosed to the
// caller only after that write committed.
func (s *Service) CreateAccessToken(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	var (
		offer    *CredentialOffer
		expected OfferStatus
		err      error
	)

	switch req.GrantType {
	case GrantTypePreAuthorizedCode:
		offer, err = s.redeemPreAuthorisedCode(ctx, req)
		expected = OfferStatusCreated
	case GrantTypeAuthorizationCode:
		offer, err = s.redeemAuthorizationCode(ctx, req)
		expected = OfferStatusAuthorizationBound
	default:
		return nil, fmt.Errorf("%w: unsupported grant type %q", ErrCreateAccessToken, req.GrantType)
	}

	if err != nil {
		return nil, err
	}

	now := s.now().UTC()

	offer.Status = OfferStatusTokenIssued
	offer.AccessToken = uuid.NewString()
	offer.CNonce = uuid.NewString()
	offer.TokenExpiresAt = now.Add(accessTokenExpiry)
	offer.UpdatedAt = now

	if err = s.store.UpdateIfStatus(ctx, offer, expected); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateAccessToken, err)
	}

	s.sendOfferEvent(ctx, offer, spi.AccessTokenIssued)

	logger.Debug("access token issued", logfields.WithOfferID(offer.ID))

	return &TokenResponse{
		AccessToken:     offer.AccessToken,
		TokenType:       tokenTypeBearer,
		ExpiresIn:       int64(accessTokenExpiry.Seconds()),
		CNonce:          offer.CNonce,
		CNonceExpiresIn: int64(accessTokenExpiry.Seconds()),
	}, nil
}

func (s *Service) redeemPreAuthorisedCode(ctx context.Context, req *TokenRequest) (*CredentialOffer, error) {
	offer, err := s.store.FindByPreAuthorisedCode(ctx, req.PreAuthorisedCode)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown pre-authorized code", ErrCreateAccessToken)
	}

	if !offer.PreAuthorisedCodeExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("%w: pre-authorized code expired", ErrCreateAccessToken)
	}

	if offer.UserPin != "" {
		if req.UserPin == "" {
			return nil, ErrUserPinRequired
		}

		if !s.pinGenerator.Validate(offer.UserPin, req.UserPin) {
			return nil, fmt.Errorf("%w: user pin mismatch", ErrCreateAccessToken)
		}
	}

	return offer, nil
}

func (s *Service) redeemAuthorizationCode(ctx context.Context, req *TokenRequest) (*CredentialOffer, error) {
	offer, err := s.store.FindByAuthorizationCode(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown authorization code", ErrCreateAccessToken)
	}

	if offer.ClientID != "" {
		if req.ClientID == "" {
			return nil, ErrClientIDRequired
		}

		if req.ClientID != offer.ClientID {
			return nil, fmt.Errorf("%w: client id mismatch", ErrCreateAccessToken)
		}
	}

	switch {
	case req.CodeVerifier != "":
		if err = verifyPKCE(offer, req.CodeVerifier); err != nil {
			return nil, err
		}
	case req.ClientAssertion != "":
		if err = s.verifyClientAssertion(req); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: code_verifier or client_assertion required", ErrCreateAccessToken)
	}

	return offer, nil
}

// verifyPKCE checks base64url(SHA-256(verifier)) against the stored challenge.
func verifyPKCE(offer *CredentialOffer, verifier string) error {
	if offer.CodeChallengeMethod != codeChallengeMethodS256 {
		return fmt.Errorf("%w: unsupported code challenge method %q",
			ErrCreateAccessToken, offer.CodeChallengeMethod)
	}

	digest := sha256.Sum256([]byte(verifier))

	if base64.RawURLEncoding.EncodeToString(digest[:]) != offer.CodeChallenge {
		return fmt.Errorf("%w: code verifier mismatch", ErrCreateAccessToken)
	}

	return nil
}

func (s *Service) verifyClientAssertion(req *TokenRequest) error {
	if req.ClientAssertionType != clientAssertionTypeJWTBearer {
		return fmt.Errorf("%w: unsupported client assertion type %q",
			ErrCreateAccessToken, req.ClientAssertionType)
	}

	decoded, err := s.verifier.VerifyProof(req.ClientAssertion, joseutil.Expected{
		Audience: s.issuerDomain,
	})
	if err != nil {
		return fmt.Errorf("%w: client assertion: %v", ErrCreateAccessToken, err)
	}

	if iss, _ := decoded.Claims["iss"].(string); req.ClientID != "" && iss != req.ClientID {
		return fmt.Errorf("%w: client assertion issuer mismatch", ErrCreateAccessToken)
	}

	return nil
}
