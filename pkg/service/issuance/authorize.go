/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/trustmesh/vci/internal/logfields"
	"github.com/trustmesh/vci/pkg/doc/joseutil"
	"github.com/trustmesh/vci/pkg/event/spi"
)

// UpdateOfferFromAuthorisationRequest binds a wallet's authorization request to
// the offer named by issuer_state and returns the direct_post redirect the
// wallet should follow. Binding is single-use: a second request against the
// same offer fails on the state transition.
func (s *Service) UpdateOfferFromAuthorisationRequest(ctx context.Context, req *AuthorizeRequest) (string, error) {
	offer, err := s.GetCredentialOffer(ctx, req.IssuerState)
	if err != nil {
		return "", err
	}

	if offer.IsPreAuthorised {
		return "", ErrCredentialOfferIsPreAuthorized
	}

	if err = validateStateTransition(offer.Status, OfferStatusAuthorizationBound); err != nil {
		return "", err
	}

	clientMetadata, err := resolveClientMetadata(req)
	if err != nil {
		return "", fmt.Errorf("%w: client metadata: %v", ErrUpdateCredentialOffer, err)
	}

	offer.Status = OfferStatusAuthorizationBound
	offer.ClientID = req.ClientID
	offer.CodeChallenge = req.CodeChallenge
	offer.CodeChallengeMethod = req.CodeChallengeMethod
	offer.RedirectURI = req.RedirectURI
	offer.AuthorisationState = req.State
	offer.ClientMetadata = clientMetadata
	offer.UpdatedAt = s.now().UTC()

	if err = s.store.UpdateIfStatus(ctx, offer, OfferStatusCreated); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpdateCredentialOffer, err)
	}

	s.sendOfferEvent(ctx, offer, spi.OfferAuthorizationBound)

	responseType := "id_token"
	requestURI := s.issuerDomain + "/request-uri/" + offer.ID

	if strings.Contains(req.Scope, "vp_token") {
		responseType = "vp_token"
		requestURI = s.issuerDomain + "/verifiable-presentation/" + offer.ID
	}

	logger.Debug("authorization request bound to offer",
		logfields.WithOfferID(offer.ID), logfields.WithResponseType(responseType))

	query := url.Values{}
	query.Set("state", req.State)
	query.Set("client_id", s.issuerDomain+"/direct_post")
	query.Set("redirect_uri", s.issuerDomain+"/direct_post")
	query.Set("response_type", responseType)
	query.Set("response_mode", "direct_post")
	query.Set("scope", "openid")
	query.Set("nonce", offer.CNonce)
	query.Set("request_uri", requestURI)

	return "openid://?" + query.Encode(), nil
}

// resolveClientMetadata prefers the signed request object when present and
// falls back to the plain client_metadata query parameter. The request JWT is
// wallet-signed; its metadata claim is advisory, so no signature check here.
func resolveClientMetadata(req *AuthorizeRequest) (map[string]interface{}, error) {
	if req.Request != "" {
		decoded, err := joseutil.DecodeUnverified(req.Request)
		if err != nil {
			return nil, fmt.Errorf("decode request object: %w", err)
		}

		if metadata, ok := decoded.Claims["client_metadata"].(map[string]interface{}); ok {
			return metadata, nil
		}

		return nil, nil
	}

	if req.ClientMetadata == "" {
		return nil, nil
	}

	var metadata map[string]interface{}
	if err := json.Unmarshal([]byte(req.ClientMetadata), &metadata); err != nil {
		return nil, fmt.Errorf("unmarshal client_metadata: %w", err)
	}

	return metadata, nil
}

// RequestObjectByReference serves the signed ID-token request object at the
// request_uri handed out during authorization binding. VP-token scoped
// bindings are redirected to PresentationRequestByReference instead.
func (s *Service) RequestObjectByReference(ctx context.Context, offerID string) (string, error) {
	offer, err := s.GetCredentialOffer(ctx, offerID)
	if err != nil {
		return "", err
	}

	signer, err := s.signer(ctx, offer.OrganisationID)
	if err != nil {
		return "", err
	}

	claims := map[string]interface{}{
		"iss":           signer.DID(),
		"aud":           offer.ClientID,
		"response_type": "id_token",
		"response_mode": "direct_post",
		"client_id":     signer.DID(),
		"redirect_uri":  s.issuerDomain + "/direct_post",
		"scope":         "openid",
		"nonce":         offer.CNonce,
		"state":         offer.AuthorisationState,
	}

	if offer.ClientMetadata != nil {
		claims["client_metadata"] = offer.ClientMetadata
	}

	return signer.SignClaims("JWT", claims)
}

// PresentationRequestByReference serves the signed VP-token request object,
// including the presentation definition derived from the offer's data
// agreement. Attributes marked for limited disclosure become constrained
// fields the wallet must reveal.
func (s *Service) PresentationRequestByReference(ctx context.Context, offerID string) (string, error) {
	offer, err := s.GetCredentialOffer(ctx, offerID)
	if err != nil {
		return "", err
	}

	agreement, err := s.agreements.GetByID(ctx, offer.DataAgreementID)
	if err != nil {
		return "", fmt.Errorf("get data agreement: %w", err)
	}

	signer, err := s.signer(ctx, offer.OrganisationID)
	if err != nil {
		return "", err
	}

	fields := make([]map[string]interface{}, 0, len(agreement.DataAttributes))

	for _, attr := range agreement.DataAttributes {
		field := map[string]interface{}{
			"id":     attr.Name,
			"path":   []string{"$.credentialSubject." + attr.Name},
			"filter": map[string]interface{}{"type": attr.DataType},
		}
		if attr.LimitedDisclosure {
			field["limit_disclosure"] = true
		}

		fields = append(fields, field)
	}

	claims := map[string]interface{}{
		"iss":           signer.DID(),
		"aud":           offer.ClientID,
		"response_type": "vp_token",
		"response_mode": "direct_post",
		"client_id":     signer.DID(),
		"redirect_uri":  s.issuerDomain + "/direct_post",
		"scope":         "openid",
		"nonce":         offer.CNonce,
		"state":         offer.AuthorisationState,
		"presentation_definition": map[string]interface{}{
			"id":      offer.ID,
			"purpose": agreement.Purpose,
			"input_descriptors": []map[string]interface{}{
				{
					"id":   agreement.ID,
					"name": agreement.Purpose,
					"constraints": map[string]interface{}{
						"fields": fields,
					},
				},
			},
		},
	}

	if offer.ClientMetadata != nil {
		claims["client_metadata"] = offer.ClientMetadata
	}

	return signer.SignClaims("JWT", claims)
}
