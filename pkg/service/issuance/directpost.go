/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuance

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/trustmesh/vci/internal/logfields"
	"github.com/trustmesh/vci/pkg/doc/joseutil"
	"github.com/trustmesh/vci/pkg/event/spi"
)

// HandleDirectPost consumes the wallet's ID-token or VP-token response, mints
// a single-use authorization code and returns the redirect carrying code and
// state back to the wallet.
func (s *Service) HandleDirectPost(ctx context.Context, req *DirectPostRequest) (string, error) {
	offer, err := s.store.FindByAuthorisationState(ctx, req.State)
	if err != nil {
		return "", fmt.Errorf("%w: state %s", ErrInvalidStateInIDTokenResponse, req.State)
	}

	if offer.AuthorizationCode != "" {
		return "", fmt.Errorf("%w: token response already consumed", ErrInvalidStateInIDTokenResponse)
	}

	token := req.IDToken
	if token == "" {
		token = req.VPToken
	}

	if token == "" {
		return "", fmt.Errorf("%w: missing token response", ErrInvalidStateInIDTokenResponse)
	}

	if _, err = s.verifier.VerifyProof(token, joseutil.Expected{
		Audience: s.issuerDomain,
		Nonce:    offer.CNonce,
	}); err != nil {
		return "", err
	}

	offer.AuthorizationCode = uuid.NewString()
	offer.UpdatedAt = s.now().UTC()

	// status-guarded write: the code cannot be minted once the offer moved on
	if err = s.store.UpdateIfStatus(ctx, offer, OfferStatusAuthorizationBound); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpdateCredentialOffer, err)
	}

	s.sendOfferEvent(ctx, offer, spi.AuthorizationCodeStored)

	logger.Debug("authorization code minted", logfields.WithOfferID(offer.ID))

	query := url.Values{}
	query.Set("code", offer.AuthorizationCode)
	query.Set("state", req.State)

	return offer.RedirectURI + "?" + query.Encode(), nil
}
