/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuance

import (
	"context"
	"fmt"

	"github.com/trustmesh/vci/internal/logfields"
	"github.com/trustmesh/vci/pkg/event/spi"
)

// UpdateRevocationStatus flips the offer's bit in the organisation status list
// and records the new state on the offer. Only offers that were issued with a
// status list index can be revoked.
func (s *Service) UpdateRevocationStatus(ctx context.Context, offerID string, revoked bool) (*CredentialOffer, error) {
	offer, err := s.GetCredentialOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}

	if offer.StatusListIndex == nil {
		return nil, fmt.Errorf("%w: offer %s has no status list index", ErrCredentialOfferRevocation, offerID)
	}

	if offer.IsRevoked == revoked {
		return offer, nil
	}

	if err = s.statusList.SetStatus(ctx, offer.OrganisationID, *offer.StatusListIndex, revoked); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialOfferRevocation, err)
	}

	offer.IsRevoked = revoked
	offer.UpdatedAt = s.now().UTC()

	if err = s.store.Update(ctx, offer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialOfferRevocation, err)
	}

	s.sendOfferEvent(ctx, offer, spi.CredentialStatusUpdated)

	logger.Info("credential revocation status updated", logfields.WithOfferID(offer.ID),
		logfields.WithStatusListIndex(*offer.StatusListIndex))

	return offer, nil
}
