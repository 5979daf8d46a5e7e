/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuance

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"

	"github.com/google/uuid"

	"github.com/trustmesh/vci/pkg/event/spi"
	"github.com/trustmesh/vci/pkg/service/dataagreement"
)

var userPinPattern = regexp.MustCompile(`^[0-9]{4}$`)

// CreateCredentialOffer starts a new issuance transaction against a data
// agreement. Pre-authorized offers carry a fresh pre-authorized code protected
// by a 4-digit PIN; authorization-code offers are bound to the wallet later.
func (s *Service) CreateCredentialOffer(ctx context.Context, req *CreateOfferRequest) (*CredentialOffer, error) {
	agreement, err := s.agreements.GetByID(ctx, req.DataAgreementID)
	if err != nil {
		if errors.Is(err, dataagreement.ErrAgreementNotFound) {
			return nil, fmt.Errorf("%w: credential schema with id %s not found",
				ErrCreateCredentialOffer, req.DataAgreementID)
		}

		return nil, fmt.Errorf("get data agreement: %w", err)
	}

	if req.DataAttributeValues != nil {
		if err = dataagreement.ValidateAttributeValues(agreement, req.DataAttributeValues); err != nil {
			return nil, err
		}
	}

	mode := req.IssuanceMode
	if mode == "" {
		mode = IssuanceModeDataSource
	}

	if mode == IssuanceModeDataSource && req.DataAttributeValues == nil {
		return nil, fmt.Errorf("%w: data attribute values are required for %s issuance",
			ErrCreateCredentialOffer, IssuanceModeDataSource)
	}

	now := s.now().UTC()

	offer := &CredentialOffer{
		DataAgreementID:     req.DataAgreementID,
		OrganisationID:      agreement.OrganisationID,
		Status:              OfferStatusCreated,
		IssuanceMode:        mode,
		IsPreAuthorised:     req.IsPreAuthorised,
		SupportsRevocation:  req.SupportsRevocation,
		ClientID:            req.ClientID,
		DataAttributeValues: req.DataAttributeValues,
		CNonce:              uuid.NewString(),
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if req.IsPreAuthorised {
		pin := req.UserPin
		if pin == "" {
			pin = s.pinGenerator.Generate()
		} else if !userPinPattern.MatchString(pin) {
			return nil, fmt.Errorf("%w: user pin must be 4 digits", ErrCreateCredentialOffer)
		}

		offer.UserPin = pin
		offer.PreAuthorisedCode = uuid.NewString()
		offer.PreAuthorisedCodeExpiresAt = now.Add(preAuthorisedCodeExpiry)
	}

	created, err := s.store.Create(ctx, offer)
	if err != nil {
		return nil, fmt.Errorf("create credential offer: %w", err)
	}

	s.sendOfferEvent(ctx, created, spi.CredentialOfferCreated)

	return created, nil
}

// GetCredentialOffer resolves an offer by id.
func (s *Service) GetCredentialOffer(ctx context.Context, offerID string) (*CredentialOffer, error) {
	offer, err := s.store.Get(ctx, offerID)
	if err != nil {
		if errors.Is(err, ErrDataNotFound) {
			return nil, ErrCredentialOfferNotFound
		}

		return nil, err
	}

	return offer, nil
}

// ListCredentialOffers lists the offers created against one data agreement.
func (s *Service) ListCredentialOffers(ctx context.Context, agreementID string) ([]*CredentialOffer, error) {
	return s.store.ListByAgreement(ctx, agreementID)
}

// DeleteCredentialOffer removes an offer that has not yet been consumed by a
// redeemed token.
func (s *Service) DeleteCredentialOffer(ctx context.Context, offerID string) error {
	offer, err := s.GetCredentialOffer(ctx, offerID)
	if err != nil {
		return err
	}

	switch offer.Status {
	case OfferStatusCreated, OfferStatusAuthorizationBound:
	default:
		return fmt.Errorf("%w: offer %s is already consumed", ErrUpdateCredentialOffer, offerID)
	}

	if err = s.store.Delete(ctx, offerID); err != nil {
		return fmt.Errorf("delete credential offer: %w", err)
	}

	s.sendOfferEvent(ctx, offer, spi.CredentialOfferDeleted)

	return nil
}

// UpdateDeferredOfferWithAttributeValues supplies the backing data of a
// deferred offer, enabling the next deferred poll to issue the credential.
func (s *Service) UpdateDeferredOfferWithAttributeValues(ctx context.Context, offerID string,
	values map[string]interface{}) (*CredentialOffer, error) {
	offer, err := s.GetCredentialOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}

	if offer.IssuanceMode != IssuanceModeDeferred {
		return nil, fmt.Errorf("%w: offer %s is not deferred", ErrUpdateCredentialOffer, offerID)
	}

	agreement, err := s.agreements.GetByID(ctx, offer.DataAgreementID)
	if err != nil {
		return nil, fmt.Errorf("get data agreement: %w", err)
	}

	if err = dataagreement.ValidateAttributeValues(agreement, values); err != nil {
		return nil, err
	}

	offer.DataAttributeValues = values
	offer.UpdatedAt = s.now().UTC()

	if err = s.store.Update(ctx, offer); err != nil {
		return nil, fmt.Errorf("update credential offer: %w", err)
	}

	return offer, nil
}

// InitiateCredentialOffer returns the openid-credential-offer redirect that
// points the wallet at the offer-by-reference document.
func (s *Service) InitiateCredentialOffer(ctx context.Context, offerID string) (string, error) {
	if _, err := s.GetCredentialOffer(ctx, offerID); err != nil {
		return "", err
	}

	offerURI := s.issuerDomain + "/credential-offer/" + offerID

	return "openid-credential-offer://?credential_offer_uri=" + url.QueryEscape(offerURI), nil
}

// CredentialOfferByReference renders the offer document served at the
// credential_offer_uri.
func (s *Service) CredentialOfferByReference(ctx context.Context, offerID string) (*OfferDocument, error) {
	offer, err := s.GetCredentialOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}

	agreement, err := s.agreements.GetByID(ctx, offer.DataAgreementID)
	if err != nil {
		return nil, fmt.Errorf("get data agreement: %w", err)
	}

	doc := &OfferDocument{
		CredentialIssuer: s.issuerDomain,
		Credentials: []OfferCredential{
			{Format: FormatJWTVC, Types: agreement.CredentialTypes},
		},
	}

	if offer.IsPreAuthorised {
		doc.Grants.PreAuthorizedCode = &PreAuthorizedCodeGrant{
			PreAuthorizedCode: offer.PreAuthorisedCode,
			UserPinRequired:   offer.UserPin != "",
		}
	} else {
		// issuer_state round-trips the offer id through the wallet
		doc.Grants.AuthorizationCode = &AuthorizationCodeGrant{IssuerState: offer.ID}
	}

	return doc, nil
}
