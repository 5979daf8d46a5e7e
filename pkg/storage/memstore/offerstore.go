/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/trustmesh/vci/pkg/service/issuance"
)

// OfferStore keeps credential offers in memory. Update guards run under a
// single mutex, so UpdateIfStatus is a real compare-and-set.
type OfferStore struct {
	mu   sync.RWMutex
	docs map[string]*issuance.CredentialOffer
}

// NewOfferStore returns an empty OfferStore.
func NewOfferStore() *OfferStore {
	return &OfferStore{docs: make(map[string]*issuance.CredentialOffer)}
}

// Create assigns an id and stores the offer.
func (s *OfferStore) Create(_ context.Context, offer *issuance.CredentialOffer) (*issuance.CredentialOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := offer.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	s.docs[stored.ID] = stored

	return stored.Clone(), nil
}

// Get resolves an offer by id.
func (s *OfferStore) Get(_ context.Context, id string) (*issuance.CredentialOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, issuance.ErrDataNotFound
	}

	return doc.Clone(), nil
}

// FindByAuthorisationState finds the offer bound to an authorization state value.
func (s *OfferStore) FindByAuthorisationState(_ context.Context, state string) (*issuance.CredentialOffer, error) {
	return s.findOne(func(o *issuance.CredentialOffer) bool {
		return state != "" && o.AuthorisationState == state
	})
}

// FindByAuthorizationCode finds the offer holding an authorization code.
func (s *OfferStore) FindByAuthorizationCode(_ context.Context, code string) (*issuance.CredentialOffer, error) {
	return s.findOne(func(o *issuance.CredentialOffer) bool {
		return code != "" && o.AuthorizationCode == code
	})
}

// FindByPreAuthorisedCode finds the offer holding a pre-authorized code.
func (s *OfferStore) FindByPreAuthorisedCode(_ context.Context, code string) (*issuance.CredentialOffer, error) {
	return s.findOne(func(o *issuance.CredentialOffer) bool {
		return code != "" && o.PreAuthorisedCode == code
	})
}

// FindByAccessToken finds the offer holding an access token.
func (s *OfferStore) FindByAccessToken(_ context.Context, token string) (*issuance.CredentialOffer, error) {
	return s.findOne(func(o *issuance.CredentialOffer) bool {
		return token != "" && o.AccessToken == token
	})
}

// FindByAcceptanceToken finds the offer holding an acceptance token.
func (s *OfferStore) FindByAcceptanceToken(_ context.Context, token string) (*issuance.CredentialOffer, error) {
	return s.findOne(func(o *issuance.CredentialOffer) bool {
		return token != "" && o.AcceptanceToken == token
	})
}

// ListByAgreement lists all offers created against one data agreement.
func (s *OfferStore) ListByAgreement(_ context.Context, agreementID string) ([]*issuance.CredentialOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*issuance.CredentialOffer

	for _, doc := range s.docs {
		if doc.DataAgreementID == agreementID {
			result = append(result, doc.Clone())
		}
	}

	return result, nil
}

// Update overwrites an existing offer.
func (s *OfferStore) Update(_ context.Context, offer *issuance.CredentialOffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[offer.ID]; !ok {
		return issuance.ErrDataNotFound
	}

	s.docs[offer.ID] = offer.Clone()

	return nil
}

// UpdateIfStatus overwrites the offer only when its stored status equals
// expected, failing otherwise so one-time codes cannot be redeemed twice.
func (s *OfferStore) UpdateIfStatus(_ context.Context, offer *issuance.CredentialOffer,
	expected issuance.OfferStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[offer.ID]
	if !ok {
		return issuance.ErrDataNotFound
	}

	if doc.Status != expected {
		return fmt.Errorf("offer %s is in status %s, expected %s", offer.ID, doc.Status, expected)
	}

	s.docs[offer.ID] = offer.Clone()

	return nil
}

// Delete removes an offer.
func (s *OfferStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return issuance.ErrDataNotFound
	}

	delete(s.docs, id)

	return nil
}

func (s *OfferStore) findOne(match func(*issuance.CredentialOffer) bool) (*issuance.CredentialOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.docs {
		if match(doc) {
			return doc.Clone(), nil
		}
	}

	return nil, issuance.ErrDataNotFound
}
