/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package memstore provides in-memory store implementations used by tests and
// single-node deployments.
package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/trustmesh/vci/pkg/service/dataagreement"
)

// AgreementStore keeps data agreements in memory.
type AgreementStore struct {
	mu   sync.RWMutex
	docs map[string]*dataagreement.Agreement
}

// NewAgreementStore returns an empty AgreementStore.
func NewAgreementStore() *AgreementStore {
	return &AgreementStore{docs: make(map[string]*dataagreement.Agreement)}
}

// Create assigns an id and stores the agreement.
func (s *AgreementStore) Create(_ context.Context, agreement *dataagreement.Agreement) (*dataagreement.Agreement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *agreement
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	s.docs[stored.ID] = &stored

	result := stored

	return &result, nil
}

// GetByID resolves an agreement by id.
func (s *AgreementStore) GetByID(_ context.Context, id string) (*dataagreement.Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, dataagreement.ErrAgreementNotFound
	}

	result := *doc

	return &result, nil
}

// GetByPurposeAndOrganisationID finds an agreement by its purpose within one organisation.
func (s *AgreementStore) GetByPurposeAndOrganisationID(_ context.Context,
	organisationID, purpose string) (*dataagreement.Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.docs {
		if doc.OrganisationID == organisationID && doc.Purpose == purpose {
			result := *doc

			return &result, nil
		}
	}

	return nil, dataagreement.ErrAgreementNotFound
}

// ListByOrganisationID lists all agreements of one organisation.
func (s *AgreementStore) ListByOrganisationID(_ context.Context,
	organisationID string) ([]*dataagreement.Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*dataagreement.Agreement

	for _, doc := range s.docs {
		if doc.OrganisationID == organisationID {
			copied := *doc
			result = append(result, &copied)
		}
	}

	return result, nil
}
