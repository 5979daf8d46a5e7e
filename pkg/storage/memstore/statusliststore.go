/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/trustmesh/vci/pkg/service/credentialstatus"
)

// StatusListStore keeps per-organisation status lists in memory.
type StatusListStore struct {
	mu   sync.RWMutex
	docs map[string]*credentialstatus.StatusList
}

// NewStatusListStore returns an empty StatusListStore.
func NewStatusListStore() *StatusListStore {
	return &StatusListStore{docs: make(map[string]*credentialstatus.StatusList)}
}

// Get resolves the status list of one organisation.
func (s *StatusListStore) Get(_ context.Context, organisationID string) (*credentialstatus.StatusList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[organisationID]
	if !ok {
		return nil, credentialstatus.ErrStatusListNotFound
	}

	result := *doc

	return &result, nil
}

// UpsertIfVersion writes the list only when the stored version matches
// expected; expected 0 inserts a fresh list.
func (s *StatusListStore) UpsertIfVersion(_ context.Context,
	list *credentialstatus.StatusList, expected int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[list.OrganisationID]
	if !ok {
		if expected != 0 {
			return fmt.Errorf("status list for %s does not exist", list.OrganisationID)
		}
	} else if doc.Version != expected {
		return fmt.Errorf("status list version conflict for %s", list.OrganisationID)
	}

	stored := *list
	s.docs[list.OrganisationID] = &stored

	return nil
}
