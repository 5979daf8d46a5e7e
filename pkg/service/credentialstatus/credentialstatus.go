/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package credentialstatus maintains one revocation bitstring per organisation
// and publishes it as a signed status-list credential.
package credentialstatus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/trustmesh/vci/internal/logfields"
	"github.com/trustmesh/vci/pkg/doc/joseutil"
	"github.com/trustmesh/vci/pkg/doc/keydid"
	"github.com/trustmesh/vci/pkg/event/spi"
	"github.com/trustmesh/vci/pkg/internal/common/utils"
)

var logger = log.New("credentialstatus")

const (
	// initialListSize is the bit capacity of a fresh status list.
	initialListSize = 128

	statusListType    = "StatusList2021Credential"
	statusListSubject = "StatusList2021"
	statusPurpose     = "revocation"
)

// ErrStatusListNotFound is returned when an organisation has no status list yet.
var ErrStatusListNotFound = errors.New("status list not found")

// StatusList is the persisted revocation state of one organisation: the
// encoded bitstring, the next free index, and a version for optimistic locking.
type StatusList struct {
	OrganisationID string    `json:"organisationId"`
	EncodedBits    string    `json:"encodedBits"`
	NextIndex      int       `json:"nextIndex"`
	Version        int       `json:"version"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type statusListStore interface {
	Get(ctx context.Context, organisationID string) (*StatusList, error)
	// UpsertIfVersion writes list only when the stored version equals expected
	// (0 means no list exists yet), making concurrent bit flips safe.
	UpsertIfVersion(ctx context.Context, list *StatusList, expected int) error
}

type identityProvider interface {
	Identity(ctx context.Context, organisationID string) (*keydid.Identity, error)
}

type eventService interface {
	Publish(ctx context.Context, topic string, events ...*spi.Event) error
}

// Config holds configuration options and dependencies for Service.
type Config struct {
	Store            statusListStore
	IdentityProvider identityProvider
	EventService     eventService
	IssuerDomain     string
	Clock            joseutil.Clock
}

// Service manages per-organisation status lists.
type Service struct {
	store        statusListStore
	identities   identityProvider
	eventSvc     eventService
	issuerDomain string
	now          joseutil.Clock
}

// New returns a new Service instance.
func New(cfg *Config) *Service {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &Service{
		store:        cfg.Store,
		identities:   cfg.IdentityProvider,
		eventSvc:     cfg.EventService,
		issuerDomain: cfg.IssuerDomain,
		now:          now,
	}
}

// Allocate reserves the next free index in the organisation's status list,
// creating or growing the list as needed.
func (s *Service) Allocate(ctx context.Context, organisationID string) (int, error) {
	for {
		list, err := s.store.Get(ctx, organisationID)
		if err != nil {
			if !errors.Is(err, ErrStatusListNotFound) {
				return 0, fmt.Errorf("get status list: %w", err)
			}

			list, err = s.newStatusList(organisationID)
			if err != nil {
				return 0, err
			}
		}

		bits, err := utils.DecodeBits(list.EncodedBits)
		if err != nil {
			return 0, fmt.Errorf("decode status list: %w", err)
		}

		if list.NextIndex >= bits.Len() {
			bits = growBitString(bits)
		}

		index := list.NextIndex

		expected := list.Version
		list.NextIndex = index + 1
		list.Version++
		list.UpdatedAt = s.now().UTC()

		if list.EncodedBits, err = bits.EncodeBits(); err != nil {
			return 0, fmt.Errorf("encode status list: %w", err)
		}

		if err = s.store.UpsertIfVersion(ctx, list, expected); err == nil {
			return index, nil
		}

		logger.Debug("status list allocation raced, retrying",
			logfields.WithOrganisationID(organisationID))
	}
}

// SetStatus flips the revocation bit at index. The write is retried on version
// conflicts so concurrent flips on different indices never lose updates.
func (s *Service) SetStatus(ctx context.Context, organisationID string, index int, revoked bool) error {
	for {
		list, err := s.store.Get(ctx, organisationID)
		if err != nil {
			return fmt.Errorf("get status list: %w", err)
		}

		if index >= list.NextIndex {
			return fmt.Errorf("status list index %d is not allocated", index)
		}

		bits, err := utils.DecodeBits(list.EncodedBits)
		if err != nil {
			return fmt.Errorf("decode status list: %w", err)
		}

		if err = bits.Set(index, revoked); err != nil {
			return fmt.Errorf("set status bit: %w", err)
		}

		expected := list.Version
		list.Version++
		list.UpdatedAt = s.now().UTC()

		if list.EncodedBits, err = bits.EncodeBits(); err != nil {
			return fmt.Errorf("encode status list: %w", err)
		}

		if err = s.store.UpsertIfVersion(ctx, list, expected); err == nil {
			s.sendStatusEvent(ctx, organisationID, index, revoked)

			return nil
		}

		logger.Debug("status list update raced, retrying",
			logfields.WithOrganisationID(organisationID), logfields.WithStatusListIndex(index))
	}
}

// GetStatus reports the revocation bit at index.
func (s *Service) GetStatus(ctx context.Context, organisationID string, index int) (bool, error) {
	list, err := s.store.Get(ctx, organisationID)
	if err != nil {
		return false, fmt.Errorf("get status list: %w", err)
	}

	bits, err := utils.DecodeBits(list.EncodedBits)
	if err != nil {
		return false, fmt.Errorf("decode status list: %w", err)
	}

	revoked, err := bits.Get(index)
	if err != nil {
		return false, fmt.Errorf("get status bit: %w", err)
	}

	return revoked, nil
}

// StatusListCredential signs the organisation's current bitstring into a
// status-list credential JWT. The document always reflects the latest state.
func (s *Service) StatusListCredential(ctx context.Context, organisationID string) (string, error) {
	list, err := s.store.Get(ctx, organisationID)
	if err != nil {
		return "", fmt.Errorf("get status list: %w", err)
	}

	identity, err := s.identities.Identity(ctx, organisationID)
	if err != nil {
		return "", fmt.Errorf("resolve organisation identity: %w", err)
	}

	signer := joseutil.NewSigner(identity, joseutil.WithClock(s.now))

	now := s.now().UTC()
	listID := s.issuerDomain + "/credentials/status/" + organisationID

	return signer.SignClaims("JWT", map[string]interface{}{
		"iss": identity.DID,
		"jti": listID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"vc": map[string]interface{}{
			"@context": []string{
				"https://www.w3.org/2018/credentials/v1",
				"https://w3id.org/vc/status-list/2021/v1",
			},
			"id":           listID,
			"type":         []string{"VerifiableCredential", statusListType},
			"issuer":       identity.DID,
			"issuanceDate": now.Format("2006-01-02T15:04:05Z"),
			"credentialSubject": map[string]interface{}{
				"id":            listID + "#list",
				"type":          statusListSubject,
				"statusPurpose": statusPurpose,
				"encodedList":   list.EncodedBits,
			},
		},
	})
}

func (s *Service) newStatusList(organisationID string) (*StatusList, error) {
	encoded, err := utils.NewBitString(initialListSize).EncodeBits()
	if err != nil {
		return nil, fmt.Errorf("encode status list: %w", err)
	}

	return &StatusList{
		OrganisationID: organisationID,
		EncodedBits:    encoded,
	}, nil
}

func growBitString(bits *utils.BitString) *utils.BitString {
	grown := utils.NewBitString(bits.Len() * 2)

	for i := 0; i < bits.Len(); i++ {
		set, err := bits.Get(i)
		if err != nil {
			continue
		}

		if set {
			_ = grown.Set(i, true)
		}
	}

	return grown
}

func (s *Service) sendStatusEvent(ctx context.Context, organisationID string, index int, revoked bool) {
	if s.eventSvc == nil {
		return
	}

	event := spi.NewEvent(s.issuerDomain, spi.CredentialStatusUpdated, s.now())

	if err := s.eventSvc.Publish(ctx, spi.CredentialStatusEventTopic, event); err != nil {
		logger.Warn("publish status event failed, ignoring", log.WithError(err))
	}

	logger.Debug("status bit updated", logfields.WithOrganisationID(organisationID),
		logfields.WithStatusListIndex(index), logfields.WithOfferStatus(fmt.Sprintf("revoked=%t", revoked)))
}
