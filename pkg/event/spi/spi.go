/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package spi defines the domain-event contract of the issuance core. The core
// only promises "emit event of type X with payload Y"; delivery and retry are
// the transport's concern.
package spi

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	// IssuerEventTopic carries issuance protocol events.
	IssuerEventTopic = "vci-issuer"
	// CredentialStatusEventTopic carries revocation status events.
	CredentialStatusEventTopic = "vci-credentialstatus"
)

// EventType event type.
type EventType string

const (
	CredentialOfferCreated       = EventType("credential_offer_created")
	OfferAuthorizationBound      = EventType("credential_offer_authorization_bound")
	AuthorizationCodeStored      = EventType("credential_offer_authorization_code_stored")
	AccessTokenIssued            = EventType("credential_offer_access_token_issued")
	CredentialIssued             = EventType("credential_issued")
	CredentialDeferred           = EventType("credential_deferred")
	CredentialOfferDeleted       = EventType("credential_offer_deleted")
	CredentialStatusUpdated      = EventType("credentialstatus_status_updated")
	CredentialOfferInteractError = EventType("credential_offer_interaction_failed")
)

// Event is the envelope published to a topic.
type Event struct {
	// ID identifies the event.
	ID string `json:"id"`

	// Source is a URI for the producer.
	Source string `json:"source"`

	// Type defines the event type.
	Type EventType `json:"type"`

	// Time is the time of occurrence.
	Time time.Time `json:"time"`

	// OfferID relates the event to one credential offer, when applicable.
	OfferID string `json:"offerId,omitempty"`

	// Data is the JSON payload.
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent creates an event envelope with a fresh id and the given occurrence time.
func NewEvent(source string, eventType EventType, at time.Time) *Event {
	return &Event{
		ID:     uuid.NewString(),
		Source: source,
		Type:   eventType,
		Time:   at,
	}
}
