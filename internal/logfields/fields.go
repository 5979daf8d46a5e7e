/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logfields

import (
	"go.uber.org/zap"
)

// Log Fields.
const (
	FieldOfferID         = "offerId"
	FieldDataAgreementID = "dataAgreementId"
	FieldOrganisationID  = "organisationId"
	FieldOfferStatus     = "offerStatus"
	FieldResponseType    = "responseType"
	FieldCredentialTypes = "credentialTypes"
	FieldStatusListIndex = "statusListIndex"
	FieldEvent           = "event"
	FieldTopic           = "topic"
)

// WithOfferID sets the offerId field.
func WithOfferID(offerID string) zap.Field {
	return zap.String(FieldOfferID, offerID)
}

// WithDataAgreementID sets the dataAgreementId field.
func WithDataAgreementID(agreementID string) zap.Field {
	return zap.String(FieldDataAgreementID, agreementID)
}

// WithOrganisationID sets the organisationId field.
func WithOrganisationID(organisationID string) zap.Field {
	return zap.String(FieldOrganisationID, organisationID)
}

// WithOfferStatus sets the offerStatus field.
func WithOfferStatus(status string) zap.Field {
	return zap.String(FieldOfferStatus, status)
}

// WithResponseType sets the responseType field.
func WithResponseType(responseType string) zap.Field {
	return zap.String(FieldResponseType, responseType)
}

// WithCredentialTypes sets the credentialTypes field.
func WithCredentialTypes(types []string) zap.Field {
	return zap.Strings(FieldCredentialTypes, types)
}

// WithStatusListIndex sets the statusListIndex field.
func WithStatusListIndex(index int) zap.Field {
	return zap.Int(FieldStatusListIndex, index)
}

// WithEvent sets the event field.
func WithEvent(event interface{}) zap.Field {
	return zap.Any(FieldEvent, event)
}

// WithTopic sets the topic field.
func WithTopic(topic string) zap.Field {
	return zap.String(FieldTopic, topic)
}
