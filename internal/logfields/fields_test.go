/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logfields

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogFields(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	logger.Debug("test",
		WithOfferID("offer-1"),
		WithDataAgreementID("agreement-1"),
		WithOrganisationID("org-1"),
		WithOfferStatus("created"),
		WithResponseType("id_token"),
		WithCredentialTypes([]string{"VerifiableCredential"}),
		WithStatusListIndex(7),
		WithEvent(map[string]string{"type": "created"}),
		WithTopic("vci-issuer"),
	)

	entries := recorded.All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	require.Equal(t, "offer-1", fields[FieldOfferID])
	require.Equal(t, "agreement-1", fields[FieldDataAgreementID])
	require.Equal(t, "org-1", fields[FieldOrganisationID])
	require.Equal(t, "created", fields[FieldOfferStatus])
	require.Equal(t, "id_token", fields[FieldResponseType])
	require.Equal(t, []interface{}{"VerifiableCredential"}, fields[FieldCredentialTypes])
	require.Equal(t, int64(7), fields[FieldStatusListIndex])
	require.Equal(t, "vci-issuer", fields[FieldTopic])
}
