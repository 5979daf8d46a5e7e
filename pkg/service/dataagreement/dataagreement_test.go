/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dataagreement_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustmesh/vci/pkg/service/dataagreement"
	"github.com/trustmesh/vci/pkg/storage/memstore"
)

const orgID = "org-1"

func newService() *dataagreement.Service {
	return dataagreement.NewService(&dataagreement.Config{
		Store: memstore.NewAgreementStore(),
	})
}

func passportAttributes() []dataagreement.DataAttribute {
	return []dataagreement.DataAttribute{
		{Name: "name", Description: "Full name", DataType: "string", LimitedDisclosure: true},
		{Name: "country", Description: "Country of residence", DataType: "string"},
	}
}

func TestCreateDataAgreement(t *testing.T) {
	svc := newService()

	agreement, err := svc.CreateDataAgreement(context.Background(), &dataagreement.CreateRequest{
		OrganisationID: orgID,
		Purpose:        "passport issuance",
		DataAttributes: passportAttributes(),
		ExchangeMode:   dataagreement.ExchangeModeDataSource,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, agreement.ID)
	assert.Equal(t, []string{"VerifiableCredential", "PassportIssuance"}, agreement.CredentialTypes)

	got, err := svc.GetByID(context.Background(), agreement.ID)
	require.NoError(t, err)
	assert.Equal(t, agreement.Purpose, got.Purpose)
}

func TestCreateDataAgreement_DuplicatePurpose(t *testing.T) {
	svc := newService()

	req := &dataagreement.CreateRequest{
		OrganisationID: orgID,
		Purpose:        "passport issuance",
		DataAttributes: passportAttributes(),
		ExchangeMode:   dataagreement.ExchangeModeDataSource,
	}

	_, err := svc.CreateDataAgreement(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.CreateDataAgreement(context.Background(), req)
	assert.ErrorIs(t, err, dataagreement.ErrCreateDataAgreement)
}

func TestCreateDataAgreement_InvalidSchema(t *testing.T) {
	svc := newService()

	_, err := svc.CreateDataAgreement(context.Background(), &dataagreement.CreateRequest{
		OrganisationID: orgID,
		Purpose:        "broken schema",
		DataAttributes: []dataagreement.DataAttribute{
			{Name: "age", DataType: "not-a-json-type"},
		},
		ExchangeMode: dataagreement.ExchangeModeDataSource,
	})
	assert.ErrorIs(t, err, dataagreement.ErrCreateDataAgreement)
}

func TestValidateAttributeValues(t *testing.T) {
	agreement := &dataagreement.Agreement{
		DataAttributes: passportAttributes(),
	}

	err := dataagreement.ValidateAttributeValues(agreement, map[string]interface{}{
		"name":    "Alice",
		"country": "SE",
	})
	assert.NoError(t, err)

	err = dataagreement.ValidateAttributeValues(agreement, map[string]interface{}{
		"name":       "Alice",
		"country":    "SE",
		"undeclared": true,
	})
	assert.ErrorIs(t, err, dataagreement.ErrDataAttributeValidation)

	err = dataagreement.ValidateAttributeValues(agreement, map[string]interface{}{
		"name": "Alice", // country missing
	})
	assert.ErrorIs(t, err, dataagreement.ErrDataAttributeValidation)

	err = dataagreement.ValidateAttributeValues(agreement, map[string]interface{}{
		"name":    "Alice",
		"country": 42, // wrong type
	})
	assert.ErrorIs(t, err, dataagreement.ErrDataAttributeValidation)
}
