/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuer

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trustmesh/vci/pkg/doc/joseutil"
	"github.com/trustmesh/vci/pkg/restapi/resterr"
	"github.com/trustmesh/vci/pkg/service/dataagreement"
	"github.com/trustmesh/vci/pkg/service/issuance"
)

// errorCodes classifies domain sentinels into protocol error codes, checked in
// order so that more specific sentinels win.
var errorCodes = []struct {
	sentinel error
	code     resterr.Code
}{
	{issuance.ErrInvalidAccessToken, resterr.CodeInvalidAccessToken},
	{issuance.ErrInvalidAcceptanceToken, resterr.CodeInvalidAcceptanceToken},
	{issuance.ErrCredentialPending, resterr.CodeCredentialPending},
	{issuance.ErrCredentialOfferNotFound, resterr.CodeOfferNotFound},
	{issuance.ErrCredentialOfferIsPreAuthorized, resterr.CodeOfferPreAuthorized},
	{issuance.ErrUserPinRequired, resterr.CodeUserPinRequired},
	{issuance.ErrClientIDRequired, resterr.CodeClientIDRequired},
	{issuance.ErrCreateAccessToken, resterr.CodeCreateAccessToken},
	{issuance.ErrCreateCredentialOffer, resterr.CodeCreateOffer},
	{issuance.ErrCredentialOfferRevocation, resterr.CodeOfferRevocation},
	{issuance.ErrInvalidStateInIDTokenResponse, resterr.CodeInvalidState},
	{issuance.ErrUpdateCredentialOffer, resterr.CodeUpdateOffer},
	{joseutil.ErrInvalidProof, resterr.CodeInvalidProof},
	{dataagreement.ErrDataAttributeValidation, resterr.CodeDataAttributeValidation},
	{dataagreement.ErrCreateDataAgreement, resterr.CodeCreateOffer},
	{dataagreement.ErrAgreementNotFound, resterr.CodeOfferNotFound},
}

// mapError translates a domain error into the HTTP response the protocol
// prescribes. Unclassified errors surface as 500 system errors.
func mapError(err error) error {
	for _, entry := range errorCodes {
		if errors.Is(err, entry.sentinel) {
			custom := resterr.NewCustomError(entry.code, err)

			return echo.NewHTTPError(custom.HTTPStatus(), custom)
		}
	}

	custom := resterr.NewCustomError(resterr.CodeSystemError, err)

	return echo.NewHTTPError(http.StatusInternalServerError, custom)
}
