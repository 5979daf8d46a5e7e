/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package resterr maps domain error kinds to transport-level responses. Domain
// packages return sentinel errors; the REST layer classifies them here so that
// no error propagates as a fatal process failure past a protocol step.
package resterr

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Code identifies one error kind of the issuance protocol.
type Code string

const (
	CodeInvalidRequest          Code = "invalid_request"
	CodeInvalidAccessToken      Code = "invalid_access_token"
	CodeInvalidAcceptanceToken  Code = "invalid_acceptance_token"
	CodeInvalidProof            Code = "invalid_proof"
	CodeCredentialPending       Code = "credential_pending"
	CodeOfferNotFound           Code = "credential_offer_not_found"
	CodeOfferPreAuthorized      Code = "credential_offer_is_pre_authorized"
	CodeUpdateOffer             Code = "update_credential_offer_error"
	CodeUserPinRequired         Code = "user_pin_required"
	CodeClientIDRequired        Code = "client_id_required"
	CodeCreateAccessToken       Code = "create_access_token_error"
	CodeCreateOffer             Code = "create_credential_offer_error"
	CodeOfferRevocation         Code = "credential_offer_revocation_error"
	CodeInvalidState            Code = "invalid_state_in_id_token_response"
	CodeDataAttributeValidation Code = "validate_data_attribute_values_error"
	CodeSystemError             Code = "system_error"
)

// httpStatus maps each code to the status surfaced by the REST adapter.
// Missing/expired bearer tokens are 401; every other protocol-step failure is 400.
var httpStatus = map[Code]int{
	CodeInvalidAccessToken:     http.StatusUnauthorized,
	CodeInvalidAcceptanceToken: http.StatusUnauthorized,
	CodeSystemError:            http.StatusInternalServerError,
}

// CustomError couples a domain error with its protocol code.
type CustomError struct {
	Code Code
	Err  error
}

// NewCustomError wraps err under code.
func NewCustomError(code Code, err error) *CustomError {
	return &CustomError{Code: code, Err: err}
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the transport status for the error code.
func (e *CustomError) HTTPStatus() int {
	if status, ok := httpStatus[e.Code]; ok {
		return status
	}

	return http.StatusBadRequest
}

// MarshalJSON renders the RFC-6749 style error body.
func (e *CustomError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"error":             string(e.Code),
		"error_description": e.Err.Error(),
	})
}
