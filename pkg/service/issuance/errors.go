/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuance

import "errors"

var (
	// ErrDataNotFound is returned by stores when no record matches.
	ErrDataNotFound = errors.New("data not found")

	ErrCredentialOfferNotFound        = errors.New("credential offer not found")
	ErrCredentialOfferIsPreAuthorized = errors.New("credential offer is pre-authorized")
	ErrUpdateCredentialOffer          = errors.New("update credential offer failed")
	ErrCreateCredentialOffer          = errors.New("create credential offer failed")
	ErrUserPinRequired                = errors.New("user pin required")
	ErrClientIDRequired               = errors.New("client id required")
	ErrCreateAccessToken              = errors.New("create access token failed")
	ErrInvalidStateInIDTokenResponse  = errors.New("invalid state in id token response")
	ErrInvalidAccessToken             = errors.New("invalid access token")
	ErrInvalidAcceptanceToken         = errors.New("invalid acceptance token")
	ErrCredentialOfferRevocation      = errors.New("credential offer revocation failed")
	ErrCredentialPending              = errors.New("credential pending")
)
