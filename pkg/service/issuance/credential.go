/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuance

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/trustmesh/vci/internal/logfields"
	"github.com/trustmesh/vci/pkg/doc/joseutil"
	"github.com/trustmesh/vci/pkg/event/spi"
	"github.com/trustmesh/vci/pkg/service/dataagreement"
)

// IssueCredential serves the credential endpoint. The access token is resolved
// to its offer, the holder proof is bound to the offer's nonce, and then the
// credential is produced immediately or, for deferred offers, an acceptance
// token is handed out instead.
func (s *Service) IssueCredential(ctx context.Context, req *IssueCredentialRequest) (*CredentialResponse, error) {
	offer, err := s.store.FindByAccessToken(ctx, req.AccessToken)
	if err != nil {
		return nil, ErrInvalidAccessToken
	}

	if !offer.TokenExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("%w: token expired", ErrInvalidAccessToken)
	}

	// idempotent re-request after issuance
	if offer.Status == OfferStatusCredentialIssued && offer.Credential != "" {
		return &CredentialResponse{Format: FormatJWTVC, Credential: offer.Credential}, nil
	}

	decoded, err := s.verifier.VerifyProof(req.ProofJWT, joseutil.Expected{
		Audience: s.issuerDomain,
		Nonce:    offer.CNonce,
		Type:     joseutil.TypeProofOfPossession,
	})
	if err != nil {
		return nil, err
	}

	holderDID, _ := decoded.Claims["iss"].(string)
	if holderDID == "" {
		holderDID, _, _ = strings.Cut(decoded.KeyID, "#")
	}

	if offer.IssuanceMode == IssuanceModeDeferred && offer.DataAttributeValues == nil {
		offer.HolderDID = holderDID

		return s.deferIssuance(ctx, offer)
	}

	return s.issueNow(ctx, offer, holderDID, OfferStatusTokenIssued)
}

// IssueDeferredCredential serves the deferred endpoint. Polls are idempotent:
// while the backing data is absent every poll returns ErrCredentialPending;
// once present, exactly one poll performs the issued transition and later
// polls return the stored credential.
func (s *Service) IssueDeferredCredential(ctx context.Context, acceptanceToken string) (*CredentialResponse, error) {
	offer, err := s.store.FindByAcceptanceToken(ctx, acceptanceToken)
	if err != nil {
		return nil, ErrInvalidAcceptanceToken
	}

	if !offer.AcceptanceTokenExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("%w: token expired", ErrInvalidAcceptanceToken)
	}

	if offer.Status == OfferStatusCredentialIssued && offer.Credential != "" {
		return &CredentialResponse{Format: FormatJWTVC, Credential: offer.Credential}, nil
	}

	if offer.DataAttributeValues == nil {
		return nil, ErrCredentialPending
	}

	return s.issueNow(ctx, offer, offer.HolderDID, OfferStatusCredentialDeferred)
}

func (s *Service) deferIssuance(ctx context.Context, offer *CredentialOffer) (*CredentialResponse, error) {
	now := s.now().UTC()

	offer.Status = OfferStatusCredentialDeferred
	offer.AcceptanceToken = uuid.NewString()
	offer.AcceptanceTokenExpiresAt = now.Add(acceptanceTokenExpiry)
	offer.UpdatedAt = now

	if err := s.store.UpdateIfStatus(ctx, offer, OfferStatusTokenIssued); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpdateCredentialOffer, err)
	}

	s.sendOfferEvent(ctx, offer, spi.CredentialDeferred)

	return &CredentialResponse{
		AcceptanceToken: offer.AcceptanceToken,
		CNonce:          offer.CNonce,
		CNonceExpiresIn: int64(accessTokenExpiry.Seconds()),
	}, nil
}

func (s *Service) issueNow(ctx context.Context, offer *CredentialOffer,
	holderDID string, expected OfferStatus) (*CredentialResponse, error) {
	agreement, err := s.agreements.GetByID(ctx, offer.DataAgreementID)
	if err != nil {
		return nil, fmt.Errorf("get data agreement: %w", err)
	}

	signer, err := s.signer(ctx, offer.OrganisationID)
	if err != nil {
		return nil, err
	}

	if offer.SupportsRevocation && offer.StatusListIndex == nil {
		index, allocErr := s.statusList.Allocate(ctx, offer.OrganisationID)
		if allocErr != nil {
			return nil, fmt.Errorf("allocate status list index: %w", allocErr)
		}

		offer.StatusListIndex = &index
	}

	credential, err := s.composeCredential(signer, offer, agreement, holderDID)
	if err != nil {
		return nil, err
	}

	offer.Status = OfferStatusCredentialIssued
	offer.Credential = credential
	offer.HolderDID = holderDID
	offer.UpdatedAt = s.now().UTC()

	if err = s.store.UpdateIfStatus(ctx, offer, expected); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpdateCredentialOffer, err)
	}

	s.sendOfferEvent(ctx, offer, spi.CredentialIssued)

	logger.Info("credential issued", logfields.WithOfferID(offer.ID),
		logfields.WithCredentialTypes(agreement.CredentialTypes))

	return &CredentialResponse{Format: FormatJWTVC, Credential: credential}, nil
}

// composeCredential builds and signs the jwt_vc payload. Attributes marked for
// limited disclosure become _sd digests with the disclosures appended in
// combined format; the rest are embedded as plain subject claims.
func (s *Service) composeCredential(signer *joseutil.Signer, offer *CredentialOffer,
	agreement *dataagreement.Agreement, holderDID string) (string, error) {
	subject := map[string]interface{}{}
	if holderDID != "" {
		subject["id"] = holderDID
	}

	var (
		digests     []string
		disclosures []*joseutil.Disclosure
	)

	for _, attr := range agreement.DataAttributes {
		value, ok := offer.DataAttributeValues[attr.Name]
		if !ok {
			continue
		}

		if attr.LimitedDisclosure {
			disclosure, err := joseutil.NewDisclosure(attr.Name, value)
			if err != nil {
				return "", fmt.Errorf("create disclosure: %w", err)
			}

			digests = append(digests, disclosure.Digest)
			disclosures = append(disclosures, disclosure)

			continue
		}

		subject[attr.Name] = value
	}

	now := s.now().UTC()

	vc := map[string]interface{}{
		"@context":          []string{"https://www.w3.org/2018/credentials/v1"},
		"id":                "urn:uuid:" + offer.ID,
		"type":              append([]string{"VerifiableCredential"}, agreement.CredentialTypes...),
		"issuer":            signer.DID(),
		"issuanceDate":      now.Format("2006-01-02T15:04:05Z"),
		"credentialSubject": subject,
	}

	if offer.StatusListIndex != nil {
		index := *offer.StatusListIndex
		vc["credentialStatus"] = map[string]interface{}{
			"id":                   s.issuerDomain + "/credentials/status/" + strconv.Itoa(index),
			"type":                 "StatusList2021Entry",
			"statusPurpose":        "revocation",
			"statusListIndex":      strconv.Itoa(index),
			"statusListCredential": s.issuerDomain + "/credentials/status/" + strconv.Itoa(index),
		}
	}

	claims := map[string]interface{}{
		"iss": signer.DID(),
		"jti": "urn:uuid:" + offer.ID,
		"nbf": now.Unix(),
		"iat": now.Unix(),
		"vc":  vc,
	}

	if holderDID != "" {
		claims["sub"] = holderDID
	}

	if len(digests) == 0 {
		return signer.SignClaims("JWT", claims)
	}

	subject["_sd"] = digests
	claims["_sd_alg"] = "sha-256"

	token, err := signer.SignClaims("JWT", claims)
	if err != nil {
		return "", err
	}

	return joseutil.CombinedFormat(token, disclosures), nil
}
