/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package offerstore persists credential offers in mongo.
package offerstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trustmesh/vci/pkg/service/issuance"
	"github.com/trustmesh/vci/pkg/storage/mongodb"
)

const collectionName = "credentialoffers"

type mongoDocument struct {
	ID primitive.ObjectID `bson:"_id,omitempty"`

	DataAgreementID string `bson:"dataAgreementId"`
	OrganisationID  string `bson:"organisationId"`

	Status             string `bson:"status"`
	IssuanceMode       string `bson:"issuanceMode"`
	IsPreAuthorised    bool   `bson:"isPreAuthorised"`
	SupportsRevocation bool   `bson:"supportsRevocation"`

	ClientID            string                 `bson:"clientId,omitempty"`
	CodeChallenge       string                 `bson:"codeChallenge,omitempty"`
	CodeChallengeMethod string                 `bson:"codeChallengeMethod,omitempty"`
	RedirectURI         string                 `bson:"redirectUri,omitempty"`
	AuthorisationState  string                 `bson:"authorisationState,omitempty"`
	ClientMetadata      map[string]interface{} `bson:"clientMetadata,omitempty"`
	AuthorizationCode   string                 `bson:"authorizationCode,omitempty"`

	PreAuthorisedCode          string    `bson:"preAuthorisedCode,omitempty"`
	PreAuthorisedCodeExpiresAt time.Time `bson:"preAuthorisedCodeExpiresAt,omitempty"`
	UserPin                    string    `bson:"userPin,omitempty"`

	AccessToken              string    `bson:"accessToken,omitempty"`
	AcceptanceToken          string    `bson:"acceptanceToken,omitempty"`
	AcceptanceTokenExpiresAt time.Time `bson:"acceptanceTokenExpiresAt,omitempty"`
	CNonce                   string    `bson:"cNonce,omitempty"`
	TokenExpiresAt           time.Time `bson:"tokenExpiresAt,omitempty"`

	DataAttributeValues map[string]interface{} `bson:"dataAttributeValues,omitempty"`
	HolderDID           string                 `bson:"holderDid,omitempty"`
	Credential          string                 `bson:"credential,omitempty"`

	IsRevoked       bool `bson:"isRevoked"`
	StatusListIndex *int `bson:"statusListIndex,omitempty"`

	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Store stores credential offers in mongo.
type Store struct {
	mongoClient *mongodb.Client
}

// New creates a Store and ensures its indexes.
func New(ctx context.Context, mongoClient *mongodb.Client) (*Store, error) {
	s := &Store{
		mongoClient: mongoClient,
	}

	if err := s.migrate(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.mongoClient.Database().Collection(collectionName).Indexes().
		CreateMany(ctx, []mongo.IndexModel{
			{
				Keys: map[string]interface{}{"authorisationState": -1},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"authorisationState": bson.M{"$type": "string"}}),
			},
			{
				Keys: map[string]interface{}{"preAuthorisedCode": -1},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"preAuthorisedCode": bson.M{"$type": "string"}}),
			},
			{
				Keys: map[string]interface{}{"accessToken": -1},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"accessToken": bson.M{"$type": "string"}}),
			},
			{
				Keys: map[string]interface{}{"dataAgreementId": -1},
			},
		})

	return err
}

// Create inserts a new offer and returns it with its assigned id.
func (s *Store) Create(ctx context.Context, offer *issuance.CredentialOffer) (*issuance.CredentialOffer, error) {
	doc := offerToDocument(offer)

	result, err := s.mongoClient.Database().Collection(collectionName).InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}

	insertedID := result.InsertedID.(primitive.ObjectID) //nolint: errcheck

	created := offer.Clone()
	created.ID = insertedID.Hex()

	return created, nil
}

// Get resolves an offer by id.
func (s *Store) Get(ctx context.Context, id string) (*issuance.CredentialOffer, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, issuance.ErrDataNotFound
	}

	return s.findOne(ctx, bson.M{"_id": objectID})
}

// FindByAuthorisationState finds the offer bound to an authorization state value.
func (s *Store) FindByAuthorisationState(ctx context.Context, state string) (*issuance.CredentialOffer, error) {
	return s.findOne(ctx, bson.M{"authorisationState": state})
}

// FindByAuthorizationCode finds the offer holding an authorization code.
func (s *Store) FindByAuthorizationCode(ctx context.Context, code string) (*issuance.CredentialOffer, error) {
	return s.findOne(ctx, bson.M{"authorizationCode": code})
}

// FindByPreAuthorisedCode finds the offer holding a pre-authorized code.
func (s *Store) FindByPreAuthorisedCode(ctx context.Context, code string) (*issuance.CredentialOffer, error) {
	return s.findOne(ctx, bson.M{"preAuthorisedCode": code})
}

// FindByAccessToken finds the offer holding an access token.
func (s *Store) FindByAccessToken(ctx context.Context, token string) (*issuance.CredentialOffer, error) {
	return s.findOne(ctx, bson.M{"accessToken": token})
}

// FindByAcceptanceToken finds the offer holding an acceptance token.
func (s *Store) FindByAcceptanceToken(ctx context.Context, token string) (*issuance.CredentialOffer, error) {
	return s.findOne(ctx, bson.M{"acceptanceToken": token})
}

// ListByAgreement lists all offers created against one data agreement.
func (s *Store) ListByAgreement(ctx context.Context, agreementID string) ([]*issuance.CredentialOffer, error) {
	cursor, err := s.mongoClient.Database().Collection(collectionName).
		Find(ctx, bson.M{"dataAgreementId": agreementID})
	if err != nil {
		return nil, err
	}

	defer cursor.Close(ctx) //nolint: errcheck

	var docs []mongoDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	offers := make([]*issuance.CredentialOffer, 0, len(docs))
	for i := range docs {
		offers = append(offers, documentToOffer(&docs[i]))
	}

	return offers, nil
}

// Update overwrites an existing offer.
func (s *Store) Update(ctx context.Context, offer *issuance.CredentialOffer) error {
	objectID, err := primitive.ObjectIDFromHex(offer.ID)
	if err != nil {
		return issuance.ErrDataNotFound
	}

	result, err := s.mongoClient.Database().Collection(collectionName).
		UpdateByID(ctx, objectID, bson.M{"$set": offerToDocument(offer)})
	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		return issuance.ErrDataNotFound
	}

	return nil
}

// UpdateIfStatus overwrites the offer only when its stored status equals
// expected. The filter and write run as one document-level atomic operation,
// so one-time codes cannot be redeemed twice.
func (s *Store) UpdateIfStatus(ctx context.Context, offer *issuance.CredentialOffer,
	expected issuance.OfferStatus) error {
	objectID, err := primitive.ObjectIDFromHex(offer.ID)
	if err != nil {
		return issuance.ErrDataNotFound
	}

	result, err := s.mongoClient.Database().Collection(collectionName).
		UpdateOne(ctx,
			bson.M{"_id": objectID, "status": string(expected)},
			bson.M{"$set": offerToDocument(offer)})
	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		return errors.New("offer status precondition failed")
	}

	return nil
}

// Delete removes an offer.
func (s *Store) Delete(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return issuance.ErrDataNotFound
	}

	result, err := s.mongoClient.Database().Collection(collectionName).
		DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return err
	}

	if result.DeletedCount == 0 {
		return issuance.ErrDataNotFound
	}

	return nil
}

func (s *Store) findOne(ctx context.Context, filter interface{}) (*issuance.CredentialOffer, error) {
	var doc mongoDocument

	if err := s.mongoClient.Database().Collection(collectionName).
		FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, issuance.ErrDataNotFound
		}

		return nil, err
	}

	return documentToOffer(&doc), nil
}

func offerToDocument(offer *issuance.CredentialOffer) *mongoDocument {
	return &mongoDocument{
		DataAgreementID:            offer.DataAgreementID,
		OrganisationID:             offer.OrganisationID,
		Status:                     string(offer.Status),
		IssuanceMode:               string(offer.IssuanceMode),
		IsPreAuthorised:            offer.IsPreAuthorised,
		SupportsRevocation:         offer.SupportsRevocation,
		ClientID:                   offer.ClientID,
		CodeChallenge:              offer.CodeChallenge,
		CodeChallengeMethod:        offer.CodeChallengeMethod,
		RedirectURI:                offer.RedirectURI,
		AuthorisationState:         offer.AuthorisationState,
		ClientMetadata:             offer.ClientMetadata,
		AuthorizationCode:          offer.AuthorizationCode,
		PreAuthorisedCode:          offer.PreAuthorisedCode,
		PreAuthorisedCodeExpiresAt: offer.PreAuthorisedCodeExpiresAt,
		UserPin:                    offer.UserPin,
		AccessToken:                offer.AccessToken,
		AcceptanceToken:            offer.AcceptanceToken,
		AcceptanceTokenExpiresAt:   offer.AcceptanceTokenExpiresAt,
		CNonce:                     offer.CNonce,
		TokenExpiresAt:             offer.TokenExpiresAt,
		DataAttributeValues:        offer.DataAttributeValues,
		HolderDID:                  offer.HolderDID,
		Credential:                 offer.Credential,
		IsRevoked:                  offer.IsRevoked,
		StatusListIndex:            offer.StatusListIndex,
		CreatedAt:                  offer.CreatedAt,
		UpdatedAt:                  offer.UpdatedAt,
	}
}

func documentToOffer(doc *mongoDocument) *issuance.CredentialOffer {
	return &issuance.CredentialOffer{
		ID:                         doc.ID.Hex(),
		DataAgreementID:            doc.DataAgreementID,
		OrganisationID:             doc.OrganisationID,
		Status:                     issuance.OfferStatus(doc.Status),
		IssuanceMode:               issuance.IssuanceMode(doc.IssuanceMode),
		IsPreAuthorised:            doc.IsPreAuthorised,
		SupportsRevocation:         doc.SupportsRevocation,
		ClientID:                   doc.ClientID,
		CodeChallenge:              doc.CodeChallenge,
		CodeChallengeMethod:        doc.CodeChallengeMethod,
		RedirectURI:                doc.RedirectURI,
		AuthorisationState:         doc.AuthorisationState,
		ClientMetadata:             doc.ClientMetadata,
		AuthorizationCode:          doc.AuthorizationCode,
		PreAuthorisedCode:          doc.PreAuthorisedCode,
		PreAuthorisedCodeExpiresAt: doc.PreAuthorisedCodeExpiresAt,
		UserPin:                    doc.UserPin,
		AccessToken:                doc.AccessToken,
		AcceptanceToken:            doc.AcceptanceToken,
		AcceptanceTokenExpiresAt:   doc.AcceptanceTokenExpiresAt,
		CNonce:                     doc.CNonce,
		TokenExpiresAt:             doc.TokenExpiresAt,
		DataAttributeValues:        doc.DataAttributeValues,
		HolderDID:                  doc.HolderDID,
		Credential:                 doc.Credential,
		IsRevoked:                  doc.IsRevoked,
		StatusListIndex:            doc.StatusListIndex,
		CreatedAt:                  doc.CreatedAt,
		UpdatedAt:                  doc.UpdatedAt,
	}
}
