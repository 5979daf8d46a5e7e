/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package agreementstore persists data agreements in mongo.
package agreementstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trustmesh/vci/pkg/service/dataagreement"
	"github.com/trustmesh/vci/pkg/storage/mongodb"
)

const collectionName = "dataagreements"

type mongoDocument struct {
	ID primitive.ObjectID `bson:"_id,omitempty"`

	OrganisationID     string                        `bson:"organisationId"`
	Purpose            string                        `bson:"purpose"`
	PurposeDescription string                        `bson:"purposeDescription,omitempty"`
	DataAttributes     []dataagreement.DataAttribute `bson:"dataAttributes"`
	ExchangeMode       string                        `bson:"exchangeMode"`
	CredentialTypes    []string                      `bson:"credentialTypes"`

	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Store stores data agreements in mongo.
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
				Keys:    bson.D{{Key: "organisationId", Value: -1}, {Key: "purpose", Value: -1}},
				Options: options.Index().SetUnique(true),
			},
		})

	return err
}

// Create inserts a new agreement and returns it with its assigned id.
func (s *Store) Create(ctx context.Context, agreement *dataagreement.Agreement) (*dataagreement.Agreement, error) {
	result, err := s.mongoClient.Database().Collection(collectionName).
		InsertOne(ctx, agreementToDocument(agreement))
	if err != nil {
		return nil, err
	}

	insertedID := result.InsertedID.(primitive.ObjectID) //nolint: errcheck

	created := *agreement
	created.ID = insertedID.Hex()

	return &created, nil
}

// GetByID resolves an agreement by id.
func (s *Store) GetByID(ctx context.Context, id string) (*dataagreement.Agreement, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, dataagreement.ErrAgreementNotFound
	}

	return s.findOne(ctx, bson.M{"_id": objectID})
}

// GetByPurposeAndOrganisationID finds an agreement by its purpose within one organisation.
func (s *Store) GetByPurposeAndOrganisationID(ctx context.Context,
	organisationID, purpose string) (*dataagreement.Agreement, error) {
	return s.findOne(ctx, bson.M{"organisationId": organisationID, "purpose": purpose})
}

// ListByOrganisationID lists all agreements of one organisation.
func (s *Store) ListByOrganisationID(ctx context.Context,
	organisationID string) ([]*dataagreement.Agreement, error) {
	cursor, err := s.mongoClient.Database().Collection(collectionName).
		Find(ctx, bson.M{"organisationId": organisationID})
	if err != nil {
		return nil, err
	}

	defer cursor.Close(ctx) //nolint: errcheck

	var docs []mongoDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	agreements := make([]*dataagreement.Agreement, 0, len(docs))
	for i := range docs {
		agreements = append(agreements, documentToAgreement(&docs[i]))
	}

	return agreements, nil
}

func (s *Store) findOne(ctx context.Context, filter interface{}) (*dataagreement.Agreement, error) {
	var doc mongoDocument

	if err := s.mongoClient.Database().Collection(collectionName).
		FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, dataagreement.ErrAgreementNotFound
		}

		return nil, err
	}

	return documentToAgreement(&doc), nil
}

func agreementToDocument(agreement *dataagreement.Agreement) *mongoDocument {
	return &mongoDocument{
		OrganisationID:     agreement.OrganisationID,
		Purpose:            agreement.Purpose,
		PurposeDescription: agreement.PurposeDescription,
		DataAttributes:     agreement.DataAttributes,
		ExchangeMode:       string(agreement.ExchangeMode),
		CredentialTypes:    agreement.CredentialTypes,
		CreatedAt:          agreement.CreatedAt,
		UpdatedAt:          agreement.UpdatedAt,
	}
}

func documentToAgreement(doc *mongoDocument) *dataagreement.Agreement {
	return &dataagreement.Agreement{
		ID:                 doc.ID.Hex(),
		OrganisationID:     doc.OrganisationID,
		Purpose:            doc.Purpose,
		PurposeDescription: doc.PurposeDescription,
		DataAttributes:     doc.DataAttributes,
		ExchangeMode:       dataagreement.ExchangeMode(doc.ExchangeMode),
		CredentialTypes:    doc.CredentialTypes,
		CreatedAt:          doc.CreatedAt,
		UpdatedAt:          doc.UpdatedAt,
	}
}
