/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package statusliststore persists per-organisation revocation lists in mongo.
package statusliststore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trustmesh/vci/pkg/service/credentialstatus"
	"github.com/trustmesh/vci/pkg/storage/mongodb"
)

const collectionName = "statuslists"

type mongoDocument struct {
	OrganisationID string    `bson:"organisationId"`
	EncodedBits    string    `bson:"encodedBits"`
	NextIndex      int       `bson:"nextIndex"`
	Version        int       `bson:"version"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

// Store stores status lists in mongo.
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
				Keys:    map[string]interface{}{"organisationId": -1},
				Options: options.Index().SetUnique(true),
			},
		})

	return err
}

// Get resolves the status list of one organisation.
func (s *Store) Get(ctx context.Context, organisationID string) (*credentialstatus.StatusList, error) {
	var doc mongoDocument

	if err := s.mongoClient.Database().Collection(collectionName).
		FindOne(ctx, bson.M{"organisationId": organisationID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, credentialstatus.ErrStatusListNotFound
		}

		return nil, err
	}

	return &credentialstatus.StatusList{
		OrganisationID: doc.OrganisationID,
		EncodedBits:    doc.EncodedBits,
		NextIndex:      doc.NextIndex,
		Version:        doc.Version,
		UpdatedAt:      doc.UpdatedAt,
	}, nil
}

// UpsertIfVersion writes the list only when the stored version matches
// expected; expected 0 inserts a fresh list. The version filter makes
// concurrent bit flips lose instead of overwriting each other.
func (s *Store) UpsertIfVersion(ctx context.Context,
	list *credentialstatus.StatusList, expected int) error {
	doc := &mongoDocument{
		OrganisationID: list.OrganisationID,
		EncodedBits:    list.EncodedBits,
		NextIndex:      list.NextIndex,
		Version:        list.Version,
		UpdatedAt:      list.UpdatedAt,
	}

	collection := s.mongoClient.Database().Collection(collectionName)

	if expected == 0 {
		_, err := collection.InsertOne(ctx, doc)
		if err != nil && mongo.IsDuplicateKeyError(err) {
			return errors.New("status list version conflict")
		}

		return err
	}

	result, err := collection.UpdateOne(ctx,
		bson.M{"organisationId": list.OrganisationID, "version": expected},
		bson.M{"$set": doc})
	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		return errors.New("status list version conflict")
	}

	return nil
}
