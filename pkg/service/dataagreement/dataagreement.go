/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package dataagreement manages the data agreements (credential schemas) that
// credential offers are created against.
package dataagreement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema"
)

var (
	// ErrAgreementNotFound is returned when no agreement exists for an id.
	ErrAgreementNotFound = errors.New("data agreement not found")
	// ErrCreateDataAgreement is returned when an agreement cannot be created.
	ErrCreateDataAgreement = errors.New("create data agreement failed")
	// ErrDataAttributeValidation is returned when attribute values do not match
	// the agreement's data attributes.
	ErrDataAttributeValidation = errors.New("data attribute values do not match data attributes")
)

// ExchangeMode determines the direction of a data agreement.
type ExchangeMode string

const (
	ExchangeModeDataSource       ExchangeMode = "data-source"
	ExchangeModeDataUsingService ExchangeMode = "data-using-service"
)

// DataAttribute describes one attribute of an agreement.
type DataAttribute struct {
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	DataType          string `json:"dataType,omitempty"`
	LimitedDisclosure bool   `json:"limitedDisclosure"`
}

// Agreement is a data agreement owned by one organisation.
type Agreement struct {
	ID                 string          `json:"id"`
	OrganisationID     string          `json:"organisationId"`
	Purpose            string          `json:"purpose"`
	PurposeDescription string          `json:"purposeDescription,omitempty"`
	DataAttributes     []DataAttribute `json:"dataAttributes"`
	ExchangeMode       ExchangeMode    `json:"exchangeMode"`
	CredentialTypes    []string        `json:"credentialTypes"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

type store interface {
	Create(ctx context.Context, agreement *Agreement) (*Agreement, error)
	GetByID(ctx context.Context, id string) (*Agreement, error)
	GetByPurposeAndOrganisationID(ctx context.Context, organisationID, purpose string) (*Agreement, error)
	ListByOrganisationID(ctx context.Context, organisationID string) ([]*Agreement, error)
}

// Config holds dependencies for Service.
type Config struct {
	Store store
	Now   func() time.Time
}

// Service creates and resolves data agreements.
type Service struct {
	store store
	now   func() time.Time
}

// NewService returns a new Service.
func NewService(cfg *Config) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{store: cfg.Store, now: now}
}

// CreateRequest is the input for CreateDataAgreement.
type CreateRequest struct {
	OrganisationID     string
	Purpose            string
	PurposeDescription string
	DataAttributes     []DataAttribute
	ExchangeMode       ExchangeMode
	CredentialTypes    []string
}

// CreateDataAgreement validates the attribute schema against the draft-7
// meta-schema and persists the agreement. Purpose is unique per organisation.
func (s *Service) CreateDataAgreement(ctx context.Context, req *CreateRequest) (*Agreement, error) {
	credentialTypes := req.CredentialTypes
	if len(credentialTypes) == 0 {
		credentialTypes = []string{"VerifiableCredential", pascalCase(req.Purpose)}
	}

	if _, err := compileAttributeSchema(req.DataAttributes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateDataAgreement, err)
	}

	existing, err := s.store.GetByPurposeAndOrganisationID(ctx, req.OrganisationID, req.Purpose)
	if err != nil && !errors.Is(err, ErrAgreementNotFound) {
		return nil, fmt.Errorf("lookup agreement by purpose: %w", err)
	}

	if existing != nil {
		return nil, fmt.Errorf("%w: a data agreement with purpose %q already exists",
			ErrCreateDataAgreement, req.Purpose)
	}

	now := s.now().UTC()

	return s.store.Create(ctx, &Agreement{
		OrganisationID:     req.OrganisationID,
		Purpose:            req.Purpose,
		PurposeDescription: req.PurposeDescription,
		DataAttributes:     req.DataAttributes,
		ExchangeMode:       req.ExchangeMode,
		CredentialTypes:    credentialTypes,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
}

// GetByID resolves an agreement.
func (s *Service) GetByID(ctx context.Context, id string) (*Agreement, error) {
	return s.store.GetByID(ctx, id)
}

// ListByOrganisationID lists an organisation's agreements.
func (s *Service) ListByOrganisationID(ctx context.Context, organisationID string) ([]*Agreement, error) {
	return s.store.ListByOrganisationID(ctx, organisationID)
}

// ValidateAttributeValues checks supplied values against the agreement's
// attributes: every value must name a declared attribute and the whole value
// set must satisfy the generated JSON schema.
func ValidateAttributeValues(agreement *Agreement, values map[string]interface{}) error {
	declared := make(map[string]struct{}, len(agreement.DataAttributes))
	for _, attr := range agreement.DataAttributes {
		declared[attr.Name] = struct{}{}
	}

	for name := range values {
		if _, ok := declared[name]; !ok {
			return fmt.Errorf("%w: %q not found in schema", ErrDataAttributeValidation, name)
		}
	}

	schema, err := compileAttributeSchema(agreement.DataAttributes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDataAttributeValidation, err)
	}

	doc, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDataAttributeValidation, err)
	}

	if err = schema.Validate(bytes.NewReader(doc)); err != nil {
		return fmt.Errorf("%w: %v", ErrDataAttributeValidation, err)
	}

	return nil
}

// compileAttributeSchema converts data attributes to a draft-7 JSON schema.
// Compilation also validates the generated schema against the meta-schema.
func compileAttributeSchema(attributes []DataAttribute) (*jsonschema.Schema, error) {
	properties := make(map[string]interface{}, len(attributes))
	required := make([]string, 0, len(attributes))

	for _, attr := range attributes {
		dataType := attr.DataType
		if dataType == "" {
			dataType = "string"
		}

		properties[attr.Name] = map[string]interface{}{
			"type":        dataType,
			"description": attr.Description,
		}

		required = append(required, attr.Name)
	}

	doc, err := json.Marshal(map[string]interface{}{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": properties,
		"required":   required,
	})
	if err != nil {
		return nil, err
	}

	const schemaURL = "mem://data-attributes.json"

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7

	if err = compiler.AddResource(schemaURL, bytes.NewReader(doc)); err != nil {
		return nil, err
	}

	return compiler.Compile(schemaURL)
}

// pascalCase converts a purpose sentence to the credential type it implies.
func pascalCase(sentence string) string {
	words := strings.Fields(sentence)
	if len(words) < 2 {
		return sentence
	}

	var b strings.Builder

	for _, word := range words {
		b.WriteString(strings.ToUpper(word[:1]))
		b.WriteString(word[1:])
	}

	return b.String()
}
