/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package joseutil

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Disclosure is one selectively disclosable claim of an SD-JWT.
type Disclosure struct {
	// Encoded is the base64url serialization of [salt, name, value].
	Encoded string
	// Digest is the base64url sha-256 digest of Encoded, listed in _sd.
	Digest string
}

// NewDisclosure builds a disclosure for one claim with a fresh 128-bit salt.
func NewDisclosure(name string, value interface{}) (*Disclosure, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate disclosure salt: %w", err)
	}

	arr, err := json.Marshal([]interface{}{base64.RawURLEncoding.EncodeToString(salt), name, value})
	if err != nil {
		return nil, fmt.Errorf("marshal disclosure: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(arr)
	sum := sha256.Sum256([]byte(encoded))

	return &Disclosure{
		Encoded: encoded,
		Digest:  base64.RawURLEncoding.EncodeToString(sum[:]),
	}, nil
}

// CombinedFormat appends disclosures to a signed SD-JWT:
// <jwt>~<disclosure 1>~...~<disclosure n>~
func CombinedFormat(token string, disclosures []*Disclosure) string {
	if len(disclosures) == 0 {
		return token
	}

	var b strings.Builder

	b.WriteString(token)

	for _, d := range disclosures {
		b.WriteString("~")
		b.WriteString(d.Encoded)
	}

	b.WriteString("~")

	return b.String()
}
