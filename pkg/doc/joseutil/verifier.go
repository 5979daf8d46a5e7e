/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package joseutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"

	"github.com/trustmesh/vci/pkg/doc/keydid"
)

// ErrInvalidProof is returned when an inbound JWT fails signature or claim checks.
var ErrInvalidProof = errors.New("invalid proof")

// DecodedJWT carries the untrusted header and claims of a JWT. Nothing in it is
// authoritative until VerifyProof has succeeded on the same token.
type DecodedJWT struct {
	KeyID     string
	Algorithm string
	Type      string
	Claims    map[string]interface{}
}

// DecodeUnverified parses header and claims without checking the signature.
// Used to discover kid/issuer ahead of DID resolution.
func DecodeUnverified(raw string) (*DecodedJWT, error) {
	parsed, err := jwt.ParseSigned(raw)
	if err != nil {
		return nil, fmt.Errorf("parse jwt: %w", err)
	}

	var claims map[string]interface{}
	if err = parsed.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}

	header := parsed.Headers[0]

	typ, _ := header.ExtraHeaders[jose.HeaderType].(string)

	return &DecodedJWT{
		KeyID:     header.KeyID,
		Algorithm: header.Algorithm,
		Type:      typ,
		Claims:    claims,
	}, nil
}

// Expected lists the claim values an inbound proof must carry. Zero-valued
// fields are not checked.
type Expected struct {
	Audience string
	Nonce    string
	Issuer   string
	Type     string
}

// Verifier checks inbound holder proofs and authorization-request JWTs.
type Verifier struct {
	now Clock
}

// VerifierOption customizes a Verifier.
type VerifierOption func(*Verifier)

// WithVerifierClock overrides the wall clock.
func WithVerifierClock(now Clock) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

// NewVerifier returns a Verifier.
func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{now: time.Now}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// VerifyProof resolves the signer's public key from the DID in the kid header,
// verifies the signature and then checks exp, aud, nonce and typ against
// expected. The decoded claims are returned only after all checks pass.
func (v *Verifier) VerifyProof(raw string, expected Expected) (*DecodedJWT, error) {
	decoded, err := DecodeUnverified(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}

	if decoded.KeyID == "" {
		return nil, fmt.Errorf("%w: missing kid header", ErrInvalidProof)
	}

	if expected.Type != "" && decoded.Type != expected.Type {
		return nil, fmt.Errorf("%w: unexpected typ %q", ErrInvalidProof, decoded.Type)
	}

	key, err := keydid.ResolveKID(decoded.KeyID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve kid: %v", ErrInvalidProof, err)
	}

	parsed, err := jwt.ParseSigned(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}

	var (
		std    jwt.Claims
		claims map[string]interface{}
	)

	if err = parsed.Claims(key.Key, &std, &claims); err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrInvalidProof, err)
	}

	if std.Expiry == nil || !std.Expiry.Time().After(v.now()) {
		return nil, fmt.Errorf("%w: token expired", ErrInvalidProof)
	}

	if expected.Audience != "" && !std.Audience.Contains(expected.Audience) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidProof)
	}

	if expected.Issuer != "" && std.Issuer != expected.Issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrInvalidProof)
	}

	if expected.Nonce != "" {
		if nonce, _ := claims["nonce"].(string); nonce != expected.Nonce {
			return nil, fmt.Errorf("%w: nonce mismatch", ErrInvalidProof)
		}
	}

	decoded.Claims = claims

	return decoded, nil
}
