/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package keydid implements did:key identities whose method-specific id is the
// base58btc multibase encoding of the multicodec-wrapped (jwk_jcs-pub) canonical
// JSON serialization of the public JWK.
package keydid

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/go-jose/go-jose/v3"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multicodec"
)

const didKeyPrefix = "did:key:"

var (
	// ErrKeyDerivation is returned for malformed seed material.
	ErrKeyDerivation = errors.New("key derivation failed")
	// ErrDidDecode is returned when a method-specific id cannot be decoded back to a JWK.
	ErrDidDecode = errors.New("did decode failed")
)

// Identity owns a key pair and the did:key identifier derived from it. The
// private key never leaves the Identity except through Signer().
type Identity struct {
	DID              string
	MethodSpecificID string
	Algorithm        jose.SignatureAlgorithm

	privateKey crypto.Signer
	publicJWK  jose.JSONWebKey
}

// canonicalJWK is the subset of JWK members that participate in the jwk_jcs-pub
// encoding, in lexicographic member order as required by JCS.
type canonicalJWK struct {
	Crv string `json:"crv"`
	Kty string `json:"kty"`
	X   string `json:"x"`
	Y   string `json:"y,omitempty"`
}

// FromSeed derives a deterministic EC P-256 identity from the big-endian
// integer interpretation of seed.
func FromSeed(seed []byte) (*Identity, error) {
	curve := elliptic.P256()

	if len(seed) == 0 || len(seed) > curve.Params().BitSize/8 {
		return nil, fmt.Errorf("%w: seed must be 1..%d bytes", ErrKeyDerivation, curve.Params().BitSize/8)
	}

	d := new(big.Int).SetBytes(seed)
	d.Mod(d, curve.Params().N)

	if d.Sign() == 0 {
		return nil, fmt.Errorf("%w: seed is congruent to zero", ErrKeyDerivation)
	}

	priv := &ecdsa.PrivateKey{D: d}
	priv.Curve = curve
	priv.X, priv.Y = curve.ScalarBaseMult(d.Bytes())

	byteSize := curve.Params().BitSize / 8

	canonical := canonicalJWK{
		Crv: "P-256",
		Kty: "EC",
		X:   base64.RawURLEncoding.EncodeToString(priv.X.FillBytes(make([]byte, byteSize))),
		Y:   base64.RawURLEncoding.EncodeToString(priv.Y.FillBytes(make([]byte, byteSize))),
	}

	return build(priv, priv.Public(), canonical, jose.ES256)
}

// NewEd25519 creates an Ed25519 identity. A 32-byte seed yields a deterministic
// key pair; a nil seed yields a fresh random one.
func NewEd25519(seed []byte) (*Identity, error) {
	var priv ed25519.PrivateKey

	switch {
	case seed == nil:
		var err error
		if _, priv, err = ed25519.GenerateKey(nil); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
		}
	case len(seed) == ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(seed)
	default:
		return nil, fmt.Errorf("%w: ed25519 seed must be %d bytes", ErrKeyDerivation, ed25519.SeedSize)
	}

	pub := priv.Public().(ed25519.PublicKey)

	canonical := canonicalJWK{
		Crv: "Ed25519",
		Kty: "OKP",
		X:   base64.RawURLEncoding.EncodeToString(pub),
	}

	return build(priv, pub, canonical, jose.EdDSA)
}

func build(priv crypto.Signer, pub crypto.PublicKey, canonical canonicalJWK,
	alg jose.SignatureAlgorithm) (*Identity, error) {
	msid, err := encodeMethodSpecificID(canonical)
	if err != nil {
		return nil, err
	}

	return &Identity{
		DID:              didKeyPrefix + msid,
		MethodSpecificID: msid,
		Algorithm:        alg,
		privateKey:       priv,
		publicJWK: jose.JSONWebKey{
			Key:       pub,
			KeyID:     msid,
			Algorithm: string(alg),
		},
	}, nil
}

func encodeMethodSpecificID(canonical canonicalJWK) (string, error) {
	jwkJSON, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("marshal canonical jwk: %w", err)
	}

	wrapped := binary.AppendUvarint(nil, uint64(multicodec.Jwk_jcsPub))
	wrapped = append(wrapped, jwkJSON...)

	msid, err := multibase.Encode(multibase.Base58BTC, wrapped)
	if err != nil {
		return "", fmt.Errorf("multibase encode: %w", err)
	}

	return msid, nil
}

// KID returns the key identifier carried in JOSE headers: "<did>#<method-specific-id>".
func (i *Identity) KID() string {
	return i.DID + "#" + i.MethodSpecificID
}

// Signer exposes the private key for signing operations only.
func (i *Identity) Signer() crypto.Signer {
	return i.privateKey
}

// PublicJWK returns the public key as a JWK with kid and alg populated.
func (i *Identity) PublicJWK() jose.JSONWebKey {
	return i.publicJWK
}

// DecodeMethodSpecificID reverses the did:key encoding, recovering the public
// JWK from a method-specific id.
func DecodeMethodSpecificID(msid string) (*jose.JSONWebKey, error) {
	enc, data, err := multibase.Decode(msid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDidDecode, err)
	}

	if enc != multibase.Base58BTC {
		return nil, fmt.Errorf("%w: multibase encoding %q is not base58btc", ErrDidDecode, string(rune(enc)))
	}

	code, n := binary.Uvarint(data)
	if n <= 0 || multicodec.Code(code) != multicodec.Jwk_jcsPub {
		return nil, fmt.Errorf("%w: unexpected multicodec 0x%x", ErrDidDecode, code)
	}

	var key jose.JSONWebKey
	if err = json.Unmarshal(data[n:], &key); err != nil {
		return nil, fmt.Errorf("%w: unmarshal jwk: %v", ErrDidDecode, err)
	}

	key.KeyID = msid

	return &key, nil
}

// ResolveKID resolves a "did:key:<msid>#<fragment>" (or bare did:key) kid value
// to the public JWK encoded in the identifier.
func ResolveKID(kid string) (*jose.JSONWebKey, error) {
	did, _, _ := strings.Cut(kid, "#")

	msid, ok := strings.CutPrefix(did, didKeyPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a did:key identifier", ErrDidDecode, did)
	}

	return DecodeMethodSpecificID(msid)
}
