/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package utils

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
)

const bitsPerByte = 8

// BitString is the revocation bitstring published inside a status-list
// credential: bit i encodes revoked(1)/valid(0) for status list index i.
type BitString struct {
	bits    []byte
	numBits int
}

// NewBitString returns an all-zero bitstring holding length bits.
func NewBitString(length int) *BitString {
	size := 1 + ((length - 1) / bitsPerByte)
	return &BitString{bits: make([]byte, size), numBits: length}
}

// DecodeBits rebuilds a bitstring from its gzip+base64url encoding.
func DecodeBits(encodedBits string) (*BitString, error) {
	decodedBits, err := base64.RawURLEncoding.DecodeString(encodedBits)
	if err != nil {
		return nil, err
	}

	r, err := gzip.NewReader(bytes.NewReader(decodedBits))
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}

	return &BitString{bits: buf.Bytes(), numBits: buf.Len() * bitsPerByte}, nil
}

// Len returns the number of bits held.
func (b *BitString) Len() int {
	return b.numBits
}

// Set sets or clears the bit at position.
func (b *BitString) Set(position int, bitSet bool) error {
	nByte := position / bitsPerByte
	nBit := position % bitsPerByte

	if position < 0 || nByte > len(b.bits)-1 {
		return fmt.Errorf("position %d out of range", position)
	}

	if bitSet {
		b.bits[nByte] |= byte(1 << nBit)
	} else {
		b.bits[nByte] &= ^byte(1 << nBit)
	}

	return nil
}

// Get returns the bit at position.
func (b *BitString) Get(position int) (bool, error) {
	nByte := position / bitsPerByte
	nBit := position % bitsPerByte

	if position < 0 || nByte > len(b.bits)-1 {
		return false, fmt.Errorf("position %d out of range", position)
	}

	return b.bits[nByte]&byte(1<<nBit) != 0, nil
}

// EncodeBits returns the gzip+base64url encoding of the bitstring.
func (b *BitString) EncodeBits() (string, error) {
	var buf bytes.Buffer

	w := gzip.NewWriter(&buf)
	if _, err := w.Write(b.bits); err != nil {
		return "", err
	}

	if err := w.Close(); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}
