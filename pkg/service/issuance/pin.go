/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuance

import (
	"fmt"
	"math/rand"
	"strings"
)

const (
	pinDigits = 10
	pinLength = 4
)

// PinGenerator mints and checks the short numeric PINs that protect
// pre-authorized codes.
type PinGenerator struct{}

// NewPinGenerator returns a PinGenerator.
func NewPinGenerator() *PinGenerator {
	return &PinGenerator{}
}

// Generate returns a fresh 4-digit PIN.
func (p *PinGenerator) Generate() string {
	var pin strings.Builder

	for i := 0; i < pinLength; i++ {
		pin.WriteString(fmt.Sprint(rand.Int31n(pinDigits))) //nolint:gosec
	}

	return pin.String()
}

// Validate reports whether got matches the configured PIN exactly.
func (p *PinGenerator) Validate(expected, got string) bool {
	return expected == got
}
