// Package otp generates one-time numeric verification codes.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	minCode = 100000
	span    = 900000 // codes are uniform over [100000, 999999]
)

// Generator produces a fresh verification code.
type Generator func() (string, error)

// Generate returns a uniformly random 6-digit code from crypto/rand.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", minCode+n.Int64()), nil
}
