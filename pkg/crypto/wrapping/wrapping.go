// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-trustkit.
//
// go-trustkit is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package wrapping implements the key-wrapping primitives used by JWE key
// management: RSA-OAEP (RFC 8017), AES Key Wrap (RFC 3394) and AES-GCM key
// encryption (RFC 7518 Section 4.7).
package wrapping

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
)

var (
	// ErrUnwrap is returned when a wrapped key fails its integrity check.
	ErrUnwrap = errors.New("wrapping: key unwrap failed")

	// ErrInvalidKey is returned for missing or wrongly sized keys.
	ErrInvalidKey = errors.New("wrapping: invalid key")
)

// WrapRSAOAEP wraps key material using RSA-OAEP. The algorithm selects the
// hash function: SHA-1 for RSA-OAEP, SHA-256 for RSA-OAEP-256.
func WrapRSAOAEP(keyMaterial []byte, publicKey *rsa.PublicKey, algorithm jwa.KeyAlgorithm) ([]byte, error) {
	if len(keyMaterial) == 0 {
		return nil, fmt.Errorf("%w: key material cannot be nil or empty", ErrInvalidKey)
	}
	if publicKey == nil {
		return nil, fmt.Errorf("%w: public key cannot be nil", ErrInvalidKey)
	}
	if publicKey.N.BitLen() < jwa.MinRSAKeyBits {
		return nil, fmt.Errorf("%w: RSA key must be at least %d bits", ErrInvalidKey, jwa.MinRSAKeyBits)
	}
	if !algorithm.IsRsaOaep() {
		return nil, fmt.Errorf("%w: %s", jwa.ErrUnsupportedAlgorithm, algorithm)
	}

	wrapped, err := rsa.EncryptOAEP(algorithm.OaepHash().New(), rand.Reader, publicKey, keyMaterial, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap key material with RSA-OAEP: %w", err)
	}
	return wrapped, nil
}

// UnwrapRSAOAEP unwraps key material that was encrypted using RSA-OAEP.
func UnwrapRSAOAEP(wrappedKey []byte, privateKey *rsa.PrivateKey, algorithm jwa.KeyAlgorithm) ([]byte, error) {
	if len(wrappedKey) == 0 {
		return nil, fmt.Errorf("%w: wrapped key cannot be nil or empty", ErrUnwrap)
	}
	if privateKey == nil {
		return nil, fmt.Errorf("%w: private key cannot be nil", ErrInvalidKey)
	}
	if !algorithm.IsRsaOaep() {
		return nil, fmt.Errorf("%w: %s", jwa.ErrUnsupportedAlgorithm, algorithm)
	}

	unwrapped, err := rsa.DecryptOAEP(algorithm.OaepHash().New(), rand.Reader, privateKey, wrappedKey, nil)
	if err != nil {
		return nil, ErrUnwrap
	}
	return unwrapped, nil
}
