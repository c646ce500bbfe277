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

package jwk

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
)

// GenerateRSA creates an RSA JWK with the given modulus size.
func GenerateRSA(bits int) (*JWK, error) {
	if bits < 2048 {
		return nil, fmt.Errorf("%w: RSA keys must be at least 2048 bits", ErrInvalidKey)
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	return fromRSAPrivateKey(key), nil
}

// GenerateEC creates an EC JWK on a NIST curve.
func GenerateEC(crv Curve) (*JWK, error) {
	curve, err := EllipticCurve(string(crv))
	if err != nil {
		return nil, err
	}
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate EC key: %w", err)
	}
	return FromPrivateKey(key)
}

// GenerateOKP creates an Ed25519 or X25519 JWK.
func GenerateOKP(crv Curve) (*JWK, error) {
	switch crv {
	case CurveEd25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate Ed25519 key: %w", err)
		}
		return FromPrivateKey(priv)
	case CurveX25519:
		priv, err := ecdh.X25519().GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate X25519 key: %w", err)
		}
		return FromPrivateKey(priv)
	default:
		return nil, fmt.Errorf("%w: OKP curve %q", ErrUnsupportedKeyType, crv)
	}
}

// GenerateOctet creates a symmetric JWK of size bytes.
func GenerateOctet(size int, alg string) (*JWK, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: key size must be positive", ErrInvalidKey)
	}
	key := make([]byte, size)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate symmetric key: %w", err)
	}
	return FromSymmetricKey(key, alg)
}
