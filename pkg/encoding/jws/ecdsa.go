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

package jws

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
)

// ECDSASignatureProvider signs with ES256, ES384 or ES512. Signatures use
// the JOSE encoding: the fixed-width concatenation R || S (RFC 7518
// Section 3.4), not ASN.1.
type ECDSASignatureProvider struct {
	algorithmPolicy
	key *ecdsa.PrivateKey
}

// NewECDSASignatureProvider returns an ECDSA provider. The key curve must
// be the one alg is defined for.
func NewECDSASignatureProvider(key *ecdsa.PrivateKey, alg jwa.SignatureAlgorithm) (*ECDSASignatureProvider, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: private key cannot be nil", ErrInvalidKey)
	}
	policy, err := ecdsaPolicy(&key.PublicKey, alg, nil)
	if err != nil {
		return nil, err
	}
	return &ECDSASignatureProvider{algorithmPolicy: policy, key: key}, nil
}

// CreateSignature hashes the signing input and signs the digest.
func (p *ECDSASignatureProvider) CreateSignature(headers *jose.Headers) (Signature, error) {
	alg, err := p.prepareSignature(headers)
	if err != nil {
		return nil, err
	}
	size := coordinateSize(&p.key.PublicKey)
	return &digestSignature{
		Hash: alg.Hash().New(),
		sign: func(digest []byte) ([]byte, error) {
			r, s, err := ecdsa.Sign(rand.Reader, p.key, digest)
			if err != nil {
				return nil, fmt.Errorf("jws: ECDSA signing failed: %w", err)
			}
			out := make([]byte, 2*size)
			r.FillBytes(out[:size])
			s.FillBytes(out[size:])
			return out, nil
		},
	}, nil
}

// ECDSASignatureVerifier verifies ES256, ES384 or ES512 signatures.
type ECDSASignatureVerifier struct {
	algorithmPolicy
	key *ecdsa.PublicKey
}

// NewECDSASignatureVerifier returns an ECDSA verifier.
func NewECDSASignatureVerifier(key *ecdsa.PublicKey, alg jwa.SignatureAlgorithm, allowed ...jwa.SignatureAlgorithm) (*ECDSASignatureVerifier, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: public key cannot be nil", ErrInvalidKey)
	}
	policy, err := ecdsaPolicy(key, alg, allowed)
	if err != nil {
		return nil, err
	}
	return &ECDSASignatureVerifier{algorithmPolicy: policy, key: key}, nil
}

// CreateVerification hashes the signing input and verifies R || S on
// Verify. A signature of the wrong length fails.
func (v *ECDSASignatureVerifier) CreateVerification(headers *jose.Headers) (Verification, error) {
	alg, err := v.checkAlgorithm(headers)
	if err != nil {
		return nil, err
	}
	size := coordinateSize(v.key)
	return &digestVerification{
		Hash: alg.Hash().New(),
		verify: func(digest, signature []byte) bool {
			if len(signature) != 2*size {
				return false
			}
			r := new(big.Int).SetBytes(signature[:size])
			s := new(big.Int).SetBytes(signature[size:])
			return ecdsa.Verify(v.key, digest, r, s)
		},
	}, nil
}

func ecdsaPolicy(key *ecdsa.PublicKey, alg jwa.SignatureAlgorithm, allowed []jwa.SignatureAlgorithm) (algorithmPolicy, error) {
	crv := key.Curve.Params().Name
	return newAlgorithmPolicy(alg, allowed, func(a jwa.SignatureAlgorithm) bool {
		return a.IsEcdsa() && a.Curve() == crv
	})
}

func coordinateSize(key *ecdsa.PublicKey) int {
	return (key.Curve.Params().BitSize + 7) / 8
}

func ecdsaProviderFactory(m jwk.Material, alg jwa.SignatureAlgorithm) (SignatureProvider, error) {
	mat, ok := m.(*jwk.ECMaterial)
	if !ok || mat.Private == nil {
		return nil, fmt.Errorf("%w: ECDSA signing requires a private key", ErrInvalidKey)
	}
	p, err := NewECDSASignatureProvider(mat.Private, alg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func ecdsaVerifierFactory(m jwk.Material, alg jwa.SignatureAlgorithm, allowed []jwa.SignatureAlgorithm) (SignatureVerifier, error) {
	mat, ok := m.(*jwk.ECMaterial)
	if !ok {
		return nil, fmt.Errorf("%w: expected EC key", ErrInvalidKey)
	}
	v, err := NewECDSASignatureVerifier(mat.Public, alg, allowed...)
	if err != nil {
		return nil, err
	}
	return v, nil
}
