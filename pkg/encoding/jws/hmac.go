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
	"bytes"
	"crypto/hmac"
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
)

// HMACSignatureProvider signs and verifies with a shared secret (HS256,
// HS384, HS512). The key must be at least as long as the hash output.
type HMACSignatureProvider struct {
	algorithmPolicy
	key []byte
}

// NewHMACSignatureProvider returns an HMAC provider for alg. allowed lists
// further HMAC algorithms accepted on verification.
func NewHMACSignatureProvider(key []byte, alg jwa.SignatureAlgorithm, allowed ...jwa.SignatureAlgorithm) (*HMACSignatureProvider, error) {
	policy, err := newAlgorithmPolicy(alg, allowed, jwa.SignatureAlgorithm.IsHmac)
	if err != nil {
		return nil, err
	}
	if len(key) < alg.Hash().Size() {
		return nil, fmt.Errorf("%w: %s requires a key of at least %d bytes", ErrInvalidKey, alg, alg.Hash().Size())
	}
	return &HMACSignatureProvider{algorithmPolicy: policy, key: bytes.Clone(key)}, nil
}

// CreateSignature returns an HMAC over the signing input.
func (p *HMACSignatureProvider) CreateSignature(headers *jose.Headers) (Signature, error) {
	alg, err := p.prepareSignature(headers)
	if err != nil {
		return nil, err
	}
	if err := p.checkKey(alg); err != nil {
		return nil, err
	}
	mac := hmac.New(alg.Hash().New, p.key)
	return &digestSignature{Hash: mac, sign: func(sum []byte) ([]byte, error) { return sum, nil }}, nil
}

// CreateVerification recomputes the HMAC and compares in constant time.
func (p *HMACSignatureProvider) CreateVerification(headers *jose.Headers) (Verification, error) {
	alg, err := p.checkAlgorithm(headers)
	if err != nil {
		return nil, err
	}
	if err := p.checkKey(alg); err != nil {
		return nil, err
	}
	mac := hmac.New(alg.Hash().New, p.key)
	return &digestVerification{Hash: mac, verify: hmac.Equal}, nil
}

func (p *HMACSignatureProvider) checkKey(alg jwa.SignatureAlgorithm) error {
	if len(p.key) < alg.Hash().Size() {
		return fmt.Errorf("%w: %s requires a key of at least %d bytes", ErrInvalidKey, alg, alg.Hash().Size())
	}
	return nil
}

func hmacProviderFactory(m jwk.Material, alg jwa.SignatureAlgorithm) (SignatureProvider, error) {
	p, err := hmacFromMaterial(m, alg, nil)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func hmacVerifierFactory(m jwk.Material, alg jwa.SignatureAlgorithm, allowed []jwa.SignatureAlgorithm) (SignatureVerifier, error) {
	p, err := hmacFromMaterial(m, alg, allowed)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func hmacFromMaterial(m jwk.Material, alg jwa.SignatureAlgorithm, allowed []jwa.SignatureAlgorithm) (*HMACSignatureProvider, error) {
	mat, ok := m.(*jwk.OctetMaterial)
	if !ok {
		return nil, fmt.Errorf("%w: expected symmetric key", ErrInvalidKey)
	}
	return NewHMACSignatureProvider(mat.Key, alg, allowed...)
}
