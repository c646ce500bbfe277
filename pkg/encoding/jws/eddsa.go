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
	"crypto/ed25519"
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
)

// EdDSASignatureProvider signs with Ed25519 (RFC 8037).
type EdDSASignatureProvider struct {
	algorithmPolicy
	key ed25519.PrivateKey
}

// NewEdDSASignatureProvider returns an Ed25519 signature provider.
func NewEdDSASignatureProvider(key ed25519.PrivateKey) (*EdDSASignatureProvider, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: invalid Ed25519 private key", ErrInvalidKey)
	}
	policy, err := newAlgorithmPolicy(jwa.EdDSA, nil, isEdDSA)
	if err != nil {
		return nil, err
	}
	return &EdDSASignatureProvider{algorithmPolicy: policy, key: key}, nil
}

// CreateSignature buffers the signing input; Ed25519 hashes internally.
func (p *EdDSASignatureProvider) CreateSignature(headers *jose.Headers) (Signature, error) {
	if _, err := p.prepareSignature(headers); err != nil {
		return nil, err
	}
	return &messageSignature{sign: func(message []byte) ([]byte, error) {
		return ed25519.Sign(p.key, message), nil
	}}, nil
}

// EdDSASignatureVerifier verifies Ed25519 signatures.
type EdDSASignatureVerifier struct {
	algorithmPolicy
	key ed25519.PublicKey
}

// NewEdDSASignatureVerifier returns an Ed25519 verifier.
func NewEdDSASignatureVerifier(key ed25519.PublicKey) (*EdDSASignatureVerifier, error) {
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: invalid Ed25519 public key", ErrInvalidKey)
	}
	policy, err := newAlgorithmPolicy(jwa.EdDSA, nil, isEdDSA)
	if err != nil {
		return nil, err
	}
	return &EdDSASignatureVerifier{algorithmPolicy: policy, key: key}, nil
}

// CreateVerification buffers the signing input for Verify.
func (v *EdDSASignatureVerifier) CreateVerification(headers *jose.Headers) (Verification, error) {
	if _, err := v.checkAlgorithm(headers); err != nil {
		return nil, err
	}
	return &messageVerification{verify: func(message, signature []byte) bool {
		return ed25519.Verify(v.key, message, signature)
	}}, nil
}

func isEdDSA(alg jwa.SignatureAlgorithm) bool { return alg == jwa.EdDSA }

func eddsaProviderFactory(m jwk.Material, _ jwa.SignatureAlgorithm) (SignatureProvider, error) {
	mat, ok := m.(*jwk.OKPMaterial)
	if !ok || mat.Curve != jwk.CurveEd25519 {
		return nil, fmt.Errorf("%w: EdDSA requires an Ed25519 key", ErrInvalidKey)
	}
	priv, ok := mat.Private.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: EdDSA signing requires a private key", ErrInvalidKey)
	}
	p, err := NewEdDSASignatureProvider(priv)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func eddsaVerifierFactory(m jwk.Material, _ jwa.SignatureAlgorithm, _ []jwa.SignatureAlgorithm) (SignatureVerifier, error) {
	mat, ok := m.(*jwk.OKPMaterial)
	if !ok || mat.Curve != jwk.CurveEd25519 {
		return nil, fmt.Errorf("%w: EdDSA requires an Ed25519 key", ErrInvalidKey)
	}
	pub, ok := mat.Public.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: invalid Ed25519 public key", ErrInvalidKey)
	}
	v, err := NewEdDSASignatureVerifier(pub)
	if err != nil {
		return nil, err
	}
	return v, nil
}
