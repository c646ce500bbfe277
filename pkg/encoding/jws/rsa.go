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
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
)

// RSASignatureProvider signs with RSASSA-PKCS1-v1_5 (RS*) or RSASSA-PSS
// (PS*).
type RSASignatureProvider struct {
	algorithmPolicy
	key *rsa.PrivateKey
}

// NewRSASignatureProvider returns an RSA signature provider. The modulus
// must be at least 2048 bits.
func NewRSASignatureProvider(key *rsa.PrivateKey, alg jwa.SignatureAlgorithm) (*RSASignatureProvider, error) {
	policy, err := newAlgorithmPolicy(alg, nil, jwa.SignatureAlgorithm.IsRsa)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, fmt.Errorf("%w: private key cannot be nil", ErrInvalidKey)
	}
	if err := checkRSAKey(&key.PublicKey); err != nil {
		return nil, err
	}
	return &RSASignatureProvider{algorithmPolicy: policy, key: key}, nil
}

// CreateSignature hashes the signing input and signs the digest.
func (p *RSASignatureProvider) CreateSignature(headers *jose.Headers) (Signature, error) {
	alg, err := p.prepareSignature(headers)
	if err != nil {
		return nil, err
	}
	h := alg.Hash()
	return &digestSignature{
		Hash: h.New(),
		sign: func(digest []byte) ([]byte, error) {
			if alg.IsRsaPss() {
				return rsa.SignPSS(rand.Reader, p.key, h, digest, pssOptions(h))
			}
			return rsa.SignPKCS1v15(rand.Reader, p.key, h, digest)
		},
	}, nil
}

// RSASignatureVerifier verifies RS* and PS* signatures.
type RSASignatureVerifier struct {
	algorithmPolicy
	key *rsa.PublicKey
}

// NewRSASignatureVerifier returns an RSA verifier. allowed lists further
// RSA algorithms accepted from the header.
func NewRSASignatureVerifier(key *rsa.PublicKey, alg jwa.SignatureAlgorithm, allowed ...jwa.SignatureAlgorithm) (*RSASignatureVerifier, error) {
	policy, err := newAlgorithmPolicy(alg, allowed, jwa.SignatureAlgorithm.IsRsa)
	if err != nil {
		return nil, err
	}
	if err := checkRSAKey(key); err != nil {
		return nil, err
	}
	return &RSASignatureVerifier{algorithmPolicy: policy, key: key}, nil
}

// CreateVerification hashes the signing input and verifies on Verify.
func (v *RSASignatureVerifier) CreateVerification(headers *jose.Headers) (Verification, error) {
	alg, err := v.checkAlgorithm(headers)
	if err != nil {
		return nil, err
	}
	h := alg.Hash()
	return &digestVerification{
		Hash: h.New(),
		verify: func(digest, signature []byte) bool {
			if alg.IsRsaPss() {
				return rsa.VerifyPSS(v.key, h, digest, signature, pssOptions(h)) == nil
			}
			return rsa.VerifyPKCS1v15(v.key, h, digest, signature) == nil
		},
	}, nil
}

// pssOptions uses a salt as long as the hash (RFC 7518 Section 3.5).
func pssOptions(h crypto.Hash) *rsa.PSSOptions {
	return &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: h}
}

func checkRSAKey(pub *rsa.PublicKey) error {
	if pub == nil || pub.N == nil {
		return fmt.Errorf("%w: public key cannot be nil", ErrInvalidKey)
	}
	if pub.N.BitLen() < jwa.MinRSAKeyBits {
		return fmt.Errorf("%w: RSA key must be at least %d bits", ErrInvalidKey, jwa.MinRSAKeyBits)
	}
	return nil
}

func rsaProviderFactory(m jwk.Material, alg jwa.SignatureAlgorithm) (SignatureProvider, error) {
	mat, ok := m.(*jwk.RSAMaterial)
	if !ok || mat.Private == nil {
		return nil, fmt.Errorf("%w: RSA signing requires a private key", ErrInvalidKey)
	}
	p, err := NewRSASignatureProvider(mat.Private, alg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func rsaVerifierFactory(m jwk.Material, alg jwa.SignatureAlgorithm, allowed []jwa.SignatureAlgorithm) (SignatureVerifier, error) {
	mat, ok := m.(*jwk.RSAMaterial)
	if !ok {
		return nil, fmt.Errorf("%w: expected RSA key", ErrInvalidKey)
	}
	v, err := NewRSASignatureVerifier(mat.Public, alg, allowed...)
	if err != nil {
		return nil, err
	}
	return v, nil
}
