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

package jwe

import (
	"crypto/rsa"
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/crypto/wrapping"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
)

// RSAKeyEncryption wraps the CEK with RSA-OAEP or RSA-OAEP-256.
type RSAKeyEncryption struct {
	alg jwa.KeyAlgorithm
	pub *rsa.PublicKey
}

// NewRSAKeyEncryption returns an RSA-OAEP key encryption provider.
func NewRSAKeyEncryption(pub *rsa.PublicKey, alg jwa.KeyAlgorithm) (*RSAKeyEncryption, error) {
	if !alg.IsRsaOaep() {
		return nil, fmt.Errorf("%w: %s is not an RSA key algorithm", ErrUnsupportedAlgorithm, alg)
	}
	if err := checkRSAKey(pub); err != nil {
		return nil, err
	}
	return &RSAKeyEncryption{alg: alg, pub: pub}, nil
}

// Algorithm returns the key management algorithm.
func (p *RSAKeyEncryption) Algorithm() jwa.KeyAlgorithm { return p.alg }

// EncryptKey wraps cek under the recipient's public key.
func (p *RSAKeyEncryption) EncryptKey(_ *jose.Headers, cek []byte) ([]byte, error) {
	return wrapping.WrapRSAOAEP(cek, p.pub, p.alg)
}

// RSAKeyDecryption unwraps an RSA-OAEP encrypted CEK.
type RSAKeyDecryption struct {
	alg  jwa.KeyAlgorithm
	priv *rsa.PrivateKey
}

// NewRSAKeyDecryption returns an RSA-OAEP key decryption provider.
func NewRSAKeyDecryption(priv *rsa.PrivateKey, alg jwa.KeyAlgorithm) (*RSAKeyDecryption, error) {
	if !alg.IsRsaOaep() {
		return nil, fmt.Errorf("%w: %s is not an RSA key algorithm", ErrUnsupportedAlgorithm, alg)
	}
	if priv == nil {
		return nil, fmt.Errorf("%w: private key cannot be nil", ErrInvalidKey)
	}
	if err := checkRSAKey(&priv.PublicKey); err != nil {
		return nil, err
	}
	return &RSAKeyDecryption{alg: alg, priv: priv}, nil
}

// Algorithm returns the key management algorithm.
func (p *RSAKeyDecryption) Algorithm() jwa.KeyAlgorithm { return p.alg }

// DecryptKey unwraps the encrypted key segment.
func (p *RSAKeyDecryption) DecryptKey(_ *jose.Headers, encryptedKey []byte) (*jose.Secret, error) {
	cek, err := wrapping.UnwrapRSAOAEP(encryptedKey, p.priv, p.alg)
	if err != nil {
		return nil, err
	}
	return jose.NewSecret(cek), nil
}

func checkRSAKey(pub *rsa.PublicKey) error {
	if pub == nil {
		return fmt.Errorf("%w: public key cannot be nil", ErrInvalidKey)
	}
	if pub.N.BitLen() < jwa.MinRSAKeyBits {
		return fmt.Errorf("%w: RSA key must be at least %d bits", ErrInvalidKey, jwa.MinRSAKeyBits)
	}
	return nil
}

func rsaEncryptionFactory(m jwk.Material, alg jwa.KeyAlgorithm) (KeyEncryptionProvider, error) {
	mat, ok := m.(*jwk.RSAMaterial)
	if !ok {
		return nil, fmt.Errorf("%w: expected RSA key", ErrInvalidKey)
	}
	return NewRSAKeyEncryption(mat.Public, alg)
}

func rsaDecryptionFactory(m jwk.Material, alg jwa.KeyAlgorithm) (KeyDecryptionProvider, error) {
	mat, ok := m.(*jwk.RSAMaterial)
	if !ok {
		return nil, fmt.Errorf("%w: expected RSA key", ErrInvalidKey)
	}
	if mat.Private == nil {
		return nil, jwk.ErrNotPrivate
	}
	return NewRSAKeyDecryption(mat.Private, alg)
}
