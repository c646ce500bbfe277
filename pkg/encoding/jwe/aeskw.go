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
	"bytes"
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/crypto/aead"
	"github.com/jeremyhahn/go-trustkit/pkg/crypto/wrapping"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
)

// AESKeyWrap wraps and unwraps the CEK with RFC 3394 AES Key Wrap
// (A128KW, A192KW, A256KW). It implements both provider interfaces.
type AESKeyWrap struct {
	alg jwa.KeyAlgorithm
	kek []byte
}

// NewAESKeyWrap returns an AES-KW provider. The key size must match alg.
func NewAESKeyWrap(kek []byte, alg jwa.KeyAlgorithm) (*AESKeyWrap, error) {
	if !alg.IsAesKeyWrap() {
		return nil, fmt.Errorf("%w: %s is not an AES key wrap algorithm", ErrUnsupportedAlgorithm, alg)
	}
	if len(kek) != alg.WrapKeySize() {
		return nil, fmt.Errorf("%w: %s requires a %d byte key, got %d", ErrInvalidKey, alg, alg.WrapKeySize(), len(kek))
	}
	return &AESKeyWrap{alg: alg, kek: bytes.Clone(kek)}, nil
}

// Algorithm returns the key management algorithm.
func (p *AESKeyWrap) Algorithm() jwa.KeyAlgorithm { return p.alg }

// EncryptKey wraps cek.
func (p *AESKeyWrap) EncryptKey(_ *jose.Headers, cek []byte) ([]byte, error) {
	return wrapping.WrapAESKW(p.kek, cek)
}

// DecryptKey unwraps the encrypted key segment.
func (p *AESKeyWrap) DecryptKey(_ *jose.Headers, encryptedKey []byte) (*jose.Secret, error) {
	cek, err := wrapping.UnwrapAESKW(p.kek, encryptedKey)
	if err != nil {
		return nil, err
	}
	return jose.NewSecret(cek), nil
}

// AESGCMKeyWrap encrypts the CEK with AES-GCM (A128GCMKW, A192GCMKW,
// A256GCMKW). The IV and tag travel in the "iv" and "tag" headers.
type AESGCMKeyWrap struct {
	alg jwa.KeyAlgorithm
	kek []byte
}

// NewAESGCMKeyWrap returns an AES-GCM key wrap provider.
func NewAESGCMKeyWrap(kek []byte, alg jwa.KeyAlgorithm) (*AESGCMKeyWrap, error) {
	if !alg.IsAesGcmKeyWrap() {
		return nil, fmt.Errorf("%w: %s is not an AES-GCM key wrap algorithm", ErrUnsupportedAlgorithm, alg)
	}
	if len(kek) != alg.WrapKeySize() {
		return nil, fmt.Errorf("%w: %s requires a %d byte key, got %d", ErrInvalidKey, alg, alg.WrapKeySize(), len(kek))
	}
	return &AESGCMKeyWrap{alg: alg, kek: bytes.Clone(kek)}, nil
}

// Algorithm returns the key management algorithm.
func (p *AESGCMKeyWrap) Algorithm() jwa.KeyAlgorithm { return p.alg }

// EncryptKey encrypts cek and records "iv" and "tag" in headers.
func (p *AESGCMKeyWrap) EncryptKey(headers *jose.Headers, cek []byte) ([]byte, error) {
	encryptedKey, iv, tag, err := wrapping.WrapAESGCM(p.kek, cek)
	if err != nil {
		return nil, err
	}
	if err := headers.Set(jose.HeaderIV, jose.Encode(iv)); err != nil {
		return nil, err
	}
	if err := headers.Set(jose.HeaderTag, jose.Encode(tag)); err != nil {
		return nil, err
	}
	return encryptedKey, nil
}

// DecryptKey re-joins the encrypted key with the "tag" header and decrypts
// it using the "iv" header.
func (p *AESGCMKeyWrap) DecryptKey(headers *jose.Headers, encryptedKey []byte) (*jose.Secret, error) {
	iv, err := headers.Bytes(jose.HeaderIV)
	if err != nil {
		return nil, err
	}
	tag, err := headers.Bytes(jose.HeaderTag)
	if err != nil {
		return nil, err
	}
	if len(iv) != aead.GCMIVSize || len(tag) != aead.GCMTagSize {
		return nil, fmt.Errorf("%w: iv or tag has wrong length", jose.ErrMalformedHeader)
	}
	cek, err := wrapping.UnwrapAESGCM(p.kek, encryptedKey, iv, tag)
	if err != nil {
		return nil, err
	}
	return jose.NewSecret(cek), nil
}

func octetKey(m jwk.Material) ([]byte, error) {
	mat, ok := m.(*jwk.OctetMaterial)
	if !ok {
		return nil, fmt.Errorf("%w: expected symmetric key", ErrInvalidKey)
	}
	return mat.Key, nil
}

func aesKeyWrapEncryptionFactory(m jwk.Material, alg jwa.KeyAlgorithm) (KeyEncryptionProvider, error) {
	key, err := octetKey(m)
	if err != nil {
		return nil, err
	}
	return NewAESKeyWrap(key, alg)
}

func aesKeyWrapDecryptionFactory(m jwk.Material, alg jwa.KeyAlgorithm) (KeyDecryptionProvider, error) {
	key, err := octetKey(m)
	if err != nil {
		return nil, err
	}
	return NewAESKeyWrap(key, alg)
}

func aesGCMKeyWrapEncryptionFactory(m jwk.Material, alg jwa.KeyAlgorithm) (KeyEncryptionProvider, error) {
	key, err := octetKey(m)
	if err != nil {
		return nil, err
	}
	return NewAESGCMKeyWrap(key, alg)
}

func aesGCMKeyWrapDecryptionFactory(m jwk.Material, alg jwa.KeyAlgorithm) (KeyDecryptionProvider, error) {
	key, err := octetKey(m)
	if err != nil {
		return nil, err
	}
	return NewAESGCMKeyWrap(key, alg)
}
