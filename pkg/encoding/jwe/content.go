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
	"crypto/rand"
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/crypto/aead"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
)

// ContentEncryption encrypts and decrypts payloads under a CEK with one of
// the AES-GCM or AES-CBC-HMAC content algorithms. It holds no key material
// and is safe for concurrent use.
type ContentEncryption struct {
	enc jwa.ContentAlgorithm
}

// NewContentEncryptionProvider returns the provider for enc. An empty enc
// selects the best algorithm for the current CPU.
func NewContentEncryptionProvider(enc jwa.ContentAlgorithm) (*ContentEncryption, error) {
	if enc == "" {
		enc = aead.SelectOptimal()
	}
	parsed, err := jwa.ParseContentAlgorithm(string(enc))
	if err != nil {
		return nil, err
	}
	return &ContentEncryption{enc: parsed}, nil
}

// Algorithm returns the "enc" value.
func (c *ContentEncryption) Algorithm() jwa.ContentAlgorithm {
	return c.enc
}

// KeySize returns the CEK size in bytes.
func (c *ContentEncryption) KeySize() int {
	return c.enc.KeySize()
}

// GenerateCEK returns a fresh random CEK of the right size.
func (c *ContentEncryption) GenerateCEK() (*jose.Secret, error) {
	return jose.GenerateSecret(c.enc.KeySize())
}

// GenerateIV returns a fresh random IV of the right size.
func (c *ContentEncryption) GenerateIV() ([]byte, error) {
	iv := make([]byte, c.enc.IVSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("jwe: failed to generate IV: %w", err)
	}
	return iv, nil
}

// Encrypt returns the ciphertext and authentication tag.
func (c *ContentEncryption) Encrypt(cek, iv, aad, plaintext []byte) (ciphertext, tag []byte, err error) {
	return aead.Seal(c.enc, cek, iv, aad, plaintext)
}

// Decrypt authenticates and decrypts ciphertext.
func (c *ContentEncryption) Decrypt(cek, iv, aad, ciphertext, tag []byte) ([]byte, error) {
	return aead.Open(c.enc, cek, iv, aad, ciphertext, tag)
}
