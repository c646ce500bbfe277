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

package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

const (
	// GCMIVSize is the IV size required by JWE for AES-GCM.
	GCMIVSize = 12
	// GCMTagSize is the authentication tag size used by JWE for AES-GCM.
	GCMTagSize = 16
)

func newGCM(key []byte) (cipher.AEAD, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// SealGCM encrypts plaintext with AES-GCM and returns ciphertext and tag.
func SealGCM(key, iv, aad, plaintext []byte) (ciphertext, tag []byte, err error) {
	if len(iv) != GCMIVSize {
		return nil, nil, ErrInvalidIV
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	out := gcm.Seal(nil, iv, plaintext, aad)
	split := len(out) - GCMTagSize
	return out[:split], out[split:], nil
}

// OpenGCM joins ciphertext and tag, then authenticates and decrypts.
func OpenGCM(key, iv, aad, ciphertext, tag []byte) ([]byte, error) {
	if len(iv) != GCMIVSize {
		return nil, ErrInvalidIV
	}
	if len(tag) != GCMTagSize {
		return nil, ErrAuthentication
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	joined := make([]byte, 0, len(ciphertext)+len(tag))
	joined = append(joined, ciphertext...)
	joined = append(joined, tag...)

	plaintext, err := gcm.Open(nil, iv, joined, aad)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}
