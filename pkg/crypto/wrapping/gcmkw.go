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

package wrapping

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/crypto/aead"
)

// WrapAESGCM encrypts a CEK with AES-GCM under kek using a fresh 96-bit IV.
// The IV and tag are returned separately because JWE carries them in the
// "iv" and "tag" header members.
func WrapAESGCM(kek, cek []byte) (encryptedKey, iv, tag []byte, err error) {
	if len(cek) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: key material cannot be nil or empty", ErrInvalidKey)
	}
	iv = make([]byte, aead.GCMIVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate IV: %w", err)
	}
	encryptedKey, tag, err = aead.SealGCM(kek, iv, nil, cek)
	if err != nil {
		if errors.Is(err, aead.ErrInvalidKeySize) {
			return nil, nil, nil, fmt.Errorf("%w: AES key must be 16, 24, or 32 bytes", ErrInvalidKey)
		}
		return nil, nil, nil, err
	}
	return encryptedKey, iv, tag, nil
}

// UnwrapAESGCM re-joins the encrypted key with its tag and decrypts it.
func UnwrapAESGCM(kek, encryptedKey, iv, tag []byte) ([]byte, error) {
	cek, err := aead.OpenGCM(kek, iv, nil, encryptedKey, tag)
	if err != nil {
		if errors.Is(err, aead.ErrInvalidKeySize) {
			return nil, fmt.Errorf("%w: AES key must be 16, 24, or 32 bytes", ErrInvalidKey)
		}
		return nil, ErrUnwrap
	}
	return cek, nil
}
