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
	"crypto/aes"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
)

// defaultIV is the RFC 3394 Section 2.2.3.1 initial value.
var defaultIV = []byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// WrapAESKW wraps plaintext key material with AES Key Wrap (RFC 3394).
// The plaintext must be at least 16 bytes and a multiple of 8.
func WrapAESKW(kek, plaintext []byte) ([]byte, error) {
	if len(kek) != 16 && len(kek) != 24 && len(kek) != 32 {
		return nil, fmt.Errorf("%w: AES key must be 16, 24, or 32 bytes", ErrInvalidKey)
	}
	if len(plaintext) < 16 || len(plaintext)%8 != 0 {
		return nil, fmt.Errorf("%w: key data must be a multiple of 8 bytes and at least 16", ErrInvalidKey)
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	n := len(plaintext) / 8
	out := make([]byte, (n+1)*8)
	copy(out[8:], plaintext)

	a := make([]byte, 8)
	copy(a, defaultIV)
	b := make([]byte, 16)

	for j := 0; j < 6; j++ {
		for i := 1; i <= n; i++ {
			// B = AES(K, A | R[i])
			copy(b[:8], a)
			copy(b[8:], out[i*8:(i+1)*8])
			block.Encrypt(b, b)

			// A = MSB(64, B) ^ t where t = (n*j)+i
			t := uint64(n*j + i)
			binary.BigEndian.PutUint64(a, binary.BigEndian.Uint64(b[:8])^t)

			// R[i] = LSB(64, B)
			copy(out[i*8:(i+1)*8], b[8:])
		}
	}
	copy(out[:8], a)
	return out, nil
}

// UnwrapAESKW unwraps key material wrapped with AES Key Wrap (RFC 3394)
// and verifies the integrity check value in constant time.
func UnwrapAESKW(kek, ciphertext []byte) ([]byte, error) {
	if len(kek) != 16 && len(kek) != 24 && len(kek) != 32 {
		return nil, fmt.Errorf("%w: AES key must be 16, 24, or 32 bytes", ErrInvalidKey)
	}
	if len(ciphertext) < 24 || len(ciphertext)%8 != 0 {
		return nil, ErrUnwrap
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	n := len(ciphertext)/8 - 1
	r := make([]byte, n*8)
	copy(r, ciphertext[8:])

	a := make([]byte, 8)
	copy(a, ciphertext[:8])
	b := make([]byte, 16)

	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			// B = AES-1(K, (A ^ t) | R[i]) where t = n*j+i
			t := uint64(n*j + i)
			binary.BigEndian.PutUint64(b[:8], binary.BigEndian.Uint64(a)^t)
			copy(b[8:], r[(i-1)*8:i*8])
			block.Decrypt(b, b)

			copy(a, b[:8])
			copy(r[(i-1)*8:i*8], b[8:])
		}
	}

	if subtle.ConstantTimeCompare(a, defaultIV) != 1 {
		clear(r)
		return nil, ErrUnwrap
	}
	return r, nil
}
