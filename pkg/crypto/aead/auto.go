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

// Package aead implements the JWE content encryption primitives:
//
//   - AES-GCM with a 96-bit IV and 128-bit tag (RFC 7518 Section 5.3)
//   - AES-CBC with HMAC-SHA2 (RFC 7518 Section 5.2)
//
// It also selects a default content algorithm from the CPU's capabilities:
// A256GCM when AES instructions are available, A256CBC-HS512 otherwise.
//
// Example usage:
//
//	enc := aead.SelectOptimal()
//	ciphertext, tag, err := aead.Seal(enc, cek, iv, aad, plaintext)
package aead

import (
	"runtime"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"golang.org/x/sys/cpu"
)

// HasAESNI returns true if the CPU has hardware AES support.
//
// Supported architectures:
//   - amd64: Checks X86.HasAES
//   - arm64: Checks ARM64.HasAES
//   - Other architectures return false
func HasAESNI() bool {
	switch runtime.GOARCH {
	case "amd64":
		return cpu.X86.HasAES
	case "arm64":
		return cpu.ARM64.HasAES
	default:
		return false
	}
}

// SelectOptimal selects the content encryption algorithm used when a caller
// leaves "enc" unset: A256GCM with hardware AES, A256CBC-HS512 otherwise.
func SelectOptimal() jwa.ContentAlgorithm {
	if HasAESNI() {
		return jwa.A256GCM
	}
	return jwa.A256CBCHS512
}

// Seal encrypts plaintext under cek with the named content algorithm and
// returns the ciphertext and authentication tag separately, as they are
// carried in separate JWE segments.
func Seal(enc jwa.ContentAlgorithm, cek, iv, aad, plaintext []byte) (ciphertext, tag []byte, err error) {
	switch {
	case enc.IsAesGcm():
		if len(cek) != enc.KeySize() {
			return nil, nil, ErrInvalidKeySize
		}
		return SealGCM(cek, iv, aad, plaintext)
	case enc.IsAesCbcHmac():
		return SealCBCHMAC(enc, cek, iv, aad, plaintext)
	default:
		return nil, nil, ErrUnsupportedAlgorithm
	}
}

// Open authenticates and decrypts ciphertext with the named content algorithm.
func Open(enc jwa.ContentAlgorithm, cek, iv, aad, ciphertext, tag []byte) ([]byte, error) {
	switch {
	case enc.IsAesGcm():
		if len(cek) != enc.KeySize() {
			return nil, ErrInvalidKeySize
		}
		return OpenGCM(cek, iv, aad, ciphertext, tag)
	case enc.IsAesCbcHmac():
		return OpenCBCHMAC(enc, cek, iv, aad, ciphertext, tag)
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}
