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

import "errors"

var (
	// ErrNonceReuse is returned when an IV is reused with the same key.
	// Reusing a GCM nonce breaks authentication and can leak the GHASH key.
	ErrNonceReuse = errors.New("aead: catastrophic nonce reuse detected - encryption rejected for security")

	// ErrAuthentication is returned when the authentication tag does not verify.
	ErrAuthentication = errors.New("aead: message authentication failed")

	// ErrInvalidKeySize is returned when the CEK length does not match the algorithm.
	ErrInvalidKeySize = errors.New("aead: invalid key size")

	// ErrInvalidIV is returned when the IV length does not match the algorithm.
	ErrInvalidIV = errors.New("aead: invalid initialization vector")

	// ErrUnsupportedAlgorithm is returned for unknown content algorithms.
	ErrUnsupportedAlgorithm = errors.New("aead: unsupported content algorithm")
)
