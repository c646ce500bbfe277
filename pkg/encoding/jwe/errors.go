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
	"errors"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
)

var (
	// ErrUnsupportedAlgorithm is returned when no provider exists for a key
	// kind and algorithm pair. It is the same value as jwa.ErrUnsupportedAlgorithm.
	ErrUnsupportedAlgorithm = jwa.ErrUnsupportedAlgorithm

	// ErrInvalidKey indicates key material unsuitable for the algorithm.
	ErrInvalidKey = errors.New("jwe: invalid key")

	// ErrAlgorithmMismatch indicates the JWK "alg" disagrees with the
	// requested algorithm.
	ErrAlgorithmMismatch = errors.New("jwe: algorithm does not match key")

	// ErrKeyUsage indicates the JWK "use" or "key_ops" forbids the operation.
	ErrKeyUsage = errors.New("jwe: key not permitted for operation")

	// ErrInvalidFormat indicates a JWE serialization that cannot be parsed.
	ErrInvalidFormat = errors.New("jwe: invalid serialization")

	// ErrNoRecipients is returned when encrypting without a recipient.
	ErrNoRecipients = errors.New("jwe: no recipients")

	// ErrRecipientNotFound is returned when no recipient matches the provider.
	ErrRecipientNotFound = errors.New("jwe: no matching recipient")

	// ErrPayloadTooLarge is returned when inflated content exceeds the limit.
	ErrPayloadTooLarge = errors.New("jwe: inflated payload exceeds limit")
)
