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
	"errors"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
)

var (
	// ErrUnsupportedAlgorithm is the same value as jwa.ErrUnsupportedAlgorithm.
	ErrUnsupportedAlgorithm = jwa.ErrUnsupportedAlgorithm

	// ErrAlgorithmNotAllowed indicates a header "alg" outside the provider's
	// allow-list.
	ErrAlgorithmNotAllowed = errors.New("jws: algorithm not allowed")

	// ErrAlgorithmMismatch indicates the JWK "alg" disagrees with the
	// requested algorithm.
	ErrAlgorithmMismatch = errors.New("jws: algorithm does not match key")

	// ErrInvalidKey indicates key material unsuitable for the algorithm.
	ErrInvalidKey = errors.New("jws: invalid key")

	// ErrKeyUsage indicates the JWK "use" or "key_ops" forbids the operation.
	ErrKeyUsage = errors.New("jws: key not permitted for operation")

	// ErrInvalidFormat indicates a JWS serialization that cannot be parsed.
	ErrInvalidFormat = errors.New("jws: invalid serialization")

	// ErrSignatureInvalid indicates a signature that does not verify.
	ErrSignatureInvalid = errors.New("jws: signature verification failed")

	// ErrNoSignatures is returned when serializing a JSON JWS without
	// signatures.
	ErrNoSignatures = errors.New("jws: no signatures")
)
