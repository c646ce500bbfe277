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

// Package kdf provides the key derivation functions used by JWE key
// management: PBKDF2 for the PBES2 family (RFC 7518 Section 4.8) and the
// NIST SP 800-56A Concat KDF for ECDH-ES (RFC 7518 Section 4.6).
package kdf

import (
	"crypto"
	"errors"
)

// KDFAlgorithm represents the key derivation function algorithm type
type KDFAlgorithm string

const (
	// AlgorithmPBKDF2 represents Password-Based Key Derivation Function 2 (RFC 8018)
	AlgorithmPBKDF2 KDFAlgorithm = "PBKDF2"

	// AlgorithmConcat represents the single-step Concat KDF (NIST SP 800-56A)
	AlgorithmConcat KDFAlgorithm = "ConcatKDF"
)

// String returns the string representation of the KDF algorithm
func (a KDFAlgorithm) String() string {
	return string(a)
}

// KDFParams contains parameters for key derivation
type KDFParams struct {
	// Algorithm specifies which KDF algorithm to use
	Algorithm KDFAlgorithm

	// Salt is the full PBKDF2 salt. For PBES2 this is alg || 0x00 || p2s.
	Salt []byte

	// Iterations specifies the number of iterations (PBKDF2 only)
	Iterations int

	// MaxIterations caps Iterations. Zero selects DefaultMaxIterations.
	MaxIterations int

	// AlgorithmID, PartyUInfo and PartyVInfo are the length-prefixed
	// OtherInfo fields (Concat KDF only)
	AlgorithmID []byte
	PartyUInfo  []byte
	PartyVInfo  []byte

	// KeyLength is the desired output key length in bytes
	KeyLength int

	// Hash is the hash function to use
	Hash crypto.Hash
}

// KDFAdapter is the interface for key derivation function adapters
type KDFAdapter interface {
	// DeriveKey derives a key from the input key material using the specified parameters
	DeriveKey(ikm []byte, params *KDFParams) ([]byte, error)

	// Algorithm returns the KDF algorithm this adapter implements
	Algorithm() KDFAlgorithm

	// ValidateParams validates the KDF parameters for this algorithm
	ValidateParams(params *KDFParams) error
}

// Common errors
var (
	// ErrInvalidSalt indicates the salt is invalid (nil, empty, or too short)
	ErrInvalidSalt = errors.New("kdf: invalid salt")

	// ErrInvalidKeyLength indicates the requested key length is invalid
	ErrInvalidKeyLength = errors.New("kdf: invalid key length")

	// ErrInvalidIterations indicates the iteration count is below the minimum
	ErrInvalidIterations = errors.New("kdf: invalid iterations")

	// ErrIterationsTooHigh indicates the iteration count exceeds the configured cap
	ErrIterationsTooHigh = errors.New("kdf: iteration count exceeds maximum")

	// ErrInvalidHash indicates the hash function is invalid or not supported
	ErrInvalidHash = errors.New("kdf: invalid or unsupported hash function")

	// ErrInvalidIKM indicates the input key material is invalid
	ErrInvalidIKM = errors.New("kdf: invalid input key material")

	// ErrUnsupportedAlgorithm indicates the algorithm is not supported by this adapter
	ErrUnsupportedAlgorithm = errors.New("kdf: unsupported algorithm")
)

// DefaultParams returns recommended default parameters for each KDF algorithm
func DefaultParams(algorithm KDFAlgorithm) *KDFParams {
	switch algorithm {
	case AlgorithmPBKDF2:
		return &KDFParams{
			Algorithm:     AlgorithmPBKDF2,
			Iterations:    DefaultPBKDF2Iterations,
			MaxIterations: DefaultMaxIterations,
			KeyLength:     16,
			Hash:          crypto.SHA256,
		}
	case AlgorithmConcat:
		return &KDFParams{
			Algorithm: AlgorithmConcat,
			KeyLength: 16,
			Hash:      crypto.SHA256,
		}
	default:
		return nil
	}
}

// New returns the adapter for the named algorithm.
func New(algorithm KDFAlgorithm) (KDFAdapter, error) {
	switch algorithm {
	case AlgorithmPBKDF2:
		return NewPBKDF2Adapter(), nil
	case AlgorithmConcat:
		return NewConcatAdapter(), nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}
