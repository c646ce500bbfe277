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

package kdf

import (
	"encoding/binary"
	"hash"
)

// ConcatAdapter implements the single-step Concat KDF from NIST SP 800-56A
// Section 5.8.1 with the OtherInfo layout of RFC 7518 Section 4.6.2.
type ConcatAdapter struct{}

// NewConcatAdapter creates a new Concat KDF adapter
func NewConcatAdapter() *ConcatAdapter {
	return &ConcatAdapter{}
}

// DeriveKey derives KeyLength bytes from the shared secret z.
func (c *ConcatAdapter) DeriveKey(z []byte, params *KDFParams) ([]byte, error) {
	if err := c.ValidateParams(params); err != nil {
		return nil, err
	}
	if len(z) == 0 {
		return nil, ErrInvalidIKM
	}

	otherInfo := make([]byte, 0, 16+len(params.AlgorithmID)+len(params.PartyUInfo)+len(params.PartyVInfo))
	otherInfo = appendLengthPrefixed(otherInfo, params.AlgorithmID)
	otherInfo = appendLengthPrefixed(otherInfo, params.PartyUInfo)
	otherInfo = appendLengthPrefixed(otherInfo, params.PartyVInfo)
	otherInfo = binary.BigEndian.AppendUint32(otherInfo, uint32(params.KeyLength*8))

	var h hash.Hash = params.Hash.New()
	out := make([]byte, 0, params.KeyLength+h.Size())
	counter := make([]byte, 4)
	for i := uint32(1); len(out) < params.KeyLength; i++ {
		binary.BigEndian.PutUint32(counter, i)
		h.Reset()
		h.Write(counter)
		h.Write(z)
		h.Write(otherInfo)
		out = h.Sum(out)
	}
	return out[:params.KeyLength], nil
}

// Algorithm returns the KDF algorithm
func (c *ConcatAdapter) Algorithm() KDFAlgorithm {
	return AlgorithmConcat
}

// ValidateParams validates Concat KDF parameters
func (c *ConcatAdapter) ValidateParams(params *KDFParams) error {
	if params == nil {
		return ErrInvalidKeyLength
	}
	if params.Algorithm != AlgorithmConcat {
		return ErrUnsupportedAlgorithm
	}
	if params.KeyLength <= 0 {
		return ErrInvalidKeyLength
	}
	if params.Hash == 0 || !params.Hash.Available() {
		return ErrInvalidHash
	}
	return nil
}

func appendLengthPrefixed(dst, data []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(data)))
	return append(dst, data...)
}
