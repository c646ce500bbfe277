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
	"bytes"
	"hash"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
)

// digestSignature hashes the signing input incrementally and signs the
// digest on Sign.
type digestSignature struct {
	hash.Hash
	sign func(digest []byte) ([]byte, error)
}

func (s *digestSignature) Sign() ([]byte, error) {
	return s.sign(s.Sum(nil))
}

type digestVerification struct {
	hash.Hash
	verify func(digest, signature []byte) bool
}

func (v *digestVerification) Verify(signature []byte) bool {
	return v.verify(v.Sum(nil), signature)
}

// messageSignature buffers the whole signing input for algorithms that
// hash internally (EdDSA).
type messageSignature struct {
	bytes.Buffer
	sign func(message []byte) ([]byte, error)
}

func (s *messageSignature) Sign() ([]byte, error) {
	return s.sign(s.Bytes())
}

type messageVerification struct {
	bytes.Buffer
	verify func(message, signature []byte) bool
}

func (v *messageVerification) Verify(signature []byte) bool {
	return v.verify(v.Bytes(), signature)
}

// prepareSignature validates the header algorithm and records it when the
// header has none.
func (p algorithmPolicy) prepareSignature(headers *jose.Headers) (jwa.SignatureAlgorithm, error) {
	alg, err := p.checkAlgorithm(headers)
	if err != nil {
		return "", err
	}
	if headers.Algorithm() == "" {
		if err := headers.Set(jose.HeaderAlgorithm, string(alg)); err != nil {
			return "", err
		}
	}
	return alg, nil
}
