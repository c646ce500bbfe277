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
	"crypto"
	_ "crypto/sha256" // Link in SHA256
	_ "crypto/sha512" // Link in SHA512
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pbes2Salt(alg string, p2s []byte) []byte {
	salt := append([]byte(alg), 0x00)
	return append(salt, p2s...)
}

func TestKDFAlgorithm_String(t *testing.T) {
	assert.Equal(t, "PBKDF2", AlgorithmPBKDF2.String())
	assert.Equal(t, "ConcatKDF", AlgorithmConcat.String())
}

func TestNew(t *testing.T) {
	a, err := New(AlgorithmPBKDF2)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmPBKDF2, a.Algorithm())

	a, err = New(AlgorithmConcat)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmConcat, a.Algorithm())

	_, err = New("scrypt")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	assert.Nil(t, DefaultParams("scrypt"))
}

// Reference value computed independently with PBKDF2-HMAC-SHA256.
func TestPBKDF2_PBES2Salt(t *testing.T) {
	params := DefaultParams(AlgorithmPBKDF2)
	params.Salt = pbes2Salt("PBES2-HS256+A128KW", []byte{
		0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
	})
	params.Iterations = 1000

	key, err := NewPBKDF2Adapter().DeriveKey([]byte("password"), params)
	require.NoError(t, err)
	assert.Equal(t, "CdNHNeRRd18E4RVq3u_6tA", base64.RawURLEncoding.EncodeToString(key))
}

func TestPBKDF2_ValidateParams(t *testing.T) {
	valid := func() *KDFParams {
		p := DefaultParams(AlgorithmPBKDF2)
		p.Salt = make([]byte, 16)
		return p
	}

	tests := []struct {
		name   string
		mutate func(*KDFParams)
		err    error
	}{
		{"valid", func(*KDFParams) {}, nil},
		{"wrong algorithm", func(p *KDFParams) { p.Algorithm = AlgorithmConcat }, ErrUnsupportedAlgorithm},
		{"zero key length", func(p *KDFParams) { p.KeyLength = 0 }, ErrInvalidKeyLength},
		{"short salt", func(p *KDFParams) { p.Salt = make([]byte, 4) }, ErrInvalidSalt},
		{"iterations below minimum", func(p *KDFParams) { p.Iterations = 999 }, ErrInvalidIterations},
		{"iterations at default cap", func(p *KDFParams) { p.Iterations = DefaultMaxIterations }, nil},
		{"iterations above default cap", func(p *KDFParams) { p.Iterations = DefaultMaxIterations + 1 }, ErrIterationsTooHigh},
		{"iterations above custom cap", func(p *KDFParams) { p.MaxIterations = 5000; p.Iterations = 5001 }, ErrIterationsTooHigh},
		{"unset cap uses default", func(p *KDFParams) { p.MaxIterations = 0; p.Iterations = 2_000_000 }, ErrIterationsTooHigh},
		{"missing hash", func(p *KDFParams) { p.Hash = 0 }, ErrInvalidHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)
			err := NewPBKDF2Adapter().ValidateParams(p)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.ErrorIs(t, NewPBKDF2Adapter().ValidateParams(nil), ErrInvalidKeyLength)

	_, err := NewPBKDF2Adapter().DeriveKey(nil, valid())
	assert.ErrorIs(t, err, ErrInvalidIKM)
}

// RFC 7518 Appendix C.
func TestConcat_RFC7518AppendixC(t *testing.T) {
	z := []byte{
		158, 86, 217, 29, 129, 113, 53, 211, 114, 131, 66, 131, 191, 132,
		38, 156, 251, 49, 110, 163, 218, 128, 106, 72, 246, 218, 167, 121,
		140, 254, 144, 196,
	}
	params := DefaultParams(AlgorithmConcat)
	params.AlgorithmID = []byte("A128GCM")
	params.PartyUInfo = []byte("Alice")
	params.PartyVInfo = []byte("Bob")

	key, err := NewConcatAdapter().DeriveKey(z, params)
	require.NoError(t, err)
	assert.Equal(t, "VqqN6vgjbSBcIijNcacQGg", base64.RawURLEncoding.EncodeToString(key))
}

func TestConcat_MultipleRounds(t *testing.T) {
	z := make([]byte, 32)
	params := &KDFParams{
		Algorithm:   AlgorithmConcat,
		AlgorithmID: []byte("A256CBC-HS512"),
		KeyLength:   64,
		Hash:        crypto.SHA256,
	}

	key, err := NewConcatAdapter().DeriveKey(z, params)
	require.NoError(t, err)
	assert.Len(t, key, 64)
	assert.NotEqual(t, key[:32], key[32:])

	params.KeyLength = 32
	short, err := NewConcatAdapter().DeriveKey(z, params)
	require.NoError(t, err)
	assert.NotEqual(t, key[:32], short, "key length is bound into OtherInfo")
}

func TestConcat_ValidateParams(t *testing.T) {
	c := NewConcatAdapter()
	assert.ErrorIs(t, c.ValidateParams(nil), ErrInvalidKeyLength)
	assert.ErrorIs(t, c.ValidateParams(&KDFParams{Algorithm: AlgorithmPBKDF2}), ErrUnsupportedAlgorithm)
	assert.ErrorIs(t, c.ValidateParams(&KDFParams{Algorithm: AlgorithmConcat, Hash: crypto.SHA256}), ErrInvalidKeyLength)
	assert.ErrorIs(t, c.ValidateParams(&KDFParams{Algorithm: AlgorithmConcat, KeyLength: 16}), ErrInvalidHash)

	_, err := c.DeriveKey(nil, DefaultParams(AlgorithmConcat))
	assert.ErrorIs(t, err, ErrInvalidIKM)
}
