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
	"bytes"
	"crypto/rand"
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-trustkit/pkg/crypto/wrapping"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
)

// PBES2SaltSize is the length of the generated "p2s" value.
const PBES2SaltSize = 16

// PBES2KeyEncryption derives a key-wrapping key from a password with PBKDF2
// and wraps the CEK with AES-KW (RFC 7518 Section 4.8).
type PBES2KeyEncryption struct {
	alg        jwa.KeyAlgorithm
	password   []byte
	iterations int
}

// NewPBES2KeyEncryption returns a PBES2 provider. Zero iterations selects
// kdf.DefaultPBKDF2Iterations.
func NewPBES2KeyEncryption(password []byte, alg jwa.KeyAlgorithm, iterations int) (*PBES2KeyEncryption, error) {
	if !alg.IsPbes2() {
		return nil, fmt.Errorf("%w: %s is not a PBES2 algorithm", ErrUnsupportedAlgorithm, alg)
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("%w: password cannot be empty", ErrInvalidKey)
	}
	if iterations == 0 {
		iterations = kdf.DefaultPBKDF2Iterations
	}
	if iterations < kdf.MinPBKDF2Iterations {
		return nil, fmt.Errorf("%w: %d", kdf.ErrInvalidIterations, iterations)
	}
	return &PBES2KeyEncryption{alg: alg, password: bytes.Clone(password), iterations: iterations}, nil
}

// Algorithm returns the key management algorithm.
func (p *PBES2KeyEncryption) Algorithm() jwa.KeyAlgorithm { return p.alg }

// EncryptKey generates "p2s", records it with "p2c" and wraps cek.
func (p *PBES2KeyEncryption) EncryptKey(headers *jose.Headers, cek []byte) ([]byte, error) {
	p2s := make([]byte, PBES2SaltSize)
	if _, err := rand.Read(p2s); err != nil {
		return nil, fmt.Errorf("jwe: failed to generate p2s: %w", err)
	}
	if err := headers.Set(jose.HeaderPBES2Salt, jose.Encode(p2s)); err != nil {
		return nil, err
	}
	if err := headers.Set(jose.HeaderPBES2Count, p.iterations); err != nil {
		return nil, err
	}

	kek, err := derivePBES2Key(p.password, p.alg, p2s, p.iterations, p.iterations)
	if err != nil {
		return nil, err
	}
	defer jose.Zero(kek)
	return wrapping.WrapAESKW(kek, cek)
}

// PBES2KeyDecryption unwraps a PBES2 encrypted CEK. The "p2c" header is
// bounded before any derivation work is done.
type PBES2KeyDecryption struct {
	alg           jwa.KeyAlgorithm
	password      []byte
	maxIterations int
}

// NewPBES2KeyDecryption returns a PBES2 provider. Zero maxIterations selects
// kdf.DefaultMaxIterations.
func NewPBES2KeyDecryption(password []byte, alg jwa.KeyAlgorithm, maxIterations int) (*PBES2KeyDecryption, error) {
	if !alg.IsPbes2() {
		return nil, fmt.Errorf("%w: %s is not a PBES2 algorithm", ErrUnsupportedAlgorithm, alg)
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("%w: password cannot be empty", ErrInvalidKey)
	}
	if maxIterations <= 0 {
		maxIterations = kdf.DefaultMaxIterations
	}
	return &PBES2KeyDecryption{alg: alg, password: bytes.Clone(password), maxIterations: maxIterations}, nil
}

// Algorithm returns the key management algorithm.
func (p *PBES2KeyDecryption) Algorithm() jwa.KeyAlgorithm { return p.alg }

// MaxIterations returns the largest accepted "p2c".
func (p *PBES2KeyDecryption) MaxIterations() int { return p.maxIterations }

// DecryptKey derives the key-wrapping key from "p2s" and "p2c" and unwraps
// the encrypted key segment.
func (p *PBES2KeyDecryption) DecryptKey(headers *jose.Headers, encryptedKey []byte) (*jose.Secret, error) {
	p2c, ok := headers.Int(jose.HeaderPBES2Count)
	if !ok {
		return nil, fmt.Errorf("%w: %s", jose.ErrMissingHeader, jose.HeaderPBES2Count)
	}
	if err := checkIterations(p2c, p.maxIterations); err != nil {
		return nil, err
	}
	p2s, err := headers.Bytes(jose.HeaderPBES2Salt)
	if err != nil {
		return nil, err
	}

	kek, err := derivePBES2Key(p.password, p.alg, p2s, int(p2c), p.maxIterations)
	if err != nil {
		return nil, err
	}
	defer jose.Zero(kek)

	cek, err := wrapping.UnwrapAESKW(kek, encryptedKey)
	if err != nil {
		return nil, err
	}
	return jose.NewSecret(cek), nil
}

func checkIterations(p2c int64, maxIterations int) error {
	if p2c < kdf.MinPBKDF2Iterations {
		return fmt.Errorf("%w: p2c %d below %d", kdf.ErrInvalidIterations, p2c, kdf.MinPBKDF2Iterations)
	}
	if p2c > int64(maxIterations) {
		return fmt.Errorf("%w: p2c %d above %d", kdf.ErrIterationsTooHigh, p2c, maxIterations)
	}
	return nil
}

// derivePBES2Key runs PBKDF2 over the salt input UTF8(alg) || 0x00 || p2s.
func derivePBES2Key(password []byte, alg jwa.KeyAlgorithm, p2s []byte, iterations, maxIterations int) ([]byte, error) {
	salt := make([]byte, 0, len(alg)+1+len(p2s))
	salt = append(salt, string(alg)...)
	salt = append(salt, 0x00)
	salt = append(salt, p2s...)

	params := &kdf.KDFParams{
		Algorithm:     kdf.AlgorithmPBKDF2,
		Salt:          salt,
		Iterations:    iterations,
		MaxIterations: maxIterations,
		KeyLength:     alg.WrapKeySize(),
		Hash:          alg.Pbes2Hash(),
	}
	return kdf.NewPBKDF2Adapter().DeriveKey(password, params)
}

func pbes2EncryptionFactory(m jwk.Material, alg jwa.KeyAlgorithm) (KeyEncryptionProvider, error) {
	key, err := octetKey(m)
	if err != nil {
		return nil, err
	}
	return NewPBES2KeyEncryption(key, alg, 0)
}

func pbes2DecryptionFactory(m jwk.Material, alg jwa.KeyAlgorithm) (KeyDecryptionProvider, error) {
	key, err := octetKey(m)
	if err != nil {
		return nil, err
	}
	return NewPBES2KeyDecryption(key, alg, 0)
}
