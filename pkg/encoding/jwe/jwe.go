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
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
)

// DefaultPasswordAlgorithm is the key algorithm used by EncryptWithPassword.
const DefaultPasswordAlgorithm = jwa.PBES2HS256A128KW

// Encrypt encrypts plaintext for key and returns the compact serialization.
//
// Parameters:
//   - key: recipient JWK; public RSA/EC/OKP keys or a symmetric key
//   - alg: key management algorithm; empty uses the JWK "alg"
//   - enc: content encryption algorithm; empty selects A256GCM or
//     A256CBC-HS512 depending on hardware AES support
//
// Example:
//
//	token, err := jwe.Encrypt(recipient, jwa.RSAOAEP256, jwa.A256GCM, []byte("secret"))
func Encrypt(key *jwk.JWK, alg jwa.KeyAlgorithm, enc jwa.ContentAlgorithm, plaintext []byte, opts ...Option) (string, error) {
	provider, err := NewKeyEncryptionProvider(key, alg)
	if err != nil {
		return "", err
	}
	if key.Kid != "" {
		opts = append([]Option{WithKeyID(key.Kid)}, opts...)
	}
	e, err := NewEncryption(provider, enc, opts...)
	if err != nil {
		return "", err
	}
	return e.Encrypt(plaintext)
}

// Decrypt decrypts a compact or JSON serialized JWE with key and returns the
// plaintext. When key has no "alg", the algorithm is taken from the JWE
// header; the JWK still has to be of a kind that supports it.
//
// Every failure is reported as jose.ErrSecurity.
func Decrypt(key *jwk.JWK, content []byte, opts ...Option) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: key cannot be nil", ErrInvalidKey)
	}
	o := newOptions(opts...)
	alg := jwa.KeyAlgorithm(key.Alg)
	if alg == "" {
		peeked, err := peekAlgorithm(content)
		if err != nil {
			o.logger.Warn("JWE decryption failed", logger.Error(err))
			return nil, jose.ErrSecurity
		}
		alg = peeked
	}
	provider, err := NewKeyDecryptionProvider(key, alg)
	if err != nil {
		o.logger.Warn("JWE decryption failed", logger.Error(err))
		return nil, jose.ErrSecurity
	}
	d, err := NewDecryption(provider, opts...)
	if err != nil {
		return nil, err
	}
	out, err := d.Decrypt(content)
	if err != nil {
		return nil, err
	}
	return out.Content, nil
}

// EncryptWithPassword encrypts plaintext with PBES2-HS256+A128KW under
// password. WithPBES2Iterations overrides the default of 4096 iterations.
func EncryptWithPassword(password []byte, enc jwa.ContentAlgorithm, plaintext []byte, opts ...Option) (string, error) {
	o := newOptions(opts...)
	provider, err := NewPBES2KeyEncryption(password, DefaultPasswordAlgorithm, o.pbes2Iterations)
	if err != nil {
		return "", err
	}
	e, err := NewEncryption(provider, enc, opts...)
	if err != nil {
		return "", err
	}
	return e.Encrypt(plaintext)
}

// DecryptWithPassword decrypts a password encrypted JWE. Any PBES2 variant
// named in the header is accepted.
func DecryptWithPassword(password []byte, content []byte, opts ...Option) ([]byte, error) {
	o := newOptions(opts...)
	alg, err := peekAlgorithm(content)
	if err == nil && !alg.IsPbes2() {
		err = fmt.Errorf("%w: %s is not a password algorithm", ErrUnsupportedAlgorithm, alg)
	}
	if err != nil {
		o.logger.Warn("JWE decryption failed", logger.Error(err))
		return nil, jose.ErrSecurity
	}
	provider, err := NewPBES2KeyDecryption(password, alg, o.maxIterations)
	if err != nil {
		return nil, err
	}
	d, err := NewDecryption(provider, opts...)
	if err != nil {
		return nil, err
	}
	out, err := d.Decrypt(content)
	if err != nil {
		return nil, err
	}
	return out.Content, nil
}

// EncryptDirect encrypts plaintext with a shared content key ("dir"). The
// key length must match enc.
func EncryptDirect(key []byte, enc jwa.ContentAlgorithm, plaintext []byte, opts ...Option) (string, error) {
	provider, err := NewDirectEncryption(key)
	if err != nil {
		return "", err
	}
	e, err := NewEncryption(provider, enc, opts...)
	if err != nil {
		return "", err
	}
	return e.Encrypt(plaintext)
}

// DecryptDirect decrypts a "dir" JWE with a shared content key.
func DecryptDirect(key []byte, content []byte, opts ...Option) ([]byte, error) {
	provider, err := NewDirectEncryption(key)
	if err != nil {
		return nil, err
	}
	d, err := NewDecryption(provider, opts...)
	if err != nil {
		return nil, err
	}
	out, err := d.Decrypt(content)
	if err != nil {
		return nil, err
	}
	return out.Content, nil
}

// peekAlgorithm returns the "alg" of a compact JWE or of the first
// recipient of a JSON JWE. The value is unauthenticated.
func peekAlgorithm(content []byte) (jwa.KeyAlgorithm, error) {
	content = bytes.TrimSpace(content)
	var headers *jose.Headers
	if len(content) > 0 && content[0] == '{' {
		c, err := ParseJSON(content)
		if err != nil {
			return "", err
		}
		if headers, err = c.RecipientHeaders(0); err != nil {
			return "", err
		}
	} else {
		var err error
		if headers, err = PeekHeaders(string(content)); err != nil {
			return "", err
		}
	}
	return jwa.ParseKeyAlgorithm(headers.Algorithm())
}
