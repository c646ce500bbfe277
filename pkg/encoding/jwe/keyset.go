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
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
)

// KeyLookup returns the JWK identified by kid, typically from a jwk.Set or
// a key store.
type KeyLookup func(kid string) (*jwk.JWK, error)

// SetLookup adapts a JWK Set to a KeyLookup.
func SetLookup(set *jwk.Set) KeyLookup {
	return set.KeyByID
}

// KeySetEncrypter encrypts JWE for keys looked up by key ID. The key ID is
// written to the "kid" header so that a KeySetDecrypter can find the
// matching private key.
type KeySetEncrypter struct {
	alg    jwa.KeyAlgorithm
	enc    jwa.ContentAlgorithm
	lookup KeyLookup
	opts   []Option
}

// NewKeySetEncrypter creates a key-ID driven JWE encrypter.
//
// Parameters:
//   - alg: key management algorithm; empty uses each key's "alg"
//   - enc: content encryption algorithm; empty selects automatically
//   - lookup: returns the recipient JWK for a key ID
//
// Example:
//
//	encrypter, err := jwe.NewKeySetEncrypter(jwa.RSAOAEP256, jwa.A256GCM, jwe.SetLookup(publicKeys))
//	if err != nil {
//	    return err
//	}
//	token, err := encrypter.EncryptWithKeyID(plaintext, "sts-2025")
func NewKeySetEncrypter(alg jwa.KeyAlgorithm, enc jwa.ContentAlgorithm, lookup KeyLookup, opts ...Option) (*KeySetEncrypter, error) {
	if lookup == nil {
		return nil, errors.New("jwe: lookup function cannot be nil")
	}
	if alg != "" {
		if _, err := jwa.ParseKeyAlgorithm(string(alg)); err != nil {
			return nil, err
		}
	}
	if enc != "" {
		if _, err := jwa.ParseContentAlgorithm(string(enc)); err != nil {
			return nil, err
		}
	}
	return &KeySetEncrypter{alg: alg, enc: enc, lookup: lookup, opts: opts}, nil
}

// EncryptWithKeyID encrypts plaintext for the key identified by keyID and
// returns the compact serialization with "kid" set to keyID.
func (e *KeySetEncrypter) EncryptWithKeyID(plaintext []byte, keyID string) (string, error) {
	if keyID == "" {
		return "", errors.New("jwe: keyID cannot be empty")
	}
	key, err := e.lookup(keyID)
	if err != nil {
		return "", fmt.Errorf("failed to get key %s: %w", keyID, err)
	}
	provider, err := NewKeyEncryptionProvider(key, e.alg)
	if err != nil {
		return "", fmt.Errorf("failed to create key encryption provider: %w", err)
	}
	opts := append(append([]Option(nil), e.opts...), WithKeyID(keyID))
	encryption, err := NewEncryption(provider, e.enc, opts...)
	if err != nil {
		return "", err
	}
	return encryption.Encrypt(plaintext)
}

// KeySetDecrypter decrypts JWE by resolving the "kid" header to a private
// key.
type KeySetDecrypter struct {
	lookup KeyLookup
	opts   []Option
}

// NewKeySetDecrypter creates a key-ID driven JWE decrypter.
//
// Example:
//
//	decrypter := jwe.NewKeySetDecrypter(jwe.SetLookup(privateKeys))
//	plaintext, err := decrypter.DecryptWithAutoKeyID(token)
func NewKeySetDecrypter(lookup KeyLookup, opts ...Option) *KeySetDecrypter {
	return &KeySetDecrypter{lookup: lookup, opts: opts}
}

// DecryptWithAutoKeyID extracts "kid" from the compact JWE, looks up the
// key and decrypts. A missing kid or unknown key is reported as
// jose.ErrSecurity like any other decryption failure.
func (d *KeySetDecrypter) DecryptWithAutoKeyID(content string) ([]byte, error) {
	if d.lookup == nil {
		return nil, errors.New("jwe: lookup function cannot be nil")
	}
	o := newOptions(d.opts...)

	kid, err := ExtractKeyID(content)
	if err == nil && kid == "" {
		err = fmt.Errorf("%w: %s", jose.ErrMissingHeader, jose.HeaderKeyID)
	}
	var key *jwk.JWK
	if err == nil {
		key, err = d.lookup(kid)
	}
	if err != nil {
		o.logger.Warn("JWE key lookup failed", logger.Error(err))
		return nil, jose.ErrSecurity
	}
	return Decrypt(key, []byte(content), d.opts...)
}
