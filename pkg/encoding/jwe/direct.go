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

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
)

// DirectEncryption uses a shared symmetric key as the CEK ("dir"). It
// implements both DirectKeyProvider and KeyDecryptionProvider.
type DirectEncryption struct {
	key []byte
}

// NewDirectEncryption returns a "dir" provider for key.
func NewDirectEncryption(key []byte) (*DirectEncryption, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	return &DirectEncryption{key: bytes.Clone(key)}, nil
}

// Algorithm returns "dir".
func (p *DirectEncryption) Algorithm() jwa.KeyAlgorithm { return jwa.Direct }

// EncryptKey returns an empty encrypted key.
func (p *DirectEncryption) EncryptKey(*jose.Headers, []byte) ([]byte, error) {
	return nil, nil
}

// ContentKey returns a copy of the shared key after checking its length
// against enc.
func (p *DirectEncryption) ContentKey(_ *jose.Headers, enc jwa.ContentAlgorithm) (*jose.Secret, error) {
	if len(p.key) != enc.KeySize() {
		return nil, fmt.Errorf("%w: %s requires a %d byte key, got %d", ErrInvalidKey, enc, enc.KeySize(), len(p.key))
	}
	return jose.NewSecret(bytes.Clone(p.key)), nil
}

// DecryptKey requires an empty encrypted key and returns a copy of the
// shared key.
func (p *DirectEncryption) DecryptKey(headers *jose.Headers, encryptedKey []byte) (*jose.Secret, error) {
	if len(encryptedKey) != 0 {
		return nil, fmt.Errorf("%w: dir requires an empty encrypted key", ErrInvalidFormat)
	}
	enc, err := jwa.ParseContentAlgorithm(headers.Encryption())
	if err != nil {
		return nil, err
	}
	return p.ContentKey(headers, enc)
}

func directEncryptionFactory(m jwk.Material, _ jwa.KeyAlgorithm) (KeyEncryptionProvider, error) {
	key, err := octetKey(m)
	if err != nil {
		return nil, err
	}
	return NewDirectEncryption(key)
}

func directDecryptionFactory(m jwk.Material, _ jwa.KeyAlgorithm) (KeyDecryptionProvider, error) {
	key, err := octetKey(m)
	if err != nil {
		return nil, err
	}
	return NewDirectEncryption(key)
}
