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
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
)

// Content types of password protected keys (RFC 7517 Section 7).
const (
	ContentTypeJWK    = "jwk+json"
	ContentTypeJWKSet = "jwk-set+json"
)

// EncryptJWK protects a private or symmetric JWK under password with
// PBES2-HS256+A128KW and A128GCM.
func EncryptJWK(key *jwk.JWK, password []byte, opts ...Option) (string, error) {
	if key == nil {
		return "", fmt.Errorf("%w: key cannot be nil", ErrInvalidKey)
	}
	data, err := key.Marshal()
	if err != nil {
		return "", err
	}
	opts = append(opts, WithContentType(ContentTypeJWK))
	return EncryptWithPassword(password, jwa.A128GCM, data, opts...)
}

// DecryptJWK reverses EncryptJWK.
func DecryptJWK(content string, password []byte, opts ...Option) (*jwk.JWK, error) {
	data, err := DecryptWithPassword(password, []byte(content), opts...)
	if err != nil {
		return nil, err
	}
	return jwk.Unmarshal(data)
}

// EncryptJWKSet protects a JWK Set under password with PBES2-HS256+A128KW
// and A128GCM.
func EncryptJWKSet(set *jwk.Set, password []byte, opts ...Option) (string, error) {
	if set == nil {
		return "", fmt.Errorf("%w: set cannot be nil", ErrInvalidKey)
	}
	data, err := set.Marshal()
	if err != nil {
		return "", err
	}
	opts = append(opts, WithContentType(ContentTypeJWKSet))
	return EncryptWithPassword(password, jwa.A128GCM, data, opts...)
}

// DecryptJWKSet reverses EncryptJWKSet.
func DecryptJWKSet(content string, password []byte, opts ...Option) (*jwk.Set, error) {
	data, err := DecryptWithPassword(password, []byte(content), opts...)
	if err != nil {
		return nil, err
	}
	return jwk.ParseSet(data)
}
