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

package jwk

import (
	"bytes"
	"crypto"
	"encoding/json"
	"fmt"

	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
)

// ThumbprintSHA256 computes the SHA-256 JWK thumbprint of a public key as
// defined in RFC 7638.
func ThumbprintSHA256(key crypto.PublicKey) (string, error) {
	jwk, err := FromPublicKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to convert key to JWK: %w", err)
	}
	return jwk.Thumbprint(crypto.SHA256)
}

// Thumbprint computes the JWK thumbprint using the specified hash function.
// Only the required members are hashed, so public and private forms of the
// same key share a thumbprint.
//
// For RSA keys: {"e":"...","kty":"RSA","n":"..."}
// For EC keys: {"crv":"...","kty":"EC","x":"...","y":"..."}
// For OKP keys: {"crv":"...","kty":"OKP","x":"..."}
// For oct keys: {"k":"...","kty":"oct"}
func (jwk *JWK) Thumbprint(hashFunc crypto.Hash) (string, error) {
	switch hashFunc {
	case crypto.SHA1, crypto.SHA256, crypto.SHA384, crypto.SHA512:
	default:
		return "", fmt.Errorf("unsupported hash function: %v", hashFunc)
	}

	input, err := jwk.thumbprintInput()
	if err != nil {
		return "", err
	}

	h := hashFunc.New()
	h.Write(input)
	return b64(h.Sum(nil)), nil
}

// ThumbprintSHA256 is a convenience method that computes the SHA-256 thumbprint.
func (jwk *JWK) ThumbprintSHA256() (string, error) {
	return jwk.Thumbprint(crypto.SHA256)
}

// thumbprintInput serialises the required members in lexicographic order
// with no whitespace.
func (jwk *JWK) thumbprintInput() ([]byte, error) {
	if err := jwk.Validate(); err != nil {
		return nil, err
	}
	fields, err := RequiredFields(KeyType(jwk.Kty))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(name)
		v, err := json.Marshal(jwk.field(name))
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
