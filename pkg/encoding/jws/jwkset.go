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
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
)

// ContentTypeJWKSet is the "cty" of a signed JWK Set.
const ContentTypeJWKSet = "jwk-set+json"

// SignJWKSet signs the serialized set with key. Private members are kept;
// call set.Public first to publish only public keys.
func SignJWKSet(set *jwk.Set, key *jwk.JWK, opts ...Option) (string, error) {
	if set == nil {
		return "", fmt.Errorf("%w: set cannot be nil", ErrInvalidKey)
	}
	data, err := set.Marshal()
	if err != nil {
		return "", err
	}
	opts = append(opts, WithContentType(ContentTypeJWKSet))
	return Sign(key, data, opts...)
}

// VerifyJWKSet verifies a signed JWK Set and parses it.
func VerifyJWKSet(content string, key *jwk.JWK, opts ...Option) (*jwk.Set, error) {
	data, err := Verify(key, []byte(content), opts...)
	if err != nil {
		return nil, err
	}
	return jwk.ParseSet(data)
}
