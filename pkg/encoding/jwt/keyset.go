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

package jwt

import (
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwe"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jws"
)

// KeySetSigner signs JWTs with keys looked up by Key ID, typically from a
// jwk.Set holding the STS signing keys.
type KeySetSigner struct {
	lookup jwe.KeyLookup
	opts   []Option
}

// NewKeySetSigner creates a signer backed by lookup.
//
// Example:
//
//	signer := jwt.NewKeySetSigner(jwe.SetLookup(set))
//	token, err := signer.SignWithKeyID("sts-signing-1", claims)
func NewKeySetSigner(lookup jwe.KeyLookup, opts ...Option) *KeySetSigner {
	return &KeySetSigner{lookup: lookup, opts: opts}
}

// SignWithKeyID signs claims with the key identified by keyID. The kid is
// added to the JWT header; the algorithm is the JWK "alg" or the default
// for the key type unless WithAlgorithm was given.
func (s *KeySetSigner) SignWithKeyID(keyID string, claims Claims) (string, error) {
	key, err := s.lookup(keyID)
	if err != nil {
		return "", fmt.Errorf("failed to get key %s: %w", keyID, err)
	}
	opts := append([]Option{WithKeyID(keyID)}, s.opts...)
	return Sign(key, claims, opts...)
}

// KeySetVerifier verifies JWTs with keys looked up by the header "kid".
type KeySetVerifier struct {
	lookup jwe.KeyLookup
	opts   []Option
}

// NewKeySetVerifier creates a verifier backed by lookup. opts configure
// the claim validation of every Consumer it builds.
func NewKeySetVerifier(lookup jwe.KeyLookup, opts ...Option) *KeySetVerifier {
	return &KeySetVerifier{lookup: lookup, opts: opts}
}

// VerifyWithKeyID verifies token with the key identified by keyID.
func (v *KeySetVerifier) VerifyWithKeyID(token, keyID string) (*Token, error) {
	key, err := v.lookup(keyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", keyID, err)
	}
	return Verify(key, token, v.opts...)
}

// VerifyWithAutoKeyID reads the "kid" from the token header and verifies
// with that key. The kid is unauthenticated until the signature checks.
func (v *KeySetVerifier) VerifyWithAutoKeyID(token string) (*Token, error) {
	kid, err := ExtractKeyID(token)
	if err != nil {
		return nil, fmt.Errorf("failed to extract kid: %w", err)
	}
	if kid == "" {
		return nil, fmt.Errorf("%w: token does not contain kid header", ErrInvalidToken)
	}
	return v.VerifyWithKeyID(token, kid)
}

// ExtractKeyID returns the "kid" of a compact JWT without verifying it.
// An empty string means the header has no kid.
func ExtractKeyID(token string) (string, error) {
	headers, err := jws.PeekHeaders(token)
	if err != nil {
		return "", err
	}
	return headers.KeyID(), nil
}
