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
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jws"
)

// Sign signs claims with key. The algorithm is taken from WithAlgorithm,
// the JWK "alg" or the default for the key type, and the JWK "kid" is
// copied to the header unless WithKeyID overrides it.
//
// Example:
//
//	claims := jwt.NewClaims("https://sts.example.com", "alice", []string{"urn:service"}, time.Hour)
//	token, err := jwt.Sign(key, claims)
func Sign(key *jwk.JWK, claims Claims, opts ...Option) (string, error) {
	o := newOptions(opts...)
	provider, err := jws.NewSignatureProvider(key, o.algorithm)
	if err != nil {
		return "", err
	}
	if key.Kid != "" && o.keyID == "" {
		opts = append(opts, WithKeyID(key.Kid))
	}
	producer, err := NewProducer(provider, opts...)
	if err != nil {
		return "", err
	}
	return producer.Produce(claims)
}

// Verify verifies token with key and validates its claims.
//
// Example:
//
//	tok, err := jwt.Verify(pub, token, jwt.WithIssuer("https://sts.example.com"), jwt.WithAudience("urn:service"))
func Verify(key *jwk.JWK, token string, opts ...Option) (*Token, error) {
	o := newOptions(opts...)
	verifier, err := jws.NewSignatureVerifier(key, o.algorithm, o.allowed...)
	if err != nil {
		return nil, err
	}
	consumer, err := NewConsumer(verifier, opts...)
	if err != nil {
		return nil, err
	}
	return consumer.Consume(token)
}
