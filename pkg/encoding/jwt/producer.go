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
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwe"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jws"
)

// Producer signs claim sets into compact JWS tokens with "typ":"JWT" and,
// when configured with WithEncryption, wraps them in a compact JWE.
type Producer struct {
	provider   jws.SignatureProvider
	method     *SigningMethod
	encryption *jwe.Encryption
	opts       *options
}

// NewProducer returns a producer that signs with provider.
//
// Example:
//
//	provider, _ := jws.NewSignatureProvider(key, jwa.ES256)
//	producer, _ := jwt.NewProducer(provider, jwt.WithKeyID(key.Kid))
//	token, err := producer.Produce(jwt.NewClaims(issuer, "alice", nil, time.Hour))
func NewProducer(provider jws.SignatureProvider, opts ...Option) (*Producer, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: provider cannot be nil", ErrInvalidKey)
	}
	method, err := NewSigningMethod(provider.Algorithm())
	if err != nil {
		return nil, err
	}
	p := &Producer{provider: provider, method: method, opts: newOptions(opts...)}
	if p.opts.encrypter != nil {
		p.encryption, err = jwe.NewEncryption(p.opts.encrypter, p.opts.content,
			jwe.WithContentType(TypeJWT), jwe.WithLogger(p.opts.logger))
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Produce signs claims. The caller's map is not modified; a missing "jti"
// is filled in on the copy that is signed.
func (p *Producer) Produce(claims Claims) (string, error) {
	c := maps.Clone(claims)
	if c == nil {
		c = Claims{}
	}
	if _, ok := c[ClaimID]; !ok {
		c[ClaimID] = uuid.NewString()
	}

	token := jwt.NewWithClaims(p.method, c)
	for name, value := range p.opts.headers {
		token.Header[name] = value
	}
	token.Header[jose.HeaderType] = TypeJWT
	if p.opts.keyID != "" {
		token.Header[jose.HeaderKeyID] = p.opts.keyID
	}

	signed, err := token.SignedString(p.provider)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	if p.encryption == nil {
		return signed, nil
	}
	return p.encryption.Encrypt([]byte(signed))
}

// ProduceFor builds claims with NewClaims and signs them.
func (p *Producer) ProduceFor(issuer, subject string, audience []string, ttl time.Duration) (string, error) {
	return p.Produce(NewClaims(issuer, subject, audience, ttl))
}
