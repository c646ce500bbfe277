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
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwe"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jws"
	"github.com/jeremyhahn/go-trustkit/pkg/metrics"
)

// Token is a verified JWT.
type Token struct {
	// Raw is the compact JWS, after decryption for nested tokens.
	Raw string

	// Headers is the JWS protected header.
	Headers *jose.Headers

	// Claims are the validated claims.
	Claims Claims

	// Encrypted is true when the token arrived wrapped in a JWE.
	Encrypted bool
}

// Consumer verifies compact JWTs and validates their claims.
type Consumer struct {
	verifier   jws.SignatureVerifier
	decryption *jwe.Decryption
	validator  *jwt.Validator
	opts       *options
}

// NewConsumer returns a consumer that verifies signatures with verifier.
// Claims are validated by golang-jwt: exp and nbf always, iat with
// WithIssuedAt, and iss, aud and sub when the matching option is set.
func NewConsumer(verifier jws.SignatureVerifier, opts ...Option) (*Consumer, error) {
	if verifier == nil {
		return nil, fmt.Errorf("%w: verifier cannot be nil", ErrInvalidKey)
	}
	o := newOptions(opts...)
	c := &Consumer{verifier: verifier, validator: o.validator(), opts: o}
	if o.decrypter != nil {
		d, err := jwe.NewDecryption(o.decrypter, jwe.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		c.decryption = d
	}
	return c, nil
}

// Consume verifies token and returns its claims. Errors wrap
// ErrInvalidToken and, for claim failures, the golang-jwt sentinel such as
// jwt.ErrTokenExpired.
func (c *Consumer) Consume(token string) (result *Token, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveOperation(metrics.OpVerify, string(c.verifier.Algorithm()), start, err)
		if err != nil {
			c.opts.logger.Warn("JWT rejected", logger.Error(err))
		}
	}()

	token = strings.TrimSpace(token)
	encrypted := strings.Count(token, ".") == 4
	switch {
	case encrypted && c.decryption == nil:
		return nil, fmt.Errorf("%w: encrypted token but no decryption key", ErrInvalidToken)
	case encrypted:
		out, err := c.decryption.DecryptCompact(token)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		if !strings.EqualFold(out.Headers.ContentType(), TypeJWT) {
			return nil, fmt.Errorf("%w: nested token must have cty JWT", ErrInvalidToken)
		}
		token = string(out.Content)
	case c.opts.requireJWE:
		return nil, ErrEncryptionRequired
	}

	signed, err := jws.ParseCompact(token, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if err := signed.Verify(c.verifier); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, err := ParseClaims(signed.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if err := c.validator.Validate(claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return &Token{Raw: token, Headers: signed.Headers, Claims: claims, Encrypted: encrypted}, nil
}
