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
	"bytes"
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-trustkit/pkg/metrics"
)

// Sign signs payload with key and returns the compact serialization. The
// algorithm is taken from WithAlgorithm, the JWK "alg" or the default for
// the key type, in that order. The JWK "kid" is copied to the header.
//
// Example:
//
//	token, err := jws.Sign(key, []byte(`{"sub":"alice"}`), jws.WithType("JWT"))
func Sign(key *jwk.JWK, payload []byte, opts ...Option) (string, error) {
	o := newOptions(opts...)
	provider, err := NewSignatureProvider(key, o.algorithm)
	if err != nil {
		return "", err
	}
	if key.Kid != "" && o.keyID == "" {
		opts = append(opts, WithKeyID(key.Kid))
	}
	return NewCompactProducer(payload, opts...).SignWith(provider)
}

// SignJSON signs payload once per key and returns the general JSON
// serialization, or the flattened form for one key with WithFlattened.
// Each signature carries the "kid" of its key in the protected header.
func SignJSON(keys []*jwk.JWK, payload []byte, opts ...Option) (string, error) {
	o := newOptions(opts...)
	producer := NewJSONProducer(payload, opts...)
	for _, key := range keys {
		provider, err := NewSignatureProvider(key, o.algorithm)
		if err != nil {
			return "", err
		}
		var protected map[string]interface{}
		if key.Kid != "" && o.keyID == "" {
			protected = map[string]interface{}{jose.HeaderKeyID: key.Kid}
		}
		if err := producer.AddSignature(provider, protected, nil); err != nil {
			return "", err
		}
	}
	return producer.Serialize()
}

// Verify verifies a compact or JSON serialized JWS with key and returns the
// payload. For JSON input one verifying signature suffices.
//
// The verifier accepts the key's algorithm plus those named with
// WithAllowedAlgorithms; a header "alg" outside that set fails even when
// the key could compute it. Every failure is reported as jose.ErrSecurity
// and the cause is logged at warn level.
func Verify(key *jwk.JWK, content []byte, opts ...Option) ([]byte, error) {
	o := newOptions(opts...)
	payload, err := verify(key, content, o)
	if err != nil {
		o.logger.Warn("JWS verification failed", logger.Error(err))
		metrics.RecordError(metrics.OpVerify, "security")
		return nil, jose.ErrSecurity
	}
	return payload, nil
}

func verify(key *jwk.JWK, content []byte, o *options) ([]byte, error) {
	verifier, err := NewSignatureVerifier(key, o.algorithm, o.allowed...)
	if err != nil {
		return nil, err
	}
	content = bytes.TrimSpace(content)
	if len(content) > 0 && content[0] == '{' {
		c, err := ParseJSON(content, o.payload)
		if err != nil {
			return nil, err
		}
		if _, err := c.VerifyAny(verifier); err != nil {
			return nil, err
		}
		return c.Payload, nil
	}
	c, err := ParseCompact(string(content), o.payload)
	if err != nil {
		return nil, err
	}
	if err := c.Verify(verifier); err != nil {
		return nil, err
	}
	return c.Payload, nil
}

// PeekHeaders returns the protected header of a compact JWS without
// verifying it. The result is unauthenticated.
func PeekHeaders(content string) (*jose.Headers, error) {
	header, _, ok := strings.Cut(strings.TrimSpace(content), ".")
	if !ok {
		return nil, fmt.Errorf("%w: not a compact JWS", ErrInvalidFormat)
	}
	return jose.ParseEncodedHeaders(header)
}
