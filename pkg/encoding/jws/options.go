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
	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
)

// Option configures signing or verification.
type Option func(*options)

type options struct {
	logger    logger.Logger
	algorithm jwa.SignatureAlgorithm
	allowed   []jwa.SignatureAlgorithm
	headers   []headerValue
	keyID     string
	detached  bool
	unencoded bool
	flatten   bool
	payload   []byte
}

type headerValue struct {
	name  string
	value interface{}
}

func newOptions(opts ...Option) *options {
	o := &options{logger: logger.NoOp()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger used to report verification failures.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = logger.OrNoOp(l) }
}

// WithAlgorithm selects the signature algorithm instead of the JWK "alg" or
// the key's default.
func WithAlgorithm(alg jwa.SignatureAlgorithm) Option {
	return func(o *options) { o.algorithm = alg }
}

// WithAllowedAlgorithms lists additional algorithms a verifier accepts from
// the header. They must belong to the key's family.
func WithAllowedAlgorithms(algs ...jwa.SignatureAlgorithm) Option {
	return func(o *options) { o.allowed = algs }
}

// WithHeader adds a protected header member.
func WithHeader(name string, value interface{}) Option {
	return func(o *options) { o.headers = append(o.headers, headerValue{name, value}) }
}

// WithKeyID sets the "kid" header.
func WithKeyID(kid string) Option {
	return func(o *options) { o.keyID = kid }
}

// WithType sets the "typ" header.
func WithType(typ string) Option {
	return WithHeader(jose.HeaderType, typ)
}

// WithContentType sets the "cty" header.
func WithContentType(cty string) Option {
	return WithHeader(jose.HeaderContentType, cty)
}

// WithDetached omits the payload from the serialization (RFC 7515
// Appendix F).
func WithDetached() Option {
	return func(o *options) { o.detached = true }
}

// WithUnencodedPayload signs the payload without base64url encoding it
// and marks the header with "b64":false and "crit":["b64"] (RFC 7797).
func WithUnencodedPayload() Option {
	return func(o *options) { o.unencoded = true }
}

// WithFlattened selects flattened JSON serialization.
func WithFlattened() Option {
	return func(o *options) { o.flatten = true }
}

// WithDetachedPayload supplies the payload of a detached JWS on
// verification.
func WithDetachedPayload(payload []byte) Option {
	return func(o *options) { o.payload = payload }
}

// protectedHeaders builds the protected header common to every signature.
func (o *options) protectedHeaders() (*jose.Headers, error) {
	h := jose.NewHeaders()
	for _, hv := range o.headers {
		if err := h.Set(hv.name, hv.value); err != nil {
			return nil, err
		}
	}
	if o.keyID != "" {
		if err := h.Set(jose.HeaderKeyID, o.keyID); err != nil {
			return nil, err
		}
	}
	if o.unencoded {
		if err := h.Set(jose.HeaderBase64Payload, false); err != nil {
			return nil, err
		}
		crit := append(h.Critical(), jose.HeaderBase64Payload)
		if err := h.Set(jose.HeaderCritical, crit); err != nil {
			return nil, err
		}
	}
	return h, nil
}
