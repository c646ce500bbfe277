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
	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-trustkit/pkg/crypto/aead"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
)

// Option configures an Encryption or Decryption.
type Option func(*options)

type options struct {
	logger          logger.Logger
	compress        bool
	headers         []headerValue
	unprotected     []headerValue
	aad             []byte
	flatten         bool
	nonceTracker    *aead.NonceTracker
	keyID           string
	pbes2Iterations int
	maxIterations   int
	maxInflatedSize int64
	allowedContent  []jwa.ContentAlgorithm
}

type headerValue struct {
	name  string
	value interface{}
}

func newOptions(opts ...Option) *options {
	o := &options{
		logger:          logger.NoOp(),
		maxInflatedSize: DefaultMaxInflatedSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger used to report failures. Decryption failures
// are logged at warn level with the detailed cause.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = logger.OrNoOp(l) }
}

// WithCompression enables "zip":"DEF" on encryption.
func WithCompression() Option {
	return func(o *options) { o.compress = true }
}

// WithHeader adds a protected header member.
func WithHeader(name string, value interface{}) Option {
	return func(o *options) { o.headers = append(o.headers, headerValue{name, value}) }
}

// WithKeyID sets "kid" on encryption and restricts JSON recipients on
// decryption.
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

// WithUnprotectedHeader adds a shared unprotected header member. JSON
// serialization only.
func WithUnprotectedHeader(name string, value interface{}) Option {
	return func(o *options) { o.unprotected = append(o.unprotected, headerValue{name, value}) }
}

// WithAAD sets the JWE AAD. JSON serialization only.
func WithAAD(aad []byte) Option {
	return func(o *options) { o.aad = aad }
}

// WithFlattened selects flattened JSON serialization for one recipient.
func WithFlattened() Option {
	return func(o *options) { o.flatten = true }
}

// WithNonceTracker rejects IV reuse under the same key for "dir" encryption.
func WithNonceTracker(nt *aead.NonceTracker) Option {
	return func(o *options) { o.nonceTracker = nt }
}

// WithPBES2Iterations sets "p2c" for password based encryption.
func WithPBES2Iterations(n int) Option {
	return func(o *options) { o.pbes2Iterations = n }
}

// WithMaxPBES2Iterations bounds "p2c" on decryption.
func WithMaxPBES2Iterations(n int) Option {
	return func(o *options) { o.maxIterations = n }
}

// WithMaxInflatedSize bounds the size of decompressed content.
func WithMaxInflatedSize(n int64) Option {
	return func(o *options) { o.maxInflatedSize = n }
}

// WithAllowedContentAlgorithms restricts the accepted "enc" values on
// decryption.
func WithAllowedContentAlgorithms(encs ...jwa.ContentAlgorithm) Option {
	return func(o *options) { o.allowedContent = encs }
}
