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
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwe"
)

// DefaultLeeway is the clock skew tolerated on exp, nbf and iat.
const DefaultLeeway = 30 * time.Second

// TypeJWT is the "typ" and, for nested tokens, the "cty" header value.
const TypeJWT = "JWT"

// Option configures a Producer or Consumer.
type Option func(*options)

type options struct {
	logger     logger.Logger
	keyID      string
	headers    map[string]interface{}
	encrypter  jwe.KeyEncryptionProvider
	content    jwa.ContentAlgorithm
	decrypter  jwe.KeyDecryptionProvider
	requireJWE bool

	issuer            string
	audience          string
	subject           string
	leeway            time.Duration
	requireExpiration bool
	validateIssuedAt  bool
	now               func() time.Time
	algorithm         jwa.SignatureAlgorithm
	allowed           []jwa.SignatureAlgorithm
}

func newOptions(opts ...Option) *options {
	o := &options{
		logger: logger.NoOp(),
		leeway: DefaultLeeway,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger used to report rejected tokens.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = logger.OrNoOp(l) }
}

// WithKeyID sets the "kid" header of produced tokens.
func WithKeyID(kid string) Option {
	return func(o *options) { o.keyID = kid }
}

// WithHeader adds a header member to produced tokens.
func WithHeader(name string, value interface{}) Option {
	return func(o *options) {
		if o.headers == nil {
			o.headers = make(map[string]interface{})
		}
		o.headers[name] = value
	}
}

// WithEncryption wraps produced tokens in a compact JWE with "cty":"JWT".
// An empty enc selects the platform default.
func WithEncryption(provider jwe.KeyEncryptionProvider, enc jwa.ContentAlgorithm) Option {
	return func(o *options) {
		o.encrypter = provider
		o.content = enc
	}
}

// WithDecryption lets a consumer accept JWE wrapped tokens.
func WithDecryption(provider jwe.KeyDecryptionProvider) Option {
	return func(o *options) { o.decrypter = provider }
}

// WithRequiredEncryption rejects tokens that are not JWE wrapped.
func WithRequiredEncryption() Option {
	return func(o *options) { o.requireJWE = true }
}

// WithIssuer requires the "iss" claim to equal iss.
func WithIssuer(iss string) Option {
	return func(o *options) { o.issuer = iss }
}

// WithAudience requires the "aud" claim to contain aud.
func WithAudience(aud string) Option {
	return func(o *options) { o.audience = aud }
}

// WithSubject requires the "sub" claim to equal sub.
func WithSubject(sub string) Option {
	return func(o *options) { o.subject = sub }
}

// WithLeeway overrides DefaultLeeway.
func WithLeeway(d time.Duration) Option {
	return func(o *options) { o.leeway = d }
}

// WithExpirationRequired rejects tokens without "exp".
func WithExpirationRequired() Option {
	return func(o *options) { o.requireExpiration = true }
}

// WithIssuedAt rejects tokens whose "iat" lies in the future.
func WithIssuedAt() Option {
	return func(o *options) { o.validateIssuedAt = true }
}

// WithTimeFunc replaces time.Now for claim validation.
func WithTimeFunc(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithAlgorithm selects the signature algorithm used with a JWK instead of
// its "alg" or the default for its type.
func WithAlgorithm(alg jwa.SignatureAlgorithm) Option {
	return func(o *options) { o.algorithm = alg }
}

// WithAllowedAlgorithms lists additional algorithms accepted when
// verifying with a JWK.
func WithAllowedAlgorithms(algs ...jwa.SignatureAlgorithm) Option {
	return func(o *options) { o.allowed = algs }
}

// validator builds the golang-jwt claim validator for the options.
func (o *options) validator() *jwt.Validator {
	parserOpts := []jwt.ParserOption{jwt.WithLeeway(o.leeway)}
	if o.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(o.issuer))
	}
	if o.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(o.audience))
	}
	if o.subject != "" {
		parserOpts = append(parserOpts, jwt.WithSubject(o.subject))
	}
	if o.requireExpiration {
		parserOpts = append(parserOpts, jwt.WithExpirationRequired())
	}
	if o.validateIssuedAt {
		parserOpts = append(parserOpts, jwt.WithIssuedAt())
	}
	if o.now != nil {
		parserOpts = append(parserOpts, jwt.WithTimeFunc(o.now))
	}
	return jwt.NewValidator(parserOpts...)
}
