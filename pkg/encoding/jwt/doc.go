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

// Package jwt produces and consumes JSON Web Tokens (RFC 7519) on top of
// the jws and jwe packages.
//
// Claims are golang-jwt MapClaims, and claim validation (exp, nbf, iat,
// iss, aud, sub) is delegated to golang-jwt's Validator with a default
// leeway of 30 seconds. Signatures go through the jws providers: the
// SigningMethod type adapts them to golang-jwt so that
// jwt.NewWithClaims(...).SignedString works with any jws.SignatureProvider.
//
// # Producing tokens
//
//	provider, _ := jws.NewSignatureProvider(key, jwa.RS256)
//	producer, _ := jwt.NewProducer(provider, jwt.WithKeyID(key.Kid))
//	token, err := producer.Produce(jwt.NewClaims(iss, "alice", []string{aud}, time.Hour))
//
// Nested tokens are signed first and then encrypted with "cty":"JWT":
//
//	enc, _ := jwe.NewKeyEncryptionProvider(recipient, jwa.RSAOAEP256)
//	producer, _ := jwt.NewProducer(provider, jwt.WithEncryption(enc, jwa.A256GCM))
//
// # Consuming tokens
//
//	verifier, _ := jws.NewSignatureVerifier(pub, jwa.RS256)
//	consumer, _ := jwt.NewConsumer(verifier, jwt.WithIssuer(iss), jwt.WithAudience(aud))
//	tok, err := consumer.Consume(token)
//	if errors.Is(err, gojwt.ErrTokenExpired) {
//	    ...
//	}
//
// # Key sets
//
// KeySetSigner and KeySetVerifier look keys up by Key ID, so a verifier
// can select the key named by the token's "kid" header:
//
//	verifier := jwt.NewKeySetVerifier(jwe.SetLookup(set), jwt.WithIssuer(iss))
//	tok, err := verifier.VerifyWithAutoKeyID(token)
package jwt
