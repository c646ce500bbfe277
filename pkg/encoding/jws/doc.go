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

// Package jws implements JSON Web Signature (RFC 7515) with the compact,
// general JSON and flattened JSON serializations, detached content and the
// unencoded payload option (RFC 7797).
//
// Signing and verification go through provider interfaces. A
// SignatureProvider creates a Signature for one header set; the caller
// streams the signing input into it and calls Sign. A SignatureVerifier
// works the same way for Verification. Providers are selected from a
// registry keyed by the JWK kind and algorithm:
//
//	HS256, HS384, HS512     symmetric keys of at least the hash size
//	RS256 .. RS512          RSA keys of at least 2048 bits
//	PS256 .. PS512          RSA keys, salt length equal to the hash size
//	ES256, ES384, ES512     P-256, P-384 and P-521 keys respectively
//	EdDSA                   Ed25519 keys
//
// Verifiers hold an allow-list. A header "alg" outside the list fails
// before any cryptographic work, and a missing "alg" falls back to the
// verifier's default algorithm, which is then checked like any other.
// "none" is never accepted.
//
// Example:
//
//	token, err := jws.Sign(key, payload)
//	if err != nil {
//	    return err
//	}
//	payload, err = jws.Verify(pub, []byte(token))
package jws
