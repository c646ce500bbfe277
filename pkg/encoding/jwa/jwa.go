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

// Package jwa defines the JSON Web Algorithms (RFC 7518) identifiers used by
// the JWE and JWS packages together with the family predicates and key-size
// metadata that drive provider selection.
package jwa

import (
	"crypto"
	"errors"
	"fmt"

	// Register hash implementations used by crypto.Hash.New.
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
)

var (
	// ErrUnsupportedAlgorithm is returned when an algorithm name is unknown
	// or not implemented.
	ErrUnsupportedAlgorithm = errors.New("jwa: unsupported algorithm")
)

// KeyAlgorithm identifies a JWE key management algorithm ("alg").
type KeyAlgorithm string

const (
	RSAOAEP          KeyAlgorithm = "RSA-OAEP"
	RSAOAEP256       KeyAlgorithm = "RSA-OAEP-256"
	A128KW           KeyAlgorithm = "A128KW"
	A192KW           KeyAlgorithm = "A192KW"
	A256KW           KeyAlgorithm = "A256KW"
	A128GCMKW        KeyAlgorithm = "A128GCMKW"
	A192GCMKW        KeyAlgorithm = "A192GCMKW"
	A256GCMKW        KeyAlgorithm = "A256GCMKW"
	PBES2HS256A128KW KeyAlgorithm = "PBES2-HS256+A128KW"
	PBES2HS384A192KW KeyAlgorithm = "PBES2-HS384+A192KW"
	PBES2HS512A256KW KeyAlgorithm = "PBES2-HS512+A256KW"
	ECDHES           KeyAlgorithm = "ECDH-ES"
	ECDHESA128KW     KeyAlgorithm = "ECDH-ES+A128KW"
	ECDHESA192KW     KeyAlgorithm = "ECDH-ES+A192KW"
	ECDHESA256KW     KeyAlgorithm = "ECDH-ES+A256KW"
	Direct           KeyAlgorithm = "dir"
)

// ContentAlgorithm identifies a JWE content encryption algorithm ("enc").
type ContentAlgorithm string

const (
	A128GCM      ContentAlgorithm = "A128GCM"
	A192GCM      ContentAlgorithm = "A192GCM"
	A256GCM      ContentAlgorithm = "A256GCM"
	A128CBCHS256 ContentAlgorithm = "A128CBC-HS256"
	A192CBCHS384 ContentAlgorithm = "A192CBC-HS384"
	A256CBCHS512 ContentAlgorithm = "A256CBC-HS512"
)

// SignatureAlgorithm identifies a JWS algorithm ("alg").
type SignatureAlgorithm string

const (
	HS256 SignatureAlgorithm = "HS256"
	HS384 SignatureAlgorithm = "HS384"
	HS512 SignatureAlgorithm = "HS512"
	RS256 SignatureAlgorithm = "RS256"
	RS384 SignatureAlgorithm = "RS384"
	RS512 SignatureAlgorithm = "RS512"
	PS256 SignatureAlgorithm = "PS256"
	PS384 SignatureAlgorithm = "PS384"
	PS512 SignatureAlgorithm = "PS512"
	ES256 SignatureAlgorithm = "ES256"
	ES384 SignatureAlgorithm = "ES384"
	ES512 SignatureAlgorithm = "ES512"
	EdDSA SignatureAlgorithm = "EdDSA"
	None  SignatureAlgorithm = "none"
)

// Deflate is the only registered "zip" value.
const Deflate = "DEF"

// MinRSAKeyBits is the smallest RSA modulus accepted for signing or key
// encryption (RFC 7518 Sections 3.3 and 4.2).
const MinRSAKeyBits = 2048

var keyAlgorithms = map[KeyAlgorithm]struct{}{
	RSAOAEP: {}, RSAOAEP256: {},
	A128KW: {}, A192KW: {}, A256KW: {},
	A128GCMKW: {}, A192GCMKW: {}, A256GCMKW: {},
	PBES2HS256A128KW: {}, PBES2HS384A192KW: {}, PBES2HS512A256KW: {},
	ECDHES: {}, ECDHESA128KW: {}, ECDHESA192KW: {}, ECDHESA256KW: {},
	Direct: {},
}

var contentAlgorithms = map[ContentAlgorithm]struct{}{
	A128GCM: {}, A192GCM: {}, A256GCM: {},
	A128CBCHS256: {}, A192CBCHS384: {}, A256CBCHS512: {},
}

var signatureAlgorithms = map[SignatureAlgorithm]struct{}{
	HS256: {}, HS384: {}, HS512: {},
	RS256: {}, RS384: {}, RS512: {},
	PS256: {}, PS384: {}, PS512: {},
	ES256: {}, ES384: {}, ES512: {},
	EdDSA: {},
}

// ParseKeyAlgorithm validates a key management algorithm name.
func ParseKeyAlgorithm(name string) (KeyAlgorithm, error) {
	alg := KeyAlgorithm(name)
	if _, ok := keyAlgorithms[alg]; !ok {
		return "", fmt.Errorf("%w: key algorithm %q", ErrUnsupportedAlgorithm, name)
	}
	return alg, nil
}

// ParseContentAlgorithm validates a content encryption algorithm name.
func ParseContentAlgorithm(name string) (ContentAlgorithm, error) {
	enc := ContentAlgorithm(name)
	if _, ok := contentAlgorithms[enc]; !ok {
		return "", fmt.Errorf("%w: content algorithm %q", ErrUnsupportedAlgorithm, name)
	}
	return enc, nil
}

// ParseSignatureAlgorithm validates a signature algorithm name. "none" is
// never accepted.
func ParseSignatureAlgorithm(name string) (SignatureAlgorithm, error) {
	alg := SignatureAlgorithm(name)
	if _, ok := signatureAlgorithms[alg]; !ok {
		return "", fmt.Errorf("%w: signature algorithm %q", ErrUnsupportedAlgorithm, name)
	}
	return alg, nil
}

func (a KeyAlgorithm) String() string       { return string(a) }
func (c ContentAlgorithm) String() string   { return string(c) }
func (s SignatureAlgorithm) String() string { return string(s) }

// IsRsaOaep reports whether a is an RSA-OAEP variant.
func (a KeyAlgorithm) IsRsaOaep() bool {
	return a == RSAOAEP || a == RSAOAEP256
}

// IsAesKeyWrap reports whether a is an RFC 3394 AES key wrap.
func (a KeyAlgorithm) IsAesKeyWrap() bool {
	return a == A128KW || a == A192KW || a == A256KW
}

// IsAesGcmKeyWrap reports whether a is an AES-GCM key wrap.
func (a KeyAlgorithm) IsAesGcmKeyWrap() bool {
	return a == A128GCMKW || a == A192GCMKW || a == A256GCMKW
}

// IsPbes2 reports whether a is a password-based key wrap.
func (a KeyAlgorithm) IsPbes2() bool {
	return a == PBES2HS256A128KW || a == PBES2HS384A192KW || a == PBES2HS512A256KW
}

// IsEcdhEs reports whether a uses ECDH-ES key agreement, direct or wrapped.
func (a KeyAlgorithm) IsEcdhEs() bool {
	return a == ECDHES || a == ECDHESA128KW || a == ECDHESA192KW || a == ECDHESA256KW
}

// IsDirect reports whether the CEK is not carried in the encrypted key
// segment (dir and ECDH-ES).
func (a KeyAlgorithm) IsDirect() bool {
	return a == Direct || a == ECDHES
}

// WrapKeySize returns the key-wrapping key size in bytes for the AES-KW,
// AES-GCM-KW, PBES2 and ECDH-ES+KW families, and 0 otherwise.
func (a KeyAlgorithm) WrapKeySize() int {
	switch a {
	case A128KW, A128GCMKW, PBES2HS256A128KW, ECDHESA128KW:
		return 16
	case A192KW, A192GCMKW, PBES2HS384A192KW, ECDHESA192KW:
		return 24
	case A256KW, A256GCMKW, PBES2HS512A256KW, ECDHESA256KW:
		return 32
	default:
		return 0
	}
}

// Pbes2Hash returns the PRF hash of a PBES2 algorithm.
func (a KeyAlgorithm) Pbes2Hash() crypto.Hash {
	switch a {
	case PBES2HS256A128KW:
		return crypto.SHA256
	case PBES2HS384A192KW:
		return crypto.SHA384
	case PBES2HS512A256KW:
		return crypto.SHA512
	default:
		return 0
	}
}

// OaepHash returns the OAEP hash of an RSA-OAEP algorithm.
func (a KeyAlgorithm) OaepHash() crypto.Hash {
	switch a {
	case RSAOAEP:
		return crypto.SHA1
	case RSAOAEP256:
		return crypto.SHA256
	default:
		return 0
	}
}

// WrapAlgorithm returns the AES-KW algorithm used after key derivation by a
// PBES2 or ECDH-ES+KW algorithm.
func (a KeyAlgorithm) WrapAlgorithm() KeyAlgorithm {
	switch a.WrapKeySize() {
	case 16:
		return A128KW
	case 24:
		return A192KW
	case 32:
		return A256KW
	default:
		return ""
	}
}

// IsAesGcm reports whether c is an AES-GCM content algorithm.
func (c ContentAlgorithm) IsAesGcm() bool {
	return c == A128GCM || c == A192GCM || c == A256GCM
}

// IsAesCbcHmac reports whether c is an AES-CBC-HMAC-SHA2 content algorithm.
func (c ContentAlgorithm) IsAesCbcHmac() bool {
	return c == A128CBCHS256 || c == A192CBCHS384 || c == A256CBCHS512
}

// KeySize returns the CEK size in bytes.
func (c ContentAlgorithm) KeySize() int {
	switch c {
	case A128GCM:
		return 16
	case A192GCM:
		return 24
	case A256GCM, A128CBCHS256:
		return 32
	case A192CBCHS384:
		return 48
	case A256CBCHS512:
		return 64
	default:
		return 0
	}
}

// IVSize returns the initialization vector size in bytes.
func (c ContentAlgorithm) IVSize() int {
	switch {
	case c.IsAesGcm():
		return 12
	case c.IsAesCbcHmac():
		return 16
	default:
		return 0
	}
}

// MacHash returns the HMAC hash of an AES-CBC-HMAC algorithm.
func (c ContentAlgorithm) MacHash() crypto.Hash {
	switch c {
	case A128CBCHS256:
		return crypto.SHA256
	case A192CBCHS384:
		return crypto.SHA384
	case A256CBCHS512:
		return crypto.SHA512
	default:
		return 0
	}
}

// IsHmac reports whether s is an HMAC algorithm.
func (s SignatureAlgorithm) IsHmac() bool {
	return s == HS256 || s == HS384 || s == HS512
}

// IsRsaPkcs1 reports whether s is an RSASSA-PKCS1-v1_5 algorithm.
func (s SignatureAlgorithm) IsRsaPkcs1() bool {
	return s == RS256 || s == RS384 || s == RS512
}

// IsRsaPss reports whether s is an RSASSA-PSS algorithm.
func (s SignatureAlgorithm) IsRsaPss() bool {
	return s == PS256 || s == PS384 || s == PS512
}

// IsRsa reports whether s uses an RSA key.
func (s SignatureAlgorithm) IsRsa() bool {
	return s.IsRsaPkcs1() || s.IsRsaPss()
}

// IsEcdsa reports whether s is an ECDSA algorithm.
func (s SignatureAlgorithm) IsEcdsa() bool {
	return s == ES256 || s == ES384 || s == ES512
}

// Hash returns the digest used by s. EdDSA returns 0 as it hashes internally.
func (s SignatureAlgorithm) Hash() crypto.Hash {
	switch s {
	case HS256, RS256, PS256, ES256:
		return crypto.SHA256
	case HS384, RS384, PS384, ES384:
		return crypto.SHA384
	case HS512, RS512, PS512, ES512:
		return crypto.SHA512
	default:
		return 0
	}
}

// Curve returns the JWK curve name an ECDSA algorithm is bound to.
func (s SignatureAlgorithm) Curve() string {
	switch s {
	case ES256:
		return "P-256"
	case ES384:
		return "P-384"
	case ES512:
		return "P-521"
	default:
		return ""
	}
}
