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

// Package jwk implements JSON Web Keys (RFC 7517), JWK Sets and JWK
// thumbprints (RFC 7638).
//
// A JWK is treated as immutable once constructed. Helpers that derive a new
// key (Public, WithKeyID, WithAlgorithm) return copies. The decoded key
// material is exposed through Material, a closed set of types selected by
// the key's KeyKind, which the JWE and JWS registries switch on.
package jwk

import (
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"slices"
)

var (
	ErrUnsupportedKeyType = errors.New("jwk: unsupported key type")
	ErrMissingField       = errors.New("jwk: missing required field")
	ErrInvalidKey         = errors.New("jwk: invalid key")
	ErrNotPrivate         = errors.New("jwk: key has no private material")
	ErrKeyNotFound        = errors.New("jwk: key not found")
)

// JWK represents a JSON Web Key as defined in RFC 7517.
// It supports RSA, EC, OKP (Ed25519, X25519) and symmetric (oct) key types.
type JWK struct {
	// Common fields (all key types)
	Kty    string   `json:"kty"`               // Key Type (required)
	Use    string   `json:"use,omitempty"`     // Public Key Use (sig, enc)
	KeyOps []string `json:"key_ops,omitempty"` // Key Operations
	Alg    string   `json:"alg,omitempty"`     // Algorithm
	Kid    string   `json:"kid,omitempty"`     // Key ID

	// X.509 members (RFC 7517 Section 4.6-4.9)
	X5c     []string `json:"x5c,omitempty"`
	X5t     string   `json:"x5t,omitempty"`
	X5tS256 string   `json:"x5t#S256,omitempty"`

	// RSA public key fields (RFC 7518 Section 6.3.1)
	N string `json:"n,omitempty"` // Modulus (base64url)
	E string `json:"e,omitempty"` // Exponent (base64url)

	// RSA private key fields (RFC 7518 Section 6.3.2)
	D  string `json:"d,omitempty"`  // Private Exponent, or EC/OKP private key
	P  string `json:"p,omitempty"`  // First Prime Factor
	Q  string `json:"q,omitempty"`  // Second Prime Factor
	DP string `json:"dp,omitempty"` // First Factor CRT Exponent
	DQ string `json:"dq,omitempty"` // Second Factor CRT Exponent
	QI string `json:"qi,omitempty"` // First CRT Coefficient

	// EC and OKP fields (RFC 7518 Section 6.2.1, RFC 8037)
	Crv string `json:"crv,omitempty"` // Curve (P-256, P-384, P-521, Ed25519, X25519)
	X   string `json:"x,omitempty"`   // X Coordinate or OKP public key
	Y   string `json:"y,omitempty"`   // Y Coordinate

	// Symmetric key field (RFC 7518 Section 6.4)
	K string `json:"k,omitempty"` // Key Value (base64url)
}

// KeyType represents the key type (kty) parameter values
type KeyType string

const (
	KeyTypeRSA KeyType = "RSA"
	KeyTypeEC  KeyType = "EC"
	KeyTypeOKP KeyType = "OKP" // Octet Key Pair (Ed25519, X25519)
	KeyTypeOct KeyType = "oct" // Symmetric key
)

// Public key use values (RFC 7517 Section 4.2).
const (
	UseSignature  = "sig"
	UseEncryption = "enc"
)

// Key operation values (RFC 7517 Section 4.3).
const (
	OpSign       = "sign"
	OpVerify     = "verify"
	OpEncrypt    = "encrypt"
	OpDecrypt    = "decrypt"
	OpWrapKey    = "wrapKey"
	OpUnwrapKey  = "unwrapKey"
	OpDeriveKey  = "deriveKey"
	OpDeriveBits = "deriveBits"
)

// Curve represents EC and OKP curve names
type Curve string

const (
	CurveP256    Curve = "P-256"
	CurveP384    Curve = "P-384"
	CurveP521    Curve = "P-521"
	CurveEd25519 Curve = "Ed25519"
	CurveX25519  Curve = "X25519"
)

// FromPublicKey creates a JWK from a crypto.PublicKey.
// Supports RSA, ECDSA, Ed25519, and X25519 public keys.
func FromPublicKey(pub crypto.PublicKey) (*JWK, error) {
	switch key := pub.(type) {
	case *rsa.PublicKey:
		return fromRSAPublicKey(key), nil
	case *ecdsa.PublicKey:
		return fromECDSAPublicKey(key)
	case ed25519.PublicKey:
		return &JWK{Kty: string(KeyTypeOKP), Crv: string(CurveEd25519), X: b64(key)}, nil
	case *ecdh.PublicKey:
		if key.Curve() == ecdh.X25519() {
			return &JWK{Kty: string(KeyTypeOKP), Crv: string(CurveX25519), X: b64(key.Bytes())}, nil
		}
		return nil, fmt.Errorf("%w: ECDH curve %v", ErrUnsupportedKeyType, key.Curve())
	default:
		return nil, fmt.Errorf("%w: public key %T", ErrUnsupportedKeyType, pub)
	}
}

// FromPrivateKey creates a JWK from a crypto.PrivateKey.
// The resulting JWK includes private key parameters.
func FromPrivateKey(priv crypto.PrivateKey) (*JWK, error) {
	switch key := priv.(type) {
	case *rsa.PrivateKey:
		return fromRSAPrivateKey(key), nil
	case *ecdsa.PrivateKey:
		jwk, err := fromECDSAPublicKey(&key.PublicKey)
		if err != nil {
			return nil, err
		}
		jwk.D = b64(key.D.FillBytes(make([]byte, coordinateSize(key.Curve))))
		return jwk, nil
	case ed25519.PrivateKey:
		pub := key.Public().(ed25519.PublicKey)
		return &JWK{Kty: string(KeyTypeOKP), Crv: string(CurveEd25519), X: b64(pub), D: b64(key.Seed())}, nil
	case *ecdh.PrivateKey:
		if key.Curve() != ecdh.X25519() {
			return nil, fmt.Errorf("%w: ECDH curve %v", ErrUnsupportedKeyType, key.Curve())
		}
		return &JWK{
			Kty: string(KeyTypeOKP),
			Crv: string(CurveX25519),
			X:   b64(key.PublicKey().Bytes()),
			D:   b64(key.Bytes()),
		}, nil
	default:
		return nil, fmt.Errorf("%w: private key %T", ErrUnsupportedKeyType, priv)
	}
}

// FromSymmetricKey creates a JWK from symmetric key bytes.
func FromSymmetricKey(key []byte, alg string) (*JWK, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: symmetric key cannot be empty", ErrInvalidKey)
	}
	return &JWK{
		Kty: string(KeyTypeOct),
		K:   b64(key),
		Alg: alg,
	}, nil
}

// Unmarshal parses and validates a JSON-encoded JWK.
func Unmarshal(data []byte) (*JWK, error) {
	var jwk JWK
	if err := json.Unmarshal(data, &jwk); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JWK: %w", err)
	}
	if err := jwk.Validate(); err != nil {
		return nil, err
	}
	return &jwk, nil
}

// Marshal returns the JSON encoding of the JWK.
func (jwk *JWK) Marshal() ([]byte, error) {
	return json.Marshal(jwk)
}

// MarshalIndent returns the indented JSON encoding of the JWK.
func (jwk *JWK) MarshalIndent(prefix, indent string) ([]byte, error) {
	return json.MarshalIndent(jwk, prefix, indent)
}

// Clone returns a deep copy.
func (jwk *JWK) Clone() *JWK {
	c := *jwk
	c.KeyOps = slices.Clone(jwk.KeyOps)
	c.X5c = slices.Clone(jwk.X5c)
	return &c
}

// WithKeyID returns a copy with the given kid.
func (jwk *JWK) WithKeyID(kid string) *JWK {
	c := jwk.Clone()
	c.Kid = kid
	return c
}

// WithAlgorithm returns a copy with the given alg.
func (jwk *JWK) WithAlgorithm(alg string) *JWK {
	c := jwk.Clone()
	c.Alg = alg
	return c
}

// WithUse returns a copy with the given use.
func (jwk *JWK) WithUse(use string) *JWK {
	c := jwk.Clone()
	c.Use = use
	return c
}

// Public returns a copy with all private members removed. Symmetric keys
// have no public form and return ErrInvalidKey.
func (jwk *JWK) Public() (*JWK, error) {
	if jwk.IsSymmetric() {
		return nil, fmt.Errorf("%w: symmetric key has no public form", ErrInvalidKey)
	}
	c := jwk.Clone()
	c.D, c.P, c.Q, c.DP, c.DQ, c.QI = "", "", "", "", "", ""
	return c, nil
}

// IsPrivate returns true if the JWK contains private or secret key parameters.
func (jwk *JWK) IsPrivate() bool {
	return jwk.D != "" || jwk.K != ""
}

// IsPublic returns true if the JWK represents a public key.
func (jwk *JWK) IsPublic() bool {
	return !jwk.IsPrivate() && (jwk.N != "" || jwk.X != "" || jwk.Crv != "")
}

// IsSymmetric returns true if the JWK represents a symmetric key.
func (jwk *JWK) IsSymmetric() bool {
	return jwk.Kty == string(KeyTypeOct)
}

// Permits reports whether the key may be used for op. A key with neither
// "use" nor "key_ops" permits every operation.
func (jwk *JWK) Permits(op string) bool {
	if len(jwk.KeyOps) > 0 {
		return slices.Contains(jwk.KeyOps, op)
	}
	switch jwk.Use {
	case "":
		return true
	case UseSignature:
		return op == OpSign || op == OpVerify
	case UseEncryption:
		return op != OpSign && op != OpVerify
	default:
		return false
	}
}

// ToPublicKey converts the JWK to a crypto.PublicKey.
func (jwk *JWK) ToPublicKey() (crypto.PublicKey, error) {
	m, err := jwk.Material()
	if err != nil {
		return nil, err
	}
	switch mat := m.(type) {
	case *RSAMaterial:
		return mat.Public, nil
	case *ECMaterial:
		return mat.Public, nil
	case *OKPMaterial:
		return mat.Public, nil
	default:
		return nil, fmt.Errorf("%w: %s has no public key", ErrInvalidKey, jwk.Kty)
	}
}

// ToPrivateKey converts the JWK to a crypto.PrivateKey.
func (jwk *JWK) ToPrivateKey() (crypto.PrivateKey, error) {
	m, err := jwk.Material()
	if err != nil {
		return nil, err
	}
	var priv crypto.PrivateKey
	switch mat := m.(type) {
	case *RSAMaterial:
		if mat.Private != nil {
			priv = mat.Private
		}
	case *ECMaterial:
		if mat.Private != nil {
			priv = mat.Private
		}
	case *OKPMaterial:
		priv = mat.Private
	}
	if priv == nil {
		return nil, ErrNotPrivate
	}
	return priv, nil
}

// ToSymmetricKey extracts the symmetric key bytes from the JWK.
func (jwk *JWK) ToSymmetricKey() ([]byte, error) {
	if jwk.Kty != string(KeyTypeOct) {
		return nil, fmt.Errorf("%w: JWK is not a symmetric key (kty=%s)", ErrInvalidKey, jwk.Kty)
	}
	if jwk.K == "" {
		return nil, fmt.Errorf("%w: k", ErrMissingField)
	}
	return decodeField("k", jwk.K)
}

func b64(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeField(name, value string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s: %v", ErrInvalidKey, name, err)
	}
	return b, nil
}

func fromRSAPublicKey(key *rsa.PublicKey) *JWK {
	return &JWK{
		Kty: string(KeyTypeRSA),
		N:   b64(key.N.Bytes()),
		E:   b64(big.NewInt(int64(key.E)).Bytes()),
	}
}

func fromRSAPrivateKey(key *rsa.PrivateKey) *JWK {
	if key.Precomputed.Dp == nil {
		key.Precompute()
	}

	jwk := fromRSAPublicKey(&key.PublicKey)
	jwk.D = b64(key.D.Bytes())
	if len(key.Primes) == 2 {
		jwk.P = b64(key.Primes[0].Bytes())
		jwk.Q = b64(key.Primes[1].Bytes())
		jwk.DP = b64(key.Precomputed.Dp.Bytes())
		jwk.DQ = b64(key.Precomputed.Dq.Bytes())
		jwk.QI = b64(key.Precomputed.Qinv.Bytes())
	}
	return jwk
}

func fromECDSAPublicKey(key *ecdsa.PublicKey) (*JWK, error) {
	crv, err := curveName(key.Curve)
	if err != nil {
		return nil, err
	}
	size := coordinateSize(key.Curve)
	return &JWK{
		Kty: string(KeyTypeEC),
		Crv: string(crv),
		X:   b64(key.X.FillBytes(make([]byte, size))),
		Y:   b64(key.Y.FillBytes(make([]byte, size))),
	}, nil
}

// coordinateSize is the fixed octet length of coordinates and private
// scalars on curve (RFC 7518 Section 6.2.1.2).
func coordinateSize(curve elliptic.Curve) int {
	return (curve.Params().BitSize + 7) / 8
}

func curveName(curve elliptic.Curve) (Curve, error) {
	switch curve {
	case elliptic.P256():
		return CurveP256, nil
	case elliptic.P384():
		return CurveP384, nil
	case elliptic.P521():
		return CurveP521, nil
	default:
		return "", fmt.Errorf("%w: elliptic curve %s", ErrUnsupportedKeyType, curve.Params().Name)
	}
}

// EllipticCurve returns the elliptic.Curve for a JWK curve name.
func EllipticCurve(name string) (elliptic.Curve, error) {
	switch Curve(name) {
	case CurveP256:
		return elliptic.P256(), nil
	case CurveP384:
		return elliptic.P384(), nil
	case CurveP521:
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("%w: curve %q", ErrUnsupportedKeyType, name)
	}
}
