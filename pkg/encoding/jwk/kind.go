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

package jwk

import (
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"
	"math/big"
)

// KeyKind is the closed set of key families a JWK can hold. Provider
// registries are keyed on it, so adding a kind is a compile-time visible
// change to every switch over Material.
type KeyKind int

const (
	KindUnknown KeyKind = iota
	KindRSA
	KindEC
	KindOctet
	KindOKP
)

// String returns the kty value of the kind.
func (k KeyKind) String() string {
	switch k {
	case KindRSA:
		return string(KeyTypeRSA)
	case KindEC:
		return string(KeyTypeEC)
	case KindOctet:
		return string(KeyTypeOct)
	case KindOKP:
		return string(KeyTypeOKP)
	default:
		return "unknown"
	}
}

// Kind returns the key family of the JWK.
func (jwk *JWK) Kind() (KeyKind, error) {
	switch KeyType(jwk.Kty) {
	case KeyTypeRSA:
		return KindRSA, nil
	case KeyTypeEC:
		return KindEC, nil
	case KeyTypeOct:
		return KindOctet, nil
	case KeyTypeOKP:
		return KindOKP, nil
	default:
		return KindUnknown, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, jwk.Kty)
	}
}

// Material is decoded key material. The concrete type is one of
// *RSAMaterial, *ECMaterial, *OctetMaterial or *OKPMaterial.
type Material interface {
	Kind() KeyKind
	material()
}

// RSAMaterial holds an RSA key. Private is nil for public JWKs.
type RSAMaterial struct {
	Public  *rsa.PublicKey
	Private *rsa.PrivateKey
}

// ECMaterial holds a NIST curve key. Private is nil for public JWKs.
type ECMaterial struct {
	Public  *ecdsa.PublicKey
	Private *ecdsa.PrivateKey
}

// OctetMaterial holds a symmetric key.
type OctetMaterial struct {
	Key []byte
}

// OKPMaterial holds an Ed25519 or X25519 key. Public is ed25519.PublicKey
// or *ecdh.PublicKey; Private is ed25519.PrivateKey, *ecdh.PrivateKey or nil.
type OKPMaterial struct {
	Curve   Curve
	Public  crypto.PublicKey
	Private crypto.PrivateKey
}

func (*RSAMaterial) Kind() KeyKind   { return KindRSA }
func (*ECMaterial) Kind() KeyKind    { return KindEC }
func (*OctetMaterial) Kind() KeyKind { return KindOctet }
func (*OKPMaterial) Kind() KeyKind   { return KindOKP }

func (*RSAMaterial) material()   {}
func (*ECMaterial) material()    {}
func (*OctetMaterial) material() {}
func (*OKPMaterial) material()   {}

// Material decodes the key material of the JWK.
func (jwk *JWK) Material() (Material, error) {
	kind, err := jwk.Kind()
	if err != nil {
		return nil, err
	}
	if err := jwk.Validate(); err != nil {
		return nil, err
	}

	switch kind {
	case KindRSA:
		return jwk.rsaMaterial()
	case KindEC:
		return jwk.ecMaterial()
	case KindOctet:
		key, err := jwk.ToSymmetricKey()
		if err != nil {
			return nil, err
		}
		return &OctetMaterial{Key: key}, nil
	case KindOKP:
		return jwk.okpMaterial()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, jwk.Kty)
	}
}

func (jwk *JWK) rsaMaterial() (*RSAMaterial, error) {
	nBytes, err := decodeField("n", jwk.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := decodeField("e", jwk.E)
	if err != nil {
		return nil, err
	}
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() < 3 || e.Int64() > 1<<31-1 {
		return nil, fmt.Errorf("%w: RSA exponent out of range", ErrInvalidKey)
	}
	pub := &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: int(e.Int64())}
	m := &RSAMaterial{Public: pub}
	if jwk.D == "" {
		return m, nil
	}

	dBytes, err := decodeField("d", jwk.D)
	if err != nil {
		return nil, err
	}
	priv := &rsa.PrivateKey{PublicKey: *pub, D: new(big.Int).SetBytes(dBytes)}
	if jwk.P == "" || jwk.Q == "" {
		return nil, fmt.Errorf("%w: RSA private key requires p and q", ErrMissingField)
	}
	pBytes, err := decodeField("p", jwk.P)
	if err != nil {
		return nil, err
	}
	qBytes, err := decodeField("q", jwk.Q)
	if err != nil {
		return nil, err
	}
	priv.Primes = []*big.Int{new(big.Int).SetBytes(pBytes), new(big.Int).SetBytes(qBytes)}
	if err := priv.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	priv.Precompute()
	m.Private = priv
	return m, nil
}

func (jwk *JWK) ecMaterial() (*ECMaterial, error) {
	curve, err := EllipticCurve(jwk.Crv)
	if err != nil {
		return nil, err
	}
	size := coordinateSize(curve)
	xBytes, err := decodeField("x", jwk.X)
	if err != nil {
		return nil, err
	}
	yBytes, err := decodeField("y", jwk.Y)
	if err != nil {
		return nil, err
	}
	if len(xBytes) != size || len(yBytes) != size {
		return nil, fmt.Errorf("%w: EC coordinates must be %d bytes", ErrInvalidKey, size)
	}
	pub := &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}
	// ECDH conversion rejects points that are not on the curve.
	if _, err := pub.ECDH(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	m := &ECMaterial{Public: pub}
	if jwk.D == "" {
		return m, nil
	}

	dBytes, err := decodeField("d", jwk.D)
	if err != nil {
		return nil, err
	}
	if len(dBytes) != size {
		return nil, fmt.Errorf("%w: EC private key must be %d bytes", ErrInvalidKey, size)
	}
	priv := &ecdsa.PrivateKey{PublicKey: *pub, D: new(big.Int).SetBytes(dBytes)}
	if _, err := priv.ECDH(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	m.Private = priv
	return m, nil
}

func (jwk *JWK) okpMaterial() (*OKPMaterial, error) {
	xBytes, err := decodeField("x", jwk.X)
	if err != nil {
		return nil, err
	}

	switch Curve(jwk.Crv) {
	case CurveEd25519:
		if len(xBytes) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: invalid Ed25519 public key size: %d", ErrInvalidKey, len(xBytes))
		}
		m := &OKPMaterial{Curve: CurveEd25519, Public: ed25519.PublicKey(xBytes)}
		if jwk.D != "" {
			seed, err := decodeField("d", jwk.D)
			if err != nil {
				return nil, err
			}
			if len(seed) != ed25519.SeedSize {
				return nil, fmt.Errorf("%w: invalid Ed25519 seed size: %d", ErrInvalidKey, len(seed))
			}
			m.Private = ed25519.NewKeyFromSeed(seed)
		}
		return m, nil
	case CurveX25519:
		pub, err := ecdh.X25519().NewPublicKey(xBytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		m := &OKPMaterial{Curve: CurveX25519, Public: pub}
		if jwk.D != "" {
			dBytes, err := decodeField("d", jwk.D)
			if err != nil {
				return nil, err
			}
			priv, err := ecdh.X25519().NewPrivateKey(dBytes)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
			}
			m.Private = priv
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: OKP curve %q", ErrUnsupportedKeyType, jwk.Crv)
	}
}
