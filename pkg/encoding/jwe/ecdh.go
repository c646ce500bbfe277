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
	"bytes"
	"crypto"
	"crypto/ecdh"
	"crypto/rand"
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-trustkit/pkg/crypto/wrapping"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
)

// ECDHKeyEncryption performs ECDH-ES key agreement with an ephemeral key on
// the recipient's curve (RFC 7518 Section 4.6). For ECDH-ES the agreed key
// is the CEK; for ECDH-ES+AxxxKW it wraps the CEK with AES-KW.
type ECDHKeyEncryption struct {
	alg jwa.KeyAlgorithm
	pub *ecdh.PublicKey
	crv jwk.Curve
	apu []byte
	apv []byte
}

// NewECDHKeyEncryption returns an ECDH-ES provider for a P-256, P-384,
// P-521 or X25519 recipient key. apu and apv are optional party info.
func NewECDHKeyEncryption(pub *ecdh.PublicKey, alg jwa.KeyAlgorithm, apu, apv []byte) (*ECDHKeyEncryption, error) {
	if !alg.IsEcdhEs() {
		return nil, fmt.Errorf("%w: %s is not an ECDH-ES algorithm", ErrUnsupportedAlgorithm, alg)
	}
	if pub == nil {
		return nil, fmt.Errorf("%w: public key cannot be nil", ErrInvalidKey)
	}
	crv, err := ecdhCurveName(pub.Curve())
	if err != nil {
		return nil, err
	}
	if len(apu) > 0 && bytes.Equal(apu, apv) {
		return nil, fmt.Errorf("%w: apu and apv must differ", ErrInvalidKey)
	}
	return &ECDHKeyEncryption{
		alg: alg,
		pub: pub,
		crv: crv,
		apu: bytes.Clone(apu),
		apv: bytes.Clone(apv),
	}, nil
}

// Algorithm returns the key management algorithm.
func (p *ECDHKeyEncryption) Algorithm() jwa.KeyAlgorithm { return p.alg }

// EncryptKey agrees a key-wrapping key and wraps cek. It is only valid for
// the ECDH-ES+AxxxKW algorithms.
func (p *ECDHKeyEncryption) EncryptKey(headers *jose.Headers, cek []byte) ([]byte, error) {
	if p.alg == jwa.ECDHES {
		return nil, fmt.Errorf("%w: ECDH-ES agrees the CEK directly", ErrUnsupportedAlgorithm)
	}
	kek, err := p.agree(headers, string(p.alg), p.alg.WrapKeySize())
	if err != nil {
		return nil, err
	}
	defer jose.Zero(kek)
	return wrapping.WrapAESKW(kek, cek)
}

// ContentKey agrees the CEK for ECDH-ES in direct key agreement mode.
func (p *ECDHKeyEncryption) ContentKey(headers *jose.Headers, enc jwa.ContentAlgorithm) (*jose.Secret, error) {
	if p.alg != jwa.ECDHES {
		return nil, fmt.Errorf("%w: %s wraps the CEK", ErrUnsupportedAlgorithm, p.alg)
	}
	key, err := p.agree(headers, string(enc), enc.KeySize())
	if err != nil {
		return nil, err
	}
	return jose.NewSecret(key), nil
}

func (p *ECDHKeyEncryption) agree(headers *jose.Headers, algorithmID string, keyLen int) ([]byte, error) {
	ephemeral, err := p.pub.Curve().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("jwe: failed to generate ephemeral key: %w", err)
	}
	z, err := ephemeral.ECDH(p.pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	defer jose.Zero(z)

	if err := headers.Set(jose.HeaderEphemeralKey, ephemeralJWK(ephemeral.PublicKey(), p.crv)); err != nil {
		return nil, err
	}
	if len(p.apu) > 0 {
		if err := headers.Set(jose.HeaderAgreementPartyU, jose.Encode(p.apu)); err != nil {
			return nil, err
		}
	}
	if len(p.apv) > 0 {
		if err := headers.Set(jose.HeaderAgreementPartyV, jose.Encode(p.apv)); err != nil {
			return nil, err
		}
	}
	return concatKDF(z, algorithmID, p.apu, p.apv, keyLen)
}

// ECDHKeyDecryption recovers the CEK from the "epk" header and the
// recipient's private key.
type ECDHKeyDecryption struct {
	alg  jwa.KeyAlgorithm
	priv *ecdh.PrivateKey
	crv  jwk.Curve
}

// NewECDHKeyDecryption returns an ECDH-ES decryption provider.
func NewECDHKeyDecryption(priv *ecdh.PrivateKey, alg jwa.KeyAlgorithm) (*ECDHKeyDecryption, error) {
	if !alg.IsEcdhEs() {
		return nil, fmt.Errorf("%w: %s is not an ECDH-ES algorithm", ErrUnsupportedAlgorithm, alg)
	}
	if priv == nil {
		return nil, fmt.Errorf("%w: private key cannot be nil", ErrInvalidKey)
	}
	crv, err := ecdhCurveName(priv.Curve())
	if err != nil {
		return nil, err
	}
	return &ECDHKeyDecryption{alg: alg, priv: priv, crv: crv}, nil
}

// Algorithm returns the key management algorithm.
func (p *ECDHKeyDecryption) Algorithm() jwa.KeyAlgorithm { return p.alg }

// DecryptKey validates the ephemeral public key, derives the agreed key and
// either returns it (ECDH-ES) or uses it to unwrap the encrypted key.
func (p *ECDHKeyDecryption) DecryptKey(headers *jose.Headers, encryptedKey []byte) (*jose.Secret, error) {
	epk, err := p.ephemeralPublicKey(headers)
	if err != nil {
		return nil, err
	}
	apu, err := optionalBytes(headers, jose.HeaderAgreementPartyU)
	if err != nil {
		return nil, err
	}
	apv, err := optionalBytes(headers, jose.HeaderAgreementPartyV)
	if err != nil {
		return nil, err
	}
	if len(apu) > 0 && bytes.Equal(apu, apv) {
		return nil, fmt.Errorf("%w: apu and apv must differ", jose.ErrMalformedHeader)
	}

	z, err := p.priv.ECDH(epk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	defer jose.Zero(z)

	if p.alg == jwa.ECDHES {
		if len(encryptedKey) != 0 {
			return nil, fmt.Errorf("%w: ECDH-ES requires an empty encrypted key", ErrInvalidFormat)
		}
		enc, err := jwa.ParseContentAlgorithm(headers.Encryption())
		if err != nil {
			return nil, err
		}
		key, err := concatKDF(z, string(enc), apu, apv, enc.KeySize())
		if err != nil {
			return nil, err
		}
		return jose.NewSecret(key), nil
	}

	kek, err := concatKDF(z, string(p.alg), apu, apv, p.alg.WrapKeySize())
	if err != nil {
		return nil, err
	}
	defer jose.Zero(kek)
	cek, err := wrapping.UnwrapAESKW(kek, encryptedKey)
	if err != nil {
		return nil, err
	}
	return jose.NewSecret(cek), nil
}

func (p *ECDHKeyDecryption) ephemeralPublicKey(headers *jose.Headers) (*ecdh.PublicKey, error) {
	raw, ok := headers.Object(jose.HeaderEphemeralKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", jose.ErrMissingHeader, jose.HeaderEphemeralKey)
	}
	key, err := jwk.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: epk: %v", jose.ErrMalformedHeader, err)
	}
	if key.IsPrivate() {
		return nil, fmt.Errorf("%w: epk must be a public key", jose.ErrMalformedHeader)
	}
	if jwk.Curve(key.Crv) != p.crv {
		return nil, fmt.Errorf("%w: epk curve %s does not match %s", jose.ErrMalformedHeader, key.Crv, p.crv)
	}

	// Material validates that the point is on the curve.
	m, err := key.Material()
	if err != nil {
		return nil, fmt.Errorf("%w: epk: %v", jose.ErrMalformedHeader, err)
	}
	return ecdhPublicKey(m)
}

func optionalBytes(headers *jose.Headers, name string) ([]byte, error) {
	if !headers.Has(name) {
		return nil, nil
	}
	return headers.Bytes(name)
}

func concatKDF(z []byte, algorithmID string, apu, apv []byte, keyLen int) ([]byte, error) {
	return kdf.NewConcatAdapter().DeriveKey(z, &kdf.KDFParams{
		Algorithm:   kdf.AlgorithmConcat,
		AlgorithmID: []byte(algorithmID),
		PartyUInfo:  apu,
		PartyVInfo:  apv,
		KeyLength:   keyLen,
		Hash:        crypto.SHA256,
	})
}

func ephemeralJWK(pub *ecdh.PublicKey, crv jwk.Curve) *jwk.JWK {
	raw := pub.Bytes()
	if crv == jwk.CurveX25519 {
		return &jwk.JWK{Kty: string(jwk.KeyTypeOKP), Crv: string(crv), X: jose.Encode(raw)}
	}
	// Uncompressed point: 0x04 || X || Y
	size := (len(raw) - 1) / 2
	return &jwk.JWK{
		Kty: string(jwk.KeyTypeEC),
		Crv: string(crv),
		X:   jose.Encode(raw[1 : 1+size]),
		Y:   jose.Encode(raw[1+size:]),
	}
}

func ecdhCurveName(c ecdh.Curve) (jwk.Curve, error) {
	switch c {
	case ecdh.P256():
		return jwk.CurveP256, nil
	case ecdh.P384():
		return jwk.CurveP384, nil
	case ecdh.P521():
		return jwk.CurveP521, nil
	case ecdh.X25519():
		return jwk.CurveX25519, nil
	default:
		return "", fmt.Errorf("%w: unsupported curve", ErrInvalidKey)
	}
}

func ecdhPublicKey(m jwk.Material) (*ecdh.PublicKey, error) {
	switch mat := m.(type) {
	case *jwk.ECMaterial:
		pub, err := mat.Public.ECDH()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return pub, nil
	case *jwk.OKPMaterial:
		pub, ok := mat.Public.(*ecdh.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: OKP curve %s cannot be used for key agreement", ErrInvalidKey, mat.Curve)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("%w: expected EC or X25519 key", ErrInvalidKey)
	}
}

func ecdhPrivateKey(m jwk.Material) (*ecdh.PrivateKey, error) {
	switch mat := m.(type) {
	case *jwk.ECMaterial:
		if mat.Private == nil {
			return nil, jwk.ErrNotPrivate
		}
		priv, err := mat.Private.ECDH()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return priv, nil
	case *jwk.OKPMaterial:
		if mat.Private == nil {
			return nil, jwk.ErrNotPrivate
		}
		priv, ok := mat.Private.(*ecdh.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: OKP curve %s cannot be used for key agreement", ErrInvalidKey, mat.Curve)
		}
		return priv, nil
	default:
		return nil, fmt.Errorf("%w: expected EC or X25519 key", ErrInvalidKey)
	}
}

func ecdhEncryptionFactory(m jwk.Material, alg jwa.KeyAlgorithm) (KeyEncryptionProvider, error) {
	pub, err := ecdhPublicKey(m)
	if err != nil {
		return nil, err
	}
	return NewECDHKeyEncryption(pub, alg, nil, nil)
}

func ecdhDecryptionFactory(m jwk.Material, alg jwa.KeyAlgorithm) (KeyDecryptionProvider, error) {
	priv, err := ecdhPrivateKey(m)
	if err != nil {
		return nil, err
	}
	return NewECDHKeyDecryption(priv, alg)
}
