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
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
)

// KeyEncryptionProvider protects a CEK for one recipient. EncryptKey may add
// algorithm parameters (iv, tag, p2s, p2c, epk, apu, apv) to headers; those
// headers are then serialized for the recipient.
type KeyEncryptionProvider interface {
	Algorithm() jwa.KeyAlgorithm
	EncryptKey(headers *jose.Headers, cek []byte) ([]byte, error)
}

// DirectKeyProvider is implemented by providers whose algorithm determines
// the CEK instead of wrapping one (dir and ECDH-ES). The encrypted key
// segment is empty for these algorithms.
type DirectKeyProvider interface {
	KeyEncryptionProvider
	ContentKey(headers *jose.Headers, enc jwa.ContentAlgorithm) (*jose.Secret, error)
}

// KeyDecryptionProvider recovers the CEK from the encrypted key segment and
// the JWE headers. The caller owns the returned Secret and must Destroy it.
type KeyDecryptionProvider interface {
	Algorithm() jwa.KeyAlgorithm
	DecryptKey(headers *jose.Headers, encryptedKey []byte) (*jose.Secret, error)
}

type registryKey struct {
	kind jwk.KeyKind
	alg  jwa.KeyAlgorithm
}

type (
	encryptionFactory func(m jwk.Material, alg jwa.KeyAlgorithm) (KeyEncryptionProvider, error)
	decryptionFactory func(m jwk.Material, alg jwa.KeyAlgorithm) (KeyDecryptionProvider, error)
)

var (
	encryptionRegistry = map[registryKey]encryptionFactory{}
	decryptionRegistry = map[registryKey]decryptionFactory{}
)

func register(kind jwk.KeyKind, enc encryptionFactory, dec decryptionFactory, algs ...jwa.KeyAlgorithm) {
	for _, alg := range algs {
		encryptionRegistry[registryKey{kind, alg}] = enc
		decryptionRegistry[registryKey{kind, alg}] = dec
	}
}

func init() {
	register(jwk.KindRSA, rsaEncryptionFactory, rsaDecryptionFactory,
		jwa.RSAOAEP, jwa.RSAOAEP256)
	register(jwk.KindOctet, aesKeyWrapEncryptionFactory, aesKeyWrapDecryptionFactory,
		jwa.A128KW, jwa.A192KW, jwa.A256KW)
	register(jwk.KindOctet, aesGCMKeyWrapEncryptionFactory, aesGCMKeyWrapDecryptionFactory,
		jwa.A128GCMKW, jwa.A192GCMKW, jwa.A256GCMKW)
	register(jwk.KindOctet, pbes2EncryptionFactory, pbes2DecryptionFactory,
		jwa.PBES2HS256A128KW, jwa.PBES2HS384A192KW, jwa.PBES2HS512A256KW)
	register(jwk.KindOctet, directEncryptionFactory, directDecryptionFactory,
		jwa.Direct)
	register(jwk.KindEC, ecdhEncryptionFactory, ecdhDecryptionFactory,
		jwa.ECDHES, jwa.ECDHESA128KW, jwa.ECDHESA192KW, jwa.ECDHESA256KW)
	register(jwk.KindOKP, ecdhEncryptionFactory, ecdhDecryptionFactory,
		jwa.ECDHES, jwa.ECDHESA128KW, jwa.ECDHESA192KW, jwa.ECDHESA256KW)
}

// NewKeyEncryptionProvider selects the key encryption provider for a JWK.
// An empty alg uses the JWK "alg". A selection failure is always a typed
// error: ErrUnsupportedAlgorithm, ErrAlgorithmMismatch, ErrKeyUsage or a
// jwk error for bad key material.
func NewKeyEncryptionProvider(key *jwk.JWK, alg jwa.KeyAlgorithm) (KeyEncryptionProvider, error) {
	resolved, m, err := selectKey(key, alg, true)
	if err != nil {
		return nil, err
	}
	factory, ok := encryptionRegistry[registryKey{m.Kind(), resolved}]
	if !ok {
		return nil, fmt.Errorf("%w: %s with %s key", ErrUnsupportedAlgorithm, resolved, m.Kind())
	}
	return factory(m, resolved)
}

// NewKeyDecryptionProvider selects the key decryption provider for a JWK.
func NewKeyDecryptionProvider(key *jwk.JWK, alg jwa.KeyAlgorithm) (KeyDecryptionProvider, error) {
	resolved, m, err := selectKey(key, alg, false)
	if err != nil {
		return nil, err
	}
	factory, ok := decryptionRegistry[registryKey{m.Kind(), resolved}]
	if !ok {
		return nil, fmt.Errorf("%w: %s with %s key", ErrUnsupportedAlgorithm, resolved, m.Kind())
	}
	return factory(m, resolved)
}

func selectKey(key *jwk.JWK, alg jwa.KeyAlgorithm, encrypt bool) (jwa.KeyAlgorithm, jwk.Material, error) {
	if key == nil {
		return "", nil, fmt.Errorf("%w: key cannot be nil", ErrInvalidKey)
	}
	resolved, err := resolveAlgorithm(key, alg)
	if err != nil {
		return "", nil, err
	}
	op := keyOperation(resolved, encrypt)
	if !key.Permits(op) {
		return "", nil, fmt.Errorf("%w: %s", ErrKeyUsage, op)
	}
	m, err := key.Material()
	if err != nil {
		return "", nil, err
	}
	return resolved, m, nil
}

func resolveAlgorithm(key *jwk.JWK, alg jwa.KeyAlgorithm) (jwa.KeyAlgorithm, error) {
	switch {
	case alg == "" && key.Alg == "":
		return "", fmt.Errorf("%w: no key algorithm given and JWK has no alg", ErrUnsupportedAlgorithm)
	case alg == "":
		alg = jwa.KeyAlgorithm(key.Alg)
	case key.Alg != "" && key.Alg != string(alg):
		return "", fmt.Errorf("%w: JWK alg %s, requested %s", ErrAlgorithmMismatch, key.Alg, alg)
	}
	return jwa.ParseKeyAlgorithm(string(alg))
}

func keyOperation(alg jwa.KeyAlgorithm, encrypt bool) string {
	switch {
	case alg == jwa.Direct && encrypt:
		return jwk.OpEncrypt
	case alg == jwa.Direct:
		return jwk.OpDecrypt
	case alg.IsEcdhEs():
		return jwk.OpDeriveKey
	case encrypt:
		return jwk.OpWrapKey
	default:
		return jwk.OpUnwrapKey
	}
}
