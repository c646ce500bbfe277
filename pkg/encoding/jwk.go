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

package encoding

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
)

// ImportPEM converts the first key block in data to a JWK. Private key
// blocks give a private JWK. PUBLIC KEY blocks give a public JWK. A
// CERTIFICATE block gives the leaf's public key with "x5c" carrying every
// certificate in data and "x5t#S256" the leaf thumbprint.
func ImportPEM(data, password []byte) (*jwk.JWK, error) {
	block, err := decodeBlock(data)
	if err != nil {
		return nil, err
	}

	switch block.Type {
	case PEMTypePublicKey:
		pub, err := DecodePublicKeyPKIX(block.Bytes)
		if err != nil {
			return nil, err
		}
		return jwk.FromPublicKey(pub)
	case PEMTypeCertificate:
		return importCertificates(data)
	default:
		priv, err := decodePrivateBlock(block, password)
		if err != nil {
			return nil, err
		}
		return jwk.FromPrivateKey(priv)
	}
}

func importCertificates(data []byte) (*jwk.JWK, error) {
	chain, err := DecodeCertificateChainPEM(data)
	if err != nil {
		return nil, err
	}
	key, err := jwk.FromPublicKey(chain[0].PublicKey)
	if err != nil {
		return nil, err
	}
	for _, cert := range chain {
		key.X5c = append(key.X5c, base64.StdEncoding.EncodeToString(cert.Raw))
	}
	sum := sha256.Sum256(chain[0].Raw)
	key.X5tS256 = jose.Encode(sum[:])
	return key, nil
}

// ExportPEM encodes a JWK as PEM: PKCS#8 for private keys, encrypted when
// password is set, and PKIX for public keys. Symmetric keys have no PEM
// form.
func ExportPEM(key *jwk.JWK, password []byte) ([]byte, error) {
	if key == nil {
		return nil, ErrInvalidData
	}
	if key.IsSymmetric() {
		return nil, fmt.Errorf("%w: symmetric keys cannot be exported as PEM", ErrInvalidData)
	}
	if key.IsPrivate() {
		priv, err := key.ToPrivateKey()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
		}
		return EncodePrivateKeyPEM(priv, password)
	}
	pub, err := key.ToPublicKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	return EncodePublicKeyPEM(pub)
}

// IsPEM reports whether data starts with a PEM block.
func IsPEM(data []byte) bool {
	block, _ := pem.Decode(data)
	return block != nil
}
