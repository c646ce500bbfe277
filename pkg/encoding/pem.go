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

// Package encoding converts between PEM/DER key encodings and JSON Web
// Keys. Private keys are read from PKCS#1, SEC 1 and PKCS#8 (optionally
// password-encrypted), public keys from PKIX and X.509 certificates.
package encoding

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// PEM block types
const (
	PEMTypeRSAPrivateKey       = "RSA PRIVATE KEY"
	PEMTypeECPrivateKey        = "EC PRIVATE KEY"
	PEMTypePrivateKey          = "PRIVATE KEY"
	PEMTypeEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	PEMTypePublicKey           = "PUBLIC KEY"
	PEMTypeCertificate         = "CERTIFICATE"
)

// EncodePrivateKeyPEM encodes a private key as a PKCS#8 PEM block. With a
// password the block is "ENCRYPTED PRIVATE KEY", otherwise "PRIVATE KEY".
//
// Example:
//
//	pemData, err := encoding.EncodePrivateKeyPEM(privateKey, []byte("password"))
func EncodePrivateKeyPEM(privateKey crypto.PrivateKey, password []byte) ([]byte, error) {
	if privateKey == nil {
		return nil, ErrInvalidPrivateKey
	}

	der, err := EncodePKCS8(privateKey, password)
	if err != nil {
		return nil, err
	}

	blockType := PEMTypePrivateKey
	if len(password) > 0 {
		blockType = PEMTypeEncryptedPrivateKey
	}
	return encodeBlock(blockType, der)
}

// DecodePrivateKeyPEM decodes the first PEM block in data to a private
// key. PKCS#1 RSA, SEC 1 EC and PKCS#8 blocks are accepted; an encrypted
// PKCS#8 block requires password.
//
// Example:
//
//	key, err := encoding.DecodePrivateKeyPEM(pemData, []byte("password"))
//	rsaKey := key.(*rsa.PrivateKey)
func DecodePrivateKeyPEM(data []byte, password []byte) (crypto.PrivateKey, error) {
	block, err := decodeBlock(data)
	if err != nil {
		return nil, err
	}
	return decodePrivateBlock(block, password)
}

// EncodePublicKeyPEM encodes a public key as a PKIX "PUBLIC KEY" block.
func EncodePublicKeyPEM(publicKey crypto.PublicKey) ([]byte, error) {
	if publicKey == nil {
		return nil, ErrInvalidPublicKey
	}

	der, err := EncodePublicKeyPKIX(publicKey)
	if err != nil {
		return nil, err
	}
	return encodeBlock(PEMTypePublicKey, der)
}

// DecodePublicKeyPEM decodes a PKIX "PUBLIC KEY" block, or the public key
// of a "CERTIFICATE" block.
func DecodePublicKeyPEM(data []byte) (crypto.PublicKey, error) {
	block, err := decodeBlock(data)
	if err != nil {
		return nil, err
	}
	switch block.Type {
	case PEMTypePublicKey:
		return DecodePublicKeyPKIX(block.Bytes)
	case PEMTypeCertificate:
		cert, err := parseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		return cert.PublicKey, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPEMType, block.Type)
	}
}

// DecodeCertificateChainPEM decodes every CERTIFICATE block in data, in
// order. Blocks of other types are skipped.
func DecodeCertificateChainPEM(data []byte) ([]*x509.Certificate, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	var certs []*x509.Certificate
	remaining := data
	for len(remaining) > 0 {
		var block *pem.Block
		block, remaining = pem.Decode(remaining)
		if block == nil {
			break
		}
		if block.Type != PEMTypeCertificate {
			continue
		}
		cert, err := parseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}

	if len(certs) == 0 {
		return nil, ErrInvalidPEMEncoding
	}
	return certs, nil
}

func decodePrivateBlock(block *pem.Block, password []byte) (crypto.PrivateKey, error) {
	switch block.Type {
	case PEMTypeEncryptedPrivateKey:
		if len(password) == 0 {
			return nil, ErrPasswordRequired
		}
		return DecodePKCS8(block.Bytes, password)
	case PEMTypePrivateKey:
		return DecodePKCS8(block.Bytes, nil)
	case PEMTypeRSAPrivateKey:
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
		}
		return key, nil
	case PEMTypeECPrivateKey:
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPEMType, block.Type)
	}
}

func parseCertificate(der []byte) (*x509.Certificate, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}
	return cert, nil
}

func decodeBlock(data []byte) (*pem.Block, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPEMEncoding
	}
	return block, nil
}

func encodeBlock(blockType string, der []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := pem.Encode(&buf, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		return nil, fmt.Errorf("failed to encode PEM: %w", err)
	}
	return buf.Bytes(), nil
}
