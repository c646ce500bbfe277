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
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	rsaOnce sync.Once
	rsaKey  *rsa.PrivateKey
)

func testRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	rsaOnce.Do(func() {
		var err error
		rsaKey, err = rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
	})
	return rsaKey
}

func testKeys(t *testing.T) map[string]crypto.Signer {
	t.Helper()
	ec, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	_, ed, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return map[string]crypto.Signer{
		"RSA":     testRSAKey(t),
		"EC":      ec,
		"Ed25519": ed,
	}
}

func selfSigned(t *testing.T, key crypto.Signer, cn string) *x509.Certificate {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestPrivateKeyPEM_RoundTrip(t *testing.T) {
	for name, key := range testKeys(t) {
		t.Run(name, func(t *testing.T) {
			for _, password := range [][]byte{nil, []byte("correct horse")} {
				data, err := EncodePrivateKeyPEM(key, password)
				require.NoError(t, err)

				block, _ := pem.Decode(data)
				require.NotNil(t, block)
				if password == nil {
					assert.Equal(t, PEMTypePrivateKey, block.Type)
				} else {
					assert.Equal(t, PEMTypeEncryptedPrivateKey, block.Type)
				}

				decoded, err := DecodePrivateKeyPEM(data, password)
				require.NoError(t, err)
				assert.True(t, key.(interface{ Equal(crypto.PrivateKey) bool }).Equal(decoded))
			}
		})
	}
}

func TestDecodePrivateKeyPEM_Errors(t *testing.T) {
	key := testRSAKey(t)
	encrypted, err := EncodePrivateKeyPEM(key, []byte("right"))
	require.NoError(t, err)

	_, err = DecodePrivateKeyPEM(encrypted, nil)
	assert.ErrorIs(t, err, ErrPasswordRequired)

	_, err = DecodePrivateKeyPEM(encrypted, []byte("wrong"))
	assert.ErrorIs(t, err, ErrInvalidPassword)

	_, err = DecodePrivateKeyPEM(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidData)

	_, err = DecodePrivateKeyPEM([]byte("not pem"), nil)
	assert.ErrorIs(t, err, ErrInvalidPEMEncoding)

	unknown := pem.EncodeToMemory(&pem.Block{Type: "OPENSSH PRIVATE KEY", Bytes: []byte{1}})
	_, err = DecodePrivateKeyPEM(unknown, nil)
	assert.ErrorIs(t, err, ErrUnsupportedPEMType)

	_, err = EncodePrivateKeyPEM(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestDecodePrivateKeyPEM_LegacyFormats(t *testing.T) {
	rsaKey := testRSAKey(t)
	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: PEMTypeRSAPrivateKey, Bytes: x509.MarshalPKCS1PrivateKey(rsaKey)})
	got, err := DecodePrivateKeyPEM(pkcs1, nil)
	require.NoError(t, err)
	assert.True(t, rsaKey.Equal(got))

	ec, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(ec)
	require.NoError(t, err)
	sec1 := pem.EncodeToMemory(&pem.Block{Type: PEMTypeECPrivateKey, Bytes: der})
	got, err = DecodePrivateKeyPEM(sec1, nil)
	require.NoError(t, err)
	assert.True(t, ec.Equal(got))

	broken := pem.EncodeToMemory(&pem.Block{Type: PEMTypeECPrivateKey, Bytes: []byte{0x30, 0x00}})
	_, err = DecodePrivateKeyPEM(broken, nil)
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestPublicKeyPEM(t *testing.T) {
	for name, key := range testKeys(t) {
		t.Run(name, func(t *testing.T) {
			data, err := EncodePublicKeyPEM(key.Public())
			require.NoError(t, err)
			pub, err := DecodePublicKeyPEM(data)
			require.NoError(t, err)
			assert.True(t, key.Public().(interface{ Equal(crypto.PublicKey) bool }).Equal(pub))

			certPEM := pem.EncodeToMemory(&pem.Block{Type: PEMTypeCertificate, Bytes: selfSigned(t, key, name).Raw})
			pub, err = DecodePublicKeyPEM(certPEM)
			require.NoError(t, err)
			assert.True(t, key.Public().(interface{ Equal(crypto.PublicKey) bool }).Equal(pub))
		})
	}

	_, err := EncodePublicKeyPEM(nil)
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
	_, err = DecodePublicKeyPEM(pem.EncodeToMemory(&pem.Block{Type: PEMTypePrivateKey, Bytes: []byte{1}}))
	assert.ErrorIs(t, err, ErrUnsupportedPEMType)
}

func TestDecodeCertificateChainPEM(t *testing.T) {
	keys := testKeys(t)
	leaf := selfSigned(t, keys["EC"], "leaf")
	root := selfSigned(t, keys["RSA"], "root")

	var data []byte
	data = append(data, pem.EncodeToMemory(&pem.Block{Type: PEMTypeCertificate, Bytes: leaf.Raw})...)
	data = append(data, pem.EncodeToMemory(&pem.Block{Type: PEMTypePublicKey, Bytes: []byte{1}})...)
	data = append(data, pem.EncodeToMemory(&pem.Block{Type: PEMTypeCertificate, Bytes: root.Raw})...)

	chain, err := DecodeCertificateChainPEM(data)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "leaf", chain[0].Subject.CommonName)
	assert.Equal(t, "root", chain[1].Subject.CommonName)

	_, err = DecodeCertificateChainPEM(pem.EncodeToMemory(&pem.Block{Type: PEMTypeCertificate, Bytes: []byte{1, 2}}))
	assert.ErrorIs(t, err, ErrInvalidCertificate)
	_, err = DecodeCertificateChainPEM([]byte("nothing"))
	assert.ErrorIs(t, err, ErrInvalidPEMEncoding)
}

func TestImportPEM(t *testing.T) {
	for name, key := range testKeys(t) {
		t.Run(name, func(t *testing.T) {
			data, err := EncodePrivateKeyPEM(key, []byte("pw"))
			require.NoError(t, err)

			private, err := ImportPEM(data, []byte("pw"))
			require.NoError(t, err)
			assert.True(t, private.IsPrivate())

			pubPEM, err := EncodePublicKeyPEM(key.Public())
			require.NoError(t, err)
			public, err := ImportPEM(pubPEM, nil)
			require.NoError(t, err)
			assert.False(t, public.IsPrivate())

			expected, err := private.Public()
			require.NoError(t, err)
			assert.Equal(t, expected, public)
		})
	}
}

func TestImportPEM_Certificate(t *testing.T) {
	keys := testKeys(t)
	leaf := selfSigned(t, keys["EC"], "leaf")
	root := selfSigned(t, keys["RSA"], "root")
	data := append(
		pem.EncodeToMemory(&pem.Block{Type: PEMTypeCertificate, Bytes: leaf.Raw}),
		pem.EncodeToMemory(&pem.Block{Type: PEMTypeCertificate, Bytes: root.Raw})...)

	key, err := ImportPEM(data, nil)
	require.NoError(t, err)
	assert.Equal(t, string(jwk.KeyTypeEC), key.Kty)
	assert.Len(t, key.X5c, 2)
	assert.NotEmpty(t, key.X5tS256)
	assert.False(t, key.IsPrivate())
}

func TestExportPEM(t *testing.T) {
	for name, key := range testKeys(t) {
		t.Run(name, func(t *testing.T) {
			private, err := jwk.FromPrivateKey(key)
			require.NoError(t, err)

			data, err := ExportPEM(private, []byte("pw"))
			require.NoError(t, err)
			back, err := ImportPEM(data, []byte("pw"))
			require.NoError(t, err)
			assert.Equal(t, private, back)

			public, err := private.Public()
			require.NoError(t, err)
			data, err = ExportPEM(public, nil)
			require.NoError(t, err)
			assert.True(t, IsPEM(data))
			back, err = ImportPEM(data, nil)
			require.NoError(t, err)
			assert.Equal(t, public, back)
		})
	}

	secret, err := jwk.GenerateOctet(32, "HS256")
	require.NoError(t, err)
	_, err = ExportPEM(secret, nil)
	assert.ErrorIs(t, err, ErrInvalidData)
	_, err = ExportPEM(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidData)
	assert.False(t, IsPEM([]byte("{}")))
}
