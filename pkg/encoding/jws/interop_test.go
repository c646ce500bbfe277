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

package jws

import (
	"testing"

	gojose "github.com/go-jose/go-jose/v4"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go-jose serves as an independent implementation for these tests.

var goJoseSignatureAlgorithms = []gojose.SignatureAlgorithm{
	gojose.HS256, gojose.HS384, gojose.HS512,
	gojose.RS256, gojose.RS384, gojose.RS512,
	gojose.PS256, gojose.PS384, gojose.PS512,
	gojose.ES256, gojose.ES384, gojose.ES512,
	gojose.EdDSA,
}

func rawSigningKey(t *testing.T, key *jwk.JWK) (signing, verifying interface{}) {
	t.Helper()
	if key.IsSymmetric() {
		k, err := key.ToSymmetricKey()
		require.NoError(t, err)
		return k, k
	}
	priv, err := key.ToPrivateKey()
	require.NoError(t, err)
	pub, err := key.ToPublicKey()
	require.NoError(t, err)
	return priv, pub
}

func TestInterop_GoJoseVerifiesOurs(t *testing.T) {
	payload := []byte("interop payload")

	for _, tc := range signingCases() {
		t.Run(string(tc.alg), func(t *testing.T) {
			key := tc.key(t)
			token, err := Sign(key, payload, WithAlgorithm(tc.alg))
			require.NoError(t, err)

			obj, err := gojose.ParseSigned(token, goJoseSignatureAlgorithms)
			require.NoError(t, err)
			_, pub := rawSigningKey(t, key)
			out, err := obj.Verify(pub)
			require.NoError(t, err)
			assert.Equal(t, payload, out)
		})
	}
}

func TestInterop_WeVerifyGoJose(t *testing.T) {
	payload := []byte("interop payload")

	for _, tc := range signingCases() {
		t.Run(string(tc.alg), func(t *testing.T) {
			key := tc.key(t)
			priv, _ := rawSigningKey(t, key)

			signer, err := gojose.NewSigner(gojose.SigningKey{Algorithm: gojose.SignatureAlgorithm(tc.alg), Key: priv}, nil)
			require.NoError(t, err)
			obj, err := signer.Sign(payload)
			require.NoError(t, err)

			compact, err := obj.CompactSerialize()
			require.NoError(t, err)
			out, err := Verify(publicOf(t, key), []byte(compact), WithAlgorithm(tc.alg))
			require.NoError(t, err)
			assert.Equal(t, payload, out)

			out, err = Verify(publicOf(t, key), []byte(obj.FullSerialize()), WithAlgorithm(tc.alg))
			require.NoError(t, err)
			assert.Equal(t, payload, out)
		})
	}
}

func TestInterop_GoJoseMultiSigner(t *testing.T) {
	rsa := testRSAKey(t)
	ec := testECKey(t, jwk.CurveP384)
	rsaPriv, _ := rawSigningKey(t, rsa)
	ecPriv, _ := rawSigningKey(t, ec)

	signer, err := gojose.NewMultiSigner([]gojose.SigningKey{
		{Algorithm: gojose.PS256, Key: rsaPriv},
		{Algorithm: gojose.ES384, Key: ecPriv},
	}, nil)
	require.NoError(t, err)
	obj, err := signer.Sign([]byte("two signatures"))
	require.NoError(t, err)

	c, err := ParseJSON([]byte(obj.FullSerialize()), nil)
	require.NoError(t, err)
	require.Len(t, c.Signatures, 2)

	rsaVerifier, err := NewSignatureVerifier(publicOf(t, rsa), jwa.PS256)
	require.NoError(t, err)
	ecVerifier, err := NewSignatureVerifier(publicOf(t, ec), "")
	require.NoError(t, err)
	require.NoError(t, c.VerifyAll(rsaVerifier, ecVerifier))
	assert.Equal(t, []byte("two signatures"), c.Payload)
}
