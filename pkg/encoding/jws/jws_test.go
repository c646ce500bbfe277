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
	"crypto/hmac"
	"crypto/sha256"
	"strings"
	"sync"
	"testing"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	rsaOnce sync.Once
	rsaKey  *jwk.JWK
)

func testRSAKey(t *testing.T) *jwk.JWK {
	t.Helper()
	rsaOnce.Do(func() {
		key, err := jwk.GenerateRSA(2048)
		if err != nil {
			panic(err)
		}
		rsaKey = key
	})
	return rsaKey
}

func testECKey(t *testing.T, crv jwk.Curve) *jwk.JWK {
	t.Helper()
	key, err := jwk.GenerateEC(crv)
	require.NoError(t, err)
	return key
}

func testEdKey(t *testing.T) *jwk.JWK {
	t.Helper()
	key, err := jwk.GenerateOKP(jwk.CurveEd25519)
	require.NoError(t, err)
	return key
}

func testOctetKey(t *testing.T, size int) *jwk.JWK {
	t.Helper()
	key, err := jwk.GenerateOctet(size, "")
	require.NoError(t, err)
	return key
}

func publicOf(t *testing.T, key *jwk.JWK) *jwk.JWK {
	t.Helper()
	if key.IsSymmetric() {
		return key
	}
	pub, err := key.Public()
	require.NoError(t, err)
	return pub
}

type signingCase struct {
	alg jwa.SignatureAlgorithm
	key func(t *testing.T) *jwk.JWK
}

func signingCases() []signingCase {
	octet := func(t *testing.T) *jwk.JWK { return testOctetKey(t, 64) }
	ec := func(crv jwk.Curve) func(t *testing.T) *jwk.JWK {
		return func(t *testing.T) *jwk.JWK { return testECKey(t, crv) }
	}
	return []signingCase{
		{jwa.HS256, octet},
		{jwa.HS384, octet},
		{jwa.HS512, octet},
		{jwa.RS256, testRSAKey},
		{jwa.RS384, testRSAKey},
		{jwa.RS512, testRSAKey},
		{jwa.PS256, testRSAKey},
		{jwa.PS384, testRSAKey},
		{jwa.PS512, testRSAKey},
		{jwa.ES256, ec(jwk.CurveP256)},
		{jwa.ES384, ec(jwk.CurveP384)},
		{jwa.ES512, ec(jwk.CurveP521)},
		{jwa.EdDSA, testEdKey},
	}
}

func TestSignVerify_Roundtrip(t *testing.T) {
	payload := []byte(`{"iss":"https://sts.example.com","sub":"alice"}`)

	for _, tc := range signingCases() {
		t.Run(string(tc.alg), func(t *testing.T) {
			key := tc.key(t).WithKeyID("k1")

			token, err := Sign(key, payload, WithAlgorithm(tc.alg), WithType("JWT"))
			require.NoError(t, err)
			assert.Equal(t, 2, strings.Count(token, "."))

			headers, err := PeekHeaders(token)
			require.NoError(t, err)
			assert.Equal(t, string(tc.alg), headers.Algorithm())
			assert.Equal(t, "k1", headers.KeyID())
			assert.Equal(t, "JWT", headers.Type())

			out, err := Verify(publicOf(t, key), []byte(token), WithAlgorithm(tc.alg))
			require.NoError(t, err)
			assert.Equal(t, payload, out)
		})
	}
}

func TestSignJSON_GeneralAndFlattened(t *testing.T) {
	payload := []byte("multi-signed content")
	rsa := testRSAKey(t).WithKeyID("rsa")
	ec := testECKey(t, jwk.CurveP256).WithKeyID("ec")

	general, err := SignJSON([]*jwk.JWK{rsa, ec}, payload)
	require.NoError(t, err)

	c, err := ParseJSON([]byte(general), nil)
	require.NoError(t, err)
	assert.False(t, c.Flattened)
	require.Len(t, c.Signatures, 2)
	assert.Equal(t, payload, c.Payload)
	assert.Equal(t, "rsa", c.Signatures[0].Protected.KeyID())
	assert.Equal(t, "ec", c.Signatures[1].Protected.KeyID())

	rsaVerifier, err := NewSignatureVerifier(publicOf(t, rsa), "")
	require.NoError(t, err)
	ecVerifier, err := NewSignatureVerifier(publicOf(t, ec), "")
	require.NoError(t, err)

	require.NoError(t, c.VerifyAll(rsaVerifier, ecVerifier))
	assert.Error(t, c.VerifyAll(ecVerifier, rsaVerifier))
	assert.ErrorIs(t, c.VerifyAll(rsaVerifier), ErrInvalidKey)

	idx, err := c.VerifyAny(ecVerifier)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	out, err := Verify(publicOf(t, ec), []byte(general))
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	flattened, err := SignJSON([]*jwk.JWK{ec}, payload, WithFlattened())
	require.NoError(t, err)
	assert.NotContains(t, flattened, `"signatures"`)

	c, err = ParseJSON([]byte(flattened), nil)
	require.NoError(t, err)
	assert.True(t, c.Flattened)
	_, err = c.VerifyAny(ecVerifier)
	require.NoError(t, err)

	_, err = SignJSON([]*jwk.JWK{rsa, ec}, payload, WithFlattened())
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestJSONProducer_UnprotectedHeaders(t *testing.T) {
	key := testOctetKey(t, 32)
	provider, err := NewSignatureProvider(key, jwa.HS256)
	require.NoError(t, err)

	p := NewJSONProducer([]byte("payload"))
	require.NoError(t, p.AddSignature(provider, nil, map[string]interface{}{"kid": "shared"}))

	err = p.AddSignature(provider, nil, map[string]interface{}{"alg": "HS256"})
	assert.ErrorIs(t, err, jose.ErrMalformedHeader)

	err = p.AddSignature(provider, map[string]interface{}{"kid": "a"}, map[string]interface{}{"kid": "b"})
	assert.ErrorIs(t, err, jose.ErrDuplicateHeader)

	out, err := p.Serialize()
	require.NoError(t, err)

	c, err := ParseJSON([]byte(out), nil)
	require.NoError(t, err)
	require.Len(t, c.Signatures, 1)
	headers, err := c.Signatures[0].Headers()
	require.NoError(t, err)
	assert.Equal(t, "shared", headers.KeyID())
	assert.Equal(t, "HS256", headers.Algorithm())

	_, err = NewJSONProducer([]byte("x")).Serialize()
	assert.ErrorIs(t, err, ErrNoSignatures)
}

func TestParseJSON_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		err   error
	}{
		{"not json", `{`, ErrInvalidFormat},
		{"no signatures", `{"payload":"cA"}`, ErrNoSignatures},
		{"mixed forms", `{"payload":"cA","signatures":[{"protected":"eyJhbGciOiJIUzI1NiJ9","signature":"c2ln"}],"signature":"c2ln"}`, ErrInvalidFormat},
		{"missing payload", `{"protected":"eyJhbGciOiJIUzI1NiJ9","signature":"c2ln"}`, ErrInvalidFormat},
		{"empty signature", `{"payload":"cA","signatures":[{"protected":"eyJhbGciOiJIUzI1NiJ9","signature":""}]}`, ErrInvalidFormat},
		{"unprotected crit", `{"payload":"cA","protected":"eyJhbGciOiJIUzI1NiJ9","header":{"crit":["x"]},"signature":"c2ln"}`, jose.ErrMalformedHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tt.input), nil)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestVerify_AlgorithmConfusion(t *testing.T) {
	key := testRSAKey(t)
	pub := publicOf(t, key)
	payload := []byte("payload")

	token, err := Sign(key, payload, WithAlgorithm(jwa.PS256))
	require.NoError(t, err)

	// Default RS256 verifier must not accept PS256.
	_, err = Verify(pub, []byte(token))
	assert.ErrorIs(t, err, jose.ErrSecurity)

	c, err := ParseCompact(token, nil)
	require.NoError(t, err)
	v, err := NewSignatureVerifier(pub, jwa.RS256)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Verify(v), ErrAlgorithmNotAllowed)

	out, err := Verify(pub, []byte(token), WithAllowedAlgorithms(jwa.PS256))
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	// An RSA verifier cannot be told to accept HMAC.
	_, err = NewSignatureVerifier(pub, jwa.RS256, jwa.HS256)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	// HS256 forged with the public modulus as the secret.
	forged := hmacToken(t, `{"alg":"HS256"}`, payload, []byte(pub.N))
	c, err = ParseCompact(forged, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Verify(v), ErrAlgorithmNotAllowed)
}

func TestVerify_MissingAlgorithmUsesDefault(t *testing.T) {
	secret := make([]byte, 64)
	for i := range secret {
		secret[i] = byte(i)
	}
	key, err := jwk.FromSymmetricKey(secret, "")
	require.NoError(t, err)
	payload := []byte("no alg header")

	token := hmacToken(t, `{"typ":"JWT"}`, payload, secret)

	out, err := Verify(key, []byte(token), WithAlgorithm(jwa.HS256))
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	_, err = Verify(key, []byte(token), WithAlgorithm(jwa.HS384))
	assert.ErrorIs(t, err, jose.ErrSecurity)
}

func TestParseCompact(t *testing.T) {
	none := jose.EncodeString(`{"alg":"none"}`) + "." + jose.EncodeString("payload") + "."
	noneSigned := jose.EncodeString(`{"alg":"none"}`) + "." + jose.EncodeString("payload") + ".c2ln"

	tests := []struct {
		name  string
		input string
		err   error
	}{
		{"two segments", "a.b", ErrInvalidFormat},
		{"four segments", "a.b.c.d", ErrInvalidFormat},
		{"unsigned none", none, ErrInvalidFormat},
		{"signed none", noneSigned, ErrUnsupportedAlgorithm},
		{"bad header", "!!.cA.c2ln", jose.ErrInvalidEncoding},
		{"non-string alg", jose.EncodeString(`{"alg":1}`) + ".cA.c2ln", jose.ErrMalformedHeader},
		{"bad signature", jose.EncodeString(`{"alg":"HS256"}`) + ".cA.!!", jose.ErrInvalidEncoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCompact(tt.input, nil)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestVerify_RejectsNone(t *testing.T) {
	key := testOctetKey(t, 32)
	token := jose.EncodeString(`{"alg":"none"}`) + "." + jose.EncodeString("payload") + "."
	_, err := Verify(key, []byte(token))
	assert.ErrorIs(t, err, jose.ErrSecurity)

	_, err = Sign(key, []byte("x"), WithAlgorithm(jwa.None))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestVerify_Tampered(t *testing.T) {
	key := testECKey(t, jwk.CurveP256)
	token, err := Sign(key, []byte("original"))
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + jose.EncodeString("modified") + "." + parts[2]
	_, err = Verify(publicOf(t, key), []byte(tampered))
	assert.ErrorIs(t, err, jose.ErrSecurity)

	c, err := ParseCompact(tampered, nil)
	require.NoError(t, err)
	v, err := NewSignatureVerifier(publicOf(t, key), "")
	require.NoError(t, err)
	assert.ErrorIs(t, c.Verify(v), ErrSignatureInvalid)

	other := testECKey(t, jwk.CurveP256)
	_, err = Verify(publicOf(t, other), []byte(token))
	assert.ErrorIs(t, err, jose.ErrSecurity)
}

func TestECDSA_SignatureEncoding(t *testing.T) {
	tests := []struct {
		crv  jwk.Curve
		alg  jwa.SignatureAlgorithm
		size int
	}{
		{jwk.CurveP256, jwa.ES256, 64},
		{jwk.CurveP384, jwa.ES384, 96},
		{jwk.CurveP521, jwa.ES512, 132},
	}
	for _, tt := range tests {
		t.Run(string(tt.alg), func(t *testing.T) {
			key := testECKey(t, tt.crv)
			token, err := Sign(key, []byte("payload"))
			require.NoError(t, err)

			c, err := ParseCompact(token, nil)
			require.NoError(t, err)
			assert.Equal(t, string(tt.alg), c.Headers.Algorithm())
			assert.Len(t, c.Signature, tt.size)

			v, err := NewSignatureVerifier(publicOf(t, key), tt.alg)
			require.NoError(t, err)
			c.Signature = c.Signature[1:]
			assert.ErrorIs(t, c.Verify(v), ErrSignatureInvalid)
		})
	}

	_, err := NewSignatureProvider(testECKey(t, jwk.CurveP256), jwa.ES384)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestUnencodedPayload(t *testing.T) {
	key := testOctetKey(t, 32)

	token, err := Sign(key, []byte("hello world"), WithUnencodedPayload())
	require.NoError(t, err)
	assert.Contains(t, token, ".hello world.")

	headers, err := PeekHeaders(token)
	require.NoError(t, err)
	assert.False(t, headers.PayloadEncoded())
	assert.Equal(t, []string{"b64"}, headers.Critical())

	out, err := Verify(key, []byte(token))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), out)

	_, err = Sign(key, []byte("$.02"), WithUnencodedPayload())
	assert.ErrorIs(t, err, ErrInvalidFormat)

	detached, err := Sign(key, []byte("$.02"), WithUnencodedPayload(), WithDetached())
	require.NoError(t, err)
	assert.Contains(t, detached, "..")

	out, err = Verify(key, []byte(detached), WithDetachedPayload([]byte("$.02")))
	require.NoError(t, err)
	assert.Equal(t, []byte("$.02"), out)

	_, err = Verify(key, []byte(detached), WithDetachedPayload([]byte("$.03")))
	assert.ErrorIs(t, err, jose.ErrSecurity)
}

func TestUnencodedPayload_RequiresCrit(t *testing.T) {
	key := testOctetKey(t, 32)
	provider, err := NewSignatureProvider(key, jwa.HS256)
	require.NoError(t, err)

	headers := jose.NewHeaders()
	require.NoError(t, headers.Set(jose.HeaderBase64Payload, false))
	encoded, sig, err := sign(provider, headers, []byte("raw"))
	require.NoError(t, err)

	token := encoded + ".raw." + jose.Encode(sig)
	c, err := ParseCompact(token, nil)
	require.NoError(t, err)

	v, err := NewSignatureVerifier(key, jwa.HS256)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Verify(v), jose.ErrMalformedHeader)
}

func TestUnencodedPayload_JSON(t *testing.T) {
	key := testOctetKey(t, 32)
	out, err := SignJSON([]*jwk.JWK{key}, []byte("raw text"), WithUnencodedPayload())
	require.NoError(t, err)
	assert.Contains(t, out, `"payload":"raw text"`)

	payload, err := Verify(key, []byte(out))
	require.NoError(t, err)
	assert.Equal(t, []byte("raw text"), payload)
}

func TestDetachedPayload(t *testing.T) {
	key := testEdKey(t)
	payload := []byte("detached content")

	token, err := Sign(key, payload, WithDetached())
	require.NoError(t, err)
	assert.Contains(t, token, "..")

	out, err := Verify(publicOf(t, key), []byte(token), WithDetachedPayload(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	_, err = Verify(publicOf(t, key), []byte(token))
	assert.ErrorIs(t, err, jose.ErrSecurity)

	attached, err := Sign(key, payload)
	require.NoError(t, err)
	_, err = ParseCompact(attached, payload)
	assert.ErrorIs(t, err, ErrInvalidFormat)

	js, err := SignJSON([]*jwk.JWK{key}, payload, WithDetached())
	require.NoError(t, err)
	assert.NotContains(t, js, `"payload"`)
	out, err = Verify(publicOf(t, key), []byte(js), WithDetachedPayload(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestVerify_UnknownCritical(t *testing.T) {
	key := testOctetKey(t, 32)
	token, err := Sign(key, []byte("x"),
		WithHeader(jose.HeaderCritical, []string{"x-policy"}),
		WithHeader("x-policy", "strict"))
	require.NoError(t, err)

	c, err := ParseCompact(token, nil)
	require.NoError(t, err)
	v, err := NewSignatureVerifier(key, jwa.HS256)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Verify(v), jose.ErrUnsupportedCritical)
}

func TestHMAC_KeyLength(t *testing.T) {
	tests := []struct {
		alg     jwa.SignatureAlgorithm
		keySize int
		ok      bool
	}{
		{jwa.HS256, 16, false},
		{jwa.HS256, 32, true},
		{jwa.HS384, 32, false},
		{jwa.HS384, 48, true},
		{jwa.HS512, 48, false},
		{jwa.HS512, 64, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.alg), func(t *testing.T) {
			_, err := NewHMACSignatureProvider(make([]byte, tt.keySize), tt.alg)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidKey)
			}
		})
	}

	// A 32 byte key may list HS512 but cannot verify with it.
	p, err := NewHMACSignatureProvider(make([]byte, 32), jwa.HS256, jwa.HS512)
	require.NoError(t, err)
	headers := jose.NewHeaders()
	require.NoError(t, headers.Set(jose.HeaderAlgorithm, "HS512"))
	_, err = p.CreateVerification(headers)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestProviderSelection(t *testing.T) {
	rsa := testRSAKey(t)

	_, err := NewSignatureProvider(nil, jwa.RS256)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewSignatureProvider(rsa.WithUse(jwk.UseEncryption), jwa.RS256)
	assert.ErrorIs(t, err, ErrKeyUsage)

	_, err = NewSignatureProvider(rsa.WithAlgorithm("RS256"), jwa.PS256)
	assert.ErrorIs(t, err, ErrAlgorithmMismatch)

	_, err = NewSignatureProvider(publicOf(t, rsa), jwa.RS256)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewSignatureProvider(rsa, jwa.ES256)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	x25519, err := jwk.GenerateOKP(jwk.CurveX25519)
	require.NoError(t, err)
	_, err = NewSignatureProvider(x25519, jwa.EdDSA)
	assert.ErrorIs(t, err, ErrInvalidKey)

	p, err := NewSignatureProvider(rsa.WithAlgorithm("PS384"), "")
	require.NoError(t, err)
	assert.Equal(t, jwa.PS384, p.Algorithm())
}

func TestDefaultAlgorithm(t *testing.T) {
	tests := []struct {
		name string
		key  *jwk.JWK
		want jwa.SignatureAlgorithm
	}{
		{"octet", testOctetKey(t, 32), jwa.HS256},
		{"rsa", testRSAKey(t), jwa.RS256},
		{"p256", testECKey(t, jwk.CurveP256), jwa.ES256},
		{"p384", testECKey(t, jwk.CurveP384), jwa.ES384},
		{"p521", testECKey(t, jwk.CurveP521), jwa.ES512},
		{"ed25519", testEdKey(t), jwa.EdDSA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alg, err := DefaultAlgorithm(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, alg)
		})
	}

	x25519, err := jwk.GenerateOKP(jwk.CurveX25519)
	require.NoError(t, err)
	_, err = DefaultAlgorithm(x25519)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestSignVerifyJWKSet(t *testing.T) {
	signer := testECKey(t, jwk.CurveP256).WithKeyID("signer")
	set := jwk.NewSet(publicOf(t, testRSAKey(t)).WithKeyID("enc-1"), publicOf(t, signer))

	token, err := SignJWKSet(set, signer)
	require.NoError(t, err)

	headers, err := PeekHeaders(token)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeJWKSet, headers.ContentType())

	verified, err := VerifyJWKSet(token, publicOf(t, signer))
	require.NoError(t, err)
	assert.Equal(t, 2, verified.Len())
	k, err := verified.KeyByID("enc-1")
	require.NoError(t, err)
	assert.Equal(t, "RSA", k.Kty)

	_, err = VerifyJWKSet(token, publicOf(t, testECKey(t, jwk.CurveP256)))
	assert.ErrorIs(t, err, jose.ErrSecurity)
}

func hmacToken(t *testing.T, header string, payload, secret []byte) string {
	t.Helper()
	input := jose.EncodeString(header) + "." + jose.Encode(payload)
	mac := hmac.New(sha256.New, secret)
	_, err := mac.Write([]byte(input))
	require.NoError(t, err)
	return input + "." + jose.Encode(mac.Sum(nil))
}
