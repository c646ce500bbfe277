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

package jwt

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwe"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://sts.example.com"
	testAudience = "https://service.example.com/api"
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

func testECKey(t *testing.T) *jwk.JWK {
	t.Helper()
	key, err := jwk.GenerateEC(jwk.CurveP256)
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

func TestSignVerify(t *testing.T) {
	ed, err := jwk.GenerateOKP(jwk.CurveEd25519)
	require.NoError(t, err)
	octet, err := jwk.GenerateOctet(32, "")
	require.NoError(t, err)

	tests := []struct {
		name string
		key  *jwk.JWK
		alg  jwa.SignatureAlgorithm
	}{
		{"HS256", octet, jwa.HS256},
		{"RS256", testRSAKey(t), jwa.RS256},
		{"PS384", testRSAKey(t).WithAlgorithm("PS384"), jwa.PS384},
		{"ES256", testECKey(t), jwa.ES256},
		{"EdDSA", ed, jwa.EdDSA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := tt.key.WithKeyID("sig-1")
			claims := NewClaims(testIssuer, "alice", []string{testAudience}, time.Hour)
			claims["role"] = "admin"

			token, err := Sign(key, claims)
			require.NoError(t, err)
			assert.Equal(t, 2, strings.Count(token, "."))

			tok, err := Verify(publicOf(t, key), token, WithIssuer(testIssuer), WithAudience(testAudience))
			require.NoError(t, err)
			assert.False(t, tok.Encrypted)
			assert.Equal(t, string(tt.alg), tok.Headers.Algorithm())
			assert.Equal(t, TypeJWT, tok.Headers.Type())
			assert.Equal(t, "sig-1", tok.Headers.KeyID())
			assert.Equal(t, "admin", tok.Claims["role"])

			sub, err := tok.Claims.GetSubject()
			require.NoError(t, err)
			assert.Equal(t, "alice", sub)
		})
	}
}

func TestNewClaims(t *testing.T) {
	c := NewClaims(testIssuer, "", []string{"a", "b"}, 0)
	assert.Equal(t, testIssuer, c[ClaimIssuer])
	assert.NotContains(t, c, ClaimSubject)
	assert.NotContains(t, c, ClaimExpiration)
	assert.Equal(t, []string{"a", "b"}, c[ClaimAudience])
	assert.NotEmpty(t, c[ClaimID])

	single := NewClaims("", "bob", []string{"a"}, time.Minute)
	assert.Equal(t, "a", single[ClaimAudience])
	assert.NotContains(t, single, ClaimIssuer)
	assert.Contains(t, single, ClaimExpiration)
	assert.NotEqual(t, c[ClaimID], single[ClaimID])
}

func TestProducer_DoesNotModifyClaims(t *testing.T) {
	key := testECKey(t)
	provider, err := jws.NewSignatureProvider(key, "")
	require.NoError(t, err)
	producer, err := NewProducer(provider, WithHeader("x-tenant", "blue"))
	require.NoError(t, err)

	claims := Claims{ClaimSubject: "alice"}
	token, err := producer.Produce(claims)
	require.NoError(t, err)
	assert.NotContains(t, claims, ClaimID)

	tok, err := Verify(publicOf(t, key), token)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Claims[ClaimID])
	v, ok := tok.Headers.String("x-tenant")
	require.True(t, ok)
	assert.Equal(t, "blue", v)
}

func TestConsumer_ClaimValidation(t *testing.T) {
	key := testECKey(t)
	pub := publicOf(t, key)
	now := time.Now()

	tests := []struct {
		name   string
		claims Claims
		opts   []Option
		err    error
	}{
		{
			name:   "expired",
			claims: Claims{ClaimExpiration: now.Add(-time.Hour).Unix()},
			err:    jwt.ErrTokenExpired,
		},
		{
			name:   "expired within leeway",
			claims: Claims{ClaimExpiration: now.Add(-10 * time.Second).Unix()},
		},
		{
			name:   "expired without leeway",
			claims: Claims{ClaimExpiration: now.Add(-10 * time.Second).Unix()},
			opts:   []Option{WithLeeway(0)},
			err:    jwt.ErrTokenExpired,
		},
		{
			name:   "not yet valid",
			claims: Claims{ClaimNotBefore: now.Add(time.Hour).Unix()},
			err:    jwt.ErrTokenNotValidYet,
		},
		{
			name:   "issued in the future",
			claims: Claims{ClaimIssuedAt: now.Add(time.Hour).Unix()},
			opts:   []Option{WithIssuedAt()},
			err:    jwt.ErrTokenUsedBeforeIssued,
		},
		{
			name:   "wrong issuer",
			claims: Claims{ClaimIssuer: "https://evil.example.com"},
			opts:   []Option{WithIssuer(testIssuer)},
			err:    jwt.ErrTokenInvalidIssuer,
		},
		{
			name:   "wrong audience",
			claims: Claims{ClaimAudience: []string{"urn:other"}},
			opts:   []Option{WithAudience(testAudience)},
			err:    jwt.ErrTokenInvalidAudience,
		},
		{
			name:   "audience in list",
			claims: Claims{ClaimAudience: []string{"urn:other", testAudience}},
			opts:   []Option{WithAudience(testAudience)},
		},
		{
			name:   "wrong subject",
			claims: Claims{ClaimSubject: "mallory"},
			opts:   []Option{WithSubject("alice")},
			err:    jwt.ErrTokenInvalidSubject,
		},
		{
			name:   "missing exp",
			claims: Claims{ClaimSubject: "alice"},
			opts:   []Option{WithExpirationRequired()},
			err:    jwt.ErrTokenRequiredClaimMissing,
		},
		{
			name:   "clock moved forward",
			claims: Claims{ClaimExpiration: now.Add(time.Hour).Unix()},
			opts:   []Option{WithTimeFunc(func() time.Time { return now.Add(2 * time.Hour) })},
			err:    jwt.ErrTokenExpired,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := Sign(key, tt.claims)
			require.NoError(t, err)

			_, err = Verify(pub, token, tt.opts...)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestConsumer_RejectsBadSignatures(t *testing.T) {
	key := testRSAKey(t)
	pub := publicOf(t, key)

	token, err := Sign(key, Claims{ClaimSubject: "alice"}, WithAlgorithm(jwa.PS256))
	require.NoError(t, err)

	_, err = Verify(pub, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jws.ErrAlgorithmNotAllowed)

	_, err = Verify(pub, token, WithAllowedAlgorithms(jwa.PS256))
	assert.NoError(t, err)

	parts := strings.Split(token, ".")
	forged := parts[0] + "." + jose.EncodeString(`{"sub":"admin"}`) + "." + parts[2]
	_, err = Verify(pub, forged, WithAlgorithm(jwa.PS256))
	assert.ErrorIs(t, err, jws.ErrSignatureInvalid)

	none := jose.EncodeString(`{"alg":"none","typ":"JWT"}`) + "." + jose.EncodeString(`{"sub":"admin"}`) + "."
	_, err = Verify(pub, none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewConsumer(nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNestedToken(t *testing.T) {
	signing := testECKey(t)
	recipient := testRSAKey(t)

	provider, err := jws.NewSignatureProvider(signing, "")
	require.NoError(t, err)
	encrypter, err := jwe.NewKeyEncryptionProvider(publicOf(t, recipient), jwa.RSAOAEP256)
	require.NoError(t, err)
	producer, err := NewProducer(provider, WithEncryption(encrypter, jwa.A256GCM))
	require.NoError(t, err)

	token, err := producer.ProduceFor(testIssuer, "alice", []string{testAudience}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(token, "."))

	headers, err := jwe.PeekHeaders(token)
	require.NoError(t, err)
	assert.Equal(t, TypeJWT, headers.ContentType())

	verifier, err := jws.NewSignatureVerifier(publicOf(t, signing), "")
	require.NoError(t, err)
	decrypter, err := jwe.NewKeyDecryptionProvider(recipient, jwa.RSAOAEP256)
	require.NoError(t, err)

	consumer, err := NewConsumer(verifier, WithDecryption(decrypter), WithRequiredEncryption(), WithAudience(testAudience))
	require.NoError(t, err)
	tok, err := consumer.Consume(token)
	require.NoError(t, err)
	assert.True(t, tok.Encrypted)
	assert.Equal(t, 2, strings.Count(tok.Raw, "."))

	plain, err := NewConsumer(verifier)
	require.NoError(t, err)
	_, err = plain.Consume(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	signed, err := Sign(signing, Claims{ClaimSubject: "alice"})
	require.NoError(t, err)
	_, err = consumer.Consume(signed)
	assert.ErrorIs(t, err, ErrEncryptionRequired)

	other, err := jwe.NewKeyDecryptionProvider(testRSAKeyOther(t), jwa.RSAOAEP256)
	require.NoError(t, err)
	wrong, err := NewConsumer(verifier, WithDecryption(other))
	require.NoError(t, err)
	_, err = wrong.Consume(token)
	assert.ErrorIs(t, err, jose.ErrSecurity)
}

func testRSAKeyOther(t *testing.T) *jwk.JWK {
	t.Helper()
	key, err := jwk.GenerateRSA(2048)
	require.NoError(t, err)
	return key
}

func TestSigningMethod(t *testing.T) {
	key := testECKey(t)
	provider, err := jws.NewSignatureProvider(key, jwa.ES256)
	require.NoError(t, err)
	verifier, err := jws.NewSignatureVerifier(publicOf(t, key), jwa.ES256)
	require.NoError(t, err)

	method, err := NewSigningMethod(jwa.ES256)
	require.NoError(t, err)
	assert.Equal(t, "ES256", method.Alg())

	token, err := jwt.NewWithClaims(method, jwt.MapClaims{"sub": "alice"}).SignedString(provider)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig, err := jose.Decode(parts[2])
	require.NoError(t, err)
	require.NoError(t, method.Verify(parts[0]+"."+parts[1], sig, verifier))
	assert.ErrorIs(t, method.Verify(parts[0]+".e30", sig, verifier), jwt.ErrSignatureInvalid)

	_, err = method.Sign("x.y", "not a provider")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, method.Verify("x.y", sig, publicOf(t, key)), ErrInvalidKey)

	hs, err := NewSigningMethod(jwa.HS256)
	require.NoError(t, err)
	_, err = hs.Sign("x.y", provider)
	assert.ErrorIs(t, err, jws.ErrAlgorithmNotAllowed)

	_, err = NewSigningMethod(jwa.None)
	assert.ErrorIs(t, err, jwa.ErrUnsupportedAlgorithm)
}

func TestInterop_GolangJWT(t *testing.T) {
	key := testRSAKey(t)
	priv, err := key.ToPrivateKey()
	require.NoError(t, err)
	pub, err := key.ToPublicKey()
	require.NoError(t, err)

	// golang-jwt signs with its built-in method, we verify.
	theirs, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": testIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(priv)
	require.NoError(t, err)
	tok, err := Verify(publicOf(t, key), theirs, WithIssuer(testIssuer))
	require.NoError(t, err)
	iss, err := tok.Claims.GetIssuer()
	require.NoError(t, err)
	assert.Equal(t, testIssuer, iss)

	// We sign, golang-jwt verifies with its built-in method.
	ours, err := Sign(key, NewClaims(testIssuer, "alice", nil, time.Hour))
	require.NoError(t, err)
	parsed, err := jwt.Parse(ours, func(*jwt.Token) (interface{}, error) { return pub, nil },
		jwt.WithValidMethods([]string{"RS256"}), jwt.WithIssuer(testIssuer))
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
}

func TestKeySetSignerVerifier(t *testing.T) {
	k1 := testECKey(t).WithKeyID("sts-1")
	k2 := testRSAKey(t).WithKeyID("sts-2")
	private := jwk.NewSet(k1, k2)
	public := jwk.NewSet(publicOf(t, k1), publicOf(t, k2))

	signer := NewKeySetSigner(jwe.SetLookup(private))
	verifier := NewKeySetVerifier(jwe.SetLookup(public), WithIssuer(testIssuer))

	for _, kid := range []string{"sts-1", "sts-2"} {
		token, err := signer.SignWithKeyID(kid, NewClaims(testIssuer, "alice", nil, time.Hour))
		require.NoError(t, err)

		got, err := ExtractKeyID(token)
		require.NoError(t, err)
		assert.Equal(t, kid, got)

		tok, err := verifier.VerifyWithAutoKeyID(token)
		require.NoError(t, err)
		assert.Equal(t, kid, tok.Headers.KeyID())
	}

	_, err := signer.SignWithKeyID("missing", Claims{})
	assert.ErrorIs(t, err, jwk.ErrKeyNotFound)

	noKid, err := Sign(testECKey(t), Claims{})
	require.NoError(t, err)
	_, err = verifier.VerifyWithAutoKeyID(noKid)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// A token naming sts-1 but signed by sts-2 fails.
	mixed, err := Sign(k2, NewClaims(testIssuer, "", nil, time.Hour), WithKeyID("sts-1"))
	require.NoError(t, err)
	_, err = verifier.VerifyWithAutoKeyID(mixed)
	assert.Error(t, err)
}

func TestParseClaims(t *testing.T) {
	c, err := ParseClaims([]byte(`{"exp":1700000000,"big":12345678901234567890}`))
	require.NoError(t, err)
	exp, err := c.GetExpirationTime()
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), exp.Unix())
	assert.Equal(t, "12345678901234567890", c["big"].(interface{ String() string }).String())

	for _, input := range []string{`[]`, `null`, `{`, `"x"`} {
		_, err := ParseClaims([]byte(input))
		assert.True(t, errors.Is(err, jwt.ErrTokenMalformed), input)
	}
}
