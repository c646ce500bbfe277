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
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/jeremyhahn/go-trustkit/pkg/crypto/aead"
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

func TestEncryptDecrypt_Matrix(t *testing.T) {
	x25519, err := jwk.GenerateOKP(jwk.CurveX25519)
	require.NoError(t, err)

	tests := []struct {
		name string
		alg  jwa.KeyAlgorithm
		key  func(t *testing.T) *jwk.JWK
	}{
		{"RSA-OAEP", jwa.RSAOAEP, testRSAKey},
		{"RSA-OAEP-256", jwa.RSAOAEP256, testRSAKey},
		{"A128KW", jwa.A128KW, func(t *testing.T) *jwk.JWK { return testOctetKey(t, 16) }},
		{"A192KW", jwa.A192KW, func(t *testing.T) *jwk.JWK { return testOctetKey(t, 24) }},
		{"A256KW", jwa.A256KW, func(t *testing.T) *jwk.JWK { return testOctetKey(t, 32) }},
		{"A128GCMKW", jwa.A128GCMKW, func(t *testing.T) *jwk.JWK { return testOctetKey(t, 16) }},
		{"A256GCMKW", jwa.A256GCMKW, func(t *testing.T) *jwk.JWK { return testOctetKey(t, 32) }},
		{"PBES2-HS256+A128KW", jwa.PBES2HS256A128KW, func(t *testing.T) *jwk.JWK { return testOctetKey(t, 12) }},
		{"PBES2-HS512+A256KW", jwa.PBES2HS512A256KW, func(t *testing.T) *jwk.JWK { return testOctetKey(t, 12) }},
		{"ECDH-ES P-256", jwa.ECDHES, func(t *testing.T) *jwk.JWK { return testECKey(t, jwk.CurveP256) }},
		{"ECDH-ES+A128KW P-384", jwa.ECDHESA128KW, func(t *testing.T) *jwk.JWK { return testECKey(t, jwk.CurveP384) }},
		{"ECDH-ES+A256KW P-521", jwa.ECDHESA256KW, func(t *testing.T) *jwk.JWK { return testECKey(t, jwk.CurveP521) }},
		{"ECDH-ES X25519", jwa.ECDHES, func(*testing.T) *jwk.JWK { return x25519 }},
		{"ECDH-ES+A192KW X25519", jwa.ECDHESA192KW, func(*testing.T) *jwk.JWK { return x25519 }},
	}
	encs := []jwa.ContentAlgorithm{jwa.A128GCM, jwa.A256GCM, jwa.A128CBCHS256, jwa.A256CBCHS512}
	plaintext := []byte("The true sign of intelligence is not knowledge but imagination.")

	for _, tt := range tests {
		for _, enc := range encs {
			t.Run(tt.name+"/"+string(enc), func(t *testing.T) {
				key := tt.key(t)

				token, err := Encrypt(publicOf(t, key), tt.alg, enc, plaintext)
				require.NoError(t, err)
				assert.Len(t, strings.Split(token, "."), 5)

				headers, err := PeekHeaders(token)
				require.NoError(t, err)
				assert.Equal(t, string(tt.alg), headers.Algorithm())
				assert.Equal(t, string(enc), headers.Encryption())

				out, err := Decrypt(key.Clone().WithAlgorithm(string(tt.alg)), []byte(token))
				require.NoError(t, err)
				assert.Equal(t, plaintext, out)

				// alg taken from the header when the JWK has none
				out, err = Decrypt(key, []byte(token))
				require.NoError(t, err)
				assert.Equal(t, plaintext, out)
			})
		}
	}
}

func TestEncryptDecrypt_Direct(t *testing.T) {
	for _, enc := range []jwa.ContentAlgorithm{jwa.A128GCM, jwa.A192GCM, jwa.A256GCM, jwa.A128CBCHS256, jwa.A192CBCHS384, jwa.A256CBCHS512} {
		t.Run(string(enc), func(t *testing.T) {
			key := make([]byte, enc.KeySize())
			for i := range key {
				key[i] = byte(i)
			}

			token, err := EncryptDirect(key, enc, []byte("direct"))
			require.NoError(t, err)
			parts := strings.Split(token, ".")
			require.Len(t, parts, 5)
			assert.Empty(t, parts[1], "dir has an empty encrypted key")

			out, err := DecryptDirect(key, []byte(token))
			require.NoError(t, err)
			assert.Equal(t, []byte("direct"), out)
		})
	}

	_, err := EncryptDirect(make([]byte, 16), jwa.A256GCM, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestDecrypt_WrongKey(t *testing.T) {
	tests := []struct {
		name string
		alg  jwa.KeyAlgorithm
		key  func(t *testing.T) (*jwk.JWK, *jwk.JWK)
	}{
		{"A128KW", jwa.A128KW, func(t *testing.T) (*jwk.JWK, *jwk.JWK) { return testOctetKey(t, 16), testOctetKey(t, 16) }},
		{"A128GCMKW", jwa.A128GCMKW, func(t *testing.T) (*jwk.JWK, *jwk.JWK) { return testOctetKey(t, 16), testOctetKey(t, 16) }},
		{"PBES2", jwa.PBES2HS256A128KW, func(t *testing.T) (*jwk.JWK, *jwk.JWK) { return testOctetKey(t, 10), testOctetKey(t, 10) }},
		{"ECDH-ES", jwa.ECDHES, func(t *testing.T) (*jwk.JWK, *jwk.JWK) {
			return testECKey(t, jwk.CurveP256), testECKey(t, jwk.CurveP256)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			right, wrong := tt.key(t)
			token, err := Encrypt(publicOf(t, right), tt.alg, jwa.A128GCM, []byte("secret"))
			require.NoError(t, err)

			_, err = Decrypt(wrong, []byte(token))
			assert.ErrorIs(t, err, jose.ErrSecurity)
		})
	}
}

func TestDecrypt_RSAWrongKeyReportsSecurityError(t *testing.T) {
	other, err := jwk.GenerateRSA(2048)
	require.NoError(t, err)

	token, err := Encrypt(publicOf(t, testRSAKey(t)), jwa.RSAOAEP256, jwa.A256GCM, []byte("secret"))
	require.NoError(t, err)

	_, err = Decrypt(other, []byte(token))
	assert.ErrorIs(t, err, jose.ErrSecurity)
}

func TestDecrypt_Tampering(t *testing.T) {
	key := testOctetKey(t, 16)
	token, err := Encrypt(key, jwa.A128KW, jwa.A128GCM, []byte("do not touch"))
	require.NoError(t, err)

	for i, name := range []string{"header", "encrypted key", "iv", "ciphertext", "tag"} {
		t.Run(name, func(t *testing.T) {
			parts := strings.Split(token, ".")
			raw, err := jose.Decode(parts[i])
			require.NoError(t, err)
			if i == 0 {
				raw = bytes.Replace(raw, []byte(`"A128GCM"`), []byte(`"A128GCM","x":1`), 1)
			} else {
				raw[len(raw)-1] ^= 0x01
			}
			parts[i] = jose.Encode(raw)

			_, err = Decrypt(key, []byte(strings.Join(parts, ".")))
			assert.ErrorIs(t, err, jose.ErrSecurity)
		})
	}
}

func TestParseCompact(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     error
	}{
		{"too few segments", "a.b.c.d", ErrInvalidFormat},
		{"too many segments", "a.b.c.d.e.f", ErrInvalidFormat},
		{"empty iv", jose.EncodeString(`{"alg":"dir","enc":"A128GCM"}`) + "...Y3Q.dGFn", ErrInvalidFormat},
		{"empty tag", jose.EncodeString(`{"alg":"dir","enc":"A128GCM"}`) + "..aXY.Y3Q.", ErrInvalidFormat},
		{"bad header json", jose.EncodeString(`not json`) + "..aXY.Y3Q.dGFn", jose.ErrMalformedHeader},
		{"bad base64", jose.EncodeString(`{"alg":"dir"}`) + "..a*Y.Y3Q.dGFn", jose.ErrInvalidEncoding},
		{"non-string iv header", jose.EncodeString(`{"alg":"A128GCMKW","enc":"A128GCM","iv":123,"tag":"dGFn"}`) + ".a2V5.aXY.Y3Q.dGFn", jose.ErrMalformedHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCompact(tt.content)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestExtractKeyID(t *testing.T) {
	key := testOctetKey(t, 16).WithKeyID("kek-1")
	token, err := Encrypt(key, jwa.A128KW, jwa.A128GCM, []byte("x"))
	require.NoError(t, err)

	kid, err := ExtractKeyID(token)
	require.NoError(t, err)
	assert.Equal(t, "kek-1", kid)

	_, err = ExtractKeyID("garbage")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestDecrypt_GCMKWHeaderValidation(t *testing.T) {
	key := testOctetKey(t, 16)
	provider, err := NewAESGCMKeyWrap(mustSymmetric(t, key), jwa.A128GCMKW)
	require.NoError(t, err)

	headers := jose.NewHeaders()
	require.NoError(t, headers.Set(jose.HeaderEncryption, "A128GCM"))
	encryptedKey, err := provider.EncryptKey(headers, make([]byte, 16))
	require.NoError(t, err)

	missing := headers.Clone()
	missing.Delete(jose.HeaderTag)
	_, err = provider.DecryptKey(missing, encryptedKey)
	assert.ErrorIs(t, err, jose.ErrMissingHeader)

	short := headers.Clone()
	require.NoError(t, short.Set(jose.HeaderIV, jose.Encode([]byte{1, 2, 3})))
	_, err = provider.DecryptKey(short, encryptedKey)
	assert.Error(t, err)

	notBase64 := headers.Clone()
	require.NoError(t, notBase64.Set(jose.HeaderIV, "!!"))
	_, err = provider.DecryptKey(notBase64, encryptedKey)
	assert.ErrorIs(t, err, jose.ErrMalformedHeader)

	assert.Error(t, headers.Clone().Set(jose.HeaderIV, 12), "non-string iv is rejected on set")

	cek, err := provider.DecryptKey(headers, encryptedKey)
	require.NoError(t, err)
	defer cek.Destroy()
	assert.Equal(t, make([]byte, 16), cek.Bytes())
}

func TestPBES2_IterationLimits(t *testing.T) {
	password := []byte("correct horse battery staple")

	token, err := EncryptWithPassword(password, jwa.A128GCM, []byte("x"), WithPBES2Iterations(5000))
	require.NoError(t, err)
	headers, err := PeekHeaders(token)
	require.NoError(t, err)
	p2c, ok := headers.Int(jose.HeaderPBES2Count)
	require.True(t, ok)
	assert.Equal(t, int64(5000), p2c)
	p2s, err := headers.Bytes(jose.HeaderPBES2Salt)
	require.NoError(t, err)
	assert.Len(t, p2s, PBES2SaltSize)

	out, err := DecryptWithPassword(password, []byte(token))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), out)

	// Above the configured cap: rejected before any derivation.
	_, err = DecryptWithPassword(password, []byte(token), WithMaxPBES2Iterations(4096))
	assert.ErrorIs(t, err, jose.ErrSecurity)

	_, err = EncryptWithPassword(password, jwa.A128GCM, []byte("x"), WithPBES2Iterations(10))
	assert.Error(t, err)

	_, err = DecryptWithPassword([]byte("wrong"), []byte(token))
	assert.ErrorIs(t, err, jose.ErrSecurity)
}

func TestPBES2_ExcessiveIterationCountRejected(t *testing.T) {
	password := []byte("password")
	provider, err := NewPBES2KeyDecryption(password, jwa.PBES2HS256A128KW, 0)
	require.NoError(t, err)
	assert.Equal(t, 1_000_000, provider.MaxIterations())

	headers := jose.NewHeaders()
	require.NoError(t, headers.Set(jose.HeaderPBES2Salt, jose.Encode(make([]byte, 16))))
	require.NoError(t, headers.Set(jose.HeaderPBES2Count, int64(1_000_000_000)))

	_, err = provider.DecryptKey(headers, make([]byte, 24))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "p2c")
}

func TestECDH_PartyInfo(t *testing.T) {
	key := testECKey(t, jwk.CurveP256)
	m, err := key.Material()
	require.NoError(t, err)
	pub, err := ecdhPublicKey(m)
	require.NoError(t, err)
	priv, err := ecdhPrivateKey(m)
	require.NoError(t, err)

	_, err = NewECDHKeyEncryption(pub, jwa.ECDHES, []byte("same"), []byte("same"))
	assert.ErrorIs(t, err, ErrInvalidKey)

	enc, err := NewECDHKeyEncryption(pub, jwa.ECDHESA128KW, []byte("Alice"), []byte("Bob"))
	require.NoError(t, err)
	dec, err := NewECDHKeyDecryption(priv, jwa.ECDHESA128KW)
	require.NoError(t, err)

	headers := jose.NewHeaders()
	cek := bytes.Repeat([]byte{7}, 16)
	encryptedKey, err := enc.EncryptKey(headers, cek)
	require.NoError(t, err)
	assert.True(t, headers.Has(jose.HeaderEphemeralKey))

	got, err := dec.DecryptKey(headers, encryptedKey)
	require.NoError(t, err)
	assert.Equal(t, cek, got.Bytes())

	equal := headers.Clone()
	require.NoError(t, equal.Set(jose.HeaderAgreementPartyV, jose.EncodeString("Alice")))
	_, err = dec.DecryptKey(equal, encryptedKey)
	assert.ErrorIs(t, err, jose.ErrMalformedHeader)

	otherCurve := headers.Clone()
	other := testECKey(t, jwk.CurveP384)
	otherPub, err := other.Public()
	require.NoError(t, err)
	require.NoError(t, otherCurve.Set(jose.HeaderEphemeralKey, otherPub))
	_, err = dec.DecryptKey(otherCurve, encryptedKey)
	assert.ErrorIs(t, err, jose.ErrMalformedHeader)

	privateEPK := headers.Clone()
	require.NoError(t, privateEPK.Set(jose.HeaderEphemeralKey, testECKey(t, jwk.CurveP256)))
	_, err = dec.DecryptKey(privateEPK, encryptedKey)
	assert.ErrorIs(t, err, jose.ErrMalformedHeader)
}

func TestProviderSelection(t *testing.T) {
	rsaPub := publicOf(t, testRSAKey(t))

	tests := []struct {
		name string
		key  *jwk.JWK
		alg  jwa.KeyAlgorithm
		err  error
	}{
		{"RSA key with AES-KW", rsaPub, jwa.A128KW, ErrUnsupportedAlgorithm},
		{"octet key with RSA-OAEP", testOctetKey(t, 16), jwa.RSAOAEP, ErrUnsupportedAlgorithm},
		{"RSA1_5 is not supported", rsaPub, jwa.KeyAlgorithm("RSA1_5"), ErrUnsupportedAlgorithm},
		{"no alg anywhere", rsaPub, "", ErrUnsupportedAlgorithm},
		{"JWK alg conflicts", rsaPub.Clone().WithAlgorithm("RSA-OAEP"), jwa.RSAOAEP256, ErrAlgorithmMismatch},
		{"signature key", rsaPub.Clone().WithUse(jwk.UseSignature), jwa.RSAOAEP256, ErrKeyUsage},
		{"nil key", nil, jwa.RSAOAEP256, ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewKeyEncryptionProvider(tt.key, tt.alg)
			assert.ErrorIs(t, err, tt.err)
			assert.Nil(t, p)
		})
	}

	p, err := NewKeyEncryptionProvider(rsaPub.Clone().WithAlgorithm("RSA-OAEP-256"), "")
	require.NoError(t, err)
	assert.Equal(t, jwa.RSAOAEP256, p.Algorithm())
}

func TestRSA_RejectsSmallModulus(t *testing.T) {
	small, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	_, err = NewRSAKeyEncryption(&small.PublicKey, jwa.RSAOAEP)
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = NewRSAKeyDecryption(small, jwa.RSAOAEP)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestJSONSerialization_Flattened(t *testing.T) {
	key := testOctetKey(t, 32)
	provider, err := NewKeyEncryptionProvider(key, jwa.A256KW)
	require.NoError(t, err)

	e, err := NewEncryption(provider, jwa.A256GCM,
		WithFlattened(),
		WithAAD([]byte("external data")),
		WithUnprotectedHeader("jku", "https://example.com/keys"))
	require.NoError(t, err)

	out, err := e.EncryptJSON([]byte("flattened"))
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &raw))
	assert.NotContains(t, raw, "recipients")
	assert.Contains(t, raw, "encrypted_key")
	assert.Contains(t, raw, "aad")

	dp, err := NewKeyDecryptionProvider(key, jwa.A256KW)
	require.NoError(t, err)
	d, err := NewDecryption(dp)
	require.NoError(t, err)

	res, err := d.Decrypt(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("flattened"), res.Content)
	assert.Equal(t, []byte("external data"), res.AAD)
	assert.Equal(t, "https://example.com/keys", mustString(t, res.Headers, "jku"))

	// AAD is authenticated.
	tampered := bytes.Replace(out, []byte(jose.EncodeString("external data")), []byte(jose.EncodeString("external dat4")), 1)
	_, err = d.Decrypt(tampered)
	assert.ErrorIs(t, err, jose.ErrSecurity)
}

func TestJSONSerialization_MultipleRecipients(t *testing.T) {
	alice := testOctetKey(t, 16)
	bob := testECKey(t, jwk.CurveP256)
	carol := testRSAKey(t)

	pa, err := NewKeyEncryptionProvider(alice, jwa.A128KW)
	require.NoError(t, err)
	pb, err := NewKeyEncryptionProvider(publicOf(t, bob), jwa.ECDHESA128KW)
	require.NoError(t, err)
	pc, err := NewKeyEncryptionProvider(publicOf(t, carol), jwa.RSAOAEP256)
	require.NoError(t, err)

	e, err := NewMultiRecipientEncryption([]Recipient{
		{Provider: pa, Headers: map[string]interface{}{"kid": "alice"}},
		{Provider: pb, Headers: map[string]interface{}{"kid": "bob"}},
		{Provider: pc, Headers: map[string]interface{}{"kid": "carol"}},
	}, jwa.A128CBCHS256, WithCompression())
	require.NoError(t, err)

	plaintext := bytes.Repeat([]byte("shared secret "), 64)
	out, err := e.EncryptJSON(plaintext)
	require.NoError(t, err)

	parsed, err := ParseJSON(out)
	require.NoError(t, err)
	require.Len(t, parsed.Recipients, 3)
	assert.False(t, parsed.Flattened)
	assert.Equal(t, "DEF", parsed.Protected.Compression())
	assert.Less(t, len(parsed.Ciphertext), len(plaintext))

	for i, tc := range []struct {
		key *jwk.JWK
		alg jwa.KeyAlgorithm
	}{{alice, jwa.A128KW}, {bob, jwa.ECDHESA128KW}, {carol, jwa.RSAOAEP256}} {
		dp, err := NewKeyDecryptionProvider(tc.key, tc.alg)
		require.NoError(t, err)
		d, err := NewDecryption(dp)
		require.NoError(t, err)

		res, err := d.DecryptJSON(out)
		require.NoError(t, err)
		assert.Equal(t, plaintext, res.Content)
		assert.Equal(t, i, res.Recipient)
	}

	// kid filter selects nothing
	dp, err := NewKeyDecryptionProvider(alice, jwa.A128KW)
	require.NoError(t, err)
	d, err := NewDecryption(dp, WithKeyID("mallory"))
	require.NoError(t, err)
	_, err = d.DecryptJSON(out)
	assert.ErrorIs(t, err, jose.ErrSecurity)

	_, err = e.Encrypt(plaintext)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestMultiRecipient_RejectsDirect(t *testing.T) {
	dir, err := NewDirectEncryption(make([]byte, 16))
	require.NoError(t, err)
	kw, err := NewAESKeyWrap(make([]byte, 16), jwa.A128KW)
	require.NoError(t, err)

	_, err = NewMultiRecipientEncryption([]Recipient{{Provider: dir}, {Provider: kw}}, jwa.A128GCM)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = NewMultiRecipientEncryption(nil, jwa.A128GCM)
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestParseJSON_DuplicateHeader(t *testing.T) {
	protected := jose.EncodeString(`{"enc":"A128GCM","kid":"a"}`)
	doc := `{"protected":"` + protected + `","header":{"alg":"A128KW","kid":"b"},"encrypted_key":"a2V5","iv":"aXY","ciphertext":"Y3Q","tag":"dGFn"}`

	c, err := ParseJSON([]byte(doc))
	require.NoError(t, err)
	_, err = c.RecipientHeaders(0)
	assert.ErrorIs(t, err, jose.ErrDuplicateHeader)
}

func TestParseJSON_GeneralIgnoresTopLevelRecipientMembers(t *testing.T) {
	protected := jose.EncodeString(`{"enc":"A128GCM"}`)
	doc := `{"protected":"` + protected + `",` +
		`"recipients":[{"header":{"alg":"A128KW","kid":"a"},"encrypted_key":"a2V5"},{"header":{"alg":"A256KW","kid":"b"},"encrypted_key":"b3RoZXI"}],` +
		`"header":{"alg":"A128KW","kid":"a"},"encrypted_key":"a2V5","iv":"aXY","ciphertext":"Y3Q","tag":"dGFn"}`

	c, err := ParseJSON([]byte(doc))
	require.NoError(t, err)
	assert.False(t, c.Flattened)
	require.Len(t, c.Recipients, 2)
	assert.Equal(t, []byte("key"), c.Recipients[0].EncryptedKey)
	assert.Equal(t, []byte("other"), c.Recipients[1].EncryptedKey)

	headers, err := c.RecipientHeaders(1)
	require.NoError(t, err)
	assert.Equal(t, "b", headers.KeyID())
}

func TestCompression(t *testing.T) {
	key := testOctetKey(t, 16)
	plaintext := bytes.Repeat([]byte("a"), 4096)

	token, err := Encrypt(key, jwa.A128KW, jwa.A128GCM, plaintext, WithCompression())
	require.NoError(t, err)
	headers, err := PeekHeaders(token)
	require.NoError(t, err)
	assert.Equal(t, "DEF", headers.Compression())

	out, err := Decrypt(key, []byte(token))
	require.NoError(t, err)
	assert.Equal(t, plaintext, out)

	_, err = Decrypt(key, []byte(token), WithMaxInflatedSize(1024))
	assert.ErrorIs(t, err, jose.ErrSecurity)
}

func TestAllowedContentAlgorithms(t *testing.T) {
	key := testOctetKey(t, 16)
	token, err := Encrypt(key, jwa.A128KW, jwa.A128CBCHS256, []byte("x"))
	require.NoError(t, err)

	_, err = Decrypt(key, []byte(token), WithAllowedContentAlgorithms(jwa.A128GCM))
	assert.ErrorIs(t, err, jose.ErrSecurity)

	out, err := Decrypt(key, []byte(token), WithAllowedContentAlgorithms(jwa.A128CBCHS256))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), out)
}

func TestCriticalHeaderRejected(t *testing.T) {
	key := make([]byte, 16)
	token, err := EncryptDirect(key, jwa.A128GCM, []byte("x"),
		WithHeader(jose.HeaderCritical, []string{"exp"}),
		WithHeader("exp", 1))
	require.NoError(t, err)

	_, err = DecryptDirect(key, []byte(token))
	assert.ErrorIs(t, err, jose.ErrSecurity)
}

func TestNonceTracker_Direct(t *testing.T) {
	nt := aead.NewNonceTracker()
	key := make([]byte, 16)

	for i := 0; i < 10; i++ {
		_, err := EncryptDirect(key, jwa.A128GCM, []byte("x"), WithNonceTracker(nt), WithKeyID("k"))
		require.NoError(t, err)
	}
	assert.Equal(t, 10, nt.Count("k"))
}

func TestJWKSetEncryption(t *testing.T) {
	password := []byte("key store password")
	set := jwk.NewSet(testECKey(t, jwk.CurveP256).WithKeyID("ec"), testOctetKey(t, 32).WithKeyID("oct"))

	token, err := EncryptJWKSet(set, password)
	require.NoError(t, err)
	headers, err := PeekHeaders(token)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeJWKSet, headers.ContentType())
	assert.Equal(t, string(DefaultPasswordAlgorithm), headers.Algorithm())

	out, err := DecryptJWKSet(token, password)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	got, err := out.KeyByID("oct")
	require.NoError(t, err)
	assert.Equal(t, set.Keys[1].K, got.K)

	_, err = DecryptJWKSet(token, []byte("nope"))
	assert.ErrorIs(t, err, jose.ErrSecurity)

	single, err := EncryptJWK(set.Keys[0], password)
	require.NoError(t, err)
	key, err := DecryptJWK(single, password)
	require.NoError(t, err)
	assert.Equal(t, set.Keys[0].D, key.D)
}

func TestKeySetEncrypterDecrypter(t *testing.T) {
	ec := testECKey(t, jwk.CurveP256).WithKeyID("ec-1")
	oct := testOctetKey(t, 16).WithKeyID("oct-1").WithAlgorithm(string(jwa.A128KW))
	private := jwk.NewSet(ec, oct)
	public, err := private.Public()
	require.NoError(t, err)
	public.Add(oct)

	encrypter, err := NewKeySetEncrypter("", jwa.A256GCM, SetLookup(public))
	require.NoError(t, err)
	decrypter := NewKeySetDecrypter(SetLookup(private))

	_, err = encrypter.EncryptWithKeyID([]byte("x"), "ec-1")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm, "EC key without alg needs an explicit algorithm")

	token, err := encrypter.EncryptWithKeyID([]byte("for oct"), "oct-1")
	require.NoError(t, err)
	out, err := decrypter.DecryptWithAutoKeyID(token)
	require.NoError(t, err)
	assert.Equal(t, []byte("for oct"), out)

	ecEncrypter, err := NewKeySetEncrypter(jwa.ECDHESA256KW, "", SetLookup(public))
	require.NoError(t, err)
	token, err = ecEncrypter.EncryptWithKeyID([]byte("for ec"), "ec-1")
	require.NoError(t, err)
	out, err = decrypter.DecryptWithAutoKeyID(token)
	require.NoError(t, err)
	assert.Equal(t, []byte("for ec"), out)

	_, err = encrypter.EncryptWithKeyID([]byte("x"), "missing")
	assert.ErrorIs(t, err, jwk.ErrKeyNotFound)

	noKid, err := Encrypt(oct.Clone().WithKeyID(""), jwa.A128KW, jwa.A128GCM, []byte("x"))
	require.NoError(t, err)
	_, err = decrypter.DecryptWithAutoKeyID(noKid)
	assert.ErrorIs(t, err, jose.ErrSecurity)

	_, err = NewKeySetEncrypter("RSA1_5", jwa.A256GCM, SetLookup(public))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func mustSymmetric(t *testing.T, key *jwk.JWK) []byte {
	t.Helper()
	b, err := key.ToSymmetricKey()
	require.NoError(t, err)
	return b
}

func mustString(t *testing.T, h *jose.Headers, name string) string {
	t.Helper()
	s, ok := h.String(name)
	require.True(t, ok, name)
	return s
}

func mustECDSA(t *testing.T, key *jwk.JWK) *ecdsa.PrivateKey {
	t.Helper()
	priv, err := key.ToPrivateKey()
	require.NoError(t, err)
	return priv.(*ecdsa.PrivateKey)
}

func mustRSA(t *testing.T, key *jwk.JWK) *rsa.PrivateKey {
	t.Helper()
	priv, err := key.ToPrivateKey()
	require.NoError(t, err)
	return priv.(*rsa.PrivateKey)
}
