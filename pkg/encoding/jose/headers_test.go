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

package jose

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaders_TypedAccess(t *testing.T) {
	h, err := ParseHeaders([]byte(`{"alg":"PBES2-HS256+A128KW","enc":"A128GCM","p2c":4096,"p2s":"c2FsdA","kid":"k1","crit":["exp"],"exp":1,"b64":false}`))
	require.NoError(t, err)

	assert.Equal(t, "PBES2-HS256+A128KW", h.Algorithm())
	assert.Equal(t, "A128GCM", h.Encryption())
	assert.Equal(t, "k1", h.KeyID())
	assert.Equal(t, []string{"exp"}, h.Critical())
	assert.False(t, h.PayloadEncoded())

	count, ok := h.Int(HeaderPBES2Count)
	require.True(t, ok)
	assert.Equal(t, int64(4096), count)

	salt, err := h.Bytes(HeaderPBES2Salt)
	require.NoError(t, err)
	assert.Equal(t, []byte("salt"), salt)
}

func TestParseHeaders_RejectsWrongTypes(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"numeric iv", `{"alg":"A128GCMKW","iv":12345}`},
		{"object tag", `{"alg":"A128GCMKW","tag":{"a":1}}`},
		{"numeric alg", `{"alg":1}`},
		{"fractional p2c", `{"p2c":10.5}`},
		{"negative p2c", `{"p2c":-1}`},
		{"string p2c", `{"p2c":"1000"}`},
		{"string epk", `{"epk":"abc"}`},
		{"crit with number", `{"crit":["a",1]}`},
		{"string b64", `{"b64":"false"}`},
		{"array header", `["alg"]`},
		{"null header", `null`},
		{"trailing data", `{"alg":"dir"}{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHeaders([]byte(tt.json))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedHeader), "got %v", err)
		})
	}
}

func TestHeaders_BytesErrors(t *testing.T) {
	h := NewHeaders()
	require.NoError(t, h.Set(HeaderIV, "not*base64"))

	_, err := h.Bytes(HeaderIV)
	assert.ErrorIs(t, err, ErrMalformedHeader)

	_, err = h.Bytes(HeaderTag)
	assert.ErrorIs(t, err, ErrMissingHeader)
}

func TestHeaders_SetValidates(t *testing.T) {
	h := NewHeaders()
	assert.ErrorIs(t, h.Set(HeaderIV, []byte{1, 2}), ErrMalformedHeader)
	require.NoError(t, h.Set(HeaderPBES2Count, 1000))
	require.NoError(t, h.Set("custom", 3.5))

	n, ok := h.Int(HeaderPBES2Count)
	assert.True(t, ok)
	assert.Equal(t, int64(1000), n)
}

func TestHeaders_Merge(t *testing.T) {
	a := NewHeaders()
	require.NoError(t, a.Set(HeaderEncryption, "A256GCM"))
	b := NewHeaders()
	require.NoError(t, b.Set(HeaderAlgorithm, "A256KW"))

	merged, err := a.Merge(b, nil)
	require.NoError(t, err)
	assert.Equal(t, "A256KW", merged.Algorithm())
	assert.Equal(t, "A256GCM", merged.Encryption())
	assert.False(t, a.Has(HeaderAlgorithm), "merge must not modify the receiver")

	c := NewHeaders()
	require.NoError(t, c.Set(HeaderEncryption, "A128GCM"))
	_, err = a.Merge(c)
	assert.ErrorIs(t, err, ErrDuplicateHeader)
}

func TestHeaders_EncodeRoundTrip(t *testing.T) {
	h := NewHeaders()
	require.NoError(t, h.Set(HeaderAlgorithm, "dir"))
	require.NoError(t, h.Set(HeaderEncryption, "A128GCM"))

	encoded, err := h.Encode()
	require.NoError(t, err)
	assert.Equal(t, "eyJhbGciOiJkaXIiLCJlbmMiOiJBMTI4R0NNIn0", encoded)

	parsed, err := ParseEncodedHeaders(encoded)
	require.NoError(t, err)
	assert.Equal(t, []string{"alg", "enc"}, parsed.Names())
}

func TestDecode(t *testing.T) {
	_, err := Decode("YQ==")
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = Decode("a+b/")
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	b, err := Decode("YQ")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), b)
}

func TestValidateCritical(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		understood []string
		wantErr    error
	}{
		{"no crit", `{"alg":"HS256"}`, nil, nil},
		{"understood", `{"alg":"HS256","crit":["b64"],"b64":false}`, []string{"b64"}, nil},
		{"not understood", `{"alg":"HS256","crit":["exp"],"exp":1}`, []string{"b64"}, ErrUnsupportedCritical},
		{"absent member", `{"alg":"HS256","crit":["exp"]}`, []string{"exp"}, ErrMalformedHeader},
		{"registered member", `{"alg":"HS256","crit":["alg"]}`, []string{"alg"}, ErrMalformedHeader},
		{"empty list", `{"alg":"HS256","crit":[]}`, nil, ErrMalformedHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ParseHeaders([]byte(tt.json))
			require.NoError(t, err)
			err = ValidateCritical(h, tt.understood...)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSecret_Destroy(t *testing.T) {
	s, err := GenerateSecret(32)
	require.NoError(t, err)
	buf := s.Bytes()
	require.Len(t, buf, 32)

	buf[0] = 0xff
	s.Destroy()

	assert.True(t, s.Destroyed())
	assert.Equal(t, make([]byte, 32), buf)
	assert.Nil(t, s.Bytes())
	s.Destroy()
}
