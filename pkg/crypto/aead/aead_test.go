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

package aead

import (
	"bytes"
	"crypto/rand"
	"sync"
	"testing"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RFC 7518 Appendix B.1 test case for AES_128_CBC_HMAC_SHA_256.
func TestOpenCBCHMAC_RFC7518B1(t *testing.T) {
	key := seq(0x00, 32)
	plaintext := []byte("A cipher system must not be required to be secret, and it must be able to fall into the hands of the enemy without inconvenience")
	iv := []byte{0x1a, 0xf3, 0x8c, 0x2d, 0xc2, 0xb9, 0x6f, 0xfd, 0xd8, 0x66, 0x94, 0x09, 0x23, 0x41, 0xbc, 0x04}
	aad := []byte("The second principle of Auguste Kerckhoffs")
	expectedTag := []byte{0x65, 0x2c, 0x3f, 0xa3, 0x6b, 0x0a, 0x7c, 0x5b, 0x32, 0x19, 0xfa, 0xb3, 0xa3, 0x0b, 0xc1, 0xc4}

	ciphertext, tag, err := SealCBCHMAC(jwa.A128CBCHS256, key, iv, aad, plaintext)
	require.NoError(t, err)
	assert.Equal(t, expectedTag, tag)
	assert.Len(t, ciphertext, 144)

	out, err := OpenCBCHMAC(jwa.A128CBCHS256, key, iv, aad, ciphertext, tag)
	require.NoError(t, err)
	assert.Equal(t, plaintext, out)
}

func TestSealOpen_AllAlgorithms(t *testing.T) {
	algs := []jwa.ContentAlgorithm{
		jwa.A128GCM, jwa.A192GCM, jwa.A256GCM,
		jwa.A128CBCHS256, jwa.A192CBCHS384, jwa.A256CBCHS512,
	}
	plaintext := []byte("Live long and prosper.")
	aad := []byte("eyJhbGciOiJkaXIifQ")

	for _, enc := range algs {
		t.Run(string(enc), func(t *testing.T) {
			cek := random(t, enc.KeySize())
			iv := random(t, enc.IVSize())

			ciphertext, tag, err := Seal(enc, cek, iv, aad, plaintext)
			require.NoError(t, err)
			assert.NotEqual(t, plaintext, ciphertext)

			out, err := Open(enc, cek, iv, aad, ciphertext, tag)
			require.NoError(t, err)
			assert.Equal(t, plaintext, out)

			tampered := bytes.Clone(tag)
			tampered[0] ^= 0x01
			_, err = Open(enc, cek, iv, aad, ciphertext, tampered)
			assert.ErrorIs(t, err, ErrAuthentication)

			badAAD := append(bytes.Clone(aad), '.')
			_, err = Open(enc, cek, iv, badAAD, ciphertext, tag)
			assert.ErrorIs(t, err, ErrAuthentication)

			badIV := bytes.Clone(iv)
			badIV[len(badIV)-1] ^= 0x80
			_, err = Open(enc, cek, badIV, aad, ciphertext, tag)
			assert.ErrorIs(t, err, ErrAuthentication)
		})
	}
}

func TestSeal_RejectsBadParameters(t *testing.T) {
	_, _, err := Seal(jwa.A256GCM, make([]byte, 16), make([]byte, 12), nil, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, _, err = Seal(jwa.A128GCM, make([]byte, 16), make([]byte, 16), nil, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidIV)

	_, _, err = Seal(jwa.A128CBCHS256, make([]byte, 16), make([]byte, 16), nil, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, _, err = Seal(jwa.ContentAlgorithm("XC20P"), make([]byte, 32), make([]byte, 24), nil, []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestSelectOptimal(t *testing.T) {
	enc := SelectOptimal()
	if HasAESNI() {
		assert.Equal(t, jwa.A256GCM, enc)
	} else {
		assert.Equal(t, jwa.A256CBCHS512, enc)
	}
}

func TestNonceTracker(t *testing.T) {
	nt := NewNonceTracker()
	iv := []byte{1, 2, 3}

	require.NoError(t, nt.CheckAndRecord("k1", iv))
	assert.ErrorIs(t, nt.CheckAndRecord("k1", iv), ErrNonceReuse)
	require.NoError(t, nt.CheckAndRecord("k2", iv))
	assert.Equal(t, 1, nt.Count("k1"))

	nt.Forget("k1")
	assert.Equal(t, 0, nt.Count("k1"))
	require.NoError(t, nt.CheckAndRecord("k1", iv))
}

func TestNonceTracker_Concurrent(t *testing.T) {
	nt := NewNonceTracker()
	var wg sync.WaitGroup
	errs := make(chan error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- nt.CheckAndRecord("k", []byte{byte(i)})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 100, nt.Count("k"))
}

func seq(start byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

func random(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}
