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

package storage

import (
	"testing"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend_Closed(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err := b.Get("k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.Put("k", nil, nil), ErrClosed)
	assert.ErrorIs(t, b.Delete("k"), ErrClosed)
	_, err = b.List("")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = b.Exists("k")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = b.PurgeExpired()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryBackend_RejectsEmptyKey(t *testing.T) {
	assert.ErrorIs(t, NewMemory().Put("", []byte("v"), nil), ErrInvalidID)
}

func TestNamespace(t *testing.T) {
	assert.Equal(t, "keys/k1.jwk", KeyPath("k1"))
	assert.Equal(t, "tokens/t1.json", TokenPath("t1"))

	b := NewMemory()
	require.NoError(t, b.Put(KeyPath("k1"), []byte("{}"), nil))
	require.NoError(t, b.Put("keys/readme.txt", []byte("x"), nil))
	require.NoError(t, b.Put(TokenPath("t1"), []byte("{}"), nil))

	keys, err := ListKeys(b)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1"}, keys)

	tokens, err := ListTokens(b)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, tokens)
}

func TestValidateID(t *testing.T) {
	for _, id := range []string{"", "a/b", `a\b`, "..", ".", "a\x00"} {
		assert.ErrorIs(t, ValidateID(id), ErrInvalidID, "%q", id)
	}
	assert.NoError(t, ValidateID("0b1e4c2f-kid"))
}

func TestKeyStore(t *testing.T) {
	ks := NewKeyStore(NewMemory())
	defer func() { _ = ks.Close() }()

	key, err := jwk.GenerateOctet(32, "A256KW")
	require.NoError(t, err)
	key = key.WithKeyID("k1")

	require.NoError(t, ks.Save(key))
	got, err := ks.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, key, got)

	ids, err := ks.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1"}, ids)

	set, err := ks.Set()
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())

	found, err := ks.Lookup("k1")
	require.NoError(t, err)
	assert.Equal(t, "k1", found.Kid)

	_, err = ks.Lookup("missing")
	assert.ErrorIs(t, err, jwk.ErrKeyNotFound)

	require.NoError(t, ks.Delete("k1"))
	_, err = ks.Get("k1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeyStore_Rejects(t *testing.T) {
	ks := NewKeyStore(NewMemory())

	assert.ErrorIs(t, ks.Save(nil), ErrInvalidData)

	key, err := jwk.GenerateOctet(16, "A128KW")
	require.NoError(t, err)
	assert.ErrorIs(t, ks.Save(key), ErrInvalidID, "kid is required")
	assert.ErrorIs(t, ks.Save(key.WithKeyID("../escape")), ErrInvalidID)

	require.NoError(t, ks.Backend().Put(KeyPath("broken"), []byte("not json"), nil))
	_, err = ks.Get("broken")
	assert.ErrorIs(t, err, ErrInvalidData)
}
