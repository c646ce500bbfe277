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
	"fmt"
	"strings"
)

// Key prefixes and suffixes used by the key and token stores.
const (
	keysPrefix   = "keys/"
	keysSuffix   = ".jwk"
	tokensPrefix = "tokens/"
	tokensSuffix = ".json"
)

// ValidateID checks that id can be embedded in a storage key.
func ValidateID(id string) error {
	if id == "" {
		return ErrInvalidID
	}
	if strings.ContainsAny(id, "/\\\x00") || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// KeyPath returns the storage key for a JWK with the given key id.
func KeyPath(kid string) string {
	return keysPrefix + kid + keysSuffix
}

// TokenPath returns the storage key for a security token.
func TokenPath(id string) string {
	return tokensPrefix + id + tokensSuffix
}

// ListKeys returns the ids of every stored JWK.
func ListKeys(backend Backend) ([]string, error) {
	return listIDs(backend, keysPrefix, keysSuffix)
}

// ListTokens returns the ids of every stored security token.
func ListTokens(backend Backend) ([]string, error) {
	return listIDs(backend, tokensPrefix, tokensSuffix)
}

func listIDs(backend Backend, prefix, suffix string) ([]string, error) {
	keys, err := backend.List(prefix)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if !strings.HasSuffix(k, suffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(k, prefix), suffix)
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
