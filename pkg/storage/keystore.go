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
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
)

// KeyStore wraps a Backend to store JSON Web Keys by key id.
type KeyStore struct {
	backend Backend
}

// NewKeyStore creates a key store over backend.
func NewKeyStore(backend Backend) *KeyStore {
	return &KeyStore{backend: backend}
}

// Backend returns the underlying storage backend.
func (ks *KeyStore) Backend() Backend {
	return ks.backend
}

// Save stores key under its kid, which must be set.
func (ks *KeyStore) Save(key *jwk.JWK) error {
	if key == nil {
		return fmt.Errorf("%w: key cannot be nil", ErrInvalidData)
	}
	if err := ValidateID(key.Kid); err != nil {
		return err
	}
	data, err := key.Marshal()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	return ks.backend.Put(KeyPath(key.Kid), data, &Options{Permissions: 0600})
}

// Get returns the key stored under kid.
func (ks *KeyStore) Get(kid string) (*jwk.JWK, error) {
	if err := ValidateID(kid); err != nil {
		return nil, err
	}
	data, err := ks.backend.Get(KeyPath(kid))
	if err != nil {
		return nil, err
	}
	key, err := jwk.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	return key, nil
}

// Delete removes the key stored under kid.
func (ks *KeyStore) Delete(kid string) error {
	if err := ValidateID(kid); err != nil {
		return err
	}
	return ks.backend.Delete(KeyPath(kid))
}

// List returns the ids of every stored key.
func (ks *KeyStore) List() ([]string, error) {
	return ListKeys(ks.backend)
}

// Set loads every stored key into a JWK Set.
func (ks *KeyStore) Set() (*jwk.Set, error) {
	ids, err := ks.List()
	if err != nil {
		return nil, err
	}
	set := jwk.NewSet()
	for _, id := range ids {
		key, err := ks.Get(id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		set.Add(key)
	}
	return set, nil
}

// Lookup returns the key for kid. It satisfies the key lookup used by the
// JWE and JWT key-set helpers.
func (ks *KeyStore) Lookup(kid string) (*jwk.JWK, error) {
	key, err := ks.Get(kid)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", jwk.ErrKeyNotFound, kid)
	}
	return key, err
}

// Close closes the underlying backend.
func (ks *KeyStore) Close() error {
	return ks.backend.Close()
}
