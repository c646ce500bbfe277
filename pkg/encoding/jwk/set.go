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

package jwk

import (
	"encoding/json"
	"fmt"
)

// Set is a JWK Set (RFC 7517 Section 5).
type Set struct {
	Keys []*JWK `json:"keys"`
}

// NewSet returns a set holding the given keys.
func NewSet(keys ...*JWK) *Set {
	return &Set{Keys: append([]*JWK(nil), keys...)}
}

// ParseSet parses a JSON JWK Set. Every member key is validated.
func ParseSet(data []byte) (*Set, error) {
	var set Set
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JWK set: %w", err)
	}
	if set.Keys == nil {
		return nil, fmt.Errorf("%w: keys", ErrMissingField)
	}
	for i, key := range set.Keys {
		if key == nil {
			return nil, fmt.Errorf("%w: key %d is null", ErrInvalidKey, i)
		}
		if err := key.Validate(); err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
	}
	return &set, nil
}

// Marshal returns the JSON encoding of the set.
func (s *Set) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// Len returns the number of keys.
func (s *Set) Len() int {
	return len(s.Keys)
}

// Add appends a key to the set.
func (s *Set) Add(key *JWK) {
	s.Keys = append(s.Keys, key)
}

// KeyByID returns the first key with the given kid.
func (s *Set) KeyByID(kid string) (*JWK, error) {
	for _, key := range s.Keys {
		if key.Kid == kid {
			return key, nil
		}
	}
	return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
}

// KeysByKind returns the keys of the given family.
func (s *Set) KeysByKind(kind KeyKind) []*JWK {
	var keys []*JWK
	for _, key := range s.Keys {
		if k, err := key.Kind(); err == nil && k == kind {
			keys = append(keys, key)
		}
	}
	return keys
}

// KeysForOperation returns the keys whose use/key_ops permit op.
func (s *Set) KeysForOperation(op string) []*JWK {
	var keys []*JWK
	for _, key := range s.Keys {
		if key.Permits(op) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Public returns a set of the public forms of all asymmetric keys.
// Symmetric keys are omitted.
func (s *Set) Public() (*Set, error) {
	out := &Set{Keys: make([]*JWK, 0, len(s.Keys))}
	for _, key := range s.Keys {
		if key.IsSymmetric() {
			continue
		}
		pub, err := key.Public()
		if err != nil {
			return nil, err
		}
		out.Keys = append(out.Keys, pub)
	}
	return out, nil
}
