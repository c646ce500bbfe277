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

package sts

import (
	"maps"
	"time"
)

// SecurityToken is a token held in a TokenStore.
type SecurityToken struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Token      []byte            `json:"token"`
	Principal  string            `json:"principal,omitempty"`
	Created    time.Time         `json:"created"`
	Expires    time.Time         `json:"expires,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// NewSecurityToken captures a received token for storage. The id is left
// empty so the store can assign one.
func NewSecurityToken(t *ReceivedToken) (*SecurityToken, error) {
	raw, err := t.Bytes()
	if err != nil {
		return nil, err
	}
	return &SecurityToken{
		Kind:      t.Kind(),
		Token:     raw,
		Principal: PrincipalName(t.Principal()),
		Created:   time.Now().UTC(),
	}, nil
}

// IsExpired reports whether the token has an expiry at or before now.
func (t *SecurityToken) IsExpired(now time.Time) bool {
	return !t.Expires.IsZero() && !now.Before(t.Expires)
}

// Clone returns a deep copy of the token.
func (t *SecurityToken) Clone() *SecurityToken {
	c := *t
	c.Token = append([]byte(nil), t.Token...)
	c.Properties = maps.Clone(t.Properties)
	return &c
}

// TokenStore caches security tokens between STS operations.
// Implementations must be safe for concurrent use.
type TokenStore interface {
	// Add stores token, assigning an id when token.ID is empty, and
	// returns the id.
	Add(token *SecurityToken) (string, error)

	// Get returns the token stored under id. It returns
	// ErrTokenNotFound for unknown ids and ErrTokenExpired once the token
	// has expired.
	Get(id string) (*SecurityToken, error)

	// Remove deletes the token stored under id.
	Remove(id string) error

	// IDs lists the ids of every stored token.
	IDs() ([]string, error)
}
