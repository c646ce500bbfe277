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
	"crypto/rand"
	"fmt"
)

// Secret holds key material for the duration of one operation. Callers
// acquire it, use it, and defer Destroy so the buffer is zeroed on every
// exit path:
//
//	cek, err := jose.GenerateSecret(32)
//	if err != nil {
//		return err
//	}
//	defer cek.Destroy()
type Secret struct {
	b []byte
}

// NewSecret takes ownership of b. The caller must not retain b.
func NewSecret(b []byte) *Secret {
	return &Secret{b: b}
}

// GenerateSecret returns a Secret of n random bytes.
func GenerateSecret(n int) (*Secret, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("jose: failed to generate secret: %w", err)
	}
	return &Secret{b: b}, nil
}

// Bytes returns the underlying buffer. The slice is invalid after Destroy.
func (s *Secret) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.b
}

// Len returns the secret length in bytes.
func (s *Secret) Len() int {
	if s == nil {
		return 0
	}
	return len(s.b)
}

// Destroyed reports whether Destroy has been called.
func (s *Secret) Destroyed() bool {
	return s == nil || s.b == nil
}

// Destroy zeroes the buffer. It is safe to call more than once.
func (s *Secret) Destroy() {
	if s == nil || s.b == nil {
		return
	}
	clear(s.b)
	s.b = nil
}

// Zero clears b in place.
func Zero(b []byte) {
	clear(b)
}
