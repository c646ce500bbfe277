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
	"encoding/hex"
	"sync"
)

// NonceTracker records the IVs used with long-lived content encryption
// keys. A JWE producer using "dir" encrypts every message under the same
// CEK, so a repeated random IV would be fatal for GCM; the tracker turns
// that into ErrNonceReuse instead.
//
// IVs are tracked per key identifier. Memory grows with each encryption;
// Forget releases a key's history once it is rotated.
type NonceTracker struct {
	mu     sync.Mutex
	nonces map[string]map[string]struct{}
}

// NewNonceTracker creates an empty tracker.
func NewNonceTracker() *NonceTracker {
	return &NonceTracker{nonces: make(map[string]map[string]struct{})}
}

// CheckAndRecord fails with ErrNonceReuse if iv was already recorded for
// keyID, and records it otherwise.
func (nt *NonceTracker) CheckAndRecord(keyID string, iv []byte) error {
	h := hex.EncodeToString(iv)

	nt.mu.Lock()
	defer nt.mu.Unlock()

	seen, ok := nt.nonces[keyID]
	if !ok {
		seen = make(map[string]struct{})
		nt.nonces[keyID] = seen
	}
	if _, exists := seen[h]; exists {
		return ErrNonceReuse
	}
	seen[h] = struct{}{}
	return nil
}

// Count returns the number of IVs recorded for keyID.
func (nt *NonceTracker) Count(keyID string) int {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	return len(nt.nonces[keyID])
}

// Forget drops the history of keyID.
func (nt *NonceTracker) Forget(keyID string) {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	delete(nt.nonces, keyID)
}
