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

// Package storage provides an abstraction layer for key-value storage
// backends. It supports in-memory and file-based implementations with a
// common interface and optional per-entry expiry, and is used by the JWK
// key store and the STS token store.
package storage

import (
	"io/fs"
	"time"
)

// Backend defines the interface for storage backends.
// All implementations must be thread-safe.
type Backend interface {
	// Get retrieves the value for the given key.
	// Returns ErrNotFound if the key does not exist or has expired.
	Get(key string) ([]byte, error)

	// Put stores the value for the given key with optional settings.
	// If the key already exists, it will be overwritten.
	Put(key string, value []byte, opts *Options) error

	// Delete removes the key and its value from storage.
	// Returns ErrNotFound if the key does not exist.
	Delete(key string) error

	// List returns all unexpired keys with the given prefix.
	// If prefix is empty, all keys are returned.
	List(prefix string) ([]string, error)

	// Exists checks if an unexpired key exists in storage.
	Exists(key string) (bool, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Purger is implemented by backends that can drop expired entries.
type Purger interface {
	// PurgeExpired deletes every expired entry and returns how many were
	// removed.
	PurgeExpired() (int, error)
}

// Options contains optional parameters for storage operations.
type Options struct {
	// Permissions sets the file permissions for file-based storage
	Permissions fs.FileMode

	// TTL expires the entry after the given duration. Zero keeps it until
	// deleted.
	TTL time.Duration

	// Metadata contains additional key-value pairs for storage operations
	Metadata map[string]string
}

// DefaultOptions returns Options with owner-only permissions and no expiry.
func DefaultOptions() *Options {
	return &Options{
		Permissions: 0600,
		Metadata:    make(map[string]string),
	}
}

// ExpiresAt returns the deadline for an entry written at now with opts,
// or the zero time when the entry does not expire.
func ExpiresAt(opts *Options, now time.Time) time.Time {
	if opts == nil || opts.TTL <= 0 {
		return time.Time{}
	}
	return now.Add(opts.TTL)
}
