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

// Package file provides a file-based implementation of the storage.Backend
// interface. Each key is a file below a root directory. Entries written
// with a TTL get a sidecar under .meta/ that records their expiry.
package file

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jeremyhahn/go-trustkit/pkg/storage"
)

const (
	// Default directory permissions (owner rwx only)
	defaultDirPerms = 0700

	// File permissions based on key prefix
	keysFilePerms = 0600 // keys/* = owner rw only
	defaultPerms  = 0600 // default = owner rw only

	// metaDir holds expiry sidecars and is hidden from List.
	metaDir = ".meta"
)

var errUnsafeKey = errors.New("file storage: unsafe key")

// FileBackend is a file-based implementation of storage.Backend.
type FileBackend struct {
	mu      sync.RWMutex
	rootDir string
	now     func() time.Time
}

// New creates a FileBackend rooted at rootDir, creating the directory with
// 0700 permissions if it doesn't exist.
func New(rootDir string) (*FileBackend, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("file storage: root directory cannot be empty")
	}

	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("file storage: failed to resolve root directory: %w", err)
	}
	if err := os.MkdirAll(abs, defaultDirPerms); err != nil {
		return nil, fmt.Errorf("file storage: failed to create root directory: %w", err)
	}

	return &FileBackend{
		rootDir: abs,
		now:     time.Now,
	}, nil
}

// SetClock replaces the time source used for expiry.
func (f *FileBackend) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Root returns the backend's root directory.
func (f *FileBackend) Root() string {
	return f.rootDir
}

// Get retrieves the value for the given key.
func (f *FileBackend) Get(key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	filePath, err := f.keyToPath(key)
	if err != nil {
		return nil, err
	}
	expired, err := f.expired(key)
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, storage.ErrNotFound
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("file storage: failed to read key %q: %w", key, err)
	}
	return data, nil
}

// Put stores the value for the given key. File permissions come from
// opts.Permissions, else keys/* and everything else get 0600. opts.TTL
// writes an expiry sidecar; a Put without TTL removes any old one.
func (f *FileBackend) Put(key string, value []byte, opts *storage.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	filePath, err := f.keyToPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), defaultDirPerms); err != nil {
		return fmt.Errorf("file storage: failed to create directory for key %q: %w", key, err)
	}
	if err := os.WriteFile(filePath, value, f.getFilePermissions(key, opts)); err != nil {
		return fmt.Errorf("file storage: failed to write key %q: %w", key, err)
	}

	metaPath := f.metaPath(key)
	expires := storage.ExpiresAt(opts, f.now())
	if expires.IsZero() {
		if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("file storage: failed to clear expiry for key %q: %w", key, err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(metaPath), defaultDirPerms); err != nil {
		return fmt.Errorf("file storage: failed to create metadata directory: %w", err)
	}
	stamp := []byte(expires.UTC().Format(time.RFC3339Nano))
	if err := os.WriteFile(metaPath, stamp, defaultPerms); err != nil {
		return fmt.Errorf("file storage: failed to write expiry for key %q: %w", key, err)
	}
	return nil
}

// Delete removes the key, its value and any expiry sidecar.
func (f *FileBackend) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delete(key)
}

func (f *FileBackend) delete(key string) error {
	filePath, err := f.keyToPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("file storage: failed to delete key %q: %w", key, err)
	}
	if err := os.Remove(f.metaPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("file storage: failed to delete expiry for key %q: %w", key, err)
	}
	return nil
}

// List returns all unexpired keys with the given prefix in sorted order.
func (f *FileBackend) List(prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	keys, err := f.walk()
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		expired, err := f.expired(key)
		if err != nil {
			return nil, err
		}
		if !expired {
			out = append(out, key)
		}
	}
	return out, nil
}

// Exists checks if an unexpired key exists in storage.
func (f *FileBackend) Exists(key string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	filePath, err := f.keyToPath(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("file storage: failed to check key %q: %w", key, err)
	}
	expired, err := f.expired(key)
	if err != nil {
		return false, err
	}
	return !expired, nil
}

// PurgeExpired deletes every expired entry.
func (f *FileBackend) PurgeExpired() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys, err := f.walk()
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, key := range keys {
		expired, err := f.expired(key)
		if err != nil {
			return purged, err
		}
		if !expired {
			continue
		}
		if err := f.delete(key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return purged, err
		}
		purged++
	}
	return purged, nil
}

// Close releases any resources held by the backend. It is a no-op.
func (f *FileBackend) Close() error {
	return nil
}

// walk returns every stored key, skipping the metadata directory.
func (f *FileBackend) walk() ([]string, error) {
	keys := make([]string, 0)
	err := filepath.WalkDir(f.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == filepath.Join(f.rootDir, metaDir) {
				return fs.SkipDir
			}
			return nil
		}
		key, err := f.pathToKey(path)
		if err != nil {
			return err
		}
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("file storage: failed to list keys: %w", err)
	}
	slices.Sort(keys)
	return keys, nil
}

// expired reports whether key has a sidecar whose deadline has passed.
// Callers hold f.mu.
func (f *FileBackend) expired(key string) (bool, error) {
	stamp, err := os.ReadFile(f.metaPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("file storage: failed to read expiry for key %q: %w", key, err)
	}
	expires, err := time.Parse(time.RFC3339Nano, string(bytes.TrimSpace(stamp)))
	if err != nil {
		return false, fmt.Errorf("%w: expiry for key %q", storage.ErrInvalidData, key)
	}
	return !f.now().Before(expires), nil
}

// keyToPath converts a storage key to a file path below the root.
func (f *FileBackend) keyToPath(key string) (string, error) {
	if err := validateStorageKey(key); err != nil {
		return "", fmt.Errorf("%w: %w", errUnsafeKey, err)
	}
	return filepath.Join(f.rootDir, filepath.FromSlash(key)), nil
}

func (f *FileBackend) metaPath(key string) string {
	return filepath.Join(f.rootDir, metaDir, filepath.FromSlash(key)+".expires")
}

// validateStorageKey allows path separators for organisation but blocks
// traversal, absolute paths and the metadata directory.
func validateStorageKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if strings.Contains(key, "\x00") {
		return fmt.Errorf("key contains null byte")
	}
	if filepath.IsAbs(key) || strings.HasPrefix(key, "/") {
		return fmt.Errorf("key cannot be an absolute path")
	}
	cleaned := filepath.ToSlash(filepath.Clean(filepath.FromSlash(key)))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("key contains path traversal attempt")
	}
	if cleaned == metaDir || strings.HasPrefix(cleaned, metaDir+"/") {
		return fmt.Errorf("key uses reserved prefix %q", metaDir)
	}
	return nil
}

// pathToKey converts a file path to a storage key.
func (f *FileBackend) pathToKey(path string) (string, error) {
	rel, err := filepath.Rel(f.rootDir, path)
	if err != nil {
		return "", fmt.Errorf("file storage: failed to convert path to key: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

// getFilePermissions determines the file permissions for key.
func (f *FileBackend) getFilePermissions(key string, opts *storage.Options) fs.FileMode {
	if opts != nil && opts.Permissions != 0 {
		return opts.Permissions
	}
	if strings.HasPrefix(key, "keys/") {
		return keysFilePerms
	}
	return defaultPerms
}
