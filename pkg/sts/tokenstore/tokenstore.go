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

// Package tokenstore implements sts.TokenStore over a storage.Backend.
// Tokens are stored as JSON under tokens/<id>.json with the backend TTL set
// from the token expiry.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-trustkit/pkg/metrics"
	"github.com/jeremyhahn/go-trustkit/pkg/storage"
	"github.com/jeremyhahn/go-trustkit/pkg/sts"
)

// Store is a TokenStore backed by a storage.Backend.
type Store struct {
	backend    storage.Backend
	defaultTTL time.Duration
	logger     logger.Logger
	now        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithDefaultTTL sets the lifetime given to tokens without an expiry.
// Zero keeps such tokens until removed.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.defaultTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a token store over backend.
func New(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.OrNoOp(s.logger)
	return s
}

var _ sts.TokenStore = (*Store)(nil)

// Add stores a copy of token. An empty id is replaced with a random UUID
// and a missing expiry with the default TTL.
func (s *Store) Add(token *sts.SecurityToken) (id string, err error) {
	defer func() { metrics.RecordTokenStore(metrics.OpStore, err) }()

	if token == nil {
		return "", fmt.Errorf("%w: token cannot be nil", storage.ErrInvalidData)
	}
	t := token.Clone()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := storage.ValidateID(t.ID); err != nil {
		return "", err
	}
	now := s.now().UTC()
	if t.Created.IsZero() {
		t.Created = now
	}
	if t.Expires.IsZero() && s.defaultTTL > 0 {
		t.Expires = now.Add(s.defaultTTL)
	}

	opts := storage.DefaultOptions()
	if !t.Expires.IsZero() {
		ttl := t.Expires.Sub(now)
		if ttl <= 0 {
			return "", sts.ErrTokenExpired
		}
		opts.TTL = ttl
	}

	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("%w: %w", storage.ErrInvalidData, err)
	}
	if err := s.backend.Put(storage.TokenPath(t.ID), data, opts); err != nil {
		return "", err
	}
	s.logger.Debug("token stored", logger.String("id", t.ID), logger.String("kind", t.Kind))
	return t.ID, nil
}

// Get returns the token stored under id.
func (s *Store) Get(id string) (token *sts.SecurityToken, err error) {
	defer func() { metrics.RecordTokenStore(metrics.OpGet, err) }()

	if err := storage.ValidateID(id); err != nil {
		return nil, err
	}
	data, err := s.backend.Get(storage.TokenPath(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", sts.ErrTokenNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	token = &sts.SecurityToken{}
	if err := json.Unmarshal(data, token); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidData, err)
	}
	if token.IsExpired(s.now()) {
		return nil, fmt.Errorf("%w: %s", sts.ErrTokenExpired, id)
	}
	return token, nil
}

// Remove deletes the token stored under id.
func (s *Store) Remove(id string) (err error) {
	defer func() { metrics.RecordTokenStore(metrics.OpDelete, err) }()

	if err := storage.ValidateID(id); err != nil {
		return err
	}
	err = s.backend.Delete(storage.TokenPath(id))
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", sts.ErrTokenNotFound, id)
	}
	return err
}

// IDs lists the ids of every unexpired token.
func (s *Store) IDs() ([]string, error) {
	return storage.ListTokens(s.backend)
}

// Purge drops expired tokens when the backend supports it.
func (s *Store) Purge() (int, error) {
	p, ok := s.backend.(storage.Purger)
	if !ok {
		return 0, nil
	}
	n, err := p.PurgeExpired()
	if n > 0 {
		s.logger.Info("expired tokens purged", logger.Int("count", n))
	}
	return n, err
}
