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

// Package correlation tags one trustkit operation with an id that travels
// in the context, in log records and in delegation request properties, so
// a delegation decision can be matched with the request that caused it.
package correlation

import (
	"context"
	"unicode"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
)

// MaxIDLength bounds caller supplied ids.
const MaxIDLength = 128

const (
	// LogField is the log field name carrying the id.
	LogField = "correlation_id"

	// PropertyKey is the delegation AdditionalProperties key carrying the id.
	PropertyKey = "correlation_id"
)

type contextKey struct{}

// WithID returns a copy of ctx carrying id.
func WithID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, id)
}

// ID returns the id carried by ctx, or "".
func ID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// NewID generates a random UUID v4 id.
func NewID() string {
	return uuid.NewString()
}

// Valid reports whether id is usable: non-empty, at most MaxIDLength
// bytes and free of spaces and control characters.
func Valid(id string) bool {
	if id == "" || len(id) > MaxIDLength {
		return false
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// Ensure returns ctx carrying an id. A valid candidate wins, then an id
// already in ctx, then a new one.
func Ensure(ctx context.Context, candidate string) (context.Context, string) {
	switch {
	case Valid(candidate):
	case ID(ctx) != "":
		return ctx, ID(ctx)
	default:
		candidate = NewID()
	}
	return WithID(ctx, candidate), candidate
}

// Logger returns l with the id of ctx attached, or l unchanged when ctx
// carries none.
func Logger(ctx context.Context, l logger.Logger) logger.Logger {
	l = logger.OrNoOp(l)
	id := ID(ctx)
	if id == "" {
		return l
	}
	return l.With(logger.String(LogField, id))
}
