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

package correlation

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithID(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		id   string
	}{
		{"background", context.Background(), "req-1"},
		{"nil context", nil, "req-2"},
		{"empty id", context.Background(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithID(tt.ctx, tt.id)
			require.NotNil(t, ctx)
			assert.Equal(t, tt.id, ID(ctx))
		})
	}
}

func TestID_Missing(t *testing.T) {
	assert.Empty(t, ID(context.Background()))
	assert.Empty(t, ID(context.WithValue(context.Background(), contextKey{}, 42)))
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestValid(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"abc-123", true},
		{"", false},
		{"has space", false},
		{"tab\there", false},
		{"nl\n", false},
		{strings.Repeat("a", MaxIDLength), true},
		{strings.Repeat("a", MaxIDLength+1), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Valid(tt.id), "%q", tt.id)
	}
}

func TestEnsure(t *testing.T) {
	ctx, id := Ensure(context.Background(), "caller-id")
	assert.Equal(t, "caller-id", id)
	assert.Equal(t, "caller-id", ID(ctx))

	existing := WithID(context.Background(), "existing")
	ctx, id = Ensure(existing, "")
	assert.Equal(t, "existing", id)
	assert.Equal(t, existing, ctx)

	ctx, id = Ensure(existing, "bad id")
	assert.Equal(t, "existing", id)
	assert.Equal(t, "existing", ID(ctx))

	ctx, id = Ensure(context.Background(), "")
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, id, ID(ctx))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := logger.NewSlogAdapter(&logger.SlogConfig{
		Level:  logger.LevelInfo,
		Format: "json",
		Output: &buf,
	})

	Logger(WithID(context.Background(), "req-9"), base).Info("tagged")
	assert.Contains(t, buf.String(), `"correlation_id":"req-9"`)

	buf.Reset()
	Logger(context.Background(), base).Info("untagged")
	assert.NotContains(t, buf.String(), "correlation_id")

	assert.NotNil(t, Logger(context.Background(), nil))
}
