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

package jwe

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// DefaultMaxInflatedSize bounds "zip":"DEF" content on decryption.
const DefaultMaxInflatedSize int64 = 10 << 20

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("jwe: failed to create deflate writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("jwe: deflate failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("jwe: deflate failed: %w", err)
	}
	return buf.Bytes(), nil
}

func inflate(data []byte, limit int64) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("jwe: inflate failed: %w", err)
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, limit)
	}
	return out, nil
}
