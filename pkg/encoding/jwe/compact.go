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
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
)

// CompactConsumer is one parsed JWE compact serialization:
//
//	BASE64URL(header).BASE64URL(encryptedKey).BASE64URL(iv).BASE64URL(ciphertext).BASE64URL(tag)
//
// It is read-only after ParseCompact.
type CompactConsumer struct {
	EncodedHeaders string
	Headers        *jose.Headers
	EncryptedKey   []byte
	IV             []byte
	Ciphertext     []byte
	Tag            []byte
}

// ParseCompact splits and decodes a compact JWE. Errors are detailed; the
// Decryption orchestrator collapses them into jose.ErrSecurity.
func ParseCompact(content string) (*CompactConsumer, error) {
	parts := strings.Split(strings.TrimSpace(content), ".")
	if len(parts) != 5 {
		return nil, fmt.Errorf("%w: expected 5 segments, got %d", ErrInvalidFormat, len(parts))
	}
	if parts[0] == "" || parts[2] == "" || parts[4] == "" {
		return nil, fmt.Errorf("%w: header, iv and tag segments are required", ErrInvalidFormat)
	}

	headers, err := jose.ParseEncodedHeaders(parts[0])
	if err != nil {
		return nil, err
	}

	decoded := make([][]byte, 4)
	for i, part := range parts[1:] {
		b, err := jose.Decode(part)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i+2, err)
		}
		decoded[i] = b
	}

	return &CompactConsumer{
		EncodedHeaders: parts[0],
		Headers:        headers,
		EncryptedKey:   decoded[0],
		IV:             decoded[1],
		Ciphertext:     decoded[2],
		Tag:            decoded[3],
	}, nil
}

// AdditionalAuthenticatedData returns ASCII(BASE64URL(protected header)).
func (c *CompactConsumer) AdditionalAuthenticatedData() []byte {
	return []byte(c.EncodedHeaders)
}

// PeekHeaders returns the protected header of a compact JWE without
// decrypting it. The result is unauthenticated.
func PeekHeaders(content string) (*jose.Headers, error) {
	encoded, _, ok := strings.Cut(strings.TrimSpace(content), ".")
	if !ok {
		return nil, fmt.Errorf("%w: not a compact serialization", ErrInvalidFormat)
	}
	return jose.ParseEncodedHeaders(encoded)
}

// ExtractKeyID returns the "kid" header of a compact JWE, or "".
func ExtractKeyID(content string) (string, error) {
	h, err := PeekHeaders(content)
	if err != nil {
		return "", err
	}
	return h.KeyID(), nil
}

func serializeCompact(encodedHeaders string, encryptedKey, iv, ciphertext, tag []byte) string {
	var b strings.Builder
	b.WriteString(encodedHeaders)
	for _, segment := range [][]byte{encryptedKey, iv, ciphertext, tag} {
		b.WriteByte('.')
		b.WriteString(jose.Encode(segment))
	}
	return b.String()
}
