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
	"encoding/json"
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
)

// jsonSerialization covers both the general and flattened syntax
// (RFC 7516 Section 7.2).
type jsonSerialization struct {
	Protected    string          `json:"protected,omitempty"`
	Unprotected  *jose.Headers   `json:"unprotected,omitempty"`
	Recipients   []jsonRecipient `json:"recipients,omitempty"`
	Header       *jose.Headers   `json:"header,omitempty"`
	EncryptedKey string          `json:"encrypted_key,omitempty"`
	AAD          string          `json:"aad,omitempty"`
	IV           string          `json:"iv"`
	Ciphertext   string          `json:"ciphertext"`
	Tag          string          `json:"tag"`
}

type jsonRecipient struct {
	Header       *jose.Headers `json:"header,omitempty"`
	EncryptedKey string        `json:"encrypted_key,omitempty"`
}

// JSONRecipient is one parsed recipient of a JSON serialized JWE.
type JSONRecipient struct {
	Header       *jose.Headers
	EncryptedKey []byte
}

// JSONConsumer is a parsed JSON serialized JWE in general or flattened
// syntax. It is read-only after ParseJSON.
type JSONConsumer struct {
	EncodedProtected string
	Protected        *jose.Headers
	Unprotected      *jose.Headers
	Recipients       []JSONRecipient
	EncodedAAD       string
	AAD              []byte
	IV               []byte
	Ciphertext       []byte
	Tag              []byte
	Flattened        bool
}

// ParseJSON decodes a general or flattened JSON serialization.
func ParseJSON(data []byte) (*JSONConsumer, error) {
	var raw jsonSerialization
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	c := &JSONConsumer{
		EncodedProtected: raw.Protected,
		Unprotected:      raw.Unprotected,
		EncodedAAD:       raw.AAD,
	}

	var err error
	if raw.Protected != "" {
		if c.Protected, err = jose.ParseEncodedHeaders(raw.Protected); err != nil {
			return nil, err
		}
	}
	if raw.AAD != "" {
		if c.AAD, err = jose.Decode(raw.AAD); err != nil {
			return nil, fmt.Errorf("aad: %w", err)
		}
	}
	if c.IV, err = jose.Decode(raw.IV); err != nil {
		return nil, fmt.Errorf("iv: %w", err)
	}
	if c.Ciphertext, err = jose.Decode(raw.Ciphertext); err != nil {
		return nil, fmt.Errorf("ciphertext: %w", err)
	}
	if c.Tag, err = jose.Decode(raw.Tag); err != nil {
		return nil, fmt.Errorf("tag: %w", err)
	}
	if len(c.IV) == 0 || len(c.Tag) == 0 {
		return nil, fmt.Errorf("%w: iv and tag are required", ErrInvalidFormat)
	}

	// In the general syntax a top-level header or encrypted_key is not a
	// recognised member and is ignored. Some producers repeat the first
	// recipient's encrypted_key there.
	recipients := raw.Recipients
	if recipients == nil {
		c.Flattened = true
		recipients = []jsonRecipient{{Header: raw.Header, EncryptedKey: raw.EncryptedKey}}
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: empty recipients", ErrInvalidFormat)
	}

	for i, r := range recipients {
		encryptedKey, err := jose.Decode(r.EncryptedKey)
		if err != nil {
			return nil, fmt.Errorf("recipient %d encrypted_key: %w", i, err)
		}
		c.Recipients = append(c.Recipients, JSONRecipient{Header: r.Header, EncryptedKey: encryptedKey})
	}
	return c, nil
}

// RecipientHeaders returns the union of the protected, shared unprotected
// and per-recipient headers for recipient i. A name present in more than
// one of them is an error.
func (c *JSONConsumer) RecipientHeaders(i int) (*jose.Headers, error) {
	if i < 0 || i >= len(c.Recipients) {
		return nil, fmt.Errorf("%w: recipient %d", ErrRecipientNotFound, i)
	}
	return c.Protected.Merge(c.Unprotected, c.Recipients[i].Header)
}

// AdditionalAuthenticatedData returns ASCII(BASE64URL(protected)), followed
// by "." and BASE64URL(aad) when aad is present.
func (c *JSONConsumer) AdditionalAuthenticatedData() []byte {
	return jsonAAD(c.EncodedProtected, c.EncodedAAD)
}

func jsonAAD(encodedProtected, encodedAAD string) []byte {
	if encodedAAD == "" {
		return []byte(encodedProtected)
	}
	return []byte(encodedProtected + "." + encodedAAD)
}

func nonEmpty(h *jose.Headers) *jose.Headers {
	if h == nil || h.Len() == 0 {
		return nil
	}
	return h
}
