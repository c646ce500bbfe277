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
	"time"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/metrics"
)

// Recipient pairs a key encryption provider with its per-recipient
// unprotected header members.
type Recipient struct {
	Provider KeyEncryptionProvider
	Headers  map[string]interface{}
}

// Encryption produces JWE objects for one or more recipients. It is safe
// for concurrent use; every call generates its own CEK and IV.
type Encryption struct {
	recipients []Recipient
	content    *ContentEncryption
	opts       *options
}

// NewEncryption returns an Encryption for a single recipient. An empty enc
// selects the best content algorithm for the current CPU.
func NewEncryption(provider KeyEncryptionProvider, enc jwa.ContentAlgorithm, opts ...Option) (*Encryption, error) {
	if provider == nil {
		return nil, ErrNoRecipients
	}
	return NewMultiRecipientEncryption([]Recipient{{Provider: provider}}, enc, opts...)
}

// NewMultiRecipientEncryption returns an Encryption that wraps one CEK for
// every recipient. Only JSON serialization can carry more than one
// recipient, and direct algorithms are limited to a single recipient.
func NewMultiRecipientEncryption(recipients []Recipient, enc jwa.ContentAlgorithm, opts ...Option) (*Encryption, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	for i, r := range recipients {
		if r.Provider == nil {
			return nil, fmt.Errorf("%w: recipient %d has no provider", ErrInvalidKey, i)
		}
		if len(recipients) > 1 && r.Provider.Algorithm().IsDirect() {
			return nil, fmt.Errorf("%w: %s cannot be used with multiple recipients", ErrUnsupportedAlgorithm, r.Provider.Algorithm())
		}
	}
	content, err := NewContentEncryptionProvider(enc)
	if err != nil {
		return nil, err
	}
	o := newOptions(opts...)
	if o.flatten && len(recipients) > 1 {
		return nil, fmt.Errorf("%w: flattened serialization has exactly one recipient", ErrInvalidFormat)
	}
	return &Encryption{
		recipients: recipients,
		content:    content,
		opts:       o,
	}, nil
}

// ContentAlgorithm returns the "enc" value.
func (e *Encryption) ContentAlgorithm() jwa.ContentAlgorithm {
	return e.content.Algorithm()
}

// Encrypt returns the compact serialization of content. It requires
// exactly one recipient and no JSON-only options.
func (e *Encryption) Encrypt(content []byte) (token string, err error) {
	provider := e.recipients[0].Provider
	start := time.Now()
	defer func() { metrics.ObserveOperation(metrics.OpEncrypt, string(provider.Algorithm()), start, err) }()

	if len(e.recipients) != 1 || len(e.recipients[0].Headers) != 0 {
		return "", fmt.Errorf("%w: compact serialization has one recipient and no unprotected header", ErrInvalidFormat)
	}
	if e.opts.aad != nil || len(e.opts.unprotected) != 0 {
		return "", fmt.Errorf("%w: aad and unprotected headers require JSON serialization", ErrInvalidFormat)
	}

	headers, err := e.protectedHeaders()
	if err != nil {
		return "", err
	}
	if err := headers.Set(jose.HeaderAlgorithm, string(provider.Algorithm())); err != nil {
		return "", err
	}

	cek, encryptedKey, err := e.contentKey(provider, headers)
	if err != nil {
		return "", err
	}
	defer cek.Destroy()

	encoded, err := headers.Encode()
	if err != nil {
		return "", err
	}
	iv, ciphertext, tag, err := e.seal(cek, headers.KeyID(), []byte(encoded), content)
	if err != nil {
		return "", err
	}
	return serializeCompact(encoded, encryptedKey, iv, ciphertext, tag), nil
}

// EncryptJSON returns the JSON serialization of content: flattened when
// WithFlattened was given, general otherwise. With a single recipient the
// key management parameters are integrity protected; with several they
// are carried in each recipient's unprotected header.
func (e *Encryption) EncryptJSON(content []byte) (out []byte, err error) {
	alg := string(e.recipients[0].Provider.Algorithm())
	start := time.Now()
	defer func() { metrics.ObserveOperation(metrics.OpEncrypt, alg, start, err) }()

	protected, err := e.protectedHeaders()
	if err != nil {
		return nil, err
	}
	unprotected := jose.NewHeaders()
	for _, hv := range e.opts.unprotected {
		if err := unprotected.Set(hv.name, hv.value); err != nil {
			return nil, err
		}
	}

	single := len(e.recipients) == 1
	recipientHeaders := make([]*jose.Headers, len(e.recipients))
	for i, r := range e.recipients {
		h := jose.NewHeaders()
		for name, value := range r.Headers {
			if err := h.Set(name, value); err != nil {
				return nil, err
			}
		}
		if !single {
			if err := h.Set(jose.HeaderAlgorithm, string(r.Provider.Algorithm())); err != nil {
				return nil, err
			}
		}
		recipientHeaders[i] = h
	}
	if single {
		if err := protected.Set(jose.HeaderAlgorithm, alg); err != nil {
			return nil, err
		}
	}

	// A lone recipient's key parameters land in the protected header, so its
	// key is handled before the header is encoded.
	var cek *jose.Secret
	encryptedKeys := make([][]byte, len(e.recipients))
	if single {
		cek, encryptedKeys[0], err = e.contentKey(e.recipients[0].Provider, protected)
	} else {
		cek, err = e.content.GenerateCEK()
	}
	if err != nil {
		return nil, err
	}
	defer cek.Destroy()

	if !single {
		for i, r := range e.recipients {
			if encryptedKeys[i], err = r.Provider.EncryptKey(recipientHeaders[i], cek.Bytes()); err != nil {
				return nil, fmt.Errorf("recipient %d: %w", i, err)
			}
		}
	}

	for i := range e.recipients {
		if _, err := protected.Merge(unprotected, recipientHeaders[i]); err != nil {
			return nil, err
		}
	}

	encodedProtected, err := protected.Encode()
	if err != nil {
		return nil, err
	}
	var encodedAAD string
	if e.opts.aad != nil {
		encodedAAD = jose.Encode(e.opts.aad)
	}
	iv, ciphertext, tag, err := e.seal(cek, protected.KeyID(), jsonAAD(encodedProtected, encodedAAD), content)
	if err != nil {
		return nil, err
	}

	raw := jsonSerialization{
		Protected:   encodedProtected,
		Unprotected: nonEmpty(unprotected),
		AAD:         encodedAAD,
		IV:          jose.Encode(iv),
		Ciphertext:  jose.Encode(ciphertext),
		Tag:         jose.Encode(tag),
	}
	if e.opts.flatten {
		raw.Header = nonEmpty(recipientHeaders[0])
		raw.EncryptedKey = jose.Encode(encryptedKeys[0])
	} else {
		for i := range e.recipients {
			raw.Recipients = append(raw.Recipients, jsonRecipient{
				Header:       nonEmpty(recipientHeaders[i]),
				EncryptedKey: jose.Encode(encryptedKeys[i]),
			})
		}
	}
	return json.Marshal(raw)
}

// protectedHeaders builds the shared protected header: enc, zip, kid and
// any WithHeader members.
func (e *Encryption) protectedHeaders() (*jose.Headers, error) {
	h := jose.NewHeaders()
	for _, hv := range e.opts.headers {
		if err := h.Set(hv.name, hv.value); err != nil {
			return nil, err
		}
	}
	if err := h.Set(jose.HeaderEncryption, string(e.content.Algorithm())); err != nil {
		return nil, err
	}
	if e.opts.compress {
		if err := h.Set(jose.HeaderCompression, "DEF"); err != nil {
			return nil, err
		}
	}
	if e.opts.keyID != "" {
		if err := h.Set(jose.HeaderKeyID, e.opts.keyID); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// contentKey returns the CEK for one recipient. Direct algorithms derive it
// from the provider; all others generate a random CEK and wrap it.
func (e *Encryption) contentKey(provider KeyEncryptionProvider, headers *jose.Headers) (*jose.Secret, []byte, error) {
	if direct, ok := provider.(DirectKeyProvider); ok && provider.Algorithm().IsDirect() {
		cek, err := direct.ContentKey(headers, e.content.Algorithm())
		if err != nil {
			return nil, nil, err
		}
		return cek, nil, nil
	}

	cek, err := e.content.GenerateCEK()
	if err != nil {
		return nil, nil, err
	}
	encryptedKey, err := provider.EncryptKey(headers, cek.Bytes())
	if err != nil {
		cek.Destroy()
		return nil, nil, err
	}
	return cek, encryptedKey, nil
}

func (e *Encryption) seal(cek *jose.Secret, kid string, aad, content []byte) (iv, ciphertext, tag []byte, err error) {
	plaintext := content
	if e.opts.compress {
		if plaintext, err = deflate(content); err != nil {
			return nil, nil, nil, err
		}
	}

	iv, err = e.content.GenerateIV()
	if err != nil {
		return nil, nil, nil, err
	}
	if e.opts.nonceTracker != nil && e.recipients[0].Provider.Algorithm() == jwa.Direct {
		if kid == "" {
			kid = string(jwa.Direct)
		}
		if err := e.opts.nonceTracker.CheckAndRecord(kid, iv); err != nil {
			return nil, nil, nil, err
		}
	}

	ciphertext, tag, err = e.content.Encrypt(cek.Bytes(), iv, aad, plaintext)
	if err != nil {
		return nil, nil, nil, err
	}
	return iv, ciphertext, tag, nil
}
