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
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-trustkit/pkg/crypto/aead"
	"github.com/jeremyhahn/go-trustkit/pkg/crypto/wrapping"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/metrics"
)

// DecryptionOutput is the result of a successful decryption.
type DecryptionOutput struct {
	// Headers is the union of the protected, shared and recipient headers.
	Headers *jose.Headers

	// Content is the decrypted, decompressed plaintext.
	Content []byte

	// AAD is the JWE AAD of a JSON serialization, if any.
	AAD []byte

	// Recipient is the index of the recipient that was decrypted.
	Recipient int
}

// Decryption decrypts JWE objects with one key decryption provider.
//
// Every failure after parsing is reported as jose.ErrSecurity; the detailed
// cause is logged at warn level so that callers cannot act as an oracle for
// the underlying error.
type Decryption struct {
	provider KeyDecryptionProvider
	opts     *options
}

// NewDecryption returns a Decryption for provider.
func NewDecryption(provider KeyDecryptionProvider, opts ...Option) (*Decryption, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: provider cannot be nil", ErrInvalidKey)
	}
	return &Decryption{provider: provider, opts: newOptions(opts...)}, nil
}

// Decrypt accepts either serialization: input starting with "{" is parsed
// as JSON, anything else as compact.
func (d *Decryption) Decrypt(content []byte) (*DecryptionOutput, error) {
	if trimmed := bytes.TrimSpace(content); len(trimmed) > 0 && trimmed[0] == '{' {
		return d.DecryptJSON(trimmed)
	}
	return d.DecryptCompact(string(content))
}

// DecryptCompact decrypts a compact serialization.
func (d *Decryption) DecryptCompact(content string) (out *DecryptionOutput, err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation(metrics.OpDecrypt, string(d.provider.Algorithm()), start, err) }()

	c, err := ParseCompact(content)
	if err != nil {
		return nil, d.fail(err)
	}
	if err := d.checkKeyID(c.Headers); err != nil {
		return nil, d.fail(err)
	}
	plaintext, err := d.decrypt(c.Headers, c.Headers, c.EncryptedKey, c.IV, c.Ciphertext, c.Tag, c.AdditionalAuthenticatedData())
	if err != nil {
		return nil, d.fail(err)
	}
	return &DecryptionOutput{Headers: c.Headers, Content: plaintext}, nil
}

// DecryptJSON decrypts a general or flattened JSON serialization. The
// recipients are tried in order, skipping those whose "alg" (or "kid" when
// WithKeyID was given) does not match; the first one that decrypts wins.
func (d *Decryption) DecryptJSON(data []byte) (out *DecryptionOutput, err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation(metrics.OpDecrypt, string(d.provider.Algorithm()), start, err) }()

	c, err := ParseJSON(data)
	if err != nil {
		return nil, d.fail(err)
	}

	aad := c.AdditionalAuthenticatedData()
	lastErr := error(ErrRecipientNotFound)
	for i, r := range c.Recipients {
		headers, err := c.RecipientHeaders(i)
		if err != nil {
			return nil, d.fail(err)
		}
		if headers.Algorithm() != string(d.provider.Algorithm()) || d.checkKeyID(headers) != nil {
			continue
		}
		plaintext, err := d.decrypt(headers, c.Protected, r.EncryptedKey, c.IV, c.Ciphertext, c.Tag, aad)
		if err != nil {
			lastErr = err
			continue
		}
		return &DecryptionOutput{
			Headers:   headers,
			Content:   plaintext,
			AAD:       c.AAD,
			Recipient: i,
		}, nil
	}
	return nil, d.fail(lastErr)
}

func (d *Decryption) checkKeyID(headers *jose.Headers) error {
	if d.opts.keyID == "" || headers.KeyID() == d.opts.keyID {
		return nil
	}
	return fmt.Errorf("%w: kid %q", ErrRecipientNotFound, headers.KeyID())
}

// decrypt runs the checks and cryptographic steps shared by both
// serializations. protected holds the integrity protected members only.
func (d *Decryption) decrypt(headers, protected *jose.Headers, encryptedKey, iv, ciphertext, tag, aad []byte) ([]byte, error) {
	alg := d.provider.Algorithm()
	if headers.Algorithm() != string(alg) {
		return nil, fmt.Errorf("%w: header alg %q, provider %s", ErrAlgorithmMismatch, headers.Algorithm(), alg)
	}
	enc, err := jwa.ParseContentAlgorithm(headers.Encryption())
	if err != nil {
		return nil, err
	}
	if len(d.opts.allowedContent) > 0 && !slices.Contains(d.opts.allowedContent, enc) {
		return nil, fmt.Errorf("%w: enc %s not allowed", ErrUnsupportedAlgorithm, enc)
	}
	if err := jose.ValidateCritical(headers); err != nil {
		return nil, err
	}
	compressed, err := checkCompression(headers, protected)
	if err != nil {
		return nil, err
	}
	if alg.IsPbes2() && d.opts.maxIterations > 0 {
		p2c, _ := headers.Int(jose.HeaderPBES2Count)
		if err := checkIterations(p2c, d.opts.maxIterations); err != nil {
			return nil, err
		}
	}

	cek, err := d.provider.DecryptKey(headers, encryptedKey)
	switch {
	case errors.Is(err, wrapping.ErrUnwrap):
		// Continue with a random CEK so that a bad key surfaces as a tag
		// failure (RFC 7516 Section 11.5).
		d.opts.logger.Debug("key unwrap failed, substituting random CEK", logger.Algorithm(string(alg)))
		if cek, err = jose.GenerateSecret(enc.KeySize()); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}
	defer cek.Destroy()

	if cek.Len() != enc.KeySize() {
		return nil, fmt.Errorf("%w: CEK is %d bytes, %s requires %d", ErrInvalidKey, cek.Len(), enc, enc.KeySize())
	}

	plaintext, err := aead.Open(enc, cek.Bytes(), iv, aad, ciphertext, tag)
	if err != nil {
		return nil, err
	}
	if compressed {
		return inflate(plaintext, d.opts.maxInflatedSize)
	}
	return plaintext, nil
}

// checkCompression reports whether "zip":"DEF" applies. "zip" must be
// integrity protected.
func checkCompression(headers, protected *jose.Headers) (bool, error) {
	zip := headers.Compression()
	switch {
	case zip == "":
		return false, nil
	case zip != "DEF":
		return false, fmt.Errorf("%w: zip %q", ErrUnsupportedAlgorithm, zip)
	case protected.Compression() != zip:
		return false, fmt.Errorf("%w: zip must be in the protected header", jose.ErrMalformedHeader)
	}
	return true, nil
}

func (d *Decryption) fail(err error) error {
	d.opts.logger.Warn("JWE decryption failed",
		logger.Algorithm(string(d.provider.Algorithm())),
		logger.Error(err))
	metrics.RecordError(metrics.OpDecrypt, "security")
	return jose.ErrSecurity
}
