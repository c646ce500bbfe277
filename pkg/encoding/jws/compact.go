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

package jws

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/metrics"
)

// CompactProducer signs a payload into the compact serialization:
//
//	BASE64URL(header).BASE64URL(payload).BASE64URL(signature)
type CompactProducer struct {
	payload []byte
	opts    *options
}

// NewCompactProducer returns a producer for payload.
func NewCompactProducer(payload []byte, opts ...Option) *CompactProducer {
	return &CompactProducer{payload: payload, opts: newOptions(opts...)}
}

// SignWith signs the payload with provider. The "alg" header is set from
// the provider when not given as an option.
func (p *CompactProducer) SignWith(provider SignatureProvider) (token string, err error) {
	if provider == nil {
		return "", fmt.Errorf("%w: provider cannot be nil", ErrInvalidKey)
	}
	start := time.Now()
	defer func() { metrics.ObserveOperation(metrics.OpSign, string(provider.Algorithm()), start, err) }()

	if p.opts.unencoded && !p.opts.detached && strings.ContainsRune(string(p.payload), '.') {
		return "", fmt.Errorf("%w: unencoded compact payload cannot contain '.'", ErrInvalidFormat)
	}
	headers, err := p.opts.protectedHeaders()
	if err != nil {
		return "", err
	}
	encodedHeaders, sig, err := sign(provider, headers, p.payload)
	if err != nil {
		return "", err
	}

	payload := payloadSegment(p.payload, !p.opts.unencoded)
	if p.opts.detached {
		payload = ""
	}
	return encodedHeaders + "." + payload + "." + jose.Encode(sig), nil
}

// CompactConsumer is one parsed compact JWS. It is read-only after
// ParseCompact.
type CompactConsumer struct {
	EncodedHeaders string
	Headers        *jose.Headers
	EncodedPayload string
	Payload        []byte
	Signature      []byte
}

// ParseCompact splits and decodes a compact JWS. detached supplies the
// payload when the middle segment is empty. Unsecured JWS ("alg":"none")
// is rejected.
func ParseCompact(content string, detached []byte) (*CompactConsumer, error) {
	parts := strings.Split(strings.TrimSpace(content), ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrInvalidFormat, len(parts))
	}
	if parts[0] == "" || parts[2] == "" {
		return nil, fmt.Errorf("%w: header and signature segments are required", ErrInvalidFormat)
	}

	headers, err := jose.ParseEncodedHeaders(parts[0])
	if err != nil {
		return nil, err
	}
	if headers.Algorithm() == string(jwa.None) {
		return nil, fmt.Errorf("%w: unsecured JWS", ErrUnsupportedAlgorithm)
	}
	sig, err := jose.Decode(parts[2])
	if err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}

	encoded := headers.PayloadEncoded()
	c := &CompactConsumer{EncodedHeaders: parts[0], Headers: headers, Signature: sig}
	switch {
	case parts[1] == "" && detached != nil:
		c.Payload = detached
		c.EncodedPayload = payloadSegment(detached, encoded)
	case parts[1] != "" && detached != nil:
		return nil, fmt.Errorf("%w: payload is both attached and detached", ErrInvalidFormat)
	case encoded:
		if c.Payload, err = jose.Decode(parts[1]); err != nil {
			return nil, fmt.Errorf("payload: %w", err)
		}
		c.EncodedPayload = parts[1]
	default:
		c.Payload = []byte(parts[1])
		c.EncodedPayload = parts[1]
	}
	return c, nil
}

// SigningInput returns ASCII(BASE64URL(header) || '.' || payload segment).
func (c *CompactConsumer) SigningInput() []byte {
	return signingInput(c.EncodedHeaders, c.EncodedPayload)
}

// Verify checks the signature with verifier.
func (c *CompactConsumer) Verify(verifier SignatureVerifier) error {
	return verifySignature(verifier, c.Headers, c.EncodedHeaders, c.EncodedPayload, c.Signature)
}

// sign encodes headers and returns them with the signature over payload.
// The provider may add "alg" to headers before they are encoded.
func sign(provider SignatureProvider, headers *jose.Headers, payload []byte) (string, []byte, error) {
	signature, err := provider.CreateSignature(headers)
	if err != nil {
		return "", nil, err
	}
	encodedHeaders, err := headers.Encode()
	if err != nil {
		return "", nil, err
	}
	if _, err := signature.Write(signingInput(encodedHeaders, payloadSegment(payload, headers.PayloadEncoded()))); err != nil {
		return "", nil, err
	}
	sig, err := signature.Sign()
	if err != nil {
		return "", nil, err
	}
	return encodedHeaders, sig, nil
}

// verifySignature checks the JWS rules every serialization shares before
// running verifier over the signing input.
func verifySignature(verifier SignatureVerifier, headers *jose.Headers, encodedHeaders, encodedPayload string, sig []byte) error {
	if verifier == nil {
		return fmt.Errorf("%w: verifier cannot be nil", ErrInvalidKey)
	}
	if headers.Algorithm() == string(jwa.None) {
		return fmt.Errorf("%w: unsecured JWS", ErrUnsupportedAlgorithm)
	}
	if headers.Has(jose.HeaderBase64Payload) && !slices.Contains(headers.Critical(), jose.HeaderBase64Payload) {
		return fmt.Errorf("%w: b64 must be listed in crit", jose.ErrMalformedHeader)
	}
	if err := jose.ValidateCritical(headers, jose.HeaderBase64Payload); err != nil {
		return err
	}
	verification, err := verifier.CreateVerification(headers)
	if err != nil {
		return err
	}
	if _, err := verification.Write(signingInput(encodedHeaders, encodedPayload)); err != nil {
		return err
	}
	if !verification.Verify(sig) {
		return ErrSignatureInvalid
	}
	return nil
}

func signingInput(encodedHeaders, encodedPayload string) []byte {
	input := make([]byte, 0, len(encodedHeaders)+1+len(encodedPayload))
	input = append(input, encodedHeaders...)
	input = append(input, '.')
	return append(input, encodedPayload...)
}

func payloadSegment(payload []byte, encoded bool) string {
	if encoded {
		return jose.Encode(payload)
	}
	return string(payload)
}
