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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/metrics"
)

type jsonSignature struct {
	Protected string        `json:"protected,omitempty"`
	Header    *jose.Headers `json:"header,omitempty"`
	Signature string        `json:"signature"`
}

// jsonSerialization covers the general syntax and, through the inline
// signature fields, the flattened syntax (RFC 7515 Section 7.2).
type jsonSerialization struct {
	Payload    *string         `json:"payload,omitempty"`
	Signatures []jsonSignature `json:"signatures,omitempty"`
	Protected  string          `json:"protected,omitempty"`
	Header     *jose.Headers   `json:"header,omitempty"`
	Signature  *string         `json:"signature,omitempty"`
}

// JSONProducer builds a JWS JSON serialization with one or more signatures
// over the same payload.
type JSONProducer struct {
	payload    []byte
	opts       *options
	signatures []jsonSignature
}

// NewJSONProducer returns a producer for payload. WithUnencodedPayload
// applies to every signature.
func NewJSONProducer(payload []byte, opts ...Option) *JSONProducer {
	return &JSONProducer{payload: payload, opts: newOptions(opts...)}
}

// AddSignature signs the payload with provider. protected members are
// merged into the protected header built from the producer options;
// unprotected members go into the per-signature "header". "alg" and "crit"
// must be protected.
func (p *JSONProducer) AddSignature(provider SignatureProvider, protected, unprotected map[string]interface{}) (err error) {
	if provider == nil {
		return fmt.Errorf("%w: provider cannot be nil", ErrInvalidKey)
	}
	start := time.Now()
	defer func() { metrics.ObserveOperation(metrics.OpSign, string(provider.Algorithm()), start, err) }()

	headers, err := p.opts.protectedHeaders()
	if err != nil {
		return err
	}
	for name, value := range protected {
		if err := headers.Set(name, value); err != nil {
			return err
		}
	}

	var header *jose.Headers
	if len(unprotected) > 0 {
		header = jose.NewHeaders()
		for name, value := range unprotected {
			switch name {
			case jose.HeaderAlgorithm, jose.HeaderCritical, jose.HeaderBase64Payload:
				return fmt.Errorf("%w: %s must be protected", jose.ErrMalformedHeader, name)
			}
			if err := header.Set(name, value); err != nil {
				return err
			}
		}
		if _, err := headers.Merge(header); err != nil {
			return err
		}
	}

	encodedHeaders, sig, err := sign(provider, headers, p.payload)
	if err != nil {
		return err
	}
	p.signatures = append(p.signatures, jsonSignature{
		Protected: encodedHeaders,
		Header:    header,
		Signature: jose.Encode(sig),
	})
	return nil
}

// Serialize returns the general JSON serialization, or the flattened form
// when WithFlattened was given and there is exactly one signature.
func (p *JSONProducer) Serialize() (string, error) {
	if len(p.signatures) == 0 {
		return "", ErrNoSignatures
	}
	var out jsonSerialization
	if !p.opts.detached {
		payload := payloadSegment(p.payload, !p.opts.unencoded)
		out.Payload = &payload
	}
	if p.opts.flatten {
		if len(p.signatures) != 1 {
			return "", fmt.Errorf("%w: flattened serialization requires exactly one signature", ErrInvalidFormat)
		}
		s := p.signatures[0]
		out.Protected, out.Header, out.Signature = s.Protected, s.Header, &s.Signature
	} else {
		out.Signatures = p.signatures
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// JSONSignature is one signature of a parsed JSON JWS.
type JSONSignature struct {
	EncodedProtected string
	Protected        *jose.Headers
	Unprotected      *jose.Headers
	Signature        []byte
}

// Headers returns the union of the protected and unprotected headers.
func (s *JSONSignature) Headers() (*jose.Headers, error) {
	return s.Protected.Merge(s.Unprotected)
}

// JSONConsumer is a parsed JWS JSON serialization.
type JSONConsumer struct {
	EncodedPayload string
	Payload        []byte
	Signatures     []JSONSignature
	Flattened      bool
}

// ParseJSON parses a general or flattened JSON JWS. detached supplies the
// payload when the "payload" member is absent.
func ParseJSON(data []byte, detached []byte) (*JSONConsumer, error) {
	var raw jsonSerialization
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	c := &JSONConsumer{}
	entries := raw.Signatures
	switch {
	case raw.Signature != nil && entries == nil:
		c.Flattened = true
		entries = []jsonSignature{{Protected: raw.Protected, Header: raw.Header, Signature: *raw.Signature}}
	case raw.Signature != nil || raw.Protected != "" || raw.Header != nil:
		return nil, fmt.Errorf("%w: mixed general and flattened members", ErrInvalidFormat)
	case len(entries) == 0:
		return nil, ErrNoSignatures
	}

	encoded := true
	for i, e := range entries {
		s, err := parseSignature(e)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		if i == 0 {
			encoded = s.Protected.PayloadEncoded()
		} else if s.Protected.PayloadEncoded() != encoded {
			return nil, fmt.Errorf("%w: signatures disagree on b64", jose.ErrMalformedHeader)
		}
		c.Signatures = append(c.Signatures, *s)
	}

	switch {
	case raw.Payload == nil && detached == nil:
		return nil, fmt.Errorf("%w: payload is missing", ErrInvalidFormat)
	case raw.Payload == nil:
		c.Payload = detached
		c.EncodedPayload = payloadSegment(detached, encoded)
	case detached != nil:
		return nil, fmt.Errorf("%w: payload is both attached and detached", ErrInvalidFormat)
	case encoded:
		payload, err := jose.Decode(*raw.Payload)
		if err != nil {
			return nil, fmt.Errorf("payload: %w", err)
		}
		c.Payload = payload
		c.EncodedPayload = *raw.Payload
	default:
		c.Payload = []byte(*raw.Payload)
		c.EncodedPayload = *raw.Payload
	}
	return c, nil
}

func parseSignature(e jsonSignature) (*JSONSignature, error) {
	protected := jose.NewHeaders()
	if e.Protected != "" {
		var err error
		if protected, err = jose.ParseEncodedHeaders(e.Protected); err != nil {
			return nil, err
		}
	}
	if e.Header != nil {
		for _, name := range []string{jose.HeaderCritical, jose.HeaderBase64Payload} {
			if e.Header.Has(name) {
				return nil, fmt.Errorf("%w: %s must be protected", jose.ErrMalformedHeader, name)
			}
		}
	}
	if e.Signature == "" {
		return nil, fmt.Errorf("%w: signature is required", ErrInvalidFormat)
	}
	sig, err := jose.Decode(e.Signature)
	if err != nil {
		return nil, err
	}
	return &JSONSignature{
		EncodedProtected: e.Protected,
		Protected:        protected,
		Unprotected:      e.Header,
		Signature:        sig,
	}, nil
}

// VerifyAny returns the index of the first signature verifier accepts.
func (c *JSONConsumer) VerifyAny(verifier SignatureVerifier) (int, error) {
	var errs []error
	for i := range c.Signatures {
		err := c.verify(i, verifier)
		if err == nil {
			return i, nil
		}
		errs = append(errs, err)
	}
	return -1, fmt.Errorf("%w: %w", ErrSignatureInvalid, errors.Join(errs...))
}

// VerifyAll verifies signature i with verifiers[i]. The number of
// verifiers must match the number of signatures.
func (c *JSONConsumer) VerifyAll(verifiers ...SignatureVerifier) error {
	if len(verifiers) != len(c.Signatures) {
		return fmt.Errorf("%w: %d verifiers for %d signatures", ErrInvalidKey, len(verifiers), len(c.Signatures))
	}
	for i, v := range verifiers {
		if err := c.verify(i, v); err != nil {
			return fmt.Errorf("signature %d: %w", i, err)
		}
	}
	return nil
}

func (c *JSONConsumer) verify(i int, verifier SignatureVerifier) error {
	s := &c.Signatures[i]
	headers, err := s.Headers()
	if err != nil {
		return err
	}
	return verifySignature(verifier, headers, s.EncodedProtected, c.EncodedPayload, s.Signature)
}
