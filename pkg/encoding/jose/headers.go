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

package jose

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"sort"
)

// Registered header parameter names (RFC 7515, 7516, 7518, 7797).
const (
	HeaderAlgorithm          = "alg"
	HeaderEncryption         = "enc"
	HeaderCompression        = "zip"
	HeaderKeyID              = "kid"
	HeaderType               = "typ"
	HeaderContentType        = "cty"
	HeaderCritical           = "crit"
	HeaderJWKSetURL          = "jku"
	HeaderJWK                = "jwk"
	HeaderX509URL            = "x5u"
	HeaderX509Chain          = "x5c"
	HeaderX509Thumbprint     = "x5t"
	HeaderX509ThumbprintS256 = "x5t#S256"
	HeaderIV                 = "iv"
	HeaderTag                = "tag"
	HeaderPBES2Salt          = "p2s"
	HeaderPBES2Count         = "p2c"
	HeaderEphemeralKey       = "epk"
	HeaderAgreementPartyU    = "apu"
	HeaderAgreementPartyV    = "apv"
	HeaderBase64Payload      = "b64"
)

type headerKind int

const (
	kindString headerKind = iota
	kindPositiveInt
	kindObject
	kindStringArray
	kindBool
)

// headerKinds lists the JSON type every registered member must have.
var headerKinds = map[string]headerKind{
	HeaderAlgorithm:          kindString,
	HeaderEncryption:         kindString,
	HeaderCompression:        kindString,
	HeaderKeyID:              kindString,
	HeaderType:               kindString,
	HeaderContentType:        kindString,
	HeaderJWKSetURL:          kindString,
	HeaderX509URL:            kindString,
	HeaderX509Thumbprint:     kindString,
	HeaderX509ThumbprintS256: kindString,
	HeaderIV:                 kindString,
	HeaderTag:                kindString,
	HeaderPBES2Salt:          kindString,
	HeaderAgreementPartyU:    kindString,
	HeaderAgreementPartyV:    kindString,
	HeaderPBES2Count:         kindPositiveInt,
	HeaderEphemeralKey:       kindObject,
	HeaderJWK:                kindObject,
	HeaderCritical:           kindStringArray,
	HeaderX509Chain:          kindStringArray,
	HeaderBase64Payload:      kindBool,
}

// Headers is a JOSE header set. Values of registered members are validated
// when parsed or set, so the typed accessors never need to coerce.
//
// A Headers returned by a consumer must be treated as read-only; use Clone
// before modifying it.
type Headers struct {
	values map[string]interface{}
}

// NewHeaders returns an empty header set.
func NewHeaders() *Headers {
	return &Headers{values: make(map[string]interface{})}
}

// ParseHeaders decodes a JSON object into a header set, validating the
// type of every registered member.
func ParseHeaders(data []byte) (*Headers, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: header is not a JSON object", ErrMalformedHeader)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after header", ErrMalformedHeader)
	}

	h := &Headers{values: make(map[string]interface{}, len(raw))}
	for name, value := range raw {
		if err := h.Set(name, value); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// ParseEncodedHeaders base64url-decodes and parses a protected header segment.
func ParseEncodedHeaders(encoded string) (*Headers, error) {
	data, err := Decode(encoded)
	if err != nil {
		return nil, err
	}
	return ParseHeaders(data)
}

// Set validates and stores a header member. Integer members accept any Go
// integer type or a json.Number.
func (h *Headers) Set(name string, value interface{}) error {
	if h.values == nil {
		h.values = make(map[string]interface{})
	}
	normalized, err := normalize(name, value)
	if err != nil {
		return err
	}
	h.values[name] = normalized
	return nil
}

// Delete removes a header member.
func (h *Headers) Delete(name string) {
	delete(h.values, name)
}

// Get returns the raw value of a header member.
func (h *Headers) Get(name string) (interface{}, bool) {
	if h == nil {
		return nil, false
	}
	v, ok := h.values[name]
	return v, ok
}

// Has reports whether the header member is present.
func (h *Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// String returns a string-valued header member.
func (h *Headers) String(name string) (string, bool) {
	v, ok := h.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int returns an integer-valued header member.
func (h *Headers) Int(name string) (int64, bool) {
	v, ok := h.Get(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// Bool returns a boolean-valued header member.
func (h *Headers) Bool(name string) (bool, bool) {
	v, ok := h.Get(name)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Strings returns a string-array header member.
func (h *Headers) Strings(name string) ([]string, bool) {
	v, ok := h.Get(name)
	if !ok {
		return nil, false
	}
	s, ok := v.([]string)
	if !ok {
		return nil, false
	}
	return append([]string(nil), s...), true
}

// Object returns an object-valued header member re-encoded as JSON.
func (h *Headers) Object(name string) (json.RawMessage, bool) {
	v, ok := h.Get(name)
	if !ok {
		return nil, false
	}
	if _, isMap := v.(map[string]interface{}); !isMap {
		return nil, false
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Bytes returns a base64url-encoded header member decoded. A member that is
// absent returns ErrMissingHeader; one that is not valid base64url returns
// ErrMalformedHeader.
func (h *Headers) Bytes(name string) ([]byte, error) {
	s, ok := h.String(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingHeader, name)
	}
	b, err := Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not base64url", ErrMalformedHeader, name)
	}
	return b, nil
}

// Algorithm returns the "alg" header.
func (h *Headers) Algorithm() string {
	s, _ := h.String(HeaderAlgorithm)
	return s
}

// Encryption returns the "enc" header.
func (h *Headers) Encryption() string {
	s, _ := h.String(HeaderEncryption)
	return s
}

// Compression returns the "zip" header.
func (h *Headers) Compression() string {
	s, _ := h.String(HeaderCompression)
	return s
}

// KeyID returns the "kid" header.
func (h *Headers) KeyID() string {
	s, _ := h.String(HeaderKeyID)
	return s
}

// Type returns the "typ" header.
func (h *Headers) Type() string {
	s, _ := h.String(HeaderType)
	return s
}

// ContentType returns the "cty" header.
func (h *Headers) ContentType() string {
	s, _ := h.String(HeaderContentType)
	return s
}

// Critical returns the "crit" header.
func (h *Headers) Critical() []string {
	s, _ := h.Strings(HeaderCritical)
	return s
}

// PayloadEncoded reports whether the JWS payload is base64url encoded. It is
// true unless "b64" is explicitly false (RFC 7797).
func (h *Headers) PayloadEncoded() bool {
	b, ok := h.Bool(HeaderBase64Payload)
	return !ok || b
}

// Names returns the sorted member names.
func (h *Headers) Names() []string {
	if h == nil {
		return nil
	}
	names := make([]string, 0, len(h.values))
	for name := range h.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of members.
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.values)
}

// Clone returns a copy that can be modified independently.
func (h *Headers) Clone() *Headers {
	if h == nil {
		return NewHeaders()
	}
	return &Headers{values: maps.Clone(h.values)}
}

// Merge returns the union of h and the given header sets. A name present in
// more than one set fails with ErrDuplicateHeader (RFC 7516 Section 7.2.1).
func (h *Headers) Merge(others ...*Headers) (*Headers, error) {
	merged := h.Clone()
	for _, other := range others {
		if other == nil {
			continue
		}
		for name, value := range other.values {
			if _, exists := merged.values[name]; exists {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateHeader, name)
			}
			merged.values[name] = value
		}
	}
	return merged, nil
}

// MarshalJSON encodes the header set. Member order is sorted by name.
func (h *Headers) MarshalJSON() ([]byte, error) {
	if h == nil || h.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(h.values)
}

// UnmarshalJSON parses and validates a header set.
func (h *Headers) UnmarshalJSON(data []byte) error {
	parsed, err := ParseHeaders(data)
	if err != nil {
		return err
	}
	h.values = parsed.values
	return nil
}

// Encode returns the base64url encoding of the JSON header, suitable as a
// protected header segment.
func (h *Headers) Encode() (string, error) {
	data, err := h.MarshalJSON()
	if err != nil {
		return "", err
	}
	return Encode(data), nil
}

func normalize(name string, value interface{}) (interface{}, error) {
	kind, registered := headerKinds[name]
	if !registered {
		return value, nil
	}

	switch kind {
	case kindString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case kindPositiveInt:
		if n, ok := toInt64(value); ok && n > 0 {
			return n, nil
		}
	case kindObject:
		switch v := value.(type) {
		case map[string]interface{}:
			return v, nil
		case json.RawMessage:
			var m map[string]interface{}
			if err := json.Unmarshal(v, &m); err == nil && m != nil {
				return m, nil
			}
		default:
			data, err := json.Marshal(value)
			if err == nil {
				var m map[string]interface{}
				if err := json.Unmarshal(data, &m); err == nil && m != nil {
					return m, nil
				}
			}
		}
	case kindStringArray:
		switch v := value.(type) {
		case []string:
			return append([]string(nil), v...), nil
		case []interface{}:
			out := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("%w: %s must be an array of strings", ErrMalformedHeader, name)
				}
				out = append(out, s)
			}
			return out, nil
		}
	case kindBool:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has type %T", ErrMalformedHeader, name, value)
}

func toInt64(value interface{}) (int64, bool) {
	switch n := value.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}
