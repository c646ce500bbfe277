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

package jwt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is a JWT claim set (RFC 7519). It is golang-jwt's MapClaims, so
// registered claims are read with GetExpirationTime, GetIssuer,
// GetAudience and the other jwt.Claims accessors.
type Claims = jwt.MapClaims

// Registered claim names (RFC 7519 Section 4.1).
const (
	ClaimIssuer     = "iss"
	ClaimSubject    = "sub"
	ClaimAudience   = "aud"
	ClaimExpiration = "exp"
	ClaimNotBefore  = "nbf"
	ClaimIssuedAt   = "iat"
	ClaimID         = "jti"
)

// NewClaims returns a claim set with iat, nbf and a random jti. Empty
// arguments are omitted, and a ttl of zero omits exp. A single audience
// is encoded as a string.
//
// Example:
//
//	claims := jwt.NewClaims("https://sts.example.com", "alice", []string{"https://api.example.com"}, time.Hour)
//	claims["scope"] = "read"
func NewClaims(issuer, subject string, audience []string, ttl time.Duration) Claims {
	now := time.Now()
	c := Claims{
		ClaimIssuedAt:  now.Unix(),
		ClaimNotBefore: now.Unix(),
		ClaimID:        uuid.NewString(),
	}
	if issuer != "" {
		c[ClaimIssuer] = issuer
	}
	if subject != "" {
		c[ClaimSubject] = subject
	}
	switch len(audience) {
	case 0:
	case 1:
		c[ClaimAudience] = audience[0]
	default:
		c[ClaimAudience] = audience
	}
	if ttl > 0 {
		c[ClaimExpiration] = now.Add(ttl).Unix()
	}
	return c
}

// ParseClaims decodes a JWT payload. Numbers are kept as json.Number so
// large integers survive.
func ParseClaims(payload []byte) (Claims, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var c Claims
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", jwt.ErrTokenMalformed, err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: claims are not a JSON object", jwt.ErrTokenMalformed)
	}
	return c, nil
}
