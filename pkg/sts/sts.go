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

// Package sts holds the request-side types of a Security Token Service:
// received tokens with their validation state, principals, STS-wide
// properties and the token store contract. Delegation decisions built on
// these types live in the delegation subpackage.
package sts

import (
	"errors"
	"time"
)

var (
	// ErrUnsupportedToken is returned when a token representation is not
	// an XML element, a UsernameToken or a JWT.
	ErrUnsupportedToken = errors.New("sts: unsupported token representation")

	// ErrMalformedToken is returned when token content cannot be parsed.
	ErrMalformedToken = errors.New("sts: malformed token")

	// ErrTokenNotFound is returned by a TokenStore for unknown ids.
	ErrTokenNotFound = errors.New("sts: token not found")

	// ErrTokenExpired is returned by a TokenStore for expired tokens.
	ErrTokenExpired = errors.New("sts: token expired")
)

// Principal is an authenticated identity.
type Principal interface {
	Name() string
}

// NamedPrincipal is a Principal identified only by its name.
type NamedPrincipal string

// Name returns the principal name.
func (p NamedPrincipal) Name() string { return string(p) }

// PrincipalName returns the name of p, or "" for a nil principal.
func PrincipalName(p Principal) string {
	if p == nil {
		return ""
	}
	return p.Name()
}

// STSProperties carries service-wide settings made available to token
// handlers.
type STSProperties struct {
	// Issuer is the name the STS issues tokens under.
	Issuer string

	// Realm is the default security realm.
	Realm string

	// ClockSkew is the tolerance applied to token lifetimes.
	ClockSkew time.Duration

	// DefaultTokenTTL is the lifetime given to stored tokens that carry no
	// expiry of their own.
	DefaultTokenTTL time.Duration
}

// DefaultSTSProperties returns properties with a 5 minute clock skew and a
// 30 minute token lifetime.
func DefaultSTSProperties(issuer string) *STSProperties {
	return &STSProperties{
		Issuer:          issuer,
		ClockSkew:       5 * time.Minute,
		DefaultTokenTTL: 30 * time.Minute,
	}
}
