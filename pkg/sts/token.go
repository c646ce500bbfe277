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

package sts

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// TokenState is the validation state of a received token.
type TokenState int

const (
	// StateNone means the token has not been validated.
	StateNone TokenState = iota
	// StateValid means the token passed validation.
	StateValid
	// StateInvalid means the token failed validation.
	StateInvalid
	// StateExpired means the token was well formed but outside its lifetime.
	StateExpired
)

// String returns the state name.
func (s TokenState) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateValid:
		return "VALID"
	case StateInvalid:
		return "INVALID"
	case StateExpired:
		return "EXPIRED"
	default:
		return fmt.Sprintf("TokenState(%d)", int(s))
	}
}

// ReceivedToken wraps a token presented to the STS together with its
// validation state. The representation is one of an XML element, a
// UsernameToken or a JWT in compact serialization.
type ReceivedToken struct {
	element   *etree.Element
	username  *UsernameToken
	jwt       string
	state     TokenState
	principal Principal
	roles     []Principal
}

// NewReceivedToken wraps token, which must be an *etree.Element, a
// *UsernameToken or a compact JWT string. A wsse:UsernameToken element is
// converted to a *UsernameToken. The token starts in StateNone.
func NewReceivedToken(token any) (*ReceivedToken, error) {
	switch t := token.(type) {
	case *etree.Element:
		if t == nil {
			return nil, ErrUnsupportedToken
		}
		if isUsernameTokenElement(t) {
			ut, err := ParseUsernameToken(t)
			if err != nil {
				return nil, err
			}
			return &ReceivedToken{username: ut}, nil
		}
		return &ReceivedToken{element: t}, nil
	case *UsernameToken:
		if t == nil {
			return nil, ErrUnsupportedToken
		}
		return &ReceivedToken{username: t}, nil
	case string:
		jwt := strings.TrimSpace(t)
		if !looksLikeJWT(jwt) {
			return nil, fmt.Errorf("%w: not a compact JWT", ErrUnsupportedToken)
		}
		return &ReceivedToken{jwt: jwt}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedToken, token)
	}
}

// ParseReceivedToken reads a token from raw bytes. Content starting with
// '<' is read as an XML document and its root element wrapped, anything
// else is treated as a compact JWT.
func ParseReceivedToken(data []byte) (*ReceivedToken, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}
	if data[0] != '<' {
		return NewReceivedToken(string(data))
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedToken)
	}
	return NewReceivedToken(root)
}

// Element returns the XML representation, if the token has one.
func (t *ReceivedToken) Element() (*etree.Element, bool) {
	return t.element, t.element != nil
}

// UsernameToken returns the UsernameToken representation, if any.
func (t *ReceivedToken) UsernameToken() (*UsernameToken, bool) {
	return t.username, t.username != nil
}

// JWT returns the compact JWT representation, if any.
func (t *ReceivedToken) JWT() (string, bool) {
	return t.jwt, t.jwt != ""
}

// IsDOMElement reports whether the token is backed by an XML element.
func (t *ReceivedToken) IsDOMElement() bool { return t.element != nil }

// IsUsernameToken reports whether the token is a UsernameToken.
func (t *ReceivedToken) IsUsernameToken() bool { return t.username != nil }

// IsJWT reports whether the token is a compact JWT.
func (t *ReceivedToken) IsJWT() bool { return t.jwt != "" }

// State returns the validation state.
func (t *ReceivedToken) State() TokenState { return t.state }

// SetState records the outcome of token validation.
func (t *ReceivedToken) SetState(state TokenState) { t.state = state }

// Principal returns the principal the token was issued to, if known.
func (t *ReceivedToken) Principal() Principal { return t.principal }

// SetPrincipal records the principal established by validation.
func (t *ReceivedToken) SetPrincipal(p Principal) { t.principal = p }

// Roles returns the roles established by validation.
func (t *ReceivedToken) Roles() []Principal { return append([]Principal(nil), t.roles...) }

// SetRoles records the roles established by validation.
func (t *ReceivedToken) SetRoles(roles []Principal) {
	t.roles = append([]Principal(nil), roles...)
}

// Kind returns "element", "username" or "jwt".
func (t *ReceivedToken) Kind() string {
	switch {
	case t.element != nil:
		return "element"
	case t.username != nil:
		return "username"
	default:
		return "jwt"
	}
}

// Bytes serializes the token for storage: XML for element and
// UsernameToken representations, the compact form for JWTs.
func (t *ReceivedToken) Bytes() ([]byte, error) {
	switch {
	case t.element != nil:
		doc := etree.NewDocument()
		doc.SetRoot(t.element.Copy())
		return doc.WriteToBytes()
	case t.username != nil:
		doc := etree.NewDocument()
		doc.SetRoot(t.username.Element())
		return doc.WriteToBytes()
	default:
		return []byte(t.jwt), nil
	}
}

func looksLikeJWT(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n<") {
		return false
	}
	dots := strings.Count(s, ".")
	return dots == 2 || dots == 4
}
