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
	"crypto/sha1" // #nosec G505 - mandated by the UsernameToken profile digest
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
)

// WS-Security namespaces and UsernameToken password types.
const (
	NamespaceWSSE = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	NamespaceWSU  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"

	PasswordText   = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordText"
	PasswordDigest = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordDigest"
)

// UsernameToken is a WS-Security UsernameToken.
type UsernameToken struct {
	Username     string
	Password     string
	PasswordType string
	Nonce        string
	Created      time.Time

	// CreatedText is the Created value as it appeared on the wire. The
	// password digest is computed over this text, not over Created.
	CreatedText string
}

// ParseUsernameToken reads a wsse:UsernameToken element.
func ParseUsernameToken(e *etree.Element) (*UsernameToken, error) {
	if !isUsernameTokenElement(e) {
		return nil, fmt.Errorf("%w: not a UsernameToken", ErrMalformedToken)
	}
	ut := &UsernameToken{}
	for _, c := range e.ChildElements() {
		switch {
		case c.Tag == "Username" && c.NamespaceURI() == NamespaceWSSE:
			ut.Username = strings.TrimSpace(c.Text())
		case c.Tag == "Password" && c.NamespaceURI() == NamespaceWSSE:
			ut.Password = c.Text()
			ut.PasswordType = c.SelectAttrValue("Type", PasswordText)
		case c.Tag == "Nonce" && c.NamespaceURI() == NamespaceWSSE:
			ut.Nonce = strings.TrimSpace(c.Text())
		case c.Tag == "Created" && c.NamespaceURI() == NamespaceWSU:
			text := strings.TrimSpace(c.Text())
			created, err := time.Parse(time.RFC3339Nano, text)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid Created: %w", ErrMalformedToken, err)
			}
			ut.Created = created.UTC()
			ut.CreatedText = text
		}
	}
	if ut.Username == "" {
		return nil, fmt.Errorf("%w: UsernameToken without Username", ErrMalformedToken)
	}
	return ut, nil
}

// Element renders the token as a wsse:UsernameToken element.
func (u *UsernameToken) Element() *etree.Element {
	root := etree.NewElement("wsse:UsernameToken")
	root.CreateAttr("xmlns:wsse", NamespaceWSSE)
	root.CreateElement("wsse:Username").SetText(u.Username)
	if u.Password != "" {
		pw := root.CreateElement("wsse:Password")
		pw.CreateAttr("Type", u.passwordType())
		pw.SetText(u.Password)
	}
	if u.Nonce != "" {
		root.CreateElement("wsse:Nonce").SetText(u.Nonce)
	}
	if created := u.created(); created != "" {
		root.CreateAttr("xmlns:wsu", NamespaceWSU)
		root.CreateElement("wsu:Created").SetText(created)
	}
	return root
}

// Digest returns Base64(SHA-1(nonce + created + password)) as defined by
// the UsernameToken profile, with the nonce base64-decoded first.
func (u *UsernameToken) Digest(password string) (string, error) {
	nonce, err := base64.StdEncoding.DecodeString(u.Nonce)
	if err != nil {
		return "", fmt.Errorf("%w: invalid Nonce: %w", ErrMalformedToken, err)
	}
	h := sha1.New() // #nosec G401
	h.Write(nonce)
	h.Write([]byte(u.created()))
	h.Write([]byte(password))
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

func (u *UsernameToken) created() string {
	if u.CreatedText != "" {
		return u.CreatedText
	}
	if u.Created.IsZero() {
		return ""
	}
	return u.Created.UTC().Format(time.RFC3339)
}

func (u *UsernameToken) passwordType() string {
	if u.PasswordType == "" {
		return PasswordText
	}
	return u.PasswordType
}

func isUsernameTokenElement(e *etree.Element) bool {
	return e != nil && e.Tag == "UsernameToken" && e.NamespaceURI() == NamespaceWSSE
}
