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

// Package saml reads SAML 1.1 and SAML 2.0 assertions held as etree
// elements. It exposes the parts of an assertion that trust decisions are
// made on: subject confirmation methods, audience restrictions, the subject,
// the issuer and the validity window.
//
// The wrapper does not verify XML signatures. Callers hand it assertions
// that an upstream validator has already marked as trusted.
package saml

import (
	"errors"
	"fmt"
	"time"

	"github.com/beevik/etree"
)

// Assertion namespaces.
const (
	NamespaceSAML1 = "urn:oasis:names:tc:SAML:1.0:assertion"
	NamespaceSAML2 = "urn:oasis:names:tc:SAML:2.0:assertion"
)

// Subject confirmation method URNs.
const (
	ConfirmationBearer1        = "urn:oasis:names:tc:SAML:1.0:cm:bearer"
	ConfirmationBearer2        = "urn:oasis:names:tc:SAML:2.0:cm:bearer"
	ConfirmationHolderOfKey1   = "urn:oasis:names:tc:SAML:1.0:cm:holder-of-key"
	ConfirmationHolderOfKey2   = "urn:oasis:names:tc:SAML:2.0:cm:holder-of-key"
	ConfirmationSenderVouches1 = "urn:oasis:names:tc:SAML:1.0:cm:sender-vouches"
	ConfirmationSenderVouches2 = "urn:oasis:names:tc:SAML:2.0:cm:sender-vouches"
)

var (
	// ErrNotAssertion is returned when an element is not a SAML Assertion.
	ErrNotAssertion = errors.New("saml: element is not a SAML assertion")

	// ErrMalformedAssertion is returned when an assertion is missing
	// required content or carries values that cannot be parsed.
	ErrMalformedAssertion = errors.New("saml: malformed assertion")
)

// Version identifies the SAML major version of an assertion.
type Version int

const (
	// Version1 is SAML 1.0/1.1.
	Version1 Version = 1
	// Version2 is SAML 2.0.
	Version2 Version = 2
)

// String returns "1.1" or "2.0".
func (v Version) String() string {
	switch v {
	case Version1:
		return "1.1"
	case Version2:
		return "2.0"
	default:
		return "unknown"
	}
}

// Assertion is a read-only view over a SAML assertion element.
type Assertion struct {
	element      *etree.Element
	version      Version
	id           string
	issuer       string
	issueInstant time.Time
	notBefore    time.Time
	notOnOrAfter time.Time
	subject      string
	methods      []string
	audiences    []string
}

// IsAssertion reports whether e is an Assertion element in the SAML 1.x or
// SAML 2.0 assertion namespace.
func IsAssertion(e *etree.Element) bool {
	_, ok := versionOf(e)
	return ok
}

// Parse reads an XML document whose root element is a SAML assertion.
func Parse(data []byte) (*Assertion, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedAssertion, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedAssertion)
	}
	return New(root)
}

// New wraps an assertion element, reading and checking its structure.
func New(e *etree.Element) (*Assertion, error) {
	version, ok := versionOf(e)
	if !ok {
		return nil, ErrNotAssertion
	}
	a := &Assertion{element: e, version: version}
	var err error
	if version == Version1 {
		err = a.readSAML1()
	} else {
		err = a.readSAML2()
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Element returns the underlying assertion element.
func (a *Assertion) Element() *etree.Element { return a.element }

// Version returns the SAML version of the assertion.
func (a *Assertion) Version() Version { return a.version }

// ID returns the assertion identifier (AssertionID or ID).
func (a *Assertion) ID() string { return a.id }

// Issuer returns the assertion issuer.
func (a *Assertion) Issuer() string { return a.issuer }

// IssueInstant returns the time the assertion was issued.
func (a *Assertion) IssueInstant() time.Time { return a.issueInstant }

// Subject returns the subject name identifier, or "" when the assertion has
// no subject.
func (a *Assertion) Subject() string { return a.subject }

// ConfirmationMethods returns every subject confirmation method in document
// order. SAML 1.x assertions may repeat a subject across statements, so
// methods are collected from each of them.
func (a *Assertion) ConfirmationMethods() []string {
	return append([]string(nil), a.methods...)
}

// AudienceURIs returns every Audience URI from every audience restriction in
// the assertion conditions. An empty result means the assertion is not
// restricted to any audience.
func (a *Assertion) AudienceURIs() []string {
	return append([]string(nil), a.audiences...)
}

// NotBefore returns the start of the validity window, zero when unbounded.
func (a *Assertion) NotBefore() time.Time { return a.notBefore }

// NotOnOrAfter returns the end of the validity window, zero when unbounded.
func (a *Assertion) NotOnOrAfter() time.Time { return a.notOnOrAfter }

// ValidAt reports whether t falls inside the assertion's validity window
// widened by skew on both sides.
func (a *Assertion) ValidAt(t time.Time, skew time.Duration) bool {
	if !a.notBefore.IsZero() && t.Add(skew).Before(a.notBefore) {
		return false
	}
	if !a.notOnOrAfter.IsZero() && !t.Add(-skew).Before(a.notOnOrAfter) {
		return false
	}
	return true
}

func versionOf(e *etree.Element) (Version, bool) {
	if e == nil || e.Tag != "Assertion" {
		return 0, false
	}
	switch e.NamespaceURI() {
	case NamespaceSAML1:
		return Version1, true
	case NamespaceSAML2:
		return Version2, true
	default:
		return 0, false
	}
}
