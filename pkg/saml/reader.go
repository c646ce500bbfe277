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

package saml

import (
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
)

// SAML 1.x statements that carry a Subject.
var saml1SubjectStatements = []string{
	"AuthenticationStatement",
	"AttributeStatement",
	"AuthorizationDecisionStatement",
	"SubjectStatement",
}

func (a *Assertion) readSAML1() error {
	e := a.element
	if v := e.SelectAttrValue("MajorVersion", ""); v != "1" {
		return fmt.Errorf("%w: unsupported MajorVersion %q", ErrMalformedAssertion, v)
	}
	a.id = e.SelectAttrValue("AssertionID", "")
	if a.id == "" {
		return fmt.Errorf("%w: missing AssertionID", ErrMalformedAssertion)
	}
	a.issuer = e.SelectAttrValue("Issuer", "")
	if a.issuer == "" {
		return fmt.Errorf("%w: missing Issuer", ErrMalformedAssertion)
	}
	var err error
	if a.issueInstant, err = requiredInstant(e, "IssueInstant"); err != nil {
		return err
	}

	conditions, err := optionalChild(e, NamespaceSAML1, "Conditions")
	if err != nil {
		return err
	}
	if conditions != nil {
		if err := a.readConditions(conditions, NamespaceSAML1, "AudienceRestrictionCondition"); err != nil {
			return err
		}
	}

	for _, name := range saml1SubjectStatements {
		for _, stmt := range children(e, NamespaceSAML1, name) {
			subject, err := optionalChild(stmt, NamespaceSAML1, "Subject")
			if err != nil {
				return err
			}
			if subject == nil {
				continue
			}
			if err := a.readSAML1Subject(subject); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Assertion) readSAML1Subject(subject *etree.Element) error {
	if a.subject == "" {
		if id := firstChild(subject, NamespaceSAML1, "NameIdentifier"); id != nil {
			a.subject = strings.TrimSpace(id.Text())
		}
	}
	for _, sc := range children(subject, NamespaceSAML1, "SubjectConfirmation") {
		methods := children(sc, NamespaceSAML1, "ConfirmationMethod")
		if len(methods) == 0 {
			return fmt.Errorf("%w: SubjectConfirmation without ConfirmationMethod", ErrMalformedAssertion)
		}
		for _, m := range methods {
			method := strings.TrimSpace(m.Text())
			if method == "" {
				return fmt.Errorf("%w: empty ConfirmationMethod", ErrMalformedAssertion)
			}
			a.methods = append(a.methods, method)
		}
	}
	return nil
}

func (a *Assertion) readSAML2() error {
	e := a.element
	if v := e.SelectAttrValue("Version", ""); v != "2.0" {
		return fmt.Errorf("%w: unsupported Version %q", ErrMalformedAssertion, v)
	}
	a.id = e.SelectAttrValue("ID", "")
	if a.id == "" {
		return fmt.Errorf("%w: missing ID", ErrMalformedAssertion)
	}
	var err error
	if a.issueInstant, err = requiredInstant(e, "IssueInstant"); err != nil {
		return err
	}
	issuer, err := optionalChild(e, NamespaceSAML2, "Issuer")
	if err != nil {
		return err
	}
	if issuer == nil || strings.TrimSpace(issuer.Text()) == "" {
		return fmt.Errorf("%w: missing Issuer", ErrMalformedAssertion)
	}
	a.issuer = strings.TrimSpace(issuer.Text())

	subject, err := optionalChild(e, NamespaceSAML2, "Subject")
	if err != nil {
		return err
	}
	if subject != nil {
		if id := firstChild(subject, NamespaceSAML2, "NameID"); id != nil {
			a.subject = strings.TrimSpace(id.Text())
		}
		for _, sc := range children(subject, NamespaceSAML2, "SubjectConfirmation") {
			method := strings.TrimSpace(sc.SelectAttrValue("Method", ""))
			if method == "" {
				return fmt.Errorf("%w: SubjectConfirmation without Method", ErrMalformedAssertion)
			}
			a.methods = append(a.methods, method)
		}
	}

	conditions, err := optionalChild(e, NamespaceSAML2, "Conditions")
	if err != nil {
		return err
	}
	if conditions != nil {
		return a.readConditions(conditions, NamespaceSAML2, "AudienceRestriction")
	}
	return nil
}

// readConditions reads the validity window and every Audience below every
// restriction element named restriction.
func (a *Assertion) readConditions(conditions *etree.Element, ns, restriction string) error {
	var err error
	if a.notBefore, err = optionalInstant(conditions, "NotBefore"); err != nil {
		return err
	}
	if a.notOnOrAfter, err = optionalInstant(conditions, "NotOnOrAfter"); err != nil {
		return err
	}
	for _, r := range children(conditions, ns, restriction) {
		audiences := children(r, ns, "Audience")
		if len(audiences) == 0 {
			return fmt.Errorf("%w: %s without Audience", ErrMalformedAssertion, restriction)
		}
		for _, aud := range audiences {
			if uri := strings.TrimSpace(aud.Text()); uri != "" {
				a.audiences = append(a.audiences, uri)
			}
		}
	}
	return nil
}

func children(e *etree.Element, ns, tag string) []*etree.Element {
	var out []*etree.Element
	for _, c := range e.ChildElements() {
		if c.Tag == tag && c.NamespaceURI() == ns {
			out = append(out, c)
		}
	}
	return out
}

func firstChild(e *etree.Element, ns, tag string) *etree.Element {
	for _, c := range e.ChildElements() {
		if c.Tag == tag && c.NamespaceURI() == ns {
			return c
		}
	}
	return nil
}

// optionalChild returns the single child named tag, nil when absent, and an
// error when it is repeated.
func optionalChild(e *etree.Element, ns, tag string) (*etree.Element, error) {
	found := children(e, ns, tag)
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: repeated %s element", ErrMalformedAssertion, tag)
	}
}

func requiredInstant(e *etree.Element, attr string) (time.Time, error) {
	t, err := optionalInstant(e, attr)
	if err != nil {
		return time.Time{}, err
	}
	if t.IsZero() {
		return time.Time{}, fmt.Errorf("%w: missing %s", ErrMalformedAssertion, attr)
	}
	return t, nil
}

func optionalInstant(e *etree.Element, attr string) (time.Time, error) {
	v := e.SelectAttrValue(attr, "")
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid %s %q", ErrMalformedAssertion, attr, v)
	}
	return t.UTC(), nil
}
