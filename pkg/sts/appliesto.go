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
	"strings"

	"github.com/beevik/etree"
)

// WS-Addressing namespaces recognised in AppliesTo.
const (
	NamespaceWSA05 = "http://www.w3.org/2005/08/addressing"
	NamespaceWSA04 = "http://schemas.xmlsoap.org/ws/2004/08/addressing"
)

// ExtractAddressFromAppliesTo returns the target address of a WS-Policy
// AppliesTo element: the Address of an EndpointReference in either
// WS-Addressing namespace, else the text of a URI child in the AppliesTo
// namespace. It returns "" when no address can be found.
func ExtractAddressFromAppliesTo(appliesTo *etree.Element) string {
	if appliesTo == nil {
		return ""
	}
	for _, ns := range []string{NamespaceWSA05, NamespaceWSA04} {
		if ref := childNS(appliesTo, ns, "EndpointReference"); ref != nil {
			if address := childNS(ref, ns, "Address"); address != nil {
				return strings.TrimSpace(address.Text())
			}
			return ""
		}
	}
	if ns := appliesTo.NamespaceURI(); ns != "" {
		if uri := childNS(appliesTo, ns, "URI"); uri != nil {
			return strings.TrimSpace(uri.Text())
		}
	}
	return ""
}

func childNS(e *etree.Element, ns, tag string) *etree.Element {
	for _, c := range e.ChildElements() {
		if c.Tag == tag && c.NamespaceURI() == ns {
			return c
		}
	}
	return nil
}
