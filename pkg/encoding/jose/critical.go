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
	"fmt"
	"slices"
)

// ValidateCritical checks the "crit" header of h per RFC 7515 Section 4.1.11.
// The list must be non-empty, must not name registered members, every
// listed name must be present in h, and every name must be in understood.
// A header without "crit" is valid.
func ValidateCritical(h *Headers, understood ...string) error {
	if !h.Has(HeaderCritical) {
		return nil
	}
	crit := h.Critical()
	if len(crit) == 0 {
		return fmt.Errorf("%w: crit must not be empty", ErrMalformedHeader)
	}
	for _, name := range crit {
		if _, registered := headerKinds[name]; registered && name != HeaderBase64Payload {
			return fmt.Errorf("%w: crit lists registered header %q", ErrMalformedHeader, name)
		}
		if !h.Has(name) {
			return fmt.Errorf("%w: crit lists absent header %q", ErrMalformedHeader, name)
		}
		if !slices.Contains(understood, name) {
			return fmt.Errorf("%w: %q", ErrUnsupportedCritical, name)
		}
	}
	return nil
}
