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

package jwk

import "fmt"

// RequiredFields returns the members that must be present for a key type.
// These are also the members hashed by an RFC 7638 thumbprint.
func RequiredFields(kty KeyType) ([]string, error) {
	switch kty {
	case KeyTypeRSA:
		return []string{"e", "kty", "n"}, nil
	case KeyTypeEC:
		return []string{"crv", "kty", "x", "y"}, nil
	case KeyTypeOKP:
		return []string{"crv", "kty", "x"}, nil
	case KeyTypeOct:
		return []string{"k", "kty"}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, kty)
	}
}

// Validate checks that every required member of the key type is present.
func (jwk *JWK) Validate() error {
	fields, err := RequiredFields(KeyType(jwk.Kty))
	if err != nil {
		return err
	}
	for _, name := range fields {
		if jwk.field(name) == "" {
			return fmt.Errorf("%w: %s JWK requires %q", ErrMissingField, jwk.Kty, name)
		}
	}
	return nil
}

func (jwk *JWK) field(name string) string {
	switch name {
	case "kty":
		return jwk.Kty
	case "n":
		return jwk.N
	case "e":
		return jwk.E
	case "crv":
		return jwk.Crv
	case "x":
		return jwk.X
	case "y":
		return jwk.Y
	case "k":
		return jwk.K
	default:
		return ""
	}
}
