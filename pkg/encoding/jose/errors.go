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

import "errors"

var (
	// ErrSecurity is the undistinguished failure returned when a JOSE object
	// cannot be decrypted or verified.
	ErrSecurity = errors.New("jose: security error")

	// ErrMalformedHeader indicates a header member has the wrong JSON type
	// or the header segment is not a JSON object.
	ErrMalformedHeader = errors.New("jose: malformed header")

	// ErrMissingHeader indicates a required header member is absent.
	ErrMissingHeader = errors.New("jose: missing header")

	// ErrDuplicateHeader indicates a header name appears in more than one
	// of the protected, shared and per-recipient header sets.
	ErrDuplicateHeader = errors.New("jose: duplicate header")

	// ErrUnsupportedCritical indicates a "crit" header lists an extension
	// this implementation does not understand.
	ErrUnsupportedCritical = errors.New("jose: unsupported critical header")

	// ErrInvalidEncoding indicates a segment is not valid base64url.
	ErrInvalidEncoding = errors.New("jose: invalid base64url encoding")

	// ErrSecretDestroyed is returned when a destroyed Secret is used.
	ErrSecretDestroyed = errors.New("jose: secret destroyed")
)
