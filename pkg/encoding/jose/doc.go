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

// Package jose contains the plumbing shared by the JWE, JWS and JWT packages.
//
// It provides:
//   - base64url encoding without padding (RFC 7515 Section 2)
//   - Headers, a JOSE header set whose registered members are type-checked
//     when parsed, so a non-string "iv" or a fractional "p2c" fails
//     immediately with ErrMalformedHeader instead of at decode time
//   - critical ("crit") header validation
//   - Secret, a scoped buffer for content encryption keys that is zeroed
//     when destroyed
//   - ErrSecurity, the single error returned by consumers for any
//     malformed-input or verification failure
//
// Consumers collapse every parse, decode and cryptographic failure into
// ErrSecurity so callers cannot distinguish which stage failed. The detailed
// cause is available only to the logger configured on the consumer.
package jose
