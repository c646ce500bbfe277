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

// Package jwe implements JSON Web Encryption (RFC 7516) with the key
// management and content encryption algorithms of RFC 7518.
//
// # Supported Algorithms
//
// Key Management Algorithms:
//   - RSA-OAEP, RSA-OAEP-256 (RSA keys of at least 2048 bits)
//   - A128KW, A192KW, A256KW (AES Key Wrap)
//   - A128GCMKW, A192GCMKW, A256GCMKW (AES-GCM Key Wrap)
//   - PBES2-HS256+A128KW, PBES2-HS384+A192KW, PBES2-HS512+A256KW
//   - ECDH-ES, ECDH-ES+A128KW, ECDH-ES+A192KW, ECDH-ES+A256KW (P-256,
//     P-384, P-521 and X25519)
//   - dir
//
// Content Encryption Algorithms:
//   - A128GCM, A192GCM, A256GCM
//   - A128CBC-HS256, A192CBC-HS384, A256CBC-HS512
//   - "" (empty string) selects A256GCM with hardware AES and
//     A256CBC-HS512 otherwise
//
// # Providers
//
// Key management is split into KeyEncryptionProvider and
// KeyDecryptionProvider. NewKeyEncryptionProvider and
// NewKeyDecryptionProvider pick the implementation from the JWK's key kind
// and the algorithm; a pair with no implementation returns
// ErrUnsupportedAlgorithm rather than a nil provider.
//
// # Basic Usage
//
//	token, err := jwe.Encrypt(recipientPublic, jwa.RSAOAEP256, jwa.A256GCM, plaintext)
//	if err != nil {
//	    return err
//	}
//	plaintext, err := jwe.Decrypt(recipientPrivate, []byte(token))
//
// Multiple recipients and JSON serialization:
//
//	enc, err := jwe.NewMultiRecipientEncryption([]jwe.Recipient{
//	    {Provider: aliceProvider, Headers: map[string]interface{}{"kid": "alice"}},
//	    {Provider: bobProvider, Headers: map[string]interface{}{"kid": "bob"}},
//	}, jwa.A256GCM, jwe.WithAAD(aad))
//	out, err := enc.EncryptJSON(plaintext)
//
// # Failure Reporting
//
// Decryption reports every failure after algorithm selection as
// jose.ErrSecurity. The detailed cause is logged at warn level through the
// configured logger. PBES2 iteration counts above WithMaxPBES2Iterations
// (default 1,000,000) are rejected before any key derivation.
package jwe
