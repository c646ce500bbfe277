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

package kdf_test

import (
	"fmt"
	"log"

	"github.com/jeremyhahn/go-trustkit/pkg/adapters/kdf"
)

// Example demonstrates deriving a PBES2 key-encryption key from a password
func Example_pbkdf2() {
	adapter := kdf.NewPBKDF2Adapter()

	params := kdf.DefaultParams(kdf.AlgorithmPBKDF2)
	params.Salt = append([]byte("PBES2-HS256+A128KW\x00"), []byte("0123456789abcdef")...)

	key, err := adapter.DeriveKey([]byte("correct horse battery staple"), params)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Derived key length: %d bytes\n", len(key))
	// Output: Derived key length: 16 bytes
}

// Example demonstrates deriving an ECDH-ES content key from a shared secret
func Example_concat() {
	adapter := kdf.NewConcatAdapter()

	params := kdf.DefaultParams(kdf.AlgorithmConcat)
	params.AlgorithmID = []byte("A256GCM")
	params.KeyLength = 32

	key, err := adapter.DeriveKey(make([]byte, 32), params)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Derived key length: %d bytes\n", len(key))
	// Output: Derived key length: 32 bytes
}
