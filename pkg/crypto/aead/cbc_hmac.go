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

package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/subtle"
	"encoding/binary"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
)

// SealCBCHMAC implements AES_CBC_HMAC_SHA2 encryption (RFC 7518 Section 5.2.2.1).
// The CEK is MAC_KEY || ENC_KEY; the tag is the first half of the HMAC over
// AAD || IV || ciphertext || AL.
func SealCBCHMAC(enc jwa.ContentAlgorithm, cek, iv, aad, plaintext []byte) (ciphertext, tag []byte, err error) {
	macKey, encKey, err := splitCBCHMACKey(enc, cek)
	if err != nil {
		return nil, nil, err
	}
	if len(iv) != aes.BlockSize {
		return nil, nil, ErrInvalidIV
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, nil, err
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	tag = cbcHMACTag(enc, macKey, aad, iv, ciphertext)
	return ciphertext, tag, nil
}

// OpenCBCHMAC verifies the tag in constant time before decrypting, so
// padding errors are never observable for unauthenticated input.
func OpenCBCHMAC(enc jwa.ContentAlgorithm, cek, iv, aad, ciphertext, tag []byte) ([]byte, error) {
	macKey, encKey, err := splitCBCHMACKey(enc, cek)
	if err != nil {
		return nil, err
	}
	if len(iv) != aes.BlockSize {
		return nil, ErrInvalidIV
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrAuthentication
	}

	expected := cbcHMACTag(enc, macKey, aad, iv, ciphertext)
	if subtle.ConstantTimeCompare(expected, tag) != 1 {
		return nil, ErrAuthentication
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, ok := pkcs7Unpad(plaintext, aes.BlockSize)
	if !ok {
		return nil, ErrAuthentication
	}
	return unpadded, nil
}

func splitCBCHMACKey(enc jwa.ContentAlgorithm, cek []byte) (macKey, encKey []byte, err error) {
	if !enc.IsAesCbcHmac() {
		return nil, nil, ErrUnsupportedAlgorithm
	}
	if len(cek) != enc.KeySize() {
		return nil, nil, ErrInvalidKeySize
	}
	half := len(cek) / 2
	return cek[:half], cek[half:], nil
}

func cbcHMACTag(enc jwa.ContentAlgorithm, macKey, aad, iv, ciphertext []byte) []byte {
	al := make([]byte, 8)
	binary.BigEndian.PutUint64(al, uint64(len(aad))*8)

	mac := hmac.New(enc.MacHash().New, macKey)
	mac.Write(aad)
	mac.Write(iv)
	mac.Write(ciphertext)
	mac.Write(al)
	return mac.Sum(nil)[:len(macKey)]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+padLen)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 {
		return nil, false
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, false
		}
	}
	return data[:len(data)-padLen], true
}
