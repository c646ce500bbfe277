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

package jwt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jws"
)

var (
	// ErrInvalidKey is returned when the key passed to SigningMethod is not
	// a jws provider or verifier.
	ErrInvalidKey = errors.New("jwt: invalid key type")

	// ErrInvalidToken wraps every consumer failure.
	ErrInvalidToken = errors.New("jwt: invalid token")

	// ErrEncryptionRequired is returned when a consumer that requires
	// encrypted tokens receives a plain JWS.
	ErrEncryptionRequired = errors.New("jwt: token must be encrypted")
)

// SigningMethod implements golang-jwt's jwt.SigningMethod on top of the jws
// providers. Sign takes a jws.SignatureProvider as its key and Verify a
// jws.SignatureVerifier, so tokens built with jwt.NewWithClaims are signed
// by the same code as every other JWS, allow-list included.
type SigningMethod struct {
	alg jwa.SignatureAlgorithm
}

// NewSigningMethod returns the signing method for alg. "none" is rejected.
func NewSigningMethod(alg jwa.SignatureAlgorithm) (*SigningMethod, error) {
	parsed, err := jwa.ParseSignatureAlgorithm(string(alg))
	if err != nil {
		return nil, err
	}
	return &SigningMethod{alg: parsed}, nil
}

// Alg returns the JWS algorithm name.
func (m *SigningMethod) Alg() string {
	return string(m.alg)
}

// Sign signs signingString. key must be a jws.SignatureProvider.
func (m *SigningMethod) Sign(signingString string, key interface{}) ([]byte, error) {
	provider, ok := key.(jws.SignatureProvider)
	if !ok {
		return nil, fmt.Errorf("%w: expected jws.SignatureProvider, got %T", ErrInvalidKey, key)
	}
	signature, err := provider.CreateSignature(m.headers())
	if err != nil {
		return nil, err
	}
	if _, err := signature.Write([]byte(signingString)); err != nil {
		return nil, err
	}
	return signature.Sign()
}

// Verify checks sig over signingString. key must be a
// jws.SignatureVerifier.
func (m *SigningMethod) Verify(signingString string, sig []byte, key interface{}) error {
	verifier, ok := key.(jws.SignatureVerifier)
	if !ok {
		return fmt.Errorf("%w: expected jws.SignatureVerifier, got %T", ErrInvalidKey, key)
	}
	verification, err := verifier.CreateVerification(m.headers())
	if err != nil {
		return err
	}
	if _, err := verification.Write([]byte(signingString)); err != nil {
		return err
	}
	if !verification.Verify(sig) {
		return jwt.ErrSignatureInvalid
	}
	return nil
}

func (m *SigningMethod) headers() *jose.Headers {
	h := jose.NewHeaders()
	_ = h.Set(jose.HeaderAlgorithm, string(m.alg))
	return h
}
