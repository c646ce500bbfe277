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

package jws

import (
	"fmt"
	"io"
	"slices"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jose"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
)

// Signature accumulates the JWS signing input and produces the signature.
// A Signature is used for exactly one signing operation.
type Signature interface {
	io.Writer
	Sign() ([]byte, error)
}

// Verification accumulates the JWS signing input and checks a signature
// against it. A Verification is used for exactly one check.
type Verification interface {
	io.Writer
	Verify(signature []byte) bool
}

// SignatureProvider creates signatures. CreateSignature validates the
// header "alg" against the provider's allow-list and sets it when absent.
type SignatureProvider interface {
	Algorithm() jwa.SignatureAlgorithm
	CreateSignature(headers *jose.Headers) (Signature, error)
}

// SignatureVerifier creates verifications. CreateVerification rejects a
// header "alg" outside the verifier's allow-list.
type SignatureVerifier interface {
	Algorithm() jwa.SignatureAlgorithm
	CreateVerification(headers *jose.Headers) (Verification, error)
}

// algorithmPolicy is the allow-list carried by every provider. The default
// algorithm is always a member.
type algorithmPolicy struct {
	def     jwa.SignatureAlgorithm
	allowed []jwa.SignatureAlgorithm
}

func newAlgorithmPolicy(def jwa.SignatureAlgorithm, allowed []jwa.SignatureAlgorithm, family func(jwa.SignatureAlgorithm) bool) (algorithmPolicy, error) {
	if !family(def) {
		return algorithmPolicy{}, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, def)
	}
	if len(allowed) == 0 {
		allowed = []jwa.SignatureAlgorithm{def}
	}
	for _, alg := range allowed {
		if !family(alg) {
			return algorithmPolicy{}, fmt.Errorf("%w: %s cannot be used with this key", ErrUnsupportedAlgorithm, alg)
		}
	}
	if !slices.Contains(allowed, def) {
		allowed = append(slices.Clone(allowed), def)
	}
	return algorithmPolicy{def: def, allowed: slices.Clone(allowed)}, nil
}

// Algorithm returns the default algorithm.
func (p algorithmPolicy) Algorithm() jwa.SignatureAlgorithm { return p.def }

// checkAlgorithm returns the algorithm to use for headers. A missing "alg"
// falls back to the default, which is then validated like any other value.
func (p algorithmPolicy) checkAlgorithm(headers *jose.Headers) (jwa.SignatureAlgorithm, error) {
	name := headers.Algorithm()
	if name == "" {
		name = string(p.def)
	}
	alg, err := jwa.ParseSignatureAlgorithm(name)
	if err != nil {
		return "", err
	}
	if !slices.Contains(p.allowed, alg) {
		return "", fmt.Errorf("%w: %s", ErrAlgorithmNotAllowed, alg)
	}
	return alg, nil
}

type registryKey struct {
	kind jwk.KeyKind
	alg  jwa.SignatureAlgorithm
}

type (
	providerFactory func(m jwk.Material, alg jwa.SignatureAlgorithm) (SignatureProvider, error)
	verifierFactory func(m jwk.Material, alg jwa.SignatureAlgorithm, allowed []jwa.SignatureAlgorithm) (SignatureVerifier, error)
)

var (
	providerRegistry = map[registryKey]providerFactory{}
	verifierRegistry = map[registryKey]verifierFactory{}
)

func register(kind jwk.KeyKind, p providerFactory, v verifierFactory, algs ...jwa.SignatureAlgorithm) {
	for _, alg := range algs {
		providerRegistry[registryKey{kind, alg}] = p
		verifierRegistry[registryKey{kind, alg}] = v
	}
}

func init() {
	register(jwk.KindOctet, hmacProviderFactory, hmacVerifierFactory,
		jwa.HS256, jwa.HS384, jwa.HS512)
	register(jwk.KindRSA, rsaProviderFactory, rsaVerifierFactory,
		jwa.RS256, jwa.RS384, jwa.RS512, jwa.PS256, jwa.PS384, jwa.PS512)
	register(jwk.KindEC, ecdsaProviderFactory, ecdsaVerifierFactory,
		jwa.ES256, jwa.ES384, jwa.ES512)
	register(jwk.KindOKP, eddsaProviderFactory, eddsaVerifierFactory,
		jwa.EdDSA)
}

// NewSignatureProvider selects the signature provider for a JWK. An empty
// alg uses the JWK "alg", then the default for the key (see
// DefaultAlgorithm).
func NewSignatureProvider(key *jwk.JWK, alg jwa.SignatureAlgorithm) (SignatureProvider, error) {
	resolved, m, err := selectKey(key, alg, jwk.OpSign)
	if err != nil {
		return nil, err
	}
	factory, ok := providerRegistry[registryKey{m.Kind(), resolved}]
	if !ok {
		return nil, fmt.Errorf("%w: %s with %s key", ErrUnsupportedAlgorithm, resolved, m.Kind())
	}
	return factory(m, resolved)
}

// NewSignatureVerifier selects the verifier for a JWK. allowed widens the
// accepted header algorithms beyond alg; every member must suit the key.
func NewSignatureVerifier(key *jwk.JWK, alg jwa.SignatureAlgorithm, allowed ...jwa.SignatureAlgorithm) (SignatureVerifier, error) {
	resolved, m, err := selectKey(key, alg, jwk.OpVerify)
	if err != nil {
		return nil, err
	}
	factory, ok := verifierRegistry[registryKey{m.Kind(), resolved}]
	if !ok {
		return nil, fmt.Errorf("%w: %s with %s key", ErrUnsupportedAlgorithm, resolved, m.Kind())
	}
	for _, a := range allowed {
		if _, ok := verifierRegistry[registryKey{m.Kind(), a}]; !ok {
			return nil, fmt.Errorf("%w: %s with %s key", ErrUnsupportedAlgorithm, a, m.Kind())
		}
	}
	return factory(m, resolved, allowed)
}

// DefaultAlgorithm returns the signature algorithm used for a key without
// "alg": HS256 for symmetric keys, RS256 for RSA, the curve's ESxxx for EC
// and EdDSA for Ed25519.
func DefaultAlgorithm(key *jwk.JWK) (jwa.SignatureAlgorithm, error) {
	kind, err := key.Kind()
	if err != nil {
		return "", err
	}
	switch kind {
	case jwk.KindOctet:
		return jwa.HS256, nil
	case jwk.KindRSA:
		return jwa.RS256, nil
	case jwk.KindEC:
		for _, alg := range []jwa.SignatureAlgorithm{jwa.ES256, jwa.ES384, jwa.ES512} {
			if alg.Curve() == key.Crv {
				return alg, nil
			}
		}
	case jwk.KindOKP:
		if key.Crv == string(jwk.CurveEd25519) {
			return jwa.EdDSA, nil
		}
	}
	return "", fmt.Errorf("%w: no signature algorithm for %s key", ErrUnsupportedAlgorithm, kind)
}

func selectKey(key *jwk.JWK, alg jwa.SignatureAlgorithm, op string) (jwa.SignatureAlgorithm, jwk.Material, error) {
	if key == nil {
		return "", nil, fmt.Errorf("%w: key cannot be nil", ErrInvalidKey)
	}
	resolved, err := resolveAlgorithm(key, alg)
	if err != nil {
		return "", nil, err
	}
	if !key.Permits(op) {
		return "", nil, fmt.Errorf("%w: %s", ErrKeyUsage, op)
	}
	m, err := key.Material()
	if err != nil {
		return "", nil, err
	}
	return resolved, m, nil
}

func resolveAlgorithm(key *jwk.JWK, alg jwa.SignatureAlgorithm) (jwa.SignatureAlgorithm, error) {
	switch {
	case alg == "" && key.Alg == "":
		return DefaultAlgorithm(key)
	case alg == "":
		alg = jwa.SignatureAlgorithm(key.Alg)
	case key.Alg != "" && key.Alg != string(alg):
		return "", fmt.Errorf("%w: JWK alg %s, requested %s", ErrAlgorithmMismatch, key.Alg, alg)
	}
	return jwa.ParseSignatureAlgorithm(string(alg))
}
