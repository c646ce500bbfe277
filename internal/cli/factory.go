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

package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/jeremyhahn/go-trustkit/internal/config"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwt"
	"github.com/jeremyhahn/go-trustkit/pkg/storage"
	"github.com/jeremyhahn/go-trustkit/pkg/storage/file"
	"github.com/jeremyhahn/go-trustkit/pkg/sts"
	"github.com/jeremyhahn/go-trustkit/pkg/sts/delegation"
	"github.com/jeremyhahn/go-trustkit/pkg/sts/tokenstore"
	"github.com/jeremyhahn/go-trustkit/pkg/sts/validator"
)

// createBackend creates a storage backend from a store section.
func createBackend(sc config.StoreConfig) (storage.Backend, error) {
	switch sc.Backend {
	case config.BackendMemory:
		return storage.NewMemory(), nil
	case config.BackendFile:
		be, err := file.New(sc.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage backend: %w", err)
		}
		return be, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", sc.Backend)
	}
}

// keyStore opens the configured JWK store.
func (a *app) keyStore() (*storage.KeyStore, error) {
	be, err := createBackend(a.cfg.KeyStore)
	if err != nil {
		return nil, err
	}
	return storage.NewKeyStore(be), nil
}

// tokenStore opens the configured STS token store.
func (a *app) tokenStore() (*tokenstore.Store, func() error, error) {
	be, err := createBackend(config.StoreConfig{
		Backend: a.cfg.TokenStore.Backend,
		Path:    a.cfg.TokenStore.Path,
	})
	if err != nil {
		return nil, nil, err
	}
	store := tokenstore.New(be,
		tokenstore.WithDefaultTTL(a.cfg.TokenStore.TTL()),
		tokenstore.WithLogger(a.log))
	return store, be.Close, nil
}

// stsProperties builds the STS properties from configuration.
func (a *app) stsProperties() *sts.STSProperties {
	props := sts.DefaultSTSProperties(a.cfg.STS.Issuer)
	props.ClockSkew = a.cfg.STS.ClockSkewDuration()
	if ttl := a.cfg.TokenStore.TTL(); ttl > 0 {
		props.DefaultTokenTTL = ttl
	}
	return props
}

// delegationChain builds the handler chain named in sts.handlers. hok
// adds the holder-of-key SAML handler ahead of the others.
func (a *app) delegationChain(hok, checkAudience bool) *delegation.Chain {
	common := []delegation.Option{
		delegation.WithCheckAudienceRestriction(checkAudience),
		delegation.WithLogger(a.log),
	}
	// Configured methods replace the bearer set; the holder-of-key handler
	// always accepts holder-of-key on top of them.
	samlOpts, hokOpts := common, common
	if methods := a.cfg.STS.AllowedConfirmationMethods; len(methods) > 0 {
		samlOpts = append(slices.Clip(common), delegation.WithConfirmationMethods(methods...))
		hokMethods := append(slices.Clone(methods), delegation.HolderOfKeyConfirmationMethods...)
		hokOpts = append(slices.Clip(common), delegation.WithConfirmationMethods(hokMethods...))
	}

	var handlers []delegation.TokenDelegationHandler
	if hok || a.cfg.STS.HandlerEnabled(config.HandlerHOK) {
		handlers = append(handlers, delegation.NewHOKDelegationHandler(hokOpts...))
	}
	if a.cfg.STS.HandlerEnabled(config.HandlerSAML) {
		handlers = append(handlers, delegation.NewSAMLDelegationHandler(samlOpts...))
	}
	if a.cfg.STS.HandlerEnabled(config.HandlerUsername) {
		handlers = append(handlers, delegation.NewUsernameTokenHandler(common...))
	}
	if a.cfg.STS.HandlerEnabled(config.HandlerJWT) {
		handlers = append(handlers, delegation.NewJWTHandler(common...))
	}
	return delegation.NewChain(handlers, delegation.WithLogger(a.log))
}

// tokenValidator builds the received token validator. jwtKey may be nil.
func (a *app) tokenValidator(jwtKey *jwk.JWK) *validator.Validator {
	opts := []validator.Option{
		validator.WithUsers(a.cfg.STS.Users),
		validator.WithLogger(a.log),
	}
	if jwtKey != nil {
		opts = append(opts, validator.WithJWTKey(jwtKey, a.jwtVerifyOptions()...))
	}
	return validator.New(a.stsProperties(), opts...)
}

// jwtVerifyOptions returns the JWT options implied by configuration.
func (a *app) jwtVerifyOptions() []jwt.Option {
	opts := []jwt.Option{
		jwt.WithLeeway(a.cfg.JOSE.LeewayDuration()),
		jwt.WithLogger(a.log),
	}
	if allowed, _ := a.cfg.JOSE.AllowedSignatures(); len(allowed) > 0 {
		opts = append(opts, jwt.WithAllowedAlgorithms(allowed...))
	}
	return opts
}

// keyFlags are the flags every key-consuming command accepts.
type keyFlags struct {
	path     string
	kid      string
	password string
}

// loadKey reads a JWK from a JSON or PEM file, or from the key store when a
// kid is given.
func (a *app) loadKey(kf *keyFlags) (*jwk.JWK, error) {
	switch {
	case kf.kid != "":
		ks, err := a.keyStore()
		if err != nil {
			return nil, err
		}
		defer func() { _ = ks.Close() }()
		return ks.Get(kf.kid)
	case kf.path != "":
		// #nosec G304 - key path is provided by the user
		data, err := os.ReadFile(kf.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read key: %w", err)
		}
		if encoding.IsPEM(data) {
			return encoding.ImportPEM(data, passwordBytes(kf.password))
		}
		return jwk.Unmarshal(data)
	default:
		return nil, fmt.Errorf("a key is required: use --key or --kid")
	}
}

// defaultKeyAlgorithm picks the JWE key management algorithm for key when
// none was requested: the JWK "alg" when present, the configured algorithm
// when it suits the key, otherwise a per-kind default.
func defaultKeyAlgorithm(key *jwk.JWK, configured jwa.KeyAlgorithm) (jwa.KeyAlgorithm, error) {
	if key.Alg != "" {
		return jwa.KeyAlgorithm(key.Alg), nil
	}
	kind, err := key.Kind()
	if err != nil {
		return "", err
	}
	switch kind {
	case jwk.KindRSA:
		if configured.IsRsaOaep() {
			return configured, nil
		}
		return jwa.RSAOAEP256, nil
	case jwk.KindEC, jwk.KindOKP:
		if configured.IsEcdhEs() {
			return configured, nil
		}
		return jwa.ECDHESA256KW, nil
	case jwk.KindOctet:
		if configured.IsAesKeyWrap() || configured.IsAesGcmKeyWrap() || configured == jwa.Direct {
			return configured, nil
		}
		return jwa.A256KW, nil
	default:
		return "", fmt.Errorf("no key algorithm for %s key", kind)
	}
}

func passwordBytes(password string) []byte {
	if password == "" {
		return nil
	}
	return []byte(password)
}
