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

// Package validator assigns a validation state to received tokens before
// they reach the delegation handlers. SAML assertions are checked for
// lifetime, JWTs for signature and claims, and UsernameTokens against a
// credential table using the UsernameToken profile password digest.
//
// Assertion signatures are not verified here. Callers that accept SAML from
// untrusted parties must verify the enveloped signature first.
package validator

import (
	"crypto/subtle"
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwt"
	"github.com/jeremyhahn/go-trustkit/pkg/saml"
	"github.com/jeremyhahn/go-trustkit/pkg/sts"
)

// Validator validates received tokens and records the outcome on them.
type Validator struct {
	props  *sts.STSProperties
	jwtKey *jwk.JWK
	jwtOps []jwt.Option
	users  map[string]string
	now    func() time.Time
	logger logger.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithJWTKey sets the key JWT signatures are verified with. Without a key
// every JWT is INVALID.
func WithJWTKey(key *jwk.JWK, opts ...jwt.Option) Option {
	return func(v *Validator) {
		v.jwtKey = key
		v.jwtOps = opts
	}
}

// WithUsers sets the username to password table used for UsernameTokens.
// Without users every UsernameToken is INVALID.
func WithUsers(users map[string]string) Option {
	return func(v *Validator) { v.users = users }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// New returns a validator that applies the clock skew of props.
func New(props *sts.STSProperties, opts ...Option) *Validator {
	if props == nil {
		props = sts.DefaultSTSProperties("")
	}
	v := &Validator{props: props, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = logger.OrNoOp(v.logger)
	return v
}

// Validate sets the state of token, and its principal when valid, and
// returns the state.
func (v *Validator) Validate(token *sts.ReceivedToken) sts.TokenState {
	if token == nil {
		return sts.StateNone
	}
	var (
		state     sts.TokenState
		principal string
	)
	switch {
	case token.IsUsernameToken():
		ut, _ := token.UsernameToken()
		state, principal = v.validateUsername(ut)
	case token.IsJWT():
		raw, _ := token.JWT()
		state, principal = v.validateJWT(raw)
	case token.IsDOMElement():
		state, principal = v.validateAssertion(token)
	default:
		state = sts.StateNone
	}

	token.SetState(state)
	if state == sts.StateValid && principal != "" {
		token.SetPrincipal(sts.NamedPrincipal(principal))
	}
	v.logger.Debug("token validated",
		logger.String("kind", token.Kind()),
		logger.String("state", state.String()))
	return state
}

func (v *Validator) validateAssertion(token *sts.ReceivedToken) (sts.TokenState, string) {
	e, _ := token.Element()
	if !saml.IsAssertion(e) {
		return sts.StateNone, ""
	}
	assertion, err := saml.New(e)
	if err != nil {
		v.logger.Warn("unable to read SAML assertion", logger.Error(err))
		return sts.StateInvalid, ""
	}
	now := v.now()
	if assertion.ValidAt(now, v.props.ClockSkew) {
		return sts.StateValid, assertion.Subject()
	}
	if end := assertion.NotOnOrAfter(); !end.IsZero() && !now.Before(end.Add(v.props.ClockSkew)) {
		return sts.StateExpired, ""
	}
	return sts.StateInvalid, ""
}

func (v *Validator) validateJWT(raw string) (sts.TokenState, string) {
	if v.jwtKey == nil {
		v.logger.Debug("no JWT verification key configured")
		return sts.StateInvalid, ""
	}
	opts := append([]jwt.Option{
		jwt.WithLeeway(v.props.ClockSkew),
		jwt.WithTimeFunc(v.now),
		jwt.WithLogger(v.logger),
	}, v.jwtOps...)
	tok, err := jwt.Verify(v.jwtKey, raw, opts...)
	if err != nil {
		if errors.Is(err, gojwt.ErrTokenExpired) {
			return sts.StateExpired, ""
		}
		return sts.StateInvalid, ""
	}
	sub, _ := tok.Claims.GetSubject()
	return sts.StateValid, sub
}

func (v *Validator) validateUsername(ut *sts.UsernameToken) (sts.TokenState, string) {
	expected, ok := v.users[ut.Username]
	if !ok {
		return sts.StateInvalid, ""
	}
	presented := ut.Password
	if ut.PasswordType == sts.PasswordDigest {
		digest, err := ut.Digest(expected)
		if err != nil {
			return sts.StateInvalid, ""
		}
		expected = digest
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
		return sts.StateInvalid, ""
	}
	return sts.StateValid, ut.Username
}
