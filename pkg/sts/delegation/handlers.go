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

package delegation

import (
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-trustkit/pkg/sts"
)

// UsernameTokenHandler allows delegation for any valid UsernameToken.
type UsernameTokenHandler struct {
	name   string
	logger logger.Logger
}

// NewUsernameTokenHandler returns a UsernameToken handler.
func NewUsernameTokenHandler(opts ...Option) *UsernameTokenHandler {
	c := newConfig("username", opts)
	return &UsernameTokenHandler{name: c.name, logger: c.logger}
}

// Name returns the handler name.
func (h *UsernameTokenHandler) Name() string { return h.name }

// CanHandleToken reports whether token is a UsernameToken.
func (h *UsernameTokenHandler) CanHandleToken(token *sts.ReceivedToken) bool {
	return token != nil && token.IsUsernameToken()
}

// IsDelegationAllowed allows the request when the token is valid.
func (h *UsernameTokenHandler) IsDelegationAllowed(params *Parameters) *Response {
	token := params.Token
	if token == nil || token.State() != sts.StateValid || !token.IsUsernameToken() {
		h.logger.Debug("delegation denied: token is not a valid UsernameToken")
		return deny(params)
	}
	return allow(params)
}

// JWTHandler allows delegation for valid JWTs. With audience checking on,
// the AppliesTo address must appear in the token's "aud" claim; a token
// without "aud" is unrestricted.
type JWTHandler struct {
	name          string
	checkAudience bool
	parser        *jwt.Parser
	logger        logger.Logger
}

// NewJWTHandler returns a JWT handler.
func NewJWTHandler(opts ...Option) *JWTHandler {
	c := newConfig("jwt", opts)
	return &JWTHandler{
		name:          c.name,
		checkAudience: c.checkAudience,
		parser:        jwt.NewParser(jwt.WithJSONNumber()),
		logger:        c.logger,
	}
}

// Name returns the handler name.
func (h *JWTHandler) Name() string { return h.name }

// CanHandleToken reports whether token is a compact JWT.
func (h *JWTHandler) CanHandleToken(token *sts.ReceivedToken) bool {
	return token != nil && token.IsJWT()
}

// IsDelegationAllowed evaluates a JWT OnBehalfOf or ActAs token. The
// signature is not checked again; the token state records the outcome of
// upstream validation.
func (h *JWTHandler) IsDelegationAllowed(params *Parameters) *Response {
	token := params.Token
	if token == nil || token.State() != sts.StateValid || !token.IsJWT() {
		h.logger.Debug("delegation denied: token is not a valid JWT")
		return deny(params)
	}
	if !h.checkAudience || params.AppliesToAddress == "" {
		return allow(params)
	}

	raw, _ := token.JWT()
	claims := jwt.MapClaims{}
	if _, _, err := h.parser.ParseUnverified(raw, claims); err != nil {
		h.logger.Warn("delegation denied: unable to read JWT claims", logger.Error(err))
		return deny(params)
	}
	audiences, err := audienceClaim(claims)
	if err != nil {
		h.logger.Warn("delegation denied: invalid aud claim", logger.Error(err))
		return deny(params)
	}
	if len(audiences) > 0 && !slices.Contains([]string(audiences), params.AppliesToAddress) {
		h.logger.Debug("delegation denied: AppliesTo address not in JWT audience",
			logger.String("applies_to", params.AppliesToAddress),
			logger.Strings("audiences", audiences))
		return deny(params)
	}
	return allow(params)
}

// audienceClaim reads "aud" as a string or an array of strings. Any other
// type is an error rather than an absent audience.
func audienceClaim(claims jwt.MapClaims) ([]string, error) {
	v, ok := claims["aud"]
	if !ok || v == nil {
		return nil, nil
	}
	switch aud := v.(type) {
	case string:
		return []string{aud}, nil
	case []interface{}:
		out := make([]string, 0, len(aud))
		for _, a := range aud {
			s, ok := a.(string)
			if !ok {
				return nil, fmt.Errorf("aud array contains %T", a)
			}
			out = append(out, s)
		}
		return out, nil
	case []string:
		return aud, nil
	default:
		return nil, fmt.Errorf("aud is %T", v)
	}
}
