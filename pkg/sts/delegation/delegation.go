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

// Package delegation decides whether a principal may obtain a token on
// behalf of, or acting as, the principal of a received token.
//
// A TokenDelegationHandler answers for one token representation. The SAML
// handler is a single policy type parameterised by the set of subject
// confirmation methods it accepts:
//
//	bearer := delegation.NewSAMLDelegationHandler()
//	hok := delegation.NewHOKDelegationHandler(
//		delegation.WithCheckAudienceRestriction(true))
//
// Every subject confirmation method of an assertion must be in the allowed
// set. An assertion with no SubjectConfirmation is denied, not allowed
// vacuously.
//
// A Chain dispatches a request to the first handler that can handle the
// token. Policy denials are ordinary responses from a handler; only the
// chain turns a denial into ErrDelegationDenied.
package delegation

import (
	"maps"

	"github.com/jeremyhahn/go-trustkit/pkg/sts"
)

// TokenDelegationHandler decides delegation for one kind of token.
type TokenDelegationHandler interface {
	// CanHandleToken reports whether the handler understands the token's
	// representation.
	CanHandleToken(token *sts.ReceivedToken) bool

	// IsDelegationAllowed evaluates the request. It never fails: a token
	// the handler cannot evaluate is denied.
	IsDelegationAllowed(params *Parameters) *Response
}

// Parameters is the request-scoped input to a delegation decision.
type Parameters struct {
	// Principal is the authenticated caller asking to delegate.
	Principal sts.Principal

	// Token is the OnBehalfOf or ActAs token.
	Token *sts.ReceivedToken

	// AppliesToAddress is the target service address, "" when none.
	AppliesToAddress string

	STSProperties *sts.STSProperties
	TokenStore    sts.TokenStore

	// TokenPrincipal and TokenRoles are the identity established by
	// validating Token.
	TokenPrincipal sts.Principal
	TokenRoles     []sts.Principal

	AdditionalProperties map[string]any
}

// Response is the outcome of a delegation decision. It is built once by a
// handler and read through its getters.
type Response struct {
	token      *sts.ReceivedToken
	allowed    bool
	properties map[string]any
}

// NewResponse builds a response carrying token.
func NewResponse(token *sts.ReceivedToken, allowed bool, properties map[string]any) *Response {
	return &Response{
		token:      token,
		allowed:    allowed,
		properties: maps.Clone(properties),
	}
}

// Token returns the token the decision was made on.
func (r *Response) Token() *sts.ReceivedToken { return r.token }

// DelegationAllowed reports the decision.
func (r *Response) DelegationAllowed() bool { return r.allowed }

// AdditionalProperties returns a copy of the handler's extra properties.
func (r *Response) AdditionalProperties() map[string]any { return maps.Clone(r.properties) }

func deny(params *Parameters) *Response {
	return NewResponse(params.Token, false, nil)
}

func allow(params *Parameters) *Response {
	return NewResponse(params.Token, true, nil)
}
