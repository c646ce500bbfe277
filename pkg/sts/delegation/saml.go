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
	"slices"

	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-trustkit/pkg/saml"
	"github.com/jeremyhahn/go-trustkit/pkg/sts"
)

// BearerConfirmationMethods are the methods accepted by
// NewSAMLDelegationHandler.
var BearerConfirmationMethods = []string{
	saml.ConfirmationBearer2,
	saml.ConfirmationBearer1,
}

// HolderOfKeyConfirmationMethods are the methods NewHOKDelegationHandler
// accepts in addition to bearer.
var HolderOfKeyConfirmationMethods = []string{
	saml.ConfirmationHolderOfKey2,
	saml.ConfirmationHolderOfKey1,
}

// SAMLHandler allows delegation for valid SAML 1.1 and 2.0 assertions whose
// subject confirmation methods all belong to an allowed set and, when
// audience checking is on, whose audience restrictions admit the AppliesTo
// address.
type SAMLHandler struct {
	name          string
	methods       map[string]struct{}
	checkAudience bool
	logger        logger.Logger
}

// NewSAMLDelegationHandler returns a handler accepting bearer assertions.
func NewSAMLDelegationHandler(opts ...Option) *SAMLHandler {
	return newSAMLHandler("saml", BearerConfirmationMethods, opts)
}

// NewHOKDelegationHandler returns a handler accepting bearer and
// holder-of-key assertions.
func NewHOKDelegationHandler(opts ...Option) *SAMLHandler {
	methods := append(slices.Clone(BearerConfirmationMethods), HolderOfKeyConfirmationMethods...)
	return newSAMLHandler("saml-hok", methods, opts)
}

func newSAMLHandler(name string, methods []string, opts []Option) *SAMLHandler {
	c := newConfig(name, opts)
	if c.methodsSet {
		methods = c.methods
	}
	set := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		set[m] = struct{}{}
	}
	return &SAMLHandler{
		name:          c.name,
		methods:       set,
		checkAudience: c.checkAudience,
		logger:        c.logger,
	}
}

// Name returns the handler name.
func (h *SAMLHandler) Name() string { return h.name }

// ConfirmationMethods returns the allowed methods, sorted.
func (h *SAMLHandler) ConfirmationMethods() []string {
	out := make([]string, 0, len(h.methods))
	for m := range h.methods {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// CheckAudienceRestriction reports whether audience matching is enabled.
func (h *SAMLHandler) CheckAudienceRestriction() bool { return h.checkAudience }

// CanHandleToken reports whether token is an XML Assertion element in the
// SAML 1.x or 2.0 namespace.
func (h *SAMLHandler) CanHandleToken(token *sts.ReceivedToken) bool {
	if token == nil {
		return false
	}
	el, ok := token.Element()
	return ok && saml.IsAssertion(el)
}

// IsDelegationAllowed evaluates a SAML OnBehalfOf or ActAs token.
func (h *SAMLHandler) IsDelegationAllowed(params *Parameters) *Response {
	token := params.Token
	if token == nil || token.State() != sts.StateValid || !token.IsDOMElement() {
		h.logger.Debug("delegation denied: token is not a valid XML token")
		return deny(params)
	}

	el, _ := token.Element()
	assertion, err := saml.New(el)
	if err != nil {
		h.logger.Warn("delegation denied: unable to read SAML assertion", logger.Error(err))
		return deny(params)
	}
	log := h.logger.With(logger.String("assertion_id", assertion.ID()))

	if !h.confirmationMethodsAllowed(assertion.ConfirmationMethods()) {
		log.Debug("delegation denied: confirmation method not allowed",
			logger.Strings("methods", assertion.ConfirmationMethods()))
		return deny(params)
	}

	if h.checkAudience && params.AppliesToAddress != "" {
		audiences := assertion.AudienceURIs()
		if len(audiences) > 0 && !slices.Contains(audiences, params.AppliesToAddress) {
			log.Debug("delegation denied: AppliesTo address not in audience restriction",
				logger.String("applies_to", params.AppliesToAddress),
				logger.Strings("audiences", audiences))
			return deny(params)
		}
	}
	return allow(params)
}

// confirmationMethodsAllowed requires at least one method and every method
// to be in the allowed set.
func (h *SAMLHandler) confirmationMethodsAllowed(methods []string) bool {
	if len(methods) == 0 {
		return false
	}
	for _, m := range methods {
		if _, ok := h.methods[m]; !ok {
			return false
		}
	}
	return true
}
