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
	"errors"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-trustkit/pkg/metrics"
)

var (
	// ErrDelegationDenied is returned when no handler can handle the token
	// or the handler that can denies delegation.
	ErrDelegationDenied = errors.New("delegation: no matching token delegation handler found")

	// ErrDelegationHandling is returned when a handler fails unexpectedly.
	ErrDelegationHandling = errors.New("delegation: error in delegation handling")
)

// outcome label for requests no handler accepted
const outcomeNoHandler = "no_handler"

// Chain dispatches delegation requests to an ordered list of handlers. The
// first handler whose CanHandleToken returns true decides.
type Chain struct {
	handlers []TokenDelegationHandler
	logger   logger.Logger
}

// NewChain returns a chain over handlers. Only WithLogger applies to a
// chain.
func NewChain(handlers []TokenDelegationHandler, opts ...Option) *Chain {
	c := newConfig("chain", opts)
	return &Chain{
		handlers: append([]TokenDelegationHandler(nil), handlers...),
		logger:   c.logger,
	}
}

// Handlers returns the handlers in dispatch order.
func (c *Chain) Handlers() []TokenDelegationHandler {
	return append([]TokenDelegationHandler(nil), c.handlers...)
}

// Delegate runs the request through the chain. It returns the deciding
// handler's response when delegation is allowed, ErrDelegationDenied when
// no handler matches or the matching handler denies, and
// ErrDelegationHandling when a handler panics.
func (c *Chain) Delegate(params *Parameters) (*Response, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: nil parameters", ErrDelegationHandling)
	}
	start := time.Now()
	for _, h := range c.handlers {
		name := handlerName(h)
		resp, matched, err := evaluate(h, params)
		if err != nil {
			c.logger.Warn("delegation handler failed", logger.String("handler", name), logger.Error(err))
			metrics.RecordDelegation(name, metrics.OutcomeError)
			metrics.ObserveOperation(metrics.OpDelegate, name, start, err)
			return nil, fmt.Errorf("%w: %w", ErrDelegationHandling, err)
		}
		if !matched {
			continue
		}
		if resp == nil || !resp.DelegationAllowed() {
			c.logger.Warn("delegation denied", logger.String("handler", name))
			metrics.RecordDelegation(name, metrics.OutcomeDenied)
			metrics.ObserveOperation(metrics.OpDelegate, name, start, ErrDelegationDenied)
			return resp, ErrDelegationDenied
		}
		c.logger.Info("delegation allowed", logger.String("handler", name))
		metrics.RecordDelegation(name, metrics.OutcomeAllowed)
		metrics.ObserveOperation(metrics.OpDelegate, name, start, nil)
		return resp, nil
	}
	c.logger.Warn("no matching token delegation handler found")
	metrics.RecordDelegation(outcomeNoHandler, metrics.OutcomeDenied)
	return nil, ErrDelegationDenied
}

// evaluate asks h about params, converting a panic into an error.
func evaluate(h TokenDelegationHandler, params *Parameters) (resp *Response, matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, matched = nil, false
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	if !h.CanHandleToken(params.Token) {
		return nil, false, nil
	}
	return h.IsDelegationAllowed(params), true, nil
}

func handlerName(h TokenDelegationHandler) string {
	if n, ok := h.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", h)
}
