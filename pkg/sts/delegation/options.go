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
	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
)

type config struct {
	name          string
	methods       []string
	methodsSet    bool
	checkAudience bool
	logger        logger.Logger
}

// Option configures a handler or a Chain.
type Option func(*config)

// WithConfirmationMethods replaces the subject confirmation methods a SAML
// handler accepts. Other handlers ignore it.
func WithConfirmationMethods(methods ...string) Option {
	return func(c *config) {
		c.methods = append([]string(nil), methods...)
		c.methodsSet = true
	}
}

// WithCheckAudienceRestriction enables matching the AppliesTo address
// against the token's audience. It is off by default.
func WithCheckAudienceRestriction(check bool) Option {
	return func(c *config) {
		c.checkAudience = check
	}
}

// WithName sets the handler name used in logs and metrics.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

func newConfig(name string, opts []Option) *config {
	c := &config{name: name}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.OrNoOp(c.logger).With(logger.String("handler", c.name))
	return c
}
