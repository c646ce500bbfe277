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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 30*time.Second, cfg.JOSE.LeewayDuration())
	assert.Equal(t, 5*time.Minute, cfg.STS.ClockSkewDuration())
	assert.Equal(t, 30*time.Minute, cfg.TokenStore.TTL())
	assert.True(t, cfg.STS.HandlerEnabled(HandlerSAML))
	assert.False(t, cfg.STS.HandlerEnabled(HandlerHOK))
	assert.False(t, cfg.STS.CheckAudienceRestriction)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	d := Default()
	assert.Equal(t, d.Logging, cfg.Logging)
	assert.Equal(t, d.Metrics, cfg.Metrics)
	assert.Equal(t, d.KeyStore, cfg.KeyStore)
	assert.Equal(t, d.TokenStore, cfg.TokenStore)
	assert.Equal(t, d.STS.Handlers, cfg.STS.Handlers)
	assert.Equal(t, d.JOSE.PBES2MaxIterations, cfg.JOSE.PBES2MaxIterations)
}

func TestLoadReader(t *testing.T) {
	cfg, err := LoadReader(strings.NewReader(`
logging:
  level: debug
  format: json
jose:
  allowed_signature_algorithms: [RS256, ES256]
  pbes2_max_iterations: 200000
sts:
  check_audience_restriction: true
  handlers: [saml-hok, jwt]
  users:
    alice: secret
tokenstore:
  backend: file
  path: /var/lib/trustkit/tokens
  default_ttl: 1h
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	algs, err := cfg.JOSE.AllowedSignatures()
	require.NoError(t, err)
	assert.Equal(t, []jwa.SignatureAlgorithm{jwa.RS256, jwa.ES256}, algs)
	assert.Equal(t, 200000, cfg.JOSE.PBES2MaxIterations)
	assert.True(t, cfg.STS.CheckAudienceRestriction)
	assert.True(t, cfg.STS.HandlerEnabled(HandlerHOK))
	assert.False(t, cfg.STS.HandlerEnabled(HandlerSAML))
	assert.Equal(t, map[string]string{"alice": "secret"}, cfg.STS.Users)
	assert.Equal(t, time.Hour, cfg.TokenStore.TTL())

	// untouched keys keep their defaults
	assert.Equal(t, string(jwa.A256GCM), cfg.JOSE.ContentAlgorithm)
	assert.Equal(t, BackendFile, cfg.KeyStore.Backend)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRUSTKIT_LOGGING_LEVEL", "warn")
	t.Setenv("TRUSTKIT_STS_CHECK_AUDIENCE_RESTRICTION", "true")
	t.Setenv("TRUSTKIT_TOKENSTORE_DEFAULT_TTL", "2h")

	path := filepath.Join(t.TempDir(), "trustkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.STS.CheckAudienceRestriction)
	assert.Equal(t, 2*time.Hour, cfg.TokenStore.TTL())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
		{"bad key algorithm", func(c *Config) { c.JOSE.KeyAlgorithm = "RSA1_5" }, "jose.key_algorithm"},
		{"bad content algorithm", func(c *Config) { c.JOSE.ContentAlgorithm = "A512GCM" }, "jose.content_algorithm"},
		{"none signature", func(c *Config) { c.JOSE.SignatureAlgorithm = "none" }, "jose.signature_algorithm"},
		{"bad allowed signature", func(c *Config) { c.JOSE.AllowedSignatureAlgorithms = []string{"HS1"} }, "allowed_signature_algorithms"},
		{"pbes2 below minimum", func(c *Config) { c.JOSE.PBES2Iterations = 10 }, "pbes2_iterations"},
		{"pbes2 max below default", func(c *Config) { c.JOSE.PBES2MaxIterations = 2000 }, "pbes2_max_iterations"},
		{"bad leeway", func(c *Config) { c.JOSE.Leeway = "soon" }, "jose.leeway"},
		{"negative skew", func(c *Config) { c.STS.ClockSkew = "-1m" }, "sts.clock_skew"},
		{"no handlers", func(c *Config) { c.STS.Handlers = nil }, "at least one sts handler"},
		{"unknown handler", func(c *Config) { c.STS.Handlers = []string{"kerberos"} }, "unknown sts handler"},
		{"empty confirmation method", func(c *Config) { c.STS.AllowedConfirmationMethods = []string{" "} }, "allowed_confirmation_methods"},
		{"bad keystore backend", func(c *Config) { c.KeyStore.Backend = "s3" }, "invalid keystore backend"},
		{"file keystore without path", func(c *Config) { c.KeyStore.Path = "" }, "keystore path"},
		{"file tokenstore without path", func(c *Config) { c.TokenStore.Backend = BackendFile }, "tokenstore path"},
		{"bad ttl", func(c *Config) { c.TokenStore.DefaultTTL = "forever" }, "tokenstore.default_ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trustkit.yaml")
	cfg := Default()
	cfg.STS.AllowedConfirmationMethods = []string{"urn:oasis:names:tc:SAML:2.0:cm:bearer"}
	cfg.JOSE.AllowedSignatureAlgorithms = []string{"ES256"}
	require.NoError(t, cfg.WriteFile(path, false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.STS.AllowedConfirmationMethods, loaded.STS.AllowedConfirmationMethods)
	assert.Equal(t, cfg.JOSE, loaded.JOSE)

	assert.Error(t, cfg.WriteFile(path, false))
	assert.NoError(t, cfg.WriteFile(path, true))
}
