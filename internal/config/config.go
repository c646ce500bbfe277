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

// Package config loads the trustkit configuration. Values come from, in
// increasing precedence, built-in defaults, an optional YAML file,
// TRUSTKIT_* environment variables and bound command-line flags.
//
// Environment variable names are the upper-cased key path with "." replaced
// by "_", for example TRUSTKIT_LOGGING_LEVEL or
// TRUSTKIT_STS_CHECK_AUDIENCE_RESTRICTION.
package config

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/jeremyhahn/go-trustkit/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "TRUSTKIT"

// Store backends
const (
	BackendMemory = "memory"
	BackendFile   = "file"
)

// Delegation handler names accepted in sts.handlers
const (
	HandlerSAML     = "saml"
	HandlerHOK      = "saml-hok"
	HandlerUsername = "username"
	HandlerJWT      = "jwt"
)

// Config represents the complete trustkit configuration
type Config struct {
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	JOSE       JOSEConfig       `yaml:"jose" mapstructure:"jose"`
	STS        STSConfig        `yaml:"sts" mapstructure:"sts"`
	KeyStore   StoreConfig      `yaml:"keystore" mapstructure:"keystore"`
	TokenStore TokenStoreConfig `yaml:"tokenstore" mapstructure:"tokenstore"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MetricsConfig controls metrics collection
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Dump writes the Prometheus text exposition to stderr when a command
	// finishes.
	Dump bool `yaml:"dump" mapstructure:"dump"`
}

// JOSEConfig holds algorithm defaults and limits for JWE, JWS and JWT.
type JOSEConfig struct {
	KeyAlgorithm               string   `yaml:"key_algorithm" mapstructure:"key_algorithm"`
	ContentAlgorithm           string   `yaml:"content_algorithm" mapstructure:"content_algorithm"`
	SignatureAlgorithm         string   `yaml:"signature_algorithm" mapstructure:"signature_algorithm"`
	AllowedSignatureAlgorithms []string `yaml:"allowed_signature_algorithms" mapstructure:"allowed_signature_algorithms"`
	PBES2Iterations            int      `yaml:"pbes2_iterations" mapstructure:"pbes2_iterations"`
	PBES2MaxIterations         int      `yaml:"pbes2_max_iterations" mapstructure:"pbes2_max_iterations"`
	Compression                bool     `yaml:"compression" mapstructure:"compression"`
	Leeway                     string   `yaml:"leeway" mapstructure:"leeway"`
}

// STSConfig controls token validation and delegation
type STSConfig struct {
	Issuer                     string            `yaml:"issuer" mapstructure:"issuer"`
	ClockSkew                  string            `yaml:"clock_skew" mapstructure:"clock_skew"`
	CheckAudienceRestriction   bool              `yaml:"check_audience_restriction" mapstructure:"check_audience_restriction"`
	AllowedConfirmationMethods []string          `yaml:"allowed_confirmation_methods" mapstructure:"allowed_confirmation_methods"`
	Handlers                   []string          `yaml:"handlers" mapstructure:"handlers"`
	Users                      map[string]string `yaml:"users,omitempty" mapstructure:"users"`
}

// StoreConfig selects a storage backend
type StoreConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// TokenStoreConfig selects the token store backend and lifetime
type TokenStoreConfig struct {
	Backend    string `yaml:"backend" mapstructure:"backend"`
	Path       string `yaml:"path" mapstructure:"path"`
	DefaultTTL string `yaml:"default_ttl" mapstructure:"default_ttl"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		JOSE: JOSEConfig{
			KeyAlgorithm:       string(jwa.RSAOAEP256),
			ContentAlgorithm:   string(jwa.A256GCM),
			PBES2Iterations:    kdf.DefaultPBKDF2Iterations,
			PBES2MaxIterations: kdf.DefaultMaxIterations,
			Leeway:             "30s",
		},
		STS: STSConfig{
			Issuer:    "trustkit",
			ClockSkew: "5m",
			Handlers:  []string{HandlerSAML, HandlerUsername, HandlerJWT},
		},
		KeyStore: StoreConfig{
			Backend: BackendFile,
			Path:    "trustkit-data/keys",
		},
		TokenStore: TokenStoreConfig{
			Backend:    BackendMemory,
			DefaultTTL: "30m",
		},
	}
}

// NewViper returns a viper instance with defaults registered and
// environment overrides enabled. Flags may be bound to it before Unmarshal.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())
	return v
}

// setDefaults registers every key so AutomaticEnv can resolve it during
// Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.dump", d.Metrics.Dump)

	v.SetDefault("jose.key_algorithm", d.JOSE.KeyAlgorithm)
	v.SetDefault("jose.content_algorithm", d.JOSE.ContentAlgorithm)
	v.SetDefault("jose.signature_algorithm", d.JOSE.SignatureAlgorithm)
	v.SetDefault("jose.allowed_signature_algorithms", d.JOSE.AllowedSignatureAlgorithms)
	v.SetDefault("jose.pbes2_iterations", d.JOSE.PBES2Iterations)
	v.SetDefault("jose.pbes2_max_iterations", d.JOSE.PBES2MaxIterations)
	v.SetDefault("jose.compression", d.JOSE.Compression)
	v.SetDefault("jose.leeway", d.JOSE.Leeway)

	v.SetDefault("sts.issuer", d.STS.Issuer)
	v.SetDefault("sts.clock_skew", d.STS.ClockSkew)
	v.SetDefault("sts.check_audience_restriction", d.STS.CheckAudienceRestriction)
	v.SetDefault("sts.allowed_confirmation_methods", d.STS.AllowedConfirmationMethods)
	v.SetDefault("sts.handlers", d.STS.Handlers)

	v.SetDefault("keystore.backend", d.KeyStore.Backend)
	v.SetDefault("keystore.path", d.KeyStore.Path)

	v.SetDefault("tokenstore.backend", d.TokenStore.Backend)
	v.SetDefault("tokenstore.path", d.TokenStore.Path)
	v.SetDefault("tokenstore.default_ttl", d.TokenStore.DefaultTTL)
}

// Load reads configuration from a YAML file, when path is set, and applies
// environment variable overrides.
func Load(path string) (*Config, error) {
	v := NewViper()
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// LoadReader reads YAML configuration from r and applies environment
// variable overrides.
func LoadReader(r io.Reader) (*Config, error) {
	v := NewViper()
	v.SetConfigType("yaml")
	if err := v.MergeConfig(r); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return FromViper(v)
}

// ReadFile merges the YAML file at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, error, or fatal)", c.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if err := c.JOSE.validate(); err != nil {
		return err
	}
	if err := c.STS.validate(); err != nil {
		return err
	}
	if err := c.KeyStore.validate("keystore"); err != nil {
		return err
	}
	if err := (StoreConfig{Backend: c.TokenStore.Backend, Path: c.TokenStore.Path}).validate("tokenstore"); err != nil {
		return err
	}
	if _, err := parseDuration("tokenstore.default_ttl", c.TokenStore.DefaultTTL); err != nil {
		return err
	}
	return nil
}

func (j JOSEConfig) validate() error {
	if j.KeyAlgorithm != "" {
		if _, err := jwa.ParseKeyAlgorithm(j.KeyAlgorithm); err != nil {
			return fmt.Errorf("jose.key_algorithm: %w", err)
		}
	}
	if j.ContentAlgorithm != "" {
		if _, err := jwa.ParseContentAlgorithm(j.ContentAlgorithm); err != nil {
			return fmt.Errorf("jose.content_algorithm: %w", err)
		}
	}
	if j.SignatureAlgorithm != "" {
		if _, err := jwa.ParseSignatureAlgorithm(j.SignatureAlgorithm); err != nil {
			return fmt.Errorf("jose.signature_algorithm: %w", err)
		}
	}
	if _, err := j.AllowedSignatures(); err != nil {
		return err
	}
	if j.PBES2Iterations < kdf.MinPBKDF2Iterations {
		return fmt.Errorf("jose.pbes2_iterations must be at least %d", kdf.MinPBKDF2Iterations)
	}
	if j.PBES2MaxIterations < j.PBES2Iterations {
		return fmt.Errorf("jose.pbes2_max_iterations (%d) is below pbes2_iterations (%d)",
			j.PBES2MaxIterations, j.PBES2Iterations)
	}
	if _, err := parseDuration("jose.leeway", j.Leeway); err != nil {
		return err
	}
	return nil
}

// AllowedSignatures parses AllowedSignatureAlgorithms.
func (j JOSEConfig) AllowedSignatures() ([]jwa.SignatureAlgorithm, error) {
	algs := make([]jwa.SignatureAlgorithm, 0, len(j.AllowedSignatureAlgorithms))
	for _, name := range j.AllowedSignatureAlgorithms {
		alg, err := jwa.ParseSignatureAlgorithm(name)
		if err != nil {
			return nil, fmt.Errorf("jose.allowed_signature_algorithms: %w", err)
		}
		algs = append(algs, alg)
	}
	return algs, nil
}

// LeewayDuration returns the parsed JWT leeway.
func (j JOSEConfig) LeewayDuration() time.Duration {
	d, _ := parseDuration("jose.leeway", j.Leeway)
	return d
}

func (s STSConfig) validate() error {
	if _, err := parseDuration("sts.clock_skew", s.ClockSkew); err != nil {
		return err
	}
	if len(s.Handlers) == 0 {
		return fmt.Errorf("at least one sts handler must be enabled")
	}
	known := []string{HandlerSAML, HandlerHOK, HandlerUsername, HandlerJWT}
	for _, h := range s.Handlers {
		if !slices.Contains(known, h) {
			return fmt.Errorf("unknown sts handler: %s (must be one of %s)", h, strings.Join(known, ", "))
		}
	}
	for _, m := range s.AllowedConfirmationMethods {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("sts.allowed_confirmation_methods cannot contain empty entries")
		}
	}
	return nil
}

// ClockSkewDuration returns the parsed clock skew.
func (s STSConfig) ClockSkewDuration() time.Duration {
	d, _ := parseDuration("sts.clock_skew", s.ClockSkew)
	return d
}

// HandlerEnabled reports whether the named delegation handler is enabled.
func (s STSConfig) HandlerEnabled(name string) bool {
	return slices.Contains(s.Handlers, name)
}

func (s StoreConfig) validate(section string) error {
	switch s.Backend {
	case BackendMemory:
		return nil
	case BackendFile:
		if s.Path == "" {
			return fmt.Errorf("%s path is required for the file backend", section)
		}
		return nil
	default:
		return fmt.Errorf("invalid %s backend: %q (must be memory or file)", section, s.Backend)
	}
}

// TTL returns the parsed default token lifetime.
func (t TokenStoreConfig) TTL() time.Duration {
	d, _ := parseDuration("tokenstore.default_ttl", t.DefaultTTL)
	return d
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteFile writes the configuration as YAML to path with owner-only
// permissions. An existing file is only replaced when force is set.
func (c *Config) WriteFile(path string, force bool) error {
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	// #nosec G304 - config file path is provided by the user
	f, err := os.OpenFile(path, flags, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return f.Close()
}
