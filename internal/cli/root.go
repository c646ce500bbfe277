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

// Package cli implements the trustkit command tree.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/jeremyhahn/go-trustkit/internal/config"
	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-trustkit/pkg/correlation"
	"github.com/jeremyhahn/go-trustkit/pkg/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app holds state shared by every command of one invocation.
type app struct {
	configFile    string
	outputFormat  string
	correlationID string

	viper   *viper.Viper
	cfg     *config.Config
	log     logger.Logger
	printer *Printer
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the trustkit command tree.
func NewRootCommand() *cobra.Command {
	a := &app{viper: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:   "trustkit",
		Short: "go-trustkit CLI - JOSE and STS token tool",
		Long: `trustkit creates and consumes JOSE objects and evaluates STS
token delegation.

Commands:
  - jwk:    generate, import, export and protect JSON Web Keys
  - jwe:    encrypt and decrypt JSON Web Encryption objects
  - jws:    sign and verify JSON Web Signatures
  - jwt:    issue and validate JSON Web Tokens
  - sts:    validate tokens and evaluate delegation (ActAs/OnBehalfOf)
  - config: write or inspect the configuration`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "",
		"config file (YAML); TRUSTKIT_* environment variables override it")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.StringVarP(&a.outputFormat, "output", "o", string(OutputFormatText),
		"output format (text, json)")
	flags.StringVar(&a.correlationID, "correlation-id", "",
		"id attached to log records and delegation requests (default: random UUID)")
	_ = a.viper.BindPFlag("logging.level", flags.Lookup("log-level"))

	rootCmd.AddCommand(
		newVersionCmd(a),
		newConfigCmd(a),
		newJWKCmd(a),
		newJWECmd(a),
		newJWSCmd(a),
		newJWTCmd(a),
		newSTSCmd(a),
	)
	return rootCmd
}

// setup loads configuration and builds the logger and printer.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	switch OutputFormat(a.outputFormat) {
	case OutputFormatText, OutputFormatJSON:
	default:
		return fmt.Errorf("unknown output format: %s", a.outputFormat)
	}
	a.printer = NewPrinter(a.outputFormat, cmd.OutOrStdout())

	if err := config.ReadFile(a.viper, a.configFile); err != nil {
		return err
	}
	cfg, err := config.FromViper(a.viper)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	ctx, id := correlation.Ensure(cmd.Context(), a.correlationID)
	a.correlationID = id
	cmd.SetContext(ctx)
	a.log = correlation.Logger(ctx, logger.NewSlogAdapter(&logger.SlogConfig{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})).With(logger.String("command", cmd.CommandPath()))

	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}
	return nil
}

func (a *app) teardown(cmd *cobra.Command, _ []string) error {
	if a.cfg != nil && a.cfg.Metrics.Dump {
		return metrics.WriteText(cmd.ErrOrStderr())
	}
	return nil
}

// readInput reads path, or standard input when path is empty or "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	// #nosec G304 - input path is provided by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
