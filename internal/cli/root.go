// Package cli wires the cobra commands around an explicitly constructed
// gateway. Commands build their own gateway instance from configuration
// and pass it by reference; there is no package-level singleton.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/config"
	"github.com/roach88/strata/internal/gateway"

	// Register the backend adapters with the factory.
	_ "github.com/roach88/strata/internal/backend/postgres"
	_ "github.com/roach88/strata/internal/backend/sqlite"
	_ "github.com/roach88/strata/internal/backend/warehouse"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the strata CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "strata",
		Short: "Strata - multi-backend read-only SQL gateway",
		Long:  "A pluggable data-access gateway that validates, routes, and executes read-only SQL against embedded, pooled-relational, or cloud-warehouse engines.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "strata.yaml", "path to configuration file")

	// Add subcommands
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewProductsCommand(opts))
	cmd.AddCommand(NewViewsCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig reads the configuration and builds the process logger.
func loadConfig(opts *RootOptions) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return cfg, nil, err
	}

	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}

// openGateway constructs and initializes a gateway for one command run.
// Callers must Close it.
func openGateway(cmd *cobra.Command, opts *RootOptions) (*gateway.Gateway, error) {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load configuration", err)
	}

	gw := gateway.New(cfg, logger)
	if err := gw.Init(cmd.Context()); err != nil {
		return nil, WrapExitError(ExitCommandError, "initialize gateway", err)
	}
	return gw, nil
}
