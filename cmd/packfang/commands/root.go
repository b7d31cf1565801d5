// Package commands implements CLI command handlers for packfang.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/packfang/internal/config"
	"github.com/Sumatoshi-tech/packfang/pkg/observability"
	"github.com/Sumatoshi-tech/packfang/pkg/version"
)

// Exit codes of the audit and validate commands. A clean run exits 0.
const (
	// ExitFindings is returned when any target has a missing dependency,
	// or when a report fails schema validation.
	ExitFindings = 1

	// ExitWarnings is returned under --strict when the only findings are
	// warnings (unused or redundant declarations).
	ExitWarnings = 2
)

// ExitError carries a process exit code through cobra's error path without
// printing an extra message; the command has already rendered its report.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	configPath string
	verbose    bool
	quiet      bool
}

// NewRootCommand creates the packfang root command with all subcommands.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "packfang",
		Short: "Packfang - Swift package dependency auditor",
		Long: `Packfang audits a Swift package's declared dependencies against the
imports its source code actually uses.

Commands:
  audit     Audit a package or a single target
  fix       Preview or apply removal of unused declarations
  validate  Validate a report JSON file against the schema
  mcp       Start the MCP server for AI agent integration
  lsp       Start the LSP server for editor diagnostics`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default: .packfang.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "suppress non-error output")

	rootCmd.AddCommand(NewAuditCommand(flags))
	rootCmd.AddCommand(NewFixCommand(flags))
	rootCmd.AddCommand(NewValidateCommand())
	rootCmd.AddCommand(NewMCPCommand(flags))
	rootCmd.AddCommand(NewLSPCommand(flags))

	return rootCmd
}

// loadConfig loads the configuration file and applies the verbosity flags on
// top of it.
func (f *rootFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}

	if f.verbose {
		cfg.Logging.Level = "debug"
	}

	if f.quiet {
		cfg.Logging.Level = "error"
	}

	return cfg, nil
}

// initObservability boots the observability stack for the given mode and
// installs the returned logger as the process default.
func initObservability(cfg *config.Config, mode observability.AppMode) (observability.Providers, error) {
	obsCfg := cfg.ObservabilityConfig(mode)
	obsCfg.ServiceVersion = version.Version

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return observability.Providers{}, err
	}

	slog.SetDefault(providers.Logger)

	return providers, nil
}

// shutdownObservability flushes pending telemetry, logging instead of
// failing the command when the flush itself errors.
func shutdownObservability(providers observability.Providers) {
	err := providers.Shutdown(context.Background())
	if err != nil {
		providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}
