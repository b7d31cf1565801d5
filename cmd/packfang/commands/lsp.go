package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/packfang/internal/lsp"
	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
	"github.com/Sumatoshi-tech/packfang/pkg/observability"
)

// NewLSPCommand creates the LSP server command.
func NewLSPCommand(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Start LSP server for editor manifest diagnostics",
		Long: `Start a Language Server Protocol server on stdio transport.

The server audits the package whenever its manifest is opened, changed or
saved, and publishes the findings as diagnostics: missing dependencies as
errors, unused and redundant declarations as warnings.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			// Stdio carries the protocol; logs must go to stderr only.
			cfg.Logging.Format = "json"

			providers, err := initObservability(cfg, observability.ModeLSP)
			if err != nil {
				return err
			}
			defer shutdownObservability(providers)

			srv, err := lsp.NewServer(lsp.Options{
				Backend: manifest.Backend(cfg.Audit.Backend),
				Allow:   cfg.Audit.Allow,
				Logger:  providers.Logger,
			})
			if err != nil {
				return err
			}

			return srv.Run()
		},
	}
}
