package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/packfang/internal/mcp"
	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
	"github.com/Sumatoshi-tech/packfang/pkg/observability"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand(root *rootFlags) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes dependency audits as tools that AI agents can
discover and invoke:
  - audit_package: audit every target of a Swift package
  - audit_target:  audit one target
  - list_targets:  list the targets a manifest declares`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			if metricsAddr != "" {
				cfg.Telemetry.MetricsAddr = metricsAddr
			}

			// Stdio carries the protocol; logs must be structured and go
			// to stderr only.
			cfg.Logging.Format = "json"

			providers, err := initObservability(cfg, observability.ModeMCP)
			if err != nil {
				return err
			}
			defer shutdownObservability(providers)

			red, err := observability.NewREDMetrics(providers.Meter)
			if err != nil {
				return err
			}

			srv, err := mcp.NewServer(mcp.ServerDeps{
				Logger:    providers.Logger,
				Metrics:   red,
				Tracer:    providers.Tracer,
				Backend:   manifest.Backend(cfg.Audit.Backend),
				Allow:     cfg.Audit.Allow,
				Workers:   cfg.Audit.Workers,
				CacheSize: cfg.MCP.CacheSize,
			})
			if err != nil {
				return err
			}

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "expose a Prometheus scrape endpoint at this address")

	return cmd
}
