package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Sumatoshi-tech/packfang/internal/baseline"
	"github.com/Sumatoshi-tech/packfang/internal/config"
	"github.com/Sumatoshi-tech/packfang/internal/report"
	"github.com/Sumatoshi-tech/packfang/internal/watch"
	"github.com/Sumatoshi-tech/packfang/pkg/audit"
	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
	"github.com/Sumatoshi-tech/packfang/pkg/observability"
)

// auditExecutor runs an audit rooted at dir. An empty target audits the
// whole package. Injectable for tests.
type auditExecutor func(ctx context.Context, dir, target string, opts audit.Options) (*audit.Report, error)

// AuditCommand holds configuration and dependencies for the audit command.
type AuditCommand struct {
	root *rootFlags

	target      string
	backend     string
	format      string
	output      string
	color       string
	allow       []string
	exclude     []string
	baselineRef string
	watchMode   bool
	workers     int
	strict      bool

	exec auditExecutor
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(root *rootFlags) *cobra.Command {
	return newAuditCommandWithDeps(root, runAudit)
}

func newAuditCommandWithDeps(root *rootFlags, exec auditExecutor) *cobra.Command {
	ac := &AuditCommand{root: root, exec: exec}

	cmd := &cobra.Command{
		Use:   "audit [dir]",
		Short: "Audit a package's declared dependencies against its imports",
		Long: `Audit every target of the Swift package at dir (default: current
directory), or a single target with --target. Missing dependencies are
errors; unused and redundant declarations are warnings.

Exit codes: 0 clean, 1 missing dependencies, 2 warnings only (with --strict).`,
		Args: cobra.MaximumNArgs(1),
		RunE: ac.run,
	}

	cmd.Flags().StringVarP(&ac.target, "target", "t", "", "audit only this target (missing sources become a hard error)")
	cmd.Flags().StringVar(&ac.backend, "backend", "", "manifest parser backend: auto, syntax, lexical")
	cmd.Flags().StringVarP(&ac.format, "format", "f", "", "output format: text, compact, json, yaml, xcode, plot, bin")
	cmd.Flags().StringVarP(&ac.output, "output", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().StringVar(&ac.color, "color", "", "color mode for text output: auto, always, never")
	cmd.Flags().StringSliceVar(&ac.allow, "allow", nil, "module names exempt from findings (case-sensitive, repeatable)")
	cmd.Flags().StringSliceVar(&ac.exclude, "exclude", nil, "path globs not to scan (repeatable)")
	cmd.Flags().StringVar(&ac.baselineRef, "baseline", "", "git revision to report declared-dependency drift against")
	cmd.Flags().BoolVarP(&ac.watchMode, "watch", "w", false, "re-run the audit when the manifest or sources change")
	cmd.Flags().IntVar(&ac.workers, "workers", 0, "concurrent target analyses (0 = CPU count)")
	cmd.Flags().BoolVar(&ac.strict, "strict", false, "exit nonzero on warnings too")

	return cmd
}

// settings is the audit configuration after merging config file values with
// command-line flags; a flag set on the command line wins.
type settings struct {
	backend  manifest.Backend
	format   report.Format
	color    string
	allow    []string
	exclude  []string
	workers  int
	strict   bool
	debounce config.WatchConfig
}

func (ac *AuditCommand) resolve(flags *pflag.FlagSet, cfg *config.Config) settings {
	s := settings{
		backend:  manifest.Backend(cfg.Audit.Backend),
		format:   report.Format(cfg.Report.Format),
		color:    cfg.Report.Color,
		allow:    cfg.Audit.Allow,
		exclude:  cfg.Audit.Exclude,
		workers:  cfg.Audit.Workers,
		strict:   cfg.Audit.Strict,
		debounce: cfg.Watch,
	}

	if flags.Changed("backend") {
		s.backend = manifest.Backend(ac.backend)
	}

	if flags.Changed("format") {
		s.format = report.Format(ac.format)
	}

	if flags.Changed("color") {
		s.color = ac.color
	}

	if flags.Changed("workers") {
		s.workers = ac.workers
	}

	if flags.Changed("strict") {
		s.strict = ac.strict
	}

	// Allow and exclude flags extend the configured lists.
	s.allow = append(append([]string{}, s.allow...), ac.allow...)
	s.exclude = append(append([]string{}, s.exclude...), ac.exclude...)

	return s
}

func (ac *AuditCommand) run(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	cfg, err := ac.root.loadConfig()
	if err != nil {
		return err
	}

	s := ac.resolve(cmd.Flags(), cfg)

	renderer, err := report.New(s.format, report.Options{Color: s.color})
	if err != nil {
		return err
	}

	providers, err := initObservability(cfg, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer shutdownObservability(providers)

	metrics, err := observability.NewAuditMetrics(providers.Meter)
	if err != nil {
		return err
	}

	opts := audit.Options{
		Backend:  s.backend,
		Allow:    s.allow,
		Excludes: s.exclude,
		Workers:  s.workers,
		Logger:   providers.Logger,
		Tracer:   providers.Tracer,
		Metrics:  metrics,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if ac.watchMode {
		watchOpts := watch.Options{Debounce: s.debounce.Debounce, Logger: providers.Logger}

		return watch.Run(ctx, dir, watchOpts, func(runCtx context.Context) error {
			_, runErr := ac.auditOnce(runCtx, cmd, dir, opts, renderer, s)

			return runErr
		})
	}

	rep, err := ac.auditOnce(ctx, cmd, dir, opts, renderer, s)
	if err != nil {
		return err
	}

	switch {
	case rep.HasError():
		return &ExitError{Code: ExitFindings}
	case s.strict && rep.HasWarning():
		return &ExitError{Code: ExitWarnings}
	default:
		return nil
	}
}

// auditOnce runs one audit pass and renders the report. A partial report
// (some targets failed) is still rendered before the failure is returned.
func (ac *AuditCommand) auditOnce(
	ctx context.Context,
	cmd *cobra.Command,
	dir string,
	opts audit.Options,
	renderer report.Renderer,
	s settings,
) (*audit.Report, error) {
	rep, runErr := ac.exec(ctx, dir, ac.target, opts)
	if rep == nil {
		return nil, runErr
	}

	out, closeOut, err := ac.openOutput(cmd)
	if err != nil {
		return nil, err
	}
	defer closeOut()

	if err := renderer.Render(out, rep); err != nil {
		return nil, err
	}

	if ac.baselineRef != "" {
		if err := ac.renderBaseline(ctx, cmd, dir, rep, opts, s); err != nil {
			return nil, err
		}
	}

	return rep, runErr
}

// renderBaseline appends declared-dependency drift since the baseline
// revision. Drift is a terminal aid; structured formats skip it so their
// output stays schema-clean.
func (ac *AuditCommand) renderBaseline(
	ctx context.Context,
	cmd *cobra.Command,
	dir string,
	rep *audit.Report,
	opts audit.Options,
	s settings,
) error {
	if s.format != report.FormatText && s.format != report.FormatCompact {
		opts.Logger.Debug("baseline drift is only rendered for text formats", "format", string(s.format))

		return nil
	}

	base, err := baseline.ManifestAt(ctx, dir, ac.baselineRef, opts.Backend)
	if err != nil {
		return fmt.Errorf("baseline %s: %w", ac.baselineRef, err)
	}

	drifts := baseline.Compare(base, rep)

	return baseline.FormatText(cmd.OutOrStdout(), ac.baselineRef, drifts)
}

// openOutput returns the report destination and a close function.
func (ac *AuditCommand) openOutput(cmd *cobra.Command) (io.Writer, func(), error) {
	if ac.output == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}

	file, err := os.Create(ac.output)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}

	return file, func() { _ = file.Close() }, nil
}

// runAudit is the production audit executor.
func runAudit(ctx context.Context, dir, target string, opts audit.Options) (*audit.Report, error) {
	runner, err := audit.New(opts)
	if err != nil {
		return nil, err
	}

	if target == "" {
		return runner.Run(ctx, dir)
	}

	result, err := runner.AuditTarget(ctx, dir, target)
	if err != nil {
		return nil, err
	}

	pkg, err := manifest.ParseDir(ctx, dir, opts.Backend)
	if err != nil {
		return nil, err
	}

	return &audit.Report{
		Package: pkg.Name,
		Path:    pkg.Path,
		Results: []audit.Result{*result},
	}, nil
}
