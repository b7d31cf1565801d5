package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
	"github.com/Sumatoshi-tech/packfang/pkg/observability"
	"github.com/Sumatoshi-tech/packfang/pkg/resolver"
	"github.com/Sumatoshi-tech/packfang/pkg/scanner"
)

// tracerName is the default OTel tracer name for the audit package.
const tracerName = "packfang"

// ErrTargetNotFound is returned by AuditTarget when the manifest does not
// declare the requested target.
var ErrTargetNotFound = errors.New("target not declared in manifest")

// Options configures a Runner.
type Options struct {
	// Backend selects the manifest parser backend. Empty means auto.
	Backend manifest.Backend

	// Allow lists module names exempt from missing and unused reporting,
	// matched case-sensitively.
	Allow []string

	// Excludes are path globs relative to the package root; matching
	// files are not scanned.
	Excludes []string

	// Workers bounds concurrent target analyses. Defaults to the number
	// of CPUs.
	Workers int

	// Logger receives debug output. Defaults to slog.Default().
	Logger *slog.Logger

	// Tracer creates audit spans. When nil, falls back to the global
	// provider.
	Tracer trace.Tracer

	// Metrics, when set, receives per-target and per-finding counts.
	Metrics *observability.AuditMetrics
}

// Runner fans out per-target dependency audits across a worker pool. A
// Runner is safe for concurrent use.
type Runner struct {
	backend  manifest.Backend
	allow    []string
	scanner  *scanner.Scanner
	resolver *resolver.Resolver
	workers  int
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.AuditMetrics
}

// New builds a Runner from opts.
func New(opts Options) (*Runner, error) {
	if !opts.Backend.Valid() {
		return nil, fmt.Errorf("%w: %q", manifest.ErrUnknownBackend, opts.Backend)
	}

	files, err := scanner.New(scanner.Options{
		Allow:    opts.Allow,
		Excludes: opts.Excludes,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	checkouts, err := resolver.New(resolver.Options{
		Backend: opts.Backend,
		Logger:  opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		backend:  opts.Backend,
		allow:    opts.Allow,
		scanner:  files,
		resolver: checkouts,
		workers:  workers,
		logger:   logger,
		tracer:   opts.Tracer,
		metrics:  opts.Metrics,
	}, nil
}

// startSpan opens a span on the configured tracer, falling back to the
// global provider.
func (r *Runner) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := r.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Run audits every target the package at dir declares. Targets whose source
// directory does not exist are skipped. Any other per-target failure is
// collected without aborting sibling analyses; the joined failures are
// returned alongside the report, which still carries every result that
// completed.
func (r *Runner) Run(ctx context.Context, dir string) (*Report, error) {
	ctx, span := r.startSpan(ctx, "packfang.audit",
		attribute.String("audit.path", dir),
	)
	defer span.End()

	pkg, err := manifest.ParseDir(ctx, dir, r.backend)
	if err != nil {
		observability.RecordSpanError(span, err, observability.ErrTypeValidation, observability.ErrSourceClient)

		return nil, err
	}

	span.SetAttributes(
		attribute.String("audit.package", pkg.Name),
		attribute.Int("audit.targets", len(pkg.Targets)),
	)

	external, err := r.resolver.Resolve(ctx, pkg)
	if err != nil {
		observability.RecordSpanError(span, err, observability.ErrTypeInternal, observability.ErrSourceServer)

		return nil, err
	}

	results, failures := r.auditAll(ctx, pkg, resolver.ProductMap(external))

	report := &Report{Package: pkg.Name, Path: pkg.Path, Results: results}

	if err := errors.Join(failures...); err != nil {
		observability.RecordSpanError(span, err, observability.ErrTypeInternal, observability.ErrSourceServer)

		return report, err
	}

	return report, nil
}

// AuditTarget audits the one named target. Unlike Run, a missing source
// directory is a hard failure here.
func (r *Runner) AuditTarget(ctx context.Context, dir, name string) (*Result, error) {
	ctx, span := r.startSpan(ctx, "packfang.audit",
		attribute.String("audit.path", dir),
		attribute.String("target.name", name),
	)
	defer span.End()

	pkg, err := manifest.ParseDir(ctx, dir, r.backend)
	if err != nil {
		observability.RecordSpanError(span, err, observability.ErrTypeValidation, observability.ErrSourceClient)

		return nil, err
	}

	target, ok := pkg.Target(name)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrTargetNotFound, name)
		observability.RecordSpanError(span, err, observability.ErrTypeNotFound, observability.ErrSourceClient)

		return nil, err
	}

	external, err := r.resolver.Resolve(ctx, pkg)
	if err != nil {
		observability.RecordSpanError(span, err, observability.ErrTypeInternal, observability.ErrSourceServer)

		return nil, err
	}

	return r.auditTarget(ctx, pkg, resolver.ProductMap(external), target)
}

// targetWork is one unit of target analysis dispatched to the pool.
type targetWork struct {
	index  int
	target *manifest.Target
}

// targetWorker drains a work channel of target analyses.
type targetWorker struct {
	workChan chan targetWork
}

// targetWorkChanBuffer lets one target queue while another is analyzed.
const targetWorkChanBuffer = 2

// auditAll fans the package's targets out over the worker pool. Results and
// failures come back in per-target slots; a skipped target leaves both nil.
func (r *Runner) auditAll(ctx context.Context, pkg *manifest.Package, productMap map[string][]string) ([]Result, []error) {
	numWorkers := min(r.workers, len(pkg.Targets))
	if numWorkers < 1 {
		numWorkers = 1
	}

	workers := make([]*targetWorker, numWorkers)
	for i := range numWorkers {
		workers[i] = &targetWorker{workChan: make(chan targetWork, targetWorkChanBuffer)}
	}

	results := make([]*Result, len(pkg.Targets))
	errs := make([]error, len(pkg.Targets))

	wg := r.startWorkers(ctx, workers, pkg, productMap, results, errs)

	for i := range pkg.Targets {
		workers[i%numWorkers].workChan <- targetWork{index: i, target: &pkg.Targets[i]}
	}

	closeWorkersAndWait(workers, wg)

	compact := make([]Result, 0, len(results))

	var failures []error

	for i := range results {
		if errs[i] != nil {
			failures = append(failures, errs[i])

			continue
		}

		if results[i] != nil {
			compact = append(compact, *results[i])
		}
	}

	return compact, failures
}

// startWorkers launches goroutines that drain work channels. A failed
// target records its error in that target's slot and never stops the
// worker; a target without a source directory is skipped with a debug log.
func (r *Runner) startWorkers(
	ctx context.Context,
	workers []*targetWorker,
	pkg *manifest.Package,
	productMap map[string][]string,
	results []*Result,
	errs []error,
) *sync.WaitGroup {
	var wg sync.WaitGroup

	wg.Add(len(workers))

	for _, wk := range workers {
		go func(worker *targetWorker) {
			defer wg.Done()

			for work := range worker.workChan {
				result, err := r.auditTarget(ctx, pkg, productMap, work.target)

				switch {
				case errors.Is(err, scanner.ErrSourceDirNotFound):
					r.logger.Debug("skipping target without sources",
						"target", work.target.Name, "err", err)
				case err != nil:
					errs[work.index] = err
				default:
					results[work.index] = result
				}
			}
		}(wk)
	}

	return &wg
}

// closeWorkersAndWait closes all worker channels and waits for the
// goroutines to finish.
func closeWorkersAndWait(workers []*targetWorker, wg *sync.WaitGroup) {
	for _, worker := range workers {
		close(worker.workChan)
	}

	wg.Wait()
}

// auditTarget scans and classifies one target. Declaration-only targets are
// analyzed without scanning.
func (r *Runner) auditTarget(ctx context.Context, pkg *manifest.Package, productMap map[string][]string, target *manifest.Target) (*Result, error) {
	ctx, span := r.startSpan(ctx, "packfang.audit.target",
		attribute.String("target.name", target.Name),
		attribute.String("target.kind", string(target.Kind)),
	)
	defer span.End()

	start := time.Now()

	var files []scanner.SourceFile

	if target.Kind.OwnsSources() {
		var err error

		files, err = r.scanner.Scan(ctx, pkg.Path, target)
		if err != nil {
			r.recordOutcome(ctx, span, err, 0, time.Since(start))

			return nil, err
		}
	}

	result := Analyze(target, pkg, productMap, files, r.allow)

	r.recordOutcome(ctx, span, nil, len(files), time.Since(start))
	r.recordFindings(ctx, span, &result)

	return &result, nil
}

// recordOutcome stamps the span and metrics with one target's outcome.
func (r *Runner) recordOutcome(ctx context.Context, span trace.Span, err error, files int, elapsed time.Duration) {
	status := "ok"

	switch {
	case errors.Is(err, scanner.ErrSourceDirNotFound):
		status = "skipped"

		observability.RecordSpanError(span, err, observability.ErrTypeNotFound, observability.ErrSourceClient)
	case err != nil:
		status = "error"

		observability.RecordSpanError(span, err, observability.ErrTypeInternal, observability.ErrSourceServer)
	}

	if r.metrics != nil {
		r.metrics.RecordTarget(ctx, status, files, elapsed)
	}
}

// recordFindings stamps the span and metrics with one target's
// classification counts.
func (r *Runner) recordFindings(ctx context.Context, span trace.Span, result *Result) {
	span.SetAttributes(
		attribute.Int("audit.missing", len(result.Missing)),
		attribute.Int("audit.unused", len(result.Unused)),
		attribute.Int("audit.redundant", len(result.Redundant)),
	)

	if r.metrics == nil {
		return
	}

	r.metrics.AddFindings(ctx, observability.ClassMissing, len(result.Missing))
	r.metrics.AddFindings(ctx, observability.ClassUnused, len(result.Unused))
	r.metrics.AddFindings(ctx, observability.ClassCorrect, len(result.Correct))
	r.metrics.AddFindings(ctx, observability.ClassProductSatisfied, len(result.ProductSatisfied))
	r.metrics.AddFindings(ctx, observability.ClassRedundant, len(result.Redundant))
}
