// Package app implements the application layer: environment selection,
// the resolution pass, run orchestration and result aggregation.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.trai.ch/mox/internal/core/domain"
	"go.trai.ch/mox/internal/core/ports"
	"go.trai.ch/mox/internal/engine/scheduler"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// ResultStoreOpener opens the run-result store under the work directory.
type ResultStoreOpener func(path string) (ports.ResultStore, error)

// AggregatorOpener opens the coverage aggregator under the work directory.
type AggregatorOpener func(dir string) ports.CoverageAggregator

// App is the application layer.
type App struct {
	loader       ports.ConfigLoader
	scheduler    *scheduler.Scheduler
	telemetry    ports.Telemetry
	logger       ports.Logger
	openResults  ResultStoreOpener
	openCoverage AggregatorOpener

	cwd    string
	stdout io.Writer
}

// New creates an App.
func New(
	loader ports.ConfigLoader,
	sched *scheduler.Scheduler,
	telemetry ports.Telemetry,
	logger ports.Logger,
	openResults ResultStoreOpener,
	openCoverage AggregatorOpener,
) *App {
	return &App{
		loader:       loader,
		scheduler:    sched,
		telemetry:    telemetry,
		logger:       logger,
		openResults:  openResults,
		openCoverage: openCoverage,
		cwd:          ".",
		stdout:       os.Stdout,
	}
}

// WithStdout redirects user-facing output. Used by tests.
func WithStdout(w io.Writer) func(*App) {
	return func(a *App) { a.stdout = w }
}

// WithWorkingDir changes the project root the app operates in.
func WithWorkingDir(dir string) func(*App) {
	return func(a *App) { a.cwd = dir }
}

// Apply applies options.
func (a *App) Apply(opts ...func(*App)) {
	for _, opt := range opts {
		opt(a)
	}
}

// RunRequest selects and parameterizes one matrix run.
type RunRequest struct {
	// Envs selects environments by exact name. Empty (or the literal
	// "ALL") selects the whole envlist.
	Envs []string

	// Factor selects every envlist entry carrying the factor.
	Factor string

	// Posargs pass through to commands via the posargs token.
	Posargs []string

	// FailFast stops the matrix at the first failure.
	FailFast bool

	// Parallel bounds concurrent environments; 0 means one per CPU.
	Parallel int

	// Timeout overrides the document's per-command timeout when
	// positive.
	Timeout time.Duration
}

// Run executes the selected environments and prints the final summary.
//
// The whole selection resolves before anything executes: a configuration
// error aborts with no partial matrix execution. Results persist for
// cross-invocation aggregation. The returned error is ErrRunFailed when
// at least one selected environment failed; intentionally skipped
// environments do not fail the run.
func (a *App) Run(ctx context.Context, req RunRequest) error {
	doc, err := a.loader.Load(a.cwd)
	if err != nil {
		return zerr.Wrap(err, "loading configuration")
	}

	rootDir, err := filepath.Abs(a.cwd)
	if err != nil {
		return zerr.Wrap(err, "resolving project root")
	}
	workDir := doc.WorkDir
	if !filepath.IsAbs(workDir) {
		workDir = filepath.Join(rootDir, workDir)
	}

	selection, err := selectEnvs(doc, req.Envs, req.Factor)
	if err != nil {
		return err
	}

	rctx := domain.ResolveContext{
		RootDir: rootDir,
		WorkDir: workDir,
		RunID:   newRunID(),
		Posargs: req.Posargs,
	}
	matrix, err := a.resolveAll(ctx, doc, selection, rctx)
	if err != nil {
		return err
	}

	store, err := a.openResults(filepath.Join(workDir, "results.json"))
	if err != nil {
		return zerr.Wrap(err, "opening result store")
	}
	aggregator := a.openCoverage(filepath.Join(workDir, "coverage"))

	timeout := doc.CommandTimeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	defer func() {
		if err := a.telemetry.Close(); err != nil {
			a.logger.Warn("closing telemetry: " + err.Error())
		}
	}()

	results, runErr := a.scheduler.Run(ctx, matrix, scheduler.Options{
		Parallel:         req.Parallel,
		FailFast:         req.FailFast,
		CommandTimeout:   timeout,
		TerminationGrace: doc.TerminationGrace,
		RootDir:          rootDir,
		Aggregator:       aggregator,
	})
	if runErr != nil && results == nil {
		return runErr
	}

	for _, result := range results {
		if err := store.Put(result); err != nil {
			a.logger.Warn("persisting result for " + result.Env + ": " + err.Error())
		}
	}

	a.printSummary(selection, results)

	if runErr != nil {
		return zerr.Wrap(runErr, "run canceled")
	}
	var failed []string
	for _, name := range selection {
		if result, ok := results[name.String()]; ok && result.Failed() {
			failed = append(failed, name.String())
		}
	}
	if len(failed) > 0 {
		return zerr.With(domain.ErrRunFailed, "environments", strings.Join(failed, ", "))
	}
	return nil
}

// List prints the envlist, optionally filtered by factor, with each
// environment's resolved runtime.
func (a *App) List(factor string) error {
	doc, err := a.loader.Load(a.cwd)
	if err != nil {
		return zerr.Wrap(err, "loading configuration")
	}

	for _, name := range doc.EnvList {
		if factor != "" && !name.HasFactor(domain.Factor(factor)) {
			continue
		}
		spec, err := domain.Resolve(doc, name, domain.ResolveContext{
			RootDir: "/", WorkDir: "/",
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s (%s)\n", name, spec.Runtime)
	}
	return nil
}

// CoverageRequest parameterizes standalone aggregation.
type CoverageRequest struct {
	// Erase clears accumulated state strictly before combining.
	Erase bool

	// JSON prints the structured breakdown instead of the text table.
	JSON bool

	// Paths are dataset files or globs. Empty means the artifacts
	// recorded by the last persisted run results.
	Paths []string
}

// Coverage combines coverage datasets and prints the report.
func (a *App) Coverage(ctx context.Context, req CoverageRequest) error {
	doc, err := a.loader.Load(a.cwd)
	if err != nil {
		return zerr.Wrap(err, "loading configuration")
	}

	rootDir, err := filepath.Abs(a.cwd)
	if err != nil {
		return zerr.Wrap(err, "resolving project root")
	}
	workDir := doc.WorkDir
	if !filepath.IsAbs(workDir) {
		workDir = filepath.Join(rootDir, workDir)
	}

	paths := req.Paths
	if len(paths) == 0 {
		store, err := a.openResults(filepath.Join(workDir, "results.json"))
		if err != nil {
			return zerr.Wrap(err, "opening result store")
		}
		all, err := store.All()
		if err != nil {
			return err
		}
		for _, result := range all {
			paths = append(paths, result.Artifacts...)
		}
	}

	aggregator := a.openCoverage(filepath.Join(workDir, "coverage"))
	report, err := aggregator.Aggregate(ctx, ports.AggregateRequest{
		Paths:   paths,
		Erase:   req.Erase,
		RootDir: rootDir,
	})
	if err != nil {
		return err
	}

	if req.JSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return zerr.Wrap(err, "marshaling report")
		}
		fmt.Fprintln(a.stdout, string(data))
		return nil
	}

	// The aggregator already rendered the table; print its copy rather
	// than rendering twice.
	_, reportPath := aggregator.ReportPaths()
	rendered, err := os.ReadFile(reportPath) //nolint:gosec // path comes from the aggregator
	if err != nil {
		return zerr.Wrap(err, "reading rendered report")
	}
	_, err = a.stdout.Write(rendered)
	return err
}

// selectEnvs computes the selected environment names plus the transitive
// closure of their depends declarations, in stable order.
func selectEnvs(doc *domain.Document, envs []string, factor string) ([]domain.EnvName, error) {
	var roots []domain.EnvName
	switch {
	case len(envs) == 1 && envs[0] == "ALL":
		roots = doc.EnvList
	case len(envs) > 0:
		for _, raw := range envs {
			name, err := domain.ParseEnvName(raw)
			if err != nil {
				return nil, err
			}
			if !doc.Declares(raw) {
				return nil, zerr.With(domain.ErrUnknownEnvironment, "env", raw)
			}
			roots = append(roots, name)
		}
	case factor != "":
		for _, name := range doc.EnvList {
			if name.HasFactor(domain.Factor(factor)) {
				roots = append(roots, name)
			}
		}
	default:
		roots = doc.EnvList
	}

	seen := make(map[string]bool, len(roots))
	var selection []domain.EnvName
	var add func(name domain.EnvName)
	add = func(name domain.EnvName) {
		if seen[name.String()] {
			return
		}
		seen[name.String()] = true
		selection = append(selection, name)
		if override, ok := doc.Override(name.String()); ok {
			for _, dep := range override.Depends {
				add(dep)
			}
		}
	}
	for _, name := range roots {
		add(name)
	}
	return selection, nil
}

// resolveAll resolves every selected spec before any execution. The
// resolution pass runs concurrently; it is pure per environment.
func (a *App) resolveAll(ctx context.Context, doc *domain.Document, selection []domain.EnvName, rctx domain.ResolveContext) (*domain.Matrix, error) {
	specs := make([]*domain.EnvSpec, len(selection))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(defaultParallelism())
	var mu sync.Mutex

	for i, name := range selection {
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			spec, err := domain.Resolve(doc, name, rctx)
			if err != nil {
				return err
			}
			mu.Lock()
			specs[i] = spec
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	matrix := domain.NewMatrix()
	for _, spec := range specs {
		if err := matrix.Add(spec); err != nil {
			return nil, err
		}
	}
	return matrix, nil
}

// printSummary enumerates every selected environment's terminal state.
// Failures name the failing command and its exit code.
func (a *App) printSummary(selection []domain.EnvName, results map[string]domain.RunResult) {
	fmt.Fprintln(a.stdout, "summary:")
	for _, name := range selection {
		result, ok := results[name.String()]
		if !ok {
			continue
		}
		fmt.Fprintf(a.stdout, "  %s: %s%s\n", name, result.Status, describe(result))
	}
}

func describe(result domain.RunResult) string {
	switch result.Status {
	case domain.StatusFailed:
		if result.FailedIndex != domain.NoFailedCommand && result.FailedIndex < len(result.Commands) {
			failed := result.Commands[result.FailedIndex]
			outcome := "exited " + strconv.Itoa(failed.ExitCode)
			if failed.TimedOut {
				outcome = "timed out"
			}
			return " (command " + strconv.Itoa(result.FailedIndex) +
				" '" + strings.Join(failed.Args, " ") + "' " + outcome + ")"
		}
		if result.Reason != "" {
			return " (" + result.Reason + ")"
		}
	case domain.StatusSkipped:
		if result.Reason != "" {
			return " (" + result.Reason + ")"
		}
	}
	return ""
}

func newRunID() string {
	return "run-" + strconv.FormatInt(time.Now().UnixNano(), 36)
}

func defaultParallelism() int {
	return runtime.NumCPU()
}
