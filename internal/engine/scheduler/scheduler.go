// Package scheduler runs a resolved environment matrix: isolated
// concurrent execution, depends barriers and per-environment state
// machines.
package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.trai.ch/mox/internal/core/domain"
	"go.trai.ch/mox/internal/core/ports"
	"go.trai.ch/zerr"
)

// Options control one matrix run.
type Options struct {
	// Parallel bounds concurrently running environments. Zero or
	// negative means one per CPU.
	Parallel int

	// FailFast stops issuing new commands and environment starts after
	// the first failure. In-flight commands finish or are terminated per
	// the termination grace.
	FailFast bool

	// CommandTimeout bounds each command. Zero means no bound.
	CommandTimeout time.Duration

	// TerminationGrace is the SIGTERM-to-SIGKILL window for canceled or
	// timed-out commands.
	TerminationGrace time.Duration

	// RootDir is the project root; commands without a changedir run here
	// and relative artifact globs anchor here.
	RootDir string

	// Aggregator serves combining environments. The combine step is
	// serialized by the aggregator itself.
	Aggregator ports.CoverageAggregator
}

// Scheduler executes environment matrices.
type Scheduler struct {
	executor    ports.Executor
	locator     ports.RuntimeLocator
	provisioner ports.Provisioner
	telemetry   ports.Telemetry
	logger      ports.Logger

	mu     sync.RWMutex
	status map[string]domain.RunStatus
}

// New creates a Scheduler.
func New(
	executor ports.Executor,
	locator ports.RuntimeLocator,
	provisioner ports.Provisioner,
	telemetry ports.Telemetry,
	logger ports.Logger,
) *Scheduler {
	return &Scheduler{
		executor:    executor,
		locator:     locator,
		provisioner: provisioner,
		telemetry:   telemetry,
		logger:      logger,
		status:      make(map[string]domain.RunStatus),
	}
}

// Status returns the current lifecycle state of an environment.
func (s *Scheduler) Status(env string) domain.RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status[env]
}

// transition moves an environment through its state machine. Terminal
// states absorb: an invalid transition is a programming error and is
// refused rather than applied.
func (s *Scheduler) transition(env string, next domain.RunStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.status[env]
	if !current.CanTransition(next) {
		if s.logger != nil {
			s.logger.Warn("refused state transition " + string(current) + " -> " + string(next) + " for " + env)
		}
		return
	}
	s.status[env] = next
}

// Run executes every environment of the matrix and returns one RunResult
// per environment.
//
// Independent environments run concurrently up to the parallel limit. An
// environment with depends waits until every dependency reaches a
// terminal state, whatever that state is: depends is an ordering barrier,
// not a success gate. A failure never cancels siblings unless FailFast is
// set. The returned error reports cancellation of the parent context;
// per-environment failures live in the results.
func (s *Scheduler) Run(ctx context.Context, matrix *domain.Matrix, opts Options) (map[string]domain.RunResult, error) {
	if err := matrix.Validate(); err != nil {
		return nil, err
	}

	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := s.newRunState(matrix)
	s.emitPlan(ctx, matrix)

	for !state.done() {
		for env := state.next(parallel); env != ""; env = state.next(parallel) {
			if runCtx.Err() != nil {
				state.giveBack(env)
				break
			}
			state.launch(runCtx, env, opts)
		}

		if runCtx.Err() != nil && state.active == 0 {
			break
		}
		if state.done() {
			break
		}

		res := <-state.resultsCh
		state.finish(res)
		if opts.FailFast && res.result.Failed() {
			cancel()
		}
	}

	// Everything that never started is skipped, not silently absent.
	for _, env := range matrix.Names() {
		if _, ok := state.results[env]; ok {
			continue
		}
		s.transition(env, domain.StatusSkipped)
		state.results[env] = domain.RunResult{
			Env:         env,
			Status:      domain.StatusSkipped,
			FailedIndex: domain.NoFailedCommand,
			Reason:      "run canceled before start",
		}
	}

	if err := ctx.Err(); err != nil {
		return state.results, err
	}
	return state.results, nil
}

type envResult struct {
	env    string
	result domain.RunResult
}

type runState struct {
	s          *Scheduler
	specs      map[string]*domain.EnvSpec
	inDegree   map[string]int
	dependents map[string][]string
	ready      []string
	active     int
	resultsCh  chan envResult
	results    map[string]domain.RunResult
}

func (s *Scheduler) newRunState(matrix *domain.Matrix) *runState {
	state := &runState{
		s:          s,
		specs:      make(map[string]*domain.EnvSpec, matrix.Len()),
		inDegree:   make(map[string]int, matrix.Len()),
		dependents: make(map[string][]string),
		resultsCh:  make(chan envResult, matrix.Len()),
		results:    make(map[string]domain.RunResult, matrix.Len()),
	}

	for spec := range matrix.Walk() {
		env := spec.Name.String()
		state.specs[env] = spec
		state.inDegree[env] = len(spec.Depends)
		s.setPending(env)
		for _, dep := range spec.Depends {
			depName := dep.String()
			state.dependents[depName] = append(state.dependents[depName], env)
		}
	}
	// Walk order is deterministic, so the initial ready queue is too.
	for spec := range matrix.Walk() {
		env := spec.Name.String()
		if state.inDegree[env] == 0 {
			state.ready = append(state.ready, env)
		}
	}
	return state
}

func (s *Scheduler) setPending(env string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[env] = domain.StatusPending
}

func (s *Scheduler) emitPlan(ctx context.Context, matrix *domain.Matrix) {
	if s.telemetry == nil {
		return
	}
	s.telemetry.EmitPlan(ctx, matrix.Names())
}

func (state *runState) done() bool {
	return state.active == 0 && len(state.ready) == 0
}

// next pops a ready environment when a worker slot is free.
func (state *runState) next(parallel int) string {
	if len(state.ready) == 0 || state.active >= parallel {
		return ""
	}
	env := state.ready[0]
	state.ready = state.ready[1:]
	return env
}

func (state *runState) giveBack(env string) {
	state.ready = append([]string{env}, state.ready...)
}

func (state *runState) launch(ctx context.Context, env string, opts Options) {
	state.active++
	spec := state.specs[env]
	depArtifacts := state.dependencyArtifacts(spec)

	go func() {
		state.resultsCh <- envResult{
			env:    env,
			result: state.s.runEnv(ctx, spec, opts, depArtifacts),
		}
	}()
}

// dependencyArtifacts collects the artifact paths recorded by the spec's
// dependencies. The barrier guarantees they are terminal by launch time.
func (state *runState) dependencyArtifacts(spec *domain.EnvSpec) []string {
	var artifacts []string
	for _, dep := range spec.Depends {
		if result, ok := state.results[dep.String()]; ok {
			artifacts = append(artifacts, result.Artifacts...)
		}
	}
	return artifacts
}

// finish records a result and releases every dependent whose barrier is
// now fully down. Any terminal state releases: a meta-environment
// aggregates whatever its sub-environments produced.
func (state *runState) finish(res envResult) {
	state.active--
	state.results[res.env] = res.result

	for _, dependent := range state.dependents[res.env] {
		state.inDegree[dependent]--
		if state.inDegree[dependent] == 0 {
			state.ready = append(state.ready, dependent)
		}
	}
}

// runEnv drives one environment through Pending -> Provisioning ->
// Running -> terminal.
func (s *Scheduler) runEnv(ctx context.Context, spec *domain.EnvSpec, opts Options, depArtifacts []string) domain.RunResult {
	env := spec.Name.String()
	result := domain.RunResult{
		Env:         env,
		FailedIndex: domain.NoFailedCommand,
		Fingerprint: spec.Fingerprint(),
		StartedAt:   time.Now(),
	}
	defer func(start time.Time) {
		result.Duration = time.Since(start)
	}(result.StartedAt)

	ctx, vertex := s.telemetry.Record(ctx, env)

	// Skip rules make the environment inert: no provisioning, zero
	// commands, trivially successful.
	if spec.Skip {
		s.transition(env, domain.StatusSucceeded)
		result.Status = domain.StatusSucceeded
		result.Reason = "skipped by factor rule"
		vertex.Complete(nil)
		return result
	}

	if ctx.Err() != nil {
		s.transition(env, domain.StatusSkipped)
		result.Status = domain.StatusSkipped
		result.Reason = "run canceled before start"
		vertex.Skipped()
		return result
	}

	s.transition(env, domain.StatusProvisioning)

	runtimePath, err := s.locator.Locate(spec.Runtime)
	if err != nil {
		if spec.AllowMissingRuntime {
			s.transition(env, domain.StatusSkipped)
			result.Status = domain.StatusSkipped
			result.Reason = "runtime " + spec.Runtime + " unavailable"
			vertex.Skipped()
			return result
		}
		s.transition(env, domain.StatusFailed)
		result.Status = domain.StatusFailed
		result.Reason = "runtime " + spec.Runtime + " unavailable"
		vertex.Complete(err)
		return result
	}

	childEnv, err := s.provisioner.Provision(ctx, spec, runtimePath)
	if err != nil {
		s.transition(env, domain.StatusFailed)
		result.Status = domain.StatusFailed
		result.Reason = "provisioning failed: " + err.Error()
		vertex.Complete(err)
		return result
	}

	s.transition(env, domain.StatusRunning)

	// A combining environment folds its dependencies' datasets before
	// its own trailing commands run. The barrier already held this
	// environment back until every dependency was terminal.
	if spec.Combine {
		if err := s.combine(ctx, spec, opts, depArtifacts, &result); err != nil {
			s.transition(env, domain.StatusFailed)
			result.Status = domain.StatusFailed
			result.Reason = "coverage aggregation failed: " + err.Error()
			vertex.Complete(err)
			return result
		}
	}

	if failed := s.runCommands(ctx, spec, opts, childEnv, vertex, &result); failed {
		s.transition(env, domain.StatusFailed)
		result.Status = domain.StatusFailed
		// Commands that ran before the failure may still have written
		// their artifacts; a downstream combine wants those datasets.
		result.Artifacts = append(result.Artifacts, expandArtifacts(spec.Artifacts, opts.RootDir)...)
		vertex.Complete(zerr.With(domain.ErrCommandFailed, "index", result.FailedIndex))
		return result
	}

	result.Artifacts = append(result.Artifacts, expandArtifacts(spec.Artifacts, opts.RootDir)...)
	s.transition(env, domain.StatusSucceeded)
	result.Status = domain.StatusSucceeded
	vertex.Complete(nil)
	return result
}

// runCommands executes the spec's commands strictly in order, reporting
// whether the environment failed. The first non-ignored non-zero exit
// terminates the sequence at that index; later commands never run.
func (s *Scheduler) runCommands(
	ctx context.Context,
	spec *domain.EnvSpec,
	opts Options,
	childEnv []string,
	vertex ports.Vertex,
	result *domain.RunResult,
) bool {
	dir := spec.ChangeDir
	if dir == "" {
		dir = opts.RootDir
	}

	for i, cmd := range spec.Commands {
		if ctx.Err() != nil {
			result.FailedIndex = i
			result.Reason = "canceled before command " + strconv.Itoa(i)
			return true
		}

		s.checkAllowlist(spec, cmd.Args[0])

		execResult, err := s.executor.Execute(ctx, ports.ExecRequest{
			Args:             cmd.Args,
			Dir:              dir,
			Env:              childEnv,
			Timeout:          opts.CommandTimeout,
			TerminationGrace: opts.TerminationGrace,
			Stdout:           vertex.Stdout(),
			Stderr:           vertex.Stderr(),
		})
		commandResult := domain.CommandResult{
			Args:     cmd.Args,
			ExitCode: execResult.ExitCode,
			Duration: execResult.Duration,
			TimedOut: execResult.TimedOut,
		}

		if err != nil {
			result.Commands = append(result.Commands, commandResult)
			result.FailedIndex = i
			result.Reason = "command could not run: " + err.Error()
			return true
		}

		if execResult.ExitCode != 0 {
			if cmd.IgnoreExit && !execResult.TimedOut {
				commandResult.Ignored = true
				result.Commands = append(result.Commands, commandResult)
				continue
			}
			result.Commands = append(result.Commands, commandResult)
			result.FailedIndex = i
			if execResult.TimedOut {
				result.Reason = "command " + strconv.Itoa(i) + " timed out"
			} else {
				result.Reason = "command " + strconv.Itoa(i) + " exited " + strconv.Itoa(execResult.ExitCode)
			}
			return true
		}

		result.Commands = append(result.Commands, commandResult)
	}
	return false
}

func (s *Scheduler) combine(
	ctx context.Context,
	spec *domain.EnvSpec,
	opts Options,
	depArtifacts []string,
	result *domain.RunResult,
) error {
	if opts.Aggregator == nil {
		return zerr.New("combining environment without an aggregator")
	}
	_, err := opts.Aggregator.Aggregate(ctx, ports.AggregateRequest{
		Paths:   depArtifacts,
		Erase:   spec.Erase,
		RootDir: opts.RootDir,
	})
	if err != nil {
		return err
	}
	dataset, report := opts.Aggregator.ReportPaths()
	result.Artifacts = append(result.Artifacts, dataset, report)
	return nil
}

// checkAllowlist warns about external executables the document does not
// allowlist. Enforcement is advisory: provenance is surfaced, the command
// still runs.
func (s *Scheduler) checkAllowlist(spec *domain.EnvSpec, argv0 string) {
	if s.logger == nil || len(spec.Allowlist) == 0 {
		return
	}
	if filepath.IsAbs(argv0) || strings.ContainsRune(argv0, filepath.Separator) {
		return
	}
	// Anything provisioned into the environment's own bin is internal.
	if isExecutableFile(filepath.Join(spec.EnvDir, "venv", "bin", argv0)) {
		return
	}
	for _, allowed := range spec.Allowlist {
		if allowed == argv0 {
			return
		}
	}
	s.logger.Warn("command " + argv0 + " is external to " + spec.Name.String() + " and not allowlisted")
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	mode := info.Mode()
	return !mode.IsDir() && mode&0o111 != 0
}

func expandArtifacts(globs []string, rootDir string) []string {
	var artifacts []string
	for _, glob := range globs {
		if !filepath.IsAbs(glob) {
			glob = filepath.Join(rootDir, glob)
		}
		matches, err := filepath.Glob(glob)
		if err != nil || matches == nil {
			continue
		}
		artifacts = append(artifacts, matches...)
	}
	return artifacts
}
