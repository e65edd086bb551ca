package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.trai.ch/mox/internal/adapters/results"
	"go.trai.ch/mox/internal/adapters/telemetry"
	"go.trai.ch/mox/internal/core/domain"
	"go.trai.ch/mox/internal/core/ports"
	"go.trai.ch/mox/internal/core/ports/mocks"
	"go.trai.ch/mox/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

type discardLogger struct{}

func (discardLogger) Info(string) {}
func (discardLogger) Warn(string) {}
func (discardLogger) Error(error) {}

func mustName(t *testing.T, raw string) domain.EnvName {
	t.Helper()
	name, err := domain.ParseEnvName(raw)
	require.NoError(t, err)
	return name
}

func testDoc(t *testing.T, envlist ...string) *domain.Document {
	t.Helper()
	doc := &domain.Document{
		WorkDir: domain.DefaultWorkDir,
		Envs:    map[string]domain.EnvOverride{},
	}
	for _, raw := range envlist {
		doc.EnvList = append(doc.EnvList, mustName(t, raw))
	}
	return doc
}

func TestSelectEnvsExplicitNames(t *testing.T) {
	doc := testDoc(t, "py38", "py39", "lint")

	selection, err := selectEnvs(doc, []string{"py39"}, "")
	require.NoError(t, err)
	require.Len(t, selection, 1)
	require.Equal(t, "py39", selection[0].String())
}

func TestSelectEnvsUnknownName(t *testing.T) {
	doc := testDoc(t, "py38")

	_, err := selectEnvs(doc, []string{"py99"}, "")
	require.ErrorIs(t, err, domain.ErrUnknownEnvironment)
}

func TestSelectEnvsFactorFilter(t *testing.T) {
	doc := testDoc(t, "py38-unit", "py39-unit", "py39-integration", "lint")

	selection, err := selectEnvs(doc, nil, "py39")
	require.NoError(t, err)
	require.Len(t, selection, 2)
	require.Equal(t, "py39-unit", selection[0].String())
	require.Equal(t, "py39-integration", selection[1].String())
}

func TestSelectEnvsDefaultsToFullEnvlist(t *testing.T) {
	doc := testDoc(t, "py38", "lint")

	selection, err := selectEnvs(doc, nil, "")
	require.NoError(t, err)
	require.Len(t, selection, 2)
}

func TestSelectEnvsPullsDependsClosure(t *testing.T) {
	doc := testDoc(t, "report")
	doc.Envs["report"] = domain.EnvOverride{
		Depends: []domain.EnvName{mustName(t, "py38"), mustName(t, "py39")},
		Combine: true,
	}
	doc.Envs["py38"] = domain.EnvOverride{}
	doc.Envs["py39"] = domain.EnvOverride{}

	selection, err := selectEnvs(doc, []string{"report"}, "")
	require.NoError(t, err)

	names := make([]string, 0, len(selection))
	for _, name := range selection {
		names = append(names, name.String())
	}
	require.Equal(t, []string{"report", "py38", "py39"}, names)
}

func TestSelectEnvsDependsClosureDeduplicates(t *testing.T) {
	doc := testDoc(t, "a", "b")
	doc.Envs["a"] = domain.EnvOverride{Depends: []domain.EnvName{mustName(t, "b")}}
	doc.Envs["b"] = domain.EnvOverride{}

	selection, err := selectEnvs(doc, []string{"a", "b"}, "")
	require.NoError(t, err)
	require.Len(t, selection, 2)
}

type appFixture struct {
	app        *App
	loader     *mocks.MockConfigLoader
	executor   *mocks.MockExecutor
	locator    *mocks.MockRuntimeLocator
	provision  *mocks.MockProvisioner
	aggregator *mocks.MockCoverageAggregator
	stdout     *bytes.Buffer
	workDir    string
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &appFixture{
		loader:     mocks.NewMockConfigLoader(ctrl),
		executor:   mocks.NewMockExecutor(ctrl),
		locator:    mocks.NewMockRuntimeLocator(ctrl),
		provision:  mocks.NewMockProvisioner(ctrl),
		aggregator: mocks.NewMockCoverageAggregator(ctrl),
		stdout:     &bytes.Buffer{},
	}

	root := t.TempDir()
	f.workDir = filepath.Join(root, domain.DefaultWorkDir)
	sched := scheduler.New(f.executor, f.locator, f.provision, telemetry.NewNoOp(), discardLogger{})

	f.app = New(
		f.loader,
		sched,
		telemetry.NewNoOp(),
		discardLogger{},
		func(path string) (ports.ResultStore, error) { return results.NewStore(path) },
		func(string) ports.CoverageAggregator { return f.aggregator },
	)
	f.app.Apply(WithStdout(f.stdout), WithWorkingDir(root))
	return f
}

func TestRunSucceedsAndPersistsResults(t *testing.T) {
	f := newAppFixture(t)

	doc := testDoc(t, "py3")
	doc.Base.Commands = []domain.CommandEntry{{Line: "pytest -q"}}
	f.loader.EXPECT().Load(gomock.Any()).Return(doc, nil)
	f.locator.EXPECT().Locate("python3").Return("/usr/bin/python3", nil)
	f.provision.EXPECT().Provision(gomock.Any(), gomock.Any(), "/usr/bin/python3").Return([]string{"PATH=/usr/bin"}, nil)
	f.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(ports.ExecResult{ExitCode: 0}, nil)

	err := f.app.Run(context.Background(), RunRequest{})
	require.NoError(t, err)
	require.Contains(t, f.stdout.String(), "py3: succeeded")

	store, err := results.NewStore(filepath.Join(f.workDir, "results.json"))
	require.NoError(t, err)
	persisted, err := store.Get("py3")
	require.NoError(t, err)
	require.Equal(t, domain.StatusSucceeded, persisted.Status)
}

func TestRunFailureMapsToRunFailed(t *testing.T) {
	f := newAppFixture(t)

	doc := testDoc(t, "py3")
	doc.Base.Commands = []domain.CommandEntry{{Line: "pytest -q"}}
	f.loader.EXPECT().Load(gomock.Any()).Return(doc, nil)
	f.locator.EXPECT().Locate("python3").Return("/usr/bin/python3", nil)
	f.provision.EXPECT().Provision(gomock.Any(), gomock.Any(), gomock.Any()).Return([]string{"PATH=/usr/bin"}, nil)
	f.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(ports.ExecResult{ExitCode: 2}, nil)

	err := f.app.Run(context.Background(), RunRequest{})
	require.ErrorIs(t, err, domain.ErrRunFailed)
	require.Contains(t, f.stdout.String(), "py3: failed")
	require.Contains(t, f.stdout.String(), "exited 2")
}

func TestRunSkippedEnvironmentDoesNotFailTheRun(t *testing.T) {
	f := newAppFixture(t)

	doc := testDoc(t, "py27")
	doc.SkipMissingRuntimes = true
	doc.Base.Commands = []domain.CommandEntry{{Line: "pytest -q"}}
	f.loader.EXPECT().Load(gomock.Any()).Return(doc, nil)
	f.locator.EXPECT().Locate("python2.7").Return("", domain.ErrRuntimeUnavailable)

	err := f.app.Run(context.Background(), RunRequest{})
	require.NoError(t, err)
	require.Contains(t, f.stdout.String(), "py27: skipped")
}

func TestRunTimeoutOverrideWinsOverDocument(t *testing.T) {
	f := newAppFixture(t)

	doc := testDoc(t, "py3")
	doc.CommandTimeout = time.Hour
	doc.Base.Commands = []domain.CommandEntry{{Line: "pytest -q"}}
	f.loader.EXPECT().Load(gomock.Any()).Return(doc, nil)
	f.locator.EXPECT().Locate(gomock.Any()).Return("/usr/bin/python3", nil)
	f.provision.EXPECT().Provision(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	f.executor.EXPECT().
		Execute(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.ExecRequest) (ports.ExecResult, error) {
			require.Equal(t, time.Minute, req.Timeout)
			return ports.ExecResult{}, nil
		})

	err := f.app.Run(context.Background(), RunRequest{Timeout: time.Minute})
	require.NoError(t, err)
}

func TestRunRejectsUnknownSelection(t *testing.T) {
	f := newAppFixture(t)

	f.loader.EXPECT().Load(gomock.Any()).Return(testDoc(t, "py3"), nil)

	err := f.app.Run(context.Background(), RunRequest{Envs: []string{"nope"}})
	require.ErrorIs(t, err, domain.ErrUnknownEnvironment)
}

func TestListPrintsRuntimes(t *testing.T) {
	f := newAppFixture(t)

	doc := testDoc(t, "py38", "py39", "lint")
	f.loader.EXPECT().Load(gomock.Any()).Return(doc, nil)

	require.NoError(t, f.app.List(""))
	out := f.stdout.String()
	require.Contains(t, out, "py38 (python3.8)")
	require.Contains(t, out, "py39 (python3.9)")
	require.Contains(t, out, "lint (python3)")
}

func TestListFiltersByFactor(t *testing.T) {
	f := newAppFixture(t)

	doc := testDoc(t, "py38-unit", "py39-unit", "lint")
	f.loader.EXPECT().Load(gomock.Any()).Return(doc, nil)

	require.NoError(t, f.app.List("unit"))
	out := f.stdout.String()
	require.Contains(t, out, "py38-unit")
	require.Contains(t, out, "py39-unit")
	require.NotContains(t, out, "lint")
}

func TestCoverageJSONUsesStoredArtifacts(t *testing.T) {
	f := newAppFixture(t)

	doc := testDoc(t, "py3")
	f.loader.EXPECT().Load(gomock.Any()).Return(doc, nil)

	store, err := results.NewStore(filepath.Join(f.workDir, "results.json"))
	require.NoError(t, err)
	require.NoError(t, store.Put(domain.RunResult{
		Env:       "py3",
		Status:    domain.StatusSucceeded,
		Artifacts: []string{"/tmp/coverage-py3.json"},
	}))

	f.aggregator.EXPECT().
		Aggregate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.AggregateRequest) (domain.CoverageReport, error) {
			require.Equal(t, []string{"/tmp/coverage-py3.json"}, req.Paths)
			require.True(t, req.Erase)
			return domain.CoverageReport{
				Total: domain.FileReport{Name: "TOTAL", Statements: 4, Missed: 1},
			}, nil
		})

	err = f.app.Coverage(context.Background(), CoverageRequest{Erase: true, JSON: true})
	require.NoError(t, err)
	require.Contains(t, f.stdout.String(), `"TOTAL"`)
}

func TestCoverageExplicitPathsBypassStore(t *testing.T) {
	f := newAppFixture(t)

	f.loader.EXPECT().Load(gomock.Any()).Return(testDoc(t, "py3"), nil)
	f.aggregator.EXPECT().
		Aggregate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.AggregateRequest) (domain.CoverageReport, error) {
			require.Equal(t, []string{"data/*.json"}, req.Paths)
			return domain.CoverageReport{}, nil
		})

	err := f.app.Coverage(context.Background(), CoverageRequest{JSON: true, Paths: []string{"data/*.json"}})
	require.NoError(t, err)
}
