package conda

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/AITechTim/tox4-conda/internal/envrunner"
	"github.com/AITechTim/tox4-conda/internal/observability"
	"github.com/AITechTim/tox4-conda/internal/tools"
)

// RunnerID identifies the conda environment runner in the registry.
const RunnerID = "conda"

// ErrEnvDirRequired reports a runner constructed without an env directory.
var ErrEnvDirRequired = errors.New("conda: env dir is required")

// Runner provisions and drives one conda environment. It implements
// envrunner.EnvRunner.
type Runner struct {
	name       string
	envDir     string
	workDir    string
	basePython []string
	cfg        EnvConfig

	host   envrunner.Executor
	cmd    tools.CommandRunner
	finder Finder
	prober Prober

	mu        sync.Mutex
	created   bool
	wrapped   envrunner.Executor
	installer envrunner.Installer
}

// NewRunner builds a conda runner from host create args.
func NewRunner(args envrunner.CreateArgs) (*Runner, error) {
	envDir := strings.TrimSpace(args.EnvDir)
	if envDir == "" {
		return nil, ErrEnvDirRequired
	}

	host := args.HostExecutor
	if host == nil {
		host = envrunner.LocalExecutor{}
	}
	basePython := args.BasePython
	if len(basePython) == 0 {
		basePython = []string{DefaultBasePython}
	}

	return &Runner{
		name:       strings.TrimSpace(args.Name),
		envDir:     envDir,
		workDir:    strings.TrimSpace(args.WorkDir),
		basePython: basePython,
		cfg:        FromView(args.Config),
		host:       host,
		cmd:        tools.ExecRunner{},
	}, nil
}

// NewRunnerWithTools builds a runner with explicit command plumbing. Nil
// arguments keep the defaults.
func NewRunnerWithTools(args envrunner.CreateArgs, cmd tools.CommandRunner, finder Finder, prober Prober) (*Runner, error) {
	r, err := NewRunner(args)
	if err != nil {
		return nil, err
	}
	if cmd != nil {
		r.cmd = cmd
	}
	r.finder = finder
	r.prober = prober
	return r, nil
}

// ID returns the registry identifier.
func (r *Runner) ID() string { return RunnerID }

// EnvDir returns the environment directory.
func (r *Runner) EnvDir() string { return r.envDir }

// Config returns the bound conda configuration.
func (r *Runner) Config() EnvConfig { return r.cfg }

// RunsOnPlatform reports the platform label of the running host.
func (r *Runner) RunsOnPlatform() string { return runtime.GOOS }

// Fingerprint derives the cache fingerprint for this environment.
func (r *Runner) Fingerprint() (Fingerprint, error) {
	return ComputeFingerprint(r.cfg, r.envDir)
}

// CacheSections returns the sections the host merges into its environment
// info cache; a change in either forces a rebuild.
func (r *Runner) CacheSections() (map[string]map[string]any, error) {
	fp, err := r.Fingerprint()
	if err != nil {
		return nil, err
	}
	pin, err := r.pythonPin()
	if err != nil {
		return nil, err
	}
	return map[string]map[string]any{
		"conda":  fp.ToMap(),
		"python": {"pin": pin, "base": r.basePython},
	}, nil
}

// pythonPin resolves the python requirement from the base-python label,
// probing the labeled interpreter when the label carries no version.
func (r *Runner) pythonPin() (string, error) {
	label := r.basePython[0]
	if version, ok := DeriveVersion(label); ok {
		return PinFor(version), nil
	}
	info, err := r.prober.Probe(label)
	if err != nil {
		return "", err
	}
	return PinFor(info.VersionDot()), nil
}

// CreateEnv creates the conda environment and installs the configured
// dependencies. Environment-file configs go through `conda env create`
// with a pinned copy of the file; everything else through `conda create`.
func (r *Runner) CreateEnv() error {
	condaExe, err := r.finder.Find()
	if err != nil {
		return err
	}
	pin, err := r.pythonPin()
	if err != nil {
		return err
	}
	fp, err := r.Fingerprint()
	if err != nil {
		return err
	}

	start := time.Now()
	if err := r.runCreate(condaExe, fp, pin); err != nil {
		observability.RecordEnvCreate(RunnerID, "failure", time.Since(start))
		return err
	}
	observability.RecordEnvCreate(RunnerID, "success", time.Since(start))

	if install := InstallCommand(condaExe, fp, pin); install != nil {
		installStart := time.Now()
		if err := r.runCommand("install", install); err != nil {
			observability.RecordEnvInstall(RunnerID, "failure", time.Since(installStart))
			return envrunner.Failf("failed to install dependencies in %q conda environment: %v", r.envDir, err)
		}
		observability.RecordEnvInstall(RunnerID, "success", time.Since(installStart))
	}

	r.mu.Lock()
	r.created = true
	r.mu.Unlock()
	return nil
}

func (r *Runner) runCreate(condaExe string, fp Fingerprint, pin string) error {
	var argv []string
	if r.cfg.EnvFile != "" {
		envFile, err := LoadEnvFile(fp.EnvPath)
		if err != nil {
			return err
		}
		tmpPath, cleanup, err := envFile.WritePinned(pin)
		if err != nil {
			return err
		}
		defer func() {
			if err := cleanup(); err != nil {
				log.Warn().Str("path", tmpPath).Err(err).Msg("temp env file cleanup failed")
			}
		}()
		argv = EnvCreateCommand(condaExe, tmpPath)
	} else {
		argv = CreateCommand(condaExe, fp, pin)
	}

	if err := r.runCommand("create", argv); err != nil {
		return envrunner.Failf("failed to create %q conda environment: %v", r.envDir, err)
	}
	return nil
}

// runCommand logs and executes one conda invocation through the command
// runner.
func (r *Runner) runCommand(phase string, argv []string) error {
	log.Info().
		Str("env", r.name).
		Str("phase", phase).
		Str("cmd", tools.JoinCommand(argv)).
		Msg("conda exec")

	stdout, stderr, exitCode, err := r.cmd.Run(argv[0], argv[1:]...)
	observability.RecordCommand(phase, outcomeLabel(err))
	if err == nil {
		return nil
	}
	return fmt.Errorf(
		"conda command failed cmd=%s exit=%d stdout=%q stderr=%q: %w",
		tools.JoinCommand(argv),
		exitCode,
		strings.TrimSpace(string(stdout)),
		strings.TrimSpace(string(stderr)),
		err,
	)
}

// EnsureEnv creates the environment when its directory is missing. A
// pre-existing directory is verified against `conda env list` exactly once
// per runner; directories conda does not know about are an error, never
// overwritten.
func (r *Runner) EnsureEnv() error {
	r.mu.Lock()
	created := r.created
	r.mu.Unlock()
	if created {
		return nil
	}

	if _, err := os.Stat(r.envDir); errors.Is(err, os.ErrNotExist) {
		return r.CreateEnv()
	} else if err != nil {
		return err
	}

	condaExe, err := r.finder.Find()
	if err != nil {
		return err
	}
	argv := EnvListCommand(condaExe)
	stdout, stderr, exitCode, err := r.cmd.Run(argv[0], argv[1:]...)
	if err != nil {
		return envrunner.Failf(
			"failed to list conda environments: exit=%d stderr=%q",
			exitCode,
			strings.TrimSpace(string(stderr)),
		)
	}
	envs, err := ParseEnvList(stdout)
	if err != nil {
		return envrunner.Failf("%v", err)
	}

	envAbs, err := filepath.Abs(r.envDir)
	if err != nil {
		return err
	}
	for _, env := range envs {
		if env == envAbs || env == r.envDir {
			r.mu.Lock()
			r.created = true
			r.mu.Unlock()
			return nil
		}
	}
	return envrunner.Failf("%s already exists, but it is not a conda environment; delete it manually first", r.envDir)
}

// Executor returns the executor that routes every request through
// `conda run` inside this environment.
func (r *Runner) Executor() envrunner.Executor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wrapped == nil {
		r.wrapped = &runExecutor{runner: r}
	}
	return r.wrapped
}

// Installer returns the pip installer driving installs through the
// wrapping executor.
func (r *Runner) Installer() envrunner.Installer {
	wrapped := r.Executor()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.installer == nil {
		r.installer = envrunner.NewPipInstaller(wrapped)
	}
	return r.installer
}

// EnvPython returns the python executable inside the environment.
func (r *Runner) EnvPython() (string, error) {
	return r.pythonInEnv("import sys; print(sys.executable)", "env-python")
}

// EnvBinDir returns the scripts directory inside the environment.
func (r *Runner) EnvBinDir() (string, error) {
	return r.pythonInEnv(`from sysconfig import get_paths; print(get_paths()["scripts"])`, "env-bin-dir")
}

// EnvSitePackagesDir returns the site-packages directory inside the
// environment.
func (r *Runner) EnvSitePackagesDir() (string, error) {
	return r.pythonInEnv(`from sysconfig import get_paths; print(get_paths()["purelib"])`, "env-site-packages-dir")
}

// pythonInEnv ensures the environment exists and runs a python snippet
// through the wrapping executor, returning trimmed stdout.
func (r *Runner) pythonInEnv(snippet, runID string) (string, error) {
	if err := r.EnsureEnv(); err != nil {
		return "", err
	}
	req := envrunner.Request{
		RunID: runID,
		Cmd:   []string{"python", "-c", snippet},
		Cwd:   r.workDir,
	}
	outcome, err := r.Executor().Execute(req)
	if err != nil && outcome.ExitCode == 0 {
		return "", err
	}
	if !outcome.Success() {
		return "", envrunner.Failf(
			"failed to execute operation %q: stderr=%q",
			snippet,
			strings.TrimSpace(string(outcome.Stderr)),
		)
	}
	return strings.TrimSpace(string(outcome.Stdout)), nil
}

// PrependPath lists directories the host prepends to PATH, so the conda
// binary stays reachable inside activated commands.
func (r *Runner) PrependPath() ([]string, error) {
	condaExe, err := r.finder.Find()
	if err != nil {
		return nil, err
	}
	return []string{filepath.Dir(condaExe)}, nil
}

// basePassEnv lists the host variables passed into every environment.
var basePassEnv = []string{
	"HOME",
	"PATH",
	"LANG",
	"LANGUAGE",
	"LD_LIBRARY_PATH",
	"TMPDIR",
	"TEMP",
	"TMP",
	"http_proxy",
	"https_proxy",
	"no_proxy",
	"CURL_CA_BUNDLE",
	"REQUESTS_CA_BUNDLE",
	"SSL_CERT_FILE",
	"PIP_*",
}

// PassEnv returns the pass-through variables plus the conda family glob,
// so CONDA_EXE, CONDA_DEFAULT_ENV and friends survive into wrapped
// commands.
func (r *Runner) PassEnv() []string {
	out := make([]string, 0, len(basePassEnv)+1)
	out = append(out, basePassEnv...)
	return append(out, "*CONDA*")
}

func outcomeLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// runExecutor prepends the conda run prefix to every request. The prefix
// is recomputed per request so configuration read after construction is
// honored.
type runExecutor struct {
	runner *Runner
}

func (e *runExecutor) wrap(req envrunner.Request) (envrunner.Request, error) {
	condaExe, err := e.runner.finder.Find()
	if err != nil {
		return envrunner.Request{}, err
	}
	fp, err := e.runner.Fingerprint()
	if err != nil {
		return envrunner.Request{}, err
	}
	prefix := RunPrefix(condaExe, fp)

	wrapped := req
	wrapped.Cmd = append(append(make([]string, 0, len(prefix)+len(req.Cmd)), prefix...), req.Cmd...)
	return wrapped, nil
}

func (e *runExecutor) Execute(req envrunner.Request) (envrunner.Outcome, error) {
	wrapped, err := e.wrap(req)
	if err != nil {
		return envrunner.Outcome{}, err
	}
	return e.runner.host.Execute(wrapped)
}

func (e *runExecutor) ExecuteStreaming(req envrunner.Request, stdout, stderr io.Writer) (envrunner.Outcome, error) {
	wrapped, err := e.wrap(req)
	if err != nil {
		return envrunner.Outcome{}, err
	}
	return e.runner.host.ExecuteStreaming(wrapped, stdout, stderr)
}
