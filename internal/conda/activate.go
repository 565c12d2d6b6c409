package conda

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/AITechTim/tox4-conda/internal/envrunner"
	"github.com/AITechTim/tox4-conda/internal/tools"
)

// ErrComspecNotFound reports that no System32 cmd.exe could be located for
// windows activation.
var ErrComspecNotFound = errors.New("conda: cmd.exe cannot be found")

// Activation is one activated command: the argv to execute, environment
// overrides to apply, and a cleanup releasing temp resources. Cleanup is
// never nil.
type Activation struct {
	Argv    []string
	Env     map[string]string
	Cleanup func() error
}

// Activator rewrites commands so they run inside an activated conda
// environment rather than merely ahead of it on PATH. Zero-value fields
// fall back to process defaults.
type Activator struct {
	CondaExe string
	EnvDir   string
	// GOOS overrides runtime.GOOS for platform selection.
	GOOS   string
	Getenv func(string) string
	// TempDir overrides the directory activation scripts are written to.
	TempDir string
}

// Wrap builds the platform-appropriate activated form of cmd.
func (a Activator) Wrap(cmd []string) (Activation, error) {
	goos := a.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	if goos == "windows" {
		return a.wrapWindows(cmd)
	}
	return a.wrapPosix(cmd)
}

// wrapPosix writes a two-line /bin/sh script: evaluate the shell hook that
// activates the environment, then run the quoted command.
func (a Activator) wrapPosix(cmd []string) (Activation, error) {
	script := fmt.Sprintf(
		"eval \"$(%s shell.posix activate %s)\"\n%s\n",
		tools.ShellEscape(a.CondaExe),
		tools.ShellEscape(a.EnvDir),
		tools.JoinCommand(cmd),
	)

	tmp, err := os.CreateTemp(a.TempDir, "tox4_conda_activate*.sh")
	if err != nil {
		return Activation{}, err
	}
	if _, err := tmp.WriteString(script); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return Activation{}, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return Activation{}, err
	}

	name := tmp.Name()
	return Activation{
		Argv:    []string{"/bin/sh", name},
		Cleanup: func() error { return os.Remove(name) },
	}, nil
}

// wrapWindows chains conda.bat activation ahead of the command and forces
// COMSPEC to the System32 cmd.exe, since activation batch files break
// under other command processors.
func (a Activator) wrapWindows(cmd []string) (Activation, error) {
	argv := append([]string{"conda.bat", "activate", a.EnvDir, "&&"}, cmd...)

	env, err := a.comspecOverride()
	if err != nil {
		return Activation{}, err
	}
	return Activation{
		Argv:    argv,
		Env:     env,
		Cleanup: func() error { return nil },
	}, nil
}

// comspecOverride returns a COMSPEC override when the current value does
// not already point at cmd.exe; nil when no override is needed.
func (a Activator) comspecOverride() (map[string]string, error) {
	getenv := a.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if strings.EqualFold(filepath.Base(getenv("COMSPEC")), "cmd.exe") {
		return nil, nil
	}
	for _, key := range []string{"SystemRoot", "windir"} {
		root := getenv(key)
		if root == "" {
			continue
		}
		cmdExe := filepath.Join(root, "System32", "cmd.exe")
		if _, err := os.Stat(cmdExe); err == nil {
			return map[string]string{"COMSPEC": cmdExe}, nil
		}
	}
	return nil, ErrComspecNotFound
}

// WrapExecutor adapts an executor so every request runs activated.
func (a Activator) WrapExecutor(base envrunner.Executor) envrunner.Executor {
	return &activatedExecutor{activator: a, base: base}
}

type activatedExecutor struct {
	activator Activator
	base      envrunner.Executor
}

func (e *activatedExecutor) Execute(req envrunner.Request) (envrunner.Outcome, error) {
	wrapped, cleanup, err := e.rewrite(req)
	if err != nil {
		return envrunner.Outcome{}, err
	}
	defer cleanup()
	return e.base.Execute(wrapped)
}

func (e *activatedExecutor) ExecuteStreaming(req envrunner.Request, stdout, stderr io.Writer) (envrunner.Outcome, error) {
	wrapped, cleanup, err := e.rewrite(req)
	if err != nil {
		return envrunner.Outcome{}, err
	}
	defer cleanup()
	return e.base.ExecuteStreaming(wrapped, stdout, stderr)
}

func (e *activatedExecutor) rewrite(req envrunner.Request) (envrunner.Request, func(), error) {
	activation, err := e.activator.Wrap(req.Cmd)
	if err != nil {
		return envrunner.Request{}, nil, err
	}

	wrapped := req
	wrapped.Cmd = activation.Argv
	if len(activation.Env) > 0 {
		env := make(map[string]string, len(req.Env)+len(activation.Env))
		for k, v := range req.Env {
			env[k] = v
		}
		for k, v := range activation.Env {
			env[k] = v
		}
		wrapped.Env = env
	}
	return wrapped, func() { _ = activation.Cleanup() }, nil
}
