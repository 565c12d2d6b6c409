package envrunner

import (
	"bytes"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// Executor is the host execution boundary for environment commands.
// Implementations are synchronous; the streaming variant writes process
// output to the provided writers instead of buffering it on the outcome.
type Executor interface {
	Execute(req Request) (Outcome, error)
	ExecuteStreaming(req Request, stdout, stderr io.Writer) (Outcome, error)
}

// LocalExecutor is the reference local-subprocess executor shipped with the host.
type LocalExecutor struct{}

func (LocalExecutor) Execute(req Request) (Outcome, error) {
	var stdout, stderr bytes.Buffer
	outcome, err := runLocal(req, &stdout, &stderr)
	outcome.Stdout = stdout.Bytes()
	outcome.Stderr = stderr.Bytes()
	return outcome, err
}

func (LocalExecutor) ExecuteStreaming(req Request, stdout, stderr io.Writer) (Outcome, error) {
	return runLocal(req, stdout, stderr)
}

// Exit code 127 marks commands whose binary could not be started; failures
// without an exit status report 1.
func runLocal(req Request, stdout, stderr io.Writer) (Outcome, error) {
	req = req.withRunID()
	if err := req.Validate(); err != nil {
		return Outcome{RunID: req.RunID, Cmd: req.Cmd, ExitCode: 1}, err
	}

	cmd := exec.Command(req.Cmd[0], req.Cmd[1:]...)
	cmd.Dir = req.Cwd
	if stdout != nil {
		cmd.Stdout = stdout
	}
	if stderr != nil {
		cmd.Stderr = stderr
	}
	if len(req.Env) > 0 {
		cmd.Env = overlayEnviron(os.Environ(), req.Env)
	}

	start := time.Now()
	err := cmd.Run()
	outcome := Outcome{
		RunID:   req.RunID,
		Cmd:     req.Cmd,
		Elapsed: time.Since(start),
	}
	if err == nil {
		return outcome, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		outcome.ExitCode = exitErr.ExitCode()
		return outcome, err
	}

	outcome.ExitCode = 1
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		outcome.ExitCode = 127
	}
	return outcome, err
}

// overlayEnviron applies overrides on top of the inherited environment.
func overlayEnviron(base []string, overrides map[string]string) []string {
	merged := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, ok := strings.Cut(kv, "=")
		if ok {
			if _, shadowed := overrides[key]; shadowed {
				continue
			}
		}
		merged = append(merged, kv)
	}

	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		merged = append(merged, key+"="+overrides[key])
	}
	return merged
}
