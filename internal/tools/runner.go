package tools

import (
	"bytes"
	"errors"
	"os/exec"
	"strings"
)

// CommandRunner abstracts shell command execution for external-binary adapters.
type CommandRunner interface {
	Run(name string, args ...string) ([]byte, []byte, int32, error)
}

// ExecRunner executes commands on the local host.
type ExecRunner struct{}

// Run executes the command and captures its output. Exit code 127 marks
// commands whose binary could not be started.
func (r ExecRunner) Run(name string, args ...string) ([]byte, []byte, int32, error) {
	cmd := exec.Command(name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), stderr.Bytes(), 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), int32(exitErr.ExitCode()), err
	}

	exitCode := int32(1)
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		exitCode = 127
	}
	return stdout.Bytes(), stderr.Bytes(), exitCode, err
}

// JoinCommand renders argv as a single-quoted shell command line.
func JoinCommand(argv []string) string {
	if len(argv) == 0 {
		return ""
	}

	var builder strings.Builder
	builder.WriteString(ShellEscape(argv[0]))
	for _, arg := range argv[1:] {
		builder.WriteByte(' ')
		builder.WriteString(ShellEscape(arg))
	}

	return builder.String()
}

// ShellEscape single-quotes a value for POSIX shell consumption.
func ShellEscape(value string) string {
	if value == "" {
		return "''"
	}

	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}
