package conda

import (
	"encoding/json"
	"fmt"
)

// Command builders return argv slices; render them with tools.JoinCommand
// when a loggable string is needed.

// CreateCommand builds the `conda create` argv for name- or
// prefix-addressed environments.
func CreateCommand(condaExe string, fp Fingerprint, pythonPin string) []string {
	argv := []string{condaExe, "create", fp.EnvSpec, fp.Env, pythonPin, "--yes", "--quiet"}
	return append(argv, fp.CreateArgs...)
}

// EnvCreateCommand builds the `conda env create` argv for environment-file
// environments. The python pin and channels must already live in the
// referenced file: `conda env create` accepts neither --channel nor
// dependency arguments.
func EnvCreateCommand(condaExe, envFilePath string) []string {
	return []string{condaExe, "env", "create", "--file", envFilePath, "--quiet", "--force"}
}

// InstallCommand builds the `conda install` argv, or nil when the config
// carries nothing to install. The python pin rides along so dependency
// resolution cannot switch the interpreter out from under the environment.
func InstallCommand(condaExe string, fp Fingerprint, pythonPin string) []string {
	if len(fp.Deps) == 0 && fp.Spec == "" {
		return nil
	}

	argv := []string{condaExe, "install", "--quiet", "--yes", fp.EnvSpec, fp.Env}
	for _, channel := range fp.Channels {
		argv = append(argv, "--channel", channel)
	}
	argv = append(argv, fp.InstallArgs...)
	argv = append(argv, pythonPin)
	argv = append(argv, fp.Deps...)
	if fp.Spec != "" {
		argv = append(argv, "--file="+fp.Spec)
	}
	return argv
}

// RunPrefix builds the `conda run` argv prepended to every wrapped request.
// --live-stream keeps output unbuffered so streaming executions stay
// interactive.
func RunPrefix(condaExe string, fp Fingerprint) []string {
	return []string{condaExe, "run", fp.EnvSpec, fp.Env, "--live-stream"}
}

// EnvListCommand builds the `conda env list --json` argv.
func EnvListCommand(condaExe string) []string {
	return []string{condaExe, "env", "list", "--json"}
}

// ParseEnvList decodes `conda env list --json` output into the list of
// known environment paths.
func ParseEnvList(data []byte) ([]string, error) {
	var payload struct {
		Envs []string `json:"envs"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("conda: parse env list output: %w", err)
	}
	return payload.Envs, nil
}
