package conda

import (
	"strings"

	"github.com/AITechTim/tox4-conda/internal/envrunner"
)

// Config keys contributed to the host's per-environment configuration set.
const (
	KeyName        = "conda_name"
	KeyEnvFile     = "conda_env"
	KeySpecFile    = "conda_spec"
	KeyDeps        = "conda_deps"
	KeyChannels    = "conda_channels"
	KeyInstallArgs = "conda_install_args"
	KeyCreateArgs  = "conda_create_args"
)

// EnvConfig is the conda-specific slice of one environment's configuration.
type EnvConfig struct {
	Name        string
	EnvFile     string
	SpecFile    string
	Deps        []string
	Channels    []string
	InstallArgs []string
	CreateArgs  []string
}

// KeySpec declares one contributed configuration key.
type KeySpec struct {
	Key         string
	Type        string
	Description string
}

// KeySpecs lists the configuration keys this runner understands, in the
// form the host registers them.
func KeySpecs() []KeySpec {
	return []KeySpec{
		{Key: KeyName, Type: "string", Description: "name of the conda environment; the env directory is used by default"},
		{Key: KeyEnvFile, Type: "string", Description: "path to a conda environment.yml file"},
		{Key: KeySpecFile, Type: "string", Description: "path to a conda spec-file.txt file"},
		{Key: KeyDeps, Type: "list", Description: "each line specifies a conda dependency in pip/setuptools format"},
		{Key: KeyChannels, Type: "list", Description: "each line specifies a conda channel"},
		{Key: KeyInstallArgs, Type: "list", Description: "each line specifies a conda install argument"},
		{Key: KeyCreateArgs, Type: "list", Description: "each line specifies a conda create argument"},
	}
}

// FromView binds the conda keys out of a host configuration view.
func FromView(view envrunner.Config) EnvConfig {
	if view == nil {
		return EnvConfig{}
	}
	return EnvConfig{
		Name:        strings.TrimSpace(view.String(KeyName)),
		EnvFile:     strings.TrimSpace(view.String(KeyEnvFile)),
		SpecFile:    strings.TrimSpace(view.String(KeySpecFile)),
		Deps:        ParseDeps(view.Strings(KeyDeps)),
		Channels:    cleanList(view.Strings(KeyChannels)),
		InstallArgs: cleanList(view.Strings(KeyInstallArgs)),
		CreateArgs:  cleanList(view.Strings(KeyCreateArgs)),
	}
}

// ParseDeps normalizes dependency lines the way requirement files are
// read: entries are trimmed, blank lines and comment lines are dropped.
func ParseDeps(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		dep := strings.TrimSpace(line)
		if dep == "" || strings.HasPrefix(dep, "#") {
			continue
		}
		out = append(out, dep)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, raw := range values {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
