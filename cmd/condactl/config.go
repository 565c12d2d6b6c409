package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/AITechTim/tox4-conda/internal/conda"
	"github.com/AITechTim/tox4-conda/internal/config"
	"github.com/AITechTim/tox4-conda/internal/envrunner"
)

const (
	defaultToolConfigPath    = "condactl.toml"
	defaultProjectConfigPath = "tox.toml"
)

type envSection struct {
	BasePython  string   `toml:"base_python"`
	Name        string   `toml:"conda_name"`
	EnvFile     string   `toml:"conda_env"`
	SpecFile    string   `toml:"conda_spec"`
	Deps        []string `toml:"conda_deps"`
	Channels    []string `toml:"conda_channels"`
	InstallArgs []string `toml:"conda_install_args"`
	CreateArgs  []string `toml:"conda_create_args"`
}

// projectConfig is the parsed project file: one [env.NAME] section per
// environment. Decode metadata is kept so views can distinguish unset keys
// from empty values.
type projectConfig struct {
	path string
	meta toml.MetaData
	envs map[string]envSection
}

func loadProjectConfig(path string) (*projectConfig, error) {
	var raw struct {
		Env map[string]envSection `toml:"env"`
	}
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load project config (%s): %w", path, err)
	}
	if len(raw.Env) == 0 {
		return nil, fmt.Errorf("project config (%s) declares no [env.NAME] sections", path)
	}
	return &projectConfig{path: path, meta: meta, envs: raw.Env}, nil
}

func (c *projectConfig) EnvNames() []string {
	names := make([]string, 0, len(c.envs))
	for name := range c.envs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *projectConfig) View(name string) (*envView, bool) {
	section, ok := c.envs[name]
	if !ok {
		return nil, false
	}
	return &envView{project: c, name: name, section: section}, true
}

// envView exposes one [env.NAME] section through the runner configuration
// contract.
type envView struct {
	project *projectConfig
	name    string
	section envSection
}

func (v *envView) String(key string) string {
	switch key {
	case conda.KeyName:
		return v.section.Name
	case conda.KeyEnvFile:
		return v.section.EnvFile
	case conda.KeySpecFile:
		return v.section.SpecFile
	}
	return ""
}

func (v *envView) Strings(key string) []string {
	switch key {
	case conda.KeyDeps:
		return v.section.Deps
	case conda.KeyChannels:
		return v.section.Channels
	case conda.KeyInstallArgs:
		return v.section.InstallArgs
	case conda.KeyCreateArgs:
		return v.section.CreateArgs
	}
	return nil
}

func (v *envView) IsSet(key string) bool {
	return v.project.meta.IsDefined("env", v.name, key)
}

func (v *envView) basePython() string {
	return strings.TrimSpace(v.section.BasePython)
}

// overrideView layers a command-line conda_name on top of a base view.
type overrideView struct {
	envrunner.Config
	condaName string
}

func (v overrideView) String(key string) string {
	if key == conda.KeyName && v.condaName != "" {
		return v.condaName
	}
	return v.Config.String(key)
}

func (v overrideView) IsSet(key string) bool {
	if key == conda.KeyName && v.condaName != "" {
		return true
	}
	return v.Config.IsSet(key)
}

// finderFor honors a conda_exe pinned in the tool config; the pinned path
// is trusted the same way an environment-provided path is.
func finderFor(tool config.ToolConfig) conda.Finder {
	if tool.CondaExe == "" {
		return conda.Finder{}
	}
	return conda.Finder{Getenv: func(key string) string {
		if key == conda.EnvCondaExeBase {
			return tool.CondaExe
		}
		return os.Getenv(key)
	}}
}

func buildRunner(tool config.ToolConfig, project *projectConfig, envName, condaName string) (*conda.Runner, error) {
	view, ok := project.View(envName)
	if !ok {
		return nil, fmt.Errorf("unknown env %q (have: %s)", envName, strings.Join(project.EnvNames(), ", "))
	}

	var cfgView envrunner.Config = view
	if condaName != "" {
		cfgView = overrideView{Config: view, condaName: condaName}
	}

	args := envrunner.CreateArgs{
		Name:         envName,
		EnvDir:       filepath.Join(tool.WorkDir, envName),
		WorkDir:      tool.WorkDir,
		Config:       cfgView,
		HostExecutor: envrunner.LocalExecutor{},
	}
	if bp := view.basePython(); bp != "" {
		args.BasePython = []string{bp}
	}

	return conda.NewRunnerWithTools(args, nil, finderFor(tool), conda.Prober{})
}
