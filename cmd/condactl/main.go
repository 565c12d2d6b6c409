package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/AITechTim/tox4-conda/internal/conda"
	"github.com/AITechTim/tox4-conda/internal/config"
	"github.com/AITechTim/tox4-conda/internal/envrunner"
	"github.com/AITechTim/tox4-conda/internal/logging"
	"github.com/AITechTim/tox4-conda/internal/observability"
	"github.com/AITechTim/tox4-conda/internal/tools"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	observability.InitLogger("condactl")

	if err := conda.RegisterRunner(envrunner.Default()); err != nil {
		log.Warn().Err(err).Msg("conda runner registration failed")
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "doctor":
		err = cmdDoctor(args)
	case "envs":
		err = cmdEnvs(args)
	case "fingerprint":
		err = cmdFingerprint(args)
	case "create":
		err = cmdCreate(args)
	case "run":
		err = cmdRun(args)
	case "init":
		err = cmdInit(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fatalf("unknown command %q (supported: doctor, envs, fingerprint, create, run, init)", cmd)
	}
	if err != nil {
		fatalf("%v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: condactl <command> [flags]

commands:
  doctor       report conda discovery, version, and registered runners
  envs         list environments declared in the project config
  fingerprint  print the cache fingerprint of one environment
  create       create or refresh one environment
  run          run a command inside one environment
  init         write a starter config file`)
}

type commonFlags struct {
	toolPath    string
	projectPath string
	envName     string
	condaName   string
}

func bindCommon(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.toolPath, "config", defaultToolConfigPath, "tool config path")
	fs.StringVar(&c.projectPath, "project", defaultProjectConfigPath, "project config path")
	fs.StringVar(&c.envName, "e", "", "environment name")
	fs.StringVar(&c.condaName, "conda-name", "", "override conda_name for the selected environment")
	return c
}

// loadToolConfig tolerates a missing file only at the default location.
func loadToolConfig(path string) (config.ToolConfig, error) {
	cfg, err := config.LoadToolConfig(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == defaultToolConfigPath {
			return config.DefaultToolConfig(), nil
		}
		return config.ToolConfig{}, err
	}
	return cfg, nil
}

// applyLogLevel applies the configured level; the environment override
// wins over the file.
func applyLogLevel(tool config.ToolConfig) {
	if lvl, ok := logging.ParseLevel(tool.LogLevel); ok {
		zerolog.SetGlobalLevel(lvl)
	}
	if lvl, ok := logging.ParseLevel(os.Getenv(logging.EnvLogLevel)); ok {
		zerolog.SetGlobalLevel(lvl)
	}
}

func setupRunner(common *commonFlags) (config.ToolConfig, *conda.Runner, error) {
	tool, err := loadToolConfig(common.toolPath)
	if err != nil {
		return config.ToolConfig{}, nil, err
	}
	applyLogLevel(tool)

	if common.envName == "" {
		return config.ToolConfig{}, nil, errors.New("missing -e environment name")
	}
	project, err := loadProjectConfig(common.projectPath)
	if err != nil {
		return config.ToolConfig{}, nil, err
	}
	runner, err := buildRunner(tool, project, common.envName, common.condaName)
	if err != nil {
		return config.ToolConfig{}, nil, err
	}
	return tool, runner, nil
}

func cmdDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	toolPath := fs.String("config", defaultToolConfigPath, "tool config path")
	_ = fs.Parse(args)

	tool, err := loadToolConfig(*toolPath)
	if err != nil {
		return err
	}
	applyLogLevel(tool)

	exe, err := finderFor(tool).Find()
	if err != nil {
		return err
	}
	fmt.Printf("conda executable: %s\n", exe)

	version := "unknown"
	if stdout, _, _, err := (tools.ExecRunner{}).Run(exe, "--version"); err == nil {
		version = strings.TrimSpace(string(stdout))
	}
	fmt.Printf("conda version: %s\n", version)

	if active := os.Getenv(conda.EnvDefaultEnv); active != "" {
		fmt.Printf("active conda environment: %s\n", active)
	} else {
		fmt.Println("no active conda environment")
	}

	registry := envrunner.Default()
	fmt.Printf("registered runners: %s\n", strings.Join(registry.ListIDs(), ", "))
	if def := registry.DefaultRunner(); def != "" {
		fmt.Printf("default runner: %s\n", def)
	} else {
		fmt.Println("default runner: (host default)")
	}
	return nil
}

func cmdEnvs(args []string) error {
	fs := flag.NewFlagSet("envs", flag.ExitOnError)
	common := bindCommon(fs)
	_ = fs.Parse(args)

	tool, err := loadToolConfig(common.toolPath)
	if err != nil {
		return err
	}
	applyLogLevel(tool)

	project, err := loadProjectConfig(common.projectPath)
	if err != nil {
		return err
	}

	for _, name := range project.EnvNames() {
		view, _ := project.View(name)
		base := view.basePython()
		if base == "" {
			base = conda.DefaultBasePython
		}

		var defined []string
		for _, spec := range conda.KeySpecs() {
			if view.IsSet(spec.Key) {
				defined = append(defined, spec.Key)
			}
		}
		keys := "(defaults)"
		if len(defined) > 0 {
			keys = strings.Join(defined, ", ")
		}
		fmt.Printf("%-16s base_python=%-14s %s\n", name, base, keys)
	}
	return nil
}

func cmdFingerprint(args []string) error {
	fs := flag.NewFlagSet("fingerprint", flag.ExitOnError)
	common := bindCommon(fs)
	_ = fs.Parse(args)

	_, runner, err := setupRunner(common)
	if err != nil {
		return err
	}

	fp, err := runner.Fingerprint()
	if err != nil {
		return err
	}
	digest, err := fp.Digest()
	if err != nil {
		return err
	}
	sections, err := runner.CacheSections()
	if err != nil {
		return err
	}

	payload, err := json.MarshalIndent(sections, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("digest: %s\n%s\n", digest, payload)
	return nil
}

func cmdCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	common := bindCommon(fs)
	recreate := fs.Bool("recreate", false, "force recreation even when the definition is unchanged")
	_ = fs.Parse(args)

	_, runner, err := setupRunner(common)
	if err != nil {
		return err
	}

	sections, err := runner.CacheSections()
	if err != nil {
		return err
	}
	info, err := envrunner.LoadInfo(runner.EnvDir())
	if err != nil {
		return err
	}
	condaEqual, _ := info.Compare("conda", sections["conda"])
	pythonEqual, _ := info.Compare("python", sections["python"])

	_, statErr := os.Stat(runner.EnvDir())
	missing := errors.Is(statErr, os.ErrNotExist)

	switch {
	case missing:
		log.Info().Str("env_dir", runner.EnvDir()).Msg("creating environment")
		if err := runner.CreateEnv(); err != nil {
			return err
		}
	case *recreate || !condaEqual || !pythonEqual:
		log.Info().Str("env_dir", runner.EnvDir()).Msg("environment definition changed, recreating")
		if err := os.RemoveAll(runner.EnvDir()); err != nil {
			return err
		}
		if err := runner.CreateEnv(); err != nil {
			return err
		}
	default:
		if err := runner.EnsureEnv(); err != nil {
			return err
		}
		log.Info().Str("env_dir", runner.EnvDir()).Msg("environment up to date")
	}

	return info.Save()
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	common := bindCommon(fs)
	activate := fs.Bool("activate", false, "run through shell activation instead of conda run")
	_ = fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		return errors.New("missing command to run")
	}

	tool, runner, err := setupRunner(common)
	if err != nil {
		return err
	}
	if err := runner.EnsureEnv(); err != nil {
		return err
	}

	executor := runner.Executor()
	if *activate {
		exe, err := finderFor(tool).Find()
		if err != nil {
			return err
		}
		activator := conda.Activator{CondaExe: exe, EnvDir: runner.EnvDir()}
		executor = activator.WrapExecutor(envrunner.LocalExecutor{})
	}

	req := envrunner.NewRequest(argv...)
	if paths, err := runner.PrependPath(); err == nil && len(paths) > 0 {
		merged := strings.Join(append(paths, os.Getenv("PATH")), string(os.PathListSeparator))
		req.Env = map[string]string{"PATH": merged}
	}

	outcome, err := executor.ExecuteStreaming(req, os.Stdout, os.Stderr)
	if err != nil && outcome.ExitCode == 0 {
		return err
	}
	log.Debug().
		Str("run_id", outcome.RunID).
		Int("exit", outcome.ExitCode).
		Dur("elapsed", outcome.Elapsed).
		Msg("command finished")
	os.Exit(outcome.ExitCode)
	return nil
}

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	kind := fs.String("kind", "project", "config kind: project|tool")
	output := fs.String("output", "", "output path (defaults per kind)")
	force := fs.Bool("force", false, "overwrite existing config file")
	_ = fs.Parse(args)

	target := *output
	if target == "" {
		switch *kind {
		case "project":
			target = defaultProjectConfigPath
		case "tool":
			target = defaultToolConfigPath
		default:
			return fmt.Errorf("unknown kind: %s", *kind)
		}
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		return err
	}
	log.Info().Str("kind", *kind).Str("path", target).Msg("wrote config template")
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "condactl: "+format+"\n", args...)
	os.Exit(1)
}
