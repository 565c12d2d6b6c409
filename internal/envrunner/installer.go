package envrunner

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// Installer is the host dependency-installer abstraction.
type Installer interface {
	Name() string
	Install(deps []string) error
}

// PipInstaller installs python dependencies through an environment executor.
type PipInstaller struct {
	exec Executor
}

// NewPipInstaller builds a pip installer bound to an executor.
func NewPipInstaller(exec Executor) *PipInstaller {
	return &PipInstaller{exec: exec}
}

func (p *PipInstaller) Name() string {
	return "pip"
}

// Install issues python -m pip install through the bound executor.
func (p *PipInstaller) Install(deps []string) error {
	if len(deps) == 0 {
		return nil
	}

	cmd := append([]string{"python", "-m", "pip", "install"}, deps...)
	req := NewRequest(cmd...)
	log.Info().Str("run_id", req.RunID).Str("cmd", req.Shell()).Msg("pip install")

	outcome, err := p.exec.Execute(req)
	if err != nil || !outcome.Success() {
		return Failf(
			"failed to install dependencies with pip: cmd=%s exit=%d stderr=%q",
			req.Shell(),
			outcome.ExitCode,
			strings.TrimSpace(string(outcome.Stderr)),
		)
	}
	return nil
}
