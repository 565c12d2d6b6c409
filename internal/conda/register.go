package conda

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/AITechTim/tox4-conda/internal/envrunner"
)

// EnvDefaultEnv marks an active conda environment in the process env.
const EnvDefaultEnv = "CONDA_DEFAULT_ENV"

// RegisterRunner adds the conda factory to the registry. When conda is
// discoverable and the process already runs inside an active conda
// environment, conda also becomes the default runner; discovery failures
// leave the default untouched.
func RegisterRunner(reg *envrunner.Registry) error {
	return registerRunner(reg, Find, os.Getenv)
}

func registerRunner(reg *envrunner.Registry, find func() (string, error), getenv func(string) string) error {
	factory := func(args envrunner.CreateArgs) (envrunner.EnvRunner, error) {
		return NewRunner(args)
	}
	if err := reg.Register(RunnerID, factory); err != nil {
		return err
	}

	if _, err := find(); err != nil {
		log.Debug().Err(err).Msg("conda not discoverable, default runner unchanged")
		return nil
	}
	if getenv(EnvDefaultEnv) == "" {
		return nil
	}
	return reg.SetDefaultRunner(RunnerID)
}
