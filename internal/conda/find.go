package conda

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/AITechTim/tox4-conda/internal/envrunner"
	"github.com/AITechTim/tox4-conda/internal/tools"
)

const (
	// EnvCondaExeBase names the conda executable outside an active environment.
	EnvCondaExeBase = "_CONDA_EXE"
	// EnvCondaExe names the conda executable inside an active environment.
	EnvCondaExe = "CONDA_EXE"
)

// ErrCondaNotFound reports that no usable conda executable was discovered.
var ErrCondaNotFound = fmt.Errorf("%w: failed to find 'conda' executable", envrunner.ErrFail)

// Finder locates the conda executable. Zero-value fields fall back to the
// process environment, PATH lookup, and direct execution.
type Finder struct {
	Getenv   func(string) string
	LookPath func(string) (string, error)
	Runner   tools.CommandRunner
}

// Find discovers conda using the process environment and PATH.
func Find() (string, error) {
	return Finder{}.Find()
}

// Find resolves the conda executable: _CONDA_EXE first, then CONDA_EXE,
// then a PATH lookup verified with a `conda -h` probe. Paths taken from the
// environment are trusted without probing; a probe that fails to start or
// exits nonzero counts as not found.
func (f Finder) Find() (string, error) {
	getenv := f.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	lookPath := f.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	runner := f.Runner
	if runner == nil {
		runner = tools.ExecRunner{}
	}

	for _, key := range []string{EnvCondaExeBase, EnvCondaExe} {
		if exe := strings.TrimSpace(getenv(key)); exe != "" {
			return resolvePath(exe), nil
		}
	}

	exe, err := lookPath("conda")
	if err != nil {
		return "", ErrCondaNotFound
	}
	exe = resolvePath(exe)
	if _, _, _, err := runner.Run(exe, "-h"); err != nil {
		log.Debug().Str("exe", exe).Err(err).Msg("conda probe failed")
		return "", ErrCondaNotFound
	}
	return exe, nil
}

// resolvePath returns the absolute, symlink-resolved form when possible and
// the input otherwise.
func resolvePath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	return path
}
