package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "tool":
		return toolTemplate, nil
	case "project":
		return projectTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const toolTemplate = `log_level = "info"
work_dir = ".tox4"
# conda_exe = "/opt/conda/bin/conda"
`

const projectTemplate = `[env.py311]
base_python = "python3.11"
conda_deps = [
  "numpy",
  "pandas>=2.0",
]
conda_channels = ["conda-forge"]

[env.datasci]
conda_env = "environment.yml"
conda_install_args = ["--copy"]
`
