package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ToolConfig is the condactl tool configuration, usually condactl.toml.
type ToolConfig struct {
	LogLevel string `toml:"log_level"`
	CondaExe string `toml:"conda_exe"`
	WorkDir  string `toml:"work_dir"`
}

// DefaultToolConfig returns the configuration used when no file exists.
func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		LogLevel: "info",
		WorkDir:  ".tox4",
	}
}

func LoadToolConfig(path string) (ToolConfig, error) {
	var cfg ToolConfig
	if err := loadToml(path, &cfg); err != nil {
		return ToolConfig{}, err
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultToolConfig().LogLevel
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = DefaultToolConfig().WorkDir
	}
	if err := ValidateToolConfig(cfg); err != nil {
		return ToolConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateToolConfig(cfg ToolConfig) error {
	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
	case "trace", "debug", "info", "warn", "warning", "error", "disabled":
	default:
		return fmt.Errorf("tool config invalid log_level: %s", cfg.LogLevel)
	}
	if strings.TrimSpace(cfg.WorkDir) == "" {
		return fmt.Errorf("tool config missing work_dir")
	}
	return nil
}
