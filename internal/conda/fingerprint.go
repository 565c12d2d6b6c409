package conda

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
)

// Fingerprint captures the environment-defining inputs the host compares
// across runs to decide whether an environment must be rebuilt.
type Fingerprint struct {
	// EnvSpec is the conda addressing flag: "-n" for named environments,
	// "-p" for prefix (directory) environments.
	EnvSpec string
	// Env is the value paired with EnvSpec: a name or a directory.
	Env         string
	EnvPath     string
	EnvHash     string
	Deps        []string
	Spec        string
	SpecHash    string
	Channels    []string
	InstallArgs []string
	CreateArgs  []string
}

// ComputeFingerprint derives the cache fingerprint for one environment.
// Addressing is chosen in order: explicit conda name, environment file
// name, then the prefix form pointing at envDir.
func ComputeFingerprint(cfg EnvConfig, envDir string) (Fingerprint, error) {
	fp := Fingerprint{
		Deps:        cfg.Deps,
		Channels:    cfg.Channels,
		InstallArgs: cfg.InstallArgs,
		CreateArgs:  cfg.CreateArgs,
	}

	switch {
	case cfg.Name != "":
		fp.EnvSpec = "-n"
		fp.Env = cfg.Name
	case cfg.EnvFile != "":
		envPath, err := filepath.Abs(cfg.EnvFile)
		if err != nil {
			return Fingerprint{}, err
		}
		envFile, err := LoadEnvFile(envPath)
		if err != nil {
			return Fingerprint{}, err
		}
		name, err := envFile.Name()
		if err != nil {
			return Fingerprint{}, err
		}
		hash, err := HashFile(envPath)
		if err != nil {
			return Fingerprint{}, err
		}
		fp.EnvSpec = "-n"
		fp.Env = name
		fp.EnvPath = envPath
		fp.EnvHash = hash
	default:
		fp.EnvSpec = "-p"
		fp.Env = envDir
	}

	if cfg.SpecFile != "" {
		specPath, err := filepath.Abs(cfg.SpecFile)
		if err != nil {
			return Fingerprint{}, err
		}
		hash, err := HashFile(specPath)
		if err != nil {
			return Fingerprint{}, err
		}
		fp.Spec = cfg.SpecFile
		fp.SpecHash = hash
	}

	return fp, nil
}

// ToMap renders the fingerprint as the section map the host merges into
// its environment info cache. Empty values are omitted so an unset key and
// an absent key compare equal.
func (f Fingerprint) ToMap() map[string]any {
	section := map[string]any{
		"env_spec": f.EnvSpec,
		"env":      f.Env,
	}
	if f.EnvPath != "" {
		section["env_path"] = f.EnvPath
	}
	if f.EnvHash != "" {
		section["env_hash"] = f.EnvHash
	}
	if len(f.Deps) > 0 {
		section["deps"] = f.Deps
	}
	if f.Spec != "" {
		section["spec"] = f.Spec
		section["spec_hash"] = f.SpecHash
	}
	if len(f.Channels) > 0 {
		section["channels"] = f.Channels
	}
	if len(f.InstallArgs) > 0 {
		section["install_args"] = f.InstallArgs
	}
	if len(f.CreateArgs) > 0 {
		section["create_args"] = f.CreateArgs
	}
	return section
}

// Digest returns the SHA-1 hex digest of the canonical JSON rendering,
// used for quick equality checks and log correlation.
func (f Fingerprint) Digest() (string, error) {
	data, err := json.Marshal(f.ToMap())
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// HashFile returns the SHA-1 hex digest of a file's content. SHA-1 is kept
// for cache compatibility, not security.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}
