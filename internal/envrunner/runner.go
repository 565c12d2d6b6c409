package envrunner

// Config is the host configuration view a runner reads its keys through.
// IsSet distinguishes absent keys from empty values.
type Config interface {
	String(key string) string
	Strings(key string) []string
	IsSet(key string) bool
}

// CreateArgs carries everything the host hands a runner factory.
type CreateArgs struct {
	Name         string
	EnvDir       string
	WorkDir      string
	BasePython   []string
	Config       Config
	HostExecutor Executor
}

// EnvRunner is the environment-runner contract implemented by plugins.
// The host drives the lifecycle: EnsureEnv (or CreateEnv) first, then
// dependency installation and command execution through Installer and
// Executor. CacheSections feeds the host's recreation decision.
type EnvRunner interface {
	ID() string
	EnvDir() string
	CreateEnv() error
	EnsureEnv() error
	CacheSections() (map[string]map[string]any, error)
	Executor() Executor
	Installer() Installer
	PrependPath() ([]string, error)
	PassEnv() []string
	EnvPython() (string, error)
	EnvBinDir() (string, error)
	EnvSitePackagesDir() (string, error)
	RunsOnPlatform() string
}
