package conda

import (
	"errors"
	"testing"

	"github.com/AITechTim/tox4-conda/internal/envrunner"
	"github.com/AITechTim/tox4-conda/internal/testutil/testlog"
)

func TestRegisterRunnerAddsFactory(t *testing.T) {
	testlog.Start(t)
	reg := envrunner.NewRegistry()
	find := func() (string, error) { return "", ErrCondaNotFound }

	if err := registerRunner(reg, find, func(string) string { return "" }); err != nil {
		t.Fatalf("register runner: %v", err)
	}

	factory, ok := reg.Resolve(RunnerID)
	if !ok {
		t.Fatalf("expected conda factory registered")
	}
	runner, err := factory(envrunner.CreateArgs{EnvDir: t.TempDir()})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if runner.ID() != RunnerID {
		t.Fatalf("unexpected runner id: %q", runner.ID())
	}
	if reg.DefaultRunner() != "" {
		t.Fatalf("discovery failure must not promote default, got %q", reg.DefaultRunner())
	}
}

func TestRegisterRunnerPromotesDefaultInsideActiveEnv(t *testing.T) {
	testlog.Start(t)
	reg := envrunner.NewRegistry()
	find := func() (string, error) { return "/opt/conda/bin/conda", nil }
	getenv := func(key string) string {
		if key == EnvDefaultEnv {
			return "base"
		}
		return ""
	}

	if err := registerRunner(reg, find, getenv); err != nil {
		t.Fatalf("register runner: %v", err)
	}
	if got := reg.DefaultRunner(); got != RunnerID {
		t.Fatalf("expected conda promoted to default, got %q", got)
	}
}

func TestRegisterRunnerKeepsDefaultOutsideActiveEnv(t *testing.T) {
	testlog.Start(t)
	reg := envrunner.NewRegistry()
	find := func() (string, error) { return "/opt/conda/bin/conda", nil }

	if err := registerRunner(reg, find, func(string) string { return "" }); err != nil {
		t.Fatalf("register runner: %v", err)
	}
	if got := reg.DefaultRunner(); got != "" {
		t.Fatalf("expected default unchanged, got %q", got)
	}
}

func TestRegisterRunnerDuplicateFails(t *testing.T) {
	testlog.Start(t)
	reg := envrunner.NewRegistry()
	find := func() (string, error) { return "", ErrCondaNotFound }
	getenv := func(string) string { return "" }

	if err := registerRunner(reg, find, getenv); err != nil {
		t.Fatalf("register runner: %v", err)
	}
	if err := registerRunner(reg, find, getenv); !errors.Is(err, envrunner.ErrRunnerExists) {
		t.Fatalf("expected ErrRunnerExists, got %v", err)
	}
}
