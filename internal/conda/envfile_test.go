package conda

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/AITechTim/tox4-conda/internal/testutil/testlog"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "environment.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	return path
}

func TestLoadEnvFileName(t *testing.T) {
	testlog.Start(t)
	path := writeEnvFile(t, "name: analytics\ndependencies:\n  - numpy\n")

	envFile, err := LoadEnvFile(path)
	if err != nil {
		t.Fatalf("load env file: %v", err)
	}
	name, err := envFile.Name()
	if err != nil {
		t.Fatalf("name: %v", err)
	}
	if name != "analytics" {
		t.Fatalf("unexpected name: %q", name)
	}
	if envFile.Path() != path {
		t.Fatalf("unexpected path: %q", envFile.Path())
	}
}

func TestEnvFileNameMissing(t *testing.T) {
	testlog.Start(t)
	path := writeEnvFile(t, "dependencies:\n  - numpy\n")

	envFile, err := LoadEnvFile(path)
	if err != nil {
		t.Fatalf("load env file: %v", err)
	}
	if _, err := envFile.Name(); !errors.Is(err, ErrEnvFileNoName) {
		t.Fatalf("expected ErrEnvFileNoName, got %v", err)
	}
}

func TestLoadEnvFileRejectsNonMapping(t *testing.T) {
	testlog.Start(t)
	path := writeEnvFile(t, "- numpy\n- pandas\n")

	if _, err := LoadEnvFile(path); !errors.Is(err, ErrEnvFileInvalid) {
		t.Fatalf("expected ErrEnvFileInvalid, got %v", err)
	}
}

func TestWritePinnedAppendsToDependencies(t *testing.T) {
	testlog.Start(t)
	path := writeEnvFile(t, strings.Join([]string{
		"name: analytics",
		"channels:",
		"  - conda-forge",
		"dependencies:",
		"  - numpy",
		"  - pip:",
		"      - requests",
		"",
	}, "\n"))

	envFile, err := LoadEnvFile(path)
	if err != nil {
		t.Fatalf("load env file: %v", err)
	}
	tmpPath, cleanup, err := envFile.WritePinned("python=3.11")
	if err != nil {
		t.Fatalf("write pinned: %v", err)
	}

	if filepath.Dir(tmpPath) != filepath.Dir(path) {
		t.Fatalf("pinned copy not next to source: %q", tmpPath)
	}
	base := filepath.Base(tmpPath)
	if !strings.HasPrefix(base, "tox4_conda_tmp") || !strings.HasSuffix(base, ".yaml") {
		t.Fatalf("unexpected temp file name: %q", base)
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		t.Fatalf("read pinned copy: %v", err)
	}
	var doc struct {
		Name         string   `yaml:"name"`
		Channels     []string `yaml:"channels"`
		Dependencies []any    `yaml:"dependencies"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parse pinned copy: %v", err)
	}
	if doc.Name != "analytics" || len(doc.Channels) != 1 {
		t.Fatalf("pinned copy lost fields: %+v", doc)
	}
	if len(doc.Dependencies) != 3 {
		t.Fatalf("unexpected dependencies: %v", doc.Dependencies)
	}
	if doc.Dependencies[len(doc.Dependencies)-1] != "python=3.11" {
		t.Fatalf("pin not appended last: %v", doc.Dependencies)
	}
	pip, ok := doc.Dependencies[1].(map[string]any)
	if !ok || pip["pip"] == nil {
		t.Fatalf("nested pip section lost: %v", doc.Dependencies)
	}

	if err := cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(tmpPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected pinned copy removed, stat err=%v", err)
	}
}

func TestWritePinnedCreatesDependencies(t *testing.T) {
	testlog.Start(t)
	path := writeEnvFile(t, "name: bare\n")

	envFile, err := LoadEnvFile(path)
	if err != nil {
		t.Fatalf("load env file: %v", err)
	}
	tmpPath, cleanup, err := envFile.WritePinned("python=3.9")
	if err != nil {
		t.Fatalf("write pinned: %v", err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			t.Fatalf("cleanup: %v", err)
		}
	}()

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		t.Fatalf("read pinned copy: %v", err)
	}
	var doc struct {
		Dependencies []string `yaml:"dependencies"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parse pinned copy: %v", err)
	}
	if len(doc.Dependencies) != 1 || doc.Dependencies[0] != "python=3.9" {
		t.Fatalf("unexpected dependencies: %v", doc.Dependencies)
	}
}

func TestWritePinnedLeavesSourceUntouched(t *testing.T) {
	testlog.Start(t)
	content := "name: analytics\ndependencies:\n  - numpy\n"
	path := writeEnvFile(t, content)

	envFile, err := LoadEnvFile(path)
	if err != nil {
		t.Fatalf("load env file: %v", err)
	}
	tmpPath, cleanup, err := envFile.WritePinned("python=3.11")
	if err != nil {
		t.Fatalf("write pinned: %v", err)
	}
	defer func() { _ = cleanup() }()
	if tmpPath == path {
		t.Fatalf("pinned copy must not replace the source")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read source: %v", err)
	}
	if string(data) != content {
		t.Fatalf("source file mutated:\n%s", string(data))
	}
}

func TestWritePinnedRejectsScalarDependencies(t *testing.T) {
	testlog.Start(t)
	path := writeEnvFile(t, "name: broken\ndependencies: numpy\n")

	envFile, err := LoadEnvFile(path)
	if err != nil {
		t.Fatalf("load env file: %v", err)
	}
	if _, _, err := envFile.WritePinned("python=3.11"); !errors.Is(err, ErrEnvFileInvalid) {
		t.Fatalf("expected ErrEnvFileInvalid, got %v", err)
	}
}
