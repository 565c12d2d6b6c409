package envrunner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AITechTim/tox4-conda/internal/testutil/testlog"
)

func TestInfoCompareRecordsAndReloads(t *testing.T) {
	testlog.Start(t)
	envDir := t.TempDir()
	info, err := LoadInfo(envDir)
	if err != nil {
		t.Fatalf("load info: %v", err)
	}

	section := map[string]any{"env_spec": "-p", "env": envDir, "deps": []string{"numpy"}}
	equal, previous := info.Compare("conda", section)
	if equal {
		t.Fatalf("expected first compare to report changed")
	}
	if previous != nil {
		t.Fatalf("expected no previous section, got %v", previous)
	}
	if err := info.Save(); err != nil {
		t.Fatalf("save info: %v", err)
	}

	reloaded, err := LoadInfo(envDir)
	if err != nil {
		t.Fatalf("reload info: %v", err)
	}
	equal, previous = reloaded.Compare("conda", section)
	if !equal {
		t.Fatalf("expected persisted section to compare equal, previous=%v", previous)
	}
	if previous == nil || previous["env_spec"] != "-p" {
		t.Fatalf("unexpected previous section: %v", previous)
	}
}

func TestInfoCompareDetectsChange(t *testing.T) {
	testlog.Start(t)
	info, err := LoadInfo(t.TempDir())
	if err != nil {
		t.Fatalf("load info: %v", err)
	}

	info.Compare("conda", map[string]any{"deps": []string{"numpy"}})
	equal, _ := info.Compare("conda", map[string]any{"deps": []string{"numpy", "pandas"}})
	if equal {
		t.Fatalf("expected changed deps to compare unequal")
	}
}

func TestInfoCompareFilterKeys(t *testing.T) {
	testlog.Start(t)
	info, err := LoadInfo(t.TempDir())
	if err != nil {
		t.Fatalf("load info: %v", err)
	}

	first := map[string]any{"env": "alpha", "env_hash": "aaa"}
	second := map[string]any{"env": "alpha", "env_hash": "bbb"}
	info.Compare("conda", first, FilterKeys("conda", "env_hash"))
	equal, _ := info.Compare("conda", second, FilterKeys("conda", "env_hash"))
	if !equal {
		t.Fatalf("expected filtered key to be ignored in comparison")
	}

	// The filter only applies to its named section.
	info.Compare("python", first, FilterKeys("conda", "env_hash"))
	equal, _ = info.Compare("python", second, FilterKeys("conda", "env_hash"))
	if equal {
		t.Fatalf("expected filter scoped to other section to keep the key")
	}
}

func TestInfoCompareDoesNotMutateCaller(t *testing.T) {
	testlog.Start(t)
	info, err := LoadInfo(t.TempDir())
	if err != nil {
		t.Fatalf("load info: %v", err)
	}

	section := map[string]any{"env": "alpha", "env_hash": "aaa"}
	info.Compare("conda", section, FilterKeys("conda", "env_hash"))
	if _, ok := section["env_hash"]; !ok {
		t.Fatalf("caller map was mutated: %v", section)
	}
}

func TestLoadInfoRejectsCorruptCache(t *testing.T) {
	testlog.Start(t)
	envDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(envDir, InfoFileName), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt cache: %v", err)
	}
	if _, err := LoadInfo(envDir); err == nil || !strings.Contains(err.Error(), "corrupt info cache") {
		t.Fatalf("expected corrupt cache error, got %v", err)
	}
}
