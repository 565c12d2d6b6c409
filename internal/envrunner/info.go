package envrunner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
)

// InfoFileName is the per-environment section cache file.
const InfoFileName = ".tox4-info.json"

// Info is a JSON-file-backed section cache stored inside an environment
// directory. The host compares cached sections against freshly derived
// values to decide whether an environment must be recreated.
type Info struct {
	path     string
	sections map[string]map[string]any
}

// LoadInfo reads the section cache of an environment directory.
// A missing file yields an empty cache.
func LoadInfo(envDir string) (*Info, error) {
	info := &Info{
		path:     filepath.Join(envDir, InfoFileName),
		sections: make(map[string]map[string]any),
	}
	data, err := os.ReadFile(info.path)
	if errors.Is(err, os.ErrNotExist) {
		return info, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &info.sections); err != nil {
		return nil, fmt.Errorf("envrunner: corrupt info cache %s: %w", info.path, err)
	}
	return info, nil
}

// CompareOption adjusts section comparison.
type CompareOption func(*compareConfig)

type compareConfig struct {
	filterSection string
	filterKeys    []string
}

// FilterKeys removes the listed keys from both sides of the comparison when
// the compared section matches.
func FilterKeys(section string, keys ...string) CompareOption {
	return func(cfg *compareConfig) {
		cfg.filterSection = section
		cfg.filterKeys = keys
	}
}

// Compare matches value against the cached section and records the new value.
// It returns whether both sides were equal along with the previously cached
// section. The caller's map is never mutated; values must be JSON-encodable.
func (i *Info) Compare(section string, value map[string]any, opts ...CompareOption) (bool, map[string]any) {
	cfg := compareConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	next := normalizeSection(value)
	if cfg.filterSection == "" || cfg.filterSection == section {
		for _, key := range cfg.filterKeys {
			delete(next, key)
		}
	}

	previous, ok := i.sections[section]
	equal := ok && reflect.DeepEqual(previous, next)
	if !equal {
		i.sections[section] = next
	}
	return equal, previous
}

// Save persists the cache inside the environment directory.
func (i *Info) Save() error {
	if err := os.MkdirAll(filepath.Dir(i.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(i.sections, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(i.path, data, 0o644)
}

// Path returns the backing file location.
func (i *Info) Path() string {
	return i.path
}

// normalizeSection round-trips the value through JSON so comparisons against
// previously persisted sections see identical shapes.
func normalizeSection(in map[string]any) map[string]any {
	data, err := json.Marshal(in)
	if err != nil {
		out := make(map[string]any, len(in))
		for key, value := range in {
			out[key] = value
		}
		return out
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	if out == nil {
		out = map[string]any{}
	}
	return out
}
