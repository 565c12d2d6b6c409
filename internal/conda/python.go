package conda

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/AITechTim/tox4-conda/internal/envrunner"
	"github.com/AITechTim/tox4-conda/internal/tools"
)

// DefaultBasePython is the interpreter label assumed when the host
// supplies none.
const DefaultBasePython = "python3"

// basePythonPattern extracts up to three version segments from labels like
// "python3", "python3.11", or "python3.11.2".
var basePythonPattern = regexp.MustCompile(`python(\d)(?:\.(\d+))?(?:\.?(\d))?`)

// DeriveVersion extracts the requested python version from a base-python
// label. The second return is false when the label carries no version, in
// which case the labeled interpreter must be probed.
func DeriveVersion(label string) (string, bool) {
	match := basePythonPattern.FindStringSubmatch(label)
	if match == nil {
		return "", false
	}
	version := match[1]
	if match[2] != "" {
		version += "." + match[2]
	}
	if match[3] != "" {
		version += "." + match[3]
	}
	return version, true
}

// PinFor renders a version as the conda python requirement.
func PinFor(version string) string {
	return "python=" + version
}

// PythonInfo describes a probed interpreter.
type PythonInfo struct {
	Implementation string
	Version        *semver.Version
	ReleaseLevel   string
	Serial         int
	Is64Bit        bool
	Platform       string
	Executable     string
}

// VersionDot returns the "MAJOR.MINOR" form used for python pins.
func (i PythonInfo) VersionDot() string {
	return fmt.Sprintf("%d.%d", i.Version.Major(), i.Version.Minor())
}

// SatisfiesPin reports whether the probed interpreter matches a `python=V`
// pin, comparing only the segments the pin names.
func (i PythonInfo) SatisfiesPin(pin string) bool {
	if i.Version == nil {
		return false
	}
	constraint, err := semver.NewConstraint(constraintFor(strings.TrimPrefix(pin, "python=")))
	if err != nil {
		return false
	}
	return constraint.Check(i.Version)
}

// constraintFor widens a partial pin into a range: "3" -> "3.x",
// "3.11" -> "3.11.x", "3.11.2" -> "=3.11.2".
func constraintFor(version string) string {
	if strings.Count(version, ".") >= 2 {
		return "=" + version
	}
	return version + ".x"
}

// probeSnippet emits interpreter facts as one JSON object on stdout.
const probeSnippet = `import json, platform, sys; print(json.dumps({` +
	`"implementation": platform.python_implementation(), ` +
	`"version": list(sys.version_info[:3]), ` +
	`"releaselevel": sys.version_info.releaselevel, ` +
	`"serial": sys.version_info.serial, ` +
	`"is_64": sys.maxsize > 2**32, ` +
	`"platform": platform.system(), ` +
	`"executable": sys.executable}))`

// Prober inspects python interpreters through a command runner. Zero value
// executes directly.
type Prober struct {
	Runner tools.CommandRunner
}

// Probe runs the interpreter with a JSON-emitting snippet and decodes its
// report.
func (p Prober) Probe(executable string) (PythonInfo, error) {
	runner := p.Runner
	if runner == nil {
		runner = tools.ExecRunner{}
	}

	stdout, stderr, exitCode, err := runner.Run(executable, "-c", probeSnippet)
	if err != nil {
		return PythonInfo{}, envrunner.Failf(
			"failed to probe python interpreter %q: exit=%d stderr=%q",
			executable,
			exitCode,
			strings.TrimSpace(string(stderr)),
		)
	}

	var wire struct {
		Implementation string `json:"implementation"`
		Version        []int  `json:"version"`
		ReleaseLevel   string `json:"releaselevel"`
		Serial         int    `json:"serial"`
		Is64           bool   `json:"is_64"`
		Platform       string `json:"platform"`
		Executable     string `json:"executable"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(stdout), &wire); err != nil {
		return PythonInfo{}, envrunner.Failf(
			"failed to decode python probe output %q: %v",
			strings.TrimSpace(string(stdout)),
			err,
		)
	}
	if len(wire.Version) != 3 {
		return PythonInfo{}, envrunner.Failf("unexpected python probe version %v", wire.Version)
	}

	return PythonInfo{
		Implementation: wire.Implementation,
		Version:        semver.New(uint64(wire.Version[0]), uint64(wire.Version[1]), uint64(wire.Version[2]), "", ""),
		ReleaseLevel:   wire.ReleaseLevel,
		Serial:         wire.Serial,
		Is64Bit:        wire.Is64,
		Platform:       wire.Platform,
		Executable:     wire.Executable,
	}, nil
}
