package conda

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrEnvFileInvalid = errors.New("conda: invalid environment file")
	ErrEnvFileNoName  = errors.New("conda: environment file has no name")
)

// EnvFile is a conda environment.yml held as a yaml.Node tree so that
// emitted copies preserve the author's key order and structure.
type EnvFile struct {
	path string
	raw  []byte
	doc  yaml.Node
}

// LoadEnvFile reads and parses a conda environment file.
func LoadEnvFile(path string) (*EnvFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	e := &EnvFile{path: path, raw: raw}
	if err := yaml.Unmarshal(raw, &e.doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEnvFileInvalid, path, err)
	}
	if mappingRoot(&e.doc) == nil {
		return nil, fmt.Errorf("%w: %s: root is not a mapping", ErrEnvFileInvalid, path)
	}
	return e, nil
}

// Path returns the source file location.
func (e *EnvFile) Path() string {
	return e.path
}

// Name returns the `name:` scalar. The fingerprint addresses the
// environment by it, so a missing or blank name is an error.
func (e *EnvFile) Name() (string, error) {
	value := mappingValue(mappingRoot(&e.doc), "name")
	if value == nil || value.Kind != yaml.ScalarNode || strings.TrimSpace(value.Value) == "" {
		return "", fmt.Errorf("%w: %s", ErrEnvFileNoName, e.path)
	}
	return value.Value, nil
}

// WritePinned emits a copy of the environment file with pythonPin appended
// to the dependencies sequence, into a temp file next to the source, and
// returns its path with a cleanup func the caller runs once the file has
// been consumed. The pin must travel in the file because `conda env create`
// accepts no dependency arguments.
func (e *EnvFile) WritePinned(pythonPin string) (string, func() error, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(e.raw, &doc); err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", ErrEnvFileInvalid, e.path, err)
	}
	root := mappingRoot(&doc)
	if root == nil {
		return "", nil, fmt.Errorf("%w: %s: root is not a mapping", ErrEnvFileInvalid, e.path)
	}

	pin := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: pythonPin}
	deps := mappingValue(root, "dependencies")
	switch {
	case deps == nil:
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "dependencies"},
			&yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: []*yaml.Node{pin}},
		)
	case deps.Kind == yaml.SequenceNode:
		deps.Content = append(deps.Content, pin)
	default:
		return "", nil, fmt.Errorf("%w: %s: dependencies is not a sequence", ErrEnvFileInvalid, e.path)
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return "", nil, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(e.path), "tox4_conda_tmp*.yaml")
	if err != nil {
		return "", nil, err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", nil, err
	}

	name := tmp.Name()
	return name, func() error { return os.Remove(name) }, nil
}

// mappingRoot unwraps a parsed document down to its top-level mapping, or
// nil when the document is empty or not a mapping.
func mappingRoot(doc *yaml.Node) *yaml.Node {
	node := doc
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil
		}
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil
	}
	return node
}

// mappingValue returns the value node for a top-level key, or nil.
func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	if mapping == nil {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}
