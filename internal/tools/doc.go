// Package tools provides reusable runtime helpers shared by the conda adapter.
//
// Ownership boundary:
// - command execution helpers
// - shell quoting primitives for command logging and activation scripts
package tools
