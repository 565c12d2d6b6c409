// Package envrunner defines the environment-runner contract between the
// test orchestrator host and environment plugins.
//
// Ownership boundary:
// - execution request/outcome shapes and the executor boundary
// - runner registration and default-runner promotion
// - dependency-installer abstraction
// - per-environment section cache used for recreation decisions
package envrunner
