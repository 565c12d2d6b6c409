// Package conda implements a conda-backed environment runner.
//
// Ownership boundary:
// - conda executable discovery
// - cache fingerprint derivation for environment definitions
// - create/install/run command construction and execution
// - environment-file handling and python version pinning
package conda
