// Package cmd implements the command-line interface for the goTM
// transactional memory engine. It provides a small command tree for
// inspecting the build and exercising the engine under load.
//
// The package is organized into several subpackages:
//
//   - bench: Concurrency benchmark running transactional workloads over a shared region
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See gotm -help for a list of all commands.
package cmd
