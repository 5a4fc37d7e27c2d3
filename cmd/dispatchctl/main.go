// ============================================================================
// Superpy Dispatch Fleet - Main Entry Point
// ============================================================================
//
// File: cmd/dispatchctl/main.go
// Purpose: Application entry point and CLI initialization
//
// Responsibilities:
//   1. Version Management - Inject build info via ldflags
//   2. Panic Recovery - Catch unexpected panics gracefully
//   3. CLI Setup - Build and configure Cobra command interface
//   4. Error Handling - Unified command execution error handling
//
// Version Injection:
//   Variables injected at build time via -ldflags:
//   go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
//
// Usage:
//   ./dispatchctl --help             # Show help
//   ./dispatchctl run --local        # Start a scheduler, spawning a local endpoint
//   ./dispatchctl submit --name foo  # Submit one ad-hoc task
//   ./dispatchctl endpoints          # List fleet endpoints and last observed load
//
// ============================================================================

package main

import (
	"fmt"
	"os"

	"github.com/ChuLiYu/superpy/internal/cli"
)

// Build-time version injection via ldflags
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "1.0.0"   // Semantic version
	commit  = "dev"     // Git commit hash
	date    = "unknown" // Build timestamp
)

// main is the program entry point
// Initializes CLI, handles panics, and executes commands
func main() {
	// Global panic recovery
	// Prevents uncaught panics from crashing the program
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	// Build CLI command tree
	// Includes run, submit, endpoints subcommands
	rootCmd := cli.BuildCLI()

	// Inject build-time version into --version output
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	// Execute dispatches to the matched subcommand's RunE
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
