// Package main is the entry point for the svmzner CLI.
//
// svmzner provisions a single-node SVM validator on Hetzner Cloud: it
// creates the server, volumes, firewall and SSH key, generates the role
// keys, builds the genesis ledger and starts the validator service. Every
// step is idempotent, so re-running apply resumes an interrupted run.
//
// Commands: apply, status, outputs, destroy, version.
//
// For detailed usage information, run:
//
//	svmzner --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/svmzner/cmd/svmzner/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
