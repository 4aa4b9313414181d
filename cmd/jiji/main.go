/*
Package main is the entry point for the jiji CLI.

jiji is the backend of Learn with Jiji: it answers learning queries with
resources from a curated catalog and keeps a per-user query history.

Usage:
  jiji [command]

Available Commands:
  serve       Run the HTTP API server
  ask         Answer a learning query
  history     Show the recent queries of a user
  migrate     Create or upgrade the database schema
  resources   Manage the learning resource catalog
  version     Show version information

Examples:
  # Prepare the database and seed the catalog
  jiji migrate
  jiji resources import catalog.yaml

  # Run the API
  jiji serve --port 3000
*/
package main

import (
	"fmt"
	"os"

	"github.com/learnwithjiji/jiji/internal/cli"
	buildinfo "github.com/learnwithjiji/jiji/internal/version"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	buildinfo.Version, buildinfo.Commit, buildinfo.Date = version, commit, date

	rootCmd := cli.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
