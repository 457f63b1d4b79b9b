// Package cmd implements the gaiasource command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// globalFlags holds the persistent flags shared by every command.
var globalFlags struct {
	Config   string
	JSON     bool
	Plain    bool
	LogLevel string
	NoCache  bool
	Timeout  string
	Workers  int
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gaiasource",
	Short: "Aggregate movie and TV metadata from several catalogs",
	Long: `gaiasource queries TMDb, Trakt, TVDB and OMDb concurrently and merges what
they return into one normalized answer: searches, discovery listings,
releases, recommendations, lists, detail records and season/episode packs.

Each provider is called within its own rate budget and results are cached,
so repeated requests are served without touching the upstreams.

Quick start:
  gaiasource config init             # write ~/.gaiasource/config.toml
  gaiasource search "the matrix"     # search movies
  gaiasource pack --tvdb 81189       # season/episode pack of a show`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globalFlags.Config, "config", "", "config file (default ~/.gaiasource/config.toml)")
	pf.BoolVar(&globalFlags.JSON, "json", false, "print results as JSON")
	pf.BoolVar(&globalFlags.Plain, "plain", false, "disable colors and icons")
	pf.StringVar(&globalFlags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&globalFlags.NoCache, "no-cache", false, "bypass the result cache")
	pf.StringVar(&globalFlags.Timeout, "timeout", "", "operation timeout, e.g. 30s")
	pf.IntVar(&globalFlags.Workers, "workers", 0, "concurrent provider calls")
}
