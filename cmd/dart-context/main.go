package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/aemelyanovff/dart-context/internal/config"
	"github.com/aemelyanovff/dart-context/internal/logging"
)

var (
	flagFormat           string
	flagNoCache          bool
	flagLoadDependencies bool
	flagVerbose          bool

	flagCacheDir        string
	flagWorkspaceCache  string
	flagWatchDebounceMS int
	flagPageSize        int
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "dart-context",
	Short:         "Semantic index for Dart and Flutter workspaces",
	Long:          "dart-context incrementally indexes a Dart/Flutter project and its dependencies, answering definition/reference/hierarchy/call-graph queries across the whole federation.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.SetVerbose(flagVerbose)
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: json|text")
	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "ignore any persisted index and re-index from scratch")
	rootCmd.PersistentFlags().BoolVar(&flagLoadDependencies, "deps", false, "also load SDK/framework/hosted/git dependencies")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "print debug/info logging to stderr")
	rootCmd.PersistentFlags().StringVar(&flagCacheDir, "cache-dir", "", "global dependency cache directory (overrides DART_CONTEXT_CACHE_DIR and dart-context.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagWorkspaceCache, "workspace-cache-dir", "", "per-workspace cache directory, relative to the project root")
	rootCmd.PersistentFlags().IntVar(&flagWatchDebounceMS, "debounce", 0, "watcher debounce window in milliseconds")
	rootCmd.PersistentFlags().IntVar(&flagPageSize, "page-size", 0, "query result page size")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(watchCmd)
}

func validateFormat(format string) error {
	switch format {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("invalid --format %q: must be json or text", format)
	}
}

// resolveTargetDir returns the directory to open as given (it is not made
// absolute here), defaulting to the current working directory, after
// checking that it exists and is a directory.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", dir)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", dir)
	}
	return dir, nil
}

// envConfigOverrides reads the DART_CONTEXT_* env vars into a sparse
// config.Config, leaving unset fields at their zero value so config.Load's
// env layer only overrides what's actually present in the environment.
func envConfigOverrides() config.Config {
	var c config.Config
	c.GlobalCacheDir = os.Getenv("DART_CONTEXT_CACHE_DIR")
	c.WorkspaceCacheDir = os.Getenv("DART_CONTEXT_WORKSPACE_CACHE_DIR")
	if ms, err := strconv.Atoi(os.Getenv("DART_CONTEXT_DEBOUNCE_MS")); err == nil && ms > 0 {
		c.WatchDebounce = time.Duration(ms) * time.Millisecond
	}
	if n, err := strconv.Atoi(os.Getenv("DART_CONTEXT_PAGE_SIZE")); err == nil && n > 0 {
		c.QueryPageSize = n
	}
	return c
}

// flagConfigOverrides turns the root command's persistent config flags into
// a sparse config.Config for the flag layer of internal/config's
// flag > env > file > default precedence.
func flagConfigOverrides() config.Config {
	var c config.Config
	c.GlobalCacheDir = flagCacheDir
	c.WorkspaceCacheDir = flagWorkspaceCache
	if flagWatchDebounceMS > 0 {
		c.WatchDebounce = time.Duration(flagWatchDebounceMS) * time.Millisecond
	}
	c.QueryPageSize = flagPageSize
	return c
}
