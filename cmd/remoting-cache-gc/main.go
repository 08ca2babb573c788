// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// remoting-cache-gc trims a shared artifact cache down to its size
// budget, evicting least-recently-used artifacts first. Intended to
// run from a timer on hosts whose endpoints share one cache
// directory; it is safe against caches with live readers and
// writers.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/remoting/lib/config"
	"github.com/bureau-foundation/remoting/lib/jarcache"
	"github.com/bureau-foundation/remoting/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var root string
	var budget int64
	var verbose bool

	flagSet := pflag.NewFlagSet("remoting-cache-gc", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to remoting config file (default: REMOTING_CONFIG)")
	flagSet.StringVar(&root, "root", "", "cache directory (overrides config)")
	flagSet.Int64Var(&budget, "budget", 0, "target size in bytes (overrides config)")
	flagSet.BoolVar(&verbose, "verbose", false, "log each evicted artifact")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match other remoting binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("remoting-cache-gc")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	if root == "" || budget == 0 {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if root == "" {
			root = cfg.Cache.Root
		}
		if budget == 0 {
			budget = cfg.Cache.Budget
		}
	}
	if root == "" {
		return fmt.Errorf("no cache to trim; pass --root or set cache.root in the config")
	}
	if budget <= 0 {
		return fmt.Errorf("a positive --budget (or cache.budget) is required")
	}
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("cache root %s: %w", root, err)
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	report, err := jarcache.Reap(root, budget, logger)
	if err != nil {
		return err
	}

	fmt.Printf("cache:   %s\n", root)
	fmt.Printf("kept:    %d bytes\n", report.Kept)
	fmt.Printf("removed: %d artifacts (%d bytes)\n", report.Removed, report.Freed)
	if report.Kept > budget {
		// Everything eligible is gone and we are still over: foreign
		// files or artifacts appearing faster than we delete.
		return fmt.Errorf("cache still %d bytes over budget after eviction", report.Kept-budget)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Trim a remoting artifact cache to its size budget.

Scans the cache directory, sums artifact sizes, and deletes the
oldest artifacts (by modification time) until the total is at or
below the budget. Caches opened with touch enabled refresh mtimes on
every hit, so age tracks genuine recency.

Usage:
  remoting-cache-gc --root DIR --budget BYTES [flags]

Examples:
  # Trim to 10 GiB
  remoting-cache-gc --root /var/cache/remoting --budget 10737418240

  # Use the configured cache location and budget
  REMOTING_CONFIG=/etc/remoting.yaml remoting-cache-gc

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
