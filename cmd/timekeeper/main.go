// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// timekeeper registers the timers described by a config file on a
// clock and delivers what they fire.
//
// Two clocks are available. "backtest" drives a deterministic clock
// from backtest.start to backtest.until in fixed steps, journals every
// event, and prints the journal digest: two backtests of the same
// config print the same digest. "run" registers the same timers on
// the live clock, logs events as they fire, serves Prometheus metrics,
// and cancels every timer on SIGINT or SIGTERM.
//
// "journal inspect" prints a recorded journal, optionally as CBOR
// diagnostic notation, and can check it against an expected digest.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/timekeeper/lib/process"
	"github.com/bureau-foundation/timekeeper/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		process.Fatal(err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return &process.ExitError{Code: 2}
	}

	switch args[0] {
	case "--version", "version":
		version.Fprint(stdout, "timekeeper")
		return nil
	case "-h", "--help", "help":
		printUsage(stdout)
		return nil
	case "backtest":
		return backtestCommand(args[1:], stdout, stderr)
	case "run":
		return runCommand(args[1:], stderr)
	case "journal":
		return journalCommand(args[1:], stdout, stderr)
	}
	return fmt.Errorf("unknown command %q\n\nRun 'timekeeper --help' for usage.", args[0])
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `timekeeper: deterministic and live timer clocks.

Usage:
  timekeeper backtest [--config FILE] [--until TIME] [--step DURATION] [--journal PATH]
  timekeeper run [--config FILE]
  timekeeper journal inspect FILE [--diag] [--expect DIGEST]
  timekeeper --version

The config file is taken from --config, or from TIMEKEEPER_CONFIG
when the flag is absent.

Examples:
  # Replay a trading day and print the journal digest
  timekeeper backtest --config day.yaml --until 2026-01-05T21:00:00Z

  # Check a recorded journal against a known digest
  timekeeper journal inspect run.journal --expect 5c1f...
`)
}
