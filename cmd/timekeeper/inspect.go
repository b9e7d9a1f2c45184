// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/timekeeper/lib/codec"
	"github.com/bureau-foundation/timekeeper/lib/journal"
	"github.com/bureau-foundation/timekeeper/lib/process"
)

func journalCommand(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] != "inspect" {
		return fmt.Errorf("usage: timekeeper journal inspect FILE [--diag] [--expect DIGEST]")
	}
	return inspectCommand(args[1:], stdout, stderr)
}

func inspectCommand(args []string, stdout, stderr io.Writer) error {
	var (
		diag   bool
		expect string
	)
	flags := pflag.NewFlagSet("timekeeper journal inspect", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.BoolVar(&diag, "diag", false, "print each record in CBOR diagnostic notation")
	flags.StringVar(&expect, "expect", "", "exit with status 2 unless the journal has this digest")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("journal inspect takes exactly one FILE argument")
	}
	path := flags.Arg(0)

	var want journal.Digest
	if expect != "" {
		var err error
		want, err = journal.ParseDigest(expect)
		if err != nil {
			return fmt.Errorf("parsing --expect: %w", err)
		}
	}

	events, err := journal.ReadAll(path)
	if err != nil {
		return err
	}

	if diag {
		sequence, err := journal.ReadSequence(path)
		if err != nil {
			return err
		}
		for len(sequence) > 0 {
			notation, rest, err := codec.DiagnoseFirst(sequence)
			if err != nil {
				return fmt.Errorf("diagnosing record: %w", err)
			}
			fmt.Fprintln(stdout, notation)
			sequence = rest
		}
	} else {
		for _, event := range events {
			fmt.Fprintln(stdout, event)
		}
	}

	digest, err := journal.DigestEvents(events)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "events: %d\n", len(events))
	fmt.Fprintf(stdout, "digest: %s\n", digest)

	if expect != "" && digest != want {
		fmt.Fprintf(stderr, "digest mismatch: journal has %s, expected %s\n", digest, want)
		return &process.ExitError{Code: 2}
	}
	return nil
}
