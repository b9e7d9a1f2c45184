// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"os"
)

// ExitError signals a non-zero exit code for an outcome the command
// has already reported, such as a digest mismatch. Fatal exits with
// the code without printing anything further.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// Fatal terminates the process for an error returned from run(). An
// error carrying an ExitCode method exits with that code silently;
// anything else is written to stderr as "error: err" with exit code 1.
// Use it in main() where the structured logger may not be initialized.
func Fatal(err error) {
	os.Exit(report(err, os.Stderr))
}

// report writes err to w unless it carries its own exit code, and
// returns the code to exit with.
func report(err error, w interface{ WriteString(string) (int, error) }) int {
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	w.WriteString(fmt.Sprintf("error: %v\n", err))
	return 1
}
