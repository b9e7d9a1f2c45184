// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the binary entrypoint helper for
// timekeeper commands: reporting the error returned by run() and
// exiting with the right code, before or after the structured logger
// exists.
package process
