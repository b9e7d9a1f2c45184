// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for timekeeper
// packages.
//
// [RequireReceive] and [RequireClosed] wrap the timeout safety valve
// (select with a time.After fallback) used by the few tests that run
// live timers against the real scheduler. Every other test drives time
// through schedule.FakeScheduler and a static timebase.AtomicTime, and
// must not wait on the wall clock.
//
// [UniqueID] generates monotonically increasing identifiers for timer
// names in tests that register many timers concurrently.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
