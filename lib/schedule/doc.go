// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package schedule provides the background scheduling primitive that
// drives live timers.
//
// A live timer never sleeps on its own goroutine. It asks a [Scheduler]
// to call it back after a delay and re-arms itself after each fire. In
// production, [Real] hands the callback to time.AfterFunc. In tests,
// [Fake] provides a scheduler that runs callbacks only when Advance is
// called, and moves a static timebase.AtomicTime to each callback's
// deadline before invoking it, so the timer observes the same time it
// would have observed in production.
//
// # FakeScheduler Synchronization
//
// Live timers arm their first callback synchronously inside Start, so
// most tests can call Advance immediately. When a callback is armed
// from another goroutine, use WaitForTimers to block until it is
// registered before advancing.
package schedule
