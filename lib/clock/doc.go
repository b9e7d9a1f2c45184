// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the time-and-scheduling core shared by
// simulated and live engines.
//
// A [Clock] reports the current time and owns a registry of named
// timers. Two implementations behave identically from the caller's
// point of view:
//
//   - [TestClock] is deterministic. Its time moves only when
//     AdvanceTime (or SetTime) is called, and AdvanceTime returns the
//     events that fired, merged across timers and sorted by scheduled
//     time. The caller pairs them with handlers via MatchHandlers and
//     invokes them itself, so a backtest produces the same event stream
//     on every run.
//   - [LiveClock] tracks the wall clock through the process-wide
//     timebase.Realtime source. Each registered timer fires in the
//     background on its own goroutine and delivers events directly to
//     its handler; nothing is buffered for later matching.
//
// # Handler Resolution
//
// Every timer must have a handler: the one passed at registration, or
// the clock's default handler. Registration fails with
// [ErrNoHandlerAvailable] when neither exists.
//
// Resolution of the default happens at fire time on both clocks. A
// timer registered without its own handler uses whatever default is
// current when it fires, so replacing the default redirects future
// fires of those timers. TestClock resolves in MatchHandlers; LiveClock
// binds such timers to a proxy that reads the clock's default on each
// fire.
//
// # Names
//
// Timer names are caller-chosen. A name must be non-empty, not only
// whitespace, and printable ASCII. Registering a name that already
// exists replaces the earlier timer.
package clock
