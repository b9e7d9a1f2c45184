// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package timer implements the named timers owned by timekeeper clocks
// and the events they produce.
//
// A timer has a name, an interval, a start time, and an optional stop
// time (zero means unbounded). It fires at start+interval,
// start+2*interval, and so on, up to and including the stop time. An
// alert is the one-shot form: it fires exactly once at its alert time.
// Once a timer has fired for the last time, or has been cancelled, it
// is expired and produces no further events.
//
// There are two variants:
//
//   - [TestTimer] is computed. Advance returns, in order, every event
//     scheduled between the timer's last checkpoint and a target time.
//     Nothing waits and nothing runs in the background, so the result
//     depends only on the inputs. Event IDs are derived from the timer
//     name and event time, which keeps replays bit-for-bit identical.
//   - [LiveTimer] fires autonomously. Start arms a callback on a
//     schedule.Scheduler; each fire delivers a [TimeEvent] to the
//     timer's bound [Handler] and re-arms for the next interval.
//     Cancel is cooperative: it prevents future fires but lets a fire
//     that is already running complete.
//
// A [Handler] is the single-method interface through which events
// reach the surrounding application. [TimeEventHandler] pairs one
// fired event with the handler resolved for it.
package timer
