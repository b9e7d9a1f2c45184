// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schedule

import "time"

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	// AfterFunc waits for duration d, then calls f in its own
	// goroutine (real) or synchronously during Advance (fake). If
	// d <= 0, f runs as soon as possible: in a new goroutine (real)
	// or synchronously before AfterFunc returns (fake).
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending callback returned by AfterFunc.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the callback from running. Returns true if the call
// stops the timer, false if the callback has already started or the
// timer was already stopped. Stop does not wait for a running callback
// to return.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Real returns a Scheduler backed by time.AfterFunc.
func Real() Scheduler { return realScheduler{} }

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) *Timer {
	timer := time.AfterFunc(d, f)
	return &Timer{stopFunc: timer.Stop}
}
