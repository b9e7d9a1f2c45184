// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cron

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/timekeeper/lib/nanos"
	"github.com/bureau-foundation/timekeeper/lib/timer"
)

// AlertClock is the part of a clock a Job drives. Both clock.TestClock
// and clock.LiveClock satisfy it.
type AlertClock interface {
	TimestampNs() nanos.UnixNanos
	SetTimeAlert(name string, alertTime nanos.UnixNanos, handler timer.Handler) error
	CancelTimer(name string)
}

// Job is a cron schedule realized as a chain of one-shot alerts on a
// clock. Each fire registers the alert for the following occurrence
// before delivering the event, so a handler that cancels the timer
// ends the chain.
type Job struct {
	clock    AlertClock
	name     string
	schedule Schedule
	handler  timer.Handler
	logger   *slog.Logger

	mu      sync.Mutex
	stopped bool
}

// Arm registers an alert named name at the first occurrence of
// schedule strictly after the clock's current time and keeps it
// re-arming. handler must not be nil.
//
// On a TestClock, advance in steps no longer than the schedule's
// spacing. An occurrence that falls inside an advance already
// committed is clamped to the clock's time and delivered late.
func Arm(clock AlertClock, name string, schedule Schedule, handler timer.Handler, logger *slog.Logger) (*Job, error) {
	if handler == nil {
		return nil, fmt.Errorf("cron: timer %q: nil handler", name)
	}
	if logger == nil {
		logger = slog.Default()
	}
	job := &Job{
		clock:    clock,
		name:     name,
		schedule: schedule,
		handler:  handler,
		logger:   logger.With("timer", name, "cron", schedule.String()),
	}
	if err := job.arm(clock.TimestampNs()); err != nil {
		return nil, err
	}
	return job, nil
}

// Name returns the name of the alert the job registers.
func (j *Job) Name() string { return j.name }

// Stop cancels the pending alert and prevents any in-flight fire from
// re-arming.
func (j *Job) Stop() {
	j.mu.Lock()
	j.stopped = true
	j.mu.Unlock()
	j.clock.CancelTimer(j.name)
}

func (j *Job) arm(after nanos.UnixNanos) error {
	next, err := j.schedule.NextNs(after)
	if err != nil {
		return err
	}
	return j.clock.SetTimeAlert(j.name, next, j)
}

// HandleEvent re-arms from the event's scheduled time, so occurrences
// do not drift with delivery latency, then delivers the event.
func (j *Job) HandleEvent(event timer.TimeEvent) {
	j.mu.Lock()
	stopped := j.stopped
	j.mu.Unlock()
	if stopped {
		return
	}

	if err := j.arm(event.TsEvent); err != nil {
		j.logger.Error("cron re-arm failed", "ts_event", uint64(event.TsEvent), "error", err)
	}
	j.handler.HandleEvent(event)
}
