// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cron

import (
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/timekeeper/lib/clock"
	"github.com/bureau-foundation/timekeeper/lib/nanos"
	"github.com/bureau-foundation/timekeeper/lib/schedule"
	"github.com/bureau-foundation/timekeeper/lib/timebase"
	"github.com/bureau-foundation/timekeeper/lib/timer"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type firedTimes struct {
	mu    sync.Mutex
	times []nanos.UnixNanos
}

func (f *firedTimes) HandleEvent(event timer.TimeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.times = append(f.times, event.TsEvent)
}

func (f *firedTimes) snapshot() []nanos.UnixNanos {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.times)
}

func at(hour, minute int) nanos.UnixNanos {
	return nanos.FromTime(utc(2026, 1, 5, hour, minute))
}

// stepTestClock advances c by step up to target, invoking matched
// handlers after each advance the way a backtest loop does.
func stepTestClock(c *clock.TestClock, step time.Duration, target nanos.UnixNanos) {
	for c.TimestampNs() < target {
		next := min(c.TimestampNs().Add(step), target)
		for _, matched := range c.MatchHandlers(c.AdvanceTime(next, true)) {
			matched.Invoke()
		}
	}
}

func TestArmOnTestClock(t *testing.T) {
	c := clock.NewTestClock()
	c.SetTime(at(9, 0))
	fired := &firedTimes{}

	job, err := Arm(c, "hourly", mustParse(t, "@hourly"), fired, discardLogger())
	if err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if job.Name() != "hourly" {
		t.Errorf("Name() = %q", job.Name())
	}
	if got := c.NextTimeNs("hourly"); got != at(10, 0) {
		t.Fatalf("first occurrence %s, want %s", got, at(10, 0))
	}

	stepTestClock(c, 30*time.Minute, at(12, 30))

	want := []nanos.UnixNanos{at(10, 0), at(11, 0), at(12, 0)}
	if got := fired.snapshot(); !slices.Equal(got, want) {
		t.Fatalf("fired at %v, want %v", got, want)
	}
	if got := c.NextTimeNs("hourly"); got != at(13, 0) {
		t.Fatalf("pending occurrence %s, want %s", got, at(13, 0))
	}
}

func TestArmStop(t *testing.T) {
	c := clock.NewTestClock()
	c.SetTime(at(9, 0))
	fired := &firedTimes{}

	job, err := Arm(c, "hourly", mustParse(t, "0 * * * *"), fired, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	stepTestClock(c, 30*time.Minute, at(10, 30))
	job.Stop()
	stepTestClock(c, 30*time.Minute, at(14, 0))

	if got := fired.snapshot(); !slices.Equal(got, []nanos.UnixNanos{at(10, 0)}) {
		t.Fatalf("fired at %v, want only 10:00", got)
	}
	if got := c.TimerCount(); got != 0 {
		t.Fatalf("TimerCount() = %d after Stop", got)
	}
}

func TestArmHandlerCancelEndsChain(t *testing.T) {
	c := clock.NewTestClock()
	c.SetTime(at(9, 0))
	var count int
	handler := timer.HandlerFunc(func(event timer.TimeEvent) {
		count++
		c.CancelTimer(event.Name)
	})

	if _, err := Arm(c, "once", mustParse(t, "0 * * * *"), handler, discardLogger()); err != nil {
		t.Fatal(err)
	}
	stepTestClock(c, 30*time.Minute, at(14, 0))

	if count != 1 {
		t.Fatalf("handler ran %d times, want 1", count)
	}
}

func TestArmDeterministicAcrossRuns(t *testing.T) {
	run := func() []timer.TimeEvent {
		c := clock.NewTestClock()
		c.SetTime(at(9, 0))
		var events []timer.TimeEvent
		if _, err := Arm(c, "quarter", mustParse(t, "*/15 * * * *"), timer.HandlerFunc(func(event timer.TimeEvent) {
			events = append(events, event)
		}), discardLogger()); err != nil {
			t.Fatal(err)
		}
		stepTestClock(c, 5*time.Minute, at(11, 0))
		return events
	}

	first, second := run(), run()
	if len(first) != 8 {
		t.Fatalf("got %d quarter-hour events between 09:00 and 11:00, want 8", len(first))
	}
	if !slices.Equal(first, second) {
		t.Fatal("two identical runs produced different events")
	}
}

func TestArmNilHandler(t *testing.T) {
	if _, err := Arm(clock.NewTestClock(), "x", mustParse(t, "@daily"), nil, discardLogger()); err == nil {
		t.Fatal("Arm accepted a nil handler")
	}
}

func TestArmImpossibleSchedule(t *testing.T) {
	c := clock.NewTestClock()
	if _, err := Arm(c, "never", mustParse(t, "0 0 31 2 *"), &firedTimes{}, discardLogger()); err == nil {
		t.Fatal("Arm accepted a schedule with no occurrence")
	}
	if c.TimerCount() != 0 {
		t.Fatal("failed Arm registered a timer")
	}
}

func TestArmOnLiveClock(t *testing.T) {
	source := timebase.NewStatic(at(9, 0))
	scheduler := schedule.Fake(source)
	live := clock.NewLiveClock(clock.LiveClockConfig{
		Time:      source,
		Scheduler: scheduler,
		Logger:    discardLogger(),
	})
	fired := &firedTimes{}

	job, err := Arm(live, "hourly", mustParse(t, "@hourly"), fired, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	scheduler.AdvanceTo(at(12, 30))

	want := []nanos.UnixNanos{at(10, 0), at(11, 0), at(12, 0)}
	if got := fired.snapshot(); !slices.Equal(got, want) {
		t.Fatalf("fired at %v, want %v", got, want)
	}

	job.Stop()
	if got := scheduler.PendingCount(); got != 0 {
		t.Fatalf("PendingCount() = %d after Stop", got)
	}
}
