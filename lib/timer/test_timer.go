// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timer

import (
	"fmt"
	"time"

	"github.com/bureau-foundation/timekeeper/lib/nanos"
)

// TestTimer is the computed timer variant used by deterministic
// clocks. It is not safe for concurrent use; the owning clock
// serializes access.
type TestTimer struct {
	name     string
	interval time.Duration
	start    nanos.UnixNanos
	stop     nanos.UnixNanos
	next     nanos.UnixNanos
	oneShot  bool
	expired  bool
}

// NewTestTimer returns a repeating timer that fires every interval
// after start, up to and including stop. A zero stop means the timer
// never stops on its own. A timer whose first fire falls after stop is
// expired from the outset and never fires.
func NewTestTimer(name string, interval time.Duration, start, stop nanos.UnixNanos) (*TestTimer, error) {
	if err := validate(name, interval, start, stop); err != nil {
		return nil, err
	}
	next, ok := followingFire(start, interval)
	return &TestTimer{
		name:     name,
		interval: interval,
		start:    start,
		stop:     stop,
		next:     next,
		expired:  !ok || pastStop(next, stop),
	}, nil
}

// NewTestAlert returns a one-shot timer that fires once at alertTime.
func NewTestAlert(name string, alertTime nanos.UnixNanos) (*TestTimer, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidTimerConfig)
	}
	return &TestTimer{
		name:    name,
		start:   alertTime,
		stop:    alertTime,
		next:    alertTime,
		oneShot: true,
	}, nil
}

// Name returns the timer's name.
func (t *TestTimer) Name() string { return t.name }

// Interval returns the repeat interval, or zero for an alert.
func (t *TestTimer) Interval() time.Duration { return t.interval }

// StartTimeNs returns the time the timer counts intervals from.
func (t *TestTimer) StartTimeNs() nanos.UnixNanos { return t.start }

// StopTimeNs returns the stop time, or zero if unbounded.
func (t *TestTimer) StopTimeNs() nanos.UnixNanos { return t.stop }

// NextTimeNs returns the time of the next scheduled fire.
func (t *TestTimer) NextTimeNs() nanos.UnixNanos { return t.next }

// IsExpired reports whether the timer will fire again.
func (t *TestTimer) IsExpired() bool { return t.expired }

// Advance returns every event scheduled after the previous checkpoint
// and at or before to, in ascending TsEvent order, and moves the
// checkpoint to to. An expired timer returns nil.
func (t *TestTimer) Advance(to nanos.UnixNanos) []TimeEvent {
	var events []TimeEvent
	for !t.expired && t.next <= to {
		events = append(events, TimeEvent{
			Name:    t.name,
			EventID: deterministicEventID(t.name, t.next),
			TsEvent: t.next,
			TsInit:  to,
		})
		t.iterate()
	}
	if !t.expired && t.stop != 0 && to >= t.stop {
		t.expired = true
	}
	return events
}

// iterate moves next to the following fire time, expiring the timer
// when it passes the stop time or the end of representable time.
func (t *TestTimer) iterate() {
	if t.oneShot {
		t.expired = true
		return
	}
	following, ok := followingFire(t.next, t.interval)
	if !ok {
		t.expired = true
		return
	}
	t.next = following
	if pastStop(t.next, t.stop) {
		t.expired = true
	}
}

// Cancel expires the timer. Computed timers hold no background
// resources, so Cancel cannot fail.
func (t *TestTimer) Cancel() { t.expired = true }
