// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/bureau-foundation/timekeeper/lib/nanos"
	"github.com/bureau-foundation/timekeeper/lib/timebase"
	"github.com/bureau-foundation/timekeeper/lib/timer"
)

// TestClock is the deterministic clock. Its time starts at zero and
// changes only through SetTime and AdvanceTime. Timers are computed:
// nothing fires until AdvanceTime is called, and everything happens on
// the caller's goroutine.
//
// TestClock is not safe for concurrent use. Handlers invoked from
// MatchHandlers results may register and cancel timers, since the
// caller invokes them outside AdvanceTime.
type TestClock struct {
	time           *timebase.AtomicTime
	timers         map[string]*timer.TestTimer
	defaultHandler timer.Handler
	handlers       map[string]timer.Handler
}

var _ Clock = (*TestClock)(nil)

// NewTestClock returns a TestClock at time zero with no timers.
func NewTestClock() *TestClock {
	return &TestClock{
		time:     timebase.NewStatic(0),
		timers:   make(map[string]*timer.TestTimer),
		handlers: make(map[string]timer.Handler),
	}
}

// SetTime moves the clock to t without firing timers. Use it to place
// a fresh clock at the start of a simulation. Panics if t is before
// the current time.
func (c *TestClock) SetTime(t nanos.UnixNanos) {
	if now := c.time.TimeNs(); t < now {
		panic(fmt.Sprintf("clock: SetTime(%d) moves time backward from %d", t, now))
	}
	c.time.SetTime(t)
}

// AdvanceTime computes the events every active timer fires after its
// last checkpoint and at or before to, merged and sorted ascending by
// TsEvent. Events with equal TsEvent keep timer-name order.
//
// If commit is true the clock's time becomes to. If commit is false
// the clock's time is unchanged, but the timers' checkpoints still
// move: the returned events will not be produced again.
//
// Panics if to is before the current time.
func (c *TestClock) AdvanceTime(to nanos.UnixNanos, commit bool) []timer.TimeEvent {
	if now := c.time.TimeNs(); to < now {
		panic(fmt.Sprintf("clock: AdvanceTime(%d) moves time backward from %d", to, now))
	}
	if commit {
		c.time.SetTime(to)
	}

	var events []timer.TimeEvent
	for _, name := range slices.Sorted(maps.Keys(c.timers)) {
		t := c.timers[name]
		if t.IsExpired() {
			continue
		}
		events = append(events, t.Advance(to)...)
	}

	slices.SortStableFunc(events, func(a, b timer.TimeEvent) int {
		switch {
		case a.TsEvent < b.TsEvent:
			return -1
		case a.TsEvent > b.TsEvent:
			return 1
		default:
			return 0
		}
	})
	return events
}

// MatchHandlers pairs each event with the handler that should process
// it: the timer's own handler if one was registered, otherwise the
// current default. Order is preserved, so events from AdvanceTime come
// back in time order.
//
// Panics if an event resolves to no handler. Registration guarantees a
// handler exists, so this indicates a broken invariant.
func (c *TestClock) MatchHandlers(events []timer.TimeEvent) []timer.TimeEventHandler {
	matched := make([]timer.TimeEventHandler, 0, len(events))
	for _, event := range events {
		handler := resolveHandler(c.handlers[event.Name], c.defaultHandler)
		if handler == nil {
			panic(fmt.Sprintf("clock: no handler for time event %s", event))
		}
		matched = append(matched, timer.TimeEventHandler{Event: event, Handler: handler})
	}
	return matched
}

// Timers returns a snapshot of the registry, including expired
// timers that have not been cancelled.
func (c *TestClock) Timers() map[string]*timer.TestTimer {
	return maps.Clone(c.timers)
}

// UTCNow returns the clock's time as a UTC time.Time.
func (c *TestClock) UTCNow() time.Time { return c.time.TimeNs().Time() }

// TimestampNs returns the clock's time in nanoseconds.
func (c *TestClock) TimestampNs() nanos.UnixNanos { return c.time.TimeNs() }

// TimestampUs returns the clock's time in microseconds.
func (c *TestClock) TimestampUs() uint64 { return c.time.TimeUs() }

// TimestampMs returns the clock's time in milliseconds.
func (c *TestClock) TimestampMs() uint64 { return c.time.TimeMs() }

// Timestamp returns the clock's time in fractional seconds.
func (c *TestClock) Timestamp() float64 { return c.time.TimeSeconds() }

// TimerNames returns the names of timers that have not expired.
func (c *TestClock) TimerNames() []string {
	names := make([]string, 0, len(c.timers))
	for name, t := range c.timers {
		if !t.IsExpired() {
			names = append(names, name)
		}
	}
	return names
}

// TimerCount returns the number of timers that have not expired.
func (c *TestClock) TimerCount() int {
	count := 0
	for _, t := range c.timers {
		if !t.IsExpired() {
			count++
		}
	}
	return count
}

// RegisterDefaultHandler replaces the default handler. MatchHandlers
// resolves to the current default, so the change applies to timers
// already registered without an override.
func (c *TestClock) RegisterDefaultHandler(handler timer.Handler) {
	c.defaultHandler = handler
}

// SetTimeAlert registers a one-shot timer. An alert time at or before
// now fires on the next advance, at now.
func (c *TestClock) SetTimeAlert(name string, alertTime nanos.UnixNanos, handler timer.Handler) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := checkHandler(name, handler, c.defaultHandler); err != nil {
		return err
	}

	alertTime = nanos.Max(alertTime, c.time.TimeNs())
	t, err := timer.NewTestAlert(name, alertTime)
	if err != nil {
		return err
	}
	c.register(name, t, handler)
	return nil
}

// SetTimer registers a repeating timer, replacing any timer with the
// same name.
func (c *TestClock) SetTimer(name string, interval time.Duration, start, stop nanos.UnixNanos, handler timer.Handler) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := checkInterval(name, interval); err != nil {
		return err
	}
	if err := checkHandler(name, handler, c.defaultHandler); err != nil {
		return err
	}

	t, err := timer.NewTestTimer(name, interval, start, stop)
	if err != nil {
		return err
	}
	c.register(name, t, handler)
	return nil
}

// register stores t under name, replacing any existing timer. A
// replacement registered without a handler drops the previous timer's
// override so it falls back to the default.
func (c *TestClock) register(name string, t *timer.TestTimer, handler timer.Handler) {
	if previous, ok := c.timers[name]; ok {
		previous.Cancel()
	}
	c.timers[name] = t
	if handler != nil {
		c.handlers[name] = handler
	} else {
		delete(c.handlers, name)
	}
}

// NextTimeNs returns the named timer's next fire time, or zero.
func (c *TestClock) NextTimeNs(name string) nanos.UnixNanos {
	t, ok := c.timers[name]
	if !ok {
		return 0
	}
	return t.NextTimeNs()
}

// CancelTimer removes the named timer and its handler override.
// Unknown names are ignored.
func (c *TestClock) CancelTimer(name string) {
	t, ok := c.timers[name]
	if !ok {
		return
	}
	t.Cancel()
	delete(c.timers, name)
	delete(c.handlers, name)
}

// CancelTimers removes every timer and handler override.
func (c *TestClock) CancelTimers() {
	for _, t := range c.timers {
		t.Cancel()
	}
	clear(c.timers)
	clear(c.handlers)
}
