// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timer

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/timekeeper/lib/nanos"
	"github.com/bureau-foundation/timekeeper/lib/schedule"
	"github.com/bureau-foundation/timekeeper/lib/timebase"
)

// LiveTimerConfig supplies the collaborators a live timer runs
// against. Zero fields take production defaults: the process-wide
// realtime source, the real scheduler, and slog.Default().
type LiveTimerConfig struct {
	Time      *timebase.AtomicTime
	Scheduler schedule.Scheduler
	Logger    *slog.Logger
}

func (c LiveTimerConfig) withDefaults() LiveTimerConfig {
	if c.Time == nil {
		c.Time = timebase.Realtime()
	}
	if c.Scheduler == nil {
		c.Scheduler = schedule.Real()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// LiveTimer fires against real (or scheduler-simulated) time and
// delivers each event to its bound handler. All methods are safe for
// concurrent use.
type LiveTimer struct {
	name      string
	interval  time.Duration
	start     nanos.UnixNanos
	stop      nanos.UnixNanos
	oneShot   bool
	handler   Handler
	source    *timebase.AtomicTime
	scheduler schedule.Scheduler
	logger    *slog.Logger

	next    atomic.Uint64
	expired atomic.Bool

	// mu guards the lifecycle fields below. It is never held while
	// the handler runs or while calling into the scheduler.
	mu         sync.Mutex
	started    bool
	cancelled  bool
	generation uint64
	pending    *schedule.Timer
}

// NewLiveTimer returns a repeating live timer bound to handler. The
// timer does nothing until Start is called. A timer whose first fire
// falls after stop is expired from the outset and never fires.
func NewLiveTimer(name string, interval time.Duration, start, stop nanos.UnixNanos, handler Handler, config LiveTimerConfig) (*LiveTimer, error) {
	if err := validate(name, interval, start, stop); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: timer %q: nil handler", ErrInvalidTimerConfig, name)
	}
	t := newLiveTimer(name, interval, start, stop, handler, config)
	next, ok := followingFire(start, interval)
	t.next.Store(uint64(next))
	t.expired.Store(!ok || pastStop(next, stop))
	return t, nil
}

// NewLiveAlert returns a one-shot live timer that fires once at
// alertTime. An alert time in the past fires as soon as the timer is
// started.
func NewLiveAlert(name string, alertTime nanos.UnixNanos, handler Handler, config LiveTimerConfig) (*LiveTimer, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidTimerConfig)
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: timer %q: nil handler", ErrInvalidTimerConfig, name)
	}
	t := newLiveTimer(name, 0, alertTime, alertTime, handler, config)
	t.oneShot = true
	t.next.Store(uint64(alertTime))
	return t, nil
}

func newLiveTimer(name string, interval time.Duration, start, stop nanos.UnixNanos, handler Handler, config LiveTimerConfig) *LiveTimer {
	config = config.withDefaults()
	return &LiveTimer{
		name:      name,
		interval:  interval,
		start:     start,
		stop:      stop,
		handler:   handler,
		source:    config.Time,
		scheduler: config.Scheduler,
		logger:    config.Logger.With("timer", name),
	}
}

// Name returns the timer's name.
func (t *LiveTimer) Name() string { return t.name }

// Interval returns the repeat interval, or zero for an alert.
func (t *LiveTimer) Interval() time.Duration { return t.interval }

// StartTimeNs returns the time the timer counts intervals from.
func (t *LiveTimer) StartTimeNs() nanos.UnixNanos { return t.start }

// StopTimeNs returns the stop time, or zero if unbounded.
func (t *LiveTimer) StopTimeNs() nanos.UnixNanos { return t.stop }

// NextTimeNs returns the time of the next scheduled fire.
func (t *LiveTimer) NextTimeNs() nanos.UnixNanos { return nanos.UnixNanos(t.next.Load()) }

// IsExpired reports whether the timer has fired for the last time or
// has been cancelled.
func (t *LiveTimer) IsExpired() bool { return t.expired.Load() }

// Start arms the background firer. Panics if called more than once.
// Starting a timer that was cancelled first arms nothing.
func (t *LiveTimer) Start() {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		panic("timer: LiveTimer.Start called twice for " + t.name)
	}
	t.started = true
	t.mu.Unlock()

	t.arm()
}

// Cancel stops the background firer. A fire already in progress is
// allowed to complete, but no further fire is armed. Cancelling an
// already-cancelled timer is a no-op.
//
// Cancelling a timer that was never started returns an error matching
// both ErrCancelFailed and ErrNotStarted, since there is no firer to
// stop; the timer is still marked cancelled so a later Start arms
// nothing.
func (t *LiveTimer) Cancel() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancelled {
		return nil
	}
	t.cancelled = true
	t.expired.Store(true)
	if !t.started {
		return fmt.Errorf("%w: %w: timer %q", ErrCancelFailed, ErrNotStarted, t.name)
	}
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	return nil
}

// arm schedules the next fire. With a fake scheduler a zero delay runs
// fire synchronously, which re-enters arm; the generation counter
// keeps the outer call from overwriting the newer pending handle.
func (t *LiveTimer) arm() {
	if t.expired.Load() {
		return
	}

	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.generation++
	generation := t.generation
	t.mu.Unlock()

	delay := t.NextTimeNs().Sub(t.source.TimeNs())
	if delay < 0 {
		delay = 0
	}
	handle := t.scheduler.AfterFunc(delay, t.fire)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		handle.Stop()
		return
	}
	if generation == t.generation {
		t.pending = handle
	}
}

// fire delivers one event and re-arms. The cancellation flag is
// checked once before delivery; a cancel that arrives while the
// handler runs takes effect at the re-arm.
func (t *LiveTimer) fire() {
	t.mu.Lock()
	cancelled := t.cancelled
	t.mu.Unlock()
	if cancelled || t.expired.Load() {
		return
	}

	event := TimeEvent{
		Name:    t.name,
		EventID: uuid.New(),
		TsEvent: t.NextTimeNs(),
		TsInit:  t.source.TimeNs(),
	}
	t.deliver(event)
	t.iterate()
	t.arm()
}

// deliver invokes the handler. A panic is logged and the timer keeps
// its schedule.
func (t *LiveTimer) deliver(event TimeEvent) {
	defer func() {
		if recovered := recover(); recovered != nil {
			t.logger.Error("time event handler panicked",
				"event_id", event.EventID,
				"ts_event", uint64(event.TsEvent),
				"panic", recovered,
			)
		}
	}()
	t.handler.HandleEvent(event)
}

func (t *LiveTimer) iterate() {
	if t.oneShot {
		t.expired.Store(true)
		return
	}
	next, ok := followingFire(t.NextTimeNs(), t.interval)
	if !ok {
		t.expired.Store(true)
		return
	}
	t.next.Store(uint64(next))
	if pastStop(next, t.stop) {
		t.expired.Store(true)
	}
}
