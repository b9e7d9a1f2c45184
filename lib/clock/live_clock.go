// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"errors"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/timekeeper/lib/nanos"
	"github.com/bureau-foundation/timekeeper/lib/schedule"
	"github.com/bureau-foundation/timekeeper/lib/timebase"
	"github.com/bureau-foundation/timekeeper/lib/timer"
)

// LiveClockConfig configures a LiveClock. The zero value is a
// production clock on the process-wide realtime source with no
// metrics.
type LiveClockConfig struct {
	// Name labels log lines and metric series. Default: "live".
	Name string

	// Time is the time source. Default: timebase.Realtime(). Tests
	// pass a static source shared with a schedule.FakeScheduler.
	Time *timebase.AtomicTime

	// Scheduler drives timer firing. Default: schedule.Real().
	Scheduler schedule.Scheduler

	// Logger receives cancellation failures and handler panics.
	// Default: slog.Default().
	Logger *slog.Logger

	// Registerer, if set, receives the clock's Prometheus collectors.
	Registerer prometheus.Registerer
}

// LiveClock is the real-time clock. Timestamps come from a shared
// monotonic source and never repeat. Each registered timer fires on
// its own in the background.
//
// LiveClock is safe for concurrent use. Handlers run on timer
// goroutines and may register or cancel timers on the clock that
// fired them, including replacing themselves.
type LiveClock struct {
	name      string
	time      *timebase.AtomicTime
	scheduler schedule.Scheduler
	logger    *slog.Logger
	metrics   *liveClockMetrics

	mu             sync.Mutex
	timers         map[string]*timer.LiveTimer
	defaultHandler timer.Handler
}

var _ Clock = (*LiveClock)(nil)

// NewLiveClock returns a LiveClock with no timers.
func NewLiveClock(config LiveClockConfig) *LiveClock {
	if config.Name == "" {
		config.Name = "live"
	}
	if config.Time == nil {
		config.Time = timebase.Realtime()
	}
	if config.Scheduler == nil {
		config.Scheduler = schedule.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	c := &LiveClock{
		name:      config.Name,
		time:      config.Time,
		scheduler: config.Scheduler,
		logger:    config.Logger.With("clock", config.Name),
		timers:    make(map[string]*timer.LiveTimer),
	}
	if config.Registerer != nil {
		c.metrics = newLiveClockMetrics(config.Registerer, config.Name, func() float64 {
			return float64(c.TimerCount())
		})
	}
	return c
}

// Timers returns a snapshot of the registry, including expired
// timers that have not been cancelled.
func (c *LiveClock) Timers() map[string]*timer.LiveTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.timers)
}

// UTCNow returns the source time as a UTC time.Time.
func (c *LiveClock) UTCNow() time.Time { return c.time.TimeNs().Time() }

// TimestampNs returns the source time in nanoseconds.
func (c *LiveClock) TimestampNs() nanos.UnixNanos { return c.time.TimeNs() }

// TimestampUs returns the source time in microseconds.
func (c *LiveClock) TimestampUs() uint64 { return c.time.TimeUs() }

// TimestampMs returns the source time in milliseconds.
func (c *LiveClock) TimestampMs() uint64 { return c.time.TimeMs() }

// Timestamp returns the source time in fractional seconds.
func (c *LiveClock) Timestamp() float64 { return c.time.TimeSeconds() }

// TimerNames returns the names of timers that have not expired.
func (c *LiveClock) TimerNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.timers))
	for name, t := range c.timers {
		if !t.IsExpired() {
			names = append(names, name)
		}
	}
	return names
}

// TimerCount returns the number of timers that have not expired.
func (c *LiveClock) TimerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, t := range c.timers {
		if !t.IsExpired() {
			count++
		}
	}
	return count
}

// RegisterDefaultHandler replaces the default handler. Running timers
// without an override deliver to it from their next fire.
func (c *LiveClock) RegisterDefaultHandler(handler timer.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultHandler = handler
}

// SetTimeAlert registers and starts a one-shot timer. An alert time at
// or before now fires at now.
func (c *LiveClock) SetTimeAlert(name string, alertTime nanos.UnixNanos, handler timer.Handler) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := c.checkHandler(name, handler); err != nil {
		return err
	}

	// An alert requested for a moment already past still fires once,
	// immediately.
	alertTime = nanos.Max(alertTime, c.time.TimeNs())
	t, err := timer.NewLiveAlert(name, alertTime, c.bind(name, handler), c.timerConfig())
	if err != nil {
		return err
	}
	c.install(name, t)
	c.metrics.observeRegistered("alert")
	t.Start()
	return nil
}

// SetTimer registers and starts a repeating timer, cancelling any
// timer it replaces.
func (c *LiveClock) SetTimer(name string, interval time.Duration, start, stop nanos.UnixNanos, handler timer.Handler) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := checkInterval(name, interval); err != nil {
		return err
	}
	if err := c.checkHandler(name, handler); err != nil {
		return err
	}

	t, err := timer.NewLiveTimer(name, interval, start, stop, c.bind(name, handler), c.timerConfig())
	if err != nil {
		return err
	}
	c.install(name, t)
	c.metrics.observeRegistered("interval")
	t.Start()
	return nil
}

// NextTimeNs returns the named timer's next fire time, or zero.
func (c *LiveClock) NextTimeNs(name string) nanos.UnixNanos {
	c.mu.Lock()
	t, ok := c.timers[name]
	c.mu.Unlock()
	if !ok {
		return 0
	}
	return t.NextTimeNs()
}

// CancelTimer stops and removes the named timer. Unknown names are
// ignored.
func (c *LiveClock) CancelTimer(name string) {
	c.mu.Lock()
	t, ok := c.timers[name]
	delete(c.timers, name)
	c.mu.Unlock()

	if ok {
		c.cancel(t)
	}
}

// CancelTimers stops and removes every timer. A failed cancel is
// logged and the sweep continues.
func (c *LiveClock) CancelTimers() {
	c.mu.Lock()
	timers := c.timers
	c.timers = make(map[string]*timer.LiveTimer)
	c.mu.Unlock()

	for _, t := range timers {
		c.cancel(t)
	}
}

func (c *LiveClock) checkHandler(name string, handler timer.Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return checkHandler(name, handler, c.defaultHandler)
}

func (c *LiveClock) timerConfig() timer.LiveTimerConfig {
	return timer.LiveTimerConfig{
		Time:      c.time,
		Scheduler: c.scheduler,
		Logger:    c.logger,
	}
}

// install stores t under name and releases any timer it replaces. The
// timer is stored before it is started, so a handler that fires
// synchronously during Start already finds it registered.
func (c *LiveClock) install(name string, t *timer.LiveTimer) {
	c.mu.Lock()
	previous, replaced := c.timers[name]
	c.timers[name] = t
	c.mu.Unlock()

	if replaced {
		c.release(previous)
	}
}

// release cancels a timer displaced by a replacement. A concurrent
// registration may have stored the displaced timer without starting it
// yet; its Start then arms nothing, so that is not a failure.
func (c *LiveClock) release(t *timer.LiveTimer) {
	err := t.Cancel()
	if errors.Is(err, timer.ErrNotStarted) {
		c.logger.Debug("replaced timer before it started", "timer", t.Name())
		return
	}
	if err != nil {
		c.metrics.observeCancelFailure()
		c.logger.Error("timer cancel failed", "timer", t.Name(), "error", err)
	}
}

// cancel stops t's background firer. Failures are logged and counted;
// the caller has already removed t from the registry.
func (c *LiveClock) cancel(t *timer.LiveTimer) {
	if err := t.Cancel(); err != nil {
		c.metrics.observeCancelFailure()
		c.logger.Error("timer cancel failed", "timer", t.Name(), "error", err)
	}
}

// bind returns the handler a new live timer delivers to. The returned
// handler resolves the override or the clock's current default on each
// fire.
func (c *LiveClock) bind(name string, override timer.Handler) timer.Handler {
	return &boundHandler{clock: c, name: name, override: override}
}

// boundHandler routes a live timer's events to the resolved handler.
type boundHandler struct {
	clock    *LiveClock
	name     string
	override timer.Handler
}

func (h *boundHandler) HandleEvent(event timer.TimeEvent) {
	h.clock.mu.Lock()
	handler := resolveHandler(h.override, h.clock.defaultHandler)
	h.clock.mu.Unlock()

	if handler == nil {
		h.clock.metrics.observeUnhandled()
		h.clock.logger.Error("no handler for time event",
			"timer", h.name,
			"event_id", event.EventID,
			"ts_event", uint64(event.TsEvent),
		)
		return
	}
	h.clock.metrics.observeFire()
	handler.HandleEvent(event)
}
