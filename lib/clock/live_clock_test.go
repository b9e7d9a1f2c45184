// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bureau-foundation/timekeeper/lib/nanos"
	"github.com/bureau-foundation/timekeeper/lib/schedule"
	"github.com/bureau-foundation/timekeeper/lib/testutil"
	"github.com/bureau-foundation/timekeeper/lib/timebase"
	"github.com/bureau-foundation/timekeeper/lib/timer"
)

// syncHandler collects events from timer goroutines.
type syncHandler struct {
	mu     sync.Mutex
	events []timer.TimeEvent
}

func (h *syncHandler) HandleEvent(event timer.TimeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *syncHandler) times() []nanos.UnixNanos {
	h.mu.Lock()
	defer h.mu.Unlock()
	return eventTimes(h.events)
}

type liveFixture struct {
	clock     *LiveClock
	source    *timebase.AtomicTime
	scheduler *schedule.FakeScheduler
	registry  *prometheus.Registry
}

func newLiveFixture(t *testing.T, start nanos.UnixNanos) *liveFixture {
	t.Helper()
	source := timebase.NewStatic(start)
	scheduler := schedule.Fake(source)
	registry := prometheus.NewRegistry()
	return &liveFixture{
		clock: NewLiveClock(LiveClockConfig{
			Name:       "test",
			Time:       source,
			Scheduler:  scheduler,
			Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
			Registerer: registry,
		}),
		source:    source,
		scheduler: scheduler,
		registry:  registry,
	}
}

func TestLiveClockReadsSource(t *testing.T) {
	fixture := newLiveFixture(t, 2_000_000_000)
	clock := fixture.clock

	if got := clock.TimestampNs(); got != 2_000_000_000 {
		t.Errorf("TimestampNs() = %d", got)
	}
	if got := clock.TimestampUs(); got != 2_000_000 {
		t.Errorf("TimestampUs() = %d", got)
	}
	if got := clock.TimestampMs(); got != 2_000 {
		t.Errorf("TimestampMs() = %d", got)
	}
	if got := clock.Timestamp(); got != 2.0 {
		t.Errorf("Timestamp() = %f", got)
	}
	if got := clock.UTCNow(); !got.Equal(time.Unix(2, 0)) {
		t.Errorf("UTCNow() = %v", got)
	}
}

func TestLiveClockDefaultUsesRealtimeSingleton(t *testing.T) {
	clock := NewLiveClock(LiveClockConfig{})
	if clock.time != timebase.Realtime() {
		t.Fatal("zero config should borrow the process-wide realtime source")
	}
	first := clock.TimestampNs()
	second := clock.TimestampNs()
	if second <= first {
		t.Fatalf("live timestamps not strictly increasing: %d then %d", first, second)
	}
}

func TestLiveClockTimerFiresInBackground(t *testing.T) {
	fixture := newLiveFixture(t, 0)
	handler := &syncHandler{}

	if err := fixture.clock.SetTimer("bars", 10, 0, 0, handler); err != nil {
		t.Fatalf("SetTimer: %v", err)
	}
	fixture.scheduler.AdvanceTo(35)

	if got := handler.times(); !slices.Equal(got, []nanos.UnixNanos{10, 20, 30}) {
		t.Fatalf("fired at %v, want [10 20 30]", got)
	}
	if got := fixture.clock.NextTimeNs("bars"); got != 40 {
		t.Fatalf("NextTimeNs() = %d, want 40", got)
	}
	if got := promtestutil.ToFloat64(fixture.clock.metrics.timerFires); got != 3 {
		t.Fatalf("timer_fires_total = %v, want 3", got)
	}
}

func TestLiveClockAlertClampedToNow(t *testing.T) {
	fixture := newLiveFixture(t, 1_000)
	handler := &syncHandler{}

	if err := fixture.clock.SetTimeAlert("overdue", 10, handler); err != nil {
		t.Fatalf("SetTimeAlert: %v", err)
	}

	if got := handler.times(); !slices.Equal(got, []nanos.UnixNanos{1_000}) {
		t.Fatalf("fired at %v, want exactly once at 1000", got)
	}
	fixture.scheduler.AdvanceTo(10_000)
	if got := len(handler.times()); got != 1 {
		t.Fatalf("alert fired %d times, want 1", got)
	}
	if got := fixture.clock.TimerCount(); got != 0 {
		t.Fatalf("TimerCount() = %d after alert fired, want 0", got)
	}
}

func TestLiveClockRegistrationWithoutHandlerFails(t *testing.T) {
	fixture := newLiveFixture(t, 0)

	if err := fixture.clock.SetTimeAlert("x", 100, nil); !errors.Is(err, ErrNoHandlerAvailable) {
		t.Fatalf("SetTimeAlert = %v, want ErrNoHandlerAvailable", err)
	}
	if err := fixture.clock.SetTimer("y", 10, 0, 0, nil); !errors.Is(err, ErrNoHandlerAvailable) {
		t.Fatalf("SetTimer = %v, want ErrNoHandlerAvailable", err)
	}
	if got := len(fixture.clock.Timers()); got != 0 {
		t.Fatalf("registry has %d entries after failed registration", got)
	}
	if got := fixture.scheduler.PendingCount(); got != 0 {
		t.Fatalf("failed registration armed %d callbacks", got)
	}
}

func TestLiveClockValidation(t *testing.T) {
	fixture := newLiveFixture(t, 0)
	handler := &syncHandler{}

	if err := fixture.clock.SetTimeAlert("", 10, handler); !errors.Is(err, ErrInvalidName) {
		t.Errorf("empty name: %v", err)
	}
	if err := fixture.clock.SetTimer("t", 0, 0, 0, handler); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("zero interval: %v", err)
	}
	if err := fixture.clock.SetTimer("t", 10, 50, 10, handler); !errors.Is(err, timer.ErrInvalidTimerConfig) {
		t.Errorf("stop before start: %v", err)
	}
	if got := fixture.clock.TimerCount(); got != 0 {
		t.Fatalf("TimerCount() = %d, want 0", got)
	}
}

func TestLiveClockDefaultHandlerResolvedAtFireTime(t *testing.T) {
	fixture := newLiveFixture(t, 0)
	first := &syncHandler{}
	second := &syncHandler{}
	fixture.clock.RegisterDefaultHandler(first)

	if err := fixture.clock.SetTimer("ticks", 10, 0, 0, nil); err != nil {
		t.Fatal(err)
	}
	fixture.scheduler.AdvanceTo(10)
	fixture.clock.RegisterDefaultHandler(second)
	fixture.scheduler.AdvanceTo(20)

	if got := first.times(); !slices.Equal(got, []nanos.UnixNanos{10}) {
		t.Fatalf("first default got %v, want [10]", got)
	}
	if got := second.times(); !slices.Equal(got, []nanos.UnixNanos{20}) {
		t.Fatalf("second default got %v, want [20]", got)
	}
}

func TestLiveClockOverrideWinsOverDefault(t *testing.T) {
	fixture := newLiveFixture(t, 0)
	defaultHandler := &syncHandler{}
	override := &syncHandler{}
	fixture.clock.RegisterDefaultHandler(defaultHandler)

	if err := fixture.clock.SetTimeAlert("own", 5, override); err != nil {
		t.Fatal(err)
	}
	fixture.scheduler.AdvanceTo(10)

	if len(override.times()) != 1 || len(defaultHandler.times()) != 0 {
		t.Fatalf("override got %d, default got %d; want 1 and 0", len(override.times()), len(defaultHandler.times()))
	}
}

func TestLiveClockCancelIdempotent(t *testing.T) {
	fixture := newLiveFixture(t, 0)
	handler := &syncHandler{}
	if err := fixture.clock.SetTimer("t", 10, 0, 0, handler); err != nil {
		t.Fatal(err)
	}

	fixture.clock.CancelTimer("missing")
	fixture.clock.CancelTimer("t")
	fixture.clock.CancelTimer("t")

	fixture.scheduler.AdvanceTo(100)
	if got := len(handler.times()); got != 0 {
		t.Fatalf("cancelled timer fired %d times", got)
	}
	if got := fixture.clock.NextTimeNs("t"); got != 0 {
		t.Fatalf("NextTimeNs(cancelled) = %d, want 0", got)
	}
	if got := fixture.scheduler.PendingCount(); got != 0 {
		t.Fatalf("PendingCount() = %d, want 0", got)
	}
}

func TestLiveClockCancelTimersReleasesAll(t *testing.T) {
	fixture := newLiveFixture(t, 0)
	handler := &syncHandler{}
	for i := 0; i < 5; i++ {
		if err := fixture.clock.SetTimer(testutil.UniqueID("timer"), 10, 0, 0, handler); err != nil {
			t.Fatal(err)
		}
	}
	if got := fixture.scheduler.PendingCount(); got != 5 {
		t.Fatalf("PendingCount() = %d, want 5", got)
	}

	fixture.clock.CancelTimers()

	if got := fixture.clock.TimerCount(); got != 0 {
		t.Fatalf("TimerCount() = %d, want 0", got)
	}
	if got := fixture.scheduler.PendingCount(); got != 0 {
		t.Fatalf("PendingCount() = %d after CancelTimers, want 0", got)
	}
}

func TestLiveClockReplacementCancelsPrevious(t *testing.T) {
	fixture := newLiveFixture(t, 0)
	old := &syncHandler{}
	replacement := &syncHandler{}

	if err := fixture.clock.SetTimer("t", 10, 0, 0, old); err != nil {
		t.Fatal(err)
	}
	if err := fixture.clock.SetTimer("t", 25, 0, 0, replacement); err != nil {
		t.Fatal(err)
	}

	if got := fixture.clock.TimerCount(); got != 1 {
		t.Fatalf("TimerCount() = %d, want 1", got)
	}
	if got := fixture.scheduler.PendingCount(); got != 1 {
		t.Fatalf("PendingCount() = %d, want 1 (old firer released)", got)
	}

	fixture.scheduler.AdvanceTo(50)
	if got := len(old.times()); got != 0 {
		t.Fatalf("replaced timer fired %d times", got)
	}
	if got := replacement.times(); !slices.Equal(got, []nanos.UnixNanos{25, 50}) {
		t.Fatalf("replacement fired at %v, want [25 50]", got)
	}
}

func TestLiveClockReplacingUnstartedTimerIsNotAFailure(t *testing.T) {
	fixture := newLiveFixture(t, 0)
	handler := &syncHandler{}
	fixture.clock.RegisterDefaultHandler(handler)

	// A concurrent registration that has stored its timer but not yet
	// started it.
	pending, err := timer.NewLiveTimer("t", 10, 0, 0, fixture.clock.bind("t", nil), fixture.clock.timerConfig())
	if err != nil {
		t.Fatal(err)
	}
	fixture.clock.install("t", pending)

	if err := fixture.clock.SetTimer("t", 25, 0, 0, nil); err != nil {
		t.Fatal(err)
	}
	if got := promtestutil.ToFloat64(fixture.clock.metrics.cancelFailures); got != 0 {
		t.Fatalf("cancel_failures_total = %v, want 0", got)
	}
	if !pending.IsExpired() {
		t.Fatal("displaced timer should be cancelled")
	}

	pending.Start()
	fixture.scheduler.AdvanceTo(50)
	if got := handler.times(); !slices.Equal(got, []nanos.UnixNanos{25, 50}) {
		t.Fatalf("fired at %v, want [25 50] from the replacement only", got)
	}
}

func TestLiveClockStopBeforeFirstFire(t *testing.T) {
	fixture := newLiveFixture(t, 0)
	handler := &syncHandler{}

	if err := fixture.clock.SetTimer("x", 100, 0, 50, handler); err != nil {
		t.Fatal(err)
	}
	fixture.scheduler.AdvanceTo(200)

	if got := handler.times(); len(got) != 0 {
		t.Fatalf("fired at %v, want no events", got)
	}
	if got := fixture.clock.TimerCount(); got != 0 {
		t.Fatalf("TimerCount() = %d, want 0", got)
	}
}

func TestLiveClockExpiredTimersExcluded(t *testing.T) {
	fixture := newLiveFixture(t, 0)
	handler := &syncHandler{}

	if err := fixture.clock.SetTimer("bounded", 10, 0, 20, handler); err != nil {
		t.Fatal(err)
	}
	if err := fixture.clock.SetTimer("forever", 10, 0, 0, handler); err != nil {
		t.Fatal(err)
	}
	fixture.scheduler.AdvanceTo(50)

	if names := fixture.clock.TimerNames(); !slices.Equal(names, []string{"forever"}) {
		t.Fatalf("TimerNames() = %v, want [forever]", names)
	}
	if got := promtestutil.ToFloat64(fixture.clock.metrics.timersRegistered.WithLabelValues("interval")); got != 2 {
		t.Fatalf("timers_registered_total{kind=interval} = %v, want 2", got)
	}
	if err := promtestutil.GatherAndCompare(fixture.registry, strings.NewReader(`
# HELP timekeeper_live_clock_active_timers Current count of registered timers that have not expired.
# TYPE timekeeper_live_clock_active_timers gauge
timekeeper_live_clock_active_timers{clock="test"} 1
`), "timekeeper_live_clock_active_timers"); err != nil {
		t.Fatalf("active_timers gauge: %v", err)
	}
}

func TestLiveClockHandlerReplacesItself(t *testing.T) {
	fixture := newLiveFixture(t, 0)
	var fired []nanos.UnixNanos
	var mu sync.Mutex
	var rearm timer.HandlerFunc
	rearm = func(event timer.TimeEvent) {
		mu.Lock()
		fired = append(fired, event.TsEvent)
		count := len(fired)
		mu.Unlock()
		if count < 3 {
			if err := fixture.clock.SetTimeAlert("chain", event.TsEvent+10, rearm); err != nil {
				t.Errorf("re-arm: %v", err)
			}
		}
	}
	if err := fixture.clock.SetTimeAlert("chain", 10, rearm); err != nil {
		t.Fatal(err)
	}

	fixture.scheduler.AdvanceTo(100)

	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(fired, []nanos.UnixNanos{10, 20, 30}) {
		t.Fatalf("chain fired at %v, want [10 20 30]", fired)
	}
}

func TestLiveClockRealTime(t *testing.T) {
	clock := NewLiveClock(LiveClockConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	defer clock.CancelTimers()

	var count int
	var mu sync.Mutex
	done := make(chan struct{})
	handler := timer.HandlerFunc(func(timer.TimeEvent) {
		mu.Lock()
		defer mu.Unlock()
		count++
		if count == 3 {
			close(done)
		}
	})

	start := clock.TimestampNs()
	if err := clock.SetTimer("real", time.Millisecond, start, start.Add(3*time.Millisecond), handler); err != nil {
		t.Fatalf("SetTimer: %v", err)
	}
	testutil.RequireClosed(t, done, 5*time.Second, "three real-time fires")
}
