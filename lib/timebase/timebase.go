// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package timebase provides AtomicTime, the nanosecond time source
// behind every timekeeper clock.
//
// An AtomicTime runs in one of two modes:
//
//   - Static: the value changes only through SetTime or IncrementTime.
//     A TestClock owns one of these.
//   - Realtime: every read reflects the wall clock and is strictly
//     greater than any previous read from the same instance, so two
//     observations never share a nanosecond value.
//
// All methods are lock-free and safe for concurrent use. [Realtime]
// returns the single process-wide realtime source that live clocks
// share by reference; tests construct isolated instances with
// [NewRealtime] or [NewStatic] instead.
package timebase

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/timekeeper/lib/nanos"
)

// AtomicTime is a monotonic nanosecond time source.
type AtomicTime struct {
	realtime bool
	value    atomic.Uint64

	// now reads the wall clock in realtime mode. Replaced in tests to
	// simulate a wall clock that stalls or steps backward.
	now func() nanos.UnixNanos
}

// NewStatic returns a static AtomicTime starting at initial.
func NewStatic(initial nanos.UnixNanos) *AtomicTime {
	source := &AtomicTime{}
	source.value.Store(uint64(initial))
	return source
}

// NewRealtime returns an isolated realtime AtomicTime backed by the
// system wall clock.
func NewRealtime() *AtomicTime {
	return newRealtime(func() nanos.UnixNanos { return nanos.FromTime(time.Now()) })
}

func newRealtime(now func() nanos.UnixNanos) *AtomicTime {
	source := &AtomicTime{realtime: true, now: now}
	source.value.Store(uint64(now()))
	return source
}

var realtimeSource = sync.OnceValue(NewRealtime)

// Realtime returns the process-wide realtime source. The same instance
// is returned on every call.
func Realtime() *AtomicTime { return realtimeSource() }

// IsRealtime reports whether the source tracks the wall clock.
func (a *AtomicTime) IsRealtime() bool { return a.realtime }

// TimeNs returns the current time in nanoseconds.
//
// In realtime mode the result is max(wall clock, previous+1), published
// with a compare-and-swap so concurrent readers each get a distinct,
// increasing value.
func (a *AtomicTime) TimeNs() nanos.UnixNanos {
	if !a.realtime {
		return nanos.UnixNanos(a.value.Load())
	}
	for {
		previous := a.value.Load()
		next := uint64(a.now())
		if next <= previous {
			next = previous + 1
		}
		if a.value.CompareAndSwap(previous, next) {
			return nanos.UnixNanos(next)
		}
	}
}

// TimeUs returns the current time in microseconds.
func (a *AtomicTime) TimeUs() uint64 { return a.TimeNs().Micros() }

// TimeMs returns the current time in milliseconds.
func (a *AtomicTime) TimeMs() uint64 { return a.TimeNs().Millis() }

// TimeSeconds returns the current time in fractional seconds.
func (a *AtomicTime) TimeSeconds() float64 { return a.TimeNs().Seconds() }

// SetTime stores t. Panics on a realtime source: the wall clock cannot
// be set.
func (a *AtomicTime) SetTime(t nanos.UnixNanos) {
	if a.realtime {
		panic("timebase: SetTime on realtime source")
	}
	a.value.Store(uint64(t))
}

// IncrementTime moves a static source forward by d and returns the new
// time. Panics on a realtime source or a negative d.
func (a *AtomicTime) IncrementTime(d time.Duration) nanos.UnixNanos {
	if a.realtime {
		panic("timebase: IncrementTime on realtime source")
	}
	if d < 0 {
		panic("timebase: IncrementTime with negative duration")
	}
	return nanos.UnixNanos(a.value.Add(uint64(d)))
}
