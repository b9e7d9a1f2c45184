// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package nanos defines UnixNanos, the nanosecond UNIX timestamp used
// by every clock, timer, and event in timekeeper.
//
// Timestamps are unsigned: time before the UNIX epoch is not
// representable, and arithmetic that would go negative saturates at
// zero. Conversion to time.Time is always UTC and exists for display.
package nanos

import (
	"math"
	"time"
)

// UnixNanos is a UNIX timestamp in nanoseconds.
type UnixNanos uint64

// FromTime converts t to a UnixNanos. Times before the epoch map to 0.
func FromTime(t time.Time) UnixNanos {
	ns := t.UnixNano()
	if ns < 0 {
		return 0
	}
	return UnixNanos(ns)
}

// IsZero reports whether n is the zero timestamp.
func (n UnixNanos) IsZero() bool { return n == 0 }

// Micros returns n truncated to microseconds.
func (n UnixNanos) Micros() uint64 { return uint64(n) / 1_000 }

// Millis returns n truncated to milliseconds.
func (n UnixNanos) Millis() uint64 { return uint64(n) / 1_000_000 }

// Seconds returns n as fractional seconds.
func (n UnixNanos) Seconds() float64 { return float64(n) / 1e9 }

// Time returns n as a UTC time.Time.
func (n UnixNanos) Time() time.Time {
	if n > math.MaxInt64 {
		return time.Unix(0, math.MaxInt64).UTC()
	}
	return time.Unix(0, int64(n)).UTC()
}

// String formats n as RFC 3339 with nanosecond precision.
func (n UnixNanos) String() string {
	return n.Time().Format(time.RFC3339Nano)
}

// Add returns n+d. Negative durations saturate at zero, positive
// durations saturate at the maximum representable timestamp.
func (n UnixNanos) Add(d time.Duration) UnixNanos {
	if d < 0 {
		delta := uint64(-d)
		if delta > uint64(n) {
			return 0
		}
		return n - UnixNanos(delta)
	}
	sum := n + UnixNanos(d)
	if sum < n {
		return math.MaxUint64
	}
	return sum
}

// Sub returns the duration n-m, clamped to the range of time.Duration.
func (n UnixNanos) Sub(m UnixNanos) time.Duration {
	if n >= m {
		delta := uint64(n - m)
		if delta > math.MaxInt64 {
			return math.MaxInt64
		}
		return time.Duration(delta)
	}
	delta := uint64(m - n)
	if delta > math.MaxInt64 {
		return math.MinInt64
	}
	return -time.Duration(delta)
}

// Max returns the later of a and b.
func Max(a, b UnixNanos) UnixNanos {
	if a > b {
		return a
	}
	return b
}
