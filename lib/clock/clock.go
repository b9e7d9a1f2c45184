// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bureau-foundation/timekeeper/lib/nanos"
	"github.com/bureau-foundation/timekeeper/lib/timer"
)

var (
	// ErrInvalidName is returned when a timer name is empty, only
	// whitespace, or contains characters outside printable ASCII.
	ErrInvalidName = errors.New("invalid timer name")

	// ErrInvalidInterval is returned when a repeating timer is
	// requested with a non-positive interval.
	ErrInvalidInterval = errors.New("invalid timer interval")

	// ErrNoHandlerAvailable is returned when a timer is registered
	// without a handler and the clock has no default handler.
	ErrNoHandlerAvailable = errors.New("no handler available")
)

// Clock is the time source and timer registry an engine runs against.
//
// An active timer is one that has not expired. TimerNames and
// TimerCount report active timers only.
type Clock interface {
	// UTCNow returns the current time as a UTC time.Time.
	UTCNow() time.Time

	// TimestampNs returns the current UNIX time in nanoseconds.
	TimestampNs() nanos.UnixNanos

	// TimestampUs returns the current UNIX time in microseconds.
	TimestampUs() uint64

	// TimestampMs returns the current UNIX time in milliseconds.
	TimestampMs() uint64

	// Timestamp returns the current UNIX time in fractional seconds.
	Timestamp() float64

	// TimerNames returns the names of active timers, in no
	// particular order.
	TimerNames() []string

	// TimerCount returns the number of active timers.
	TimerCount() int

	// RegisterDefaultHandler replaces the handler used by timers
	// registered without one.
	RegisterDefaultHandler(handler timer.Handler)

	// SetTimeAlert registers a one-shot timer that fires at
	// alertTime. A nil handler means "use the default handler". An
	// alert time at or before now fires at now.
	SetTimeAlert(name string, alertTime nanos.UnixNanos, handler timer.Handler) error

	// SetTimer registers a repeating timer that fires every interval
	// after start, up to and including stop. A zero stop means
	// unbounded. A nil handler means "use the default handler".
	SetTimer(name string, interval time.Duration, start, stop nanos.UnixNanos, handler timer.Handler) error

	// NextTimeNs returns the named timer's next fire time, or zero if
	// no such timer is registered.
	NextTimeNs(name string) nanos.UnixNanos

	// CancelTimer removes the named timer. Unknown names are ignored.
	CancelTimer(name string)

	// CancelTimers removes every timer.
	CancelTimers()
}

// checkName validates a caller-supplied timer name.
func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: %q is only whitespace", ErrInvalidName, name)
	}
	for i := 0; i < len(name); i++ {
		if name[i] < 0x20 || name[i] > 0x7e {
			return fmt.Errorf("%w: %q contains a non-printable or non-ASCII byte at offset %d", ErrInvalidName, name, i)
		}
	}
	return nil
}

// checkInterval validates a repeating timer's interval.
func checkInterval(name string, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: timer %q: %v", ErrInvalidInterval, name, interval)
	}
	return nil
}

// checkHandler fails unless an explicit or default handler exists.
func checkHandler(name string, handler, defaultHandler timer.Handler) error {
	if handler == nil && defaultHandler == nil {
		return fmt.Errorf("%w: timer %q has no handler and no default is registered", ErrNoHandlerAvailable, name)
	}
	return nil
}

// resolveHandler returns the per-timer handler if present, otherwise
// the default. Returns nil only when neither exists.
func resolveHandler(override, defaultHandler timer.Handler) timer.Handler {
	if override != nil {
		return override
	}
	return defaultHandler
}
