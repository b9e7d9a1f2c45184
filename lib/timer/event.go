// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timer

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/timekeeper/lib/nanos"
)

var (
	// ErrInvalidTimerConfig is returned when a timer is constructed
	// with an empty name, a non-positive interval, or a stop time
	// before its start time.
	ErrInvalidTimerConfig = errors.New("invalid timer config")

	// ErrCancelFailed is returned when a live timer's background
	// firer cannot be stopped cleanly.
	ErrCancelFailed = errors.New("timer cancel failed")

	// ErrNotStarted accompanies ErrCancelFailed when the cancelled
	// live timer was never started.
	ErrNotStarted = errors.New("timer not started")
)

// TimeEvent is produced each time a timer fires. Values are immutable
// once created.
type TimeEvent struct {
	// Name is the name of the timer that fired.
	Name string `cbor:"name"`

	// EventID uniquely identifies the event. Computed timers derive it
	// from Name and TsEvent; live timers generate a random one.
	EventID uuid.UUID `cbor:"event_id"`

	// TsEvent is the time the event was scheduled for.
	TsEvent nanos.UnixNanos `cbor:"ts_event"`

	// TsInit is the time the event was created: the advance target for
	// computed timers, the time source reading at fire for live timers.
	TsInit nanos.UnixNanos `cbor:"ts_init"`
}

func (e TimeEvent) String() string {
	return fmt.Sprintf("TimeEvent(name=%s, event_id=%s, ts_event=%d, ts_init=%d)",
		e.Name, e.EventID, e.TsEvent, e.TsInit)
}

// eventNamespace scopes deterministic event IDs. Changing it changes
// every computed event ID and therefore every journal digest.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://bureau.foundation/timekeeper/time-event"))

// deterministicEventID returns a name-based (version 5) UUID for the
// event a computed timer fires at tsEvent.
func deterministicEventID(name string, tsEvent nanos.UnixNanos) uuid.UUID {
	return uuid.NewSHA1(eventNamespace, []byte(name+"@"+strconv.FormatUint(uint64(tsEvent), 10)))
}

// Handler receives fired events.
type Handler interface {
	HandleEvent(event TimeEvent)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(event TimeEvent)

// HandleEvent calls f(event).
func (f HandlerFunc) HandleEvent(event TimeEvent) { f(event) }

// TimeEventHandler pairs a fired event with the handler that should
// process it.
type TimeEventHandler struct {
	Event   TimeEvent
	Handler Handler
}

// Invoke delivers the event to the handler.
func (h TimeEventHandler) Invoke() { h.Handler.HandleEvent(h.Event) }

// validate checks the construction parameters shared by both timer
// variants.
func validate(name string, interval time.Duration, start, stop nanos.UnixNanos) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTimerConfig)
	}
	if interval <= 0 {
		return fmt.Errorf("%w: timer %q: interval %v is not positive", ErrInvalidTimerConfig, name, interval)
	}
	if stop != 0 && stop < start {
		return fmt.Errorf("%w: timer %q: stop time %d before start time %d", ErrInvalidTimerConfig, name, stop, start)
	}
	return nil
}

// pastStop reports whether a fire at next would fall after a non-zero
// stop time.
func pastStop(next, stop nanos.UnixNanos) bool {
	return stop != 0 && next > stop
}

// followingFire returns the fire one interval after next. It reports
// false when that would lie beyond the largest representable
// timestamp, where Add saturates.
func followingFire(next nanos.UnixNanos, interval time.Duration) (nanos.UnixNanos, bool) {
	following := next.Add(interval)
	return following, uint64(following-next) == uint64(interval)
}
