// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"log/slog"

	"github.com/bureau-foundation/timekeeper/lib/timer"
)

// Recorder is a timer.Handler that journals every event before
// passing it to the next handler. A write failure is logged and the
// event is still forwarded; a broken journal must not stall the
// engine.
type Recorder struct {
	writer *Writer
	next   timer.Handler
	logger *slog.Logger
}

var _ timer.Handler = (*Recorder)(nil)

// NewRecorder returns a Recorder appending to writer. next may be nil,
// in which case events are only journaled.
func NewRecorder(writer *Writer, next timer.Handler, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{writer: writer, next: next, logger: logger}
}

func (r *Recorder) HandleEvent(event timer.TimeEvent) {
	if err := r.writer.Append(event); err != nil {
		r.logger.Error("journal append failed",
			"timer", event.Name,
			"event_id", event.EventID,
			"error", err,
		)
	}
	if r.next != nil {
		r.next.HandleEvent(event)
	}
}
