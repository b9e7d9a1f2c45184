// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/bureau-foundation/timekeeper/lib/clock"
	"github.com/bureau-foundation/timekeeper/lib/config"
	"github.com/bureau-foundation/timekeeper/lib/cron"
	"github.com/bureau-foundation/timekeeper/lib/journal"
	"github.com/bureau-foundation/timekeeper/lib/nanos"
	"github.com/bureau-foundation/timekeeper/lib/timer"
)

// loadConfig reads and validates the config at path, or the one named
// by TIMEKEEPER_CONFIG when path is empty.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger writing to w. The auto format
// picks text for a terminal and JSON for anything else.
func newLogger(settings config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := settings.SlogLevel()
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}

	format := settings.Format
	if format == "auto" {
		format = "json"
		if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
			format = "text"
		}
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, options)), nil
	}
	return slog.New(slog.NewTextHandler(w, options)), nil
}

// openJournal starts the configured journal. With no path configured
// the writer discards its output but still maintains the digest.
func openJournal(settings config.JournalConfig) (*journal.Writer, error) {
	compression, err := journal.ParseCompression(settings.Compression)
	if err != nil {
		return nil, err
	}
	if settings.Path == "" {
		return journal.NewWriter(io.Discard, journal.None)
	}
	return journal.Create(settings.Path, compression)
}

// eventLogger logs every event it receives.
type eventLogger struct {
	logger *slog.Logger
	level  slog.Level
}

func (h eventLogger) HandleEvent(event timer.TimeEvent) {
	h.logger.Log(context.Background(), h.level, "timer fired",
		"timer", event.Name,
		"event_id", event.EventID,
		"ts_event", event.TsEvent.String(),
		"latency", event.TsInit.Sub(event.TsEvent),
	)
}

// registerTimers installs every configured timer on c. Interval and
// alert timers are registered without a handler and resolve the
// clock's default when they fire. Cron entries become jobs delivering
// to handler; the caller stops them on shutdown.
func registerTimers(c clock.Clock, timers []config.TimerConfig, handler timer.Handler, logger *slog.Logger) ([]*cron.Job, error) {
	var jobs []*cron.Job
	for _, entry := range timers {
		var err error
		switch entry.Kind() {
		case config.IntervalTimer:
			start := c.TimestampNs()
			if !entry.Start.IsZero() {
				start = nanos.FromTime(entry.Start)
			}
			var stop nanos.UnixNanos
			if !entry.Stop.IsZero() {
				stop = nanos.FromTime(entry.Stop)
			}
			err = c.SetTimer(entry.Name, entry.Interval, start, stop, nil)
		case config.AlertTimer:
			err = c.SetTimeAlert(entry.Name, nanos.FromTime(entry.Alert), nil)
		case config.CronTimer:
			var schedule cron.Schedule
			schedule, err = cron.Parse(entry.Cron)
			if err == nil {
				var job *cron.Job
				job, err = cron.Arm(c, entry.Name, schedule, handler, logger)
				if job != nil {
					jobs = append(jobs, job)
				}
			}
		default:
			err = fmt.Errorf("no timer kind set")
		}
		if err != nil {
			stopJobs(jobs)
			return nil, fmt.Errorf("registering timer %q: %w", entry.Name, err)
		}
		logger.Debug("timer registered", "timer", entry.Name, "kind", entry.Kind(), "next", c.NextTimeNs(entry.Name).String())
	}
	return jobs, nil
}

func stopJobs(jobs []*cron.Job) {
	for _, job := range jobs {
		job.Stop()
	}
}
