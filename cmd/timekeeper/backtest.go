// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/timekeeper/lib/clock"
	"github.com/bureau-foundation/timekeeper/lib/config"
	"github.com/bureau-foundation/timekeeper/lib/journal"
	"github.com/bureau-foundation/timekeeper/lib/nanos"
)

type backtestResult struct {
	events  int
	digest  journal.Digest
	journal string
}

func backtestCommand(args []string, stdout, stderr io.Writer) error {
	var (
		configPath  string
		until       string
		step        time.Duration
		journalPath string
	)
	flags := pflag.NewFlagSet("timekeeper backtest", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&configPath, "config", "", "path to the config file (default: $TIMEKEEPER_CONFIG)")
	flags.StringVar(&until, "until", "", "RFC 3339 end of the run (overrides backtest.until)")
	flags.DurationVar(&step, "step", 0, "clock advance per iteration (overrides backtest.step)")
	flags.StringVar(&journalPath, "journal", "", "journal output path (overrides journal.path)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flags.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q", flags.Arg(0))
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if until != "" {
		cfg.Backtest.Until, err = time.Parse(time.RFC3339Nano, until)
		if err != nil {
			return fmt.Errorf("parsing --until: %w", err)
		}
	}
	if step != 0 {
		if step < 0 {
			return fmt.Errorf("--step must be positive, got %v", step)
		}
		cfg.Backtest.Step = step
	}
	if journalPath != "" {
		cfg.Journal.Path = journalPath
	}

	logger, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := runBacktest(ctx, cfg, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "events: %d\n", result.events)
	fmt.Fprintf(stdout, "digest: %s\n", result.digest)
	if result.journal != "" {
		fmt.Fprintf(stdout, "journal: %s\n", result.journal)
	}
	return nil
}

// runBacktest drives a TestClock across [backtest.start,
// backtest.until] in backtest.step increments, delivering every event
// through the journal in time order.
func runBacktest(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backtestResult, error) {
	if cfg.Backtest.Start.IsZero() {
		return backtestResult{}, fmt.Errorf("backtest.start is required")
	}
	if cfg.Backtest.Until.IsZero() {
		return backtestResult{}, fmt.Errorf("backtest.until or --until is required")
	}
	if cfg.Backtest.Until.Before(cfg.Backtest.Start) {
		return backtestResult{}, fmt.Errorf("backtest.until %s is before backtest.start %s",
			cfg.Backtest.Until.Format(time.RFC3339), cfg.Backtest.Start.Format(time.RFC3339))
	}
	start := nanos.FromTime(cfg.Backtest.Start)
	until := nanos.FromTime(cfg.Backtest.Until)

	writer, err := openJournal(cfg.Journal)
	if err != nil {
		return backtestResult{}, fmt.Errorf("opening journal: %w", err)
	}

	c := clock.NewTestClock()
	c.SetTime(start)
	recorder := journal.NewRecorder(writer, eventLogger{logger: logger, level: slog.LevelDebug}, logger)
	c.RegisterDefaultHandler(recorder)

	jobs, err := registerTimers(c, cfg.Timers, recorder, logger)
	if err != nil {
		writer.Discard()
		return backtestResult{}, err
	}
	defer stopJobs(jobs)

	logger.Info("backtest starting",
		"clock", cfg.Clock.Name,
		"start", start.String(),
		"until", until.String(),
		"step", cfg.Backtest.Step,
		"timers", c.TimerCount(),
	)

	for now := start; now < until; {
		if err := ctx.Err(); err != nil {
			writer.Discard()
			return backtestResult{}, fmt.Errorf("backtest interrupted at %s: %w", now, err)
		}
		now = now.Add(cfg.Backtest.Step)
		if now > until {
			now = until
		}
		for _, matched := range c.MatchHandlers(c.AdvanceTime(now, true)) {
			matched.Invoke()
		}
	}

	if err := writer.Close(); err != nil {
		return backtestResult{}, fmt.Errorf("closing journal: %w", err)
	}
	result := backtestResult{
		events:  writer.Count(),
		digest:  writer.Digest(),
		journal: writer.Path(),
	}
	logger.Info("backtest complete",
		"events", result.events,
		"digest", result.digest.String(),
		"active_timers", c.TimerCount(),
	)
	return result, nil
}
