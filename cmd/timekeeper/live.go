// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/timekeeper/lib/clock"
	"github.com/bureau-foundation/timekeeper/lib/config"
	"github.com/bureau-foundation/timekeeper/lib/journal"
	"github.com/bureau-foundation/timekeeper/lib/schedule"
	"github.com/bureau-foundation/timekeeper/lib/timebase"
	"github.com/bureau-foundation/timekeeper/lib/timer"
)

// liveOptions substitutes the clock's time source and scheduler.
// Production runs leave both nil.
type liveOptions struct {
	time      *timebase.AtomicTime
	scheduler schedule.Scheduler

	// ready, if set, is called with the metrics address once every
	// timer is registered.
	ready func(metricsAddress string)
}

func runCommand(args []string, stderr io.Writer) error {
	var configPath string
	flags := pflag.NewFlagSet("timekeeper run", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&configPath, "config", "", "path to the config file (default: $TIMEKEEPER_CONFIG)")
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
	logger, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runLive(ctx, cfg, logger, liveOptions{})
}

// runLive registers the configured timers on a LiveClock and delivers
// events until ctx is done, then cancels every timer and closes the
// journal.
func runLive(ctx context.Context, cfg *config.Config, logger *slog.Logger, options liveOptions) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := clock.NewLiveClock(clock.LiveClockConfig{
		Name:       cfg.Clock.Name,
		Time:       options.time,
		Scheduler:  options.scheduler,
		Logger:     logger,
		Registerer: registry,
	})

	var handler timer.Handler = eventLogger{logger: logger, level: slog.LevelInfo}
	var writer *journal.Writer
	if cfg.Journal.Path != "" {
		var err error
		writer, err = openJournal(cfg.Journal)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		handler = journal.NewRecorder(writer, handler, logger)
	}
	c.RegisterDefaultHandler(handler)

	var server *http.Server
	var metricsAddress string
	if cfg.Metrics.Listen != "" {
		listener, err := net.Listen("tcp", cfg.Metrics.Listen)
		if err != nil {
			if writer != nil {
				writer.Discard()
			}
			return fmt.Errorf("listening for metrics on %s: %w", cfg.Metrics.Listen, err)
		}
		metricsAddress = listener.Addr().String()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
		server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("serving metrics", "address", metricsAddress)
	}

	jobs, err := registerTimers(c, cfg.Timers, handler, logger)
	if err != nil {
		c.CancelTimers()
		shutdownServer(server, logger)
		if writer != nil {
			writer.Discard()
		}
		return err
	}
	logger.Info("clock running", "clock", cfg.Clock.Name, "timers", c.TimerCount())
	if options.ready != nil {
		options.ready(metricsAddress)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	stopJobs(jobs)
	c.CancelTimers()
	shutdownServer(server, logger)

	if writer != nil {
		if err := writer.Close(); err != nil {
			return fmt.Errorf("closing journal: %w", err)
		}
		logger.Info("journal closed",
			"path", writer.Path(),
			"events", writer.Count(),
			"digest", writer.Digest().String(),
		)
	}
	return nil
}

func shutdownServer(server *http.Server, logger *slog.Logger) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown failed", "error", err)
	}
}
