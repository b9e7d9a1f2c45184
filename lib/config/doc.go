// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for timekeeper.
//
// Configuration is loaded from a single file specified by either the
// TIMEKEEPER_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no discovery and no search path.
//
// A config names the clock, lists the timers to register on it, and
// configures the backtest window, the event journal, the metrics
// endpoint and logging. Each timer entry sets exactly one of interval,
// alert or cron:
//
//	timers:
//	  - name: bars
//	    interval: 1m
//	    start: 2026-01-05T14:30:00Z
//	  - name: open
//	    alert: 2026-01-05T14:30:00Z
//	  - name: nightly
//	    cron: "0 0 * * *"
//
// Environment-specific sections (development, staging, production)
// override journal, metrics and log settings when [Config].Environment
// matches. Production defaults to JSON logs.
//
// ${HOME}, ${ENVIRONMENT} and ${VAR:-default} patterns are expanded in
// the journal path after loading.
//
// Call [Config.Validate] before use; it reports every problem at once.
package config
