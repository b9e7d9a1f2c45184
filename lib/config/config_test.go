// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "timekeeper.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Clock.Name != "engine" {
		t.Errorf("expected clock.name=engine, got %s", cfg.Clock.Name)
	}
	if cfg.Backtest.Step != time.Minute {
		t.Errorf("expected backtest.step=1m, got %v", cfg.Backtest.Step)
	}
	if cfg.Journal.Compression != "zstd" {
		t.Errorf("expected journal.compression=zstd, got %s", cfg.Journal.Compression)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_RequiresTimekeeperConfig(t *testing.T) {
	t.Setenv("TIMEKEEPER_CONFIG", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when TIMEKEEPER_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "TIMEKEEPER_CONFIG environment variable not set") {
		t.Errorf("unexpected error message: %q", err)
	}
}

func TestLoad_WithTimekeeperConfig(t *testing.T) {
	path := writeConfig(t, `
environment: staging
clock:
  name: staging-engine
`)
	t.Setenv("TIMEKEEPER_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.Clock.Name != "staging-engine" {
		t.Errorf("expected clock.name=staging-engine, got %s", cfg.Clock.Name)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
environment: development

clock:
  name: sim

timers:
  - name: bars
    interval: 1m
    start: 2026-01-05T14:30:00Z
    stop: 2026-01-05T21:00:00Z
  - name: open
    alert: 2026-01-05T14:30:00Z
  - name: nightly
    cron: "0 0 * * *"

backtest:
  start: 2026-01-05T14:00:00Z
  until: 2026-01-06T00:00:00Z
  step: 30s

journal:
  path: /var/lib/timekeeper/run.journal
  compression: none

metrics:
  listen: 127.0.0.1:9464

log:
  level: debug
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if len(cfg.Timers) != 3 {
		t.Fatalf("expected 3 timers, got %d", len(cfg.Timers))
	}
	bars := cfg.Timers[0]
	if bars.Kind() != IntervalTimer || bars.Interval != time.Minute {
		t.Errorf("bars: kind=%s interval=%v", bars.Kind(), bars.Interval)
	}
	wantStart := time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC)
	if !bars.Start.Equal(wantStart) {
		t.Errorf("bars.start = %v, want %v", bars.Start, wantStart)
	}
	if cfg.Timers[1].Kind() != AlertTimer {
		t.Errorf("open: kind=%s, want alert", cfg.Timers[1].Kind())
	}
	if cfg.Timers[2].Kind() != CronTimer || cfg.Timers[2].Cron != "0 0 * * *" {
		t.Errorf("nightly: kind=%s cron=%q", cfg.Timers[2].Kind(), cfg.Timers[2].Cron)
	}

	if cfg.Backtest.Step != 30*time.Second {
		t.Errorf("expected backtest.step=30s, got %v", cfg.Backtest.Step)
	}
	if cfg.Journal.Compression != "none" {
		t.Errorf("expected journal.compression=none, got %s", cfg.Journal.Compression)
	}
	if cfg.Metrics.Listen != "127.0.0.1:9464" {
		t.Errorf("expected metrics.listen=127.0.0.1:9464, got %s", cfg.Metrics.Listen)
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, %v; want debug", level, err)
	}
}

func TestLoadFile_Empty(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("LoadFile(empty) failed: %v", err)
	}
	if cfg.Clock.Name != "engine" {
		t.Errorf("empty file should keep defaults, got clock.name=%s", cfg.Clock.Name)
	}
}

func TestLoadFile_UnknownField(t *testing.T) {
	_, err := LoadFile(writeConfig(t, `
timers:
  - name: bars
    intervl: 1m
`))
	if err == nil {
		t.Fatal("expected error for misspelled field")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: production

journal:
  path: /tmp/dev.journal

production:
  journal:
    path: /var/lib/timekeeper/prod.journal
  metrics:
    listen: 0.0.0.0:9464
  log:
    level: warn
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Journal.Path != "/var/lib/timekeeper/prod.journal" {
		t.Errorf("journal.path = %s", cfg.Journal.Path)
	}
	if cfg.Metrics.Listen != "0.0.0.0:9464" {
		t.Errorf("metrics.listen = %s", cfg.Metrics.Listen)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %s", cfg.Log.Level)
	}
	// Compression was not overridden.
	if cfg.Journal.Compression != "zstd" {
		t.Errorf("journal.compression = %s", cfg.Journal.Compression)
	}
}

func TestProductionDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "environment: production\n"))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("production without overrides should log json, got %s", cfg.Log.Format)
	}
}

func TestExpandVariables(t *testing.T) {
	t.Setenv("HOME", "/home/trader")
	t.Setenv("TIMEKEEPER_TEST_RUN", "")

	cfg, err := LoadFile(writeConfig(t, `
environment: staging
journal:
  path: ${HOME}/journals/${ENVIRONMENT}-${TIMEKEEPER_TEST_RUN:-adhoc}.journal
`))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	want := "/home/trader/journals/staging-adhoc.journal"
	if cfg.Journal.Path != want {
		t.Errorf("journal.path = %s, want %s", cfg.Journal.Path, want)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("TIMEKEEPER_TEST_VAR", "from-env")

	tests := []struct {
		input string
		vars  map[string]string
		want  string
	}{
		{"${A}/x", map[string]string{"A": "/a"}, "/a/x"},
		{"${TIMEKEEPER_TEST_VAR}", nil, "from-env"},
		{"${TIMEKEEPER_TEST_UNSET:-fallback}", nil, "fallback"},
		{"${TIMEKEEPER_TEST_UNSET}", nil, ""},
		{"plain", nil, "plain"},
	}
	for _, test := range tests {
		if got := expandVars(test.input, test.vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestTimerKind(t *testing.T) {
	now := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		config TimerConfig
		want   TimerKind
	}{
		{"interval", TimerConfig{Interval: time.Second}, IntervalTimer},
		{"alert", TimerConfig{Alert: now}, AlertTimer},
		{"cron", TimerConfig{Cron: "* * * * *"}, CronTimer},
		{"none", TimerConfig{}, ""},
		{"two", TimerConfig{Interval: time.Second, Alert: now}, ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.config.Kind(); got != test.want {
				t.Errorf("Kind() = %q, want %q", got, test.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	start := time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad_environment", func(c *Config) { c.Environment = "qa" }, "invalid environment"},
		{"no_clock_name", func(c *Config) { c.Clock.Name = "" }, "clock.name is required"},
		{"blank_timer_name", func(c *Config) {
			c.Timers = []TimerConfig{{Name: "  ", Interval: time.Second}}
		}, "name is required"},
		{"duplicate_timer", func(c *Config) {
			c.Timers = []TimerConfig{{Name: "a", Interval: time.Second}, {Name: "a", Cron: "* * * * *"}}
		}, `duplicate name "a"`},
		{"no_kind", func(c *Config) {
			c.Timers = []TimerConfig{{Name: "a"}}
		}, "exactly one of interval, alert, cron"},
		{"negative_interval", func(c *Config) {
			c.Timers = []TimerConfig{{Name: "a", Interval: -time.Second}}
		}, "interval must be positive"},
		{"stop_before_start", func(c *Config) {
			c.Timers = []TimerConfig{{Name: "a", Interval: time.Second, Start: start, Stop: start.Add(-time.Hour)}}
		}, "stop is before start"},
		{"alert_with_start", func(c *Config) {
			c.Timers = []TimerConfig{{Name: "a", Alert: start, Start: start}}
		}, "apply only to interval timers"},
		{"bad_cron", func(c *Config) {
			c.Timers = []TimerConfig{{Name: "a", Cron: "61 * * * *"}}
		}, "minute field"},
		{"zero_step", func(c *Config) { c.Backtest.Step = 0 }, "backtest.step must be positive"},
		{"until_before_start", func(c *Config) {
			c.Backtest.Start = start
			c.Backtest.Until = start.Add(-time.Minute)
		}, "is before backtest.start"},
		{"bad_compression", func(c *Config) { c.Journal.Compression = "lz4" }, "journal.compression"},
		{"bad_level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad_format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", test.wantErr)
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Validate() = %q, want error containing %q", err, test.wantErr)
			}
		})
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Clock.Name = ""
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"clock.name", "log.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
