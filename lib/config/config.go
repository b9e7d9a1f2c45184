// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/timekeeper/lib/cron"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local runs and backtests.
	Development Environment = "development"
	// Staging is for pre-production live runs.
	Staging Environment = "staging"
	// Production is for production live runs.
	Production Environment = "production"
)

// Config is the master configuration for timekeeper.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Clock configures the clock the timers are registered on.
	Clock ClockConfig `yaml:"clock"`

	// Timers lists the timers to register at startup.
	Timers []TimerConfig `yaml:"timers"`

	// Backtest configures the deterministic run.
	Backtest BacktestConfig `yaml:"backtest"`

	// Journal configures event recording.
	Journal JournalConfig `yaml:"journal"`

	// Metrics configures the Prometheus endpoint of a live run.
	Metrics MetricsConfig `yaml:"metrics"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment. Timers are never overridden: the same timer set runs
// everywhere.
type ConfigOverrides struct {
	Journal *JournalConfig `yaml:"journal,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
	Log     *LogConfig     `yaml:"log,omitempty"`
}

// ClockConfig configures the clock.
type ClockConfig struct {
	// Name labels log lines and metric series.
	// Default: engine
	Name string `yaml:"name"`
}

// TimerKind distinguishes the three ways a configured timer fires.
type TimerKind string

const (
	IntervalTimer TimerKind = "interval"
	AlertTimer    TimerKind = "alert"
	CronTimer     TimerKind = "cron"
)

// TimerConfig describes one timer. Exactly one of Interval, Alert and
// Cron must be set.
type TimerConfig struct {
	// Name is the timer's unique name within the clock.
	Name string `yaml:"name"`

	// Interval makes this a repeating timer, e.g. "1m" or "250ms".
	Interval time.Duration `yaml:"interval,omitempty"`

	// Start is the time intervals are counted from. Zero means the
	// clock's time at registration.
	Start time.Time `yaml:"start,omitempty"`

	// Stop bounds a repeating timer. Zero means unbounded.
	Stop time.Time `yaml:"stop,omitempty"`

	// Alert makes this a one-shot timer firing at the given time.
	Alert time.Time `yaml:"alert,omitempty"`

	// Cron makes this a self-re-arming alert following a 5-field UTC
	// cron expression.
	Cron string `yaml:"cron,omitempty"`
}

// Kind reports which kind of timer the entry configures, or the empty
// string if the entry sets none or more than one of Interval, Alert
// and Cron.
func (t TimerConfig) Kind() TimerKind {
	var kinds []TimerKind
	if t.Interval != 0 {
		kinds = append(kinds, IntervalTimer)
	}
	if !t.Alert.IsZero() {
		kinds = append(kinds, AlertTimer)
	}
	if t.Cron != "" {
		kinds = append(kinds, CronTimer)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// BacktestConfig configures a deterministic run.
type BacktestConfig struct {
	// Start is the clock's initial time.
	Start time.Time `yaml:"start"`

	// Until is the time the run advances to. The --until flag
	// overrides it.
	Until time.Time `yaml:"until"`

	// Step is how far each advance moves the clock.
	// Default: 1m
	Step time.Duration `yaml:"step"`
}

// JournalConfig configures event recording.
type JournalConfig struct {
	// Path is where the journal is written. Empty disables journaling.
	Path string `yaml:"path"`

	// Compression is "none" or "zstd".
	// Default: zstd
	Compression string `yaml:"compression"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the host:port serving /metrics. Empty disables the
	// endpoint.
	Listen string `yaml:"listen"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format is text, json, or auto (text when stderr is a terminal,
	// json otherwise).
	// Default: auto (development), json (production)
	Format string `yaml:"format"`
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Default returns the default configuration. These defaults are a
// base the config file is merged onto, not a fallback: the config file
// is required.
func Default() *Config {
	return &Config{
		Environment: Development,
		Clock: ClockConfig{
			Name: "engine",
		},
		Backtest: BacktestConfig{
			Step: time.Minute,
		},
		Journal: JournalConfig{
			Compression: "zstd",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the TIMEKEEPER_CONFIG environment
// variable. There are no fallbacks: if TIMEKEEPER_CONFIG is not set,
// this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("TIMEKEEPER_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("TIMEKEEPER_CONFIG environment variable not set; " +
			"set it to the path of your timekeeper.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Environment
// variables do not override config values; the only expansion is
// ${VAR} and ${VAR:-default} in the journal path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: machine-readable logs.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Log: &LogConfig{Format: "json"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Journal != nil {
		if overrides.Journal.Path != "" {
			c.Journal.Path = overrides.Journal.Path
		}
		if overrides.Journal.Compression != "" {
			c.Journal.Compression = overrides.Journal.Compression
		}
	}

	if overrides.Metrics != nil {
		if overrides.Metrics.Listen != "" {
			c.Metrics.Listen = overrides.Metrics.Listen
		}
	}

	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
		if overrides.Log.Format != "" {
			c.Log.Format = overrides.Log.Format
		}
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":        os.Getenv("HOME"),
		"ENVIRONMENT": string(c.Environment),
	}

	c.Journal.Path = expandVars(c.Journal.Path, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Clock.Name == "" {
		errs = append(errs, fmt.Errorf("clock.name is required"))
	}

	seen := make(map[string]bool, len(c.Timers))
	for i, timer := range c.Timers {
		errs = append(errs, validateTimer(i, timer)...)
		if timer.Name != "" {
			if seen[timer.Name] {
				errs = append(errs, fmt.Errorf("timers[%d]: duplicate name %q", i, timer.Name))
			}
			seen[timer.Name] = true
		}
	}

	if c.Backtest.Step <= 0 {
		errs = append(errs, fmt.Errorf("backtest.step must be positive, got %v", c.Backtest.Step))
	}
	if !c.Backtest.Until.IsZero() && c.Backtest.Until.Before(c.Backtest.Start) {
		errs = append(errs, fmt.Errorf("backtest.until %s is before backtest.start %s",
			c.Backtest.Until.Format(time.RFC3339), c.Backtest.Start.Format(time.RFC3339)))
	}

	compressionValues := []string{"", "none", "zstd"}
	if !slices.Contains(compressionValues, c.Journal.Compression) {
		errs = append(errs, fmt.Errorf("journal.compression must be one of: none, zstd"))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	formatValues := []string{"text", "json", "auto"}
	if !slices.Contains(formatValues, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", formatValues))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validateTimer(index int, timer TimerConfig) []error {
	var errs []error
	prefix := fmt.Sprintf("timers[%d]", index)
	if timer.Name != "" {
		prefix = fmt.Sprintf("timers[%d] (%s)", index, timer.Name)
	}

	if strings.TrimSpace(timer.Name) == "" {
		errs = append(errs, fmt.Errorf("%s: name is required", prefix))
	}

	switch timer.Kind() {
	case IntervalTimer:
		if timer.Interval < 0 {
			errs = append(errs, fmt.Errorf("%s: interval must be positive, got %v", prefix, timer.Interval))
		}
		if !timer.Stop.IsZero() && !timer.Start.IsZero() && timer.Stop.Before(timer.Start) {
			errs = append(errs, fmt.Errorf("%s: stop is before start", prefix))
		}
	case AlertTimer:
		if !timer.Start.IsZero() || !timer.Stop.IsZero() {
			errs = append(errs, fmt.Errorf("%s: start and stop apply only to interval timers", prefix))
		}
	case CronTimer:
		if _, err := cron.Parse(timer.Cron); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", prefix, err))
		}
		if !timer.Start.IsZero() || !timer.Stop.IsZero() {
			errs = append(errs, fmt.Errorf("%s: start and stop apply only to interval timers", prefix))
		}
	default:
		errs = append(errs, fmt.Errorf("%s: exactly one of interval, alert, cron must be set", prefix))
	}
	return errs
}
