// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/timekeeper/lib/nanos"
)

// Schedule is a parsed cron expression. Use Parse to create one, then
// Next or NextNs to find occurrences.
type Schedule struct {
	expression  string
	minutes     bitset64
	hours       bitset64
	daysOfMonth bitset64
	months      bitset64
	daysOfWeek  bitset64
}

// bitset64 uses a uint64 as a compact set of integers 0-63.
type bitset64 uint64

func (b bitset64) has(value int) bool { return b&(1<<uint(value)) != 0 }
func (b *bitset64) set(value int)     { *b |= 1 << uint(value) }

// shortcuts maps the @-forms to their 5-field equivalents.
var shortcuts = map[string]string{
	"@hourly":   "0 * * * *",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@weekly":   "0 0 * * 0",
	"@monthly":  "0 0 1 * *",
	"@yearly":   "0 0 1 1 *",
	"@annually": "0 0 1 1 *",
}

// Parse parses a 5-field cron expression or one of the @-shortcuts.
func Parse(expression string) (Schedule, error) {
	expanded := strings.TrimSpace(expression)
	if strings.HasPrefix(expanded, "@") {
		replacement, ok := shortcuts[expanded]
		if !ok {
			return Schedule{}, fmt.Errorf("cron: unknown shortcut %q", expanded)
		}
		expanded = replacement
	}

	fields := strings.Fields(expanded)
	if len(fields) != 5 {
		return Schedule{}, fmt.Errorf("cron: expected 5 fields, got %d", len(fields))
	}

	schedule := Schedule{expression: strings.TrimSpace(expression)}
	targets := []struct {
		name     string
		bits     *bitset64
		min, max int
	}{
		{"minute", &schedule.minutes, 0, 59},
		{"hour", &schedule.hours, 0, 23},
		{"day-of-month", &schedule.daysOfMonth, 1, 31},
		{"month", &schedule.months, 1, 12},
		{"day-of-week", &schedule.daysOfWeek, 0, 6},
	}
	for i, target := range targets {
		bits, err := parseField(fields[i], target.min, target.max)
		if err != nil {
			return Schedule{}, fmt.Errorf("cron: %s field: %w", target.name, err)
		}
		*target.bits = bits
	}
	return schedule, nil
}

// String returns the expression the schedule was parsed from.
func (s Schedule) String() string { return s.expression }

// Next returns the earliest minute boundary strictly after t that
// matches the schedule. All computation is in UTC.
//
// Returns an error if nothing matches within 4 years of t, which
// covers every leap cycle (a schedule like "0 0 31 2 *" never
// matches).
func (s Schedule) Next(t time.Time) (time.Time, error) {
	t = t.UTC().Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(4, 0, 0)

	for t.Before(limit) {
		if !s.months.has(int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
			continue
		}

		// Day-of-month and day-of-week must both match. A wildcard
		// field has every bit set, so it never excludes a day.
		if !s.daysOfMonth.has(t.Day()) || !s.daysOfWeek.has(int(t.Weekday())) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, time.UTC)
			continue
		}

		if !s.hours.has(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, time.UTC)
			continue
		}

		if !s.minutes.has(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}

		return t, nil
	}

	return time.Time{}, fmt.Errorf("cron: %q has no match within 4 years of %s", s.expression, t.Format(time.RFC3339))
}

// NextNs is Next on UNIX nanosecond timestamps.
func (s Schedule) NextNs(t nanos.UnixNanos) (nanos.UnixNanos, error) {
	next, err := s.Next(t.Time())
	if err != nil {
		return 0, err
	}
	return nanos.FromTime(next), nil
}

// parseField parses one comma-separated field into a bitset.
func parseField(field string, minimum, maximum int) (bitset64, error) {
	var result bitset64
	for _, term := range strings.Split(field, ",") {
		bits, err := parseTerm(term, minimum, maximum)
		if err != nil {
			return 0, err
		}
		result |= bits
	}
	if result == 0 {
		return 0, fmt.Errorf("field %q produces empty set", field)
	}
	return result, nil
}

// parseTerm parses a single term: *, */N, V, V-V, V-V/N.
func parseTerm(term string, minimum, maximum int) (bitset64, error) {
	rangeExpression, stepText, stepped := strings.Cut(term, "/")
	step := 1
	if stepped {
		parsed, err := strconv.Atoi(stepText)
		if err != nil {
			return 0, fmt.Errorf("invalid step %q: %w", stepText, err)
		}
		if parsed <= 0 {
			return 0, fmt.Errorf("step must be positive, got %d", parsed)
		}
		step = parsed
	}

	rangeStart, rangeEnd := minimum, maximum
	if rangeExpression != "*" {
		startText, endText, isRange := strings.Cut(rangeExpression, "-")
		var err error
		rangeStart, err = strconv.Atoi(startText)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q: %w", startText, err)
		}
		rangeEnd = rangeStart
		if isRange {
			rangeEnd, err = strconv.Atoi(endText)
			if err != nil {
				return 0, fmt.Errorf("invalid range end %q: %w", endText, err)
			}
			if rangeStart > rangeEnd {
				return 0, fmt.Errorf("range start %d > end %d", rangeStart, rangeEnd)
			}
		}
	}

	if rangeStart < minimum || rangeEnd > maximum {
		return 0, fmt.Errorf("value out of range [%d-%d]: got %d-%d", minimum, maximum, rangeStart, rangeEnd)
	}

	var result bitset64
	for value := rangeStart; value <= rangeEnd; value += step {
		result.set(value)
	}
	return result, nil
}
