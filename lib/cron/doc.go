// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cron parses 5-field cron expressions and drives them as
// self-re-arming alerts on a clock.
//
// Supported syntax:
//
//	┌───────────── minute (0-59)
//	│ ┌───────────── hour (0-23)
//	│ │ ┌───────────── day of month (1-31)
//	│ │ │ ┌───────────── month (1-12)
//	│ │ │ │ ┌───────────── day of week (0-6, 0=Sunday)
//	│ │ │ │ │
//	* * * * *
//
// Each field supports single values (5), ranges (1-5), lists (1,3,5),
// steps (*/15, 1-30/5) and the wildcard. The shortcuts @hourly,
// @daily (@midnight), @weekly, @monthly and @yearly (@annually) are
// accepted. There is no seconds field and no named days or months.
//
// All times are UTC.
//
// [Arm] turns a [Schedule] into a [Job]: an alert registered on any
// clock with SetTimeAlert that registers its own successor each time
// it fires. On a TestClock the chain is fully deterministic, so cron
// timers take part in backtests and journal digests like any other.
package cron
