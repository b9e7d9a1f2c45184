// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// liveClockMetrics instruments a LiveClock. A nil *liveClockMetrics is
// valid and records nothing.
type liveClockMetrics struct {
	timersRegistered *prometheus.CounterVec
	timerFires       prometheus.Counter
	unhandledFires   prometheus.Counter
	cancelFailures   prometheus.Counter
}

// newLiveClockMetrics registers the clock's collectors with registerer.
// Every series carries a "clock" label so several clocks can share a
// registry.
func newLiveClockMetrics(registerer prometheus.Registerer, clockName string, activeTimers func() float64) *liveClockMetrics {
	factory := promauto.With(registerer)
	labels := prometheus.Labels{"clock": clockName}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace:   "timekeeper",
			Subsystem:   "live_clock",
			Name:        "active_timers",
			Help:        "Current count of registered timers that have not expired.",
			ConstLabels: labels,
		},
		activeTimers,
	)

	return &liveClockMetrics{
		timersRegistered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "timekeeper",
				Subsystem:   "live_clock",
				Name:        "timers_registered_total",
				Help:        "Total timers registered, partitioned by kind (alert or interval).",
				ConstLabels: labels,
			},
			[]string{"kind"},
		),
		timerFires: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace:   "timekeeper",
				Subsystem:   "live_clock",
				Name:        "timer_fires_total",
				Help:        "Total time events delivered to handlers.",
				ConstLabels: labels,
			},
		),
		unhandledFires: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace:   "timekeeper",
				Subsystem:   "live_clock",
				Name:        "unhandled_fires_total",
				Help:        "Total time events dropped because no handler resolved at fire time.",
				ConstLabels: labels,
			},
		),
		cancelFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace:   "timekeeper",
				Subsystem:   "live_clock",
				Name:        "cancel_failures_total",
				Help:        "Total timer cancellations that failed to stop the background firer.",
				ConstLabels: labels,
			},
		),
	}
}

func (m *liveClockMetrics) observeRegistered(kind string) {
	if m != nil {
		m.timersRegistered.WithLabelValues(kind).Inc()
	}
}

func (m *liveClockMetrics) observeFire() {
	if m != nil {
		m.timerFires.Inc()
	}
}

func (m *liveClockMetrics) observeUnhandled() {
	if m != nil {
		m.unhandledFires.Inc()
	}
}

func (m *liveClockMetrics) observeCancelFailure() {
	if m != nil {
		m.cancelFailures.Inc()
	}
}
