// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package engine

// metrics.go wires the pool's hard invariant (live context count) and the
// scheduler's switch duration into Prometheus collectors: a struct of
// collectors, plus a NewMetricsWithRegistry constructor so tests get
// isolated registries instead of colliding on prometheus.DefaultRegisterer.

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector this module exposes.
type Metrics struct {
	LiveContexts     prometheus.Gauge
	SwitchDuration   *prometheus.HistogramVec
	SwitchFailures   *prometheus.CounterVec
	RouterUpdates    *prometheus.CounterVec
	AudioSilenceGate prometheus.Gauge
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// NewMetrics returns the shared Metrics instance registered against the
// process-wide default registerer. Registration happens once; repeated calls
// return the same instance, so components that each default their metrics
// independently (scheduler, router) never collide on duplicate registration.
func NewMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetricsWithRegistry(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// NewMetricsWithRegistry creates a Metrics instance against a caller-supplied
// registerer, so tests can use a fresh prometheus.NewRegistry() and avoid
// colliding on repeated registration across test runs.
func NewMetricsWithRegistry(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		LiveContexts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_live_contexts",
			Help: "Number of GPU contexts currently allocated by the pool.",
		}),
		SwitchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "engine_switch_duration_seconds",
			Help:    "Duration of Scheduler.SwitchTo transitions.",
			Buckets: []float64{.005, .01, .025, .05, .1, .2, .3, .5, 1},
		}, []string{"target", "outcome"}),
		SwitchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_switch_failures_total",
			Help: "Total number of failed SwitchTo transitions, by cause.",
		}, []string{"target", "kind"}),
		RouterUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_router_param_updates_total",
			Help: "Total number of parameter writes issued by the Reactivity Router, by mode.",
		}, []string{"channel", "mode"}),
		AudioSilenceGate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_audio_silence_gated",
			Help: "1 when the most recent audio frame was below the silence threshold, else 0.",
		}),
	}
	registerer.MustRegister(
		m.LiveContexts,
		m.SwitchDuration,
		m.SwitchFailures,
		m.RouterUpdates,
		m.AudioSilenceGate,
	)
	return m
}
