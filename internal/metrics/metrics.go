// ============================================================================
// TrialMesh Metrics - Prometheus Monitoring
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Collect and expose trial-dispatch metrics for Prometheus
//
// Metric Categories (every name below carries the trialmesh_ prefix):
//
//   1. Trial Counters - Cumulative, monotonically increasing:
//      - trials_created_total
//      - trials_completed_total
//      - trials_pruned_total
//      - trials_failed_total
//
//   2. Performance Metrics (Histogram):
//      - trial_duration_seconds: wall-clock time from CreateTrial to a
//        terminal message, distribution across buckets
//
//   3. Status Metrics:
//      - trials_running (Gauge): trials currently in flight
//      - stop_patience_timeouts_total (Counter): StopOptimization calls
//        that hit the patience deadline instead of a clean stop
//
// HTTP Endpoint:
//   Exposed via /metrics, scraped by Prometheus. Default port 9090.
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the trial-lifecycle metrics surface the event loop drives.
// A caller with metrics disabled passes Nop{} instead of a nil *Collector,
// the same nil-object pattern internal/progress uses for its Reporter.
type Recorder interface {
	RecordCreated()
	RecordCompleted(durationSeconds float64)
	RecordPruned(durationSeconds float64)
	RecordFailed(durationSeconds float64)
	RecordStopTimeout()
	SetRunning(n int)
}

// Nop is a Recorder that discards every call.
type Nop struct{}

func (Nop) RecordCreated()          {}
func (Nop) RecordCompleted(float64) {}
func (Nop) RecordPruned(float64)    {}
func (Nop) RecordFailed(float64)    {}
func (Nop) RecordStopTimeout()      {}
func (Nop) SetRunning(int)          {}

var _ Recorder = Nop{}
var _ Recorder = (*Collector)(nil)

// Collector collects Prometheus metrics for one study's optimization run.
type Collector struct {
	trialsCreated   prometheus.Counter
	trialsCompleted prometheus.Counter
	trialsPruned    prometheus.Counter
	trialsFailed    prometheus.Counter

	trialDuration prometheus.Histogram

	trialsRunning prometheus.Gauge
	stopTimeouts  prometheus.Counter
}

// NewCollector creates a new Collector and registers its metrics against
// the default Prometheus registry.
func NewCollector() *Collector {
	c := &Collector{
		trialsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trialmesh_trials_created_total",
			Help: "Total number of trials created",
		}),
		trialsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trialmesh_trials_completed_total",
			Help: "Total number of trials that completed successfully",
		}),
		trialsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trialmesh_trials_pruned_total",
			Help: "Total number of trials pruned before completion",
		}),
		trialsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trialmesh_trials_failed_total",
			Help: "Total number of trials whose objective raised an error",
		}),
		trialDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trialmesh_trial_duration_seconds",
			Help:    "Trial wall-clock duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		trialsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trialmesh_trials_running",
			Help: "Current number of trials in flight",
		}),
		stopTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trialmesh_stop_patience_timeouts_total",
			Help: "Total number of StopOptimization calls that exceeded their patience window",
		}),
	}

	prometheus.MustRegister(
		c.trialsCreated,
		c.trialsCompleted,
		c.trialsPruned,
		c.trialsFailed,
		c.trialDuration,
		c.trialsRunning,
		c.stopTimeouts,
	)

	return c
}

func (c *Collector) RecordCreated()   { c.trialsCreated.Inc() }
func (c *Collector) RecordCompleted(durationSeconds float64) {
	c.trialsCompleted.Inc()
	c.trialDuration.Observe(durationSeconds)
}
func (c *Collector) RecordPruned(durationSeconds float64) {
	c.trialsPruned.Inc()
	c.trialDuration.Observe(durationSeconds)
}
func (c *Collector) RecordFailed(durationSeconds float64) {
	c.trialsFailed.Inc()
	c.trialDuration.Observe(durationSeconds)
}
func (c *Collector) RecordStopTimeout() { c.stopTimeouts.Inc() }

// SetRunning sets the current in-flight trial count.
func (c *Collector) SetRunning(n int) { c.trialsRunning.Set(float64(n)) }

// StartServer starts the Prometheus metrics HTTP server on port.
func StartServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
}
