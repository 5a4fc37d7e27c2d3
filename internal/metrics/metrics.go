// ============================================================================
// Superpy Metrics - Prometheus Monitoring
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Collect and expose fleet-dispatch metrics for Prometheus
//
// Monitoring Philosophy:
//   Based on RED (Rate, Errors, Duration) and USE (Utilization,
//   Saturation, Errors) — tracks placement health from the scheduler's
//   point of view, not inside any one worker.
//
// Metric Categories:
//
//   1. Endpoint Counters - Cumulative, monotonically increasing:
//      - dispatch_endpoints_up_total: liveness probes that found an
//        endpoint up
//      - dispatch_endpoints_down_total: probes/placement attempts that
//        found an endpoint unreachable
//
//   2. Load Gauge - Instantaneous value per endpoint:
//      - dispatch_endpoint_load: last observed load during placement
//
//   3. Task Counters:
//      - dispatch_tasks_dispatched_total{endpoint}: tasks submitted
//      - dispatch_tasks_finished_total: handles observed Finished
//      - dispatch_tasks_killed_total: kill() calls for budget breaches
//      - dispatch_invalid_handles_total: Invalid handles manufactured
//        for unrecoverable polling faults
//
//   4. Performance Metric (Histogram):
//      - dispatch_placement_latency_seconds: time spent in
//        SubmitToBestServer, including every endpoint probed
//
// Use Cases:
//
//   Alerting:
//   - dispatch_endpoints_down_total rate increase → fleet connectivity
//     degradation
//   - dispatch_tasks_killed_total rate increase → endpoints routinely
//     missing their wall-clock budget
//   - dispatch_invalid_handles_total > 0 → polling faults the manager
//     could not recover from
//
//   Capacity Planning:
//   - dispatch_tasks_dispatched_total{endpoint} / time → per-endpoint
//     throughput trend
//   - dispatch_endpoint_load peaks → signal to add fleet capacity
//
//   Troubleshooting:
//   - dispatch_placement_latency_seconds anomaly → slow or flapping
//     endpoints inflating SubmitToBestServer
//
// Prometheus Query Examples:
//
//   # Endpoint availability ratio
//   rate(dispatch_endpoints_up_total[5m]) / (rate(dispatch_endpoints_up_total[5m]) + rate(dispatch_endpoints_down_total[5m]))
//
//   # 95th percentile placement latency
//   histogram_quantile(0.95, dispatch_placement_latency_seconds_bucket)
//
//   # Kill rate per dispatched task
//   rate(dispatch_tasks_killed_total[5m]) / rate(dispatch_tasks_dispatched_total[5m])
//
// HTTP Endpoint:
//   Exposed via /metrics, scraped by Prometheus. Format: Prometheus
//   text format, served by StartServer on the configured port.
//
// ============================================================================
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects Prometheus metrics for one Scheduler/Manager pair.
type Collector struct {
	endpointsUp   prometheus.Counter
	endpointsDown prometheus.Counter
	load          *prometheus.GaugeVec

	tasksDispatched *prometheus.CounterVec
	tasksFinished   prometheus.Counter
	tasksKilled     prometheus.Counter
	invalidHandles  prometheus.Counter

	placementLatency prometheus.Histogram
}

// NewCollector builds and registers a fresh metric set.
func NewCollector() *Collector {
	c := &Collector{
		endpointsUp: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_endpoints_up_total",
			Help: "Cumulative count of liveness probes that found an endpoint up",
		}),
		endpointsDown: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_endpoints_down_total",
			Help: "Cumulative count of liveness probes/placement attempts that found an endpoint unreachable",
		}),
		load: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dispatch_endpoint_load",
			Help: "Last observed load for one endpoint during placement",
		}, []string{"endpoint"}),
		tasksDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_tasks_dispatched_total",
			Help: "Total tasks submitted to an endpoint",
		}, []string{"endpoint"}),
		tasksFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_tasks_finished_total",
			Help: "Total tasks observed in the finished state",
		}),
		tasksKilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_tasks_killed_total",
			Help: "Total kill() calls issued for budget breaches",
		}),
		invalidHandles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_invalid_handles_total",
			Help: "Total Invalid handles manufactured for unrecoverable polling faults",
		}),
		placementLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_placement_latency_seconds",
			Help:    "Time spent in SubmitToBestServer, including all probed endpoints",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		c.endpointsUp, c.endpointsDown, c.load,
		c.tasksDispatched, c.tasksFinished, c.tasksKilled, c.invalidHandles,
		c.placementLatency,
	)
	return c
}

// ObserveEndpointUp records a successful liveness probe.
func (c *Collector) ObserveEndpointUp(endpointKey string) {
	c.endpointsUp.Inc()
}

// ObserveEndpointDown records an endpoint demoted to unreachable
// during a liveness probe or placement attempt.
func (c *Collector) ObserveEndpointDown(endpointKey string) {
	c.endpointsDown.Inc()
}

// ObserveLoad records the load an endpoint reported during placement.
func (c *Collector) ObserveLoad(endpointKey string, load float64) {
	c.load.WithLabelValues(endpointKey).Set(load)
}

// IncDispatched records a task submitted to endpointKey.
func (c *Collector) IncDispatched(endpointKey string) {
	c.tasksDispatched.WithLabelValues(endpointKey).Inc()
}

// IncFinished records a handle observed in the finished state.
func (c *Collector) IncFinished() {
	c.tasksFinished.Inc()
}

// IncKilled records a kill() issued for a timeout breach.
func (c *Collector) IncKilled() {
	c.tasksKilled.Inc()
}

// IncInvalidHandle records an Invalid handle manufactured for an
// unrecoverable polling fault.
func (c *Collector) IncInvalidHandle() {
	c.invalidHandles.Inc()
}

// ObservePlacementLatency records the wall-clock cost of one
// SubmitToBestServer call.
func (c *Collector) ObservePlacementLatency(seconds float64) {
	c.placementLatency.Observe(seconds)
}

// StartServer starts the Prometheus metrics HTTP server on port,
// blocking until it exits.
func StartServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, mux)
}
