// Package metrics records audit run metrics in a private Prometheus registry
// and writes them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/locktivity/epack-collector-akamai/internal/collector"
)

const namespace = "akamai_waf_audit"

// Metrics holds the run metrics.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rows            prometheus.Gauge
	skipped         prometheus.Gauge
	findings        prometheus.Gauge
	unconfigured    *prometheus.GaugeVec
	lastRun         prometheus.Gauge
	runDuration     prometheus.Gauge
}

// New creates Metrics registered in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of Akamai API requests by resource and outcome",
		}, []string{"resource", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Akamai API request latency by resource",
			Buckets:   prometheus.DefBuckets,
		}, []string{"resource"}),
		rows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "policies",
			Help:      "Number of security policies audited in the last run",
		}),
		skipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "skipped_configurations",
			Help:      "Number of configurations skipped in the last run",
		}),
		findings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "findings",
			Help:      "Number of failed audit checks in the last run",
		}),
		unconfigured: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unconfigured_controls",
			Help:      "Number of policies without the given control configured",
		}, []string{"control"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed run",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall clock duration of the last run",
		}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.rows,
		m.skipped,
		m.findings,
		m.unconfigured,
		m.lastRun,
		m.runDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one API request.
func (m *Metrics) ObserveRequest(resource, outcome string, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(resource, outcome).Inc()
	m.requestDuration.WithLabelValues(resource).Observe(elapsed.Seconds())
}

// ObserveOutput records the summary of a completed run.
func (m *Metrics) ObserveOutput(output *collector.Output, finishedAt time.Time) {
	m.rows.Set(float64(len(output.Rows)))
	m.skipped.Set(float64(len(output.Skipped)))
	m.findings.Set(float64(len(output.Findings)))
	m.runDuration.Set(output.ElapsedSeconds)
	m.lastRun.Set(float64(finishedAt.Unix()))

	var attackGroups, rateControls, slowPost, clientRep int
	for _, r := range output.Rows {
		if !r.AttackGroups.Configured {
			attackGroups++
		}
		if !r.RateControls.Configured {
			rateControls++
		}
		if r.SlowPost == collector.SentinelOff {
			slowPost++
		}
		if !r.ClientReputation.Configured {
			clientRep++
		}
	}
	m.unconfigured.WithLabelValues("attack_groups").Set(float64(attackGroups))
	m.unconfigured.WithLabelValues("rate_controls").Set(float64(rateControls))
	m.unconfigured.WithLabelValues("slow_post").Set(float64(slowPost))
	m.unconfigured.WithLabelValues("client_reputation").Set(float64(clientRep))
}

// WriteTextfile writes the metrics to path for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
