// Package metrics provides Prometheus metrics for migration runs
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeWritten = "written"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// MigrationMetrics contains Prometheus metrics for migration runs
type MigrationMetrics struct {
	runsTotal          *prometheus.CounterVec
	runDurationSeconds prometheus.Histogram
	recordsTotal       *prometheus.CounterVec
	malformedKeysTotal prometheus.Counter
	sourceEntries      prometheus.Gauge
}

// NewMigrationMetrics creates and registers new migration metrics
func NewMigrationMetrics(registry prometheus.Registerer) (*MigrationMetrics, error) {
	m := &MigrationMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MigrationMetrics) initMetrics() {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_runs_total",
			Help: "Total number of migration runs by final status",
		},
		[]string{"status"}, // success, partial, failure
	)

	m.runDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "migration_run_duration_seconds",
		Help:    "Time taken by a complete migration run",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
	})

	m.recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_records_total",
			Help: "Total number of destination records processed by entity and outcome",
		},
		[]string{"entity", "outcome"},
	)

	m.malformedKeysTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "migration_malformed_keys_total",
		Help: "Total number of source keys whose payload could not be decoded",
	})

	m.sourceEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "migration_source_entries",
		Help: "Number of key-value rows read by the latest run",
	})
}

// Describe implements prometheus.Collector
func (m *MigrationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.runsTotal.Describe(ch)
	m.runDurationSeconds.Describe(ch)
	m.recordsTotal.Describe(ch)
	m.malformedKeysTotal.Describe(ch)
	m.sourceEntries.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *MigrationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.runsTotal.Collect(ch)
	m.runDurationSeconds.Collect(ch)
	m.recordsTotal.Collect(ch)
	m.malformedKeysTotal.Collect(ch)
	m.sourceEntries.Collect(ch)
}

// RecordRun records the final status and duration of a run
func (m *MigrationMetrics) RecordRun(status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDurationSeconds.Observe(durationSeconds)
}

// RecordRecord records the outcome of one destination write
func (m *MigrationMetrics) RecordRecord(entity, outcome string) {
	if m == nil {
		return
	}
	m.recordsTotal.WithLabelValues(entity, outcome).Inc()
}

// RecordMalformedKey counts a source key whose payload was rejected
func (m *MigrationMetrics) RecordMalformedKey() {
	if m == nil {
		return
	}
	m.malformedKeysTotal.Inc()
}

// SetSourceEntries records how many rows the source returned
func (m *MigrationMetrics) SetSourceEntries(n int) {
	if m == nil {
		return
	}
	m.sourceEntries.Set(float64(n))
}
