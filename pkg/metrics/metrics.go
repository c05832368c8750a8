// Package metrics defines the Prometheus collectors for an indexing run and
// pushes them to a Pushgateway when the run ends.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the collectors of one indexing run. All record methods are
// safe on a nil *Metrics so callers can leave metrics unconfigured.
type Metrics struct {
	registry *prometheus.Registry

	DocsIndexedTotal    prometheus.Counter
	EntriesWrittenTotal prometheus.Counter
	BatchFailuresTotal  *prometheus.CounterVec
	BatchDuration       prometheus.Histogram
	BatchDocuments      prometheus.Gauge
	LastSuccess         prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "indexer_docs_indexed_total",
				Help: "Documents indexed and marked indexed.",
			},
		),
		EntriesWrittenTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "indexer_entries_written_total",
				Help: "Index entries upserted.",
			},
		),
		BatchFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_batch_failures_total",
				Help: "Aborted batches by failing operation.",
			},
			[]string{"operation"},
		),
		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "indexer_batch_duration_seconds",
				Help:    "Wall time of a batch run in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		BatchDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexer_batch_documents",
				Help: "Pending documents fetched by the last batch.",
			},
		),
		LastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexer_last_success_timestamp_seconds",
				Help: "Unix time of the last batch that completed without error.",
			},
		),
	}

	m.registry.MustRegister(
		m.DocsIndexedTotal,
		m.EntriesWrittenTotal,
		m.BatchFailuresTotal,
		m.BatchDuration,
		m.BatchDocuments,
		m.LastSuccess,
	)
	return m
}

func (m *Metrics) DocumentIndexed(entries int) {
	if m == nil {
		return
	}
	m.DocsIndexedTotal.Inc()
	m.EntriesWrittenTotal.Add(float64(entries))
}

func (m *Metrics) BatchFetched(n int) {
	if m == nil {
		return
	}
	m.BatchDocuments.Set(float64(n))
}

// BatchFinished records the run duration, and either the failing operation
// or the success timestamp.
func (m *Metrics) BatchFinished(d time.Duration, failedOp string) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(d.Seconds())
	if failedOp != "" {
		m.BatchFailuresTotal.WithLabelValues(failedOp).Inc()
		return
	}
	m.LastSuccess.SetToCurrentTime()
}

// Push sends every collector to the Pushgateway at url under job,
// replacing the metrics previously pushed for that job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
