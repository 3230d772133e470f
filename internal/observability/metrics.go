package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "zip2wd"

// Metrics holds the Prometheus counters, histograms, and gauges shared by the
// coordinator and worker roles.
type Metrics struct {
	// Coordinator metrics.
	JobsPublished   prometheus.Counter
	ResultsReceived prometheus.Counter
	RecordsWritten  prometheus.Counter
	QueriesPending  prometheus.Gauge

	// Worker metrics.
	BatchesClaimed          prometheus.Counter
	BatchesCompleted        prometheus.Counter
	WorkerRunning           prometheus.Gauge
	BatchProcessingDuration prometheus.Histogram

	// Archive retrieval metrics.
	ArchiveDownloads *prometheus.CounterVec   // labels: outcome={ok,not_found,failed}
	ArchiveRetries   prometheus.Counter
	ArchiveCache     *prometheus.CounterVec   // labels: result={hit,miss,not_found}
	DownloadDuration *prometheus.HistogramVec // labels: scheme={http,https,ftp}

	// Search metrics.
	ExtractMisses *prometheus.CounterVec // labels: type={GHCND,USAF-WBAN,COOP}
	RankCache     *prometheus.CounterVec // labels: result={hit,miss,extend}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		JobsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_published_total",
			Help:      "Job batches published to the queue.",
		}),
		ResultsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_received_total",
			Help:      "Per-query record sequences drained from the result queue.",
		}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Daily records written to the output file.",
		}),
		QueriesPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queries_pending",
			Help:      "Queries published but not yet answered.",
		}),
		BatchesClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_claimed_total",
			Help:      "Job batches claimed by workers.",
		}),
		BatchesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_completed_total",
			Help:      "Result batches submitted by workers.",
		}),
		WorkerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_loops_running",
			Help:      "Worker loops currently claiming batches.",
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of processing one job batch.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}),
		ArchiveDownloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_downloads_total",
			Help:      "Archive download attempts by outcome.",
		}, []string{"outcome"}),
		ArchiveRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_retries_total",
			Help:      "Archive download retries after transient failures.",
		}),
		ArchiveCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_cache_total",
			Help:      "Archive cache lookups by result.",
		}, []string{"result"}),
		DownloadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "archive_download_duration_seconds",
			Help:      "Archive download duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"scheme"}),
		ExtractMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extract_misses_total",
			Help:      "Archives that held no record for the requested station and date.",
		}, []string{"type"}),
		RankCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rank_cache_total",
			Help:      "Ranked-station cache lookups by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.JobsPublished,
		m.ResultsReceived,
		m.RecordsWritten,
		m.QueriesPending,
		m.BatchesClaimed,
		m.BatchesCompleted,
		m.WorkerRunning,
		m.BatchProcessingDuration,
		m.ArchiveDownloads,
		m.ArchiveRetries,
		m.ArchiveCache,
		m.DownloadDuration,
		m.ExtractMisses,
		m.RankCache,
	}
}
