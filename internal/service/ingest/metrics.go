package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// scansTotal counts scans by result (ok, too_many_files, cancelled)
	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_scans_total",
		Help: "Total entry scans by result",
	}, []string{"result"})

	// skippedEntriesTotal counts entries skipped during scans by reason
	skippedEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_skipped_entries_total",
		Help: "Entries skipped during scans by reason",
	}, []string{"reason"})

	// uploadsTotal counts settled uploads by result
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_uploads_total",
		Help: "Settled payload uploads by result",
	}, []string{"result"})

	// uploadDuration tracks payload upload latency
	uploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_upload_duration_seconds",
		Help:    "Payload upload duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	})

	// commitsTotal counts submits by outcome
	commitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_commits_total",
		Help: "Batch submits by outcome",
	}, []string{"outcome"})

	// activeSessions tracks open ingestion sessions
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_active_sessions",
		Help: "Open ingestion sessions",
	})
)
